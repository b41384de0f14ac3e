package saves

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/jimzhouzzy/klotski-server/internal/common"
	"github.com/jimzhouzzy/klotski-server/internal/logging"
	"github.com/jimzhouzzy/klotski-server/internal/server/metrics"
	"github.com/jimzhouzzy/klotski-server/internal/workerpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeArchiver struct {
	mu      sync.Mutex
	put     []string
	deleted []string
}

func (a *fakeArchiver) Put(_ context.Context, key string, _ []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.put = append(a.put, key)
	return nil
}

func (a *fakeArchiver) Delete(_ context.Context, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.deleted = append(a.deleted, key)
	return nil
}

type storeFixture struct {
	store *Store
	pool  *workerpool.Pool
	root  string
}

func newStore(t *testing.T, o Options) storeFixture {
	t.Helper()
	if o.Root == "" {
		o.Root = filepath.Join(t.TempDir(), "gameSaves")
	}
	if o.MaxManual == 0 {
		o.MaxManual = 3
	}
	pool := workerpool.New(2)
	t.Cleanup(pool.Close)

	s, err := NewStore(o, pool, logging.Nop())
	require.NoError(t, err)
	return storeFixture{store: s, pool: pool, root: o.Root}
}

func manual(user, date string) *GameSave {
	return &GameSave{Username: user, Date: date, SaveData: "board@" + date}
}

func auto(user, date string) *GameSave {
	return &GameSave{Username: user, Date: date, SaveData: "auto@" + date, AutoSave: true}
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func dates(list []GameSave) []string {
	out := make([]string, len(list))
	for i, g := range list {
		out[i] = g.Date
	}
	return out
}

func TestStore_RetainsNewestManualSaves(t *testing.T) {
	ctx := context.Background()
	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)
	f := newStore(t, Options{Metrics: m})

	for _, d := range []string{"2025-01-01T10:00:00", "2025-01-02T10:00:00", "2025-01-03T10:00:00"} {
		require.NoError(t, f.store.Upload(ctx, manual("alice", d)))
	}

	got, err := f.store.List(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-01-03T10:00:00", "2025-01-02T10:00:00", "2025-01-01T10:00:00"}, dates(got))

	require.NoError(t, f.store.Upload(ctx, manual("alice", "2025-01-04T10:00:00")))

	got, err = f.store.List(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-01-04T10:00:00", "2025-01-03T10:00:00", "2025-01-02T10:00:00"}, dates(got))
	assert.Equal(t, []string{
		"2025-01-02T10:00:00.json",
		"2025-01-03T10:00:00.json",
		"2025-01-04T10:00:00.json",
	}, dirNames(t, filepath.Join(f.root, "alice")))
}

func TestStore_OlderUploadEvictedImmediately(t *testing.T) {
	ctx := context.Background()
	f := newStore(t, Options{MaxManual: 2})

	require.NoError(t, f.store.Upload(ctx, manual("bob", "2025-03-02T00:00:00")))
	require.NoError(t, f.store.Upload(ctx, manual("bob", "2025-03-03T00:00:00")))
	require.NoError(t, f.store.Upload(ctx, manual("bob", "2025-03-01T00:00:00")))

	got, err := f.store.List(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-03-03T00:00:00", "2025-03-02T00:00:00"}, dates(got))
	assert.NotContains(t, dirNames(t, filepath.Join(f.root, "bob")), "2025-03-01T00:00:00.json")
}

func TestStore_SameDateReplaces(t *testing.T) {
	ctx := context.Background()
	f := newStore(t, Options{})

	require.NoError(t, f.store.Upload(ctx, manual("alice", "2025-01-01")))
	second := manual("alice", "2025-01-01")
	second.SaveData = "replaced"
	require.NoError(t, f.store.Upload(ctx, second))

	got, err := f.store.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "replaced", got[0].SaveData)
}

func TestStore_AutosaveKeepsSingleFile(t *testing.T) {
	ctx := context.Background()
	f := newStore(t, Options{})

	require.NoError(t, f.store.Upload(ctx, auto("alice", "2025-01-01T10:00:00")))
	require.NoError(t, f.store.Upload(ctx, auto("alice", "2025-01-01T11:00:00")))
	require.NoError(t, f.store.Upload(ctx, manual("alice", "2025-01-01T12:00:00")))

	assert.Equal(t, []string{
		"2025-01-01T12:00:00.json",
		"Autosave-2025-01-01T11:00:00.json",
	}, dirNames(t, filepath.Join(f.root, "alice")))

	a, err := f.store.Autosave(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "2025-01-01T11:00:00", a.Date)
	assert.True(t, a.AutoSave)

	// autosaves never show up among manual saves
	got, err := f.store.List(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-01-01T12:00:00"}, dates(got))
}

func TestStore_FileContent(t *testing.T) {
	ctx := context.Background()
	f := newStore(t, Options{})

	require.NoError(t, f.store.Upload(ctx, manual("alice", "2025-01-01")))

	b, err := os.ReadFile(filepath.Join(f.root, "alice", "2025-01-01.json"))
	require.NoError(t, err)
	var rec GameSave
	require.NoError(t, json.Unmarshal(b, &rec))
	assert.Equal(t, *manual("alice", "2025-01-01"), rec)
}

func TestStore_NotFound(t *testing.T) {
	ctx := context.Background()
	f := newStore(t, Options{})

	_, err := f.store.List(ctx, "nobody")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = f.store.Autosave(ctx, "nobody")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	require.NoError(t, f.store.Upload(ctx, auto("carol", "2025-01-01")))
	_, err = f.store.List(ctx, "carol")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestStore_RejectsUnsafePaths(t *testing.T) {
	ctx := context.Background()
	f := newStore(t, Options{})

	cases := []*GameSave{
		manual("../evil", "2025-01-01"),
		manual("", "2025-01-01"),
		manual("alice", "../../etc/passwd"),
		manual("alice", ".."),
		manual("alice", ""),
		manual("alice", ".hidden"),
		manual("alice", `a\b`),
		manual("alice", "Autosave-2025-01-01T00:00:00"),
		auto("alice", "Autosave-2025-01-01T00:00:00"),
	}
	for _, c := range cases {
		err := f.store.Upload(ctx, c)
		assert.ErrorIs(t, err, common.ErrorInvalidInput, "username=%q date=%q", c.Username, c.Date)
	}

	assert.Empty(t, dirNames(t, f.root))
}

func TestStore_AutosaveLikeDateKeepsIndexInSync(t *testing.T) {
	ctx := context.Background()
	f := newStore(t, Options{})

	require.NoError(t, f.store.Upload(ctx, manual("alice", "2024-01-01T00:00:00")))
	assert.ErrorIs(t, f.store.Upload(ctx, manual("alice", "Autosave-2024-01-01T00:00:00")), common.ErrorInvalidInput)
	require.NoError(t, f.store.Upload(ctx, auto("alice", "2024-01-02T00:00:00")))

	got, err := f.store.List(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-01T00:00:00"}, dates(got))
	assert.Equal(t, []string{
		"2024-01-01T00:00:00.json",
		"Autosave-2024-01-02T00:00:00.json",
	}, dirNames(t, filepath.Join(f.root, "alice")))
}

// cancelAfterFirstWait is a context that reports Done from the second
// Done call on, so the first pool acquire succeeds and later ones see a
// cancelled request.
type cancelAfterFirstWait struct {
	context.Context
	mu    sync.Mutex
	calls int
}

func (c *cancelAfterFirstWait) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.calls == 1 {
		return nil
	}
	ch := make(chan struct{})
	close(ch)
	return ch
}

func (c *cancelAfterFirstWait) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls > 1 {
		return context.Canceled
	}
	return nil
}

func TestStore_EvictionSurvivesCancelledRequest(t *testing.T) {
	ctx := context.Background()
	f := newStore(t, Options{})

	for _, d := range []string{"2024-01-01", "2024-01-02", "2024-01-03"} {
		require.NoError(t, f.store.Upload(ctx, manual("alice", d)))
	}

	reqCtx := &cancelAfterFirstWait{Context: context.Background()}
	require.NoError(t, f.store.Upload(reqCtx, manual("alice", "2024-01-04")))

	got, err := f.store.List(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-04", "2024-01-03", "2024-01-02"}, dates(got))
	assert.Equal(t, []string{
		"2024-01-02.json",
		"2024-01-03.json",
		"2024-01-04.json",
	}, dirNames(t, filepath.Join(f.root, "alice")))
}

func TestStore_ValidatorRejects(t *testing.T) {
	ctx := context.Background()
	f := newStore(t, Options{Validator: StrictValidator{MaxSize: 4}})

	err := f.store.Upload(ctx, &GameSave{Username: "alice", Date: "2025-01-01", SaveData: "too long"})
	assert.ErrorIs(t, err, common.ErrorInvalidInput)

	_, err = f.store.List(ctx, "alice")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestStore_ValidatorErrorWrapped(t *testing.T) {
	ctx := context.Background()
	f := newStore(t, Options{Validator: ValidatorFunc(func(context.Context, *GameSave) error {
		return assert.AnError
	})})

	err := f.store.Upload(ctx, manual("alice", "2025-01-01"))
	assert.ErrorIs(t, err, common.ErrorInvalidInput)
}

func TestStore_WriteFailureLeavesIndex(t *testing.T) {
	ctx := context.Background()
	f := newStore(t, Options{})

	// a regular file where the user directory should be
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "alice"), []byte("x"), 0o644))

	err := f.store.Upload(ctx, manual("alice", "2025-01-01"))
	assert.ErrorIs(t, err, common.ErrorIO)

	_, err = f.store.List(ctx, "alice")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestStore_ConcurrentUploadsSameUser(t *testing.T) {
	ctx := context.Background()
	f := newStore(t, Options{MaxManual: 3})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d := "2025-01-" + []string{"01", "02", "03", "04", "05", "06", "07", "08", "09", "10"}[i]
			assert.NoError(t, f.store.Upload(ctx, manual("alice", d)))
		}(i)
	}
	wg.Wait()

	got, err := f.store.List(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-01-10", "2025-01-09", "2025-01-08"}, dates(got))
	assert.Equal(t, []string{"2025-01-08.json", "2025-01-09.json", "2025-01-10.json"}, dirNames(t, filepath.Join(f.root, "alice")))
}

func TestStore_Mirror(t *testing.T) {
	ctx := context.Background()
	arch := &fakeArchiver{}
	f := newStore(t, Options{MaxManual: 1, Archiver: arch})

	require.NoError(t, f.store.Upload(ctx, manual("alice", "2025-01-01")))
	require.NoError(t, f.store.Upload(ctx, manual("alice", "2025-01-02")))
	require.NoError(t, f.store.Upload(ctx, auto("alice", "2025-01-02")))

	// Close waits for background mirror jobs
	f.pool.Close()

	assert.ElementsMatch(t, []string{
		"alice/2025-01-01.json",
		"alice/2025-01-02.json",
		"alice/Autosave-2025-01-02.json",
	}, arch.put)
	assert.Equal(t, []string{"alice/2025-01-01.json"}, arch.deleted)
}

func TestStore_Rebuild(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "gameSaves")
	write := func(user, name string, rec GameSave) {
		dir := filepath.Join(root, user)
		require.NoError(t, os.MkdirAll(dir, 0o770))
		b, err := json.Marshal(rec)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), b, 0o644))
	}

	// body fields disagree with the path; the path wins
	write("alice", "2025-01-01.json", GameSave{Username: "mallory", Date: "x", SaveData: "d1"})
	write("alice", "2025-01-02.json", GameSave{SaveData: "d2"})
	write("alice", "2025-01-03.json", GameSave{SaveData: "d3"})
	write("alice", "2025-01-04.json", GameSave{SaveData: "d4"})
	write("alice", "Autosave-2025-01-01.json", GameSave{SaveData: "a1", AutoSave: true})
	write("alice", "Autosave-2025-01-05.json", GameSave{SaveData: "a5", AutoSave: true})
	write("bob", "2025-02-01.json", GameSave{SaveData: "b1"})
	require.NoError(t, os.WriteFile(filepath.Join(root, "bob", "broken.json"), []byte("{"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "bob", ".tmp-123"), []byte("{"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".hidden"), 0o770))
	require.NoError(t, os.WriteFile(filepath.Join(root, "stray.json"), []byte("{}"), 0o644))

	f := newStore(t, Options{Root: root, MaxManual: 3})
	require.NoError(t, f.store.Rebuild(ctx))

	got, err := f.store.List(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-01-04", "2025-01-03", "2025-01-02"}, dates(got))
	for _, g := range got {
		assert.Equal(t, "alice", g.Username)
		assert.False(t, g.AutoSave)
	}

	a, err := f.store.Autosave(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "2025-01-05", a.Date)
	assert.Equal(t, "a5", a.SaveData)

	assert.Equal(t, []string{
		"2025-01-02.json",
		"2025-01-03.json",
		"2025-01-04.json",
		"Autosave-2025-01-05.json",
	}, dirNames(t, filepath.Join(root, "alice")))

	got, err = f.store.List(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-02-01"}, dates(got))
}

func TestStore_RebuildReplacesIndex(t *testing.T) {
	ctx := context.Background()
	f := newStore(t, Options{})

	require.NoError(t, f.store.Upload(ctx, manual("alice", "2025-01-01")))
	require.NoError(t, os.RemoveAll(filepath.Join(f.root, "alice")))

	require.NoError(t, f.store.Rebuild(ctx))

	_, err := f.store.List(ctx, "alice")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestNewStore_BadCap(t *testing.T) {
	pool := workerpool.New(1)
	t.Cleanup(pool.Close)

	_, err := NewStore(Options{Root: t.TempDir(), MaxManual: 0}, pool, logging.Nop())
	assert.Error(t, err)
}
