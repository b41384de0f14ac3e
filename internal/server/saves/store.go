package saves

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/jimzhouzzy/klotski-server/internal/common"
	"github.com/jimzhouzzy/klotski-server/internal/filex"
	"github.com/jimzhouzzy/klotski-server/internal/logging"
	"github.com/jimzhouzzy/klotski-server/internal/server/auth"
	"github.com/jimzhouzzy/klotski-server/internal/server/metrics"
	"github.com/jimzhouzzy/klotski-server/internal/workerpool"
)

// saveSet is one user's index entry. manual is kept sorted oldest first and
// never holds more than the store's cap.
type saveSet struct {
	manual []GameSave
	auto   *GameSave
}

// insertManual adds rec (replacing a save with the same date), then drops
// the oldest saves until at most max remain. It returns the dropped saves.
func (s *saveSet) insertManual(rec GameSave, max int) []GameSave {
	replaced := false
	for i := range s.manual {
		if s.manual[i].Date == rec.Date {
			s.manual[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		s.manual = append(s.manual, rec)
	}

	sortOldestFirst(s.manual)

	if len(s.manual) <= max {
		return nil
	}

	cut := len(s.manual) - max
	evicted := append([]GameSave(nil), s.manual[:cut]...)
	s.manual = append([]GameSave(nil), s.manual[cut:]...)
	return evicted
}

func sortOldestFirst(list []GameSave) {
	sort.SliceStable(list, func(i, j int) bool { return olderThan(&list[i], &list[j]) })
}

// Options configures a Store.
type Options struct {
	Root      string
	MaxManual int
	Validator Validator
	Archiver  Archiver
	Metrics   *metrics.Metrics
}

type Store struct {
	root      string
	maxManual int
	validator Validator
	archiver  Archiver
	metrics   *metrics.Metrics
	pool      *workerpool.Pool
	logger    logging.Logger

	mu    sync.RWMutex
	sets  map[string]*saveSet
	locks map[string]*sync.Mutex
}

// NewStore creates the save root if needed. The index starts empty; call
// Rebuild before serving.
func NewStore(o Options, pool *workerpool.Pool, logger logging.Logger) (*Store, error) {
	root, err := filex.EnsureDir(o.Root)
	if err != nil {
		return nil, fmt.Errorf("save root: %w", err)
	}

	if o.MaxManual < 1 {
		return nil, fmt.Errorf("max manual saves must be positive, got %d", o.MaxManual)
	}

	validator := o.Validator
	if validator == nil {
		validator = NopValidator{}
	}

	return &Store{
		root:      root,
		maxManual: o.MaxManual,
		validator: validator,
		archiver:  o.Archiver,
		metrics:   o.Metrics,
		pool:      pool,
		logger:    logger.With("module", "saves"),
		sets:      make(map[string]*saveSet),
		locks:     make(map[string]*sync.Mutex),
	}, nil
}

// Upload validates save and stores it. Autosaves replace the user's single
// autosave file; manual saves are added to the retained set, evicting the
// oldest beyond the cap from disk and index.
func (s *Store) Upload(ctx context.Context, save *GameSave) error {
	if err := s.validator.Validate(ctx, save); err != nil {
		s.metrics.SaveUploaded(save.Kind(), "rejected")
		if !errors.Is(err, common.ErrorInvalidInput) {
			err = fmt.Errorf("%w: %v", common.ErrorInvalidInput, err)
		}
		return err
	}

	if err := checkPath(save); err != nil {
		s.metrics.SaveUploaded(save.Kind(), "rejected")
		return err
	}

	lock := s.userLock(save.Username)
	lock.Lock()
	defer lock.Unlock()

	rec := *save

	var err error
	if rec.AutoSave {
		err = s.uploadAuto(ctx, rec)
	} else {
		err = s.uploadManual(ctx, rec)
	}
	if err != nil {
		s.metrics.SaveUploaded(rec.Kind(), "failed")
		s.logger.Error(ctx, "save upload failed", "username", rec.Username, "kind", rec.Kind(), "error", err)
		return err
	}

	s.metrics.SaveUploaded(rec.Kind(), "ok")
	s.logger.Info(ctx, "save uploaded", "username", rec.Username, "kind", rec.Kind(), "date", rec.Date)
	return nil
}

func (s *Store) uploadManual(ctx context.Context, rec GameSave) error {
	name := rec.FileName()
	data, err := s.writeSave(ctx, rec, nil)
	if err != nil {
		return err
	}
	s.archivePut(ctx, rec.Username, name, data)

	s.mu.Lock()
	evicted := s.setFor(rec.Username).insertManual(rec, s.maxManual)
	s.mu.Unlock()

	for _, old := range evicted {
		s.evict(ctx, old)
	}

	return nil
}

func (s *Store) uploadAuto(ctx context.Context, rec GameSave) error {
	name := rec.FileName()

	var stale []string
	data, err := s.writeSave(ctx, rec, func(dir string) {
		stale = s.removeAutosaves(ctx, dir, name)
	})
	if err != nil {
		return err
	}

	s.archivePut(ctx, rec.Username, name, data)
	for _, old := range stale {
		s.archiveDelete(ctx, rec.Username, old)
	}

	s.mu.Lock()
	s.setFor(rec.Username).auto = &rec
	s.mu.Unlock()

	return nil
}

// writeSave writes rec into its user directory on the disk pool. after, if
// set, runs in the same pool slot once the write succeeded.
func (s *Store) writeSave(ctx context.Context, rec GameSave, after func(dir string)) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("%w: encode save: %v", common.ErrorIO, err)
	}

	dir := s.userDir(rec.Username)
	err = s.pool.Do(ctx, func() error {
		if _, err := filex.EnsureDir(dir); err != nil {
			return err
		}
		if err := filex.WriteFileAtomic(filepath.Join(dir, rec.FileName()), data, 0o644); err != nil {
			return err
		}
		if after != nil {
			after(dir)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: write %s: %v", common.ErrorIO, rec.FileName(), err)
	}

	return data, nil
}

// removeAutosaves deletes every autosave file in dir except keep and returns
// the names it removed.
func (s *Store) removeAutosaves(ctx context.Context, dir, keep string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.logger.Error(ctx, "list autosaves failed", "dir", dir, "error", err)
		return nil
	}

	var removed []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == keep || !strings.HasPrefix(name, common.AutosavePrefix) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Error(ctx, "remove old autosave failed", "file", name, "error", err)
			continue
		}
		s.logger.Debug(ctx, "removed old autosave", "file", name)
		removed = append(removed, name)
	}
	return removed
}

// evict deletes a save dropped by the retention cap. The index no longer
// holds it; a failed delete is logged and cleaned up by the next Rebuild.
func (s *Store) evict(ctx context.Context, old GameSave) {
	name := old.FileName()
	path := filepath.Join(s.userDir(old.Username), name)

	// the index already dropped old; the file must follow
	ctx = context.WithoutCancel(ctx)
	err := s.pool.Do(ctx, func() error {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	})
	if err != nil {
		s.logger.Error(ctx, "evict save failed", "username", old.Username, "file", name, "error", err)
		return
	}

	s.metrics.SaveEvicted()
	s.archiveDelete(ctx, old.Username, name)
	s.logger.Info(ctx, "save evicted", "username", old.Username, "date", old.Date)
}

// List returns the user's manual saves, newest first, or common.ErrorNotFound.
func (s *Store) List(ctx context.Context, username string) ([]GameSave, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set, ok := s.sets[username]
	if !ok || len(set.manual) == 0 {
		return nil, common.ErrorNotFound
	}

	out := make([]GameSave, len(set.manual))
	for i := range set.manual {
		out[len(out)-1-i] = set.manual[i]
	}
	return out, nil
}

// Autosave returns the user's autosave slot or common.ErrorNotFound.
func (s *Store) Autosave(ctx context.Context, username string) (GameSave, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set, ok := s.sets[username]
	if !ok || set.auto == nil {
		return GameSave{}, common.ErrorNotFound
	}
	return *set.auto, nil
}

func (s *Store) setFor(username string) *saveSet {
	set, ok := s.sets[username]
	if !ok {
		set = &saveSet{}
		s.sets[username] = set
	}
	return set
}

func (s *Store) userLock(username string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[username]
	if !ok {
		l = &sync.Mutex{}
		s.locks[username] = l
	}
	return l
}

func (s *Store) userDir(username string) string {
	return filepath.Join(s.root, username)
}

func (s *Store) archivePut(ctx context.Context, username, name string, data []byte) {
	if s.archiver == nil {
		return
	}
	key := archiveKey(username, name)
	s.archiveJob(ctx, key, func(ctx context.Context) error { return s.archiver.Put(ctx, key, data) })
}

func (s *Store) archiveDelete(ctx context.Context, username, name string) {
	if s.archiver == nil {
		return
	}
	key := archiveKey(username, name)
	s.archiveJob(ctx, key, func(ctx context.Context) error { return s.archiver.Delete(ctx, key) })
}

func (s *Store) archiveJob(ctx context.Context, key string, job func(context.Context) error) {
	// the request context ends with the response; the mirror outlives it
	ctx = context.WithoutCancel(ctx)
	err := s.pool.Go(ctx, job, func(err error) {
		s.logger.Warn(ctx, "save mirror failed", "key", key, "error", err)
	})
	if err != nil {
		s.logger.Warn(ctx, "save mirror skipped", "key", key, "error", err)
	}
}

// checkPath makes sure username and date are safe as path components and
// that a date cannot collide with the autosave file name.
func checkPath(save *GameSave) error {
	if !auth.ValidUsername(save.Username) {
		return fmt.Errorf("%w: bad username %q", common.ErrorInvalidInput, save.Username)
	}
	d := save.Date
	if d == "" || d == "." || d == ".." || strings.ContainsAny(d, "/\\\x00") || strings.HasPrefix(d, ".") ||
		strings.HasPrefix(d, common.AutosavePrefix) {
		return fmt.Errorf("%w: bad date %q", common.ErrorInvalidInput, d)
	}
	return nil
}
