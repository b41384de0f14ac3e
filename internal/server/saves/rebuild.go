package saves

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jimzhouzzy/klotski-server/internal/common"
	"github.com/jimzhouzzy/klotski-server/internal/server/auth"
)

// Rebuild replaces the index with what is on disk. Each subdirectory of the
// root whose name is a valid username is one user; every *.json file in it is
// a save. Username, date and kind come from the path, not the file body.
//
// Extra autosaves and manual saves beyond the cap are deleted, so after
// Rebuild the directory obeys the same retention rules as Upload. It is meant
// to run before the store serves requests.
func (s *Store) Rebuild(ctx context.Context) error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return fmt.Errorf("%w: scan save root: %v", common.ErrorIO, err)
	}

	sets := make(map[string]*saveSet)
	total := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		name := e.Name()
		if !e.IsDir() || !auth.ValidUsername(name) {
			s.logger.Debug(ctx, "skipping save root entry", "name", name)
			continue
		}

		set := s.loadUser(ctx, name)
		if len(set.manual) == 0 && set.auto == nil {
			continue
		}

		sets[name] = set
		total += len(set.manual)
		if set.auto != nil {
			total++
		}
	}

	s.mu.Lock()
	s.sets = sets
	s.mu.Unlock()

	s.logger.Info(ctx, "save index rebuilt", "users", len(sets), "saves", total)
	return nil
}

func (s *Store) loadUser(ctx context.Context, username string) *saveSet {
	dir := s.userDir(username)
	set := &saveSet{}

	entries, err := os.ReadDir(dir)
	if err != nil {
		s.logger.Warn(ctx, "cannot read user save dir", "dir", dir, "error", err)
		return set
	}

	var autos []GameSave
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
			continue
		}

		rec, err := readSave(filepath.Join(dir, name))
		if err != nil {
			s.logger.Warn(ctx, "skipping unreadable save", "file", filepath.Join(username, name), "error", err)
			continue
		}

		rec.Username = username
		date := strings.TrimSuffix(name, ".json")
		if strings.HasPrefix(date, common.AutosavePrefix) {
			rec.AutoSave = true
			rec.Date = strings.TrimPrefix(date, common.AutosavePrefix)
			autos = append(autos, rec)
			continue
		}

		rec.AutoSave = false
		rec.Date = date
		set.manual = append(set.manual, rec)
	}

	if len(autos) > 0 {
		sortOldestFirst(autos)
		newest := autos[len(autos)-1]
		set.auto = &newest
		for _, old := range autos[:len(autos)-1] {
			s.removeStale(ctx, dir, old)
		}
	}

	sortOldestFirst(set.manual)
	if over := len(set.manual) - s.maxManual; over > 0 {
		for _, old := range set.manual[:over] {
			s.removeStale(ctx, dir, old)
		}
		set.manual = append([]GameSave(nil), set.manual[over:]...)
	}

	return set
}

func (s *Store) removeStale(ctx context.Context, dir string, old GameSave) {
	path := filepath.Join(dir, old.FileName())
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn(ctx, "cannot remove stale save", "file", path, "error", err)
		return
	}
	s.logger.Info(ctx, "removed stale save", "username", old.Username, "kind", old.Kind(), "date", old.Date)
}

func readSave(path string) (GameSave, error) {
	var rec GameSave

	data, err := os.ReadFile(path)
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, err
	}
	return rec, nil
}
