package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jimzhouzzy/klotski-server/internal/common"
	"github.com/jimzhouzzy/klotski-server/internal/filex"
	"github.com/jimzhouzzy/klotski-server/internal/workerpool"
)

// FileRepository keeps credentials in memory and rewrites a single JSON file
// (username -> password hash) on every mutation.
type FileRepository struct {
	path string
	pool *workerpool.Pool

	mu    sync.RWMutex
	users map[string]string
}

// NewFileRepository loads path if it exists. A missing file starts an empty
// store; an unreadable or malformed one is an error.
func NewFileRepository(path string, pool *workerpool.Pool) (*FileRepository, error) {
	r := &FileRepository{path: path, pool: pool, users: make(map[string]string)}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credentials %s: %w", path, err)
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &r.users); err != nil {
			return nil, fmt.Errorf("decode credentials %s: %w", path, err)
		}
		if r.users == nil {
			r.users = make(map[string]string)
		}
	}

	return r, nil
}

func (r *FileRepository) GetPassword(ctx context.Context, username string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	hash, ok := r.users[username]
	if !ok {
		return "", common.ErrorNotFound
	}
	return hash, nil
}

func (r *FileRepository) Create(ctx context.Context, username, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[username]; ok {
		return common.ErrorAlreadyExists
	}

	r.users[username] = passwordHash
	if err := r.persist(ctx); err != nil {
		delete(r.users, username)
		return err
	}

	return nil
}

// Len returns the number of stored users.
func (r *FileRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// persist must be called with r.mu held so writes land in mutation order.
func (r *FileRepository) persist(ctx context.Context) error {
	data, err := json.MarshalIndent(r.users, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode credentials: %v", common.ErrorIO, err)
	}

	err = r.pool.Do(ctx, func() error {
		if dir := filepath.Dir(r.path); dir != "." {
			if _, err := filex.EnsureDir(dir); err != nil {
				return err
			}
		}
		return filex.WriteFileAtomic(r.path, data, 0o600)
	})
	if err != nil {
		return fmt.Errorf("%w: write credentials: %v", common.ErrorIO, err)
	}

	return nil
}
