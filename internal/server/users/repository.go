package users

import (
	"context"
)

// Repository stores credential records keyed by username.
type Repository interface {
	// GetPassword returns the stored password hash or common.ErrorNotFound.
	GetPassword(ctx context.Context, username string) (string, error)

	// Create inserts a record and persists it before returning. It fails with
	// common.ErrorAlreadyExists on collision and common.ErrorIO when the
	// store could not be written, in which case nothing is inserted.
	Create(ctx context.Context, username, passwordHash string) error
}
