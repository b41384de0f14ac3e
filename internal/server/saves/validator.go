package saves

import (
	"context"
	"fmt"

	"github.com/jimzhouzzy/klotski-server/internal/common"
	"github.com/jimzhouzzy/klotski-server/internal/server/auth"
)

// Validator inspects an upload before anything is written. Returning an
// error wrapping common.ErrorInvalidInput rejects the upload with 400.
type Validator interface {
	Validate(ctx context.Context, save *GameSave) error
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(ctx context.Context, save *GameSave) error

func (f ValidatorFunc) Validate(ctx context.Context, save *GameSave) error { return f(ctx, save) }

// NopValidator accepts every upload. It is the default.
type NopValidator struct{}

func (NopValidator) Validate(context.Context, *GameSave) error { return nil }

// StrictValidator checks the username rules, that the date parses as
// ISO-8601, and that the payload is non-empty and at most MaxSize bytes.
type StrictValidator struct {
	MaxSize int
}

func (v StrictValidator) Validate(_ context.Context, save *GameSave) error {
	if !auth.ValidUsername(save.Username) {
		return fmt.Errorf("%w: bad username", common.ErrorInvalidInput)
	}
	if _, ok := ParseDate(save.Date); !ok {
		return fmt.Errorf("%w: date %q is not ISO-8601", common.ErrorInvalidInput, save.Date)
	}
	if save.SaveData == "" {
		return fmt.Errorf("%w: empty save data", common.ErrorInvalidInput)
	}
	if v.MaxSize > 0 && len(save.SaveData) > v.MaxSize {
		return fmt.Errorf("%w: save data is %d bytes, limit %d", common.ErrorInvalidInput, len(save.SaveData), v.MaxSize)
	}
	return nil
}
