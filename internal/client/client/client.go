package client

import (
	"context"

	"github.com/jimzhouzzy/klotski-server/internal/client/models"
)

type Client interface {
	Signup(ctx context.Context, username, password string) error
	Login(ctx context.Context, username, password string) (string, error)
	LoginWithToken(ctx context.Context, username, token string) error
	Upload(ctx context.Context, save models.GameSave) error
	Saves(ctx context.Context, username string) (*models.SaveList, error)
	Token() string
}
