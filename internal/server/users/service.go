// Package users implements signup, password login and token login on top of
// a credential Repository and an in-memory SessionTable.
package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jimzhouzzy/klotski-server/internal/common"
	"github.com/jimzhouzzy/klotski-server/internal/logging"
	"github.com/jimzhouzzy/klotski-server/internal/server/auth"
	"github.com/jimzhouzzy/klotski-server/internal/server/config"
)

// sessionIDSize is the number of random bytes in a session id.
const sessionIDSize = 32

type Service struct {
	repo       Repository
	sessions   *SessionTable
	logger     logging.Logger
	jwtSecret  []byte
	sessionTTL time.Duration
	now        func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, cfg *config.Config, logger logging.Logger, opts ...Option) *Service {
	s := &Service{
		repo:       repo,
		sessions:   NewSessionTable(),
		logger:     logger.With("module", "users"),
		jwtSecret:  []byte(cfg.SecretKey),
		sessionTTL: cfg.SessionTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Signup validates and stores a new user. The credential file is written
// before Signup returns.
func (s *Service) Signup(ctx context.Context, username, password string) error {
	if err := auth.ValidateCredentials(username, password); err != nil {
		return err
	}

	if s.Exists(ctx, username) {
		return common.ErrorAlreadyExists
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	if err := s.repo.Create(ctx, username, hash); err != nil {
		if errors.Is(err, common.ErrorIO) {
			s.logger.Error(ctx, "credential store write failed", "username", username, "error", err)
		}
		return err
	}

	s.logger.Info(ctx, "user signed up", "username", username)
	return nil
}

// Login checks username and password and issues a new session.
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	if err := auth.ValidateCredentials(username, password); err != nil {
		return nil, err
	}

	if err := s.CheckPassword(ctx, username, password); err != nil {
		return nil, err
	}

	session, err := s.issueSession(username)
	if err != nil {
		s.logger.Error(ctx, "session issue failed", "username", username, "error", err)
		return nil, common.ErrorInternal
	}

	s.logger.Info(ctx, "user logged in", "username", username)
	return session, nil
}

// CheckPassword verifies credentials without issuing a session. Unknown
// users and wrong passwords both yield common.ErrorUnauthorized.
func (s *Service) CheckPassword(ctx context.Context, username, password string) error {
	stored, err := s.repo.GetPassword(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorUnauthorized
		}
		return common.ErrorInternal
	}

	ok, err := auth.VerifyPassword(password, stored)
	if err != nil {
		s.logger.Error(ctx, "stored credential is corrupt", "username", username, "error", err)
		return common.ErrorInternal
	}
	if !ok {
		return common.ErrorUnauthorized
	}

	return nil
}

// LoginWithToken resolves a token issued by Login to its username. The
// session is not extended by use.
func (s *Service) LoginWithToken(ctx context.Context, token string) (string, error) {
	session, ok := s.sessions.Get(token)
	if !ok {
		return "", common.ErrorUnauthorized
	}

	now := s.now()
	if session.Expired(now) {
		return "", common.ErrorUnauthorized
	}

	claims, err := auth.ParseToken(token, s.jwtSecret, now)
	if err != nil || claims.Username != session.Username {
		s.logger.Warn(ctx, "session token failed verification", "username", session.Username, "error", err)
		return "", common.ErrorUnauthorized
	}

	return session.Username, nil
}

// Exists reports whether username has a credential record.
func (s *Service) Exists(ctx context.Context, username string) bool {
	_, err := s.repo.GetPassword(ctx, username)
	return err == nil
}

func (s *Service) issueSession(username string) (*Session, error) {
	sessionID, err := common.MakeRandHexString(sessionIDSize)
	if err != nil {
		return nil, err
	}

	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.sessionTTL)

	token, err := auth.GenerateToken(username, sessionID, s.jwtSecret, issuedAt, expiresAt)
	if err != nil {
		return nil, err
	}

	session := Session{Token: token, Username: username, IssuedAt: issuedAt, ExpiresAt: expiresAt}
	s.sessions.Put(session)

	return &session, nil
}
