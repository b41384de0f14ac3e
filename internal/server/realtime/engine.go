package realtime

import (
	"context"
	"errors"
	"runtime/debug"

	"github.com/jimzhouzzy/klotski-server/internal/common"
	"github.com/jimzhouzzy/klotski-server/internal/logging"
	"github.com/jimzhouzzy/klotski-server/internal/server/config"
	"github.com/jimzhouzzy/klotski-server/internal/server/metrics"
)

// Notices sent back to a single connection.
const (
	NoticeLoginRequired      = "Error: You must log in first."
	NoticeInvalidUsername    = "Error: Invalid username."
	NoticeInvalidCredentials = "Error: Invalid credentials."
	NoticeMalformedBoard     = "Error: Malformed board state."
	NoticeMalformedMessage   = "Error: Malformed message."
)

func welcomeNotice(username string) string {
	return "Login successful. Welcome, " + username + "!"
}

// Authenticator is the part of the user service the engine needs.
type Authenticator interface {
	Exists(ctx context.Context, username string) bool
	CheckPassword(ctx context.Context, username, password string) error
	LoginWithToken(ctx context.Context, token string) (string, error)
}

// Engine handles inbound frames. A connection starts unauthenticated and
// becomes authenticated once a login binds a username to it in the registry.
type Engine struct {
	registry *Registry
	auth     Authenticator
	policy   string
	logger   logging.Logger
	metrics  *metrics.Metrics
}

// NewEngine returns an engine with its own registry. policy is one of the
// config.LoginPolicy* values; anything unknown falls back to trust.
func NewEngine(auth Authenticator, policy string, logger logging.Logger, m *metrics.Metrics) *Engine {
	e := &Engine{
		auth:    auth,
		policy:  policy,
		logger:  logger.With("module", "realtime"),
		metrics: m,
	}
	e.registry = NewRegistry(e.presenceChanged)
	return e
}

func (e *Engine) Registry() *Registry {
	return e.registry
}

// Connect registers a newly opened connection.
func (e *Engine) Connect(ctx context.Context, conn Conn) {
	e.registry.Register(conn)
	e.metrics.ConnectionOpened()
	e.logger.Debug(ctx, "connection opened", "conn", conn.ID())
}

// Disconnect unregisters a closed connection, unbinding its identity.
func (e *Engine) Disconnect(ctx context.Context, conn Conn) {
	identity := e.registry.Identity(conn)
	if !e.registry.Unregister(conn) {
		return
	}
	e.metrics.ConnectionClosed()
	if identity != "" {
		e.logger.Info(ctx, "user disconnected", "username", identity, "conn", conn.ID())
	} else {
		e.logger.Debug(ctx, "connection closed", "conn", conn.ID())
	}
}

// HandleMessage processes one inbound frame from conn. A panic while handling
// is logged and contained to this frame.
func (e *Engine) HandleMessage(ctx context.Context, conn Conn, frame string) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error(ctx, "panic handling message", "conn", conn.ID(), "panic", r, "stack", string(debug.Stack()))
		}
	}()

	msg, err := Decode(frame)

	kind := msg.Type
	if kind == "" {
		kind = "unknown"
	}
	e.metrics.MessageReceived(kind)

	if msg.Type == TypeLogin {
		e.login(ctx, conn, msg, err)
		return
	}

	identity := e.registry.Identity(conn)
	if identity == "" {
		e.reply(ctx, conn, NoticeLoginRequired)
		return
	}

	if err != nil {
		e.logger.Debug(ctx, "malformed message", "username", identity, "error", err)
		if msg.Type == TypeBoardState {
			e.reply(ctx, conn, NoticeMalformedBoard)
		} else {
			e.reply(ctx, conn, NoticeMalformedMessage)
		}
		return
	}

	switch msg.Type {
	case TypePresence:
		e.reply(ctx, conn, FormatPresence(e.registry.Identities()))
	case TypeBoardState:
		n := e.Broadcast(ctx, FormatBoardUpdate(identity, msg.Lines))
		e.logger.Debug(ctx, "board state broadcast", "username", identity, "recipients", n)
	default:
		e.logger.Debug(ctx, "ignoring unknown message", "username", identity)
	}
}

func (e *Engine) login(ctx context.Context, conn Conn, msg Message, decodeErr error) {
	failure := NoticeInvalidCredentials
	if e.policy != config.LoginPolicyPassword && e.policy != config.LoginPolicyToken {
		failure = NoticeInvalidUsername
	}

	if decodeErr != nil || !e.verify(ctx, msg) {
		e.metrics.AuthAttempt("ws_login", "failure")
		e.logger.Info(ctx, "realtime login rejected", "username", msg.Username, "policy", e.policy)
		e.reply(ctx, conn, failure)
		return
	}

	if !e.registry.Bind(conn, msg.Username) {
		// closed while logging in
		return
	}

	e.metrics.AuthAttempt("ws_login", "success")
	e.logger.Info(ctx, "user logged in", "username", msg.Username, "conn", conn.ID())
	e.reply(ctx, conn, welcomeNotice(msg.Username))
}

func (e *Engine) verify(ctx context.Context, msg Message) bool {
	switch e.policy {
	case config.LoginPolicyPassword:
		if msg.Secret == "" {
			return false
		}
		err := e.auth.CheckPassword(ctx, msg.Username, msg.Secret)
		if err != nil && !errors.Is(err, common.ErrorUnauthorized) {
			e.logger.Error(ctx, "password check failed", "username", msg.Username, "error", err)
		}
		return err == nil

	case config.LoginPolicyToken:
		if msg.Secret == "" {
			return false
		}
		username, err := e.auth.LoginWithToken(ctx, msg.Secret)
		return err == nil && username == msg.Username

	default:
		return e.auth.Exists(ctx, msg.Username)
	}
}

// Broadcast sends text to every registered connection, the sender included.
// A failed send affects only that recipient. It returns the number of
// connections the text was queued for.
func (e *Engine) Broadcast(ctx context.Context, text string) int {
	e.metrics.Broadcast()

	delivered := 0
	for _, peer := range e.registry.Snapshot() {
		if err := peer.Conn.Send(text); err != nil {
			e.metrics.SendDropped()
			e.logger.Warn(ctx, "broadcast send dropped", "conn", peer.Conn.ID(), "username", peer.Identity, "error", err)
			continue
		}
		delivered++
	}
	return delivered
}

func (e *Engine) reply(ctx context.Context, conn Conn, text string) {
	if err := conn.Send(text); err != nil {
		e.metrics.SendDropped()
		e.logger.Debug(ctx, "reply dropped", "conn", conn.ID(), "error", err)
	}
}

func (e *Engine) presenceChanged(identities []string) {
	e.metrics.SetOnlineUsers(len(identities))
	e.logger.Info(context.Background(), "online users changed", "users", identities)
}

// CloseAll closes every registered connection with code and reason.
func (e *Engine) CloseAll(ctx context.Context, code int, reason string) {
	for _, peer := range e.registry.Snapshot() {
		if err := peer.Conn.Close(code, reason); err != nil {
			e.logger.Debug(ctx, "close failed", "conn", peer.Conn.ID(), "error", err)
		}
	}
}
