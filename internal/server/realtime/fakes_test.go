package realtime

import (
	"context"
	"errors"
	"sync"

	"github.com/jimzhouzzy/klotski-server/internal/common"
)

type fakeConn struct {
	id string

	mu     sync.Mutex
	sent   []string
	closed bool
	code   int
	reason string
}

func newFakeConn(id string) *fakeConn { return &fakeConn{id: id} }

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errConnClosed
	}
	c.sent = append(c.sent, text)
	return nil
}

func (c *fakeConn) Close(code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.code = code
	c.reason = reason
	return nil
}

func (c *fakeConn) messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

func (c *fakeConn) last() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		return ""
	}
	return c.sent[len(c.sent)-1]
}

// closingConn closes itself when it receives its first message, like a peer
// disconnecting in the middle of a broadcast.
type closingConn struct {
	*fakeConn
	onSend func()
}

func (c *closingConn) Send(text string) error {
	if c.onSend != nil {
		f := c.onSend
		c.onSend = nil
		f()
	}
	return c.fakeConn.Send(text)
}

type panicConn struct{ *fakeConn }

func (panicConn) Send(string) error { panic("boom") }

type fakeAuth struct {
	users    map[string]string
	tokens   map[string]string
	checkErr error
}

func (a *fakeAuth) Exists(_ context.Context, username string) bool {
	_, ok := a.users[username]
	return ok
}

func (a *fakeAuth) CheckPassword(_ context.Context, username, password string) error {
	if a.checkErr != nil {
		return a.checkErr
	}
	if p, ok := a.users[username]; ok && p == password {
		return nil
	}
	return common.ErrorUnauthorized
}

func (a *fakeAuth) LoginWithToken(_ context.Context, token string) (string, error) {
	if u, ok := a.tokens[token]; ok {
		return u, nil
	}
	return "", errors.New("unknown token")
}
