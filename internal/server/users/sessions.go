package users

import "sync"

// SessionTable maps bearer tokens to sessions.
type SessionTable struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewSessionTable() *SessionTable {
	return &SessionTable{sessions: make(map[string]Session)}
}

func (t *SessionTable) Put(s Session) {
	t.mu.Lock()
	t.sessions[s.Token] = s
	t.mu.Unlock()
}

// Get returns a copy of the session for token.
func (t *SessionTable) Get(token string) (Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.sessions[token]
	return s, ok
}

func (t *SessionTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}
