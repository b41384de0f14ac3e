package users

import "time"

// Session is issued on password login and never changes afterwards. It is
// valid while now < ExpiresAt; nothing deletes it once expired.
type Session struct {
	Token     string
	Username  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is no longer usable at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
