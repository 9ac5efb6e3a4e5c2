package domain

import "time"

// Session is a login session holding the identity claims issued by the provider.
type Session struct {
	ID        string            `json:"id"`
	Claims    map[string]any    `json:"claims"`
	ExpiresAt time.Time         `json:"expires_at"`
	CreatedAt time.Time         `json:"created_at"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func (s *Session) IsExpired(reference time.Time) bool {
	if s == nil {
		return true
	}
	if reference.IsZero() {
		reference = time.Now()
	}
	return !s.ExpiresAt.After(reference)
}
