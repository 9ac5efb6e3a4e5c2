package domain

import "time"

// Principal is the identity asserted by the external provider for the current session.
// It is never persisted directly; User holds the durable copy.
type Principal struct {
	Email         string     `json:"email"`
	Name          string     `json:"name,omitempty"`
	PictureURL    string     `json:"picture,omitempty"`
	SubjectID     string     `json:"sub"`
	EmailVerified bool       `json:"email_verified"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// IsExpired reports whether the identity assertion carried an expiry that has passed.
// A principal without expiry never expires.
func (p *Principal) IsExpired(reference time.Time) bool {
	if p == nil {
		return true
	}
	if p.ExpiresAt == nil {
		return false
	}
	if reference.IsZero() {
		reference = time.Now()
	}
	return !reference.Before(*p.ExpiresAt)
}
