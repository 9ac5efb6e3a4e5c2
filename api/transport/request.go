package transport

import "time"

type PreferencesRequest struct {
	Preferences map[string]any `json:"preferences"`
}

type RoleRequest struct {
	Role string `json:"role"`
}

type ActivityRequest struct {
	Action  string         `json:"action"`
	Page    string         `json:"page"`
	Details map[string]any `json:"details"`
}

type RefreshRequest struct {
	SessionID string `json:"session_id"`
	TTL       int    `json:"ttl_seconds"`
}

// LoginResponse is returned by the OAuth callback.
type LoginResponse struct {
	SessionID      string    `json:"session_id"`
	SessionExpires time.Time `json:"session_expires_at"`
	Token          string    `json:"token,omitempty"`
	TokenExpires   time.Time `json:"token_expires_at,omitempty"`
	Email          string    `json:"email"`
	Role           string    `json:"role"`
}

// MeResponse describes the current caller.
type MeResponse struct {
	Authenticated bool   `json:"authenticated"`
	Email         string `json:"email,omitempty"`
	Name          string `json:"name,omitempty"`
	Picture       string `json:"picture,omitempty"`
	EmailVerified bool   `json:"email_verified"`
	Role          string `json:"role"`
}
