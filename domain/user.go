package domain

import (
	"strings"
	"time"
)

// User is the persisted record of a principal that has signed in at least once.
type User struct {
	ID          int64          `json:"id"`
	Email       string         `json:"email"`
	GoogleSub   string         `json:"google_sub"`
	Name        string         `json:"name,omitempty"`
	PictureURL  string         `json:"picture_url,omitempty"`
	Role        Role           `json:"role"`
	IsActive    bool           `json:"is_active"`
	Preferences map[string]any `json:"preferences,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	LastLogin   *time.Time     `json:"last_login,omitempty"`
}

// NewUserFromPrincipal builds the record created the first time a principal is seen.
func NewUserFromPrincipal(p *Principal) *User {
	if p == nil {
		return nil
	}
	return &User{
		Email:      p.Email,
		GoogleSub:  p.SubjectID,
		Name:       p.Name,
		PictureURL: p.PictureURL,
		Role:       RoleUser,
		IsActive:   true,
	}
}

// PreferenceChanges is a partial preferences update. A nil value removes the key.
type PreferenceChanges struct {
	Email   string         `json:"email"`
	Changes map[string]any `json:"changes"`
}

// MergePreferences applies changes on top of the current preferences.
func (u *User) MergePreferences(changes map[string]any) {
	merged := make(map[string]any, len(u.Preferences)+len(changes))
	for k, v := range u.Preferences {
		merged[k] = v
	}
	for k, v := range changes {
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	u.Preferences = merged
}

func (u *User) HasRole(role Role) bool {
	return u != nil && u.Role == role
}

// NormalizeEmail trims and lower-cases an address for lookups and allow-lists.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
