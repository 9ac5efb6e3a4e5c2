package domain

import "time"

const (
	ActionPageView = "page_view"
	ActionLogin    = "login"
	ActionLogout   = "logout"
)

// AnonymousEmail is recorded as the actor for activity without a principal.
const AnonymousEmail = "anonymous"

// ActivityLog is an audit/analytics record of something a user did.
type ActivityLog struct {
	ID        int64          `json:"id"`
	UserEmail string         `json:"user_email"`
	Action    string         `json:"action"`
	Page      string         `json:"page,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	IPAddress string         `json:"ip_address,omitempty"`
	UserAgent string         `json:"user_agent,omitempty"`
}

func (a *ActivityLog) Touch() {
	if a == nil {
		return
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}
	if a.UserEmail == "" {
		a.UserEmail = AnonymousEmail
	}
}

// PageCount is one row of a user's most visited pages.
type PageCount struct {
	Page  string `json:"page"`
	Count int64  `json:"count"`
}

type UserStats struct {
	Email            string      `json:"email"`
	TotalActions     int64       `json:"total_actions"`
	MostVisitedPages []PageCount `json:"most_visited_pages"`
}

type AppStats struct {
	TotalUsers   int64 `json:"total_users"`
	ActiveUsers  int64 `json:"active_users"`
	TotalActions int64 `json:"total_actions"`
}

// EngagementRate is the share of users with at least one recorded action, in percent.
func (s AppStats) EngagementRate() float64 {
	if s.TotalUsers <= 0 {
		return 0
	}
	return float64(s.ActiveUsers) / float64(s.TotalUsers) * 100
}
