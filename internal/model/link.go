package model

import "time"

// Link maps a slug to its target URL.
type Link struct {
	Slug      string     `json:"slug"`
	TargetURL string     `json:"target_url"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// IsExpired reports whether the link expired before now.
func (l *Link) IsExpired(now time.Time) bool {
	return l.ExpiresAt != nil && !now.Before(*l.ExpiresAt)
}

// CacheTTL returns how long the link may be cached, capped at max.
// A zero result means the link must not be cached.
func (l *Link) CacheTTL(now time.Time, max time.Duration) time.Duration {
	if l.ExpiresAt == nil {
		return max
	}
	remaining := l.ExpiresAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	if remaining < max {
		return remaining
	}
	return max
}
