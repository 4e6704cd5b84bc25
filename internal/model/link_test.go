package model

import (
	"testing"
	"time"
)

func TestLink_IsExpired(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name      string
		expiresAt *time.Time
		want      bool
	}{
		{"no expiry", nil, false},
		{"expired", &past, true},
		{"expires exactly now", &now, true},
		{"not yet expired", &future, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			link := &Link{Slug: "abc123", TargetURL: "https://example.com", ExpiresAt: tt.expiresAt}
			if got := link.IsExpired(now); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLink_CacheTTL(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	soon := now.Add(10 * time.Minute)
	later := now.Add(48 * time.Hour)
	past := now.Add(-time.Second)

	tests := []struct {
		name      string
		expiresAt *time.Time
		want      time.Duration
	}{
		{"no expiry uses max", nil, time.Hour},
		{"expiry before max", &soon, 10 * time.Minute},
		{"expiry after max", &later, time.Hour},
		{"already expired", &past, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			link := &Link{Slug: "abc123", ExpiresAt: tt.expiresAt}
			if got := link.CacheTTL(now, time.Hour); got != tt.want {
				t.Errorf("CacheTTL() = %v, want %v", got, tt.want)
			}
		})
	}
}
