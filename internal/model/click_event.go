// Package model defines domain entities for the application.
package model

import (
	"errors"
	"fmt"
	"time"
)

// UnknownValue replaces missing request metadata.
const UnknownValue = "Unknown"

// ClickEvent represents a single redirect, as published to the click stream.
// It is immutable once created.
type ClickEvent struct {
	Slug      string  `json:"slug"`
	IP        string  `json:"ip"`
	UserAgent string  `json:"user_agent"`
	Referer   *string `json:"referer"`   // nil when the request had no Referer header
	Timestamp string  `json:"timestamp"` // RFC3339
}

// NewClickEvent builds a ClickEvent stamped with the given time.
// An empty referer is stored as nil.
func NewClickEvent(slug, ip, userAgent, referer string, at time.Time) ClickEvent {
	if ip == "" {
		ip = UnknownValue
	}
	if userAgent == "" {
		userAgent = UnknownValue
	}
	event := ClickEvent{
		Slug:      slug,
		IP:        ip,
		UserAgent: userAgent,
		Timestamp: at.UTC().Format(time.RFC3339),
	}
	if referer != "" {
		event.Referer = &referer
	}
	return event
}

// Validate checks the fields the click store depends on.
func (e ClickEvent) Validate() error {
	if e.Slug == "" {
		return errors.New("slug is required")
	}
	if _, err := e.Time(); err != nil {
		return err
	}
	return nil
}

// Time parses the event timestamp.
func (e ClickEvent) Time() (time.Time, error) {
	t, err := time.Parse(time.RFC3339, e.Timestamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q is not RFC3339", e.Timestamp)
	}
	return t, nil
}

// RefererValue returns the referer or an empty string.
func (e ClickEvent) RefererValue() string {
	if e.Referer == nil {
		return ""
	}
	return *e.Referer
}
