// Package clickstream moves click events from the redirect path to the
// click store through a Redis stream consumer group.
package clickstream

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/linkping/linkping/internal/apperror"
	"github.com/linkping/linkping/internal/model"
)

// EventField is the stream field that carries the JSON-encoded ClickEvent.
const EventField = "event"

// EncodeEvent returns the stream fields for event.
func EncodeEvent(event model.ClickEvent) (map[string]string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal click event: %w", err)
	}
	return map[string]string{EventField: string(data)}, nil
}

// DecodeEvent extracts and validates the ClickEvent in fields.
// Every failure wraps apperror.ErrDecode.
func DecodeEvent(fields map[string]string) (*model.ClickEvent, error) {
	payload, ok := fields[EventField]
	if !ok {
		return nil, fmt.Errorf("%w: field %q missing", apperror.ErrDecode, EventField)
	}

	var event model.ClickEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return nil, fmt.Errorf("%w: unmarshal: %w", apperror.ErrDecode, err)
	}
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", apperror.ErrDecode, err)
	}
	return &event, nil
}
