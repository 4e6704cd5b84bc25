package clickstream

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/linkping/linkping/internal/eventlog"
)

// Dead-letter reasons.
const (
	ReasonDecodeError      = "decode_error"
	ReasonPersistenceError = "persistence_error"
)

// DeadLetterSuffix is appended to the click stream key to name the
// dead-letter stream.
const DeadLetterSuffix = ":dlq"

// DeadLetterMaxLen caps the dead-letter stream.
const DeadLetterMaxLen = 10000

// DeadLetterSink stores messages that could not be persisted.
type DeadLetterSink interface {
	DeadLetter(ctx context.Context, msg eventlog.Message, reason, detail string) error
}

// StreamDeadLetter writes dead letters to a second stream.
type StreamDeadLetter struct {
	log            Appender
	originalStream string
	now            func() time.Time
}

// NewStreamDeadLetter returns a sink appending to log. originalStream is
// recorded on every entry.
func NewStreamDeadLetter(log Appender, originalStream string) *StreamDeadLetter {
	return &StreamDeadLetter{
		log:            log,
		originalStream: originalStream,
		now:            time.Now,
	}
}

// DeadLetter appends msg to the dead-letter stream with its reason.
func (d *StreamDeadLetter) DeadLetter(ctx context.Context, msg eventlog.Message, reason, detail string) error {
	now := d.now().UTC()
	fields := map[string]string{
		"dead_letter_id":   ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		"original_id":      msg.ID,
		"original_stream":  d.originalStream,
		"reason":           reason,
		"detail":           detail,
		"payload":          msg.Fields[EventField],
		"dead_lettered_at": now.Format(time.RFC3339),
	}

	if _, err := d.log.Append(ctx, fields); err != nil {
		return fmt.Errorf("dead-letter %s: %w", msg.ID, err)
	}
	return nil
}
