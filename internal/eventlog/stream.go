// Package eventlog wraps a Redis stream as an append-only log with
// consumer groups.
package eventlog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/linkping/linkping/internal/apperror"
)

// StartID is the group start position that delivers the whole stream.
const StartID = "0"

// Message is one stream entry.
type Message struct {
	ID     string
	Fields map[string]string
}

// Stream is a single named Redis stream.
type Stream struct {
	client *redis.Client
	key    string
	maxLen int64
}

// NewStream returns a Stream over key. A positive maxLen caps the stream
// with approximate trimming on every append, which drops entries whether
// or not a group has read them. Streams read by a consumer group pass 0
// and use TrimAcknowledged instead.
func NewStream(client *redis.Client, key string, maxLen int64) *Stream {
	return &Stream{
		client: client,
		key:    key,
		maxLen: maxLen,
	}
}

// Key returns the Redis key of the stream.
func (s *Stream) Key() string {
	return s.key
}

// Append adds an entry with an auto-assigned id and returns that id.
func (s *Stream) Append(ctx context.Context, fields map[string]string) (string, error) {
	values := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		values[k] = v
	}

	args := &redis.XAddArgs{
		Stream: s.key,
		ID:     "*",
		Values: values,
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	id, err := s.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("%w: xadd %s: %w", apperror.ErrTransport, s.key, err)
	}
	return id, nil
}

// CreateGroup creates a consumer group, creating the stream if needed.
// An existing group is not an error.
func (s *Stream) CreateGroup(ctx context.Context, group, startID string) error {
	err := s.client.XGroupCreateMkStream(ctx, s.key, group, startID).Err()
	if err != nil && !IsGroupExists(err) {
		return fmt.Errorf("%w: xgroup create %s %s: %w", apperror.ErrTransport, s.key, group, err)
	}
	return nil
}

// ReadGroup reads up to count undelivered entries for consumer, blocking up
// to block. An empty slice means the wait elapsed without new entries.
func (s *Stream) ReadGroup(ctx context.Context, group, consumer string, count int, block time.Duration) ([]Message, error) {
	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{s.key, ">"},
		Count:    int64(count),
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: xreadgroup %s: %w", apperror.ErrTransport, s.key, err)
	}
	if len(streams) == 0 {
		return nil, nil
	}
	return toMessages(streams[0].Messages), nil
}

// Ack acknowledges entries for group.
func (s *Stream) Ack(ctx context.Context, group string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.client.XAck(ctx, s.key, group, ids...).Err(); err != nil {
		return fmt.Errorf("%w: xack %s: %w", apperror.ErrTransport, s.key, err)
	}
	return nil
}

// Claim transfers entries pending longer than minIdle to consumer, scanning
// from start. It returns the claimed entries and the cursor for the next
// scan; "0-0" means the scan wrapped around.
func (s *Stream) Claim(ctx context.Context, group, consumer string, minIdle time.Duration, start string, count int) ([]Message, string, error) {
	messages, next, err := s.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   s.key,
		Group:    group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Start:    start,
		Count:    int64(count),
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, "0-0", nil
	}
	if err != nil {
		return nil, start, fmt.Errorf("%w: xautoclaim %s: %w", apperror.ErrTransport, s.key, err)
	}
	return toMessages(messages), next, nil
}

// Pending returns the number of delivered but unacknowledged entries.
func (s *Stream) Pending(ctx context.Context, group string) (int64, error) {
	summary, err := s.client.XPending(ctx, s.key, group).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: xpending %s: %w", apperror.ErrTransport, s.key, err)
	}
	return summary.Count, nil
}

// TrimAcknowledged removes entries that group has already acknowledged:
// everything before the oldest pending entry, or before the last delivered
// entry when nothing is pending. Undelivered entries are never removed.
// It returns the number of entries removed.
func (s *Stream) TrimAcknowledged(ctx context.Context, group string) (int64, error) {
	groups, err := s.client.XInfoGroups(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: xinfo groups %s: %w", apperror.ErrTransport, s.key, err)
	}

	floor := ""
	for _, g := range groups {
		if g.Name == group {
			floor = g.LastDeliveredID
			break
		}
	}
	if floor == "" || floor == "0-0" {
		return 0, nil
	}

	summary, err := s.client.XPending(ctx, s.key, group).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: xpending %s: %w", apperror.ErrTransport, s.key, err)
	}
	if summary.Count > 0 && CompareIDs(summary.Lower, floor) < 0 {
		floor = summary.Lower
	}

	removed, err := s.client.XTrimMinID(ctx, s.key, floor).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: xtrim %s: %w", apperror.ErrTransport, s.key, err)
	}
	return removed, nil
}

// Len returns the number of entries in the stream.
func (s *Stream) Len(ctx context.Context) (int64, error) {
	n, err := s.client.XLen(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: xlen %s: %w", apperror.ErrTransport, s.key, err)
	}
	return n, nil
}

// IsGroupExists reports whether err is the BUSYGROUP reply.
func IsGroupExists(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}

// CompareIDs orders two stream ids of the form "ms-seq". Malformed parts
// compare as zero.
func CompareIDs(a, b string) int {
	am, as := splitID(a)
	bm, bs := splitID(b)
	switch {
	case am < bm:
		return -1
	case am > bm:
		return 1
	case as < bs:
		return -1
	case as > bs:
		return 1
	}
	return 0
}

func splitID(id string) (uint64, uint64) {
	msPart, seqPart, _ := strings.Cut(id, "-")
	ms, _ := strconv.ParseUint(msPart, 10, 64)
	seq, _ := strconv.ParseUint(seqPart, 10, 64)
	return ms, seq
}

func toMessages(in []redis.XMessage) []Message {
	out := make([]Message, 0, len(in))
	for _, m := range in {
		fields := make(map[string]string, len(m.Values))
		for k, v := range m.Values {
			switch val := v.(type) {
			case string:
				fields[k] = val
			case []byte:
				fields[k] = string(val)
			}
		}
		out = append(out, Message{ID: m.ID, Fields: fields})
	}
	return out
}
