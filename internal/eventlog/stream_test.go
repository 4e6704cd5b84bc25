package eventlog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/linkping/linkping/internal/apperror"
)

func newTestStream(t *testing.T) (*Stream, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewStream(client, "click_events", 0), mr
}

func appendN(t *testing.T, s *Stream, n int) []string {
	t.Helper()

	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id, err := s.Append(context.Background(), map[string]string{"event": "{}"})
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		ids = append(ids, id)
	}
	return ids
}

func streamLen(t *testing.T, s *Stream) int64 {
	t.Helper()

	n, err := s.Len(context.Background())
	if err != nil {
		t.Fatalf("Len: %v", err)
	}
	return n
}

func TestStream_CreateGroupIsIdempotent(t *testing.T) {
	t.Parallel()

	s, _ := newTestStream(t)
	ctx := context.Background()

	if err := s.CreateGroup(ctx, "click_consumers", StartID); err != nil {
		t.Fatalf("first CreateGroup: %v", err)
	}
	if err := s.CreateGroup(ctx, "click_consumers", StartID); err != nil {
		t.Fatalf("second CreateGroup: %v", err)
	}
}

func TestStream_AppendReadAck(t *testing.T) {
	t.Parallel()

	s, _ := newTestStream(t)
	ctx := context.Background()

	if err := s.CreateGroup(ctx, "click_consumers", StartID); err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}

	first, err := s.Append(ctx, map[string]string{"event": `{"slug":"a"}`})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	second, err := s.Append(ctx, map[string]string{"event": `{"slug":"b"}`})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if first >= second {
		t.Errorf("expected increasing ids, got %s then %s", first, second)
	}

	msgs, err := s.ReadGroup(ctx, "click_consumers", "consumer-1", 10, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("ReadGroup: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].ID != first || msgs[0].Fields["event"] != `{"slug":"a"}` {
		t.Errorf("unexpected first message: %+v", msgs[0])
	}

	pending, err := s.Pending(ctx, "click_consumers")
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if pending != 2 {
		t.Errorf("expected 2 pending, got %d", pending)
	}

	if err := s.Ack(ctx, "click_consumers", first, second); err != nil {
		t.Fatalf("Ack: %v", err)
	}

	pending, err = s.Pending(ctx, "click_consumers")
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if pending != 0 {
		t.Errorf("expected 0 pending after ack, got %d", pending)
	}
}

func TestStream_ReadGroupDoesNotRedeliver(t *testing.T) {
	t.Parallel()

	s, _ := newTestStream(t)
	ctx := context.Background()

	if err := s.CreateGroup(ctx, "click_consumers", StartID); err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if _, err := s.Append(ctx, map[string]string{"event": "{}"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	msgs, err := s.ReadGroup(ctx, "click_consumers", "consumer-1", 10, 10*time.Millisecond)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("first read: %d messages, err %v", len(msgs), err)
	}

	msgs, err = s.ReadGroup(ctx, "click_consumers", "consumer-1", 10, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("expected no redelivery, got %d messages", len(msgs))
	}
}

func TestStream_ReadGroupEmpty(t *testing.T) {
	t.Parallel()

	s, _ := newTestStream(t)
	ctx := context.Background()

	if err := s.CreateGroup(ctx, "click_consumers", StartID); err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}

	msgs, err := s.ReadGroup(ctx, "click_consumers", "consumer-1", 10, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("ReadGroup: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("expected empty batch, got %d", len(msgs))
	}
}

func TestStream_TransportErrors(t *testing.T) {
	t.Parallel()

	s, mr := newTestStream(t)
	mr.Close()

	_, err := s.Append(context.Background(), map[string]string{"event": "{}"})
	if !errors.Is(err, apperror.ErrTransport) {
		t.Errorf("expected ErrTransport from Append, got %v", err)
	}
}

func TestStream_UnreadEntriesSurviveTrim(t *testing.T) {
	t.Parallel()

	s, _ := newTestStream(t)
	ctx := context.Background()

	if err := s.CreateGroup(ctx, "click_consumers", StartID); err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	appendN(t, s, 50)

	removed, err := s.TrimAcknowledged(ctx, "click_consumers")
	if err != nil {
		t.Fatalf("TrimAcknowledged: %v", err)
	}
	if removed != 0 {
		t.Errorf("removed %d unread entries", removed)
	}
	if n := streamLen(t, s); n != 50 {
		t.Errorf("len = %d, want 50", n)
	}

	msgs, err := s.ReadGroup(ctx, "click_consumers", "consumer-1", 100, 10*time.Millisecond)
	if err != nil || len(msgs) != 50 {
		t.Fatalf("ReadGroup: %d messages, err %v", len(msgs), err)
	}
}

func TestStream_TrimAcknowledgedKeepsPending(t *testing.T) {
	t.Parallel()

	s, _ := newTestStream(t)
	ctx := context.Background()

	if err := s.CreateGroup(ctx, "click_consumers", StartID); err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	ids := appendN(t, s, 10)

	msgs, err := s.ReadGroup(ctx, "click_consumers", "consumer-1", 4, 10*time.Millisecond)
	if err != nil || len(msgs) != 4 {
		t.Fatalf("ReadGroup: %d messages, err %v", len(msgs), err)
	}
	if err := s.Ack(ctx, "click_consumers", ids[0], ids[1]); err != nil {
		t.Fatalf("Ack: %v", err)
	}

	// ids[2] is the oldest pending entry.
	removed, err := s.TrimAcknowledged(ctx, "click_consumers")
	if err != nil {
		t.Fatalf("TrimAcknowledged: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	if n := streamLen(t, s); n != 8 {
		t.Errorf("len = %d, want 8", n)
	}

	if err := s.Ack(ctx, "click_consumers", ids[2], ids[3]); err != nil {
		t.Fatalf("Ack: %v", err)
	}

	// Nothing pending: trim up to the last delivered entry.
	removed, err = s.TrimAcknowledged(ctx, "click_consumers")
	if err != nil {
		t.Fatalf("TrimAcknowledged: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if n := streamLen(t, s); n != 7 {
		t.Errorf("len = %d, want 7", n)
	}

	msgs, err = s.ReadGroup(ctx, "click_consumers", "consumer-1", 100, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("ReadGroup: %v", err)
	}
	if len(msgs) != 6 || msgs[0].ID != ids[4] {
		t.Errorf("undelivered entries lost: got %d, first %+v", len(msgs), msgs)
	}
}

func TestStream_TrimAcknowledgedUnknownGroup(t *testing.T) {
	t.Parallel()

	s, _ := newTestStream(t)
	ctx := context.Background()

	if err := s.CreateGroup(ctx, "click_consumers", StartID); err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	appendN(t, s, 3)

	removed, err := s.TrimAcknowledged(ctx, "other_group")
	if err != nil || removed != 0 {
		t.Fatalf("TrimAcknowledged = %d, %v", removed, err)
	}
}

func TestCompareIDs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want int
	}{
		{"1-0", "1-0", 0},
		{"1-1", "1-2", -1},
		{"2-0", "1-9", 1},
		{"9-0", "10-0", -1},
		{"1700000000000-5", "1700000000000-12", -1},
	}

	for _, tt := range tests {
		if got := CompareIDs(tt.a, tt.b); got != tt.want {
			t.Errorf("CompareIDs(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestIsGroupExists(t *testing.T) {
	t.Parallel()

	if !IsGroupExists(errors.New("BUSYGROUP Consumer Group name already exists")) {
		t.Error("expected BUSYGROUP to be detected")
	}
	if IsGroupExists(errors.New("NOGROUP No such key")) {
		t.Error("NOGROUP should not be treated as existing group")
	}
	if IsGroupExists(nil) {
		t.Error("nil should not be treated as existing group")
	}
}
