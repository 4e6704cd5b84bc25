package clickstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/linkping/linkping/internal/eventlog"
	"github.com/linkping/linkping/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memoryLog is an in-memory stream with a single consumer group.
type memoryLog struct {
	mu        sync.Mutex
	entries   []eventlog.Message
	delivered int
	pending   map[string]bool
	acked     []string
	groups    int
	seq       int

	appendErr error
	readErrs  []error
	claimed   []eventlog.Message
	claimNext string
	claims    int
	events    []string
}

func newMemoryLog() *memoryLog {
	return &memoryLog{pending: make(map[string]bool)}
}

func (l *memoryLog) Append(ctx context.Context, fields map[string]string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.appendErr != nil {
		return "", l.appendErr
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	l.seq++
	id := fmt.Sprintf("1700000000000-%d", l.seq)
	l.entries = append(l.entries, eventlog.Message{ID: id, Fields: fields})
	return id, nil
}

func (l *memoryLog) CreateGroup(ctx context.Context, group, startID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.groups++
	return nil
}

func (l *memoryLog) ReadGroup(ctx context.Context, group, consumer string, count int, block time.Duration) ([]eventlog.Message, error) {
	l.mu.Lock()
	if len(l.readErrs) > 0 {
		err := l.readErrs[0]
		l.readErrs = l.readErrs[1:]
		l.mu.Unlock()
		return nil, err
	}
	if l.delivered < len(l.entries) {
		end := l.delivered + count
		if end > len(l.entries) {
			end = len(l.entries)
		}
		batch := append([]eventlog.Message(nil), l.entries[l.delivered:end]...)
		for _, m := range batch {
			l.pending[m.ID] = true
		}
		l.delivered = end
		l.mu.Unlock()
		return batch, nil
	}
	l.mu.Unlock()

	timer := time.NewTimer(block)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, nil
	}
}

func (l *memoryLog) Ack(ctx context.Context, group string, ids ...string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, id := range ids {
		delete(l.pending, id)
		l.acked = append(l.acked, id)
		l.events = append(l.events, "ack:"+id)
	}
	return nil
}

func (l *memoryLog) Claim(ctx context.Context, group, consumer string, minIdle time.Duration, start string, count int) ([]eventlog.Message, string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.claims++
	claimed := l.claimed
	l.claimed = nil
	next := l.claimNext
	if next == "" {
		next = "0-0"
	}
	return claimed, next, nil
}

func (l *memoryLog) Pending(ctx context.Context, group string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return int64(len(l.pending)), nil
}

func (l *memoryLog) record(event string) {
	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()
}

func (l *memoryLog) snapshot() (acked []string, pending int, events []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.acked...), len(l.pending), append([]string(nil), l.events...)
}

// memoryStore records inserted clicks and fails the first failures calls.
type memoryStore struct {
	mu       sync.Mutex
	clicks   []model.ClickEvent
	calls    int
	failures int
	err      error
	log      *memoryLog
	block    chan struct{}
}

func (s *memoryStore) InsertClick(ctx context.Context, event *model.ClickEvent) error {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.log != nil {
		s.log.record(fmt.Sprintf("insert:%d", s.calls))
	}
	if s.calls <= s.failures {
		if s.err != nil {
			return s.err
		}
		return errors.New("connection refused")
	}
	s.clicks = append(s.clicks, *event)
	return nil
}

func (s *memoryStore) inserted() []model.ClickEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ClickEvent(nil), s.clicks...)
}

func (s *memoryStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// memorySink records dead letters.
type memorySink struct {
	mu      sync.Mutex
	entries []string
	err     error
	log     *memoryLog
}

func (s *memorySink) DeadLetter(ctx context.Context, msg eventlog.Message, reason, detail string) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, msg.ID+":"+reason)
	if s.log != nil {
		s.log.record("dlq:" + msg.ID)
	}
	return nil
}

func (s *memorySink) reasons() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.entries...)
}
