package clickstream

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/linkping/linkping/internal/eventlog"
	"github.com/linkping/linkping/internal/metrics"
)

const (
	// DefaultGroup is the consumer group name.
	DefaultGroup = "click_consumers"

	// DefaultBatchSize is the max entries per read.
	DefaultBatchSize = 10

	// DefaultBlockTime is how long a read waits for new entries.
	DefaultBlockTime = 5 * time.Second

	// DefaultReadRetryDelay is the pause after a failed read.
	DefaultReadRetryDelay = 500 * time.Millisecond

	// DefaultClaimInterval is how often pending entries are scanned.
	DefaultClaimInterval = 30 * time.Second

	// DefaultClaimMinIdle is the idle time before a pending entry is reclaimed.
	DefaultClaimMinIdle = 60 * time.Second
)

// GroupLog is the consumer side of the click stream.
type GroupLog interface {
	CreateGroup(ctx context.Context, group, startID string) error
	ReadGroup(ctx context.Context, group, consumer string, count int, block time.Duration) ([]eventlog.Message, error)
	Claim(ctx context.Context, group, consumer string, minIdle time.Duration, start string, count int) ([]eventlog.Message, string, error)
	Pending(ctx context.Context, group string) (int64, error)
}

// Trimmer removes acknowledged entries from the log.
type Trimmer interface {
	Len(ctx context.Context) (int64, error)
	TrimAcknowledged(ctx context.Context, group string) (int64, error)
}

// Handler processes one delivered message.
type Handler interface {
	Handle(ctx context.Context, msg eventlog.Message) error
}

// ReaderConfig configures a Reader.
type ReaderConfig struct {
	Group          string
	Consumer       string
	BatchSize      int
	BlockTime      time.Duration
	ReadRetryDelay time.Duration
	ClaimInterval  time.Duration // zero disables reclaiming
	ClaimMinIdle   time.Duration
	TrimThreshold  int64 // zero disables trimming; runs with the claim pass
}

// DefaultReaderConfig returns the production defaults with a generated
// consumer name.
func DefaultReaderConfig() ReaderConfig {
	return ReaderConfig{
		Group:          DefaultGroup,
		Consumer:       NewConsumerName(),
		BatchSize:      DefaultBatchSize,
		BlockTime:      DefaultBlockTime,
		ReadRetryDelay: DefaultReadRetryDelay,
		ClaimInterval:  DefaultClaimInterval,
		ClaimMinIdle:   DefaultClaimMinIdle,
	}
}

// Reader owns a consumer group cursor and feeds delivered messages to a
// Handler, one at a time in log order.
type Reader struct {
	log     GroupLog
	trimmer Trimmer
	handler Handler
	cfg     ReaderConfig
	logger  *slog.Logger
	metrics metrics.Recorder

	lastClaim    time.Time
	claimStart   string
	claimBacklog bool

	started   bool
	stopped   bool
	stopRead  context.CancelFunc
	abortWork context.CancelFunc
	done      chan struct{}
	mu        sync.Mutex
}

// NewReader creates a Reader. Zero config fields take their defaults.
func NewReader(log GroupLog, handler Handler, cfg ReaderConfig, logger *slog.Logger, recorder metrics.Recorder) *Reader {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if cfg.Group == "" {
		cfg.Group = DefaultGroup
	}
	if cfg.Consumer == "" {
		cfg.Consumer = NewConsumerName()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BlockTime <= 0 {
		cfg.BlockTime = DefaultBlockTime
	}
	if cfg.ReadRetryDelay <= 0 {
		cfg.ReadRetryDelay = DefaultReadRetryDelay
	}

	r := &Reader{
		log:        log,
		handler:    handler,
		cfg:        cfg,
		logger:     logger.With("component", "clickstream.reader", "group", cfg.Group, "consumer", cfg.Consumer),
		metrics:    recorder,
		claimStart: "0-0",
	}
	if t, ok := log.(Trimmer); ok && cfg.TrimThreshold > 0 {
		r.trimmer = t
	}
	return r
}

// EnsureGroup creates the consumer group if it does not exist yet.
// Calling it again is harmless.
func (r *Reader) EnsureGroup(ctx context.Context) error {
	return r.log.CreateGroup(ctx, r.cfg.Group, eventlog.StartID)
}

// Run reads and dispatches until Shutdown is called or ctx is done.
// Read failures are logged and retried after ReadRetryDelay without limit.
// It returns nil when stopped, including when Shutdown was called first.
func (r *Reader) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return errors.New("reader already started")
	}
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.started = true
	r.done = make(chan struct{})
	workCtx, abortWork := context.WithCancel(ctx)
	readCtx, stopRead := context.WithCancel(workCtx)
	r.stopRead, r.abortWork = stopRead, abortWork
	r.mu.Unlock()

	defer close(r.done)
	defer abortWork()

	for {
		err := r.EnsureGroup(readCtx)
		if err == nil {
			break
		}
		if readCtx.Err() != nil {
			return nil
		}
		r.logger.Error("create consumer group failed", "error", err)
		if !r.wait(readCtx, r.cfg.ReadRetryDelay) {
			return nil
		}
	}

	r.logger.Info("click reader started")

	for {
		if readCtx.Err() != nil {
			r.logger.Info("click reader stopping")
			return nil
		}

		if _, err := r.processOnce(readCtx, workCtx); err != nil {
			if readCtx.Err() != nil {
				continue
			}
			r.metrics.IncStreamReadError()
			r.logger.Error("stream read failed",
				"error", err,
				"retry_in_ms", r.cfg.ReadRetryDelay.Milliseconds(),
			)
			r.wait(readCtx, r.cfg.ReadRetryDelay)
		}
	}
}

// Shutdown stops reading and waits for the in-flight message to finish.
// If ctx ends first, in-flight retries are cancelled and the message stays
// pending for a later reclaim.
func (r *Reader) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.stopped = true
	if !r.started {
		r.mu.Unlock()
		return nil
	}
	stopRead, abortWork, done := r.stopRead, r.abortWork, r.done
	r.mu.Unlock()

	r.logger.Info("click reader shutdown initiated")
	stopRead()

	select {
	case <-done:
		r.logger.Info("click reader shutdown complete")
		return nil
	case <-ctx.Done():
		r.logger.Warn("click reader shutdown timed out, abandoning in-flight message")
		abortWork()
		<-done
		return ctx.Err()
	}
}

// processOnce performs one Idle -> Blocked-on-read -> Dispatch cycle and
// returns the number of messages dispatched. readCtx bounds reads;
// workCtx bounds message handling.
func (r *Reader) processOnce(readCtx, workCtx context.Context) (int, error) {
	messages := r.maybeClaimPending(readCtx)

	if len(messages) == 0 {
		var err error
		messages, err = r.log.ReadGroup(readCtx, r.cfg.Group, r.cfg.Consumer, r.cfg.BatchSize, r.cfg.BlockTime)
		if err != nil {
			return 0, err
		}
	}
	if len(messages) == 0 {
		return 0, nil
	}

	r.metrics.ObserveBatchSize(len(messages))

	dispatched := 0
	for _, msg := range messages {
		if readCtx.Err() != nil {
			// Stopped mid-batch: the rest stays pending.
			break
		}
		if err := r.handler.Handle(workCtx, msg); err != nil {
			level := slog.LevelError
			if IsLeftPending(err) {
				level = slog.LevelWarn
			}
			r.logger.Log(workCtx, level, "message not acknowledged",
				"message_id", msg.ID,
				"error", err,
			)
		}
		dispatched++
	}
	return dispatched, nil
}

// maybeClaimPending reclaims entries left pending by a crashed or aborted
// consumer, at most once per ClaimInterval. A full batch with more pending
// entries behind it claims again on the next cycle.
func (r *Reader) maybeClaimPending(ctx context.Context) []eventlog.Message {
	if r.cfg.ClaimInterval <= 0 || r.cfg.ClaimMinIdle <= 0 {
		return nil
	}
	due := r.lastClaim.IsZero() || time.Since(r.lastClaim) >= r.cfg.ClaimInterval
	if !due && !r.claimBacklog {
		return nil
	}
	r.claimBacklog = false

	if due {
		r.lastClaim = time.Now()
		if pending, err := r.log.Pending(ctx, r.cfg.Group); err == nil {
			r.metrics.SetPendingMessages(pending)
		}
		r.trimAcknowledged(ctx)
	}

	messages, next, err := r.log.Claim(ctx, r.cfg.Group, r.cfg.Consumer, r.cfg.ClaimMinIdle, r.claimStart, r.cfg.BatchSize)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Warn("claim pending messages failed", "error", err)
		}
		return nil
	}
	if next != "" {
		r.claimStart = next
	}
	if len(messages) >= r.cfg.BatchSize && next != "" && next != "0-0" {
		r.claimBacklog = true
	}
	if len(messages) > 0 {
		r.logger.Info("reclaimed pending messages", "count", len(messages), "more", r.claimBacklog)
	}
	return messages
}

// trimAcknowledged drops acknowledged entries once the log grows past
// TrimThreshold.
func (r *Reader) trimAcknowledged(ctx context.Context) {
	if r.trimmer == nil {
		return
	}
	n, err := r.trimmer.Len(ctx)
	if err != nil || n <= r.cfg.TrimThreshold {
		return
	}
	removed, err := r.trimmer.TrimAcknowledged(ctx, r.cfg.Group)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Warn("trim acknowledged entries failed", "error", err)
		}
		return
	}
	if removed > 0 {
		r.logger.Debug("trimmed acknowledged entries", "removed", removed, "length", n-removed)
	}
}

// wait sleeps for d and reports false if ctx ended first.
func (r *Reader) wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
