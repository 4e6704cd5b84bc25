package clickstream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/linkping/linkping/internal/apperror"
	"github.com/linkping/linkping/internal/eventlog"
	"github.com/linkping/linkping/internal/metrics"
	"github.com/linkping/linkping/internal/model"
	"github.com/linkping/linkping/internal/retry"
)

// ClickStore persists click events.
type ClickStore interface {
	InsertClick(ctx context.Context, event *model.ClickEvent) error
}

// Acker acknowledges stream entries for a consumer group.
type Acker interface {
	Ack(ctx context.Context, group string, ids ...string) error
}

// Processor handles one delivered message at a time: decode, persist with
// retry, dead-letter on failure, acknowledge.
type Processor struct {
	store      ClickStore
	acker      Acker
	group      string
	deadLetter DeadLetterSink
	policy     retry.Policy
	logger     *slog.Logger
	metrics    metrics.Recorder
	now        func() time.Time
}

// NewProcessor creates a Processor acknowledging for group. A nil
// deadLetter disables dead-lettering: failed messages are logged and
// acknowledged, and the click is lost.
func NewProcessor(store ClickStore, acker Acker, group string, deadLetter DeadLetterSink, policy retry.Policy, logger *slog.Logger, recorder metrics.Recorder) *Processor {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	p := &Processor{
		store:      store,
		acker:      acker,
		group:      group,
		deadLetter: deadLetter,
		logger:     logger.With("component", "clickstream.processor"),
		metrics:    recorder,
		now:        time.Now,
	}

	onRetry := policy.OnRetry
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		p.logger.Warn("click insert failed, retrying",
			"attempt", attempt,
			"max_attempts", policy.MaxAttempts,
			"delay_ms", delay.Milliseconds(),
			"error", err,
		)
		p.metrics.IncPersistRetry()
		if onRetry != nil {
			onRetry(attempt, delay, err)
		}
	}
	p.policy = policy

	return p
}

// Handle processes msg. It returns nil once msg has been acknowledged.
// A non-nil error means msg was left pending: the context was cancelled
// mid-processing, the dead-letter write failed, or the ack failed.
func (p *Processor) Handle(ctx context.Context, msg eventlog.Message) error {
	event, err := DecodeEvent(msg.Fields)
	if err != nil {
		p.logger.Warn("undecodable click message",
			"message_id", msg.ID,
			"error", err,
		)
		return p.fail(ctx, msg, ReasonDecodeError, err)
	}

	err = p.policy.Run(ctx, func(ctx context.Context) error {
		return p.store.InsertClick(ctx, event)
	})
	if err != nil {
		if ctx.Err() != nil {
			p.metrics.IncClickProcessed("pending")
			return fmt.Errorf("message %s left pending: %w", msg.ID, err)
		}
		err = fmt.Errorf("%w: %w", apperror.ErrPersistence, err)
		p.logger.Error("click insert gave up",
			"message_id", msg.ID,
			"slug", event.Slug,
			"error", err,
		)
		return p.fail(ctx, msg, ReasonPersistenceError, err)
	}

	if err := p.ack(ctx, msg); err != nil {
		return err
	}

	p.metrics.IncClickProcessed("persisted")
	if at, err := event.Time(); err == nil {
		p.metrics.ObserveIngestLag(p.now().Sub(at))
	}
	p.logger.Debug("click persisted",
		"message_id", msg.ID,
		"slug", event.Slug,
	)
	return nil
}

// fail dead-letters msg and then acknowledges it. Without a sink the
// message is acknowledged and dropped.
func (p *Processor) fail(ctx context.Context, msg eventlog.Message, reason string, cause error) error {
	status := "dropped"
	if p.deadLetter != nil {
		if err := p.deadLetter.DeadLetter(ctx, msg, reason, cause.Error()); err != nil {
			p.logger.Error("dead-letter write failed, leaving message pending",
				"message_id", msg.ID,
				"reason", reason,
				"error", err,
			)
			p.metrics.IncClickProcessed("pending")
			return fmt.Errorf("message %s left pending: %w", msg.ID, err)
		}
		status = "dead_lettered"
	} else {
		p.logger.Error("dropping click message",
			"message_id", msg.ID,
			"reason", reason,
			"error", cause,
		)
	}

	if err := p.ack(ctx, msg); err != nil {
		return err
	}
	p.metrics.IncClickProcessed(status)
	return nil
}

func (p *Processor) ack(ctx context.Context, msg eventlog.Message) error {
	if err := p.acker.Ack(ctx, p.group, msg.ID); err != nil {
		p.logger.Error("ack failed",
			"message_id", msg.ID,
			"error", err,
		)
		p.metrics.IncClickProcessed("pending")
		return fmt.Errorf("ack %s: %w", msg.ID, err)
	}
	return nil
}

// IsLeftPending reports whether a Handle error left the message pending
// because the context ended.
func IsLeftPending(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
