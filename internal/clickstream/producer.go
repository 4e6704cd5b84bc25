package clickstream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/linkping/linkping/internal/apperror"
	"github.com/linkping/linkping/internal/metrics"
	"github.com/linkping/linkping/internal/model"
)

const (
	// DefaultPublishTimeout bounds a single append on the redirect path.
	DefaultPublishTimeout = 200 * time.Millisecond

	// DefaultBreakerFailureThreshold is the number of consecutive append
	// failures that opens the breaker.
	DefaultBreakerFailureThreshold = 5

	// DefaultBreakerOpenTimeout is how long the breaker stays open before
	// letting a probe through.
	DefaultBreakerOpenTimeout = 10 * time.Second
)

// Appender appends entries to the click stream.
type Appender interface {
	Append(ctx context.Context, fields map[string]string) (string, error)
}

// ProducerConfig configures a Producer.
type ProducerConfig struct {
	Timeout                 time.Duration
	BreakerFailureThreshold uint32
	BreakerOpenTimeout      time.Duration
}

// DefaultProducerConfig returns the production defaults.
func DefaultProducerConfig() ProducerConfig {
	return ProducerConfig{
		Timeout:                 DefaultPublishTimeout,
		BreakerFailureThreshold: DefaultBreakerFailureThreshold,
		BreakerOpenTimeout:      DefaultBreakerOpenTimeout,
	}
}

// Producer publishes click events to the stream.
type Producer struct {
	log     Appender
	breaker *gobreaker.CircuitBreaker[string]
	timeout time.Duration
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewProducer creates a Producer. The Appender is shared with the rest of
// the process and is not closed by the Producer.
func NewProducer(log Appender, cfg ProducerConfig, logger *slog.Logger, recorder metrics.Recorder) *Producer {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if cfg.BreakerFailureThreshold == 0 {
		cfg.BreakerFailureThreshold = DefaultBreakerFailureThreshold
	}
	if cfg.BreakerOpenTimeout <= 0 {
		cfg.BreakerOpenTimeout = DefaultBreakerOpenTimeout
	}

	p := &Producer{
		log:     log,
		timeout: cfg.Timeout,
		logger:  logger.With("component", "clickstream.producer"),
		metrics: recorder,
	}

	p.breaker = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "clickstream.producer",
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			p.logger.Warn("publisher circuit breaker state changed",
				"from", from.String(),
				"to", to.String(),
			)
			p.metrics.SetPublisherBreakerOpen(to == gobreaker.StateOpen)
		},
	})

	return p
}

// Publish appends event to the stream and returns the assigned entry id.
// It waits only for the append, never for the consumer. Every failure
// wraps apperror.ErrTransport except an encoding failure.
func (p *Producer) Publish(ctx context.Context, event model.ClickEvent) (string, error) {
	fields, err := EncodeEvent(event)
	if err != nil {
		p.metrics.IncClickPublished("failed")
		return "", err
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	id, err := p.breaker.Execute(func() (string, error) {
		return p.log.Append(ctx, fields)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			p.metrics.IncClickPublished("rejected")
			return "", fmt.Errorf("%w: publish %s: %w", apperror.ErrTransport, event.Slug, err)
		}
		p.metrics.IncClickPublished("failed")
		if !errors.Is(err, apperror.ErrTransport) {
			err = fmt.Errorf("%w: %w", apperror.ErrTransport, err)
		}
		return "", fmt.Errorf("publish %s: %w", event.Slug, err)
	}

	p.metrics.IncClickPublished("success")
	p.logger.Debug("click event published",
		"slug", event.Slug,
		"message_id", id,
	)
	return id, nil
}

// BreakerState returns the current circuit breaker state.
func (p *Producer) BreakerState() string {
	return p.breaker.State().String()
}
