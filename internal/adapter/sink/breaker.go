package sink

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"honeypot/internal/domain"
	"honeypot/internal/infra/config"
)

// Default circuit breaker settings.
const (
	defaultCBTimeout  time.Duration = 60 * time.Second
	defaultCBInterval time.Duration = 10 * time.Minute
)

// BreakerSink wraps a Sink with circuit breaker protection. Once the inner
// sink has failed MaxFailures times in a row, deliveries fail fast with
// domain.ErrCircuitOpen until the breaker lets a trial request through. It never
// retries a delivery.
type BreakerSink struct {
	inner   domain.Sink
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// WithBreaker wraps every sink in a BreakerSink. When cfg.MaxFailures is 0
// the sinks are returned unchanged.
func WithBreaker(sinks []domain.Sink, cfg config.BreakerConfig, logger *slog.Logger) []domain.Sink {
	if cfg.MaxFailures == 0 {
		return sinks
	}
	out := make([]domain.Sink, 0, len(sinks))
	for _, s := range sinks {
		out = append(out, NewBreakerSink(s, cfg, logger))
	}
	return out
}

// NewBreakerSink wraps inner with a circuit breaker.
func NewBreakerSink(inner domain.Sink, cfg config.BreakerConfig, logger *slog.Logger) *BreakerSink {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 1
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultCBTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultCBInterval
	}

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        string(inner.Kind()) + ":" + inner.Target(),
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("sink circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		// Misconfigured channels are not transport failures.
		IsSuccessful: func(err error) bool {
			return err == nil || domain.NeedsAttention(err)
		},
	})

	return &BreakerSink{inner: inner, breaker: cb}
}

func (b *BreakerSink) Kind() domain.SinkKind { return b.inner.Kind() }
func (b *BreakerSink) Target() string        { return b.inner.Target() }

// Deliver routes the delivery through the circuit breaker.
func (b *BreakerSink) Deliver(ctx context.Context, sess domain.Session, r domain.Report) error {
	_, err := b.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, b.inner.Deliver(ctx, sess, r)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return domain.NewSubSystemError(string(b.inner.Kind()), "BreakerSink.Deliver", domain.ErrCircuitOpen, b.inner.Target())
	}
	return err
}

// State returns the current breaker state for monitoring.
func (b *BreakerSink) State() gobreaker.State { return b.breaker.State() }

var _ domain.Sink = (*BreakerSink)(nil)
