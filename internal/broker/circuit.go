package broker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "session-trader/internal/errors"
	"session-trader/internal/models"
)

// CircuitState represents the state of the venue circuit breaker.
type CircuitState string

const (
	CircuitClosed   CircuitState = "CLOSED"
	CircuitOpen     CircuitState = "OPEN"
	CircuitHalfOpen CircuitState = "HALF_OPEN"
)

// CircuitBreaker wraps a Broker and fast-fails the snapshot path after
// repeated venue failures, probing again once the cooldown elapses. Order
// writes (close, modify) always pass through: a tripped feed must never
// block a liquidation.
type CircuitBreaker struct {
	inner     Broker
	threshold int
	cooldown  time.Duration
	log       zerolog.Logger

	mu       sync.Mutex
	state    CircuitState
	failures int
	openedAt time.Time
}

// WithCircuitBreaker decorates a broker. threshold is the number of
// consecutive read failures that opens the circuit.
func WithCircuitBreaker(inner Broker, threshold int, cooldown time.Duration, log zerolog.Logger) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &CircuitBreaker{
		inner:     inner,
		threshold: threshold,
		cooldown:  cooldown,
		log:       log,
		state:     CircuitClosed,
	}
}

// State returns the current circuit state.
func (c *CircuitBreaker) State() CircuitState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// allow reports whether a read may proceed, transitioning to half-open when
// the cooldown has elapsed.
func (c *CircuitBreaker) allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if time.Since(c.openedAt) >= c.cooldown {
			c.state = CircuitHalfOpen
			c.log.Info().Msg("Venue circuit half-open, probing")
			return true
		}
		return false
	default: // half-open: allow the probe
		return true
	}
}

func (c *CircuitBreaker) record(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		if c.state != CircuitClosed {
			c.log.Info().Msg("Venue circuit closed")
		}
		c.state = CircuitClosed
		c.failures = 0
		return
	}

	c.failures++
	if c.state == CircuitHalfOpen || c.failures >= c.threshold {
		if c.state != CircuitOpen {
			c.log.Warn().
				Int("failures", c.failures).
				Dur("cooldown", c.cooldown).
				Msg("Venue circuit opened")
		}
		c.state = CircuitOpen
		c.openedAt = time.Now()
	}
}

func (c *CircuitBreaker) Connect(ctx context.Context) error {
	return c.inner.Connect(ctx)
}

func (c *CircuitBreaker) Close() error {
	return c.inner.Close()
}

func (c *CircuitBreaker) Positions(ctx context.Context) ([]*models.Position, error) {
	if !c.allow() {
		return nil, apperrors.NewBrokerError("positions", "", apperrors.ErrBrokerUnavailable)
	}
	out, err := c.inner.Positions(ctx)
	c.record(err)
	return out, err
}

func (c *CircuitBreaker) Quote(ctx context.Context, symbol string) (models.Quote, error) {
	if !c.allow() {
		return models.Quote{}, apperrors.NewBrokerError("quote", symbol, apperrors.ErrBrokerUnavailable)
	}
	out, err := c.inner.Quote(ctx, symbol)
	c.record(err)
	return out, err
}

func (c *CircuitBreaker) Account(ctx context.Context) (models.AccountInfo, error) {
	if !c.allow() {
		return models.AccountInfo{}, apperrors.NewBrokerError("account", "", apperrors.ErrBrokerUnavailable)
	}
	out, err := c.inner.Account(ctx)
	c.record(err)
	return out, err
}

func (c *CircuitBreaker) OpenPosition(ctx context.Context, symbol string, direction models.Direction, volume float64) (int64, error) {
	return c.inner.OpenPosition(ctx, symbol, direction, volume)
}

func (c *CircuitBreaker) ClosePosition(ctx context.Context, ticket int64, volume float64) error {
	return c.inner.ClosePosition(ctx, ticket, volume)
}

func (c *CircuitBreaker) ModifyStop(ctx context.Context, ticket int64, stop float64) error {
	return c.inner.ModifyStop(ctx, ticket, stop)
}
