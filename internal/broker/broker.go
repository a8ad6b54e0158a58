// Package broker defines the adapter boundary to the trading venue and a
// paper implementation for testing and dry runs.
package broker

import (
	"context"

	"session-trader/internal/models"
)

// Broker is the venue adapter used by the control loop. The broker is the
// source of truth for positions and account state; the engine never caches
// across ticks beyond the stale carry-over.
type Broker interface {
	// Connect establishes the venue session.
	Connect(ctx context.Context) error
	// Close tears the session down.
	Close() error

	// Positions returns all currently open positions.
	Positions(ctx context.Context) ([]*models.Position, error)
	// Quote returns the current price for a symbol.
	Quote(ctx context.Context, symbol string) (models.Quote, error)
	// Account returns the current account snapshot.
	Account(ctx context.Context) (models.AccountInfo, error)

	// OpenPosition opens a new position and returns its ticket.
	OpenPosition(ctx context.Context, symbol string, direction models.Direction, volume float64) (int64, error)
	// ClosePosition closes volume lots of the position. A volume at or above
	// the remaining volume closes the position entirely.
	ClosePosition(ctx context.Context, ticket int64, volume float64) error
	// ModifyStop moves the position's protective stop.
	ModifyStop(ctx context.Context, ticket int64, stop float64) error
}
