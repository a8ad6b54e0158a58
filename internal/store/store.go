// Package store persists the realized trade ledger and the equity curve.
package store

import (
	"time"

	"session-trader/internal/models"
)

// Store is the append-only ledger backing the analytics and report surfaces.
type Store interface {
	// RecordTrade appends a closed trade to the ledger.
	RecordTrade(record models.TradeRecord) error
	// Trades returns ledger entries closed at or after since, oldest first.
	// The zero time returns the full ledger.
	Trades(since time.Time) ([]models.TradeRecord, error)
	// RecordEquity appends an equity curve sample.
	RecordEquity(point models.EquityPoint) error
	// EquityCurve returns samples taken at or after since, oldest first.
	EquityCurve(since time.Time) ([]models.EquityPoint, error)
	// Close releases the underlying resources.
	Close() error
}
