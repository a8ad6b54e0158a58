package store

import (
	"sync"
	"time"

	"session-trader/internal/models"
)

// Memory is an in-process ledger used by tests and dry runs.
type Memory struct {
	mu     sync.Mutex
	trades []models.TradeRecord
	equity []models.EquityPoint
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) RecordTrade(r models.TradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = append(m.trades, r)
	return nil
}

func (m *Memory) Trades(since time.Time) ([]models.TradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.TradeRecord
	for _, r := range m.trades {
		if !r.CloseTime.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Memory) RecordEquity(p models.EquityPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.equity = append(m.equity, p)
	return nil
}

func (m *Memory) EquityCurve(since time.Time) ([]models.EquityPoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.EquityPoint
	for _, p := range m.equity {
		if !p.Timestamp.Before(since) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *Memory) Close() error {
	return nil
}
