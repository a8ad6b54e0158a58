// Package models provides domain models for the session trading engine.
package models

import (
	"time"
)

// SessionName identifies a recurring daily trading session.
type SessionName string

const (
	SessionAsian   SessionName = "asian"
	SessionLondon  SessionName = "london"
	SessionNewYork SessionName = "new_york"
	SessionOverlap SessionName = "overlap"
)

// Direction represents the side of a position.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// Session represents a configured market session. Windows are expressed as
// minutes from midnight in the session's own location and may wrap midnight.
type Session struct {
	Name        SessionName
	StartMinute int
	EndMinute   int
	Location    *time.Location
	Enabled     bool
}

// Contains reports whether t falls inside the session window.
func (s Session) Contains(t time.Time) bool {
	local := t.In(s.Location)
	minute := local.Hour()*60 + local.Minute()

	// A window with start > end wraps midnight (e.g. 22:00-04:00).
	if s.StartMinute > s.EndMinute {
		return minute >= s.StartMinute || minute < s.EndMinute
	}
	return minute >= s.StartMinute && minute < s.EndMinute
}

// Instrument represents a tradeable currency pair. Immutable after load.
type Instrument struct {
	Symbol            string
	BaseCurrency      string
	QuoteCurrency     string
	PipValue          float64
	MinLot            float64
	MaxLot            float64
	LotStep           float64
	Spread            float64
	CorrelationGroups []string
	SessionPreference []SessionName
	// Volatility is a per-session relative volatility profile in [0,1].
	Volatility map[SessionName]float64
}

// RoundLot rounds a volume to the instrument's lot step and clamps it to the
// tradable range. Volumes below the minimum lot round to zero.
func (i Instrument) RoundLot(volume float64) float64 {
	if i.LotStep > 0 {
		steps := float64(int64(volume/i.LotStep + 0.5))
		volume = steps * i.LotStep
	}
	if volume < i.MinLot {
		return 0
	}
	if volume > i.MaxLot {
		return i.MaxLot
	}
	return volume
}

// Quote represents the current market price for a symbol.
type Quote struct {
	Symbol    string
	Bid       float64
	Ask       float64
	Timestamp time.Time
}

// Mid returns the mid price of the quote.
func (q Quote) Mid() float64 {
	return (q.Bid + q.Ask) / 2
}

// Position represents an open broker position. The broker is the source of
// truth; the control loop's ledger holds a per-tick cache of these.
type Position struct {
	Ticket          int64
	Symbol          string
	Direction       Direction
	OpenedVolume    float64
	RemainingVolume float64
	EntryPrice      float64
	CurrentPrice    float64
	ProfitPips      float64
	Profit          float64
	StopLoss        float64 // 0 means no stop attached
	TakeProfit      float64 // 0 means no target attached
	OpenTime        time.Time
	SessionAtOpen   SessionName
	// Stale marks a position whose quote refresh failed this tick. Stale
	// positions still count toward risk limits but are never partially
	// closed against old prices.
	Stale bool
}

// UpdatePrice recalculates pip and currency profit from a fresh price.
func (p *Position) UpdatePrice(price, pipValue float64) {
	p.CurrentPrice = price
	if pipValue <= 0 {
		return
	}
	if p.Direction == DirectionLong {
		p.ProfitPips = (price - p.EntryPrice) / pipValue
	} else {
		p.ProfitPips = (p.EntryPrice - price) / pipValue
	}
	p.Profit = p.ProfitPips * pipValue * p.RemainingVolume
}

// AccountInfo represents a broker account snapshot.
type AccountInfo struct {
	Balance  float64
	Equity   float64
	Currency string
}

// RiskLimits holds the configured risk constraints. Read-only to the engine.
type RiskLimits struct {
	MaxPositionSize      float64 // fraction of equity
	MaxDailyLoss         float64 // fraction of daily starting equity
	MaxDrawdown          float64 // fraction, peak to trough
	MaxOpenPositions     int
	MaxCorrelated        int
	CorrelationThreshold float64
	StopLossPips         float64
	TakeProfitPips       float64
	TrailingStop         bool
	TrailingStopPips     float64
	// DenyOversized denies orders above the size limit instead of clamping
	// them to the allowed maximum.
	DenyOversized bool
}
