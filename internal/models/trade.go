package models

import "time"

// CloseReason records why a position (or part of one) was closed.
type CloseReason string

const (
	CloseReasonProfitRule     CloseReason = "PROFIT_RULE"
	CloseReasonStopLoss       CloseReason = "STOP_LOSS"
	CloseReasonTakeProfit     CloseReason = "TAKE_PROFIT"
	CloseReasonForceLiquidate CloseReason = "FORCE_LIQUIDATE"
	CloseReasonManual         CloseReason = "MANUAL"
)

// TradeRecord is an entry in the append-only realized P&L ledger.
type TradeRecord struct {
	Ticket     int64
	Symbol     string
	Direction  Direction
	Volume     float64
	EntryPrice float64
	ClosePrice float64
	OpenTime   time.Time
	CloseTime  time.Time
	ProfitPips float64
	Profit     float64
	Session    SessionName
	Rule       string // rule name when closed by a profit-taking rule
	Reason     CloseReason
}

// PartialCloseInstruction instructs the broker adapter to close part of an
// open position.
type PartialCloseInstruction struct {
	Ticket int64
	Symbol string
	Volume float64
	Rule   string
	Reason CloseReason
}

// StopModifyInstruction instructs the broker adapter to move a position's
// protective stop.
type StopModifyInstruction struct {
	Ticket  int64
	Symbol  string
	NewStop float64
}

// EquityPoint is a sample of the account equity curve.
type EquityPoint struct {
	Timestamp time.Time
	Equity    float64
	Balance   float64
}
