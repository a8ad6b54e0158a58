// Package risk implements the stateful risk gate that authorizes every
// proposed exposure change before it reaches the market.
package risk

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"session-trader/internal/correlation"
	"session-trader/internal/models"
)

// Action is the outcome of a risk authorization.
type Action string

const (
	ActionAllow          Action = "ALLOW"
	ActionDeny           Action = "DENY"
	ActionForceLiquidate Action = "FORCE_LIQUIDATE"
)

// Decision is the result of evaluating a proposed exposure change.
type Decision struct {
	Action Action
	Reason string
	// ClampedVolume is set when the requested volume exceeded the size
	// limit and was reduced to the allowed maximum instead of denied.
	ClampedVolume float64
}

// Allowed reports whether the change may proceed.
func (d Decision) Allowed() bool {
	return d.Action == ActionAllow
}

// ProposedChange describes an exposure change submitted for authorization.
// NewPosition is false for the per-tick hold check over existing exposure.
type ProposedChange struct {
	Symbol      string
	Volume      float64
	Price       float64
	NewPosition bool
}

// State reflects the gate's current operating mode.
type State string

const (
	StateNormal   State = "NORMAL"
	StateShutdown State = "SHUTDOWN"
)

// Gate evaluates exposure changes against daily-loss, position-count,
// position-size, correlation-cluster, and drawdown limits. It is stateless
// across ticks except for the drawdown shutdown latch, the daily-loss flag,
// and the daily starting equity.
type Gate struct {
	limits      models.RiskLimits
	instruments map[string]models.Instrument
	location    *time.Location
	log         zerolog.Logger

	mu               sync.Mutex
	shutdown         bool
	shutdownReason   string
	dailyLossHit     bool
	lastResetDate    string
	dailyStartEquity float64
	peakEquity       float64
}

// NewGate creates a risk gate. location is the account timezone used for
// the once-per-day starting-equity reset.
func NewGate(limits models.RiskLimits, instruments map[string]models.Instrument, location *time.Location, log zerolog.Logger) *Gate {
	if location == nil {
		location = time.UTC
	}
	return &Gate{
		limits:      limits,
		instruments: instruments,
		location:    location,
		log:         log,
	}
}

// ResetDaily resets the daily starting equity when the calendar day in the
// account timezone has changed. Idempotent within a day: repeated calls on
// the same date are no-ops.
func (g *Gate) ResetDaily(now time.Time, equity float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	date := now.In(g.location).Format("2006-01-02")
	if date == g.lastResetDate {
		return
	}
	g.lastResetDate = date
	g.dailyStartEquity = equity
	g.dailyLossHit = false
	g.log.Info().
		Str("date", date).
		Float64("daily_start_equity", equity).
		Msg("Daily risk metrics reset")
}

// Authorize evaluates a proposed change against the risk limits. Checks run
// in a fixed order and short-circuit on the first failure: daily loss,
// position count, position size, correlation cluster, drawdown.
func (g *Gate) Authorize(req ProposedChange, account models.AccountInfo, open []*models.Position, matrix *correlation.Matrix) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.shutdown {
		return Decision{Action: ActionDeny, Reason: g.shutdownReason}
	}

	// 1. Daily loss ceiling. Trips once per day; afterwards new risk is
	// denied until the next daily reset. Liquidation re-fires while any
	// volume survives, so a failed close on the first pass is retried.
	if g.dailyStartEquity > 0 {
		loss := (g.dailyStartEquity - account.Equity) / g.dailyStartEquity
		if loss >= g.limits.MaxDailyLoss {
			if g.dailyLossHit {
				if hasOpenVolume(open) {
					return Decision{Action: ActionForceLiquidate, Reason: "daily loss limit, positions still open"}
				}
				return Decision{Action: ActionDeny, Reason: "daily loss limit reached"}
			}
			g.dailyLossHit = true
			g.log.Warn().
				Float64("loss_fraction", loss).
				Float64("limit", g.limits.MaxDailyLoss).
				Msg("Daily loss limit breached")
			return Decision{Action: ActionForceLiquidate, Reason: "daily loss limit"}
		}
	}
	if g.dailyLossHit && req.NewPosition {
		return Decision{Action: ActionDeny, Reason: "daily loss limit reached"}
	}

	var clamped float64
	if req.NewPosition {
		// 2. Position count.
		if len(open)+1 > g.limits.MaxOpenPositions {
			return Decision{
				Action: ActionDeny,
				Reason: fmt.Sprintf("maximum open positions reached (%d)", g.limits.MaxOpenPositions),
			}
		}

		// 3. Position size, clamped to the allowed maximum by default.
		if d, ok := g.checkSize(req, account, &clamped); !ok {
			return d
		}

		// 4. Correlation cluster exposure.
		if d, ok := g.checkCorrelation(req.Symbol, open, matrix); !ok {
			return d
		}
	}

	// 5. Peak-to-trough drawdown shutdown.
	if account.Equity > g.peakEquity {
		g.peakEquity = account.Equity
	}
	if g.peakEquity > 0 && g.limits.MaxDrawdown > 0 {
		drawdown := (g.peakEquity - account.Equity) / g.peakEquity
		if drawdown >= g.limits.MaxDrawdown {
			g.shutdown = true
			g.shutdownReason = "max drawdown shutdown: manual reset required"
			g.log.Error().
				Float64("drawdown", drawdown).
				Float64("limit", g.limits.MaxDrawdown).
				Msg("Maximum drawdown breached, shutting down")
			return Decision{Action: ActionForceLiquidate, Reason: "max drawdown"}
		}
	}

	return Decision{Action: ActionAllow, ClampedVolume: clamped}
}

func (g *Gate) checkSize(req ProposedChange, account models.AccountInfo, clamped *float64) (Decision, bool) {
	if req.Price <= 0 || req.Volume <= 0 {
		return Decision{Action: ActionDeny, Reason: "invalid volume or price"}, false
	}

	maxValue := account.Equity * g.limits.MaxPositionSize
	value := req.Volume * req.Price
	if value <= maxValue {
		return Decision{}, true
	}

	if g.limits.DenyOversized {
		return Decision{
			Action: ActionDeny,
			Reason: fmt.Sprintf("position size exceeds maximum (%.2f)", maxValue),
		}, false
	}

	allowed := maxValue / req.Price
	if inst, ok := g.instruments[req.Symbol]; ok {
		allowed = inst.RoundLot(allowed)
	}
	if allowed <= 0 {
		return Decision{
			Action: ActionDeny,
			Reason: "allowed position size below minimum lot",
		}, false
	}
	*clamped = allowed
	return Decision{}, true
}

func (g *Gate) checkCorrelation(symbol string, open []*models.Position, matrix *correlation.Matrix) (Decision, bool) {
	if matrix == nil || g.limits.MaxCorrelated <= 0 {
		return Decision{}, true
	}

	// Count includes the proposed position itself.
	count := 1
	for _, pos := range open {
		if matrix.Correlated(symbol, pos.Symbol) {
			count++
		}
	}
	if count > g.limits.MaxCorrelated {
		return Decision{
			Action: ActionDeny,
			Reason: fmt.Sprintf("too many correlated positions (%d, limit %d)", count, g.limits.MaxCorrelated),
		}, false
	}
	return Decision{}, true
}

func hasOpenVolume(open []*models.Position) bool {
	for _, pos := range open {
		if pos.RemainingVolume > 0 {
			return true
		}
	}
	return false
}

// Reset clears the drawdown shutdown latch. Intended for explicit operator
// intervention only.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.shutdown = false
	g.shutdownReason = ""
	g.log.Warn().Msg("Risk gate shutdown latch manually reset")
}

// State returns the current gate state and shutdown reason, if any.
func (g *Gate) State() (State, string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.shutdown {
		return StateShutdown, g.shutdownReason
	}
	return StateNormal, ""
}

// DailyStartEquity returns the equity recorded at the last daily reset.
func (g *Gate) DailyStartEquity() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.dailyStartEquity
}

// PositionSize calculates a volume for a new position from the amount of
// equity to risk and the stop distance, clamped to the instrument's lot
// limits and rounded to its lot step.
func (g *Gate) PositionSize(symbol string, riskAmount, stopPips float64) float64 {
	inst, ok := g.instruments[symbol]
	if !ok || stopPips <= 0 || inst.PipValue <= 0 {
		return 0
	}
	riskPerLot := stopPips * inst.PipValue
	if riskPerLot <= 0 {
		return 0
	}
	volume := riskAmount / riskPerLot
	if volume > inst.MaxLot {
		volume = inst.MaxLot
	}
	return inst.RoundLot(volume)
}

// Alerts returns human-readable warnings about the current risk posture.
func (g *Gate) Alerts(account models.AccountInfo, open []*models.Position) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var alerts []string
	if g.shutdown {
		alerts = append(alerts, g.shutdownReason)
	}
	if g.dailyLossHit {
		alerts = append(alerts, "daily loss limit reached")
	} else if g.dailyStartEquity > 0 {
		loss := (g.dailyStartEquity - account.Equity) / g.dailyStartEquity
		if loss >= g.limits.MaxDailyLoss*0.8 {
			alerts = append(alerts, fmt.Sprintf("approaching daily loss limit (%.1f%% of %.1f%%)",
				loss*100, g.limits.MaxDailyLoss*100))
		}
	}
	if len(open) >= g.limits.MaxOpenPositions {
		alerts = append(alerts, "maximum open positions reached")
	}
	if g.peakEquity > 0 {
		drawdown := (g.peakEquity - account.Equity) / g.peakEquity
		if drawdown >= g.limits.MaxDrawdown*0.5 && drawdown > 0 {
			alerts = append(alerts, fmt.Sprintf("high drawdown: %.2f%%", drawdown*100))
		}
	}
	return alerts
}
