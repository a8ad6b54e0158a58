// Package engine runs the per-tick control pipeline: snapshot, session
// classification, risk authorization, stop management, profit taking, and
// instruction dispatch.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"session-trader/internal/broker"
	"session-trader/internal/config"
	"session-trader/internal/correlation"
	apperrors "session-trader/internal/errors"
	"session-trader/internal/logging"
	"session-trader/internal/models"
	"session-trader/internal/profit"
	"session-trader/internal/risk"
	"session-trader/internal/session"
	"session-trader/internal/store"
	"session-trader/pkg/utils"
)

// Status is a point-in-time snapshot of the loop for the status surface.
type Status struct {
	LastTick       time.Time
	ActiveSessions []models.SessionName
	OpenPositions  int
	StalePositions int
	Equity         float64
	Balance        float64
	RiskState      risk.State
	RiskReason     string
	RuleFires      map[string]int
	Alerts         []string
}

// Loop drives the control pipeline at a fixed tick interval. All market
// access goes through the broker adapter; the loop never holds position
// state across ticks beyond the last known quotes used for stale carry-over.
type Loop struct {
	cfg         config.EngineConfig
	limits      models.RiskLimits
	instruments map[string]models.Instrument
	log         zerolog.Logger
	retry       utils.RetryConfig

	broker     broker.Broker
	ledger     store.Store
	classifier *session.Classifier
	gate       *risk.Gate
	profit     *profit.Engine
	corr       *correlation.Engine

	mu         sync.Mutex
	lastQuotes map[string]models.Quote
	lastCorr   time.Time
	status     Status
}

// New assembles a control loop from its collaborators.
func New(
	cfg config.EngineConfig,
	limits models.RiskLimits,
	instruments map[string]models.Instrument,
	b broker.Broker,
	ledger store.Store,
	classifier *session.Classifier,
	gate *risk.Gate,
	profitEngine *profit.Engine,
	corr *correlation.Engine,
	log zerolog.Logger,
) *Loop {
	return &Loop{
		cfg:         cfg,
		limits:      limits,
		instruments: instruments,
		log:         log,
		retry:       utils.DefaultRetryConfig(),
		broker:      b,
		ledger:      ledger,
		classifier:  classifier,
		gate:        gate,
		profit:      profitEngine,
		corr:        corr,
		lastQuotes:  make(map[string]models.Quote),
	}
}

// Run ticks the pipeline until the context is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.TickInterval)
	defer ticker.Stop()

	l.log.Info().
		Dur("tick_interval", l.cfg.TickInterval).
		Msg("Control loop started")

	for {
		select {
		case <-ctx.Done():
			l.log.Info().Msg("Control loop stopped")
			return ctx.Err()
		case now := <-ticker.C:
			if err := l.Tick(ctx, now); err != nil {
				l.log.Error().Err(err).Msg("Tick failed")
			}
		}
	}
}

// Tick runs one pass of the pipeline. A broker failure on the account or
// position snapshot aborts the pass; per-symbol quote failures degrade the
// affected positions to stale instead.
func (l *Loop) Tick(ctx context.Context, now time.Time) error {
	account, err := utils.RetryWithResult(ctx, l.retry, func() (models.AccountInfo, error) {
		return l.broker.Account(ctx)
	})
	if err != nil {
		return apperrors.Wrap(err, "fetching account")
	}
	positions, err := utils.RetryWithResult(ctx, l.retry, func() ([]*models.Position, error) {
		return l.broker.Positions(ctx)
	})
	if err != nil {
		return apperrors.Wrap(err, "fetching positions")
	}

	quotes := l.fetchQuotes(ctx, l.quoteSymbols(positions))
	stale := l.refreshPrices(positions, quotes, now)
	active := l.noteSessionChange(now)

	l.gate.ResetDaily(now, account.Equity)
	matrix := l.recomputeCorrelation(now)

	decision := l.gate.Authorize(risk.ProposedChange{}, account, positions, matrix)
	if decision.Action != risk.ActionAllow {
		logging.LogRiskDecision(l.log, string(decision.Action), decision.Reason, account.Equity)
	}
	if decision.Action == risk.ActionForceLiquidate {
		// Liquidation dispatches even when shutdown is already in flight.
		l.liquidateAll(ctx, positions, now, decision.Reason)
		l.recordEquity(now, account)
		l.updateStatus(now, account, positions, stale, active)
		return nil
	}

	closes, modifies := l.manageStops(positions, now)
	closes = append(closes, l.profit.Evaluate(now, positions, active)...)

	// Past this barrier only force liquidation may touch the market.
	if err := ctx.Err(); err != nil {
		return err
	}

	l.dispatch(ctx, positions, closes, modifies, now)
	l.recordEquity(now, account)
	l.updateStatus(now, account, positions, stale, active)
	return nil
}

// noteSessionChange classifies the tick time and logs when the active
// session set differs from the previous tick.
func (l *Loop) noteSessionChange(now time.Time) []models.SessionName {
	active := l.classifier.Active(now)

	l.mu.Lock()
	changed := !sessionsEqual(active, l.status.ActiveSessions)
	l.mu.Unlock()
	if changed {
		logging.LogSessionChange(l.log, active)
	}
	return active
}

func sessionsEqual(a, b []models.SessionName) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// quoteSymbols is the union of open position symbols and the tracked
// universe, so the correlation series keep filling while flat.
func (l *Loop) quoteSymbols(positions []*models.Position) []string {
	seen := make(map[string]bool, len(l.instruments))
	var out []string
	for symbol := range l.instruments {
		seen[symbol] = true
		out = append(out, symbol)
	}
	for _, pos := range positions {
		if !seen[pos.Symbol] {
			seen[pos.Symbol] = true
			out = append(out, pos.Symbol)
		}
	}
	return out
}

// fetchQuotes fans out one quote request per symbol, each under its own
// timeout, and merges the results. Failures are logged and omitted.
func (l *Loop) fetchQuotes(ctx context.Context, symbols []string) map[string]models.Quote {
	type result struct {
		quote models.Quote
		err   error
	}

	results := make(map[string]*result, len(symbols))
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, symbol := range symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			quoteCtx, cancel := context.WithTimeout(ctx, l.cfg.BrokerTimeout)
			defer cancel()

			start := time.Now()
			quote, err := l.broker.Quote(quoteCtx, symbol)
			logging.LogBrokerCall(l.log, "quote", symbol, time.Since(start), err)
			mu.Lock()
			results[symbol] = &result{quote: quote, err: err}
			mu.Unlock()
		}(symbol)
	}
	wg.Wait()

	quotes := make(map[string]models.Quote, len(results))
	for symbol, r := range results {
		if r.err != nil {
			l.log.Warn().Str("symbol", symbol).Err(r.err).Msg("Quote fetch failed")
			continue
		}
		quotes[symbol] = r.quote
	}
	return quotes
}

// refreshPrices applies fresh quotes to positions, feeds the correlation
// series, and carries the last known quote for symbols that failed this
// tick, marking those positions stale. Returns the stale count.
func (l *Loop) refreshPrices(positions []*models.Position, quotes map[string]models.Quote, now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	for symbol, quote := range quotes {
		l.lastQuotes[symbol] = quote
		l.corr.AddBar(symbol, quote.Mid())
	}

	stale := 0
	for _, pos := range positions {
		pip := l.instruments[pos.Symbol].PipValue
		if quote, ok := quotes[pos.Symbol]; ok {
			pos.UpdatePrice(quote.Mid(), pip)
			pos.Stale = false
			continue
		}
		pos.Stale = true
		stale++
		if last, ok := l.lastQuotes[pos.Symbol]; ok {
			pos.UpdatePrice(last.Mid(), pip)
			lg := logging.WithTicket(logging.WithSymbol(l.log, pos.Symbol), pos.Ticket)
			lg.Warn().
				Time("quote_time", last.Timestamp).
				Msg("Carrying stale quote for position")
		}
	}
	return stale
}

func (l *Loop) recomputeCorrelation(now time.Time) *correlation.Matrix {
	l.mu.Lock()
	due := l.lastCorr.IsZero() || now.Sub(l.lastCorr) >= l.cfg.CorrelationEvery
	if due {
		l.lastCorr = now
	}
	l.mu.Unlock()

	if due {
		return l.corr.Recompute()
	}
	return l.corr.Matrix()
}

// manageStops emits full closes for breached stops and targets and trailing
// stop adjustments for positions in profit. Stale positions are left alone.
func (l *Loop) manageStops(positions []*models.Position, now time.Time) ([]models.PartialCloseInstruction, []models.StopModifyInstruction) {
	var closes []models.PartialCloseInstruction
	var modifies []models.StopModifyInstruction

	for _, pos := range positions {
		if pos.Stale || pos.RemainingVolume <= 0 {
			continue
		}

		if l.limits.StopLossPips > 0 && pos.ProfitPips <= -l.limits.StopLossPips {
			closes = append(closes, models.PartialCloseInstruction{
				Ticket: pos.Ticket,
				Symbol: pos.Symbol,
				Volume: pos.RemainingVolume,
				Reason: models.CloseReasonStopLoss,
			})
			pos.RemainingVolume = 0
			continue
		}
		if l.limits.TakeProfitPips > 0 && pos.ProfitPips >= l.limits.TakeProfitPips {
			closes = append(closes, models.PartialCloseInstruction{
				Ticket: pos.Ticket,
				Symbol: pos.Symbol,
				Volume: pos.RemainingVolume,
				Reason: models.CloseReasonTakeProfit,
			})
			pos.RemainingVolume = 0
			continue
		}

		if l.limits.TrailingStop && pos.ProfitPips > l.limits.TrailingStopPips {
			pip := l.instruments[pos.Symbol].PipValue
			if pip <= 0 {
				continue
			}
			var newStop float64
			if pos.Direction == models.DirectionLong {
				newStop = pos.CurrentPrice - l.limits.TrailingStopPips*pip
				if pos.StopLoss != 0 && newStop <= pos.StopLoss {
					continue
				}
			} else {
				newStop = pos.CurrentPrice + l.limits.TrailingStopPips*pip
				if pos.StopLoss != 0 && newStop >= pos.StopLoss {
					continue
				}
			}
			modifies = append(modifies, models.StopModifyInstruction{
				Ticket:  pos.Ticket,
				Symbol:  pos.Symbol,
				NewStop: newStop,
			})
		}
	}
	return closes, modifies
}

// liquidateAll closes every open position regardless of context
// cancellation. Liquidation is the one action that must not be dropped on
// shutdown.
func (l *Loop) liquidateAll(ctx context.Context, positions []*models.Position, now time.Time, reason string) {
	logging.LogForceLiquidate(l.log, reason, len(positions))

	var closes []models.PartialCloseInstruction
	for _, pos := range positions {
		if pos.RemainingVolume <= 0 {
			continue
		}
		closes = append(closes, models.PartialCloseInstruction{
			Ticket: pos.Ticket,
			Symbol: pos.Symbol,
			Volume: pos.RemainingVolume,
			Reason: models.CloseReasonForceLiquidate,
		})
	}
	l.dispatch(context.WithoutCancel(ctx), positions, closes, nil, now)
}

// dispatch executes instructions against the broker, one at a time, and
// records the realized part of each close in the ledger. A failed
// instruction is logged and skipped; the rest still run.
func (l *Loop) dispatch(ctx context.Context, positions []*models.Position, closes []models.PartialCloseInstruction, modifies []models.StopModifyInstruction, now time.Time) {
	byTicket := make(map[int64]*models.Position, len(positions))
	for _, pos := range positions {
		byTicket[pos.Ticket] = pos
	}

	for _, ins := range modifies {
		ins := ins
		err := utils.Retry(ctx, l.retry, func() error {
			return l.broker.ModifyStop(ctx, ins.Ticket, ins.NewStop)
		})
		if err != nil {
			l.log.Error().
				Err(apperrors.NewInstructionError(ins.Ticket, ins.Symbol, "modify_stop", err)).
				Msg("Stop modify failed")
			continue
		}
		if pos, ok := byTicket[ins.Ticket]; ok {
			pos.StopLoss = ins.NewStop
		}
	}

	for _, ins := range closes {
		ins := ins
		err := utils.Retry(ctx, l.retry, func() error {
			return l.broker.ClosePosition(ctx, ins.Ticket, ins.Volume)
		})
		if err != nil {
			l.log.Error().
				Err(apperrors.NewInstructionError(ins.Ticket, ins.Symbol, "close", err)).
				Msg("Close failed")
			continue
		}

		pos, ok := byTicket[ins.Ticket]
		if !ok {
			continue
		}
		record := models.TradeRecord{
			Ticket:     ins.Ticket,
			Symbol:     ins.Symbol,
			Direction:  pos.Direction,
			Volume:     ins.Volume,
			EntryPrice: pos.EntryPrice,
			ClosePrice: pos.CurrentPrice,
			OpenTime:   pos.OpenTime,
			CloseTime:  now,
			ProfitPips: pos.ProfitPips,
			Profit:     pos.ProfitPips * l.instruments[pos.Symbol].PipValue * ins.Volume,
			Session:    pos.SessionAtOpen,
			Rule:       ins.Rule,
			Reason:     ins.Reason,
		}
		if err := l.ledger.RecordTrade(record); err != nil {
			l.log.Error().Err(err).Int64("ticket", ins.Ticket).Msg("Ledger write failed")
		}
		if ins.Reason == models.CloseReasonProfitRule {
			logging.LogPartialClose(l.log, ins, pos.ProfitPips)
		} else {
			l.log.Info().
				Int64("ticket", ins.Ticket).
				Str("symbol", ins.Symbol).
				Float64("volume", ins.Volume).
				Float64("profit", record.Profit).
				Str("reason", string(ins.Reason)).
				Msg("Position close dispatched")
		}
	}
}

func (l *Loop) recordEquity(now time.Time, account models.AccountInfo) {
	point := models.EquityPoint{Timestamp: now, Equity: account.Equity, Balance: account.Balance}
	if err := l.ledger.RecordEquity(point); err != nil {
		l.log.Error().Err(err).Msg("Equity sample write failed")
	}
}

func (l *Loop) updateStatus(now time.Time, account models.AccountInfo, positions []*models.Position, stale int, active []models.SessionName) {
	state, reason := l.gate.State()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.status = Status{
		LastTick:       now,
		ActiveSessions: active,
		OpenPositions:  len(positions),
		StalePositions: stale,
		Equity:         account.Equity,
		Balance:        account.Balance,
		RiskState:      state,
		RiskReason:     reason,
		RuleFires:      l.profit.FireCounts(now),
		Alerts:         l.gate.Alerts(account, positions),
	}
}

// Status returns the snapshot taken at the end of the last completed tick.
func (l *Loop) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}
