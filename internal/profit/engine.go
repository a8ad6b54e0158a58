// Package profit implements time-interval partial profit taking over open
// positions, driven by a name-keyed rule registry.
package profit

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "session-trader/internal/errors"
	"session-trader/internal/logging"
	"session-trader/internal/models"
)

// ruleState pairs a rule with its evaluation bookkeeping. lastEval gates the
// rule's own interval; fires holds the close timestamps inside the current
// interval window for rate limiting.
type ruleState struct {
	rule     models.ProfitTakingRule
	lastEval time.Time
	fires    []time.Time
}

// Engine evaluates profit-taking rules against open positions and emits
// partial close instructions. Rules stack in declaration order within a
// single evaluation, each seeing the volume remaining after earlier rules.
type Engine struct {
	mu          sync.Mutex
	log         zerolog.Logger
	instruments map[string]models.Instrument
	order       []string
	rules       map[string]*ruleState
}

// NewEngine creates a profit-taking engine seeded with the given rules.
func NewEngine(rules []models.ProfitTakingRule, instruments map[string]models.Instrument, log zerolog.Logger) *Engine {
	e := &Engine{
		log:         log,
		instruments: instruments,
		rules:       make(map[string]*ruleState),
	}
	for _, r := range rules {
		if _, exists := e.rules[r.Name]; exists {
			continue
		}
		e.order = append(e.order, r.Name)
		e.rules[r.Name] = &ruleState{rule: r}
	}
	return e
}

// AddRule registers a new rule at the end of the evaluation order.
func (e *Engine) AddRule(rule models.ProfitTakingRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.rules[rule.Name]; exists {
		return apperrors.Wrapf(apperrors.ErrRuleExists, "rule %q", rule.Name)
	}
	e.order = append(e.order, rule.Name)
	e.rules[rule.Name] = &ruleState{rule: rule}
	e.log.Info().Str("rule", rule.Name).Msg("Profit rule added")
	return nil
}

// RemoveRule deletes a rule from the registry.
func (e *Engine) RemoveRule(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.rules[name]; !exists {
		return apperrors.Wrapf(apperrors.ErrRuleNotFound, "rule %q", name)
	}
	delete(e.rules, name)
	for i, n := range e.order {
		if n == name {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	e.log.Info().Str("rule", name).Msg("Profit rule removed")
	return nil
}

// SetEnabled toggles a rule without touching its interval bookkeeping.
func (e *Engine) SetEnabled(name string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, exists := e.rules[name]
	if !exists {
		return apperrors.Wrapf(apperrors.ErrRuleNotFound, "rule %q", name)
	}
	state.rule.Enabled = enabled
	e.log.Info().Str("rule", name).Bool("enabled", enabled).Msg("Profit rule toggled")
	return nil
}

// Rule returns a copy of the named rule.
func (e *Engine) Rule(name string) (models.ProfitTakingRule, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, exists := e.rules[name]
	if !exists {
		return models.ProfitTakingRule{}, apperrors.Wrapf(apperrors.ErrRuleNotFound, "rule %q", name)
	}
	return state.rule, nil
}

// Rules returns all rules in evaluation order.
func (e *Engine) Rules() []models.ProfitTakingRule {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]models.ProfitTakingRule, 0, len(e.order))
	for _, name := range e.order {
		out = append(out, e.rules[name].rule)
	}
	return out
}

// FireCounts returns, per rule, how many partial closes sit inside the
// rule's rate-limit window ending at now. The counts feed the polled status
// snapshot; bookkeeping is not mutated.
func (e *Engine) FireCounts(now time.Time) map[string]int {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]int, len(e.order))
	for _, name := range e.order {
		state := e.rules[name]
		cutoff := now.Add(-state.rule.Interval)
		count := 0
		for _, f := range state.fires {
			if f.After(cutoff) {
				count++
			}
		}
		out[name] = count
	}
	return out
}

// Evaluate runs all due rules against the open positions and returns the
// partial close instructions to dispatch. Positions' RemainingVolume is
// decremented as instructions are produced so later rules in the same pass
// operate on the shrunk volume. Stale positions are never closed.
func (e *Engine) Evaluate(now time.Time, positions []*models.Position, active []models.SessionName) []models.PartialCloseInstruction {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Most profitable positions are taken first.
	sorted := make([]*models.Position, len(positions))
	copy(sorted, positions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ProfitPips > sorted[j].ProfitPips
	})

	var out []models.PartialCloseInstruction
	for _, name := range e.order {
		state := e.rules[name]
		rule := state.rule
		if !rule.Enabled || !rule.MatchesSession(active) {
			continue
		}
		if !state.lastEval.IsZero() && now.Sub(state.lastEval) < rule.Interval {
			continue
		}

		// Drop fires that have aged out of the rate-limit window.
		cutoff := now.Add(-rule.Interval)
		kept := state.fires[:0]
		for _, f := range state.fires {
			if f.After(cutoff) {
				kept = append(kept, f)
			}
		}
		state.fires = kept

		budget := rule.MaxTradesPerInterval - len(state.fires)
		if budget <= 0 {
			// Rate limited: skip without consuming the interval so the
			// rule re-evaluates as soon as the window clears.
			continue
		}
		state.lastEval = now
		ruleLog := logging.WithRule(e.log, rule.Name)

		for _, pos := range sorted {
			if budget == 0 {
				break
			}
			if pos.Stale || pos.RemainingVolume <= 0 {
				continue
			}
			if !rule.MatchesSymbol(pos.Symbol) || pos.ProfitPips < rule.MinProfitPips {
				continue
			}

			volume := e.closeVolume(pos, rule.ProfitPercentage)
			if volume <= 0 {
				continue
			}

			out = append(out, models.PartialCloseInstruction{
				Ticket: pos.Ticket,
				Symbol: pos.Symbol,
				Volume: volume,
				Rule:   rule.Name,
				Reason: models.CloseReasonProfitRule,
			})
			pos.RemainingVolume -= volume
			state.fires = append(state.fires, now)
			budget--

			ruleLog.Info().
				Int64("ticket", pos.Ticket).
				Str("symbol", pos.Symbol).
				Float64("volume", volume).
				Float64("profit_pips", pos.ProfitPips).
				Msg("Partial close scheduled")
		}
	}
	return out
}

// closeVolume computes the volume a rule closes from a position. The raw
// fraction is rounded to the instrument's lot step; when the leftover would
// fall below the minimum lot the whole remainder is closed instead.
func (e *Engine) closeVolume(pos *models.Position, fraction float64) float64 {
	volume := pos.RemainingVolume * fraction
	inst, ok := e.instruments[pos.Symbol]
	if !ok {
		return volume
	}
	volume = inst.RoundLot(volume)
	if volume <= 0 || pos.RemainingVolume-volume < inst.MinLot {
		return pos.RemainingVolume
	}
	return volume
}
