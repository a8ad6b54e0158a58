package profit

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	apperrors "session-trader/internal/errors"
	"session-trader/internal/models"
)

var t0 = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func scalpingRule() models.ProfitTakingRule {
	return models.ProfitTakingRule{
		Name:                 "Scalping Quick Profit",
		Enabled:              true,
		Interval:             15 * time.Minute,
		MinProfitPips:        10,
		ProfitPercentage:     0.5,
		MaxTradesPerInterval: 3,
	}
}

func longPosition(ticket int64, symbol string, volume, profitPips float64) *models.Position {
	return &models.Position{
		Ticket:          ticket,
		Symbol:          symbol,
		Direction:       models.DirectionLong,
		OpenedVolume:    volume,
		RemainingVolume: volume,
		ProfitPips:      profitPips,
		OpenTime:        t0.Add(-time.Hour),
	}
}

func newTestEngine(rules ...models.ProfitTakingRule) *Engine {
	return NewEngine(rules, models.DefaultInstruments(), zerolog.Nop())
}

func TestEvaluateClosesHalfThenHalfOfRemainder(t *testing.T) {
	e := newTestEngine(scalpingRule())
	pos := longPosition(1, "EURUSD", 1.0, 25)
	positions := []*models.Position{pos}

	out := e.Evaluate(t0, positions, nil)
	if len(out) != 1 {
		t.Fatalf("first pass produced %d instructions, want 1", len(out))
	}
	if out[0].Volume != 0.5 {
		t.Errorf("first close volume = %f, want 0.5", out[0].Volume)
	}
	if pos.RemainingVolume != 0.5 {
		t.Errorf("remaining = %f after first close, want 0.5", pos.RemainingVolume)
	}

	// Before the interval elapses the rule is not due.
	if out := e.Evaluate(t0.Add(10*time.Minute), positions, nil); len(out) != 0 {
		t.Fatalf("rule fired before interval elapsed: %v", out)
	}

	out = e.Evaluate(t0.Add(15*time.Minute), positions, nil)
	if len(out) != 1 {
		t.Fatalf("second pass produced %d instructions, want 1", len(out))
	}
	if out[0].Volume != 0.25 {
		t.Errorf("second close volume = %f, want 0.25", out[0].Volume)
	}
	if out[0].Rule != "Scalping Quick Profit" || out[0].Reason != models.CloseReasonProfitRule {
		t.Errorf("instruction tagged %q/%q", out[0].Rule, out[0].Reason)
	}
}

func TestFireCountsTrackCurrentWindow(t *testing.T) {
	e := newTestEngine(scalpingRule())
	positions := []*models.Position{longPosition(1, "EURUSD", 1.0, 25)}

	counts := e.FireCounts(t0)
	if counts["Scalping Quick Profit"] != 0 {
		t.Errorf("counts before any fire = %v, want 0", counts)
	}

	if out := e.Evaluate(t0, positions, nil); len(out) != 1 {
		t.Fatalf("expected one close, got %d", len(out))
	}
	counts = e.FireCounts(t0)
	if counts["Scalping Quick Profit"] != 1 {
		t.Errorf("counts after fire = %v, want 1", counts)
	}

	// Fires age out of the count once the rate-limit window passes.
	counts = e.FireCounts(t0.Add(16 * time.Minute))
	if counts["Scalping Quick Profit"] != 0 {
		t.Errorf("counts after window = %v, want 0", counts)
	}
}

func TestEvaluateSkipsPositionsBelowThreshold(t *testing.T) {
	e := newTestEngine(scalpingRule())
	positions := []*models.Position{
		longPosition(1, "EURUSD", 1.0, 8),  // below 10 pip minimum
		longPosition(2, "GBPUSD", 1.0, -5), // losing
	}

	if out := e.Evaluate(t0, positions, nil); len(out) != 0 {
		t.Fatalf("expected no instructions, got %v", out)
	}
}

func TestEvaluateSkipsStalePositions(t *testing.T) {
	e := newTestEngine(scalpingRule())
	pos := longPosition(1, "EURUSD", 1.0, 25)
	pos.Stale = true

	if out := e.Evaluate(t0, []*models.Position{pos}, nil); len(out) != 0 {
		t.Fatalf("stale position must not be closed, got %v", out)
	}
	if pos.RemainingVolume != 1.0 {
		t.Errorf("stale position volume changed to %f", pos.RemainingVolume)
	}
}

func TestEvaluateTakesMostProfitableFirst(t *testing.T) {
	rule := scalpingRule()
	rule.MaxTradesPerInterval = 1
	e := newTestEngine(rule)

	positions := []*models.Position{
		longPosition(1, "EURUSD", 1.0, 12),
		longPosition(2, "GBPUSD", 1.0, 40),
	}

	out := e.Evaluate(t0, positions, nil)
	if len(out) != 1 {
		t.Fatalf("got %d instructions, want 1 under rate limit", len(out))
	}
	if out[0].Ticket != 2 {
		t.Errorf("closed ticket %d first, want the most profitable (2)", out[0].Ticket)
	}
}

func TestEvaluateRateLimitPerInterval(t *testing.T) {
	rule := scalpingRule()
	rule.MaxTradesPerInterval = 2
	e := newTestEngine(rule)

	positions := []*models.Position{
		longPosition(1, "EURUSD", 1.0, 30),
		longPosition(2, "GBPUSD", 1.0, 25),
		longPosition(3, "USDJPY", 1.0, 20),
	}

	out := e.Evaluate(t0, positions, nil)
	if len(out) != 2 {
		t.Fatalf("got %d instructions, want 2 (rate limit)", len(out))
	}

	// After a full interval the fire window has cleared.
	out = e.Evaluate(t0.Add(15*time.Minute), positions, nil)
	if len(out) != 2 {
		t.Errorf("got %d instructions after window cleared, want 2", len(out))
	}
}

func TestEvaluateStacksRulesInDeclarationOrder(t *testing.T) {
	second := scalpingRule()
	second.Name = "Follow Up"
	e := newTestEngine(scalpingRule(), second)

	pos := longPosition(1, "EURUSD", 1.0, 25)
	out := e.Evaluate(t0, []*models.Position{pos}, nil)

	if len(out) != 2 {
		t.Fatalf("got %d instructions, want 2 stacked", len(out))
	}
	if out[0].Rule != "Scalping Quick Profit" || out[1].Rule != "Follow Up" {
		t.Errorf("rule order = %q, %q", out[0].Rule, out[1].Rule)
	}
	if out[0].Volume != 0.5 || out[1].Volume != 0.25 {
		t.Errorf("volumes = %f, %f; want 0.5 then 0.25 of the remainder", out[0].Volume, out[1].Volume)
	}
	if pos.RemainingVolume != 0.25 {
		t.Errorf("remaining = %f, want 0.25", pos.RemainingVolume)
	}
}

func TestEvaluateSessionFilter(t *testing.T) {
	asian := models.SessionAsian
	rule := scalpingRule()
	rule.Name = "Asian Only"
	rule.SessionFilter = &asian
	e := newTestEngine(rule)

	pos := longPosition(1, "USDJPY", 1.0, 25)

	if out := e.Evaluate(t0, []*models.Position{pos}, []models.SessionName{models.SessionLondon}); len(out) != 0 {
		t.Fatalf("rule fired outside its session: %v", out)
	}
	if out := e.Evaluate(t0, []*models.Position{pos}, []models.SessionName{models.SessionAsian}); len(out) != 1 {
		t.Fatal("rule did not fire in its session")
	}
}

func TestEvaluateSymbolFilter(t *testing.T) {
	symbol := "EURUSD"
	rule := scalpingRule()
	rule.SymbolFilter = &symbol
	e := newTestEngine(rule)

	positions := []*models.Position{
		longPosition(1, "GBPUSD", 1.0, 30),
		longPosition(2, "EURUSD", 1.0, 25),
	}

	out := e.Evaluate(t0, positions, nil)
	if len(out) != 1 || out[0].Symbol != "EURUSD" {
		t.Fatalf("symbol filter not honored: %v", out)
	}
}

func TestEvaluateClosesRemainderBelowMinLot(t *testing.T) {
	e := newTestEngine(scalpingRule())
	pos := longPosition(1, "EURUSD", 0.015, 25)

	out := e.Evaluate(t0, []*models.Position{pos}, nil)
	if len(out) != 1 {
		t.Fatalf("got %d instructions, want 1", len(out))
	}
	// Half of 0.015 leaves a remainder below the 0.01 minimum lot, so the
	// whole position is closed.
	if out[0].Volume != 0.015 {
		t.Errorf("close volume = %f, want full 0.015", out[0].Volume)
	}
	if pos.RemainingVolume != 0 {
		t.Errorf("remaining = %f, want 0", pos.RemainingVolume)
	}
}

func TestDisabledRuleNeverFires(t *testing.T) {
	rule := scalpingRule()
	rule.Enabled = false
	e := newTestEngine(rule)

	pos := longPosition(1, "EURUSD", 1.0, 25)
	if out := e.Evaluate(t0, []*models.Position{pos}, nil); len(out) != 0 {
		t.Fatalf("disabled rule fired: %v", out)
	}

	if err := e.SetEnabled(rule.Name, true); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	if out := e.Evaluate(t0, []*models.Position{pos}, nil); len(out) != 1 {
		t.Fatal("re-enabled rule did not fire")
	}
}

func TestRegistryOperations(t *testing.T) {
	e := newTestEngine(scalpingRule())

	if err := e.AddRule(scalpingRule()); !errors.Is(err, apperrors.ErrRuleExists) {
		t.Errorf("duplicate AddRule error = %v, want ErrRuleExists", err)
	}

	extra := scalpingRule()
	extra.Name = "Extra"
	if err := e.AddRule(extra); err != nil {
		t.Fatalf("AddRule: %v", err)
	}
	if got := e.Rules(); len(got) != 2 || got[1].Name != "Extra" {
		t.Errorf("Rules() = %v, want appended Extra", got)
	}

	if _, err := e.Rule("missing"); !errors.Is(err, apperrors.ErrRuleNotFound) {
		t.Errorf("Rule(missing) error = %v, want ErrRuleNotFound", err)
	}
	if err := e.RemoveRule("missing"); !errors.Is(err, apperrors.ErrRuleNotFound) {
		t.Errorf("RemoveRule(missing) error = %v, want ErrRuleNotFound", err)
	}
	if err := e.RemoveRule("Extra"); err != nil {
		t.Fatalf("RemoveRule: %v", err)
	}
	if got := e.Rules(); len(got) != 1 {
		t.Errorf("Rules() = %v after removal, want 1", got)
	}
}
