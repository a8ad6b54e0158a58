package models

import (
	"math"
	"testing"
	"time"
)

func TestPositionUpdatePriceLong(t *testing.T) {
	p := &Position{
		Direction:       DirectionLong,
		EntryPrice:      1.0850,
		OpenedVolume:    1.0,
		RemainingVolume: 1.0,
	}
	p.UpdatePrice(1.0880, 0.0001)

	if math.Abs(p.ProfitPips-30) > 1e-6 {
		t.Errorf("ProfitPips = %f, want 30", p.ProfitPips)
	}
	if math.Abs(p.Profit-30*0.0001*1.0) > 1e-9 {
		t.Errorf("Profit = %f", p.Profit)
	}
}

func TestPositionUpdatePriceShort(t *testing.T) {
	p := &Position{
		Direction:       DirectionShort,
		EntryPrice:      149.50,
		OpenedVolume:    0.5,
		RemainingVolume: 0.5,
	}
	p.UpdatePrice(149.10, 0.01)

	if math.Abs(p.ProfitPips-40) > 1e-6 {
		t.Errorf("ProfitPips = %f, want 40 for short in profit", p.ProfitPips)
	}
}

func TestPositionProfitScalesWithRemainingVolume(t *testing.T) {
	p := &Position{
		Direction:       DirectionLong,
		EntryPrice:      1.0850,
		OpenedVolume:    1.0,
		RemainingVolume: 0.5,
	}
	p.UpdatePrice(1.0880, 0.0001)

	if math.Abs(p.Profit-30*0.0001*0.5) > 1e-9 {
		t.Errorf("Profit = %f, want scaled by remaining volume", p.Profit)
	}
}

func TestInstrumentRoundLot(t *testing.T) {
	inst := Instrument{MinLot: 0.01, MaxLot: 100.0, LotStep: 0.01}

	tests := []struct {
		in   float64
		want float64
	}{
		{0.123, 0.12},
		{0.005, 0.01}, // rounds up to a whole step
		{0.004, 0},    // below min after rounding
		{150, 100},    // clamped to max
		{1.0, 1.0},
	}
	for _, tt := range tests {
		if got := inst.RoundLot(tt.in); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("RoundLot(%f) = %f, want %f", tt.in, got, tt.want)
		}
	}
}

func TestQuoteMid(t *testing.T) {
	q := Quote{Bid: 1.0848, Ask: 1.0852}
	if math.Abs(q.Mid()-1.0850) > 1e-9 {
		t.Errorf("Mid = %f, want 1.0850", q.Mid())
	}
}

func TestRuleMatchesSession(t *testing.T) {
	asian := SessionAsian
	rule := ProfitTakingRule{SessionFilter: &asian}

	if rule.MatchesSession([]SessionName{SessionLondon}) {
		t.Error("rule matched wrong session")
	}
	if !rule.MatchesSession([]SessionName{SessionLondon, SessionAsian}) {
		t.Error("rule did not match its session in an overlap")
	}

	unfiltered := ProfitTakingRule{}
	if !unfiltered.MatchesSession(nil) {
		t.Error("unfiltered rule must match any session set")
	}
}

func TestSharesGroup(t *testing.T) {
	instruments := DefaultInstruments()
	if !SharesGroup(instruments["EURUSD"], instruments["EURGBP"]) {
		t.Error("EURUSD and EURGBP share eur_pairs")
	}
	if SharesGroup(instruments["USDJPY"], instruments["AUDUSD"]) {
		t.Error("USDJPY and AUDUSD share no group")
	}
}

func TestPreferredForSession(t *testing.T) {
	instruments := DefaultInstruments()

	preferred := PreferredForSession(instruments, SessionAsian, 3)
	if len(preferred) != 3 {
		t.Fatalf("got %d symbols, want 3", len(preferred))
	}
	// AUDJPY and GBPJPY carry the highest asian volatility (0.9).
	vol := func(s string) float64 { return instruments[s].Volatility[SessionAsian] }
	for i := 1; i < len(preferred); i++ {
		if vol(preferred[i]) > vol(preferred[i-1]) {
			t.Errorf("preferred not sorted by volatility: %v", preferred)
		}
	}
}

func TestSessionContainsWrap(t *testing.T) {
	s := Session{
		Name:        SessionAsian,
		StartMinute: 22 * 60,
		EndMinute:   4 * 60,
		Location:    time.UTC,
		Enabled:     true,
	}
	if !s.Contains(time.Date(2024, 3, 15, 23, 0, 0, 0, time.UTC)) {
		t.Error("wrap window must contain 23:00")
	}
	if s.Contains(time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)) {
		t.Error("wrap window must not contain 10:00")
	}
}
