package analytics

import (
	"math"
	"testing"
	"time"

	"session-trader/internal/models"
)

func record(symbol string, session models.SessionName, profit float64) models.TradeRecord {
	return models.TradeRecord{
		Symbol:    symbol,
		Session:   session,
		Profit:    profit,
		CloseTime: time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC),
	}
}

func TestComputeEmptyLedger(t *testing.T) {
	report := Compute(nil, nil)

	if report.Overall.TotalTrades != 0 || report.Overall.WinRate != 0 ||
		report.Overall.ProfitFactor != 0 || report.Overall.SharpeRatio != 0 {
		t.Errorf("empty ledger must yield zero metrics, got %+v", report.Overall)
	}
	if report.BySession == nil || report.BySymbol == nil {
		t.Error("breakdown maps must be non-nil")
	}
}

func TestComputeBasicMetrics(t *testing.T) {
	records := []models.TradeRecord{
		record("EURUSD", models.SessionLondon, 100),
		record("EURUSD", models.SessionLondon, 50),
		record("GBPUSD", models.SessionNewYork, -30),
		record("USDJPY", models.SessionAsian, 80),
	}

	m := Compute(records, nil).Overall
	if m.TotalTrades != 4 || m.Wins != 3 || m.Losses != 1 {
		t.Fatalf("counts = %d/%d/%d, want 4/3/1", m.TotalTrades, m.Wins, m.Losses)
	}
	if m.WinRate != 0.75 {
		t.Errorf("WinRate = %f, want 0.75", m.WinRate)
	}
	if m.TotalProfit != 200 {
		t.Errorf("TotalProfit = %f, want 200", m.TotalProfit)
	}
	if want := 230.0 / 30.0; math.Abs(m.ProfitFactor-want) > 1e-9 {
		t.Errorf("ProfitFactor = %f, want %f", m.ProfitFactor, want)
	}
	if m.AverageLoss != 30 {
		t.Errorf("AverageLoss = %f, want positive magnitude 30", m.AverageLoss)
	}
}

func TestComputeProfitFactorNoLosses(t *testing.T) {
	records := []models.TradeRecord{
		record("EURUSD", models.SessionLondon, 10),
		record("EURUSD", models.SessionLondon, 20),
	}

	m := Compute(records, nil).Overall
	if !math.IsInf(m.ProfitFactor, 1) {
		t.Errorf("ProfitFactor = %f with no losses, want +Inf", m.ProfitFactor)
	}
}

func TestComputeStreaks(t *testing.T) {
	records := []models.TradeRecord{
		record("EURUSD", models.SessionLondon, 10),
		record("EURUSD", models.SessionLondon, 10),
		record("EURUSD", models.SessionLondon, 10),
		record("EURUSD", models.SessionLondon, -5),
		record("EURUSD", models.SessionLondon, -5),
		record("EURUSD", models.SessionLondon, 10),
	}

	m := Compute(records, nil).Overall
	if m.MaxWinStreak != 3 {
		t.Errorf("MaxWinStreak = %d, want 3", m.MaxWinStreak)
	}
	if m.MaxLossStreak != 2 {
		t.Errorf("MaxLossStreak = %d, want 2", m.MaxLossStreak)
	}
	if m.CurrentStreak != 1 {
		t.Errorf("CurrentStreak = %d, want 1", m.CurrentStreak)
	}
}

func TestComputeBreakdowns(t *testing.T) {
	records := []models.TradeRecord{
		record("EURUSD", models.SessionLondon, 100),
		record("GBPUSD", models.SessionLondon, -50),
		record("USDJPY", models.SessionAsian, 30),
	}

	report := Compute(records, nil)
	london := report.BySession[models.SessionLondon]
	if london.TotalTrades != 2 || london.TotalProfit != 50 {
		t.Errorf("london breakdown = %+v, want 2 trades / 50 profit", london)
	}
	if asian := report.BySession[models.SessionAsian]; asian.WinRate != 1 {
		t.Errorf("asian WinRate = %f, want 1", asian.WinRate)
	}
	if eur := report.BySymbol["EURUSD"]; eur.TotalTrades != 1 || eur.TotalProfit != 100 {
		t.Errorf("EURUSD breakdown = %+v", eur)
	}
}

func TestComputeMaxDrawdownAndCalmar(t *testing.T) {
	base := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	equity := []models.EquityPoint{
		{Timestamp: base, Equity: 10000},
		{Timestamp: base.Add(1 * time.Hour), Equity: 11000},
		{Timestamp: base.Add(2 * time.Hour), Equity: 9900}, // 10% off the 11000 peak
		{Timestamp: base.Add(3 * time.Hour), Equity: 10500},
	}
	records := []models.TradeRecord{record("EURUSD", models.SessionLondon, 500)}

	m := Compute(records, equity).Overall
	if math.Abs(m.MaxDrawdown-0.1) > 1e-9 {
		t.Errorf("MaxDrawdown = %f, want 0.1", m.MaxDrawdown)
	}
	// Total return 5% over a 10% drawdown.
	if math.Abs(m.CalmarRatio-0.5) > 1e-9 {
		t.Errorf("CalmarRatio = %f, want 0.5", m.CalmarRatio)
	}
}

func TestComputeValueAtRisk(t *testing.T) {
	var records []models.TradeRecord
	// 1..100 in profit units: the 5th percentile sits near the low tail.
	for i := 1; i <= 100; i++ {
		records = append(records, record("EURUSD", models.SessionLondon, float64(i)))
	}

	m := Compute(records, nil).Overall
	if math.Abs(m.ValueAtRisk95-5.95) > 1e-9 {
		t.Errorf("ValueAtRisk95 = %f, want 5.95", m.ValueAtRisk95)
	}
}

func TestComputeSharpeAndSortino(t *testing.T) {
	records := []models.TradeRecord{
		record("EURUSD", models.SessionLondon, 10),
		record("EURUSD", models.SessionLondon, -10),
		record("EURUSD", models.SessionLondon, 10),
		record("EURUSD", models.SessionLondon, -10),
	}

	m := Compute(records, nil).Overall
	// Zero mean: both ratios are zero regardless of dispersion.
	if m.SharpeRatio != 0 || m.SortinoRatio != 0 {
		t.Errorf("ratios = %f/%f for zero-mean series, want 0/0", m.SharpeRatio, m.SortinoRatio)
	}

	winning := []models.TradeRecord{
		record("EURUSD", models.SessionLondon, 30),
		record("EURUSD", models.SessionLondon, -10),
		record("EURUSD", models.SessionLondon, 20),
	}
	m = Compute(winning, nil).Overall
	if m.SharpeRatio <= 0 {
		t.Errorf("SharpeRatio = %f for positive-mean series, want > 0", m.SharpeRatio)
	}
	if m.SortinoRatio <= m.SharpeRatio {
		t.Errorf("SortinoRatio = %f, want above Sharpe %f when losses are rare", m.SortinoRatio, m.SharpeRatio)
	}
}
