// Package analytics derives performance metrics from the realized trade
// ledger and the equity curve.
package analytics

import (
	"math"
	"sort"

	"session-trader/internal/models"
)

// Metrics summarizes realized performance over a set of closed trades.
// All fields are zero when the ledger is empty.
type Metrics struct {
	TotalTrades   int
	Wins          int
	Losses        int
	WinRate       float64
	TotalProfit   float64
	GrossProfit   float64
	GrossLoss     float64 // positive magnitude
	ProfitFactor  float64
	AverageWin    float64
	AverageLoss   float64 // positive magnitude
	Expectancy    float64
	SharpeRatio   float64
	SortinoRatio  float64
	CalmarRatio   float64
	ValueAtRisk95 float64 // 5th percentile of per-trade profit
	MaxDrawdown   float64 // fraction, from the equity curve
	MaxWinStreak  int
	MaxLossStreak int
	CurrentStreak int // positive counts wins, negative counts losses
}

// Report is the full analytics output with per-session and per-symbol
// breakdowns of the overall metrics.
type Report struct {
	Overall   Metrics
	BySession map[models.SessionName]Metrics
	BySymbol  map[string]Metrics
}

// Compute builds a report from the closed-trade ledger and the sampled
// equity curve. Records are expected in close-time order; breakdown maps are
// always non-nil.
func Compute(records []models.TradeRecord, equity []models.EquityPoint) Report {
	report := Report{
		Overall:   computeMetrics(records, equity),
		BySession: make(map[models.SessionName]Metrics),
		BySymbol:  make(map[string]Metrics),
	}

	bySession := make(map[models.SessionName][]models.TradeRecord)
	bySymbol := make(map[string][]models.TradeRecord)
	for _, r := range records {
		if r.Session != "" {
			bySession[r.Session] = append(bySession[r.Session], r)
		}
		bySymbol[r.Symbol] = append(bySymbol[r.Symbol], r)
	}
	for session, recs := range bySession {
		report.BySession[session] = computeMetrics(recs, nil)
	}
	for symbol, recs := range bySymbol {
		report.BySymbol[symbol] = computeMetrics(recs, nil)
	}
	return report
}

func computeMetrics(records []models.TradeRecord, equity []models.EquityPoint) Metrics {
	var m Metrics
	if len(records) == 0 {
		return m
	}

	profits := make([]float64, len(records))
	winStreak, lossStreak := 0, 0
	for i, r := range records {
		profits[i] = r.Profit
		m.TotalProfit += r.Profit
		if r.Profit > 0 {
			m.Wins++
			m.GrossProfit += r.Profit
			winStreak++
			lossStreak = 0
			if winStreak > m.MaxWinStreak {
				m.MaxWinStreak = winStreak
			}
		} else {
			m.Losses++
			m.GrossLoss += -r.Profit
			lossStreak++
			winStreak = 0
			if lossStreak > m.MaxLossStreak {
				m.MaxLossStreak = lossStreak
			}
		}
	}
	m.TotalTrades = len(records)
	m.WinRate = float64(m.Wins) / float64(m.TotalTrades)
	if winStreak > 0 {
		m.CurrentStreak = winStreak
	} else {
		m.CurrentStreak = -lossStreak
	}

	if m.GrossLoss > 0 {
		m.ProfitFactor = m.GrossProfit / m.GrossLoss
	} else if m.GrossProfit > 0 {
		m.ProfitFactor = math.Inf(1)
	}
	if m.Wins > 0 {
		m.AverageWin = m.GrossProfit / float64(m.Wins)
	}
	if m.Losses > 0 {
		m.AverageLoss = m.GrossLoss / float64(m.Losses)
	}
	m.Expectancy = m.WinRate*m.AverageWin - (1-m.WinRate)*m.AverageLoss

	mean, stddev := meanStddev(profits)
	if stddev > 0 {
		m.SharpeRatio = mean / stddev
	}
	if dd := downsideDeviation(profits); dd > 0 {
		m.SortinoRatio = mean / dd
	}
	m.ValueAtRisk95 = percentile(profits, 0.05)

	if len(equity) > 1 {
		m.MaxDrawdown = maxDrawdown(equity)
		first := equity[0].Equity
		if m.MaxDrawdown > 0 && first > 0 {
			totalReturn := (equity[len(equity)-1].Equity - first) / first
			m.CalmarRatio = totalReturn / m.MaxDrawdown
		}
	}
	return m
}

func meanStddev(values []float64) (mean, stddev float64) {
	n := float64(len(values))
	for _, v := range values {
		mean += v
	}
	mean /= n

	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= n
	return mean, math.Sqrt(variance)
}

// downsideDeviation measures dispersion of losing trades only, against a
// zero target return.
func downsideDeviation(values []float64) float64 {
	var sum float64
	for _, v := range values {
		if v < 0 {
			sum += v * v
		}
	}
	return math.Sqrt(sum / float64(len(values)))
}

// percentile returns the value at rank p (0..1) using linear interpolation
// between closest ranks.
func percentile(values []float64, p float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p * float64(len(sorted)-1)
	lo := int(rank)
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// maxDrawdown returns the largest peak-to-trough equity decline as a
// fraction of the peak.
func maxDrawdown(equity []models.EquityPoint) float64 {
	var peak, worst float64
	for _, p := range equity {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			dd := (peak - p.Equity) / peak
			if dd > worst {
				worst = dd
			}
		}
	}
	return worst
}
