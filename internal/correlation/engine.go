// Package correlation computes pairwise return correlations for tracked
// instruments and groups them into correlated clusters.
package correlation

import (
	"math"
	"sort"
	"sync"

	"session-trader/internal/models"
)

// pairKey is a canonical (sorted) symbol pair.
type pairKey struct {
	a, b string
}

func makePairKey(a, b string) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{a, b}
}

// Matrix is an immutable snapshot of pairwise correlation coefficients.
// Pairs without enough overlapping history are absent, not zero.
type Matrix struct {
	coefficients map[pairKey]float64
	threshold    float64
	instruments  map[string]models.Instrument
}

// Coefficient returns the Pearson coefficient for a pair. ok is false when
// the pair lacks sufficient overlapping history (undetermined).
func (m *Matrix) Coefficient(a, b string) (coef float64, ok bool) {
	if m == nil {
		return 0, false
	}
	if a == b {
		return 1, true
	}
	coef, ok = m.coefficients[makePairKey(a, b)]
	return coef, ok
}

// Correlated reports whether two symbols are treated as correlated. A live
// coefficient with |r| at or above the threshold decides; when the pair is
// undetermined, static correlation group tags are used as a fallback.
func (m *Matrix) Correlated(a, b string) bool {
	if m == nil {
		return false
	}
	if a == b {
		return true
	}
	if coef, ok := m.coefficients[makePairKey(a, b)]; ok {
		return math.Abs(coef) >= m.threshold
	}
	ia, okA := m.instruments[a]
	ib, okB := m.instruments[b]
	if !okA || !okB {
		return false
	}
	return models.SharesGroup(ia, ib)
}

// CorrelatedWith returns the symbols from candidates correlated with symbol.
func (m *Matrix) CorrelatedWith(symbol string, candidates []string) []string {
	var out []string
	for _, c := range candidates {
		if c == symbol {
			continue
		}
		if m.Correlated(symbol, c) {
			out = append(out, c)
		}
	}
	return out
}

// Engine maintains rolling return series per instrument and recomputes the
// coefficient matrix on demand. Recomputation is O(instruments²) and is
// expected to run at a coarser cadence than the per-tick risk check.
type Engine struct {
	mu          sync.RWMutex
	window      int
	minHistory  int
	threshold   float64
	instruments map[string]models.Instrument

	lastClose map[string]float64
	returns   map[string][]float64
	matrix    *Matrix
}

// NewEngine creates a correlation engine. window is the rolling return
// window length, minHistory the minimum overlapping returns required before
// a pair coefficient is reported.
func NewEngine(window, minHistory int, threshold float64, instruments map[string]models.Instrument) *Engine {
	if window <= 0 {
		window = 64
	}
	if minHistory <= 0 {
		minHistory = 30
	}
	return &Engine{
		window:      window,
		minHistory:  minHistory,
		threshold:   threshold,
		instruments: instruments,
		lastClose:   make(map[string]float64),
		returns:     make(map[string][]float64),
	}
}

// AddBar records a closed bar price for a symbol and appends the derived
// return to its rolling window.
func (e *Engine) AddBar(symbol string, close float64) {
	if close <= 0 {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	prev, ok := e.lastClose[symbol]
	e.lastClose[symbol] = close
	if !ok || prev <= 0 {
		return
	}

	series := append(e.returns[symbol], close/prev-1)
	if len(series) > e.window {
		series = series[len(series)-e.window:]
	}
	e.returns[symbol] = series
}

// History returns the number of recorded returns for a symbol.
func (e *Engine) History(symbol string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.returns[symbol])
}

// Recompute rebuilds the coefficient matrix from the current return series
// and returns the new snapshot.
func (e *Engine) Recompute() *Matrix {
	e.mu.Lock()
	defer e.mu.Unlock()

	symbols := make([]string, 0, len(e.returns))
	for s := range e.returns {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	coefficients := make(map[pairKey]float64)
	for i := 0; i < len(symbols); i++ {
		for j := i + 1; j < len(symbols); j++ {
			a, b := e.returns[symbols[i]], e.returns[symbols[j]]
			n := len(a)
			if len(b) < n {
				n = len(b)
			}
			if n < e.minHistory {
				continue
			}
			// Align on the most recent n returns of each series.
			coef, ok := pearson(a[len(a)-n:], b[len(b)-n:])
			if !ok {
				continue
			}
			coefficients[makePairKey(symbols[i], symbols[j])] = coef
		}
	}

	e.matrix = &Matrix{
		coefficients: coefficients,
		threshold:    e.threshold,
		instruments:  e.instruments,
	}
	return e.matrix
}

// Matrix returns the last computed snapshot, which may be nil before the
// first Recompute.
func (e *Engine) Matrix() *Matrix {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.matrix
}

// pearson computes the Pearson correlation coefficient of two equal-length
// series. ok is false when either series has zero variance.
func pearson(a, b []float64) (coef float64, ok bool) {
	n := float64(len(a))
	if n < 2 {
		return 0, false
	}

	var meanA, meanB float64
	for i := range a {
		meanA += a[i]
		meanB += b[i]
	}
	meanA /= n
	meanB /= n

	var cov, varA, varB float64
	for i := range a {
		da := a[i] - meanA
		db := b[i] - meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return 0, false
	}
	return cov / math.Sqrt(varA*varB), true
}
