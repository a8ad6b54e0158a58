package models

// DefaultInstruments returns the built-in currency pair universe with pip
// values, lot limits, static correlation groups, and per-session volatility
// profiles.
func DefaultInstruments() map[string]Instrument {
	pairs := []Instrument{
		{
			Symbol: "EURUSD", BaseCurrency: "EUR", QuoteCurrency: "USD",
			PipValue: 0.0001, MinLot: 0.01, MaxLot: 100.0, LotStep: 0.01, Spread: 1.0,
			CorrelationGroups: []string{"majors", "eur_pairs"},
			SessionPreference: []SessionName{SessionLondon, SessionNewYork},
			Volatility:        map[SessionName]float64{SessionAsian: 0.3, SessionLondon: 0.8, SessionNewYork: 0.9},
		},
		{
			Symbol: "GBPUSD", BaseCurrency: "GBP", QuoteCurrency: "USD",
			PipValue: 0.0001, MinLot: 0.01, MaxLot: 100.0, LotStep: 0.01, Spread: 1.5,
			CorrelationGroups: []string{"majors", "gbp_pairs"},
			SessionPreference: []SessionName{SessionLondon, SessionNewYork},
			Volatility:        map[SessionName]float64{SessionAsian: 0.2, SessionLondon: 0.9, SessionNewYork: 0.8},
		},
		{
			Symbol: "USDJPY", BaseCurrency: "USD", QuoteCurrency: "JPY",
			PipValue: 0.01, MinLot: 0.01, MaxLot: 100.0, LotStep: 0.01, Spread: 1.2,
			CorrelationGroups: []string{"majors", "jpy_pairs"},
			SessionPreference: []SessionName{SessionAsian, SessionLondon},
			Volatility:        map[SessionName]float64{SessionAsian: 0.7, SessionLondon: 0.6, SessionNewYork: 0.5},
		},
		{
			Symbol: "AUDUSD", BaseCurrency: "AUD", QuoteCurrency: "USD",
			PipValue: 0.0001, MinLot: 0.01, MaxLot: 100.0, LotStep: 0.01, Spread: 1.3,
			CorrelationGroups: []string{"commodity", "aud_pairs"},
			SessionPreference: []SessionName{SessionAsian, SessionLondon},
			Volatility:        map[SessionName]float64{SessionAsian: 0.8, SessionLondon: 0.5, SessionNewYork: 0.4},
		},
		{
			Symbol: "USDCAD", BaseCurrency: "USD", QuoteCurrency: "CAD",
			PipValue: 0.0001, MinLot: 0.01, MaxLot: 100.0, LotStep: 0.01, Spread: 1.4,
			CorrelationGroups: []string{"commodity", "cad_pairs"},
			SessionPreference: []SessionName{SessionNewYork, SessionLondon},
			Volatility:        map[SessionName]float64{SessionAsian: 0.2, SessionLondon: 0.4, SessionNewYork: 0.7},
		},
		{
			Symbol: "NZDUSD", BaseCurrency: "NZD", QuoteCurrency: "USD",
			PipValue: 0.0001, MinLot: 0.01, MaxLot: 100.0, LotStep: 0.01, Spread: 1.6,
			CorrelationGroups: []string{"commodity", "nzd_pairs"},
			SessionPreference: []SessionName{SessionAsian, SessionLondon},
			Volatility:        map[SessionName]float64{SessionAsian: 0.6, SessionLondon: 0.4, SessionNewYork: 0.3},
		},
		{
			Symbol: "EURGBP", BaseCurrency: "EUR", QuoteCurrency: "GBP",
			PipValue: 0.0001, MinLot: 0.01, MaxLot: 100.0, LotStep: 0.01, Spread: 2.0,
			CorrelationGroups: []string{"crosses", "eur_pairs", "gbp_pairs"},
			SessionPreference: []SessionName{SessionLondon},
			Volatility:        map[SessionName]float64{SessionAsian: 0.1, SessionLondon: 0.6, SessionNewYork: 0.3},
		},
		{
			Symbol: "EURJPY", BaseCurrency: "EUR", QuoteCurrency: "JPY",
			PipValue: 0.01, MinLot: 0.01, MaxLot: 100.0, LotStep: 0.01, Spread: 1.8,
			CorrelationGroups: []string{"crosses", "eur_pairs", "jpy_pairs"},
			SessionPreference: []SessionName{SessionAsian, SessionLondon},
			Volatility:        map[SessionName]float64{SessionAsian: 0.8, SessionLondon: 0.7, SessionNewYork: 0.5},
		},
		{
			Symbol: "GBPJPY", BaseCurrency: "GBP", QuoteCurrency: "JPY",
			PipValue: 0.01, MinLot: 0.01, MaxLot: 100.0, LotStep: 0.01, Spread: 2.2,
			CorrelationGroups: []string{"crosses", "gbp_pairs", "jpy_pairs"},
			SessionPreference: []SessionName{SessionAsian, SessionLondon},
			Volatility:        map[SessionName]float64{SessionAsian: 0.9, SessionLondon: 0.8, SessionNewYork: 0.6},
		},
		{
			Symbol: "AUDJPY", BaseCurrency: "AUD", QuoteCurrency: "JPY",
			PipValue: 0.01, MinLot: 0.01, MaxLot: 100.0, LotStep: 0.01, Spread: 2.0,
			CorrelationGroups: []string{"commodity", "aud_pairs", "jpy_pairs"},
			SessionPreference: []SessionName{SessionAsian},
			Volatility:        map[SessionName]float64{SessionAsian: 0.9, SessionLondon: 0.5, SessionNewYork: 0.3},
		},
	}

	out := make(map[string]Instrument, len(pairs))
	for _, p := range pairs {
		out[p.Symbol] = p
	}
	return out
}

// SharesGroup reports whether two instruments share a static correlation
// group tag.
func SharesGroup(a, b Instrument) bool {
	for _, ga := range a.CorrelationGroups {
		for _, gb := range b.CorrelationGroups {
			if ga == gb {
				return true
			}
		}
	}
	return false
}

// PreferredForSession returns the symbols whose session preference includes
// the given session, ordered by descending volatility in that session.
func PreferredForSession(instruments map[string]Instrument, session SessionName, max int) []string {
	type ranked struct {
		symbol     string
		volatility float64
	}
	var candidates []ranked
	for symbol, inst := range instruments {
		for _, pref := range inst.SessionPreference {
			if pref == session {
				candidates = append(candidates, ranked{symbol, inst.Volatility[session]})
				break
			}
		}
	}
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0 && candidates[j].volatility > candidates[j-1].volatility; j-- {
			candidates[j], candidates[j-1] = candidates[j-1], candidates[j]
		}
	}
	if max > 0 && len(candidates) > max {
		candidates = candidates[:max]
	}
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.symbol
	}
	return out
}
