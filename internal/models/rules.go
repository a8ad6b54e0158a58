package models

import "time"

// ProfitTakingRule describes a time-interval partial profit-taking rule.
// The name is the rule's identity; rules are looked up and toggled by name.
type ProfitTakingRule struct {
	Name                 string
	Enabled              bool
	Interval             time.Duration
	MinProfitPips        float64
	ProfitPercentage     float64 // fraction of remaining volume, 0 < p <= 1
	MaxTradesPerInterval int
	SessionFilter        *SessionName // nil means any session
	SymbolFilter         *string      // nil means any symbol
}

// MatchesSession reports whether the rule applies given the active sessions.
func (r ProfitTakingRule) MatchesSession(active []SessionName) bool {
	if r.SessionFilter == nil {
		return true
	}
	for _, s := range active {
		if s == *r.SessionFilter {
			return true
		}
	}
	return false
}

// MatchesSymbol reports whether the rule applies to the given symbol.
func (r ProfitTakingRule) MatchesSymbol(symbol string) bool {
	return r.SymbolFilter == nil || *r.SymbolFilter == symbol
}

// DefaultProfitTakingRules returns the built-in rule set.
func DefaultProfitTakingRules() []ProfitTakingRule {
	asian := SessionAsian
	london := SessionLondon
	return []ProfitTakingRule{
		{
			Name:                 "Scalping Quick Profit",
			Enabled:              true,
			Interval:             15 * time.Minute,
			MinProfitPips:        10,
			ProfitPercentage:     0.5,
			MaxTradesPerInterval: 3,
		},
		{
			Name:                 "Medium Term Profit",
			Enabled:              true,
			Interval:             60 * time.Minute,
			MinProfitPips:        20,
			ProfitPercentage:     0.7,
			MaxTradesPerInterval: 5,
		},
		{
			Name:                 "Session End Profit",
			Enabled:              true,
			Interval:             240 * time.Minute,
			MinProfitPips:        30,
			ProfitPercentage:     0.8,
			MaxTradesPerInterval: 10,
		},
		{
			Name:                 "Asian Session Profit",
			Enabled:              true,
			Interval:             120 * time.Minute,
			MinProfitPips:        15,
			ProfitPercentage:     0.6,
			MaxTradesPerInterval: 3,
			SessionFilter:        &asian,
		},
		{
			Name:                 "London Session Profit",
			Enabled:              true,
			Interval:             90 * time.Minute,
			MinProfitPips:        25,
			ProfitPercentage:     0.7,
			MaxTradesPerInterval: 5,
			SessionFilter:        &london,
		},
	}
}
