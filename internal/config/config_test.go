package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "session-trader/internal/errors"
	"session-trader/internal/models"
)

func validConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			TickInterval:       30 * time.Second,
			BrokerTimeout:      5 * time.Second,
			CorrelationEvery:   5 * time.Minute,
			CorrelationWindow:  64,
			CorrelationMinBars: 30,
		},
		Account: AccountConfig{Currency: "USD", Timezone: "UTC"},
		Risk: RiskConfig{
			MaxPositionSize:      0.02,
			MaxDailyLoss:         0.05,
			MaxDrawdown:          0.10,
			MaxOpenPositions:     5,
			MaxCorrelated:        3,
			CorrelationThreshold: 0.7,
		},
		Sessions: []SessionConfig{
			{Name: "london", Start: "08:00", End: "16:00", Timezone: "UTC", Enabled: true},
		},
	}
}

func TestLoadWritesTemplateOnFirstRun(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "fresh")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "config.toml")); err != nil {
		t.Errorf("template config not written: %v", err)
	}
	if cfg.Risk.MaxDailyLoss != 0.05 {
		t.Errorf("MaxDailyLoss = %f, want default 0.05", cfg.Risk.MaxDailyLoss)
	}
	if cfg.Engine.TickInterval != 30*time.Second {
		t.Errorf("TickInterval = %v, want 30s", cfg.Engine.TickInterval)
	}
	if len(cfg.Sessions) != 3 {
		t.Errorf("got %d sessions in template, want 3", len(cfg.Sessions))
	}
	if len(cfg.Rules) != 5 {
		t.Errorf("got %d rules in template, want 5", len(cfg.Rules))
	}
}

func TestValidateRejectsBadWindow(t *testing.T) {
	cfg := validConfig()
	cfg.Sessions[0].Start = "25:00"

	err := cfg.Validate()
	if !apperrors.Is(err, apperrors.ErrConfigInvalid) {
		t.Fatalf("Validate error = %v, want ErrConfigInvalid", err)
	}
}

func TestValidateRejectsBadTimezone(t *testing.T) {
	cfg := validConfig()
	cfg.Sessions[0].Timezone = "Mars/Olympus"

	if err := cfg.Validate(); !apperrors.Is(err, apperrors.ErrConfigInvalid) {
		t.Fatalf("Validate error = %v, want ErrConfigInvalid", err)
	}
}

func TestValidateRejectsDuplicateRuleNames(t *testing.T) {
	cfg := validConfig()
	rule := RuleConfig{
		Name: "dup", Enabled: true, IntervalMinutes: 15,
		MinProfitPips: 10, ProfitPercentage: 0.5, MaxTradesPerInterval: 3,
	}
	cfg.Rules = []RuleConfig{rule, rule}

	if err := cfg.Validate(); !apperrors.Is(err, apperrors.ErrConfigInvalid) {
		t.Fatalf("Validate error = %v, want ErrConfigInvalid", err)
	}
}

func TestValidateRejectsOutOfRangeRisk(t *testing.T) {
	for _, mutate := range []func(*Config){
		func(c *Config) { c.Risk.MaxPositionSize = 0 },
		func(c *Config) { c.Risk.MaxPositionSize = 1.5 },
		func(c *Config) { c.Risk.MaxDailyLoss = -0.1 },
		func(c *Config) { c.Risk.MaxOpenPositions = 0 },
		func(c *Config) { c.Risk.CorrelationThreshold = 1.2 },
	} {
		cfg := validConfig()
		mutate(cfg)
		if err := cfg.Validate(); !apperrors.Is(err, apperrors.ErrConfigInvalid) {
			t.Errorf("Validate accepted invalid risk config: %+v", cfg.Risk)
		}
	}
}

func TestParseWindow(t *testing.T) {
	tests := []struct {
		in      string
		hour    int
		minute  int
		wantErr bool
	}{
		{"00:00", 0, 0, false},
		{"08:30", 8, 30, false},
		{"23:59", 23, 59, false},
		{"24:00", 0, 0, true},
		{"12:60", 0, 0, true},
		{"8", 0, 0, true},
		{"", 0, 0, true},
	}
	for _, tt := range tests {
		h, m, err := ParseWindow(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseWindow(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && (h != tt.hour || m != tt.minute) {
			t.Errorf("ParseWindow(%q) = %d:%d, want %d:%d", tt.in, h, m, tt.hour, tt.minute)
		}
	}
}

func TestBuildSessionsWrapWindow(t *testing.T) {
	cfg := validConfig()
	cfg.Sessions = []SessionConfig{
		{Name: "asian", Start: "22:00", End: "04:00", Timezone: "UTC", Enabled: true},
	}

	sessions, err := cfg.BuildSessions()
	if err != nil {
		t.Fatalf("BuildSessions: %v", err)
	}
	s := sessions[0]
	if s.StartMinute != 22*60 || s.EndMinute != 4*60 {
		t.Fatalf("window = %d-%d, want 1320-240", s.StartMinute, s.EndMinute)
	}
	if !s.Contains(time.Date(2024, 3, 15, 23, 30, 0, 0, time.UTC)) {
		t.Error("wrap window must contain 23:30")
	}
	if s.Contains(time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)) {
		t.Error("wrap window must not contain 12:00")
	}
}

func TestBuildRulesDefaultsWhenEmpty(t *testing.T) {
	cfg := validConfig()
	rules := cfg.BuildRules()
	if len(rules) != len(models.DefaultProfitTakingRules()) {
		t.Errorf("got %d rules, want defaults", len(rules))
	}
}

func TestBuildRulesFilters(t *testing.T) {
	cfg := validConfig()
	cfg.Rules = []RuleConfig{{
		Name: "custom", Enabled: true, IntervalMinutes: 45,
		MinProfitPips: 12, ProfitPercentage: 0.4, MaxTradesPerInterval: 2,
		SessionFilter: "asian", SymbolFilter: "USDJPY",
	}}

	rules := cfg.BuildRules()
	if len(rules) != 1 {
		t.Fatalf("got %d rules, want 1", len(rules))
	}
	r := rules[0]
	if r.Interval != 45*time.Minute {
		t.Errorf("Interval = %v, want 45m", r.Interval)
	}
	if r.SessionFilter == nil || *r.SessionFilter != models.SessionAsian {
		t.Errorf("SessionFilter = %v, want asian", r.SessionFilter)
	}
	if r.SymbolFilter == nil || *r.SymbolFilter != "USDJPY" {
		t.Errorf("SymbolFilter = %v, want USDJPY", r.SymbolFilter)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := validConfig()
	cfg.Rules = []RuleConfig{{
		Name: "persisted", Enabled: false, IntervalMinutes: 30,
		MinProfitPips: 15, ProfitPercentage: 0.6, MaxTradesPerInterval: 4,
	}}

	if err := Save(cfg, dir); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load after Save: %v", err)
	}
	if len(loaded.Rules) != 1 || loaded.Rules[0].Name != "persisted" {
		t.Fatalf("rules after round trip = %+v", loaded.Rules)
	}
	if loaded.Rules[0].Enabled {
		t.Error("Enabled flag lost in round trip")
	}
	if loaded.Rules[0].IntervalMinutes != 30 {
		t.Errorf("IntervalMinutes = %d, want 30", loaded.Rules[0].IntervalMinutes)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BROKER_SERVER", "demo.example.net")
	t.Setenv("BROKER_LOGIN", "12345")

	dir := filepath.Join(t.TempDir(), "cfg")
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Broker.Server != "demo.example.net" {
		t.Errorf("Server = %q, want env override", cfg.Broker.Server)
	}
	if cfg.Broker.Login != 12345 {
		t.Errorf("Login = %d, want 12345", cfg.Broker.Login)
	}
}
