// Package config provides configuration management for the control engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	apperrors "session-trader/internal/errors"
	"session-trader/internal/models"
)

// Config holds all application configuration.
type Config struct {
	Engine   EngineConfig       `mapstructure:"engine"`
	Account  AccountConfig      `mapstructure:"account"`
	Risk     RiskConfig         `mapstructure:"risk"`
	Sessions []SessionConfig    `mapstructure:"sessions"`
	Rules    []RuleConfig       `mapstructure:"rules"`
	Broker   BrokerConfig       `mapstructure:"broker"`
	Symbols  []string           `mapstructure:"symbols"`
}

// EngineConfig holds control loop configuration.
type EngineConfig struct {
	TickInterval       time.Duration `mapstructure:"tick_interval"`
	BrokerTimeout      time.Duration `mapstructure:"broker_timeout"`
	CorrelationEvery   time.Duration `mapstructure:"correlation_every"`
	CorrelationWindow  int           `mapstructure:"correlation_window"`
	CorrelationMinBars int           `mapstructure:"correlation_min_bars"`
}

// AccountConfig holds account-level configuration.
type AccountConfig struct {
	Currency string `mapstructure:"currency"`
	Timezone string `mapstructure:"timezone"`
}

// RiskConfig holds risk management configuration.
type RiskConfig struct {
	MaxPositionSize      float64 `mapstructure:"max_position_size"`
	MaxDailyLoss         float64 `mapstructure:"max_daily_loss"`
	MaxDrawdown          float64 `mapstructure:"max_drawdown"`
	MaxOpenPositions     int     `mapstructure:"max_open_positions"`
	MaxCorrelated        int     `mapstructure:"max_correlated"`
	CorrelationThreshold float64 `mapstructure:"correlation_threshold"`
	StopLossPips         float64 `mapstructure:"stop_loss_pips"`
	TakeProfitPips       float64 `mapstructure:"take_profit_pips"`
	TrailingStop         bool    `mapstructure:"trailing_stop"`
	TrailingStopPips     float64 `mapstructure:"trailing_stop_pips"`
	DenyOversized        bool    `mapstructure:"deny_oversized"`
}

// SessionConfig holds a market session window in "HH:MM" form.
type SessionConfig struct {
	Name     string `mapstructure:"name"`
	Start    string `mapstructure:"start"`
	End      string `mapstructure:"end"`
	Timezone string `mapstructure:"timezone"`
	Enabled  bool   `mapstructure:"enabled"`
}

// RuleConfig holds a profit-taking rule definition.
type RuleConfig struct {
	Name                 string  `mapstructure:"name"`
	Enabled              bool    `mapstructure:"enabled"`
	IntervalMinutes      int     `mapstructure:"interval_minutes"`
	MinProfitPips        float64 `mapstructure:"min_profit_pips"`
	ProfitPercentage     float64 `mapstructure:"profit_percentage"`
	MaxTradesPerInterval int     `mapstructure:"max_trades_per_interval"`
	SessionFilter        string  `mapstructure:"session_filter"`
	SymbolFilter         string  `mapstructure:"symbol_filter"`
}

// BrokerConfig holds broker adapter configuration.
type BrokerConfig struct {
	Name           string  `mapstructure:"name"`
	Server         string  `mapstructure:"server"`
	Login          int64   `mapstructure:"login"`
	Password       string  `mapstructure:"password"`
	PaperTrading   bool    `mapstructure:"paper_trading"`
	InitialBalance float64 `mapstructure:"initial_balance"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/session-trader"
	}
	return filepath.Join(home, ".config", "session-trader")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if err := writeTemplateConfig(configDir); err != nil {
				return nil, err
			}
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("reading generated config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("reading config.toml: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.tick_interval", "30s")
	v.SetDefault("engine.broker_timeout", "5s")
	v.SetDefault("engine.correlation_every", "5m")
	v.SetDefault("engine.correlation_window", 64)
	v.SetDefault("engine.correlation_min_bars", 30)
	v.SetDefault("account.currency", "USD")
	v.SetDefault("account.timezone", "UTC")
	v.SetDefault("risk.max_position_size", 0.02)
	v.SetDefault("risk.max_daily_loss", 0.05)
	v.SetDefault("risk.max_drawdown", 0.10)
	v.SetDefault("risk.max_open_positions", 5)
	v.SetDefault("risk.max_correlated", 3)
	v.SetDefault("risk.correlation_threshold", 0.7)
	v.SetDefault("risk.stop_loss_pips", 50.0)
	v.SetDefault("risk.take_profit_pips", 100.0)
	v.SetDefault("risk.trailing_stop", false)
	v.SetDefault("risk.trailing_stop_pips", 20.0)
	v.SetDefault("broker.paper_trading", true)
	v.SetDefault("broker.initial_balance", 10000.0)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BROKER_SERVER"); v != "" {
		cfg.Broker.Server = v
	}
	if v := os.Getenv("BROKER_LOGIN"); v != "" {
		if login, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Broker.Login = login
		}
	}
	if v := os.Getenv("BROKER_PASSWORD"); v != "" {
		cfg.Broker.Password = v
	}
}

// Validate validates the configuration. Session windows and rule names are
// checked here so that malformed config never reaches the evaluation loop.
func (c *Config) Validate() error {
	if c.Risk.MaxPositionSize <= 0 || c.Risk.MaxPositionSize > 1 {
		return apperrors.NewConfigError("risk", "max_position_size", c.Risk.MaxPositionSize, "must be in (0, 1]")
	}
	if c.Risk.MaxDailyLoss <= 0 || c.Risk.MaxDailyLoss > 1 {
		return apperrors.NewConfigError("risk", "max_daily_loss", c.Risk.MaxDailyLoss, "must be in (0, 1]")
	}
	if c.Risk.MaxOpenPositions <= 0 {
		return apperrors.NewConfigError("risk", "max_open_positions", c.Risk.MaxOpenPositions, "must be positive")
	}
	if c.Risk.CorrelationThreshold <= 0 || c.Risk.CorrelationThreshold > 1 {
		return apperrors.NewConfigError("risk", "correlation_threshold", c.Risk.CorrelationThreshold, "must be in (0, 1]")
	}

	if _, err := time.LoadLocation(c.Account.Timezone); err != nil {
		return apperrors.NewConfigError("account", "timezone", c.Account.Timezone, "unknown timezone")
	}

	for _, s := range c.Sessions {
		if _, _, err := ParseWindow(s.Start); err != nil {
			return apperrors.NewConfigError("sessions", "start", s.Start, err.Error())
		}
		if _, _, err := ParseWindow(s.End); err != nil {
			return apperrors.NewConfigError("sessions", "end", s.End, err.Error())
		}
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return apperrors.NewConfigError("sessions", "timezone", s.Timezone, "unknown timezone")
		}
	}

	seen := make(map[string]bool)
	for _, r := range c.Rules {
		if r.Name == "" {
			return apperrors.NewConfigError("rules", "name", r.Name, "must not be empty")
		}
		if seen[r.Name] {
			return apperrors.NewConfigError("rules", "name", r.Name, "duplicate rule name")
		}
		seen[r.Name] = true
		if r.IntervalMinutes <= 0 {
			return apperrors.NewConfigError("rules", "interval_minutes", r.IntervalMinutes, "must be positive")
		}
		if r.ProfitPercentage <= 0 || r.ProfitPercentage > 1 {
			return apperrors.NewConfigError("rules", "profit_percentage", r.ProfitPercentage, "must be in (0, 1]")
		}
		if r.MaxTradesPerInterval <= 0 {
			return apperrors.NewConfigError("rules", "max_trades_per_interval", r.MaxTradesPerInterval, "must be positive")
		}
	}

	return nil
}

// Save writes the configuration back to config.toml in configDir. Used by
// the rule management commands to persist registry edits.
func Save(cfg *Config, configDir string) error {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("engine", map[string]interface{}{
		"tick_interval":        cfg.Engine.TickInterval.String(),
		"broker_timeout":       cfg.Engine.BrokerTimeout.String(),
		"correlation_every":    cfg.Engine.CorrelationEvery.String(),
		"correlation_window":   cfg.Engine.CorrelationWindow,
		"correlation_min_bars": cfg.Engine.CorrelationMinBars,
	})
	v.Set("account", map[string]interface{}{
		"currency": cfg.Account.Currency,
		"timezone": cfg.Account.Timezone,
	})
	v.Set("risk", map[string]interface{}{
		"max_position_size":     cfg.Risk.MaxPositionSize,
		"max_daily_loss":        cfg.Risk.MaxDailyLoss,
		"max_drawdown":          cfg.Risk.MaxDrawdown,
		"max_open_positions":    cfg.Risk.MaxOpenPositions,
		"max_correlated":        cfg.Risk.MaxCorrelated,
		"correlation_threshold": cfg.Risk.CorrelationThreshold,
		"stop_loss_pips":        cfg.Risk.StopLossPips,
		"take_profit_pips":      cfg.Risk.TakeProfitPips,
		"trailing_stop":         cfg.Risk.TrailingStop,
		"trailing_stop_pips":    cfg.Risk.TrailingStopPips,
		"deny_oversized":        cfg.Risk.DenyOversized,
	})
	v.Set("broker", map[string]interface{}{
		"name":            cfg.Broker.Name,
		"server":          cfg.Broker.Server,
		"login":           cfg.Broker.Login,
		"password":        cfg.Broker.Password,
		"paper_trading":   cfg.Broker.PaperTrading,
		"initial_balance": cfg.Broker.InitialBalance,
	})
	v.Set("symbols", cfg.Symbols)

	sessions := make([]map[string]interface{}, 0, len(cfg.Sessions))
	for _, s := range cfg.Sessions {
		sessions = append(sessions, map[string]interface{}{
			"name":     s.Name,
			"start":    s.Start,
			"end":      s.End,
			"timezone": s.Timezone,
			"enabled":  s.Enabled,
		})
	}
	v.Set("sessions", sessions)

	rules := make([]map[string]interface{}, 0, len(cfg.Rules))
	for _, r := range cfg.Rules {
		rules = append(rules, map[string]interface{}{
			"name":                    r.Name,
			"enabled":                 r.Enabled,
			"interval_minutes":        r.IntervalMinutes,
			"min_profit_pips":         r.MinProfitPips,
			"profit_percentage":       r.ProfitPercentage,
			"max_trades_per_interval": r.MaxTradesPerInterval,
			"session_filter":          r.SessionFilter,
			"symbol_filter":           r.SymbolFilter,
		})
	}
	v.Set("rules", rules)

	return v.WriteConfigAs(filepath.Join(configDir, "config.toml"))
}

// ParseWindow parses an "HH:MM" time-of-day string into hour and minute.
func ParseWindow(s string) (hour, minute int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("time must be in HH:MM format")
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("hour must be between 00 and 23")
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("minute must be between 00 and 59")
	}
	return hour, minute, nil
}

// BuildSessions converts the session configuration into domain sessions.
// Validate must have succeeded before calling this.
func (c *Config) BuildSessions() ([]models.Session, error) {
	sessions := make([]models.Session, 0, len(c.Sessions))
	for _, sc := range c.Sessions {
		sh, sm, err := ParseWindow(sc.Start)
		if err != nil {
			return nil, apperrors.NewConfigError("sessions", "start", sc.Start, err.Error())
		}
		eh, em, err := ParseWindow(sc.End)
		if err != nil {
			return nil, apperrors.NewConfigError("sessions", "end", sc.End, err.Error())
		}
		loc, err := time.LoadLocation(sc.Timezone)
		if err != nil {
			return nil, apperrors.NewConfigError("sessions", "timezone", sc.Timezone, "unknown timezone")
		}
		sessions = append(sessions, models.Session{
			Name:        models.SessionName(sc.Name),
			StartMinute: sh*60 + sm,
			EndMinute:   eh*60 + em,
			Location:    loc,
			Enabled:     sc.Enabled,
		})
	}
	return sessions, nil
}

// BuildRules converts rule configuration into domain rules. When no rules
// are configured, the default set is returned.
func (c *Config) BuildRules() []models.ProfitTakingRule {
	if len(c.Rules) == 0 {
		return models.DefaultProfitTakingRules()
	}
	rules := make([]models.ProfitTakingRule, 0, len(c.Rules))
	for _, rc := range c.Rules {
		rule := models.ProfitTakingRule{
			Name:                 rc.Name,
			Enabled:              rc.Enabled,
			Interval:             time.Duration(rc.IntervalMinutes) * time.Minute,
			MinProfitPips:        rc.MinProfitPips,
			ProfitPercentage:     rc.ProfitPercentage,
			MaxTradesPerInterval: rc.MaxTradesPerInterval,
		}
		if rc.SessionFilter != "" {
			name := models.SessionName(rc.SessionFilter)
			rule.SessionFilter = &name
		}
		if rc.SymbolFilter != "" {
			symbol := rc.SymbolFilter
			rule.SymbolFilter = &symbol
		}
		rules = append(rules, rule)
	}
	return rules
}

// RiskLimits converts the risk configuration into the domain limits struct.
func (c *Config) RiskLimits() models.RiskLimits {
	return models.RiskLimits{
		MaxPositionSize:      c.Risk.MaxPositionSize,
		MaxDailyLoss:         c.Risk.MaxDailyLoss,
		MaxDrawdown:          c.Risk.MaxDrawdown,
		MaxOpenPositions:     c.Risk.MaxOpenPositions,
		MaxCorrelated:        c.Risk.MaxCorrelated,
		CorrelationThreshold: c.Risk.CorrelationThreshold,
		StopLossPips:         c.Risk.StopLossPips,
		TakeProfitPips:       c.Risk.TakeProfitPips,
		TrailingStop:         c.Risk.TrailingStop,
		TrailingStopPips:     c.Risk.TrailingStopPips,
		DenyOversized:        c.Risk.DenyOversized,
	}
}
