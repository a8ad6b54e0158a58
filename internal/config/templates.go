package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Session Trader Configuration

[engine]
# Control loop cadence
tick_interval = "30s"
# Per-call broker timeout
broker_timeout = "5s"
# Correlation matrix recompute cadence
correlation_every = "5m"
# Rolling return window per instrument
correlation_window = 64
# Minimum overlapping returns before a pair coefficient is reported
correlation_min_bars = 30

[account]
currency = "USD"
# Daily loss limits reset at midnight in this timezone
timezone = "UTC"

[risk]
# Maximum position value as a fraction of equity
max_position_size = 0.02
# Daily loss ceiling as a fraction of daily starting equity
max_daily_loss = 0.05
# Peak-to-trough drawdown shutdown threshold
max_drawdown = 0.10
max_open_positions = 5
# Maximum simultaneously open positions in one correlated cluster
max_correlated = 3
correlation_threshold = 0.7
stop_loss_pips = 50.0
take_profit_pips = 100.0
trailing_stop = false
trailing_stop_pips = 20.0
# Deny oversized orders instead of clamping them to the allowed maximum
deny_oversized = false

[broker]
name = "paper"
paper_trading = true
initial_balance = 10000.0

symbols = ["EURUSD", "GBPUSD", "USDJPY", "AUDUSD"]

[[sessions]]
name = "asian"
start = "00:00"
end = "08:00"
timezone = "UTC"
enabled = true

[[sessions]]
name = "london"
start = "08:00"
end = "16:00"
timezone = "UTC"
enabled = true

[[sessions]]
name = "new_york"
start = "13:00"
end = "21:00"
timezone = "UTC"
enabled = true

# Profit-taking rules. When this list is empty the built-in default set
# (scalping, medium term, session end, asian, london) is used.

[[rules]]
name = "Scalping Quick Profit"
enabled = true
interval_minutes = 15
min_profit_pips = 10.0
profit_percentage = 0.5
max_trades_per_interval = 3

[[rules]]
name = "Medium Term Profit"
enabled = true
interval_minutes = 60
min_profit_pips = 20.0
profit_percentage = 0.7
max_trades_per_interval = 5

[[rules]]
name = "Session End Profit"
enabled = true
interval_minutes = 240
min_profit_pips = 30.0
profit_percentage = 0.8
max_trades_per_interval = 10

[[rules]]
name = "Asian Session Profit"
enabled = true
interval_minutes = 120
min_profit_pips = 15.0
profit_percentage = 0.6
max_trades_per_interval = 3
session_filter = "asian"

[[rules]]
name = "London Session Profit"
enabled = true
interval_minutes = 90
min_profit_pips = 25.0
profit_percentage = 0.7
max_trades_per_interval = 5
session_filter = "london"
`

// writeTemplateConfig writes a commented template config to the config dir.
func writeTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}
