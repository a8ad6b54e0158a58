package cli

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"session-trader/internal/analytics"
	"session-trader/internal/models"
	"session-trader/internal/session"
)

func addMonitoringCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newStatusCmd(app))
	rootCmd.AddCommand(newReportCmd(app))
	rootCmd.AddCommand(newSessionsCmd(app))
}

func newStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show engine configuration and today's activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			cfg := app.Config
			now := time.Now()

			sessions, err := cfg.BuildSessions()
			if err != nil {
				return err
			}
			active := session.NewClassifier(sessions).Active(now)

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"active_sessions": active,
					"risk":            cfg.Risk,
					"tick_interval":   cfg.Engine.TickInterval.String(),
					"paper_trading":   cfg.Broker.PaperTrading,
				})
			}

			output.Bold("Engine Status")
			output.Println()
			if len(active) == 0 {
				output.Printf("Active sessions: %s\n", output.ColoredString(ColorDim, "none"))
			} else {
				names := make([]string, len(active))
				for i, s := range active {
					names[i] = string(s)
				}
				output.Printf("Active sessions: %s\n", output.ColoredString(ColorCyan, strings.Join(names, ", ")))
			}
			output.Printf("Tick interval:   %s\n", cfg.Engine.TickInterval)
			output.Printf("Paper trading:   %v\n", cfg.Broker.PaperTrading)
			output.Println()

			output.Bold("Risk Limits")
			output.Printf("Max position size: %.1f%% of equity\n", cfg.Risk.MaxPositionSize*100)
			output.Printf("Max daily loss:    %.1f%%\n", cfg.Risk.MaxDailyLoss*100)
			output.Printf("Max drawdown:      %.1f%%\n", cfg.Risk.MaxDrawdown*100)
			output.Printf("Max positions:     %d (max %d correlated)\n",
				cfg.Risk.MaxOpenPositions, cfg.Risk.MaxCorrelated)
			output.Println()

			if app.Ledger == nil {
				output.Warning("Ledger unavailable, no activity data.")
				return nil
			}

			startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
			trades, err := app.Ledger.Trades(startOfDay)
			if err != nil {
				return err
			}
			var pnl float64
			for _, t := range trades {
				pnl += t.Profit
			}
			output.Bold("Today")
			output.Printf("Closed trades: %d\n", len(trades))
			output.Printf("Realized P&L:  %s\n", output.FormatPnL(pnl))

			if points, err := app.Ledger.EquityCurve(startOfDay); err == nil && len(points) > 0 {
				last := points[len(points)-1]
				output.Printf("Last equity:   %.2f (at %s)\n", last.Equity, last.Timestamp.Format("15:04:05"))
			}
			return nil
		},
	}
}

func newReportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show performance analytics from the trade ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Ledger == nil {
				output.Warning("Ledger unavailable.")
				return nil
			}

			var since time.Time
			if days, _ := cmd.Flags().GetInt("days"); days > 0 {
				since = time.Now().AddDate(0, 0, -days)
			}

			trades, err := app.Ledger.Trades(since)
			if err != nil {
				return err
			}
			curve, err := app.Ledger.EquityCurve(since)
			if err != nil {
				return err
			}
			report := analytics.Compute(trades, curve)

			if output.IsJSON() {
				return output.JSON(report)
			}
			if report.Overall.TotalTrades == 0 {
				output.Info("No closed trades in the selected period.")
				return nil
			}

			m := report.Overall
			output.Bold("Performance Report (%d trades)", m.TotalTrades)
			output.Println()
			output.Printf("Win rate:      %.1f%% (%d wins, %d losses)\n", m.WinRate*100, m.Wins, m.Losses)
			output.Printf("Total P&L:     %s\n", output.FormatPnL(m.TotalProfit))
			if math.IsInf(m.ProfitFactor, 1) {
				output.Printf("Profit factor: inf\n")
			} else {
				output.Printf("Profit factor: %.2f\n", m.ProfitFactor)
			}
			output.Printf("Expectancy:    %s per trade\n", output.FormatPnL(m.Expectancy))
			output.Printf("Sharpe:        %.2f   Sortino: %.2f   Calmar: %.2f\n",
				m.SharpeRatio, m.SortinoRatio, m.CalmarRatio)
			output.Printf("VaR (95%%):     %s\n", output.FormatPnL(m.ValueAtRisk95))
			output.Printf("Max drawdown:  %.2f%%\n", m.MaxDrawdown*100)
			output.Printf("Streaks:       %d wins / %d losses (current %+d)\n",
				m.MaxWinStreak, m.MaxLossStreak, m.CurrentStreak)
			output.Println()

			if len(report.BySession) > 0 {
				output.Bold("By Session")
				table := NewTable(output, "Session", "Trades", "Win Rate", "P&L")
				for _, name := range sortedSessionKeys(report.BySession) {
					sm := report.BySession[name]
					table.AddRow(string(name),
						fmt.Sprintf("%d", sm.TotalTrades),
						fmt.Sprintf("%.1f%%", sm.WinRate*100),
						output.FormatPnL(sm.TotalProfit))
				}
				table.Render()
				output.Println()
			}

			if len(report.BySymbol) > 0 {
				output.Bold("By Symbol")
				table := NewTable(output, "Symbol", "Trades", "Win Rate", "P&L")
				for _, symbol := range sortedStringKeys(report.BySymbol) {
					sm := report.BySymbol[symbol]
					table.AddRow(symbol,
						fmt.Sprintf("%d", sm.TotalTrades),
						fmt.Sprintf("%.1f%%", sm.WinRate*100),
						output.FormatPnL(sm.TotalProfit))
				}
				table.Render()
			}
			return nil
		},
	}
	cmd.Flags().Int("days", 0, "restrict the report to the last N days")
	return cmd
}

func newSessionsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "Show the session schedule and preferred instruments",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			sessions, err := app.Config.BuildSessions()
			if err != nil {
				return err
			}
			classifier := session.NewClassifier(sessions)
			now := time.Now()

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"sessions": app.Config.Sessions,
					"active":   classifier.Active(now),
				})
			}

			output.Bold("Market Sessions")
			output.Println()
			table := NewTable(output, "Session", "Window", "Timezone", "Enabled", "Active", "Preferred")
			for i, s := range sessions {
				sc := app.Config.Sessions[i]
				activeMark := ""
				if s.Enabled && s.Contains(now) {
					activeMark = output.ColoredString(ColorGreen, "now")
				}
				enabled := "yes"
				if !s.Enabled {
					enabled = output.ColoredString(ColorDim, "no")
				}
				preferred := models.PreferredForSession(app.instruments(), s.Name, 3)
				table.AddRow(
					string(s.Name),
					fmt.Sprintf("%s-%s", sc.Start, sc.End),
					sc.Timezone,
					enabled,
					activeMark,
					strings.Join(preferred, " "),
				)
			}
			table.Render()
			return nil
		},
	}
}

func sortedSessionKeys(m map[models.SessionName]analytics.Metrics) []models.SessionName {
	keys := make([]models.SessionName, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func sortedStringKeys(m map[string]analytics.Metrics) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
