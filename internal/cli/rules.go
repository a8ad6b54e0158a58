package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"session-trader/internal/config"
	apperrors "session-trader/internal/errors"
	"session-trader/internal/models"
)

func addRulesCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Profit-taking rule management",
		Long:  "List, toggle, add, and remove interval profit-taking rules.",
	}

	cmd.AddCommand(newRulesListCmd(app))
	cmd.AddCommand(newRulesToggleCmd(app, "enable", true))
	cmd.AddCommand(newRulesToggleCmd(app, "disable", false))
	cmd.AddCommand(newRulesAddCmd(app))
	cmd.AddCommand(newRulesRemoveCmd(app))

	rootCmd.AddCommand(cmd)
}

// configuredRules returns the rule configuration, seeding it from the
// built-in defaults the first time the registry is edited.
func configuredRules(cfg *config.Config) []config.RuleConfig {
	if len(cfg.Rules) > 0 {
		return cfg.Rules
	}
	defaults := models.DefaultProfitTakingRules()
	out := make([]config.RuleConfig, 0, len(defaults))
	for _, r := range defaults {
		rc := config.RuleConfig{
			Name:                 r.Name,
			Enabled:              r.Enabled,
			IntervalMinutes:      int(r.Interval.Minutes()),
			MinProfitPips:        r.MinProfitPips,
			ProfitPercentage:     r.ProfitPercentage,
			MaxTradesPerInterval: r.MaxTradesPerInterval,
		}
		if r.SessionFilter != nil {
			rc.SessionFilter = string(*r.SessionFilter)
		}
		if r.SymbolFilter != nil {
			rc.SymbolFilter = *r.SymbolFilter
		}
		out = append(out, rc)
	}
	return out
}

func newRulesListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List profit-taking rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			rules := configuredRules(app.Config)

			if output.IsJSON() {
				return output.JSON(rules)
			}

			output.Bold("Profit-Taking Rules")
			output.Println()
			table := NewTable(output, "Name", "Enabled", "Interval", "Min Pips", "Close %", "Max/Interval", "Session", "Symbol")
			for _, r := range rules {
				enabled := output.ColoredString(ColorGreen, "yes")
				if !r.Enabled {
					enabled = output.ColoredString(ColorDim, "no")
				}
				sessionFilter := r.SessionFilter
				if sessionFilter == "" {
					sessionFilter = "any"
				}
				symbolFilter := r.SymbolFilter
				if symbolFilter == "" {
					symbolFilter = "any"
				}
				table.AddRow(
					r.Name,
					enabled,
					fmt.Sprintf("%dm", r.IntervalMinutes),
					fmt.Sprintf("%.0f", r.MinProfitPips),
					fmt.Sprintf("%.0f%%", r.ProfitPercentage*100),
					strconv.Itoa(r.MaxTradesPerInterval),
					sessionFilter,
					symbolFilter,
				)
			}
			table.Render()
			return nil
		},
	}
}

func newRulesToggleCmd(app *App, verb string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <name>",
		Short: verb + " a profit-taking rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			name := args[0]

			rules := configuredRules(app.Config)
			found := false
			for i := range rules {
				if rules[i].Name == name {
					rules[i].Enabled = enabled
					found = true
					break
				}
			}
			if !found {
				return apperrors.Wrapf(apperrors.ErrRuleNotFound, "rule %q", name)
			}

			app.Config.Rules = rules
			if err := config.Save(app.Config, app.ConfigDir); err != nil {
				return err
			}
			output.Success("Rule %q %sd", name, verb)
			return nil
		},
	}
}

func newRulesAddCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a profit-taking rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			name := args[0]

			interval, _ := cmd.Flags().GetInt("interval")
			minPips, _ := cmd.Flags().GetFloat64("min-pips")
			percent, _ := cmd.Flags().GetFloat64("percent")
			maxTrades, _ := cmd.Flags().GetInt("max-trades")
			sessionFilter, _ := cmd.Flags().GetString("session")
			symbolFilter, _ := cmd.Flags().GetString("symbol")

			rules := configuredRules(app.Config)
			for _, r := range rules {
				if r.Name == name {
					return apperrors.Wrapf(apperrors.ErrRuleExists, "rule %q", name)
				}
			}

			app.Config.Rules = append(rules, config.RuleConfig{
				Name:                 name,
				Enabled:              true,
				IntervalMinutes:      interval,
				MinProfitPips:        minPips,
				ProfitPercentage:     percent,
				MaxTradesPerInterval: maxTrades,
				SessionFilter:        sessionFilter,
				SymbolFilter:         symbolFilter,
			})
			if err := app.Config.Validate(); err != nil {
				return err
			}
			if err := config.Save(app.Config, app.ConfigDir); err != nil {
				return err
			}
			output.Success("Rule %q added", name)
			return nil
		},
	}
	cmd.Flags().Int("interval", 60, "evaluation interval in minutes")
	cmd.Flags().Float64("min-pips", 20, "minimum profit in pips before closing")
	cmd.Flags().Float64("percent", 0.5, "fraction of remaining volume to close (0-1]")
	cmd.Flags().Int("max-trades", 5, "maximum closes per interval")
	cmd.Flags().String("session", "", "restrict to a session (asian, london, new_york)")
	cmd.Flags().String("symbol", "", "restrict to a symbol")
	return cmd
}

func newRulesRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a profit-taking rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			name := args[0]

			rules := configuredRules(app.Config)
			kept := rules[:0]
			found := false
			for _, r := range rules {
				if r.Name == name {
					found = true
					continue
				}
				kept = append(kept, r)
			}
			if !found {
				return apperrors.Wrapf(apperrors.ErrRuleNotFound, "rule %q", name)
			}

			app.Config.Rules = kept
			if err := config.Save(app.Config, app.ConfigDir); err != nil {
				return err
			}
			output.Success("Rule %q removed", name)
			return nil
		},
	}
}
