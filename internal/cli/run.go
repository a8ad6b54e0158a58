package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"session-trader/internal/broker"
	"session-trader/internal/correlation"
	"session-trader/internal/engine"
	"session-trader/internal/profit"
	"session-trader/internal/risk"
	"session-trader/internal/session"
	"session-trader/internal/store"
)

func addRunCommand(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the control loop",
		Long: `Start the control loop against the configured broker.

The loop ticks at the configured interval, refreshes position and account
snapshots, and applies the risk and profit-taking rules. Stop with Ctrl-C;
open positions are left to the broker on a clean shutdown.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			paper, _ := cmd.Flags().GetBool("paper")
			return runLoop(cmd, app, paper)
		},
	}
	cmd.Flags().Bool("paper", false, "force paper trading regardless of config")
	rootCmd.AddCommand(cmd)
}

func runLoop(cmd *cobra.Command, app *App, forcePaper bool) error {
	output := NewOutput(cmd)
	cfg := app.Config
	instruments := app.instruments()

	sessions, err := cfg.BuildSessions()
	if err != nil {
		return err
	}
	location, err := time.LoadLocation(cfg.Account.Timezone)
	if err != nil {
		return fmt.Errorf("loading account timezone: %w", err)
	}

	var venue broker.Broker
	if forcePaper || cfg.Broker.PaperTrading {
		venue = broker.NewPaper(cfg.Broker.InitialBalance, instruments, app.Logger)
		output.Info("Paper trading against a simulated venue (balance %.2f)", cfg.Broker.InitialBalance)
	} else {
		return fmt.Errorf("no live broker adapter configured for %q; set broker.paper_trading = true", cfg.Broker.Name)
	}
	venue = broker.WithCircuitBreaker(venue, 5, 30*time.Second, app.Logger)

	ledger := app.Ledger
	if ledger == nil {
		output.Warning("Ledger unavailable, trades will not be persisted")
		ledger = store.NewMemory()
	}

	limits := cfg.RiskLimits()
	loop := engine.New(
		cfg.Engine,
		limits,
		instruments,
		venue,
		ledger,
		session.NewClassifier(sessions),
		risk.NewGate(limits, instruments, location, app.Logger),
		profit.NewEngine(cfg.BuildRules(), instruments, app.Logger),
		correlation.NewEngine(cfg.Engine.CorrelationWindow, cfg.Engine.CorrelationMinBars,
			limits.CorrelationThreshold, instruments),
		app.Logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := venue.Connect(ctx); err != nil {
		return fmt.Errorf("connecting broker: %w", err)
	}
	defer venue.Close()

	output.Success("Control loop running, tick every %s", cfg.Engine.TickInterval)
	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	output.Info("Shut down cleanly")
	return nil
}
