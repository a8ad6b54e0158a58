package cli

import (
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"session-trader/internal/config"
	"session-trader/internal/models"
	"session-trader/internal/store"
)

// Version information
const Version = "0.1.0"

// App holds the application dependencies.
type App struct {
	Config      *config.Config
	ConfigDir   string
	Logger      zerolog.Logger
	Ledger      store.Store
	Instruments map[string]models.Instrument
}

// instruments returns the tracked universe, restricted to the configured
// symbol list when one is set.
func (a *App) instruments() map[string]models.Instrument {
	if len(a.Config.Symbols) == 0 {
		return a.Instruments
	}
	out := make(map[string]models.Instrument, len(a.Config.Symbols))
	for _, symbol := range a.Config.Symbols {
		if inst, ok := a.Instruments[symbol]; ok {
			out[symbol] = inst
		}
	}
	return out
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, configDir string, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config:      cfg,
		ConfigDir:   configDir,
		Logger:      logger,
		Instruments: models.DefaultInstruments(),
	}

	dataDir := configDir
	if dataDir == "" {
		dataDir = config.DefaultConfigDir()
	}
	dbPath := filepath.Join(dataDir, "ledger.db")
	if ledger, err := store.OpenSQLite(dbPath); err != nil {
		logger.Warn().Err(err).Msg("Failed to open ledger, report commands unavailable")
	} else {
		app.Ledger = ledger
	}

	rootCmd := &cobra.Command{
		Use:   "session-trader",
		Short: "Session-aware risk and profit-taking control engine",
		Long: `session-trader supervises open forex positions around the clock.

It classifies the current market session, gates exposure through configured
risk limits, takes partial profits on interval rules, and force-liquidates
when loss ceilings are breached.

Use 'session-trader help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/session-trader)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addRunCommand(rootCmd, app)
	addRulesCommands(rootCmd, app)
	addMonitoringCommands(rootCmd, app)
	addVersionCommand(rootCmd)

	return rootCmd
}

func addVersionCommand(rootCmd *cobra.Command) {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			NewOutput(cmd).Printf("session-trader %s\n", Version)
		},
	})
}
