// Package logging provides structured logging functionality.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"session-trader/internal/models"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string
	Console    bool
	File       bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	return LogConfig{
		Level:      "info",
		Console:    true,
		File:       true,
		FilePath:   filepath.Join(home, ".config", "session-trader", "logs", "engine.log"),
		MaxSize:    100,
		MaxBackups: 7,
		MaxAge:     30,
	}
}

// NewLogger creates a new logger with default configuration.
func NewLogger() zerolog.Logger {
	return NewLoggerWithConfig(DefaultLogConfig())
}

// NewLoggerWithConfig creates a new logger with the specified configuration.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var writers []io.Writer

	if cfg.Console {
		consoleWriter := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
			FormatLevel: func(i interface{}) string {
				if ll, ok := i.(string); ok {
					switch ll {
					case "debug":
						return "\033[36mDBG\033[0m"
					case "info":
						return "\033[32mINF\033[0m"
					case "warn":
						return "\033[33mWRN\033[0m"
					case "error":
						return "\033[31mERR\033[0m"
					default:
						return ll
					}
				}
				return "???"
			},
		}
		writers = append(writers, consoleWriter)
	}

	if cfg.File {
		logDir := filepath.Dir(cfg.FilePath)
		if err := os.MkdirAll(logDir, 0755); err == nil {
			fileWriter := &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			}
			writers = append(writers, fileWriter)
		}
	}

	var writer io.Writer
	if len(writers) == 0 {
		writer = os.Stdout
	} else if len(writers) == 1 {
		writer = writers[0]
	} else {
		writer = zerolog.MultiLevelWriter(writers...)
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	return zerolog.New(writer).
		With().
		Timestamp().
		Caller().
		Logger()
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithSymbol adds a symbol to the logger context.
func WithSymbol(logger zerolog.Logger, symbol string) zerolog.Logger {
	return logger.With().Str("symbol", symbol).Logger()
}

// WithTicket adds a position ticket to the logger context.
func WithTicket(logger zerolog.Logger, ticket int64) zerolog.Logger {
	return logger.With().Int64("ticket", ticket).Logger()
}

// WithRule adds a profit-taking rule name to the logger context.
func WithRule(logger zerolog.Logger, rule string) zerolog.Logger {
	return logger.With().Str("rule", rule).Logger()
}

// LogPartialClose logs a partial close dispatched by a profit-taking rule.
func LogPartialClose(logger zerolog.Logger, instr models.PartialCloseInstruction, profitPips float64) {
	logger.Info().
		Str("event", "partial_close").
		Int64("ticket", instr.Ticket).
		Str("symbol", instr.Symbol).
		Float64("volume", instr.Volume).
		Float64("profit_pips", profitPips).
		Str("rule", instr.Rule).
		Msg("Partial close dispatched")
}

// LogRiskDecision logs a risk gate decision.
func LogRiskDecision(logger zerolog.Logger, action, reason string, equity float64) {
	logger.Info().
		Str("event", "risk_decision").
		Str("action", action).
		Str("reason", reason).
		Float64("equity", equity).
		Msg("Risk gate decision")
}

// LogForceLiquidate logs an emergency liquidation.
func LogForceLiquidate(logger zerolog.Logger, reason string, positions int) {
	logger.Warn().
		Str("event", "force_liquidate").
		Str("reason", reason).
		Int("positions", positions).
		Msg("Forced liquidation of all positions")
}

// LogSessionChange logs a change in the set of active sessions.
func LogSessionChange(logger zerolog.Logger, active []models.SessionName) {
	names := make([]string, len(active))
	for i, s := range active {
		names[i] = string(s)
	}
	logger.Info().
		Str("event", "session_change").
		Strs("active", names).
		Msg("Active sessions changed")
}

// LogBrokerCall logs a broker adapter call.
func LogBrokerCall(logger zerolog.Logger, op, symbol string, duration time.Duration, err error) {
	event := logger.Debug().
		Str("event", "broker_call").
		Str("op", op).
		Str("symbol", symbol).
		Dur("duration", duration)

	if err != nil {
		event.Err(err).Msg("Broker call failed")
	} else {
		event.Msg("Broker call completed")
	}
}
