// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrRuleNotFound      = errors.New("profit-taking rule not found")
	ErrRuleExists        = errors.New("profit-taking rule already registered")
	ErrPositionNotFound  = errors.New("position not found")
	ErrSymbolNotFound    = errors.New("symbol not found")
	ErrBrokerUnavailable = errors.New("broker unavailable")
	ErrTimeout           = errors.New("operation timed out")
	ErrStaleData         = errors.New("market data is stale")
	ErrConfigInvalid     = errors.New("invalid configuration")
	ErrRiskShutdown      = errors.New("risk engine is shut down")
	ErrInsufficientData  = errors.New("insufficient data")
)

// ConfigError represents a configuration error surfaced at load time.
type ConfigError struct {
	Section string
	Field   string
	Value   interface{}
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error [%s.%s] (%v): %s", e.Section, e.Field, e.Value, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return ErrConfigInvalid
}

// NewConfigError creates a new ConfigError.
func NewConfigError(section, field string, value interface{}, message string) *ConfigError {
	return &ConfigError{
		Section: section,
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// BrokerError represents an error from the broker adapter.
type BrokerError struct {
	Op     string
	Symbol string
	Err    error
}

func (e *BrokerError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("broker error [%s] %s: %v", e.Op, e.Symbol, e.Err)
	}
	return fmt.Sprintf("broker error [%s]: %v", e.Op, e.Err)
}

func (e *BrokerError) Unwrap() error {
	return e.Err
}

// NewBrokerError creates a new BrokerError.
func NewBrokerError(op, symbol string, err error) *BrokerError {
	return &BrokerError{
		Op:     op,
		Symbol: symbol,
		Err:    err,
	}
}

// RiskError represents a risk limit violation.
type RiskError struct {
	Rule    string
	Current float64
	Limit   float64
	Message string
}

func (e *RiskError) Error() string {
	return fmt.Sprintf("risk violation [%s]: %s (current: %.4f, limit: %.4f)", e.Rule, e.Message, e.Current, e.Limit)
}

// NewRiskError creates a new RiskError.
func NewRiskError(rule string, current, limit float64, message string) *RiskError {
	return &RiskError{
		Rule:    rule,
		Current: current,
		Limit:   limit,
		Message: message,
	}
}

// InstructionError represents a failure dispatching a close or modify
// instruction for a single position. The control loop logs these and keeps
// processing the remaining positions.
type InstructionError struct {
	Ticket int64
	Symbol string
	Action string
	Err    error
}

func (e *InstructionError) Error() string {
	return fmt.Sprintf("instruction error [%d] %s %s: %v", e.Ticket, e.Action, e.Symbol, e.Err)
}

func (e *InstructionError) Unwrap() error {
	return e.Err
}

// NewInstructionError creates a new InstructionError.
func NewInstructionError(ticket int64, symbol, action string, err error) *InstructionError {
	return &InstructionError{
		Ticket: ticket,
		Symbol: symbol,
		Action: action,
		Err:    err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
