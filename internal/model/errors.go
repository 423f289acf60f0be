package model

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientData means a series is too short or empty for a calculation.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrNotEvaluable means the detector could not form a reference level.
	ErrNotEvaluable = errors.New("not evaluable")
	// ErrStaleData marks a cached price older than the staleness bound.
	ErrStaleData = errors.New("stale data")
)

// ProviderError is a transport, auth, rate-limit or payload failure from the gateway.
type ProviderError struct {
	Op           string
	InstrumentID string
	StatusCode   int
	RateLimited  bool
	Err          error
}

func (e *ProviderError) Error() string {
	msg := e.Op
	if e.InstrumentID != "" {
		msg += " " + e.InstrumentID
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.RateLimited {
		msg += " (rate limited)"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ConfigurationError is a missing or invalid startup parameter.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}
