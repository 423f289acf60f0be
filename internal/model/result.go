package model

import "time"

// BreakoutResult is the evaluation record for one instrument in one cycle.
type BreakoutResult struct {
	InstrumentID   string    `json:"instrument_key"`
	Name           string    `json:"name"`
	Sector         string    `json:"sector"`
	LivePrice      float64   `json:"price"`
	ReferenceLevel float64   `json:"reference_high"`
	VWAP           *float64  `json:"vwap,omitempty"`
	RSI            *float64  `json:"rsi,omitempty"`
	Breakout       bool      `json:"breakout"`
	EvaluatedAt    time.Time `json:"evaluated_at"`
}

// OmitReason explains why an instrument produced no result in a cycle.
type OmitReason string

const (
	OmitProviderError    OmitReason = "PROVIDER_ERROR"
	OmitNoPrice          OmitReason = "NO_PRICE"
	OmitStalePrice       OmitReason = "STALE_PRICE"
	OmitInsufficientData OmitReason = "INSUFFICIENT_DATA"
	OmitCancelled        OmitReason = "CANCELLED"
)

// Omission records an instrument left out of a snapshot.
type Omission struct {
	InstrumentID string     `json:"instrument_key"`
	Reason       OmitReason `json:"reason"`
	Detail       string     `json:"detail,omitempty"`
}

// Snapshot is the unit published once per cycle. Never mutated after publish.
type Snapshot struct {
	CycleID      string           `json:"cycle_id"`
	EvaluatedAt  time.Time        `json:"evaluated_at"`
	Sector       string           `json:"sector"`
	MarketClosed bool             `json:"market_closed"`
	Results      []BreakoutResult `json:"results"`
	Omitted      []Omission       `json:"omitted,omitempty"`
	Duration     time.Duration    `json:"duration"`
}

// Breakouts returns the results whose breakout flag is set.
func (s *Snapshot) Breakouts() []BreakoutResult {
	var out []BreakoutResult
	for _, r := range s.Results {
		if r.Breakout {
			out = append(out, r)
		}
	}
	return out
}

// HealthStatus summarises engine condition for operators.
type HealthStatus string

const (
	HealthStarting     HealthStatus = "STARTING"
	HealthOK           HealthStatus = "OK"
	HealthDegraded     HealthStatus = "DEGRADED"
	HealthMarketClosed HealthStatus = "MARKET_CLOSED"
)

// EngineHealth is the operational view exposed at the boundary.
type EngineHealth struct {
	Status              HealthStatus  `json:"status"`
	State               string        `json:"state"`
	LastSuccessfulCycle time.Time     `json:"last_successful_cycle"`
	LastCycleAt         time.Time     `json:"last_cycle_at"`
	LastCycleDuration   time.Duration `json:"last_cycle_duration"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	Evaluated           int           `json:"evaluated"`
	Omitted             int           `json:"omitted"`
	StaleInstruments    int           `json:"stale_instruments"`
}
