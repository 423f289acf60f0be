package recorder

import (
	"time"

	"BreakoutScreener/internal/model"
)

// BreakoutRecord is one historical breakout row.
type BreakoutRecord struct {
	CycleID        string
	EvaluatedAt    time.Time
	InstrumentID   string
	Name           string
	Sector         string
	Price          float64
	ReferenceLevel float64
	VWAP           *float64
	RSI            *float64
}

// Recorder persists published snapshots for later analysis.
type Recorder interface {
	RecordSnapshot(snap *model.Snapshot) error
	// RecentBreakouts returns the newest breakout rows first.
	RecentBreakouts(limit int) ([]BreakoutRecord, error)
	Close() error
}
