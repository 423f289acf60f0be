package model

import (
	"fmt"
	"time"
)

// Interval is a candle timeframe understood by the gateway.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
)

var intervalDurations = map[Interval]time.Duration{
	Interval1m:  time.Minute,
	Interval5m:  5 * time.Minute,
	Interval15m: 15 * time.Minute,
	Interval30m: 30 * time.Minute,
	Interval1h:  time.Hour,
}

// ParseInterval validates an interval string such as "5m".
func ParseInterval(s string) (Interval, error) {
	iv := Interval(s)
	if _, ok := intervalDurations[iv]; !ok {
		return "", fmt.Errorf("unsupported candle interval %q", s)
	}
	return iv, nil
}

// Duration returns the wall-clock length of one candle.
func (iv Interval) Duration() time.Duration {
	return intervalDurations[iv]
}

// Candle represents a single OHLCV bar. Time is the start of the interval.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Completed reports whether the candle's interval has fully elapsed at now.
func (c Candle) Completed(iv Interval, now time.Time) bool {
	return !c.Time.Add(iv.Duration()).After(now)
}

// Quote is a point-in-time price observation for one instrument.
type Quote struct {
	InstrumentID string
	LastPrice    float64
	Time         time.Time
	// Day fields are zero when the provider does not return them.
	Open  float64
	High  float64
	Low   float64
	Close float64
}

// Tick is a single last-traded-price update from the streaming feed.
type Tick struct {
	InstrumentID string
	Price        float64
	Time         time.Time
}
