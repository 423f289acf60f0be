// Package session decides whether the exchange is in its trading session.
package session

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"BreakoutScreener/internal/model"
)

// Defaults for the NSE cash session.
const (
	DefaultTimezone = "Asia/Kolkata"
	DefaultOpen     = "09:15"
	DefaultClose    = "15:30"
)

// Gate is a stateless Mon-Fri session window in the exchange time zone.
// Both bounds are inclusive.
type Gate struct {
	loc   *time.Location
	open  time.Duration
	close time.Duration
}

// NewGate parses tz and the HH:MM bounds.
func NewGate(tz, open, close string) (*Gate, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, &model.ConfigurationError{Field: "session.timezone", Reason: err.Error()}
	}
	o, err := parseClock(open)
	if err != nil {
		return nil, &model.ConfigurationError{Field: "session.open", Reason: err.Error()}
	}
	c, err := parseClock(close)
	if err != nil {
		return nil, &model.ConfigurationError{Field: "session.close", Reason: err.Error()}
	}
	if c <= o {
		return nil, &model.ConfigurationError{Field: "session.close", Reason: "must be after session.open"}
	}
	return &Gate{loc: loc, open: o, close: c}, nil
}

// DefaultGate returns the 09:15-15:30 Asia/Kolkata gate.
func DefaultGate() *Gate {
	g, err := NewGate(DefaultTimezone, DefaultOpen, DefaultClose)
	if err != nil {
		panic(err)
	}
	return g
}

// IsOpen reports whether t falls inside the session.
func (g *Gate) IsOpen(t time.Time) bool {
	local := t.In(g.loc)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	tod := sinceMidnight(local)
	return tod >= g.open && tod <= g.close
}

// Location returns the exchange time zone.
func (g *Gate) Location() *time.Location { return g.loc }

// SessionOpen returns the session start on t's exchange-local date.
func (g *Gate) SessionOpen(t time.Time) time.Time {
	local := t.In(g.loc)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, g.loc).Add(g.open)
}

func sinceMidnight(t time.Time) time.Duration {
	h, m, s := t.Clock()
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second + time.Duration(t.Nanosecond())
}

func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q, want HH:MM", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
