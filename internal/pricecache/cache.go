// Package pricecache keeps the latest observed price per instrument.
package pricecache

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"BreakoutScreener/internal/model"
)

// ErrNoPrice is returned when an instrument has never been priced.
var ErrNoPrice = errors.New("no price")

// Entry is the cached price of one instrument.
type Entry struct {
	InstrumentID string
	Price        float64
	UpdatedAt    time.Time
}

// Cache is safe for concurrent writers and readers. Each key is replaced atomically.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[string]Entry)}
}

// Update stores price for id unless t is older than the current entry.
// It reports whether the value was applied. Non-positive or NaN prices are rejected.
func (c *Cache) Update(id string, price float64, t time.Time) bool {
	if id == "" || price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.entries[id]; ok && t.Before(cur.UpdatedAt) {
		return false
	}
	c.entries[id] = Entry{InstrumentID: id, Price: price, UpdatedAt: t}
	return true
}

// Read returns the entry for id without any I/O.
func (c *Cache) Read(id string) (Entry, bool) {
	c.mu.RLock()
	e, ok := c.entries[id]
	c.mu.RUnlock()
	return e, ok
}

// Fresh returns the entry for id if it is no older than maxAge at now.
// A zero maxAge disables the staleness check.
func (c *Cache) Fresh(id string, now time.Time, maxAge time.Duration) (Entry, error) {
	e, ok := c.Read(id)
	if !ok {
		return Entry{}, fmt.Errorf("%s: %w", id, ErrNoPrice)
	}
	if maxAge > 0 && now.Sub(e.UpdatedAt) > maxAge {
		return e, fmt.Errorf("%s updated %s ago: %w", id, now.Sub(e.UpdatedAt).Round(time.Second), model.ErrStaleData)
	}
	return e, nil
}

// Len returns the number of cached instruments.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
