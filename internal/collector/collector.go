package collector

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"BreakoutScreener/internal/model"
)

// MockGateway returns controllable fixed data for development and testing.
type MockGateway struct {
	// Price is used for ids missing from Prices.
	Price     float64
	Prices    map[string]float64
	Candles   map[string][]model.Candle
	QuoteErr  error
	CandleErr map[string]error
	// Now stamps generated quotes; defaults to time.Now.
	Now func() time.Time

	mu          sync.Mutex
	candleCalls map[string]int
	quoteCalls  atomic.Int64
}

func (m *MockGateway) Name() string { return "mock" }

func (m *MockGateway) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *MockGateway) GetQuotes(ctx context.Context, ids []string) (map[string]model.Quote, error) {
	m.quoteCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, &model.ProviderError{Op: "quotes", Err: err}
	}
	if m.QuoteErr != nil {
		return nil, m.QuoteErr
	}
	now := m.now()
	out := make(map[string]model.Quote, len(ids))
	for _, id := range ids {
		p, ok := m.Prices[id]
		if !ok {
			p = m.Price
		}
		if p <= 0 {
			continue
		}
		out[id] = model.Quote{InstrumentID: id, LastPrice: p, Time: now}
	}
	return out, nil
}

func (m *MockGateway) GetCandles(ctx context.Context, id string, iv model.Interval, from, to time.Time) ([]model.Candle, error) {
	m.mu.Lock()
	if m.candleCalls == nil {
		m.candleCalls = make(map[string]int)
	}
	m.candleCalls[id]++
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, &model.ProviderError{Op: "candles", InstrumentID: id, Err: err}
	}
	if err := m.CandleErr[id]; err != nil {
		return nil, err
	}
	if c, ok := m.Candles[id]; ok {
		return normalizeCandles(append([]model.Candle(nil), c...), from, to), nil
	}
	p, ok := m.Prices[id]
	if !ok {
		p = m.Price
	}
	return generateMockCandles(p, iv, from, to), nil
}

// CandleCalls returns how many times candles were requested for id.
func (m *MockGateway) CandleCalls(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.candleCalls[id]
}

// QuoteCalls returns how many quote batches were requested.
func (m *MockGateway) QuoteCalls() int { return int(m.quoteCalls.Load()) }

// generateMockCandles produces a gently rising series aligned to iv in [from, to].
func generateMockCandles(basePrice float64, iv model.Interval, from, to time.Time) []model.Candle {
	step := iv.Duration()
	if basePrice <= 0 || step <= 0 || !to.After(from) {
		return []model.Candle{}
	}
	var candles []model.Candle
	start := from.Truncate(step)
	if start.Before(from) {
		start = start.Add(step)
	}
	n := int(to.Sub(start)/step) + 1
	for i := 0; i < n; i++ {
		p := basePrice * (1 + float64(i-n)*0.001)
		candles = append(candles, model.Candle{
			Time:   start.Add(time.Duration(i) * step),
			Open:   p * 0.999,
			High:   p * 1.002,
			Low:    p * 0.997,
			Close:  p,
			Volume: 10000,
		})
	}
	return candles
}
