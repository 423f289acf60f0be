package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BreakoutScreener/internal/model"
)

func TestNormalizeCandles(t *testing.T) {
	t0 := time.Date(2024, 6, 3, 9, 15, 0, 0, time.UTC)
	in := []model.Candle{
		{Time: t0.Add(10 * time.Minute), High: 3},
		{Time: t0, High: 1},
		{Time: t0.Add(5 * time.Minute), High: 2},
		{Time: t0.Add(5 * time.Minute), High: 2.5},
		{Time: t0.Add(-5 * time.Minute), High: 0},
	}
	out := normalizeCandles(in, t0, t0.Add(5*time.Minute))
	require.Len(t, out, 2)
	assert.Equal(t, 1.0, out[0].High)
	assert.Equal(t, 2.5, out[1].High)
}

func TestMockGateway(t *testing.T) {
	now := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)
	boom := &model.ProviderError{Op: "candles", InstrumentID: "B"}
	m := &MockGateway{
		Price:     100,
		Prices:    map[string]float64{"B": 50, "Z": 0},
		CandleErr: map[string]error{"B": boom},
		Now:       func() time.Time { return now },
	}
	ctx := context.Background()

	quotes, err := m.GetQuotes(ctx, []string{"A", "B", "Z"})
	require.NoError(t, err)
	assert.Equal(t, 100.0, quotes["A"].LastPrice)
	assert.Equal(t, 50.0, quotes["B"].LastPrice)
	_, ok := quotes["Z"]
	assert.False(t, ok)

	candles, err := m.GetCandles(ctx, "A", model.Interval5m, now.Add(-time.Hour), now)
	require.NoError(t, err)
	assert.Len(t, candles, 13)
	for i := 1; i < len(candles); i++ {
		assert.True(t, candles[i].Time.After(candles[i-1].Time))
	}

	_, err = m.GetCandles(ctx, "B", model.Interval5m, now.Add(-time.Hour), now)
	assert.True(t, errors.Is(err, boom))
	assert.Equal(t, 1, m.CandleCalls("B"))
	assert.Equal(t, 1, m.QuoteCalls())
}
