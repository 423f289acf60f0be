package collector

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BreakoutScreener/internal/model"
)

const cacheID = "NSE_EQ|INFY"

// cacheFixture returns a 17-minute window with two completed 5m candles and
// one still forming at to.
func cacheFixture() (from, to time.Time, candles []model.Candle) {
	from = time.Date(2024, 6, 3, 3, 45, 0, 0, time.UTC)
	to = from.Add(17 * time.Minute)
	candles = []model.Candle{
		{Time: from, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
		{Time: from.Add(5 * time.Minute), Open: 1.5, High: 2.5, Low: 1, Close: 2, Volume: 20},
		{Time: from.Add(15 * time.Minute), Open: 2, High: 3, Low: 1.8, Close: 2.9, Volume: 5},
	}
	return
}

func entryJSON(t *testing.T, from time.Time, candles []model.Candle) []byte {
	t.Helper()
	b, err := json.Marshal(candleEntry{From: from, Candles: candles})
	require.NoError(t, err)
	return b
}

func TestCachingGateway_NilRedis(t *testing.T) {
	from, to, candles := cacheFixture()
	inner := &MockGateway{Candles: map[string][]model.Candle{cacheID: candles}}
	g := NewCachingGateway(nil, inner, "")

	out, err := g.GetCandles(context.Background(), cacheID, model.Interval5m, from, to)
	require.NoError(t, err)
	assert.Len(t, out, 3)
	assert.Equal(t, 1, inner.CandleCalls(cacheID))
}

func TestCachingGateway_KeyIsStableAcrossWindows(t *testing.T) {
	g := NewCachingGateway(nil, &MockGateway{}, "test")
	assert.Equal(t, "test:NSE_EQ|INFY:5m", g.cacheKey(cacheID, model.Interval5m))
	assert.Equal(t, "test:NSE_EQ|INFY_X:1h", g.cacheKey("NSE_EQ|INFY:X", model.Interval1h))
}

func TestCachingGateway_MissStoresCompletedCandles(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	from, to, candles := cacheFixture()
	inner := &MockGateway{Candles: map[string][]model.Candle{cacheID: candles}}
	g := NewCachingGateway(rdb, inner, "test")
	key := g.cacheKey(cacheID, model.Interval5m)

	mock.ExpectGet(key).RedisNil()
	// the forming candle is not cached
	mock.ExpectSet(key, entryJSON(t, from, candles[:2]), 17*time.Minute).SetVal("OK")

	out, err := g.GetCandles(context.Background(), cacheID, model.Interval5m, from, to)
	require.NoError(t, err)
	assert.Len(t, out, 3)
	assert.Equal(t, 1, inner.CandleCalls(cacheID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachingGateway_HitFetchesOnlyTail(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	from, to, candles := cacheFixture()
	// a later window: the first cached candle falls out, the forming one completes
	laterFrom, laterTo := from.Add(time.Minute), to.Add(5*time.Minute)

	revised := append([]model.Candle(nil), candles...)
	revised[1].High = 99 // outside the tail, must come from cache
	inner := &MockGateway{Candles: map[string][]model.Candle{cacheID: revised}}
	g := NewCachingGateway(rdb, inner, "test")
	key := g.cacheKey(cacheID, model.Interval5m)

	mock.ExpectGet(key).SetVal(string(entryJSON(t, from, candles[:2])))
	mock.ExpectSet(key, entryJSON(t, laterFrom, candles[1:]), laterTo.Sub(laterFrom)).SetVal("OK")

	out, err := g.GetCandles(context.Background(), cacheID, model.Interval5m, laterFrom, laterTo)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 2.5, out[0].High)
	assert.Equal(t, 3.0, out[1].High)
	assert.Equal(t, 1, inner.CandleCalls(cacheID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachingGateway_EntryStartingLaterIsIgnored(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	from, to, candles := cacheFixture()
	inner := &MockGateway{Candles: map[string][]model.Candle{cacheID: candles}}
	g := NewCachingGateway(rdb, inner, "test")
	key := g.cacheKey(cacheID, model.Interval5m)

	mock.ExpectGet(key).SetVal(string(entryJSON(t, from.Add(5*time.Minute), candles[1:2])))
	mock.ExpectSet(key, entryJSON(t, from, candles[:2]), 17*time.Minute).SetVal("OK")

	out, err := g.GetCandles(context.Background(), cacheID, model.Interval5m, from, to)
	require.NoError(t, err)
	assert.Len(t, out, 3)
	assert.Equal(t, 2.0, out[0].High)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachingGateway_CorruptedEntry(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	from, to, candles := cacheFixture()
	inner := &MockGateway{Candles: map[string][]model.Candle{cacheID: candles}}
	g := NewCachingGateway(rdb, inner, "test")
	key := g.cacheKey(cacheID, model.Interval5m)

	mock.ExpectGet(key).SetVal("{not json")
	mock.ExpectDel(key).SetVal(1)
	mock.ExpectSet(key, entryJSON(t, from, candles[:2]), 17*time.Minute).SetVal("OK")

	out, err := g.GetCandles(context.Background(), cacheID, model.Interval5m, from, to)
	require.NoError(t, err)
	assert.Len(t, out, 3)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachingGateway_QuotesBypassCache(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	g := NewCachingGateway(rdb, &MockGateway{Price: 10}, "")
	quotes, err := g.GetQuotes(context.Background(), []string{"A"})
	require.NoError(t, err)
	assert.Equal(t, 10.0, quotes["A"].LastPrice)
	assert.Equal(t, "mock+redis", g.Name())
	assert.NoError(t, mock.ExpectationsWereMet())
}
