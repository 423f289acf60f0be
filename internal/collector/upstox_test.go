package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BreakoutScreener/internal/model"
)

func TestUpstoxGetQuotes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/market-quote/ltp", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "NSE_EQ|INFY,NSE_EQ|TCS,NSE_EQ|LT", r.URL.Query().Get("instrument_key"))
		fmt.Fprint(w, `{"status":"success","data":{
			"NSE_EQ:INFY":{"instrument_token":"NSE_EQ|INFY","last_price":1501.5},
			"NSE_EQ:TCS":{"instrument_token":"NSE_EQ|INE467B01029","last_price":3890}
		}}`)
	}))
	defer srv.Close()

	g := NewUpstoxGateway(UpstoxConfig{BaseURL: srv.URL, AccessToken: "tok"})
	quotes, err := g.GetQuotes(context.Background(), []string{"NSE_EQ|INFY", "NSE_EQ|TCS", "NSE_EQ|LT"})
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	assert.Equal(t, 1501.5, quotes["NSE_EQ|INFY"].LastPrice)
	assert.Equal(t, 3890.0, quotes["NSE_EQ|TCS"].LastPrice)
	_, ok := quotes["NSE_EQ|LT"]
	assert.False(t, ok)
}

func TestUpstoxGetQuotesBatches(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		keys := strings.Split(r.URL.Query().Get("instrument_key"), ",")
		assert.LessOrEqual(t, len(keys), maxQuoteBatch)
		fmt.Fprint(w, `{"status":"success","data":{}}`)
	}))
	defer srv.Close()

	ids := make([]string, 1201)
	for i := range ids {
		ids[i] = fmt.Sprintf("NSE_EQ|S%d", i)
	}
	g := NewUpstoxGateway(UpstoxConfig{BaseURL: srv.URL})
	_, err := g.GetQuotes(context.Background(), ids)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestUpstoxGetCandles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/historical-candle/intraday/NSE_EQ|INFY/minutes/5", r.URL.Path)
		// newest first, with a duplicate timestamp
		fmt.Fprint(w, `{"status":"success","data":{"candles":[
			["2024-06-03T09:25:00+05:30",101,104,100,103,1500,0],
			["2024-06-03T09:20:00+05:30",100,102,99,101,1200,0],
			["2024-06-03T09:20:00+05:30",100,102.5,99,101,1250,0],
			["2024-06-03T09:15:00+05:30",99,101,98,100,1000,0]
		]}}`)
	}))
	defer srv.Close()

	g := NewUpstoxGateway(UpstoxConfig{BaseURL: srv.URL})
	ist := time.FixedZone("IST", 5*3600+1800)
	from := time.Date(2024, 6, 3, 9, 15, 0, 0, ist)
	to := time.Date(2024, 6, 3, 9, 22, 0, 0, ist)

	candles, err := g.GetCandles(context.Background(), "NSE_EQ|INFY", model.Interval5m, from, to)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.True(t, candles[0].Time.Equal(from))
	assert.Equal(t, 101.0, candles[0].High)
	assert.Equal(t, 102.5, candles[1].High)
	assert.Equal(t, 1250.0, candles[1].Volume)
}

func TestUpstoxGetCandlesEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/hours/1"))
		fmt.Fprint(w, `{"status":"success","data":{"candles":[]}}`)
	}))
	defer srv.Close()

	g := NewUpstoxGateway(UpstoxConfig{BaseURL: srv.URL})
	candles, err := g.GetCandles(context.Background(), "NSE_EQ|INFY", model.Interval1h, time.Time{}, time.Now())
	require.NoError(t, err)
	assert.NotNil(t, candles)
	assert.Empty(t, candles)
}

func TestUpstoxErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		rateLimited bool
	}{
		{"rate limited", http.StatusTooManyRequests, `{"status":"error"}`, true},
		{"unauthorized", http.StatusUnauthorized, `{"status":"error"}`, false},
		{"bad payload", http.StatusOK, `not json`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			g := NewUpstoxGateway(UpstoxConfig{BaseURL: srv.URL})
			_, err := g.GetCandles(context.Background(), "NSE_EQ|INFY", model.Interval5m, time.Time{}, time.Now())
			var pe *model.ProviderError
			require.True(t, errors.As(err, &pe), "got %v", err)
			assert.Equal(t, "NSE_EQ|INFY", pe.InstrumentID)
			assert.Equal(t, tt.rateLimited, pe.RateLimited)
		})
	}
}

func TestUpstoxHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"success","data":{}}`)
	}))
	defer srv.Close()

	g := NewUpstoxGateway(UpstoxConfig{BaseURL: srv.URL, RateLimit: 1, Burst: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.GetQuotes(ctx, []string{"NSE_EQ|INFY"})
	var pe *model.ProviderError
	assert.True(t, errors.As(err, &pe))
}
