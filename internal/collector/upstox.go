package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"BreakoutScreener/internal/model"
)

// DefaultUpstoxURL is the production REST endpoint.
const DefaultUpstoxURL = "https://api.upstox.com"

// maxQuoteBatch is the provider's limit on instrument keys per LTP call.
const maxQuoteBatch = 500

// UpstoxConfig configures UpstoxGateway.
type UpstoxConfig struct {
	BaseURL     string
	AccessToken string
	Proxy       string
	Timeout     time.Duration
	RateLimit   float64
	Burst       int
}

// UpstoxGateway implements Gateway using the Upstox v2/v3 REST API.
type UpstoxGateway struct {
	BaseURL     string
	AccessToken string
	Client      *http.Client
	limiter     *rate.Limiter
}

// NewUpstoxGateway creates a gateway with optional proxy support and rate limiting.
func NewUpstoxGateway(cfg UpstoxConfig) *UpstoxGateway {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultUpstoxURL
	}
	return &UpstoxGateway{
		BaseURL:     base,
		AccessToken: cfg.AccessToken,
		Client:      newHTTPClient(cfg.Timeout, cfg.Proxy),
		limiter:     newLimiter(cfg.RateLimit, cfg.Burst),
	}
}

func (g *UpstoxGateway) Name() string { return "upstox" }

func (g *UpstoxGateway) header() http.Header {
	h := http.Header{}
	h.Set("Accept", "application/json")
	if g.AccessToken != "" {
		h.Set("Authorization", "Bearer "+g.AccessToken)
	}
	return h
}

// upstoxLTP is the market-quote/ltp response. Keys of Data use "EXCHANGE:SYMBOL".
type upstoxLTP struct {
	Status string `json:"status"`
	Data   map[string]struct {
		InstrumentToken string  `json:"instrument_token"`
		LastPrice       float64 `json:"last_price"`
	} `json:"data"`
}

// GetQuotes batches ids into LTP calls of at most 500 keys.
func (g *UpstoxGateway) GetQuotes(ctx context.Context, ids []string) (map[string]model.Quote, error) {
	out := make(map[string]model.Quote, len(ids))
	for start := 0; start < len(ids); start += maxQuoteBatch {
		end := start + maxQuoteBatch
		if end > len(ids) {
			end = len(ids)
		}
		if err := g.fetchLTP(ctx, ids[start:end], out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (g *UpstoxGateway) fetchLTP(ctx context.Context, ids []string, out map[string]model.Quote) error {
	q := url.Values{}
	q.Set("instrument_key", strings.Join(ids, ","))
	endpoint := fmt.Sprintf("%s/v2/market-quote/ltp?%s", g.BaseURL, q.Encode())

	var resp upstoxLTP
	if err := getJSON(ctx, g.Client, g.limiter, endpoint, g.header(), "upstox quotes", "", &resp); err != nil {
		return err
	}
	if resp.Status != "" && resp.Status != "success" {
		return &model.ProviderError{Op: "upstox quotes", Err: fmt.Errorf("status %q", resp.Status)}
	}

	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	now := time.Now()
	for key, v := range resp.Data {
		id := v.InstrumentToken
		if !wanted[id] {
			id = strings.Replace(key, ":", "|", 1)
		}
		if !wanted[id] || v.LastPrice <= 0 {
			continue
		}
		out[id] = model.Quote{InstrumentID: id, LastPrice: v.LastPrice, Time: now}
	}
	return nil
}

// upstoxCandles holds rows of [timestamp, open, high, low, close, volume, oi], newest first.
type upstoxCandles struct {
	Status string `json:"status"`
	Data   struct {
		Candles [][]json.RawMessage `json:"candles"`
	} `json:"data"`
}

func upstoxUnit(iv model.Interval) (string, int, error) {
	d := iv.Duration()
	switch {
	case d <= 0:
		return "", 0, fmt.Errorf("unsupported interval %q", iv)
	case d%time.Hour == 0:
		return "hours", int(d / time.Hour), nil
	default:
		return "minutes", int(d / time.Minute), nil
	}
}

// GetCandles fetches today's intraday candles and clips them to [from, to].
func (g *UpstoxGateway) GetCandles(ctx context.Context, id string, iv model.Interval, from, to time.Time) ([]model.Candle, error) {
	unit, n, err := upstoxUnit(iv)
	if err != nil {
		return nil, &model.ProviderError{Op: "upstox candles", InstrumentID: id, Err: err}
	}
	endpoint := fmt.Sprintf("%s/v3/historical-candle/intraday/%s/%s/%d", g.BaseURL, url.PathEscape(id), unit, n)

	var resp upstoxCandles
	if err := getJSON(ctx, g.Client, g.limiter, endpoint, g.header(), "upstox candles", id, &resp); err != nil {
		return nil, err
	}
	candles := make([]model.Candle, 0, len(resp.Data.Candles))
	for _, row := range resp.Data.Candles {
		c, err := parseUpstoxRow(row)
		if err != nil {
			return nil, &model.ProviderError{Op: "upstox candles", InstrumentID: id, Err: err}
		}
		candles = append(candles, c)
	}
	return normalizeCandles(candles, from, to), nil
}

func parseUpstoxRow(row []json.RawMessage) (model.Candle, error) {
	if len(row) < 6 {
		return model.Candle{}, fmt.Errorf("candle row has %d fields", len(row))
	}
	var ts string
	if err := json.Unmarshal(row[0], &ts); err != nil {
		return model.Candle{}, fmt.Errorf("candle timestamp: %w", err)
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return model.Candle{}, fmt.Errorf("candle timestamp: %w", err)
	}
	var vals [5]float64
	for i := range vals {
		if err := json.Unmarshal(row[i+1], &vals[i]); err != nil {
			return model.Candle{}, fmt.Errorf("candle field %d: %w", i+1, err)
		}
	}
	return model.Candle{Time: t, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vals[4]}, nil
}
