package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"BreakoutScreener/internal/model"
)

// DefaultYahooURL is the public chart API host.
const DefaultYahooURL = "https://query1.finance.yahoo.com"

// YahooGateway implements Gateway using the Yahoo Finance chart API.
// It needs no credentials and serves as a fallback provider.
type YahooGateway struct {
	BaseURL   string
	Client    *http.Client
	SymbolMap map[string]string // maps instrument id to Yahoo ticker
	limiter   *rate.Limiter
}

// NewYahooGateway creates a new Yahoo Finance gateway.
func NewYahooGateway(baseURL, proxyURL string, timeout time.Duration, rps float64, burst int) *YahooGateway {
	if baseURL == "" {
		baseURL = DefaultYahooURL
	}
	return &YahooGateway{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		Client:    newHTTPClient(timeout, proxyURL),
		SymbolMap: map[string]string{},
		limiter:   newLimiter(rps, burst),
	}
}

func (g *YahooGateway) Name() string { return "yahoo" }

// yahooSymbol maps "NSE_EQ|INFY" to "INFY.NS" and "BSE_EQ|INFY" to "INFY.BO".
func (g *YahooGateway) yahooSymbol(id string) string {
	if mapped, ok := g.SymbolMap[id]; ok {
		return mapped
	}
	exchange, symbol, found := strings.Cut(id, "|")
	if !found {
		return id
	}
	switch exchange {
	case "NSE_EQ":
		return symbol + ".NS"
	case "BSE_EQ":
		return symbol + ".BO"
	}
	return symbol
}

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				RegularMarketTime  int64   `json:"regularMarketTime"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func at(vals []*float64, i int) float64 {
	if i >= len(vals) || vals[i] == nil {
		return 0
	}
	return *vals[i]
}

func yahooInterval(iv model.Interval) string {
	if iv == model.Interval1h {
		return "60m"
	}
	return string(iv)
}

func (g *YahooGateway) fetchChart(ctx context.Context, id string, q url.Values) (*yahooChart, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", g.BaseURL, url.PathEscape(g.yahooSymbol(id)), q.Encode())
	h := http.Header{}
	h.Set("User-Agent", "Mozilla/5.0")

	var chart yahooChart
	if err := getJSON(ctx, g.Client, g.limiter, endpoint, h, "yahoo chart", id, &chart); err != nil {
		return nil, err
	}
	if chart.Chart.Error != nil {
		return nil, &model.ProviderError{Op: "yahoo chart", InstrumentID: id, Err: fmt.Errorf("api error: %s", chart.Chart.Error.Description)}
	}
	return &chart, nil
}

// GetQuotes issues one chart call per id. Ids that fail are left out.
func (g *YahooGateway) GetQuotes(ctx context.Context, ids []string) (map[string]model.Quote, error) {
	out := make(map[string]model.Quote, len(ids))
	var lastErr error
	for _, id := range ids {
		q := url.Values{}
		q.Set("interval", "1m")
		q.Set("range", "1d")
		chart, err := g.fetchChart(ctx, id, q)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			lastErr = err
			continue
		}
		if len(chart.Chart.Result) == 0 {
			continue
		}
		meta := chart.Chart.Result[0].Meta
		if meta.RegularMarketPrice <= 0 {
			continue
		}
		var ts time.Time
		if meta.RegularMarketTime > 0 {
			ts = time.Unix(meta.RegularMarketTime, 0)
		}
		out[id] = model.Quote{InstrumentID: id, LastPrice: meta.RegularMarketPrice, Time: ts}
	}
	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}

func (g *YahooGateway) GetCandles(ctx context.Context, id string, iv model.Interval, from, to time.Time) ([]model.Candle, error) {
	q := url.Values{}
	q.Set("interval", yahooInterval(iv))
	q.Set("period1", fmt.Sprint(from.Unix()))
	q.Set("period2", fmt.Sprint(to.Unix()))
	chart, err := g.fetchChart(ctx, id, q)
	if err != nil {
		return nil, err
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return []model.Candle{}, nil
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	candles := make([]model.Candle, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		o, h, l, c := at(quote.Open, i), at(quote.High, i), at(quote.Low, i), at(quote.Close, i)
		if o == 0 && h == 0 && l == 0 && c == 0 {
			continue // skip null bars
		}
		candles = append(candles, model.Candle{
			Time:   time.Unix(ts, 0),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
			Volume: at(quote.Volume, i),
		})
	}
	return normalizeCandles(candles, from, to), nil
}
