package collector

import (
	"context"
	"sort"
	"time"

	"BreakoutScreener/internal/model"
)

// Gateway fetches market data from a provider. All failures are *model.ProviderError.
type Gateway interface {
	// GetQuotes returns the latest price for each id the provider knows.
	// Unknown ids are absent from the map rather than an error.
	GetQuotes(ctx context.Context, ids []string) (map[string]model.Quote, error)
	// GetCandles returns candles in [from, to] in ascending time order.
	// No data is an empty slice, not an error.
	GetCandles(ctx context.Context, id string, iv model.Interval, from, to time.Time) ([]model.Candle, error)
	Name() string
}

// Streamer pushes live price ticks for subscribed instruments.
type Streamer interface {
	// Subscribe returns a channel closed when ctx is cancelled.
	Subscribe(ctx context.Context, ids []string) (<-chan model.Tick, error)
}

// normalizeCandles sorts ascending, keeps the last row for a repeated
// timestamp and clips to [from, to]. A zero bound is open.
func normalizeCandles(candles []model.Candle, from, to time.Time) []model.Candle {
	sort.SliceStable(candles, func(i, j int) bool { return candles[i].Time.Before(candles[j].Time) })
	out := make([]model.Candle, 0, len(candles))
	for _, c := range candles {
		if !from.IsZero() && c.Time.Before(from) {
			continue
		}
		if !to.IsZero() && c.Time.After(to) {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Time.Equal(c.Time) {
			out[n-1] = c
			continue
		}
		out = append(out, c)
	}
	return out
}
