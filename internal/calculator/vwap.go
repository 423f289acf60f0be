package calculator

import (
	"math"

	"BreakoutScreener/internal/model"
)

// CalculateVWAP returns the volume-weighted average of the typical price
// (high+low+close)/3 across candles. Fails when there is no volume.
// The result is not rounded and always lies within the traded range.
func CalculateVWAP(candles []model.Candle) (float64, error) {
	var pv, vol float64
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, c := range candles {
		if c.Volume <= 0 {
			continue
		}
		typical := (c.High + c.Low + c.Close) / 3
		pv += typical * c.Volume
		vol += c.Volume
		lo = math.Min(lo, c.Low)
		hi = math.Max(hi, c.High)
	}
	if vol <= 0 {
		return 0, model.ErrInsufficientData
	}
	// float error on the division can step just past the bounds
	return math.Min(math.Max(pv/vol, lo), hi), nil
}
