package calculator

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"BreakoutScreener/internal/model"
)

// DefaultRSIPeriod is the look-back used when none is configured.
const DefaultRSIPeriod = 14

// CalculateRSI computes RSI from the simple mean gain and loss of the most
// recent period close-to-close changes. Requires at least period+1 candles.
// Returns 100 when there is no loss in the window.
func CalculateRSI(candles []model.Candle, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(candles) < period+1 {
		return 0, fmt.Errorf("rsi(%d) needs %d candles, have %d: %w", period, period+1, len(candles), model.ErrInsufficientData)
	}

	closes := extractCloses(candles)
	var gain, loss float64
	for i := len(closes) - period; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gain += change
		} else {
			loss -= change
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)

	if avgLoss == 0 {
		return 100.0, nil
	}
	rs := avgGain / avgLoss
	return round2(100.0 - 100.0/(1.0+rs)), nil
}

func extractCloses(candles []model.Candle) []float64 {
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	return closes
}

// round2 rounds half away from zero to two decimal places.
func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
