package strategy

import (
	"fmt"
	"time"

	"BreakoutScreener/internal/calculator"
	"BreakoutScreener/internal/model"
)

// Config controls the breakout rule and its optional secondary filter.
type Config struct {
	Interval model.Interval
	// Tolerance scales the reference level; 1.0 means strictly above the high.
	Tolerance        float64
	RequireAboveVWAP bool
	RSIMin           float64
	RSIMax           float64
	RSIPeriod        int
}

// DefaultConfig returns the plain rule on 5-minute candles with no secondary filter.
func DefaultConfig() Config {
	return Config{
		Interval:  model.Interval5m,
		Tolerance: 1.0,
		RSIMin:    0,
		RSIMax:    100,
		RSIPeriod: calculator.DefaultRSIPeriod,
	}
}

// Input is everything the detector needs for one instrument.
type Input struct {
	Instrument model.Instrument
	Price      float64
	Candles    []model.Candle
	Now        time.Time
}

// Detector decides whether an instrument's live price breaks above the
// high of its most recent completed candle. Stateless and safe for concurrent use.
type Detector struct {
	cfg Config
}

// NewDetector fills zero-valued fields of cfg with defaults.
func NewDetector(cfg Config) *Detector {
	def := DefaultConfig()
	if cfg.Interval == "" {
		cfg.Interval = def.Interval
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = def.Tolerance
	}
	if cfg.RSIMax <= 0 {
		cfg.RSIMax = def.RSIMax
	}
	if cfg.RSIPeriod <= 0 {
		cfg.RSIPeriod = def.RSIPeriod
	}
	return &Detector{cfg: cfg}
}

// Config returns the effective configuration.
func (d *Detector) Config() Config { return d.cfg }

// Evaluate produces a result for in. It returns an error wrapping
// model.ErrNotEvaluable when fewer than two completed candles exist; such
// instruments must be omitted rather than reported as not breaking out.
func (d *Detector) Evaluate(in Input) (model.BreakoutResult, error) {
	completed := CompletedCandles(in.Candles, d.cfg.Interval, in.Now)
	if len(completed) < 2 {
		return model.BreakoutResult{}, fmt.Errorf("%s: %w: %d completed candles: %w",
			in.Instrument.ID, model.ErrNotEvaluable, len(completed), model.ErrInsufficientData)
	}
	ref := completed[len(completed)-1].High

	res := model.BreakoutResult{
		InstrumentID:   in.Instrument.ID,
		Name:           in.Instrument.Name,
		Sector:         in.Instrument.Sector,
		LivePrice:      in.Price,
		ReferenceLevel: ref,
		EvaluatedAt:    in.Now,
	}
	if v, err := calculator.CalculateVWAP(in.Candles); err == nil {
		res.VWAP = &v
	}
	if r, err := calculator.CalculateRSI(in.Candles, d.cfg.RSIPeriod); err == nil {
		res.RSI = &r
	}

	res.Breakout = aboveReference(in.Price, ref, d.cfg.Tolerance) &&
		passesVWAP(in.Price, res.VWAP, d.cfg.RequireAboveVWAP) &&
		passesRSIBand(res.RSI, d.cfg.RSIMin, d.cfg.RSIMax)
	return res, nil
}

// CompletedCandles returns the prefix of candles whose interval has fully
// elapsed at now. Candles must be in ascending time order.
func CompletedCandles(candles []model.Candle, iv model.Interval, now time.Time) []model.Candle {
	n := len(candles)
	for n > 0 && !candles[n-1].Completed(iv, now) {
		n--
	}
	return candles[:n]
}

// ReferenceLevel returns the high of the most recent completed candle.
func ReferenceLevel(candles []model.Candle, iv model.Interval, now time.Time) (float64, error) {
	completed := CompletedCandles(candles, iv, now)
	if len(completed) == 0 {
		return 0, model.ErrInsufficientData
	}
	return completed[len(completed)-1].High, nil
}
