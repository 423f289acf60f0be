package strategy

// aboveReference is the primary rule: strictly above reference scaled by tolerance.
func aboveReference(price, reference, tolerance float64) bool {
	return price > reference*tolerance
}

// passesVWAP applies only when required and the indicator is available.
func passesVWAP(price float64, vwap *float64, required bool) bool {
	if !required || vwap == nil {
		return true
	}
	return price > *vwap
}

// passesRSIBand is inclusive at both ends. Missing RSI passes.
func passesRSIBand(rsi *float64, min, max float64) bool {
	if rsi == nil {
		return true
	}
	return *rsi >= min && *rsi <= max
}
