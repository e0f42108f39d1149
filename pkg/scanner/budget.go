package scanner

// Budget caps a session's spend against the places directory. Zero values
// mean unlimited.
type Budget struct {
	MaxCalls   int64
	MaxCostUSD float64
}

// nearbyCallCostUSD is the directory's unit price per nearby-search call
// ($32 per 1000 calls). Cost is a deterministic function of call counts,
// so stored sessions can be re-priced offline.
const nearbyCallCostUSD = 0.032

func costOfCalls(calls int64) float64 {
	return float64(calls) * nearbyCallCostUSD
}

// EstimateCost converts a call count into its USD price.
func EstimateCost(calls int64) float64 {
	return costOfCalls(calls)
}

// allows reports whether a call bringing the running total to n fits the
// budget. Callers reserve the slot first (atomic increment) and roll back on
// a false answer, so concurrent workers can never overshoot the cap.
func (b Budget) allows(n int64) bool {
	if b.MaxCalls > 0 && n > b.MaxCalls {
		return false
	}
	if b.MaxCostUSD > 0 && costOfCalls(n) > b.MaxCostUSD {
		return false
	}
	return true
}
