package formulas

// MaxDrawdown returns the deepest peak-to-trough decline of a NAV curve:
//
//	MaxDrawdown = min(NAV[t] / max(NAV[0..t]) - 1)
//
// The result is <= 0 (e.g. -0.25 for a 25% loss from peak). A flat or
// monotonically rising curve returns exactly 0.
func MaxDrawdown(nav []float64) float64 {
	if len(nav) == 0 {
		return 0
	}

	maxDrawdown := 0.0
	peak := nav[0]
	for _, v := range nav {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := v/peak - 1; dd < maxDrawdown {
				maxDrawdown = dd
			}
		}
	}
	return maxDrawdown
}
