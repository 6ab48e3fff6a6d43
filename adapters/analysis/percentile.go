package analysis

import "math"

// percentile interpolates linearly between closest ranks at position
// (n-1)·p/100 of an ascending sample, the default convention of numpy.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	h := float64(n-1) * p / 100
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	frac := h - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// sortedInterval returns the central interval holding mass of a sorted
// sample by direct indexing.
func sortedInterval(sorted []float64, mass float64) (lo, hi float64) {
	n := len(sorted)
	iLo := int((1 - mass) / 2 * float64(n))
	iHi := int((1 + mass) / 2 * float64(n))
	if iHi > n-1 {
		iHi = n - 1
	}
	return sorted[iLo], sorted[iHi]
}
