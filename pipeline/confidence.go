package pipeline

// ComputeConfidence scores a result set from its relevance scores and the
// requested candidate count: mean(scores) * min(1, len(scores)/maxRequested).
// An empty score list returns 0. The product penalizes both low-relevance
// and sparse result sets.
//
// The coverage denominator is always the requested count, even when the
// corpus could never have produced that many results. Small corpora are
// therefore under-penalized; callers depend on the formula as documented,
// so it stays this way.
func ComputeConfidence(scores []float64, maxRequested int) float64 {
	if len(scores) == 0 {
		return 0
	}

	var sum float64
	for _, s := range scores {
		sum += s
	}
	avg := sum / float64(len(scores))

	coverage := 1.0
	if maxRequested > 0 {
		coverage = float64(len(scores)) / float64(maxRequested)
		if coverage > 1 {
			coverage = 1
		}
	}
	return avg * coverage
}
