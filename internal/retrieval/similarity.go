package retrieval

import "math"

// minNorm floors the cosine denominator so zero vectors score 0.
const minNorm = 1e-6

// CosineSimilarity returns dot(a,b) / max(|a||b|, 1e-6). Vectors of
// different length score 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	denom := math.Sqrt(na) * math.Sqrt(nb)
	if denom < minNorm {
		denom = minNorm
	}
	score := dot / denom
	if math.IsNaN(score) {
		return 0
	}
	// clamp float drift
	if score > 1 {
		return 1
	}
	if score < -1 {
		return -1
	}
	return score
}
