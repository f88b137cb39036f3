package reembed

import "math"

// unitVector scales v to unit length. The sum is accumulated in float64 so
// long, small-valued embeddings keep their precision. It reports false for
// empty or all-zero input, which has no direction.
func unitVector(v []float32) ([]float32, bool) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return nil, false
	}

	inv := 1 / math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out, true
}
