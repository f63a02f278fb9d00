package similarity

import "math"

// NormalizeVector scales v to unit length and returns the result as a new slice.
// A zero vector normalizes to a zero vector of the same length.
func NormalizeVector(v []float32) []float32 {
	if len(v) == 0 {
		return v
	}

	result := make([]float32, len(v))
	norm := magnitude(v)
	if norm == 0 {
		return result
	}
	for i, val := range v {
		result[i] = float32(float64(val) / norm)
	}
	return result
}

// magnitude returns the Euclidean norm of v, accumulated in float64.
func magnitude(v []float32) float64 {
	var sum float64
	for _, val := range v {
		f := float64(val)
		sum += f * f
	}
	return math.Sqrt(sum)
}
