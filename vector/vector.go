// Package vector holds the float32 vector math shared by the embedding
// chain, the chunk index and re-indexing.
package vector

import "math"

// Normalize scales v to unit length.
// Returns a new vector. If the input is a zero vector, returns a zero vector.
func Normalize(v []float32) []float32 {
	if len(v) == 0 {
		return v
	}

	magnitude := Norm(v)
	result := make([]float32, len(v))
	if magnitude == 0 {
		return result
	}
	for i, val := range v {
		result[i] = val / magnitude
	}
	return result
}

// Norm returns the Euclidean length of v.
func Norm(v []float32) float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	return float32(math.Sqrt(sum))
}

// Conform truncates or zero-pads v to dims and normalizes the result.
func Conform(v []float32, dims int) []float32 {
	out := make([]float32, dims)
	copy(out, v)
	return Normalize(out)
}

// Cosine returns the cosine similarity of a and b.
// Vectors of different length or with zero magnitude score 0.
func Cosine(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
