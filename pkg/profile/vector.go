package profile

import "math"

// Cosine returns the cosine similarity of two equal-length vectors, 0 when
// either is all-zero.
func Cosine(a, b []float64) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// CosineDistance returns 1 - cosine similarity.
func CosineDistance(a, b []float64) float64 {
	return 1 - Cosine(a, b)
}

// Jaccard returns the Jaccard similarity of the supports of two vectors
// (entries > 0 count as members). Two empty supports are identical.
func Jaccard(a, b []float64) float64 {
	var inter, union int
	for i := range a {
		inA := a[i] > 0
		inB := b[i] > 0
		if inA && inB {
			inter++
		}
		if inA || inB {
			union++
		}
	}
	if union == 0 {
		return 1
	}
	return float64(inter) / float64(union)
}

// JaccardDistance returns 1 - Jaccard similarity.
func JaccardDistance(a, b []float64) float64 {
	return 1 - Jaccard(a, b)
}

// CosineF32 is Cosine over float32 vectors (definition embeddings).
func CosineF32(a, b []float32) float64 {
	var dot, normA, normB float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
