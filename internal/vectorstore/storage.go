package vectorstore

import (
	"fmt"
	"strings"

	"legalrag/internal/domain"
)

// Storage persists records and supports hybrid similarity search.
type Storage = domain.VectorStore

// RecordID derives the index id of the i-th chunk of a run, e.g.
// "Auda_v_State_12" for source "Auda v State.txt".
func RecordID(source string, i int) string {
	safe := strings.ReplaceAll(source, " ", "_")
	safe = strings.ReplaceAll(safe, ".txt", "")
	return fmt.Sprintf("%s_%d", safe, i)
}

// Dot is the dense dot product over the shorter of the two vectors.
func Dot(a, b []float64) float64 {
	n := min(len(a), len(b))
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

// SparseDot multiplies matching indices. Both vectors must have sorted indices.
func SparseDot(a, b domain.SparseVector) float64 {
	sum := 0.0
	i, j := 0, 0
	for i < len(a.Indices) && j < len(b.Indices) {
		switch {
		case a.Indices[i] == b.Indices[j]:
			sum += a.Values[i] * b.Values[j]
			i++
			j++
		case a.Indices[i] < b.Indices[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// HybridScore weights the dense similarity by alpha and the sparse one by 1-alpha.
func HybridScore(alpha, dense, sparse float64) float64 {
	return alpha*dense + (1-alpha)*sparse
}
