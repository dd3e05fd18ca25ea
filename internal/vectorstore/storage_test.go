package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"legalrag/internal/domain"
)

func TestRecordID(t *testing.T) {
	assert.Equal(t, "Auda_v_State_12", RecordID("Auda v State.txt", 12))
	assert.Equal(t, "plain_0", RecordID("plain", 0))
}

func TestDot(t *testing.T) {
	assert.Equal(t, 11.0, Dot([]float64{1, 2}, []float64{3, 4, 5}))
	assert.Zero(t, Dot(nil, []float64{1}))
}

func TestSparseDot(t *testing.T) {
	a := domain.SparseVector{Indices: []uint32{1, 4, 9}, Values: []float64{1, 2, 3}}
	b := domain.SparseVector{Indices: []uint32{4, 5, 9}, Values: []float64{10, 20, 30}}
	assert.Equal(t, 110.0, SparseDot(a, b))
	assert.Zero(t, SparseDot(a, domain.SparseVector{}))
}

func TestHybridScore(t *testing.T) {
	assert.InDelta(t, 0.7*0.5+0.3*2, HybridScore(0.7, 0.5, 2), 1e-12)
	assert.Equal(t, 2.0, HybridScore(0, 0.5, 2))
}
