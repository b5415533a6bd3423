package testutil

import (
	"testing"

	"github.com/hupe1980/vecsearch/distance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUniformVectors(t *testing.T) {
	rng := NewRNG(4711)

	v := rng.UniformVectors(8, 32)

	assert.Equal(t, 8, len(v))
	assert.Equal(t, 32, len(v[0]))
	assert.LessOrEqual(t, v[0][0], float32(1.0))
	assert.GreaterOrEqual(t, v[1][0], float32(0.0))
}

func TestUnitVectors(t *testing.T) {
	rng := NewRNG(4711)

	v := rng.UnitVectors(8, 32)

	assert.Equal(t, 8, len(v))
	assert.Equal(t, 32, len(v[0]))

	for _, vec := range v {
		var sum float32
		for _, val := range vec {
			sum += val * val
		}
		assert.InDelta(t, float32(1.0), sum, 1e-5)
	}
}

func TestClusteredVectors(t *testing.T) {
	rng := NewRNG(4711)

	v := rng.ClusteredVectors(100, 32, 5, 0.1)

	assert.Equal(t, 100, len(v))
	assert.Equal(t, 32, len(v[0]))
}

func TestReset(t *testing.T) {
	rng := NewRNG(4711)
	v1 := rng.UniformVectors(1, 10)

	rng.Reset()
	v2 := rng.UniformVectors(1, 10)

	assert.Equal(t, v1, v2)
}

func TestBruteForceSearch(t *testing.T) {
	vectors := [][]float32{{0, 0}, {3, 0}, {1, 0}}

	results := BruteForceSearch(vectors, []float32{0, 0}, 2, distance.SquaredL2)
	require.Len(t, results, 2)
	assert.Equal(t, 0, results[0].ID)
	assert.Equal(t, 2, results[1].ID)
	assert.Equal(t, float32(1), results[1].Distance)

	assert.Len(t, BruteForceSearch(vectors, []float32{0, 0}, 10, distance.SquaredL2), 3)
}

func TestComputeRecall(t *testing.T) {
	truth := []SearchResult{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}}

	assert.Equal(t, 1.0, ComputeRecall(truth, truth))
	assert.Equal(t, 0.5, ComputeRecall(truth, []SearchResult{{ID: 1}, {ID: 9}}))
	assert.Equal(t, 0.0, ComputeRecall(truth, nil))
	assert.Equal(t, 1.0, ComputeRecall(nil, nil))
}
