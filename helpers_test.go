package vecsearch

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/hupe1980/vecsearch/distance"
	"github.com/hupe1980/vecsearch/provider"
	"github.com/stretchr/testify/require"
)

// Letter-presence vectors over c a t d o g r. Squared L2 counts the letters
// two words do not share: cat↔car = 2, cat↔dog = 6, car↔dog = 6.
var animals = map[string][]float32{
	"cat": {1, 1, 1, 0, 0, 0, 0},
	"dog": {0, 0, 0, 1, 1, 1, 0},
	"car": {1, 1, 0, 0, 0, 0, 1},
}

func lookup(table map[string][]float32) provider.EncodeFunc {
	return func(_ context.Context, text string) ([]float32, error) {
		v, ok := table[text]
		if !ok {
			return nil, fmt.Errorf("unknown text %q", text)
		}
		return v, nil
	}
}

func newAnimalProvider(t *testing.T) *provider.Func {
	t.Helper()
	p, err := provider.NewFunc(7, lookup(animals), func(o *provider.Options) {
		o.Metric = distance.MetricL2
	})
	require.NoError(t, err)
	return p
}

// tableProvider builds a provider over "v0".."vN" → vectors.
func tableProvider(t *testing.T, vectors [][]float32, metric distance.Metric) (*provider.Func, []string) {
	t.Helper()
	table := make(map[string][]float32, len(vectors))
	values := make([]string, len(vectors))
	for i, v := range vectors {
		values[i] = fmt.Sprintf("v%d", i)
		table[values[i]] = v
	}
	p, err := provider.NewFunc(len(vectors[0]), lookup(table), func(o *provider.Options) {
		o.Metric = metric
	})
	require.NoError(t, err)
	return p, values
}

// shortProvider wraps a provider and drops the last vector of the batch
// call with index dropAt.
type shortProvider struct {
	provider.Provider
	calls  atomic.Int32
	dropAt int32
}

func (s *shortProvider) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	call := s.calls.Add(1) - 1
	vecs, err := s.Provider.EncodeBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if call == s.dropAt {
		return vecs[:len(vecs)-1], nil
	}
	return vecs, nil
}
