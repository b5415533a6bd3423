package vecsearch

import (
	"context"
	"testing"

	"github.com/hupe1980/vecsearch/batch"
	"github.com/hupe1980/vecsearch/distance"
	"github.com/hupe1980/vecsearch/provider"
	"github.com/hupe1980/vecsearch/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAnimalStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(newAnimalProvider(t))
	require.NoError(t, err)
	_, err = s.AddBatch(context.Background(), []string{"cat", "dog", "car"}, 64)
	require.NoError(t, err)
	return s
}

func values(results []Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Value
	}
	return out
}

func TestStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Fixture", func(t *testing.T) {
		s := newAnimalStore(t)
		assert.Equal(t, 3, s.Count())

		results, err := s.SearchText(ctx, "cat", 2)
		require.NoError(t, err)
		assert.Equal(t, []Result{{Value: "cat", Distance: 0}, {Value: "car", Distance: 2}}, results)

		results, err = s.SearchText(ctx, "dog", All)
		require.NoError(t, err)
		assert.Equal(t, []Result{{Value: "dog", Distance: 0}, {Value: "cat", Distance: 6}, {Value: "car", Distance: 6}}, results)
	})

	t.Run("KSemantics", func(t *testing.T) {
		s := newAnimalStore(t)
		q := animals["cat"]

		testCases := []struct {
			name string
			k    int
			want int
		}{
			{"All", All, 3},
			{"Zero", 0, 0},
			{"One", 1, 1},
			{"MoreThanCount", 10, 3},
		}

		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				results, err := s.Search(ctx, q, tc.k)
				require.NoError(t, err)
				assert.Len(t, results, tc.want)
			})
		}

		_, err := s.Search(ctx, q, -2)
		assert.ErrorIs(t, err, ErrInvalidArgument)

		_, err = s.SearchText(ctx, "cat", -5)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("EmptyStore", func(t *testing.T) {
		s, err := NewStore(newAnimalProvider(t))
		require.NoError(t, err)

		results, err := s.Search(ctx, animals["cat"], 5)
		require.NoError(t, err)
		assert.NotNil(t, results)
		assert.Empty(t, results)
	})

	t.Run("NilProvider", func(t *testing.T) {
		_, err := NewStore(nil)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("DimensionMismatch", func(t *testing.T) {
		s := newAnimalStore(t)

		err := s.Insert("short", []float32{1, 2})
		var dm *ErrDimensionMismatch
		require.ErrorAs(t, err, &dm)
		assert.Equal(t, 7, dm.Expected)
		assert.Equal(t, 2, dm.Actual)
		assert.Equal(t, 3, s.Count())

		_, err = s.Search(ctx, []float32{1}, 1)
		assert.ErrorAs(t, err, &dm)
	})

	t.Run("OverwriteAndCopy", func(t *testing.T) {
		s, err := NewStore(newAnimalProvider(t))
		require.NoError(t, err)

		v := []float32{1, 0, 0, 0, 0, 0, 0}
		require.NoError(t, s.Insert("x", v))
		v[0] = 9 // caller reuses its buffer

		got, ok := s.Get("x")
		require.True(t, ok)
		assert.Equal(t, float32(1), got[0])

		require.NoError(t, s.Insert("x", []float32{0, 1, 0, 0, 0, 0, 0}))
		assert.Equal(t, 1, s.Count())
		got, _ = s.Get("x")
		assert.Equal(t, []float32{0, 1, 0, 0, 0, 0, 0}, got)
	})

	t.Run("TiesKeepInsertionOrder", func(t *testing.T) {
		s, err := NewStore(newAnimalProvider(t))
		require.NoError(t, err)

		same := []float32{0, 0, 0, 0, 0, 0, 1}
		for _, v := range []string{"b", "c", "a"} {
			require.NoError(t, s.Insert(v, same))
		}

		results, err := s.Search(ctx, same, All)
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "c", "a"}, values(results))
	})

	t.Run("AddReturnsVector", func(t *testing.T) {
		s, err := NewStore(newAnimalProvider(t))
		require.NoError(t, err)

		v, err := s.Add(ctx, "dog")
		require.NoError(t, err)
		assert.Equal(t, animals["dog"], v)

		_, err = s.Add(ctx, "unknown")
		assert.Error(t, err)
		assert.Equal(t, 1, s.Count())
	})

	t.Run("SelfQueryIsTopOne", func(t *testing.T) {
		rng := testutil.NewRNG(3)
		p, vals := tableProvider(t, rng.UniformVectors(100, 8), distance.MetricL2)

		s, err := NewStore(p)
		require.NoError(t, err)
		_, err = s.AddBatch(ctx, vals, 16)
		require.NoError(t, err)

		for _, v := range vals {
			results, err := s.SearchText(ctx, v, 1)
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Equal(t, v, results[0].Value)
		}
	})
}

func TestStore_SearchProperties(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(11)

	p, vals := tableProvider(t, rng.UniformVectors(200, 12), distance.MetricCosine)
	s, err := NewStore(p)
	require.NoError(t, err)
	_, err = s.AddBatch(ctx, vals, 32)
	require.NoError(t, err)

	queries := rng.UniformVectors(20, 12)
	for _, k := range []int{All, 0, 1, 7, 200, 500} {
		for _, q := range queries {
			results, err := s.Search(ctx, q, k)
			require.NoError(t, err)

			want := k
			if k == All || k > s.Count() {
				want = s.Count()
			}
			require.Len(t, results, want)

			for i := 1; i < len(results); i++ {
				assert.LessOrEqual(t, results[i-1].Distance, results[i].Distance)
			}
		}
	}
}

func TestStore_AddBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("BatchSizeIsNotSemantic", func(t *testing.T) {
		rng := testutil.NewRNG(5)
		p, vals := tableProvider(t, rng.UniformVectors(37, 6), distance.MetricL2)

		one, err := NewStore(p)
		require.NoError(t, err)
		all, err := NewStore(p)
		require.NoError(t, err)

		v1, err := one.AddBatch(ctx, vals, 1)
		require.NoError(t, err)
		vAll, err := all.AddBatch(ctx, vals, len(vals))
		require.NoError(t, err)

		assert.Equal(t, v1, vAll)
		assert.Equal(t, one.Count(), all.Count())
		for _, v := range vals {
			a, _ := one.Get(v)
			b, _ := all.Get(v)
			assert.Equal(t, a, b)
		}

		q := rng.UniformVectors(1, 6)[0]
		r1, err := one.Search(ctx, q, All)
		require.NoError(t, err)
		rAll, err := all.Search(ctx, q, All)
		require.NoError(t, err)
		assert.Equal(t, r1, rAll)
	})

	t.Run("AlignedWithInput", func(t *testing.T) {
		s, err := NewStore(newAnimalProvider(t))
		require.NoError(t, err)

		vecs, err := s.AddBatch(ctx, []string{"car", "cat", "dog"}, 2)
		require.NoError(t, err)
		assert.Equal(t, [][]float32{animals["car"], animals["cat"], animals["dog"]}, vecs)
	})

	t.Run("CountMismatchKeepsEarlierChunks", func(t *testing.T) {
		rng := testutil.NewRNG(9)
		inner, vals := tableProvider(t, rng.UniformVectors(6, 4), distance.MetricL2)
		p := &shortProvider{Provider: inner, dropAt: 1}

		s, err := NewStore(p)
		require.NoError(t, err)

		vecs, err := s.AddBatch(ctx, vals, 2)
		require.ErrorIs(t, err, ErrCountMismatch)

		var be *BatchError
		require.ErrorAs(t, err, &be)
		assert.Equal(t, 2, be.Committed)
		assert.Equal(t, 1, be.Chunks)

		var cm *batch.CountMismatchError
		require.ErrorAs(t, err, &cm)
		assert.Equal(t, 2, cm.Offset)

		assert.Len(t, vecs, 2)
		assert.Equal(t, 2, s.Count())
		_, ok := s.Get(vals[1])
		assert.True(t, ok)
		_, ok = s.Get(vals[2])
		assert.False(t, ok)
		_, ok = s.Get(vals[4])
		assert.False(t, ok)
	})

	t.Run("InvalidBatchSize", func(t *testing.T) {
		s, err := NewStore(newAnimalProvider(t))
		require.NoError(t, err)

		_, err = s.AddBatch(ctx, []string{"cat"}, 0)
		assert.ErrorIs(t, err, ErrInvalidArgument)
		assert.Equal(t, 0, s.Count())
	})

	t.Run("Concurrent", func(t *testing.T) {
		rng := testutil.NewRNG(21)
		p, vals := tableProvider(t, rng.UniformVectors(100, 4), distance.MetricL2)

		s, err := NewStore(p, WithBatchConcurrency(4), WithRateLimit(10000, 10))
		require.NoError(t, err)

		vecs, err := s.AddBatch(ctx, vals, 7)
		require.NoError(t, err)
		require.Len(t, vecs, 100)
		for i, v := range vals {
			got, ok := s.Get(v)
			require.True(t, ok)
			assert.Equal(t, vecs[i], got)
		}
	})
}

func TestStore_Close(t *testing.T) {
	released := 0
	p, err := provider.NewFunc(7, lookup(animals), func(o *provider.Options) {
		o.OnRelease = func() error {
			released++
			return nil
		}
	})
	require.NoError(t, err)

	s, err := NewStore(p)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, released)

	_, err = s.Add(context.Background(), "cat")
	assert.ErrorIs(t, err, provider.ErrReleased)
}

func TestStore_Metrics(t *testing.T) {
	ctx := context.Background()
	metrics := &BasicMetricsCollector{}

	s, err := NewStore(newAnimalProvider(t), WithMetricsCollector(metrics), WithLogger(NoopLogger()))
	require.NoError(t, err)

	_, err = s.AddBatch(ctx, []string{"cat", "dog", "car"}, 2)
	require.NoError(t, err)
	require.NoError(t, s.Insert("x", animals["cat"]))
	_, err = s.SearchText(ctx, "cat", 1)
	require.NoError(t, err)
	_, err = s.Search(ctx, animals["cat"], -3)
	require.Error(t, err)

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.BatchInsertCount)
	assert.Equal(t, int64(3), stats.BatchInsertItems)
	assert.Equal(t, int64(0), stats.BatchInsertFailed)
	assert.Equal(t, int64(1), stats.InsertCount)
	assert.Equal(t, int64(2), stats.SearchCount)
	assert.Equal(t, int64(1), stats.SearchErrors)
	assert.Equal(t, int64(2), stats.EncodeCount)
	assert.Equal(t, int64(4), stats.EncodeItems)
}

func TestStore_MetricsPartialBatch(t *testing.T) {
	ctx := context.Background()
	metrics := &BasicMetricsCollector{}

	rng := testutil.NewRNG(11)
	inner, vals := tableProvider(t, rng.UniformVectors(10, 4), distance.MetricL2)
	p := &shortProvider{Provider: inner, dropAt: 1}

	s, err := NewStore(p, WithMetricsCollector(metrics), WithLogger(NoopLogger()))
	require.NoError(t, err)

	_, err = s.AddBatch(ctx, vals, 3)
	require.ErrorIs(t, err, ErrCountMismatch)

	// Chunks [0,3) and [3,6) went to the provider; the rest never did.
	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.EncodeCount)
	assert.Equal(t, int64(6), stats.EncodeItems)
	assert.Equal(t, int64(1), stats.EncodeErrors)
	assert.Equal(t, int64(10), stats.BatchInsertItems)
	assert.Equal(t, int64(7), stats.BatchInsertFailed)
}
