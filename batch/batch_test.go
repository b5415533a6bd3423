package batch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hupe1980/vecsearch/distance"
	"github.com/hupe1980/vecsearch/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider encodes "n" as the one-dimensional vector {n}. dropAt makes
// the call at that index (0-based) return one vector too few.
type stubProvider struct {
	mu     sync.Mutex
	calls  []int // chunk sizes, in call order
	n      atomic.Int32
	dropAt int32
	failAt int32
	delay  func(call int32) time.Duration
}

var _ provider.Provider = (*stubProvider)(nil)

func newStub() *stubProvider {
	return &stubProvider{dropAt: -1, failAt: -1}
}

func (s *stubProvider) Dimensions() int { return 1 }

func (s *stubProvider) Encode(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EncodeBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (s *stubProvider) EncodeBatch(_ context.Context, texts []string) ([][]float32, error) {
	call := s.n.Add(1) - 1

	if s.delay != nil {
		time.Sleep(s.delay(call))
	}

	s.mu.Lock()
	s.calls = append(s.calls, len(texts))
	s.mu.Unlock()

	if call == s.failAt {
		return nil, errors.New("boom")
	}

	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		n, err := strconv.Atoi(t)
		if err != nil {
			return nil, err
		}
		out = append(out, []float32{float32(n)})
	}

	if call == s.dropAt {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (s *stubProvider) Distance(query []float32, candidates [][]float32) ([]float32, error) {
	return provider.Distances(distance.SquaredL2, 1, query, candidates)
}

func (s *stubProvider) Release() error { return nil }

func numbers(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = strconv.Itoa(i)
	}
	return out
}

func assertIdentity(t *testing.T, vecs [][]float32, n int) {
	t.Helper()
	require.Len(t, vecs, n)
	for i, v := range vecs {
		assert.Equal(t, []float32{float32(i)}, v, "item %d", i)
	}
}

func TestEncodeBatch(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name      string
		items     int
		batchSize int
		calls     []int
	}{
		{"Exact", 6, 3, []int{3, 3}},
		{"Remainder", 7, 3, []int{3, 3, 1}},
		{"SingleChunk", 5, 64, []int{5}},
		{"OnePerChunk", 3, 1, []int{1, 1, 1}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := newStub()
			vecs, err := EncodeBatch(ctx, p, numbers(tc.items), tc.batchSize)
			require.NoError(t, err)
			assertIdentity(t, vecs, tc.items)
			assert.Equal(t, tc.calls, p.calls)
		})
	}

	t.Run("Empty", func(t *testing.T) {
		p := newStub()
		vecs, err := EncodeBatch(ctx, p, nil, 4)
		require.NoError(t, err)
		assert.Empty(t, vecs)
		assert.Empty(t, p.calls)
	})

	t.Run("InvalidBatchSize", func(t *testing.T) {
		for _, size := range []int{0, -1} {
			_, err := EncodeBatch(ctx, newStub(), numbers(3), size)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		}
	})

	t.Run("NilProvider", func(t *testing.T) {
		_, err := EncodeBatch(ctx, nil, numbers(3), 1)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("CountMismatch", func(t *testing.T) {
		p := newStub()
		p.dropAt = 1

		_, err := EncodeBatch(ctx, p, numbers(10), 4)
		require.ErrorIs(t, err, ErrCountMismatch)

		var cm *CountMismatchError
		require.ErrorAs(t, err, &cm)
		assert.Equal(t, 4, cm.Expected)
		assert.Equal(t, 3, cm.Actual)
		assert.Equal(t, 4, cm.Offset)

		// Fail-fast: the third chunk is never requested.
		assert.Equal(t, []int{4, 4}, p.calls)
	})

	t.Run("ProviderError", func(t *testing.T) {
		p := newStub()
		p.failAt = 0

		_, err := EncodeBatch(ctx, p, numbers(3), 2)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
		assert.Contains(t, err.Error(), "offset 0")
	})

	t.Run("Canceled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		p := newStub()
		_, err := EncodeBatch(cctx, p, numbers(3), 1)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, p.calls)
	})
}

func TestEncoder_Each(t *testing.T) {
	ctx := context.Background()

	t.Run("CommitsInOrder", func(t *testing.T) {
		enc, err := NewEncoder(newStub())
		require.NoError(t, err)

		var offsets []int
		err = enc.Each(ctx, numbers(7), 3, func(offset int, vecs [][]float32) error {
			offsets = append(offsets, offset)
			assert.Equal(t, []float32{float32(offset)}, vecs[0])
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []int{0, 3, 6}, offsets)
	})

	t.Run("StopsAtFailingChunk", func(t *testing.T) {
		p := newStub()
		p.dropAt = 2

		enc, err := NewEncoder(p)
		require.NoError(t, err)

		committed := 0
		err = enc.Each(ctx, numbers(10), 2, func(_ int, vecs [][]float32) error {
			committed += len(vecs)
			return nil
		})
		require.ErrorIs(t, err, ErrCountMismatch)
		assert.Equal(t, 4, committed)
	})

	t.Run("CallbackError", func(t *testing.T) {
		p := newStub()
		enc, err := NewEncoder(p)
		require.NoError(t, err)

		stop := errors.New("stop")
		err = enc.Each(ctx, numbers(6), 2, func(offset int, _ [][]float32) error {
			if offset == 2 {
				return stop
			}
			return nil
		})
		assert.ErrorIs(t, err, stop)
		assert.Len(t, p.calls, 2)
	})
}

func TestEncoder_Concurrency(t *testing.T) {
	ctx := context.Background()

	t.Run("PreservesOrder", func(t *testing.T) {
		p := newStub()
		// Earlier calls finish last.
		p.delay = func(call int32) time.Duration {
			return time.Duration(10-call%10) * time.Millisecond
		}

		enc, err := NewEncoder(p, WithConcurrency(4))
		require.NoError(t, err)

		vecs, err := enc.Encode(ctx, numbers(50), 3)
		require.NoError(t, err)
		assertIdentity(t, vecs, 50)
		assert.Len(t, p.calls, 17)
	})

	t.Run("FirstFailureInOrder", func(t *testing.T) {
		p := newStub()
		p.dropAt = 1

		enc, err := NewEncoder(p, WithConcurrency(4))
		require.NoError(t, err)

		var offsets []int
		err = enc.Each(ctx, numbers(40), 2, func(offset int, _ [][]float32) error {
			offsets = append(offsets, offset)
			return nil
		})
		require.ErrorIs(t, err, ErrCountMismatch)

		// Only chunks before the failing call's chunk are committed, and no
		// window after the failing one is started.
		var cm *CountMismatchError
		require.ErrorAs(t, err, &cm)
		for _, off := range offsets {
			assert.Less(t, off, cm.Offset)
		}
		assert.LessOrEqual(t, len(p.calls), 4)
	})

	t.Run("NonPositiveIsSequential", func(t *testing.T) {
		enc, err := NewEncoder(newStub(), WithConcurrency(0))
		require.NoError(t, err)
		assert.Equal(t, 1, enc.concurrency)
	})
}

func TestEncoder_RateLimit(t *testing.T) {
	p := newStub()
	enc, err := NewEncoder(p, WithRateLimit(1000, 1))
	require.NoError(t, err)
	require.NotNil(t, enc.limiter)

	vecs, err := enc.Encode(context.Background(), numbers(20), 2)
	require.NoError(t, err)
	assertIdentity(t, vecs, 20)
	assert.Len(t, p.calls, 10)

	t.Run("DefaultBurst", func(t *testing.T) {
		enc, err := NewEncoder(p, WithRateLimit(5, 0))
		require.NoError(t, err)
		assert.Equal(t, 1, enc.limiter.Burst())
	})

	t.Run("CanceledWhileWaiting", func(t *testing.T) {
		enc, err := NewEncoder(newStub(), WithRateLimit(0.001, 1))
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err = enc.Encode(ctx, numbers(4), 1)
		assert.Error(t, err)
	})
}

func TestCountMismatchError(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &CountMismatchError{Expected: 3, Actual: 2, Offset: 6})
	assert.ErrorIs(t, err, ErrCountMismatch)
	assert.Contains(t, err.Error(), "offset 6")
	assert.Contains(t, err.Error(), "expected 3, got 2")
}
