package hnsw

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/bits-and-blooms/bitset"
	"github.com/hupe1980/vecsearch/distance"
	"github.com/hupe1980/vecsearch/internal/queue"
)

const (
	// DefaultConnectivity is the default number of links per node on upper layers.
	DefaultConnectivity = 32

	// DefaultExpansionAdd is the default candidate list size during insertion.
	DefaultExpansionAdd = 40

	// DefaultExpansionSearch is the default candidate list size during search.
	DefaultExpansionSearch = 16

	// minimumConnectivity avoids 1/log(1) in the level multiplier.
	minimumConnectivity = 2
)

var (
	// ErrDuplicateKey is returned by Add when the key is already indexed and Multi is disabled.
	ErrDuplicateKey = errors.New("hnsw: duplicate key")
)

// ErrInvalidDimension indicates an invalid configured dimension.
type ErrInvalidDimension struct {
	Dimension int
}

func (e *ErrInvalidDimension) Error() string {
	return fmt.Sprintf("hnsw: invalid dimension: %d", e.Dimension)
}

// ErrDimensionMismatch is a named error type for dimension mismatch
type ErrDimensionMismatch struct {
	Expected int // Expected dimensions
	Actual   int // Actual dimensions
}

// Error returns the error message for dimension mismatch
func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("hnsw: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Options represents the options for configuring HNSW.
type Options struct {
	// Metric selects the distance computed between vectors.
	// Cosine stores L2-normalized vectors and compares them with 1 - dot.
	Metric distance.Metric

	// Connectivity (M) specifies the number of established connections for every new element.
	// Layer 0 allows twice as many. Values below 2 are raised to 2.
	Connectivity int

	// ExpansionAdd is the size of the dynamic candidate list while inserting.
	// Larger values build a better graph at the cost of slower inserts.
	ExpansionAdd int

	// ExpansionSearch is the size of the dynamic candidate list while searching.
	// It is raised to k when a search asks for more results.
	ExpansionSearch int

	// Multi allows the same key to be added more than once.
	Multi bool

	// Heuristic selects neighbours with the diversity heuristic instead of plain k-NN.
	Heuristic bool

	// RandomSeed makes level assignment deterministic. If nil, a time-based seed is used.
	RandomSeed *int64
}

// DefaultOptions contains the default options for HNSW.
var DefaultOptions = Options{
	Metric:          distance.MetricCosine,
	Connectivity:    DefaultConnectivity,
	ExpansionAdd:    DefaultExpansionAdd,
	ExpansionSearch: DefaultExpansionSearch,
	Heuristic:       true,
}

type node struct {
	key     int
	vector  []float32
	friends [][]uint32 // friends[level] = neighbour slots on that level
}

// Index is a Hierarchical Navigable Small World graph over integer keys.
// All methods are safe for concurrent use.
type Index struct {
	mu sync.RWMutex

	dimension int
	opts      Options
	distFunc  distance.Func
	normalize bool

	mmax  int     // Max connections per node on upper layers
	mmax0 int     // Max connections on layer 0
	ml    float64 // Normalization factor for level generation
	rng   *rand.Rand

	nodes    []*node
	entry    uint32
	maxLevel int
	keys     *roaring64.Bitmap
}

// New creates a new HNSW index for vectors of the given dimension.
func New(dimension int, optFns ...func(o *Options)) (*Index, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if dimension <= 0 {
		return nil, &ErrInvalidDimension{Dimension: dimension}
	}
	if opts.Connectivity < minimumConnectivity {
		opts.Connectivity = minimumConnectivity
	}
	if opts.ExpansionAdd < opts.Connectivity {
		opts.ExpansionAdd = opts.Connectivity
	}
	if opts.ExpansionSearch <= 0 {
		opts.ExpansionSearch = 1
	}

	var distFunc distance.Func
	normalize := false
	switch opts.Metric {
	case distance.MetricCosine:
		distFunc = distance.InnerProduct
		normalize = true
	default:
		fn, err := distance.Provider(opts.Metric)
		if err != nil {
			return nil, fmt.Errorf("hnsw: %w", err)
		}
		distFunc = fn
	}

	seed := time.Now().UnixNano()
	if opts.RandomSeed != nil {
		seed = *opts.RandomSeed
	}

	return &Index{
		dimension: dimension,
		opts:      opts,
		distFunc:  distFunc,
		normalize: normalize,
		mmax:      opts.Connectivity,
		mmax0:     2 * opts.Connectivity,
		ml:        1 / math.Log(float64(opts.Connectivity)),
		rng:       rand.New(rand.NewSource(seed)), // nolint gosec
		keys:      roaring64.New(),
	}, nil
}

// Dimension returns the vector dimensionality of the index.
func (h *Index) Dimension() int { return h.dimension }

// Options returns the options the index was created with.
func (h *Index) Options() Options { return h.opts }

// Size returns the number of indexed vectors.
func (h *Index) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.nodes)
}

// Contains reports whether key has been added.
func (h *Index) Contains(key int) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.keys.Contains(uint64(key))
}

// Add inserts vector v under key.
// The index is left unchanged when an error is returned.
func (h *Index) Add(key int, v []float32) error {
	if len(v) != h.dimension {
		return &ErrDimensionMismatch{Expected: h.dimension, Actual: len(v)}
	}

	vec := h.prepare(v)

	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.opts.Multi && h.keys.Contains(uint64(key)) {
		return fmt.Errorf("%w: %d", ErrDuplicateKey, key)
	}

	level := h.randomLevel()
	id := uint32(len(h.nodes))
	n := &node{
		key:     key,
		vector:  vec,
		friends: make([][]uint32, level+1),
	}

	if len(h.nodes) == 0 {
		h.nodes = append(h.nodes, n)
		h.entry = id
		h.maxLevel = level
		h.keys.Add(uint64(key))
		return nil
	}

	ep := h.entry
	epDist := h.distFunc(vec, h.nodes[ep].vector)

	// Find single shortest path from top layers above our current node, which will be our new starting-point
	for l := h.maxLevel; l > level; l-- {
		ep, epDist = h.greedyClosest(vec, ep, epDist, l)
	}

	h.nodes = append(h.nodes, n)

	for l := min(level, h.maxLevel); l >= 0; l-- {
		candidates := h.searchLayer(vec, ep, epDist, h.opts.ExpansionAdd, l)
		neighbours := h.selectNeighbours(candidates, h.maxConnections(l))

		n.friends[l] = make([]uint32, len(neighbours))
		for i, nb := range neighbours {
			n.friends[l][i] = nb.Node
		}
		for _, nb := range neighbours {
			h.link(nb.Node, id, l)
		}

		ep, epDist = candidates[0].Node, candidates[0].Distance
	}

	if level > h.maxLevel {
		h.entry = id
		h.maxLevel = level
	}
	h.keys.Add(uint64(key))

	return nil
}

// Search returns up to k approximate nearest keys to q, closest first,
// together with their distances under the index metric.
func (h *Index) Search(q []float32, k int) ([]int, []float32, error) {
	if len(q) != h.dimension {
		return nil, nil, &ErrDimensionMismatch{Expected: h.dimension, Actual: len(q)}
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if k <= 0 || len(h.nodes) == 0 {
		return nil, nil, nil
	}

	query := h.prepare(q)

	ep := h.entry
	epDist := h.distFunc(query, h.nodes[ep].vector)
	for l := h.maxLevel; l > 0; l-- {
		ep, epDist = h.greedyClosest(query, ep, epDist, l)
	}

	items := h.searchLayer(query, ep, epDist, max(h.opts.ExpansionSearch, k), 0)
	if len(items) > k {
		items = items[:k]
	}

	keys := make([]int, len(items))
	distances := make([]float32, len(items))
	for i, it := range items {
		keys[i] = h.nodes[it.Node].key
		distances[i] = it.Distance
	}

	return keys, distances, nil
}

// All scores q against every node and returns all keys with their distances,
// closest first. Unlike Search it does not walk the graph, so nodes that
// pruning left unreachable are included. Ties keep insertion order.
func (h *Index) All(q []float32) ([]int, []float32, error) {
	if len(q) != h.dimension {
		return nil, nil, &ErrDimensionMismatch{Expected: h.dimension, Actual: len(q)}
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	query := h.prepare(q)

	items := make([]queue.Item, len(h.nodes))
	for i, n := range h.nodes {
		items[i] = queue.Item{Node: uint32(i), Distance: h.distFunc(query, n.vector)}
	}
	sort.SliceStable(items, func(a, b int) bool {
		return items[a].Distance < items[b].Distance
	})

	keys := make([]int, len(items))
	distances := make([]float32, len(items))
	for i, it := range items {
		keys[i] = h.nodes[it.Node].key
		distances[i] = it.Distance
	}

	return keys, distances, nil
}

func (h *Index) prepare(v []float32) []float32 {
	vec := make([]float32, len(v))
	copy(vec, v)
	if h.normalize {
		// Zero vectors keep their values and end up at distance 1 from everything.
		distance.NormalizeL2InPlace(vec)
	}
	return vec
}

func (h *Index) randomLevel() int {
	// 1 - Float64 lies in (0, 1], keeping the logarithm finite.
	return int(math.Floor(-math.Log(1-h.rng.Float64()) * h.ml))
}

func (h *Index) maxConnections(level int) int {
	// HNSW allows double the connections for the bottom level (0)
	if level == 0 {
		return h.mmax0
	}
	return h.mmax
}

// greedyClosest walks a single layer towards q until no neighbour is closer.
func (h *Index) greedyClosest(q []float32, ep uint32, epDist float32, level int) (uint32, float32) {
	changed := true
	for changed {
		changed = false
		friends := h.nodes[ep].friends
		if level >= len(friends) {
			break
		}
		for _, nb := range friends[level] {
			if d := h.distFunc(q, h.nodes[nb].vector); d < epDist {
				ep, epDist = nb, d
				changed = true
			}
		}
	}
	return ep, epDist
}

// searchLayer performs a beam search of width ef on one layer and returns
// the candidates found, closest first.
func (h *Index) searchLayer(q []float32, ep uint32, epDist float32, ef int, level int) []queue.Item {
	visited := bitset.New(uint(len(h.nodes)))
	visited.Set(uint(ep))

	start := queue.Item{Node: ep, Distance: epDist}

	candidates := queue.NewMin(ef)
	candidates.Push(start)

	results := queue.NewMax(ef + 1)
	results.Push(start)

	for candidates.Len() > 0 {
		c, _ := candidates.Pop()
		worst, _ := results.Top()
		if c.Distance > worst.Distance {
			break
		}

		friends := h.nodes[c.Node].friends
		if level >= len(friends) {
			continue
		}

		for _, nb := range friends[level] {
			if visited.Test(uint(nb)) {
				continue
			}
			visited.Set(uint(nb))

			d := h.distFunc(q, h.nodes[nb].vector)
			worst, _ = results.Top()
			if results.Len() < ef || d < worst.Distance {
				item := queue.Item{Node: nb, Distance: d}
				candidates.Push(item)
				results.Push(item)
				if results.Len() > ef {
					results.Pop()
				}
			}
		}
	}

	return results.Ascending()
}

// selectNeighbours picks up to m links from candidates ordered closest first.
func (h *Index) selectNeighbours(candidates []queue.Item, m int) []queue.Item {
	if len(candidates) <= m {
		return candidates
	}
	if !h.opts.Heuristic {
		return candidates[:m]
	}

	selected := make([]queue.Item, 0, m)
	pruned := make([]queue.Item, 0, len(candidates))

	for _, c := range candidates {
		if len(selected) >= m {
			break
		}
		keep := true
		// Keep c only if it is closer to the base element than to any already selected neighbour.
		for _, s := range selected {
			if h.distFunc(h.nodes[s.Node].vector, h.nodes[c.Node].vector) < c.Distance {
				keep = false
				break
			}
		}
		if keep {
			selected = append(selected, c)
		} else {
			pruned = append(pruned, c)
		}
	}

	// Fill remaining slots with the closest pruned candidates.
	for i := 0; len(selected) < m && i < len(pruned); i++ {
		selected = append(selected, pruned[i])
	}

	return selected
}

// link adds a directed edge first -> second on level, shrinking first's
// neighbour list when it exceeds the level's capacity.
func (h *Index) link(first, second uint32, level int) {
	n := h.nodes[first]
	n.friends[level] = append(n.friends[level], second)

	maxConnections := h.maxConnections(level)
	if len(n.friends[level]) <= maxConnections {
		return
	}

	candidates := make([]queue.Item, len(n.friends[level]))
	for i, id := range n.friends[level] {
		candidates[i] = queue.Item{Node: id, Distance: h.distFunc(n.vector, h.nodes[id].vector)}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Distance < candidates[j].Distance
	})

	selected := h.selectNeighbours(candidates, maxConnections)

	friends := make([]uint32, len(selected))
	for i, s := range selected {
		friends[i] = s.Node
	}
	n.friends[level] = friends
}
