// Package vecsearch stores text under embedding vectors and answers
// k-nearest-neighbour queries.
//
// Three stores share one Provider-driven workflow (encode, insert, search):
//
//   - Store: exact brute-force search over value → vector.
//   - KeyedStore: a Store with an integer key per value (last write wins).
//   - ApproxStore: an HNSW graph over key → vector with its own key → value table.
//
// KeyedStore and ApproxStore both satisfy KeySearcher, so callers can pick
// the backend at construction time and keep the rest of their code unchanged.
//
// # Quick Start
//
//	p, _ := provider.NewHashing()
//
//	// Exact
//	store, _ := vecsearch.NewKeyedStore(p)
//
//	// Approximate
//	store, _ := vecsearch.Approximate(p).
//	    Cosine().
//	    Connectivity(32).
//	    ExpansionSearch(64).
//	    Build()
//
//	_, _ = store.AddBatch(ctx, []int{1, 2}, []string{"to be", "or not to be"}, 64)
//	results, _ := store.SearchText(ctx, "be", 1)
//
// # Batches
//
// AddBatch encodes values in chunks of batchSize and commits each chunk as
// soon as it is encoded. If a chunk fails, earlier chunks stay in the store
// and the returned *BatchError reports how many items were committed.
//
// # Search Results
//
// Results are ordered by ascending distance. k == -1 returns everything,
// k larger than Count returns everything, and an empty store returns an
// empty slice rather than an error.
package vecsearch
