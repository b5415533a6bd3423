// Package hnsw implements Hierarchical Navigable Small World graphs.
//
// HNSW provides approximate nearest neighbor search with sub-linear query
// time. Vectors are addressed by caller-supplied integer keys.
//
// # Parameters
//
//   - Connectivity (M): max connections per node on upper layers; layer 0 allows 2*M (default: 32)
//   - ExpansionAdd: candidate list size during insertion (default: 40)
//   - ExpansionSearch: candidate list size during search (default: 16, raised to k when smaller)
//   - Multi: whether the same key may be added more than once (default: false)
//
// All parameters are fixed when the index is created.
//
// # Reference
//
// Malkov & Yashunin, "Efficient and robust approximate nearest neighbor search
// using Hierarchical Navigable Small World graphs", IEEE TPAMI 2018.
package hnsw
