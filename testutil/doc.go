// Package testutil provides testing utilities for vecsearch.
//
// This package is intended for use in tests only. It provides helpers for
// generating random vectors, computing exact nearest neighbors, and
// verifying search recall.
//
// # Random Vector Generation
//
//	rng := testutil.NewRNG(seed)
//	vecs := rng.UnitVectors(1000, 32)
//
// # Exact Search (Ground Truth)
//
//	results := testutil.BruteForceSearch(dataset, query, k, distance.Cosine)
//
// # Recall Verification
//
//	recall := testutil.ComputeRecall(exactResults, approxResults)
package testutil
