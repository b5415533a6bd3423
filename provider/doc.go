// Package provider defines the embedding Provider capability consumed by the
// search stores, plus two in-process implementations.
//
// A Provider maps text to fixed-dimension float32 vectors, encodes batches,
// and computes distances between a query vector and a set of candidates.
//
//   - Func adapts any encode function and a distance metric.
//   - Hashing embeds text with hashed character n-grams; deterministic and
//     dependency free, suitable for tests, demos and lexical similarity.
//
// Remote model backends live in sub-packages (see provider/openai).
package provider
