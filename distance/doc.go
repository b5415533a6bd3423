// Package distance provides the metric kinds and float32 kernels shared by the
// exact and approximate search backends.
//
// # Supported Metrics
//
//   - MetricCosine: 1 - cosine similarity (default)
//   - MetricInnerProduct: 1 - dot product
//   - MetricL2: squared Euclidean distance
//
// All metrics are expressed as distances: lower means closer.
//
// # Usage
//
//	fn, _ := distance.Provider(distance.MetricCosine)
//	d := fn(a, b)
//	normalized, ok := distance.NormalizeL2Copy(vec)
package distance
