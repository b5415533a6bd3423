package distance

import (
	"fmt"
	"math"
	"slices"
)

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float32) float32 {
	var ret float32
	for i := range a {
		ret += a[i] * b[i]
	}
	return ret
}

// SquaredL2 calculates the squared L2 (Euclidean) distance between two vectors.
// Assumes vectors are the same length (caller's responsibility).
func SquaredL2(a, b []float32) float32 {
	var ret float32
	for i := range a {
		d := a[i] - b[i]
		ret += d * d
	}
	return ret
}

// Magnitude returns the L2 norm of v.
func Magnitude(v []float32) float32 {
	return float32(math.Sqrt(float64(Dot(v, v))))
}

// Cosine returns 1 - cosine similarity of a and b.
// A zero-length vector has no direction; its distance to anything is 1.
func Cosine(a, b []float32) float32 {
	ma, mb := Magnitude(a), Magnitude(b)
	if ma == 0 || mb == 0 {
		return 1
	}
	return 1 - Dot(a, b)/(ma*mb)
}

// InnerProduct returns 1 - dot(a, b).
// For unit vectors this equals the cosine distance.
func InnerProduct(a, b []float32) float32 {
	return 1 - Dot(a, b)
}

// NormalizeL2InPlace L2-normalizes v in place.
// Returns false if v has zero L2 norm.
func NormalizeL2InPlace(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	norm := Magnitude(v)
	if norm == 0 {
		return false
	}
	inv := 1 / norm
	for i := range v {
		v[i] *= inv
	}
	return true
}

// NormalizeL2Copy returns a normalized copy of src.
// Returns false if src has zero L2 norm.
func NormalizeL2Copy(src []float32) ([]float32, bool) {
	dst := slices.Clone(src)
	if !NormalizeL2InPlace(dst) {
		return nil, false
	}
	return dst, true
}

// Metric represents the distance metric used for vector comparison.
type Metric int

const (
	MetricCosine Metric = iota
	MetricInnerProduct
	MetricL2
)

func (m Metric) String() string {
	switch m {
	case MetricCosine:
		return "Cosine"
	case MetricInnerProduct:
		return "InnerProduct"
	case MetricL2:
		return "L2"
	default:
		return fmt.Sprintf("Unknown(%d)", m)
	}
}

// ParseMetric maps a metric name (as produced by String, case-sensitive, or
// the short forms "cos", "ip", "l2") to a Metric.
func ParseMetric(s string) (Metric, error) {
	switch s {
	case "Cosine", "cosine", "cos":
		return MetricCosine, nil
	case "InnerProduct", "ip", "dot":
		return MetricInnerProduct, nil
	case "L2", "l2", "l2sq":
		return MetricL2, nil
	default:
		return 0, fmt.Errorf("unknown metric %q", s)
	}
}

// Func is a function type for distance calculation.
type Func func(a, b []float32) float32

// Provider returns the distance function for the given metric.
// The returned functions operate on raw (unnormalized) vectors.
func Provider(m Metric) (Func, error) {
	switch m {
	case MetricCosine:
		return Cosine, nil
	case MetricInnerProduct:
		return InnerProduct, nil
	case MetricL2:
		return SquaredL2, nil
	default:
		return nil, fmt.Errorf("unsupported metric: %v", m)
	}
}
