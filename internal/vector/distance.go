package vector

import (
	"fmt"
	"math"
)

// Metric identifies the distance function used by an index. Distances are
// metric-specific: squared L2 is non-negative with 0 meaning identical;
// inner product is reported negated so that ascending order always means
// more similar.
type Metric string

const (
	// MetricSquaredL2 is squared Euclidean distance.
	MetricSquaredL2 Metric = "l2"
	// MetricInnerProduct is negative inner product (for normalized vectors,
	// equivalent ordering to cosine similarity).
	MetricInnerProduct Metric = "ip"
)

// ParseMetric parses a metric name from configuration. An empty string
// selects squared L2.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricSquaredL2, "":
		return MetricSquaredL2, nil
	case MetricInnerProduct:
		return MetricInnerProduct, nil
	default:
		return "", fmt.Errorf("unknown metric: %q (supported: l2, ip)", s)
	}
}

// Code returns the single-byte identifier stored in snapshot headers.
func (m Metric) Code() uint8 {
	if m == MetricInnerProduct {
		return 2
	}
	return 1
}

// MetricFromCode is the inverse of Code.
func MetricFromCode(c uint8) (Metric, error) {
	switch c {
	case 1:
		return MetricSquaredL2, nil
	case 2:
		return MetricInnerProduct, nil
	default:
		return "", fmt.Errorf("unknown metric code: %d", c)
	}
}

// Distance computes the metric distance between two vectors of equal length.
func (m Metric) Distance(a, b []float32) float32 {
	if m == MetricInnerProduct {
		return -Dot(a, b)
	}
	return SquaredL2(a, b)
}

// SquaredL2 returns the squared Euclidean distance between two vectors.
// Assumes equal length (caller's responsibility).
func SquaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// Dot returns the inner product of two vectors. Assumes equal length.
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// NormalizeL2 normalizes v to unit length in place. Zero vectors are left unchanged.
func NormalizeL2(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}
