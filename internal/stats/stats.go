// Package stats holds the numeric helpers behind the risk metrics.
package stats

import "math"

func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// SampleStdDev uses the n-1 denominator; fewer than two values yield 0.
func SampleStdDev(values []float64) float64 {
	if len(values) <= 1 {
		return 0
	}
	m := Mean(values)
	var acc float64
	for _, v := range values {
		acc += (v - m) * (v - m)
	}
	return math.Sqrt(acc / float64(len(values)-1))
}

func Variance(values []float64) float64 {
	s := SampleStdDev(values)
	return s * s
}

// Covariance is the sample covariance of two equally long series.
func Covariance(x, y []float64) float64 {
	if len(x) != len(y) || len(x) <= 1 {
		return 0
	}
	mx, my := Mean(x), Mean(y)
	var acc float64
	for i := range x {
		acc += (x[i] - mx) * (y[i] - my)
	}
	return acc / float64(len(x)-1)
}

// OLSBeta regresses portfolio returns on benchmark returns. ok is false when
// the series are mismatched, too short, or the benchmark has no variance.
func OLSBeta(portfolio, benchmark []float64) (beta float64, ok bool) {
	if len(portfolio) != len(benchmark) || len(portfolio) <= 1 {
		return 0, false
	}
	vb := Variance(benchmark)
	if vb == 0 {
		return 0, false
	}
	return Covariance(portfolio, benchmark) / vb, true
}

// Trailing returns the last size elements of values, or all of them.
func Trailing[T any](values []T, size int) []T {
	if len(values) <= size {
		return values
	}
	return values[len(values)-size:]
}
