package metrics

import (
	"math"
	"sort"
)

// Stats holds descriptive statistics for a series of values.
type Stats struct {
	Min    float64
	Max    float64
	Mean   float64
	Median float64
	P95    float64
	P99    float64
	StdDev float64
}

// Percentile returns the p-th percentile of values using the nearest-rank
// method: index = ceil(p/100 * n) - 1, clamped to [0, n-1]. Empty input
// returns 0.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// Statistics computes descriptive statistics over values. Empty input
// returns the zero struct, never an error. StdDev is the population
// standard deviation.
func Statistics(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(len(sorted))

	var sqSum float64
	for _, v := range sorted {
		d := v - mean
		sqSum += d * d
	}

	return Stats{
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Mean:   mean,
		Median: Percentile(sorted, 50),
		P95:    Percentile(sorted, 95),
		P99:    Percentile(sorted, 99),
		StdDev: math.Sqrt(sqSum / float64(len(sorted))),
	}
}

// Limits holds optional upper bounds for threshold checks. Nil fields are
// never violated.
type Limits struct {
	MaxCostUSD   *float64
	MaxLatencyMS *float64
	MaxTokens    *float64
}

// Actual holds observed values for threshold checks.
type Actual struct {
	CostUSD   float64
	LatencyMS float64
	Tokens    float64
}

// Violation is one exceeded limit.
type Violation struct {
	Type   string
	Actual float64
	Limit  float64
}

// CheckThresholds returns the list of violated limits. Absent limits are
// never violated.
func CheckThresholds(actual Actual, limits Limits) []Violation {
	var out []Violation
	if limits.MaxCostUSD != nil && actual.CostUSD > *limits.MaxCostUSD {
		out = append(out, Violation{Type: "cost", Actual: actual.CostUSD, Limit: *limits.MaxCostUSD})
	}
	if limits.MaxLatencyMS != nil && actual.LatencyMS > *limits.MaxLatencyMS {
		out = append(out, Violation{Type: "latency", Actual: actual.LatencyMS, Limit: *limits.MaxLatencyMS})
	}
	if limits.MaxTokens != nil && actual.Tokens > *limits.MaxTokens {
		out = append(out, Violation{Type: "tokens", Actual: actual.Tokens, Limit: *limits.MaxTokens})
	}
	return out
}

// PercentChange returns the percent change from baseline to current.
// A zero baseline denominator is defined as 0%, never NaN or Inf.
func PercentChange(baseline, current float64) float64 {
	if baseline == 0 {
		return 0
	}
	return (current - baseline) / baseline * 100
}
