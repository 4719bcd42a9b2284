package bench

import (
	"math"
	"sort"
	"time"
)

// Summary describes a set of timing samples.
type Summary struct {
	N      int
	Min    time.Duration
	Max    time.Duration
	Mean   time.Duration
	Median time.Duration
	StdDev time.Duration
}

// Summarize computes order statistics and the sample standard deviation.
// An empty input yields the zero Summary.
func Summarize(samples []time.Duration) Summary {
	n := len(samples)
	if n == 0 {
		return Summary{}
	}
	sorted := make([]time.Duration, n)
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum float64
	for _, d := range sorted {
		sum += float64(d)
	}
	mean := sum / float64(n)

	var median time.Duration
	if n%2 == 1 {
		median = sorted[n/2]
	} else {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	var stddev float64
	if n > 1 {
		var sq float64
		for _, d := range sorted {
			diff := float64(d) - mean
			sq += diff * diff
		}
		stddev = math.Sqrt(sq / float64(n-1))
	}

	return Summary{
		N:      n,
		Min:    sorted[0],
		Max:    sorted[n-1],
		Mean:   time.Duration(math.Round(mean)),
		Median: median,
		StdDev: time.Duration(math.Round(stddev)),
	}
}
