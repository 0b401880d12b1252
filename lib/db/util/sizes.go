package util

import (
	"math"
	"slices"
)

// SizeStats summarizes the byte sizes of the entries of a table.
// It is reported as part of db.DatabaseInfo metadata.
type SizeStats struct {
	Count        int     `json:"count"`
	TotalBytes   int     `json:"total_bytes"`
	Min          int     `json:"min"`
	Max          int     `json:"max"`
	Mean         float64 `json:"mean"`
	Median       int     `json:"median"`
	P99          int     `json:"p99"`
	StdDeviation float64 `json:"std_deviation"`
}

// NewSizeStats computes the summary of sizes. sizes is sorted in place.
func NewSizeStats(sizes []int) SizeStats {
	if len(sizes) == 0 {
		return SizeStats{}
	}
	slices.Sort(sizes)

	var total int
	for _, s := range sizes {
		total += s
	}
	mean := float64(total) / float64(len(sizes))

	// population standard deviation
	var sumSquaredDiffs float64
	for _, s := range sizes {
		diff := float64(s) - mean
		sumSquaredDiffs += diff * diff
	}

	return SizeStats{
		Count:        len(sizes),
		TotalBytes:   total,
		Min:          sizes[0],
		Max:          sizes[len(sizes)-1],
		Mean:         mean,
		Median:       percentile(sizes, 50),
		P99:          percentile(sizes, 99),
		StdDeviation: math.Sqrt(sumSquaredDiffs / float64(len(sizes))),
	}
}

// percentile returns the nearest-rank percentile p (0-100) of sorted
func percentile(sorted []int, p int) int {
	rank := int(math.Ceil(float64(p) / 100 * float64(len(sorted))))
	return sorted[max(rank-1, 0)]
}
