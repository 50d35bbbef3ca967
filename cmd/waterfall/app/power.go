package app

import (
	"math"
	"sort"
)

const (
	defaultMinPower = -120.0 // dBFS
	defaultMaxPower = 0.0    // dBFS

	// For fewer samples than this the percentile estimate is meaningless
	// and the default bounds are used instead.
	minimumSampleCount = 20
)

// PowerBounds is the display power range of a waterfall, in dBFS.
type PowerBounds struct {
	Min float64 // 5th percentile power level
	Max float64 // 95th percentile power level
}

// PowerHistogram accumulates power readings into 1 dB bins so display
// bounds can be estimated from percentiles instead of raw extremes, which
// are dominated by single hot bins.
type PowerHistogram struct {
	bins       map[int]uint32
	totalCount uint64
}

// NewPowerHistogram creates an empty histogram.
func NewPowerHistogram() *PowerHistogram {
	return &PowerHistogram{bins: make(map[int]uint32)}
}

// Update adds one power reading in dB.
func (h *PowerHistogram) Update(powerDB float64) {
	if math.IsInf(powerDB, 0) || math.IsNaN(powerDB) {
		return
	}
	h.bins[int(math.Floor(powerDB))]++
	h.totalCount++
}

// Bounds returns the 5th/95th percentile power range, or the defaults when
// too few samples have been seen.
func (h *PowerHistogram) Bounds() PowerBounds {
	if h.totalCount < minimumSampleCount {
		return PowerBounds{Min: defaultMinPower, Max: defaultMaxPower}
	}

	keys := make([]int, 0, len(h.bins))
	for bin := range h.bins {
		keys = append(keys, bin)
	}
	sort.Ints(keys)

	lowTarget := uint64(float64(h.totalCount) * 0.05)
	highTarget := uint64(float64(h.totalCount) * 0.95)

	bounds := PowerBounds{Min: float64(keys[0]), Max: float64(keys[len(keys)-1]) + 1}
	var seen uint64
	for _, bin := range keys {
		next := seen + uint64(h.bins[bin])
		if seen <= lowTarget && lowTarget < next {
			bounds.Min = float64(bin)
		}
		if seen <= highTarget && highTarget < next {
			bounds.Max = float64(bin) + 1
		}
		seen = next
	}

	if bounds.Max <= bounds.Min {
		bounds.Max = bounds.Min + 1
	}
	return bounds
}
