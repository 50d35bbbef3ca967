// Package detect implements the detection half of the signal-analysis
// pipeline: an ordered-statistics CFAR detector over power spectra, a
// temporal/frequency clustering engine that turns per-frame detections into
// completed signal events, and a spectral feature extractor.
package detect

import (
	"fmt"
	"math"
)

// maxCFARFFTSize bounds the spectrum size a detector accepts.
const maxCFARFFTSize = 65536

// CFARConfig describes an ordered-statistics CFAR detector.
type CFARConfig struct {
	FFTSize    int     `yaml:"fftSize"`    // Power spectrum length, (0, 65536]
	PFA        float64 `yaml:"pfa"`        // Target probability of false alarm, (0, 1]
	RefCells   int     `yaml:"refCells"`   // Training cells per side of the CUT
	GuardCells int     `yaml:"guardCells"` // Excluded cells adjacent to the CUT, per side
	OSRank     int     `yaml:"osRank"`     // Order-statistic rank, counted from the largest
}

// Validate checks the detector configuration.
func (c *CFARConfig) Validate() error {
	if c.FFTSize <= 0 || c.FFTSize > maxCFARFFTSize {
		return fmt.Errorf("cfar: fftSize %d out of range (0, %d]", c.FFTSize, maxCFARFFTSize)
	}
	if c.PFA <= 0 || c.PFA > 1 {
		return fmt.Errorf("cfar: pfa %g out of range (0, 1]", c.PFA)
	}
	if c.RefCells <= 0 || c.RefCells > c.FFTSize/4 {
		return fmt.Errorf("cfar: refCells %d out of range (0, %d]", c.RefCells, c.FFTSize/4)
	}
	if c.GuardCells < 0 || c.GuardCells > c.RefCells {
		return fmt.Errorf("cfar: guardCells %d out of range [0, refCells=%d]", c.GuardCells, c.RefCells)
	}
	if c.OSRank <= 0 || c.OSRank > c.RefCells {
		return fmt.Errorf("cfar: osRank %d out of range (0, refCells=%d]", c.OSRank, c.RefCells)
	}
	if c.FFTSize < 2*(c.RefCells+c.GuardCells)+1 {
		return fmt.Errorf("cfar: fftSize %d too small for window 2*(%d+%d)+1",
			c.FFTSize, c.RefCells, c.GuardCells)
	}
	return nil
}

// Detection is one bin-level CFAR detection. Detections are ephemeral:
// produced per frame and handed straight to the clustering engine.
type Detection struct {
	Bin         int     // Spectrum bin index of the CUT
	ThresholdDB float64 // Adaptive threshold at the CUT, dB
	PowerDB     float64 // Signal power at the CUT, dB
	SNRdB       float64 // PowerDB - ThresholdDB
	Confidence  float64 // Linear power/threshold ratio normalized at 10x, [0, 1]
}

// CFARDetector is an ordered-statistics CFAR detector. It is a pure
// per-frame transform: only the configuration, the derived threshold scale
// and a reusable training scratch buffer persist between calls, and the
// scratch buffer carries no information across frames.
type CFARDetector struct {
	cfg     CFARConfig
	scale   float64   // precomputed threshold scaling constant
	scratch []float64 // training cells, overwritten each call
}

// NewCFARDetector validates cfg and builds a detector with its derived
// scaling constant and training scratch buffer.
func NewCFARDetector(cfg CFARConfig) (*CFARDetector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	total := 2 * cfg.RefCells

	return &CFARDetector{
		cfg:     cfg,
		scale:   thresholdScale(total, cfg.OSRank, cfg.PFA),
		scratch: make([]float64, 0, total),
	}, nil
}

// thresholdScale solves the OS-CFAR false-alarm equation for the scaling
// constant applied to the order-statistic noise estimate. For exponentially
// distributed noise power and a threshold of alpha times the k-th smallest
// of total training cells, the false-alarm probability is
//
//	PFA(alpha) = prod_{i=0}^{k-1} (T-i) / (T-i+alpha)
//
// which is monotonically decreasing in alpha, so a bisection converges to
// the constant matching the target PFA. The noise estimate is the rank-th
// largest training cell, i.e. k = T-rank+1 smallest.
func thresholdScale(total, rank int, pfa float64) float64 {
	k := total - rank + 1

	falseAlarm := func(alpha float64) float64 {
		p := 1.0
		for i := 0; i < k; i++ {
			t := float64(total - i)
			p *= t / (t + alpha)
		}
		return p
	}

	if pfa >= 1 {
		return 0
	}

	hi := 1.0
	for falseAlarm(hi) > pfa {
		hi *= 2
	}

	lo := 0.0
	for i := 0; i < 64; i++ {
		mid := (lo + hi) / 2
		if falseAlarm(mid) > pfa {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}

// Config returns the detector configuration.
func (d *CFARDetector) Config() CFARConfig { return d.cfg }

// Threshold computes the adaptive detection threshold for the cell under
// test at bin cut. It returns 0 when fewer valid training cells than the
// order-statistic rank are available, in which case the caller must skip
// the bin.
func (d *CFARDetector) Threshold(spectrum []float64, cut int) float64 {
	if len(spectrum) != d.cfg.FFTSize || cut < 0 || cut >= d.cfg.FFTSize {
		return 0
	}

	lo := cut - d.cfg.RefCells - d.cfg.GuardCells
	hi := cut + d.cfg.RefCells + d.cfg.GuardCells
	if lo < 0 {
		lo = 0
	}
	if hi >= d.cfg.FFTSize {
		hi = d.cfg.FFTSize - 1
	}

	// Ordered statistics only make sense over positive finite powers; zero
	// and negative bins are invalid and shrink the effective training set,
	// as does the clamped window near the spectrum edges.
	d.scratch = d.scratch[:0]
	for i := lo; i <= hi; i++ {
		dist := i - cut
		if dist < 0 {
			dist = -dist
		}
		if dist <= d.cfg.GuardCells {
			continue
		}
		if p := spectrum[i]; p > 0 {
			d.scratch = append(d.scratch, p)
		}
	}

	if len(d.scratch) < d.cfg.OSRank {
		return 0
	}

	// The osRank-th largest training value is the (count - osRank)-th
	// smallest, selected in place.
	noise := quickselect(d.scratch, len(d.scratch)-d.cfg.OSRank)
	return noise * d.scale
}

// ProcessFrame scans the spectrum in ascending bin order and returns up to
// maxDetections bin-level detections. The spectrum is read-only and may be
// reused by the caller afterwards.
func (d *CFARDetector) ProcessFrame(spectrum []float64, maxDetections int) ([]Detection, error) {
	if len(spectrum) != d.cfg.FFTSize {
		return nil, fmt.Errorf("cfar: spectrum length %d, want %d", len(spectrum), d.cfg.FFTSize)
	}
	if maxDetections <= 0 {
		return nil, fmt.Errorf("cfar: maxDetections %d must be positive", maxDetections)
	}

	var detections []Detection
	for cut := 0; cut < d.cfg.FFTSize && len(detections) < maxDetections; cut++ {
		threshold := d.Threshold(spectrum, cut)
		if threshold <= 0 {
			continue
		}
		power := spectrum[cut]
		if power <= 0 || power <= threshold {
			continue
		}

		thresholdDB := 10 * math.Log10(threshold)
		powerDB := 10 * math.Log10(power)
		detections = append(detections, Detection{
			Bin:         cut,
			ThresholdDB: thresholdDB,
			PowerDB:     powerDB,
			SNRdB:       powerDB - thresholdDB,
			Confidence:  math.Min(1, (power/threshold)/10),
		})
	}
	return detections, nil
}

// quickselect returns the k-th smallest element of v (0-based) using an
// iterative Hoare partition. The slice is reordered in place.
func quickselect(v []float64, k int) float64 {
	lo, hi := 0, len(v)-1
	for lo < hi {
		pivot := v[(lo+hi)/2]
		i, j := lo, hi
		for i <= j {
			for v[i] < pivot {
				i++
			}
			for v[j] > pivot {
				j--
			}
			if i <= j {
				v[i], v[j] = v[j], v[i]
				i++
				j--
			}
		}
		if k <= j {
			hi = j
		} else if k >= i {
			lo = i
		} else {
			break
		}
	}
	return v[k]
}
