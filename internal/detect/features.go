package detect

import (
	"fmt"
	"math"
)

const (
	defaultNoiseBinsMargin   = 10
	defaultOccupiedThreshold = 0.99

	// noiseFloorEpsilon is the fallback noise floor when no valid margin
	// bins exist.
	noiseFloorEpsilon = 1e-12

	// autoBoundsFraction stops the automatic signal-bounds expansion once
	// power drops below this fraction of the center-bin peak.
	autoBoundsFraction = 0.1
)

// FeatureConfig describes the feature extractor. Zero values for the
// margins are replaced with the defaults at construction.
type FeatureConfig struct {
	SampleRate        float64 `yaml:"sampleRate"`        // Hz
	FFTSize           int     `yaml:"fftSize"`           // Power spectrum length
	NoiseBinsMargin   int     `yaml:"noiseBinsMargin"`   // Width of the flanking noise-estimate regions
	OccupiedThreshold float64 `yaml:"occupiedThreshold"` // Cumulative power fraction for occupied bandwidth
}

// FeatureResult is the immutable record computed for one spectrum segment.
// Valid is false when the bounded region held no usable bins, in which case
// the remaining fields carry no meaning.
type FeatureResult struct {
	Valid bool

	SNRdB        float64
	PeakPower    float64 // linear
	AvgPower     float64 // linear
	NoiseFloor   float64 // linear
	PeakPowerDB  float64
	NoiseFloorDB float64

	BandwidthHz    float64 // occupied bandwidth, the primary estimate
	Bandwidth3dBHz float64
	OccupiedHz     float64

	SpectralCentroid float64 // power-weighted mean of bin/fftSize
	SpectralSpread   float64 // power-weighted std dev around the centroid
	PAPRdB           float64
	SpectralFlatness float64 // geometric/arithmetic mean, 1 = noise-like

	Modulation    string
	ModConfidence float64

	SignalBins int
	TotalBins  int
}

// FeatureExtractor is a pure function library over caller-supplied power
// spectra. It holds only configuration, no streaming state.
type FeatureExtractor struct {
	cfg      FeatureConfig
	binWidth float64
}

// NewFeatureExtractor validates cfg, fills defaulted fields and builds an
// extractor.
func NewFeatureExtractor(cfg FeatureConfig) (*FeatureExtractor, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("features: sampleRate %g must be positive", cfg.SampleRate)
	}
	if cfg.FFTSize <= 0 {
		return nil, fmt.Errorf("features: fftSize %d must be positive", cfg.FFTSize)
	}
	if cfg.NoiseBinsMargin == 0 {
		cfg.NoiseBinsMargin = defaultNoiseBinsMargin
	}
	if cfg.NoiseBinsMargin < 0 {
		return nil, fmt.Errorf("features: noiseBinsMargin %d must be positive", cfg.NoiseBinsMargin)
	}
	if cfg.OccupiedThreshold == 0 {
		cfg.OccupiedThreshold = defaultOccupiedThreshold
	}
	if cfg.OccupiedThreshold <= 0 || cfg.OccupiedThreshold > 1 {
		return nil, fmt.Errorf("features: occupiedThreshold %g out of range (0, 1]", cfg.OccupiedThreshold)
	}
	return &FeatureExtractor{
		cfg:      cfg,
		binWidth: cfg.SampleRate / float64(cfg.FFTSize),
	}, nil
}

// FromSpectrum computes the feature record for the signal around centerBin.
// bandwidthBinsHint, when non-zero, fixes the signal bounds to
// centerBin ± hint/2; otherwise bounds are auto-detected by expanding while
// power stays above 10% of the center-bin peak. Returns an error (and an
// invalid result) when no valid bins fall inside the bounds.
func (fe *FeatureExtractor) FromSpectrum(spectrum []float64, centerBin, bandwidthBinsHint int) (FeatureResult, error) {
	var res FeatureResult

	if len(spectrum) != fe.cfg.FFTSize {
		return res, fmt.Errorf("features: spectrum length %d, want %d", len(spectrum), fe.cfg.FFTSize)
	}
	if centerBin < 0 || centerBin >= len(spectrum) {
		return res, fmt.Errorf("features: centerBin %d out of range [0, %d)", centerBin, len(spectrum))
	}

	lo, hi := fe.signalBounds(spectrum, centerBin, bandwidthBinsHint)

	var total, peak float64
	validBins := 0
	for i := lo; i <= hi; i++ {
		p := spectrum[i]
		if p <= 0 {
			continue
		}
		total += p
		peak = math.Max(peak, p)
		validBins++
	}
	res.TotalBins = hi - lo + 1
	res.SignalBins = validBins

	if validBins == 0 {
		return res, fmt.Errorf("features: no valid bins in [%d, %d]", lo, hi)
	}

	res.PeakPower = peak
	res.AvgPower = total / float64(validBins)
	res.NoiseFloor = fe.noiseFloor(spectrum, lo, hi)

	if peak > 0 && res.NoiseFloor > 0 {
		res.SNRdB = 10 * math.Log10(peak/res.NoiseFloor)
	} else {
		res.SNRdB = math.Inf(-1)
	}
	res.PeakPowerDB = powerDB(peak)
	res.NoiseFloorDB = powerDB(res.NoiseFloor)

	res.Bandwidth3dBHz = fe.bandwidth3dB(spectrum, centerBin, peak)
	res.OccupiedHz = fe.occupiedBandwidth(spectrum, centerBin, total)
	res.BandwidthHz = res.OccupiedHz

	res.SpectralCentroid, res.SpectralSpread = fe.centroidSpread(spectrum, lo, hi)
	res.PAPRdB = paprDB(peak, res.AvgPower)
	res.SpectralFlatness = flatness(spectrum[lo : hi+1])

	res.Modulation, res.ModConfidence = classifyModulation(res.BandwidthHz)
	res.Valid = true
	return res, nil
}

// signalBounds returns the inclusive bin range of the signal: the caller's
// hint when present, otherwise an expansion from the center while power
// stays at or above 10% of the center peak.
func (fe *FeatureExtractor) signalBounds(spectrum []float64, centerBin, hint int) (int, int) {
	if hint > 0 {
		lo := max(centerBin-hint/2, 0)
		hi := min(centerBin+hint/2, len(spectrum)-1)
		return lo, hi
	}

	floor := spectrum[centerBin] * autoBoundsFraction
	lo, hi := centerBin, centerBin
	for lo > 0 && spectrum[lo-1] >= floor {
		lo--
	}
	for hi < len(spectrum)-1 && spectrum[hi+1] >= floor {
		hi++
	}
	return lo, hi
}

// noiseFloor averages valid bins in two symmetric margin regions flanking
// the signal bounds, falling back to a small positive floor when no valid
// margin bins exist.
func (fe *FeatureExtractor) noiseFloor(spectrum []float64, lo, hi int) float64 {
	var sum float64
	count := 0

	left := max(lo-fe.cfg.NoiseBinsMargin, 0)
	for i := left; i < lo; i++ {
		if spectrum[i] > 0 {
			sum += spectrum[i]
			count++
		}
	}
	right := min(hi+fe.cfg.NoiseBinsMargin, len(spectrum)-1)
	for i := hi + 1; i <= right; i++ {
		if spectrum[i] > 0 {
			sum += spectrum[i]
			count++
		}
	}

	if count == 0 {
		return noiseFloorEpsilon
	}
	return sum / float64(count)
}

// bandwidth3dB expands outward from centerBin, independently in each
// direction, until power falls to half the peak or below.
func (fe *FeatureExtractor) bandwidth3dB(spectrum []float64, centerBin int, peak float64) float64 {
	half := peak / 2

	lo := centerBin
	for lo > 0 && spectrum[lo-1] > half {
		lo--
	}
	hi := centerBin
	for hi < len(spectrum)-1 && spectrum[hi+1] > half {
		hi++
	}
	return float64(hi-lo+1) * fe.binWidth
}

// occupiedBandwidth grows a symmetric window around centerBin radius by
// radius until the window's cumulative power reaches the occupied threshold
// of the signal-bounds total.
func (fe *FeatureExtractor) occupiedBandwidth(spectrum []float64, centerBin int, total float64) float64 {
	if total <= 0 {
		return 0
	}
	target := total * fe.cfg.OccupiedThreshold

	sum := 0.0
	if spectrum[centerBin] > 0 {
		sum = spectrum[centerBin]
	}
	radius := 0
	maxRadius := max(centerBin, len(spectrum)-1-centerBin)
	for sum < target && radius < maxRadius {
		radius++
		if i := centerBin - radius; i >= 0 && spectrum[i] > 0 {
			sum += spectrum[i]
		}
		if i := centerBin + radius; i < len(spectrum) && spectrum[i] > 0 {
			sum += spectrum[i]
		}
	}
	return float64(2*radius+1) * fe.binWidth
}

// centroidSpread computes the power-weighted mean and standard deviation of
// the normalized bin index over [lo, hi].
func (fe *FeatureExtractor) centroidSpread(spectrum []float64, lo, hi int) (float64, float64) {
	var weight, mean float64
	for i := lo; i <= hi; i++ {
		if spectrum[i] > 0 {
			x := float64(i) / float64(fe.cfg.FFTSize)
			weight += spectrum[i]
			mean += spectrum[i] * x
		}
	}
	if weight == 0 {
		return 0, 0
	}
	mean /= weight

	var variance float64
	for i := lo; i <= hi; i++ {
		if spectrum[i] > 0 {
			x := float64(i)/float64(fe.cfg.FFTSize) - mean
			variance += spectrum[i] * x * x
		}
	}
	return mean, math.Sqrt(variance / weight)
}

func paprDB(peak, avg float64) float64 {
	if peak <= 0 || avg <= 0 {
		return 0
	}
	return 10 * math.Log10(peak/avg)
}

// flatness is the Wiener-entropy spectral flatness: geometric over
// arithmetic mean of the valid powers. 1.0 is perfectly flat (noise-like),
// near 0 is tonal.
func flatness(powers []float64) float64 {
	var logSum, sum float64
	count := 0
	for _, p := range powers {
		if p <= 0 {
			continue
		}
		logSum += math.Log(p)
		sum += p
		count++
	}
	if count == 0 || sum == 0 {
		return 0
	}
	geo := math.Exp(logSum / float64(count))
	return geo / (sum / float64(count))
}

func powerDB(p float64) float64 {
	if p <= 0 {
		return math.Inf(-1)
	}
	return 10 * math.Log10(p)
}

// classifyModulation maps final bandwidth onto the 5-way modulation bucket.
// Wider buckets carry less certainty about the specific modulation, so the
// confidence degrades with the bucket breadth.
func classifyModulation(bandwidthHz float64) (string, float64) {
	switch {
	case bandwidthHz > 150e3:
		return "noise", 0.5
	case bandwidthHz > 20e3:
		return "fm", 0.7
	case bandwidthHz > 5e3:
		return "am", 0.6
	case bandwidthHz > 1e3:
		return "ssb", 0.6
	case bandwidthHz > 100:
		return "cw", 0.8
	default:
		return "unknown", 0.3
	}
}
