package detect

import (
	"math"
	"testing"
)

func testFeatureConfig() FeatureConfig {
	return FeatureConfig{
		SampleRate: 2_000_000,
		FFTSize:    2048,
	}
}

// gaussianSpectrum builds a noise floor with a Gaussian bump of the given
// peak and width (in bins) centered on centerBin.
func gaussianSpectrum(size, centerBin int, peak, sigma, floor float64) []float64 {
	s := make([]float64, size)
	for i := range s {
		d := float64(i - centerBin)
		s[i] = floor + peak*math.Exp(-d*d/(2*sigma*sigma))
	}
	return s
}

func TestFeatureExtractor_Validation(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*FeatureConfig)
	}{
		{"zero sample rate", func(c *FeatureConfig) { c.SampleRate = 0 }},
		{"zero fft size", func(c *FeatureConfig) { c.FFTSize = 0 }},
		{"negative noise margin", func(c *FeatureConfig) { c.NoiseBinsMargin = -1 }},
		{"occupied threshold above one", func(c *FeatureConfig) { c.OccupiedThreshold = 1.5 }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testFeatureConfig()
			tc.mutate(&cfg)
			if _, err := NewFeatureExtractor(cfg); err == nil {
				t.Error("Expected error for invalid configuration")
			}
		})
	}

	fe, err := NewFeatureExtractor(testFeatureConfig())
	if err != nil {
		t.Fatalf("Valid configuration rejected: %v", err)
	}
	if fe.cfg.NoiseBinsMargin != defaultNoiseBinsMargin {
		t.Errorf("Defaulted noise margin %d, want %d", fe.cfg.NoiseBinsMargin, defaultNoiseBinsMargin)
	}
	if fe.cfg.OccupiedThreshold != defaultOccupiedThreshold {
		t.Errorf("Defaulted occupied threshold %g, want %g", fe.cfg.OccupiedThreshold, defaultOccupiedThreshold)
	}
}

func TestFeatureExtractor_GaussianSignal(t *testing.T) {
	cfg := testFeatureConfig()
	fe, err := NewFeatureExtractor(cfg)
	if err != nil {
		t.Fatalf("Failed to create extractor: %v", err)
	}

	const centerBin = 1024
	spectrum := gaussianSpectrum(cfg.FFTSize, centerBin, 1.0, 3, 1e-6)

	res, err := fe.FromSpectrum(spectrum, centerBin, 0)
	if err != nil {
		t.Fatalf("FromSpectrum failed: %v", err)
	}
	if !res.Valid {
		t.Fatal("Result not valid")
	}

	if res.SNRdB <= 10 {
		t.Errorf("SNR %.1f dB, want > 10", res.SNRdB)
	}
	if res.OccupiedHz < res.Bandwidth3dBHz {
		t.Errorf("Occupied bandwidth %.1f Hz below 3 dB bandwidth %.1f Hz",
			res.OccupiedHz, res.Bandwidth3dBHz)
	}
	if res.BandwidthHz != res.OccupiedHz {
		t.Errorf("Primary bandwidth %.1f Hz, want occupied estimate %.1f Hz",
			res.BandwidthHz, res.OccupiedHz)
	}
	if math.Abs(res.SpectralCentroid-0.5) > 0.01 {
		t.Errorf("Spectral centroid %.4f for a centered signal, want ~0.5", res.SpectralCentroid)
	}
	// The bounds truncate the region at 10% of peak, so flatness stays well
	// above tonal values; it must still sit clearly below a white spectrum.
	if res.SpectralFlatness >= 0.9 {
		t.Errorf("Spectral flatness %.3f for a peaked signal, want < 0.9", res.SpectralFlatness)
	}
	if res.PAPRdB <= 0 {
		t.Errorf("PAPR %.2f dB for a peaked signal, want > 0", res.PAPRdB)
	}
	if res.PeakPower <= res.AvgPower {
		t.Errorf("Peak power %g not above average %g", res.PeakPower, res.AvgPower)
	}
}

// TestFeatureExtractor_BandwidthMonotonicity: occupied bandwidth dominates
// the 3 dB bandwidth across signal widths.
func TestFeatureExtractor_BandwidthMonotonicity(t *testing.T) {
	cfg := testFeatureConfig()
	fe, err := NewFeatureExtractor(cfg)
	if err != nil {
		t.Fatalf("Failed to create extractor: %v", err)
	}

	const centerBin = 1024
	for _, sigma := range []float64{1, 2, 4, 8, 16} {
		spectrum := gaussianSpectrum(cfg.FFTSize, centerBin, 1.0, sigma, 1e-9)
		res, err := fe.FromSpectrum(spectrum, centerBin, 0)
		if err != nil {
			t.Fatalf("Sigma %g: FromSpectrum failed: %v", sigma, err)
		}
		if res.OccupiedHz < res.Bandwidth3dBHz {
			t.Errorf("Sigma %g: occupied %.1f Hz below 3 dB %.1f Hz",
				sigma, res.OccupiedHz, res.Bandwidth3dBHz)
		}
	}
}

func TestFeatureExtractor_SingleToneWithHint(t *testing.T) {
	cfg := testFeatureConfig()
	fe, err := NewFeatureExtractor(cfg)
	if err != nil {
		t.Fatalf("Failed to create extractor: %v", err)
	}

	const centerBin = 512
	spectrum := make([]float64, cfg.FFTSize)
	for i := range spectrum {
		spectrum[i] = 1e-6
	}
	spectrum[centerBin] = 1.0

	res, err := fe.FromSpectrum(spectrum, centerBin, 1)
	if err != nil {
		t.Fatalf("FromSpectrum failed: %v", err)
	}

	binWidth := cfg.SampleRate / float64(cfg.FFTSize)
	if res.TotalBins != 1 || res.SignalBins != 1 {
		t.Errorf("Hinted bounds cover %d/%d bins, want 1/1", res.SignalBins, res.TotalBins)
	}
	if math.Abs(res.Bandwidth3dBHz-binWidth) > 1e-6 {
		t.Errorf("3 dB bandwidth %.1f Hz, want one bin %.1f", res.Bandwidth3dBHz, binWidth)
	}
	if math.Abs(res.OccupiedHz-binWidth) > 1e-6 {
		t.Errorf("Occupied bandwidth %.1f Hz, want one bin %.1f", res.OccupiedHz, binWidth)
	}
	if res.Modulation != "cw" {
		t.Errorf("Modulation %q for a single-bin tone, want cw", res.Modulation)
	}
	if res.ModConfidence != 0.8 {
		t.Errorf("Modulation confidence %g, want 0.8", res.ModConfidence)
	}
}

func TestFeatureExtractor_FlatSpectrum(t *testing.T) {
	cfg := testFeatureConfig()
	fe, err := NewFeatureExtractor(cfg)
	if err != nil {
		t.Fatalf("Failed to create extractor: %v", err)
	}

	spectrum := make([]float64, cfg.FFTSize)
	for i := range spectrum {
		spectrum[i] = 0.25
	}

	res, err := fe.FromSpectrum(spectrum, 1024, 0)
	if err != nil {
		t.Fatalf("FromSpectrum failed: %v", err)
	}
	if res.SpectralFlatness < 0.99 {
		t.Errorf("Spectral flatness %.4f for white spectrum, want ~1", res.SpectralFlatness)
	}
	if res.PAPRdB > 0.01 {
		t.Errorf("PAPR %.3f dB for flat spectrum, want ~0", res.PAPRdB)
	}
	if res.Modulation != "noise" {
		t.Errorf("Modulation %q for full-band flat spectrum, want noise", res.Modulation)
	}
}

func TestFeatureExtractor_InvalidRegion(t *testing.T) {
	cfg := testFeatureConfig()
	fe, err := NewFeatureExtractor(cfg)
	if err != nil {
		t.Fatalf("Failed to create extractor: %v", err)
	}

	zero := make([]float64, cfg.FFTSize)
	res, err := fe.FromSpectrum(zero, 1024, 8)
	if err == nil {
		t.Error("Expected error for a region with no valid bins")
	}
	if res.Valid {
		t.Error("Result marked valid for a region with no valid bins")
	}

	if _, err := fe.FromSpectrum(zero[:100], 50, 0); err == nil {
		t.Error("Expected error for wrong spectrum length")
	}
	if _, err := fe.FromSpectrum(zero, -1, 0); err == nil {
		t.Error("Expected error for out-of-range center bin")
	}
}

func TestClassifyModulation_Buckets(t *testing.T) {
	testCases := []struct {
		bandwidthHz float64
		want        string
	}{
		{50, "unknown"},
		{500, "cw"},
		{3_000, "ssb"},
		{12_000, "am"},
		{100_000, "fm"},
		{400_000, "noise"},
	}
	for _, tc := range testCases {
		got, confidence := classifyModulation(tc.bandwidthHz)
		if got != tc.want {
			t.Errorf("classifyModulation(%g) = %q, want %q", tc.bandwidthHz, got, tc.want)
		}
		if confidence <= 0 || confidence > 1 {
			t.Errorf("classifyModulation(%g) confidence %g outside (0, 1]", tc.bandwidthHz, confidence)
		}
	}
}
