package detect

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/stat"
)

func testCFARConfig() CFARConfig {
	return CFARConfig{
		FFTSize:    1024,
		PFA:        1e-3,
		RefCells:   16,
		GuardCells: 2,
		OSRank:     8,
	}
}

func TestCFARConfig_Validation(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*CFARConfig)
	}{
		{"zero fft size", func(c *CFARConfig) { c.FFTSize = 0 }},
		{"oversized fft", func(c *CFARConfig) { c.FFTSize = 1 << 20 }},
		{"zero pfa", func(c *CFARConfig) { c.PFA = 0 }},
		{"pfa above one", func(c *CFARConfig) { c.PFA = 1.5 }},
		{"zero ref cells", func(c *CFARConfig) { c.RefCells = 0 }},
		{"ref cells beyond quarter", func(c *CFARConfig) { c.RefCells = 512 }},
		{"negative guard cells", func(c *CFARConfig) { c.GuardCells = -1 }},
		{"guard above ref", func(c *CFARConfig) { c.GuardCells = 17 }},
		{"zero rank", func(c *CFARConfig) { c.OSRank = 0 }},
		{"rank above ref", func(c *CFARConfig) { c.OSRank = 17 }},
		{"window wider than spectrum", func(c *CFARConfig) { c.FFTSize = 32; c.RefCells = 8; c.GuardCells = 8 }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testCFARConfig()
			tc.mutate(&cfg)
			if _, err := NewCFARDetector(cfg); err == nil {
				t.Error("Expected error for invalid configuration")
			}
		})
	}

	if _, err := NewCFARDetector(testCFARConfig()); err != nil {
		t.Errorf("Valid configuration rejected: %v", err)
	}
}

// TestCFARDetector_FalseAlarmRate runs noise-only spectra through the
// detector and checks the empirical false-alarm count stays near the
// configured PFA: a handful of detections per 1024-bin frame at most.
func TestCFARDetector_FalseAlarmRate(t *testing.T) {
	cfg := testCFARConfig()
	det, err := NewCFARDetector(cfg)
	if err != nil {
		t.Fatalf("Failed to create detector: %v", err)
	}

	rng := rand.New(rand.NewSource(42))
	spectrum := make([]float64, cfg.FFTSize)

	const frames = 50
	counts := make([]float64, frames)
	for f := 0; f < frames; f++ {
		// Exponentially distributed bin powers model the magnitude-squared
		// spectrum of complex white noise.
		for i := range spectrum {
			spectrum[i] = rng.ExpFloat64()
		}
		detections, err := det.ProcessFrame(spectrum, cfg.FFTSize)
		if err != nil {
			t.Fatalf("ProcessFrame failed: %v", err)
		}
		counts[f] = float64(len(detections))
	}

	mean := stat.Mean(counts, nil)
	sd := stat.StdDev(counts, nil)
	t.Logf("False alarms per frame: mean %.2f, stddev %.2f (expected ~%.2f)",
		mean, sd, cfg.PFA*float64(cfg.FFTSize))

	// PFA 1e-3 over 1024 bins predicts roughly one false alarm per frame.
	if mean > 4 {
		t.Errorf("Mean false alarms per frame %.2f, want <= 4", mean)
	}
}

func TestCFARDetector_DetectsStrongSignal(t *testing.T) {
	cfg := testCFARConfig()
	det, err := NewCFARDetector(cfg)
	if err != nil {
		t.Fatalf("Failed to create detector: %v", err)
	}

	rng := rand.New(rand.NewSource(7))
	spectrum := make([]float64, cfg.FFTSize)
	for i := range spectrum {
		spectrum[i] = rng.ExpFloat64()
	}

	// A single bin at 100x the mean noise power.
	const signalBin = 300
	spectrum[signalBin] = 100

	detections, err := det.ProcessFrame(spectrum, cfg.FFTSize)
	if err != nil {
		t.Fatalf("ProcessFrame failed: %v", err)
	}

	var hit *Detection
	for i := range detections {
		if detections[i].Bin == signalBin {
			hit = &detections[i]
			break
		}
	}
	if hit == nil {
		t.Fatalf("Signal bin %d not detected (%d detections total)", signalBin, len(detections))
	}
	if hit.SNRdB <= 10 {
		t.Errorf("Detected SNR %.1f dB, want > 10 dB", hit.SNRdB)
	}
	if hit.Confidence <= 0.5 {
		t.Errorf("Detection confidence %.2f, want > 0.5", hit.Confidence)
	}
	if math.Abs(hit.PowerDB-20) > 1e-9 {
		t.Errorf("Detection power %.2f dB, want 20 dB for 100x linear", hit.PowerDB)
	}
	if math.Abs(hit.SNRdB-(hit.PowerDB-hit.ThresholdDB)) > 1e-9 {
		t.Errorf("SNR %.2f dB inconsistent with power %.2f - threshold %.2f",
			hit.SNRdB, hit.PowerDB, hit.ThresholdDB)
	}
}

// TestCFARDetector_InterfererRobustness verifies the order-statistic noise
// estimate shrugs off a contiguous block of strong interferer cells inside
// the training window.
func TestCFARDetector_InterfererRobustness(t *testing.T) {
	cfg := testCFARConfig()
	det, err := NewCFARDetector(cfg)
	if err != nil {
		t.Fatalf("Failed to create detector: %v", err)
	}

	rng := rand.New(rand.NewSource(11))
	spectrum := make([]float64, cfg.FFTSize)
	for i := range spectrum {
		spectrum[i] = rng.ExpFloat64()
	}

	const signalBin = 500
	spectrum[signalBin] = 50

	// Five interferer cells inside signalBin's training window, just past
	// the guard region. Fewer cells than the rank keeps the order statistic
	// clear of them.
	for i := signalBin + 3; i < signalBin+8; i++ {
		spectrum[i] = 1000
	}

	threshold := det.Threshold(spectrum, signalBin)
	if threshold <= 0 {
		t.Fatal("Threshold undefined at signal bin")
	}
	if spectrum[signalBin] <= threshold {
		t.Errorf("Signal power %.1f below threshold %.1f despite interferer robustness",
			spectrum[signalBin], threshold)
	}
	// The estimate must track the noise floor, not the interferers.
	if threshold > 50 {
		t.Errorf("Threshold %.1f contaminated by interferer block", threshold)
	}
}

func TestCFARDetector_Limits(t *testing.T) {
	cfg := testCFARConfig()
	cfg.PFA = 1e-6 // keep stray false alarms out of the cap ordering check
	det, err := NewCFARDetector(cfg)
	if err != nil {
		t.Fatalf("Failed to create detector: %v", err)
	}

	rng := rand.New(rand.NewSource(3))
	spectrum := make([]float64, cfg.FFTSize)
	for i := range spectrum {
		spectrum[i] = rng.ExpFloat64()
	}
	for _, bin := range []int{100, 200, 300, 400, 500} {
		spectrum[bin] = 500
	}

	detections, err := det.ProcessFrame(spectrum, 2)
	if err != nil {
		t.Fatalf("ProcessFrame failed: %v", err)
	}
	if len(detections) != 2 {
		t.Fatalf("Got %d detections with maxDetections=2, want 2", len(detections))
	}
	// Scan order is ascending bins, so the cap keeps the lowest bins.
	if detections[0].Bin != 100 || detections[1].Bin != 200 {
		t.Errorf("Capped detections at bins %d, %d, want 100, 200",
			detections[0].Bin, detections[1].Bin)
	}

	if _, err := det.ProcessFrame(spectrum[:512], 10); err == nil {
		t.Error("Expected error for wrong spectrum length")
	}
	if _, err := det.ProcessFrame(spectrum, 0); err == nil {
		t.Error("Expected error for non-positive maxDetections")
	}

	// Wrong length or out-of-range CUT yield an undefined threshold.
	if got := det.Threshold(spectrum[:512], 10); got != 0 {
		t.Errorf("Threshold on short spectrum = %g, want 0", got)
	}
	if got := det.Threshold(spectrum, -1); got != 0 {
		t.Errorf("Threshold at negative CUT = %g, want 0", got)
	}

	// An all-invalid spectrum has no usable training cells.
	zero := make([]float64, cfg.FFTSize)
	if got := det.Threshold(zero, 512); got != 0 {
		t.Errorf("Threshold over zero spectrum = %g, want 0", got)
	}
}

func TestThresholdScale(t *testing.T) {
	// The solved constant must reproduce the target PFA when plugged back
	// into the order-statistic false-alarm product.
	for _, pfa := range []float64{1e-2, 1e-3, 1e-6} {
		alpha := thresholdScale(32, 8, pfa)
		if alpha <= 0 {
			t.Fatalf("PFA %g: non-positive scale %g", pfa, alpha)
		}

		k := 32 - 8 + 1
		p := 1.0
		for i := 0; i < k; i++ {
			tc := float64(32 - i)
			p *= tc / (tc + alpha)
		}
		if math.Abs(p-pfa)/pfa > 1e-6 {
			t.Errorf("PFA %g: scale %g reproduces %g", pfa, alpha, p)
		}
	}

	// Stricter PFA demands a larger scale.
	if thresholdScale(32, 8, 1e-6) <= thresholdScale(32, 8, 1e-3) {
		t.Error("Scale not monotone in PFA")
	}
}
