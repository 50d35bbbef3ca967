package dsp

import (
	"math"
	"math/cmplx"
	"testing"
)

func testChannelizerConfig() ChannelizerConfig {
	return ChannelizerConfig{
		NumChannels:      8,
		SampleRate:       2_048_000,
		ChannelBandwidth: 256_000,
		FilterLength:     1024,
		FFTSize:          128,
		BlockSize:        512,
		KaiserBeta:       9,
	}
}

func TestChannelizerConfig_Validation(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*ChannelizerConfig)
	}{
		{"too few channels", func(c *ChannelizerConfig) { c.NumChannels = 2 }},
		{"too many channels", func(c *ChannelizerConfig) { c.NumChannels = 64 }},
		{"zero sample rate", func(c *ChannelizerConfig) { c.SampleRate = 0 }},
		{"negative bandwidth", func(c *ChannelizerConfig) { c.ChannelBandwidth = -1 }},
		{"filter length not power of two", func(c *ChannelizerConfig) { c.FilterLength = 1000 }},
		{"filter length not divisible", func(c *ChannelizerConfig) { c.NumChannels = 12 }},
		{"fft larger than filter", func(c *ChannelizerConfig) { c.FFTSize = 2048 }},
		{"zero block size", func(c *ChannelizerConfig) { c.BlockSize = 0 }},
		{"negative beta", func(c *ChannelizerConfig) { c.KaiserBeta = -1 }},
		{"overlap out of range", func(c *ChannelizerConfig) { c.Overlap = 1 }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testChannelizerConfig()
			tc.mutate(&cfg)
			if _, err := NewChannelizer(cfg); err == nil {
				t.Error("Expected error for invalid configuration")
			}
		})
	}

	if _, err := NewChannelizer(testChannelizerConfig()); err != nil {
		t.Errorf("Valid configuration rejected: %v", err)
	}
}

func TestChannelizer_OutputCadence(t *testing.T) {
	cfg := testChannelizerConfig()
	cz, err := NewChannelizer(cfg)
	if err != nil {
		t.Fatalf("Failed to create channelizer: %v", err)
	}

	// 4 full blocks plus a partial one.
	input := make([]complex128, 4*cfg.BlockSize+100)
	for i := range input {
		input[i] = complex(math.Sin(float64(i)*0.01), 0)
	}

	n, err := cz.ProcessBlock(input)
	if err != nil {
		t.Fatalf("ProcessBlock failed: %v", err)
	}
	if n != len(input) {
		t.Errorf("Consumed %d samples, want %d", n, len(input))
	}

	// One output sample per channel per completed block.
	for ch := 0; ch < cfg.NumChannels; ch++ {
		avail, err := cz.ChannelAvailable(ch)
		if err != nil {
			t.Fatalf("ChannelAvailable(%d) failed: %v", ch, err)
		}
		if avail != 4 {
			t.Errorf("Channel %d: %d samples available, want 4", ch, avail)
		}
	}

	// Draining a channel frees its ring without touching the others.
	if err := cz.ConsumeChannel(3); err != nil {
		t.Fatalf("ConsumeChannel failed: %v", err)
	}
	if avail, _ := cz.ChannelAvailable(3); avail != 0 {
		t.Errorf("Channel 3 after consume: %d samples, want 0", avail)
	}
	if avail, _ := cz.ChannelAvailable(4); avail != 4 {
		t.Errorf("Channel 4 after consuming channel 3: %d samples, want 4", avail)
	}

	if _, err := cz.ProcessBlock(nil); err == nil {
		t.Error("Expected error for empty input")
	}
	if _, err := cz.ChannelSamples(-1); err == nil {
		t.Error("Expected error for negative channel index")
	}
	if _, err := cz.ChannelAvailable(cfg.NumChannels); err == nil {
		t.Error("Expected error for out-of-range channel index")
	}
}

// TestChannelizer_ChannelIsolation feeds a tone centered on one channel's
// analysis bin and verifies the energy captured by every other channel is
// at least 40 dB down. The channel bandwidth is kept well below the channel
// spacing so the prototype's passband does not straddle adjacent channels.
func TestChannelizer_ChannelIsolation(t *testing.T) {
	cfg := testChannelizerConfig()
	cfg.ChannelBandwidth = 32_000
	cz, err := NewChannelizer(cfg)
	if err != nil {
		t.Fatalf("Failed to create channelizer: %v", err)
	}

	// Channel c reads FFT bin c*FFTSize/NumChannels, so a tone at the
	// normalized frequency c/NumChannels lands exactly on channel c's bin.
	const target = 1
	freq := float64(target) / float64(cfg.NumChannels)

	input := make([]complex128, 16*cfg.BlockSize)
	for i := range input {
		phase := 2 * math.Pi * freq * float64(i)
		input[i] = cmplx.Rect(1, phase)
	}
	if _, err := cz.ProcessBlock(input); err != nil {
		t.Fatalf("ProcessBlock failed: %v", err)
	}

	energy := make([]float64, cfg.NumChannels)
	for ch := 0; ch < cfg.NumChannels; ch++ {
		samples, err := cz.ChannelSamples(ch)
		if err != nil {
			t.Fatalf("ChannelSamples(%d) failed: %v", ch, err)
		}
		if len(samples) == 0 {
			t.Fatalf("Channel %d produced no samples", ch)
		}
		for _, s := range samples {
			re := float64(real(s))
			im := float64(imag(s))
			energy[ch] += re*re + im*im
		}
	}

	if energy[target] <= 0 {
		t.Fatal("Target channel captured no energy")
	}
	for ch := 0; ch < cfg.NumChannels; ch++ {
		if ch == target {
			continue
		}
		isolation := 10 * math.Log10(energy[target]/math.Max(energy[ch], 1e-300))
		t.Logf("Channel %d isolation: %.1f dB", ch, isolation)
		if isolation < 40 {
			t.Errorf("Channel %d isolation %.1f dB, want >= 40 dB", ch, isolation)
		}
	}

	if est := cz.EstimatedIsolationDB(); est < 40 {
		t.Errorf("Estimated isolation %.1f dB for beta %g, want >= 40 dB", est, cfg.KaiserBeta)
	}
}

func TestChannelizer_CenterFrequencies(t *testing.T) {
	cfg := testChannelizerConfig()
	cz, err := NewChannelizer(cfg)
	if err != nil {
		t.Fatalf("Failed to create channelizer: %v", err)
	}

	spacing := cfg.SampleRate / float64(cfg.NumChannels)
	for ch := 0; ch < cfg.NumChannels; ch++ {
		got, err := cz.ChannelCenterFrequency(ch)
		if err != nil {
			t.Fatalf("ChannelCenterFrequency(%d) failed: %v", ch, err)
		}
		want := float64(ch-cfg.NumChannels/2) * spacing
		if math.Abs(got-want) > 1e-6 {
			t.Errorf("Channel %d center %.1f Hz, want %.1f Hz", ch, got, want)
		}
	}

	if _, err := cz.ChannelCenterFrequency(-1); err == nil {
		t.Error("Expected error for out-of-range channel")
	}
	if got := cz.ChannelBandwidth(); got != cfg.ChannelBandwidth {
		t.Errorf("ChannelBandwidth %.1f, want %.1f", got, cfg.ChannelBandwidth)
	}
}

func TestChannelizer_Reset(t *testing.T) {
	cfg := testChannelizerConfig()
	cz, err := NewChannelizer(cfg)
	if err != nil {
		t.Fatalf("Failed to create channelizer: %v", err)
	}

	input := make([]complex128, 2*cfg.BlockSize)
	for i := range input {
		input[i] = complex(1, 0)
	}
	if _, err := cz.ProcessBlock(input); err != nil {
		t.Fatalf("ProcessBlock failed: %v", err)
	}

	cz.Reset()
	for ch := 0; ch < cfg.NumChannels; ch++ {
		if avail, _ := cz.ChannelAvailable(ch); avail != 0 {
			t.Errorf("Channel %d after reset: %d samples, want 0", ch, avail)
		}
	}

	// Output after a reset matches output from a fresh instance.
	if _, err := cz.ProcessBlock(input); err != nil {
		t.Fatalf("ProcessBlock after reset failed: %v", err)
	}
	fresh, err := NewChannelizer(cfg)
	if err != nil {
		t.Fatalf("Failed to create fresh channelizer: %v", err)
	}
	if _, err := fresh.ProcessBlock(input); err != nil {
		t.Fatalf("ProcessBlock on fresh instance failed: %v", err)
	}

	for ch := 0; ch < cfg.NumChannels; ch++ {
		a, _ := cz.ChannelSamples(ch)
		b, _ := fresh.ChannelSamples(ch)
		if len(a) != len(b) {
			t.Fatalf("Channel %d: %d samples after reset, fresh instance has %d", ch, len(a), len(b))
		}
		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("Channel %d sample %d differs after reset: %v vs %v", ch, i, a[i], b[i])
			}
		}
	}
}
