// Package pipeline wires the analysis stages into the streaming detection
// loop: IQ samples are framed into windowed FFTs, the power spectra run
// through the OS-CFAR detector, per-frame detections feed the clustering
// engine, and completed clusters are refined by the feature extractor
// before being handed to the event sink.
package pipeline

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/roman-kulish/signal-analysis/internal/detect"
	"github.com/roman-kulish/signal-analysis/internal/dsp"
	"github.com/roman-kulish/signal-analysis/internal/spectrum"
)

const defaultMaxDetectionsPerFrame = 64

// Config describes one detection pipeline instance.
type Config struct {
	SampleRate            float64           `yaml:"sampleRate"`
	FFTSize               int               `yaml:"fftSize"`
	MaxDetectionsPerFrame int               `yaml:"maxDetectionsPerFrame"`
	MaxEventsPerSweep     int               `yaml:"maxEventsPerSweep"`
	CFAR                  detect.CFARConfig `yaml:"cfar"`
	Cluster               ClusterSettings   `yaml:"cluster"`
	Features              FeatureSettings   `yaml:"features"`
}

// ClusterSettings is the cluster-engine portion of the pipeline config.
// Sample rate and FFT size are threaded in from the pipeline itself so the
// bin width used for frequency gaps is always the real one.
type ClusterSettings struct {
	MaxTimeGap  float64 `yaml:"maxTimeGap"`
	MaxFreqGap  float64 `yaml:"maxFreqGap"`
	MaxClusters int     `yaml:"maxClusters"`
}

// FeatureSettings is the feature-extractor portion of the pipeline config.
type FeatureSettings struct {
	NoiseBinsMargin   int     `yaml:"noiseBinsMargin"`
	OccupiedThreshold float64 `yaml:"occupiedThreshold"`
}

// EventSink receives completed, feature-refined events.
type EventSink func(spectrum.Event) error

// FrameSink optionally receives every power-spectrum frame, e.g. for
// persistence or waterfall rendering. The frame's power slice is only valid
// for the duration of the call.
type FrameSink func(*spectrum.Frame) error

// WithLogger sets the pipeline logger.
func WithLogger(logger *slog.Logger) func(*Pipeline) {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithFrameSink registers a per-frame callback.
func WithFrameSink(sink FrameSink) func(*Pipeline) {
	return func(p *Pipeline) {
		p.frameSink = sink
	}
}

// Pipeline is the streaming detection loop. It is single-threaded and
// synchronous: Process and Flush run to completion on the caller's
// goroutine, and instances are not safe for concurrent use.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger

	plan     *dsp.Plan
	window   []float64
	cfar     *detect.CFARDetector
	clusters *detect.ClusterEngine
	features *detect.FeatureExtractor

	frame   []complex128 // accumulating input frame
	filled  int
	fftIn   []complex128
	fftOut  []complex128
	power   []float64
	active  []float64 // copy of the most recent spectrum with detections
	hasSpec bool

	sampleOffset int64
	lastTime     float64

	sink      EventSink
	frameSink FrameSink

	framesProcessed int64
	detectionsTotal int64
	eventsTotal     int64
}

// New validates the configuration and assembles a pipeline delivering
// completed events to sink.
func New(cfg Config, sink EventSink, options ...func(*Pipeline)) (*Pipeline, error) {
	if sink == nil {
		return nil, fmt.Errorf("pipeline: nil event sink")
	}
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("pipeline: sampleRate %g must be positive", cfg.SampleRate)
	}
	if !dsp.IsPowerOfTwo(cfg.FFTSize) {
		return nil, fmt.Errorf("pipeline: fftSize %d is not a power of two", cfg.FFTSize)
	}
	if cfg.MaxDetectionsPerFrame == 0 {
		cfg.MaxDetectionsPerFrame = defaultMaxDetectionsPerFrame
	}
	if cfg.MaxEventsPerSweep == 0 {
		cfg.MaxEventsPerSweep = cfg.Cluster.MaxClusters
	}

	plan, err := dsp.NewPlan(cfg.FFTSize, dsp.Forward)
	if err != nil {
		return nil, fmt.Errorf("pipeline: creating FFT plan: %w", err)
	}

	window, err := dsp.Window(dsp.WindowHann, cfg.FFTSize)
	if err != nil {
		return nil, fmt.Errorf("pipeline: creating analysis window: %w", err)
	}

	cfarCfg := cfg.CFAR
	cfarCfg.FFTSize = cfg.FFTSize
	cfar, err := detect.NewCFARDetector(cfarCfg)
	if err != nil {
		return nil, fmt.Errorf("pipeline: creating CFAR detector: %w", err)
	}

	clusters, err := detect.NewClusterEngine(detect.ClusterConfig{
		MaxTimeGap:  cfg.Cluster.MaxTimeGap,
		MaxFreqGap:  cfg.Cluster.MaxFreqGap,
		MaxClusters: cfg.Cluster.MaxClusters,
		SampleRate:  cfg.SampleRate,
		FFTSize:     cfg.FFTSize,
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: creating cluster engine: %w", err)
	}

	features, err := detect.NewFeatureExtractor(detect.FeatureConfig{
		SampleRate:        cfg.SampleRate,
		FFTSize:           cfg.FFTSize,
		NoiseBinsMargin:   cfg.Features.NoiseBinsMargin,
		OccupiedThreshold: cfg.Features.OccupiedThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: creating feature extractor: %w", err)
	}

	p := Pipeline{
		cfg:      cfg,
		logger:   slog.Default(),
		plan:     plan,
		window:   window,
		cfar:     cfar,
		clusters: clusters,
		features: features,
		frame:    make([]complex128, cfg.FFTSize),
		fftIn:    make([]complex128, cfg.FFTSize),
		fftOut:   make([]complex128, cfg.FFTSize),
		power:    make([]float64, cfg.FFTSize),
		active:   make([]float64, cfg.FFTSize),
		sink:     sink,
	}

	for _, option := range options {
		option(&p)
	}

	return &p, nil
}

// Process feeds a burst of IQ samples through the pipeline. Frames are
// non-overlapping FFTSize blocks; a trailing partial frame is carried over
// to the next call.
func (p *Pipeline) Process(samples []complex128) error {
	for len(samples) > 0 {
		n := copy(p.frame[p.filled:], samples)
		p.filled += n
		samples = samples[n:]

		if p.filled < p.cfg.FFTSize {
			return nil
		}

		if err := p.processFrame(); err != nil {
			return err
		}
		p.filled = 0
	}
	return nil
}

// processFrame runs one full frame: window, FFT, centered power spectrum,
// CFAR, clustering, then event harvesting.
func (p *Pipeline) processFrame() error {
	frameTime := float64(p.sampleOffset) / p.cfg.SampleRate

	for i, s := range p.frame {
		p.fftIn[i] = s * complex(p.window[i], 0)
	}
	if err := p.plan.Execute(p.fftIn, p.fftOut); err != nil {
		return fmt.Errorf("pipeline: frame FFT: %w", err)
	}
	if err := dsp.PowerSpectrum(p.fftOut, p.power, true); err != nil {
		return fmt.Errorf("pipeline: power spectrum: %w", err)
	}
	dsp.Shift(p.power)

	detections, err := p.cfar.ProcessFrame(p.power, p.cfg.MaxDetectionsPerFrame)
	if err != nil {
		return fmt.Errorf("pipeline: CFAR frame: %w", err)
	}

	if len(detections) > 0 {
		copy(p.active, p.power)
		p.hasSpec = true
	}
	for _, det := range detections {
		p.clusters.AddDetection(det, frameTime)
	}

	p.framesProcessed++
	p.detectionsTotal += int64(len(detections))
	p.lastTime = frameTime
	p.sampleOffset += int64(p.cfg.FFTSize)

	if err := p.emitFrame(frameTime); err != nil {
		return err
	}
	return p.emitEvents(frameTime)
}

func (p *Pipeline) emitFrame(frameTime float64) error {
	if p.frameSink == nil {
		return nil
	}
	frame := spectrum.Frame{
		Time:         frameTime,
		SampleOffset: p.sampleOffset - int64(p.cfg.FFTSize),
		BinWidth:     p.cfg.SampleRate / float64(p.cfg.FFTSize),
		Power:        p.power,
	}
	if err := p.frameSink(&frame); err != nil {
		return fmt.Errorf("pipeline: frame sink: %w", err)
	}
	return nil
}

// emitEvents harvests completed clusters, refines them against the most
// recent detection-bearing spectrum and delivers them to the sink.
func (p *Pipeline) emitEvents(now float64) error {
	events := p.clusters.Events(p.cfg.MaxEventsPerSweep, now)
	for _, ev := range events {
		p.refine(&ev)
		p.eventsTotal++
		if err := p.sink(ev); err != nil {
			return fmt.Errorf("pipeline: event sink: %w", err)
		}
	}
	return nil
}

// refine overlays the feature extractor's bandwidth and modulation guess on
// a cluster event. The cluster-level modulation bucket is a placeholder;
// the 5-way feature classification is authoritative.
func (p *Pipeline) refine(ev *spectrum.Event) {
	if !p.hasSpec {
		return
	}

	centerBin := int(math.Round((ev.CenterFreqHz/p.cfg.SampleRate + 0.5) * float64(p.cfg.FFTSize)))
	if centerBin < 0 || centerBin >= p.cfg.FFTSize {
		return
	}

	binWidth := p.cfg.SampleRate / float64(p.cfg.FFTSize)
	hint := int(math.Round(ev.BandwidthHz / binWidth))

	res, err := p.features.FromSpectrum(p.active, centerBin, hint)
	if err != nil || !res.Valid {
		p.logger.Debug("feature extraction skipped",
			slog.Float64("centerFreqHz", ev.CenterFreqHz))
		return
	}

	ev.BandwidthHz = res.BandwidthHz
	ev.Modulation = res.Modulation
	if res.SNRdB > ev.PeakSNRdB && !math.IsInf(res.SNRdB, 1) {
		ev.PeakSNRdB = res.SNRdB
	}
}

// Flush completes the stream: every still-active cluster older than the
// time-gap threshold relative to a time safely past the end of input is
// harvested. Call once after the last Process call.
func (p *Pipeline) Flush() error {
	horizon := p.lastTime + 2*p.cfg.Cluster.MaxTimeGap + 1
	return p.emitEvents(horizon)
}

// Stats returns cumulative frame, detection and event counters.
func (p *Pipeline) Stats() (frames, detections, events int64) {
	return p.framesProcessed, p.detectionsTotal, p.eventsTotal
}
