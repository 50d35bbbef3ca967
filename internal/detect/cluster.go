package detect

import (
	"fmt"
	"math"

	"github.com/roman-kulish/signal-analysis/internal/spectrum"
)

// minEventDetections is the noise-rejection floor: a cluster must
// accumulate at least this many detections to ever become an event.
const minEventDetections = 3

// ClusterConfig describes the temporal/frequency clustering engine.
type ClusterConfig struct {
	MaxTimeGap  float64 `yaml:"maxTimeGap"`  // Seconds of idle time before a cluster completes
	MaxFreqGap  float64 `yaml:"maxFreqGap"`  // Hz a detection may be from a cluster center and still match
	MaxClusters int     `yaml:"maxClusters"` // Capacity bound on concurrently active clusters
	SampleRate  float64 `yaml:"sampleRate"`  // Input sample rate in Hz
	FFTSize     int     `yaml:"fftSize"`     // Spectrum size; with SampleRate defines the bin width
}

// Validate checks the clustering configuration.
func (c *ClusterConfig) Validate() error {
	if c.MaxTimeGap <= 0 {
		return fmt.Errorf("cluster: maxTimeGap %g must be positive", c.MaxTimeGap)
	}
	if c.MaxFreqGap <= 0 {
		return fmt.Errorf("cluster: maxFreqGap %g must be positive", c.MaxFreqGap)
	}
	if c.MaxClusters <= 0 {
		return fmt.Errorf("cluster: maxClusters %d must be positive", c.MaxClusters)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("cluster: sampleRate %g must be positive", c.SampleRate)
	}
	if c.FFTSize <= 0 {
		return fmt.Errorf("cluster: fftSize %d must be positive", c.FFTSize)
	}
	return nil
}

// activeCluster is a mutable aggregate of detections that are close in time
// and frequency. It is owned exclusively by the engine.
type activeCluster struct {
	startTime  float64
	lastUpdate float64

	frameCount     int
	detectionCount int

	minBin int
	maxBin int

	binSum       float64 // running sum of detection bins, for the mean center
	bandwidthSum float64 // running sum of per-detection bandwidth estimates
	snrSum       float64

	peakSNR   float64
	peakPower float64
}

func (c *activeCluster) meanBin() float64 {
	return c.binSum / float64(c.detectionCount)
}

// ClusterEngine maintains a bounded set of active signal clusters across
// frames and emits completed events once a cluster goes idle. Callers must
// feed detections in non-decreasing frame-time order; this is a contract,
// not an enforced check.
type ClusterEngine struct {
	cfg      ClusterConfig
	binWidth float64
	active   []activeCluster
}

// NewClusterEngine validates cfg and builds an empty engine.
func NewClusterEngine(cfg ClusterConfig) (*ClusterEngine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &ClusterEngine{
		cfg:      cfg,
		binWidth: cfg.SampleRate / float64(cfg.FFTSize),
		active:   make([]activeCluster, 0, cfg.MaxClusters),
	}, nil
}

// ActiveCount returns the number of currently active clusters.
func (e *ClusterEngine) ActiveCount() int { return len(e.active) }

// AddDetection folds one CFAR detection taken at frameTime into the active
// cluster set: extend the best-matching cluster, or create a new one when
// none matches and capacity allows. Once at capacity, unmatched detections
// are silently dropped. After insertion a pairwise merge sweep coalesces
// clusters that have drifted into each other.
func (e *ClusterEngine) AddDetection(det Detection, frameTime float64) {
	best := e.bestMatch(det, frameTime)

	switch {
	case best >= 0:
		e.extend(best, det, frameTime)

	case len(e.active) < e.cfg.MaxClusters:
		e.active = append(e.active, activeCluster{
			startTime:      frameTime,
			lastUpdate:     frameTime,
			frameCount:     1,
			detectionCount: 1,
			minBin:         det.Bin,
			maxBin:         det.Bin,
			binSum:         float64(det.Bin),
			bandwidthSum:   e.binWidth,
			snrSum:         det.SNRdB,
			peakSNR:        det.SNRdB,
			peakPower:      det.PowerDB,
		})

	default:
		// At capacity with no match: drop. No forced eviction.
		return
	}

	e.mergeSweep()
}

// bestMatch returns the index of the qualifying cluster with the highest
// proximity score, or -1. A cluster qualifies when the detection is within
// MaxTimeGap of its last update and within MaxFreqGap of its running-mean
// center frequency.
func (e *ClusterEngine) bestMatch(det Detection, frameTime float64) int {
	best := -1
	bestScore := 0.0

	for i := range e.active {
		c := &e.active[i]
		timeGap := frameTime - c.lastUpdate
		if timeGap > e.cfg.MaxTimeGap {
			continue
		}
		freqGap := math.Abs(float64(det.Bin)-c.meanBin()) * e.binWidth
		if freqGap > e.cfg.MaxFreqGap {
			continue
		}

		// Frequency gap is scored in kHz for parity with time gaps in
		// seconds.
		score := (1 / (1 + timeGap)) * (1 / (1 + freqGap/1000))
		if score > bestScore {
			best = i
			bestScore = score
		}
	}
	return best
}

func (e *ClusterEngine) extend(i int, det Detection, frameTime float64) {
	c := &e.active[i]
	c.lastUpdate = frameTime
	c.frameCount++
	c.detectionCount++
	c.minBin = min(c.minBin, det.Bin)
	c.maxBin = max(c.maxBin, det.Bin)
	c.binSum += float64(det.Bin)
	c.bandwidthSum += e.binWidth
	c.snrSum += det.SNRdB
	c.peakSNR = math.Max(c.peakSNR, det.SNRdB)
	c.peakPower = math.Max(c.peakPower, det.PowerDB)
}

// mergeSweep folds together any pair of active clusters satisfying the same
// time/frequency proximity predicate as detection matching, evaluated
// between the clusters' running-mean centers. The later entry is folded
// into the earlier one and the list is compacted in place. O(N^2) over the
// bounded cluster count.
func (e *ClusterEngine) mergeSweep() {
	for i := 0; i < len(e.active); i++ {
		for j := i + 1; j < len(e.active); j++ {
			a, b := &e.active[i], &e.active[j]

			timeGap := math.Abs(a.lastUpdate - b.lastUpdate)
			if timeGap > e.cfg.MaxTimeGap {
				continue
			}
			freqGap := math.Abs(a.meanBin()-b.meanBin()) * e.binWidth
			if freqGap > e.cfg.MaxFreqGap {
				continue
			}

			a.startTime = math.Min(a.startTime, b.startTime)
			a.lastUpdate = math.Max(a.lastUpdate, b.lastUpdate)
			a.frameCount += b.frameCount
			a.detectionCount += b.detectionCount
			a.minBin = min(a.minBin, b.minBin)
			a.maxBin = max(a.maxBin, b.maxBin)
			a.binSum += b.binSum
			a.bandwidthSum += b.bandwidthSum
			a.snrSum += b.snrSum
			a.peakSNR = math.Max(a.peakSNR, b.peakSNR)
			a.peakPower = math.Max(a.peakPower, b.peakPower)

			e.active = append(e.active[:j], e.active[j+1:]...)
			j--
		}
	}
}

// Events scans the active set and returns up to maxEvents completed events:
// clusters idle for longer than MaxTimeGap at currentTime with at least
// three detections. Idle clusters below the detection floor are discarded
// without ever becoming events.
func (e *ClusterEngine) Events(maxEvents int, currentTime float64) []spectrum.Event {
	var events []spectrum.Event

	kept := e.active[:0]
	for i := range e.active {
		c := &e.active[i]
		if currentTime-c.lastUpdate <= e.cfg.MaxTimeGap {
			kept = append(kept, *c)
			continue
		}
		if c.detectionCount >= minEventDetections && len(events) < maxEvents {
			events = append(events, e.toEvent(c))
		}
		// Idle clusters are removed whether or not they qualified.
	}
	e.active = kept

	return events
}

func (e *ClusterEngine) toEvent(c *activeCluster) spectrum.Event {
	n := float64(c.detectionCount)
	duration := c.lastUpdate - c.startTime
	avgSNR := c.snrSum / n

	// The spectrum is DC-centered, so bin 0 maps to -sampleRate/2.
	binToHz := func(bin float64) float64 {
		return (bin/float64(e.cfg.FFTSize) - 0.5) * e.cfg.SampleRate
	}

	bandwidth := c.bandwidthSum / n
	confidence := math.Sqrt(math.Min(math.Max(avgSNR, 0)/20, 1) * math.Min(duration/1, 1))

	return spectrum.Event{
		StartTime:      c.startTime,
		EndTime:        c.lastUpdate,
		Duration:       duration,
		FreqLowHz:      binToHz(float64(c.minBin)),
		FreqHighHz:     binToHz(float64(c.maxBin)),
		CenterFreqHz:   binToHz(c.meanBin()),
		BandwidthHz:    bandwidth,
		PeakSNRdB:      c.peakSNR,
		AvgSNRdB:       avgSNR,
		PeakPowerDB:    c.peakPower,
		DetectionCount: c.detectionCount,
		Confidence:     confidence,
		Modulation:     coarseModulation(bandwidth),
	}
}

// coarseModulation is the clustering engine's 3-way bandwidth bucket. It is
// a placeholder: the feature extractor's 5-way classification is
// authoritative and overwrites it once features are computed.
func coarseModulation(bandwidthHz float64) string {
	switch {
	case bandwidthHz < 5e3:
		return "narrowband"
	case bandwidthHz < 20e3:
		return "wideband"
	default:
		return "unknown"
	}
}
