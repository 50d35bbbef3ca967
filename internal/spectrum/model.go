// Package spectrum defines the shared data model of the analysis pipeline:
// power-spectrum frames, completed signal events and analysis sessions.
package spectrum

import "time"

// Session represents a single analysis run over one IQ capture.
// It captures metadata about when and how the analysis was performed.
type Session struct {
	ID         int64     `json:"ID"`               // Unique identifier for the session
	StartTime  time.Time `json:"startTime"`        // When the analysis run began
	Source     string    `json:"source"`           // Input capture (file path or stream name)
	SampleRate float64   `json:"sampleRate"`       // Capture sample rate in Hz
	Config     *string   `json:"config,omitempty"` // Optional pipeline configuration in JSON format
}

// Frame is one power-spectrum frame produced by the FFT stage. Time is
// expressed both as an offset into the stream (seconds from the start of
// the capture) and as the absolute sample index of the frame's first sample.
type Frame struct {
	Time         float64   `json:"time"`         // Seconds from the start of the capture
	SampleOffset int64     `json:"sampleOffset"` // Index of the frame's first input sample
	BinWidth     float64   `json:"binWidth"`     // Frequency bin width in Hz
	Power        []float64 `json:"power"`        // Linear power per bin, DC-centered
}

// Event is an immutable snapshot of a completed signal cluster: one
// detected emission with its time/frequency bounds and summary statistics.
// Events are produced once by the clustering engine and never mutated;
// feature extraction fills in the refined bandwidth and modulation fields.
type Event struct {
	StartTime      float64 `json:"startTime"`      // Seconds from the start of the capture
	EndTime        float64 `json:"endTime"`        // Seconds from the start of the capture
	Duration       float64 `json:"duration"`       // EndTime - StartTime
	FreqLowHz      float64 `json:"freqLowHz"`      // Lower frequency bound, Hz relative to center
	FreqHighHz     float64 `json:"freqHighHz"`     // Upper frequency bound, Hz relative to center
	CenterFreqHz   float64 `json:"centerFreqHz"`   // Mean center frequency, Hz relative to center
	BandwidthHz    float64 `json:"bandwidthHz"`    // Estimated occupied bandwidth, Hz
	PeakSNRdB      float64 `json:"peakSnrDb"`      // Strongest single-detection SNR
	AvgSNRdB       float64 `json:"avgSnrDb"`       // Mean SNR across detections
	PeakPowerDB    float64 `json:"peakPowerDb"`    // Strongest bin power, dBFS
	DetectionCount int     `json:"detectionCount"` // CFAR detections folded into this event
	Confidence     float64 `json:"confidence"`     // Combined SNR/duration confidence, [0, 1]
	Modulation     string  `json:"modulation"`     // Coarse modulation guess
}
