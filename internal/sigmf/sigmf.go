// Package sigmf emits SigMF metadata records for analyzed captures:
// one global object describing the capture and one annotation per detected
// event. Only the fields the pipeline produces are covered; full SigMF
// round-tripping is out of scope.
package sigmf

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/roman-kulish/signal-analysis/internal/spectrum"
)

const version = "1.0.0"

// Global is the SigMF global object.
type Global struct {
	Datatype    string  `json:"core:datatype"`
	SampleRate  float64 `json:"core:sample_rate"`
	Version     string  `json:"core:version"`
	Description string  `json:"core:description,omitempty"`
}

// Capture is one SigMF capture segment.
type Capture struct {
	SampleStart int64   `json:"core:sample_start"`
	Frequency   float64 `json:"core:frequency,omitempty"`
}

// Annotation is one SigMF annotation: a detected event's sample span and
// frequency bounds plus a free-text description.
type Annotation struct {
	SampleStart   int64   `json:"core:sample_start"`
	SampleCount   int64   `json:"core:sample_count"`
	FreqLowerEdge float64 `json:"core:freq_lower_edge"`
	FreqUpperEdge float64 `json:"core:freq_upper_edge"`
	Label         string  `json:"core:label,omitempty"`
	Description   string  `json:"core:description,omitempty"`
}

// Metadata is a complete SigMF metadata document.
type Metadata struct {
	Global      Global       `json:"global"`
	Captures    []Capture    `json:"captures"`
	Annotations []Annotation `json:"annotations"`
}

// New builds a metadata document for a capture with the given datatype
// (e.g. "cf32_le"), sample rate and tuned center frequency.
func New(datatype string, sampleRate, centerFreq float64) *Metadata {
	return &Metadata{
		Global: Global{
			Datatype:   datatype,
			SampleRate: sampleRate,
			Version:    version,
		},
		Captures: []Capture{{SampleStart: 0, Frequency: centerFreq}},
	}
}

// Annotate appends one annotation derived from a completed event. Event
// frequencies are relative to the capture center; centerFreq shifts them to
// absolute RF.
func (m *Metadata) Annotate(ev spectrum.Event, centerFreq float64) {
	sampleStart := int64(ev.StartTime * m.Global.SampleRate)
	sampleCount := int64(math.Max(ev.Duration, 0) * m.Global.SampleRate)

	m.Annotations = append(m.Annotations, Annotation{
		SampleStart:   sampleStart,
		SampleCount:   sampleCount,
		FreqLowerEdge: centerFreq + ev.CenterFreqHz - ev.BandwidthHz/2,
		FreqUpperEdge: centerFreq + ev.CenterFreqHz + ev.BandwidthHz/2,
		Label:         ev.Modulation,
		Description: fmt.Sprintf("%s signal, SNR %.1f dB, confidence %.2f",
			ev.Modulation, ev.PeakSNRdB, ev.Confidence),
	})
}

// Write serializes the document as indented JSON.
func (m *Metadata) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("sigmf: encoding metadata: %w", err)
	}
	return nil
}
