package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/roman-kulish/signal-analysis/internal/spectrum"
)

var csvHeader = []string{
	"start_s", "end_s", "duration_s",
	"center_freq_hz", "bandwidth_hz",
	"snr_db", "peak_power_dbfs",
	"modulation", "confidence",
}

// CSVEventWriter writes completed events as CSV rows. Each writer owns its
// header state, so one writer maps to one output file.
type CSVEventWriter struct {
	w             *csv.Writer
	headerWritten bool
}

// NewCSVEventWriter wraps w in a CSV event writer. The header row is
// emitted lazily before the first event.
func NewCSVEventWriter(w io.Writer) *CSVEventWriter {
	return &CSVEventWriter{w: csv.NewWriter(w)}
}

// Write appends one event row, writing the header first when needed.
func (w *CSVEventWriter) Write(ev spectrum.Event) error {
	if !w.headerWritten {
		if err := w.w.Write(csvHeader); err != nil {
			return fmt.Errorf("writing CSV header: %w", err)
		}
		w.headerWritten = true
	}

	row := []string{
		strconv.FormatFloat(ev.StartTime, 'f', 6, 64),
		strconv.FormatFloat(ev.EndTime, 'f', 6, 64),
		strconv.FormatFloat(ev.Duration, 'f', 6, 64),
		strconv.FormatFloat(ev.CenterFreqHz, 'f', 1, 64),
		strconv.FormatFloat(ev.BandwidthHz, 'f', 1, 64),
		strconv.FormatFloat(ev.PeakSNRdB, 'f', 2, 64),
		strconv.FormatFloat(ev.PeakPowerDB, 'f', 2, 64),
		ev.Modulation,
		strconv.FormatFloat(ev.Confidence, 'f', 3, 64),
	}
	if err := w.w.Write(row); err != nil {
		return fmt.Errorf("writing CSV row: %w", err)
	}
	return nil
}

// Flush writes buffered rows through to the underlying writer.
func (w *CSVEventWriter) Flush() error {
	w.w.Flush()
	return w.w.Error()
}

// JSONLEventWriter writes completed events as one JSON object per line.
type JSONLEventWriter struct {
	enc *json.Encoder
}

// NewJSONLEventWriter wraps w in a JSONL event writer.
func NewJSONLEventWriter(w io.Writer) *JSONLEventWriter {
	return &JSONLEventWriter{enc: json.NewEncoder(w)}
}

// Write appends one event line.
func (w *JSONLEventWriter) Write(ev spectrum.Event) error {
	if err := w.enc.Encode(ev); err != nil {
		return fmt.Errorf("writing JSONL event: %w", err)
	}
	return nil
}
