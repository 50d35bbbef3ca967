package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/roman-kulish/signal-analysis/internal/spectrum"
)

func testEvent() spectrum.Event {
	return spectrum.Event{
		StartTime:      1.5,
		EndTime:        2.25,
		Duration:       0.75,
		FreqLowHz:      499_000,
		FreqHighHz:     501_000,
		CenterFreqHz:   500_000,
		BandwidthHz:    976.6,
		PeakSNRdB:      22.5,
		AvgSNRdB:       18.1,
		PeakPowerDB:    -35.2,
		DetectionCount: 42,
		Confidence:     0.87,
		Modulation:     "cw",
	}
}

func TestCSVEventWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSVEventWriter(&buf)

	// Header is written once, before the first event only.
	for i := 0; i < 2; i++ {
		if err := w.Write(testEvent()); err != nil {
			t.Fatalf("Write %d failed: %v", i, err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("Failed to parse written CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Got %d CSV records, want header + 2 rows", len(records))
	}
	if records[0][0] != "start_s" || records[0][7] != "modulation" {
		t.Errorf("Unexpected header row: %v", records[0])
	}
	if records[1][7] != "cw" {
		t.Errorf("Modulation column %q, want cw", records[1][7])
	}
	if records[1][3] != "500000.0" {
		t.Errorf("Center frequency column %q, want 500000.0", records[1][3])
	}
}

func TestJSONLEventWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLEventWriter(&buf)

	for i := 0; i < 3; i++ {
		if err := w.Write(testEvent()); err != nil {
			t.Fatalf("Write %d failed: %v", i, err)
		}
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("Got %d JSONL lines, want 3", len(lines))
	}
	for i, line := range lines {
		var ev spectrum.Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("Line %d does not parse: %v", i, err)
		}
		if ev.CenterFreqHz != 500_000 || ev.Modulation != "cw" {
			t.Errorf("Line %d round-trip mismatch: %+v", i, ev)
		}
	}
}
