package app

import (
	"context"
	"fmt"
	"image/jpeg"
	"image/png"
	"log/slog"
	"math"
	"os"

	"github.com/roman-kulish/signal-analysis/internal/storage"
)

// Run renders the waterfall image for one stored session.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer store.Close()

	session, err := store.Session(ctx, config.SessionID)
	if err != nil {
		return fmt.Errorf("loading session %d: %w", config.SessionID, err)
	}

	logger.Info("reading frames", slog.Int64("session", session.ID), slog.String("source", session.Source))

	iter, err := store.ReadFrames(ctx, config.SessionID)
	if err != nil {
		return err
	}
	defer iter.Close()

	data := WaterfallData{SampleRate: session.SampleRate}
	hist := NewPowerHistogram()
	for iter.Next() {
		frame := iter.Frame()

		row := make([]float64, len(frame.Power))
		for i, p := range frame.Power {
			db := math.Inf(-1)
			if p > 0 {
				db = 10 * math.Log10(p)
			}
			row[i] = db
			hist.Update(db)
		}

		data.Rows = append(data.Rows, row)
		data.Times = append(data.Times, frame.Time)
		data.BinWidth = frame.BinWidth
	}
	if err = iter.Err(); err != nil {
		return fmt.Errorf("reading frames: %w", err)
	}
	if len(data.Rows) == 0 {
		return fmt.Errorf("session %d has no stored frames", config.SessionID)
	}
	data.Bounds = hist.Bounds()

	events, err := store.Events(ctx, config.SessionID)
	if err != nil {
		return fmt.Errorf("loading events: %w", err)
	}

	logger.Info("rendering waterfall",
		slog.Int("frames", len(data.Rows)),
		slog.Int("bins", len(data.Rows[0])),
		slog.Int("events", len(events)),
		slog.String("powerRange", fmt.Sprintf("%.0f..%.0fdB", data.Bounds.Min, data.Bounds.Max)),
		slog.String("destination", config.OutputFile))

	renderer, err := NewRenderer(config.Theme)
	if err != nil {
		return fmt.Errorf("creating renderer: %w", err)
	}

	img, err := renderer.Render(&data, events, !config.NoEvents)
	if err != nil {
		return fmt.Errorf("rendering waterfall: %w", err)
	}

	out, err := os.Create(config.OutputFile)
	if err != nil {
		return err
	}
	defer out.Close()

	switch config.Format {
	case ImageJPEG:
		err = jpeg.Encode(out, img, &jpeg.Options{Quality: 98})
	default:
		err = png.Encode(out, img)
	}
	return err
}
