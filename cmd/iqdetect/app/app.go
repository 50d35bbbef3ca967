package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/signal-analysis/internal/iq"
	"github.com/roman-kulish/signal-analysis/internal/pipeline"
	"github.com/roman-kulish/signal-analysis/internal/sigmf"
	"github.com/roman-kulish/signal-analysis/internal/spectrum"
	"github.com/roman-kulish/signal-analysis/internal/storage"
)

// eventWriter is implemented by both pipeline writers.
type eventWriter interface {
	Write(spectrum.Event) error
}

// Run executes the detection pipeline over the configured capture file.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	reader, file, err := iq.Open(config.Input.File, parseFormat(config.Input.Format))
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := iq.Stat(config.Input.File, reader.Format(), config.Input.SampleRate)
	if err != nil {
		return err
	}
	logger.Info("analyzing capture",
		slog.String("file", config.Input.File),
		slog.String("format", reader.Format().String()),
		slog.String("size", humanize.Bytes(uint64(info.SizeBytes))),
		slog.String("samples", humanize.Comma(info.SampleCount)),
		slog.String("duration", info.Duration.String()))

	var store storage.Store
	var sessionID int64
	if config.Output.Database != "" {
		s := storage.NewSqliteStore(config.Output.Database)
		defer s.Close()

		if sessionID, err = s.CreateSession(ctx, config.Input.File, config.Input.SampleRate, config); err != nil {
			return fmt.Errorf("creating session: %w", err)
		}
		store = s
	}

	var writer eventWriter
	var flushWriter func() error
	if config.Output.EventsFile != "" {
		out, err := os.Create(config.Output.EventsFile)
		if err != nil {
			return fmt.Errorf("creating events file: %w", err)
		}
		defer out.Close()

		if config.Output.EventFormat == "jsonl" {
			writer = pipeline.NewJSONLEventWriter(out)
		} else {
			csv := pipeline.NewCSVEventWriter(out)
			writer = csv
			flushWriter = csv.Flush
		}
	}

	var meta *sigmf.Metadata
	if config.Output.SigMFFile != "" {
		meta = sigmf.New(sigmfDatatype(reader.Format()), config.Input.SampleRate, config.Input.CenterFreq)
	}

	sink := func(ev spectrum.Event) error {
		logger.Info("event",
			slog.Float64("centerFreqHz", ev.CenterFreqHz),
			slog.Float64("bandwidthHz", ev.BandwidthHz),
			slog.Float64("snrDb", ev.PeakSNRdB),
			slog.String("modulation", ev.Modulation),
			slog.Float64("confidence", ev.Confidence))

		if store != nil {
			if err := store.StoreEvent(ctx, sessionID, ev); err != nil {
				return err
			}
		}
		if writer != nil {
			if err := writer.Write(ev); err != nil {
				return err
			}
		}
		if meta != nil {
			meta.Annotate(ev, config.Input.CenterFreq)
		}
		return nil
	}

	var options []func(*pipeline.Pipeline)
	options = append(options, pipeline.WithLogger(logger))
	if store != nil && config.Output.StoreFrames {
		options = append(options, pipeline.WithFrameSink(func(frame *spectrum.Frame) error {
			return store.StoreFrame(ctx, sessionID, frame)
		}))
	}

	p, err := pipeline.New(config.Pipeline, sink, options...)
	if err != nil {
		return err
	}

	block := make([]complex128, config.Input.BlockSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := reader.ReadBlock(block)
		if n > 0 {
			if pErr := p.Process(block[:n]); pErr != nil {
				return pErr
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading capture: %w", err)
		}
	}

	if err := p.Flush(); err != nil {
		return err
	}
	if flushWriter != nil {
		if err := flushWriter(); err != nil {
			return fmt.Errorf("flushing events file: %w", err)
		}
	}

	if meta != nil {
		out, err := os.Create(config.Output.SigMFFile)
		if err != nil {
			return fmt.Errorf("creating SigMF file: %w", err)
		}
		defer out.Close()

		if err := meta.Write(out); err != nil {
			return err
		}
	}

	frames, detections, events := p.Stats()
	logger.Info("analysis complete",
		slog.String("frames", humanize.Comma(frames)),
		slog.String("detections", humanize.Comma(detections)),
		slog.String("events", humanize.Comma(events)))
	return nil
}

func sigmfDatatype(f iq.Format) string {
	switch f {
	case iq.FormatCF32:
		return "cf32_le"
	case iq.FormatCS16:
		return "ci16_le"
	case iq.FormatCS8:
		return "ci8"
	case iq.FormatCU8:
		return "cu8"
	default:
		return "cf32_le"
	}
}
