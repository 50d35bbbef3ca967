package app

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/signal-analysis/internal/dsp"
	"github.com/roman-kulish/signal-analysis/internal/iq"
)

const readBlockSize = 65536

// Run splits the input capture into per-channel cf32 files.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	reader, file, err := iq.Open(config.InputFile, iq.FormatUnknown)
	if err != nil {
		return err
	}
	defer file.Close()

	cz, err := dsp.NewChannelizer(dsp.ChannelizerConfig{
		NumChannels:      config.NumChannels,
		SampleRate:       config.SampleRate,
		ChannelBandwidth: config.SampleRate / float64(config.NumChannels),
		FilterLength:     config.FilterLength,
		FFTSize:          config.FFTSize,
		BlockSize:        config.BlockSize,
		KaiserBeta:       config.KaiserBeta,
	})
	if err != nil {
		return err
	}

	logger.Info("channelizer ready",
		slog.Int("channels", config.NumChannels),
		slog.Float64("channelBandwidthHz", cz.ChannelBandwidth()),
		slog.String("estimatedIsolation", fmt.Sprintf("%.1fdB", cz.EstimatedIsolationDB())))

	outputs := make([]*bufio.Writer, config.NumChannels)
	for ch := range outputs {
		centerFreq, err := cz.ChannelCenterFrequency(ch)
		if err != nil {
			return err
		}

		path := fmt.Sprintf("%s_ch%d.cf32", config.OutputPrefix, ch)
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating channel output %s: %w", path, err)
		}
		defer f.Close()

		outputs[ch] = bufio.NewWriterSize(f, 1<<16)
		logger.Info("channel output",
			slog.Int("channel", ch),
			slog.String("file", path),
			slog.String("centerOffset", fmt.Sprintf("%+.0fHz", centerFreq)))
	}

	block := make([]complex128, readBlockSize)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := reader.ReadBlock(block)
		if n > 0 {
			if _, cErr := cz.ProcessBlock(block[:n]); cErr != nil {
				return cErr
			}
			total += int64(n)

			if err := drainChannels(cz, outputs); err != nil {
				return err
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading capture: %w", err)
		}
	}

	for ch, out := range outputs {
		if err := out.Flush(); err != nil {
			return fmt.Errorf("flushing channel %d: %w", ch, err)
		}
	}

	logger.Info("channelization complete", slog.String("samples", humanize.Comma(total)))
	return nil
}

// drainChannels moves all pending channel output to the writers, freeing
// ring capacity before the next input block.
func drainChannels(cz *dsp.Channelizer, outputs []*bufio.Writer) error {
	var scratch [8]byte
	for ch := range outputs {
		samples, err := cz.ChannelSamples(ch)
		if err != nil {
			return err
		}

		for _, s := range samples {
			binary.LittleEndian.PutUint32(scratch[:4], math.Float32bits(real(s)))
			binary.LittleEndian.PutUint32(scratch[4:], math.Float32bits(imag(s)))
			if _, err := outputs[ch].Write(scratch[:]); err != nil {
				return fmt.Errorf("writing channel %d: %w", ch, err)
			}
		}
		if err := cz.ConsumeChannel(ch); err != nil {
			return err
		}
	}
	return nil
}
