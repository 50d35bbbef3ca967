package app

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/signal-analysis/internal/iq"
	"github.com/roman-kulish/signal-analysis/internal/pipeline"
)

// Config represents the main application configuration
type Config struct {
	Settings Settings        `yaml:"settings"`
	Input    InputConfig     `yaml:"input"`
	Pipeline pipeline.Config `yaml:"pipeline"`
	Output   OutputConfig    `yaml:"output"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// Level parses the configured log level, defaulting to info.
func (s Settings) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// InputConfig describes the IQ capture to analyze
type InputConfig struct {
	File       string  `yaml:"file"`
	Format     string  `yaml:"format"`     // cf32, cs16, cs8, cu8; empty = sniff from extension
	SampleRate float64 `yaml:"sampleRate"` // Hz
	CenterFreq float64 `yaml:"centerFreq"` // Tuned center frequency in Hz, for absolute-RF outputs
	BlockSize  int     `yaml:"blockSize"`  // Samples per read, default 65536
}

// OutputConfig describes where analysis results go
type OutputConfig struct {
	Database    string `yaml:"database"`    // SQLite path; empty disables persistence
	EventsFile  string `yaml:"eventsFile"`  // CSV or JSONL path; empty disables
	EventFormat string `yaml:"eventFormat"` // "csv" or "jsonl", default csv
	SigMFFile   string `yaml:"sigmfFile"`   // SigMF metadata path; empty disables
	StoreFrames bool   `yaml:"storeFrames"` // Persist every power-spectrum frame
}

const defaultBlockSize = 65536

// LoadConfig reads and validates a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}

	var config Config
	if err = yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if config.Input.File == "" {
		return nil, fmt.Errorf("input.file is required")
	}
	if config.Input.SampleRate <= 0 {
		return nil, fmt.Errorf("input.sampleRate must be positive")
	}
	if config.Input.BlockSize == 0 {
		config.Input.BlockSize = defaultBlockSize
	}
	if config.Input.BlockSize < 0 {
		return nil, fmt.Errorf("input.blockSize must be positive")
	}
	if config.Input.Format != "" && parseFormat(config.Input.Format) == iq.FormatUnknown {
		return nil, fmt.Errorf("input.format '%s' is not one of cf32, cs16, cs8, cu8", config.Input.Format)
	}

	switch config.Output.EventFormat {
	case "", "csv", "jsonl":
	default:
		return nil, fmt.Errorf("output.eventFormat '%s' is not one of csv, jsonl", config.Output.EventFormat)
	}
	if config.Output.EventFormat == "" {
		config.Output.EventFormat = "csv"
	}

	config.Pipeline.SampleRate = config.Input.SampleRate
	return &config, nil
}

func parseFormat(name string) iq.Format {
	switch name {
	case "cf32":
		return iq.FormatCF32
	case "cs16":
		return iq.FormatCS16
	case "cs8":
		return iq.FormatCS8
	case "cu8":
		return iq.FormatCU8
	default:
		return iq.FormatUnknown
	}
}
