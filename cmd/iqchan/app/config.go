package app

import (
	"errors"
	"flag"
)

// Config holds the channelizer tool settings, populated from CLI flags.
type Config struct {
	InputFile    string
	OutputPrefix string
	SampleRate   float64
	NumChannels  int
	FilterLength int
	FFTSize      int
	BlockSize    int
	KaiserBeta   float64
}

func NewConfigFromCLI() (*Config, error) {
	var c Config

	flag.StringVar(&c.InputFile, "i", "", "Path to the input IQ file")
	flag.StringVar(&c.OutputPrefix, "o", "", "Output file prefix; channel N is written to <prefix>_chN.cf32")
	flag.Float64Var(&c.SampleRate, "r", 0, "Input sample rate in Hz")
	flag.IntVar(&c.NumChannels, "n", 8, "Number of output channels [4, 32]")
	flag.IntVar(&c.FilterLength, "taps", 1024, "Prototype filter length (power of two, divisible by channel count)")
	flag.IntVar(&c.FFTSize, "fft", 128, "Channelizer FFT size (power of two, <= filter length)")
	flag.IntVar(&c.BlockSize, "block", 4096, "Samples per channelizer block")
	flag.Float64Var(&c.KaiserBeta, "beta", 9.0, "Kaiser window beta for the prototype filter")
	flag.Parse()

	var err error
	if c.InputFile == "" {
		err = errors.New("input file is required")
	} else if c.OutputPrefix == "" {
		err = errors.New("output prefix is required")
	} else if c.SampleRate <= 0 {
		err = errors.New("sample rate is required")
	}

	if err != nil {
		flag.Usage()
		return nil, err
	}
	return &c, nil
}
