// iqinfo prints basic information about a raw IQ capture file.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/signal-analysis/internal/iq"
)

func main() {
	var sampleRate float64
	var format string
	flag.Float64Var(&sampleRate, "r", 0, "Sample rate in Hz (optional, enables duration)")
	flag.StringVar(&format, "f", "", "Sample format: cf32, cs16, cs8, cu8 (default: sniff from extension)")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: iqinfo [-r rate] [-f format] <file>")
		os.Exit(2)
	}

	var f iq.Format
	switch format {
	case "":
		f = iq.FormatUnknown
	case "cf32":
		f = iq.FormatCF32
	case "cs16":
		f = iq.FormatCS16
	case "cs8":
		f = iq.FormatCS8
	case "cu8":
		f = iq.FormatCU8
	default:
		fmt.Fprintf(os.Stderr, "unknown format: %s\n", format)
		os.Exit(2)
	}

	info, err := iq.Stat(flag.Arg(0), f, sampleRate)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Printf("file:     %s\n", info.Path)
	fmt.Printf("format:   %s\n", info.Format)
	fmt.Printf("size:     %s\n", humanize.Bytes(uint64(info.SizeBytes)))
	fmt.Printf("samples:  %s\n", humanize.Comma(info.SampleCount))
	if info.SampleRate > 0 {
		fmt.Printf("rate:     %s samples/s\n", humanize.Commaf(info.SampleRate))
		fmt.Printf("duration: %s\n", info.Duration)
	}
}
