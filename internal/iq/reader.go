// Package iq reads raw baseband IQ captures into complex sample blocks.
// The analysis core treats the output as opaque, already-validated input;
// this package is only the thin decoding layer in front of it.
package iq

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Format identifies the on-disk sample encoding of an IQ capture.
type Format int

const (
	FormatUnknown Format = iota
	FormatCF32           // interleaved little-endian float32 pairs
	FormatCS16           // interleaved little-endian int16 pairs
	FormatCS8            // interleaved int8 pairs
	FormatCU8            // interleaved offset-binary uint8 pairs (rtl-sdr)
)

// String returns the conventional file-extension name of the format.
func (f Format) String() string {
	switch f {
	case FormatCF32:
		return "cf32"
	case FormatCS16:
		return "cs16"
	case FormatCS8:
		return "cs8"
	case FormatCU8:
		return "cu8"
	default:
		return "unknown"
	}
}

// bytesPerSample returns the encoded size of one complex sample.
func (f Format) bytesPerSample() int {
	switch f {
	case FormatCF32:
		return 8
	case FormatCS16:
		return 4
	case FormatCS8, FormatCU8:
		return 2
	default:
		return 0
	}
}

// DetectFormat guesses the sample format from the file extension
// (.cf32/.fc32, .cs16/.sc16, .cs8/.sc8, .cu8/.u8). Returns FormatUnknown
// when the extension is not recognized.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cf32", ".fc32", ".raw":
		return FormatCF32
	case ".cs16", ".sc16":
		return FormatCS16
	case ".cs8", ".sc8":
		return FormatCS8
	case ".cu8", ".u8":
		return FormatCU8
	default:
		return FormatUnknown
	}
}

// Reader decodes an IQ capture stream block by block.
type Reader struct {
	r      *bufio.Reader
	format Format
	buf    []byte
}

// NewReader wraps r as an IQ sample reader of the given format.
func NewReader(r io.Reader, format Format) (*Reader, error) {
	if format.bytesPerSample() == 0 {
		return nil, fmt.Errorf("iq: unsupported format %v", format)
	}
	return &Reader{
		r:      bufio.NewReaderSize(r, 1<<16),
		format: format,
	}, nil
}

// Format returns the reader's sample format.
func (r *Reader) Format() Format { return r.format }

// ReadBlock fills out with decoded complex samples and returns the number
// of samples read. A short read at end of stream returns the remaining
// samples with a nil error; the subsequent call returns 0, io.EOF.
func (r *Reader) ReadBlock(out []complex128) (int, error) {
	if len(out) == 0 {
		return 0, fmt.Errorf("iq: empty output buffer")
	}

	bps := r.format.bytesPerSample()
	want := len(out) * bps
	if cap(r.buf) < want {
		r.buf = make([]byte, want)
	}
	buf := r.buf[:want]

	n, err := io.ReadFull(r.r, buf)
	if err == io.ErrUnexpectedEOF {
		err = nil
	}
	if n == 0 {
		if err == nil {
			err = io.EOF
		}
		return 0, err
	}

	samples := n / bps
	for i := 0; i < samples; i++ {
		out[i] = r.decode(buf[i*bps:])
	}
	return samples, err
}

func (r *Reader) decode(b []byte) complex128 {
	switch r.format {
	case FormatCF32:
		re := math.Float32frombits(binary.LittleEndian.Uint32(b))
		im := math.Float32frombits(binary.LittleEndian.Uint32(b[4:]))
		return complex(float64(re), float64(im))

	case FormatCS16:
		re := int16(binary.LittleEndian.Uint16(b))
		im := int16(binary.LittleEndian.Uint16(b[2:]))
		return complex(float64(re)/32768, float64(im)/32768)

	case FormatCS8:
		return complex(float64(int8(b[0]))/128, float64(int8(b[1]))/128)

	case FormatCU8:
		return complex((float64(b[0])-127.5)/127.5, (float64(b[1])-127.5)/127.5)

	default:
		return 0
	}
}

// Info describes an IQ capture file.
type Info struct {
	Path        string
	Format      Format
	SizeBytes   int64
	SampleCount int64
	SampleRate  float64
	Duration    time.Duration
}

// Stat inspects an IQ capture file without reading its contents. The
// sample rate is caller-supplied metadata (raw captures carry none).
func Stat(path string, format Format, sampleRate float64) (*Info, error) {
	if format == FormatUnknown {
		format = DetectFormat(path)
	}
	if format.bytesPerSample() == 0 {
		return nil, fmt.Errorf("iq: cannot determine format of %s", path)
	}

	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("iq: stat %s: %w", path, err)
	}

	info := Info{
		Path:        path,
		Format:      format,
		SizeBytes:   fi.Size(),
		SampleCount: fi.Size() / int64(format.bytesPerSample()),
		SampleRate:  sampleRate,
	}
	if sampleRate > 0 {
		seconds := float64(info.SampleCount) / sampleRate
		info.Duration = time.Duration(seconds * float64(time.Second))
	}
	return &info, nil
}

// Open opens an IQ capture file for reading, sniffing the format from the
// extension unless one is given.
func Open(path string, format Format) (*Reader, *os.File, error) {
	if format == FormatUnknown {
		format = DetectFormat(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("iq: opening %s: %w", path, err)
	}

	r, err := NewReader(f, format)
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	return r, f, nil
}
