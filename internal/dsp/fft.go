// Package dsp implements the transform and filtering primitives of the
// signal-analysis pipeline: a radix-2 FFT engine with reusable plans, window
// coefficient generation, and a polyphase filter-bank channelizer.
package dsp

import (
	"fmt"
	"math"
	"math/bits"
	"math/cmplx"
)

// Direction selects between forward and inverse transforms.
type Direction int

const (
	Forward Direction = iota
	Inverse
)

// MaxFFTSize is the largest transform size a Plan accepts.
const MaxFFTSize = 1 << 20

// Plan is an immutable, reusable FFT artifact bound to a (size, direction)
// pair. It holds the bit-reversal permutation and a precomputed twiddle
// table. A Plan is read-only after construction and may be shared across
// many Execute calls, including concurrent ones.
type Plan struct {
	size      int
	stages    int
	direction Direction
	bitRev    []int
	twiddle   []complex128
}

// NewPlan creates an FFT plan for the given transform size and direction.
// Size must be a power of two in [1, MaxFFTSize].
func NewPlan(size int, direction Direction) (*Plan, error) {
	if size < 1 || size > MaxFFTSize {
		return nil, fmt.Errorf("fft: size %d out of range [1, %d]", size, MaxFFTSize)
	}
	if !IsPowerOfTwo(size) {
		return nil, fmt.Errorf("fft: size %d is not a power of two", size)
	}
	if direction != Forward && direction != Inverse {
		return nil, fmt.Errorf("fft: invalid direction %d", direction)
	}

	stages := bits.TrailingZeros(uint(size))

	p := Plan{
		size:      size,
		stages:    stages,
		direction: direction,
		bitRev:    make([]int, size),
		twiddle:   make([]complex128, size/2),
	}

	for i := 0; i < size; i++ {
		p.bitRev[i] = int(BitReverse(uint(i), stages))
	}

	sign := -1.0
	if direction == Inverse {
		sign = 1.0
	}
	for k := 0; k < size/2; k++ {
		angle := sign * 2 * math.Pi * float64(k) / float64(size)
		p.twiddle[k] = cmplx.Rect(1, angle)
	}

	return &p, nil
}

// Size returns the transform size the plan was created for.
func (p *Plan) Size() int { return p.size }

// Direction returns the transform direction the plan was created for.
func (p *Plan) Direction() Direction { return p.direction }

// Twiddle returns the k-th precomputed twiddle factor, e^(±j2πk/N).
// Valid for k in [0, N/2).
func (p *Plan) Twiddle(k int) complex128 { return p.twiddle[k] }

// Execute runs the transform, reading from input and writing to output.
// Both slices must be exactly the plan size; input is left untouched when
// the slices are distinct. Inverse transforms are scaled by 1/N.
func (p *Plan) Execute(input, output []complex128) error {
	if p == nil {
		return fmt.Errorf("fft: nil plan")
	}
	if len(input) != p.size || len(output) != p.size {
		return fmt.Errorf("fft: buffer length mismatch: input=%d output=%d want=%d",
			len(input), len(output), p.size)
	}

	copy(output, input)

	// Bit-reversal reordering in place. Swapping only when i < j visits each
	// pair exactly once.
	for i, j := range p.bitRev {
		if i < j {
			output[i], output[j] = output[j], output[i]
		}
	}

	sign := -1.0
	if p.direction == Inverse {
		sign = 1.0
	}

	for span := 2; span <= p.size; span <<= 1 {
		half := span / 2
		step := cmplx.Rect(1, sign*2*math.Pi/float64(span))
		for start := 0; start < p.size; start += span {
			w := complex(1, 0)
			for k := 0; k < half; k++ {
				even := output[start+k]
				odd := output[start+k+half] * w
				output[start+k] = even + odd
				output[start+k+half] = even - odd
				w *= step
			}
		}
	}

	if p.direction == Inverse {
		scale := complex(1/float64(p.size), 0)
		for i := range output {
			output[i] *= scale
		}
	}

	return nil
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// NextPowerOfTwo returns the smallest power of two >= n, or 1 for n <= 1.
func NextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// BitReverse reverses the lowest n bits of x.
func BitReverse(x uint, n int) uint {
	var r uint
	for i := 0; i < n; i++ {
		r = (r << 1) | (x & 1)
		x >>= 1
	}
	return r
}

// Magnitude returns |c|.
func Magnitude(c complex128) float64 { return cmplx.Abs(c) }

// Phase returns the argument of c in radians.
func Phase(c complex128) float64 { return cmplx.Phase(c) }

// MagnitudeDB returns 20*log10(|c|), or -inf for a zero magnitude.
func MagnitudeDB(c complex128) float64 {
	m := cmplx.Abs(c)
	if m <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(m)
}

// PowerSpectrum writes |input[i]|^2 into output, optionally normalized by
// 1/N. The slices must have equal, non-zero length.
func PowerSpectrum(input []complex128, output []float64, normalize bool) error {
	if len(input) == 0 || len(input) != len(output) {
		return fmt.Errorf("dsp: power spectrum length mismatch: input=%d output=%d",
			len(input), len(output))
	}

	scale := 1.0
	if normalize {
		scale = 1 / float64(len(input))
	}
	for i, c := range input {
		re, im := real(c), imag(c)
		output[i] = (re*re + im*im) * scale
	}
	return nil
}

// Shift swaps the two halves of v in place, moving the DC bin to the center
// (the usual FFT-shift for display and centered-spectrum conventions).
// The length must be even.
func Shift[T any](v []T) {
	half := len(v) / 2
	for i := 0; i < half; i++ {
		v[i], v[i+half] = v[i+half], v[i]
	}
}

// IQToComplex converts interleaved (I, Q) pairs into complex samples,
// dividing each component by scale (e.g. 32768 for s16-sourced data, 1 for
// float-native data). out must hold len(iq)/2 samples.
func IQToComplex(iq []float64, out []complex128, scale float64) error {
	if len(iq) == 0 || len(iq)%2 != 0 {
		return fmt.Errorf("dsp: interleaved IQ length %d is not a positive even number", len(iq))
	}
	if len(out) != len(iq)/2 {
		return fmt.Errorf("dsp: output length %d, want %d", len(out), len(iq)/2)
	}
	if scale == 0 {
		return fmt.Errorf("dsp: zero scale")
	}

	for i := range out {
		out[i] = complex(iq[2*i]/scale, iq[2*i+1]/scale)
	}
	return nil
}

// ComplexToIQ converts complex samples into interleaved (I, Q) pairs,
// multiplying each component by scale. iq must hold 2*len(in) values.
func ComplexToIQ(in []complex128, iq []float64, scale float64) error {
	if len(in) == 0 {
		return fmt.Errorf("dsp: empty input")
	}
	if len(iq) != 2*len(in) {
		return fmt.Errorf("dsp: output length %d, want %d", len(iq), 2*len(in))
	}

	for i, c := range in {
		iq[2*i] = real(c) * scale
		iq[2*i+1] = imag(c) * scale
	}
	return nil
}
