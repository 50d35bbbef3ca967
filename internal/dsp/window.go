package dsp

import (
	"fmt"
	"math"
)

// WindowType identifies a window function for spectral analysis.
type WindowType int

const (
	WindowRectangular WindowType = iota
	WindowHann
	WindowHamming
	WindowBlackman
)

// Window returns length coefficients of the requested window function.
func Window(wt WindowType, length int) ([]float64, error) {
	if length <= 0 {
		return nil, fmt.Errorf("dsp: window length %d must be positive", length)
	}

	w := make([]float64, length)
	if length == 1 {
		w[0] = 1
		return w, nil
	}

	n := float64(length - 1)
	for i := range w {
		x := 2 * math.Pi * float64(i) / n
		switch wt {
		case WindowRectangular:
			w[i] = 1
		case WindowHann:
			w[i] = 0.5 * (1 - math.Cos(x))
		case WindowHamming:
			w[i] = 0.54 - 0.46*math.Cos(x)
		case WindowBlackman:
			w[i] = 0.42 - 0.5*math.Cos(x) + 0.08*math.Cos(2*x)
		default:
			return nil, fmt.Errorf("dsp: unknown window type %d", wt)
		}
	}
	return w, nil
}

const (
	besselTerms   = 10
	besselEpsilon = 1e-12
)

// besselI0 approximates the zeroth-order modified Bessel function of the
// first kind with a truncated power series. Ten terms with early exit keeps
// the approximation well inside the accuracy needed for Kaiser windows with
// beta up to ~12.
func besselI0(x float64) float64 {
	sum := 1.0
	term := 1.0
	half := x / 2

	for k := 1; k <= besselTerms; k++ {
		term *= (half / float64(k)) * (half / float64(k))
		sum += term
		if term < besselEpsilon {
			break
		}
	}
	return sum
}

// KaiserWindow returns length coefficients of a Kaiser window with shape
// parameter beta, normalized so the coefficients sum to one. The unit-sum
// normalization (rather than dividing by I0(beta)) gives the prototype
// filter unity DC gain when used for FIR design; the channel isolation
// estimate in the channelizer is calibrated against this form.
func KaiserWindow(length int, beta float64) ([]float64, error) {
	if length <= 0 {
		return nil, fmt.Errorf("dsp: kaiser window length %d must be positive", length)
	}
	if beta < 0 {
		return nil, fmt.Errorf("dsp: kaiser beta %f must be non-negative", beta)
	}

	w := make([]float64, length)
	if length == 1 {
		w[0] = 1
		return w, nil
	}

	mid := float64(length-1) / 2
	sum := 0.0
	for i := range w {
		r := (float64(i) - mid) / mid
		w[i] = besselI0(beta * math.Sqrt(1-r*r))
		sum += w[i]
	}
	for i := range w {
		w[i] /= sum
	}
	return w, nil
}
