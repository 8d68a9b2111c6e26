package dsp

import (
	"fmt"
	"math"
)

// Window is a windowing function applied to analysis frames.
type Window interface {
	ApplyInPlace(signal []float64) error
	Size() int
}

// Hann represents a Hann window function
type Hann struct {
	size         int
	symmetric    bool
	coefficients []float64
}

// NewHann creates a new Hann window. STFT analysis uses the periodic
// (non-symmetric) form.
func NewHann(size int, symmetric bool) *Hann {
	h := &Hann{
		size:      size,
		symmetric: symmetric,
	}
	h.generate()
	return h
}

// generate creates Hann window coefficients
func (h *Hann) generate() {
	h.coefficients = make([]float64, h.size)

	denominator := float64(h.size)
	if h.symmetric {
		denominator = float64(h.size - 1)
	}

	for i := range h.size {
		h.coefficients[i] = 0.5 * (1.0 - math.Cos(2*math.Pi*float64(i)/denominator))
	}
}

// ApplyInPlace applies the window to a signal in-place
func (h *Hann) ApplyInPlace(signal []float64) error {
	if len(signal) != h.size {
		return fmt.Errorf("signal length (%d) doesn't match window size (%d)", len(signal), h.size)
	}

	for i := 0; i < h.size; i++ {
		signal[i] *= h.coefficients[i]
	}

	return nil
}

// Size returns the window size
func (h *Hann) Size() int {
	return h.size
}

// Coefficients returns a copy of the window coefficients
func (h *Hann) Coefficients() []float64 {
	coeffs := make([]float64, len(h.coefficients))
	copy(coeffs, h.coefficients)
	return coeffs
}

// NewWindow creates a window by name. Only the windows the analysis
// pipeline actually uses are supported.
func NewWindow(name string, size int) (Window, error) {
	switch name {
	case "", "hann":
		return NewHann(size, false), nil
	default:
		return nil, fmt.Errorf("unsupported window type: %q", name)
	}
}
