package dsp

import (
	"fmt"
	"math"
)

// MFCC computes Mel-Frequency Cepstral Coefficients from a mel-scale
// power spectrogram.
type MFCC struct {
	numCoefficients int
	useLiftering    bool
	lifterCoeff     float64

	dctMatrix   [][]float64
	numFilters  int
	initialized bool
}

// NewMFCC creates a new MFCC computer with default liftering.
func NewMFCC(numCoefficients int) *MFCC {
	if numCoefficients <= 0 {
		numCoefficients = 13
	}
	return &MFCC{
		numCoefficients: numCoefficients,
		useLiftering:    true,
		lifterCoeff:     22.0,
	}
}

// initialize builds the DCT-II matrix for the given mel filter count.
func (m *MFCC) initialize(numFilters int) error {
	if numFilters <= 0 {
		return fmt.Errorf("invalid mel filter count: %d", numFilters)
	}
	if m.numCoefficients > numFilters {
		return fmt.Errorf("cannot compute %d coefficients from %d mel filters", m.numCoefficients, numFilters)
	}

	m.dctMatrix = make([][]float64, m.numCoefficients)
	scale := math.Sqrt(2.0 / float64(numFilters))
	for i := range m.numCoefficients {
		m.dctMatrix[i] = make([]float64, numFilters)
		for j := range numFilters {
			m.dctMatrix[i][j] = scale * math.Cos(math.Pi*float64(i)*(float64(j)+0.5)/float64(numFilters))
		}
	}

	m.numFilters = numFilters
	m.initialized = true
	return nil
}

// Compute calculates MFCC coefficients from one mel power spectrum.
func (m *MFCC) Compute(melSpectrum []float64) ([]float64, error) {
	if len(melSpectrum) == 0 {
		return nil, fmt.Errorf("empty mel spectrum")
	}
	if !m.initialized || m.numFilters != len(melSpectrum) {
		if err := m.initialize(len(melSpectrum)); err != nil {
			return nil, err
		}
	}

	// Log compression with a floor to avoid log(0)
	logMel := make([]float64, len(melSpectrum))
	for i, v := range melSpectrum {
		if v < 1e-10 {
			v = 1e-10
		}
		logMel[i] = math.Log(v)
	}

	// DCT-II
	coeffs := make([]float64, m.numCoefficients)
	for i := range m.numCoefficients {
		sum := 0.0
		for j, lv := range logMel {
			sum += m.dctMatrix[i][j] * lv
		}
		coeffs[i] = sum
	}

	if m.useLiftering {
		m.applyLiftering(coeffs)
	}

	return coeffs, nil
}

// ComputeFrames calculates MFCCs for every frame of a mel spectrogram
// (Time x Filters in, Time x Coefficients out).
func (m *MFCC) ComputeFrames(melSpectrogram [][]float64) ([][]float64, error) {
	if len(melSpectrogram) == 0 {
		return nil, fmt.Errorf("empty mel spectrogram")
	}

	frames := make([][]float64, len(melSpectrogram))
	for t, melSpectrum := range melSpectrogram {
		coeffs, err := m.Compute(melSpectrum)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", t, err)
		}
		frames[t] = coeffs
	}

	return frames, nil
}

// applyLiftering applies sinusoidal liftering to de-emphasize higher
// coefficients.
func (m *MFCC) applyLiftering(coeffs []float64) {
	for i := range coeffs {
		lift := 1.0 + (m.lifterCoeff/2.0)*math.Sin(math.Pi*float64(i)/m.lifterCoeff)
		coeffs[i] *= lift
	}
}
