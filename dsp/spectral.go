package dsp

import (
	"math"
	"sort"
)

// SpectralCentroid computes the spectral centroid (center of mass) of a
// spectrum. The centroid tracks perceived brightness.
type SpectralCentroid struct {
	sampleRate  int
	freqBins    []float64
	initialized bool
}

// NewSpectralCentroid creates a new spectral centroid calculator
func NewSpectralCentroid(sampleRate int) *SpectralCentroid {
	return &SpectralCentroid{
		sampleRate: sampleRate,
	}
}

// Compute calculates spectral centroid for a single magnitude spectrum.
// An all-zero spectrum has no centroid and reports NaN so callers can
// filter it out of reductions.
func (sc *SpectralCentroid) Compute(spectrum []float64) float64 {
	if len(spectrum) == 0 {
		return math.NaN()
	}

	if !sc.initialized || len(sc.freqBins) != len(spectrum) {
		sc.initializeFreqBins(len(spectrum))
	}

	numerator := 0.0
	denominator := 0.0

	for i := range spectrum {
		numerator += sc.freqBins[i] * spectrum[i]
		denominator += spectrum[i]
	}

	if denominator == 0 {
		return math.NaN()
	}

	return numerator / denominator
}

// ComputeFrames processes multiple frames efficiently
func (sc *SpectralCentroid) ComputeFrames(spectrogram [][]float64) []float64 {
	if len(spectrogram) == 0 {
		return []float64{}
	}

	centroids := make([]float64, len(spectrogram))

	for t, spectrum := range spectrogram {
		centroids[t] = sc.Compute(spectrum)
	}

	return centroids
}

// initializeFreqBins pre-calculates frequency bins
func (sc *SpectralCentroid) initializeFreqBins(numBins int) {
	sc.freqBins = make([]float64, numBins)
	for i := range numBins {
		sc.freqBins[i] = float64(i) * float64(sc.sampleRate) / float64((numBins-1)*2)
	}
	sc.initialized = true
}

// SpectralContrast computes spectral contrast features, the difference
// between peaks and valleys within octave-spaced frequency bands.
type SpectralContrast struct {
	sampleRate  int
	numBands    int
	bandEdges   []int
	numBins     int
	initialized bool
}

// NewSpectralContrast creates a new spectral contrast calculator
func NewSpectralContrast(sampleRate int, numBands int) *SpectralContrast {
	if numBands <= 0 {
		numBands = 6
	}
	return &SpectralContrast{
		sampleRate: sampleRate,
		numBands:   numBands,
	}
}

// Compute calculates per-band contrast in dB for one magnitude spectrum.
func (sc *SpectralContrast) Compute(magnitudeSpectrum []float64) []float64 {
	if len(magnitudeSpectrum) == 0 {
		return []float64{}
	}

	if !sc.initialized || sc.numBins != len(magnitudeSpectrum) {
		sc.initializeBands(len(magnitudeSpectrum))
	}

	contrast := make([]float64, sc.numBands)

	for band := range sc.numBands {
		startBin := sc.bandEdges[band]
		endBin := min(sc.bandEdges[band+1], len(magnitudeSpectrum))

		if startBin >= endBin {
			contrast[band] = 0.0
			continue
		}

		contrast[band] = sc.calculateBandContrast(magnitudeSpectrum[startBin:endBin])
	}

	return contrast
}

// ComputeFrames processes multiple frames efficiently
func (sc *SpectralContrast) ComputeFrames(spectrogram [][]float64) [][]float64 {
	if len(spectrogram) == 0 {
		return [][]float64{}
	}

	contrasts := make([][]float64, len(spectrogram))

	for t, magnitudeSpectrum := range spectrogram {
		contrasts[t] = sc.Compute(magnitudeSpectrum)
	}

	return contrasts
}

// initializeBands builds octave-spaced band edges starting at 200 Hz.
func (sc *SpectralContrast) initializeBands(numBins int) {
	sc.bandEdges = make([]int, sc.numBands+1)
	nyquist := float64(sc.sampleRate) / 2.0
	binWidth := nyquist / float64(numBins-1)

	freq := 200.0
	sc.bandEdges[0] = 0
	for band := 1; band <= sc.numBands; band++ {
		edge := int(freq / binWidth)
		if edge <= sc.bandEdges[band-1] {
			edge = sc.bandEdges[band-1] + 1
		}
		edge = min(edge, numBins)
		sc.bandEdges[band] = edge
		freq *= 2.0
	}
	sc.bandEdges[sc.numBands] = numBins

	sc.numBins = numBins
	sc.initialized = true
}

// calculateBandContrast calculates peak-to-valley contrast for one band
func (sc *SpectralContrast) calculateBandContrast(bandSpectrum []float64) float64 {
	if len(bandSpectrum) == 0 {
		return 0.0
	}

	// Convert to power and sort
	sortedPower := make([]float64, len(bandSpectrum))
	for i, mag := range bandSpectrum {
		sortedPower[i] = mag * mag
	}
	sort.Float64s(sortedPower)

	// Bottom 20% for valleys, top 20% for peaks
	count := max(int(0.2*float64(len(sortedPower))), 1)

	valleyEnergy := 0.0
	for i := range count {
		valleyEnergy += sortedPower[i]
	}
	valleyEnergy /= float64(count)

	peakEnergy := 0.0
	for i := len(sortedPower) - count; i < len(sortedPower); i++ {
		peakEnergy += sortedPower[i]
	}
	peakEnergy /= float64(count)

	if valleyEnergy <= 0 {
		valleyEnergy = 1e-10
	}
	if peakEnergy <= 0 {
		return 0.0
	}

	return 10.0 * math.Log10(peakEnergy/valleyEnergy)
}

// ZeroCrossingRate calculates zero crossing rate over analysis frames.
// High ZCR indicates noisy or unvoiced content, low ZCR indicates tonal
// content.
type ZeroCrossingRate struct {
	frameSize int
	hopSize   int
}

// NewZeroCrossingRate creates a ZCR calculator with the given frame layout.
func NewZeroCrossingRate(frameSize, hopSize int) *ZeroCrossingRate {
	if frameSize <= 0 {
		frameSize = 2048
	}
	if hopSize <= 0 {
		hopSize = frameSize / 2
	}
	return &ZeroCrossingRate{
		frameSize: frameSize,
		hopSize:   hopSize,
	}
}

// Compute calculates normalized ZCR (0-1) for a single frame.
func (zcr *ZeroCrossingRate) Compute(frame []float64) float64 {
	if len(frame) < 2 {
		return 0.0
	}

	crossings := 0
	for i := 1; i < len(frame); i++ {
		if (frame[i-1] >= 0 && frame[i] < 0) || (frame[i-1] < 0 && frame[i] >= 0) {
			crossings++
		}
	}

	return float64(crossings) / float64(len(frame)-1)
}

// ComputeFrames calculates normalized ZCR for overlapping frames of a signal.
// Signals shorter than one frame are treated as a single frame.
func (zcr *ZeroCrossingRate) ComputeFrames(signal []float64) []float64 {
	if len(signal) < zcr.frameSize {
		if len(signal) < 2 {
			return []float64{}
		}
		return []float64{zcr.Compute(signal)}
	}

	numFrames := (len(signal)-zcr.frameSize)/zcr.hopSize + 1
	zcrValues := make([]float64, numFrames)

	for i := range numFrames {
		startIdx := i * zcr.hopSize
		endIdx := startIdx + zcr.frameSize

		if endIdx > len(signal) {
			break
		}

		zcrValues[i] = zcr.Compute(signal[startIdx:endIdx])
	}

	return zcrValues
}
