package dsp

import (
	"math"
)

// Envelope extracts amplitude envelopes from raw signals
type Envelope struct{}

// NewEnvelope creates a new envelope extractor
func NewEnvelope() *Envelope {
	return &Envelope{}
}

// ComputeRMS calculates the RMS envelope over overlapping frames.
// Signals shorter than one frame are treated as a single frame.
func (e *Envelope) ComputeRMS(signal []float64, frameSize, hopSize int) []float64 {
	if frameSize <= 0 || hopSize <= 0 {
		return []float64{}
	}
	if len(signal) == 0 {
		return []float64{}
	}
	if len(signal) < frameSize {
		return []float64{RMS(signal)}
	}

	numFrames := (len(signal)-frameSize)/hopSize + 1
	envelope := make([]float64, numFrames)

	for i := range numFrames {
		startIdx := i * hopSize
		endIdx := startIdx + frameSize

		if endIdx > len(signal) {
			break
		}

		envelope[i] = RMS(signal[startIdx:endIdx])
	}

	return envelope
}

// OnsetDetector finds note onsets from energy envelope rises.
type OnsetDetector struct {
	envelope  *Envelope
	frameSize int
	hopSize   int
}

// NewOnsetDetector creates an onset detector with the default frame layout.
func NewOnsetDetector() *OnsetDetector {
	return &OnsetDetector{
		envelope:  NewEnvelope(),
		frameSize: 512,
		hopSize:   256,
	}
}

// DetectOnsets returns sample positions of detected onsets, found as
// local peaks of the positive energy derivative above an adaptive
// threshold.
func (od *OnsetDetector) DetectOnsets(signal []float64, sampleRate int) []int {
	if len(signal) == 0 || sampleRate <= 0 {
		return nil
	}

	envelope := od.envelope.ComputeRMS(signal, od.frameSize, od.hopSize)
	if len(envelope) < 3 {
		// Degenerate short signal; a single frame with energy is one onset
		if len(envelope) > 0 && envelope[0] > 1e-6 {
			return []int{0}
		}
		return nil
	}

	// Positive first derivative of energy
	flux := make([]float64, len(envelope)-1)
	for i := range flux {
		d := envelope[i+1] - envelope[i]
		if d > 0 {
			flux[i] = d
		}
	}

	threshold := od.adaptiveThreshold(flux)

	// Minimum 50 ms between onsets
	minGap := int(0.05 * float64(sampleRate) / float64(od.hopSize))
	if minGap < 1 {
		minGap = 1
	}

	var onsets []int
	lastOnset := -minGap
	for i := 1; i < len(flux)-1; i++ {
		if flux[i] > threshold && flux[i] >= flux[i-1] && flux[i] >= flux[i+1] && i-lastOnset >= minGap {
			onsets = append(onsets, i*od.hopSize)
			lastOnset = i
		}
	}

	// An attack at the very start has no preceding frame to rise from
	if len(onsets) == 0 && envelope[0] > threshold {
		onsets = []int{0}
	}

	return onsets
}

// adaptiveThreshold derives a detection threshold from the flux statistics
func (od *OnsetDetector) adaptiveThreshold(flux []float64) float64 {
	if len(flux) == 0 {
		return 0
	}

	mean, ok := FiniteMean(flux)
	if !ok {
		return math.Inf(1)
	}

	maxFlux := 0.0
	for _, f := range flux {
		if f > maxFlux {
			maxFlux = f
		}
	}
	if maxFlux <= 0 {
		return math.Inf(1) // silent signal, nothing can cross
	}

	return mean + 0.1*maxFlux
}

// AttackTime returns the time in seconds of the first detected onset.
// ok=false means no onset was found (silence or pure sustain).
func (od *OnsetDetector) AttackTime(signal []float64, sampleRate int) (float64, bool) {
	onsets := od.DetectOnsets(signal, sampleRate)
	if len(onsets) == 0 {
		return 0, false
	}
	return float64(onsets[0]) / float64(sampleRate), true
}

// TempoEstimator estimates tempo from inter-onset intervals.
type TempoEstimator struct {
	onsetDetector *OnsetDetector
}

// NewTempoEstimator creates a new tempo estimator
func NewTempoEstimator() *TempoEstimator {
	return &TempoEstimator{
		onsetDetector: NewOnsetDetector(),
	}
}

// EstimateTempo estimates tempo in BPM. ok=false means there were not
// enough onsets for a confident estimate.
func (te *TempoEstimator) EstimateTempo(signal []float64, sampleRate int) (float64, bool) {
	if len(signal) == 0 || sampleRate <= 0 {
		return 0, false
	}

	onsets := te.onsetDetector.DetectOnsets(signal, sampleRate)
	if len(onsets) < 2 {
		return 0, false
	}

	// Inter-onset intervals in seconds
	intervals := make([]float64, len(onsets)-1)
	for i := range intervals {
		intervals[i] = float64(onsets[i+1]-onsets[i]) / float64(sampleRate)
	}

	return te.findTempoFromIntervals(intervals)
}

// findTempoFromIntervals votes intervals into common tempo bins
func (te *TempoEstimator) findTempoFromIntervals(intervals []float64) (float64, bool) {
	tempoRange := []float64{60, 70, 80, 90, 100, 110, 120, 130, 140, 150, 160, 170, 180, 200}
	tempoCounts := make([]int, len(tempoRange))

	for _, interval := range intervals {
		// Valid beat interval range (30-300 BPM)
		if interval <= 0.2 || interval >= 2.0 {
			continue
		}
		tempo := 60.0 / interval

		bestIdx := 0
		bestDiff := math.Abs(tempo - tempoRange[0])
		for i, refTempo := range tempoRange {
			diff := math.Abs(tempo - refTempo)
			if diff < bestDiff {
				bestDiff = diff
				bestIdx = i
			}
		}

		if bestDiff < 10.0 {
			tempoCounts[bestIdx]++
		}
	}

	maxCount := 0
	bestTempo := 0.0
	for i, count := range tempoCounts {
		if count > maxCount {
			maxCount = count
			bestTempo = tempoRange[i]
		}
	}

	if maxCount == 0 {
		return 0, false
	}
	return bestTempo, true
}
