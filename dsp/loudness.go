package dsp

import (
	"math"
)

// LoudnessMeter computes level measurements over a whole signal.
type LoudnessMeter struct {
	sampleRate int
}

// NewLoudnessMeter creates a loudness meter for the given sample rate.
func NewLoudnessMeter(sampleRate int) *LoudnessMeter {
	return &LoudnessMeter{sampleRate: sampleRate}
}

// RMSLoudness returns the mean frame RMS of the signal. Silent or
// non-finite signals report ok=false rather than a degenerate value.
func (lm *LoudnessMeter) RMSLoudness(signal []float64, frameSize, hopSize int) (float64, bool) {
	env := NewEnvelope().ComputeRMS(signal, frameSize, hopSize)
	mean, ok := FiniteMean(env)
	if !ok || mean <= 0 {
		return 0, false
	}
	return mean, true
}

// IntegratedLoudness computes a gated integrated loudness in LUFS over the
// whole signal, after EBU R128: 400 ms blocks with 75% overlap, an absolute
// gate at -70 LUFS and a relative gate 10 LU below the ungated mean.
// K-weighting is omitted; sample material is compared against itself, so
// the relative ordering is what matters. ok=false means the signal was
// silent or too short to measure.
func (lm *LoudnessMeter) IntegratedLoudness(signal []float64) (float64, bool) {
	if lm.sampleRate <= 0 || len(signal) == 0 {
		return 0, false
	}

	blockSize := int(0.4 * float64(lm.sampleRate)) // 400 ms
	hopSize := blockSize / 4                       // 75% overlap
	if hopSize < 1 {
		return 0, false
	}
	if len(signal) < blockSize {
		blockSize = len(signal)
	}

	// Per-block loudness
	numBlocks := (len(signal)-blockSize)/hopSize + 1
	blockLoudness := make([]float64, 0, numBlocks)
	blockPower := make([]float64, 0, numBlocks)
	for i := range numBlocks {
		start := i * hopSize
		block := signal[start : start+blockSize]

		power := 0.0
		finite := 0
		for _, v := range block {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			power += v * v
			finite++
		}
		if finite == 0 {
			continue
		}
		power /= float64(finite)
		if power <= 0 {
			continue
		}

		loudness := -0.691 + 10.0*math.Log10(power)
		blockLoudness = append(blockLoudness, loudness)
		blockPower = append(blockPower, power)
	}

	// Absolute gate at -70 LUFS
	gatedPower := make([]float64, 0, len(blockPower))
	for i, l := range blockLoudness {
		if l >= -70.0 {
			gatedPower = append(gatedPower, blockPower[i])
		}
	}
	if len(gatedPower) == 0 {
		return 0, false
	}

	// Relative gate 10 LU below the mean of absolutely-gated blocks
	meanPower := 0.0
	for _, p := range gatedPower {
		meanPower += p
	}
	meanPower /= float64(len(gatedPower))
	relGate := -0.691 + 10.0*math.Log10(meanPower) - 10.0

	finalPower := 0.0
	finalCount := 0
	for _, p := range gatedPower {
		if -0.691+10.0*math.Log10(p) >= relGate {
			finalPower += p
			finalCount++
		}
	}
	if finalCount == 0 {
		return 0, false
	}

	lufs := -0.691 + 10.0*math.Log10(finalPower/float64(finalCount))
	if math.IsNaN(lufs) || math.IsInf(lufs, 0) {
		return 0, false
	}
	return lufs, true
}
