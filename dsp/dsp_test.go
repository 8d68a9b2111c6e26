package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sineWave(freq float64, sampleRate int, duration float64) []float64 {
	n := int(float64(sampleRate) * duration)
	signal := make([]float64, n)
	for i := range signal {
		signal[i] = math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate))
	}
	return signal
}

func TestSTFTSinePeak(t *testing.T) {
	sampleRate := 44100
	signal := sineWave(1000, sampleRate, 1.0)

	window := NewHann(2048, false)
	spec, err := NewSTFT().Compute(signal, 2048, 512, sampleRate, window)
	require.NoError(t, err)
	require.Greater(t, spec.TimeFrames, 0)
	require.Equal(t, 1025, spec.FreqBins)

	// The dominant bin of a middle frame should sit at 1 kHz
	frame := spec.Magnitude[spec.TimeFrames/2]
	peakBin := 0
	for i, mag := range frame {
		if mag > frame[peakBin] {
			peakBin = i
		}
	}
	peakFreq := float64(peakBin) * spec.FreqResolution
	assert.InDelta(t, 1000.0, peakFreq, spec.FreqResolution*1.5)
}

func TestSTFTShortSignalPads(t *testing.T) {
	signal := sineWave(440, 44100, 0.01) // 441 samples, shorter than one window
	spec, err := NewSTFT().Compute(signal, 2048, 512, 44100, NewHann(2048, false))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, spec.TimeFrames, 1)
}

func TestMelSpectrogramShape(t *testing.T) {
	sampleRate := 22050
	signal := sineWave(440, sampleRate, 0.5)
	spec, err := NewSTFT().Compute(signal, 1024, 256, sampleRate, NewHann(1024, false))
	require.NoError(t, err)

	mel := NewMelScale().ComputeMelSpectrogram(spec.Magnitude, 26, sampleRate)
	require.Len(t, mel, spec.TimeFrames)
	assert.Len(t, mel[0], 26)
}

func TestMFCCDimensions(t *testing.T) {
	sampleRate := 22050
	signal := sineWave(440, sampleRate, 0.5)
	spec, err := NewSTFT().Compute(signal, 1024, 256, sampleRate, NewHann(1024, false))
	require.NoError(t, err)
	mel := NewMelScale().ComputeMelSpectrogram(spec.Magnitude, 26, sampleRate)

	frames, err := NewMFCC(13).ComputeFrames(mel)
	require.NoError(t, err)
	require.Len(t, frames, len(mel))
	assert.Len(t, frames[0], 13)
}

func TestPitchDetectorSine(t *testing.T) {
	signal := sineWave(440, 44100, 1.0)
	pitch, ok := NewPitchDetector(44100).EstimatePitch(signal)
	require.True(t, ok)
	assert.InDelta(t, 440.0, pitch, 5.0)
}

func TestPitchDetectorSilence(t *testing.T) {
	silence := make([]float64, 44100)
	_, ok := NewPitchDetector(44100).EstimatePitch(silence)
	assert.False(t, ok)
}

func TestRMSLoudnessSilence(t *testing.T) {
	silence := make([]float64, 44100)
	_, ok := NewLoudnessMeter(44100).RMSLoudness(silence, 2048, 512)
	assert.False(t, ok)
}

func TestRMSLoudnessSine(t *testing.T) {
	signal := sineWave(440, 44100, 1.0)
	level, ok := NewLoudnessMeter(44100).RMSLoudness(signal, 2048, 512)
	require.True(t, ok)
	// Full-scale sine has an RMS of 1/sqrt(2)
	assert.InDelta(t, 0.707, level, 0.05)
}

func TestIntegratedLoudnessSilence(t *testing.T) {
	silence := make([]float64, 44100)
	_, ok := NewLoudnessMeter(44100).IntegratedLoudness(silence)
	assert.False(t, ok)
}

func TestIntegratedLoudnessLouderIsHigher(t *testing.T) {
	loud := sineWave(440, 44100, 2.0)
	quiet := make([]float64, len(loud))
	for i, v := range loud {
		quiet[i] = v * 0.1
	}
	meter := NewLoudnessMeter(44100)
	loudLUFS, ok := meter.IntegratedLoudness(loud)
	require.True(t, ok)
	quietLUFS, ok := meter.IntegratedLoudness(quiet)
	require.True(t, ok)
	assert.Greater(t, loudLUFS, quietLUFS)
	assert.InDelta(t, 20.0, loudLUFS-quietLUFS, 1.0)
}

func TestZeroCrossingRateOrdering(t *testing.T) {
	low := sineWave(100, 44100, 0.5)
	high := sineWave(4000, 44100, 0.5)
	zcr := NewZeroCrossingRate(2048, 512)

	lowMean, ok := FiniteMean(zcr.ComputeFrames(low))
	require.True(t, ok)
	highMean, ok := FiniteMean(zcr.ComputeFrames(high))
	require.True(t, ok)
	assert.Greater(t, highMean, lowMean)
}

func TestSpectralCentroidBrighterIsHigher(t *testing.T) {
	sampleRate := 44100
	low := sineWave(200, sampleRate, 0.5)
	high := sineWave(8000, sampleRate, 0.5)

	window := NewHann(2048, false)
	stft := NewSTFT()
	centroid := NewSpectralCentroid(sampleRate)

	lowSpec, err := stft.Compute(low, 2048, 512, sampleRate, window)
	require.NoError(t, err)
	highSpec, err := stft.Compute(high, 2048, 512, sampleRate, window)
	require.NoError(t, err)

	lowMean, ok := FiniteMean(centroid.ComputeFrames(lowSpec.Magnitude))
	require.True(t, ok)
	highMean, ok := FiniteMean(centroid.ComputeFrames(highSpec.Magnitude))
	require.True(t, ok)
	assert.Greater(t, highMean, lowMean)
}

func TestSpectralCentroidEmptySpectrumIsNaN(t *testing.T) {
	centroid := NewSpectralCentroid(44100).Compute(make([]float64, 1025))
	assert.True(t, math.IsNaN(centroid))
}

func TestTempoEstimatorClickTrack(t *testing.T) {
	// 120 BPM click track: impulse bursts every 0.5 s
	sampleRate := 44100
	signal := make([]float64, sampleRate*4)
	for beat := 0; beat < 8; beat++ {
		start := beat * sampleRate / 2
		for i := 0; i < 512 && start+i < len(signal); i++ {
			signal[start+i] = math.Sin(2*math.Pi*1000*float64(i)/float64(sampleRate)) *
				math.Exp(-float64(i)/128)
		}
	}

	bpm, ok := NewTempoEstimator().EstimateTempo(signal, sampleRate)
	require.True(t, ok)
	assert.InDelta(t, 120.0, bpm, 5.0)
}

func TestTempoEstimatorSilence(t *testing.T) {
	_, ok := NewTempoEstimator().EstimateTempo(make([]float64, 44100), 44100)
	assert.False(t, ok)
}

func TestAttackTimeDelayedOnset(t *testing.T) {
	// Half a second of silence, then a tone
	sampleRate := 44100
	signal := make([]float64, sampleRate)
	tone := sineWave(440, sampleRate, 0.5)
	copy(signal[sampleRate/2:], tone)

	attack, ok := NewOnsetDetector().AttackTime(signal, sampleRate)
	require.True(t, ok)
	assert.InDelta(t, 0.5, attack, 0.05)
}

func TestAttackTimeSilence(t *testing.T) {
	_, ok := NewOnsetDetector().AttackTime(make([]float64, 44100), 44100)
	assert.False(t, ok)
}

func TestFiniteMeanFiltersNaN(t *testing.T) {
	mean, ok := FiniteMean([]float64{1, math.NaN(), 3, math.Inf(1)})
	require.True(t, ok)
	assert.Equal(t, 2.0, mean)

	_, ok = FiniteMean([]float64{math.NaN()})
	assert.False(t, ok)
}

func TestFiniteMedian(t *testing.T) {
	median, ok := FiniteMedian([]float64{5, 1, math.NaN(), 3})
	require.True(t, ok)
	assert.Equal(t, 3.0, median)
}

func TestNewWindowUnknownName(t *testing.T) {
	_, err := NewWindow("kaiser", 1024)
	assert.Error(t, err)
}
