package dsp

// PitchDetector estimates fundamental frequency using the YIN algorithm
// (cumulative mean normalized difference function).
type PitchDetector struct {
	sampleRate int
	minFreq    float64
	maxFreq    float64
	threshold  float64
	frameSize  int
	hopSize    int
}

// NewPitchDetector creates a pitch detector covering roughly C2..C7,
// the useful range for pitched sample material.
func NewPitchDetector(sampleRate int) *PitchDetector {
	return &PitchDetector{
		sampleRate: sampleRate,
		minFreq:    65.0,
		maxFreq:    2093.0,
		threshold:  0.15,
		frameSize:  2048,
		hopSize:    1024,
	}
}

// DetectFrame runs YIN on a single frame. It returns the detected
// frequency and a confidence in [0, 1]; voiced=false means no confident
// estimate was found.
func (pd *PitchDetector) DetectFrame(frame []float64) (freq, confidence float64, voiced bool) {
	n := len(frame)
	halfN := n / 2
	if halfN < 2 {
		return 0, 0, false
	}

	// Difference function
	diff := make([]float64, halfN)
	for tau := range halfN {
		sum := 0.0
		for j := range halfN {
			delta := frame[j] - frame[j+tau]
			sum += delta * delta
		}
		diff[tau] = sum
	}

	// Cumulative mean normalized difference function
	cmndf := make([]float64, halfN)
	cmndf[0] = 1.0

	runningSum := 0.0
	for tau := 1; tau < halfN; tau++ {
		runningSum += diff[tau]
		if runningSum == 0 {
			cmndf[tau] = 1.0
			continue
		}
		cmndf[tau] = diff[tau] / (runningSum / float64(tau))
	}

	// First local minimum below threshold
	minTau := -1
	for tau := 1; tau < halfN-1; tau++ {
		if cmndf[tau] < pd.threshold && cmndf[tau] < cmndf[tau+1] {
			minTau = tau
			break
		}
	}

	if minTau <= 0 {
		return 0, 0, false
	}

	// Parabolic interpolation for sub-sample period accuracy
	period := pd.parabolicInterpolation(cmndf, minTau)
	if period <= 0 {
		return 0, 0, false
	}
	frequency := float64(pd.sampleRate) / period
	conf := 1.0 - cmndf[minTau]

	if frequency < pd.minFreq || frequency > pd.maxFreq {
		return 0, 0, false
	}

	return frequency, conf, true
}

// EstimatePitch estimates overall pitch as the median of voiced frame
// estimates. ok=false means the signal was unvoiced throughout.
func (pd *PitchDetector) EstimatePitch(signal []float64) (float64, bool) {
	if len(signal) < pd.frameSize {
		freq, _, voiced := pd.DetectFrame(signal)
		return freq, voiced
	}

	var voicedPitches []float64

	numFrames := (len(signal)-pd.frameSize)/pd.hopSize + 1
	for i := range numFrames {
		start := i * pd.hopSize
		frame := signal[start : start+pd.frameSize]

		freq, _, voiced := pd.DetectFrame(frame)
		if voiced {
			voicedPitches = append(voicedPitches, freq)
		}
	}

	return FiniteMedian(voicedPitches)
}

// parabolicInterpolation refines a minimum position using its neighbors
func (pd *PitchDetector) parabolicInterpolation(data []float64, peakIdx int) float64 {
	if peakIdx <= 0 || peakIdx >= len(data)-1 {
		return float64(peakIdx)
	}

	alpha := data[peakIdx-1]
	beta := data[peakIdx]
	gamma := data[peakIdx+1]

	denom := alpha - 2*beta + gamma
	if denom == 0 {
		return float64(peakIdx)
	}

	offset := 0.5 * (alpha - gamma) / denom
	return float64(peakIdx) + offset
}
