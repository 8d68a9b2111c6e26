package features

import (
	"fmt"

	"github.com/RyanBlaney/sonido-curator/audio"
	"github.com/RyanBlaney/sonido-curator/config"
	"github.com/RyanBlaney/sonido-curator/dsp"
	"github.com/RyanBlaney/sonido-curator/spectro"
)

// stepInput declares what a step consumes. The pipeline uses this to
// decide whether a spectrogram cache lookup (and which transform kind)
// is needed for a run.
type stepInput int

const (
	inputRaw stepInput = iota // decoded PCM only
	inputMagnitude
	inputMel
	inputMetadata // container metadata, independent of the spectrogram path
)

// stepContext carries per-run inputs into steps. entry is nil when
// decoding failed; info is nil when metadata probing failed.
type stepContext struct {
	entry  *spectro.Entry
	info   *audio.Info
	record Record
}

// step is one extractor. Steps run in declared order and are isolated:
// a failing step leaves its keys nil and never aborts the ones after it.
type step struct {
	name    string
	keys    []Key
	needs   stepInput
	enabled func(caps audio.Capabilities) bool // nil = always enabled
	run     func(sc *stepContext) error
}

// defaultSteps builds the fixed extractor list. Several steps reuse the
// spectrogram computed for the run, which is why order is fixed and
// extraction within one file is sequential.
func defaultSteps(cfg *config.Config) []step {
	spectralEnabled := func(caps audio.Capabilities) bool { return caps.Spectral }

	steps := []step{
		{
			name:  "tempo",
			keys:  []Key{KeyTempo},
			needs: inputRaw,
			run: func(sc *stepContext) error {
				bpm, ok := dsp.NewTempoEstimator().EstimateTempo(sc.entry.PCM, sc.entry.SampleRate)
				if !ok {
					return nil // no confident estimate, not an error
				}
				sc.record.Set(KeyTempo, bpm)
				return nil
			},
		},
		{
			name:    "brightness",
			keys:    []Key{KeyBrightness},
			needs:   inputMagnitude,
			enabled: spectralEnabled,
			run: func(sc *stepContext) error {
				centroids := dsp.NewSpectralCentroid(sc.entry.SampleRate).ComputeFrames(sc.entry.Magnitude)
				mean, ok := dsp.FiniteMean(centroids)
				if !ok {
					return nil
				}
				sc.record.Set(KeyBrightness, mean)
				return nil
			},
		},
		{
			name:  "loudness_rms",
			keys:  []Key{KeyLoudnessRMS},
			needs: inputRaw,
			run: func(sc *stepContext) error {
				rms, ok := dsp.NewLoudnessMeter(sc.entry.SampleRate).
					RMSLoudness(sc.entry.PCM, cfg.NFFT, cfg.HopLength)
				if !ok {
					return nil // silent input has no meaningful level
				}
				sc.record.Set(KeyLoudnessRMS, rms)
				return nil
			},
		},
		{
			name:  "zcr",
			keys:  []Key{KeyZCRMean},
			needs: inputRaw,
			run: func(sc *stepContext) error {
				values := dsp.NewZeroCrossingRate(cfg.NFFT, cfg.HopLength).ComputeFrames(sc.entry.PCM)
				mean, ok := dsp.FiniteMean(values)
				if !ok {
					return nil
				}
				sc.record.Set(KeyZCRMean, mean)
				return nil
			},
		},
		{
			name:    "spectral_contrast",
			keys:    []Key{KeySpectralContrast},
			needs:   inputMagnitude,
			enabled: spectralEnabled,
			run: func(sc *stepContext) error {
				frames := dsp.NewSpectralContrast(sc.entry.SampleRate, 6).ComputeFrames(sc.entry.Magnitude)
				var all []float64
				for _, frame := range frames {
					all = append(all, frame...)
				}
				mean, ok := dsp.FiniteMean(all)
				if !ok {
					return nil
				}
				sc.record.Set(KeySpectralContrast, mean)
				return nil
			},
		},
		{
			name:    "mfcc",
			keys:    mfccKeys(cfg.NumMFCC),
			needs:   inputMel,
			enabled: spectralEnabled,
			run: func(sc *stepContext) error {
				frames, err := dsp.NewMFCC(cfg.NumMFCC).ComputeFrames(sc.entry.Mel)
				if err != nil {
					return err
				}
				// Mean per coefficient across frames
				for c := range cfg.NumMFCC {
					column := make([]float64, len(frames))
					for t, frame := range frames {
						column[t] = frame[c]
					}
					if mean, ok := dsp.FiniteMean(column); ok {
						sc.record.Set(MFCCKey(c+1), mean)
					}
				}
				return nil
			},
		},
		{
			name:    "bit_depth",
			keys:    []Key{KeyBitDepth},
			needs:   inputMetadata,
			enabled: func(caps audio.Capabilities) bool { return caps.Metadata },
			run: func(sc *stepContext) error {
				if sc.info == nil || sc.info.BitDepth <= 0 {
					return nil // container does not declare a sample width
				}
				sc.record.Set(KeyBitDepth, float64(sc.info.BitDepth))
				return nil
			},
		},
		{
			name:    "loudness_lufs",
			keys:    []Key{KeyLoudnessLUFS},
			needs:   inputRaw,
			enabled: func(caps audio.Capabilities) bool { return caps.IntegratedLoudness },
			run: func(sc *stepContext) error {
				lufs, ok := dsp.NewLoudnessMeter(sc.entry.SampleRate).IntegratedLoudness(sc.entry.PCM)
				if !ok {
					return nil
				}
				sc.record.Set(KeyLoudnessLUFS, lufs)
				return nil
			},
		},
		{
			name:  "pitch",
			keys:  []Key{KeyPitchHz},
			needs: inputRaw,
			run: func(sc *stepContext) error {
				pitch, ok := dsp.NewPitchDetector(sc.entry.SampleRate).EstimatePitch(sc.entry.PCM)
				if !ok {
					return nil // unvoiced throughout
				}
				sc.record.Set(KeyPitchHz, pitch)
				return nil
			},
		},
		{
			name:  "attack_time",
			keys:  []Key{KeyAttackTime},
			needs: inputRaw,
			run: func(sc *stepContext) error {
				attack, ok := dsp.NewOnsetDetector().AttackTime(sc.entry.PCM, sc.entry.SampleRate)
				if !ok {
					return nil
				}
				sc.record.Set(KeyAttackTime, attack)
				return nil
			},
		},
	}

	return steps
}

func mfccKeys(numMFCC int) []Key {
	keys := make([]Key, numMFCC)
	for i := range numMFCC {
		keys[i] = MFCCKey(i + 1)
	}
	return keys
}

// validate is a build-time sanity check that step keys cover AllKeys.
func validateSteps(steps []step, numMFCC int) error {
	covered := make(map[Key]bool)
	for _, s := range steps {
		for _, k := range s.keys {
			covered[k] = true
		}
	}
	for _, k := range AllKeys(numMFCC) {
		if !covered[k] {
			return fmt.Errorf("feature key %q has no extractor step", k)
		}
	}
	return nil
}
