package features

import "fmt"

// Key names one numeric audio descriptor. The set is fixed; the persisted
// cache and the UI both rely on these exact names.
type Key string

const (
	KeyTempo            Key = "bpm"
	KeyBrightness       Key = "brightness"
	KeyLoudnessRMS      Key = "loudness_rms"
	KeyZCRMean          Key = "zcr_mean"
	KeySpectralContrast Key = "spectral_contrast_mean"
	KeyBitDepth         Key = "bit_depth"
	KeyLoudnessLUFS     Key = "loudness_lufs"
	KeyPitchHz          Key = "pitch_hz"
	KeyAttackTime       Key = "attack_time"
)

// MFCCKey returns the key for the i-th mel-cepstral coefficient (1-based).
func MFCCKey(i int) Key {
	return Key(fmt.Sprintf("mfcc%d_mean", i))
}

// AllKeys returns every feature key for the given MFCC count, in the
// fixed extraction order.
func AllKeys(numMFCC int) []Key {
	keys := []Key{
		KeyTempo,
		KeyBrightness,
		KeyLoudnessRMS,
		KeyZCRMean,
		KeySpectralContrast,
	}
	for i := 1; i <= numMFCC; i++ {
		keys = append(keys, MFCCKey(i))
	}
	return append(keys,
		KeyBitDepth,
		KeyLoudnessLUFS,
		KeyPitchHz,
		KeyAttackTime,
	)
}

// Record maps feature keys to optional values. A nil value is a
// first-class outcome: the feature could not be computed for this file
// (unsupported format, extraction failure, or cancellation), which is
// different from the key being absent (capability unavailable).
type Record map[Key]*float64

// NewRecord creates a record with every given key present and nil.
func NewRecord(keys []Key) Record {
	r := make(Record, len(keys))
	for _, k := range keys {
		r[k] = nil
	}
	return r
}

// Set stores a value for key.
func (r Record) Set(key Key, value float64) {
	v := value
	r[key] = &v
}

// Value returns the value for key; ok=false means the value is nil or
// the key is absent.
func (r Record) Value(key Key) (float64, bool) {
	v, present := r[key]
	if !present || v == nil {
		return 0, false
	}
	return *v, true
}

// Status reports how an extraction run ended.
type Status int

const (
	// StatusComplete means every active extractor was attempted. Individual
	// features may still be nil.
	StatusComplete Status = iota
	// StatusCancelled means the run stopped at a cancellation checkpoint;
	// the record holds whatever was accumulated before that point and nil
	// for everything after.
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusComplete:
		return "complete"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}
