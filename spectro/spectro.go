package spectro

import (
	"time"

	"github.com/RyanBlaney/sonido-curator/scan"
)

// DefaultMelFilters is the mel filter bank size used when a key does not
// specify one.
const DefaultMelFilters = 26

// TransformKind selects which time-frequency representation a cache key
// refers to.
type TransformKind int

const (
	// KindSTFT is the plain STFT magnitude spectrogram.
	KindSTFT TransformKind = iota
	// KindMel additionally carries a mel-scale power spectrogram computed
	// from the magnitudes.
	KindMel
)

func (k TransformKind) String() string {
	switch k {
	case KindSTFT:
		return "stft"
	case KindMel:
		return "mel"
	default:
		return "unknown"
	}
}

// Params are the transform parameters that, together with a file identity,
// key a cache entry.
type Params struct {
	Kind        TransformKind `json:"kind"`
	NFFT        int           `json:"n_fft"`
	HopLength   int           `json:"hop_length"`
	Window      string        `json:"window"`
	NumMel      int           `json:"num_mel"` // ignored for KindSTFT
	MaxDuration time.Duration `json:"max_duration"`
}

// Key identifies one cached spectrogram computation.
type Key struct {
	Identity scan.FileIdentity
	Params   Params
}

// Entry is a computed spectrogram plus the decoded audio it came from.
// The raw samples ride along because several extractors consume them and
// decoding is the expensive step. Entries are owned by the cache;
// consumers borrow them for one extraction pass and must not retain them,
// since the cache may evict and recompute at any time.
type Entry struct {
	PCM        []float64
	SampleRate int
	BitDepth   int
	Magnitude  [][]float64
	Mel        [][]float64 // nil unless the key asked for KindMel
}
