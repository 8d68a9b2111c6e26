package audio

import (
	"errors"
	"time"
)

// ErrUnsupportedFormat is returned when no available decoding backend can
// handle the file.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// AudioData represents decoded audio data. PCM is always mono; multi-channel
// sources are downmixed by averaging during decode.
type AudioData struct {
	PCM        []float64     `json:"-"`
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"` // channel count of the source, before downmix
	BitDepth   int           `json:"bit_depth,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Info describes container-level properties of an audio file, obtained
// without decoding the sample data.
type Info struct {
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"`
	BitDepth   int           `json:"bit_depth"` // 0 when the container does not declare one
	Codec      string        `json:"codec,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
}
