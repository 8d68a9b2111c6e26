package audio

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Decoder routes files to the native WAV parser or the ffmpeg backend,
// depending on extension and available capabilities.
type Decoder struct {
	caps   Capabilities
	ffmpeg *FFmpegDecoder
}

// NewDecoder creates a decoder. The ffmpeg backend is only consulted when
// the FFmpeg capability is present.
func NewDecoder(caps Capabilities, ffmpegPath, ffprobePath string, timeout time.Duration) *Decoder {
	d := &Decoder{caps: caps}
	if caps.FFmpeg {
		d.ffmpeg = NewFFmpegDecoder(ffmpegPath, ffprobePath, timeout)
	}
	return d
}

func isWAV(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".wav")
}

// Decode decodes up to maxDuration of the file to mono float64 PCM.
func (d *Decoder) Decode(ctx context.Context, path string, maxDuration time.Duration) (*AudioData, error) {
	if isWAV(path) {
		return DecodeWAV(path, maxDuration)
	}
	if d.ffmpeg == nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), ErrUnsupportedFormat)
	}
	return d.ffmpeg.Decode(ctx, path, maxDuration)
}

// Probe reads container metadata for the file without decoding samples.
func (d *Decoder) Probe(ctx context.Context, path string) (*Info, error) {
	if isWAV(path) {
		return ProbeWAV(path)
	}
	if d.ffmpeg == nil {
		return nil, fmt.Errorf("probe %s: %w", filepath.Base(path), ErrUnsupportedFormat)
	}
	return d.ffmpeg.Probe(ctx, path)
}
