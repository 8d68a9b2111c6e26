package audio

import (
	"os/exec"

	"github.com/RyanBlaney/sonido-curator/logging"
)

// Capabilities records which optional analysis backends are available.
// It is resolved once at process start and passed into constructors; the
// pipeline removes features whose backend is missing instead of failing
// them per call.
type Capabilities struct {
	// FFmpeg reports whether the ffmpeg/ffprobe binaries were found, which
	// enables decoding of non-WAV formats and container metadata probing.
	FFmpeg bool `json:"ffmpeg"`

	// Spectral reports whether the spectral feature set (brightness,
	// spectral contrast, MFCCs) is enabled.
	Spectral bool `json:"spectral"`

	// IntegratedLoudness reports whether LUFS measurement is enabled.
	IntegratedLoudness bool `json:"integrated_loudness"`

	// Metadata reports whether bit-depth detection from container metadata
	// is available. WAV metadata is always readable natively; other formats
	// need ffprobe.
	Metadata bool `json:"metadata"`
}

// DetectCapabilities probes the environment once and returns the resulting
// capability set.
func DetectCapabilities(ffmpegPath, ffprobePath string) Capabilities {
	logger := logging.WithFields(logging.Fields{
		"component": "capabilities",
	})

	caps := Capabilities{
		Spectral:           true,
		IntegratedLoudness: true,
		Metadata:           true,
	}

	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}

	_, ffmpegErr := exec.LookPath(ffmpegPath)
	_, ffprobeErr := exec.LookPath(ffprobePath)
	caps.FFmpeg = ffmpegErr == nil && ffprobeErr == nil

	if !caps.FFmpeg {
		logger.Warn("ffmpeg/ffprobe not found; only WAV files can be decoded", logging.Fields{
			"ffmpeg_path":  ffmpegPath,
			"ffprobe_path": ffprobePath,
		})
	}

	logger.Info("Resolved analysis capabilities", logging.Fields{
		"ffmpeg":              caps.FFmpeg,
		"spectral":            caps.Spectral,
		"integrated_loudness": caps.IntegratedLoudness,
		"metadata":            caps.Metadata,
	})

	return caps
}
