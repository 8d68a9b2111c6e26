package audio

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"time"

	"github.com/RyanBlaney/sonido-curator/logging"
)

// FFmpegDecoder decodes non-WAV formats by shelling out to ffmpeg/ffprobe,
// the same backend the rest of the sample library tooling relies on.
type FFmpegDecoder struct {
	ffmpegPath  string
	ffprobePath string
	timeout     time.Duration
}

// NewFFmpegDecoder creates a decoder using the given binary paths.
func NewFFmpegDecoder(ffmpegPath, ffprobePath string, timeout time.Duration) *FFmpegDecoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &FFmpegDecoder{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		timeout:     timeout,
	}
}

// ffprobeOutput mirrors the JSON emitted by `ffprobe -print_format json`.
type ffprobeOutput struct {
	Streams []struct {
		CodecName        string `json:"codec_name"`
		SampleRate       string `json:"sample_rate"`
		Channels         int    `json:"channels"`
		SampleFmt        string `json:"sample_fmt"`
		BitsPerSample    int    `json:"bits_per_sample"`
		BitsPerRawSample string `json:"bits_per_raw_sample"`
		Duration         string `json:"duration"`
	} `json:"streams"`
}

// Probe returns container-level info for the file using ffprobe.
func (d *FFmpegDecoder) Probe(ctx context.Context, path string) (*Info, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-select_streams", "a:0",
		path,
	}

	cmd := exec.CommandContext(ctx, d.ffprobePath, args...)
	output, err := cmd.Output()
	if err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("ffprobe failed: %w, stderr: %s", err, string(exitError.Stderr))
		}
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parseFFprobeOutput(output)
}

func parseFFprobeOutput(jsonData []byte) (*Info, error) {
	var probe ffprobeOutput
	if err := json.Unmarshal(jsonData, &probe); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if len(probe.Streams) == 0 {
		return nil, fmt.Errorf("%w: no audio stream found", ErrUnsupportedFormat)
	}

	stream := probe.Streams[0]
	info := &Info{
		Channels: stream.Channels,
		Codec:    stream.CodecName,
	}

	if sr, err := strconv.Atoi(stream.SampleRate); err == nil {
		info.SampleRate = sr
	}
	if secs, err := strconv.ParseFloat(stream.Duration, 64); err == nil {
		info.Duration = time.Duration(secs * float64(time.Second))
	}

	// Prefer the raw sample width when the container declares it; fall back
	// to the decoded sample format.
	if bits, err := strconv.Atoi(stream.BitsPerRawSample); err == nil && bits > 0 {
		info.BitDepth = bits
	} else if stream.BitsPerSample > 0 {
		info.BitDepth = stream.BitsPerSample
	} else {
		info.BitDepth = bitDepthFromSampleFmt(stream.SampleFmt)
	}

	return info, nil
}

// bitDepthFromSampleFmt maps ffmpeg sample format names to sample widths.
// Lossy codecs decode to float internally and report 32.
func bitDepthFromSampleFmt(sampleFmt string) int {
	switch sampleFmt {
	case "u8", "u8p":
		return 8
	case "s16", "s16p":
		return 16
	case "s32", "s32p":
		return 32
	case "flt", "fltp":
		return 32
	case "dbl", "dblp":
		return 64
	default:
		return 0
	}
}

// Decode decodes up to maxDuration of the file to mono float64 PCM at the
// source sample rate.
func (d *FFmpegDecoder) Decode(ctx context.Context, path string, maxDuration time.Duration) (*AudioData, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "ffmpeg_decoder",
		"path":      path,
	})

	info, err := d.Probe(ctx, path)
	if err != nil {
		return nil, err
	}
	if info.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate unknown", ErrUnsupportedFormat)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	args := []string{
		"-v", "quiet",
		"-i", path,
	}
	if maxDuration > 0 {
		args = append(args, "-t", fmt.Sprintf("%.3f", maxDuration.Seconds()))
	}
	args = append(args,
		"-f", "f64le",
		"-acodec", "pcm_f64le",
		"-ac", "1",
		"pipe:1",
	)

	cmd := exec.CommandContext(ctx, d.ffmpegPath, args...)
	output, err := cmd.Output()
	if err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("ffmpeg decode failed: %w, stderr: %s", err, string(exitError.Stderr))
		}
		return nil, fmt.Errorf("ffmpeg decode failed: %w", err)
	}

	pcm := bytesToFloat64(output)
	duration := time.Duration(float64(len(pcm)) / float64(info.SampleRate) * float64(time.Second))

	logger.Debug("Decoded audio via ffmpeg", logging.Fields{
		"sample_rate": info.SampleRate,
		"codec":       info.Codec,
		"samples":     len(pcm),
	})

	return &AudioData{
		PCM:        pcm,
		SampleRate: info.SampleRate,
		Channels:   info.Channels,
		BitDepth:   info.BitDepth,
		Duration:   duration,
	}, nil
}

// bytesToFloat64 converts little-endian f64 PCM bytes to samples.
func bytesToFloat64(data []byte) []float64 {
	samples := make([]float64, len(data)/8)
	for i := range samples {
		bits := binary.LittleEndian.Uint64(data[i*8 : i*8+8])
		samples[i] = math.Float64frombits(bits)
	}
	return samples
}
