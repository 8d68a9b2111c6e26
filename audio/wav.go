package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/RyanBlaney/sonido-curator/logging"
)

// WAV format codes from the fmt chunk
const (
	wavFormatPCM        = 0x0001
	wavFormatIEEEFloat  = 0x0003
	wavFormatExtensible = 0xFFFE
)

type wavFormat struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

// DecodeWAV decodes a RIFF/WAVE file natively, without external binaries.
// At most maxDuration of audio is read from the start of the file; a zero
// maxDuration reads everything. Multi-channel audio is downmixed to mono
// and samples are normalized to [-1, 1].
func DecodeWAV(path string, maxDuration time.Duration) (*AudioData, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "wav_decoder",
		"path":      path,
	})

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	format, dataSize, err := readWAVHeader(f)
	if err != nil {
		return nil, err
	}

	bytesPerSample := int(format.BitsPerSample) / 8
	if bytesPerSample <= 0 {
		return nil, fmt.Errorf("invalid bits per sample: %d", format.BitsPerSample)
	}

	frameSize := bytesPerSample * int(format.Channels)
	totalFrames := int(dataSize) / frameSize

	maxFrames := totalFrames
	if maxDuration > 0 {
		limit := int(maxDuration.Seconds() * float64(format.SampleRate))
		if limit < maxFrames {
			maxFrames = limit
		}
	}

	raw := make([]byte, maxFrames*frameSize)
	n, err := io.ReadFull(f, raw)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("read wav data: %w", err)
	}
	frames := n / frameSize

	pcm := make([]float64, frames)
	channels := int(format.Channels)
	for i := range frames {
		sum := 0.0
		for ch := range channels {
			offset := (i*channels + ch) * bytesPerSample
			sum += decodeWAVSample(raw[offset:offset+bytesPerSample], format)
		}
		pcm[i] = sum / float64(channels)
	}

	duration := time.Duration(float64(frames) / float64(format.SampleRate) * float64(time.Second))

	logger.Debug("Decoded WAV file", logging.Fields{
		"sample_rate": format.SampleRate,
		"channels":    format.Channels,
		"bit_depth":   format.BitsPerSample,
		"frames":      frames,
	})

	return &AudioData{
		PCM:        pcm,
		SampleRate: int(format.SampleRate),
		Channels:   channels,
		BitDepth:   int(format.BitsPerSample),
		Duration:   duration,
	}, nil
}

// ProbeWAV reads container-level info from a RIFF/WAVE file without
// decoding sample data.
func ProbeWAV(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	format, dataSize, err := readWAVHeader(f)
	if err != nil {
		return nil, err
	}

	frameSize := int(format.BitsPerSample) / 8 * int(format.Channels)
	var duration time.Duration
	if frameSize > 0 && format.SampleRate > 0 {
		frames := int(dataSize) / frameSize
		duration = time.Duration(float64(frames) / float64(format.SampleRate) * float64(time.Second))
	}

	codec := "pcm"
	if resolveWAVFormat(format) == wavFormatIEEEFloat {
		codec = "pcm_float"
	}

	return &Info{
		SampleRate: int(format.SampleRate),
		Channels:   int(format.Channels),
		BitDepth:   int(format.BitsPerSample),
		Codec:      codec,
		Duration:   duration,
	}, nil
}

// readWAVHeader parses the RIFF header and chunks up to the data chunk,
// leaving the reader positioned at the first sample.
func readWAVHeader(f *os.File) (*wavFormat, uint32, error) {
	var riff [12]byte
	if _, err := io.ReadFull(f, riff[:]); err != nil {
		return nil, 0, fmt.Errorf("read riff header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("%w: not a RIFF/WAVE file", ErrUnsupportedFormat)
	}

	var format *wavFormat

	for {
		var chunkHeader [8]byte
		if _, err := io.ReadFull(f, chunkHeader[:]); err != nil {
			return nil, 0, fmt.Errorf("read chunk header: %w", err)
		}
		chunkID := string(chunkHeader[0:4])
		chunkSize := binary.LittleEndian.Uint32(chunkHeader[4:8])

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, 0, fmt.Errorf("fmt chunk too small: %d bytes", chunkSize)
			}
			buf := make([]byte, chunkSize)
			if _, err := io.ReadFull(f, buf); err != nil {
				return nil, 0, fmt.Errorf("read fmt chunk: %w", err)
			}
			format = &wavFormat{
				AudioFormat:   binary.LittleEndian.Uint16(buf[0:2]),
				Channels:      binary.LittleEndian.Uint16(buf[2:4]),
				SampleRate:    binary.LittleEndian.Uint32(buf[4:8]),
				ByteRate:      binary.LittleEndian.Uint32(buf[8:12]),
				BlockAlign:    binary.LittleEndian.Uint16(buf[12:14]),
				BitsPerSample: binary.LittleEndian.Uint16(buf[14:16]),
			}
			// WAVE_FORMAT_EXTENSIBLE stores the real format code in the
			// first two bytes of the SubFormat GUID.
			if format.AudioFormat == wavFormatExtensible && chunkSize >= 40 {
				format.AudioFormat = binary.LittleEndian.Uint16(buf[24:26])
			}

		case "data":
			if format == nil {
				return nil, 0, fmt.Errorf("data chunk before fmt chunk")
			}
			if format.Channels == 0 || format.SampleRate == 0 {
				return nil, 0, fmt.Errorf("invalid fmt chunk: channels=%d sample_rate=%d",
					format.Channels, format.SampleRate)
			}
			switch resolveWAVFormat(format) {
			case wavFormatPCM, wavFormatIEEEFloat:
			default:
				return nil, 0, fmt.Errorf("%w: wav format code 0x%04X",
					ErrUnsupportedFormat, format.AudioFormat)
			}
			return format, chunkSize, nil

		default:
			// Skip unknown chunks (LIST, fact, cue, bext, ...). Chunks are
			// word-aligned; odd sizes carry one pad byte.
			skip := int64(chunkSize)
			if chunkSize%2 == 1 {
				skip++
			}
			if _, err := f.Seek(skip, io.SeekCurrent); err != nil {
				return nil, 0, fmt.Errorf("skip chunk %q: %w", chunkID, err)
			}
		}
	}
}

func resolveWAVFormat(format *wavFormat) uint16 {
	return format.AudioFormat
}

// decodeWAVSample converts one encoded sample to a float64 in [-1, 1].
func decodeWAVSample(b []byte, format *wavFormat) float64 {
	if resolveWAVFormat(format) == wavFormatIEEEFloat {
		switch len(b) {
		case 4:
			return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
		case 8:
			return math.Float64frombits(binary.LittleEndian.Uint64(b))
		}
		return 0
	}

	switch len(b) {
	case 1:
		// 8-bit WAV is unsigned
		return (float64(b[0]) - 128.0) / 128.0
	case 2:
		return float64(int16(binary.LittleEndian.Uint16(b))) / 32768.0
	case 3:
		v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
		if v&0x800000 != 0 {
			v |= ^int32(0xFFFFFF) // sign extend
		}
		return float64(v) / 8388608.0
	case 4:
		return float64(int32(binary.LittleEndian.Uint32(b))) / 2147483648.0
	}
	return 0
}
