package config

import (
	"fmt"
	"runtime"
	"time"
)

// Config holds the immutable process-wide settings for the analysis core.
// The surrounding application owns persistence of these values; the core
// only reads them. A Config is fixed at construction time and shared by
// every worker.
type Config struct {
	// Duplicate detection
	MaxHashFileSize int64         `json:"max_hash_file_size"` // files above this are skipped, not hashed
	HashTimeout     time.Duration `json:"hash_timeout"`
	HashBlockSize   int           `json:"hash_block_size"`

	// Feature analysis
	MaxAnalysisDuration time.Duration `json:"max_analysis_duration"` // audio loaded per file, from the start
	NumMFCC             int           `json:"num_mfcc"`

	// STFT parameters
	NFFT      int    `json:"n_fft"`
	HopLength int    `json:"hop_length"`
	Window    string `json:"window"`

	// Caching
	SpectrogramCacheSize int    `json:"spectrogram_cache_size"` // entry count, not bytes
	FeatureCachePath     string `json:"feature_cache_path"`     // empty disables persistence

	// Concurrency
	NumWorkers int `json:"num_workers"`

	// External decoder binaries
	FFmpegPath  string `json:"ffmpeg_path"`
	FFprobePath string `json:"ffprobe_path"`
}

// DefaultConfig returns the configuration the desktop shell ships with.
func DefaultConfig() *Config {
	return &Config{
		MaxHashFileSize:      250 * 1024 * 1024, // 250 MiB
		HashTimeout:          5 * time.Second,
		HashBlockSize:        65536,
		MaxAnalysisDuration:  30 * time.Second,
		NumMFCC:              13,
		NFFT:                 2048,
		HopLength:            512,
		Window:               "hann",
		SpectrogramCacheSize: 128,
		NumWorkers:           runtime.NumCPU(),
		FFmpegPath:           "ffmpeg",
		FFprobePath:          "ffprobe",
	}
}

// Validate checks the configuration for values the core cannot work with.
func (c *Config) Validate() error {
	if c.MaxHashFileSize <= 0 {
		return fmt.Errorf("max hash file size must be positive, got %d", c.MaxHashFileSize)
	}
	if c.HashTimeout <= 0 {
		return fmt.Errorf("hash timeout must be positive, got %v", c.HashTimeout)
	}
	if c.HashBlockSize <= 0 {
		return fmt.Errorf("hash block size must be positive, got %d", c.HashBlockSize)
	}
	if c.NFFT <= 0 || c.NFFT&(c.NFFT-1) != 0 {
		return fmt.Errorf("n_fft must be a positive power of two, got %d", c.NFFT)
	}
	if c.HopLength <= 0 {
		return fmt.Errorf("hop length must be positive, got %d", c.HopLength)
	}
	if c.NumMFCC <= 0 {
		return fmt.Errorf("num_mfcc must be positive, got %d", c.NumMFCC)
	}
	if c.SpectrogramCacheSize <= 0 {
		return fmt.Errorf("spectrogram cache size must be positive, got %d", c.SpectrogramCacheSize)
	}
	if c.NumWorkers <= 0 {
		return fmt.Errorf("worker count must be positive, got %d", c.NumWorkers)
	}
	return nil
}
