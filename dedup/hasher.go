package dedup

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
	"time"

	"github.com/RyanBlaney/sonido-curator/logging"
)

// SkipReason explains why a file's digest could not be computed. A skipped
// file is excluded from duplicate comparison and reported as unverifiable,
// never silently treated as unique.
type SkipReason int

const (
	SkipNone SkipReason = iota
	SkipTooLarge
	SkipTimeout
	SkipUnreadable
)

func (r SkipReason) String() string {
	switch r {
	case SkipNone:
		return "none"
	case SkipTooLarge:
		return "too_large"
	case SkipTimeout:
		return "timeout"
	case SkipUnreadable:
		return "unreadable"
	default:
		return "unknown"
	}
}

// Hasher computes content digests. The indirection exists so tests can
// count hash invocations and substitute failure modes.
type Hasher interface {
	Hash(path string, size int64) (digest string, skip SkipReason)
}

// ContentHasher computes a bounded, timeout-guarded MD5 digest over file
// bytes. MD5 is a filtering aid here, not a security boundary; what
// matters is that it is cheap, deterministic and stable across platforms.
type ContentHasher struct {
	maxFileSize int64
	timeout     time.Duration
	blockSize   int
	logger      logging.Logger
}

// NewContentHasher creates a hasher with the given limits.
func NewContentHasher(maxFileSize int64, timeout time.Duration, blockSize int) *ContentHasher {
	if blockSize <= 0 {
		blockSize = 65536
	}
	return &ContentHasher{
		maxFileSize: maxFileSize,
		timeout:     timeout,
		blockSize:   blockSize,
		logger: logging.WithFields(logging.Fields{
			"component": "content_hasher",
		}),
	}
}

// Hash streams the file through MD5 in fixed-size blocks. Files above the
// size limit are refused without reading; hashing that exceeds the
// wall-clock timeout is abandoned. Memory use is bounded by the block
// size regardless of file size.
func (h *ContentHasher) Hash(path string, size int64) (string, SkipReason) {
	if h.maxFileSize > 0 && size > h.maxFileSize {
		h.logger.Debug("Skipping hash, file too large", logging.Fields{
			"path": path,
			"size": size,
		})
		return "", SkipTooLarge
	}

	f, err := os.Open(path)
	if err != nil {
		h.logger.Warn("Skipping hash, cannot open file", logging.Fields{
			"path":  path,
			"error": err.Error(),
		})
		return "", SkipUnreadable
	}
	defer f.Close()

	hash := md5.New()
	buf := make([]byte, h.blockSize)
	start := time.Now()

	for {
		if h.timeout > 0 && time.Since(start) > h.timeout {
			h.logger.Warn("Hashing timed out", logging.Fields{
				"path":    path,
				"timeout": h.timeout.String(),
			})
			return "", SkipTimeout
		}

		n, err := f.Read(buf)
		if n > 0 {
			hash.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			h.logger.Warn("Skipping hash, read error", logging.Fields{
				"path":  path,
				"error": err.Error(),
			})
			return "", SkipUnreadable
		}
	}

	return hex.EncodeToString(hash.Sum(nil)), SkipNone
}
