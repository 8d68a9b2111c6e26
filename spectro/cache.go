package spectro

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/RyanBlaney/sonido-curator/audio"
	"github.com/RyanBlaney/sonido-curator/dsp"
	"github.com/RyanBlaney/sonido-curator/logging"
	"github.com/RyanBlaney/sonido-curator/scan"
)

// ErrDecodeFailed wraps decode errors served from the cache, including
// ones replayed from the negative cache.
var ErrDecodeFailed = errors.New("audio decode failed")

// DecodeFunc decodes a file to mono PCM. Injected so tests can count and
// fail decodes.
type DecodeFunc func(ctx context.Context, path string, maxDuration time.Duration) (*audio.AudioData, error)

// Cache is a bounded in-memory spectrogram cache with LRU eviction and a
// single-flight guarantee: concurrent requests for the same key share one
// computation and receive the same entry or the same failure.
//
// Decode failures are remembered per file identity, so a broken file does
// not get re-decoded for every parameter combination.
type Cache struct {
	decode   DecodeFunc
	capacity int
	logger   logging.Logger

	mu        sync.Mutex
	ll        *list.List               // front = most recently used
	entries   map[Key]*list.Element    // value: *cacheItem
	inflight  map[Key]*inflightCall
	badDecode map[scan.FileIdentity]error
}

type cacheItem struct {
	key   Key
	entry *Entry
}

type inflightCall struct {
	done  chan struct{}
	entry *Entry
	err   error
}

// NewCache creates a cache holding at most capacity entries.
func NewCache(capacity int, decode DecodeFunc) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	return &Cache{
		decode:    decode,
		capacity:  capacity,
		ll:        list.New(),
		entries:   make(map[Key]*list.Element),
		inflight:  make(map[Key]*inflightCall),
		badDecode: make(map[scan.FileIdentity]error),
		logger: logging.WithFields(logging.Fields{
			"component": "spectrogram_cache",
			"capacity":  capacity,
		}),
	}
}

// GetOrCompute returns the cached entry for key, computing it on a miss.
// The first caller for a key computes; concurrent callers for the same key
// block until that computation finishes and share its outcome.
func (c *Cache) GetOrCompute(ctx context.Context, key Key) (*Entry, error) {
	c.mu.Lock()

	if elem, ok := c.entries[key]; ok {
		c.ll.MoveToFront(elem)
		entry := elem.Value.(*cacheItem).entry
		c.mu.Unlock()
		return entry, nil
	}

	if err, ok := c.badDecode[key.Identity]; ok {
		c.mu.Unlock()
		return nil, err
	}

	if call, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		select {
		case <-call.done:
			return call.entry, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	call := &inflightCall{done: make(chan struct{})}
	c.inflight[key] = call
	c.mu.Unlock()

	entry, err := c.compute(ctx, key)

	c.mu.Lock()
	delete(c.inflight, key)
	call.entry = entry
	call.err = err
	if err == nil {
		c.insert(key, entry)
	} else if errors.Is(err, ErrDecodeFailed) {
		// Remember broken files so other transform parameters for the
		// same file do not re-attempt decoding.
		c.badDecode[key.Identity] = err
	}
	c.mu.Unlock()
	close(call.done)

	return entry, err
}

// insert adds an entry and evicts the least recently used beyond capacity.
// Caller holds c.mu.
func (c *Cache) insert(key Key, entry *Entry) {
	elem := c.ll.PushFront(&cacheItem{key: key, entry: entry})
	c.entries[key] = elem

	for c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		if oldest == nil {
			break
		}
		item := oldest.Value.(*cacheItem)
		c.ll.Remove(oldest)
		delete(c.entries, item.key)
		c.logger.Debug("Evicted spectrogram cache entry", logging.Fields{
			"path": item.key.Identity.Path,
			"kind": item.key.Params.Kind.String(),
		})
	}
}

// compute decodes the file and runs the requested transforms.
func (c *Cache) compute(ctx context.Context, key Key) (*Entry, error) {
	logger := c.logger.WithFields(logging.Fields{
		"path": key.Identity.Path,
		"kind": key.Params.Kind.String(),
	})
	logger.Debug("Computing spectrogram")

	data, err := c.decode(ctx, key.Identity.Path, key.Params.MaxDuration)
	if err != nil {
		logger.Error(err, "Audio decode failed")
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	if len(data.PCM) == 0 {
		err := fmt.Errorf("%w: decoded audio is empty", ErrDecodeFailed)
		logger.Error(err, "Audio decode failed")
		return nil, err
	}

	window, err := dsp.NewWindow(key.Params.Window, key.Params.NFFT)
	if err != nil {
		return nil, err
	}

	spec, err := dsp.NewSTFT().Compute(data.PCM, key.Params.NFFT, key.Params.HopLength, data.SampleRate, window)
	if err != nil {
		return nil, fmt.Errorf("stft: %w", err)
	}

	entry := &Entry{
		PCM:        data.PCM,
		SampleRate: data.SampleRate,
		BitDepth:   data.BitDepth,
		Magnitude:  spec.Magnitude,
	}

	if key.Params.Kind == KindMel {
		numMel := key.Params.NumMel
		if numMel <= 0 {
			numMel = DefaultMelFilters
		}
		entry.Mel = dsp.NewMelScale().ComputeMelSpectrogram(spec.Magnitude, numMel, data.SampleRate)
	}

	return entry, nil
}

// Len reports the current number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Clear drops all cached entries and forgotten decode failures.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	c.entries = make(map[Key]*list.Element)
	c.badDecode = make(map[scan.FileIdentity]error)
}
