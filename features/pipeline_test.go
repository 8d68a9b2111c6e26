package features

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-curator/audio"
	"github.com/RyanBlaney/sonido-curator/config"
	"github.com/RyanBlaney/sonido-curator/scan"
	"github.com/RyanBlaney/sonido-curator/spectro"
)

func allCaps() audio.Capabilities {
	return audio.Capabilities{
		FFmpeg:             true,
		Spectral:           true,
		IntegratedLoudness: true,
		Metadata:           true,
	}
}

type fakeProber struct {
	info *audio.Info
	err  error
}

func (f *fakeProber) Probe(ctx context.Context, path string) (*audio.Info, error) {
	return f.info, f.err
}

func sinePCM(freq float64, sampleRate int, seconds float64) []float64 {
	n := int(float64(sampleRate) * seconds)
	pcm := make([]float64, n)
	for i := range pcm {
		pcm[i] = 0.8 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return pcm
}

func pcmDecode(pcm []float64, sampleRate, bitDepth int) spectro.DecodeFunc {
	return func(ctx context.Context, path string, maxDuration time.Duration) (*audio.AudioData, error) {
		return &audio.AudioData{
			PCM:        pcm,
			SampleRate: sampleRate,
			Channels:   1,
			BitDepth:   bitDepth,
		}, nil
	}
}

func newTestPipeline(t *testing.T, decode spectro.DecodeFunc, prober Prober, caps audio.Capabilities) *Pipeline {
	t.Helper()
	cfg := config.DefaultConfig()
	cache := spectro.NewCache(cfg.SpectrogramCacheSize, decode)
	p, err := NewPipeline(cfg, caps, cache, prober)
	require.NoError(t, err)
	return p
}

func testEntry(path string) scan.FileEntry {
	return scan.FileEntry{Path: path, Size: 4096, ModTime: time.Unix(1700000000, 0)}
}

func TestExtractSineTone(t *testing.T) {
	pcm := sinePCM(440, 44100, 2.0)
	prober := &fakeProber{info: &audio.Info{SampleRate: 44100, Channels: 1, BitDepth: 16}}
	p := newTestPipeline(t, pcmDecode(pcm, 44100, 16), prober, allCaps())

	record, status := p.Extract(context.Background(), testEntry("/samples/a440.wav"))
	require.Equal(t, StatusComplete, status)

	pitch, ok := record.Value(KeyPitchHz)
	require.True(t, ok)
	assert.InDelta(t, 440.0, pitch, 5.0)

	brightness, ok := record.Value(KeyBrightness)
	require.True(t, ok)
	assert.InDelta(t, 440.0, brightness, 200.0)

	loudness, ok := record.Value(KeyLoudnessRMS)
	require.True(t, ok)
	assert.Greater(t, loudness, 0.0)

	_, ok = record.Value(KeyZCRMean)
	assert.True(t, ok)

	_, ok = record.Value(KeyLoudnessLUFS)
	assert.True(t, ok)

	bitDepth, ok := record.Value(KeyBitDepth)
	require.True(t, ok)
	assert.Equal(t, 16.0, bitDepth)

	for i := 1; i <= 13; i++ {
		_, ok := record.Value(MFCCKey(i))
		assert.True(t, ok, "mfcc coefficient %d", i)
	}
}

func TestExtractSilence(t *testing.T) {
	silence := make([]float64, 44100)
	prober := &fakeProber{info: &audio.Info{BitDepth: 24}}
	p := newTestPipeline(t, pcmDecode(silence, 44100, 24), prober, allCaps())

	record, status := p.Extract(context.Background(), testEntry("/samples/silence.wav"))
	require.Equal(t, StatusComplete, status)

	// Silence has no level, pitch or tempo, but metadata still applies
	_, ok := record.Value(KeyLoudnessRMS)
	assert.False(t, ok)
	_, ok = record.Value(KeyPitchHz)
	assert.False(t, ok)
	_, ok = record.Value(KeyTempo)
	assert.False(t, ok)

	bitDepth, ok := record.Value(KeyBitDepth)
	require.True(t, ok)
	assert.Equal(t, 24.0, bitDepth)
}

func TestExtractPreCancelled(t *testing.T) {
	pcm := sinePCM(440, 44100, 1.0)
	p := newTestPipeline(t, pcmDecode(pcm, 44100, 16), &fakeProber{info: &audio.Info{}}, allCaps())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	record, status := p.Extract(ctx, testEntry("/samples/a440.wav"))
	assert.Equal(t, StatusCancelled, status)
	for key, value := range record {
		assert.Nil(t, value, "key %s should be nil after cancellation", key)
	}
}

func TestExtractDecodeFailure(t *testing.T) {
	decode := func(ctx context.Context, path string, maxDuration time.Duration) (*audio.AudioData, error) {
		return nil, errors.New("unsupported codec")
	}
	prober := &fakeProber{info: &audio.Info{BitDepth: 16}}
	p := newTestPipeline(t, decode, prober, allCaps())

	record, status := p.Extract(context.Background(), testEntry("/samples/broken.ogg"))
	require.Equal(t, StatusComplete, status)

	// Signal-derived features are absent, metadata still extracted
	_, ok := record.Value(KeyPitchHz)
	assert.False(t, ok)
	_, ok = record.Value(KeyLoudnessRMS)
	assert.False(t, ok)

	bitDepth, ok := record.Value(KeyBitDepth)
	require.True(t, ok)
	assert.Equal(t, 16.0, bitDepth)
}

func TestExtractCapabilityGating(t *testing.T) {
	pcm := sinePCM(440, 44100, 1.0)
	caps := allCaps()
	caps.Spectral = false
	caps.IntegratedLoudness = false
	p := newTestPipeline(t, pcmDecode(pcm, 44100, 16), &fakeProber{info: &audio.Info{BitDepth: 16}}, caps)

	record, status := p.Extract(context.Background(), testEntry("/samples/a440.wav"))
	require.Equal(t, StatusComplete, status)

	// Gated features stay nil even though the signal decoded fine
	_, ok := record.Value(KeyBrightness)
	assert.False(t, ok)
	_, ok = record.Value(KeySpectralContrast)
	assert.False(t, ok)
	_, ok = record.Value(MFCCKey(1))
	assert.False(t, ok)
	_, ok = record.Value(KeyLoudnessLUFS)
	assert.False(t, ok)

	// Ungated features still compute
	_, ok = record.Value(KeyPitchHz)
	assert.True(t, ok)
	_, ok = record.Value(KeyLoudnessRMS)
	assert.True(t, ok)
}

func TestExtractRecordAlwaysCarriesAllKeys(t *testing.T) {
	pcm := sinePCM(440, 44100, 0.5)
	p := newTestPipeline(t, pcmDecode(pcm, 44100, 16), &fakeProber{err: errors.New("no probe")}, allCaps())

	record, _ := p.Extract(context.Background(), testEntry("/samples/a440.wav"))
	assert.Len(t, record, len(p.Keys()))
	for _, key := range p.Keys() {
		_, present := record[key]
		assert.True(t, present, "key %s missing from record", key)
	}
}

func TestValidateStepsCoversAllKeys(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.NoError(t, validateSteps(defaultSteps(cfg), cfg.NumMFCC))
}
