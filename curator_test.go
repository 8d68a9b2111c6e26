package curator

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-curator/config"
	"github.com/RyanBlaney/sonido-curator/features"
	"github.com/RyanBlaney/sonido-curator/scan"
	"github.com/RyanBlaney/sonido-curator/workers"
)

// writeSineWAV writes a mono 16-bit PCM WAV with a sine tone and returns
// its scan entry.
func writeSineWAV(t *testing.T, dir, name string, freq float64, seconds float64) scan.FileEntry {
	t.Helper()
	const sampleRate = 22050

	n := int(sampleRate * seconds)
	var data bytes.Buffer
	for i := range n {
		v := 0.6 * math.Sin(2*math.Pi*freq*float64(i)/sampleRate)
		binary.Write(&data, binary.LittleEndian, int16(v*32767))
	}

	var buf bytes.Buffer
	dataSize := uint32(data.Len())
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataSize)
	buf.Write(data.Bytes())

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	info, err := os.Stat(path)
	require.NoError(t, err)
	return scan.FileEntry{Path: path, Size: info.Size(), ModTime: info.ModTime()}
}

func newTestAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.FeatureCachePath = filepath.Join(t.TempDir(), "features.db")
	cfg.NumWorkers = 2

	a, err := NewAnalyzer(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestAnalyzeFilesEndToEnd(t *testing.T) {
	dir := t.TempDir()
	files := []scan.FileEntry{
		writeSineWAV(t, dir, "a440.wav", 440, 1.0),
		writeSineWAV(t, dir, "a880.wav", 880, 1.0),
	}

	a := newTestAnalyzer(t)
	result := a.AnalyzeFiles(context.Background(), files, nil)

	require.False(t, result.Cancelled)
	require.Len(t, result.Reports, 2)

	for i, want := range []float64{440, 880} {
		report := result.Reports[i]
		assert.Equal(t, workers.OutcomeDone, report.Outcome)
		require.NotNil(t, report.Record)

		pitch, ok := report.Record.Value(features.KeyPitchHz)
		require.True(t, ok, "pitch missing for %s", report.Entry.Path)
		assert.InDelta(t, want, pitch, 10.0)

		bitDepth, ok := report.Record.Value(features.KeyBitDepth)
		require.True(t, ok)
		assert.Equal(t, 16.0, bitDepth)
	}
}

func TestAnalyzeFilesSecondRunHitsCache(t *testing.T) {
	dir := t.TempDir()
	files := []scan.FileEntry{writeSineWAV(t, dir, "a440.wav", 440, 0.5)}

	a := newTestAnalyzer(t)

	first := a.AnalyzeFiles(context.Background(), files, nil)
	require.Equal(t, workers.OutcomeDone, first.Reports[0].Outcome)

	second := a.AnalyzeFiles(context.Background(), files, nil)
	assert.Equal(t, workers.OutcomeSkipped, second.Reports[0].Outcome)

	// Cached and fresh records agree
	fresh, ok := first.Reports[0].Record.Value(features.KeyPitchHz)
	require.True(t, ok)
	cached, ok := second.Reports[0].Record.Value(features.KeyPitchHz)
	require.True(t, ok)
	assert.InDelta(t, fresh, cached, 0.001)
}

func TestAnalyzeFilesInvalidateForcesRecompute(t *testing.T) {
	dir := t.TempDir()
	files := []scan.FileEntry{writeSineWAV(t, dir, "a440.wav", 440, 0.5)}

	a := newTestAnalyzer(t)
	a.AnalyzeFiles(context.Background(), files, nil)

	require.NoError(t, a.InvalidateFeatures(files[0].Path))

	result := a.AnalyzeFiles(context.Background(), files, nil)
	assert.Equal(t, workers.OutcomeDone, result.Reports[0].Outcome)
}

func TestAnalyzeFilesCancelled(t *testing.T) {
	dir := t.TempDir()
	files := []scan.FileEntry{
		writeSineWAV(t, dir, "a.wav", 440, 0.5),
		writeSineWAV(t, dir, "b.wav", 550, 0.5),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := newTestAnalyzer(t)
	result := a.AnalyzeFiles(ctx, files, nil)
	assert.True(t, result.Cancelled)
	for _, report := range result.Reports {
		assert.Equal(t, workers.OutcomeCancelled, report.Outcome)
	}
}

func TestFindDuplicatesEndToEnd(t *testing.T) {
	dir := t.TempDir()
	original := writeSineWAV(t, dir, "kick.wav", 100, 0.25)

	copyPath := filepath.Join(dir, "kick_copy.wav")
	raw, err := os.ReadFile(original.Path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(copyPath, raw, 0o644))
	info, err := os.Stat(copyPath)
	require.NoError(t, err)
	duplicate := scan.FileEntry{Path: copyPath, Size: info.Size(), ModTime: info.ModTime()}

	other := writeSineWAV(t, dir, "snare.wav", 300, 0.5)

	a := newTestAnalyzer(t)
	result := a.FindDuplicates(context.Background(), []scan.FileEntry{original, duplicate, other}, nil)

	require.False(t, result.Cancelled)
	require.Len(t, result.Groups, 1)
	assert.ElementsMatch(t, []string{original.Path, duplicate.Path}, result.Groups[0].Paths)
}

func TestNewAnalyzerRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.NFFT = 1000
	_, err := NewAnalyzer(cfg)
	assert.Error(t, err)
}
