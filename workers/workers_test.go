package workers

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-curator/scan"
)

func entries(n int) []scan.FileEntry {
	files := make([]scan.FileEntry, n)
	for i := range files {
		files[i] = scan.FileEntry{Path: fmt.Sprintf("/samples/%03d.wav", i), Size: int64(i + 1)}
	}
	return files
}

func TestRunEveryFileResolves(t *testing.T) {
	files := entries(20)
	c := NewCoordinator(4)

	results := c.Run(context.Background(), files, func(ctx context.Context, entry scan.FileEntry) (Outcome, error) {
		return OutcomeDone, nil
	}, nil)

	require.Len(t, results, len(files))
	for i, res := range results {
		assert.Equal(t, files[i].Path, res.Entry.Path) // input order preserved
		assert.Equal(t, OutcomeDone, res.Outcome)
		assert.NoError(t, res.Err)
	}
}

func TestRunMixedOutcomes(t *testing.T) {
	files := entries(9)
	failErr := errors.New("decode exploded")

	results := NewCoordinator(3).Run(context.Background(), files, func(ctx context.Context, entry scan.FileEntry) (Outcome, error) {
		switch entry.Size % 3 {
		case 0:
			return OutcomeFailed, failErr
		case 1:
			return OutcomeSkipped, nil
		default:
			return OutcomeDone, nil
		}
	}, nil)

	var done, skipped, failed int
	for _, res := range results {
		switch res.Outcome {
		case OutcomeDone:
			done++
		case OutcomeSkipped:
			skipped++
		case OutcomeFailed:
			failed++
			assert.ErrorIs(t, res.Err, failErr)
		}
	}
	assert.Equal(t, 3, done)
	assert.Equal(t, 3, skipped)
	assert.Equal(t, 3, failed)
}

func TestRunBoundedConcurrency(t *testing.T) {
	const workers = 3
	var current, peak atomic.Int64

	NewCoordinator(workers).Run(context.Background(), entries(30), func(ctx context.Context, entry scan.FileEntry) (Outcome, error) {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		defer current.Add(-1)
		return OutcomeDone, nil
	}, nil)

	assert.LessOrEqual(t, peak.Load(), int64(workers))
}

func TestRunCancelMidway(t *testing.T) {
	files := entries(50)
	ctx, cancel := context.WithCancel(context.Background())

	var started atomic.Int64
	results := NewCoordinator(2).Run(ctx, files, func(ctx context.Context, entry scan.FileEntry) (Outcome, error) {
		if started.Add(1) == 5 {
			cancel()
		}
		if ctx.Err() != nil {
			return OutcomeCancelled, ctx.Err()
		}
		return OutcomeDone, nil
	}, nil)

	require.Len(t, results, len(files))
	var cancelled int
	for _, res := range results {
		if res.Outcome == OutcomeCancelled {
			cancelled++
		}
	}
	assert.Greater(t, cancelled, 0)
}

func TestRunProgressCounts(t *testing.T) {
	files := entries(10)
	var last atomic.Value

	NewCoordinator(2).Run(context.Background(), files, func(ctx context.Context, entry scan.FileEntry) (Outcome, error) {
		if entry.Size%2 == 0 {
			return OutcomeSkipped, nil
		}
		return OutcomeDone, nil
	}, func(p Progress) {
		last.Store(p)
	})

	final, ok := last.Load().(Progress)
	require.True(t, ok)
	assert.Equal(t, 10, final.Total)
	assert.Equal(t, 10, final.Completed())
	assert.Equal(t, 5, final.Done)
	assert.Equal(t, 5, final.Skipped)
}

func TestRunPanicResolvesToFailed(t *testing.T) {
	files := entries(3)

	results := NewCoordinator(1).Run(context.Background(), files, func(ctx context.Context, entry scan.FileEntry) (Outcome, error) {
		if entry.Size == 2 {
			panic("extractor bug")
		}
		return OutcomeDone, nil
	}, nil)

	assert.Equal(t, OutcomeDone, results[0].Outcome)
	assert.Equal(t, OutcomeFailed, results[1].Outcome)
	assert.Equal(t, OutcomeDone, results[2].Outcome)
}

func TestRunEmptyInput(t *testing.T) {
	results := NewCoordinator(4).Run(context.Background(), nil, func(ctx context.Context, entry scan.FileEntry) (Outcome, error) {
		t.Fatal("job must not run")
		return OutcomeDone, nil
	}, nil)
	assert.Empty(t, results)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "done", OutcomeDone.String())
	assert.Equal(t, "skipped", OutcomeSkipped.String())
	assert.Equal(t, "failed", OutcomeFailed.String())
	assert.Equal(t, "cancelled", OutcomeCancelled.String())
}
