package workers

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/RyanBlaney/sonido-curator/logging"
	"github.com/RyanBlaney/sonido-curator/scan"
)

// Outcome classifies how processing one file ended. Every submitted file
// resolves to exactly one outcome, cancellation included.
type Outcome int

const (
	// OutcomeDone means the job ran to completion.
	OutcomeDone Outcome = iota
	// OutcomeSkipped means the job decided the file needed no work.
	OutcomeSkipped
	// OutcomeFailed means the job returned an error.
	OutcomeFailed
	// OutcomeCancelled means the run was cancelled before or during the job.
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDone:
		return "done"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Job processes one file. Returning OutcomeFailed should come with the
// error; other outcomes ignore it.
type Job func(ctx context.Context, entry scan.FileEntry) (Outcome, error)

// Result pairs a file with how its job ended.
type Result struct {
	Entry   scan.FileEntry
	Outcome Outcome
	Err     error
}

// Progress is a point-in-time view of a run. Cancelled counts files whose
// job never ran because the run stopped early.
type Progress struct {
	Total     int
	Done      int
	Skipped   int
	Failed    int
	Cancelled int
}

// Completed is the number of files resolved so far.
func (p Progress) Completed() int {
	return p.Done + p.Skipped + p.Failed + p.Cancelled
}

// ProgressFunc receives progress after each resolved file. It is called
// from worker goroutines and must be safe for concurrent use.
type ProgressFunc func(Progress)

type counters struct {
	done      atomic.Int64
	skipped   atomic.Int64
	failed    atomic.Int64
	cancelled atomic.Int64
}

func (c *counters) add(o Outcome) {
	switch o {
	case OutcomeDone:
		c.done.Add(1)
	case OutcomeSkipped:
		c.skipped.Add(1)
	case OutcomeFailed:
		c.failed.Add(1)
	case OutcomeCancelled:
		c.cancelled.Add(1)
	}
}

func (c *counters) snapshot(total int) Progress {
	return Progress{
		Total:     total,
		Done:      int(c.done.Load()),
		Skipped:   int(c.skipped.Load()),
		Failed:    int(c.failed.Load()),
		Cancelled: int(c.cancelled.Load()),
	}
}

// Coordinator fans files out to a bounded pool of workers. It keeps the
// pool size fixed regardless of input size, so a huge library scan never
// spawns a goroutine per file.
type Coordinator struct {
	numWorkers int
	logger     logging.Logger
}

// NewCoordinator returns a coordinator running at most numWorkers jobs
// concurrently. Values below one are clamped to one.
func NewCoordinator(numWorkers int) *Coordinator {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &Coordinator{
		numWorkers: numWorkers,
		logger:     logging.WithFields(logging.Fields{"component": "worker_coordinator"}),
	}
}

// Run processes every file and returns one result per file, in input
// order. When ctx is cancelled, in-flight jobs see the cancellation via
// their context and every unstarted file resolves to OutcomeCancelled;
// Run still returns a complete result slice.
func (c *Coordinator) Run(ctx context.Context, files []scan.FileEntry, job Job, progress ProgressFunc) []Result {
	results := make([]Result, len(files))
	if len(files) == 0 {
		return results
	}

	var cnt counters
	total := len(files)

	report := func() {
		if progress != nil {
			progress(cnt.snapshot(total))
		}
	}

	type task struct {
		index int
		entry scan.FileEntry
	}
	tasks := make(chan task)

	var wg sync.WaitGroup
	for range min(c.numWorkers, len(files)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				results[t.index] = c.runOne(ctx, t.entry, job)
				cnt.add(results[t.index].Outcome)
				report()
			}
		}()
	}

	for i, entry := range files {
		tasks <- task{index: i, entry: entry}
	}
	close(tasks)
	wg.Wait()

	snap := cnt.snapshot(total)
	c.logger.Debug("Run finished", logging.Fields{
		"total":     snap.Total,
		"done":      snap.Done,
		"skipped":   snap.Skipped,
		"failed":    snap.Failed,
		"cancelled": snap.Cancelled,
	})
	return results
}

// runOne resolves a single file to exactly one outcome. A panicking job
// resolves to OutcomeFailed instead of crashing the pool.
func (c *Coordinator) runOne(ctx context.Context, entry scan.FileEntry, job Job) (res Result) {
	res.Entry = entry

	if ctx.Err() != nil {
		res.Outcome = OutcomeCancelled
		res.Err = ctx.Err()
		return res
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error(nil, "job panicked", logging.Fields{
				"path":  entry.Path,
				"panic": r,
			})
			res.Outcome = OutcomeFailed
		}
	}()

	outcome, err := job(ctx, entry)
	res.Outcome = outcome
	if outcome == OutcomeFailed || outcome == OutcomeCancelled {
		res.Err = err
	}
	return res
}
