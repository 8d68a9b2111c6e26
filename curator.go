// Package curator analyzes sample libraries: it finds byte-identical
// duplicate files and computes per-file audio feature records that a
// browser can sort and filter on. Results are cached so rescans only pay
// for files that changed.
package curator

import (
	"context"
	"fmt"

	"github.com/RyanBlaney/sonido-curator/audio"
	"github.com/RyanBlaney/sonido-curator/config"
	"github.com/RyanBlaney/sonido-curator/dedup"
	"github.com/RyanBlaney/sonido-curator/features"
	"github.com/RyanBlaney/sonido-curator/logging"
	"github.com/RyanBlaney/sonido-curator/scan"
	"github.com/RyanBlaney/sonido-curator/spectro"
	"github.com/RyanBlaney/sonido-curator/workers"
)

// Analyzer ties the duplicate detector, feature pipeline and caches
// together behind one handle. It is safe for concurrent use; one
// Analyzer is meant to live for the whole application session.
type Analyzer struct {
	cfg          *config.Config
	caps         audio.Capabilities
	detector     *dedup.Detector
	pipeline     *features.Pipeline
	spectroCache *spectro.Cache
	featureCache *features.Cache
	coordinator  *workers.Coordinator
	logger       logging.Logger
}

// FileReport is the per-file outcome of an analysis run.
type FileReport struct {
	Entry   scan.FileEntry
	Record  features.Record
	Outcome workers.Outcome
	Err     error
}

// AnalysisResult is what an AnalyzeFiles run produced.
type AnalysisResult struct {
	Reports   []FileReport
	Cancelled bool
}

// NewAnalyzer builds an analyzer from cfg, probing decoder binaries once
// and opening the persistent feature cache. Call Close when done.
func NewAnalyzer(cfg *config.Config) (*Analyzer, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	caps := audio.DetectCapabilities(cfg.FFmpegPath, cfg.FFprobePath)
	decoder := audio.NewDecoder(caps, cfg.FFmpegPath, cfg.FFprobePath, cfg.MaxAnalysisDuration)

	spectroCache := spectro.NewCache(cfg.SpectrogramCacheSize, decoder.Decode)

	pipeline, err := features.NewPipeline(cfg, caps, spectroCache, decoder)
	if err != nil {
		return nil, err
	}

	featureCache, err := features.OpenCache(cfg.FeatureCachePath)
	if err != nil {
		return nil, err
	}

	hasher := dedup.NewContentHasher(cfg.MaxHashFileSize, cfg.HashTimeout, cfg.HashBlockSize)

	return &Analyzer{
		cfg:          cfg,
		caps:         caps,
		detector:     dedup.NewDetector(hasher),
		pipeline:     pipeline,
		spectroCache: spectroCache,
		featureCache: featureCache,
		coordinator:  workers.NewCoordinator(cfg.NumWorkers),
		logger:       logging.WithFields(logging.Fields{"component": "analyzer"}),
	}, nil
}

// Capabilities returns the capability set detected at construction.
func (a *Analyzer) Capabilities() audio.Capabilities {
	return a.caps
}

// FindDuplicates groups the given files by identical content. Cancelling
// ctx returns a result marked Cancelled with no groups.
func (a *Analyzer) FindDuplicates(ctx context.Context, files []scan.FileEntry, progress dedup.ProgressFunc) *dedup.Result {
	return a.detector.FindDuplicates(ctx, files, progress)
}

// AnalyzeFiles computes feature records for every file, reusing cached
// records for unchanged files. Fresh records are persisted unless the run
// was cancelled mid-file; a cancelled run reports which files never got
// their record.
func (a *Analyzer) AnalyzeFiles(ctx context.Context, files []scan.FileEntry, progress workers.ProgressFunc) *AnalysisResult {
	records := make([]features.Record, len(files))

	indexOf := make(map[scan.FileIdentity]int, len(files))
	for i, entry := range files {
		indexOf[entry.Identity()] = i
	}

	job := func(ctx context.Context, entry scan.FileEntry) (workers.Outcome, error) {
		i := indexOf[entry.Identity()]

		if cached, ok, err := a.featureCache.Get(entry); err == nil && ok {
			records[i] = cached
			return workers.OutcomeSkipped, nil
		} else if err != nil {
			a.logger.Warn("feature cache read failed", logging.Fields{
				"path":  entry.Path,
				"error": err.Error(),
			})
		}

		record, status := a.pipeline.Extract(ctx, entry)
		if status == features.StatusCancelled {
			return workers.OutcomeCancelled, ctx.Err()
		}
		records[i] = record

		if err := a.featureCache.Put(entry, record); err != nil {
			a.logger.Warn("feature cache write failed", logging.Fields{
				"path":  entry.Path,
				"error": err.Error(),
			})
		}
		return workers.OutcomeDone, nil
	}

	results := a.coordinator.Run(ctx, files, job, progress)

	out := &AnalysisResult{Reports: make([]FileReport, len(files))}
	for i, res := range results {
		record := records[i]
		if record == nil {
			// Duplicate entries in the input share one identity slot
			record = records[indexOf[res.Entry.Identity()]]
		}
		out.Reports[i] = FileReport{
			Entry:   res.Entry,
			Record:  record,
			Outcome: res.Outcome,
			Err:     res.Err,
		}
		if res.Outcome == workers.OutcomeCancelled {
			out.Cancelled = true
		}
	}
	return out
}

// InvalidateFeatures drops the persisted record for path, forcing the
// next analysis to recompute it.
func (a *Analyzer) InvalidateFeatures(path string) error {
	return a.featureCache.Delete(path)
}

// Close releases the persistent cache. In-memory caches are dropped.
func (a *Analyzer) Close() error {
	a.spectroCache.Clear()
	return a.featureCache.Close()
}
