package dedup

import (
	"context"
	"sort"

	"github.com/RyanBlaney/sonido-curator/logging"
	"github.com/RyanBlaney/sonido-curator/scan"
)

// progressInterval throttles progress callbacks to every Nth file,
// plus one final emission.
const progressInterval = 5

// Group is one set of byte-identical files. Paths preserve input order.
type Group struct {
	Size   int64    `json:"size"`
	Digest string   `json:"digest"`
	Paths  []string `json:"paths"`
}

// Unverified is a file whose digest could not be computed during a run.
type Unverified struct {
	Path   string     `json:"path"`
	Reason SkipReason `json:"reason"`
}

// Result is the outcome of one duplicate search. Exactly one of three
// user-visible shapes: cancelled, or groups plus any unverifiable files.
// A cancelled result never carries partial groups, so callers cannot
// mistake an interrupted run for "no duplicates found".
type Result struct {
	Groups     []Group      `json:"groups"`
	Unverified []Unverified `json:"unverified"`
	Cancelled  bool         `json:"cancelled"`
}

// ProgressFunc receives (processed, total) counts during a run.
type ProgressFunc func(processed, total int)

// Detector finds byte-identical files with a cheap-then-expensive
// strategy: group by size first, then hash only within multi-member
// size buckets.
type Detector struct {
	hasher Hasher
	logger logging.Logger
}

// NewDetector creates a detector using the given hasher.
func NewDetector(hasher Hasher) *Detector {
	return &Detector{
		hasher: hasher,
		logger: logging.WithFields(logging.Fields{
			"component": "duplicate_detector",
		}),
	}
}

// FindDuplicates groups byte-identical files. Cancellation is checked
// between buckets and between files; on cancellation all computed groups
// are discarded and Result.Cancelled is set. Files whose digest could not
// be computed are reported in Result.Unverified.
func (d *Detector) FindDuplicates(ctx context.Context, files []scan.FileEntry, progress ProgressFunc) *Result {
	// Phase 1: bucket by size. Unique sizes cannot duplicate, so they
	// never reach the hasher.
	buckets := make(map[int64][]scan.FileEntry)
	order := make([]int64, 0)
	for _, f := range files {
		if _, seen := buckets[f.Size]; !seen {
			order = append(order, f.Size)
		}
		buckets[f.Size] = append(buckets[f.Size], f)
	}

	total := len(files)
	processed := 0
	emit := func() {
		if progress != nil && (processed%progressInterval == 0 || processed == total) {
			progress(processed, total)
		}
	}

	result := &Result{}

	for _, size := range order {
		if ctx.Err() != nil {
			d.logger.Info("Duplicate detection cancelled", logging.Fields{
				"processed": processed,
				"total":     total,
			})
			return &Result{Cancelled: true}
		}

		bucket := buckets[size]
		if len(bucket) < 2 {
			processed += len(bucket)
			emit()
			continue
		}

		// Phase 2: digest comparison within the bucket
		byDigest := make(map[string][]string)
		digestOrder := make([]string, 0, len(bucket))
		for _, f := range bucket {
			if ctx.Err() != nil {
				d.logger.Info("Duplicate detection cancelled", logging.Fields{
					"processed": processed,
					"total":     total,
				})
				return &Result{Cancelled: true}
			}

			digest, skip := d.hasher.Hash(f.Path, f.Size)
			processed++
			emit()

			if skip != SkipNone {
				result.Unverified = append(result.Unverified, Unverified{
					Path:   f.Path,
					Reason: skip,
				})
				continue
			}

			if _, seen := byDigest[digest]; !seen {
				digestOrder = append(digestOrder, digest)
			}
			byDigest[digest] = append(byDigest[digest], f.Path)
		}

		for _, digest := range digestOrder {
			paths := byDigest[digest]
			if len(paths) >= 2 {
				result.Groups = append(result.Groups, Group{
					Size:   size,
					Digest: digest,
					Paths:  paths,
				})
			}
		}
	}

	// Deterministic ordering: descending member count, then descending size
	sort.SliceStable(result.Groups, func(i, j int) bool {
		if len(result.Groups[i].Paths) != len(result.Groups[j].Paths) {
			return len(result.Groups[i].Paths) > len(result.Groups[j].Paths)
		}
		return result.Groups[i].Size > result.Groups[j].Size
	})

	if progress != nil {
		progress(processed, total)
	}

	d.logger.Info("Duplicate detection finished", logging.Fields{
		"files":      total,
		"groups":     len(result.Groups),
		"unverified": len(result.Unverified),
	})

	return result
}
