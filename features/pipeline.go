package features

import (
	"context"
	"errors"
	"fmt"

	"github.com/RyanBlaney/sonido-curator/audio"
	"github.com/RyanBlaney/sonido-curator/config"
	"github.com/RyanBlaney/sonido-curator/logging"
	"github.com/RyanBlaney/sonido-curator/scan"
	"github.com/RyanBlaney/sonido-curator/spectro"
)

// Pipeline runs the ordered extractor steps against one file at a time.
// Extraction within a file is sequential because most steps share the
// single decoded spectrogram entry; parallelism lives a level up, across
// files.
type Pipeline struct {
	cfg    *config.Config
	caps   audio.Capabilities
	cache  *spectro.Cache
	prober Prober
	steps  []step
	logger logging.Logger
}

// Prober reads container-level metadata without decoding samples.
// *audio.Decoder satisfies it.
type Prober interface {
	Probe(ctx context.Context, path string) (*audio.Info, error)
}

// NewPipeline wires the extractor steps against the given spectrogram
// cache and metadata prober.
func NewPipeline(cfg *config.Config, caps audio.Capabilities, cache *spectro.Cache, prober Prober) (*Pipeline, error) {
	steps := defaultSteps(cfg)
	if err := validateSteps(steps, cfg.NumMFCC); err != nil {
		return nil, err
	}
	return &Pipeline{
		cfg:    cfg,
		caps:   caps,
		cache:  cache,
		prober: prober,
		steps:  steps,
		logger: logging.WithFields(logging.Fields{"component": "feature_pipeline"}),
	}, nil
}

// Keys returns every feature key the pipeline knows, enabled or not.
// Records always carry the full key set so callers can distinguish
// "not computed" from "missing column".
func (p *Pipeline) Keys() []Key {
	return AllKeys(p.cfg.NumMFCC)
}

// Extract computes the feature record for one file. The returned record
// always contains every key; keys whose step was gated off, failed, or
// was never reached stay nil. Status is StatusCancelled only when ctx
// was cancelled before all steps ran, in which case the partial record
// must not be persisted.
func (p *Pipeline) Extract(ctx context.Context, entry scan.FileEntry) (Record, Status) {
	record := NewRecord(p.Keys())

	active := p.activeSteps()
	if len(active) == 0 {
		return record, StatusComplete
	}

	sc := &stepContext{record: record}

	needsEntry, kind := p.entryDemand(active)
	if needsEntry {
		var err error
		sc.entry, err = p.cache.GetOrCompute(ctx, spectro.Key{
			Identity: entry.Identity(),
			Params:   p.transformParams(kind),
		})
		if err != nil {
			if ctx.Err() != nil {
				return record, StatusCancelled
			}
			p.logger.Warn("audio decode failed, signal features skipped", logging.Fields{
				"path":  entry.Path,
				"error": err.Error(),
			})
		}
	}

	if p.needsMetadata(active) {
		info, err := p.prober.Probe(ctx, entry.Path)
		if err != nil {
			if ctx.Err() != nil {
				return record, StatusCancelled
			}
			p.logger.Debug("metadata probe failed", logging.Fields{
				"path":  entry.Path,
				"error": err.Error(),
			})
		} else {
			sc.info = info
		}
	}

	for _, s := range active {
		if ctx.Err() != nil {
			return record, StatusCancelled
		}
		if s.needs != inputMetadata && sc.entry == nil {
			continue // decode failed, keys stay nil
		}
		if err := p.runStep(s, sc); err != nil {
			p.logger.Warn("feature step failed", logging.Fields{
				"path":  entry.Path,
				"step":  s.name,
				"error": err.Error(),
			})
		}
	}

	return record, StatusComplete
}

// runStep isolates a single step so a panicking extractor degrades to a
// nil feature instead of taking the worker down.
func (p *Pipeline) runStep(s step, sc *stepContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step %s panicked: %v", s.name, r)
		}
	}()
	return s.run(sc)
}

// activeSteps filters out steps gated off by the capability set.
func (p *Pipeline) activeSteps() []step {
	active := make([]step, 0, len(p.steps))
	for _, s := range p.steps {
		if s.enabled != nil && !s.enabled(p.caps) {
			continue
		}
		active = append(active, s)
	}
	return active
}

// entryDemand decides whether the run needs a cache entry and which
// transform kind to request. A single request serves the whole run: if
// any active step wants mel, the mel key is used and the entry carries
// both representations.
func (p *Pipeline) entryDemand(active []step) (bool, spectro.TransformKind) {
	needs := false
	kind := spectro.KindSTFT
	for _, s := range active {
		switch s.needs {
		case inputRaw, inputMagnitude:
			needs = true
		case inputMel:
			needs = true
			kind = spectro.KindMel
		}
	}
	return needs, kind
}

func (p *Pipeline) needsMetadata(active []step) bool {
	for _, s := range active {
		if s.needs == inputMetadata {
			return true
		}
	}
	return false
}

func (p *Pipeline) transformParams(kind spectro.TransformKind) spectro.Params {
	params := spectro.Params{
		Kind:        kind,
		NFFT:        p.cfg.NFFT,
		HopLength:   p.cfg.HopLength,
		Window:      p.cfg.Window,
		MaxDuration: p.cfg.MaxAnalysisDuration,
	}
	if kind == spectro.KindMel {
		params.NumMel = spectro.DefaultMelFilters
	}
	return params
}

// IsDecodeFailure reports whether err came from a failed audio decode,
// as opposed to cancellation or an internal transform error.
func IsDecodeFailure(err error) bool {
	return errors.Is(err, spectro.ErrDecodeFailed)
}
