package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"IntelDigest/internal/dedup"
	"IntelDigest/internal/domain"
	"IntelDigest/internal/ports"
	"IntelDigest/internal/prefilter"
	"IntelDigest/internal/selector"
)

const defaultFetchConcurrency = 4

// SourceBuilder turns a configured source into a runnable adapter.
type SourceBuilder interface {
	Build(spec domain.SourceSpec) (ports.Source, error)
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Sources     SourceBuilder
	Detector    *dedup.Detector
	Selector    *selector.Selector
	Logger      *slog.Logger
	Concurrency int
}

// Pipeline implements the fetch, prefilter, dedup, select, assemble workflow for one persona.
type Pipeline struct {
	sources     SourceBuilder
	detector    *dedup.Detector
	selector    *selector.Selector
	logger      *slog.Logger
	concurrency int
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := deps.Concurrency
	if concurrency <= 0 {
		concurrency = defaultFetchConcurrency
	}
	return &Pipeline{
		sources:     deps.Sources,
		detector:    deps.Detector,
		selector:    deps.Selector,
		logger:      logger,
		concurrency: concurrency,
	}
}

// Run executes one persona pipeline. Empty stages, failing sources and selector
// failures yield an empty digest with a nil error; only storage failures are returned.
// When recording fails midway, the entries already recorded come back with the error
// so they can still be delivered.
func (p *Pipeline) Run(ctx context.Context, spec domain.PipelineSpec) (entries []domain.DigestEntry, err error) {
	logger := p.logger.With(
		"run_id", uuid.NewString(),
		"pipeline", spec.Name,
		"persona", spec.Persona.Name,
	)
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("pipeline panicked", "panic", r)
			entries, err = nil, nil
		}
	}()

	items := p.fetch(ctx, spec, logger)
	logger.Info("fetched candidates", "count", len(items))
	if len(items) == 0 {
		logger.Info("no items fetched")
		return nil, nil
	}

	filtered := prefilter.Filter(items, prefilter.Options{
		Keywords:      spec.Keywords,
		MinEngagement: spec.MinEngagement,
		MinLength:     spec.MinLength,
	})
	logger.Info("after prefilter", "count", len(filtered))
	if len(filtered) == 0 {
		return nil, nil
	}

	detector := p.detector.WithPersona(spec.Persona.Name)
	unique, err := detector.FilterBatch(ctx, filtered)
	if err != nil {
		logger.Error("deduplication failed", "error", err)
		return nil, fmt.Errorf("filter duplicates: %w", err)
	}
	logger.Info("after deduplication", "count", len(unique))
	if len(unique) == 0 {
		return nil, nil
	}

	candidates := make([]selector.Candidate, len(unique))
	for i, item := range unique {
		candidates[i] = selector.Candidate{Title: item.Title, Content: item.Content, URL: item.URL}
	}

	results, err := p.selector.SelectTop(ctx, spec.Persona, candidates, spec.TopK)
	if err != nil {
		logger.Error("batch selection failed", "error", err)
		return nil, nil
	}

	entries = make([]domain.DigestEntry, 0, len(results))
	for _, result := range results {
		item := unique[result.CandidateIndex]

		entry, aErr := Assemble(spec, item, result)
		if aErr != nil {
			logger.Warn("skipping selection", "url", item.URL, "error", aErr)
			continue
		}

		if _, rErr := detector.RecordSent(ctx, item.URL, item.Title, spec.Persona.Name, entry.Score, item.Content); rErr != nil {
			logger.Error("recording digest entry failed", "url", item.URL, "recorded", len(entries), "error", rErr)
			return entries, fmt.Errorf("record %s: %w", item.URL, rErr)
		}

		entries = append(entries, entry)
		logger.Info("included item", "title", entry.Title, "score", entry.Score, "validated", result.Validated)
	}

	logger.Info("pipeline complete", "entries", len(entries), "elapsed", time.Since(started).Round(time.Millisecond))
	return entries, nil
}

// fetch queries every source concurrently and merges results in declaration order.
func (p *Pipeline) fetch(ctx context.Context, spec domain.PipelineSpec, logger *slog.Logger) []domain.CandidateItem {
	window := time.Duration(spec.FetchWindowHours) * time.Hour

	sources := make([]ports.Source, 0, len(spec.Sources))
	for _, s := range spec.Sources {
		src, err := p.sources.Build(s)
		if err != nil {
			logger.Error("cannot build source", "type", s.Type, "name", s.Name, "error", err)
			continue
		}
		sources = append(sources, src)
	}

	results := make([][]domain.CandidateItem, len(sources))
	var g errgroup.Group
	g.SetLimit(p.concurrency)

	for i, src := range sources {
		g.Go(func() error {
			items, err := fetchOne(ctx, src, window)
			if err != nil {
				logger.Error("source failed", "source", src.Name(), "error", err)
				return nil
			}
			logger.Debug("source fetched", "source", src.Name(), "count", len(items))
			results[i] = items
			return nil
		})
	}
	_ = g.Wait()

	var merged []domain.CandidateItem
	for _, items := range results {
		merged = append(merged, items...)
	}
	return merged
}

func fetchOne(ctx context.Context, src ports.Source, window time.Duration) (items []domain.CandidateItem, err error) {
	defer func() {
		if r := recover(); r != nil {
			items, err = nil, fmt.Errorf("%w: %s panicked: %v", domain.ErrSource, src.Name(), r)
		}
	}()

	items, err = src.Fetch(ctx, window)
	if err != nil && !errors.Is(err, domain.ErrSource) {
		err = fmt.Errorf("%w: %s: %w", domain.ErrSource, src.Name(), err)
	}
	return items, err
}
