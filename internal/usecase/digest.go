package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"IntelDigest/internal/domain"
	"IntelDigest/internal/ports"
)

// RunReport summarizes one pipeline execution and its deliveries.
type RunReport struct {
	Pipeline  string
	Persona   string
	Entries   []domain.DigestEntry
	Delivered []string
	Err       error
}

// Runner executes pipelines in turn and hands each digest to every deliverer.
type Runner struct {
	pipeline   *Pipeline
	deliverers []ports.Deliverer
	logger     *slog.Logger
	now        func() time.Time
}

// NewRunner wires the pipeline with its delivery channels.
func NewRunner(pipeline *Pipeline, deliverers []ports.Deliverer, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{pipeline: pipeline, deliverers: deliverers, logger: logger, now: time.Now}
}

// RunAll executes every spec. A failing pipeline never stops the others; the joined
// failures are returned next to the per-pipeline reports. Entries a failed run already
// recorded as sent are delivered anyway.
func (r *Runner) RunAll(ctx context.Context, specs []domain.PipelineSpec) ([]RunReport, error) {
	digestDate := r.now().Format("2006-01-02")
	reports := make([]RunReport, 0, len(specs))
	var failures []error

	for _, spec := range specs {
		if err := ctx.Err(); err != nil {
			failures = append(failures, err)
			break
		}

		report := RunReport{Pipeline: spec.Name, Persona: spec.Persona.Name}
		entries, err := r.pipeline.Run(ctx, spec)
		if err != nil {
			report.Err = err
			failures = append(failures, fmt.Errorf("pipeline %s: %w", spec.Name, err))
		}
		report.Entries = entries

		if len(entries) > 0 {
			report.Delivered = r.deliver(ctx, spec.Persona.Name, digestDate, entries)
		}
		reports = append(reports, report)
	}

	return reports, errors.Join(failures...)
}

func (r *Runner) deliver(ctx context.Context, persona, digestDate string, entries []domain.DigestEntry) []string {
	var delivered []string
	for _, d := range r.deliverers {
		if err := d.Deliver(ctx, persona, digestDate, entries); err != nil {
			r.logger.Error("delivery failed", "channel", d.Name(), "persona", persona, "error", err)
			continue
		}
		delivered = append(delivered, d.Name())
	}
	return delivered
}
