// Package selector ranks a batch of candidates with one text-generation call.
package selector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"IntelDigest/internal/domain"
	"IntelDigest/internal/ports"
)

// Candidate is one batch entry; its id is its position in the batch.
type Candidate struct {
	Title   string
	Content string
	URL     string
}

// Selector issues the batch prompt and turns the answer into evaluation results.
type Selector struct {
	gen    ports.TextGenerator
	logger *slog.Logger
}

// New builds a selector bound to a text generator.
func New(gen ports.TextGenerator, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{gen: gen, logger: logger}
}

// SelectTop asks the model for the best topK candidates and returns at most topK
// results in the model's order. Unknown or repeated ids are dropped; fields failing the
// persona schema are kept raw with Validated=false.
func (s *Selector) SelectTop(ctx context.Context, persona domain.Persona, candidates []Candidate, topK int) ([]domain.EvaluationResult, error) {
	if topK < 1 {
		return nil, fmt.Errorf("%w: topK must be at least 1, got %d", domain.ErrValidation, topK)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	prompt := BuildPrompt(persona, candidates, topK)
	gen, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		if errors.Is(err, domain.ErrGeneration) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrGeneration, err)
	}

	s.logger.Info("batch evaluated",
		"persona", persona.Name,
		"candidates", len(candidates),
		"latency_ms", gen.Latency.Milliseconds(),
	)

	objects, err := DecodeArray(gen.Content)
	if err != nil {
		s.logger.Error("unparseable model output", "persona", persona.Name, "error", err, "raw", truncate(gen.Content, 500))
		return nil, err
	}

	results := make([]domain.EvaluationResult, 0, min(topK, len(objects)))
	used := make(map[int]struct{}, len(objects))

	for _, obj := range objects {
		if len(results) == topK {
			break
		}

		rawID := obj["id"]
		idx, ok := resolveID(rawID, len(candidates))
		if !ok {
			s.logger.Warn("dropping selection with invalid id", "persona", persona.Name, "id", rawID)
			continue
		}
		if _, dup := used[idx]; dup {
			s.logger.Warn("dropping repeated selection", "persona", persona.Name, "id", idx)
			continue
		}
		used[idx] = struct{}{}

		fields := make(map[string]any, len(obj))
		for k, v := range obj {
			if k != "id" {
				fields[k] = v
			}
		}

		validated := true
		if err := persona.Validate(fields); err != nil {
			validated = false
			s.logger.Warn("selection failed schema, keeping raw fields",
				"persona", persona.Name,
				"id", idx,
				"error", err,
			)
		}

		results = append(results, domain.EvaluationResult{
			CandidateIndex: idx,
			Fields:         fields,
			Decision:       domain.DecisionInclude,
			Validated:      validated,
		})
	}

	return results, nil
}

// resolveID accepts numeric strings and integral numbers inside [0, n).
func resolveID(raw any, n int) (int, bool) {
	var idx int
	switch v := raw.(type) {
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		idx = parsed
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		idx = int(v)
	default:
		return 0, false
	}
	if idx < 0 || idx >= n {
		return 0, false
	}
	return idx, true
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
