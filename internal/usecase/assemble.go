package usecase

import (
	"errors"
	"strings"

	"IntelDigest/internal/domain"
)

const summaryRunes = 400

// Assemble maps one selection onto a digest entry.
func Assemble(spec domain.PipelineSpec, item domain.CandidateItem, result domain.EvaluationResult) (domain.DigestEntry, error) {
	if strings.TrimSpace(item.URL) == "" {
		return domain.DigestEntry{}, errors.New("candidate has no source url")
	}

	audience := spec.DefaultAudience
	if v, ok := result.Fields["target_audience"].(string); ok && strings.TrimSpace(v) != "" {
		audience = strings.TrimSpace(v)
	}

	scoreField := spec.ScoreField
	if scoreField == "" {
		scoreField = spec.Persona.ScoreField
	}

	return domain.DigestEntry{
		Title:        strings.TrimSpace(item.Title),
		Summary:      strings.TrimSpace(firstRunes(item.Content, summaryRunes)),
		WhyItMatters: spec.WhyItMatters.Resolve(result.Fields, spec.WhyItMattersFallback),
		Audience:     audience,
		SourceURLs:   []string{item.URL},
		Score:        score(result.Fields[scoreField]),
	}, nil
}

func score(v any) float64 {
	switch s := v.(type) {
	case float64:
		return s
	case int:
		return float64(s)
	default:
		return 0
	}
}

func firstRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
