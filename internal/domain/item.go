package domain

import "time"

// CandidateItem is one ingested unit produced by a source. Treat it as immutable.
type CandidateItem struct {
	Source          string
	ExternalID      string
	Title           string
	Content         string
	URL             string
	PublishedAt     *time.Time
	EngagementScore *float64
}

// Engagement returns a pointer to v; handy for sources and tests.
func Engagement(v float64) *float64 {
	return &v
}

// DigestEntry is the output unit handed to delivery.
type DigestEntry struct {
	Title        string   `json:"title"`
	Summary      string   `json:"summary"`
	WhyItMatters string   `json:"why_it_matters"`
	Audience     string   `json:"audience"`
	SourceURLs   []string `json:"source_urls"`
	Score        float64  `json:"score"`
}

// DecisionInclude is the only decision the batch selector emits; rejection is implicit.
const DecisionInclude = "include"

// EvaluationResult is the model output for one selected candidate.
type EvaluationResult struct {
	CandidateIndex int
	Fields         map[string]any
	Decision       string
	// Validated is false when the fields failed the persona schema and were kept raw.
	Validated bool
}

// DedupRecord is the persisted fact that a URL was delivered.
type DedupRecord struct {
	ID      int64
	Scope   string
	URL     string
	Title   string
	Persona string
	Score   float64
	IndexID int64
	SentAt  time.Time
}
