package domain

import "strings"

// Source types understood by the source registry.
const (
	SourceRSS         = "rss"
	SourceProductHunt = "producthunt"
	SourceReddit      = "reddit"
	SourceHackerNews  = "hackernews"
	SourceArxiv       = "arxiv"
)

// SourceTypes lists every supported source type.
func SourceTypes() []string {
	return []string{SourceRSS, SourceProductHunt, SourceReddit, SourceHackerNews, SourceArxiv}
}

// SourceSpec describes one configured source of a pipeline.
type SourceSpec struct {
	Type      string
	Name      string
	Subreddit string
	Feeds     []string
	Options   map[string]string
}

// PipelineSpec is the per-persona run configuration. The core never mutates it.
type PipelineSpec struct {
	Name                 string
	Persona              Persona
	FetchWindowHours     int
	Keywords             []string
	MinEngagement        *float64
	MinLength            int
	TopK                 int
	ScoreField           string
	WhyItMatters         WhyItMattersSelector
	WhyItMattersFallback string
	DefaultAudience      string
	Sources              []SourceSpec
}

// WhyItMattersSelector picks the "why it matters" text out of evaluation fields.
// It is either a single field or an ordered concatenation of fields.
type WhyItMattersSelector struct {
	fields    []string
	separator string
	concat    bool
}

// SingleField selects one field verbatim.
func SingleField(name string) WhyItMattersSelector {
	return WhyItMattersSelector{fields: []string{name}}
}

// ConcatFields joins the non-empty values of names with separator.
func ConcatFields(names []string, separator string) WhyItMattersSelector {
	if separator == "" {
		separator = " "
	}
	return WhyItMattersSelector{fields: append([]string(nil), names...), separator: separator, concat: true}
}

// Fields lists the field names the selector reads.
func (s WhyItMattersSelector) Fields() []string {
	return append([]string(nil), s.fields...)
}

// Resolve builds the text, returning fallback when nothing usable is present.
func (s WhyItMattersSelector) Resolve(fields map[string]any, fallback string) string {
	if !s.concat {
		if len(s.fields) == 0 {
			return fallback
		}
		if v, ok := fields[s.fields[0]].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return fallback
	}

	parts := make([]string, 0, len(s.fields))
	for _, name := range s.fields {
		if v, ok := fields[name].(string); ok {
			if v = strings.TrimSpace(v); v != "" {
				parts = append(parts, v)
			}
		}
	}
	if len(parts) == 0 {
		return fallback
	}
	return strings.Join(parts, s.separator)
}
