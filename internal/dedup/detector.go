// Package dedup decides whether a candidate repeats something already delivered
// inside the retention window, by exact URL and by embedding similarity.
package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"IntelDigest/internal/domain"
	"IntelDigest/internal/ports"
)

const (
	DefaultWindow    = 48 * time.Hour
	DefaultThreshold = 0.85

	ReasonExactURL = "exact_url_match"

	maxNeighbors = 10
)

// Scope selects how dedup state is partitioned between personas.
type Scope string

const (
	// ScopeGlobal shares dedup state across every persona.
	ScopeGlobal Scope = "global"
	// ScopePersona keeps a separate dedup history per persona.
	ScopePersona Scope = "persona"
)

// Config tunes a Detector.
type Config struct {
	Window    time.Duration
	Threshold float64
	Scope     Scope
	Now       func() time.Time
}

// Detector combines the durable store (exact URL) with the similarity index (semantic).
type Detector struct {
	store     ports.DedupStore
	index     ports.SimilarityIndex
	embedder  ports.Embedder
	window    time.Duration
	threshold float64
	scope     Scope
	persona   string
	now       func() time.Time
	logger    *slog.Logger
}

// NewDetector wires the collaborators; zero config values fall back to defaults.
func NewDetector(store ports.DedupStore, index ports.SimilarityIndex, embedder ports.Embedder, cfg Config, logger *slog.Logger) *Detector {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Scope == "" {
		cfg.Scope = ScopeGlobal
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if embedder == nil {
		embedder = NewHashEmbedder(DefaultDimensions)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		store:     store,
		index:     index,
		embedder:  embedder,
		window:    cfg.Window,
		threshold: cfg.Threshold,
		scope:     cfg.Scope,
		now:       cfg.Now,
		logger:    logger,
	}
}

// WithPersona returns a detector whose lookups run in the persona's scope.
// Under ScopeGlobal the persona only annotates records.
func (d *Detector) WithPersona(persona string) *Detector {
	clone := *d
	clone.persona = persona
	clone.logger = d.logger.With("persona", persona)
	return &clone
}

func (d *Detector) scopeKey(persona string) string {
	if d.scope == ScopePersona {
		return persona
	}
	return ""
}

func (d *Detector) since() time.Time {
	return d.now().Add(-d.window)
}

// IsDuplicate reports whether the item repeats a delivery inside the window.
// A broken store or index yields an error, never a silent "not duplicate".
func (d *Detector) IsDuplicate(ctx context.Context, url, title, content string) (bool, string, error) {
	scope := d.scopeKey(d.persona)
	since := d.since()

	sent, err := d.store.IsURLSent(ctx, scope, url, since)
	if err != nil {
		return false, "", fmt.Errorf("exact url lookup: %w", err)
	}
	if sent {
		return true, ReasonExactURL, nil
	}

	size := d.index.Len()
	if size == 0 {
		return false, "", nil
	}

	recent, err := d.store.RecentIndexIDs(ctx, scope, since)
	if err != nil {
		return false, "", fmt.Errorf("recent index ids: %w", err)
	}
	if len(recent) == 0 {
		return false, "", nil
	}

	vec, err := d.embedder.Embed(ctx, EmbeddingText(title, content))
	if err != nil {
		return false, "", domain.NewStorageError("embed", err)
	}

	neighbors, err := d.index.Search(vec, min(maxNeighbors, size))
	if err != nil {
		return false, "", fmt.Errorf("similarity search: %w", err)
	}

	for _, n := range neighbors {
		if _, ok := recent[n.ID]; !ok {
			continue
		}
		if n.Score >= d.threshold {
			return true, fmt.Sprintf("similar_content_%.3f", n.Score), nil
		}
	}

	return false, "", nil
}

// RecordSent appends the item's embedding to the index, persists a record pointing at
// the new index id, then flushes the index. The index write happens before the record
// that references it.
func (d *Detector) RecordSent(ctx context.Context, url, title, persona string, score float64, content string) (int64, error) {
	vec, err := d.embedder.Embed(ctx, EmbeddingText(title, content))
	if err != nil {
		return 0, domain.NewStorageError("embed", err)
	}

	indexID, err := d.index.Add(vec)
	if err != nil {
		return 0, fmt.Errorf("index add: %w", err)
	}

	recordID, err := d.store.Record(ctx, domain.DedupRecord{
		Scope:   d.scopeKey(persona),
		URL:     url,
		Title:   title,
		Persona: persona,
		Score:   score,
		IndexID: indexID,
		SentAt:  d.now().UTC(),
	})
	if err != nil {
		return 0, fmt.Errorf("record %s: %w", url, err)
	}

	if err := d.index.Persist(); err != nil {
		return 0, fmt.Errorf("index persist: %w", err)
	}

	d.logger.Debug("recorded digest", "url", url, "record_id", recordID, "index_id", indexID)
	return recordID, nil
}

// FilterBatch drops items without a URL, items repeating a URL seen earlier in the same
// batch, and items already delivered. Input order is preserved.
func (d *Detector) FilterBatch(ctx context.Context, items []domain.CandidateItem) ([]domain.CandidateItem, error) {
	seen := make(map[string]struct{}, len(items))
	unique := make([]domain.CandidateItem, 0, len(items))

	for _, item := range items {
		if item.URL == "" {
			d.logger.Debug("dropping item without url", "title", item.Title, "source", item.Source)
			continue
		}
		if _, ok := seen[item.URL]; ok {
			d.logger.Debug("dropping in-batch duplicate", "url", item.URL)
			continue
		}
		seen[item.URL] = struct{}{}

		dup, reason, err := d.IsDuplicate(ctx, item.URL, item.Title, item.Content)
		if err != nil {
			return nil, err
		}
		if dup {
			d.logger.Debug("dropping duplicate", "url", item.URL, "reason", reason)
			continue
		}
		unique = append(unique, item)
	}

	return unique, nil
}
