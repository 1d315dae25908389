package ports

import (
	"context"
	"time"

	"IntelDigest/internal/domain"
)

// Source pulls candidate items published inside the fetch window.
type Source interface {
	Name() string
	Fetch(ctx context.Context, window time.Duration) ([]domain.CandidateItem, error)
}

// Generation is the raw answer of a text-generation call.
type Generation struct {
	Content string
	Latency time.Duration
}

// TextGenerator issues a single prompt to an LLM.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (Generation, error)
}

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Neighbor is one similarity-index hit; Score is the inner product of normalized vectors.
type Neighbor struct {
	ID    int64
	Score float64
}

// SimilarityIndex is an append-only vector store with sequential ids.
type SimilarityIndex interface {
	Add(vector []float32) (int64, error)
	Search(vector []float32, k int) ([]Neighbor, error)
	Len() int
	Persist() error
}

// DedupStore persists delivered items for windowed duplicate lookups.
type DedupStore interface {
	IsURLSent(ctx context.Context, scope, url string, since time.Time) (bool, error)
	RecentIndexIDs(ctx context.Context, scope string, since time.Time) (map[int64]struct{}, error)
	Record(ctx context.Context, rec domain.DedupRecord) (int64, error)
	Recent(ctx context.Context, since time.Time, persona string) ([]domain.DedupRecord, error)
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
	MaxIndexID(ctx context.Context) (int64, error)
}

// Deliverer hands a finished digest to an outbound channel (file, Telegram, etc.).
type Deliverer interface {
	Name() string
	Deliver(ctx context.Context, persona, digestDate string, entries []domain.DigestEntry) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
