package dedup

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"IntelDigest/internal/domain"
	"IntelDigest/internal/ports"
)

type memStore struct {
	mu      sync.Mutex
	records []domain.DedupRecord
	err     error
}

func (s *memStore) IsURLSent(_ context.Context, scope, url string, since time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	for _, r := range s.records {
		if r.Scope == scope && r.URL == url && !r.SentAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) RecentIndexIDs(_ context.Context, scope string, since time.Time) (map[int64]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	ids := map[int64]struct{}{}
	for _, r := range s.records {
		if r.Scope == scope && !r.SentAt.Before(since) {
			ids[r.IndexID] = struct{}{}
		}
	}
	return ids, nil
}

func (s *memStore) Record(_ context.Context, rec domain.DedupRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	for i, r := range s.records {
		if r.Scope == rec.Scope && r.URL == rec.URL {
			rec.ID = r.ID
			s.records[i] = rec
			return rec.ID, nil
		}
	}
	rec.ID = int64(len(s.records) + 1)
	s.records = append(s.records, rec)
	return rec.ID, nil
}

func (s *memStore) Recent(context.Context, time.Time, string) ([]domain.DedupRecord, error) {
	return nil, nil
}

func (s *memStore) PurgeBefore(context.Context, time.Time) (int64, error) { return 0, nil }

func (s *memStore) MaxIndexID(context.Context) (int64, error) { return -1, nil }

type memIndex struct {
	vectors  [][]float64
	persists int
}

func normalize(v []float32) []float64 {
	out := make([]float64, len(v))
	var sum float64
	for i, x := range v {
		out[i] = float64(x)
		sum += out[i] * out[i]
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return out
	}
	for i := range out {
		out[i] /= norm
	}
	return out
}

func (m *memIndex) Add(v []float32) (int64, error) {
	m.vectors = append(m.vectors, normalize(v))
	return int64(len(m.vectors) - 1), nil
}

func (m *memIndex) Search(v []float32, k int) ([]ports.Neighbor, error) {
	q := normalize(v)
	out := make([]ports.Neighbor, 0, len(m.vectors))
	for id, vec := range m.vectors {
		var dot float64
		for i := range vec {
			dot += vec[i] * q[i]
		}
		out = append(out, ports.Neighbor{ID: int64(id), Score: dot})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (m *memIndex) Len() int { return len(m.vectors) }

func (m *memIndex) Persist() error {
	m.persists++
	return nil
}

// titleEmbedder returns a fixed vector for every text that starts with a known title.
type titleEmbedder map[string][]float32

func (e titleEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	for title, vec := range e {
		if strings.HasPrefix(text, title+" ") {
			return vec, nil
		}
	}
	return []float32{0, 0, 1}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestRecordThenExactURLMatch(t *testing.T) {
	t.Parallel()

	store := &memStore{}
	index := &memIndex{}
	det := NewDetector(store, index, nil, Config{}, quietLogger())
	ctx := context.Background()

	if _, err := det.RecordSent(ctx, "https://x/1", "Title", "genai_news", 0.9, "body"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if index.persists != 1 {
		t.Fatalf("expected index persist after record, got %d", index.persists)
	}

	dup, reason, err := det.IsDuplicate(ctx, "https://x/1", "Completely different", "other")
	if err != nil {
		t.Fatalf("is duplicate: %v", err)
	}
	if !dup || reason != ReasonExactURL {
		t.Fatalf("expected exact url match, got %v %q", dup, reason)
	}
}

func TestSemanticDuplicate(t *testing.T) {
	t.Parallel()

	embedder := titleEmbedder{
		"Alpha": {1, 0, 0},
		"Beta":  {0.9, float32(math.Sqrt(0.19)), 0},
	}
	det := NewDetector(&memStore{}, &memIndex{}, embedder, Config{}, quietLogger())
	ctx := context.Background()

	if _, err := det.RecordSent(ctx, "https://a", "Alpha", "p", 0.8, "content"); err != nil {
		t.Fatalf("record: %v", err)
	}

	dup, reason, err := det.IsDuplicate(ctx, "https://b", "Beta", "content")
	if err != nil {
		t.Fatalf("is duplicate: %v", err)
	}
	if !dup {
		t.Fatal("expected semantic duplicate")
	}
	if reason != "similar_content_0.900" {
		t.Fatalf("unexpected reason %q", reason)
	}
}

func TestBelowThresholdIsNotDuplicate(t *testing.T) {
	t.Parallel()

	embedder := titleEmbedder{
		"Alpha": {1, 0, 0},
		"Gamma": {0.5, 0.8660254, 0},
	}
	det := NewDetector(&memStore{}, &memIndex{}, embedder, Config{}, quietLogger())
	ctx := context.Background()

	if _, err := det.RecordSent(ctx, "https://a", "Alpha", "p", 0.8, ""); err != nil {
		t.Fatalf("record: %v", err)
	}
	dup, _, err := det.IsDuplicate(ctx, "https://g", "Gamma", "")
	if err != nil {
		t.Fatalf("is duplicate: %v", err)
	}
	if dup {
		t.Fatal("similarity 0.5 must not be a duplicate")
	}
}

func TestWindowExpiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &memStore{}
	index := &memIndex{}
	embedder := titleEmbedder{"Alpha": {1, 0, 0}}

	old := NewDetector(store, index, embedder, Config{Now: fixedClock(now.Add(-72 * time.Hour))}, quietLogger())
	if _, err := old.RecordSent(context.Background(), "https://a", "Alpha", "p", 0.7, ""); err != nil {
		t.Fatalf("record: %v", err)
	}

	det := NewDetector(store, index, embedder, Config{Now: fixedClock(now)}, quietLogger())
	dup, reason, err := det.IsDuplicate(context.Background(), "https://a", "Alpha", "")
	if err != nil {
		t.Fatalf("is duplicate: %v", err)
	}
	if dup {
		t.Fatalf("record outside the window must not match, got %q", reason)
	}
}

func TestPersonaScope(t *testing.T) {
	t.Parallel()

	store := &memStore{}
	det := NewDetector(store, &memIndex{}, nil, Config{Scope: ScopePersona}, quietLogger())
	ctx := context.Background()

	if _, err := det.RecordSent(ctx, "https://shared", "Shared", "genai_news", 0.9, ""); err != nil {
		t.Fatalf("record: %v", err)
	}

	dup, _, err := det.WithPersona("product_ideas").IsDuplicate(ctx, "https://shared", "Shared", "")
	if err != nil {
		t.Fatalf("is duplicate: %v", err)
	}
	if dup {
		t.Fatal("other persona must not see the record under persona scope")
	}

	dup, _, err = det.WithPersona("genai_news").IsDuplicate(ctx, "https://shared", "Shared", "")
	if err != nil {
		t.Fatalf("is duplicate: %v", err)
	}
	if !dup {
		t.Fatal("same persona must see the record")
	}
}

func TestFilterBatchDropsInBatchRepeats(t *testing.T) {
	t.Parallel()

	det := NewDetector(&memStore{}, &memIndex{}, nil, Config{}, quietLogger())
	items := []domain.CandidateItem{
		{URL: "u1", Title: "first"},
		{URL: "u2", Title: "second"},
		{URL: "u1", Title: "first again"},
		{URL: "", Title: "no url"},
	}

	got, err := det.FilterBatch(context.Background(), items)
	if err != nil {
		t.Fatalf("filter batch: %v", err)
	}
	if len(got) != 2 || got[0].URL != "u1" || got[0].Title != "first" || got[1].URL != "u2" {
		t.Fatalf("unexpected batch result: %+v", got)
	}
}

func TestStorageErrorPropagates(t *testing.T) {
	t.Parallel()

	store := &memStore{err: domain.NewStorageError("query", errors.New("disk gone"))}
	det := NewDetector(store, &memIndex{}, nil, Config{}, quietLogger())

	_, err := det.FilterBatch(context.Background(), []domain.CandidateItem{{URL: "u1", Title: "t"}})
	if !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestHashEmbedderDeterministic(t *testing.T) {
	t.Parallel()

	e := NewHashEmbedder(0)
	a, _ := e.Embed(context.Background(), "  Hello World ")
	b, _ := e.Embed(context.Background(), "hello world")
	if len(a) != DefaultDimensions {
		t.Fatalf("expected %d dims, got %d", DefaultDimensions, len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("dimension %d differs after normalization", i)
		}
		if a[i] < -1 || a[i] > 1 {
			t.Fatalf("dimension %d out of range: %v", i, a[i])
		}
	}
}

func TestEmbeddingTextTruncatesContent(t *testing.T) {
	t.Parallel()

	got := EmbeddingText("T", strings.Repeat("é", 300))
	want := "T T " + strings.Repeat("é", 200)
	if got != want {
		t.Fatalf("unexpected embedding text length %d", len([]rune(got)))
	}
}
