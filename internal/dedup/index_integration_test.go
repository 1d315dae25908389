package dedup

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"IntelDigest/internal/infrastructure/index"
)

func TestRepostUnderNewURLIsCaughtAfterReload(t *testing.T) {
	t.Parallel()

	const items = 250
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "digest.hnsw")
	store := &memStore{}
	cfg := Config{Now: fixedClock(time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC))}

	idx, err := index.Open(path, DefaultDimensions)
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	detector := NewDetector(store, idx, nil, cfg, quietLogger())

	title := func(i int) string { return fmt.Sprintf("Release notes %d for the inference runtime", i) }
	content := func(i int) string { return strings.Repeat(fmt.Sprintf("changelog entry %d. ", i), 10) }

	for i := 0; i < items; i++ {
		if _, err := detector.RecordSent(ctx, fmt.Sprintf("https://example.org/%d", i), title(i), "GENAI_NEWS", 0.9, content(i)); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close index: %v", err)
	}

	reopened, err := index.Open(path, DefaultDimensions)
	if err != nil {
		t.Fatalf("reopen index: %v", err)
	}
	defer reopened.Close()
	if reopened.Len() != items {
		t.Fatalf("expected %d vectors after reload, got %d", items, reopened.Len())
	}

	detector = NewDetector(store, reopened, nil, cfg, quietLogger())
	var missed []int
	for i := 0; i < items; i++ {
		dup, reason, err := detector.IsDuplicate(ctx, fmt.Sprintf("https://mirror.example.net/%d", i), title(i), content(i))
		if err != nil {
			t.Fatalf("is duplicate %d: %v", i, err)
		}
		if !dup || reason != "similar_content_1.000" {
			missed = append(missed, i)
		}
	}
	if len(missed) != 0 {
		t.Fatalf("reposts not caught as duplicates: %v", missed)
	}

	dup, _, err := detector.IsDuplicate(ctx, "https://example.org/fresh", "Unrelated launch", "brand new content")
	if err != nil {
		t.Fatalf("fresh item: %v", err)
	}
	if dup {
		t.Fatal("fresh item must not be flagged")
	}
}
