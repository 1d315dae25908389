package filedelivery

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"IntelDigest/internal/domain"
)

func TestWriterDeliver(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "digests")
	w, err := New(dir)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}

	entries := []domain.DigestEntry{{
		Title:        "Shipping faster",
		Summary:      "A CI tool.",
		WhyItMatters: "slow deploys",
		Audience:     "founder",
		SourceURLs:   []string{"https://example.org/p"},
		Score:        0.75,
	}}
	if err := w.Deliver(context.Background(), "PRODUCT_IDEAS", "2026-03-14", entries); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "PRODUCT_IDEAS_2026-03-14.json"))
	if err != nil {
		t.Fatalf("read json: %v", err)
	}
	var decoded []map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if len(decoded) != 1 || decoded[0]["why_it_matters"] != "slow deploys" || decoded[0]["score"] != 0.75 {
		t.Fatalf("unexpected json %s", raw)
	}

	md, err := os.ReadFile(filepath.Join(dir, "PRODUCT_IDEAS_2026-03-14.md"))
	if err != nil {
		t.Fatalf("read markdown: %v", err)
	}
	for _, want := range []string{"# PRODUCT_IDEAS Digest - 2026-03-14", "## Shipping faster", "**Why it matters:** slow deploys", "**Audience:** founder", "- https://example.org/p"} {
		if !strings.Contains(string(md), want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}

	leftovers, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if len(leftovers) != 0 {
		t.Fatalf("temp files left behind: %v", leftovers)
	}
}

func TestNewRequiresDir(t *testing.T) {
	t.Parallel()

	if _, err := New("  "); err == nil {
		t.Fatal("expected error for empty dir")
	}
}
