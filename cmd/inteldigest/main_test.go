package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"IntelDigest/internal/domain"
	"IntelDigest/internal/infrastructure/storage"
	"IntelDigest/internal/usecase"
)

func writeTestConfig(t *testing.T, dsn string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "database:\n  dsn: " + dsn + "\nlogging:\n  level: error\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func seedStore(t *testing.T, dsn string, records ...domain.DedupRecord) {
	t.Helper()

	repo, err := storage.Open(context.Background(), dsn)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer repo.Close()

	for _, rec := range records {
		if _, err := repo.Record(context.Background(), rec); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestHistoryCommand(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "digest.db")
	now := time.Now()
	seedStore(t, dsn,
		domain.DedupRecord{URL: "https://a/1", Title: "Fresh GenAI item", Persona: "GENAI_NEWS", Score: 0.91, IndexID: 0, SentAt: now.Add(-time.Hour)},
		domain.DedupRecord{URL: "https://b/1", Title: "Product launch", Persona: "PRODUCT_IDEAS", Score: 0.5, IndexID: 1, SentAt: now.Add(-2 * time.Hour)},
		domain.DedupRecord{URL: "https://c/1", Title: "Last week", Persona: "GENAI_NEWS", Score: 0.7, IndexID: 2, SentAt: now.Add(-7 * 24 * time.Hour)},
	)
	cfgPath := writeTestConfig(t, dsn)

	out, err := execute(t, "history", "--config", cfgPath, "--persona", "GENAI_NEWS")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "Fresh GenAI item") || !strings.Contains(out, "0.91") {
		t.Fatalf("history output missing record:\n%s", out)
	}
	if strings.Contains(out, "Product launch") || strings.Contains(out, "Last week") {
		t.Fatalf("history output not filtered:\n%s", out)
	}

	out, err = execute(t, "history", "--config", cfgPath, "--hours", "1", "--persona", "NOBODY")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "No digest items") {
		t.Fatalf("expected empty notice, got:\n%s", out)
	}
}

func TestPruneCommand(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "digest.db")
	now := time.Now()
	seedStore(t, dsn,
		domain.DedupRecord{URL: "https://a/1", Title: "recent", Persona: "GENAI_NEWS", IndexID: 0, SentAt: now.Add(-time.Hour)},
		domain.DedupRecord{URL: "https://a/2", Title: "ancient", Persona: "GENAI_NEWS", IndexID: 1, SentAt: now.AddDate(0, 0, -40)},
	)
	cfgPath := writeTestConfig(t, dsn)

	out, err := execute(t, "prune", "--config", cfgPath)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if !strings.Contains(out, "Removed 1 records older than 30 days.") {
		t.Fatalf("unexpected prune output %q", out)
	}

	if _, err := execute(t, "prune", "--config", cfgPath, "--days", "0"); err == nil {
		t.Fatal("expected error for zero days")
	}
}

func TestSummaryRows(t *testing.T) {
	t.Parallel()

	reports := []usecase.RunReport{
		{Pipeline: "genai_news", Persona: "GENAI_NEWS", Entries: make([]domain.DigestEntry, 2), Delivered: []string{"file", "telegram"}},
		{Pipeline: "product_ideas", Persona: "PRODUCT_IDEAS"},
		{Pipeline: "broken", Persona: "GENAI_NEWS", Err: errors.New("storage down")},
	}
	rows := summaryRows(reports)

	want := [][]string{
		{"genai_news", "GENAI_NEWS", "2", "file, telegram", "ok"},
		{"product_ideas", "PRODUCT_IDEAS", "0", "-", "empty"},
		{"broken", "GENAI_NEWS", "0", "-", "failed: storage down"},
	}
	for i := range want {
		if strings.Join(rows[i], "|") != strings.Join(want[i], "|") {
			t.Fatalf("row %d = %v, want %v", i, rows[i], want[i])
		}
	}

	table := renderTable([]string{"Pipeline", "Persona", "Entries", "Delivered", "Status"}, rows, nil)
	if !strings.Contains(table, "product_ideas") || !strings.Contains(strings.ToUpper(table), "PIPELINE") {
		t.Fatalf("unexpected table:\n%s", table)
	}
}
