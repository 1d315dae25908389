package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	_ "time/tzdata"

	"IntelDigest/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(configPathEnv, "")
	t.Setenv(databaseDSNEnv, "")
	t.Setenv(llmModelEnv, "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Dedup.WindowHours != 48 || cfg.Dedup.SimilarityThreshold != 0.85 || cfg.Dedup.Scope != "global" {
		t.Fatalf("unexpected dedup defaults: %+v", cfg.Dedup)
	}
	if cfg.Scheduler.RunHour() != 8 {
		t.Fatalf("expected default hour 8, got %d", cfg.Scheduler.RunHour())
	}

	specs, err := cfg.PipelineSpecs()
	if err != nil {
		t.Fatalf("pipeline specs: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("expected 2 default pipelines, got %d", len(specs))
	}
	if specs[0].ScoreField != "relevance_score" || specs[1].ScoreField != "reusability_score" {
		t.Fatalf("score fields not inherited from personas: %q %q", specs[0].ScoreField, specs[1].ScoreField)
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
database:
  dsn: /tmp/custom.db
scheduler:
  hour: 0
  timezone: Europe/Berlin
dedup:
  scope: persona
personas:
  - name: SECURITY
    description: security advisories
    scoreField: severity
    fields:
      - name: severity
        type: float01
      - name: summary
        type: string
      - name: kind
        type: enum
        values: [cve, advisory]
pipelines:
  - name: sec
    persona: SECURITY
    topK: 3
    whyItMattersField: summary
    sources:
      - type: rss
        feeds: [https://example.org/feed]
      - type: hackernews
        enabled: false
  - name: ideas
    persona: PRODUCT_IDEAS
    whyItMattersField: [problem_statement, solution_summary]
    whyItMattersSeparator: " / "
  - name: off
    persona: GENAI_NEWS
    enabled: false
`)
	t.Setenv(databaseDSNEnv, "postgres://localhost/digest")
	t.Setenv(llmModelEnv, "qwen2.5")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.DSN != "postgres://localhost/digest" {
		t.Fatalf("env override not applied: %q", cfg.Database.DSN)
	}
	if cfg.LLM.Model != "qwen2.5" {
		t.Fatalf("model override not applied: %q", cfg.LLM.Model)
	}
	if cfg.Scheduler.RunHour() != 0 {
		t.Fatalf("explicit midnight lost: %d", cfg.Scheduler.RunHour())
	}
	if cfg.Scheduler.Location().String() != "Europe/Berlin" {
		t.Fatalf("timezone not bound: %s", cfg.Scheduler.Location())
	}

	specs, err := cfg.PipelineSpecs()
	if err != nil {
		t.Fatalf("pipeline specs: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("expected disabled pipeline to be skipped, got %d specs", len(specs))
	}

	sec := specs[0]
	if sec.Persona.Name != "SECURITY" || sec.TopK != 3 || sec.ScoreField != "severity" {
		t.Fatalf("unexpected custom pipeline: %+v", sec)
	}
	if len(sec.Sources) != 1 || sec.Sources[0].Type != domain.SourceRSS {
		t.Fatalf("expected only the enabled rss source, got %+v", sec.Sources)
	}
	if got := sec.WhyItMatters.Resolve(map[string]any{"summary": " patched "}, "fb"); got != "patched" {
		t.Fatalf("single field selector resolved to %q", got)
	}

	ideas := specs[1]
	fields := map[string]any{"problem_statement": "slow builds", "solution_summary": "remote cache"}
	if got := ideas.WhyItMatters.Resolve(fields, "fb"); got != "slow builds / remote cache" {
		t.Fatalf("concat selector resolved to %q", got)
	}
	if ideas.TopK != defaultTopK || ideas.FetchWindowHours != defaultFetchHours {
		t.Fatalf("defaults not applied: %+v", ideas)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := map[string]string{
		"unknown persona": `
pipelines:
  - name: x
    persona: NOPE
`,
		"unknown source": `
pipelines:
  - name: x
    persona: GENAI_NEWS
    sources:
      - type: gopher
`,
		"negative topK": `
pipelines:
  - name: x
    persona: GENAI_NEWS
    topK: -1
`,
		"bad scope": `
dedup:
  scope: team
`,
		"bad why field": `
pipelines:
  - name: x
    persona: GENAI_NEWS
    whyItMattersField: {a: b}
`,
	}

	for name, body := range cases {
		path := writeConfig(t, body)
		if _, err := Load(path); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestValidateWrapsValidationError(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	cfg.Dedup.Scope = "everyone"
	if err := cfg.Validate(); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
