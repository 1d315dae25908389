package filedelivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"IntelDigest/internal/domain"
	"IntelDigest/internal/ports"
)

// Writer stores each digest as <persona>_<date>.json and .md under a directory.
type Writer struct {
	dir string
}

var _ ports.Deliverer = (*Writer)(nil)

// New creates the output directory when missing.
func New(dir string) (*Writer, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("file delivery requires an output directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Writer{dir: dir}, nil
}

// Name identifies the delivery channel.
func (w *Writer) Name() string {
	return "file"
}

// Deliver writes the JSON and Markdown renditions. Existing files for the same day are replaced.
func (w *Writer) Deliver(_ context.Context, persona, digestDate string, entries []domain.DigestEntry) error {
	base := filepath.Join(w.dir, fmt.Sprintf("%s_%s", persona, digestDate))

	if entries == nil {
		entries = []domain.DigestEntry{}
	}
	payload, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal digest: %w", err)
	}
	if err := writeFile(base+".json", payload); err != nil {
		return err
	}

	return writeFile(base+".md", []byte(Markdown(persona, digestDate, entries)))
}

// Markdown renders a digest for humans.
func Markdown(persona, digestDate string, entries []domain.DigestEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s Digest - %s\n\n", persona, digestDate)

	for _, e := range entries {
		fmt.Fprintf(&b, "## %s\n", e.Title)
		if e.Summary != "" {
			fmt.Fprintf(&b, "%s\n", e.Summary)
		}
		fmt.Fprintf(&b, "**Why it matters:** %s\n", e.WhyItMatters)
		fmt.Fprintf(&b, "**Audience:** %s\n", e.Audience)
		fmt.Fprintf(&b, "**Score:** %.2f\n\n", e.Score)
		for _, u := range e.SourceURLs {
			fmt.Fprintf(&b, "- %s\n", u)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// writeFile replaces path atomically through a temp file in the same directory.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
