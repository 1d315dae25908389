package sources

import (
	"context"
	"errors"
	"testing"
	"time"

	"IntelDigest/internal/domain"
	"IntelDigest/internal/ports"
)

type namedSource string

func (n namedSource) Name() string { return string(n) }

func (n namedSource) Fetch(context.Context, time.Duration) ([]domain.CandidateItem, error) {
	return nil, nil
}

func TestRegistryBuild(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register("Reddit", func(spec domain.SourceSpec) (ports.Source, error) {
		if spec.Subreddit == "" {
			return nil, errors.New("subreddit is required")
		}
		return namedSource("reddit/" + spec.Subreddit), nil
	})

	src, err := reg.Build(domain.SourceSpec{Type: "reddit", Subreddit: "golang"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if src.Name() != "reddit/golang" {
		t.Fatalf("unexpected source %s", src.Name())
	}

	if _, err := reg.Build(domain.SourceSpec{Type: "reddit"}); err == nil {
		t.Fatal("expected factory error to surface")
	}
	if _, err := reg.Build(domain.SourceSpec{Type: "gopher"}); err == nil {
		t.Fatal("expected error for unregistered type")
	}

	if types := reg.Types(); len(types) != 1 || types[0] != "reddit" {
		t.Fatalf("unexpected types %v", types)
	}
}

func TestZeroRegistryRegister(t *testing.T) {
	t.Parallel()

	var reg Registry
	reg.Register("rss", func(domain.SourceSpec) (ports.Source, error) { return namedSource("rss"), nil })
	if _, err := reg.Resolve("RSS"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
}
