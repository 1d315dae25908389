package feeds

import (
	"IntelDigest/internal/domain"
	"IntelDigest/internal/ports"
	"IntelDigest/internal/sources"
)

// Register installs a factory for every built-in source type.
func Register(reg *sources.Registry, client *Client) {
	reg.Register(domain.SourceRSS, func(spec domain.SourceSpec) (ports.Source, error) {
		return NewRSSSource(client, spec.Name, spec.Feeds)
	})
	reg.Register(domain.SourceProductHunt, func(spec domain.SourceSpec) (ports.Source, error) {
		if len(spec.Feeds) > 0 {
			return NewRSSSource(client, domain.SourceProductHunt, spec.Feeds)
		}
		return NewProductHunt(client), nil
	})
	reg.Register(domain.SourceReddit, func(spec domain.SourceSpec) (ports.Source, error) {
		return NewRedditSource(client, spec.Subreddit)
	})
	reg.Register(domain.SourceHackerNews, func(domain.SourceSpec) (ports.Source, error) {
		return NewHackerNewsSource(client), nil
	})
	reg.Register(domain.SourceArxiv, func(spec domain.SourceSpec) (ports.Source, error) {
		categories := spec.Feeds
		if c := spec.Options["category"]; c != "" {
			categories = append(append([]string(nil), categories...), c)
		}
		return NewArxivSource(client, spec.Name, categories)
	})
}
