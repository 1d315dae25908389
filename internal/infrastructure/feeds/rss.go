package feeds

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"IntelDigest/internal/domain"
	"IntelDigest/internal/ports"
)

// ProductHuntFeed is the public Product Hunt launch feed.
const ProductHuntFeed = "https://www.producthunt.com/feed"

// RSSSource reads one or more RSS/Atom feeds.
type RSSSource struct {
	name   string
	feeds  []string
	client *Client
	now    func() time.Time
}

var _ ports.Source = (*RSSSource)(nil)

// NewRSSSource builds a source over the given feed URLs.
func NewRSSSource(client *Client, name string, feeds []string) (*RSSSource, error) {
	if len(feeds) == 0 {
		return nil, errors.New("rss source requires at least one feed")
	}
	if name == "" {
		name = domain.SourceRSS
	}
	if client == nil {
		client = NewClient(nil, 0, "")
	}
	return &RSSSource{name: name, feeds: append([]string(nil), feeds...), client: client, now: time.Now}, nil
}

// NewProductHunt is the RSS preset over the Product Hunt feed.
func NewProductHunt(client *Client) *RSSSource {
	src, _ := NewRSSSource(client, domain.SourceProductHunt, []string{ProductHuntFeed})
	return src
}

// Name identifies the source in logs and on items.
func (s *RSSSource) Name() string {
	return s.name
}

// Fetch parses every feed and keeps entries published inside window. A failing feed is
// skipped; an error is returned only when no feed could be read.
func (s *RSSSource) Fetch(ctx context.Context, window time.Duration) ([]domain.CandidateItem, error) {
	since := cutoff(s.now(), window)
	parser := gofeed.NewParser()

	var (
		items    []domain.CandidateItem
		failures []error
	)
	for _, url := range s.feeds {
		feed, err := s.parse(ctx, parser, url)
		if err != nil {
			failures = append(failures, err)
			continue
		}

		for _, entry := range feed.Items {
			item, ok := s.convert(entry, since)
			if ok {
				items = append(items, item)
			}
		}
	}

	if len(failures) == len(s.feeds) {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrSource, s.name, errors.Join(failures...))
	}
	return items, nil
}

func (s *RSSSource) parse(ctx context.Context, parser *gofeed.Parser, url string) (*gofeed.Feed, error) {
	body, err := s.client.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	feed, err := parser.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", url, err)
	}
	return feed, nil
}

func (s *RSSSource) convert(entry *gofeed.Item, since time.Time) (domain.CandidateItem, bool) {
	var at *time.Time
	switch {
	case entry.PublishedParsed != nil:
		at = published(*entry.PublishedParsed)
	case entry.UpdatedParsed != nil:
		at = published(*entry.UpdatedParsed)
	}
	if at != nil && at.Before(since) {
		return domain.CandidateItem{}, false
	}

	body := entry.Description
	if strings.TrimSpace(body) == "" {
		body = entry.Content
	}

	return domain.CandidateItem{
		Source:      s.name,
		ExternalID:  entry.GUID,
		Title:       strings.TrimSpace(entry.Title),
		Content:     plainText(body),
		URL:         strings.TrimSpace(entry.Link),
		PublishedAt: at,
	}, true
}
