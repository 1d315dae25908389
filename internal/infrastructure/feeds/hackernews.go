package feeds

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"IntelDigest/internal/domain"
	"IntelDigest/internal/ports"
)

const (
	hackerNewsBaseURL  = "https://hacker-news.firebaseio.com/v0"
	hackerNewsItemURL  = "https://news.ycombinator.com/item?id="
	hackerNewsMaxItems = 200
	hackerNewsWorkers  = 8
)

// HackerNewsSource reads the newest Hacker News stories through the Firebase API.
type HackerNewsSource struct {
	baseURL  string
	client   *Client
	limiter  *rate.Limiter
	maxItems int
	now      func() time.Time
}

var _ ports.Source = (*HackerNewsSource)(nil)

type hnItem struct {
	ID    int64   `json:"id"`
	Type  string  `json:"type"`
	Title string  `json:"title"`
	Text  string  `json:"text"`
	URL   string  `json:"url"`
	Time  int64   `json:"time"`
	Score float64 `json:"score"`
	Dead  bool    `json:"dead"`
}

// NewHackerNewsSource builds the source; item lookups are limited to ~20 per second.
func NewHackerNewsSource(client *Client) *HackerNewsSource {
	if client == nil {
		client = NewClient(nil, 0, "")
	}
	return &HackerNewsSource{
		baseURL:  hackerNewsBaseURL,
		client:   client,
		limiter:  rate.NewLimiter(rate.Every(50*time.Millisecond), hackerNewsWorkers),
		maxItems: hackerNewsMaxItems,
		now:      time.Now,
	}
}

// Name identifies the source.
func (s *HackerNewsSource) Name() string {
	return domain.SourceHackerNews
}

// Fetch returns stories created inside window in newstories order. Individual item
// failures are skipped.
func (s *HackerNewsSource) Fetch(ctx context.Context, window time.Duration) ([]domain.CandidateItem, error) {
	var ids []int64
	if err := s.client.getJSON(ctx, s.baseURL+"/newstories.json", &ids); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrSource, s.Name(), err)
	}
	if len(ids) > s.maxItems {
		ids = ids[:s.maxItems]
	}

	since := cutoff(s.now(), window)
	slots := make([]*domain.CandidateItem, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(hackerNewsWorkers)
	for i, id := range ids {
		g.Go(func() error {
			if err := s.limiter.Wait(gctx); err != nil {
				return err
			}
			var item hnItem
			if err := s.client.getJSON(gctx, fmt.Sprintf("%s/item/%d.json", s.baseURL, id), &item); err != nil {
				return nil
			}
			slots[i] = s.convert(item, since)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrSource, s.Name(), err)
	}

	items := make([]domain.CandidateItem, 0, len(slots))
	for _, item := range slots {
		if item != nil {
			items = append(items, *item)
		}
	}
	return items, nil
}

func (s *HackerNewsSource) convert(item hnItem, since time.Time) *domain.CandidateItem {
	if item.Type != "story" || item.Dead {
		return nil
	}
	created := time.Unix(item.Time, 0).UTC()
	if created.Before(since) {
		return nil
	}

	link := strings.TrimSpace(item.URL)
	if link == "" {
		link = fmt.Sprintf("%s%d", hackerNewsItemURL, item.ID)
	}

	return &domain.CandidateItem{
		Source:          s.Name(),
		ExternalID:      fmt.Sprint(item.ID),
		Title:           strings.TrimSpace(item.Title),
		Content:         plainText(item.Text),
		URL:             link,
		PublishedAt:     published(created),
		EngagementScore: domain.Engagement(item.Score),
	}
}
