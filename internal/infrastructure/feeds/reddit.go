package feeds

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"IntelDigest/internal/domain"
	"IntelDigest/internal/ports"
)

const (
	redditBaseURL   = "https://www.reddit.com"
	redditPageLimit = 50
)

// RedditSource reads the newest posts of one subreddit through the public JSON listing.
type RedditSource struct {
	subreddit string
	baseURL   string
	client    *Client
	now       func() time.Time
}

var _ ports.Source = (*RedditSource)(nil)

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Selftext   string  `json:"selftext"`
	Permalink  string  `json:"permalink"`
	CreatedUTC float64 `json:"created_utc"`
	Score      float64 `json:"score"`
}

// NewRedditSource builds a source for subreddit (without the r/ prefix).
func NewRedditSource(client *Client, subreddit string) (*RedditSource, error) {
	subreddit = strings.TrimPrefix(strings.TrimSpace(subreddit), "r/")
	if subreddit == "" {
		return nil, errors.New("reddit source requires a subreddit")
	}
	if client == nil {
		client = NewClient(nil, 0, "")
	}
	return &RedditSource{subreddit: subreddit, baseURL: redditBaseURL, client: client, now: time.Now}, nil
}

// Name identifies the source as reddit/<subreddit>.
func (s *RedditSource) Name() string {
	return "reddit/" + s.subreddit
}

// Fetch returns posts created inside window; engagement is the post score.
func (s *RedditSource) Fetch(ctx context.Context, window time.Duration) ([]domain.CandidateItem, error) {
	endpoint := fmt.Sprintf("%s/r/%s/new.json?limit=%d", s.baseURL, url.PathEscape(s.subreddit), redditPageLimit)

	var listing redditListing
	if err := s.client.getJSON(ctx, endpoint, &listing); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrSource, s.Name(), err)
	}

	since := cutoff(s.now(), window)
	items := make([]domain.CandidateItem, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		post := child.Data
		created := time.Unix(int64(post.CreatedUTC), 0).UTC()
		if created.Before(since) {
			continue
		}

		items = append(items, domain.CandidateItem{
			Source:          s.Name(),
			ExternalID:      post.ID,
			Title:           strings.TrimSpace(post.Title),
			Content:         post.Selftext,
			URL:             "https://reddit.com" + post.Permalink,
			PublishedAt:     published(created),
			EngagementScore: domain.Engagement(post.Score),
		})
	}
	return items, nil
}
