package feeds

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"IntelDigest/internal/domain"
	"IntelDigest/internal/ports"
)

const (
	arxivBaseURL  = "https://arxiv.org"
	arxivPageSize = 200
)

var dateExpr = regexp.MustCompile(`\d{1,2} [A-Za-z]{3} \d{4}`)

// ArxivSource crawls arXiv category listing pages.
type ArxivSource struct {
	name       string
	categories []string
	client     *Client
	pageSize   int
	now        func() time.Time
}

var _ ports.Source = (*ArxivSource)(nil)

// NewArxivSource builds a source over listing URLs such as
// https://arxiv.org/list/cs.AI/recent. Bare category names are expanded.
func NewArxivSource(client *Client, name string, categories []string) (*ArxivSource, error) {
	if len(categories) == 0 {
		return nil, errors.New("arxiv source requires at least one category")
	}
	if name == "" {
		name = domain.SourceArxiv
	}
	if client == nil {
		client = NewClient(nil, 0, "")
	}

	urls := make([]string, 0, len(categories))
	for _, c := range categories {
		c = strings.TrimSpace(c)
		if !strings.HasPrefix(c, "http") {
			c = fmt.Sprintf("%s/list/%s/recent", arxivBaseURL, c)
		}
		urls = append(urls, c)
	}
	return &ArxivSource{name: name, categories: urls, client: client, pageSize: arxivPageSize, now: time.Now}, nil
}

// Name identifies the source.
func (a *ArxivSource) Name() string {
	return a.name
}

// Fetch walks each category and returns entries listed on or after the first day of window.
// Listings carry dates only, so the window is rounded down to a whole UTC day.
func (a *ArxivSource) Fetch(ctx context.Context, window time.Duration) ([]domain.CandidateItem, error) {
	firstDay := cutoff(a.now(), window).UTC().Truncate(24 * time.Hour)
	results := make([]domain.CandidateItem, 0)
	seen := map[string]struct{}{}

	for _, categoryURL := range a.categories {
		skip := 0
		for {
			pageURL, err := buildPageURL(categoryURL, skip, a.pageSize)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %w", domain.ErrSource, a.name, err)
			}

			doc, err := a.fetchDocument(ctx, pageURL)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %w", domain.ErrSource, a.name, err)
			}

			page, more := a.extractItems(doc, firstDay)
			for _, item := range page {
				if _, ok := seen[item.ExternalID]; ok {
					continue
				}
				seen[item.ExternalID] = struct{}{}
				results = append(results, item)
			}

			if !more {
				break
			}
			skip += a.pageSize
		}
	}

	return results, nil
}

func (a *ArxivSource) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	body, err := a.client.get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

func (a *ArxivSource) extractItems(doc *goquery.Document, firstDay time.Time) ([]domain.CandidateItem, bool) {
	var (
		collected []domain.CandidateItem
		more      = true
		processed int
	)

	doc.Find("dl > dt").EachWithBreak(func(_ int, dt *goquery.Selection) bool {
		processed++

		item, day := parseEntry(dt, dt.Next(), a.name)
		if day.Before(firstDay) {
			more = false
			return false
		}
		collected = append(collected, item)
		return true
	})

	if processed < a.pageSize {
		more = false
	}
	return collected, more
}

// parseEntry reads one dt/dd pair. Entries without a parsable date are dated today.
func parseEntry(dt, dd *goquery.Selection, source string) (domain.CandidateItem, time.Time) {
	link := dt.Find(`a[href*="/abs/"]`).First()
	href, _ := link.Attr("href")

	id := strings.TrimSpace(link.Text())
	if id == "" {
		id = strings.TrimPrefix(href, "/abs/")
	}
	if href != "" && !strings.HasPrefix(href, "http") {
		href = arxivBaseURL + href
	}
	if id == "" {
		id = href
	}

	title := strings.TrimSpace(dd.Find(".list-title").First().Text())
	title = strings.TrimSpace(strings.TrimPrefix(title, "Title:"))

	abstract := dd.Find("p.mathjax").First().Text()
	abstract = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(abstract), "Abstract:"))

	dateText := strings.TrimSpace(dd.Find(".list-date").First().Text())
	if dateText == "" {
		dateText = strings.TrimSpace(dd.Find(".list-dateline").First().Text())
	}

	day := time.Now().UTC().Truncate(24 * time.Hour)
	if match := dateExpr.FindString(dateText); match != "" {
		if parsed, err := time.Parse("2 Jan 2006", match); err == nil {
			day = parsed
		}
	}

	return domain.CandidateItem{
		Source:      source,
		ExternalID:  id,
		Title:       title,
		Content:     strings.Join(strings.Fields(abstract), " "),
		URL:         href,
		PublishedAt: published(day),
	}, day
}

func buildPageURL(base string, skip, pageSize int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid category url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("skip", strconv.Itoa(skip))
	query.Set("show", strconv.Itoa(pageSize))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
