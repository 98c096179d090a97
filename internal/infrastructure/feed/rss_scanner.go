// Package feed turns RSS and Atom feeds into panel candidates.
package feed

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/samber/lo"

	"NewsBoard/internal/domain"
	"NewsBoard/internal/scanner"
)

// RSSScanner pulls one or more feeds per panel. The panel url is the first
// feed; the "feeds" option adds more, comma separated. Items keep feed order,
// and the GUID becomes the id when the feed provides one.
type RSSScanner struct {
	Client *http.Client
}

var _ scanner.Scanner = (*RSSScanner)(nil)

// NewRSSScanner builds a scanner with a 15s client.
func NewRSSScanner(client *http.Client) *RSSScanner {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &RSSScanner{Client: client}
}

// Name identifies the strategy inside the registry.
func (r *RSSScanner) Name() string {
	return "rss"
}

// Scan reads every feed of the panel. A feed that cannot be read fails the
// scan only when nothing else produced items.
func (r *RSSScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.ContentItem, error) {
	feeds := feedURLs(req)
	if len(feeds) == 0 {
		return nil, fmt.Errorf("no feed url provided for panel %s", req.PanelKey)
	}
	keywords := strings.Fields(strings.ToLower(req.Option("keywords", "")))

	parser := gofeed.NewParser()
	out := make([]domain.ContentItem, 0, max(req.Limit, 0))
	var firstErr error

	for _, feedURL := range feeds {
		if req.Limit > 0 && len(out) >= req.Limit {
			break
		}

		feed, err := r.fetch(ctx, parser, feedURL)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		for _, it := range feed.Items {
			title := strings.TrimSpace(it.Title)
			if title == "" || !matchesAnyKeyword(strings.ToLower(title), keywords) {
				continue
			}
			out = append(out, toItem(it, feed, req))
		}
	}

	if len(out) == 0 && firstErr != nil {
		return nil, firstErr
	}
	out = lo.UniqBy(out, func(item domain.ContentItem) string { return item.Key() })
	return scanner.Truncate(out, req.Limit), nil
}

func (r *RSSScanner) fetch(ctx context.Context, parser *gofeed.Parser, feedURL string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request feed %s: %w", feedURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed %s returned %s", feedURL, resp.Status)
	}

	feed, err := parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}
	return feed, nil
}

func toItem(it *gofeed.Item, feed *gofeed.Feed, req scanner.Request) domain.ContentItem {
	var pub time.Time
	if it.PublishedParsed != nil {
		pub = *it.PublishedParsed
	} else if it.UpdatedParsed != nil {
		pub = *it.UpdatedParsed
	}

	source := req.Option("source", strings.TrimSpace(feed.Title))
	return domain.ContentItem{
		ID:          domain.NormalizeID(it.GUID),
		Title:       strings.TrimSpace(it.Title),
		URL:         strings.TrimSpace(it.Link),
		Image:       imageOf(it),
		Source:      source,
		PublishedAt: pub,
		Flags: domain.Flags{
			Breaking: lo.Contains(it.Categories, "breaking"),
		},
	}
}

func imageOf(it *gofeed.Item) string {
	if it.Image != nil && it.Image.URL != "" {
		return it.Image.URL
	}
	enclosure, ok := lo.Find(it.Enclosures, func(e *gofeed.Enclosure) bool {
		return e != nil && strings.HasPrefix(e.Type, "image/")
	})
	if ok {
		return enclosure.URL
	}
	return ""
}

func feedURLs(req scanner.Request) []string {
	urls := []string{req.URL}
	urls = append(urls, strings.Split(req.Option("feeds", ""), ",")...)
	urls = lo.Map(urls, func(u string, _ int) string { return strings.TrimSpace(u) })
	return lo.Uniq(lo.Compact(urls))
}

func matchesAnyKeyword(text string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	for _, k := range keywords {
		if len(k) < 3 {
			continue
		}
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
