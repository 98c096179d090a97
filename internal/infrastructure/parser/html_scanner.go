package parser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"NewsBoard/internal/domain"
	"NewsBoard/internal/scanner"
)

const (
	defaultItemSelector  = "article"
	defaultTitleSelector = "h1, h2, h3, .title"
	defaultMaxPages      = 3
)

// HTMLScanner crawls section listing pages and extracts story candidates.
// Selectors come from panel options: item, title, link, image, idAttr.
type HTMLScanner struct {
	client   *http.Client
	maxPages int
}

// NewHTMLScanner wires an HTTP client; at most three pages are walked.
func NewHTMLScanner(client *http.Client) *HTMLScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &HTMLScanner{client: client, maxPages: defaultMaxPages}
}

// Name identifies the strategy inside the registry.
func (h *HTMLScanner) Name() string {
	return "html"
}

// Scan walks listing pages until the limit is met or a page comes back empty.
func (h *HTMLScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.ContentItem, error) {
	if req.URL == "" {
		return nil, fmt.Errorf("no listing url provided for panel %s", req.PanelKey)
	}

	maxPages := h.maxPages
	if v, err := strconv.Atoi(req.Option("maxPages", "")); err == nil && v > 0 {
		maxPages = v
	}

	results := make([]domain.ContentItem, 0)
	seen := map[string]struct{}{}

	for page := 1; page <= maxPages; page++ {
		pageURL, err := buildPageURL(req.URL, page)
		if err != nil {
			return nil, fmt.Errorf("panel %s: %w", req.PanelKey, err)
		}

		doc, err := h.fetchDocument(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("panel %s: %w", req.PanelKey, err)
		}

		pageItems := extractItems(doc, pageURL, req)
		if len(pageItems) == 0 {
			break
		}
		for _, item := range pageItems {
			key := item.Key()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			results = append(results, item)
		}

		if req.Limit > 0 && len(results) >= req.Limit {
			break
		}
	}

	return scanner.Truncate(results, req.Limit), nil
}

func (h *HTMLScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "NewsBoard/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

func extractItems(doc *goquery.Document, pageURL string, req scanner.Request) []domain.ContentItem {
	base, _ := url.Parse(pageURL)
	var collected []domain.ContentItem

	doc.Find(req.Option("item", defaultItemSelector)).Each(func(_ int, sel *goquery.Selection) {
		item, ok := parseEntry(sel, base, req)
		if ok {
			collected = append(collected, item)
		}
	})

	return collected
}

func parseEntry(sel *goquery.Selection, base *url.URL, req scanner.Request) (domain.ContentItem, bool) {
	title := strings.Join(strings.Fields(sel.Find(req.Option("title", defaultTitleSelector)).First().Text()), " ")
	if title == "" {
		return domain.ContentItem{}, false
	}

	link := sel.Find(req.Option("link", "a[href]")).First()
	href, _ := link.Attr("href")

	image := ""
	if img := sel.Find(req.Option("image", "img")).First(); img.Length() > 0 {
		image, _ = img.Attr("src")
		if image == "" {
			image, _ = img.Attr("data-src")
		}
	}

	id, _ := sel.Attr(req.Option("idAttr", "data-id"))

	var publishedAt time.Time
	if stamp, ok := sel.Find("time[datetime]").First().Attr("datetime"); ok {
		publishedAt, _ = time.Parse(time.RFC3339, stamp)
	}

	return domain.ContentItem{
		ID:          domain.NormalizeID(id),
		Title:       title,
		URL:         resolve(base, href),
		Image:       resolve(base, image),
		Source:      req.Option("source", req.PanelKey),
		PublishedAt: publishedAt,
		Flags: domain.Flags{
			Breaking: sel.HasClass("breaking"),
			Trending: sel.HasClass("trending"),
			Featured: sel.HasClass("featured"),
		},
	}, true
}

func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || base == nil {
		return ref
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(parsed).String()
}

func buildPageURL(base string, page int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid listing url %s: %w", base, err)
	}
	if page <= 1 {
		return parsed.String(), nil
	}

	query := parsed.Query()
	query.Set("page", strconv.Itoa(page))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
