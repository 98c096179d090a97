package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"NewsBoard/internal/scanner"
)

const sportsFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Sports Desk</title>
  <item>
    <title>Cup final goes to extra time</title>
    <link>https://example.org/sports/1</link>
    <guid>sports-1</guid>
    <pubDate>Sat, 08 Nov 2025 10:00:00 GMT</pubDate>
    <category>breaking</category>
    <enclosure url="https://example.org/img/1.jpg" type="image/jpeg" length="100"/>
  </item>
  <item>
    <title>Transfer window opens</title>
    <link>https://example.org/sports/2</link>
  </item>
  <item>
    <title>   </title>
  </item>
</channel>
</rss>`

const cricketFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Cricket</title>
  <item>
    <title>Cup final goes to extra time</title>
    <guid>sports-1</guid>
  </item>
  <item>
    <title>Test series squad named</title>
    <guid>cricket-9</guid>
  </item>
</channel>
</rss>`

func newFeedServer() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/sports.xml", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sportsFeed))
	})
	mux.HandleFunc("/cricket.xml", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(cricketFeed))
	})
	mux.HandleFunc("/broken.xml", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	})
	return httptest.NewServer(mux)
}

func TestRSSScannerMergesFeeds(t *testing.T) {
	t.Parallel()

	server := newFeedServer()
	defer server.Close()

	items, err := NewRSSScanner(server.Client()).Scan(context.Background(), scanner.Request{
		PanelKey: "sports",
		Limit:    10,
		URL:      server.URL + "/sports.xml",
		Options:  map[string]string{"feeds": server.URL + "/broken.xml, " + server.URL + "/cricket.xml"},
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(items) != 3 {
		t.Fatalf("expected 3 unique items, got %d: %+v", len(items), items)
	}
	first := items[0]
	if first.ID != "sports-1" || first.Source != "Sports Desk" || !first.Flags.Breaking {
		t.Fatalf("unexpected first item: %+v", first)
	}
	if first.Image != "https://example.org/img/1.jpg" || first.PublishedAt.IsZero() {
		t.Fatalf("expected image and date: %+v", first)
	}
	if items[1].ID != "" || items[1].Title != "Transfer window opens" {
		t.Fatalf("item without guid must stay id-less: %+v", items[1])
	}
	if items[2].ID != "cricket-9" {
		t.Fatalf("unexpected third item: %+v", items[2])
	}
}

func TestRSSScannerKeywordsAndLimit(t *testing.T) {
	t.Parallel()

	server := newFeedServer()
	defer server.Close()

	items, err := NewRSSScanner(server.Client()).Scan(context.Background(), scanner.Request{
		PanelKey: "sports",
		Limit:    1,
		URL:      server.URL + "/sports.xml",
		Options:  map[string]string{"keywords": "transfer", "source": "desk"},
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(items) != 1 || items[0].Title != "Transfer window opens" || items[0].Source != "desk" {
		t.Fatalf("unexpected items: %+v", items)
	}
}

func TestRSSScannerFailsWhenNothingLoads(t *testing.T) {
	t.Parallel()

	server := newFeedServer()
	defer server.Close()

	_, err := NewRSSScanner(server.Client()).Scan(context.Background(), scanner.Request{
		PanelKey: "tech",
		URL:      server.URL + "/broken.xml",
	})
	if err == nil {
		t.Fatalf("expected error for unreadable feed")
	}
}
