package display

import (
	"strings"
	"testing"
	"time"

	"NewsBoard/internal/domain"
)

func TestTerminalFormatterItem(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.November, 8, 12, 0, 0, 0, time.UTC)
	f := &TerminalFormatter{MaxTitle: 20, now: func() time.Time { return now }}

	out := f.FormatItem(domain.ContentItem{
		Title:        "Monsoon arrives early",
		DisplayTitle: "मानसून जल्दी आया",
		Source:       "india",
		PublishedAt:  now.Add(-2 * time.Hour),
		Image:        "https://img/1.jpg",
		ImageLoading: true,
		Flags:        domain.Flags{Breaking: true},
	})

	for _, want := range []string{"[BREAKING]", "मानसून जल्दी आया", "india", "2 hours ago", "image loading"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output %q lacks %q", out, want)
		}
	}
}

func TestTerminalFormatterBoard(t *testing.T) {
	t.Parallel()

	f := NewTerminalFormatter()
	failed := domain.PanelFrame{Panel: "business", Title: "Business", Rank: 3, Failed: true}
	empty := domain.PanelFrame{Panel: "tech", Title: "Tech", Rank: 4}
	full := frame("s", "latest", 0, 1, "1", "2")

	out := f.FormatBoard([]domain.PanelFrame{full, failed, empty})
	for _, want := range []string{"== latest (#0, 2 stories) ==", "story 2", "content unavailable", "No stories to display."} {
		if !strings.Contains(out, want) {
			t.Fatalf("board output lacks %q:\n%s", want, out)
		}
	}
	if f.FormatBoard(nil) != "No panels to display.\n" {
		t.Fatalf("unexpected empty board output")
	}
}

func TestTruncateTextCountsRunes(t *testing.T) {
	t.Parallel()

	f := NewTerminalFormatter()
	if got := f.TruncateText("मानसून जल्दी", 6); got != "मान..." {
		t.Fatalf("unexpected truncation %q", got)
	}
	if got := f.TruncateText("short", 10); got != "short" {
		t.Fatalf("unexpected truncation %q", got)
	}
	if got := f.TruncateText("anything", 2); got != "..." {
		t.Fatalf("unexpected truncation %q", got)
	}
}
