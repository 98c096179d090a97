package display

import (
	"fmt"
	"strings"
	"time"

	"NewsBoard/internal/domain"
)

const separator = " • "

// TerminalFormatter formats board frames for terminal display.
type TerminalFormatter struct {
	// MaxTitle truncates headlines; zero keeps them whole.
	MaxTitle int
	now      func() time.Time
}

// NewTerminalFormatter creates a new terminal formatter.
func NewTerminalFormatter() *TerminalFormatter {
	return &TerminalFormatter{MaxTitle: 96, now: time.Now}
}

// FormatItem formats a single story line.
func (f *TerminalFormatter) FormatItem(item domain.ContentItem) string {
	var badges []string
	if item.Flags.Breaking {
		badges = append(badges, "BREAKING")
	}
	if item.Flags.Trending {
		badges = append(badges, "TRENDING")
	}
	if item.Flags.Featured {
		badges = append(badges, "FEATURED")
	}

	header := f.TruncateText(item.Label(), f.MaxTitle)
	if len(badges) > 0 {
		header = "[" + strings.Join(badges, "|") + "] " + header
	}

	var meta []string
	if item.Source != "" {
		meta = append(meta, item.Source)
	}
	if !item.PublishedAt.IsZero() {
		meta = append(meta, f.FormatTimestamp(item.PublishedAt))
	}
	switch {
	case item.ImageLoading:
		meta = append(meta, "image loading")
	case item.Image != "":
		meta = append(meta, "image")
	}

	line := "  " + header
	if len(meta) > 0 {
		line += "\n    " + strings.Join(meta, separator)
	}
	return line + "\n"
}

// FormatFrame formats one panel.
func (f *TerminalFormatter) FormatFrame(frame domain.PanelFrame) string {
	var b strings.Builder
	fmt.Fprintf(&b, "== %s (#%d, %d stories) ==\n", frame.Title, frame.Rank, len(frame.Items))
	if frame.Failed {
		b.WriteString("  content unavailable\n")
		return b.String()
	}
	if len(frame.Items) == 0 {
		b.WriteString("  No stories to display.\n")
		return b.String()
	}
	for _, item := range frame.Items {
		b.WriteString(f.FormatItem(item))
	}
	return b.String()
}

// FormatBoard formats every panel in the given order.
func (f *TerminalFormatter) FormatBoard(frames []domain.PanelFrame) string {
	if len(frames) == 0 {
		return "No panels to display.\n"
	}

	formatted := make([]string, 0, len(frames))
	for _, frame := range frames {
		formatted = append(formatted, f.FormatFrame(frame))
	}
	return strings.Join(formatted, "\n")
}

// FormatTimestamp formats a timestamp as relative time.
func (f *TerminalFormatter) FormatTimestamp(t time.Time) string {
	now := time.Now
	if f.now != nil {
		now = f.now
	}
	diff := now().Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return pluralize(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return pluralize(int(diff.Hours()), "hour")
	case diff < 7*24*time.Hour:
		return pluralize(int(diff.Hours()/24), "day")
	default:
		return t.Format("Jan 2, 2006")
	}
}

func pluralize(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// TruncateText truncates text to maxLen runes, adding "..." if truncated.
func (f *TerminalFormatter) TruncateText(text string, maxLen int) string {
	runes := []rune(text)
	if maxLen <= 0 || len(runes) <= maxLen {
		return text
	}
	if maxLen <= 3 {
		return "..."
	}
	return string(runes[:maxLen-3]) + "..."
}
