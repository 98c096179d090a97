package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const syntheticPrefix = "t:"

// Flags carries the editorial badges attached to a story.
type Flags struct {
	Trending bool `json:"trending" msgpack:"trending"`
	Breaking bool `json:"breaking" msgpack:"breaking"`
	Featured bool `json:"featured" msgpack:"featured"`
}

// ContentItem is a single story candidate as seen by the board. An empty ID
// means the item has no stable identity and is never deduplicated by id.
type ContentItem struct {
	ID           string    `json:"id,omitempty" msgpack:"id,omitempty"`
	Title        string    `json:"title" msgpack:"title"`
	DisplayTitle string    `json:"displayTitle,omitempty" msgpack:"display_title,omitempty"`
	Image        string    `json:"image,omitempty" msgpack:"image,omitempty"`
	ImageLoading bool      `json:"imageLoading" msgpack:"image_loading"`
	URL          string    `json:"url,omitempty" msgpack:"url,omitempty"`
	Source       string    `json:"source,omitempty" msgpack:"source,omitempty"`
	PublishedAt  time.Time `json:"publishedAt" msgpack:"published_at"`
	Flags        Flags     `json:"flags" msgpack:"flags"`
}

// Key identifies a displayed slot: the id when present, the synthetic title
// id otherwise, so the key survives EnsureIDs.
func (c ContentItem) Key() string {
	if id := NormalizeID(c.ID); id != "" {
		return id
	}
	return SyntheticID(c.Title)
}

// Label returns the display title, or the source title while unresolved.
func (c ContentItem) Label() string {
	if c.DisplayTitle != "" {
		return c.DisplayTitle
	}
	return c.Title
}

// NormalizeID coerces raw identifiers (strings, integers, floats, json.Number)
// into their comparable string form. Unknown or nil values yield "".
func NormalizeID(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(id)
	case json.Number:
		if n, err := id.Int64(); err == nil {
			return strconv.FormatInt(n, 10)
		}
		if f, err := id.Float64(); err == nil {
			return NormalizeID(f)
		}
		return NormalizeID(string(id))
	case int:
		return strconv.Itoa(id)
	case int32:
		return strconv.FormatInt(int64(id), 10)
	case int64:
		return strconv.FormatInt(id, 10)
	case uint:
		return strconv.FormatUint(uint64(id), 10)
	case uint32:
		return strconv.FormatUint(uint64(id), 10)
	case uint64:
		return strconv.FormatUint(id, 10)
	case float32:
		return NormalizeID(float64(id))
	case float64:
		if math.IsNaN(id) || math.IsInf(id, 0) {
			return ""
		}
		if id == math.Trunc(id) && math.Abs(id) < 1e15 {
			return strconv.FormatInt(int64(id), 10)
		}
		return strconv.FormatFloat(id, 'f', -1, 64)
	case fmt.Stringer:
		return strings.TrimSpace(id.String())
	default:
		return ""
	}
}

// NormalizeItems returns a copy of items with trimmed identifiers.
func NormalizeItems(items []ContentItem) []ContentItem {
	out := make([]ContentItem, len(items))
	for i, item := range items {
		item.ID = NormalizeID(item.ID)
		out[i] = item
	}
	return out
}

// SyntheticID derives a stable id from the trimmed title so identical
// headlines from different sources collapse into one placement.
func SyntheticID(title string) string {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(trimmed))
	return syntheticPrefix + hex.EncodeToString(sum[:8])
}

// IsSynthetic reports whether id was produced by SyntheticID.
func IsSynthetic(id string) bool {
	return strings.HasPrefix(id, syntheticPrefix)
}

// EnsureIDs returns a normalized copy where every id-less item carries its
// synthetic id.
func EnsureIDs(items []ContentItem) []ContentItem {
	out := NormalizeItems(items)
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = SyntheticID(out[i].Title)
		}
	}
	return out
}

// IDs lists the non-empty ids of items in order.
func IDs(items []ContentItem) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if item.ID != "" {
			ids = append(ids, item.ID)
		}
	}
	return ids
}
