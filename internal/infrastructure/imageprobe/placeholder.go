package imageprobe

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"

	"NewsBoard/internal/ports"
)

// Placeholder builds deterministic title images on a placeholder service:
// <base>/<hash>.png?text=<title>.
type Placeholder struct {
	base string
}

var _ ports.PlaceholderGenerator = Placeholder{}

// NewPlaceholder uses base as the service root.
func NewPlaceholder(base string) Placeholder {
	return Placeholder{base: strings.TrimRight(base, "/")}
}

// PlaceholderFor returns the same URL for the same trimmed title.
func (p Placeholder) PlaceholderFor(title string) string {
	title = strings.Join(strings.Fields(title), " ")
	sum := sha256.Sum256([]byte(title))
	query := url.Values{"text": []string{title}}
	return p.base + "/" + hex.EncodeToString(sum[:6]) + ".png?" + query.Encode()
}
