// Package imageprobe checks story images and builds title placeholders.
package imageprobe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"NewsBoard/internal/ports"
)

// ErrNotImage is returned when the resource exists but is not an image.
var ErrNotImage = errors.New("resource is not an image")

// Prober issues a HEAD request per image, falling back to GET when the server
// refuses HEAD. Each probe is bounded by timeout.
type Prober struct {
	client  *http.Client
	timeout time.Duration
}

var _ ports.ImageProber = (*Prober)(nil)

// NewProber builds a prober; a non-positive timeout means 5s.
func NewProber(client *http.Client, timeout time.Duration) *Prober {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Prober{client: client, timeout: timeout}
}

// Probe reports nil when url answers 2xx with an image content type.
func (p *Prober) Probe(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.do(ctx, http.MethodHead, url)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusMethodNotAllowed {
		resp, err = p.do(ctx, http.MethodGet, url)
		if err != nil {
			return err
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("image %s returned %s", url, resp.Status)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(strings.ToLower(ct), "image/") {
		return fmt.Errorf("%w: %s has content type %q", ErrNotImage, url, ct)
	}
	return nil
}

// do sends the request and drains a bounded part of the body so the
// connection can be reused; only status and headers are returned.
func (p *Prober) do(ctx context.Context, method, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "NewsBoard/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("probe image: %w", err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
	return resp, nil
}
