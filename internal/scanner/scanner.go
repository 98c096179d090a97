package scanner

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"NewsBoard/internal/domain"
)

// ErrUnknownScanner is returned by Resolve for a name nobody registered.
var ErrUnknownScanner = errors.New("scanner is not registered")

// Request carries all parameters required to fetch one panel's candidates.
type Request struct {
	PanelKey string
	Limit    int
	URL      string
	Options  map[string]string
}

// Option returns a strategy option or fallback.
func (r Request) Option(key, fallback string) string {
	if v, ok := r.Options[key]; ok && v != "" {
		return v
	}
	return fallback
}

// Scanner captures a single candidate strategy (content API, HTML listing,
// RSS feed, database). Results are in relevance order, at most Limit long.
type Scanner interface {
	Name() string
	Scan(ctx context.Context, req Request) ([]domain.ContentItem, error)
}

// Registry keeps a mapping from scanner names to their implementations.
type Registry struct {
	scanners map[string]Scanner
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{scanners: map[string]Scanner{}}
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(scanner Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[scanner.Name()] = scanner
}

// Resolve returns a scanner by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Scanner, error) {
	if scanner, ok := r.scanners[name]; ok {
		return scanner, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownScanner, name)
}

// Names lists registered strategies, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.scanners))
	for name := range r.scanners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Truncate caps items at limit; a non-positive limit keeps everything.
func Truncate(items []domain.ContentItem, limit int) []domain.ContentItem {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
