package parser

import (
	"context"
	"errors"
	"testing"

	"NewsBoard/internal/config"
	"NewsBoard/internal/domain"
	"NewsBoard/internal/scanner"
)

type stubScanner struct {
	last  scanner.Request
	items []domain.ContentItem
	err   error
}

func (s *stubScanner) Name() string { return "stub" }

func (s *stubScanner) Scan(_ context.Context, req scanner.Request) ([]domain.ContentItem, error) {
	s.last = req
	return s.items, s.err
}

func TestStrategySourceRoutesPanel(t *testing.T) {
	t.Parallel()

	stub := &stubScanner{items: []domain.ContentItem{
		{ID: "1", Title: "a"},
		{ID: "2", Title: "b", Source: "wire"},
		{ID: "3", Title: "c"},
	}}
	reg := scanner.NewRegistry()
	reg.Register(stub)

	source := NewStrategySource(reg, []config.PanelConfig{
		{Key: "sports", Scanner: "stub", URL: "https://example.org/sports", Options: map[string]string{"section": "cricket"}},
	}, nil)

	items, err := source.FetchCandidates(context.Background(), "sports", 2)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(items) != 2 || items[0].Source != "sports" || items[1].Source != "wire" {
		t.Fatalf("unexpected items: %+v", items)
	}
	if stub.last.Limit != 2 || stub.last.URL != "https://example.org/sports" || stub.last.Option("section", "") != "cricket" {
		t.Fatalf("unexpected request: %+v", stub.last)
	}
}

func TestStrategySourceErrors(t *testing.T) {
	t.Parallel()

	reg := scanner.NewRegistry()
	reg.Register(&stubScanner{err: errors.New("boom")})
	source := NewStrategySource(reg, []config.PanelConfig{
		{Key: "latest", Scanner: "stub"},
		{Key: "tech", Scanner: "missing"},
	}, nil)

	if _, err := source.FetchCandidates(context.Background(), "nope", 10); !errors.Is(err, ErrUnknownPanel) {
		t.Fatalf("expected ErrUnknownPanel, got %v", err)
	}
	if _, err := source.FetchCandidates(context.Background(), "tech", 10); !errors.Is(err, scanner.ErrUnknownScanner) {
		t.Fatalf("expected ErrUnknownScanner, got %v", err)
	}
	if _, err := source.FetchCandidates(context.Background(), "latest", 10); err == nil {
		t.Fatalf("expected scan error")
	}
}
