package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/samber/lo"

	"NewsBoard/internal/config"
	"NewsBoard/internal/domain"
	"NewsBoard/internal/ports"
	"NewsBoard/internal/scanner"
)

// ErrUnknownPanel is returned for a panel key missing from the config.
var ErrUnknownPanel = errors.New("panel is not configured")

// StrategySource implements CandidateSource via registered scanner strategies.
type StrategySource struct {
	registry *scanner.Registry
	panels   map[string]config.PanelConfig
	logger   *slog.Logger
}

var _ ports.CandidateSource = (*StrategySource)(nil)

// NewStrategySource wires scanner registry with config-defined panels.
func NewStrategySource(reg *scanner.Registry, panels []config.PanelConfig, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		panels: lo.SliceToMap(panels, func(p config.PanelConfig) (string, config.PanelConfig) {
			return p.Key, p
		}),
		logger: log,
	}
}

// FetchCandidates runs the panel's strategy and returns at most surplus items
// in the order the strategy produced them.
func (s *StrategySource) FetchCandidates(ctx context.Context, panelKey string, surplus int) ([]domain.ContentItem, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	panel, ok := s.panels[panelKey]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPanel, panelKey)
	}

	s.debug("fetch candidates", "panel", panel.Key, "scanner", panel.Scanner, "surplus", surplus)
	strategy, err := s.registry.Resolve(panel.Scanner)
	if err != nil {
		return nil, fmt.Errorf("panel %s: %w", panel.Key, err)
	}

	req := scanner.Request{
		PanelKey: panel.Key,
		Limit:    surplus,
		URL:      panel.URL,
		Options:  panel.Options,
	}

	results, err := strategy.Scan(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("scan panel %s: %w", panel.Key, err)
	}

	for i := range results {
		if results[i].Source == "" {
			results[i].Source = panel.Key
		}
	}
	results = scanner.Truncate(results, surplus)
	s.debug("panel produced candidates", "panel", panel.Key, "count", len(results))
	return results, nil
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
