package ports

import (
	"context"
	"time"

	"NewsBoard/internal/domain"
)

// CandidateSource returns ranked story candidates for a panel. Order is
// relevance order and is never changed by the board.
type CandidateSource interface {
	FetchCandidates(ctx context.Context, panelKey string, surplus int) ([]domain.ContentItem, error)
}

// Translator maps a source headline to its display form.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// ImageProber checks that an image URL can be loaded.
type ImageProber interface {
	Probe(ctx context.Context, url string) error
}

// PlaceholderGenerator returns a deterministic fallback image for a title.
type PlaceholderGenerator interface {
	PlaceholderFor(title string) string
}

// Presenter receives panel frames (terminal board, MQTT, etc.).
type Presenter interface {
	Present(ctx context.Context, frame domain.PanelFrame) error
}

// Scheduler controls when the surface is refreshed.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
