// Package display keeps the rendered state of the board and formats it for
// the terminal.
package display

import (
	"context"
	"errors"
	"slices"
	"sync"

	"NewsBoard/internal/domain"
	"NewsBoard/internal/ports"
)

// Board is a presenter that keeps the newest frame of every panel. Frames
// from an older version of the same session are dropped; a frame from a new
// session replaces the board.
type Board struct {
	mu      sync.RWMutex
	session string
	frames  map[string]domain.PanelFrame
	dropped uint64
}

var _ ports.Presenter = (*Board)(nil)

// NewBoard builds an empty board.
func NewBoard() *Board {
	return &Board{frames: map[string]domain.PanelFrame{}}
}

// Present records frame unless it is stale.
func (b *Board) Present(_ context.Context, frame domain.PanelFrame) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if frame.Session != b.session {
		b.session = frame.Session
		b.frames = map[string]domain.PanelFrame{}
	}
	if current, ok := b.frames[frame.Panel]; ok && !frame.NewerThan(current) {
		b.dropped++
		return nil
	}
	b.frames[frame.Panel] = frame
	return nil
}

// Frames returns the latest frames ordered by rank.
func (b *Board) Frames() []domain.PanelFrame {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]domain.PanelFrame, 0, len(b.frames))
	for _, frame := range b.frames {
		out = append(out, frame)
	}
	slices.SortFunc(out, func(a, c domain.PanelFrame) int { return a.Rank - c.Rank })
	return out
}

// Frame returns the latest frame of panel.
func (b *Board) Frame(panel string) (domain.PanelFrame, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	frame, ok := b.frames[panel]
	return frame, ok
}

// Dropped counts stale frames ignored so far.
func (b *Board) Dropped() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped
}

// Multi fans frames out to several presenters. Every presenter sees every
// frame; errors are joined.
type Multi []ports.Presenter

var _ ports.Presenter = Multi(nil)

// Present forwards frame to each presenter.
func (m Multi) Present(ctx context.Context, frame domain.PanelFrame) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Present(ctx, frame); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
