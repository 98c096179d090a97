package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"NewsBoard/internal/domain"
	"NewsBoard/internal/placement"
)

// ErrNoPanels is returned by Enter when the surface has nothing to load.
var ErrNoPanels = errors.New("no panels configured")

// SurfaceDeps wires the aggregation surface.
type SurfaceDeps struct {
	Registry     *placement.Registry
	Pipeline     *Pipeline
	Panels       []PanelSpec
	Debounce     time.Duration
	ReadyTimeout time.Duration
	Logger       *slog.Logger
}

// Surface owns the lifecycle of the board: entering starts a fresh session
// with a cleared registry, leaving tears every panel down.
type Surface struct {
	registry     *placement.Registry
	pipeline     *Pipeline
	panels       []PanelSpec
	debounce     time.Duration
	readyTimeout time.Duration
	logger       *slog.Logger

	mu      sync.Mutex
	session *Session
}

// Session is one visit to the surface.
type Session struct {
	ID          string
	Epoch       uint64
	Panels      []*Panel
	Runs        []*LoadRun
	Gate        *Gate
	Coordinator *Coordinator

	cancel context.CancelFunc
}

// NewSurface builds the surface; panels are ranked in the given order.
func NewSurface(deps SurfaceDeps) *Surface {
	return &Surface{
		registry:     deps.Registry,
		pipeline:     deps.Pipeline,
		panels:       deps.Panels,
		debounce:     deps.Debounce,
		readyTimeout: deps.ReadyTimeout,
		logger:       deps.Logger,
	}
}

// Enter clears the registry once and starts loading every panel. An active
// session is left first.
func (s *Surface) Enter(ctx context.Context) (*Session, error) {
	if len(s.panels) == 0 {
		return nil, ErrNoPanels
	}
	if s.registry == nil || s.pipeline == nil {
		return nil, fmt.Errorf("surface misconfigured: registry and pipeline are required")
	}
	if dup := lo.FindDuplicatesBy(s.panels, func(p PanelSpec) string { return p.Key }); len(dup) > 0 {
		return nil, fmt.Errorf("duplicate panel key %q", dup[0].Key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil {
		s.leaveLocked()
	}

	s.registry.Clear()
	epoch := s.registry.Epoch()
	id := uuid.NewString()
	runCtx, cancel := context.WithCancel(ctx)

	panels := make([]*Panel, 0, len(s.panels))
	for rank, spec := range s.panels {
		panels = append(panels, NewPanel(spec, rank, id, epoch))
	}

	gate := NewGate(s.readyTimeout, s.with("gate"))
	coordinator := NewCoordinator(CoordinatorDeps{
		Registry: s.registry,
		Pipeline: s.pipeline,
		Gate:     gate,
		Panels:   panels,
		Debounce: s.debounce,
		Logger:   s.with("reconciler"),
	})
	if err := coordinator.Start(runCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("start reconciliation: %w", err)
	}

	session := &Session{
		ID:          id,
		Epoch:       epoch,
		Panels:      panels,
		Gate:        gate,
		Coordinator: coordinator,
		cancel:      cancel,
	}
	for _, panel := range panels {
		session.Runs = append(session.Runs, s.pipeline.Start(runCtx, panel, gate))
	}
	s.session = session

	if s.logger != nil {
		s.logger.Info("surface entered", "session", id, "panels", len(panels))
	}
	return session, nil
}

// Leave discards all panel state and clears the registry.
func (s *Surface) Leave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leaveLocked()
}

func (s *Surface) leaveLocked() {
	session := s.session
	if session == nil {
		return
	}
	s.session = nil

	session.Coordinator.Stop()
	for _, panel := range session.Panels {
		panel.retire()
	}
	session.cancel()
	s.registry.Clear()

	if s.logger != nil {
		s.logger.Info("surface left", "session", session.ID)
	}
}

// Current returns the active session, or nil.
func (s *Surface) Current() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

func (s *Surface) with(component string) *slog.Logger {
	if s.logger == nil {
		return nil
	}
	return s.logger.With("component", component)
}

// Ready waits on the completion gate.
func (s *Session) Ready(ctx context.Context) bool {
	return s.Gate.Ready(ctx)
}

// Wait blocks until every panel finished both stages.
func (s *Session) Wait(ctx context.Context) error {
	for _, run := range s.Runs {
		select {
		case <-run.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Settle waits for every load and for reconciliation to go quiet.
func (s *Session) Settle(ctx context.Context) error {
	if err := s.Wait(ctx); err != nil {
		return err
	}
	return s.Coordinator.WaitIdle(ctx)
}

// Panel returns the panel with key, or nil.
func (s *Session) Panel(key string) *Panel {
	panel, _ := lo.Find(s.Panels, func(p *Panel) bool { return p.Key() == key })
	return panel
}

// Frames returns the current frame of every panel in rank order.
func (s *Session) Frames() []domain.PanelFrame {
	return lo.Map(s.Panels, func(p *Panel, _ int) domain.PanelFrame { return p.Frame() })
}
