package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bep/debounce"
	"github.com/samber/lo"

	"NewsBoard/internal/domain"
	"NewsBoard/internal/placement"
)

const defaultDebounce = 200 * time.Millisecond

// CoordinatorDeps wires a reconciliation coordinator for one session.
type CoordinatorDeps struct {
	Registry *placement.Registry
	Pipeline *Pipeline
	Gate     *Gate
	Panels   []*Panel
	Debounce time.Duration
	Logger   *slog.Logger
}

// Coordinator re-filters every panel's stored pool after the registry has
// been quiet for the debounce window. Each registry change restarts the
// window, so a burst of registrations yields a single pass.
type Coordinator struct {
	registry *placement.Registry
	pipeline *Pipeline
	gate     *Gate
	panels   []*Panel
	window   time.Duration
	logger   *slog.Logger

	debounced func(func())
	passMu    sync.Mutex
	passes    atomic.Uint64
	dirty     atomic.Bool
	active    atomic.Int64
	settled   atomic.Uint64
	stopped   atomic.Bool

	mu          sync.Mutex
	runCtx      context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	wg          sync.WaitGroup
}

// NewCoordinator builds a coordinator; panels are visited by rank.
func NewCoordinator(deps CoordinatorDeps) *Coordinator {
	window := deps.Debounce
	if window <= 0 {
		window = defaultDebounce
	}
	panels := slices.Clone(deps.Panels)
	slices.SortStableFunc(panels, func(a, b *Panel) int { return a.Rank() - b.Rank() })

	c := &Coordinator{
		registry:  deps.Registry,
		pipeline:  deps.Pipeline,
		gate:      deps.Gate,
		panels:    panels,
		window:    window,
		logger:    deps.Logger,
		debounced: debounce.New(window),
	}
	for _, panel := range panels {
		panel.setCommitHook(c.Nudge)
	}
	return c
}

// Start subscribes to registry changes until ctx ends or Stop is called.
func (c *Coordinator) Start(ctx context.Context) error {
	if c.registry == nil || c.pipeline == nil {
		return fmt.Errorf("coordinator misconfigured: registry and pipeline are required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	changes, unsubscribe := c.registry.Subscribe(16)
	c.runCtx = runCtx
	c.cancel = cancel
	c.unsubscribe = unsubscribe
	c.stopped.Store(false)
	c.settled.Store(c.registry.Version())

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-runCtx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				c.schedule(runCtx)
			}
		}
	}()

	return nil
}

// Stop cancels the subscription and any pending pass.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	cancel, unsubscribe := c.cancel, c.unsubscribe
	c.runCtx, c.cancel, c.unsubscribe = nil, nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	c.stopped.Store(true)
	cancel()
	unsubscribe()
	c.wg.Wait()
	c.debounced(func() {})
	c.dirty.Store(false)
}

func (c *Coordinator) schedule(ctx context.Context) {
	c.dirty.Store(true)
	c.touch()
	c.debounced(func() {
		if c.stopped.Load() || ctx.Err() != nil {
			return
		}
		c.Reconcile(ctx)
	})
}

// Nudge schedules a pass as if the registry had changed. Every committed
// stage calls it: a pass that fired between a stage's registration and its
// commit saw an empty pool and skipped the panel.
func (c *Coordinator) Nudge() {
	c.mu.Lock()
	ctx := c.runCtx
	c.mu.Unlock()
	if ctx == nil || ctx.Err() != nil || c.stopped.Load() {
		return
	}
	c.schedule(ctx)
}

// Passes returns the number of reconciliation passes run so far.
func (c *Coordinator) Passes() uint64 {
	return c.passes.Load()
}

// WaitIdle blocks until every registry change has been reconciled and the
// registry has been quiet for one debounce window.
func (c *Coordinator) WaitIdle(ctx context.Context) error {
	tick := max(c.window/4, 5*time.Millisecond)
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		idleFor := time.Since(time.Unix(0, c.active.Load()))
		caughtUp := c.settled.Load() == c.registry.Version()
		if caughtUp && !c.dirty.Load() && idleFor >= c.window {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Coordinator) touch() {
	c.active.Store(time.Now().UnixNano())
}

// Reconcile runs one pass over every panel with a stored pool. Passes are
// serialized; running two in a row without a registry change in between
// leaves every panel as it was.
func (c *Coordinator) Reconcile(ctx context.Context) {
	c.passMu.Lock()
	defer c.passMu.Unlock()

	c.dirty.Store(false)
	n := c.passes.Add(1)
	c.debug("reconciliation pass", "pass", n, "placed", c.registry.Len())

	before := c.registry.Version()
	for _, panel := range c.panels {
		c.reconcilePanel(ctx, panel)
	}
	if c.registry.Version() == before {
		c.settled.Store(before)
	}
	c.touch()
}

func (c *Coordinator) reconcilePanel(ctx context.Context, panel *Panel) {
	owner := panel.Owner()

	panel.mu.Lock()
	if panel.retired || len(panel.pool) == 0 {
		panel.mu.Unlock()
		return
	}

	before := len(panel.pool)
	pool := domain.EnsureIDs(panel.pool)
	var window []domain.ContentItem
	for range before + 1 {
		pool = c.registry.FilterFor(owner, pool)
		window = pool[:min(panel.window, len(pool))]

		fresh := lo.FilterMap(window, func(item domain.ContentItem, _ int) (string, bool) {
			_, held := panel.placed[item.ID]
			return item.ID, item.ID != "" && !held
		})
		if len(fresh) == 0 {
			break
		}
		accepted := c.registry.PlaceMany(owner, fresh)
		panel.markPlaced(accepted)
		if len(accepted) == len(fresh) {
			break
		}
	}

	inWindow := lo.SliceToMap(window, func(item domain.ContentItem) (string, struct{}) {
		return item.ID, struct{}{}
	})
	var release []string
	for id := range panel.placed {
		if _, ok := inWindow[id]; !ok {
			release = append(release, id)
			delete(panel.placed, id)
		}
	}

	previous := lo.SliceToMap(panel.displayed, func(item domain.ContentItem) (string, domain.ContentItem) {
		return item.Key(), item
	})
	next := make([]domain.ContentItem, 0, len(window))
	var untitled, fresh []domain.ContentItem
	for _, item := range window {
		if old, ok := previous[item.Key()]; ok {
			old.ID = item.ID
			item = old
		} else {
			item.ImageLoading = item.Image != ""
			fresh = append(fresh, item)
		}
		if item.DisplayTitle == "" {
			untitled = append(untitled, item)
		}
		next = append(next, item)
	}

	panel.pool = pool
	changed := !sameBatch(panel.displayed, next)
	var frame domain.PanelFrame
	if changed {
		panel.displayed = next
		panel.version++
		frame = panel.frameLocked()
	}
	panel.mu.Unlock()

	if len(release) > 0 {
		c.registry.Release(owner, release)
	}
	if changed {
		c.debug("panel reconciled", "panel", panel.Key(),
			"pool_before", before, "pool_after", len(pool), "displayed", len(next), "released", len(release))
		c.pipeline.present(ctx, frame)
	}
	if len(untitled) > 0 {
		resolved := c.pipeline.resolveTitles(ctx, untitled)
		titles := lo.SliceToMap(resolved, func(item domain.ContentItem) (string, string) {
			return item.Key(), item.DisplayTitle
		})
		if frame, ok := panel.applyTitles(titles); ok {
			c.pipeline.present(ctx, frame)
		}
	}
	if c.gate != nil && len(fresh) > 0 {
		c.pipeline.prefetchImages(ctx, panel, c.gate, fresh)
	}
}

func sameBatch(a, b []domain.ContentItem) bool {
	return slices.EqualFunc(a, b, func(x, y domain.ContentItem) bool {
		return x.ID == y.ID &&
			x.Title == y.Title &&
			x.DisplayTitle == y.DisplayTitle &&
			x.Image == y.Image &&
			x.ImageLoading == y.ImageLoading
	})
}

func (c *Coordinator) debug(msg string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
