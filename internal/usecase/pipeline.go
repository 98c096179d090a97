package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"NewsBoard/internal/domain"
	"NewsBoard/internal/placement"
	"NewsBoard/internal/ports"
)

// ErrPanelRetired is returned when a stage finishes after its session ended.
var ErrPanelRetired = errors.New("panel retired")

// Options tunes the progressive load of a panel.
type Options struct {
	Surplus          int
	Target           int
	VisibleBatch     int
	SettleDelay      time.Duration
	BackgroundDelay  time.Duration
	TranslateWorkers int
}

// DefaultOptions mirrors the board defaults: fetch 70, show 50, 20 at first.
func DefaultOptions() Options {
	return Options{
		Surplus:          70,
		Target:           50,
		VisibleBatch:     20,
		SettleDelay:      300 * time.Millisecond,
		BackgroundDelay:  time.Second,
		TranslateWorkers: 8,
	}
}

func (o Options) normalized() Options {
	def := DefaultOptions()
	if o.Target <= 0 {
		o.Target = def.Target
	}
	if o.Surplus <= 0 {
		o.Surplus = def.Surplus
	}
	if o.Surplus < o.Target {
		o.Surplus = o.Target
	}
	if o.VisibleBatch <= 0 || o.VisibleBatch > o.Target {
		o.VisibleBatch = min(def.VisibleBatch, o.Target)
	}
	if o.SettleDelay < 0 {
		o.SettleDelay = 0
	}
	if o.BackgroundDelay < 0 {
		o.BackgroundDelay = 0
	}
	if o.TranslateWorkers <= 0 {
		o.TranslateWorkers = def.TranslateWorkers
	}
	return o
}

// PipelineDeps wires all driven adapters into the panel pipeline.
type PipelineDeps struct {
	Source      ports.CandidateSource
	Registry    *placement.Registry
	Translator  ports.Translator
	Images      ports.ImageProber
	Placeholder ports.PlaceholderGenerator
	Presenter   ports.Presenter
	Logger      *slog.Logger
	Options     Options
}

// Pipeline loads panels: fetch a surplus, filter against the registry, show
// a visible batch, then a background batch after a delay.
type Pipeline struct {
	source      ports.CandidateSource
	registry    *placement.Registry
	translator  ports.Translator
	images      ports.ImageProber
	placeholder ports.PlaceholderGenerator
	presenter   ports.Presenter
	logger      *slog.Logger
	opts        Options
}

// NewPipeline constructs the panel pipeline.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		source:      deps.Source,
		registry:    deps.Registry,
		translator:  deps.Translator,
		images:      deps.Images,
		placeholder: deps.Placeholder,
		presenter:   deps.Presenter,
		logger:      deps.Logger,
		opts:        deps.Options.normalized(),
	}
}

// Options returns the effective (normalized) options.
func (p *Pipeline) Options() Options {
	return p.opts
}

// Staged is the result of the visible stage.
type Staged struct {
	Visible    []domain.ContentItem
	Background []domain.ContentItem
}

// LoadRun is a panel load in flight. Its two stages can be awaited
// separately.
type LoadRun struct {
	panel   *Panel
	visible chan struct{}
	done    chan struct{}
	err     error
}

// Visible is closed when the visible stage has finished or failed.
func (r *LoadRun) Visible() <-chan struct{} { return r.visible }

// Done is closed when both stages have finished.
func (r *LoadRun) Done() <-chan struct{} { return r.done }

// Err returns the stage error; valid once Visible is closed.
func (r *LoadRun) Err() error {
	select {
	case <-r.visible:
		return r.err
	default:
		return nil
	}
}

// Panel returns the panel being loaded.
func (r *LoadRun) Panel() *Panel { return r.panel }

// Start tracks the panel in gate and runs both stages in the background. The
// gate task settles once the visible stage is over, success or not.
func (p *Pipeline) Start(ctx context.Context, panel *Panel, gate *Gate) *LoadRun {
	run := &LoadRun{
		panel:   panel,
		visible: make(chan struct{}),
		done:    make(chan struct{}),
	}
	task := gate.Track("panel:" + panel.Key())

	go func() {
		defer close(run.done)

		staged, err := p.LoadVisible(ctx, panel, gate)
		run.err = err
		close(run.visible)
		task.Settle()

		if err != nil {
			if !errors.Is(err, ErrPanelRetired) && !errors.Is(err, context.Canceled) {
				p.warn("panel load failed", "panel", panel.Key(), "error", err)
			}
			return
		}

		if err := sleepContext(ctx, p.opts.BackgroundDelay); err != nil {
			return
		}
		if err := p.LoadBackground(ctx, panel, staged, gate); err != nil && !errors.Is(err, ErrPanelRetired) {
			p.warn("background batch failed", "panel", panel.Key(), "error", err)
		}
	}()

	return run
}

// LoadVisible runs the first stage: fetch, settle, filter and register the
// visible batch, then publish it and queue its image prefetches.
func (p *Pipeline) LoadVisible(ctx context.Context, panel *Panel, gate *Gate) (Staged, error) {
	if p.source == nil || p.registry == nil {
		p.fail(ctx, panel)
		return Staged{}, fmt.Errorf("pipeline misconfigured: source and registry are required")
	}

	candidates, err := p.source.FetchCandidates(ctx, panel.Key(), p.opts.Surplus)
	if err != nil {
		p.fail(ctx, panel)
		return Staged{}, fmt.Errorf("fetch candidates %s: %w", panel.Key(), err)
	}
	candidates = domain.NormalizeItems(candidates)
	p.debug("candidates fetched", "panel", panel.Key(), "count", len(candidates))

	if err := sleepContext(ctx, p.opts.SettleDelay); err != nil {
		return Staged{}, err
	}
	if panel.Retired() {
		return Staged{}, ErrPanelRetired
	}

	accepted, placed := p.registry.FilterAndPlace(panel.Owner(), candidates, p.opts.VisibleBatch)
	display := accepted[:min(p.opts.Target, len(accepted))]
	split := min(p.opts.VisibleBatch, len(display))
	visible := slices.Clone(display[:split])
	background := slices.Clone(display[split:])

	visible = p.prepare(ctx, visible)

	frame, ok := panel.update(func() {
		panel.pool = accepted
		panel.displayed = visible
		panel.window = p.opts.VisibleBatch
		panel.failed = false
		panel.markPlaced(placed)
	})
	if !ok {
		return Staged{}, ErrPanelRetired
	}
	panel.committed()

	p.debug("visible batch staged", "panel", panel.Key(),
		"pool", len(accepted), "visible", len(visible), "background", len(background))
	p.present(ctx, frame)
	p.prefetchImages(ctx, panel, gate, visible)

	return Staged{Visible: visible, Background: background}, nil
}

// LoadBackground runs the second stage: register the background batch, drop
// ids a higher-priority panel holds, append the rest and publish.
func (p *Pipeline) LoadBackground(ctx context.Context, panel *Panel, staged Staged, gate *Gate) error {
	if panel.Retired() {
		return ErrPanelRetired
	}
	if len(staged.Background) == 0 {
		_, ok := panel.update(func() { panel.window = p.opts.Target })
		if !ok {
			return ErrPanelRetired
		}
		panel.committed()
		return nil
	}

	owner := panel.Owner()
	placed := p.registry.PlaceMany(owner, domain.IDs(staged.Background))
	held := lo.SliceToMap(placed, func(id string) (string, struct{}) { return id, struct{}{} })

	rejected := map[string]struct{}{}
	batch := lo.Filter(staged.Background, func(item domain.ContentItem, _ int) bool {
		if item.ID == "" {
			return true
		}
		if _, ok := held[item.ID]; ok {
			return true
		}
		rejected[item.ID] = struct{}{}
		return false
	})
	if len(rejected) > 0 {
		p.debug("background ids kept by other panels", "panel", panel.Key(), "count", len(rejected))
	}

	batch = p.prepare(ctx, batch)

	var added []domain.ContentItem
	frame, ok := panel.update(func() {
		panel.pool = lo.Reject(panel.pool, func(item domain.ContentItem, _ int) bool {
			_, drop := rejected[item.ID]
			return drop
		})
		shown := lo.SliceToMap(panel.displayed, func(item domain.ContentItem) (string, struct{}) {
			return item.Key(), struct{}{}
		})
		for _, item := range batch {
			if _, dup := shown[item.Key()]; dup || len(panel.displayed) >= p.opts.Target {
				continue
			}
			panel.displayed = append(panel.displayed, item)
			added = append(added, item)
		}
		panel.window = p.opts.Target
		panel.markPlaced(placed)
	})
	if !ok {
		return ErrPanelRetired
	}
	panel.committed()

	p.debug("background batch staged", "panel", panel.Key(), "added", len(added))
	p.present(ctx, frame)
	p.prefetchImages(ctx, panel, gate, added)
	return nil
}

// prepare resolves display titles concurrently and flags pending images.
func (p *Pipeline) prepare(ctx context.Context, batch []domain.ContentItem) []domain.ContentItem {
	out := p.resolveTitles(ctx, batch)
	for i := range out {
		out[i].ImageLoading = out[i].Image != ""
	}
	return out
}

// resolveTitles fills DisplayTitle for items lacking one. A failed or empty
// translation falls back to the source title.
func (p *Pipeline) resolveTitles(ctx context.Context, batch []domain.ContentItem) []domain.ContentItem {
	out := slices.Clone(batch)

	var g errgroup.Group
	g.SetLimit(p.opts.TranslateWorkers)
	for i := range out {
		if out[i].DisplayTitle != "" {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i].DisplayTitle = p.translate(ctx, out[i].Title)
			return nil
		})
	}
	// Items skipped after cancellation keep an empty DisplayTitle; Label
	// falls back to the source title.
	if err := g.Wait(); err != nil {
		p.debug("title resolution interrupted", "error", err)
	}

	return out
}

func (p *Pipeline) translate(ctx context.Context, text string) string {
	if p.translator == nil || strings.TrimSpace(text) == "" {
		return text
	}
	translated, err := p.translator.Translate(ctx, text)
	if err != nil {
		p.debug("translation fell back to source", "error", err)
		return text
	}
	if strings.TrimSpace(translated) == "" {
		return text
	}
	return translated
}

// prefetchImages queues one gate task per item with an image. Every task
// settles: a failed probe swaps in the title placeholder.
func (p *Pipeline) prefetchImages(ctx context.Context, panel *Panel, gate *Gate, batch []domain.ContentItem) {
	for _, item := range batch {
		if item.Image == "" {
			continue
		}
		gate.Go("image:"+panel.Key(), func() {
			image := item.Image
			if p.images != nil {
				if err := p.images.Probe(ctx, image); err != nil {
					p.debug("image fell back to placeholder", "panel", panel.Key(), "image", image, "error", err)
					image = p.placeholderFor(item.Title)
				}
			}
			if frame, ok := panel.applyImage(item.Key(), image); ok {
				p.present(ctx, frame)
			}
		})
	}
}

func (p *Pipeline) placeholderFor(title string) string {
	if p.placeholder == nil {
		return ""
	}
	return p.placeholder.PlaceholderFor(title)
}

// fail shows an empty, failed panel.
func (p *Pipeline) fail(ctx context.Context, panel *Panel) {
	frame, ok := panel.update(func() {
		panel.failed = true
		panel.pool = nil
		panel.displayed = nil
	})
	if ok {
		p.present(ctx, frame)
	}
}

func (p *Pipeline) present(ctx context.Context, frame domain.PanelFrame) {
	if p.presenter == nil {
		return
	}
	if err := p.presenter.Present(ctx, frame); err != nil {
		p.warn("present frame", "panel", frame.Panel, "version", frame.Version, "error", err)
	}
}

func (p *Pipeline) debug(msg string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}

func (p *Pipeline) warn(msg string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
