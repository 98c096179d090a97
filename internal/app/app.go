package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	_ "github.com/lib/pq"
	"github.com/samber/lo"
	"golang.org/x/text/language"

	"NewsBoard/internal/config"
	"NewsBoard/internal/display"
	"NewsBoard/internal/infrastructure/contentapi"
	"NewsBoard/internal/infrastructure/feed"
	"NewsBoard/internal/infrastructure/imageprobe"
	"NewsBoard/internal/infrastructure/mqttsink"
	"NewsBoard/internal/infrastructure/parser"
	"NewsBoard/internal/infrastructure/scheduler"
	"NewsBoard/internal/infrastructure/storage"
	"NewsBoard/internal/infrastructure/translate"
	"NewsBoard/internal/logging"
	"NewsBoard/internal/placement"
	"NewsBoard/internal/ports"
	"NewsBoard/internal/scanner"
	"NewsBoard/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	registry  *placement.Registry
	board     *display.Board
	publisher *mqttsink.Publisher
	surface   *usecase.Surface
	db        *sql.DB
}

// Option customizes wiring, mostly for tests.
type Option func(*options)

type options struct {
	httpClient *http.Client
	presenters []ports.Presenter
}

// WithHTTPClient routes every outbound HTTP adapter through client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// WithPresenter adds a presenter next to the board.
func WithPresenter(p ports.Presenter) Option {
	return func(o *options) { o.presenters = append(o.presenters, p) }
}

// New builds a runnable application instance. Nothing connects yet except
// the lazily opened Postgres pool.
func New(cfg config.Config, baseLogger *slog.Logger, opts ...Option) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &Application{
		cfg:      cfg,
		logger:   baseLogger,
		registry: placement.NewRegistry(),
		board:    display.NewBoard(),
	}

	scanners, err := a.buildScanners(o.httpClient)
	if err != nil {
		return nil, err
	}
	source := parser.NewStrategySource(scanners, cfg.Panels, a.with("source"))

	presenters := display.Multi{a.board}
	presenters = append(presenters, o.presenters...)
	if cfg.MQTT.Broker != "" {
		a.publisher = mqttsink.NewPublisher(cfg.MQTT, a.with("mqtt"))
		presenters = append(presenters, a.publisher)
	}

	board := cfg.Board.Normalize()
	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:      source,
		Registry:    a.registry,
		Translator:  a.buildTranslator(o.httpClient),
		Images:      imageprobe.NewProber(o.httpClient, board.ImageTimeout),
		Placeholder: imageprobe.NewPlaceholder(cfg.Images.PlaceholderBase),
		Presenter:   presenters,
		Logger:      a.with("pipeline"),
		Options: usecase.Options{
			Surplus:         board.Surplus,
			Target:          board.Target,
			VisibleBatch:    board.VisibleBatch,
			SettleDelay:     board.SettleDelay,
			BackgroundDelay: board.BackgroundDelay,
		},
	})

	a.surface = usecase.NewSurface(usecase.SurfaceDeps{
		Registry: a.registry,
		Pipeline: pipeline,
		Panels: lo.Map(cfg.Panels, func(p config.PanelConfig, _ int) usecase.PanelSpec {
			return usecase.PanelSpec{Key: p.Key, Title: p.Title}
		}),
		Debounce:     board.Debounce,
		ReadyTimeout: board.ReadyTimeout,
		Logger:       a.with("surface"),
	})

	return a, nil
}

func (a *Application) buildScanners(client *http.Client) (*scanner.Registry, error) {
	registry := scanner.NewRegistry()

	apiOpts := []contentapi.ClientOption{contentapi.WithAPIKey(a.cfg.ContentAPI.APIKey)}
	if client != nil {
		apiOpts = append(apiOpts, contentapi.WithHTTPClient(client))
	}
	registry.Register(contentapi.NewClient(a.cfg.ContentAPI.BaseURL, apiOpts...))
	registry.Register(parser.NewHTMLScanner(client))
	registry.Register(feed.NewRSSScanner(client))

	if a.cfg.Database.DSN != "" {
		db, err := sql.Open("postgres", a.cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		a.db = db
		registry.Register(storage.NewPostgresScanner(db))
	}

	for _, panel := range a.cfg.Panels {
		if _, err := registry.Resolve(panel.Scanner); err != nil {
			return nil, fmt.Errorf("panel %s: %w", panel.Key, err)
		}
	}
	return registry, nil
}

// buildTranslator chains the glossary before a cached ChatGPT client. It
// returns nil when neither is configured, so titles show as-is.
func (a *Application) buildTranslator(client *http.Client) ports.Translator {
	target, err := language.Parse(a.cfg.Translation.Language)
	if err != nil {
		a.logger.Warn("unknown display language, using English", "language", a.cfg.Translation.Language, "error", err)
		target = language.English
	}

	var chain translate.Chain
	if len(a.cfg.Translation.Glossary) > 0 {
		chain = append(chain, translate.NewGlossary(a.cfg.Translation.Glossary, target))
	}
	if a.cfg.ChatGPT.APIKey != "" {
		base, _ := target.Base()
		if base.String() != "en" {
			chat := translate.NewChatGPT(a.cfg.ChatGPT, target, client)
			chain = append(chain, translate.NewCache(chat, target.String()))
		}
	}
	if len(chain) == 0 {
		return nil
	}
	return chain
}

// Panels lists the configured panels in priority order.
func (a *Application) Panels() []config.PanelConfig {
	return a.cfg.Panels
}

// Board exposes the rendered board.
func (a *Application) Board() *display.Board {
	return a.board
}

// Render enters the surface once, waits for the content gate and, when
// settle is set, for every load and reconciliation to finish. It returns the
// formatted board and leaves the surface.
func (a *Application) Render(ctx context.Context, settle bool) (string, error) {
	session, err := a.surface.Enter(ctx)
	if err != nil {
		return "", err
	}
	defer a.surface.Leave()

	if !session.Ready(ctx) {
		a.logger.Warn("rendering before every image settled", "session", session.ID)
	}
	if settle {
		if err := session.Settle(ctx); err != nil {
			return "", fmt.Errorf("settle board: %w", err)
		}
	}

	return display.NewTerminalFormatter().FormatBoard(a.board.Frames()), nil
}

// Serve refreshes the board every scheduler interval until ctx ends.
func (a *Application) Serve(ctx context.Context) error {
	if a.publisher != nil {
		if err := a.publisher.Connect(ctx); err != nil {
			return err
		}
	}

	driver := scheduler.NewIntervalScheduler(a.cfg.Scheduler.Interval, a.cfg.Scheduler.Location())
	refresher := usecase.NewScheduler(driver, a.surface, a.with("scheduler"))
	if err := refresher.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("serving board", "interval", a.cfg.Scheduler.Interval, "panels", len(a.cfg.Panels))

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Board.Normalize().ReadyTimeout)
	defer cancel()
	if err := refresher.Stop(stopCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

// Close releases the database pool and the broker connection.
func (a *Application) Close() error {
	if a.publisher != nil {
		a.publisher.Disconnect()
	}
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func (a *Application) with(component string) *slog.Logger {
	return a.logger.With("component", component)
}
