package core

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog/log"

	"github.com/vrsandeep/pagesum-go/internal/assets"
	"github.com/vrsandeep/pagesum-go/internal/background"
	"github.com/vrsandeep/pagesum-go/internal/browser"
	"github.com/vrsandeep/pagesum-go/internal/config"
	"github.com/vrsandeep/pagesum-go/internal/db"
	"github.com/vrsandeep/pagesum-go/internal/engine"
	"github.com/vrsandeep/pagesum-go/internal/extract"
	"github.com/vrsandeep/pagesum-go/internal/fetch"
	"github.com/vrsandeep/pagesum-go/internal/jobs"
	"github.com/vrsandeep/pagesum-go/internal/presenter"
	"github.com/vrsandeep/pagesum-go/internal/relay"
	"github.com/vrsandeep/pagesum-go/internal/scripts"
	"github.com/vrsandeep/pagesum-go/internal/sink"
	"github.com/vrsandeep/pagesum-go/internal/store"
	"github.com/vrsandeep/pagesum-go/internal/summarize"
	"github.com/vrsandeep/pagesum-go/internal/websocket"
)

// App holds the core components of the daemon that are shared between
// the server and the CLI.
type App struct {
	config     *config.Config
	db         *sql.DB
	store      *store.Store
	bus        *relay.Bus
	hub        *websocket.Hub
	popup      *websocket.Popup
	engine     engine.Adapter
	background *background.Service
	page       *background.PageWorker
	source     fetch.Source
	extractor  *extract.Extractor
	scripts    *scripts.Registry
	watcher    *scripts.Watcher
	browser    *browser.Manager
	sink       sink.Sink
	jobManager *jobs.JobManager
	scheduler  *gocron.Scheduler

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	Version string
}

// New sets up and returns a new App instance. It handles loading the
// configuration, initializing the database connection, and running migrations.
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	SetupLogging(cfg.Log, nil)

	database, err := db.InitDB(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := db.RunMigrations(database, assets.MigrationsFS); err != nil {
		// We can't proceed without a valid database schema.
		database.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	app := Build(cfg, database, nil)
	log.Info().Msg("Core application setup complete.")
	return app, nil
}

// Build wires every component around an open, migrated database. A nil
// eng selects the OpenAI compatible engine from cfg.Model. Nothing runs
// until Start.
func Build(cfg *config.Config, database *sql.DB, eng engine.Adapter) *App {
	if eng == nil {
		eng = engine.NewOpenAI(cfg.Model)
	}
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		config:  cfg,
		db:      database,
		store:   store.New(database),
		bus:     relay.NewBus(),
		hub:     websocket.NewHub(),
		engine:  eng,
		scripts: scripts.NewRegistry(cfg.Scripts.Path),
		sink:    sink.New(cfg.Sink),
		ctx:     ctx,
		cancel:  cancel,
		Version: "dev",
	}

	a.scripts.SetTimeout(cfg.Scripts.Timeout)
	a.extractor = extract.New(extract.OptionsFromConfig(cfg.Extract), a.scripts)
	sources := fetch.Fallback{fetch.NewHTTPSource(cfg.Extract.FetchTimeout)}
	if cfg.Browser.Enabled {
		a.browser = browser.NewManager(cfg.Browser)
		sources = append(fetch.Fallback{browser.NewSource(a.browser)}, sources...)
	}
	a.source = sources

	a.page = background.NewPageWorker(a.bus.Open(relay.PageContext), a.source, a.extractor)
	a.background = background.New(a.bus.Open(relay.BackgroundContext), background.Deps{
		Engine:      eng,
		Options:     summarize.OptionsFromConfig(cfg),
		ModelID:     cfg.Model.ID,
		Recorder:    a.store,
		Sink:        a.sink,
		History:     a.store,
		RecentLimit: cfg.History.RecentLimit,
		Clipboard:   presenter.SystemClipboard{},
	})
	a.popup = websocket.NewPopup(ctx, a.hub, a.bus.Open(relay.PopupContext))

	a.jobManager = jobs.NewManager(a)
	jobs.RegisterAll(a.jobManager)
	return a
}

// Start loads the extraction scripts and starts every long-running
// component. Optional components that fail to start are logged and skipped.
func (a *App) Start() error {
	if err := a.scripts.Reload(); err != nil {
		return fmt.Errorf("failed to load extraction scripts: %w", err)
	}
	if a.config.Scripts.Watch {
		a.watcher = scripts.NewWatcher(a.scripts)
		if err := a.watcher.Start(); err != nil {
			log.Warn().Err(err).Msg("Could not watch extraction scripts")
			a.watcher = nil
		}
	}
	if a.browser != nil {
		if err := a.browser.Start(a.ctx); err != nil {
			log.Warn().Err(err).Msg("Headless browser unavailable, using plain HTTP")
		}
	}

	go a.hub.Run()
	a.page.Start(a.ctx)
	a.background.Start(a.ctx)
	a.scheduler = jobs.StartJobs(a)
	return nil
}

// Close gracefully stops the application's components and closes the
// DB connection. Only the first call has any effect.
func (a *App) Close() {
	a.closeOnce.Do(a.close)
}

func (a *App) close() {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	a.cancel()
	a.background.Stop()
	a.page.Stop()
	a.hub.Stop()
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.browser != nil {
		if err := a.browser.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close browser")
		}
	}
	if err := a.engine.Terminate(context.Background()); err != nil {
		log.Warn().Err(err).Msg("Failed to unload model")
	}
	if w, ok := a.sink.(interface{ Wait() }); ok {
		w.Wait()
	}
	a.bus.Close()
	if a.db != nil {
		a.db.Close()
	}
}

func (a *App) Config() *config.Config          { return a.config }
func (a *App) DB() *sql.DB                     { return a.db }
func (a *App) Store() *store.Store             { return a.store }
func (a *App) Bus() *relay.Bus                 { return a.bus }
func (a *App) WsHub() *websocket.Hub           { return a.hub }
func (a *App) Engine() engine.Adapter          { return a.engine }
func (a *App) Background() *background.Service { return a.background }
func (a *App) Source() fetch.Source            { return a.source }
func (a *App) Extractor() *extract.Extractor   { return a.extractor }
func (a *App) Scripts() *scripts.Registry      { return a.scripts }
func (a *App) Sink() sink.Sink                 { return a.sink }
func (a *App) JobManager() *jobs.JobManager    { return a.jobManager }
