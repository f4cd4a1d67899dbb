package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/lib/pq"

	"TuxLetter/internal/config"
	"TuxLetter/internal/domain"
	"TuxLetter/internal/infrastructure/llm"
	"TuxLetter/internal/infrastructure/mail"
	"TuxLetter/internal/infrastructure/parser"
	"TuxLetter/internal/infrastructure/scheduler"
	"TuxLetter/internal/infrastructure/storage"
	"TuxLetter/internal/infrastructure/telegram"
	"TuxLetter/internal/logging"
	"TuxLetter/internal/metrics"
	"TuxLetter/internal/ports"
	"TuxLetter/internal/scanner"
	"TuxLetter/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg        config.Config
	logger     *slog.Logger
	cache      *storage.LinkCache
	aggregator *parser.Aggregator
	metrics    *metrics.Metrics
	db         *sql.DB
}

// New builds the scraping side of the application. Synthesis and delivery
// are wired on demand by Run and Schedule, so maintenance commands work
// without credentials.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	cacheFile := cfg.Cache.File
	if cacheFile == "" {
		cacheFile = config.DefaultCacheFile()
	}
	cache := storage.NewLinkCache(cacheFile, baseLogger.With("component", "cache"))
	m := metrics.New()

	var httpClient *http.Client
	if cfg.Scraping.Timeout > 0 {
		httpClient = &http.Client{Timeout: cfg.Scraping.Timeout}
	}
	fetcher := parser.NewFetcher(httpClient).WithLogger(baseLogger.With("component", "fetcher"))
	registry := scanner.NewRegistry()
	for _, site := range configureSites(cfg) {
		registry.Register(parser.NewSiteScanner(site, fetcher, cache, baseLogger.With("component", "scanner")))
	}

	aggregator := parser.NewAggregator(parser.AggregatorDeps{
		Registry:    registry,
		Cache:       cache,
		Concurrency: cfg.Scraping.Concurrency,
		Metrics:     m,
		Logger:      baseLogger.With("component", "aggregator"),
	})

	application := &Application{
		cfg:        cfg,
		logger:     baseLogger,
		cache:      cache,
		aggregator: aggregator,
		metrics:    m,
	}

	if cfg.Database.DSN != "" {
		db, err := sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		application.db = db
	}

	return application, nil
}

// configureSites applies the configured overrides to the built-in sources.
func configureSites(cfg config.Config) []parser.Site {
	var sites []parser.Site
	for _, site := range parser.DefaultSites() {
		override, ok := cfg.Site(site.Name)
		if ok {
			if override.Disabled {
				continue
			}
			if override.ListingURL != "" {
				site.ListingURL = override.ListingURL
			}
			if override.Listing != "" {
				site.Listing = parser.ListingKind(override.Listing)
			}
			if override.MaxItems > 0 {
				site.MaxItems = override.MaxItems
			}
			if override.Delay > 0 {
				site.Delay = override.Delay
			}
		}
		sites = append(sites, site)
	}
	return sites
}

// Run performs a single pipeline execution.
func (a *Application) Run(ctx context.Context) error {
	pipeline, err := a.buildPipeline(ctx)
	if err != nil {
		return err
	}

	_, err = pipeline.Run(ctx, time.Now().In(a.cfg.Scheduler.Location()))
	return err
}

// Schedule runs the pipeline on the configured cron expression until ctx ends.
func (a *Application) Schedule(ctx context.Context) error {
	pipeline, err := a.buildPipeline(ctx)
	if err != nil {
		return err
	}

	driver, err := scheduler.NewCronScheduler(
		a.cfg.Scheduler.CronExpression,
		a.cfg.Scheduler.Location(),
		a.logger.With("component", "cron"),
	)
	if err != nil {
		return err
	}

	sched := usecase.NewScheduler(usecase.SchedulerDeps{
		Driver:    driver,
		Pipeline:  pipeline,
		Heartbeat: a.cfg.Scheduler.Heartbeat,
		Metrics:   a.metrics,
		Logger:    a.logger.With("component", "scheduler"),
	})
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	if a.cfg.Metrics.Addr != "" {
		go a.serveMetrics(ctx)
	}

	if a.cfg.Scheduler.RunOnStart {
		if _, err := sched.RunNow(ctx); err != nil {
			a.logger.Error("startup run failed", "error", err)
		}
	}

	<-ctx.Done()
	a.logger.Info("shutting down scheduler")

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return sched.Stop(stopCtx)
}

func (a *Application) serveMetrics(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	srv := &http.Server{Addr: a.cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	a.logger.Info("metrics server listening", "addr", a.cfg.Metrics.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.logger.Error("metrics server failed", "error", err)
	}
}

func (a *Application) buildPipeline(ctx context.Context) (*usecase.Pipeline, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	notifier, err := a.buildNotifier()
	if err != nil {
		return nil, err
	}

	return usecase.NewPipeline(usecase.PipelineDeps{
		Source:      a.aggregator,
		Synthesizer: llm.NewOpenRouterClient(a.cfg.OpenRouter, a.logger.With("component", "openrouter")),
		Notifier:    notifier,
		Archive:     a.buildArchive(ctx),
		Metrics:     a.metrics,
		Location:    a.cfg.Scheduler.Location(),
		Logger:      a.logger.With("component", "pipeline"),
	}), nil
}

func (a *Application) buildNotifier() (ports.Notifier, error) {
	loc := a.cfg.Scheduler.Location()
	switch a.cfg.Notifications.Channel {
	case config.ChannelTelegram:
		return telegram.NewNotifier(a.cfg.Notifications.Telegram, loc, a.logger.With("component", "telegram")), nil
	default:
		notifier, err := mail.NewNotifier(a.cfg.Notifications.Email, loc, a.logger.With("component", "email"))
		if err != nil {
			return nil, fmt.Errorf("build email notifier: %w", err)
		}
		return notifier, nil
	}
}

// buildArchive returns nil when no database is configured or reachable.
func (a *Application) buildArchive(ctx context.Context) ports.ItemArchive {
	if a.db == nil {
		return nil
	}
	log := a.logger.With("component", "archive")

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.db.PingContext(pingCtx); err != nil {
		log.Warn("database unreachable, archive disabled", "error", err)
		return nil
	}

	archive := storage.NewPostgresArchive(a.db)
	if a.cfg.Database.Migrate {
		if err := archive.Migrate(); err != nil {
			log.Warn("archive migration failed, archive disabled", "error", err)
			return nil
		}
	}
	return archive
}

// Scrape runs the named sources, or all of them, without synthesis, delivery
// or cache persistence.
func (a *Application) Scrape(ctx context.Context, names []string) domain.Batch {
	if len(names) == 0 {
		return a.aggregator.ScrapeAll(ctx)
	}
	return a.aggregator.ScrapeSpecific(ctx, names)
}

// Sources lists the enabled sources in order.
func (a *Application) Sources() []string {
	return a.aggregator.SourceNames()
}

// CacheStats reports the link cache.
func (a *Application) CacheStats() ports.CacheStats {
	return a.aggregator.CacheStats()
}

// CleanCache deletes the cache file and returns the stats before and after.
func (a *Application) CleanCache() (before, after ports.CacheStats, err error) {
	before = a.cache.Stats()
	a.logger.Info("cache before cleaning", "total_links", before.TotalLinks, "exists", before.Exists, "cache_file", before.Location)

	if err := a.cache.Delete(); err != nil {
		return before, a.cache.Stats(), err
	}

	after = a.cache.Stats()
	a.logger.Info("cache cleaned",
		"links_removed", before.TotalLinks-after.TotalLinks,
		"exists", after.Exists)
	return before, after, nil
}

// Close releases the database handle, if any.
func (a *Application) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
