package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrSnakeDoc/divesite/internal/catalog"
	"github.com/MrSnakeDoc/divesite/internal/config"
	"github.com/MrSnakeDoc/divesite/internal/editor"
	"github.com/MrSnakeDoc/divesite/internal/events"
	"github.com/MrSnakeDoc/divesite/internal/geocoding"
	"github.com/MrSnakeDoc/divesite/internal/httpserver"
	"github.com/MrSnakeDoc/divesite/internal/httpserver/deps"
	"github.com/MrSnakeDoc/divesite/internal/logger"
	"github.com/MrSnakeDoc/divesite/internal/metrics"
	"github.com/MrSnakeDoc/divesite/internal/redis"
	"github.com/MrSnakeDoc/divesite/internal/scheduler"
	"github.com/MrSnakeDoc/divesite/internal/store"
	redisstore "github.com/MrSnakeDoc/divesite/internal/store/redis"
	"github.com/MrSnakeDoc/divesite/internal/store/sqlite"
	"github.com/MrSnakeDoc/divesite/internal/utils"
	"github.com/MrSnakeDoc/divesite/internal/version"
)

type App struct {
	cfg       *config.Config
	logger    logger.Logger
	server    *httpserver.Server
	store     store.Store // nil for the memory backend
	editor    *editor.Editor
	persister *scheduler.Persister
	reaper    *scheduler.SessionReaper
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// Open the store early - fail fast if unavailable
	st, places, err := openStore(cfg, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to open %s store: %v", cfg.Store, err)
		os.Exit(1)
	}

	bus := events.NewBus()
	bus.Subscribe(events.LogHandler(loggerClient))

	m := metrics.New()
	cat := catalog.New(catalog.WithSink(bus))

	// Restore the catalog. Running on top of a store we could not read
	// would hand out ids that are already taken, so this is fatal.
	if st != nil {
		syncer := scheduler.NewStoreSyncer(st, cat, loggerClient)
		if err := syncer.Sync(context.Background()); err != nil {
			loggerClient.Errorf("Failed to sync catalog from store: %v", err)
			os.Exit(1)
		}
	}

	if cfg.SeedFile != "" {
		importer := scheduler.NewLogbookImporter(cfg.SeedFile, st, cat, loggerClient)
		if _, err := importer.Import(context.Background()); err != nil {
			loggerClient.Warn("failed to import seed logbook, starting with the current catalog",
				logger.String("file", cfg.SeedFile),
				logger.Error(err))
		}
	}

	// Mirror every later change into the store
	var persister *scheduler.Persister
	if st != nil {
		persister = scheduler.NewPersister(st, cat, loggerClient, m, cfg.PersistQueue)
		bus.Subscribe(persister.Handler())
	}

	editorOpts := []editor.Option{
		editor.WithLogger(loggerClient),
		editor.WithMetrics(m),
		editor.WithGeocodeTimeout(cfg.GeocoderTimeout),
	}
	if gw := newGateway(cfg, places, loggerClient); gw != nil {
		editorOpts = append(editorOpts, editor.WithGateway(gw))
	}
	ed := editor.New(cat, bus, editorOpts...)

	reaper := scheduler.NewSessionReaper(ed, loggerClient, cfg.ReaperInterval, cfg.SessionTTL)

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:        loggerClient,
		StartTime:     time.Now(),
		Version:       version.Version,
		Commit:        version.Commit,
		BuildDate:     version.BuildDate,
		GoVersion:     version.GoVersion,
		TimeNow:       time.Now,
		AllowedHosts:  cfg.AllowedHosts,
		AllowedCIDRS:  cfg.AllowedCIDRS,
		TrustProxy:    cfg.TrustProxy,
		Editor:        ed,
		Catalog:       cat,
		Store:         st,
		StoreKind:     cfg.Store,
		Metrics:       m,
		Geocoding:     cfg.GeocoderEnabled,
		GeocodeBurst:  cfg.GeocodeBurst,
		GeocodePerMin: cfg.GeocodePerMin,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:       cfg,
		logger:    loggerClient,
		server:    server,
		store:     st,
		editor:    ed,
		persister: persister,
		reaper:    reaper,
	}
}

// openStore opens the configured backend. The second result caches
// reverse-geocoding answers and is nil for the memory backend.
func openStore(cfg *config.Config, log logger.Logger) (store.Store, geocoding.PlaceCache, error) {
	switch cfg.Store {
	case config.StoreSQLite:
		s, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		log.Info("sqlite store opened", logger.String("path", s.Path()))
		return s, s, nil

	case config.StoreRedis:
		log.Infof("Connecting to Redis at %s", cfg.RedisAddr)
		client, err := redis.Connect(context.Background(), redis.ConnectOptions{
			Addr:           cfg.RedisAddr,
			User:           cfg.RedisUser,
			Password:       cfg.RedisPassword,
			DB:             cfg.RedisDB,
			DialTimeout:    cfg.RedisDT,
			ReadTimeout:    cfg.RedisRT,
			WriteTimeout:   cfg.RedisWT,
			PoolSize:       cfg.RedisPoolSize,
			ConnectTimeout: cfg.RedisConnectTimeout,
			RetryInterval:  cfg.RedisRetryInterval,
			MaxWait:        cfg.RedisMaxWait,
			PingTimeout:    cfg.RedisPingTimeout,
			WarnThreshold:  cfg.RedisWarnThreshold,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		s := redisstore.NewStore(client)
		return s, s, nil

	default:
		log.Warn("memory store selected, edits are lost on restart")
		return nil, nil, nil
	}
}

func newGateway(cfg *config.Config, places geocoding.PlaceCache, log logger.Logger) geocoding.Gateway {
	if !cfg.GeocoderEnabled {
		log.Info("reverse geocoding disabled")
		return nil
	}

	var gw geocoding.Gateway = geocoding.NewNominatim(geocoding.Options{
		BaseURL:     cfg.GeocoderURL,
		UserAgent:   cfg.GeocoderUserAgent,
		Timeout:     cfg.GeocoderTimeout,
		MinInterval: cfg.GeocoderMinInterval,
	})
	if places != nil {
		gw = geocoding.NewCached(gw, places, log)
	}

	log.Info("reverse geocoding enabled",
		logger.String("url", cfg.GeocoderURL),
		logger.Bool("cached", places != nil))
	return gw
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting divesite v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("%s (store=%s)", version.String(), a.cfg.Store)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start the store writer before any request can change the catalog.
	// It outlives the signal so writes issued during shutdown still land.
	if a.persister != nil {
		if err := a.persister.Start(context.WithoutCancel(ctx)); err != nil {
			return fmt.Errorf("failed to start persister: %w", err)
		}
		a.logger.Info("persister started")
	}

	if err := a.reaper.Start(ctx); err != nil {
		return fmt.Errorf("failed to start session reaper: %w", err)
	}
	a.logger.Info("session reaper started",
		logger.Duration("interval", a.cfg.ReaperInterval),
		logger.Duration("ttl", a.cfg.SessionTTL))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	a.reaper.Stop()

	// Drop in-flight lookups, then flush pending writes
	a.editor.Close()
	if a.persister != nil {
		a.persister.Stop()
		a.logger.Info("✅ Pending changes flushed")
	}

	if a.store != nil {
		utils.MustClose(a.store, a.cfg.Store, a.logger)
	}

	a.logger.Info("✅ divesite stopped cleanly")
	_ = a.logger.Sync()
	return nil
}
