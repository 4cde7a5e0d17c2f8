// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-co-op/gocron/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/subtrack-app/subtrack/internal/config"
	"github.com/subtrack-app/subtrack/internal/notifications"
	"github.com/subtrack-app/subtrack/internal/notifications/email"
	notificationspostgres "github.com/subtrack-app/subtrack/internal/notifications/postgres"
	"github.com/subtrack-app/subtrack/internal/notifications/telegram"
	"github.com/subtrack-app/subtrack/internal/pkg/ctxlog"
	"github.com/subtrack-app/subtrack/internal/pkg/httputil"
	"github.com/subtrack-app/subtrack/internal/pkg/metrics"
	"github.com/subtrack-app/subtrack/internal/pkg/postgres"
	"github.com/subtrack-app/subtrack/internal/rates"
	ratespostgres "github.com/subtrack-app/subtrack/internal/rates/postgres"
	"github.com/subtrack-app/subtrack/internal/version"
	"github.com/subtrack-app/subtrack/migrations"
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	redis         *redis.Client
	scheduler     gocron.Scheduler
	server        *http.Server
	metricsServer *http.Server
	metricsCancel context.CancelFunc

	dispatcher   *notifications.Dispatcher
	ratesService *rates.Service
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)
	slog.SetDefault(logger)

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectAttempts: cfg.Database.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := postgres.Migrate(migrations.FS, migrations.Dir, cfg.Database.URL); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	metricsCtx, metricsCancel := context.WithCancel(context.Background())

	app := &App{
		config:        cfg,
		logger:        logger,
		db:            db,
		metricsCancel: metricsCancel,
	}

	if cfg.Redis.Enabled {
		app.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	go app.collectDBMetrics(metricsCtx)

	router, err := app.setup(connectCtx)
	if err != nil {
		db.Close()
		metricsCancel()
		return nil, fmt.Errorf("setup application: %w", err)
	}

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

func (a *App) setup(ctx context.Context) (*chi.Mux, error) {
	notificationsRepo := notificationspostgres.NewRepository(a.db)
	ratesRepo := ratespostgres.NewRepository(a.db)

	// Channel enablement and credentials live in notification settings and
	// are re-read every scan; the settings loaded here only seed the sender
	// transports. Changing the bot token requires a restart.
	settings, err := notificationsRepo.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load notification settings: %w", err)
	}

	telegramSender, err := telegram.NewSender(telegram.Config{
		Enabled:    settings.Telegram.BotToken != "",
		BotToken:   settings.Telegram.BotToken,
		RateLimit:  a.config.Notifications.Telegram.RateLimit,
		APIBaseURL: a.config.Notifications.Telegram.APIBaseURL,
		Timeout:    a.config.Notifications.Telegram.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram sender: %w", err)
	}
	if settings.Telegram.BotToken == "" {
		slog.Warn("telegram bot token not configured: telegram reminders will not be sent")
	}

	emailSender, err := email.NewSender(email.Config{
		Enabled:      a.config.Notifications.Email.SMTPHost != "",
		SMTPHost:     a.config.Notifications.Email.SMTPHost,
		SMTPPort:     a.config.Notifications.Email.SMTPPort,
		SMTPUser:     a.config.Notifications.Email.SMTPUser,
		SMTPPassword: a.config.Notifications.Email.SMTPPassword,
		FromAddress:  a.config.Notifications.Email.FromAddress,
	})
	if err != nil {
		return nil, fmt.Errorf("create email sender: %w", err)
	}

	a.dispatcher = notifications.NewDispatcher(notificationsRepo, telegramSender, emailSender)
	resolver := notifications.NewResolver(notificationsRepo)
	notificationsHandler := notifications.NewHandler(resolver, notificationsRepo, telegramSender)

	keys, err := rates.LoadKeys(ctx, ratesRepo)
	if err != nil {
		return nil, fmt.Errorf("load exchange rate keys: %w", err)
	}

	provider := rates.NewProvider(rates.ProviderConfig{
		BaseURL: a.config.Rates.ProviderBaseURL,
		Timeout: a.config.Rates.ProviderTimeout,
	})

	var cache *rates.Cache
	if a.redis != nil {
		cache = rates.NewCache(a.redis, a.config.Rates.CacheTTL)
	}

	a.ratesService = rates.NewService(ratesRepo, notificationsRepo, keys, provider, cache)
	ratesHandler := rates.NewHandler(keys, a.ratesService)

	if err := a.setupScheduler(); err != nil {
		return nil, err
	}

	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	r.Route("/api/v1", func(r chi.Router) {
		notificationsHandler.RegisterRoutes(r)
		ratesHandler.RegisterRoutes(r)
	})

	return r, nil
}

// setupScheduler registers the periodic jobs: the reminder scan and the
// exchange-rate tick. Singleton mode plus each component's own in-flight
// flag keeps overlapping runs out.
func (a *App) setupScheduler() error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(a.config.Notifications.ScanInterval),
		gocron.NewTask(a.runJob("reminder-scan", a.dispatcher.Scan)),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("reminder-scan"),
	)
	if err != nil {
		return fmt.Errorf("register reminder scan job: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(a.config.Rates.TickInterval),
		gocron.NewTask(a.runJob("rates-tick", a.ratesService.Tick)),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("rates-tick"),
	)
	if err != nil {
		return fmt.Errorf("register rates tick job: %w", err)
	}

	a.scheduler = scheduler
	return nil
}

func (a *App) runJob(name string, run func(context.Context) error) func() {
	return func() {
		start := time.Now()
		err := run(context.Background())
		metrics.ObserveJobRun(name, time.Since(start).Seconds(), err)
		if err != nil {
			slog.Error("scheduled job failed", "job", name, "error", err)
		}
	}
}

// Run starts the schedulers and HTTP servers.
func (a *App) Run() error {
	a.scheduler.Start()

	// Start metrics server in background
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
	)

	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down")

	a.metricsCancel()

	var errs []error

	if a.scheduler != nil {
		if err := a.scheduler.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("shutdown scheduler: %w", err))
		}
	}

	// Shutdown both servers in parallel
	var wg sync.WaitGroup
	var mu sync.Mutex

	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := a.server.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
			mu.Unlock()
		}
	}()

	go func() {
		defer wg.Done()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
			mu.Unlock()
		}
	}()

	wg.Wait()

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}

	a.db.Close()

	return errors.Join(errs...)
}

func (a *App) collectDBMetrics(ctx context.Context) {
	// Collect immediately on start
	metrics.RecordDBPoolMetrics(a.db)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.RecordDBPoolMetrics(a.db)
		case <-ctx.Done():
			return
		}
	}
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// Dispatcher returns the reminder dispatcher. Used in tests to trigger scans.
func (a *App) Dispatcher() *notifications.Dispatcher {
	return a.dispatcher
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.GitCommit,
		"build_date": version.BuildDate,
	})
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
