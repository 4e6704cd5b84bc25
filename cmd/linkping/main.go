// Package main is the entrypoint for the LinkPing server: redirects, link
// creation, click ingestion and analytics in one process.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/linkping/linkping/internal/analytics"
	"github.com/linkping/linkping/internal/cache"
	"github.com/linkping/linkping/internal/clickstream"
	"github.com/linkping/linkping/internal/config"
	"github.com/linkping/linkping/internal/eventlog"
	"github.com/linkping/linkping/internal/handler"
	"github.com/linkping/linkping/internal/metrics"
	"github.com/linkping/linkping/internal/middleware"
	"github.com/linkping/linkping/internal/repository"
	"github.com/linkping/linkping/internal/retry"
	"github.com/linkping/linkping/internal/server"
	"github.com/linkping/linkping/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	repo, err := repository.New(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		logger.Error("failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		return err
	}
	logger.Info("connected to database")

	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		repo.Close()
		logger.Error("failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		return err
	}
	logger.Info("connected to Redis")

	var (
		recorder metrics.Recorder = metrics.NewNoop()
		gatherer prometheus.Gatherer
	)
	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		recorder = metrics.NewPrometheus(reg)
		gatherer = reg
	}

	// Click pipeline
	stream := eventlog.NewStream(cacheClient.Client(), cfg.StreamKey, 0)
	producer := clickstream.NewProducer(stream, clickstream.ProducerConfig{
		Timeout:                 cfg.PublishTimeout,
		BreakerFailureThreshold: cfg.BreakerFailureThreshold,
		BreakerOpenTimeout:      cfg.BreakerOpenTimeout,
	}, logger, recorder)

	var deadLetter clickstream.DeadLetterSink
	if cfg.DeadLetterEnabled {
		dlq := eventlog.NewStream(cacheClient.Client(), cfg.StreamKey+clickstream.DeadLetterSuffix, clickstream.DeadLetterMaxLen)
		deadLetter = clickstream.NewStreamDeadLetter(dlq, cfg.StreamKey)
	}

	processor := clickstream.NewProcessor(
		repository.NewClickRepository(repo),
		stream,
		cfg.ConsumerGroup,
		deadLetter,
		retry.Policy{
			MaxAttempts: cfg.PersistMaxAttempts,
			BaseDelay:   cfg.PersistBaseDelay,
			MaxJitter:   cfg.PersistMaxJitter,
		},
		logger,
		recorder,
	)

	reader := clickstream.NewReader(stream, processor, clickstream.ReaderConfig{
		Group:          cfg.ConsumerGroup,
		Consumer:       cfg.ConsumerName,
		BatchSize:      cfg.BatchSize,
		BlockTime:      cfg.BlockTime,
		ReadRetryDelay: cfg.ReadRetryDelay,
		ClaimInterval:  cfg.ClaimInterval,
		ClaimMinIdle:   cfg.ClaimMinIdle,
		TrimThreshold:  cfg.StreamMaxLen,
	}, logger, recorder)

	// Services and handlers
	linkService := service.NewLinkService(repo, cacheClient, cfg.LinkCacheTTL, logger, recorder)
	engine := analytics.NewEngine(repo, logger, recorder)

	r := setupRouter(routes{
		base:      handler.New(),
		health:    handler.NewHealthHandler(repo, cacheClient),
		redirect:  handler.NewRedirectHandler(linkService, producer, logger, recorder),
		shorten:   handler.NewShortenHandler(linkService, cfg.BaseURL, logger),
		analytics: handler.NewAnalyticsHandler(engine, logger),
		gatherer:  gatherer,
	}, cfg, logger)

	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)

	// Shutdown runs in reverse: reader first, then Redis, then PostgreSQL.
	srv.OnShutdown("postgres", func(ctx context.Context) error {
		repo.Close()
		return nil
	})
	srv.OnShutdown("redis", func(ctx context.Context) error {
		return cacheClient.Close()
	})
	srv.Background("click reader", reader.Run)
	srv.OnShutdown("click reader", reader.Shutdown)

	logger.Info("starting server",
		"port", cfg.AppPort,
		"base_url", cfg.BaseURL,
		"env", cfg.AppEnv,
		"stream", cfg.StreamKey,
		"consumer_group", cfg.ConsumerGroup,
		"dead_letter", cfg.DeadLetterEnabled,
	)

	return srv.Run(ctx)
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	var h slog.Handler
	if strings.EqualFold(cfg.LogFormat, "text") {
		h = slog.NewTextHandler(os.Stdout, opts)
	} else {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(h).With("service", "linkping", "env", cfg.AppEnv)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type routes struct {
	base      *handler.Handler
	health    *handler.HealthHandler
	redirect  *handler.RedirectHandler
	shorten   *handler.ShortenHandler
	analytics *handler.AnalyticsHandler
	gatherer  prometheus.Gatherer
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(h routes, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))

	r.Get("/healthz", h.health.Healthz)
	r.Get("/readyz", h.health.Readyz)
	if h.gatherer != nil {
		r.Method("GET", "/metrics", handler.NewMetricsHandler(h.gatherer))
	}

	security := middleware.DefaultSecurityConfig()
	security.IsDevelopment = cfg.IsDevelopment()
	security.MaxRequestBodySize = cfg.MaxRequestBodySize

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Security(security))
		r.Use(middleware.MaxBodySize(security.MaxRequestBodySize))

		r.Post("/shorten", h.shorten.Shorten)
		r.Get("/analytics/{slug}", h.analytics.GetAnalytics)
	})

	r.Get("/{slug}", h.redirect.Redirect)

	r.NotFound(h.base.NotFound)
	r.MethodNotAllowed(h.base.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
