package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/uptrace/bun"

	auth "github.com/rideshare/go-rideshare-auth"
	"github.com/rideshare/go-rideshare-auth/config"
	"github.com/rideshare/go-rideshare-auth/logging"
	"github.com/rideshare/go-rideshare-auth/notify"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (yaml, json or toml)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	zl, err := logging.New(logging.Config{Development: cfg.Log.Development, Level: cfg.Log.Level})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger := logging.NewAdapter(zl).Named("rideshare-auth")
	defer logger.Sync()

	settings, err := cfg.Settings()
	if err != nil {
		return fmt.Errorf("auth settings: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := auth.OpenDB(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := auth.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	notifier, sinks, closers, err := buildNotifier(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Warn("close publisher", "error", err)
			}
		}
	}()

	sinks = append(sinks, auth.NewMetricsSink(registry))
	auther := auth.NewAuther(settings, auth.NewRepositoryManager(db), notifier,
		auth.WithLogger(logger.Named("auth")),
		auth.WithActivitySink(auth.ActivitySinks(sinks...)),
	)

	var app *fiber.App
	srv := router.NewFiberAdapter(func(*fiber.App) *fiber.App {
		app = router.DefaultFiberOptions(fiber.New(fiber.Config{
			AppName:      settings.AppName,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			ErrorHandler: auth.ErrorHandler(logger),
		}))
		return app
	})

	app.Get("/metrics", auth.MetricsHandler(registry))
	srv.Router().Get("/healthz", healthHandler(db))

	auth.RegisterAuthRoutes(srv.Router().Group("/auth"), auth.NewAuthController(auther,
		auth.WithControllerLogger(logger.Named("http")),
		auth.WithControllerDebug(cfg.App.Debug),
	))

	api := srv.Router().Group("/api")
	api.Get("/whoami", func(c router.Context) error {
		claims, ok := auth.ClaimsFromCtx(c)
		if !ok {
			return auth.ErrTokenInvalid()
		}
		id, err := claims.AccountID()
		if err != nil {
			return err
		}
		account, err := auther.Account(c.Context(), id)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, account)
	}, auther.Guards().Middleware())

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr)
		errc <- app.Listen(cfg.Server.Addr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return app.ShutdownWithContext(shutdownCtx)
}

func buildNotifier(cfg *config.Config, logger *logging.Adapter) (auth.Notifier, []auth.ActivitySink, []func() error, error) {
	var (
		delivery auth.Notifier
		sinks    []auth.ActivitySink
		closers  []func() error
	)

	switch cfg.Notifier.Driver {
	case "kafka":
		if len(cfg.Notifier.Brokers) == 0 {
			return nil, nil, nil, fmt.Errorf("kafka notifier requires brokers")
		}
		kn := notify.NewKafkaNotifier(notify.NewKafkaWriter(cfg.Notifier.Brokers, cfg.Notifier.Topic))
		delivery = notify.NewBreakerNotifier(kn, notify.BreakerConfig{
			Name:        "notifications",
			MaxFailures: cfg.Notifier.Breaker.MaxFailures,
			Interval:    cfg.Notifier.Breaker.Interval,
			Timeout:     cfg.Notifier.Breaker.Timeout,
		}, logger)
		closers = append(closers, kn.Close)

		if cfg.Notifier.AuditTopic != "" {
			audit := notify.NewAuditPublisher(notify.NewKafkaWriter(cfg.Notifier.Brokers, cfg.Notifier.AuditTopic))
			sinks = append(sinks, audit)
			closers = append(closers, audit.Close)
		}
	case "log", "":
		delivery = notify.NewLogNotifier(logger.Named("notify"))
	default:
		return nil, nil, nil, fmt.Errorf("unknown notifier driver %q", cfg.Notifier.Driver)
	}

	notifier, err := notify.NewTemplateNotifier(delivery)
	if err != nil {
		return nil, nil, nil, err
	}
	return notifier, sinks, closers, nil
}

func healthHandler(db *bun.DB) router.HandlerFunc {
	return func(c router.Context) error {
		ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
}
