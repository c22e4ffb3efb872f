package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/cache"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/config"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/database"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/handler"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/middleware"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/observability/tracing"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/queue"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/repository"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/repository/memstore"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/router"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/service"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(log)
	log.Info("starting reservation service", slog.String("env", cfg.Env), slog.String("store", cfg.StoreDriver))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, log, cfg.OTELEndpoint, cfg.ServiceName, cfg.Env)
	if err != nil {
		log.Error("tracing init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ready := map[string]handler.ReadyCheck{}
	var store repository.Store
	switch cfg.StoreDriver {
	case config.DriverMemory:
		store = memstore.New()
		log.Warn("using the in-memory store; data is lost on restart")
	default:
		db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			log.Error("database connection failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer db.Close()
		if cfg.AutoMigrate {
			if err := database.Migrate(ctx, db); err != nil {
				log.Error("migration failed", slog.String("error", err.Error()))
				os.Exit(1)
			}
		}
		store = repository.NewSQLStore(db)
		ready["mysql"] = db.PingContext
	}

	clock := clockwork.NewRealClock()
	opts := []service.Option{
		service.WithClock(clock),
		service.WithLogger(log),
		service.WithConfig(service.Config{
			Location:             cfg.FacilityTZ,
			CheckedInGrace:       cfg.Sweep.CheckedInGrace,
			ReminderLead:         cfg.Sweep.ReminderLead,
			OverdueReminderEvery: cfg.Sweep.OverdueReminderEvery,
		}),
	}

	rdb := config.NewRedisClient(ctx)
	if rdb != nil {
		defer rdb.Close()
		ready["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		if cfg.Cache.Enabled {
			opts = append(opts, service.WithCache(cache.NewCatalog(rdb, cfg.Cache.Prefix, cfg.Cache.TTL)))
		}
	} else {
		log.Warn("redis unavailable; catalog cache and rate limiting disabled")
	}

	if cfg.AMQPURL != "" {
		pub := queue.NewPublisher(cfg.AMQPURL, log)
		defer pub.Close()
		opts = append(opts, service.WithNotifier(queue.NewAsync(pub, 5*time.Second, log, nil)))
		if cfg.NotifyConsumerEnabled {
			go func() {
				if err := queue.StartNotificationConsumer(ctx, cfg.AMQPURL, cfg.NotifyLogDir, log); err != nil {
					log.Error("notification consumer stopped", slog.String("error", err.Error()))
				}
			}()
		}
	}

	svc := service.New(store, opts...)

	if cfg.Sweep.Enabled {
		sweeper, err := worker.NewSweepScheduler(svc, cfg.Sweep.Interval, clock, log)
		if err != nil {
			log.Error("sweep scheduler init failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		sweeper.Start()
		defer func() {
			if err := sweeper.Stop(); err != nil {
				log.Warn("sweep scheduler stop", slog.String("error", err.Error()))
			}
		}()
	}

	e := router.New(router.Deps{
		Handler:     handler.New(svc, log),
		JWTSecret:   cfg.JWTSecret,
		RateLimiter: middleware.NewRateLimiter(cfg.RateLimit, rdb, clock, log),
		Ready:       ready,
		Logger:      log,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(e, "http.server"),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.Info("listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("tracing shutdown", slog.String("error", err.Error()))
	}
}
