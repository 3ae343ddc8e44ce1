package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"meeting-scheduler/internal/app"
	"meeting-scheduler/internal/calsync"
	"meeting-scheduler/internal/config"
	"meeting-scheduler/internal/logger"
	"meeting-scheduler/internal/notify"
	"meeting-scheduler/internal/server"
)

func main() {
	cliApp := &cli.App{
		Name:  "meeting-scheduler",
		Usage: "Single-owner meeting booking service.",
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			seedCommand(),
			slotsCommand(),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// bootstrap loads configuration and builds the logger.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.IsProduction(), cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API and the calendar sync worker.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "migrate", Usage: "Apply the schema before serving."},
		},
		Action: func(c *cli.Context) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			return serve(c.Context, cfg, log, c.Bool("migrate"))
		},
	}
}

func serve(parent context.Context, cfg *config.Config, log *zap.Logger, migrate bool) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL required")
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := app.OpenPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer pool.Close()

	if migrate {
		if err := app.Migrate(ctx, pool); err != nil {
			return err
		}
		log.Info("schema applied")
	}

	jobs := calsync.NewRepository(pool)
	store := app.NewPgStore(pool, jobs, cfg.CalendarSyncMaxAttempts)
	hub := notify.NewHub(log.Named("hub"))

	sink, closeSinks, err := buildSinks(ctx, cfg, hub, log)
	if err != nil {
		return err
	}
	defer closeSinks()

	scheduler := app.NewScheduler(store, sink, log, app.SchedulerConfig{
		SlotLength:    cfg.SlotLengthMinutes,
		DefaultBuffer: cfg.DefaultBufferMinutes,
		CacheSize:     cfg.ScheduleCacheSize,
	})

	var cal calsync.Calendar
	if cfg.CalendarEnabled() {
		g, err := calsync.NewGoogleCalendar(ctx, cfg.GoogleServiceAccountEmail, cfg.GooglePrivateKey, cfg.GoogleCalendarID)
		if err != nil {
			return fmt.Errorf("init google calendar: %w", err)
		}
		cal = g
	}
	worker := calsync.NewWorker(jobs, cal, log, calsync.WorkerConfig{
		Interval:  cfg.CalendarSyncInterval,
		BatchSize: cfg.CalendarSyncBatchSize,
		Backoff:   cfg.CalendarSyncBackoff,
		Lease:     cfg.CalendarSyncLease,
		Timezone:  cfg.CalendarTimezone,
	})
	go worker.Run(ctx)

	if len(cfg.Tokens()) == 0 && cfg.JWTSecret == "" {
		log.Warn("no STATIC_TOKENS or JWT_HMAC_SECRET configured; owner routes will reject every request")
	}

	api := &app.App{
		Scheduler: scheduler,
		Hub:       hub,
		Logger:    log,
		Ready:     store.Ping,
	}
	router := server.NewRouter(log, cfg.Origins())
	api.Register(router,
		app.AuthMiddleware(cfg.Tokens(), cfg.JWTSecret),
		server.NewRateLimiter(cfg.BookingsPerMinute, log).Middleware(),
	)

	return server.Run(ctx, router, ":"+cfg.AppPort, log)
}

// buildSinks wires the notification path. With Redis configured events go
// through Redis and the relay feeds the local hub, so every instance sees
// every event once.
func buildSinks(ctx context.Context, cfg *config.Config, hub *notify.Hub, log *zap.Logger) (notify.Sink, func(), error) {
	var (
		sinks   notify.Fanout
		closers []func()
	)

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		bus := notify.NewRedisBus(rdb, cfg.RedisChannel, log.Named("redis"))
		go bus.Relay(ctx, hub)
		sinks = append(sinks, bus)
		closers = append(closers, func() { _ = rdb.Close() })
		log.Info("redis event bus enabled", zap.String("channel", cfg.RedisChannel))
	} else {
		sinks = append(sinks, hub)
	}

	if cfg.KafkaBrokers != "" {
		k := notify.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		sinks = append(sinks, k)
		closers = append(closers, func() {
			if err := k.Close(); err != nil {
				log.Warn("close kafka writer", zap.Error(err))
			}
		})
		log.Info("kafka event sink enabled", zap.String("topic", cfg.KafkaTopic))
	}

	return sinks, func() {
		for _, c := range closers {
			c()
		}
	}, nil
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply the database schema.",
		Action: func(c *cli.Context) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			pool, err := app.OpenPool(c.Context, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect db: %w", err)
			}
			defer pool.Close()

			if err := app.Migrate(c.Context, pool); err != nil {
				return err
			}
			log.Info("schema applied")
			return nil
		},
	}
}
