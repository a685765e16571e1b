package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"advisorledger/internal/config"
	"advisorledger/internal/handler"
	"advisorledger/internal/infrastructure/cache"
	"advisorledger/internal/infrastructure/database"
	"advisorledger/internal/infrastructure/lock"
	"advisorledger/internal/infrastructure/mq"
	"advisorledger/internal/job"
	"advisorledger/internal/logging"
	"advisorledger/internal/repository"
	"advisorledger/internal/service"
	"advisorledger/pkg/idgen"

	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(&cfg.Log)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	if err := idgen.Init(1); err != nil {
		return fmt.Errorf("init id generator: %w", err)
	}

	db, err := database.InitMySQL(&cfg.MySQL, log)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
	}

	notifier := service.NewNotificationService(db, cfg.Kafka.Topic.Notification, log)
	deps := service.Deps{
		Store:    repository.NewGormStore(db),
		Notifier: notifier,
		Logger:   log,
	}

	// Redis is optional: without it plan locking stays in-database and stats are not cached.
	if cfg.Redis.Enabled {
		rdb, err := cache.InitRedis(&cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		deps.Locker = lock.NewPlanLocker(rdb, time.Duration(cfg.Business.PlanLockTTLSeconds)*time.Second, log)
		deps.Cache = cache.NewStatsCache(rdb, time.Duration(cfg.Business.StatsCacheTTLSeconds)*time.Second)
	}

	stats := service.NewStatsService(deps, cfg.Business.StatsWindowMonths)
	h := handler.NewHandler(handler.Services{
		Clients:       service.NewClientService(deps),
		Transactions:  service.NewTransactionService(deps),
		Reports:       service.NewReportService(deps),
		Stats:         stats,
		Notifications: notifier,
		Movements:     service.NewMovementService(db, nil, log),
	})

	jobs := job.NewRunner(context.Background())

	if cfg.Kafka.Enabled {
		producer, err := mq.NewProducer(&cfg.Kafka)
		if err != nil {
			return err
		}
		defer producer.Close()

		outboxSender := job.NewOutboxSender(db, producer,
			time.Duration(cfg.Business.OutboxIntervalMillis)*time.Millisecond, cfg.Business.MaxRetryCount, log)
		jobs.Go(outboxSender.Start)
	} else {
		log.Warn().Msg("kafka disabled, notifications stay in the outbox")
	}

	reconcileJob := job.NewReconcileJob(stats, time.Duration(cfg.Business.ReconcileIntervalSeconds)*time.Second, log)
	jobs.Go(reconcileJob.Start)
	// runs before the deferred producer.Close
	defer jobs.Shutdown()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler.SetupRouter(h, cfg.Auth.JWTSecret, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	jobs.Shutdown()

	log.Info().Msg("server stopped")
	return nil
}
