package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/clinicore/scheduling-engine/internal/api"
	"github.com/clinicore/scheduling-engine/internal/app"
	"github.com/clinicore/scheduling-engine/internal/availability"
	"github.com/clinicore/scheduling-engine/internal/booking"
	"github.com/clinicore/scheduling-engine/internal/config"
	"github.com/clinicore/scheduling-engine/internal/db"
	"github.com/clinicore/scheduling-engine/internal/directory"
	redisclient "github.com/clinicore/scheduling-engine/internal/redis"
	"github.com/clinicore/scheduling-engine/internal/reminder"
	"github.com/clinicore/scheduling-engine/internal/schedule"
	"github.com/clinicore/scheduling-engine/internal/waitlist"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger := app.NewLogger(cfg.Env)
	defer func() { _ = logger.Sync() }()

	logger.Info("api-server starting up",
		zap.String("env", cfg.Env), zap.String("http_port", cfg.HTTPPort))

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	migCtx, cancelMig := context.WithTimeout(rootCtx, 30*time.Second)
	err = db.Migrate(migCtx, pgPool)
	cancelMig()
	if err != nil {
		logger.Fatal("migration error", zap.Error(err))
	}
	logger.Info("migrations applied")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("error closing redis", zap.Error(err))
		}
	}()
	logger.Info("connected to Redis")

	scheduleRepo := schedule.NewPgRepository(pgPool)
	slotStore := availability.NewPgSlotStore(pgPool)
	bookingRepo := booking.NewPgRepository(pgPool)
	waitlistRepo := waitlist.NewPgRepository(pgPool)
	reminderRepo := reminder.NewPgRepository(pgPool)

	engine := availability.NewEngine(scheduleRepo, slotStore, bookingRepo)
	locker := redisclient.NewRedisOfferLocker(rdb, cfg.LockTTL)
	waitlistSvc := waitlist.NewService(waitlistRepo, locker, cfg, logger)
	reminderSvc := reminder.NewService(reminderRepo, logger)
	dirClient := directory.NewPgClient(pgPool)

	bookingSvc := booking.NewService(
		bookingRepo, slotStore, engine, dirClient, reminderSvc, waitlistSvc, cfg, logger)

	router := api.NewRouter(api.RouterConfig{
		Bookings:         bookingSvc,
		Availability:     engine,
		Waitlist:         waitlistSvc,
		Schedules:        scheduleRepo,
		PgPool:           pgPool,
		Redis:            rdb,
		Logger:           logger,
		Env:              cfg.Env,
		Version:          version,
		AvailabilityDays: cfg.AvailabilityDays,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	logger.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
