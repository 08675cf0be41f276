package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/iliyamo/car-rental-availability/internal/config"
	"github.com/iliyamo/car-rental-availability/internal/database"
	"github.com/iliyamo/car-rental-availability/internal/handler"
	"github.com/iliyamo/car-rental-availability/internal/logger"
	"github.com/iliyamo/car-rental-availability/internal/middleware"
	"github.com/iliyamo/car-rental-availability/internal/queue"
	"github.com/iliyamo/car-rental-availability/internal/repository"
	"github.com/iliyamo/car-rental-availability/internal/router"
	"github.com/iliyamo/car-rental-availability/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("could not read .env")
	}
	cfg := config.Load()
	lg := logger.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)

	db, err := openDB(cfg)
	if err != nil {
		lg.WithError(err).WithField("driver", cfg.DBDriver).Fatal("database connection failed")
	}
	defer db.Close()
	if cfg.AutoMigrate {
		if err := database.Migrate(db, cfg.DBDriver); err != nil {
			lg.WithError(err).Fatal("schema migration failed")
		}
	}

	var rdb *redis.Client
	if rc, err := config.NewRedisClient(config.LoadRedisConfig()); err != nil {
		lg.WithError(err).Warn("redis unavailable; cache and rate limiting disabled")
	} else {
		rdb = rc
		defer rdb.Close()
	}
	cacheCfg := config.LoadCacheConfig()
	invalidator := middleware.NewCacheInvalidator(rdb, cacheCfg.Prefix)

	bookings := repository.NewBookingRepo(db)
	days := repository.NewAvailabilityRepo(db)
	resolver := service.NewResolver(bookings, days)
	projector := service.NewProjector(bookings, days)
	projector.HorizonDays = cfg.HorizonDays

	opts := []service.LifecycleOption{
		service.WithLogger(lg),
		service.WithInvalidator(invalidator),
		service.WithTxTimeout(cfg.TxTimeout),
		service.WithMaxStayDays(cfg.MaxStayDays),
	}
	if cfg.EventsEnabled {
		opts = append(opts, service.WithEvents(queue.NewPublisher(cfg.RabbitURL, lg)))
	}
	lifecycle := service.NewLifecycleManager(db, bookings, days, resolver, opts...)
	blocks := service.NewBlockManager(db, days, invalidator, lg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.ConsumerEnabled {
		go func() {
			if err := queue.StartBookingConsumer(ctx, cfg.RabbitURL, cfg.BookingLogDir, lg); err != nil && !errors.Is(err, context.Canceled) {
				lg.WithError(err).Error("booking consumer stopped")
			}
		}()
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestLogger(lg))
	router.RegisterRoutes(e, db)
	router.RegisterPublic(e,
		handler.NewAvailabilityHandler(projector, resolver, lg),
		handler.NewBookingHandler(lifecycle, lg),
		middleware.NewAvailabilityCache(cacheCfg, rdb, lg),
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, lg),
	)
	router.RegisterAdmin(e, handler.NewAdminHandler(lifecycle, blocks, lg), cfg.JWTSecret)

	addr := ":" + cfg.Port
	go func() {
		lg.WithFields(log.Fields{"addr": addr, "env": cfg.Env, "driver": cfg.DBDriver}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		lg.WithError(err).Error("graceful shutdown failed")
	}
	lg.Info("server stopped")
}

func openDB(cfg config.Config) (*sql.DB, error) {
	if cfg.DBDriver == database.DriverSQLite {
		return database.OpenSQLite(cfg.SQLitePath)
	}
	return database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
}
