package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/homestay-reservation/internal/config"
	"github.com/iliyamo/homestay-reservation/internal/database"
	"github.com/iliyamo/homestay-reservation/internal/handler"
	"github.com/iliyamo/homestay-reservation/internal/logger"
	"github.com/iliyamo/homestay-reservation/internal/metrics"
	"github.com/iliyamo/homestay-reservation/internal/middleware"
	"github.com/iliyamo/homestay-reservation/internal/pricing"
	"github.com/iliyamo/homestay-reservation/internal/queue"
	"github.com/iliyamo/homestay-reservation/internal/reservation"
	"github.com/iliyamo/homestay-reservation/internal/router"
	"github.com/iliyamo/homestay-reservation/internal/service"
	"github.com/iliyamo/homestay-reservation/internal/sweeper"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()

	log := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: "homestay-reservation",
		File:    cfg.LogFile,
	})
	log.SetDefault()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	db, err := database.Open(cfg.DBDriver, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.SQLitePath)
	if err != nil {
		log.Fatal("database connection failed", "driver", cfg.DBDriver, "error", err)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db, cfg.DBDriver); err != nil {
		log.Fatal("schema migration failed", "error", err)
	}

	policy, err := pricing.LoadPolicy(cfg.PricingPolicyFile)
	if err != nil {
		log.Fatal("pricing policy invalid", "file", cfg.PricingPolicyFile, "error", err)
	}

	m := metrics.Reservations()
	publisher := service.NewQueuePublisher(cfg.RabbitMQURL, log.Logger)
	svc := reservation.NewService(db, pricing.NewEngine(policy), publisher, reservation.Config{
		HoldTTL:    cfg.HoldTTL,
		CodeTTL:    cfg.OTPTTL,
		PaymentTTL: cfg.PaymentTTL,
		BcryptCost: cfg.BcryptCost,
		Logger:     log.Logger,
		Metrics:    m,
	})

	var workers sync.WaitGroup
	workers.Add(2)
	go func() {
		defer workers.Done()
		sweeper.New(db, sweeper.Config{Interval: cfg.SweepInterval, Logger: log.Logger, Metrics: m}).Start(ctx)
	}()
	go func() {
		defer workers.Done()
		journal := logger.Rotating(cfg.StaffJournal, 0, 0)
		queue.NewStaffConsumer(cfg.RabbitMQURL, journal, log.Logger).Run(ctx)
	}()

	// Without Redis the rate limiter runs in-process and caching is off.
	rdb, err := config.NewRedisClient(ctx)
	if err != nil {
		log.Warn("redis unavailable, continuing without it", "error", err)
	} else {
		defer rdb.Close()
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			log.Info("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))

	bookings := handler.NewBookingHandler(svc)
	limit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)
	router.RegisterRoutes(e, db)
	router.RegisterPublic(e, bookings, cfg.JWTSecret, limit, cache)
	router.RegisterCustomer(e, bookings, cfg.JWTSecret)
	router.RegisterStaff(e, bookings, cfg.JWTSecret)

	serverErrors := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		log.Info("listening", "addr", addr, "env", cfg.Env)
		serverErrors <- e.Start(addr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", "error", err)
		}
	case sig := <-shutdown:
		log.Info("shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "error", err)
	}
	stop()
	workers.Wait()
	svc.Wait()
	log.Info("stopped")
}
