package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/cafe-backend/internal/config"
	"github.com/iliyamo/cafe-backend/internal/database"
	"github.com/iliyamo/cafe-backend/internal/handler"
	"github.com/iliyamo/cafe-backend/internal/logger"
	"github.com/iliyamo/cafe-backend/internal/middleware"
	"github.com/iliyamo/cafe-backend/internal/queue"
	"github.com/iliyamo/cafe-backend/internal/repository"
	"github.com/iliyamo/cafe-backend/internal/router"
	"github.com/iliyamo/cafe-backend/internal/service"
	"github.com/iliyamo/cafe-backend/internal/token"
	"github.com/iliyamo/cafe-backend/internal/utils"
	"github.com/iliyamo/cafe-backend/internal/validation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zlog, err := logger.New(logger.Config{Level: cfg.LogLevel, Dev: cfg.IsDevelopment()})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zlog); err != nil {
		zlog.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, zlog *zap.Logger) error {
	db, err := database.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		zlog.Warn("redis unavailable; rate limiting, caching and token revocation disabled",
			zap.String("addr", cfg.Redis.Address()))
	} else {
		defer rdb.Close()
	}

	hasher, err := utils.NewHasher(cfg.Password.BcryptCost, cfg.Password.HashWorkers)
	if err != nil {
		return err
	}
	tokens := token.New(token.Config{
		AccessSecret:  cfg.JWT.Secret,
		RefreshSecret: cfg.Refresh.Secret,
		AccessTTL:     cfg.JWT.ExpiresIn,
		RefreshTTL:    cfg.Refresh.ExpiresIn,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
	})
	v := validation.New()

	users := repository.NewUserRepo(db, hasher)
	menu := repository.NewMenuRepo(db)

	var (
		accountOpts []service.AccountsOption
		gateOpts    []middleware.GateOption
	)
	if rdb != nil {
		denylist := repository.NewTokenDenylist(rdb, "")
		accountOpts = append(accountOpts, service.WithRevoker(denylist))
		gateOpts = append(gateOpts, middleware.WithRevocationCheck(denylist))
	}
	if pub := queue.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Queue, zlog); pub != nil {
		accountOpts = append(accountOpts, service.WithEvents(pub))
	}
	if cfg.AMQP.ConsumerEnabled && cfg.AMQP.URL != "" {
		consumer := queue.NewConsumer(cfg.AMQP.URL, cfg.AMQP.Queue, cfg.AMQP.AuditLogPath, zlog)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				zlog.Error("account event consumer stopped", zap.Error(err))
			}
		}()
	}

	accounts := service.NewAccounts(users, tokens, v, zlog, accountOpts...)
	gate := middleware.NewGate(tokens, users, zlog, gateOpts...)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = v
	e.HTTPErrorHandler = handler.ErrorHandler(zlog, cfg.IsDevelopment())

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowCredentials: true,
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(echomw.Secure())
	e.Use(echomw.Gzip())
	e.Use(echomw.BodyLimit(cfg.BodyLimit))
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogValuesFunc: func(c echo.Context, rv echomw.RequestLoggerValues) error {
			zlog.Info("request",
				zap.String("method", rv.Method),
				zap.String("uri", rv.URI),
				zap.Int("status", rv.Status),
				zap.Duration("latency", rv.Latency),
				zap.String("request_id", rv.RequestID),
				zap.String("remote_ip", rv.RemoteIP),
			)
			return nil
		},
	}))

	router.Register(e, router.Deps{
		Config: cfg,
		Redis:  rdb,
		Log:    zlog,
		Gate:   gate,
		Auth:   handler.NewAuthHandler(accounts),
		Menu:   handler.NewMenuHandler(menu),
		Health: handler.NewHealthHandler(cfg.Env, db, rdb),
	})

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		zlog.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zlog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = e.Shutdown(shutdownCtx)
	accounts.Wait()
	return err
}
