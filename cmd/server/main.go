// Command cg-server starts the cybergames HTTP API and its ops gRPC listener.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/cybergames/internal/authz"
	"github.com/and161185/cybergames/internal/cache"
	"github.com/and161185/cybergames/internal/config"
	"github.com/and161185/cybergames/internal/events"
	"github.com/and161185/cybergames/internal/identity"
	"github.com/and161185/cybergames/internal/limiter"
	"github.com/and161185/cybergames/internal/migrate"
	"github.com/and161185/cybergames/internal/repository/postgres"
	grpcserver "github.com/and161185/cybergames/internal/server/grpc"
	httpserver "github.com/and161185/cybergames/internal/server/http"
	"github.com/and161185/cybergames/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const shutdownTimeout = 10 * time.Second

// main loads configuration, migrates the schema and serves until SIGINT/SIGTERM.
func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	cfg, err := config.Parse(flag.CommandLine, os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := newLogger(cfg.Dev)
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("http", cfg.HTTPAddr),
		zap.String("ops", cfg.OpsAddr),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.DSN, logger); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}
	db, err := postgres.New(ctx, cfg.DSN)
	if err != nil {
		logger.Fatal("postgres", zap.Error(err))
	}
	defer db.Close()

	policy, err := authz.Load(cfg.PolicyPath)
	if err != nil {
		logger.Fatal("authz policy", zap.Error(err))
	}

	var pub events.Publisher = events.Nop{}
	if cfg.AMQPURL != "" {
		broker, err := events.Dial(cfg.AMQPURL, logger)
		if err != nil {
			logger.Fatal("amqp", zap.Error(err))
		}
		defer func() { _ = broker.Close() }()
		pub = broker
	}
	pub = events.Logged{Next: pub, Log: logger}

	var boards service.LeaderboardCache
	if cfg.RedisURL != "" {
		lb, rdb, err := cache.Connect(ctx, cfg.RedisURL, cfg.LeaderboardTTL, logger)
		if err != nil {
			logger.Warn("leaderboard cache disabled", zap.Error(err))
		} else {
			defer func() { _ = rdb.Close() }()
			boards = lb
		}
	}

	// Repositories
	userRepo := postgres.NewUserRepo(db)
	gameRepo := postgres.NewGameRepo(db)
	changeRepo := postgres.NewChangeRepo(db)
	promoRepo := postgres.NewPromotionRepo(db)
	saveRepo := postgres.NewSaveRepo(db)

	lim := limiter.NewPG(db.Pool, cfg.LoginWindow, cfg.LoginMaxFails, cfg.LoginBlockFor)
	idp := identity.NewLocal(postgres.NewIdentityRepo(db), lim, pub, []byte(cfg.JWTKey), cfg.AccessTTL, logger)

	// Services
	api := httpserver.New(httpserver.Services{
		Accounts:   service.NewAccountService(userRepo, idp, logger),
		Users:      service.NewUserService(userRepo, idp, policy, logger),
		Games:      service.NewGameService(gameRepo, policy, boards, logger),
		Changes:    service.NewChangeService(changeRepo, gameRepo, policy, pub, logger),
		Promotions: service.NewPromotionService(promoRepo, userRepo, policy, pub, logger),
		Saves:      service.NewSaveService(saveRepo, policy, boards, cache.Depth, logger),
	}, policy, logger, httpserver.Options{
		CORSOrigins: cfg.CORSOrigins,
		Ready:       db.Ping,
		BodyLimit:   "1M",
	})

	hs := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Echo(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var ops *grpcserver.Ops
	if cfg.OpsAddr != "" {
		lis, err := net.Listen("tcp", cfg.OpsAddr)
		if err != nil {
			logger.Fatal("listen ops", zap.Error(err))
		}
		ops = grpcserver.NewOps(logger, cfg.Dev)
		go ops.Watch(ctx, db.Ping, 5*time.Second)
		go func() {
			logger.Info("ops listening", zap.String("addr", cfg.OpsAddr))
			errCh <- ops.Serve(lis)
		}()
	}

	// Wait for stop
	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		stop()
	}

	// graceful shutdown: report NOT_SERVING first, then drain HTTP
	if ops != nil {
		ops.Shutdown(shutdownTimeout)
	}
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := hs.Shutdown(sctx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func newLogger(dev bool) *zap.Logger {
	build := zap.NewProduction
	if dev {
		build = zap.NewDevelopment
	}
	logger, err := build()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	return logger
}
