// Command buyers-server serves the buyer-lead API over HTTP with a gRPC health endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/authz"
	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/bulk"
	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/config"
	pkgcrypto "github.com/Ashutosh-Shukla-036/buyer-leads/internal/crypto"
	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/limiter"
	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/metrics"
	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/migrate"
	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/repository/postgres"
	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/rules"
	grpcserver "github.com/Ashutosh-Shukla-036/buyer-leads/internal/server/grpc"
	httpserver "github.com/Ashutosh-Shukla-036/buyer-leads/internal/server/http"
	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const shutdownGrace = 5 * time.Second

func main() {
	cfgDir := flag.String("config", ".", "directory containing config.yaml")
	flag.Parse()

	cfg, err := config.Load(*cfgDir)
	if err != nil {
		// no logger yet
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}

	logger, _ := zap.NewProduction()
	if cfg.Log.Dev {
		logger, _ = zap.NewDevelopment()
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("http", cfg.HTTP.Addr),
		zap.String("grpcHealth", cfg.GRPC.HealthAddr),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.DB.DSN, logger); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	db, pool, err := postgres.New(ctx, cfg.DB.DSN, cfg.DB.MaxConns)
	if err != nil {
		logger.Fatal("connect", zap.Error(err))
	}
	defer db.Close()

	az, err := authz.New()
	if err != nil {
		logger.Fatal("authz", zap.Error(err))
	}
	ruleEngine, err := rules.Default()
	if err != nil {
		logger.Fatal("rules", zap.Error(err))
	}
	m := metrics.New()

	lim := limiter.NewPG(pool, limiter.Config{
		Window:   cfg.Auth.Limiter.Window,
		MaxFails: cfg.Auth.Limiter.MaxFails,
		BlockFor: cfg.Auth.Limiter.BlockFor,
	})
	authSvc := service.NewAuthService(
		postgres.NewUserRepo(db), pkgcrypto.NewHasher(pkgcrypto.DefaultParams),
		[]byte(cfg.Auth.JWTKey), cfg.Auth.AccessTTL, lim,
	)
	buyerSvc := service.NewBuyerService(postgres.NewBuyerRepo(db), az, ruleEngine, m, service.BuyerOptions{
		PageSize:      cfg.List.PageSize,
		RecentHistory: cfg.History.Recent,
	})
	importer := bulk.NewImporter(buyerSvc, logger.Named("import"))

	api := httpserver.New(authSvc, buyerSvc, importer, m, logger, httpserver.Options{
		ImportMaxBytes: cfg.Import.MaxBytes,
		BodyMaxBytes:   cfg.HTTP.MaxBodyBytes,
		Ready:          pool.Ping,
	})
	handler := cors.New(cors.Options{
		AllowedOrigins: cfg.HTTP.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
	}).Handler(api.Routes())

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("listening (http)", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var health *grpcserver.Health
	if cfg.GRPC.HealthAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPC.HealthAddr)
		if err != nil {
			logger.Fatal("listen", zap.Error(err))
		}
		health = grpcserver.NewHealth(pool.Ping, logger.Named("grpc"))
		go health.Watch(ctx, 10*time.Second)
		go func() {
			logger.Info("listening (grpc health)", zap.String("addr", cfg.GRPC.HealthAddr))
			errCh <- health.Serve(lis)
		}()
	}

	exit := 0
	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		exit = 1
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if health != nil {
		health.Stop(shutdownGrace)
	}
	logger.Info("shutdown complete")
	if exit != 0 {
		_ = logger.Sync()
		os.Exit(exit)
	}
}
