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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	connectserver "rag-chat/internal/adapter/connect"
	rag_http "rag-chat/internal/adapter/rag_http"
	"rag-chat/internal/adapter/rag_http/openapi"
	"rag-chat/internal/di"
	"rag-chat/internal/infra"
	"rag-chat/internal/infra/config"
	"rag-chat/internal/infra/logger"
	"rag-chat/internal/infra/otel"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load Config
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Initialize Telemetry and Logger
	shutdownOTel, err := otel.InitProvider(ctx, cfg.OTel, cfg.Env)
	if err != nil {
		return fmt.Errorf("failed to init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(shutdownCtx); err != nil {
			slog.Warn("failed to shutdown telemetry", "error", err)
		}
	}()

	log := logger.NewWithOTel(cfg.OTel.Enabled)
	slog.SetDefault(log)

	// 3. Initialize DB
	var dbPool *pgxpool.Pool
	if cfg.NeedsDB() {
		dbPool, err = infra.NewPostgresDB(ctx, cfg.DB)
		if err != nil {
			return fmt.Errorf("failed to connect to db: %w", err)
		}
		defer dbPool.Close()
	}

	// 4. Wire Components
	comps, err := di.NewApplicationComponents(cfg, dbPool, log)
	if err != nil {
		return fmt.Errorf("failed to wire components: %w", err)
	}
	defer func() {
		if err := comps.Close(); err != nil {
			log.Warn("failed to close components", "error", err)
		}
	}()

	// 5. Start Worker
	if comps.ChatLogWorker != nil {
		comps.ChatLogWorker.Start()
		defer func() {
			log.Info("Stopping worker...")
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := comps.ChatLogWorker.Stop(stopCtx); err != nil {
				log.Warn("chat log worker did not drain", "error", err)
			}
		}()
	}

	// 6. Initialize Echo
	doc, err := openapi.GetSwagger(ctx)
	if err != nil {
		return err
	}
	handler := rag_http.NewHandler(comps.ChatUsecase, comps.Readiness, log)
	routerCfg := rag_http.RouterConfig{AllowOrigins: cfg.Server.AllowOrigins}
	if cfg.OTel.Enabled {
		routerCfg.ServiceName = cfg.OTel.ServiceName
	}
	e := rag_http.NewRouter(handler, doc, routerCfg)

	// 7. Initialize Connect-RPC Server
	var connectHandler http.Handler = connectserver.CreateConnectServer(comps.ChatUsecase, log)
	if cfg.OTel.Enabled {
		connectHandler = otelhttp.NewHandler(connectHandler, "connect-rpc")
	}
	connectSrv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.ConnectPort),
		Handler:           connectHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 8. Start Servers
	errCh := make(chan error, 2)
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		log.Info("Starting server", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		log.Info("Starting Connect-RPC server", "addr", connectSrv.Addr)
		if err := connectSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("connect server: %w", err)
		}
	}()

	// 9. Graceful Shutdown
	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case serveErr = <-errCh:
		log.Error("Server failed", "error", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shutdown http server", "error", err)
	}
	if err := connectSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shutdown connect server", "error", err)
	}
	return serveErr
}
