package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"storefront-service/internal/api"
	"storefront-service/internal/cart"
	"storefront-service/internal/config"
	"storefront-service/internal/domain"
	"storefront-service/internal/logging"
	"storefront-service/internal/session"
	"storefront-service/internal/store"
)

const defaultAppName = "StorefrontService"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string
	root := &cobra.Command{
		Use:          "storefront",
		Short:        "Storefront catalog and cart service",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file loaded before the environment")

	root.AddCommand(newServeCmd(&envFile), newQueryCmd(&envFile))
	return root
}

func newServeCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and gRPC servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*envFile)
			if err != nil {
				return err
			}
			logger, err := logging.New(defaultAppName, cfg.AppEnv, cfg.LogLevel)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			return serve(cmd.Context(), cfg, logger)
		},
	}
}

func newQueryCmd(envFile *string) *cobra.Command {
	var (
		category string
		text     string
		minPrice string
		maxPrice string
		sort     string
	)
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Filter and sort the configured catalog and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*envFile)
			if err != nil {
				return err
			}
			logger, err := logging.New(defaultAppName, cfg.AppEnv, cfg.LogLevel)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			src, closeSrc, err := openCatalogSource(cfg, logger)
			if err != nil {
				return err
			}
			defer closeSrc()

			c, err := store.LoadCatalog(cmd.Context(), src)
			if err != nil {
				return err
			}
			filter, err := api.BuildFilter(c, category, text, minPrice, maxPrice, sort)
			if err != nil {
				return err
			}
			return printProducts(cmd.OutOrStdout(), c.Search(filter))
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "category name, or \"All Products\"")
	cmd.Flags().StringVarP(&text, "query", "q", "", "case-insensitive text over name, description and category")
	cmd.Flags().StringVar(&minPrice, "min-price", "", "inclusive lower price bound")
	cmd.Flags().StringVar(&maxPrice, "max-price", "", "inclusive upper price bound")
	cmd.Flags().StringVar(&sort, "sort", "", "popularity, newest, price-ascending, price-descending or rating-descending")
	return cmd
}

func printProducts(w io.Writer, products []domain.Product) error {
	for _, p := range products {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.1f\t%d\n",
			p.ID, p.Name, p.Category, cart.FormatMoney(p.Price), p.Rating, p.Reviews); err != nil {
			return err
		}
	}
	return nil
}

// openCatalogSource picks the product source named by the config. The
// returned close func releases any database pool.
func openCatalogSource(cfg *config.Config, logger *zap.Logger) (store.CatalogSource, func(), error) {
	switch cfg.Catalog.Source {
	case config.CatalogSourcePostgres:
		db, err := sql.Open("postgres", cfg.Postgres.DSN())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database connection: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to ping database: %w", err)
		}
		logger.Info("database connection established")
		src := store.NewPostgresSource(db, logger)
		return src, func() { _ = src.Close() }, nil
	default:
		if cfg.Catalog.File != "" {
			src, err := store.NewFileSource(cfg.Catalog.File)
			if err != nil {
				return nil, nil, err
			}
			return src, func() {}, nil
		}
		return store.NewDefaultSource(), func() {}, nil
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting service", zap.String("app_env", cfg.AppEnv), zap.String("catalog_source", cfg.Catalog.Source))

	src, closeSrc, err := openCatalogSource(cfg, logger)
	if err != nil {
		return err
	}
	c, err := store.LoadCatalog(ctx, src)
	if err != nil {
		closeSrc()
		return err
	}
	logger.Info("catalog ready", zap.Int("products", c.Len()))

	sessions := session.NewRegistry(nil)
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go sweepSessions(sweepCtx, sessions, cfg.Session, logger)

	httpAPIHandler := api.NewHTTPHandler(c, sessions, logger)
	grpcAPIHandler := api.NewGRPCHandler(c, sessions, logger)

	// --- Setup & Start HTTP Server ---
	httpRouter := chi.NewRouter()
	setupBaseMiddleware(httpRouter, logger)
	registerHealthCheck(httpRouter, logger, src, sessions)
	httpAPIHandler.RegisterRoutes(httpRouter)

	httpServer := &http.Server{
		Addr:         ":" + cfg.HttpServer.Port,
		Handler:      httpRouter,
		ReadTimeout:  cfg.HttpServer.TimeoutRead,
		WriteTimeout: cfg.HttpServer.TimeoutWrite,
		IdleTimeout:  cfg.HttpServer.TimeoutIdle,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("port", cfg.HttpServer.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server ListenAndServe error", zap.Error(err))
		}
		logger.Info("HTTP server has stopped")
	}()

	// --- Setup & Start gRPC Server ---
	grpcServer := setupGRPCServer(logger, grpcAPIHandler)
	grpcListener, err := net.Listen("tcp", ":"+cfg.GrpcServer.Port)
	if err != nil {
		closeSrc()
		return fmt.Errorf("failed to listen for gRPC on port %s: %w", cfg.GrpcServer.Port, err)
	}

	go func() {
		logger.Info("gRPC server listening", zap.String("port", cfg.GrpcServer.Port))
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Fatal("gRPC server Serve error", zap.Error(err))
		}
		logger.Info("gRPC server has stopped")
	}()

	// --- Graceful Shutdown ---
	shutdownComplete := make(chan struct{})
	go waitForShutdown(logger, httpServer, grpcServer, closeSrc, shutdownComplete)

	<-shutdownComplete
	logger.Info("service shutdown sequence finished")
	return nil
}

func sweepSessions(ctx context.Context, sessions *session.Registry, cfg config.SessionConfig, logger *zap.Logger) {
	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.Sweep(cfg.MaxIdle); n > 0 {
				logger.Debug("idle sessions removed", zap.Int("removed", n), zap.Int("live", sessions.Len()))
			}
		}
	}
}

func setupBaseMiddleware(router *chi.Mux, logger *zap.Logger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))
	logger.Debug("base HTTP middleware registered")
}

// requestLogger replaces chi's stdlib logger with zap.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

func registerHealthCheck(router *chi.Mux, logger *zap.Logger, src store.CatalogSource, sessions *session.Registry) {
	healthPath := "/api/v1/healthz"
	router.Get(healthPath, func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]interface{}{
			"status":      "healthy",
			"serviceName": defaultAppName,
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
			"sessions":    sessions.Len(),
		}
		if p, ok := src.(pinger); ok {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			dbStatus := "healthy"
			if err := p.Ping(ctx); err != nil {
				dbStatus = "unhealthy"
				logger.Warn("health check DB ping failed", zap.Error(err))
			}
			payload["database"] = dbStatus
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(payload)
	})
	logger.Debug("HTTP health check registered", zap.String("path", healthPath))
}

func setupGRPCServer(logger *zap.Logger, grpcAPIHandler *api.GRPCHandler) *grpc.Server {
	s := grpc.NewServer(api.ServerOptions(logger)...)

	grpcAPIHandler.Register(s)
	grpc_health_v1.RegisterHealthServer(s, health.NewServer())
	reflection.Register(s)
	logger.Debug("gRPC services registered", zap.String("service", api.StorefrontServiceName))
	return s
}

func waitForShutdown(
	logger *zap.Logger,
	httpServer *http.Server,
	grpcServer *grpc.Server,
	closeSource func(),
	shutdownComplete chan struct{},
) {
	defer close(shutdownComplete)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	receivedSignal := <-sigChan
	logger.Info("received signal, starting graceful shutdown", zap.String("signal", receivedSignal.String()))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	stoppedGrpc := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stoppedGrpc)
	}()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server graceful shutdown failed", zap.Error(err))
	} else {
		logger.Info("HTTP server gracefully shut down")
	}

	select {
	case <-stoppedGrpc:
		logger.Info("gRPC server gracefully shut down")
	case <-shutdownCtx.Done():
		logger.Warn("gRPC server graceful shutdown timed out, forcing stop", zap.Error(shutdownCtx.Err()))
		grpcServer.Stop()
	}

	closeSource()
	logger.Info("graceful shutdown sequence completed")
}
