package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/jcmexdev/marketplace-sagas/internal/api-gateway/infra/adapters/service"
	"github.com/jcmexdev/marketplace-sagas/internal/api-gateway/infra/httpx"
	"github.com/jcmexdev/marketplace-sagas/internal/config"
	"github.com/jcmexdev/marketplace-sagas/internal/coordinator"
	"github.com/jcmexdev/marketplace-sagas/internal/coordinator/sagalog"
	"github.com/jcmexdev/marketplace-sagas/internal/coordinator/sagalog/memory"
	"github.com/jcmexdev/marketplace-sagas/internal/coordinator/sagalog/sqlite"
	inventoryservice "github.com/jcmexdev/marketplace-sagas/internal/inventory-service"
	orderapp "github.com/jcmexdev/marketplace-sagas/internal/order-service/app"
	paymentservice "github.com/jcmexdev/marketplace-sagas/internal/payment-service/app"
	"github.com/jcmexdev/marketplace-sagas/internal/pkg/cache"
	"github.com/jcmexdev/marketplace-sagas/internal/pkg/events"
	"github.com/jcmexdev/marketplace-sagas/internal/pkg/httpclient"
	"github.com/jcmexdev/marketplace-sagas/internal/pkg/interceptors"
	"github.com/jcmexdev/marketplace-sagas/internal/pkg/telemetry"
	userservice "github.com/jcmexdev/marketplace-sagas/internal/user-service/app"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := telemetry.InitLogger(cfg.ServiceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("marketplace node stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	shutdownTracer := telemetry.ShutdownFunc(telemetry.NoopShutdown)
	if cfg.OTELEnabled {
		var err error
		shutdownTracer, err = telemetry.SetupTracer(ctx, telemetry.TracerConfig{
			ServiceName: cfg.ServiceName,
			Environment: cfg.Environment,
			Endpoint:    cfg.OTELEndpoint,
			SampleRatio: cfg.OTELSampleRatio,
		})
		if err != nil {
			return fmt.Errorf("setup tracer: %w", err)
		}
	}

	sagaLog, err := openSagaLog(cfg)
	if err != nil {
		return err
	}

	publisher := events.Publisher(events.Nop{})
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaOrdersTopic, logger)
	}

	idempotency := newIdempotencyCache(ctx, cfg, logger)

	// Entities and workers outlive the signal context so they can drain
	// during shutdown.
	actorCtx, stopActors := context.WithCancel(context.WithoutCancel(ctx))
	defer stopActors()

	products := inventoryservice.NewDirectory(actorCtx, cfg.EntityShards, logger)
	orders := orderapp.NewDirectory(actorCtx, cfg.EntityShards, logger)

	catalog, err := inventoryservice.LoadFile(cfg.ProductsCSV)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	logger.Info("catalog loaded", "products", inventoryservice.Bootstrap(products, catalog))

	deps := coordinator.Deps{
		Products: products,
		Orders:   orders,
		Users:    newUsersClient(cfg, logger),
		Wallets:  newWalletClient(cfg, logger),
		SagaLog:  sagaLog,
		Events:   publisher,
		Logger:   logger,
	}
	placement := coordinator.NewPlacementPool(actorCtx, cfg.PlacementWorkers, deps)
	cancellation := coordinator.NewCancellationPool(actorCtx, cfg.CancellationWorkers, deps)

	gateway := service.NewGateway(service.Config{
		Products:     products,
		Orders:       orders,
		Placement:    placement,
		Cancellation: cancellation,
		AskTimeout:   cfg.AskTimeout,
		Logger:       logger,
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpx.NewRouter(httpx.NewHandler(gateway, idempotency, cfg.IdempotencyTTL, logger), cfg.ServiceName),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer(interceptors.ServerOptions(logger)...)
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.GRPCAddr, err)
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("admin gRPC running", "addr", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()
	go func() {
		logger.Info("marketplace HTTP running", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case runErr = <-errCh:
	}

	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
	placement.Stop(shutdownCtx)
	cancellation.Stop(shutdownCtx)
	orders.Stop(shutdownCtx)
	products.Stop(shutdownCtx)
	grpcServer.GracefulStop()

	if err := publisher.Close(); err != nil {
		logger.Error("event publisher close error", "error", err)
	}
	if err := idempotency.Close(); err != nil {
		logger.Error("cache close error", "error", err)
	}
	if err := sagaLog.Close(); err != nil {
		logger.Error("saga log close error", "error", err)
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		logger.Error("tracer shutdown error", "error", err)
	}

	logger.Info("marketplace node stopped")
	return runErr
}

func openSagaLog(cfg *config.Config) (sagalog.Repository, error) {
	if cfg.SagaLogPath == "" {
		return memory.New(), nil
	}
	repo, err := sqlite.Open(cfg.SagaLogPath)
	if err != nil {
		return nil, fmt.Errorf("open saga log: %w", err)
	}
	return repo, nil
}

// newIdempotencyCache prefers Redis and falls back to process memory when no
// address is configured or the server does not answer.
func newIdempotencyCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) cache.Cache {
	if cfg.RedisAddr == "" {
		return cache.NewMemoryCache(cfg.ServiceName)
	}
	c := cache.NewRedisCache(cfg.RedisAddr, cfg.ServiceName)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := cache.Ping(pingCtx, c); err != nil {
		logger.Warn("redis unavailable, using in-memory idempotency cache", "addr", cfg.RedisAddr, "error", err)
		_ = c.Close()
		return cache.NewMemoryCache(cfg.ServiceName)
	}
	return c
}

func breakerConfig(cfg *config.Config, name string) httpclient.CircuitBreakerConfig {
	return httpclient.CircuitBreakerConfig{
		Name:         name,
		MaxRequests:  cfg.CBMaxRequests,
		Interval:     cfg.CBIntervalDuration(),
		Timeout:      cfg.CBTimeoutDuration(),
		FailureRatio: cfg.CBFailureRatio,
		MinRequests:  cfg.CBMinRequests,
	}
}

func newUsersClient(cfg *config.Config, logger *slog.Logger) *userservice.Client {
	hc := httpclient.DefaultConfig()
	hc.Timeout = cfg.ExternalCallTimeout
	hc.MaxRetries = cfg.UserLookupRetries
	doer := httpclient.NewCircuitBreakerClient(httpclient.New(hc), breakerConfig(cfg, "users-service"), logger)
	return userservice.NewClient(cfg.UsersServiceURL, doer, cfg.ExternalCallTimeout, logger)
}

// Wallet PUTs are never retried: a replayed debit could charge twice.
func newWalletClient(cfg *config.Config, logger *slog.Logger) *paymentservice.WalletClient {
	hc := httpclient.DefaultConfig()
	hc.Timeout = cfg.ExternalCallTimeout
	hc.MaxRetries = 0
	doer := httpclient.NewCircuitBreakerClient(httpclient.New(hc), breakerConfig(cfg, "wallets-service"), logger)
	return paymentservice.NewWalletClient(cfg.WalletsServiceURL, doer, cfg.ExternalCallTimeout, logger)
}
