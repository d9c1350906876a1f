// Command dashboard serves grid sustainability insights for one or more
// electricity zones.
//
// The dashboard fetches carbon intensity and power breakdown history from
// the upstream API (through a memory or Redis cache), classifies the last
// 24 hours, predicts the next 24 hours and turns both into recommendations.
// Results are served over HTTP, gRPC and a websocket feed kept current by a
// background refresher.
//
// Usage:
//
//	dashboard -zone=PT -zones=PT,ES -storage=redis -redis-addr=redis:6379
//
// Environment variables:
//
//	ELECTRICITYMAP_API_KEY - Upstream API token
//	ZONE                   - Default grid zone (default: PT)
//	ZONES                  - Zones kept warm by the refresher (default: ZONE)
//	LISTEN                 - HTTP listen address (default: :8080)
//	GRPC_LISTEN            - gRPC listen address (default: :50051)
//	STORAGE                - memory or redis (default: memory)
//	CLASSIFIER             - local or byom (default: local)
//	ARTIFACTS_DIR          - Classifier artifacts directory (default: ./artifacts)
//	LOG_LEVEL              - Logging level: debug, info, warn, error (default: info)
//	LOG_FORMAT             - Logging format: text, json (default: text)
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/ecoaily/gridinsight/cmd/dashboard/config"
	"github.com/ecoaily/gridinsight/cmd/dashboard/grpcapi"
	"github.com/ecoaily/gridinsight/cmd/dashboard/logger"
	"github.com/ecoaily/gridinsight/cmd/dashboard/metrics"
	"github.com/ecoaily/gridinsight/cmd/dashboard/router"
	"github.com/ecoaily/gridinsight/pkg/adapters"
	"github.com/ecoaily/gridinsight/pkg/classify"
	"github.com/ecoaily/gridinsight/pkg/httpx"
	"github.com/ecoaily/gridinsight/pkg/insight"
	"github.com/ecoaily/gridinsight/pkg/policy"
	"github.com/ecoaily/gridinsight/pkg/storage"
	"github.com/ecoaily/gridinsight/pkg/stream"
	gridtls "github.com/ecoaily/gridinsight/pkg/tls"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	cfg := config.ParseFlags()
	log := logger.New(cfg)

	log.Info("starting gridinsight dashboard",
		"version", version,
		"listen", cfg.Listen,
		"grpc_listen", cfg.GRPCListen,
		"zones", cfg.Zones,
		"adapter", cfg.Adapter,
		"storage", cfg.Storage,
		"classifier", cfg.Classifier,
		"tls_enabled", cfg.TLS.Enabled,
	)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx, cancel, cfg, log); err != nil {
		log.Error("dashboard failed", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

func run(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, log *slog.Logger) error {
	m := metrics.New()

	sources := make(map[string]adapters.Adapter)
	for _, dataset := range []string{adapters.DatasetCarbonIntensity, adapters.DatasetPowerBreakdown} {
		src, err := adapters.New(cfg.Adapter, cfg.AdapterSettings(dataset))
		if err != nil {
			return fmt.Errorf("create %s adapter: %w", dataset, err)
		}
		sources[dataset] = src
	}

	store, ping, closeStore, err := newStore(cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	var remote func(metric string) classify.Classifier
	if cfg.Classifier == "byom" {
		remote = func(metric string) classify.Classifier {
			return classify.NewRemoteClassifier(cfg.BYOMURL, metric, cfg.RequestTimeout)
		}
	}
	kinds := make([]string, 0, len(policy.Kinds))
	for _, k := range policy.Kinds {
		kinds = append(kinds, string(k))
	}
	models := classify.LoadRegistry(cfg.ArtifactsDir, kinds, remote, log)

	engine, err := insight.New(insight.Options{
		Sources:  sources,
		Store:    store,
		TTL:      cfg.CacheTTL,
		Models:   models,
		Logger:   log,
		Observer: m,
	})
	if err != nil {
		return fmt.Errorf("create insight engine: %w", err)
	}

	hub := stream.NewHub(log)

	var refresher *Refresher
	if cfg.RefreshInterval > 0 {
		refresher = NewRefresher(engine, hub, cfg.Zones, cfg.Quantity, log, m)
		go func() {
			if err := refresher.Run(ctx, cfg.RefreshInterval); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("refresher stopped", "error", err)
			}
		}()
	} else {
		log.Info("refresher disabled")
	}

	healthCheck := func() error {
		if err := ping(ctx); err != nil {
			return fmt.Errorf("history cache: %w", err)
		}
		if refresher != nil {
			return refresher.Healthy()
		}
		return nil
	}

	handler := router.SetupRoutes(router.Options{
		Engine:          engine,
		Hub:             hub,
		DefaultZone:     cfg.Zone,
		DefaultQuantity: cfg.Quantity,
		Timeout:         cfg.RequestTimeout + 5*time.Second,
		CORSOrigins:     cfg.CORSOrigins,
		Health:          healthCheck,
		Logger:          log,
	})
	httpServer := httpx.NewServer(cfg.Listen, handler, log)

	var grpcOpts []grpc.ServerOption
	if cfg.TLS.Enabled {
		tlsConfig, err := gridtls.NewServerTLSConfig(cfg.TLS)
		if err != nil {
			return fmt.Errorf("load TLS configuration: %w", err)
		}
		httpServer.SetTLSConfig(tlsConfig)
		grpcOpts = append(grpcOpts, grpc.Creds(credentials.NewTLS(tlsConfig)))
	}

	errCh := make(chan error, 2)

	var grpcServer *grpc.Server
	if cfg.GRPCListen != "" {
		grpcServer = grpc.NewServer(grpcOpts...)
		grpcapi.Register(grpcServer, grpcapi.NewServer(engine, cfg.Zone, cfg.Quantity, m, log))

		healthServer := health.NewServer()
		grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
		healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
		healthServer.SetServingStatus(grpcapi.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

		reflection.Register(grpcServer)

		lis, err := net.Listen("tcp", cfg.GRPCListen)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", cfg.GRPCListen, err)
		}

		go func() {
			log.Info("grpc server listening", "address", cfg.GRPCListen)
			if err := grpcServer.Serve(lis); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	go func() {
		start := httpServer.Start
		if cfg.TLS.Enabled {
			start = httpServer.StartTLS
		}
		if err := start(); err != nil {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigChan:
		log.Info("received shutdown signal", "signal", sig)
	case runErr = <-errCh:
	}
	cancel()

	if grpcServer != nil {
		log.Info("shutting down grpc server")
		grpcServer.GracefulStop()
	}

	log.Info("shutting down http server")
	if err := httpServer.Stop(10 * time.Second); err != nil {
		log.Error("http server shutdown error", "error", err)
	}

	return runErr
}

// newStore builds the history cache along with a reachability check and a
// release function.
func newStore(cfg *config.Config, log *slog.Logger) (storage.Store, func(context.Context) error, func(), error) {
	switch cfg.Storage {
	case "redis":
		rs, err := storage.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheRetention)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		log.Info("using redis history cache", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
		return rs, rs.Ping, func() {
			if err := rs.Close(); err != nil {
				log.Error("failed to close redis store", "error", err)
			}
		}, nil

	default:
		ms := storage.NewMemoryStoreWithRetention(cfg.CacheRetention, time.Minute)
		log.Info("using in-memory history cache", "retention", cfg.CacheRetention)
		noPing := func(context.Context) error { return nil }
		return ms, noPing, ms.Stop, nil
	}
}
