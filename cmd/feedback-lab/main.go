package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	_ "go.uber.org/automaxprocs"

	"github.com/miradorstack/feedback-lab/internal/api"
	"github.com/miradorstack/feedback-lab/internal/cache"
	"github.com/miradorstack/feedback-lab/internal/config"
	"github.com/miradorstack/feedback-lab/internal/metrics"
	"github.com/miradorstack/feedback-lab/internal/repo"
	"github.com/miradorstack/feedback-lab/internal/services"
	"github.com/miradorstack/feedback-lab/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting feedback-lab",
		slog.String("address", cfg.Server.Address),
		slog.String("storage", cfg.Storage.Driver),
		slog.String("model", cfg.LLM.Model))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := repo.OpenStore(ctx, repo.StoreConfig{
		Driver:          cfg.Storage.Driver,
		DSN:             cfg.Storage.DSN,
		MaxOpenConns:    cfg.Storage.MaxOpenConns,
		MaxIdleConns:    cfg.Storage.MaxIdleConns,
		ConnMaxLifetime: cfg.Storage.ConnMaxLifetime,
	})
	if err != nil {
		logger.Error("failed to open store", slog.Any("error", err))
		os.Exit(1)
	}

	cacheProvider, err := openCache(ctx, cfg.Cache)
	if err != nil {
		logger.Warn("response cache unavailable; continuing without cache", slog.Any("error", err))
		cacheProvider = cache.NoopProvider{}
	}
	cachedStore := repo.NewCachedStore(store, cacheProvider, cfg.Cache.ResponseTTL, logger)
	defer cachedStore.Close()

	if cfg.LLM.APIKey == "" {
		logger.Warn("llm api key not configured; generation requests will fail")
	}
	llmClient := repo.NewLLMClient(repo.LLMClientConfig{
		BaseURL:       cfg.LLM.BaseURL,
		APIKey:        cfg.LLM.APIKey,
		Model:         cfg.LLM.Model,
		SystemMessage: cfg.LLM.SystemMessage,
		Timeout:       cfg.LLM.Timeout,
		MaxRetries:    cfg.LLM.MaxRetries,
	})

	feedbackService := services.NewFeedbackService(logger, llmClient, cachedStore, services.Options{
		ListLimit:         cfg.Storage.ListLimit,
		EnforceScoreRange: cfg.Validation.EnforceScoreRange,
		MinScore:          cfg.Validation.MinScore,
		MaxScore:          cfg.Validation.MaxScore,
	})

	httpServer, err := api.NewHTTPServer(cfg.Server, api.NewRouter(logger, feedbackService, cfg.CORS, cfg.RateLimit))
	if err != nil {
		logger.Error("failed to create http server", slog.Any("error", err))
		os.Exit(1)
	}
	go func() {
		logger.Info("http server listening", slog.String("address", httpServer.Address()))
		if serveErr := httpServer.Start(); serveErr != nil {
			logger.Error("http server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	var opsServer *api.OpsServer
	if cfg.Server.GRPCAddress != "" {
		opsServer, err = api.NewOpsServer(cfg.Server.GRPCAddress)
		if err != nil {
			logger.Error("failed to create gRPC ops server", slog.Any("error", err))
			os.Exit(1)
		}
		go func() {
			logger.Info("gRPC ops server listening", slog.String("address", opsServer.Address()))
			if serveErr := opsServer.Start(); serveErr != nil {
				logger.Error("gRPC ops server exited", slog.Any("error", serveErr))
				stop()
			}
		}()
	}

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()

	if opsServer != nil {
		opsServer.Shutdown(shutdownCtx)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown", slog.Any("error", err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
	}

	logger.Info("feedback-lab stopped", slog.Duration("generation_p95", feedbackService.LatencyP95()))
}

func openCache(ctx context.Context, cfg config.CacheConfig) (cache.Provider, error) {
	switch cfg.Driver {
	case "valkey":
		return cache.NewValkeyProvider(ctx, cache.ValkeyConfig{
			Addr:         cfg.Addr,
			Username:     cfg.Username,
			Password:     cfg.Password,
			DB:           cfg.DB,
			KeyPrefix:    cfg.KeyPrefix,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			MaxRetries:   cfg.MaxRetries,
			TLS:          cfg.TLS,
		})
	case "memory":
		return cache.NewMemoryProvider(cfg.MaxEntries), nil
	default:
		return cache.NoopProvider{}, nil
	}
}
