package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/dig"
	"go.uber.org/zap"

	rediscache "github.com/davidbz/hearth/internal/cache/redis"
	"github.com/davidbz/hearth/internal/config"
	"github.com/davidbz/hearth/internal/domain"
	"github.com/davidbz/hearth/internal/http"
	"github.com/davidbz/hearth/internal/http/middleware"
	"github.com/davidbz/hearth/internal/observability"
	"github.com/davidbz/hearth/internal/provider/registry"
	"github.com/davidbz/hearth/internal/tokenizer"
)

const shutdownTimeout = 10 * time.Second

func main() {
	container := buildContainer()

	err := container.Invoke(func(
		server *http.Server,
		reg domain.ProviderRegistry,
		logger *zap.Logger,
	) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() { errCh <- server.Start() }()

		select {
		case err := <-errCh:
			if err != nil {
				log.Fatalf("Server failed: %v", err)
			}
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Error("shutdown failed", zap.Error(err))
			}
		}

		if err := reg.CloseAll(); err != nil {
			logger.Warn("failed to close providers", zap.Error(err))
		}
		_ = logger.Sync()
	})
	if err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}
}

func buildContainer() *dig.Container {
	container := dig.New()

	// Configuration
	if err := container.Provide(config.Load); err != nil {
		log.Fatalf("Failed to provide config: %v", err)
	}
	if err := container.Provide(config.ParseDependenciesConfig); err != nil {
		log.Fatalf("Failed to provide config dependencies: %v", err)
	}

	// Observability
	if err := container.Provide(func(logCfg *config.LogConfig) (*zap.Logger, error) {
		return observability.InitLogger(logCfg.Level, logCfg.Development)
	}); err != nil {
		log.Fatalf("Failed to provide logger: %v", err)
	}
	if err := container.Provide(func() domain.EventPublisher {
		return observability.NewEventBus()
	}); err != nil {
		log.Fatalf("Failed to provide event bus: %v", err)
	}

	// Token estimator
	if err := container.Provide(func() domain.TokenCounter {
		return tokenizer.NewEstimator()
	}); err != nil {
		log.Fatalf("Failed to provide token estimator: %v", err)
	}

	// Provider registry, populated with every configured vendor.
	if err := container.Provide(func(
		cfg *config.Config,
		estimator domain.TokenCounter,
		logger *zap.Logger,
	) (domain.ProviderRegistry, error) {
		reg := registry.NewRegistry()
		ctx := context.Background()

		for _, name := range registry.ConfiguredVendors(cfg) {
			provider, err := registry.New(ctx, cfg, estimator, name)
			if err != nil {
				return nil, fmt.Errorf("failed to build provider %s: %w", name, err)
			}
			if err := reg.Register(provider); err != nil {
				return nil, fmt.Errorf("failed to register provider %s: %w", name, err)
			}
			logger.Info("provider registered",
				zap.String("provider", name),
				zap.String("model", provider.Model().ID),
			)
		}

		return reg, nil
	}); err != nil {
		log.Fatalf("Failed to provide provider registry: %v", err)
	}

	// Prompt cache, nil when no Redis address is configured.
	if err := container.Provide(func(redisCfg *config.RedisConfig) domain.PromptCache {
		if redisCfg.Addr == "" {
			return nil
		}

		client := goredis.NewClient(&goredis.Options{
			Addr:     redisCfg.Addr,
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
		})

		return rediscache.NewPromptCache(client, time.Duration(redisCfg.TTLSeconds)*time.Second)
	}); err != nil {
		log.Fatalf("Failed to provide prompt cache: %v", err)
	}

	// Pacer, nil when rate limiting is disabled.
	if err := container.Provide(func(policy *config.PolicyConfig) *domain.Pacer {
		if policy.RateLimitSeconds <= 0 {
			return nil
		}
		return domain.NewPacer(time.Duration(policy.RateLimitSeconds) * time.Second)
	}); err != nil {
		log.Fatalf("Failed to provide pacer: %v", err)
	}

	// Domain Services
	if err := container.Provide(func() domain.CostCalculator {
		return domain.NewStandardCostCalculator()
	}); err != nil {
		log.Fatalf("Failed to provide cost calculator: %v", err)
	}
	if err := container.Provide(domain.NewGatewayService); err != nil {
		log.Fatalf("Failed to provide gateway service: %v", err)
	}

	// HTTP Layer
	if err := container.Provide(middleware.BuildMiddlewareChain); err != nil {
		log.Fatalf("Failed to provide middleware chain: %v", err)
	}
	if err := container.Provide(http.NewHandler); err != nil {
		log.Fatalf("Failed to provide HTTP handler: %v", err)
	}
	if err := container.Provide(http.NewServer); err != nil {
		log.Fatalf("Failed to provide HTTP server: %v", err)
	}

	return container
}
