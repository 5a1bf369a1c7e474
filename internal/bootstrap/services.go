package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/dispatchlab/dispatch/config"
	"github.com/dispatchlab/dispatch/internal/adapters/compute"
	"github.com/dispatchlab/dispatch/internal/adapters/poller"
	redisadapter "github.com/dispatchlab/dispatch/internal/adapters/redis"
	"github.com/dispatchlab/dispatch/internal/data"
	"github.com/dispatchlab/dispatch/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Jobs     *service.JobService
	Webhooks *service.WebhookService
	Streams  *service.StreamService
	Pollers  *poller.Manager
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient goredis.UniversalClient
	Logger      *slog.Logger
}

// NewServices wires repositories, adapters, and business services.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service dependencies are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	jobRepo := data.NewJobRepo(deps.DB, data.RepoConfig{Logger: logger})
	cancelStore := redisadapter.NewCancelStore(deps.RedisClient)

	computeClient, err := compute.NewClient(compute.Config{
		BaseURL: cfg.Compute.BaseURL,
		APIKey:  cfg.Compute.APIKey,
		Timeout: cfg.Compute.StatusTimeout,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build compute client: %w", err)
	}

	pollers, err := poller.NewManager(poller.ManagerOptions{
		Repo:      jobRepo,
		Client:    computeClient,
		Canceller: cancelStore,
		Config:    cfg.Poller,
		Logger:    logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build poller manager: %w", err)
	}

	jobService, err := service.NewJobService(service.JobServiceOptions{
		Repo:    jobRepo,
		Client:  computeClient,
		Pollers: pollers,
		Config:  cfg.Compute,
		Logger:  logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build job service: %w", err)
	}

	webhookService, err := service.NewWebhookService(service.WebhookServiceOptions{
		Repo:      jobRepo,
		Canceller: cancelStore,
		Logger:    logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build webhook service: %w", err)
	}

	streamService, err := service.NewStreamService(service.StreamServiceOptions{
		Repo:   jobRepo,
		Config: cfg.Stream,
		Logger: logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build stream service: %w", err)
	}

	return ServiceContainer{
		Jobs:     jobService,
		Webhooks: webhookService,
		Streams:  streamService,
		Pollers:  pollers,
	}, nil
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// This function blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil || cfg.Config == nil {
		return errors.New("service orchestration config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabledServices, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	if enabledServices[config.ServiceModePoller] {
		g.Go(func() error {
			logger.InfoContext(gctx, "background service started", "service", "poller")
			if runErr := cfg.Services.Pollers.Run(gctx); runErr != nil && !errors.Is(runErr, context.Canceled) {
				return fmt.Errorf("poller manager failed: %w", runErr)
			}
			return nil
		})
	} else if cfg.Services.Pollers != nil {
		// The HTTP service still launches pollers for fresh submissions; make
		// sure those goroutines are reaped on the way out.
		defer cfg.Services.Pollers.Stop()
	}

	if enabledServices[config.ServiceModeHTTP] {
		server := StartHTTPServer(&HTTPServerConfig{
			Addr:     cfg.Config.HTTP.Addr,
			Services: cfg.Services,
			Logger:   logger,
		})
		g.Go(func() error {
			<-gctx.Done()
			return ShutdownHTTPServer(ShutdownConfig{
				Context: context.Background(),
				Server:  server,
				Logger:  logger,
			})
		})
	}

	if waitErr := g.Wait(); waitErr != nil && !errors.Is(waitErr, context.Canceled) {
		return waitErr
	}

	logger.Info("all services stopped")
	return nil
}
