package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/clipvault/backend/internal/auth"
	"github.com/clipvault/backend/internal/config"
	"github.com/clipvault/backend/internal/db"
	"github.com/clipvault/backend/internal/handlers"
	"github.com/clipvault/backend/internal/media"
	"github.com/clipvault/backend/internal/middleware"
	"github.com/clipvault/backend/internal/repositories"
	"github.com/clipvault/backend/internal/storage"
	"github.com/clipvault/backend/internal/transform"
)

// buildDependencies wires together concrete implementations used by the HTTP
// handlers. The returned teardown drains background workers.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config, logger *slog.Logger) (handlers.Dependencies, func(context.Context) error, error) {
	client := transform.NewClient(cfg.Transform)
	janitor := media.NewJanitor(client, media.JanitorConfig{QueueSize: 32, Workers: 1}, logger)

	service := &media.Service{
		Transformer: client,
		Store:       repositories.NewPostgresMediaRepository(pool),
		Compensator: janitor,
		Limits:      cfg.Uploads,
		ImageFolder: cfg.Transform.ImageFolder,
		VideoFolder: cfg.Transform.VideoFolder,
	}

	if cfg.Archive.Bucket != "" {
		archive, err := storage.NewS3Archive(ctx, cfg.Archive)
		if err != nil {
			return handlers.Dependencies{}, nil, err
		}
		service.Archive = archive
	}

	verifier := auth.NewVerifier(24*time.Hour, auth.NewInMemoryTokenStore())
	if cfg.Auth.BootstrapToken != "" {
		if err := verifier.Provision(ctx, cfg.Auth.BootstrapToken, cfg.Auth.BootstrapUser); err != nil {
			return handlers.Dependencies{}, nil, err
		}
		logger.Info("provisioned bootstrap credential", "user", cfg.Auth.BootstrapUser)
	}

	deps := handlers.Dependencies{
		Ingestor:      service,
		Listing:       repositories.NewPostgresMediaRepository(pool),
		URLs:          transform.NewURLBuilder(cfg.Transform.BaseURL, cfg.Transform.CloudName),
		Authenticator: verifier,
		UploadLimiter: middleware.NewIPRateLimiter(cfg.UploadRate.Requests, cfg.UploadRate.Window, cfg.UploadRate.Burst, cfg.UploadRate.TTL),
		Limits:        cfg.Uploads,
	}

	teardown := func(shutdownCtx context.Context) error {
		return janitor.Shutdown(shutdownCtx)
	}

	return deps, teardown, nil
}
