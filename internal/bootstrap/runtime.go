// Package bootstrap prepares the runtime shared by the server and the
// operator CLI: database, Redis, the settings row, page rows and the
// bootstrap operator.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"spekulus/internal/cache"
	"spekulus/internal/config"
	"spekulus/internal/database"
	"spekulus/internal/manifest"
	"spekulus/internal/middleware"
	"spekulus/internal/repository"
	"spekulus/internal/validation"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SkipRedis leaves the Redis client nil, for tools that never need it.
	SkipRedis bool
}

// Runtime is the initialized set of shared dependencies.
type Runtime struct {
	DB       *gorm.DB
	Redis    *redis.Client
	Manifest *manifest.Manifest
}

// InitRuntime connects to DB and Redis, loads the route manifest and makes
// sure the rows the gate depends on exist.
func InitRuntime(cfg *config.Config, opts Options) (*Runtime, error) {
	site, err := manifest.Load(cfg.RouteManifest)
	if err != nil {
		return nil, err
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	var r *redis.Client
	if !opts.SkipRedis {
		// Init Redis (may result in nil client if unreachable)
		cache.InitRedis(cfg.RedisURL)
		r = cache.GetClient()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := Prepare(ctx, cfg, db, site); err != nil {
		return nil, err
	}

	return &Runtime{DB: db, Redis: r, Manifest: site}, nil
}

// Prepare creates the settings row, seeds page rows from the manifest and
// ensures the bootstrap operator. Every step is idempotent.
func Prepare(ctx context.Context, cfg *config.Config, db *gorm.DB, site *manifest.Manifest) error {
	if err := repository.NewSettingsRepository(db).Ensure(ctx, ""); err != nil {
		return fmt.Errorf("ensure maintenance settings: %w", err)
	}

	created, err := repository.NewPageStatusRepository(db).Seed(ctx, site.Rows())
	if err != nil {
		return fmt.Errorf("seed page statuses: %w", err)
	}
	middleware.Logger.Info("page statuses seeded from manifest",
		slog.Int("pages", len(site.Pages)),
		slog.Int("created", created),
	)

	if err := ensureBootstrapAdmin(ctx, cfg, repository.NewAdminUserRepository(db)); err != nil {
		return fmt.Errorf("failed to bootstrap admin: %w", err)
	}
	return nil
}

func ensureBootstrapAdmin(ctx context.Context, cfg *config.Config, repo repository.AdminUserRepository) error {
	username := strings.TrimSpace(cfg.AdminBootstrapUsername)
	if username == "" {
		return nil
	}
	if cfg.AdminBootstrapPassword == "" {
		return fmt.Errorf("ADMIN_BOOTSTRAP_PASSWORD must be set when ADMIN_BOOTSTRAP_USERNAME is")
	}

	existing, err := repo.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	if err := validation.ValidateUsername(username); err != nil {
		return fmt.Errorf("ADMIN_BOOTSTRAP_USERNAME: %w", err)
	}
	if err := validation.ValidatePassword(cfg.AdminBootstrapPassword); err != nil {
		return fmt.Errorf("ADMIN_BOOTSTRAP_PASSWORD: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminBootstrapPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	if _, err := repo.Upsert(ctx, username, string(hashed)); err != nil {
		return err
	}

	middleware.Logger.Info("bootstrap admin created", slog.String("username", username))
	return nil
}
