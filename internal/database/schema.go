package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"spekulus/internal/config"
	"spekulus/internal/middleware"
	"spekulus/internal/models"

	"gorm.io/gorm"
)

// Values accepted in DB_SCHEMA_MODE.
const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

// schemaPlan is what ApplySchema runs for one config.
type schemaPlan struct {
	mode string
	sql  bool
	auto bool
}

// planSchema resolves DB_SCHEMA_MODE against APP_ENV. AutoMigrate never runs
// in production-like environments; there the embedded SQL is authoritative.
func planSchema(cfg *config.Config) (schemaPlan, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode))
	if mode == "" {
		mode = SchemaModeHybrid
	}
	prodLike := cfg.IsProduction() || isStaging(cfg.Env)

	switch mode {
	case SchemaModeSQL:
		return schemaPlan{mode: mode, sql: true}, nil
	case SchemaModeAuto:
		if prodLike {
			return schemaPlan{}, fmt.Errorf("refusing DB_SCHEMA_MODE=auto in %q", cfg.Env)
		}
		return schemaPlan{mode: mode, auto: true}, nil
	case SchemaModeHybrid:
		return schemaPlan{mode: mode, sql: true, auto: !prodLike}, nil
	default:
		return schemaPlan{}, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", mode)
	}
}

func isStaging(env string) bool {
	e := strings.ToLower(strings.TrimSpace(env))
	return e == "staging" || e == "stage"
}

// AutoMigrate creates or updates the tables of every persistent model.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(PersistentModels()...)
}

// ApplySchema brings the gate tables up to date according to DB_SCHEMA_MODE.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := planSchema(cfg)
	if err != nil {
		return err
	}

	if plan.sql {
		if err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
	}
	if plan.auto {
		middleware.Logger.Info("Running GORM AutoMigrate", slog.String("mode", plan.mode), slog.String("env", cfg.Env))
		if err := AutoMigrate(db.WithContext(ctx)); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}
	return nil
}

// SchemaReport tells an operator whether the gate can run against a database:
// which tables are missing, whether the settings singleton exists and which
// migrations are still to apply.
type SchemaReport struct {
	Mode          string
	Pending       []Migration
	MissingTables []string
	SettingsRow   bool
}

// Ready reports whether nothing is pending and the settings row exists.
func (r *SchemaReport) Ready() bool {
	return len(r.Pending) == 0 && len(r.MissingTables) == 0 && r.SettingsRow
}

// InspectSchema builds a SchemaReport without changing anything.
func InspectSchema(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaReport, error) {
	plan, err := planSchema(cfg)
	if err != nil {
		return nil, err
	}
	report := &SchemaReport{Mode: plan.mode}

	tx := db.WithContext(ctx)
	migrator := tx.Migrator()
	for _, m := range PersistentModels() {
		if named, ok := m.(interface{ TableName() string }); ok && !migrator.HasTable(m) {
			report.MissingTables = append(report.MissingTables, named.TableName())
		}
	}

	if plan.sql {
		applied, err := NewMigrationStore(db).GetAppliedMigrations(ctx)
		if err != nil {
			return nil, err
		}
		done := make(map[int]bool, len(applied))
		for _, v := range applied {
			done[v] = true
		}
		for _, m := range GetMigrations() {
			if !done[m.Version] {
				report.Pending = append(report.Pending, m)
			}
		}
	}

	if migrator.HasTable(&models.MaintenanceSettings{}) {
		var n int64
		if err := tx.Model(&models.MaintenanceSettings{}).
			Where("id = ?", models.MaintenanceSettingsID).
			Count(&n).Error; err != nil {
			return nil, fmt.Errorf("count settings rows: %w", err)
		}
		report.SettingsRow = n > 0
	}

	return report, nil
}
