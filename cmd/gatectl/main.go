// Command gatectl operates the maintenance gate directly against the database.
package main

import (
	"fmt"
	"os"
	"os/user"
	"strings"

	"spekulus/internal/bootstrap"
	"spekulus/internal/config"
	"spekulus/internal/gate"
	"spekulus/internal/repository"
	"spekulus/internal/service"

	"gorm.io/gorm"
)

// cliEnv is what every subcommand works against.
type cliEnv struct {
	maintenance *service.MaintenanceService
	gate        *service.GateService
	admins      repository.AdminUserRepository
}

func newCLIEnv(cfg *config.Config, db *gorm.DB) *cliEnv {
	exemptions := gate.NewExemptions(cfg.ExtraExemptPrefixes()...)
	settingsRepo := repository.NewSettingsRepository(db)
	pageRepo := repository.NewPageStatusRepository(db)
	auditWriter := newAuditWriter(db)

	return &cliEnv{
		maintenance: service.NewMaintenanceService(
			settingsRepo, pageRepo, auditWriter, exemptions, cfg.MaintenanceDefaultMessage,
		),
		gate:   service.NewGateService(settingsRepo, pageRepo, exemptions),
		admins: repository.NewAdminUserRepository(db),
	}
}

func openEnv() (*cliEnv, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	rt, err := bootstrap.InitRuntime(cfg, bootstrap.Options{SkipRedis: true})
	if err != nil {
		return nil, err
	}
	return newCLIEnv(cfg, rt.DB), nil
}

func defaultActor() string {
	if u, err := user.Current(); err == nil {
		if name := strings.TrimSpace(u.Username); name != "" {
			return "cli:" + name
		}
	}
	return "cli:unknown"
}

func main() {
	if err := newRootCmd(openEnv).Execute(); err != nil {
		os.Exit(1)
	}
}
