package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"spekulus/internal/bootstrap"
	"spekulus/internal/config"
	"spekulus/internal/database"
	"spekulus/internal/manifest"
	"spekulus/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupCLI(t *testing.T) (*gorm.DB, func(args ...string) (string, error)) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	site, err := manifest.Load("")
	require.NoError(t, err)
	cfg := &config.Config{Env: "test", MaintenanceDefaultMessage: config.DefaultMaintenanceMessage}
	require.NoError(t, bootstrap.Prepare(context.Background(), cfg, db, site))

	env := newCLIEnv(cfg, db)
	run := func(args ...string) (string, error) {
		root := newRootCmd(func() (*cliEnv, error) { return env, nil })
		var out bytes.Buffer
		root.SetOut(&out)
		root.SetErr(&bytes.Buffer{})
		root.SetIn(strings.NewReader(""))
		root.SetArgs(append([]string{"--actor", "cli:tester"}, args...))
		err := root.Execute()
		return out.String(), err
	}
	return db, run
}

func lastAudit(t *testing.T, db *gorm.DB) models.AuditLog {
	t.Helper()
	var entry models.AuditLog
	require.NoError(t, db.Order("created_at DESC").First(&entry).Error)
	return entry
}

func TestMaintenanceCommands(t *testing.T) {
	db, run := setupCLI(t)

	out, err := run("maintenance", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "State:    Live")

	out, err = run("maintenance", "on", "--duration", "1h")
	require.NoError(t, err)
	assert.Contains(t, out, "State:    Maintenance")
	assert.Contains(t, out, "remaining")

	entry := lastAudit(t, db)
	assert.Equal(t, "cli:tester", entry.Actor)
	assert.Equal(t, "maintenance.activate", entry.Action)
	assert.Equal(t, models.AuditSuccess, entry.Result)

	out, err = run("--json", "maintenance", "message", "Back after the upgrade")
	require.NoError(t, err)
	var status struct {
		State   string `json:"state"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, "Maintenance", status.State)
	assert.Equal(t, "Back after the upgrade", status.Message)

	out, err = run("maintenance", "off")
	require.NoError(t, err)
	assert.Contains(t, out, "State:    Live")
}

func TestMaintenanceOnRejectsUnknownDuration(t *testing.T) {
	db, run := setupCLI(t)

	_, err := run("maintenance", "on", "--duration", "2h")
	require.Error(t, err)
	assert.True(t, models.IsValidationError(err))

	var settings models.MaintenanceSettings
	require.NoError(t, db.First(&settings, models.MaintenanceSettingsID).Error)
	assert.False(t, settings.IsActive)
}

func TestPagesAndCheckCommands(t *testing.T) {
	db, run := setupCLI(t)

	out, err := run("pages", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "/dev-notes/[slug] (prefix)")

	out, err = run("check", "/faq")
	require.NoError(t, err)
	assert.Equal(t, "/faq: allow\n", out)

	out, err = run("pages", "set", "/faq", "hidden")
	require.NoError(t, err)
	assert.Equal(t, "/faq is now hidden\n", out)
	assert.Equal(t, "page.status", lastAudit(t, db).Action)

	out, err = run("check", "/faq/")
	require.NoError(t, err)
	assert.Equal(t, "/faq: hidden\n", out)

	out, err = run("check", "/admin")
	require.NoError(t, err)
	assert.Equal(t, "/admin: allow\n", out)

	_, err = run("pages", "set", "/api", "hidden")
	require.Error(t, err)
	assert.Equal(t, models.AuditFailure, lastAudit(t, db).Result)
}

func TestCheckDuringMaintenance(t *testing.T) {
	_, run := setupCLI(t)

	_, err := run("maintenance", "on")
	require.NoError(t, err)

	out, err := run("check", "/")
	require.NoError(t, err)
	assert.Equal(t, "/: maintenance\n", out)

	out, err = run("check", "/login")
	require.NoError(t, err)
	assert.Equal(t, "/login: allow\n", out)
}

func TestAdminCreate(t *testing.T) {
	db, run := setupCLI(t)

	_, err := run("admin", "create", "Ops", "--password", "short")
	require.Error(t, err)

	out, err := run("admin", "create", "Ops", "--password", "Correct-Horse-9")
	require.NoError(t, err)
	assert.Equal(t, "operator ops saved\n", out)

	var admin models.AdminUser
	require.NoError(t, db.Where("username = ?", "ops").First(&admin).Error)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte("Correct-Horse-9")))
}

func TestDefaultActorIsPrefixed(t *testing.T) {
	assert.True(t, strings.HasPrefix(defaultActor(), "cli:"))
}
