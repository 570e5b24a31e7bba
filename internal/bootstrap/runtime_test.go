package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"spekulus/internal/config"
	"spekulus/internal/database"
	"spekulus/internal/manifest"
	"spekulus/internal/models"
	"spekulus/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	return db
}

func TestPrepare_IsIdempotent(t *testing.T) {
	db := openTestDB(t)
	site, err := manifest.Load("")
	require.NoError(t, err)
	cfg := &config.Config{AdminBootstrapUsername: "root", AdminBootstrapPassword: "Correct-Horse-9"}
	ctx := context.Background()

	require.NoError(t, Prepare(ctx, cfg, db, site))

	pages := repository.NewPageStatusRepository(db)
	_, err = pages.SetStatus(ctx, "/roadmap", models.PageStateHidden)
	require.NoError(t, err)

	cfg.AdminBootstrapPassword = "changed"
	require.NoError(t, Prepare(ctx, cfg, db, site))

	rows, err := pages.List(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, len(site.Pages))
	roadmap, err := pages.Get(ctx, "/roadmap")
	require.NoError(t, err)
	assert.Equal(t, models.PageStateHidden, roadmap.Status)

	settings, err := repository.NewSettingsRepository(db).Get(ctx)
	require.NoError(t, err)
	assert.False(t, settings.IsActive)

	admin, err := repository.NewAdminUserRepository(db).GetByUsername(ctx, "root")
	require.NoError(t, err)
	require.NotNil(t, admin)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte("Correct-Horse-9")))
}

func TestPrepare_AdminNeedsPassword(t *testing.T) {
	db := openTestDB(t)
	site, err := manifest.Load("")
	require.NoError(t, err)

	err = Prepare(context.Background(), &config.Config{AdminBootstrapUsername: "root"}, db, site)
	assert.Error(t, err)
}

func TestPrepare_AdminPasswordPolicy(t *testing.T) {
	db := openTestDB(t)
	site, err := manifest.Load("")
	require.NoError(t, err)

	cfg := &config.Config{AdminBootstrapUsername: "root", AdminBootstrapPassword: "password"}
	err = Prepare(context.Background(), cfg, db, site)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ADMIN_BOOTSTRAP_PASSWORD")

	admin, err := repository.NewAdminUserRepository(db).GetByUsername(context.Background(), "root")
	require.NoError(t, err)
	assert.Nil(t, admin)
}
