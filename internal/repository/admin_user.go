package repository

import (
	"context"
	"errors"
	"strings"

	"spekulus/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AdminUserRepository defines persistence operations for operators.
type AdminUserRepository interface {
	GetByUsername(ctx context.Context, username string) (*models.AdminUser, error)
	Upsert(ctx context.Context, username, passwordHash string) (*models.AdminUser, error)
}

type adminUserRepository struct {
	db *gorm.DB
}

// NewAdminUserRepository returns a new AdminUserRepository implementation.
func NewAdminUserRepository(db *gorm.DB) AdminUserRepository {
	return &adminUserRepository{db: db}
}

// GetByUsername returns nil when no operator has that username.
func (r *adminUserRepository) GetByUsername(ctx context.Context, username string) (*models.AdminUser, error) {
	var user models.AdminUser
	if err := r.db.WithContext(ctx).Where("username = ?", normalizeUsername(username)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

// Upsert creates the operator or replaces the password hash of an existing one.
func (r *adminUserRepository) Upsert(ctx context.Context, username, passwordHash string) (*models.AdminUser, error) {
	username = normalizeUsername(username)
	if username == "" {
		return nil, models.NewValidationError("Username is required")
	}

	user := models.AdminUser{Username: username, Password: passwordHash}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "username"}},
			DoUpdates: clause.AssignmentColumns([]string{"password", "updated_at"}),
		}).
		Create(&user).Error
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, models.NewValidationError("Admin user already exists")
		}
		return nil, models.NewInternalError(err)
	}
	return r.GetByUsername(ctx, username)
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// isUniqueConstraintError checks if a DB error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	// PostgreSQL unique violation SQLSTATE 23505
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "23505")
}
