// Package repository implements the data access layer for the application.
package repository

import (
	"context"
	"errors"
	"time"

	"spekulus/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingsRepository reads and partially updates the maintenance singleton.
type SettingsRepository interface {
	Get(ctx context.Context) (models.MaintenanceSettings, error)
	Update(ctx context.Context, patch models.SettingsPatch) (models.MaintenanceSettings, error)
	Ensure(ctx context.Context, defaultMessage string) error
	ClearExpired(ctx context.Context, now time.Time) (models.MaintenanceSettings, bool, error)
}

type settingsRepository struct {
	db *gorm.DB
}

// NewSettingsRepository returns a new SettingsRepository implementation.
func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

// Get returns the stored settings. A missing row reads as "live, no message".
func (r *settingsRepository) Get(ctx context.Context) (models.MaintenanceSettings, error) {
	var s models.MaintenanceSettings
	err := r.db.WithContext(ctx).First(&s, models.MaintenanceSettingsID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.MaintenanceSettings{ID: models.MaintenanceSettingsID}, nil
		}
		return models.MaintenanceSettings{}, models.NewInternalError(err)
	}
	normalizeDeadline(&s)
	return s, nil
}

// Update merges the set fields of patch onto the singleton and returns the result.
func (r *settingsRepository) Update(ctx context.Context, patch models.SettingsPatch) (models.MaintenanceSettings, error) {
	if patch.Empty() {
		return r.Get(ctx)
	}

	cols := patch.Columns()
	cols["updated_at"] = time.Now().UTC()

	res := r.db.WithContext(ctx).
		Model(&models.MaintenanceSettings{}).
		Where("id = ?", models.MaintenanceSettingsID).
		Updates(cols)
	if res.Error != nil {
		return models.MaintenanceSettings{}, models.NewInternalError(res.Error)
	}

	if res.RowsAffected == 0 {
		row := models.MaintenanceSettings{ID: models.MaintenanceSettingsID}
		applyPatch(&row, patch)
		if err := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&row).Error; err != nil {
			return models.MaintenanceSettings{}, models.NewInternalError(err)
		}
	}

	return r.Get(ctx)
}

// ClearExpired switches the flag off only while the stored window is still
// the expired one: active with a real deadline at or before now. A window
// set by a concurrent activation is left alone. It reports whether a row was
// cleared and returns the settings as stored afterwards.
func (r *settingsRepository) ClearExpired(ctx context.Context, now time.Time) (models.MaintenanceSettings, bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.MaintenanceSettings{}).
		Where("id = ? AND is_active = ? AND ends_at IS NOT NULL AND ends_at > ? AND ends_at <= ?",
			models.MaintenanceSettingsID, true, time.Time{}, now.UTC()).
		Updates(map[string]any{
			"is_active":  false,
			"ends_at":    nil,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return models.MaintenanceSettings{}, false, models.NewInternalError(res.Error)
	}

	s, err := r.Get(ctx)
	if err != nil {
		return models.MaintenanceSettings{}, false, err
	}
	return s, res.RowsAffected > 0, nil
}

// Ensure creates the singleton row when it does not exist yet.
func (r *settingsRepository) Ensure(ctx context.Context, defaultMessage string) error {
	row := models.MaintenanceSettings{ID: models.MaintenanceSettingsID, Message: defaultMessage}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func applyPatch(s *models.MaintenanceSettings, patch models.SettingsPatch) {
	if patch.IsActive != nil {
		s.IsActive = *patch.IsActive
	}
	if patch.Message != nil {
		s.Message = *patch.Message
	}
	switch {
	case patch.ClearEndsAt:
		s.EndsAt = nil
	case patch.EndsAt != nil:
		t := patch.EndsAt.UTC()
		s.EndsAt = &t
	}
}

// normalizeDeadline hands back deadlines in UTC so callers compare like with like.
func normalizeDeadline(s *models.MaintenanceSettings) {
	if s.EndsAt != nil && !s.EndsAt.IsZero() {
		t := s.EndsAt.UTC()
		s.EndsAt = &t
	}
}
