package repository

import (
	"context"
	"errors"
	"time"

	"spekulus/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PageStatusRepository defines persistence operations for per-route status.
type PageStatusRepository interface {
	List(ctx context.Context) ([]models.PageStatus, error)
	Get(ctx context.Context, path string) (*models.PageStatus, error)
	SetStatus(ctx context.Context, path string, status models.PageState) (*models.PageStatus, error)
	Seed(ctx context.Context, rows []models.PageStatus) (int, error)
}

type pageStatusRepository struct {
	db *gorm.DB
}

// NewPageStatusRepository returns a new PageStatusRepository implementation.
func NewPageStatusRepository(db *gorm.DB) PageStatusRepository {
	return &pageStatusRepository{db: db}
}

func (r *pageStatusRepository) List(ctx context.Context) ([]models.PageStatus, error) {
	var rows []models.PageStatus
	if err := r.db.WithContext(ctx).Order("path ASC").Find(&rows).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return rows, nil
}

// Get returns the row for path, or nil when none exists.
func (r *pageStatusRepository) Get(ctx context.Context, path string) (*models.PageStatus, error) {
	var row models.PageStatus
	if err := r.db.WithContext(ctx).Where("path = ?", path).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &row, nil
}

// SetStatus upserts the status of path, leaving title and dynamic untouched
// for existing rows.
func (r *pageStatusRepository) SetStatus(ctx context.Context, path string, status models.PageState) (*models.PageStatus, error) {
	row := models.PageStatus{
		Path:      path,
		Status:    status,
		UpdatedAt: time.Now().UTC(),
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "path"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	stored, err := r.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return &row, nil
	}
	return stored, nil
}

// Seed inserts rows that are missing and refreshes title and dynamic on the
// rest. Stored statuses are never overwritten. It returns the number of new rows.
func (r *pageStatusRepository) Seed(ctx context.Context, rows []models.PageStatus) (int, error) {
	created := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, row := range rows {
			if row.Status == "" {
				row.Status = models.PageStateActive
			}
			row.UpdatedAt = time.Now().UTC()

			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				created++
				continue
			}
			if err := tx.Model(&models.PageStatus{}).
				Where("path = ?", row.Path).
				Updates(map[string]any{"title": row.Title, "dynamic": row.Dynamic}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return created, nil
}
