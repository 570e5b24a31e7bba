// Package models defines the persisted entities of the site backend.
package models

import "time"

// MaintenanceSettingsID is the primary key of the single settings row.
const MaintenanceSettingsID uint = 1

// MaintenanceSettings is the site-wide maintenance switch. Exactly one row exists.
type MaintenanceSettings struct {
	ID        uint       `gorm:"primaryKey;autoIncrement:false" json:"-"`
	IsActive  bool       `gorm:"not null;default:false" json:"is_active"`
	Message   string     `gorm:"type:text;not null;default:''" json:"message"`
	EndsAt    *time.Time `json:"ends_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TableName pins the singleton table name.
func (MaintenanceSettings) TableName() string {
	return "maintenance_settings"
}

// SettingsPatch is a partial update of MaintenanceSettings. Nil fields are
// left untouched; ClearEndsAt resets the deadline to NULL and takes priority
// over EndsAt.
type SettingsPatch struct {
	IsActive    *bool
	Message     *string
	EndsAt      *time.Time
	ClearEndsAt bool
}

// Columns converts the patch into the column map written by the store.
func (p SettingsPatch) Columns() map[string]any {
	cols := make(map[string]any, 3)
	if p.IsActive != nil {
		cols["is_active"] = *p.IsActive
	}
	if p.Message != nil {
		cols["message"] = *p.Message
	}
	switch {
	case p.ClearEndsAt:
		cols["ends_at"] = nil
	case p.EndsAt != nil:
		cols["ends_at"] = p.EndsAt.UTC()
	}
	return cols
}

// Empty reports whether the patch changes nothing.
func (p SettingsPatch) Empty() bool {
	return len(p.Columns()) == 0
}
