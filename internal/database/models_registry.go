package database

import "spekulus/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.MaintenanceSettings{},
		&models.PageStatus{},
		&models.AuditLog{},
		&models.AdminUser{},
	}
}
