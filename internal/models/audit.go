package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditResult is the outcome recorded for an operator action.
type AuditResult string

const (
	AuditSuccess AuditResult = "Success"
	AuditFailure AuditResult = "Failure"
)

// AuditLog is one operator action on the admin surface.
type AuditLog struct {
	ID        uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	Actor     string      `gorm:"size:100;not null;index" json:"actor"`
	Action    string      `gorm:"size:100;not null;index" json:"action"`
	Result    AuditResult `gorm:"size:20;not null" json:"result"`
	Detail    string      `gorm:"type:text" json:"detail"`
	CreatedAt time.Time   `gorm:"index" json:"created_at"`
}

// TableName returns the audit table name.
func (AuditLog) TableName() string {
	return "audit_logs"
}

// BeforeCreate assigns a random ID to new entries.
func (a *AuditLog) BeforeCreate(_ *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
