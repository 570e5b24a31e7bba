package models

import (
	"fmt"
	"strings"
	"time"
)

// PageState is the visitor-facing availability of a route.
type PageState string

const (
	PageStateActive      PageState = "active"
	PageStateHidden      PageState = "hidden"
	PageStateMaintenance PageState = "maintenance"
)

// ParsePageState validates a status string coming from an operator.
func ParsePageState(raw string) (PageState, error) {
	switch s := PageState(strings.ToLower(strings.TrimSpace(raw))); s {
	case PageStateActive, PageStateHidden, PageStateMaintenance:
		return s, nil
	default:
		return "", NewValidationError(fmt.Sprintf("invalid page status %q (want active, hidden or maintenance)", raw))
	}
}

// PageStatus is the per-route availability row, keyed by the manifest path.
// Dynamic rows cover every concrete path below them.
type PageStatus struct {
	Path      string    `gorm:"primaryKey;size:255" json:"path"`
	Title     string    `gorm:"size:255;not null;default:''" json:"title"`
	Status    PageState `gorm:"size:20;not null;default:'active'" json:"status"`
	Dynamic   bool      `gorm:"not null;default:false" json:"dynamic"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the page status table name.
func (PageStatus) TableName() string {
	return "page_statuses"
}
