package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"spekulus/internal/audit"
	"spekulus/internal/models"
	"spekulus/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memSettingsRepo is an in-memory repository.SettingsRepository. Setting
// getErr or updateErr makes the corresponding call fail. beforeClear runs at
// the start of ClearExpired, standing in for a write that lands between a
// read and the conditional clear.
type memSettingsRepo struct {
	mu          sync.Mutex
	settings    models.MaintenanceSettings
	getErr      error
	updateErr   error
	updates     int
	beforeClear func(r *memSettingsRepo)
}

var _ repository.SettingsRepository = (*memSettingsRepo)(nil)

func (r *memSettingsRepo) Get(context.Context) (models.MaintenanceSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return models.MaintenanceSettings{}, r.getErr
	}
	return r.settings, nil
}

func (r *memSettingsRepo) Update(_ context.Context, patch models.SettingsPatch) (models.MaintenanceSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return models.MaintenanceSettings{}, r.updateErr
	}
	r.updates++
	if patch.IsActive != nil {
		r.settings.IsActive = *patch.IsActive
	}
	if patch.Message != nil {
		r.settings.Message = *patch.Message
	}
	switch {
	case patch.ClearEndsAt:
		r.settings.EndsAt = nil
	case patch.EndsAt != nil:
		t := *patch.EndsAt
		r.settings.EndsAt = &t
	}
	return r.settings, nil
}

func (r *memSettingsRepo) Ensure(context.Context, string) error { return nil }

func (r *memSettingsRepo) ClearExpired(_ context.Context, now time.Time) (models.MaintenanceSettings, bool, error) {
	if r.beforeClear != nil {
		r.beforeClear(r)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return models.MaintenanceSettings{}, false, r.updateErr
	}
	s := r.settings
	if !s.IsActive || s.EndsAt == nil || s.EndsAt.IsZero() || s.EndsAt.After(now) {
		return s, false, nil
	}
	r.updates++
	r.settings.IsActive = false
	r.settings.EndsAt = nil
	return r.settings, true, nil
}

// pageRepoStub is a stub for repository.PageStatusRepository.
type pageRepoStub struct {
	listFn      func(context.Context) ([]models.PageStatus, error)
	setStatusFn func(context.Context, string, models.PageState) (*models.PageStatus, error)
}

var _ repository.PageStatusRepository = (*pageRepoStub)(nil)

func (s *pageRepoStub) List(ctx context.Context) ([]models.PageStatus, error) {
	return s.listFn(ctx)
}
func (s *pageRepoStub) Get(ctx context.Context, path string) (*models.PageStatus, error) {
	rows, err := s.listFn(ctx)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if rows[i].Path == path {
			return &rows[i], nil
		}
	}
	return nil, nil
}
func (s *pageRepoStub) SetStatus(ctx context.Context, path string, status models.PageState) (*models.PageStatus, error) {
	return s.setStatusFn(ctx, path, status)
}
func (s *pageRepoStub) Seed(context.Context, []models.PageStatus) (int, error) { return 0, nil }

func pagesRepo(rows ...models.PageStatus) *pageRepoStub {
	return &pageRepoStub{
		listFn: func(context.Context) ([]models.PageStatus, error) { return rows, nil },
		setStatusFn: func(_ context.Context, path string, status models.PageState) (*models.PageStatus, error) {
			return &models.PageStatus{Path: path, Status: status}, nil
		},
	}
}

type auditEntry struct {
	actor  string
	action string
	result models.AuditResult
	detail string
}

// recordingAudit captures LogAction calls.
type recordingAudit struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (a *recordingAudit) LogAction(ctx context.Context, action string, result models.AuditResult, detail string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, auditEntry{actor: audit.ActorFrom(ctx), action: action, result: result, detail: detail})
}

func (a *recordingAudit) last() auditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.entries) == 0 {
		return auditEntry{}
	}
	return a.entries[len(a.entries)-1]
}

func assertValidationError(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, models.IsValidationError(err), "expected validation error, got %v", err)
}
