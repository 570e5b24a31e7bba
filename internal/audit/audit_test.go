package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"spekulus/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAuditRepo struct {
	created []*models.AuditLog
	err     error
}

func (s *stubAuditRepo) Create(_ context.Context, entry *models.AuditLog) error {
	if s.err != nil {
		return s.err
	}
	s.created = append(s.created, entry)
	return nil
}

func (s *stubAuditRepo) List(context.Context, int, int) ([]models.AuditLog, error) {
	return nil, nil
}

func TestActorFrom(t *testing.T) {
	assert.Equal(t, SystemActor, ActorFrom(context.Background()))
	assert.Equal(t, SystemActor, ActorFrom(WithActor(context.Background(), "")))
	assert.Equal(t, "alice", ActorFrom(WithActor(context.Background(), "alice")))
}

func TestWriter_LogAction(t *testing.T) {
	repo := &stubAuditRepo{}
	w := NewWriter(repo)
	fixed := time.Date(2026, 5, 1, 9, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	w.now = func() time.Time { return fixed }

	w.LogAction(WithActor(context.Background(), "alice"), ActionActivate, models.AuditSuccess, "duration=1h")

	require.Len(t, repo.created, 1)
	got := repo.created[0]
	assert.Equal(t, "alice", got.Actor)
	assert.Equal(t, ActionActivate, got.Action)
	assert.Equal(t, models.AuditSuccess, got.Result)
	assert.Equal(t, "duration=1h", got.Detail)
	assert.Equal(t, time.UTC, got.CreatedAt.Location())
	assert.True(t, got.CreatedAt.Equal(fixed))
}

func TestWriter_LogActionSwallowsStoreFailure(t *testing.T) {
	repo := &stubAuditRepo{err: errors.New("disk full")}
	w := NewWriter(repo)

	assert.NotPanics(t, func() {
		w.LogAction(context.Background(), ActionDeactivate, models.AuditFailure, "")
	})
	assert.Empty(t, repo.created)
}
