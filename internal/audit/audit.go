// Package audit records operator actions on the maintenance controls.
// Recording is best effort: a failed write is logged and counted but never
// fails the action being audited.
package audit

import (
	"context"
	"log/slog"
	"time"

	"spekulus/internal/middleware"
	"spekulus/internal/models"
	"spekulus/internal/observability"
	"spekulus/internal/repository"
)

// Actions recorded by the admin surface.
const (
	ActionActivate      = "maintenance.activate"
	ActionDeactivate    = "maintenance.deactivate"
	ActionExpire        = "maintenance.expire"
	ActionUpdateMessage = "maintenance.message"
	ActionPageStatus    = "page.status"
	ActionLogin         = "admin.login"
)

// SystemActor is recorded when no operator is attached to the context.
const SystemActor = "system"

// Logger records one operator action.
type Logger interface {
	LogAction(ctx context.Context, action string, result models.AuditResult, detail string)
}

type actorKey struct{}

// WithActor attaches the acting operator to ctx.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the operator attached to ctx, or SystemActor.
func ActorFrom(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return actor
	}
	return SystemActor
}

// Writer persists audit entries through the audit repository.
type Writer struct {
	repo repository.AuditRepository
	now  func() time.Time
}

// NewWriter returns a Writer backed by repo.
func NewWriter(repo repository.AuditRepository) *Writer {
	return &Writer{repo: repo, now: time.Now}
}

// LogAction stores the entry and emits it to the structured log.
func (w *Writer) LogAction(ctx context.Context, action string, result models.AuditResult, detail string) {
	entry := &models.AuditLog{
		Actor:     ActorFrom(ctx),
		Action:    action,
		Result:    result,
		Detail:    detail,
		CreatedAt: w.now().UTC(),
	}

	middleware.Logger.InfoContext(ctx, "audit",
		slog.String("actor", entry.Actor),
		slog.String("action", action),
		slog.String("result", string(result)),
		slog.String("detail", detail),
	)

	if err := w.repo.Create(ctx, entry); err != nil {
		observability.AuditWriteFailures.Inc()
		middleware.Logger.ErrorContext(ctx, "failed to persist audit entry",
			slog.String("action", action),
			slog.String("error", err.Error()),
		)
	}
}
