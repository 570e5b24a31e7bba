package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"spekulus/internal/audit"
	"spekulus/internal/gate"
	"spekulus/internal/middleware"
	"spekulus/internal/models"
	"spekulus/internal/observability"
	"spekulus/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// MaxMessageLength is the longest maintenance message an operator may save.
const MaxMessageLength = 1000

// DurationOption is one of the fixed maintenance window lengths offered to operators.
type DurationOption string

const (
	DurationIndefinite DurationOption = "indefinite"
	Duration15m        DurationOption = "15m"
	Duration1h         DurationOption = "1h"
	Duration4h         DurationOption = "4h"
	Duration24h        DurationOption = "24h"
)

var durationSpans = map[DurationOption]time.Duration{
	DurationIndefinite: 0,
	Duration15m:        15 * time.Minute,
	Duration1h:         time.Hour,
	Duration4h:         4 * time.Hour,
	Duration24h:        24 * time.Hour,
}

// DurationOptions lists the selectable durations in display order.
func DurationOptions() []DurationOption {
	return []DurationOption{DurationIndefinite, Duration15m, Duration1h, Duration4h, Duration24h}
}

// ParseDuration accepts only the fixed options. An empty value means indefinite.
func ParseDuration(raw string) (DurationOption, error) {
	opt := DurationOption(strings.ToLower(strings.TrimSpace(raw)))
	if opt == "" {
		return DurationIndefinite, nil
	}
	if _, ok := durationSpans[opt]; !ok {
		return "", models.NewValidationError(fmt.Sprintf("invalid duration %q (want indefinite, 15m, 1h, 4h or 24h)", raw))
	}
	return opt, nil
}

// Span is the window length; zero for indefinite.
func (o DurationOption) Span() time.Duration {
	return durationSpans[o]
}

// Site states shown to operators.
const (
	StateLive        = "Live"
	StateMaintenance = "Maintenance"
)

// MaintenanceStatus is the effective maintenance state as operators see it.
type MaintenanceStatus struct {
	State            string     `json:"state"`
	IsActive         bool       `json:"is_active"`
	Message          string     `json:"message"`
	StoredMessage    string     `json:"stored_message"`
	EndsAt           *time.Time `json:"ends_at"`
	RemainingSeconds int64      `json:"remaining_seconds"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// MaintenanceService implements the operator controls for the maintenance
// switch and per-page status.
type MaintenanceService struct {
	settingsRepo   repository.SettingsRepository
	pageRepo       repository.PageStatusRepository
	audit          audit.Logger
	exemptions     gate.Exemptions
	defaultMessage string
	now            func() time.Time
}

func NewMaintenanceService(
	settingsRepo repository.SettingsRepository,
	pageRepo repository.PageStatusRepository,
	auditLogger audit.Logger,
	exemptions gate.Exemptions,
	defaultMessage string,
) *MaintenanceService {
	return &MaintenanceService{
		settingsRepo:   settingsRepo,
		pageRepo:       pageRepo,
		audit:          auditLogger,
		exemptions:     exemptions,
		defaultMessage: defaultMessage,
		now:            time.Now,
	}
}

// Status returns the effective state. A stored flag whose deadline has
// passed is switched off on the way.
func (s *MaintenanceService) Status(ctx context.Context) (*MaintenanceStatus, error) {
	ctx, span := observability.StartSpan(ctx, "maintenance", "status")
	settings, err := s.settingsRepo.Get(ctx)
	if err != nil {
		observability.EndSpan(span, err)
		return nil, err
	}

	now := s.now()
	if gate.Expired(settings, now) {
		settings = s.reconcileExpired(ctx, settings, now)
	}
	observability.EndSpan(span, nil)

	return s.view(settings, now), nil
}

// reconcileExpired clears the stored flag of a window that ran out. The store
// only clears it if the window is still the expired one, so an activation
// made after the read survives.
func (s *MaintenanceService) reconcileExpired(ctx context.Context, settings models.MaintenanceSettings, now time.Time) models.MaintenanceSettings {
	ctx = audit.WithActor(ctx, audit.SystemActor)
	current, cleared, err := s.settingsRepo.ClearExpired(ctx, now)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "failed to clear expired maintenance flag", slog.String("error", err.Error()))
		s.record(ctx, audit.ActionExpire, err, "")
		return settings
	}
	if !cleared {
		return current
	}
	detail := ""
	if settings.EndsAt != nil {
		detail = "ended_at=" + settings.EndsAt.UTC().Format(time.RFC3339)
	}
	s.record(ctx, audit.ActionExpire, nil, detail)
	return current
}

func (s *MaintenanceService) view(settings models.MaintenanceSettings, now time.Time) *MaintenanceStatus {
	active := gate.EffectiveActive(settings, now)
	st := &MaintenanceStatus{
		State:         StateLive,
		IsActive:      active,
		Message:       s.displayMessage(settings.Message),
		StoredMessage: settings.Message,
		UpdatedAt:     settings.UpdatedAt,
	}
	if active {
		st.State = StateMaintenance
		observability.MaintenanceActive.Set(1)
		if deadline := gate.Deadline(settings); deadline != nil {
			endsAt := deadline.UTC()
			st.EndsAt = &endsAt
			st.RemainingSeconds = gate.RemainingSeconds(endsAt, now)
		}
	} else {
		observability.MaintenanceActive.Set(0)
	}
	return st
}

func (s *MaintenanceService) displayMessage(stored string) string {
	if strings.TrimSpace(stored) == "" {
		return s.defaultMessage
	}
	return stored
}

// Activate turns on site-wide maintenance for the chosen window.
func (s *MaintenanceService) Activate(ctx context.Context, actor string, option DurationOption) (*MaintenanceStatus, error) {
	ctx = audit.WithActor(ctx, actor)
	ctx, span := observability.StartSpan(ctx, "maintenance", "activate", attribute.String("maintenance.duration", string(option)))

	if _, ok := durationSpans[option]; !ok {
		err := models.NewValidationError(fmt.Sprintf("invalid duration %q", option))
		observability.EndSpan(span, err)
		return nil, err
	}

	now := s.now()
	on := true
	patch := models.SettingsPatch{IsActive: &on, ClearEndsAt: true}
	if window := option.Span(); window > 0 {
		endsAt := now.Add(window).UTC()
		patch = models.SettingsPatch{IsActive: &on, EndsAt: &endsAt}
	}

	settings, err := s.settingsRepo.Update(ctx, patch)
	s.record(ctx, audit.ActionActivate, err, "duration="+string(option))
	observability.EndSpan(span, err)
	if err != nil {
		return nil, err
	}
	return s.view(settings, now), nil
}

// Deactivate returns the site to live and clears any deadline.
func (s *MaintenanceService) Deactivate(ctx context.Context, actor string) (*MaintenanceStatus, error) {
	ctx = audit.WithActor(ctx, actor)
	ctx, span := observability.StartSpan(ctx, "maintenance", "deactivate")

	off := false
	settings, err := s.settingsRepo.Update(ctx, models.SettingsPatch{IsActive: &off, ClearEndsAt: true})
	s.record(ctx, audit.ActionDeactivate, err, "")
	observability.EndSpan(span, err)
	if err != nil {
		return nil, err
	}
	return s.view(settings, s.now()), nil
}

// UpdateMessage saves the maintenance message without touching the switch.
func (s *MaintenanceService) UpdateMessage(ctx context.Context, actor, message string) (*MaintenanceStatus, error) {
	ctx = audit.WithActor(ctx, actor)

	if utf8.RuneCountInString(message) > MaxMessageLength {
		err := models.NewValidationError(fmt.Sprintf("Message too long (max %d characters)", MaxMessageLength))
		s.record(ctx, audit.ActionUpdateMessage, err, "rejected: too long")
		return nil, err
	}

	ctx, span := observability.StartSpan(ctx, "maintenance", "update_message")
	settings, err := s.settingsRepo.Update(ctx, models.SettingsPatch{Message: &message})
	s.record(ctx, audit.ActionUpdateMessage, err, fmt.Sprintf("length=%d", utf8.RuneCountInString(message)))
	observability.EndSpan(span, err)
	if err != nil {
		return nil, err
	}
	return s.view(settings, s.now()), nil
}

// ListPages returns every known page with its status.
func (s *MaintenanceService) ListPages(ctx context.Context) ([]models.PageStatus, error) {
	return s.pageRepo.List(ctx)
}

// SetPageStatus changes the visitor-facing status of one page.
func (s *MaintenanceService) SetPageStatus(ctx context.Context, actor, path, status string) (*models.PageStatus, error) {
	ctx = audit.WithActor(ctx, actor)

	state, err := models.ParsePageState(status)
	if err != nil {
		s.record(ctx, audit.ActionPageStatus, err, fmt.Sprintf("path=%s status=%s", path, status))
		return nil, err
	}
	if !strings.HasPrefix(path, "/") {
		err = models.NewValidationError("Path must start with /")
		s.record(ctx, audit.ActionPageStatus, err, fmt.Sprintf("path=%s status=%s", path, status))
		return nil, err
	}
	p := gate.NormalizePath(path)
	if s.exemptions.Exempt(p) {
		err = models.NewValidationError(fmt.Sprintf("%s is always reachable and cannot be gated", p))
		s.record(ctx, audit.ActionPageStatus, err, fmt.Sprintf("path=%s status=%s", p, state))
		return nil, err
	}

	ctx, span := observability.StartSpan(ctx, "maintenance", "set_page_status",
		attribute.String("page.path", p),
		attribute.String("page.status", string(state)),
	)
	row, err := s.pageRepo.SetStatus(ctx, p, state)
	s.record(ctx, audit.ActionPageStatus, err, fmt.Sprintf("path=%s status=%s", p, state))
	observability.EndSpan(span, err)
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (s *MaintenanceService) record(ctx context.Context, action string, err error, detail string) {
	result := models.AuditSuccess
	if err != nil {
		result = models.AuditFailure
		if detail != "" {
			detail += " "
		}
		detail += "error=" + err.Error()
	}
	observability.MaintenanceTransitions.WithLabelValues(action, string(result)).Inc()
	if s.audit != nil {
		s.audit.LogAction(ctx, action, result, detail)
	}
}
