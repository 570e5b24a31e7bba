package service

import (
	"context"
	"time"

	"spekulus/internal/gate"
	"spekulus/internal/models"
	"spekulus/internal/observability"
	"spekulus/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// GateService reads the stored state fresh on every call and evaluates the gate.
type GateService struct {
	settingsRepo repository.SettingsRepository
	pageRepo     repository.PageStatusRepository
	exemptions   gate.Exemptions
	now          func() time.Time
}

func NewGateService(
	settingsRepo repository.SettingsRepository,
	pageRepo repository.PageStatusRepository,
	exemptions gate.Exemptions,
) *GateService {
	return &GateService{
		settingsRepo: settingsRepo,
		pageRepo:     pageRepo,
		exemptions:   exemptions,
		now:          time.Now,
	}
}

// Check returns the decision for path together with the settings it was
// based on. On a read error the decision is Allow and the error is returned
// so the caller can log it.
func (s *GateService) Check(ctx context.Context, path string) (decision gate.Decision, settings models.MaintenanceSettings, err error) {
	ctx, span := observability.StartSpan(ctx, "gate", "check", attribute.String("gate.path", path))
	defer func() {
		span.SetAttributes(attribute.String("gate.decision", decision.String()))
		observability.EndSpan(span, err)
	}()

	p := gate.NormalizePath(path)
	if s.exemptions.Exempt(p) {
		return gate.Allow, models.MaintenanceSettings{}, nil
	}

	settings, err = s.settingsRepo.Get(ctx)
	if err != nil {
		return gate.Allow, models.MaintenanceSettings{}, err
	}

	now := s.now()
	if gate.EffectiveActive(settings, now) {
		return gate.ShowMaintenance, settings, nil
	}

	pages, err := s.pageRepo.List(ctx)
	if err != nil {
		return gate.Allow, settings, err
	}
	return s.exemptions.Decide(settings, gate.NewRouteTable(pages), p, now), settings, nil
}
