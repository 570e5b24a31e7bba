package middleware

import (
	"context"
	"log/slog"

	"spekulus/internal/gate"
	"spekulus/internal/models"
	"spekulus/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// GateDecisionLocal is the Fiber locals key holding the gate decision for the request.
const GateDecisionLocal = "gateDecision"

// GateChecker evaluates the maintenance gate for a request path against the
// current stored state.
type GateChecker interface {
	Check(ctx context.Context, path string) (gate.Decision, models.MaintenanceSettings, error)
}

// GateRenderer writes the responses the gate substitutes for a page.
type GateRenderer interface {
	Maintenance(c *fiber.Ctx, settings models.MaintenanceSettings) error
	NotFound(c *fiber.Ctx) error
}

// MaintenanceGate intercepts page requests before they are rendered. Exempt
// paths pass without touching the store. When the store cannot be read the
// request is let through and the failure is logged.
func MaintenanceGate(checker GateChecker, renderer GateRenderer, exemptions gate.Exemptions) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodOptions {
			return c.Next()
		}

		p := gate.NormalizePath(c.Path())
		if exemptions.Exempt(p) {
			return c.Next()
		}

		decision, settings, err := checker.Check(c.UserContext(), p)
		if err != nil {
			observability.GateStoreFailures.Inc()
			Logger.WarnContext(c.UserContext(), "maintenance gate store unavailable, serving page",
				slog.String("path", p),
				slog.String("error", err.Error()),
			)
			decision = gate.Allow
		}

		c.Locals(GateDecisionLocal, decision.String())
		observability.GateDecisions.WithLabelValues(decision.String()).Inc()

		switch decision {
		case gate.ShowMaintenance:
			return renderer.Maintenance(c, settings)
		case gate.ShowHidden:
			return renderer.NotFound(c)
		default:
			return c.Next()
		}
	}
}
