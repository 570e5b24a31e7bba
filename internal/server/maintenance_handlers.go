package server

import (
	"strings"
	"time"

	"spekulus/internal/gate"
	"spekulus/internal/models"
	"spekulus/internal/service"

	"github.com/gofiber/fiber/v2"
)

// respondServiceError maps service errors onto HTTP statuses.
func respondServiceError(c *fiber.Ctx, err error) error {
	if models.IsValidationError(err) {
		return models.RespondWithError(c, fiber.StatusBadRequest, err)
	}
	return models.RespondWithError(c, fiber.StatusInternalServerError, err)
}

// GetMaintenanceStatus handles GET /api/admin/maintenance
// @Summary Maintenance status
// @Description Effective maintenance state with the selectable durations. An expired window is switched off on read.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{status=service.MaintenanceStatus,durations=[]string}
// @Failure 401 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /admin/maintenance [get]
func (s *Server) GetMaintenanceStatus(c *fiber.Ctx) error {
	st, err := s.maintenanceService.Status(c.UserContext())
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"status":    st,
		"durations": service.DurationOptions(),
	})
}

// ActivateMaintenance handles POST /api/admin/maintenance/activate
// @Summary Activate maintenance
// @Description Put the whole site into maintenance for one of the fixed durations
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{duration=string} true "indefinite, 15m, 1h, 4h or 24h"
// @Success 200 {object} service.MaintenanceStatus
// @Failure 400 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /admin/maintenance/activate [post]
func (s *Server) ActivateMaintenance(c *fiber.Ctx) error {
	var req struct {
		Duration string `json:"duration"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid request body"))
		}
	}

	option, err := service.ParseDuration(req.Duration)
	if err != nil {
		return respondServiceError(c, err)
	}

	st, err := s.maintenanceService.Activate(c.UserContext(), actor(c), option)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(st)
}

// DeactivateMaintenance handles POST /api/admin/maintenance/deactivate
// @Summary Deactivate maintenance
// @Description Bring the site back live and clear any deadline
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.MaintenanceStatus
// @Failure 500 {object} models.ErrorResponse
// @Router /admin/maintenance/deactivate [post]
func (s *Server) DeactivateMaintenance(c *fiber.Ctx) error {
	st, err := s.maintenanceService.Deactivate(c.UserContext(), actor(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(st)
}

// UpdateMaintenanceMessage handles PUT /api/admin/maintenance/message
// @Summary Update maintenance message
// @Description Save the message shown on the maintenance screen without changing the switch
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{message=string} true "Message, at most 1000 characters"
// @Success 200 {object} service.MaintenanceStatus
// @Failure 400 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /admin/maintenance/message [put]
func (s *Server) UpdateMaintenanceMessage(c *fiber.Ctx) error {
	var req struct {
		Message *string `json:"message"`
	}
	if err := c.BodyParser(&req); err != nil || req.Message == nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("message is required"))
	}

	st, err := s.maintenanceService.UpdateMessage(c.UserContext(), actor(c), *req.Message)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(st)
}

// GetPages handles GET /api/admin/pages
// @Summary List pages
// @Description Every known page with its visitor-facing status
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.PageStatus
// @Failure 500 {object} models.ErrorResponse
// @Router /admin/pages [get]
func (s *Server) GetPages(c *fiber.Ctx) error {
	pages, err := s.maintenanceService.ListPages(c.UserContext())
	if err != nil {
		return respondServiceError(c, err)
	}
	if pages == nil {
		pages = []models.PageStatus{}
	}
	return c.JSON(pages)
}

// SetPageStatus handles PUT /api/admin/pages/status
// @Summary Set page status
// @Description Mark a page active, hidden or in maintenance
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{path=string,status=string} true "Page path and status"
// @Success 200 {object} models.PageStatus
// @Failure 400 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /admin/pages/status [put]
func (s *Server) SetPageStatus(c *fiber.Ctx) error {
	var req struct {
		Path   string `json:"path"`
		Status string `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if strings.TrimSpace(req.Path) == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("path is required"))
	}

	row, err := s.maintenanceService.SetPageStatus(c.UserContext(), actor(c), req.Path, req.Status)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(row)
}

// GetAuditLog handles GET /api/admin/audit
// @Summary Audit log
// @Description Operator actions, newest first
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size (default 50, max 200)"
// @Param offset query int false "Offset"
// @Success 200 {array} models.AuditLog
// @Failure 500 {object} models.ErrorResponse
// @Router /admin/audit [get]
func (s *Server) GetAuditLog(c *fiber.Ctx) error {
	entries, err := s.auditRepo.List(c.UserContext(), c.QueryInt("limit", 50), c.QueryInt("offset", 0))
	if err != nil {
		return respondServiceError(c, err)
	}
	if entries == nil {
		entries = []models.AuditLog{}
	}
	return c.JSON(entries)
}

// GetPublicMaintenanceStatus handles GET /api/maintenance
// @Summary Public maintenance status
// @Description Whether the site is in maintenance and how long remains. Never writes.
// @Tags maintenance
// @Produce json
// @Success 200 {object} object{active=bool,message=string,ends_at=string,remaining_seconds=int}
// @Failure 500 {object} models.ErrorResponse
// @Router /maintenance [get]
func (s *Server) GetPublicMaintenanceStatus(c *fiber.Ctx) error {
	settings, err := s.settingsRepo.Get(c.UserContext())
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	now := time.Now()
	c.Set(fiber.HeaderCacheControl, "no-store")
	if !gate.EffectiveActive(settings, now) {
		return c.JSON(fiber.Map{"active": false})
	}

	message := strings.TrimSpace(settings.Message)
	if message == "" {
		message = s.config.MaintenanceDefaultMessage
	}
	body := fiber.Map{
		"active":  true,
		"message": message,
	}
	if deadline := gate.Deadline(settings); deadline != nil {
		body["ends_at"] = deadline.UTC()
		body["remaining_seconds"] = gate.RemainingSeconds(*deadline, now)
	}
	return c.JSON(body)
}
