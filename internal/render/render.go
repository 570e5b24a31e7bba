// Package render writes the visitor-facing views: site pages, the
// maintenance screen and the not-found screen.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"

	"spekulus/internal/gate"
	"spekulus/internal/manifest"
	"spekulus/internal/models"

	"github.com/gofiber/fiber/v2"
)

//go:embed views/*.html
var viewFS embed.FS

// Renderer renders views as HTML, or JSON for clients that ask for it.
type Renderer struct {
	views          map[string]*template.Template
	defaultMessage string
	now            func() time.Time
}

// New parses the embedded views.
func New(defaultMessage string) (*Renderer, error) {
	r := &Renderer{
		views:          make(map[string]*template.Template, 3),
		defaultMessage: defaultMessage,
		now:            time.Now,
	}
	for _, name := range []string{"maintenance", "notfound", "page"} {
		t, err := template.ParseFS(viewFS, "views/layout.html", "views/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse view %s: %w", name, err)
		}
		r.views[name] = t
	}
	return r, nil
}

type maintenanceView struct {
	Title     string
	Message   string
	EndsAt    string
	Remaining string
}

// Maintenance serves the maintenance screen in place of the requested page.
func (r *Renderer) Maintenance(c *fiber.Ctx, settings models.MaintenanceSettings) error {
	now := r.now()
	message := strings.TrimSpace(settings.Message)
	if message == "" {
		message = r.defaultMessage
	}

	c.Set(fiber.HeaderCacheControl, "no-store")
	c.Status(fiber.StatusServiceUnavailable)

	// A page in per-page maintenance has no deadline of its own.
	var remaining int64
	deadline := gate.Deadline(settings)
	if !gate.EffectiveActive(settings, now) {
		deadline = nil
	}
	if deadline != nil {
		remaining = gate.RemainingSeconds(*deadline, now)
		if remaining > 0 {
			c.Set(fiber.HeaderRetryAfter, strconv.FormatInt(remaining, 10))
		}
	}

	if wantsJSON(c) {
		body := fiber.Map{
			"error":   message,
			"code":    "MAINTENANCE",
			"message": message,
		}
		if deadline != nil {
			body["ends_at"] = deadline.UTC()
			body["remaining_seconds"] = remaining
		}
		return c.JSON(body)
	}

	view := maintenanceView{Title: "Maintenance", Message: message}
	if deadline != nil {
		view.EndsAt = deadline.UTC().Format(time.RFC3339)
		view.Remaining = (time.Duration(remaining) * time.Second).String()
	}
	return r.html(c, "maintenance", view)
}

// NotFound serves the not-found screen. Hidden pages and unknown paths get
// exactly the same response.
func (r *Renderer) NotFound(c *fiber.Ctx) error {
	c.Status(fiber.StatusNotFound)
	if wantsJSON(c) {
		return models.RespondWithError(c, fiber.StatusNotFound, models.NewNotFoundError("Page", c.Path()))
	}
	return r.html(c, "notfound", struct{ Title string }{Title: "Not found"})
}

// Page renders a manifest page.
func (r *Renderer) Page(c *fiber.Ctx, page manifest.Page) error {
	if wantsJSON(c) {
		return c.JSON(fiber.Map{
			"path":        c.Path(),
			"title":       page.Title,
			"description": page.Description,
		})
	}
	return r.html(c, "page", struct {
		Title       string
		Description string
		Path        string
	}{page.Title, page.Description, c.Path()})
}

func (r *Renderer) html(c *fiber.Ctx, name string, data any) error {
	var buf bytes.Buffer
	if err := r.views[name].ExecuteTemplate(&buf, name+".html", data); err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Send(buf.Bytes())
}

func wantsJSON(c *fiber.Ctx) bool {
	return c.Accepts(fiber.MIMETextHTML, fiber.MIMEApplicationJSON) == fiber.MIMEApplicationJSON
}
