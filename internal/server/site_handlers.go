package server

import (
	"github.com/gofiber/fiber/v2"
)

// RenderPage serves manifest pages. Anything else gets the not-found view,
// the same one the gate uses for hidden pages.
func (s *Server) RenderPage(c *fiber.Ctx) error {
	page, ok := s.site.Match(c.Path())
	if !ok {
		return s.renderer.NotFound(c)
	}
	return s.renderer.Page(c, page)
}

// NotFoundPage answers every other method on site paths with the not-found
// view, so a hidden page and a missing one look the same whatever the method.
func (s *Server) NotFoundPage(c *fiber.Ctx) error {
	return s.renderer.NotFound(c)
}
