// Package manifest loads the list of routable site pages. The same list
// seeds the page status table and drives page rendering.
package manifest

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"spekulus/internal/gate"
	"spekulus/internal/models"

	"gopkg.in/yaml.v3"
)

//go:embed routes.yaml
var defaultManifest []byte

// Page is one routable page of the site.
type Page struct {
	Path        string `yaml:"path"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Prefix      bool   `yaml:"prefix"`
}

// Dynamic reports whether the page covers concrete paths below its own.
func (p Page) Dynamic() bool {
	if p.Prefix {
		return true
	}
	_, wildcard := gate.WildcardPrefix(p.Path)
	return wildcard
}

// Manifest is the validated page list.
type Manifest struct {
	Pages []Page `yaml:"pages"`

	byPath map[string]Page
	routes *gate.RouteTable
}

// Load reads the manifest at path, or the built-in one when path is empty.
func Load(path string) (*Manifest, error) {
	raw := defaultManifest
	if strings.TrimSpace(path) != "" {
		// #nosec G304: path comes from operator configuration
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read route manifest: %w", err)
		}
		raw = data
	}
	return Parse(raw)
}

// Parse decodes and validates a YAML manifest.
func Parse(raw []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse route manifest: %w", err)
	}
	if len(m.Pages) == 0 {
		return nil, fmt.Errorf("route manifest has no pages")
	}

	exemptions := gate.NewExemptions()
	m.byPath = make(map[string]Page, len(m.Pages))
	for i, p := range m.Pages {
		if !strings.HasPrefix(p.Path, "/") {
			return nil, fmt.Errorf("page %d: path %q must start with /", i, p.Path)
		}
		p.Path = gate.NormalizePath(p.Path)
		if exemptions.Exempt(p.Path) {
			return nil, fmt.Errorf("page %q is under an exempt prefix and can never be gated", p.Path)
		}
		if _, dup := m.byPath[p.Path]; dup {
			return nil, fmt.Errorf("duplicate page %q", p.Path)
		}
		if strings.TrimSpace(p.Title) == "" {
			p.Title = p.Path
		}
		m.Pages[i] = p
		m.byPath[p.Path] = p
	}
	m.routes = gate.NewRouteTable(m.Rows())
	return &m, nil
}

// Rows converts the pages into page status seed rows.
func (m *Manifest) Rows() []models.PageStatus {
	rows := make([]models.PageStatus, 0, len(m.Pages))
	for _, p := range m.Pages {
		rows = append(rows, models.PageStatus{
			Path:    p.Path,
			Title:   p.Title,
			Status:  models.PageStateActive,
			Dynamic: p.Dynamic(),
		})
	}
	return rows
}

// Match resolves a concrete request path to the page that serves it.
func (m *Manifest) Match(p string) (Page, bool) {
	row := m.routes.Lookup(gate.NormalizePath(p))
	if row == nil {
		return Page{}, false
	}
	page, ok := m.byPath[row.Path]
	return page, ok
}
