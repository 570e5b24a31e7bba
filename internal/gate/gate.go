// Package gate decides what a visitor may see for a request path, combining
// the site-wide maintenance switch with per-page status.
//
// Evaluation is a pure function of its inputs. Expiry of a timed maintenance
// window is derived from the stored deadline on every call; nothing ever has
// to flip the stored flag for the site to come back.
package gate

import (
	"path"
	"strings"
	"time"

	"spekulus/internal/models"
)

// Decision is the outcome of evaluating the gate for one request.
type Decision int

const (
	// Allow passes the request through to normal rendering.
	Allow Decision = iota
	// ShowMaintenance serves the maintenance view in place of the page.
	ShowMaintenance
	// ShowHidden serves the not-found view in place of the page.
	ShowHidden
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case ShowMaintenance:
		return "maintenance"
	case ShowHidden:
		return "hidden"
	default:
		return "unknown"
	}
}

// DefaultExemptPrefixes are never gated: the data API, the admin panel and
// the sign-in pages. Operators must always be able to reach them.
var DefaultExemptPrefixes = []string{"/api", "/admin", "/login", "/logout", "/auth"}

// Exemptions is the allow-list of path prefixes that bypass the gate.
type Exemptions struct {
	prefixes []string
}

// NewExemptions returns the default exemptions plus any literal extra prefixes.
// Extras can only add to the list.
func NewExemptions(extra ...string) Exemptions {
	seen := make(map[string]bool)
	var prefixes []string
	for _, p := range append(append([]string{}, DefaultExemptPrefixes...), extra...) {
		p = NormalizePath(p)
		if p == "/" || seen[p] {
			continue
		}
		seen[p] = true
		prefixes = append(prefixes, p)
	}
	return Exemptions{prefixes: prefixes}
}

// Prefixes returns a copy of the active exempt prefixes.
func (e Exemptions) Prefixes() []string {
	if len(e.prefixes) == 0 {
		return NewExemptions().Prefixes()
	}
	return append([]string(nil), e.prefixes...)
}

// Exempt reports whether p falls under an exempt prefix. Matching respects
// segment boundaries, so "/admin" covers "/admin/x" but not "/administrator".
func (e Exemptions) Exempt(p string) bool {
	p = NormalizePath(p)
	for _, prefix := range e.Prefixes() {
		if p == prefix || strings.HasPrefix(p, prefix+"/") {
			return true
		}
	}
	return false
}

// NormalizePath cleans a request path: leading slash, no trailing slash,
// dot segments resolved.
func NormalizePath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// Deadline returns the usable expiry of the settings. A zero timestamp is a
// malformed value and counts as no deadline.
func Deadline(s models.MaintenanceSettings) *time.Time {
	if s.EndsAt == nil || s.EndsAt.IsZero() {
		return nil
	}
	return s.EndsAt
}

// EffectiveActive combines the stored flag with the deadline. A deadline
// equal to now has already expired.
func EffectiveActive(s models.MaintenanceSettings, now time.Time) bool {
	if !s.IsActive {
		return false
	}
	deadline := Deadline(s)
	return deadline == nil || deadline.After(now)
}

// Expired reports whether the stored flag is still set although its deadline passed.
func Expired(s models.MaintenanceSettings, now time.Time) bool {
	return s.IsActive && !EffectiveActive(s, now)
}

// RemainingSeconds is the whole number of seconds until deadline, rounded up,
// and never negative.
func RemainingSeconds(deadline, now time.Time) int64 {
	d := deadline.Sub(now)
	if d <= 0 {
		return 0
	}
	secs := int64(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}

// Evaluate maps the current settings and the page-status row resolved for p
// to a decision. page may be nil, which means the page is active.
func (e Exemptions) Evaluate(settings models.MaintenanceSettings, page *models.PageStatus, p string, now time.Time) Decision {
	if e.Exempt(p) {
		return Allow
	}
	if EffectiveActive(settings, now) {
		return ShowMaintenance
	}

	state := models.PageStateActive
	if page != nil {
		state = page.Status
	}
	switch state {
	case models.PageStateMaintenance:
		return ShowMaintenance
	case models.PageStateHidden:
		return ShowHidden
	default:
		return Allow
	}
}

// Decide resolves the page-status row for p in table and evaluates the gate.
func (e Exemptions) Decide(settings models.MaintenanceSettings, table *RouteTable, p string, now time.Time) Decision {
	var page *models.PageStatus
	if table != nil {
		page = table.Lookup(p)
	}
	return e.Evaluate(settings, page, p, now)
}
