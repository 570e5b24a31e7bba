package gate

import (
	"sort"
	"strings"

	"spekulus/internal/models"
)

type dynamicRoute struct {
	prefix string // always ends with "/"
	row    *models.PageStatus
}

// RouteTable resolves concrete request paths to page-status rows. Exact rows
// are consulted before dynamic ones so a short static path is never shadowed
// by an unrelated dynamic prefix; among dynamic rows the longest prefix wins.
type RouteTable struct {
	exact   map[string]*models.PageStatus
	dynamic []dynamicRoute
}

// NewRouteTable builds a table from page-status rows.
func NewRouteTable(rows []models.PageStatus) *RouteTable {
	t := &RouteTable{exact: make(map[string]*models.PageStatus, len(rows))}
	for i := range rows {
		row := &rows[i]
		pattern := NormalizePath(row.Path)

		if prefix, ok := WildcardPrefix(pattern); ok {
			t.dynamic = append(t.dynamic, dynamicRoute{prefix: prefix, row: row})
			continue
		}

		t.exact[pattern] = row
		if row.Dynamic {
			prefix := pattern + "/"
			if pattern == "/" {
				prefix = "/"
			}
			t.dynamic = append(t.dynamic, dynamicRoute{prefix: prefix, row: row})
		}
	}

	sort.SliceStable(t.dynamic, func(i, j int) bool {
		return len(t.dynamic[i].prefix) > len(t.dynamic[j].prefix)
	})
	return t
}

// Lookup returns the row governing p, or nil when no row matches.
func (t *RouteTable) Lookup(p string) *models.PageStatus {
	if t == nil {
		return nil
	}
	p = NormalizePath(p)
	if row, ok := t.exact[p]; ok {
		return row
	}
	for _, d := range t.dynamic {
		parent := strings.TrimSuffix(d.prefix, "/")
		if strings.HasPrefix(p, d.prefix) && len(p) > len(parent)+1 {
			return d.row
		}
	}
	return nil
}

// WildcardPrefix reports whether pattern contains a wildcard segment
// ("*", "[slug]", "[...rest]") and returns the fixed prefix before it,
// including the trailing slash.
func WildcardPrefix(pattern string) (string, bool) {
	segments := strings.Split(strings.TrimPrefix(pattern, "/"), "/")
	for i, seg := range segments {
		if isWildcardSegment(seg) {
			return "/" + strings.Join(segments[:i], "/") + trailingSlash(i), true
		}
	}
	return "", false
}

func trailingSlash(fixedSegments int) string {
	if fixedSegments == 0 {
		return ""
	}
	return "/"
}

func isWildcardSegment(seg string) bool {
	return seg == "*" || (strings.HasPrefix(seg, "[") && strings.HasSuffix(seg, "]"))
}
