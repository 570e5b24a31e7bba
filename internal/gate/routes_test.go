package gate

import (
	"testing"

	"spekulus/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWildcardPrefix(t *testing.T) {
	t.Parallel()
	tests := []struct {
		pattern string
		prefix  string
		dynamic bool
	}{
		{"/notes/[slug]", "/notes/", true},
		{"/notes/*", "/notes/", true},
		{"/shop/[...rest]", "/shop/", true},
		{"/a/b/[id]/edit", "/a/b/", true},
		{"/*", "/", true},
		{"/notes", "", false},
		{"/", "", false},
	}
	for _, tt := range tests {
		prefix, ok := WildcardPrefix(tt.pattern)
		assert.Equal(t, tt.dynamic, ok, tt.pattern)
		assert.Equal(t, tt.prefix, prefix, tt.pattern)
	}
}

func TestRouteTable_DynamicRowsMatchChildrenNotParent(t *testing.T) {
	t.Parallel()
	table := NewRouteTable([]models.PageStatus{
		{Path: "/notes", Status: models.PageStateActive},
		{Path: "/notes/*", Status: models.PageStateHidden},
	})

	list := table.Lookup("/notes")
	require.NotNil(t, list)
	assert.Equal(t, models.PageStateActive, list.Status, "list route keeps its own row")

	detail := table.Lookup("/notes/abc")
	require.NotNil(t, detail)
	assert.Equal(t, models.PageStateHidden, detail.Status)

	assert.Equal(t, models.PageStateActive, table.Lookup("/notes/").Status, "trailing slash is the list route")
	assert.Nil(t, table.Lookup("/notesabc"))
}

func TestRouteTable_DynamicWithoutListRow(t *testing.T) {
	t.Parallel()
	table := NewRouteTable([]models.PageStatus{
		{Path: "/dev-notes/[slug]", Status: models.PageStateMaintenance},
	})
	assert.Nil(t, table.Lookup("/dev-notes"), "bare parent is not matched by the detail pattern")
	require.NotNil(t, table.Lookup("/dev-notes/mirror-os-1-2"))
}

func TestRouteTable_ExactBeatsDynamicAndLongestPrefixWins(t *testing.T) {
	t.Parallel()
	table := NewRouteTable([]models.PageStatus{
		{Path: "/*", Status: models.PageStateHidden},
		{Path: "/faq", Status: models.PageStateActive},
		{Path: "/docs/[slug]", Status: models.PageStateMaintenance},
		{Path: "/docs/api/[slug]", Status: models.PageStateActive},
	})

	assert.Equal(t, models.PageStateActive, table.Lookup("/faq").Status)
	assert.Equal(t, models.PageStateMaintenance, table.Lookup("/docs/intro").Status)
	assert.Equal(t, models.PageStateActive, table.Lookup("/docs/api/gate").Status)
	assert.Equal(t, models.PageStateHidden, table.Lookup("/anything").Status)
	assert.Nil(t, table.Lookup("/"))
}

func TestRouteTable_NilSafe(t *testing.T) {
	t.Parallel()
	var table *RouteTable
	assert.Nil(t, table.Lookup("/x"))
}
