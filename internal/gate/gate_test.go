package gate

import (
	"fmt"
	"testing"
	"time"

	"spekulus/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func timePtr(t time.Time) *time.Time { return &t }

func page(path string, state models.PageState) *models.PageStatus {
	return &models.PageStatus{Path: path, Status: state}
}

func TestEvaluate_ExemptPathsAlwaysAllowed(t *testing.T) {
	t.Parallel()
	e := NewExemptions()
	faker := gofakeit.New(42)

	settingsCases := []models.MaintenanceSettings{
		{IsActive: true},
		{IsActive: true, EndsAt: timePtr(now.Add(time.Hour))},
		{IsActive: false},
	}
	states := []models.PageState{models.PageStateActive, models.PageStateHidden, models.PageStateMaintenance}

	for _, prefix := range DefaultExemptPrefixes {
		for i := 0; i < 10; i++ {
			p := fmt.Sprintf("%s/%s", prefix, faker.Word())
			for _, s := range settingsCases {
				for _, st := range states {
					assert.Equal(t, Allow, e.Evaluate(s, page(p, st), p, now), "path %s", p)
					assert.Equal(t, Allow, e.Evaluate(s, page(prefix, st), prefix, now), "path %s", prefix)
				}
			}
		}
	}
}

func TestExempt_RespectsSegmentBoundaries(t *testing.T) {
	t.Parallel()
	e := NewExemptions("/preview")

	assert.True(t, e.Exempt("/admin"))
	assert.True(t, e.Exempt("/admin/"))
	assert.True(t, e.Exempt("/admin/dashboard"))
	assert.True(t, e.Exempt("/api/v1/settings"))
	assert.True(t, e.Exempt("/preview/draft"))
	assert.False(t, e.Exempt("/administrator"))
	assert.False(t, e.Exempt("/apiary"))
	assert.False(t, e.Exempt("/"))
	assert.False(t, e.Exempt("/admin/../pricing"), "dot segments must not smuggle paths through the exemption")
}

func TestNewExemptions_CannotDropDefaultsOrExemptRoot(t *testing.T) {
	t.Parallel()
	e := NewExemptions("/", "", "/admin")

	assert.ElementsMatch(t, DefaultExemptPrefixes, e.Prefixes())
	assert.False(t, e.Exempt("/pricing"))

	var zero Exemptions
	assert.True(t, zero.Exempt("/admin/dashboard"), "zero value still protects the admin surface")
}

func TestEvaluate_ActiveWithFutureDeadlineShowsMaintenance(t *testing.T) {
	t.Parallel()
	e := NewExemptions()
	faker := gofakeit.New(7)

	for i := 0; i < 50; i++ {
		s := models.MaintenanceSettings{
			IsActive: true,
			Message:  faker.Sentence(6),
			EndsAt:   timePtr(now.Add(time.Duration(faker.IntRange(1, 86400)) * time.Second)),
		}
		p := "/" + faker.Word()
		assert.Equal(t, ShowMaintenance, e.Evaluate(s, nil, p, now))
		assert.Equal(t, ShowMaintenance, e.Evaluate(s, page(p, models.PageStateActive), p, now),
			"global maintenance wins over an explicitly active page")
		assert.Equal(t, ShowMaintenance, e.Evaluate(s, page(p, models.PageStateHidden), p, now))
	}
}

func TestEvaluate_DeadlineBoundary(t *testing.T) {
	t.Parallel()
	e := NewExemptions()

	tests := []struct {
		name   string
		endsAt *time.Time
		want   Decision
	}{
		{"indefinite", nil, ShowMaintenance},
		{"one nanosecond left", timePtr(now.Add(time.Nanosecond)), ShowMaintenance},
		{"deadline equals now", timePtr(now), Allow},
		{"deadline passed", timePtr(now.Add(-time.Minute)), Allow},
		{"malformed zero deadline", timePtr(time.Time{}), ShowMaintenance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := models.MaintenanceSettings{IsActive: true, EndsAt: tt.endsAt}
			assert.Equal(t, tt.want, e.Evaluate(s, nil, "/pricing", now))
		})
	}
}

func TestEvaluate_ExpiredBehavesAsInactive(t *testing.T) {
	t.Parallel()
	e := NewExemptions()
	expired := models.MaintenanceSettings{IsActive: true, EndsAt: timePtr(now.Add(-time.Second))}
	inactive := models.MaintenanceSettings{IsActive: false}

	for _, st := range []models.PageState{models.PageStateActive, models.PageStateHidden, models.PageStateMaintenance} {
		pg := page("/faq", st)
		assert.Equal(t, e.Evaluate(inactive, pg, "/faq", now), e.Evaluate(expired, pg, "/faq", now))
	}
	assert.True(t, Expired(expired, now))
	assert.False(t, Expired(inactive, now))
}

func TestEvaluate_InactiveFollowsPageStatus(t *testing.T) {
	t.Parallel()
	e := NewExemptions()
	s := models.MaintenanceSettings{}

	assert.Equal(t, Allow, e.Evaluate(s, page("/faq", models.PageStateActive), "/faq", now))
	assert.Equal(t, ShowHidden, e.Evaluate(s, page("/faq", models.PageStateHidden), "/faq", now))
	assert.Equal(t, ShowMaintenance, e.Evaluate(s, page("/faq", models.PageStateMaintenance), "/faq", now))
	assert.Equal(t, Allow, e.Evaluate(s, nil, "/faq", now), "unknown pages default to active")
}

func TestEvaluate_Idempotent(t *testing.T) {
	t.Parallel()
	e := NewExemptions()
	table := NewRouteTable([]models.PageStatus{
		{Path: "/roadmap", Status: models.PageStateHidden},
		{Path: "/dev-notes/[slug]", Status: models.PageStateMaintenance},
	})
	s := models.MaintenanceSettings{IsActive: true, EndsAt: timePtr(now.Add(-time.Minute))}

	for _, p := range []string{"/", "/roadmap", "/dev-notes/first", "/admin", "/pricing"} {
		first := e.Decide(s, table, p, now)
		second := e.Decide(s, table, p, now)
		assert.Equal(t, first, second, p)
	}
}

func TestScenarios(t *testing.T) {
	t.Parallel()
	e := NewExemptions()

	t.Run("A: unset page with maintenance off is allowed", func(t *testing.T) {
		table := NewRouteTable(nil)
		assert.Equal(t, Allow, e.Decide(models.MaintenanceSettings{}, table, "/pricing", now))
	})

	t.Run("B: fifteen minute window expires lazily", func(t *testing.T) {
		t0 := now
		s := models.MaintenanceSettings{IsActive: true, EndsAt: timePtr(t0.Add(15 * time.Minute))}
		assert.Equal(t, ShowMaintenance, e.Decide(s, nil, "/product", t0.Add(10*time.Minute)))
		assert.Equal(t, Allow, e.Decide(s, nil, "/product", t0.Add(16*time.Minute)))
	})

	t.Run("C: hidden prefix route hides its sub-paths", func(t *testing.T) {
		table := NewRouteTable([]models.PageStatus{
			{Path: "/beta", Status: models.PageStateHidden, Dynamic: true},
		})
		s := models.MaintenanceSettings{}
		assert.Equal(t, ShowHidden, e.Decide(s, table, "/beta", now))
		assert.Equal(t, ShowHidden, e.Decide(s, table, "/beta/sub", now))
		assert.Equal(t, Allow, e.Decide(s, table, "/betamax", now))
	})

	t.Run("D: admin reachable during global maintenance", func(t *testing.T) {
		table := NewRouteTable([]models.PageStatus{
			{Path: "/admin/[...rest]", Status: models.PageStateHidden},
		})
		s := models.MaintenanceSettings{IsActive: true}
		assert.Equal(t, Allow, e.Decide(s, table, "/admin/dashboard", now))
	})
}

func TestDecisionString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "allow", Allow.String())
	assert.Equal(t, "maintenance", ShowMaintenance.String())
	assert.Equal(t, "hidden", ShowHidden.String())
	require.Equal(t, "unknown", Decision(99).String())
}

func TestRemainingSeconds(t *testing.T) {
	assert.Equal(t, int64(0), RemainingSeconds(now, now))
	assert.Equal(t, int64(0), RemainingSeconds(now.Add(-time.Hour), now))
	assert.Equal(t, int64(1), RemainingSeconds(now.Add(10*time.Millisecond), now))
	assert.Equal(t, int64(3600), RemainingSeconds(now.Add(time.Hour), now))
}
