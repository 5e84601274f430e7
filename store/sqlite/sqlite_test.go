package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/generic"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var recruiter = commission.Manager{ID: "r1", Name: "Recruiter", Type: commission.ManagerRecruiter, StartDate: "01.01.2024"}

func TestFGs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// GIVEN: Imported FGs, two sharing a number
	require.NoError(t, s.ReplaceFGs(ctx, []commission.FG{
		{Number: "7", Name: "first", Extra: map[string]string{"Region": "North"}},
		{Number: "3", Name: "other"},
		{Number: "7.0", Name: "duplicate"},
	}))

	// WHEN: Looking up and assigning by a loosely-equal number
	fg, err := s.GetFG(ctx, "7.00")
	require.NoError(t, err)
	assert.Equal(t, "first", fg.Name)
	assert.Equal(t, "North", fg.Extra["Region"])

	fg.Source = commission.SourceRecruiter
	fg.Manager = recruiter.Ref()
	require.NoError(t, s.SaveFGs(ctx, []commission.FG{fg}))

	// THEN: Only the first match changed and order is kept
	fgs, err := s.ListFGs(ctx)
	require.NoError(t, err)
	require.Len(t, fgs, 3)
	assert.Equal(t, commission.SourceRecruiter, fgs[0].Source)
	assert.Equal(t, commission.ManagerID("r1"), fgs[0].Manager.ID)
	assert.Equal(t, "other", fgs[1].Name)
	assert.Equal(t, commission.SourceNone, fgs[2].Source)

	_, err = s.GetFG(ctx, "404")
	assert.True(t, generic.IsNotFound(err))
	assert.True(t, generic.IsNotFound(s.SaveFGs(ctx, []commission.FG{{Number: "404"}})))
}

func TestPrepayments(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.ReplacePrepayments(ctx, []commission.Prepayment{
		{FGNumber: "1", Period: "01.2024", Amount: "1 000,50"},
		{FGNumber: "2", Period: "02.2024", Amount: "20"},
	}))
	require.NoError(t, s.ReplacePrepayments(ctx, []commission.Prepayment{
		{FGNumber: "3", Period: "03.2024", Amount: "30"},
	}))

	pps, err := s.ListPrepayments(ctx)
	require.NoError(t, err)
	require.Len(t, pps, 1)
	assert.Equal(t, "3", pps[0].FGNumber)
}

func TestManagers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	account := commission.Manager{ID: "a1", Name: "Account", Type: commission.ManagerAccount}
	personal := commission.Rule{
		ID: "p", Name: "personal", PaymentType: commission.PaymentPercentage,
		PaymentValue: decimal.RequireFromString("2.5"), ApplyTo: commission.ApplyAll, IsPersonal: true,
	}

	require.NoError(t, s.SaveManager(ctx, recruiter))
	require.NoError(t, s.SaveManager(ctx, account))

	// Upsert keeps the row position
	updated := recruiter
	updated.Name = "Renamed"
	updated.PersonalRules = []commission.Rule{personal}
	require.NoError(t, s.SaveManager(ctx, updated))

	managers, err := s.ListManagers(ctx)
	require.NoError(t, err)
	require.Len(t, managers, 2)
	assert.Equal(t, "Renamed", managers[0].Name)
	assert.Equal(t, commission.ManagerID("a1"), managers[1].ID)

	got, err := s.GetManager(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, got.PersonalRules, 1)
	assert.True(t, got.PersonalRules[0].PaymentValue.Equal(personal.PaymentValue))
	assert.Equal(t, "01.01.2024", got.StartDate)

	require.NoError(t, s.DeleteManager(ctx, "r1"))
	_, err = s.GetManager(ctx, "r1")
	assert.True(t, generic.IsNotFound(err))
	assert.True(t, generic.IsNotFound(s.DeleteManager(ctx, "r1")))
}

func TestRulesAndMilestones(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	threshold := decimal.NewFromInt(5000)

	require.NoError(t, s.SaveRule(ctx, commission.Rule{ID: "b", Name: "b", ManagerIDs: []commission.ManagerID{"r1"}}))
	require.NoError(t, s.SaveRule(ctx, commission.Rule{
		ID: "a", Name: "a", ApplyTo: commission.ApplyGroupWithThreshold,
		Constraints: commission.Constraints{MinGroupThreshold: &threshold},
	}))

	rules, err := s.ListRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, commission.RuleID("b"), rules[0].ID)
	assert.Equal(t, []commission.ManagerID{"r1"}, rules[0].ManagerIDs)
	require.NotNil(t, rules[1].Constraints.MinGroupThreshold)
	assert.True(t, rules[1].Constraints.MinGroupThreshold.Equal(threshold))

	require.NoError(t, s.DeleteRule(ctx, "b"))
	assert.True(t, generic.IsNotFound(s.DeleteRule(ctx, "b")))

	require.NoError(t, s.SaveMilestone(ctx, commission.Milestone{ID: "m", Name: "m", ManagerGroup: commission.GroupCustom, AssignedManagers: []commission.ManagerID{"r1"}}))
	milestones, err := s.ListMilestones(ctx)
	require.NoError(t, err)
	require.Len(t, milestones, 1)
	assert.Equal(t, commission.GroupCustom, milestones[0].ManagerGroup)
	require.NoError(t, s.DeleteMilestone(ctx, "m"))
	assert.True(t, generic.IsNotFound(s.DeleteMilestone(ctx, "m")))
}

func TestSettings(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	settings, err := s.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, commission.DefaultSettings().SourceWeights, settings.SourceWeights)

	require.NoError(t, s.SaveSettings(ctx, commission.Settings{
		SourceWeights:     map[commission.Source]int{commission.SourceOrganic: 4},
		DefaultCommission: decimal.RequireFromString("7.5"),
	}))
	settings, err = s.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[commission.Source]int{commission.SourceOrganic: 4}, settings.SourceWeights)
	assert.True(t, settings.DefaultCommission.Equal(decimal.RequireFromString("7.5")))
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.ReplaceFGs(ctx, []commission.FG{{Number: "1"}}))
	require.NoError(t, s.SaveManager(ctx, recruiter))
	require.NoError(t, s.SaveSettings(ctx, commission.Settings{}))

	require.NoError(t, s.Reset(ctx))

	fgs, _ := s.ListFGs(ctx)
	managers, _ := s.ListManagers(ctx)
	settings, _ := s.GetSettings(ctx)
	assert.Empty(t, fgs)
	assert.Empty(t, managers)
	assert.Equal(t, commission.DefaultSettings().SourceWeights, settings.SourceWeights)
}

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "commission.db")

	s, err := New(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveManager(ctx, recruiter))
	require.NoError(t, s.Close())

	s, err = New(path)
	require.NoError(t, err)
	defer s.Close()
	m, err := s.GetManager(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "Recruiter", m.Name)
}
