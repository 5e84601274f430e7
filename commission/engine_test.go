package commission_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/generic"
)

// =============================================================================
// REFERENCE SCENARIOS
// =============================================================================

func TestCompute_PercentageRule(t *testing.T) {
	// GIVEN: One FG managed by Alice with a single 500 prepayment
	// AND: A 10% rule for Alice, no constraints, window covering the date
	// WHEN: Computing the report
	// THEN: Alice earns 50.00

	snap := commission.Snapshot{
		FGs:         []commission.FG{fg("1", "Ivan Petrov Shop", "01.12.2023", alice)},
		Prepayments: []commission.Prepayment{pp("1", "01.01.2024", "500")},
		Rules:       []commission.Rule{percentRule("base", "10", alice.ID)},
		Managers:    []commission.Manager{alice},
	}

	report := commission.NewEngine().Compute(snap, q1())

	m := mustManager(t, report, alice.ID)
	assertMoney(t, "50", m.Commission)
	assertMoney(t, "50", m.Total())
	assertMoney(t, "500", m.PrepaymentsInPeriod)
	assert.Equal(t, 1, m.AgentsCount)
	assert.Equal(t, commission.ManagerRecruiter, m.ManagerType)
	require.Len(t, m.Agents, 1)
	assert.Equal(t, "Ivan Petrov", m.Agents[0].Name)
	require.Len(t, m.Agents[0].RuleCommissions, 1)
	assertMoney(t, "500", m.Agents[0].RuleCommissions[0].Base)
}

func TestCompute_PercentageWithCap(t *testing.T) {
	// GIVEN: The same data with a 10% rule capped at 30
	// WHEN: Computing the report
	// THEN: The uncapped 50 is cut to 30

	rule := percentRule("capped", "10", alice.ID)
	rule.PaymentType = commission.PaymentPercentageWithCap
	rule.Constraints.MaxPerPayment = decPtr("30")

	snap := commission.Snapshot{
		FGs:         []commission.FG{fg("1", "Ivan Petrov Shop", "01.12.2023", alice)},
		Prepayments: []commission.Prepayment{pp("1", "01.01.2024", "500")},
		Rules:       []commission.Rule{rule},
		Managers:    []commission.Manager{alice},
	}

	report := commission.NewEngine().Compute(snap, q1())

	assertMoney(t, "30", mustManager(t, report, alice.ID).Commission)
}

func TestCompute_MilestoneIndependentOfRules(t *testing.T) {
	// GIVEN: A fixed 200 milestone at 1000 for all managers
	// AND: Alice's lifetime volume is 1500, no commission rules
	// WHEN: Computing the report
	// THEN: Alice receives the 200 bonus anyway

	snap := commission.Snapshot{
		FGs: []commission.FG{fg("1", "Ivan Petrov Shop", "01.12.2023", alice)},
		Prepayments: []commission.Prepayment{
			pp("1", "10.01.2024", "1000"),
			pp("1", "10.02.2024", "500"),
		},
		Milestones: []commission.Milestone{{
			ID: "m1k", Name: "1k", TargetAmount: dec("1000"),
			PaymentType: commission.PaymentFixed, PaymentValue: dec("200"),
			ManagerGroup: commission.GroupAll,
		}},
		Managers: []commission.Manager{alice},
	}

	report := commission.NewEngine().Compute(snap, generic.Window{})

	m := mustManager(t, report, alice.ID)
	assertMoney(t, "0", m.Commission)
	assertMoney(t, "200", m.MilestoneBonus)
	assertMoney(t, "200", m.Total())
	require.Len(t, m.MilestoneAwards, 1)
	assertMoney(t, "1500", m.MilestoneAwards[0].Cumulative)
	assertMoney(t, "200", report.Totals.Payout)
}

func TestCompute_NewAgentsOnly_OldAgentEarnsNothing(t *testing.T) {
	// GIVEN: A 10% new-agents-only rule (3 months), report date 2024-06-30
	// AND: One agent started 6 months earlier, one started in May
	// WHEN: Computing the report
	// THEN: Only the new agent earns commission

	snap := commission.Snapshot{
		FGs: []commission.FG{
			fg("1", "Old Agent Shop", "30.12.2023", alice),
			fg("2", "New Agent Shop", "01.05.2024", alice),
		},
		Prepayments: []commission.Prepayment{
			pp("1", "01.02.2024", "500"),
			pp("2", "10.05.2024", "1000"),
		},
		Rules: []commission.Rule{func() commission.Rule {
			r := percentRule("new", "10", alice.ID)
			r.Constraints.NewAgentsOnly = true
			r.Constraints.NewAgentsMonths = 3
			return r
		}()},
		Managers: []commission.Manager{alice},
	}

	w := window(day(2024, time.January, 1), day(2024, time.June, 30))
	report := commission.NewEngine().Compute(snap, w)

	m := mustManager(t, report, alice.ID)
	require.Len(t, m.Agents, 2)
	assert.Equal(t, "Old Agent", m.Agents[0].Name)
	assertMoney(t, "0", m.Agents[0].Commission)
	assert.Empty(t, m.Agents[0].RuleCommissions)
	assertMoney(t, "100", m.Agents[1].Commission)
	assertMoney(t, "100", m.Commission)
}

// =============================================================================
// PROPERTIES
// =============================================================================

func TestCompute_RulesAreAdditive(t *testing.T) {
	// GIVEN: Three rules for Alice that all qualify
	// WHEN: Computing with all of them, each alone, and in reverse order
	// THEN: The combined commission is the sum of the individual ones

	capped := percentRule("capped", "5", alice.ID)
	capped.PaymentType = commission.PaymentPercentageWithCap
	capped.Constraints.MaxPerPayment = decPtr("30")
	fixed := commission.Rule{
		ID: "fixed", Name: "fixed", ManagerIDs: []commission.ManagerID{alice.ID},
		PaymentType: commission.PaymentFixed, PaymentValue: dec("25"), ApplyTo: commission.ApplyAll,
	}
	rules := []commission.Rule{percentRule("ten", "10", alice.ID), fixed, capped}

	base := commission.Snapshot{
		FGs: []commission.FG{fg("1", "Ivan Petrov Shop", "01.12.2023", alice)},
		Prepayments: []commission.Prepayment{
			pp("1", "10.01.2024", "600"),
			pp("1", "10.02.2024", "400"),
		},
		Managers: []commission.Manager{alice},
	}
	engine := commission.NewEngine()

	sum := dec("0")
	for _, r := range rules {
		s := base
		s.Rules = []commission.Rule{r}
		sum = sum.Add(mustManager(t, engine.Compute(s, q1()), alice.ID).Commission)
	}

	all := base
	all.Rules = rules
	reversed := base
	reversed.Rules = []commission.Rule{rules[2], rules[1], rules[0]}

	assertMoney(t, "155", sum)
	assertMoney(t, sum.String(), mustManager(t, engine.Compute(all, q1()), alice.ID).Commission)
	assertMoney(t, sum.String(), mustManager(t, engine.Compute(reversed, q1()), alice.ID).Commission)
}

func TestCompute_CapNeverExceeded(t *testing.T) {
	rule := percentRule("capped", "10", alice.ID)
	rule.PaymentType = commission.PaymentPercentageWithCap
	rule.Constraints.MaxPerPayment = decPtr("30")

	for amount, want := range map[string]string{
		"100":     "10",
		"299.99":  "29.999",
		"300":     "30",
		"301":     "30",
		"1000000": "30",
	} {
		snap := commission.Snapshot{
			FGs:         []commission.FG{fg("1", "Ivan Petrov Shop", "01.12.2023", alice)},
			Prepayments: []commission.Prepayment{pp("1", "10.01.2024", amount)},
			Rules:       []commission.Rule{rule},
			Managers:    []commission.Manager{alice},
		}
		got := mustManager(t, commission.NewEngine().Compute(snap, q1()), alice.ID).Commission
		assertMoney(t, want, got, "amount", amount)
		assert.True(t, got.LessThanOrEqual(dec("30")))
	}
}

func TestCompute_MilestoneCapNeverExceeded(t *testing.T) {
	snap := commission.Snapshot{
		FGs:         []commission.FG{fg("1", "Ivan Petrov Shop", "01.12.2023", alice)},
		Prepayments: []commission.Prepayment{pp("1", "10.01.2024", "10000")},
		Milestones: []commission.Milestone{{
			ID: "capped", Name: "capped", TargetAmount: dec("100"),
			PaymentType: commission.PaymentPercentageWithCap, PaymentValue: dec("10"),
			MaxPayment: decPtr("50"), ManagerGroup: commission.GroupAll,
		}},
		Managers: []commission.Manager{alice},
	}

	report := commission.NewEngine().Compute(snap, generic.Window{})

	assertMoney(t, "50", mustManager(t, report, alice.ID).MilestoneBonus)
}

func TestCompute_ThresholdGating(t *testing.T) {
	// GIVEN: A groupWithThreshold rule at 1000
	// WHEN: The agent's lifetime volume is just below, then exactly at the threshold
	// THEN: It pays nothing below and the normal 10% at the threshold

	rule := percentRule("big", "10", alice.ID)
	rule.ApplyTo = commission.ApplyGroupWithThreshold
	rule.Constraints.MinGroupThreshold = decPtr("1000")

	compute := func(amount string) commission.ManagerPayout {
		snap := commission.Snapshot{
			FGs:         []commission.FG{fg("1", "Ivan Petrov Shop", "01.12.2023", alice)},
			Prepayments: []commission.Prepayment{pp("1", "10.01.2024", amount)},
			Rules:       []commission.Rule{rule},
			Managers:    []commission.Manager{alice},
		}
		return mustManager(t, commission.NewEngine().Compute(snap, generic.Window{}), alice.ID)
	}

	assertMoney(t, "0", compute("999,99").Commission)
	assertMoney(t, "100", compute("1000").Commission)
}

func TestCompute_NoWindowEqualsWideWindow(t *testing.T) {
	// GIVEN: Data and rules exercising every applicability mode
	// WHEN: Computing once without a window and once with a window containing everything
	// THEN: Both reports pay the same

	end := day(2024, time.December, 31)
	newAgents := percentRule("new", "3", alice.ID, carol.ID)
	newAgents.Constraints.NewAgentsOnly = true
	newAgents.Constraints.NewAgentsMonths = 12
	first := commission.Rule{
		ID: "first", Name: "first", ManagerIDs: []commission.ManagerID{alice.ID, carol.ID},
		PaymentType: commission.PaymentFixed, PaymentValue: dec("50"), ApplyTo: commission.ApplyFirstPrepayment,
	}
	early := percentRule("early", "5", alice.ID, carol.ID)
	early.ApplyTo = commission.ApplyEarlyFG

	snap := commission.Snapshot{
		FGs: []commission.FG{
			fg("1", "Ivan Petrov A", "01.03.2023", alice),
			fg("2", "Ivan Petrov B", "01.02.2024", alice),
			fg("3", "Oleg Smirnov Main", "15.06.2024", carol),
		},
		Prepayments: []commission.Prepayment{
			pp("1", "05.03.2023", "1000"),
			pp("2", "10.02.2024", "700"),
			pp("1", "10.04.2024", "300"),
			pp("3", "20.06.2024", "2500"),
		},
		Rules:    []commission.Rule{percentRule("ten", "10", alice.ID, carol.ID), newAgents, first, early},
		Managers: []commission.Manager{alice, carol},
		Milestones: []commission.Milestone{{
			ID: "2k", Name: "2k", TargetAmount: dec("2000"),
			PaymentType: commission.PaymentFixed, PaymentValue: dec("100"), ManagerGroup: commission.GroupAll,
		}},
	}

	engine := engineAt(end)
	open := engine.Compute(snap, generic.Window{})
	wide := engine.Compute(snap, window(day(2000, time.January, 1), end))

	assertMoney(t, open.Totals.Commission.String(), wide.Totals.Commission)
	assertMoney(t, open.Totals.Payout.String(), wide.Totals.Payout)
	require.Len(t, wide.Managers, len(open.Managers))
	for i := range open.Managers {
		assertMoney(t, open.Managers[i].Commission.String(), wide.Managers[i].Commission, string(open.Managers[i].ManagerID))
		assertMoney(t, open.Managers[i].PrepaymentsInPeriod.String(), wide.Managers[i].PrepaymentsInPeriod)
	}
	assert.True(t, open.Totals.Commission.IsPositive())
}

func TestCompute_MilestonesAreNonExclusive(t *testing.T) {
	// GIVEN: Alice's lifetime volume of 3500 clears three of four milestones
	// WHEN: Computing the report
	// THEN: She receives all three bonuses: 100 + 200 + 1% of 3500

	milestone := func(id, target string, pt commission.PaymentType, value string) commission.Milestone {
		return commission.Milestone{
			ID: commission.MilestoneID(id), Name: id, TargetAmount: dec(target),
			PaymentType: pt, PaymentValue: dec(value), ManagerGroup: commission.GroupAll,
		}
	}
	snap := commission.Snapshot{
		FGs:         []commission.FG{fg("1", "Ivan Petrov Shop", "01.12.2023", alice)},
		Prepayments: []commission.Prepayment{pp("1", "10.01.2024", "3500")},
		Milestones: []commission.Milestone{
			milestone("1k", "1000", commission.PaymentFixed, "100"),
			milestone("2k", "2000", commission.PaymentFixed, "200"),
			milestone("3k", "3000", commission.PaymentPercentage, "1"),
			milestone("5k", "5000", commission.PaymentFixed, "1000"),
		},
		Managers: []commission.Manager{alice},
	}

	m := mustManager(t, commission.NewEngine().Compute(snap, q1()), alice.ID)

	assertMoney(t, "335", m.MilestoneBonus)
	assert.Len(t, m.MilestoneAwards, 3)
}

func TestCompute_UnmatchedPrepaymentIsDropped(t *testing.T) {
	// GIVEN: A prepayment referencing an FG that doesn't exist
	// WHEN: Computing the report
	// THEN: Totals are unchanged and the drop is counted

	snap := commission.Snapshot{
		FGs:         []commission.FG{fg("1", "Ivan Petrov Shop", "01.12.2023", alice)},
		Prepayments: []commission.Prepayment{pp("1", "10.01.2024", "500")},
		Rules:       []commission.Rule{percentRule("base", "10", alice.ID)},
		Managers:    []commission.Manager{alice},
	}
	clean := commission.NewEngine().Compute(snap, q1())

	snap.Prepayments = append(snap.Prepayments, pp("999", "10.01.2024", "100000"))
	dirty := commission.NewEngine().Compute(snap, q1())

	assert.Equal(t, 0, clean.DroppedPrepayments)
	assert.Equal(t, 1, dirty.DroppedPrepayments)
	assertMoney(t, clean.Totals.TotalPrepayments.String(), dirty.Totals.TotalPrepayments)
	assertMoney(t, clean.Totals.Payout.String(), dirty.Totals.Payout)
}

// =============================================================================
// AGGREGATION
// =============================================================================

func TestCompute_FirstPrepaymentTieKeepsInputOrder(t *testing.T) {
	// GIVEN: Two prepayments of one agent on the same date
	// WHEN: Computing the report
	// THEN: The first in input order is the agent's first prepayment

	rule := percentRule("first", "10", alice.ID)
	rule.ApplyTo = commission.ApplyFirstPrepayment

	snap := commission.Snapshot{
		FGs: []commission.FG{
			fg("1", "Ivan Petrov A", "01.12.2023", alice),
			fg("2", "Ivan Petrov B", "01.12.2023", alice),
		},
		Prepayments: []commission.Prepayment{
			pp("2", "15.01.2024", "300"),
			pp("1", "15.01.2024", "700"),
		},
		Rules:    []commission.Rule{rule},
		Managers: []commission.Manager{alice},
	}

	m := mustManager(t, commission.NewEngine().Compute(snap, q1()), alice.ID)

	require.Len(t, m.Agents, 1)
	agent := m.Agents[0]
	assertMoney(t, "300", agent.FirstPrepaymentAmount)
	assert.True(t, agent.FirstPrepaymentDate.Equal(day(2024, time.January, 15)))
	assertMoney(t, "30", agent.Commission)
}

func TestCompute_FirstPrepaymentIsChronological(t *testing.T) {
	snap := commission.Snapshot{
		FGs: []commission.FG{fg("1", "Ivan Petrov A", "01.12.2023", alice)},
		Prepayments: []commission.Prepayment{
			pp("1", "05.02.2024", "500"),
			pp("1", "not a date", "50"),
			pp("1", "10.01.2024", "200"),
		},
		Managers: []commission.Manager{alice},
	}

	m := mustManager(t, commission.NewEngine().Compute(snap, q1()), alice.ID)

	agent := m.Agents[0]
	assertMoney(t, "200", agent.FirstPrepaymentAmount)
	assertMoney(t, "750", agent.TotalPrepayments, "undated prepayments count toward lifetime volume")
	assertMoney(t, "700", agent.PrepaymentsInPeriod, "undated prepayments lie outside every window")

	row := agent.FGs[0]
	assert.Equal(t, 3, row.PrepaymentCount)
	assert.True(t, row.FirstPrepaymentDate.Equal(day(2024, time.January, 10)))
}

func TestCompute_FirstPrepaymentOutsideWindowPaysNothing(t *testing.T) {
	first := commission.Rule{
		ID: "first", Name: "first", ManagerIDs: []commission.ManagerID{alice.ID},
		PaymentType: commission.PaymentFixed, PaymentValue: dec("50"), ApplyTo: commission.ApplyFirstPrepayment,
	}
	periodOnly := percentRule("period", "10", alice.ID)
	periodOnly.Constraints.PeriodOnly = true

	snap := commission.Snapshot{
		FGs: []commission.FG{
			fg("1", "Old Client Shop", "01.11.2023", alice),
			fg("2", "New Client Shop", "01.01.2024", alice),
		},
		Prepayments: []commission.Prepayment{
			pp("1", "15.12.2023", "100"),
			pp("1", "15.01.2024", "900"),
			pp("2", "20.01.2024", "400"),
		},
		Rules:    []commission.Rule{first, periodOnly},
		Managers: []commission.Manager{alice},
	}

	m := mustManager(t, commission.NewEngine().Compute(snap, q1()), alice.ID)

	require.Len(t, m.Agents, 2)
	assertMoney(t, "0", m.Agents[0].Commission, "old client: first prepayment before the window")
	assertMoney(t, "90", m.Agents[1].Commission, "new client: 50 fixed + 10% of 400")
}

func TestCompute_EarliestFGBase(t *testing.T) {
	// GIVEN: An agent with three FGs; FG 2 started first, FG 3 has no parseable date
	// WHEN: An earlyFg rule is applied for Q1
	// THEN: Only FG 2's in-window prepayments are taxed

	rule := percentRule("early", "10", alice.ID)
	rule.ApplyTo = commission.ApplyEarlyFG

	snap := commission.Snapshot{
		FGs: []commission.FG{
			fg("1", "Ivan Petrov A", "01.02.2024", alice),
			fg("2", "Ivan Petrov B", "10.01.2024", alice),
			fg("3", "Ivan Petrov C", "soon", alice),
		},
		Prepayments: []commission.Prepayment{
			pp("1", "05.02.2024", "1000"),
			pp("2", "12.01.2024", "400"),
			pp("2", "01.12.2023", "600"),
			pp("3", "01.03.2024", "9000"),
		},
		Rules:    []commission.Rule{rule},
		Managers: []commission.Manager{alice},
	}

	m := mustManager(t, commission.NewEngine().Compute(snap, q1()), alice.ID)

	agent := m.Agents[0]
	assert.True(t, agent.EarliestFGDate.Equal(day(2024, time.January, 10)))
	assertMoney(t, "400", agent.EarliestFGPrepayments)
	assertMoney(t, "40", agent.Commission)
	assert.Nil(t, agent.FGs[2].StartDate)
}

// =============================================================================
// RULE APPLICATION
// =============================================================================

func TestCompute_FixedRulePaysOncePerAgent(t *testing.T) {
	// GIVEN: A fixed 100 rule, one agent with several FGs and prepayments,
	// a second agent, and a third agent with no prepayments
	// WHEN: Computing the report
	// THEN: Each agent with volume earns 100 once; the idle agent earns nothing

	fixed := commission.Rule{
		ID: "fixed", Name: "fixed", ManagerIDs: []commission.ManagerID{alice.ID},
		PaymentType: commission.PaymentFixed, PaymentValue: dec("100"), ApplyTo: commission.ApplyAll,
	}
	snap := commission.Snapshot{
		FGs: []commission.FG{
			fg("1", "Ivan Petrov A", "01.12.2023", alice),
			fg("2", "Ivan Petrov B", "01.12.2023", alice),
			fg("3", "Maria Sokolova", "01.12.2023", alice),
			fg("4", "Idle Agent", "01.12.2023", alice),
		},
		Prepayments: []commission.Prepayment{
			pp("1", "10.01.2024", "100"),
			pp("1", "11.01.2024", "100"),
			pp("2", "12.01.2024", "100"),
			pp("3", "13.01.2024", "100"),
		},
		Rules:    []commission.Rule{fixed},
		Managers: []commission.Manager{alice},
	}

	m := mustManager(t, commission.NewEngine().Compute(snap, q1()), alice.ID)

	assertMoney(t, "200", m.Commission)
	require.Len(t, m.Agents, 3)
	assertMoney(t, "0", m.Agents[2].Commission)
	assert.Equal(t, 4, m.FGCount())
}

func TestCompute_MaxPerPaymentCapsEveryType(t *testing.T) {
	fixed := commission.Rule{
		ID: "fixed", Name: "fixed", ManagerIDs: []commission.ManagerID{alice.ID},
		PaymentType: commission.PaymentFixed, PaymentValue: dec("100"), ApplyTo: commission.ApplyAll,
		Constraints: commission.Constraints{MaxPerPayment: decPtr("40")},
	}
	plain := percentRule("plain", "50", alice.ID)
	plain.Constraints.MaxPerPayment = decPtr("25")

	snap := commission.Snapshot{
		FGs:         []commission.FG{fg("1", "Ivan Petrov Shop", "01.12.2023", alice)},
		Prepayments: []commission.Prepayment{pp("1", "10.01.2024", "200")},
		Rules:       []commission.Rule{fixed, plain},
		Managers:    []commission.Manager{alice},
	}

	assertMoney(t, "65", mustManager(t, commission.NewEngine().Compute(snap, q1()), alice.ID).Commission)
}

func TestCompute_ConstraintLogic(t *testing.T) {
	// GIVEN: A rule whose new-agents gate fails and whose threshold gate passes
	// WHEN: Gates are combined with OR, then with AND
	// THEN: OR pays, AND does not

	build := func(logic commission.Logic) commission.Snapshot {
		r := percentRule("gated", "10", alice.ID)
		r.Constraints = commission.Constraints{
			NewAgentsOnly:     true,
			NewAgentsMonths:   3,
			MinGroupThreshold: decPtr("500"),
			Logic:             logic,
		}
		return commission.Snapshot{
			FGs:         []commission.FG{fg("1", "Ivan Petrov Shop", "01.01.2020", alice)},
			Prepayments: []commission.Prepayment{pp("1", "10.01.2024", "1000")},
			Rules:       []commission.Rule{r},
			Managers:    []commission.Manager{alice},
		}
	}

	assertMoney(t, "100", mustManager(t, commission.NewEngine().Compute(build(commission.LogicOr), q1()), alice.ID).Commission)
	assertMoney(t, "0", mustManager(t, commission.NewEngine().Compute(build(commission.LogicAnd), q1()), alice.ID).Commission)
	assertMoney(t, "0", mustManager(t, commission.NewEngine().Compute(build(""), q1()), alice.ID).Commission, "empty logic means and")
}

func TestCompute_RuleValidityRange(t *testing.T) {
	expired := percentRule("expired", "10", alice.ID)
	expired.EndDate = day(2023, time.December, 31).Ptr()

	snap := commission.Snapshot{
		FGs:         []commission.FG{fg("1", "Ivan Petrov Shop", "01.12.2023", alice)},
		Prepayments: []commission.Prepayment{pp("1", "10.01.2024", "1000")},
		Rules:       []commission.Rule{expired},
		Managers:    []commission.Manager{alice},
	}

	assertMoney(t, "0", mustManager(t, commission.NewEngine().Compute(snap, q1()), alice.ID).Commission,
		"inactive in Q1 2024")
	assertMoney(t, "100", mustManager(t, commission.NewEngine().Compute(snap, generic.Window{}), alice.ID).Commission,
		"every rule is active without a window")
}

func TestCompute_PersonalRules(t *testing.T) {
	withRule := alice
	withRule.PersonalRules = []commission.Rule{{
		Name: "loyalty", PaymentType: commission.PaymentPercentage, PaymentValue: dec("2"), ApplyTo: commission.ApplyAll,
	}}

	snap := commission.Snapshot{
		FGs:         []commission.FG{fg("1", "Ivan Petrov Shop", "01.12.2023", alice)},
		Prepayments: []commission.Prepayment{pp("1", "10.01.2024", "1000")},
		Rules:       []commission.Rule{percentRule("base", "10", alice.ID)},
		Managers:    []commission.Manager{withRule},
	}

	m := mustManager(t, commission.NewEngine().Compute(snap, q1()), alice.ID)

	assertMoney(t, "120", m.Commission)
	rcs := m.Agents[0].RuleCommissions
	require.Len(t, rcs, 2)
	assert.False(t, rcs[0].IsPersonal)
	assert.True(t, rcs[1].IsPersonal)
	assert.Equal(t, "personal_loyalty", rcs[1].Key)
}

// =============================================================================
// MANAGER BUCKETS
// =============================================================================

func TestCompute_ManagersInFirstAppearanceOrder(t *testing.T) {
	snap := commission.Snapshot{
		FGs: []commission.FG{
			fg("1", "Maria Sokolova", "01.12.2023", bob),
			fg("2", "Ivan Petrov", "01.12.2023", alice),
			fg("3", "Oleg Smirnov", "01.12.2023", bob),
		},
		Managers: []commission.Manager{alice, bob},
	}

	report := commission.NewEngine().Compute(snap, q1())

	require.Len(t, report.Managers, 2)
	assert.Equal(t, bob.ID, report.Managers[0].ManagerID)
	assert.Equal(t, alice.ID, report.Managers[1].ManagerID)
	assert.Equal(t, 2, report.Managers[0].AgentsCount)
	assert.True(t, report.Managers[0].Commission.IsZero(), "zero-volume agents are still listed")
}

func TestCompute_UnknownManagerTypeIsInferred(t *testing.T) {
	ghost := commission.ManagerRef{ID: "ghost", Name: "Ghost"}
	snap := commission.Snapshot{
		FGs: []commission.FG{
			{Number: "1", Name: "Ivan Petrov", Source: commission.SourceRecruiter, Manager: &ghost},
		},
		Prepayments: []commission.Prepayment{pp("1", "10.01.2024", "5000")},
		Milestones: []commission.Milestone{{
			ID: "rec", Name: "rec", TargetAmount: dec("1000"), PaymentType: commission.PaymentFixed,
			PaymentValue: dec("10"), ManagerGroup: commission.GroupRecruiters,
		}},
	}

	m := mustManager(t, commission.NewEngine().Compute(snap, q1()), "ghost")

	assert.Equal(t, commission.ManagerRecruiter, m.ManagerType)
	assert.Equal(t, "Ghost", m.ManagerName)
	assertMoney(t, "10", m.MilestoneBonus)
}

func TestCompute_ManagerNameFromRecord(t *testing.T) {
	// GIVEN: An FG whose embedded ref still carries Alice's old name
	stale := fg("1", "Ivan Petrov", "01.12.2023", alice)
	stale.Manager.Name = "Alice (old)"
	snap := commission.Snapshot{
		FGs:      []commission.FG{stale},
		Managers: []commission.Manager{alice},
	}

	// WHEN: Computing the report
	m := mustManager(t, commission.NewEngine().Compute(snap, q1()), alice.ID)

	// THEN: The current record name wins
	assert.Equal(t, "Alice", m.ManagerName)
}

func TestCompute_FuzzyGroupingMergesSpellingVariants(t *testing.T) {
	// GIVEN: Two spellings of one agent under Alice
	snap := commission.Snapshot{
		FGs: []commission.FG{
			fg("1", "Ivan Petrov Shop", "01.12.2023", alice),
			fg("2", "Ivan Petrova Bar", "01.12.2023", alice),
		},
		Managers: []commission.Manager{alice},
	}
	engine := commission.NewEngine()
	engine.Group = commission.FuzzyGrouping(commission.DefaultFuzzyDistance)

	// WHEN: Computing with fuzzy grouping
	m := mustManager(t, engine.Compute(snap, q1()), alice.ID)

	// THEN: Both FGs belong to one agent
	assert.Equal(t, 1, m.AgentsCount)
	assert.Equal(t, 2, m.FGCount())

	exact := mustManager(t, commission.NewEngine().Compute(snap, q1()), alice.ID)
	assert.Equal(t, 2, exact.AgentsCount)
}

func TestCompute_UnassignedAgents(t *testing.T) {
	// GIVEN: An organic FG without a manager next to Alice's FG
	// WHEN: Computing the report
	// THEN: The organic agent is reported separately and pays nothing

	snap := commission.Snapshot{
		FGs: []commission.FG{
			fg("1", "Ivan Petrov Shop", "01.12.2023", alice),
			{Number: "2", Name: "Anna Volkova", Source: commission.SourceOrganic},
		},
		Prepayments: []commission.Prepayment{
			pp("1", "10.01.2024", "500"),
			pp("2", "10.01.2024", "800"),
		},
		Rules:    []commission.Rule{percentRule("base", "10", alice.ID)},
		Managers: []commission.Manager{alice},
	}

	report := commission.NewEngine().Compute(snap, q1())

	require.Len(t, report.UnassignedAgents, 1)
	assert.Equal(t, "Anna Volkova", report.UnassignedAgents[0].Name)
	assertMoney(t, "800", report.UnassignedAgents[0].TotalPrepayments)
	assertMoney(t, "500", report.Totals.TotalPrepayments)
	assertMoney(t, "50", report.Totals.Payout)
	assert.Len(t, report.Managers, 1)
}

func TestCompute_DuplicateFGNumberFirstWins(t *testing.T) {
	snap := commission.Snapshot{
		FGs: []commission.FG{
			fg("7", "Ivan Petrov", "01.12.2023", alice),
			fg("7.0", "Maria Sokolova", "01.12.2023", bob),
		},
		Prepayments: []commission.Prepayment{pp(" 7 ", "10.01.2024", "500")},
		Managers:    []commission.Manager{alice, bob},
	}

	report := commission.NewEngine().Compute(snap, q1())

	assertMoney(t, "500", mustManager(t, report, alice.ID).TotalPrepayments)
	assertMoney(t, "0", mustManager(t, report, bob.ID).TotalPrepayments)
	assert.Equal(t, 0, report.DroppedPrepayments)
}

// =============================================================================
// MILESTONES
// =============================================================================

func TestCompute_AgentScopedMilestone(t *testing.T) {
	snap := commission.Snapshot{
		FGs: []commission.FG{
			fg("1", "Big Agent", "01.12.2023", alice),
			fg("2", "Small Agent", "01.12.2023", alice),
		},
		Prepayments: []commission.Prepayment{
			pp("1", "10.01.2024", "6000"),
			pp("2", "10.01.2024", "2000"),
		},
		Milestones: []commission.Milestone{{
			ID: "agent5k", Name: "agent 5k", TargetAmount: dec("5000"), PaymentType: commission.PaymentFixed,
			PaymentValue: dec("100"), ManagerGroup: commission.GroupAll, Scope: commission.ScopeAgent,
		}},
		Managers: []commission.Manager{alice},
	}

	m := mustManager(t, commission.NewEngine().Compute(snap, q1()), alice.ID)

	assertMoney(t, "100", m.MilestoneBonus)
	assertMoney(t, "100", m.Agents[0].MilestoneBonus)
	assertMoney(t, "100", m.Agents[0].Total())
	assertMoney(t, "0", m.Agents[1].MilestoneBonus)
	require.Len(t, m.MilestoneAwards, 1)
	assert.Equal(t, "Big Agent", m.MilestoneAwards[0].Agent)
}

func TestCompute_MilestoneGroups(t *testing.T) {
	milestone := func(group commission.ManagerGroup, assigned ...commission.ManagerID) commission.Milestone {
		return commission.Milestone{
			ID: commission.MilestoneID(group), Name: string(group), TargetAmount: dec("100"),
			PaymentType: commission.PaymentFixed, PaymentValue: dec("1"),
			ManagerGroup: group, AssignedManagers: assigned,
		}
	}
	snap := commission.Snapshot{
		FGs: []commission.FG{
			fg("1", "Ivan Petrov", "01.12.2023", alice),
			fg("2", "Maria Sokolova", "01.12.2023", bob),
			fg("3", "Oleg Smirnov", "01.12.2023", carol),
		},
		Prepayments: []commission.Prepayment{
			pp("1", "10.01.2024", "1000"),
			pp("2", "10.01.2024", "1000"),
			pp("3", "10.01.2024", "1000"),
		},
		Milestones: []commission.Milestone{
			milestone(commission.GroupAll),
			milestone(commission.GroupRecruiters),
			milestone(commission.GroupAccounts),
			milestone(commission.GroupCustom, bob.ID),
		},
		Managers: []commission.Manager{alice, bob, carol},
	}

	report := commission.NewEngine().Compute(snap, q1())

	assertMoney(t, "2", mustManager(t, report, alice.ID).MilestoneBonus, "all + recruiters")
	assertMoney(t, "3", mustManager(t, report, bob.ID).MilestoneBonus, "all + recruiters + custom")
	assertMoney(t, "2", mustManager(t, report, carol.ID).MilestoneBonus, "all + accounts")
}

// =============================================================================
// REPORT
// =============================================================================

func TestReport_HideZeroCommission(t *testing.T) {
	snap := commission.Snapshot{
		FGs: []commission.FG{
			fg("1", "Paying Agent", "01.12.2023", alice),
			fg("2", "Idle Agent", "01.12.2023", alice),
		},
		Prepayments: []commission.Prepayment{pp("1", "10.01.2024", "500")},
		Rules:       []commission.Rule{percentRule("base", "10", alice.ID)},
		Managers:    []commission.Manager{alice},
	}
	report := commission.NewEngine().Compute(snap, q1())

	hidden := report.HideZeroCommission()

	m := mustManager(t, hidden, alice.ID)
	require.Len(t, m.Agents, 1)
	assert.Equal(t, "Paying Agent", m.Agents[0].Name)
	assert.Equal(t, 2, m.AgentsCount, "bucket counts are unchanged")
	assertMoney(t, report.Totals.Payout.String(), hidden.Totals.Payout)
	assert.Len(t, mustManager(t, report, alice.ID).Agents, 2, "original report is untouched")
}

func TestCompute_ReportDate(t *testing.T) {
	now := day(2026, time.October, 14)
	engine := engineAt(now)

	assert.True(t, engine.Compute(commission.Snapshot{}, generic.Window{}).ReportDate.Equal(now))
	assert.True(t, engine.Compute(commission.Snapshot{}, q1()).ReportDate.Equal(day(2024, time.March, 31)))
}

func TestCompute_EmptySnapshot(t *testing.T) {
	report := commission.NewEngine().Compute(commission.Snapshot{}, q1())

	assert.Empty(t, report.Managers)
	assert.Empty(t, report.UnassignedAgents)
	assert.True(t, report.Totals.Payout.IsZero())
}

func TestFGVolumes(t *testing.T) {
	fgs := []commission.FG{
		fg("1", "Ivan Petrov", "01.12.2023", alice),
		fg("2", "Maria Sokolova", "01.12.2023", alice),
	}
	pps := []commission.Prepayment{
		pp("1", "10.01.2024", "100"),
		pp("1.0", "garbage", "50,5"),
		pp("3", "10.01.2024", "999"),
	}

	vols := commission.FGVolumes(fgs, pps)

	require.Len(t, vols, 2)
	assertMoney(t, "150.5", vols[0].TotalPrepayments)
	assert.Equal(t, 2, vols[0].PrepaymentCount)
	assert.True(t, vols[1].TotalPrepayments.IsZero())
}
