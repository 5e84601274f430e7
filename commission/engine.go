package commission

import (
	"github.com/shopspring/decimal"
	"github.com/warp/commission-engine/generic"
)

// =============================================================================
// REPORT - Output of one computation pass
// =============================================================================

// FGBreakdown is the drill-down row of one FG inside an agent.
type FGBreakdown struct {
	Number              string
	Name                string
	Ref                 string
	Source              Source
	ManagerName         string
	StartDate           *generic.TimePoint
	FirstPrepaymentDate *generic.TimePoint
	TotalPrepayments    decimal.Decimal
	PrepaymentsInPeriod decimal.Decimal
	PrepaymentCount     int
}

// RuleCommission is what one rule paid for one agent.
type RuleCommission struct {
	RuleID     RuleID
	Key        string
	Name       string
	IsPersonal bool
	Base       decimal.Decimal
	Amount     decimal.Decimal
}

// AgentPayout is the per-agent slice of a manager bucket.
type AgentPayout struct {
	Name string
	AgentVolume

	Commission      decimal.Decimal
	RuleCommissions []RuleCommission
	MilestoneBonus  decimal.Decimal
	MilestoneAwards []MilestoneAward

	FGs []FGBreakdown
}

// Total is commission plus agent-scoped milestone bonus.
func (a AgentPayout) Total() decimal.Decimal {
	return a.Commission.Add(a.MilestoneBonus)
}

// ManagerPayout aggregates everything one manager earns in a pass.
type ManagerPayout struct {
	ManagerID   ManagerID
	ManagerName string
	ManagerType ManagerType

	TotalPrepayments    decimal.Decimal
	PrepaymentsInPeriod decimal.Decimal
	Commission          decimal.Decimal
	MilestoneBonus      decimal.Decimal
	MilestoneAwards     []MilestoneAward

	AgentsCount int
	Agents      []AgentPayout
}

// Total is the manager's payout: rule commission plus milestone bonuses.
func (m ManagerPayout) Total() decimal.Decimal {
	return m.Commission.Add(m.MilestoneBonus)
}

// FGCount returns the number of FGs across the manager's agents.
func (m ManagerPayout) FGCount() int {
	n := 0
	for _, a := range m.Agents {
		n += len(a.FGs)
	}
	return n
}

// Totals sums the report across every manager.
type Totals struct {
	TotalPrepayments    decimal.Decimal
	PrepaymentsInPeriod decimal.Decimal
	Commission          decimal.Decimal
	MilestoneBonus      decimal.Decimal
	Payout              decimal.Decimal
}

// Report is the result of Engine.Compute.
type Report struct {
	Window     generic.Window
	ReportDate generic.TimePoint

	// Managers in first-appearance order of their agents.
	Managers []ManagerPayout

	// UnassignedAgents have no manager and contribute to no payout.
	UnassignedAgents []AgentPayout

	// DroppedPrepayments counts prepayments whose FG number matched no FG.
	DroppedPrepayments int

	Totals Totals
}

// Manager looks up a manager bucket by ID.
func (r Report) Manager(id ManagerID) (ManagerPayout, bool) {
	for _, m := range r.Managers {
		if m.ManagerID == id {
			return m, true
		}
	}
	return ManagerPayout{}, false
}

// HideZeroCommission returns a copy of the report whose manager buckets list
// only agents that earned commission. Bucket totals and counts are unchanged.
func (r Report) HideZeroCommission() Report {
	out := r
	out.Managers = make([]ManagerPayout, len(r.Managers))
	for i, m := range r.Managers {
		kept := make([]AgentPayout, 0, len(m.Agents))
		for _, a := range m.Agents {
			if !a.Commission.IsZero() {
				kept = append(kept, a)
			}
		}
		m.Agents = kept
		out.Managers[i] = m
	}
	return out
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine computes commission reports. It is pure: the same snapshot, window
// and clock always produce the same report.
type Engine struct {
	// Now supplies the report date when the window has no end bound.
	Now func() generic.TimePoint

	// Group partitions FGs into agents. Defaults to GroupByKey.
	Group func([]FG) []AgentGroup
}

// NewEngine creates an engine with the wall clock and exact-key grouping.
func NewEngine() *Engine {
	return &Engine{Now: generic.Today, Group: GroupByKey}
}

type fgRef struct {
	agent int
	fg    int
}

// Compute runs the full pass over a snapshot.
func (e *Engine) Compute(s Snapshot, w generic.Window) Report {
	now := generic.Today
	if e.Now != nil {
		now = e.Now
	}
	group := GroupByKey
	if e.Group != nil {
		group = e.Group
	}

	report := Report{Window: w, ReportDate: w.ReportDate(now())}
	ec := EvalContext{Window: w, ReportDate: report.ReportDate}

	groups := group(s.FGs)
	agents, dropped := aggregate(groups, s.Prepayments, w)
	report.DroppedPrepayments = dropped

	buckets, unassigned := bucketize(groups, agents, s.Managers)
	report.UnassignedAgents = unassigned

	idx := NewRuleIndex(s.Rules, s.Managers)
	for i := range buckets {
		b := &buckets[i]
		rules := activeRules(idx.RulesFor(b.ManagerID), w)
		for j := range b.Agents {
			applyRules(&b.Agents[j], rules, ec)
			b.Commission = b.Commission.Add(b.Agents[j].Commission)
		}
		evaluateMilestones(b, s.Milestones)
	}
	report.Managers = buckets

	for _, b := range buckets {
		t := &report.Totals
		t.TotalPrepayments = t.TotalPrepayments.Add(b.TotalPrepayments)
		t.PrepaymentsInPeriod = t.PrepaymentsInPeriod.Add(b.PrepaymentsInPeriod)
		t.Commission = t.Commission.Add(b.Commission)
		t.MilestoneBonus = t.MilestoneBonus.Add(b.MilestoneBonus)
	}
	report.Totals.Payout = report.Totals.Commission.Add(report.Totals.MilestoneBonus)
	return report
}

// ===== STEP 1: per-agent aggregation =====

func aggregate(groups []AgentGroup, prepayments []Prepayment, w generic.Window) ([]AgentPayout, int) {
	agents := make([]AgentPayout, len(groups))
	index := make(map[string]fgRef)

	for i, g := range groups {
		agents[i] = AgentPayout{Name: g.Key, FGs: make([]FGBreakdown, len(g.FGs))}
		agents[i].EarliestFGDate = g.EarliestFGDate
		for j, fg := range g.FGs {
			row := FGBreakdown{
				Number:    fg.Number,
				Name:      fg.Name,
				Ref:       fg.Ref,
				Source:    fg.Source,
				StartDate: fg.Start().Ptr(),
			}
			if fg.Manager != nil {
				row.ManagerName = fg.Manager.Name
			}
			agents[i].FGs[j] = row

			// Duplicate FG numbers: the first FG in import order wins.
			key := generic.JoinKey(fg.Number)
			if _, exists := index[key]; key != "" && !exists {
				index[key] = fgRef{agent: i, fg: j}
			}
		}
	}

	dropped := 0
	for _, p := range prepayments {
		ref, ok := index[generic.JoinKey(p.FGNumber)]
		if !ok {
			dropped++
			continue
		}
		amount := p.Value()
		date := p.Date()
		inWindow := w.Contains(date)

		a := &agents[ref.agent]
		row := &a.FGs[ref.fg]

		a.TotalPrepayments = a.TotalPrepayments.Add(amount)
		row.TotalPrepayments = row.TotalPrepayments.Add(amount)
		row.PrepaymentCount++
		if inWindow {
			a.PrepaymentsInPeriod = a.PrepaymentsInPeriod.Add(amount)
			row.PrepaymentsInPeriod = row.PrepaymentsInPeriod.Add(amount)
		}

		if date.IsZero() {
			continue
		}
		if row.FirstPrepaymentDate == nil || date.Before(*row.FirstPrepaymentDate) {
			row.FirstPrepaymentDate = date.Ptr()
		}
		// Strictly earlier only: ties keep the first prepayment in input order.
		if a.FirstPrepaymentDate == nil || date.Before(*a.FirstPrepaymentDate) {
			a.FirstPrepaymentDate = date.Ptr()
			a.FirstPrepaymentAmount = amount
		}
	}

	for i, g := range groups {
		if k := g.EarliestFGIndex(); k >= 0 {
			agents[i].EarliestFGPrepayments = agents[i].FGs[k].PrepaymentsInPeriod
		}
	}
	return agents, dropped
}

// ===== STEP 2: manager buckets =====

func bucketize(groups []AgentGroup, agents []AgentPayout, managers []Manager) ([]ManagerPayout, []AgentPayout) {
	known := make(map[ManagerID]Manager, len(managers))
	for _, m := range managers {
		known[m.ID] = m
	}

	var buckets []ManagerPayout
	var unassigned []AgentPayout
	pos := make(map[ManagerID]int)

	for i, g := range groups {
		agent := agents[i]
		if g.Manager == nil {
			unassigned = append(unassigned, agent)
			continue
		}

		k, ok := pos[g.Manager.ID]
		if !ok {
			k = len(buckets)
			pos[g.Manager.ID] = k
			buckets = append(buckets, newBucket(g, known))
		}
		b := &buckets[k]
		b.TotalPrepayments = b.TotalPrepayments.Add(agent.TotalPrepayments)
		b.PrepaymentsInPeriod = b.PrepaymentsInPeriod.Add(agent.PrepaymentsInPeriod)
		b.AgentsCount++
		b.Agents = append(b.Agents, agent)
	}
	return buckets, unassigned
}

func newBucket(g AgentGroup, known map[ManagerID]Manager) ManagerPayout {
	b := ManagerPayout{ManagerID: g.Manager.ID, ManagerName: g.Manager.Name}
	if m, ok := known[g.Manager.ID]; ok {
		b.ManagerType = m.Type
		if m.Name != "" {
			b.ManagerName = m.Name
		}
		return b
	}
	// Unknown manager record: infer the type from the first FG's source.
	b.ManagerType = ManagerAccount
	if len(g.FGs) > 0 && g.FGs[0].Source == SourceRecruiter {
		b.ManagerType = ManagerRecruiter
	}
	return b
}

// ===== STEP 3: rule application =====

func activeRules(rules []Rule, w generic.Window) []Rule {
	var active []Rule
	for _, r := range rules {
		if r.ActiveIn(w) {
			active = append(active, r)
		}
	}
	return active
}

func applyRules(a *AgentPayout, rules []Rule, ec EvalContext) {
	for _, r := range rules {
		amount := r.Payout(a.AgentVolume, ec)
		if amount.IsZero() {
			continue
		}
		a.Commission = a.Commission.Add(amount)
		a.RuleCommissions = append(a.RuleCommissions, RuleCommission{
			RuleID:     r.ID,
			Key:        r.Key(),
			Name:       r.Name,
			IsPersonal: r.IsPersonal,
			Base:       r.Base(a.AgentVolume, ec),
			Amount:     amount,
		})
	}
}

// =============================================================================
// FG STATS
// =============================================================================

// FGVolume is the lifetime prepayment volume of one FG.
type FGVolume struct {
	FG               FG
	TotalPrepayments decimal.Decimal
	PrepaymentCount  int
}

// FGVolumes pairs every FG with its lifetime prepayment volume, in import
// order. Prepayments join on the first FG with a loosely-equal number.
func FGVolumes(fgs []FG, prepayments []Prepayment) []FGVolume {
	out := make([]FGVolume, len(fgs))
	index := make(map[string]int, len(fgs))
	for i, fg := range fgs {
		out[i].FG = fg
		key := generic.JoinKey(fg.Number)
		if _, exists := index[key]; key != "" && !exists {
			index[key] = i
		}
	}
	for _, p := range prepayments {
		if i, ok := index[generic.JoinKey(p.FGNumber)]; ok {
			out[i].TotalPrepayments = out[i].TotalPrepayments.Add(p.Value())
			out[i].PrepaymentCount++
		}
	}
	return out
}
