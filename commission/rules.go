package commission

import (
	"github.com/shopspring/decimal"
	"github.com/warp/commission-engine/generic"
)

// =============================================================================
// AGENT VOLUME - What a rule sees about one agent
// =============================================================================

// AgentVolume is the per-agent aggregate rules are evaluated against.
type AgentVolume struct {
	// Lifetime volume across every FG of the agent, window-independent.
	TotalPrepayments decimal.Decimal

	// Volume of prepayments whose period date lies in the reporting window.
	PrepaymentsInPeriod decimal.Decimal

	// Chronologically first dated prepayment across all FGs of the agent.
	FirstPrepaymentDate   *generic.TimePoint
	FirstPrepaymentAmount decimal.Decimal

	// Minimum FG start date of the agent.
	EarliestFGDate *generic.TimePoint

	// Prepayments of the earliest FG; restricted to the window when active.
	EarliestFGPrepayments decimal.Decimal
}

// EvalContext carries the pass-wide inputs of rule evaluation.
type EvalContext struct {
	Window     generic.Window
	ReportDate generic.TimePoint
}

// =============================================================================
// RULE EVALUATION
// =============================================================================

// ActiveIn reports whether the rule's validity range intersects the window.
func (r Rule) ActiveIn(w generic.Window) bool {
	return w.Overlaps(r.StartDate, r.EndDate)
}

// Payout computes what the rule pays for one agent. Zero means the rule did
// not qualify: a gate failed, or the taxable base was not positive.
func (r Rule) Payout(v AgentVolume, ec EvalContext) decimal.Decimal {
	if !r.passesGates(v, ec) {
		return decimal.Zero
	}

	base := r.Base(v, ec)
	if !base.IsPositive() {
		return decimal.Zero
	}

	var payout decimal.Decimal
	switch r.PaymentType {
	case PaymentFixed:
		payout = r.PaymentValue
	case PaymentPercentage, PaymentPercentageWithCap:
		payout = generic.Percent(base, r.PaymentValue)
	default:
		return decimal.Zero
	}

	// The cap applies to the agent-rule pairing whatever the payment type.
	return generic.CapAt(payout, r.Constraints.MaxPerPayment)
}

// Base selects the taxable amount for the rule's applicability mode.
func (r Rule) Base(v AgentVolume, ec EvalContext) decimal.Decimal {
	switch r.ApplyTo {
	case ApplyFirstPrepayment:
		if v.FirstPrepaymentDate != nil && ec.Window.Contains(*v.FirstPrepaymentDate) {
			return v.FirstPrepaymentAmount
		}
		return decimal.Zero
	case ApplyEarlyFG:
		return v.EarliestFGPrepayments
	default: // ApplyAll, ApplyGroupWithThreshold
		if ec.Window.Active() {
			return v.PrepaymentsInPeriod
		}
		return v.TotalPrepayments
	}
}

// passesGates evaluates the configured constraint gates (new agents,
// minimum threshold, period only) and combines them with the rule's logic.
// A rule without gates always passes.
func (r Rule) passesGates(v AgentVolume, ec EvalContext) bool {
	c := r.Constraints
	var results []bool

	if c.NewAgentsOnly && c.NewAgentsMonths > 0 {
		cutoff := ec.ReportDate.AddMonths(-c.NewAgentsMonths)
		results = append(results, v.EarliestFGDate != nil && v.EarliestFGDate.AfterOrEqual(cutoff))
	}
	if c.MinGroupThreshold != nil {
		results = append(results, v.TotalPrepayments.GreaterThanOrEqual(*c.MinGroupThreshold))
	}
	if c.PeriodOnly {
		results = append(results, v.FirstPrepaymentDate != nil && ec.Window.Contains(*v.FirstPrepaymentDate))
	}

	if len(results) == 0 {
		return true
	}
	if c.Logic == LogicOr {
		for _, ok := range results {
			if ok {
				return true
			}
		}
		return false
	}
	for _, ok := range results {
		if !ok {
			return false
		}
	}
	return true
}

// =============================================================================
// RULE INDEX - manager ID => applicable rules
// =============================================================================

// RuleIndex maps each manager to its applicable rules: every group rule
// listing the manager, followed by the manager's personal rules.
type RuleIndex struct {
	byManager map[ManagerID][]Rule
}

// NewRuleIndex builds the lookup. A rule listing several managers is
// duplicated under each of them.
func NewRuleIndex(rules []Rule, managers []Manager) *RuleIndex {
	idx := &RuleIndex{byManager: make(map[ManagerID][]Rule)}
	for _, r := range rules {
		seen := make(map[ManagerID]bool, len(r.ManagerIDs))
		for _, id := range r.ManagerIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			idx.byManager[id] = append(idx.byManager[id], r)
		}
	}
	for _, m := range managers {
		for _, pr := range m.PersonalRules {
			pr.IsPersonal = true
			pr.ManagerIDs = []ManagerID{m.ID}
			if pr.ManagerType == "" {
				pr.ManagerType = m.Type
			}
			idx.byManager[m.ID] = append(idx.byManager[m.ID], pr)
		}
	}
	return idx
}

// RulesFor returns the rules applicable to a manager, in configuration order.
func (idx *RuleIndex) RulesFor(id ManagerID) []Rule {
	return idx.byManager[id]
}
