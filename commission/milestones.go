package commission

import (
	"github.com/shopspring/decimal"
	"github.com/warp/commission-engine/generic"
)

// =============================================================================
// MILESTONE EVALUATION
// =============================================================================

// MilestoneAward records one milestone cleared during a pass.
type MilestoneAward struct {
	MilestoneID MilestoneID
	Name        string
	Agent       string // set for agent-scoped milestones
	Cumulative  decimal.Decimal
	Bonus       decimal.Decimal
}

// Reached reports whether cumulative volume meets or exceeds the target.
func (m Milestone) Reached(cumulative decimal.Decimal) bool {
	return cumulative.GreaterThanOrEqual(m.TargetAmount)
}

// Bonus computes the milestone payout for a cumulative volume, zero when
// the target is not reached.
func (m Milestone) Bonus(cumulative decimal.Decimal) decimal.Decimal {
	if !m.Reached(cumulative) {
		return decimal.Zero
	}
	switch m.PaymentType {
	case PaymentFixed:
		return m.PaymentValue
	case PaymentPercentage, PaymentPercentageWithCap:
		return generic.CapAt(generic.Percent(cumulative, m.PaymentValue), m.MaxPayment)
	default:
		return decimal.Zero
	}
}

// AgentScoped reports whether the milestone is evaluated per agent.
func (m Milestone) AgentScoped() bool {
	return m.Scope == ScopeAgent
}

// evaluateMilestones awards every eligible milestone the bucket clears.
// Milestones are evaluated from scratch on every pass and are additive.
func evaluateMilestones(bucket *ManagerPayout, milestones []Milestone) {
	for _, m := range milestones {
		if !m.Eligible(bucket.ManagerID, bucket.ManagerType) {
			continue
		}

		if !m.AgentScoped() {
			if m.Reached(bucket.TotalPrepayments) {
				bonus := m.Bonus(bucket.TotalPrepayments)
				bucket.MilestoneBonus = bucket.MilestoneBonus.Add(bonus)
				bucket.MilestoneAwards = append(bucket.MilestoneAwards, MilestoneAward{
					MilestoneID: m.ID,
					Name:        m.Name,
					Cumulative:  bucket.TotalPrepayments,
					Bonus:       bonus,
				})
			}
			continue
		}

		for i := range bucket.Agents {
			agent := &bucket.Agents[i]
			if !m.Reached(agent.TotalPrepayments) {
				continue
			}
			bonus := m.Bonus(agent.TotalPrepayments)
			award := MilestoneAward{
				MilestoneID: m.ID,
				Name:        m.Name,
				Agent:       agent.Name,
				Cumulative:  agent.TotalPrepayments,
				Bonus:       bonus,
			}
			agent.MilestoneBonus = agent.MilestoneBonus.Add(bonus)
			agent.MilestoneAwards = append(agent.MilestoneAwards, award)
			bucket.MilestoneBonus = bucket.MilestoneBonus.Add(bonus)
			bucket.MilestoneAwards = append(bucket.MilestoneAwards, award)
		}
	}
}
