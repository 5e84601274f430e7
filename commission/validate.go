package commission

import (
	"github.com/warp/commission-engine/generic"
)

// =============================================================================
// CONFIGURATION INVARIANTS
// =============================================================================
//
// Validation runs when a rule, milestone, manager or assignment is created or
// updated. Anything that reaches the engine is assumed valid.

// Validate checks a rule's invariants.
func (r Rule) Validate() error {
	if r.Name == "" {
		return generic.Invalid(generic.ErrInvalidRule, "name", "required")
	}
	switch r.ManagerType {
	case "", ManagerRecruiter, ManagerAccount:
	default:
		return generic.Invalid(generic.ErrInvalidRule, "managerType", "unknown manager type "+string(r.ManagerType))
	}
	if err := validatePayment(generic.ErrInvalidRule, r.PaymentType, r.PaymentValue.IsNegative()); err != nil {
		return err
	}

	c := r.Constraints
	switch r.ApplyTo {
	case ApplyAll, ApplyFirstPrepayment, ApplyEarlyFG:
	case ApplyGroupWithThreshold:
		if c.MinGroupThreshold == nil {
			return generic.Invalid(generic.ErrInvalidRule, "constraints.minGroupThreshold", "required for groupWithThreshold")
		}
	default:
		return generic.Invalid(generic.ErrInvalidRule, "applyTo", "unknown mode "+string(r.ApplyTo))
	}

	if r.PaymentType == PaymentPercentageWithCap && (c.MaxPerPayment == nil || !c.MaxPerPayment.IsPositive()) {
		return generic.Invalid(generic.ErrInvalidRule, "constraints.maxPerPayment", "positive cap required for percentageWithCap")
	}
	if c.MaxPerPayment != nil && c.MaxPerPayment.IsNegative() {
		return generic.Invalid(generic.ErrInvalidRule, "constraints.maxPerPayment", "must not be negative")
	}
	if c.MinGroupThreshold != nil && c.MinGroupThreshold.IsNegative() {
		return generic.Invalid(generic.ErrInvalidRule, "constraints.minGroupThreshold", "must not be negative")
	}
	if c.NewAgentsOnly && c.NewAgentsMonths <= 0 {
		return generic.Invalid(generic.ErrInvalidRule, "constraints.newAgentsMonths", "positive month count required for newAgentsOnly")
	}
	if c.NewAgentsMonths < 0 {
		return generic.Invalid(generic.ErrInvalidRule, "constraints.newAgentsMonths", "must not be negative")
	}
	switch c.Logic {
	case "", LogicAnd, LogicOr:
	default:
		return generic.Invalid(generic.ErrInvalidRule, "constraints.logic", "unknown logic "+string(c.Logic))
	}

	if r.StartDate != nil && r.EndDate != nil && r.EndDate.Before(*r.StartDate) {
		return generic.Invalid(generic.ErrInvalidRule, "endDate", "before startDate")
	}
	return nil
}

// Validate checks a milestone's invariants.
func (m Milestone) Validate() error {
	if m.Name == "" {
		return generic.Invalid(generic.ErrInvalidMilestone, "name", "required")
	}
	if !m.TargetAmount.IsPositive() {
		return generic.Invalid(generic.ErrInvalidMilestone, "targetAmount", "must be positive")
	}
	if err := validatePayment(generic.ErrInvalidMilestone, m.PaymentType, m.PaymentValue.IsNegative()); err != nil {
		return err
	}
	if m.MaxPayment != nil && m.MaxPayment.IsNegative() {
		return generic.Invalid(generic.ErrInvalidMilestone, "maxPayment", "must not be negative")
	}
	if m.PaymentType == PaymentPercentageWithCap && (m.MaxPayment == nil || !m.MaxPayment.IsPositive()) {
		return generic.Invalid(generic.ErrInvalidMilestone, "maxPayment", "positive cap required for percentageWithCap")
	}

	switch m.ManagerGroup {
	case "", GroupAll, GroupRecruiters, GroupAccounts:
	case GroupCustom:
		if len(m.AssignedManagers) == 0 {
			return generic.Invalid(generic.ErrInvalidMilestone, "assignedManagers", "required for custom group")
		}
	default:
		return generic.Invalid(generic.ErrInvalidMilestone, "managerGroup", "unknown group "+string(m.ManagerGroup))
	}

	switch m.Scope {
	case "", ScopeManager, ScopeAgent:
	default:
		return generic.Invalid(generic.ErrInvalidMilestone, "scope", "unknown scope "+string(m.Scope))
	}
	return nil
}

func validatePayment(kind error, pt PaymentType, negative bool) error {
	switch pt {
	case PaymentPercentage, PaymentFixed, PaymentPercentageWithCap:
	default:
		return generic.Invalid(kind, "paymentType", "unknown payment type "+string(pt))
	}
	if negative {
		return generic.Invalid(kind, "paymentValue", "must not be negative")
	}
	return nil
}

// Validate checks a manager record and each of its personal rules.
func (m Manager) Validate() error {
	if m.Name == "" {
		return generic.Invalid(generic.ErrInvalidManager, "name", "required")
	}
	if m.Type != ManagerRecruiter && m.Type != ManagerAccount {
		return generic.Invalid(generic.ErrInvalidManager, "type", "must be recruiter or account")
	}
	if m.StartDate != "" {
		if _, ok := generic.ParseDate(m.StartDate); !ok {
			return generic.Invalid(generic.ErrInvalidManager, "startDate", "unparseable date "+m.StartDate)
		}
	}
	for _, r := range m.PersonalRules {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ValidateAssignment enforces that an FG carries a manager exactly when its
// source is Recruiter or Account, and that the manager's type matches.
// A nil manager record skips the type check.
func ValidateAssignment(source Source, ref *ManagerRef, manager *Manager) error {
	if !source.Valid() {
		return generic.Invalid(generic.ErrInvalidAssignment, "source", "unknown source "+string(source))
	}
	if !source.HasManager() {
		if ref != nil {
			return generic.Invalid(generic.ErrInvalidAssignment, "manager", "source "+string(source)+" carries no manager")
		}
		return nil
	}
	if ref == nil || ref.ID == "" {
		return generic.Invalid(generic.ErrInvalidAssignment, "manager", "required for source "+string(source))
	}
	if manager != nil && manager.Type != source.ManagerType() {
		return generic.Invalid(generic.ErrInvalidAssignment, "manager", "manager type "+string(manager.Type)+" does not match source "+string(source))
	}
	return nil
}
