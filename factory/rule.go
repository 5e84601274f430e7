/*
Package factory provides JSON/YAML to Go conversion of commission configuration.

PURPOSE:
  Converts rule, milestone and manager definitions into commission types.
  Admin UIs post JSON; operators may also ship a YAML rules file loaded on
  start. Both go through the same DTOs, the same struct-tag validation and
  the same domain invariants (commission.Rule.Validate et al.).

JSON SCHEMA (rule):
  {
    "name": "Recruiter base",
    "managerIds": ["recruiter-1"],
    "paymentType": "percentageWithCap",
    "paymentValue": 10,
    "applyTo": "all",
    "constraints": {
      "maxPerPayment": 300,
      "newAgentsOnly": true,
      "newAgentsMonths": 3,
      "logic": "and"
    },
    "startDate": "2024-01-01",
    "endDate": "2024-12-31"
  }

KEY FEATURES:
  - Struct-tag validation (go-playground/validator)
  - Missing IDs are generated (uuid)
  - Missing paymentValue falls back to the configured default commission
  - Every error unwraps to a generic sentinel (ErrInvalidRule, ...)

USAGE:
  f := factory.New()
  rule, err := f.ParseRule(body)
  if errors.Is(err, generic.ErrInvalidRule) {
      // 400
  }

  cfg, err := f.LoadConfigFile("rules.yaml")

SEE ALSO:
  - commission/validate.go: Domain invariants
  - config.go: YAML rules file
*/
package factory

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/generic"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RuleJSON is the wire representation of a rule.
type RuleJSON struct {
	ID           string           `json:"id,omitempty" yaml:"id,omitempty"`
	Name         string           `json:"name" yaml:"name" validate:"required"`
	ManagerType  string           `json:"managerType,omitempty" yaml:"managerType,omitempty" validate:"omitempty,oneof=recruiter account"`
	ManagerIDs   []string         `json:"managerIds,omitempty" yaml:"managerIds,omitempty" validate:"dive,required"`
	PaymentType  string           `json:"paymentType" yaml:"paymentType" validate:"required,oneof=percentage fixed percentageWithCap"`
	PaymentValue *float64         `json:"paymentValue,omitempty" yaml:"paymentValue,omitempty" validate:"omitempty,gte=0"`
	ApplyTo      string           `json:"applyTo,omitempty" yaml:"applyTo,omitempty" validate:"omitempty,oneof=all firstPrepayment earlyFg groupWithThreshold"`
	Constraints  *ConstraintsJSON `json:"constraints,omitempty" yaml:"constraints,omitempty"`
	StartDate    string           `json:"startDate,omitempty" yaml:"startDate,omitempty"`
	EndDate      string           `json:"endDate,omitempty" yaml:"endDate,omitempty"`
	IsPersonal   bool             `json:"isPersonal,omitempty" yaml:"isPersonal,omitempty"`
}

// ConstraintsJSON is the wire representation of rule constraints.
type ConstraintsJSON struct {
	MaxPerPayment     *float64 `json:"maxPerPayment,omitempty" yaml:"maxPerPayment,omitempty" validate:"omitempty,gte=0"`
	MinGroupThreshold *float64 `json:"minGroupThreshold,omitempty" yaml:"minGroupThreshold,omitempty" validate:"omitempty,gte=0"`
	PeriodOnly        bool     `json:"periodOnly,omitempty" yaml:"periodOnly,omitempty"`
	NewAgentsOnly     bool     `json:"newAgentsOnly,omitempty" yaml:"newAgentsOnly,omitempty"`
	NewAgentsMonths   int      `json:"newAgentsMonths,omitempty" yaml:"newAgentsMonths,omitempty" validate:"gte=0"`
	Logic             string   `json:"logic,omitempty" yaml:"logic,omitempty" validate:"omitempty,oneof=and or"`
}

// MilestoneJSON is the wire representation of a milestone.
type MilestoneJSON struct {
	ID               string   `json:"id,omitempty" yaml:"id,omitempty"`
	Name             string   `json:"name" yaml:"name" validate:"required"`
	TargetAmount     float64  `json:"targetAmount" yaml:"targetAmount" validate:"gt=0"`
	PaymentType      string   `json:"paymentType" yaml:"paymentType" validate:"required,oneof=percentage fixed percentageWithCap"`
	PaymentValue     float64  `json:"paymentValue" yaml:"paymentValue" validate:"gte=0"`
	MaxPayment       *float64 `json:"maxPayment,omitempty" yaml:"maxPayment,omitempty" validate:"omitempty,gte=0"`
	ManagerGroup     string   `json:"managerGroup,omitempty" yaml:"managerGroup,omitempty" validate:"omitempty,oneof=all recruiters accounts custom"`
	AssignedManagers []string `json:"assignedManagers,omitempty" yaml:"assignedManagers,omitempty" validate:"dive,required"`
	Scope            string   `json:"scope,omitempty" yaml:"scope,omitempty" validate:"omitempty,oneof=manager agent"`
}

// ManagerJSON is the wire representation of a manager.
type ManagerJSON struct {
	ID            string     `json:"id,omitempty" yaml:"id,omitempty"`
	Name          string     `json:"name" yaml:"name" validate:"required"`
	Type          string     `json:"type" yaml:"type" validate:"required,oneof=recruiter account"`
	StartDate     string     `json:"startDate,omitempty" yaml:"startDate,omitempty"`
	PersonalRules []RuleJSON `json:"personalRules,omitempty" yaml:"personalRules,omitempty"`
}

// =============================================================================
// FACTORY
// =============================================================================

// Factory converts wire DTOs to commission types.
type Factory struct {
	validate *validator.Validate

	// NewID generates IDs for records posted without one.
	NewID func() string

	// DefaultCommission is used for rules posted without a paymentValue.
	DefaultCommission decimal.Decimal
}

// New creates a factory with uuid IDs and the factory-default commission.
func New() *Factory {
	return &Factory{
		validate:          validator.New(),
		NewID:             uuid.NewString,
		DefaultCommission: commission.DefaultSettings().DefaultCommission,
	}
}

// ===== Rules =====

// ParseRule parses a JSON rule.
func (f *Factory) ParseRule(data []byte) (commission.Rule, error) {
	var rj RuleJSON
	if err := json.Unmarshal(data, &rj); err != nil {
		return commission.Rule{}, fmt.Errorf("%w: failed to parse rule JSON: %v", generic.ErrInvalidRule, err)
	}
	return f.RuleFromJSON(rj)
}

// RuleFromJSON converts and validates a rule DTO.
func (f *Factory) RuleFromJSON(rj RuleJSON) (commission.Rule, error) {
	if err := f.check(generic.ErrInvalidRule, rj); err != nil {
		return commission.Rule{}, err
	}

	r := commission.Rule{
		ID:           commission.RuleID(rj.ID),
		Name:         strings.TrimSpace(rj.Name),
		ManagerType:  commission.ManagerType(rj.ManagerType),
		PaymentType:  commission.PaymentType(rj.PaymentType),
		PaymentValue: f.DefaultCommission,
		ApplyTo:      commission.ApplyMode(rj.ApplyTo),
		IsPersonal:   rj.IsPersonal,
	}
	if r.ID == "" {
		r.ID = commission.RuleID(f.NewID())
	}
	if r.ApplyTo == "" {
		r.ApplyTo = commission.ApplyAll
	}
	if rj.PaymentValue != nil {
		r.PaymentValue = decimal.NewFromFloat(*rj.PaymentValue)
	}
	for _, id := range rj.ManagerIDs {
		r.ManagerIDs = append(r.ManagerIDs, commission.ManagerID(id))
	}

	if c := rj.Constraints; c != nil {
		if err := f.check(generic.ErrInvalidRule, c); err != nil {
			return commission.Rule{}, err
		}
		r.Constraints = commission.Constraints{
			MaxPerPayment:     floatPtr(c.MaxPerPayment),
			MinGroupThreshold: floatPtr(c.MinGroupThreshold),
			PeriodOnly:        c.PeriodOnly,
			NewAgentsOnly:     c.NewAgentsOnly,
			NewAgentsMonths:   c.NewAgentsMonths,
			Logic:             commission.Logic(c.Logic),
		}
	}

	var err error
	if r.StartDate, err = parseOptionalDate(generic.ErrInvalidRule, "startDate", rj.StartDate); err != nil {
		return commission.Rule{}, err
	}
	if r.EndDate, err = parseOptionalDate(generic.ErrInvalidRule, "endDate", rj.EndDate); err != nil {
		return commission.Rule{}, err
	}

	if err := r.Validate(); err != nil {
		return commission.Rule{}, err
	}
	return r, nil
}

// RuleToJSON converts a rule back to its wire form.
func RuleToJSON(r commission.Rule) RuleJSON {
	rj := RuleJSON{
		ID:           string(r.ID),
		Name:         r.Name,
		ManagerType:  string(r.ManagerType),
		PaymentType:  string(r.PaymentType),
		PaymentValue: toFloatPtr(&r.PaymentValue),
		ApplyTo:      string(r.ApplyTo),
		IsPersonal:   r.IsPersonal,
	}
	for _, id := range r.ManagerIDs {
		rj.ManagerIDs = append(rj.ManagerIDs, string(id))
	}
	c := r.Constraints
	if c != (commission.Constraints{}) {
		rj.Constraints = &ConstraintsJSON{
			MaxPerPayment:     toFloatPtr(c.MaxPerPayment),
			MinGroupThreshold: toFloatPtr(c.MinGroupThreshold),
			PeriodOnly:        c.PeriodOnly,
			NewAgentsOnly:     c.NewAgentsOnly,
			NewAgentsMonths:   c.NewAgentsMonths,
			Logic:             string(c.Logic),
		}
	}
	if r.StartDate != nil {
		rj.StartDate = r.StartDate.String()
	}
	if r.EndDate != nil {
		rj.EndDate = r.EndDate.String()
	}
	return rj
}

// ===== Milestones =====

// ParseMilestone parses a JSON milestone.
func (f *Factory) ParseMilestone(data []byte) (commission.Milestone, error) {
	var mj MilestoneJSON
	if err := json.Unmarshal(data, &mj); err != nil {
		return commission.Milestone{}, fmt.Errorf("%w: failed to parse milestone JSON: %v", generic.ErrInvalidMilestone, err)
	}
	return f.MilestoneFromJSON(mj)
}

// MilestoneFromJSON converts and validates a milestone DTO.
func (f *Factory) MilestoneFromJSON(mj MilestoneJSON) (commission.Milestone, error) {
	if err := f.check(generic.ErrInvalidMilestone, mj); err != nil {
		return commission.Milestone{}, err
	}

	m := commission.Milestone{
		ID:           commission.MilestoneID(mj.ID),
		Name:         strings.TrimSpace(mj.Name),
		TargetAmount: decimal.NewFromFloat(mj.TargetAmount),
		PaymentType:  commission.PaymentType(mj.PaymentType),
		PaymentValue: decimal.NewFromFloat(mj.PaymentValue),
		MaxPayment:   floatPtr(mj.MaxPayment),
		ManagerGroup: commission.ManagerGroup(mj.ManagerGroup),
		Scope:        commission.MilestoneScope(mj.Scope),
	}
	if m.ID == "" {
		m.ID = commission.MilestoneID(f.NewID())
	}
	if m.ManagerGroup == "" {
		m.ManagerGroup = commission.GroupAll
	}
	if m.Scope == "" {
		m.Scope = commission.ScopeManager
	}
	for _, id := range mj.AssignedManagers {
		m.AssignedManagers = append(m.AssignedManagers, commission.ManagerID(id))
	}

	if err := m.Validate(); err != nil {
		return commission.Milestone{}, err
	}
	return m, nil
}

// MilestoneToJSON converts a milestone back to its wire form.
func MilestoneToJSON(m commission.Milestone) MilestoneJSON {
	mj := MilestoneJSON{
		ID:           string(m.ID),
		Name:         m.Name,
		TargetAmount: m.TargetAmount.InexactFloat64(),
		PaymentType:  string(m.PaymentType),
		PaymentValue: m.PaymentValue.InexactFloat64(),
		MaxPayment:   toFloatPtr(m.MaxPayment),
		ManagerGroup: string(m.ManagerGroup),
		Scope:        string(m.Scope),
	}
	for _, id := range m.AssignedManagers {
		mj.AssignedManagers = append(mj.AssignedManagers, string(id))
	}
	return mj
}

// ===== Managers =====

// ParseManager parses a JSON manager.
func (f *Factory) ParseManager(data []byte) (commission.Manager, error) {
	var mj ManagerJSON
	if err := json.Unmarshal(data, &mj); err != nil {
		return commission.Manager{}, fmt.Errorf("%w: failed to parse manager JSON: %v", generic.ErrInvalidManager, err)
	}
	return f.ManagerFromJSON(mj)
}

// ManagerFromJSON converts and validates a manager DTO, personal rules included.
func (f *Factory) ManagerFromJSON(mj ManagerJSON) (commission.Manager, error) {
	if err := f.check(generic.ErrInvalidManager, mj); err != nil {
		return commission.Manager{}, err
	}

	m := commission.Manager{
		ID:        commission.ManagerID(mj.ID),
		Name:      strings.TrimSpace(mj.Name),
		Type:      commission.ManagerType(mj.Type),
		StartDate: mj.StartDate,
	}
	if m.ID == "" {
		m.ID = commission.ManagerID(f.NewID())
	}
	for _, rj := range mj.PersonalRules {
		rj.IsPersonal = true
		r, err := f.RuleFromJSON(rj)
		if err != nil {
			return commission.Manager{}, err
		}
		r.ManagerIDs = nil
		if r.ManagerType == "" {
			r.ManagerType = m.Type
		}
		m.PersonalRules = append(m.PersonalRules, r)
	}

	if err := m.Validate(); err != nil {
		return commission.Manager{}, err
	}
	return m, nil
}

// ManagerToJSON converts a manager back to its wire form.
func ManagerToJSON(m commission.Manager) ManagerJSON {
	mj := ManagerJSON{
		ID:        string(m.ID),
		Name:      m.Name,
		Type:      string(m.Type),
		StartDate: m.StartDate,
	}
	for _, r := range m.PersonalRules {
		mj.PersonalRules = append(mj.PersonalRules, RuleToJSON(r))
	}
	return mj
}

// =============================================================================
// HELPERS
// =============================================================================

// check runs struct-tag validation and reports the first failing field as a
// generic.ValidationError of the given kind.
func (f *Factory) check(kind error, v any) error {
	err := f.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		reason := fe.Tag()
		if fe.Param() != "" {
			reason += "=" + fe.Param()
		}
		return generic.Invalid(kind, lowerFirst(fe.Field()), "failed "+reason)
	}
	return fmt.Errorf("%w: %v", kind, err)
}

func parseOptionalDate(kind error, field, raw string) (*generic.TimePoint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	tp, ok := generic.ParseDate(raw)
	if !ok {
		return nil, generic.Invalid(kind, field, "unparseable date "+raw)
	}
	return &tp, nil
}

func floatPtr(f *float64) *decimal.Decimal {
	if f == nil {
		return nil
	}
	return generic.DecimalPtr(decimal.NewFromFloat(*f))
}

func toFloatPtr(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	f := d.InexactFloat64()
	return &f
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
