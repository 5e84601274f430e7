/*
Package commission implements the commission computation engine.

PURPOSE:
  Managers (recruiters and account managers) earn commission on the
  prepayment volume of the agents they brought in. An agent is a group of
  financial-group (FG) records believed to belong to the same referring party.
  Compensation is configured as an open-ended set of rules and milestones;
  this package joins FGs, prepayments, rules and milestones into a
  per-manager payout report.

KEY CONCEPTS IN THIS FILE (types.go):
  - FG: Imported client account, optionally tagged with a source and manager
  - Prepayment: Imported deposit referencing an FG by number
  - Manager: A recruiter or account manager, owning personal rules
  - Rule: Time-bounded, conditional formula mapping volume to payout
  - Milestone: Cumulative-volume threshold bonus, non-exclusive
  - Snapshot: The consistent input set of one computation pass

PIPELINE:
  1. Group FGs into agents (agents.go)
  2. Aggregate prepayments per agent (engine.go)
  3. Accumulate agents into manager buckets
  4. Apply every applicable rule to every agent (rules.go)
  5. Evaluate milestones per manager or agent (milestones.go)

SEE ALSO:
  - engine.go: The computation pass
  - validate.go: Configuration invariants enforced at creation time
  - store.go: Persistence interface
*/
package commission

import (
	"github.com/shopspring/decimal"
	"github.com/warp/commission-engine/generic"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ManagerID string
type RuleID string
type MilestoneID string

// =============================================================================
// SOURCE - How an FG was acquired
// =============================================================================

type Source string

const (
	SourceNone      Source = ""
	SourceRecruiter Source = "Recruiter"
	SourceAccount   Source = "Account"
	SourceProject   Source = "Project"
	SourceOrganic   Source = "Organic"
	SourcePromo     Source = "Promo"
)

// Sources lists every assignable source in distribution order.
var Sources = []Source{SourceRecruiter, SourceAccount, SourceProject, SourceOrganic, SourcePromo}

// HasManager reports whether FGs from this source carry a manager.
func (s Source) HasManager() bool {
	return s == SourceRecruiter || s == SourceAccount
}

// ManagerType returns the manager type that owns this source.
func (s Source) ManagerType() ManagerType {
	if s == SourceRecruiter {
		return ManagerRecruiter
	}
	return ManagerAccount
}

// Valid reports whether s is one of the known sources (or unset).
func (s Source) Valid() bool {
	switch s {
	case SourceNone, SourceRecruiter, SourceAccount, SourceProject, SourceOrganic, SourcePromo:
		return true
	}
	return false
}

// =============================================================================
// FINANCIAL GROUP
// =============================================================================

// ManagerRef is the manager reference embedded in an FG record.
type ManagerRef struct {
	ID   ManagerID `json:"id"`
	Name string    `json:"name"`
}

// FG is an imported financial-group record.
//
// Only Number, Name, StartDate, Source, Manager and Agent are read by the
// engine. Extra holds the remaining import columns for display.
type FG struct {
	Number    string            `json:"number"`
	Name      string            `json:"name"`
	StartDate string            `json:"startDate,omitempty"` // raw import text, see generic.ParseDate
	Ref       string            `json:"ref,omitempty"`
	Source    Source            `json:"source,omitempty"`
	Manager   *ManagerRef       `json:"manager,omitempty"`
	Agent     string            `json:"agent,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// Start returns the normalized start-of-work date (sentinel if unparseable).
func (fg FG) Start() generic.TimePoint {
	return generic.MustParseDate(fg.StartDate)
}

// =============================================================================
// PREPAYMENT
// =============================================================================

// Prepayment is an imported deposit. Immutable once imported.
type Prepayment struct {
	FGNumber string            `json:"fgNumber"`
	Amount   string            `json:"amount"` // raw import text, see generic.ParseAmount
	Period   string            `json:"period"` // raw import text, see generic.ParseDate
	Extra    map[string]string `json:"extra,omitempty"`
}

// Value returns the normalized amount.
func (p Prepayment) Value() decimal.Decimal {
	return generic.ParseAmount(p.Amount)
}

// Date returns the normalized period date (sentinel if unparseable).
func (p Prepayment) Date() generic.TimePoint {
	return generic.MustParseDate(p.Period)
}

// =============================================================================
// MANAGER
// =============================================================================

type ManagerType string

const (
	ManagerRecruiter ManagerType = "recruiter"
	ManagerAccount   ManagerType = "account"
)

// Manager is a commission-earning recruiter or account manager.
type Manager struct {
	ID            ManagerID   `json:"id"`
	Name          string      `json:"name"`
	Type          ManagerType `json:"type"`
	StartDate     string      `json:"startDate,omitempty"`
	PersonalRules []Rule      `json:"personalRules,omitempty"`
}

// Ref returns the reference embedded into FG records.
func (m Manager) Ref() *ManagerRef {
	return &ManagerRef{ID: m.ID, Name: m.Name}
}

// =============================================================================
// RULE
// =============================================================================

// PaymentType selects the payout formula shared by rules and milestones.
type PaymentType string

const (
	PaymentPercentage        PaymentType = "percentage"
	PaymentFixed             PaymentType = "fixed"
	PaymentPercentageWithCap PaymentType = "percentageWithCap"
)

// ApplyMode selects which subset of an agent's volume a rule taxes.
type ApplyMode string

const (
	// ApplyAll taxes in-window volume when a window is active, lifetime otherwise.
	ApplyAll ApplyMode = "all"
	// ApplyFirstPrepayment taxes only the agent's first prepayment, if in window.
	ApplyFirstPrepayment ApplyMode = "firstPrepayment"
	// ApplyEarlyFG taxes the in-window prepayments of the agent's earliest FG.
	ApplyEarlyFG ApplyMode = "earlyFg"
	// ApplyGroupWithThreshold taxes like ApplyAll, gated by MinGroupThreshold.
	ApplyGroupWithThreshold ApplyMode = "groupWithThreshold"
)

// Logic combines the constraint gates of a rule.
type Logic string

const (
	LogicAnd Logic = "and"
	LogicOr  Logic = "or"
)

// Constraints gate and cap a rule.
type Constraints struct {
	MaxPerPayment     *decimal.Decimal `json:"maxPerPayment,omitempty"`     // cap per agent-rule pairing
	MinGroupThreshold *decimal.Decimal `json:"minGroupThreshold,omitempty"` // agent lifetime volume must reach this
	PeriodOnly        bool             `json:"periodOnly,omitempty"`        // agent's first prepayment must be in window
	NewAgentsOnly     bool             `json:"newAgentsOnly,omitempty"`     // agent's earliest FG within NewAgentsMonths
	NewAgentsMonths   int              `json:"newAgentsMonths,omitempty"`
	Logic             Logic            `json:"logic,omitempty"` // empty means LogicAnd
}

// Rule is a configured compensation formula.
type Rule struct {
	ID           RuleID          `json:"id"`
	Name         string          `json:"name"`
	ManagerType  ManagerType     `json:"managerType,omitempty"`
	ManagerIDs   []ManagerID     `json:"managerIds,omitempty"`
	PaymentType  PaymentType     `json:"paymentType"`
	PaymentValue decimal.Decimal `json:"paymentValue"`
	ApplyTo      ApplyMode       `json:"applyTo"`
	Constraints  Constraints     `json:"constraints"`

	// Validity range; nil bounds are open.
	StartDate *generic.TimePoint `json:"startDate,omitempty"`
	EndDate   *generic.TimePoint `json:"endDate,omitempty"`

	// IsPersonal marks rules attached to a single Manager record.
	IsPersonal bool `json:"isPersonal,omitempty"`
}

// Key identifies the rule in per-agent breakdowns.
func (r Rule) Key() string {
	if r.ID != "" {
		return string(r.ID)
	}
	return "personal_" + r.Name
}

// =============================================================================
// MILESTONE
// =============================================================================

type ManagerGroup string

const (
	GroupAll        ManagerGroup = "all"
	GroupRecruiters ManagerGroup = "recruiters"
	GroupAccounts   ManagerGroup = "accounts"
	GroupCustom     ManagerGroup = "custom"
)

// MilestoneScope selects whose cumulative volume is compared to the target.
type MilestoneScope string

const (
	ScopeManager MilestoneScope = "manager"
	ScopeAgent   MilestoneScope = "agent"
)

// Milestone is a cumulative-volume threshold bonus.
// Milestones are non-exclusive and carry no "achieved" state.
type Milestone struct {
	ID               MilestoneID      `json:"id"`
	Name             string           `json:"name"`
	TargetAmount     decimal.Decimal  `json:"targetAmount"`
	PaymentType      PaymentType      `json:"paymentType"`
	PaymentValue     decimal.Decimal  `json:"paymentValue"`
	MaxPayment       *decimal.Decimal `json:"maxPayment,omitempty"`
	ManagerGroup     ManagerGroup     `json:"managerGroup"`
	AssignedManagers []ManagerID      `json:"assignedManagers,omitempty"`
	Scope            MilestoneScope   `json:"scope,omitempty"` // empty means ScopeManager
}

// Eligible reports whether the milestone's group selector matches the manager.
func (m Milestone) Eligible(id ManagerID, typ ManagerType) bool {
	switch m.ManagerGroup {
	case GroupAll, "":
		return true
	case GroupRecruiters:
		return typ == ManagerRecruiter
	case GroupAccounts:
		return typ == ManagerAccount
	case GroupCustom:
		for _, a := range m.AssignedManagers {
			if a == id {
				return true
			}
		}
	}
	return false
}

// =============================================================================
// SNAPSHOT - Input of one computation pass
// =============================================================================

// Snapshot is a consistent view of every collection the engine reads.
type Snapshot struct {
	FGs         []FG
	Prepayments []Prepayment
	Rules       []Rule
	Milestones  []Milestone
	Managers    []Manager
}
