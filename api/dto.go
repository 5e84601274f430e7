/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract. Money leaves the
  API as float64 rounded to cents; internally it stays decimal.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Report:
    ReportDTO, ManagerPayoutDTO, AgentPayoutDTO, FGBreakdownDTO,
    RuleCommissionDTO, MilestoneAwardDTO, TotalsDTO

  Records:
    FGDTO, ImportResponse, AssignmentRequest, DistributionDTO, SettingsDTO

  Configuration:
    factory.RuleJSON, factory.MilestoneJSON, factory.ManagerJSON

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

SEE ALSO:
  - handlers.go: Uses these types
  - factory/rule.go: Configuration wire types
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/generic"
)

// =============================================================================
// REPORT TYPES
// =============================================================================

// ReportDTO is the response of GET /api/report.
type ReportDTO struct {
	StartDate          string             `json:"startDate,omitempty"`
	EndDate            string             `json:"endDate,omitempty"`
	ReportDate         string             `json:"reportDate"`
	Managers           []ManagerPayoutDTO `json:"managers"`
	UnassignedAgents   []AgentPayoutDTO   `json:"unassignedAgents"`
	DroppedPrepayments int                `json:"droppedPrepayments"`
	Totals             TotalsDTO          `json:"totals"`
}

// ManagerPayoutDTO is one manager row.
type ManagerPayoutDTO struct {
	ManagerID           string              `json:"managerId"`
	ManagerName         string              `json:"managerName"`
	ManagerType         string              `json:"managerType"`
	TotalPrepayments    float64             `json:"totalPrepayments"`
	PrepaymentsInPeriod float64             `json:"prepaymentsInPeriod"`
	Commission          float64             `json:"commission"`
	MilestoneBonus      float64             `json:"milestoneBonus"`
	Total               float64             `json:"total"`
	AgentsCount         int                 `json:"agentsCount"`
	FGCount             int                 `json:"fgCount"`
	MilestoneAwards     []MilestoneAwardDTO `json:"milestoneAwards"`
	Agents              []AgentPayoutDTO    `json:"agents"`
}

// AgentPayoutDTO is one agent inside a manager row.
type AgentPayoutDTO struct {
	Name                  string              `json:"name"`
	TotalPrepayments      float64             `json:"totalPrepayments"`
	PrepaymentsInPeriod   float64             `json:"prepaymentsInPeriod"`
	FirstPrepaymentDate   string              `json:"firstPrepaymentDate,omitempty"`
	FirstPrepaymentAmount float64             `json:"firstPrepaymentAmount"`
	EarliestFGDate        string              `json:"earliestFgDate,omitempty"`
	Commission            float64             `json:"commission"`
	MilestoneBonus        float64             `json:"milestoneBonus"`
	Commissions           []RuleCommissionDTO `json:"commissions"`
	MilestoneAwards       []MilestoneAwardDTO `json:"milestoneAwards,omitempty"`
	FGs                   []FGBreakdownDTO    `json:"fgs"`
}

// FGBreakdownDTO is one FG inside an agent.
type FGBreakdownDTO struct {
	Number              string  `json:"number"`
	Name                string  `json:"name"`
	Source              string  `json:"source,omitempty"`
	ManagerName         string  `json:"managerName,omitempty"`
	StartDate           string  `json:"startDate,omitempty"`
	FirstPrepaymentDate string  `json:"firstPrepaymentDate,omitempty"`
	TotalPrepayments    float64 `json:"totalPrepayments"`
	PrepaymentsInPeriod float64 `json:"prepaymentsInPeriod"`
	PrepaymentCount     int     `json:"prepaymentCount"`
}

// RuleCommissionDTO is what one rule paid for one agent.
type RuleCommissionDTO struct {
	RuleKey    string  `json:"ruleKey"`
	Name       string  `json:"name"`
	IsPersonal bool    `json:"isPersonal,omitempty"`
	Base       float64 `json:"base"`
	Amount     float64 `json:"amount"`
}

// MilestoneAwardDTO is one cleared milestone.
type MilestoneAwardDTO struct {
	MilestoneID string  `json:"milestoneId"`
	Name        string  `json:"name"`
	Agent       string  `json:"agent,omitempty"`
	Cumulative  float64 `json:"cumulative"`
	Bonus       float64 `json:"bonus"`
}

// TotalsDTO sums the report.
type TotalsDTO struct {
	TotalPrepayments    float64 `json:"totalPrepayments"`
	PrepaymentsInPeriod float64 `json:"prepaymentsInPeriod"`
	Commission          float64 `json:"commission"`
	MilestoneBonus      float64 `json:"milestoneBonus"`
	Payout              float64 `json:"payout"`
}

// =============================================================================
// RECORD TYPES
// =============================================================================

// FGDTO is an FG in the listing, with its lifetime volume.
type FGDTO struct {
	Number           string            `json:"number"`
	Name             string            `json:"name"`
	StartDate        string            `json:"startDate,omitempty"`
	Ref              string            `json:"ref,omitempty"`
	Source           string            `json:"source,omitempty"`
	ManagerID        string            `json:"managerId,omitempty"`
	ManagerName      string            `json:"managerName,omitempty"`
	Agent            string            `json:"agent"`
	TotalPrepayments float64           `json:"totalPrepayments"`
	PrepaymentCount  int               `json:"prepaymentCount"`
	Extra            map[string]string `json:"extra,omitempty"`
}

// AssignmentRequest is the body of PUT /api/fgs/{number}/assignment.
type AssignmentRequest struct {
	Source    string `json:"source"`
	ManagerID string `json:"managerId,omitempty"`
}

// ImportResponse reports an import.
type ImportResponse struct {
	Imported int `json:"imported"`
}

// DistributionDTO reports a distribution run.
type DistributionDTO struct {
	Agents    int            `json:"agents"`
	FGs       int            `json:"fgs"`
	BySource  map[string]int `json:"bySource"`
	ByManager map[string]int `json:"byManager"`
}

// SettingsDTO is the wire form of commission.Settings.
type SettingsDTO struct {
	SourceWeights     map[string]int `json:"sourceWeights"`
	DefaultCommission float64        `json:"defaultCommission"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the body of POST /api/scenarios/load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenarioId"`
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func dateString(tp *generic.TimePoint) string {
	if tp == nil {
		return ""
	}
	return tp.String()
}

func toReportDTO(r commission.Report) ReportDTO {
	dto := ReportDTO{
		StartDate:          dateString(r.Window.Start),
		EndDate:            dateString(r.Window.End),
		ReportDate:         r.ReportDate.String(),
		Managers:           make([]ManagerPayoutDTO, len(r.Managers)),
		UnassignedAgents:   make([]AgentPayoutDTO, len(r.UnassignedAgents)),
		DroppedPrepayments: r.DroppedPrepayments,
		Totals: TotalsDTO{
			TotalPrepayments:    money(r.Totals.TotalPrepayments),
			PrepaymentsInPeriod: money(r.Totals.PrepaymentsInPeriod),
			Commission:          money(r.Totals.Commission),
			MilestoneBonus:      money(r.Totals.MilestoneBonus),
			Payout:              money(r.Totals.Payout),
		},
	}
	for i, m := range r.Managers {
		dto.Managers[i] = toManagerPayoutDTO(m)
	}
	for i, a := range r.UnassignedAgents {
		dto.UnassignedAgents[i] = toAgentPayoutDTO(a)
	}
	return dto
}

func toManagerPayoutDTO(m commission.ManagerPayout) ManagerPayoutDTO {
	dto := ManagerPayoutDTO{
		ManagerID:           string(m.ManagerID),
		ManagerName:         m.ManagerName,
		ManagerType:         string(m.ManagerType),
		TotalPrepayments:    money(m.TotalPrepayments),
		PrepaymentsInPeriod: money(m.PrepaymentsInPeriod),
		Commission:          money(m.Commission),
		MilestoneBonus:      money(m.MilestoneBonus),
		Total:               money(m.Total()),
		AgentsCount:         m.AgentsCount,
		FGCount:             m.FGCount(),
		MilestoneAwards:     toMilestoneAwardDTOs(m.MilestoneAwards),
		Agents:              make([]AgentPayoutDTO, len(m.Agents)),
	}
	for i, a := range m.Agents {
		dto.Agents[i] = toAgentPayoutDTO(a)
	}
	return dto
}

func toAgentPayoutDTO(a commission.AgentPayout) AgentPayoutDTO {
	dto := AgentPayoutDTO{
		Name:                  a.Name,
		TotalPrepayments:      money(a.TotalPrepayments),
		PrepaymentsInPeriod:   money(a.PrepaymentsInPeriod),
		FirstPrepaymentDate:   dateString(a.FirstPrepaymentDate),
		FirstPrepaymentAmount: money(a.FirstPrepaymentAmount),
		EarliestFGDate:        dateString(a.EarliestFGDate),
		Commission:            money(a.Commission),
		MilestoneBonus:        money(a.MilestoneBonus),
		Commissions:           make([]RuleCommissionDTO, len(a.RuleCommissions)),
		FGs:                   make([]FGBreakdownDTO, len(a.FGs)),
	}
	if len(a.MilestoneAwards) > 0 {
		dto.MilestoneAwards = toMilestoneAwardDTOs(a.MilestoneAwards)
	}
	for i, rc := range a.RuleCommissions {
		dto.Commissions[i] = RuleCommissionDTO{
			RuleKey:    rc.Key,
			Name:       rc.Name,
			IsPersonal: rc.IsPersonal,
			Base:       money(rc.Base),
			Amount:     money(rc.Amount),
		}
	}
	for i, fg := range a.FGs {
		dto.FGs[i] = FGBreakdownDTO{
			Number:              fg.Number,
			Name:                fg.Name,
			Source:              string(fg.Source),
			ManagerName:         fg.ManagerName,
			StartDate:           dateString(fg.StartDate),
			FirstPrepaymentDate: dateString(fg.FirstPrepaymentDate),
			TotalPrepayments:    money(fg.TotalPrepayments),
			PrepaymentsInPeriod: money(fg.PrepaymentsInPeriod),
			PrepaymentCount:     fg.PrepaymentCount,
		}
	}
	return dto
}

func toMilestoneAwardDTOs(awards []commission.MilestoneAward) []MilestoneAwardDTO {
	out := make([]MilestoneAwardDTO, len(awards))
	for i, a := range awards {
		out[i] = MilestoneAwardDTO{
			MilestoneID: string(a.MilestoneID),
			Name:        a.Name,
			Agent:       a.Agent,
			Cumulative:  money(a.Cumulative),
			Bonus:       money(a.Bonus),
		}
	}
	return out
}

func toFGDTO(v commission.FGVolume) FGDTO {
	fg := v.FG
	dto := FGDTO{
		Number:           fg.Number,
		Name:             fg.Name,
		StartDate:        fg.StartDate,
		Ref:              fg.Ref,
		Source:           string(fg.Source),
		Agent:            commission.AgentKey(fg),
		TotalPrepayments: money(v.TotalPrepayments),
		PrepaymentCount:  v.PrepaymentCount,
		Extra:            fg.Extra,
	}
	if fg.Manager != nil {
		dto.ManagerID = string(fg.Manager.ID)
		dto.ManagerName = fg.Manager.Name
	}
	return dto
}

func toSettingsDTO(s commission.Settings) SettingsDTO {
	dto := SettingsDTO{
		SourceWeights:     make(map[string]int, len(s.SourceWeights)),
		DefaultCommission: s.DefaultCommission.InexactFloat64(),
	}
	for src, w := range s.SourceWeights {
		dto.SourceWeights[string(src)] = w
	}
	return dto
}

func fromSettingsDTO(dto SettingsDTO) commission.Settings {
	s := commission.Settings{
		SourceWeights:     make(map[commission.Source]int, len(dto.SourceWeights)),
		DefaultCommission: decimal.NewFromFloat(dto.DefaultCommission),
	}
	for src, w := range dto.SourceWeights {
		s.SourceWeights[commission.Source(src)] = w
	}
	return s
}

func toDistributionDTO(s commission.DistributionSummary) DistributionDTO {
	dto := DistributionDTO{
		Agents:    s.Agents,
		FGs:       s.FGs,
		BySource:  make(map[string]int, len(s.BySource)),
		ByManager: make(map[string]int, len(s.ByManager)),
	}
	for src, n := range s.BySource {
		dto.BySource[string(src)] = n
	}
	for id, n := range s.ByManager {
		dto.ByManager[string(id)] = n
	}
	return dto
}
