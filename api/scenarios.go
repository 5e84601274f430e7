/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates managers, FGs,
	prepayments, rules and milestones that demonstrate specific features.

AVAILABLE SCENARIOS:

	basic-team:      Two recruiters, one account manager, flat percentages
	new-agents:      First-prepayment bonus, new-agent and earliest-FG rules
	caps-thresholds: Capped payouts, group thresholds, OR logic, personal rule
	dirty-import:    Messy import data, unmatched prepayments, unassigned agents

HOW SCENARIOS WORK:
 1. Reset database (clear all data, re-seed default managers)
 2. Save managers
 3. Save FGs with their source and manager
 4. Save prepayments as raw import text
 5. Create rules and milestones via factory JSON

All scenario data lives in Q1 2024. View it with:

	GET /api/report?start=2024-01-01&end=2024-03-31

USAGE VIA API:

	POST /api/scenarios/load
	{"scenarioId": "basic-team"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler context
  - factory/rule.go: Rule and milestone JSON definitions
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/warp/commission-engine/commission"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "basic-team",
		Name:        "Basic Team",
		Description: "Two recruiters and an account manager with flat percentage rules and a team milestone",
	},
	{
		ID:          "new-agents",
		Name:        "New Agent Incentives",
		Description: "Fixed first-prepayment bonus, new-agents-only rule and earliest-FG commission",
	},
	{
		ID:          "caps-thresholds",
		Name:        "Caps & Thresholds",
		Description: "Capped percentages, group thresholds with OR logic, agent milestones and a personal rule",
	},
	{
		ID:          "dirty-import",
		Name:        "Dirty Import",
		Description: "Locale-formatted amounts and dates, unmatched prepayments and agents without a manager",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	current := h.currentScenario
	h.mu.RUnlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var load func(context.Context) error
	switch req.ScenarioID {
	case "basic-team":
		load = h.loadBasicTeamScenario
	case "new-agents":
		load = h.loadNewAgentsScenario
	case "caps-thresholds":
		load = h.loadCapsThresholdsScenario
	case "dirty-import":
		load = h.loadDirtyImportScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	ctx := r.Context()

	h.mu.Lock()
	defer h.mu.Unlock()

	// Reset first
	h.currentScenario = ""
	if err := h.Service.Reset(ctx); err != nil {
		h.fail(w, r, "Failed to reset database", err)
		return
	}
	if err := load(ctx); err != nil {
		h.fail(w, r, fmt.Sprintf("Failed to load scenario %s", req.ScenarioID), err)
		return
	}

	h.currentScenario = req.ScenarioID
	h.Logger.InfoContext(ctx, "scenario loaded", "scenario", req.ScenarioID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data and re-seeds the default managers.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Service.Reset(r.Context()); err != nil {
		h.fail(w, r, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

var (
	alice = commission.Manager{ID: "recruiter-1", Name: "Alice Recruiter", Type: commission.ManagerRecruiter, StartDate: "2023-01-09"}
	bob   = commission.Manager{ID: "recruiter-2", Name: "Bob Recruiter", Type: commission.ManagerRecruiter, StartDate: "2023-06-01"}
	carol = commission.Manager{ID: "account-1", Name: "Carol Accounts", Type: commission.ManagerAccount, StartDate: "2022-11-15"}
)

func (h *Handler) loadBasicTeamScenario(ctx context.Context) error {
	if err := h.saveManagers(ctx, alice, bob, carol); err != nil {
		return err
	}

	fgs := []commission.FG{
		assigned("1001", "Ivan Petrov Group A", "10.01.2024", commission.SourceRecruiter, alice),
		assigned("1002", "Ivan Petrov Group B", "01.02.2024", commission.SourceRecruiter, alice),
		assigned("1003", "Maria Sokolova Main", "15.12.2023", commission.SourceRecruiter, bob),
		assigned("1004", "Oleg Smirnov Retail", "03.01.2024", commission.SourceAccount, carol),
		unassigned("1005", "Anna Volkova Organic", "20.01.2024", commission.SourceOrganic),
	}
	prepayments := []commission.Prepayment{
		prepayment("1001", "15.01.2024", "2000"),
		prepayment("1001", "15.02.2024", "1500"),
		prepayment("1002", "05.03.2024", "2500"),
		prepayment("1003", "20.12.2023", "4000"),
		prepayment("1003", "10.01.2024", "3000"),
		prepayment("1004", "12.01.2024", "8000"),
		prepayment("1004", "12.03.2024", "4000"),
		prepayment("1005", "25.01.2024", "700"),
	}
	if err := h.saveFeeds(ctx, fgs, prepayments); err != nil {
		return err
	}

	if err := h.createRules(ctx,
		`{"id": "recruiter-base", "name": "Recruiter 10%", "managerType": "recruiter",
		  "managerIds": ["recruiter-1", "recruiter-2"], "paymentType": "percentage", "paymentValue": 10}`,
		`{"id": "account-base", "name": "Account 5%", "managerType": "account",
		  "managerIds": ["account-1"], "paymentType": "percentage", "paymentValue": 5}`,
	); err != nil {
		return err
	}
	return h.createMilestones(ctx,
		`{"id": "team-5k", "name": "5k club", "targetAmount": 5000,
		  "paymentType": "fixed", "paymentValue": 250, "managerGroup": "all"}`,
		`{"id": "accounts-10k", "name": "Accounts 10k", "targetAmount": 10000,
		  "paymentType": "percentage", "paymentValue": 1, "managerGroup": "accounts"}`,
	)
}

func (h *Handler) loadNewAgentsScenario(ctx context.Context) error {
	if err := h.saveManagers(ctx, alice, bob); err != nil {
		return err
	}

	fgs := []commission.FG{
		// New agent: started in the quarter, two FGs
		assigned("2001", "Dmitry Orlov First", "08.01.2024", commission.SourceRecruiter, alice),
		assigned("2002", "Dmitry Orlov Second", "14.02.2024", commission.SourceRecruiter, alice),
		// Veteran agent: started two years earlier
		assigned("2003", "Elena Kuznetsova Desk", "01.03.2022", commission.SourceRecruiter, alice),
		assigned("2004", "Pavel Morozov Shop", "20.02.2024", commission.SourceRecruiter, bob),
	}
	prepayments := []commission.Prepayment{
		prepayment("2001", "10.01.2024", "1200"),
		prepayment("2002", "16.02.2024", "900"),
		prepayment("2001", "01.03.2024", "600"),
		prepayment("2003", "15.05.2022", "5000"),
		prepayment("2003", "12.02.2024", "3000"),
		prepayment("2004", "22.02.2024", "1800"),
	}
	if err := h.saveFeeds(ctx, fgs, prepayments); err != nil {
		return err
	}

	return h.createRules(ctx,
		`{"id": "first-deposit", "name": "First deposit bonus", "managerIds": ["recruiter-1", "recruiter-2"],
		  "paymentType": "fixed", "paymentValue": 100, "applyTo": "firstPrepayment",
		  "constraints": {"periodOnly": true}}`,
		`{"id": "new-agents", "name": "New agents 7%", "managerIds": ["recruiter-1", "recruiter-2"],
		  "paymentType": "percentage", "paymentValue": 7, "applyTo": "all",
		  "constraints": {"newAgentsOnly": true, "newAgentsMonths": 6}}`,
		`{"id": "early-fg", "name": "Earliest FG 3%", "managerIds": ["recruiter-1"],
		  "paymentType": "percentage", "paymentValue": 3, "applyTo": "earlyFg",
		  "startDate": "2024-01-01", "endDate": "2024-12-31"}`,
	)
}

func (h *Handler) loadCapsThresholdsScenario(ctx context.Context) error {
	if err := h.saveManagers(ctx, alice, carol); err != nil {
		return err
	}

	fgs := []commission.FG{
		assigned("3001", "Sergey Lebedev Wholesale", "05.01.2023", commission.SourceRecruiter, alice),
		assigned("3002", "Sergey Lebedev Retail", "10.01.2024", commission.SourceRecruiter, alice),
		assigned("3003", "Olga Novikova Studio", "15.01.2024", commission.SourceRecruiter, alice),
		assigned("3004", "Nikolai Fedorov Trade", "02.02.2024", commission.SourceAccount, carol),
		assigned("3005", "Irina Popova Boutique", "11.02.2024", commission.SourceAccount, carol),
	}
	prepayments := []commission.Prepayment{
		prepayment("3001", "10.01.2023", "20000"),
		prepayment("3001", "10.01.2024", "6000"),
		prepayment("3002", "20.02.2024", "4000"),
		prepayment("3003", "25.01.2024", "800"),
		prepayment("3004", "05.02.2024", "12000"),
		prepayment("3005", "15.02.2024", "1500"),
	}
	if err := h.saveFeeds(ctx, fgs, prepayments); err != nil {
		return err
	}

	if err := h.createRules(ctx,
		`{"id": "capped-recruiter", "name": "Recruiter 10% capped", "managerIds": ["recruiter-1"],
		  "paymentType": "percentageWithCap", "paymentValue": 10, "constraints": {"maxPerPayment": 500}}`,
		`{"id": "big-groups", "name": "Big groups 2%", "managerIds": ["recruiter-1", "account-1"],
		  "paymentType": "percentage", "paymentValue": 2, "applyTo": "groupWithThreshold",
		  "constraints": {"minGroupThreshold": 10000, "newAgentsOnly": true, "newAgentsMonths": 3, "logic": "or"}}`,
	); err != nil {
		return err
	}

	personal, err := h.Factory.ParseRule([]byte(
		`{"name": "Carol loyalty", "paymentType": "percentage", "paymentValue": 4,
		  "constraints": {"maxPerPayment": 300}, "isPersonal": true}`))
	if err != nil {
		return err
	}
	if _, err := h.Service.AddPersonalRule(ctx, carol.ID, personal); err != nil {
		return err
	}

	return h.createMilestones(ctx,
		`{"id": "agent-5k", "name": "Agent 5k", "targetAmount": 5000, "paymentType": "percentageWithCap",
		  "paymentValue": 2, "maxPayment": 200, "managerGroup": "all", "scope": "agent"}`,
		`{"id": "alice-25k", "name": "Alice 25k", "targetAmount": 25000, "paymentType": "fixed",
		  "paymentValue": 1000, "managerGroup": "custom", "assignedManagers": ["recruiter-1"]}`,
	)
}

func (h *Handler) loadDirtyImportScenario(ctx context.Context) error {
	if err := h.saveManagers(ctx, alice, carol); err != nil {
		return err
	}

	fgs := []commission.FG{
		assigned("4001", "Timur Zaitsev Cafe", "нояб. 23 г.", commission.SourceRecruiter, alice),
		assigned(" 4002 ", "Timur Zaitsev Bar", "not a date", commission.SourceRecruiter, alice),
		assigned("4003", "Globex", "2024-01-17", commission.SourceAccount, carol),
		// Project/Promo FGs carry no manager and earn no commission
		unassigned("4004", "Vera Pavlova Online", "янв 24", commission.SourceProject),
		unassigned("4005", "", "", commission.SourcePromo),
	}
	prepayments := []commission.Prepayment{
		prepayment("4001", "янв. 24 г.", "1 234,56 $"),
		prepayment("4002.0", "2024-02-10", "$ 900"),
		prepayment("4003", "03/15/2024", "3500,5"),
		prepayment("4003", "garbage", "1000"),
		prepayment("4004", "20.01.2024", "2500"),
		prepayment("9999", "20.01.2024", "777"), // matches no FG
		prepayment("4001", "15.02.2024", "abc"),
	}
	if err := h.saveFeeds(ctx, fgs, prepayments); err != nil {
		return err
	}

	return h.createRules(ctx,
		`{"id": "everyone", "name": "Everyone 8%", "managerIds": ["recruiter-1", "account-1"],
		  "paymentType": "percentage", "paymentValue": 8}`,
	)
}

// =============================================================================
// SCENARIO HELPERS
// =============================================================================

func assigned(number, name, start string, source commission.Source, m commission.Manager) commission.FG {
	return commission.FG{Number: number, Name: name, StartDate: start, Source: source, Manager: m.Ref()}
}

func unassigned(number, name, start string, source commission.Source) commission.FG {
	return commission.FG{Number: number, Name: name, StartDate: start, Source: source}
}

func prepayment(fgNumber, period, amount string) commission.Prepayment {
	return commission.Prepayment{FGNumber: fgNumber, Period: period, Amount: amount}
}

func (h *Handler) saveManagers(ctx context.Context, managers ...commission.Manager) error {
	for _, m := range managers {
		if err := h.Service.SaveManager(ctx, m); err != nil {
			return fmt.Errorf("manager %s: %w", m.ID, err)
		}
	}
	return nil
}

// saveFeeds stores scenario feeds as-is, keeping their sources and managers.
func (h *Handler) saveFeeds(ctx context.Context, fgs []commission.FG, prepayments []commission.Prepayment) error {
	for _, fg := range fgs {
		if err := commission.ValidateAssignment(fg.Source, fg.Manager, nil); err != nil {
			return fmt.Errorf("fg %s: %w", fg.Number, err)
		}
	}
	if err := h.Service.Store.ReplaceFGs(ctx, fgs); err != nil {
		return err
	}
	return h.Service.ImportPrepayments(ctx, prepayments)
}

func (h *Handler) createRules(ctx context.Context, defs ...string) error {
	for _, def := range defs {
		rule, err := h.Factory.ParseRule([]byte(def))
		if err != nil {
			return err
		}
		if err := h.Service.SaveRule(ctx, rule); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) createMilestones(ctx context.Context, defs ...string) error {
	for _, def := range defs {
		m, err := h.Factory.ParseMilestone([]byte(def))
		if err != nil {
			return err
		}
		if err := h.Service.SaveMilestone(ctx, m); err != nil {
			return err
		}
	}
	return nil
}
