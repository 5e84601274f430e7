/*
handlers.go - HTTP API handlers for the commission engine

PURPOSE:
  Exposes the commission service via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the commission package.

ENDPOINTS:
  Managers:
    GET    /api/managers                      List managers
    POST   /api/managers                      Create manager
    GET    /api/managers/{id}                 Get manager
    PUT    /api/managers/{id}                 Replace manager
    DELETE /api/managers/{id}                 Delete manager
    POST   /api/managers/{id}/rules           Attach personal rule
    DELETE /api/managers/{id}/rules/{ruleID}  Detach personal rule

  Configuration:
    GET/POST /api/rules, DELETE /api/rules/{id}
    GET/POST /api/milestones, DELETE /api/milestones/{id}
    GET/PUT  /api/settings

  Data:
    GET    /api/fgs                           FGs with lifetime volume
    PUT    /api/fgs/{number}/assignment       Manual source/manager
    POST   /api/import/fgs                    Replace FGs (CSV/XLSX upload)
    POST   /api/import/prepayments            Replace prepayments
    POST   /api/distribution                  Random source distribution

  Report:
    GET    /api/report?start=&end=&hide_zero= Commission report

  Scenarios:
    GET    /api/scenarios                     List demo scenarios
    POST   /api/scenarios/load                Load a demo scenario
    POST   /api/reset                         Clear everything

CONCURRENCY:
  Every mutating handler takes the write lock; report and listing handlers
  take the read lock. A report is therefore always computed over a
  consistent snapshot.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, bad import files
  - 404: Record not found
  - 500: Internal errors (logged)

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/factory"
	"github.com/warp/commission-engine/generic"
	"github.com/warp/commission-engine/importer"
)

// maxUploadSize bounds import file uploads.
const maxUploadSize = 32 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *commission.Service
	Factory *factory.Factory
	Logger  *slog.Logger

	// mu serializes mutations against report computation.
	mu sync.RWMutex

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler around the service.
func NewHandler(svc *commission.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Service: svc,
		Factory: factory.New(),
		Logger:  logger,
	}
}

// =============================================================================
// MANAGER HANDLERS
// =============================================================================

// ListManagers returns all managers.
func (h *Handler) ListManagers(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	managers, err := h.Service.Store.ListManagers(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list managers", err)
		return
	}
	dtos := make([]factory.ManagerJSON, len(managers))
	for i, m := range managers {
		dtos[i] = factory.ManagerToJSON(m)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetManager returns one manager.
func (h *Handler) GetManager(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	m, err := h.Service.Store.GetManager(r.Context(), commission.ManagerID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, "Failed to get manager", err)
		return
	}
	writeJSON(w, http.StatusOK, factory.ManagerToJSON(m))
}

// CreateManager creates a manager from JSON.
func (h *Handler) CreateManager(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	m, err := h.factory(r).ParseManager(body)
	if err != nil {
		h.fail(w, r, "Invalid manager", err)
		return
	}
	if err := h.Service.SaveManager(r.Context(), m); err != nil {
		h.fail(w, r, "Failed to save manager", err)
		return
	}
	writeJSON(w, http.StatusCreated, factory.ManagerToJSON(m))
}

// UpdateManager replaces the manager at {id}. Personal rules are kept unless
// the body carries a personalRules field.
func (h *Handler) UpdateManager(w http.ResponseWriter, r *http.Request) {
	var mj factory.ManagerJSON
	if err := json.NewDecoder(r.Body).Decode(&mj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	mj.ID = chi.URLParam(r, "id")

	h.mu.Lock()
	defer h.mu.Unlock()

	m, err := h.factory(r).ManagerFromJSON(mj)
	if err != nil {
		h.fail(w, r, "Invalid manager", err)
		return
	}
	m, err = h.Service.UpdateManager(r.Context(), m, mj.PersonalRules != nil)
	if err != nil {
		h.fail(w, r, "Failed to update manager", err)
		return
	}
	writeJSON(w, http.StatusOK, factory.ManagerToJSON(m))
}

// DeleteManager removes a manager.
func (h *Handler) DeleteManager(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Service.Store.DeleteManager(r.Context(), commission.ManagerID(chi.URLParam(r, "id"))); err != nil {
		h.fail(w, r, "Failed to delete manager", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddPersonalRule attaches a rule to one manager.
func (h *Handler) AddPersonalRule(w http.ResponseWriter, r *http.Request) {
	var rj factory.RuleJSON
	if err := json.NewDecoder(r.Body).Decode(&rj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	rj.IsPersonal = true

	h.mu.Lock()
	defer h.mu.Unlock()

	rule, err := h.factory(r).RuleFromJSON(rj)
	if err != nil {
		h.fail(w, r, "Invalid rule", err)
		return
	}
	m, err := h.Service.AddPersonalRule(r.Context(), commission.ManagerID(chi.URLParam(r, "id")), rule)
	if err != nil {
		h.fail(w, r, "Failed to add personal rule", err)
		return
	}
	writeJSON(w, http.StatusCreated, factory.ManagerToJSON(m))
}

// RemovePersonalRule detaches a personal rule by key.
func (h *Handler) RemovePersonalRule(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, err := h.Service.RemovePersonalRule(r.Context(),
		commission.ManagerID(chi.URLParam(r, "id")), chi.URLParam(r, "ruleID"))
	if err != nil {
		h.fail(w, r, "Failed to remove personal rule", err)
		return
	}
	writeJSON(w, http.StatusOK, factory.ManagerToJSON(m))
}

// =============================================================================
// RULE & MILESTONE HANDLERS
// =============================================================================

// ListRules returns all group rules.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rules, err := h.Service.Store.ListRules(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list rules", err)
		return
	}
	dtos := make([]factory.RuleJSON, len(rules))
	for i, rule := range rules {
		dtos[i] = factory.RuleToJSON(rule)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateRule creates a group rule from JSON.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	rule, err := h.factory(r).ParseRule(body)
	if err != nil {
		h.fail(w, r, "Invalid rule", err)
		return
	}
	if err := h.Service.SaveRule(r.Context(), rule); err != nil {
		h.fail(w, r, "Failed to save rule", err)
		return
	}
	writeJSON(w, http.StatusCreated, factory.RuleToJSON(rule))
}

// DeleteRule removes a group rule.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Service.Store.DeleteRule(r.Context(), commission.RuleID(chi.URLParam(r, "id"))); err != nil {
		h.fail(w, r, "Failed to delete rule", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListMilestones returns all milestones.
func (h *Handler) ListMilestones(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	milestones, err := h.Service.Store.ListMilestones(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list milestones", err)
		return
	}
	dtos := make([]factory.MilestoneJSON, len(milestones))
	for i, m := range milestones {
		dtos[i] = factory.MilestoneToJSON(m)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateMilestone creates a milestone from JSON.
func (h *Handler) CreateMilestone(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	m, err := h.Factory.ParseMilestone(body)
	if err != nil {
		h.fail(w, r, "Invalid milestone", err)
		return
	}
	if err := h.Service.SaveMilestone(r.Context(), m); err != nil {
		h.fail(w, r, "Failed to save milestone", err)
		return
	}
	writeJSON(w, http.StatusCreated, factory.MilestoneToJSON(m))
}

// DeleteMilestone removes a milestone.
func (h *Handler) DeleteMilestone(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Service.Store.DeleteMilestone(r.Context(), commission.MilestoneID(chi.URLParam(r, "id"))); err != nil {
		h.fail(w, r, "Failed to delete milestone", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// SETTINGS HANDLERS
// =============================================================================

// GetSettings returns the current settings.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s, err := h.Service.Store.GetSettings(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to get settings", err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsDTO(s))
}

// UpdateSettings replaces the settings.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var dto SettingsDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	s := fromSettingsDTO(dto)
	if err := h.Service.SaveSettings(r.Context(), s); err != nil {
		h.fail(w, r, "Failed to save settings", err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsDTO(s))
}

// =============================================================================
// DATA HANDLERS
// =============================================================================

// ListFGs returns every FG with its lifetime prepayment volume.
func (h *Handler) ListFGs(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats, err := h.Service.FGStats(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list FGs", err)
		return
	}
	dtos := make([]FGDTO, len(stats))
	for i, v := range stats {
		dtos[i] = toFGDTO(v)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// AssignFG sets an FG's source and manager.
func (h *Handler) AssignFG(w http.ResponseWriter, r *http.Request) {
	var req AssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	fg, err := h.Service.AssignFG(r.Context(), chi.URLParam(r, "number"),
		commission.Source(req.Source), commission.ManagerID(req.ManagerID))
	if err != nil {
		h.fail(w, r, "Failed to assign FG", err)
		return
	}
	writeJSON(w, http.StatusOK, toFGDTO(commission.FGVolume{FG: fg}))
}

// ImportFGs replaces the FG feed from an uploaded file.
func (h *Handler) ImportFGs(w http.ResponseWriter, r *http.Request) {
	name, body, err := upload(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid upload", err)
		return
	}
	defer body.Close()

	fgs, err := importer.ReadFGs(name, body)
	if err != nil {
		h.fail(w, r, "Failed to import FGs", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Service.ImportFGs(r.Context(), fgs); err != nil {
		h.fail(w, r, "Failed to import FGs", err)
		return
	}
	writeJSON(w, http.StatusOK, ImportResponse{Imported: len(fgs)})
}

// ImportPrepayments replaces the prepayment feed from an uploaded file.
func (h *Handler) ImportPrepayments(w http.ResponseWriter, r *http.Request) {
	name, body, err := upload(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid upload", err)
		return
	}
	defer body.Close()

	pps, err := importer.ReadPrepayments(name, body)
	if err != nil {
		h.fail(w, r, "Failed to import prepayments", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Service.ImportPrepayments(r.Context(), pps); err != nil {
		h.fail(w, r, "Failed to import prepayments", err)
		return
	}
	writeJSON(w, http.StatusOK, ImportResponse{Imported: len(pps)})
}

// Distribute assigns random sources and managers to every FG.
func (h *Handler) Distribute(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	summary, err := h.Service.Distribute(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to distribute sources", err)
		return
	}
	writeJSON(w, http.StatusOK, toDistributionDTO(summary))
}

// =============================================================================
// REPORT HANDLER
// =============================================================================

// GetReport computes the commission report for an optional window.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	window, err := generic.ParseWindow(q.Get("start"), q.Get("end"))
	if err != nil {
		h.fail(w, r, "Invalid reporting window", err)
		return
	}
	hideZero := false
	if v := q.Get("hide_zero"); v != "" {
		if hideZero, err = strconv.ParseBool(v); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid hide_zero", err)
			return
		}
	}

	h.mu.RLock()
	report, err := h.Service.Report(r.Context(), window)
	h.mu.RUnlock()
	if err != nil {
		h.fail(w, r, "Failed to compute report", err)
		return
	}

	if hideZero {
		report = report.HideZeroCommission()
	}
	writeJSON(w, http.StatusOK, toReportDTO(report))
}

// =============================================================================
// HELPERS
// =============================================================================

// factory returns a factory whose default commission follows the settings.
func (h *Handler) factory(r *http.Request) *factory.Factory {
	s, err := h.Service.Store.GetSettings(r.Context())
	if err != nil {
		return h.Factory
	}
	f := *h.Factory
	f.DefaultCommission = s.DefaultCommission
	return &f
}

// upload returns the uploaded file: the "file" part of a multipart form, or
// the raw body named by the "filename" query parameter (default CSV).
func upload(w http.ResponseWriter, r *http.Request) (string, io.ReadCloser, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, err := r.FormFile("file")
		if err != nil {
			return "", nil, err
		}
		return header.Filename, file, nil
	}

	name := r.URL.Query().Get("filename")
	if name == "" {
		name = "upload.csv"
	}
	return name, r.Body, nil
}

// fail maps an error to its HTTP status and logs server-side failures.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	switch {
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case generic.IsClientError(err):
		resp := ErrorResponse{Error: message, Details: err.Error()}
		var verr *generic.ValidationError
		if errors.As(err, &verr) {
			resp.Field = verr.Field
		}
		writeJSON(w, http.StatusBadRequest, resp)
	default:
		h.Logger.ErrorContext(r.Context(), message,
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
		)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
