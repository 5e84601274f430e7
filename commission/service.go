package commission

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/warp/commission-engine/generic"
)

// =============================================================================
// SERVICE - Store-backed operations
// =============================================================================

// Service ties the engine and distributor to a Store. It validates every
// configuration write; the engine only ever sees valid records.
type Service struct {
	Store       Store
	Engine      *Engine
	Distributor *Distributor
	Logger      *slog.Logger
}

// NewService creates a service with a default engine. The distributor is
// optional; Distribute fails without one.
func NewService(st Store, d *Distributor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{Store: st, Engine: NewEngine(), Distributor: d, Logger: logger}
}

// Report loads a snapshot and computes the report for the window.
func (s *Service) Report(ctx context.Context, w generic.Window) (Report, error) {
	snap, err := LoadSnapshot(ctx, s.Store)
	if err != nil {
		return Report{}, err
	}
	report := s.Engine.Compute(snap, w)
	s.Logger.DebugContext(ctx, "report computed",
		"window", w.String(),
		"fgs", len(snap.FGs),
		"prepayments", len(snap.Prepayments),
		"managers", len(report.Managers),
		"unassigned_agents", len(report.UnassignedAgents),
		"dropped_prepayments", report.DroppedPrepayments,
		"payout", report.Totals.Payout.StringFixed(2),
	)
	return report, nil
}

// FGStats returns every FG with its lifetime prepayment volume.
func (s *Service) FGStats(ctx context.Context) ([]FGVolume, error) {
	fgs, err := s.Store.ListFGs(ctx)
	if err != nil {
		return nil, err
	}
	pps, err := s.Store.ListPrepayments(ctx)
	if err != nil {
		return nil, err
	}
	return FGVolumes(fgs, pps), nil
}

// ===== Imports =====

// ImportFGs replaces every FG. Source and manager of imported rows are
// cleared; they are assigned afterwards.
func (s *Service) ImportFGs(ctx context.Context, fgs []FG) error {
	for i := range fgs {
		fgs[i].Source = SourceNone
		fgs[i].Manager = nil
	}
	if err := s.Store.ReplaceFGs(ctx, fgs); err != nil {
		return fmt.Errorf("import fgs: %w", err)
	}
	s.Logger.InfoContext(ctx, "fgs imported", "count", len(fgs))
	return nil
}

// ImportPrepayments replaces every prepayment. Rows are kept even when their
// FG number matches nothing; the engine drops them at computation time.
func (s *Service) ImportPrepayments(ctx context.Context, pps []Prepayment) error {
	if err := s.Store.ReplacePrepayments(ctx, pps); err != nil {
		return fmt.Errorf("import prepayments: %w", err)
	}
	s.Logger.InfoContext(ctx, "prepayments imported", "count", len(pps))
	return nil
}

// ===== Assignment =====

// Distribute reassigns sources and managers of every FG using the stored
// source weights.
func (s *Service) Distribute(ctx context.Context) (DistributionSummary, error) {
	if s.Distributor == nil {
		return DistributionSummary{}, fmt.Errorf("distribution not configured")
	}
	fgs, err := s.Store.ListFGs(ctx)
	if err != nil {
		return DistributionSummary{}, err
	}
	managers, err := s.Store.ListManagers(ctx)
	if err != nil {
		return DistributionSummary{}, err
	}
	settings, err := s.Store.GetSettings(ctx)
	if err != nil {
		return DistributionSummary{}, err
	}

	assigned, summary := s.Distributor.Distribute(fgs, managers, settings.SourceWeights)
	if err := s.Store.ReplaceFGs(ctx, assigned); err != nil {
		return DistributionSummary{}, fmt.Errorf("save distribution: %w", err)
	}
	s.Logger.InfoContext(ctx, "sources distributed", "agents", summary.Agents, "fgs", summary.FGs)
	return summary, nil
}

// AssignFG sets an FG's source and manager by hand.
func (s *Service) AssignFG(ctx context.Context, number string, source Source, managerID ManagerID) (FG, error) {
	fg, err := s.Store.GetFG(ctx, number)
	if err != nil {
		return FG{}, err
	}

	var ref *ManagerRef
	var manager *Manager
	if managerID != "" {
		m, err := s.Store.GetManager(ctx, managerID)
		if err != nil {
			return FG{}, err
		}
		ref, manager = m.Ref(), &m
	}
	if err := ValidateAssignment(source, ref, manager); err != nil {
		return FG{}, err
	}

	fg.Source = source
	fg.Manager = ref
	if err := s.Store.SaveFGs(ctx, []FG{fg}); err != nil {
		return FG{}, err
	}
	return fg, nil
}

// ===== Configuration =====

// SaveManager validates and stores a manager.
func (s *Service) SaveManager(ctx context.Context, m Manager) error {
	if err := m.Validate(); err != nil {
		return err
	}
	return s.Store.SaveManager(ctx, m)
}

// UpdateManager replaces an existing manager. Unless replaceRules is set the
// stored personal rules carry over, since they are edited on their own.
func (s *Service) UpdateManager(ctx context.Context, m Manager, replaceRules bool) (Manager, error) {
	stored, err := s.Store.GetManager(ctx, m.ID)
	if err != nil {
		return Manager{}, err
	}
	if !replaceRules {
		m.PersonalRules = stored.PersonalRules
	}
	if err := s.SaveManager(ctx, m); err != nil {
		return Manager{}, err
	}
	return m, nil
}

// AddPersonalRule attaches a rule to one manager.
func (s *Service) AddPersonalRule(ctx context.Context, id ManagerID, r Rule) (Manager, error) {
	m, err := s.Store.GetManager(ctx, id)
	if err != nil {
		return Manager{}, err
	}
	r.IsPersonal = true
	r.ManagerIDs = nil
	if r.ManagerType == "" {
		r.ManagerType = m.Type
	}
	if err := r.Validate(); err != nil {
		return Manager{}, err
	}
	m.PersonalRules = append(m.PersonalRules, r)
	if err := s.Store.SaveManager(ctx, m); err != nil {
		return Manager{}, err
	}
	return m, nil
}

// RemovePersonalRule detaches the personal rule with the given key.
func (s *Service) RemovePersonalRule(ctx context.Context, id ManagerID, key string) (Manager, error) {
	m, err := s.Store.GetManager(ctx, id)
	if err != nil {
		return Manager{}, err
	}
	kept := m.PersonalRules[:0:0]
	for _, r := range m.PersonalRules {
		if r.Key() != key {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(m.PersonalRules) {
		return Manager{}, fmt.Errorf("personal rule %s: %w", key, generic.ErrNotFound)
	}
	m.PersonalRules = kept
	if err := s.Store.SaveManager(ctx, m); err != nil {
		return Manager{}, err
	}
	return m, nil
}

// SaveRule validates and stores a group rule.
func (s *Service) SaveRule(ctx context.Context, r Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	return s.Store.SaveRule(ctx, r)
}

// SaveMilestone validates and stores a milestone.
func (s *Service) SaveMilestone(ctx context.Context, m Milestone) error {
	if err := m.Validate(); err != nil {
		return err
	}
	return s.Store.SaveMilestone(ctx, m)
}

// SaveSettings rejects negative weights and commission.
func (s *Service) SaveSettings(ctx context.Context, settings Settings) error {
	for src, w := range settings.SourceWeights {
		if !src.Valid() || src == SourceNone {
			return generic.Invalid(generic.ErrInvalidAssignment, "sourceWeights", "unknown source "+string(src))
		}
		if w < 0 {
			return generic.Invalid(generic.ErrInvalidAssignment, "sourceWeights."+string(src), "must not be negative")
		}
	}
	if settings.DefaultCommission.IsNegative() {
		return generic.Invalid(generic.ErrInvalidRule, "defaultCommission", "must not be negative")
	}
	return s.Store.SaveSettings(ctx, settings)
}

// ApplyConfig validates and stores preconfigured managers, rules and
// milestones, replacing records with the same IDs.
func (s *Service) ApplyConfig(ctx context.Context, managers []Manager, rules []Rule, milestones []Milestone) error {
	for _, m := range managers {
		if err := s.SaveManager(ctx, m); err != nil {
			return fmt.Errorf("manager %s: %w", m.ID, err)
		}
	}
	for _, r := range rules {
		if err := s.SaveRule(ctx, r); err != nil {
			return fmt.Errorf("rule %s: %w", r.ID, err)
		}
	}
	for _, m := range milestones {
		if err := s.SaveMilestone(ctx, m); err != nil {
			return fmt.Errorf("milestone %s: %w", m.ID, err)
		}
	}
	s.Logger.InfoContext(ctx, "configuration applied",
		"managers", len(managers), "rules", len(rules), "milestones", len(milestones))
	return nil
}

// Reset clears the store and re-seeds the default managers.
func (s *Service) Reset(ctx context.Context) error {
	if err := s.Store.Reset(ctx); err != nil {
		return fmt.Errorf("reset store: %w", err)
	}
	_, err := SeedDefaults(ctx, s.Store)
	return err
}
