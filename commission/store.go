/*
store.go - Persistence interface for the commission record sets

PURPOSE:
  Defines the boundary between the engine and its storage. Every record set
  is a flat keyed collection; the engine only ever consumes a Snapshot of
  them, loaded once per pass.

COLLECTIONS:
  FGs:         Replaced wholesale on import; single records updated on assignment
  Prepayments: Replaced wholesale on import, otherwise immutable
  Managers:    CRUD, personal rules embedded in the record
  Rules:       CRUD
  Milestones:  CRUD
  Settings:    Single record (source weights, default commission)

ORDERING:
  List methods return records in insertion order. Import order matters to
  the engine (agent grouping, duplicate FG numbers, first-prepayment ties).

IMPLEMENTATIONS:
  - store/sqlite: SQLite, records kept as JSON documents
  - store/memory: In-memory for tests and demos

SEE ALSO:
  - service.go: Loads snapshots through this interface
*/
package commission

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STORE
// =============================================================================

// Store persists the commission record sets. Get and Delete methods return
// an error wrapping generic.ErrNotFound for unknown keys.
type Store interface {
	ListFGs(ctx context.Context) ([]FG, error)
	GetFG(ctx context.Context, number string) (FG, error)
	ReplaceFGs(ctx context.Context, fgs []FG) error
	// SaveFGs updates existing FGs in place, keyed by number.
	SaveFGs(ctx context.Context, fgs []FG) error

	ListPrepayments(ctx context.Context) ([]Prepayment, error)
	ReplacePrepayments(ctx context.Context, prepayments []Prepayment) error

	ListManagers(ctx context.Context) ([]Manager, error)
	GetManager(ctx context.Context, id ManagerID) (Manager, error)
	SaveManager(ctx context.Context, m Manager) error
	DeleteManager(ctx context.Context, id ManagerID) error

	ListRules(ctx context.Context) ([]Rule, error)
	SaveRule(ctx context.Context, r Rule) error
	DeleteRule(ctx context.Context, id RuleID) error

	ListMilestones(ctx context.Context) ([]Milestone, error)
	SaveMilestone(ctx context.Context, m Milestone) error
	DeleteMilestone(ctx context.Context, id MilestoneID) error

	// GetSettings returns DefaultSettings when nothing was saved yet.
	GetSettings(ctx context.Context) (Settings, error)
	SaveSettings(ctx context.Context, s Settings) error

	// Reset clears every collection.
	Reset(ctx context.Context) error
}

// LoadSnapshot reads every collection the engine consumes.
func LoadSnapshot(ctx context.Context, st Store) (Snapshot, error) {
	var s Snapshot
	var err error
	if s.FGs, err = st.ListFGs(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("load fgs: %w", err)
	}
	if s.Prepayments, err = st.ListPrepayments(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("load prepayments: %w", err)
	}
	if s.Rules, err = st.ListRules(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("load rules: %w", err)
	}
	if s.Milestones, err = st.ListMilestones(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("load milestones: %w", err)
	}
	if s.Managers, err = st.ListManagers(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("load managers: %w", err)
	}
	return s, nil
}

// =============================================================================
// SETTINGS
// =============================================================================

// Settings are the user-tunable defaults of the system.
type Settings struct {
	// SourceWeights drive random source distribution. Missing sources weigh 0.
	SourceWeights map[Source]int `json:"sourceWeights"`

	// DefaultCommission is the percent pre-filled into new rules.
	DefaultCommission decimal.Decimal `json:"defaultCommission"`
}

// DefaultSettings returns the factory defaults.
func DefaultSettings() Settings {
	return Settings{
		SourceWeights: map[Source]int{
			SourceRecruiter: 30,
			SourceAccount:   25,
			SourceProject:   25,
			SourceOrganic:   15,
			SourcePromo:     5,
		},
		DefaultCommission: decimal.NewFromInt(5),
	}
}

// =============================================================================
// DEFAULT MANAGERS
// =============================================================================

// DefaultManagers is the starting team created on an empty store.
func DefaultManagers() []Manager {
	return []Manager{
		{ID: "recruiter-1", Name: "Recruiter 1", Type: ManagerRecruiter},
		{ID: "recruiter-2", Name: "Recruiter 2", Type: ManagerRecruiter},
		{ID: "recruiter-3", Name: "Recruiter 3", Type: ManagerRecruiter},
		{ID: "account-1", Name: "Account Manager 1", Type: ManagerAccount},
	}
}

// SeedDefaults creates DefaultManagers for every manager type that has no
// record yet. Returns the number of managers created.
func SeedDefaults(ctx context.Context, st Store) (int, error) {
	existing, err := st.ListManagers(ctx)
	if err != nil {
		return 0, err
	}
	have := make(map[ManagerType]bool)
	for _, m := range existing {
		have[m.Type] = true
	}

	created := 0
	for _, m := range DefaultManagers() {
		if have[m.Type] {
			continue
		}
		if err := st.SaveManager(ctx, m); err != nil {
			return created, fmt.Errorf("seed manager %s: %w", m.ID, err)
		}
		created++
	}
	return created, nil
}
