// Package memory provides an in-memory commission.Store for tests and demos.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Store keeps every collection in slices, in insertion order. Records are
// copied on the way in and out.
type Store struct {
	mu          sync.RWMutex
	fgs         []commission.FG
	prepayments []commission.Prepayment
	managers    keyed[commission.ManagerID, commission.Manager]
	rules       keyed[commission.RuleID, commission.Rule]
	milestones  keyed[commission.MilestoneID, commission.Milestone]
	settings    *commission.Settings
}

var _ commission.Store = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// ===== FGs =====

func (s *Store) ListFGs(_ context.Context) ([]commission.FG, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]commission.FG, len(s.fgs))
	for i, fg := range s.fgs {
		out[i] = copyFG(fg)
	}
	return out, nil
}

// GetFG returns the first FG whose number loosely equals number.
func (s *Store) GetFG(_ context.Context, number string) (commission.FG, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.findFG(number); i >= 0 {
		return copyFG(s.fgs[i]), nil
	}
	return commission.FG{}, fmt.Errorf("fg %s: %w", number, generic.ErrNotFound)
}

func (s *Store) ReplaceFGs(_ context.Context, fgs []commission.FG) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fgs = make([]commission.FG, len(fgs))
	for i, fg := range fgs {
		s.fgs[i] = copyFG(fg)
	}
	return nil
}

func (s *Store) SaveFGs(_ context.Context, fgs []commission.FG) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, fg := range fgs {
		i := s.findFG(fg.Number)
		if i < 0 {
			return fmt.Errorf("fg %s: %w", fg.Number, generic.ErrNotFound)
		}
		s.fgs[i] = copyFG(fg)
	}
	return nil
}

func (s *Store) findFG(number string) int {
	for i, fg := range s.fgs {
		if generic.LooseEqual(fg.Number, number) {
			return i
		}
	}
	return -1
}

// ===== Prepayments =====

func (s *Store) ListPrepayments(_ context.Context) ([]commission.Prepayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]commission.Prepayment, len(s.prepayments))
	for i, p := range s.prepayments {
		p.Extra = copyMap(p.Extra)
		out[i] = p
	}
	return out, nil
}

func (s *Store) ReplacePrepayments(_ context.Context, pps []commission.Prepayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prepayments = make([]commission.Prepayment, len(pps))
	for i, p := range pps {
		p.Extra = copyMap(p.Extra)
		s.prepayments[i] = p
	}
	return nil
}

// ===== Managers =====

func (s *Store) ListManagers(_ context.Context) ([]commission.Manager, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return mapSlice(s.managers.list(), copyManager), nil
}

func (s *Store) GetManager(_ context.Context, id commission.ManagerID) (commission.Manager, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.managers.get(id)
	if !ok {
		return commission.Manager{}, fmt.Errorf("manager %s: %w", id, generic.ErrNotFound)
	}
	return copyManager(m), nil
}

func (s *Store) SaveManager(_ context.Context, m commission.Manager) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.managers.put(m.ID, copyManager(m))
	return nil
}

func (s *Store) DeleteManager(_ context.Context, id commission.ManagerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.managers.remove(id) {
		return fmt.Errorf("manager %s: %w", id, generic.ErrNotFound)
	}
	return nil
}

// ===== Rules =====

func (s *Store) ListRules(_ context.Context) ([]commission.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return mapSlice(s.rules.list(), copyRule), nil
}

func (s *Store) SaveRule(_ context.Context, r commission.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules.put(r.ID, copyRule(r))
	return nil
}

func (s *Store) DeleteRule(_ context.Context, id commission.RuleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.rules.remove(id) {
		return fmt.Errorf("rule %s: %w", id, generic.ErrNotFound)
	}
	return nil
}

// ===== Milestones =====

func (s *Store) ListMilestones(_ context.Context) ([]commission.Milestone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return mapSlice(s.milestones.list(), copyMilestone), nil
}

func (s *Store) SaveMilestone(_ context.Context, m commission.Milestone) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.milestones.put(m.ID, copyMilestone(m))
	return nil
}

func (s *Store) DeleteMilestone(_ context.Context, id commission.MilestoneID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.milestones.remove(id) {
		return fmt.Errorf("milestone %s: %w", id, generic.ErrNotFound)
	}
	return nil
}

// ===== Settings =====

func (s *Store) GetSettings(_ context.Context) (commission.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.settings == nil {
		return commission.DefaultSettings(), nil
	}
	return copySettings(*s.settings), nil
}

func (s *Store) SaveSettings(_ context.Context, settings commission.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := copySettings(settings)
	s.settings = &c
	return nil
}

// Reset clears all data.
func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fgs = nil
	s.prepayments = nil
	s.managers = keyed[commission.ManagerID, commission.Manager]{}
	s.rules = keyed[commission.RuleID, commission.Rule]{}
	s.milestones = keyed[commission.MilestoneID, commission.Milestone]{}
	s.settings = nil
	return nil
}

// =============================================================================
// KEYED COLLECTION - map with insertion order
// =============================================================================

type keyed[K comparable, V any] struct {
	order []K
	items map[K]V
}

func (c *keyed[K, V]) put(k K, v V) {
	if c.items == nil {
		c.items = make(map[K]V)
	}
	if _, ok := c.items[k]; !ok {
		c.order = append(c.order, k)
	}
	c.items[k] = v
}

func (c *keyed[K, V]) get(k K) (V, bool) {
	v, ok := c.items[k]
	return v, ok
}

func (c *keyed[K, V]) remove(k K) bool {
	if _, ok := c.items[k]; !ok {
		return false
	}
	delete(c.items, k)
	for i, o := range c.order {
		if o == k {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

func (c *keyed[K, V]) list() []V {
	out := make([]V, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.items[k])
	}
	return out
}

// =============================================================================
// COPY HELPERS
// =============================================================================

func mapSlice[T any](in []T, f func(T) T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	for i, v := range in {
		out[i] = f(v)
	}
	return out
}

func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyFG(fg commission.FG) commission.FG {
	if fg.Manager != nil {
		ref := *fg.Manager
		fg.Manager = &ref
	}
	fg.Extra = copyMap(fg.Extra)
	return fg
}

func copyRule(r commission.Rule) commission.Rule {
	r.ManagerIDs = append([]commission.ManagerID(nil), r.ManagerIDs...)
	return r
}

func copyManager(m commission.Manager) commission.Manager {
	m.PersonalRules = mapSlice(m.PersonalRules, copyRule)
	return m
}

func copyMilestone(m commission.Milestone) commission.Milestone {
	m.AssignedManagers = append([]commission.ManagerID(nil), m.AssignedManagers...)
	return m
}

func copySettings(s commission.Settings) commission.Settings {
	weights := make(map[commission.Source]int, len(s.SourceWeights))
	for k, v := range s.SourceWeights {
		weights[k] = v
	}
	s.SourceWeights = weights
	return s
}
