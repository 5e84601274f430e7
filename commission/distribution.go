package commission

import (
	"math/rand"
)

// =============================================================================
// SOURCE DISTRIBUTION
// =============================================================================
//
// Imported FGs carry no source or manager. The distributor fills both in:
// FGs are fuzzy-grouped into agents, each agent draws one source by weight,
// and Recruiter/Account agents draw one manager of the matching type. Every
// FG of the agent receives the same source, manager and Agent key.

// Distributor assigns sources and managers to FGs.
type Distributor struct {
	Rand        *rand.Rand
	MaxDistance int
}

// NewDistributor creates a distributor with the given random source.
func NewDistributor(r *rand.Rand) *Distributor {
	return &Distributor{Rand: r, MaxDistance: DefaultFuzzyDistance}
}

// DistributionSummary reports what one distribution run did.
type DistributionSummary struct {
	Agents    int
	FGs       int
	BySource  map[Source]int // agents per source
	ByManager map[ManagerID]int
}

// Distribute returns a reassigned copy of fgs in their original order. When
// the drawn source has no manager of the matching type, the agent falls back
// to SourceProject so that only Recruiter/Account FGs carry a manager.
func (d *Distributor) Distribute(fgs []FG, managers []Manager, weights map[Source]int) ([]FG, DistributionSummary) {
	summary := DistributionSummary{
		BySource:  make(map[Source]int),
		ByManager: make(map[ManagerID]int),
	}

	byType := make(map[ManagerType][]Manager)
	for _, m := range managers {
		byType[m.Type] = append(byType[m.Type], m)
	}

	keys, members := fuzzyMembers(fgs, d.MaxDistance)
	out := make([]FG, len(fgs))
	copy(out, fgs)
	for k, key := range keys {
		source := d.drawSource(weights)

		var ref *ManagerRef
		if source.HasManager() {
			pool := byType[source.ManagerType()]
			if len(pool) == 0 {
				source = SourceProject
			} else {
				m := pool[d.Rand.Intn(len(pool))]
				ref = m.Ref()
				summary.ByManager[m.ID]++
			}
		}
		summary.BySource[source]++

		for _, i := range members[k] {
			fg := &out[i]
			fg.Source = source
			fg.Agent = key
			fg.Manager = nil
			if ref != nil {
				r := *ref
				fg.Manager = &r
			}
		}
	}

	summary.Agents = len(keys)
	summary.FGs = len(out)
	return out, summary
}

// drawSource picks a source with probability proportional to its weight.
// All-zero weights yield SourceProject.
func (d *Distributor) drawSource(weights map[Source]int) Source {
	total := 0
	for _, s := range Sources {
		if w := weights[s]; w > 0 {
			total += w
		}
	}
	if total == 0 {
		return SourceProject
	}

	n := d.Rand.Intn(total)
	for _, s := range Sources {
		w := weights[s]
		if w <= 0 {
			continue
		}
		if n < w {
			return s
		}
		n -= w
	}
	return SourceProject
}
