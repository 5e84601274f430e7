package commission

import (
	"strings"

	"github.com/agext/levenshtein"
	"github.com/warp/commission-engine/generic"
)

// =============================================================================
// AGENT GROUPING
// =============================================================================

// UnknownAgent is the key used for FGs without a name.
const UnknownAgent = "Unknown"

// DefaultFuzzyDistance is the largest Levenshtein distance at which two
// extracted agent names are considered the same party.
const DefaultFuzzyDistance = 2

// AgentGroup is the set of FGs attributed to one referring party.
type AgentGroup struct {
	Key string

	// FGs in import order.
	FGs []FG

	// Manager of the first FG (import order) that carries one.
	Manager *ManagerRef

	// EarliestFGDate is the minimum parseable FG start date, nil if none parse.
	EarliestFGDate *generic.TimePoint
}

// ExtractAgentName derives an agent name from an FG display name:
// the first two whitespace-separated words.
func ExtractAgentName(fgName string) string {
	words := strings.Fields(fgName)
	if len(words) == 0 {
		return UnknownAgent
	}
	if len(words) > 2 {
		words = words[:2]
	}
	return strings.Join(words, " ")
}

// AgentKey returns the grouping key of an FG: its stored Agent, or the name
// extracted from its display name.
func AgentKey(fg FG) string {
	if fg.Agent != "" {
		return fg.Agent
	}
	return ExtractAgentName(fg.Name)
}

// GroupByKey groups FGs by AgentKey, preserving first-appearance order.
func GroupByKey(fgs []FG) []AgentGroup {
	index := make(map[string]int)
	var groups []AgentGroup
	for _, fg := range fgs {
		key := AgentKey(fg)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, AgentGroup{Key: key})
		}
		groups[i].FGs = append(groups[i].FGs, fg)
	}
	return finishGroups(groups)
}

// GroupFuzzy groups FGs by extracted name, merging names whose
// case-insensitive Levenshtein distance is at most maxDistance into the
// first-seen group. Stored Agent keys are ignored.
func GroupFuzzy(fgs []FG, maxDistance int) []AgentGroup {
	keys, members := fuzzyMembers(fgs, maxDistance)
	groups := make([]AgentGroup, len(keys))
	for i, key := range keys {
		groups[i].Key = key
		for _, j := range members[i] {
			groups[i].FGs = append(groups[i].FGs, fgs[j])
		}
	}
	return finishGroups(groups)
}

// FuzzyGrouping returns an Engine.Group function that groups with GroupFuzzy.
func FuzzyGrouping(maxDistance int) func([]FG) []AgentGroup {
	return func(fgs []FG) []AgentGroup {
		return GroupFuzzy(fgs, maxDistance)
	}
}

// fuzzyMembers returns group keys and, per group, the indices of its FGs.
func fuzzyMembers(fgs []FG, maxDistance int) ([]string, [][]int) {
	var keys, lowered []string
	var members [][]int
	for i, fg := range fgs {
		name := ExtractAgentName(fg.Name)
		lower := strings.ToLower(name)

		match := -1
		for k, existing := range lowered {
			if levenshtein.Distance(lower, existing, nil) <= maxDistance {
				match = k
				break
			}
		}
		if match < 0 {
			match = len(keys)
			keys = append(keys, name)
			lowered = append(lowered, lower)
			members = append(members, nil)
		}
		members[match] = append(members[match], i)
	}
	return keys, members
}

func finishGroups(groups []AgentGroup) []AgentGroup {
	for i := range groups {
		g := &groups[i]
		starts := make([]generic.TimePoint, 0, len(g.FGs))
		for _, fg := range g.FGs {
			if g.Manager == nil && fg.Manager != nil {
				ref := *fg.Manager
				g.Manager = &ref
			}
			starts = append(starts, fg.Start())
		}
		g.EarliestFGDate = generic.EarliestOf(starts...).Ptr()
	}
	return groups
}

// EarliestFGIndex returns the index of the FG with the earliest start date,
// or -1 for an empty group. Unparseable dates sort last; ties keep import order.
func (g AgentGroup) EarliestFGIndex() int {
	if len(g.FGs) == 0 {
		return -1
	}
	best := 0
	bestDate := g.FGs[0].Start()
	for i := 1; i < len(g.FGs); i++ {
		if d := g.FGs[i].Start(); d.SortsBefore(bestDate) {
			best, bestDate = i, d
		}
	}
	return best
}
