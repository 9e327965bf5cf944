package lifecycle

import "github.com/moolen/groundwork/internal/grouping"

// PlanGroup is one group of a computed plan.
type PlanGroup struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

// Plan is a snapshot of the notifier's current ordering.
type Plan struct {
	State    string      `json:"state"`
	Parallel bool        `json:"parallel"`
	Start    []PlanGroup `json:"start"`
	Stop     []PlanGroup `json:"stop"`
}

// Plan computes the start and stop order from the current registrations
// without invoking any component.
func (n *Notifier) Plan() Plan {
	cfg := n.Config()
	start := n.groups(cfg, TransitionStart)
	return Plan{
		State:    n.State().String(),
		Parallel: cfg.Parallel,
		Start:    planGroups(start),
		Stop:     planGroups(grouping.Reverse(start)),
	}
}

func planGroups(groups []grouping.Group) []PlanGroup {
	out := make([]PlanGroup, len(groups))
	for i, g := range groups {
		out[i] = PlanGroup{Name: g.Name, Members: g.Keys()}
	}
	return out
}
