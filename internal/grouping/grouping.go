// Package grouping partitions registry handles into named groups and orders
// the groups from a priority list. It is pure and synchronous; results are
// recomputed on every call so they always reflect the current registrations.
package grouping

import (
	"slices"
	"strings"

	"github.com/moolen/groundwork/internal/registry"
)

// Group is a named bucket of handles. Name "" is the ungrouped bucket.
// Members keep the order in which the registry enumerated them.
type Group struct {
	Name    string
	Members []registry.Handle
}

// Keys returns the member keys in order.
func (g Group) Keys() []string {
	keys := make([]string, len(g.Members))
	for i, h := range g.Members {
		keys[i] = h.Key()
	}
	return keys
}

// Classifier maps a handle to its group name.
type Classifier func(h registry.Handle) string

// Classify returns the group of h:
//  1. the value of tag tagKey, when present;
//  2. else the first name in known that h carries as a tag with the same value
//     (a marker tag such as {"db": "db"});
//  3. else "".
func Classify(h registry.Handle, tagKey string, known []string) string {
	tags := h.Tags()
	if len(tags) == 0 {
		return ""
	}
	if name, ok := tags[tagKey]; ok {
		return name
	}
	for _, name := range known {
		if v, ok := tags[name]; ok && v == name {
			return name
		}
	}
	return ""
}

// ByTag returns a Classifier bound to tagKey and the known group names.
func ByTag(tagKey string, known []string) Classifier {
	known = slices.Clone(known)
	return func(h registry.Handle) string {
		return Classify(h, tagKey, known)
	}
}

// Sort partitions handles with classify and orders the resulting groups:
// names found in priority come first by their (first) index, every other
// name follows in lexicographic order. A nil or empty priority yields pure
// alphabetical order. Unknown names in priority are ignored.
func Sort(handles []registry.Handle, classify Classifier, priority []string) []Group {
	members := make(map[string][]registry.Handle)
	var names []string
	for _, h := range handles {
		name := classify(h)
		if _, seen := members[name]; !seen {
			names = append(names, name)
		}
		members[name] = append(members[name], h)
	}

	rank := make(map[string]int, len(priority))
	for i, name := range priority {
		if _, dup := rank[name]; !dup {
			rank[name] = i
		}
	}

	slices.SortFunc(names, func(a, b string) int {
		ra, aListed := rank[a]
		rb, bListed := rank[b]
		switch {
		case aListed && bListed:
			return ra - rb
		case aListed:
			return -1
		case bListed:
			return 1
		default:
			return strings.Compare(a, b)
		}
	})

	groups := make([]Group, len(names))
	for i, name := range names {
		groups[i] = Group{Name: name, Members: members[name]}
	}
	return groups
}

// Reverse returns a new slice with the group order reversed. Member order
// inside each group is unchanged.
func Reverse(groups []Group) []Group {
	out := slices.Clone(groups)
	slices.Reverse(out)
	return out
}

// Names returns the group names in order.
func Names(groups []Group) []string {
	names := make([]string, len(groups))
	for i, g := range groups {
		names[i] = g.Name
	}
	return names
}
