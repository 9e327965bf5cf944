// Package registry defines the narrow view the host core has of the binding
// container: enumerate tagged handles, read their tags, resolve them to live
// instances. Container is the in-process implementation used by the host.
package registry

import "context"

// Well-known tag names.
const (
	// TagLifecycle marks a component that receives lifecycle sub-events.
	TagLifecycle = "lifecycle"
	// TagGroup names the lifecycle group explicitly.
	TagGroup = "group"
	// TagMiddleware marks a component mounted into the HTTP pipeline.
	TagMiddleware = "middleware"
	// TagPhase names the pipeline phase explicitly.
	TagPhase = "phase"
	// TagPath scopes a pipeline member to a path prefix.
	TagPath = "path"
	// TagVersion carries the component's semantic version.
	TagVersion = "version"
)

// Kind is how a handle produces its instance.
type Kind int

const (
	// KindConstant handles wrap a value supplied at registration.
	KindConstant Kind = iota
	// KindSingleton handles construct their instance once, on first resolve.
	KindSingleton
	// KindTransient handles construct a new instance on every resolve. They
	// never take part in discovery.
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindConstant:
		return "constant"
	case KindSingleton:
		return "singleton"
	case KindTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// Tags is the metadata attached to a handle. Order is irrelevant.
type Tags map[string]string

// Get returns the value of a tag.
func (t Tags) Get(key string) (string, bool) {
	v, ok := t[key]
	return v, ok
}

// Has reports whether the tag is present, whatever its value.
func (t Tags) Has(key string) bool {
	_, ok := t[key]
	return ok
}

// Handle is an opaque reference to a registered component. Handles are owned
// by the registry; callers must treat Tags as read-only.
type Handle interface {
	Key() string
	Kind() Kind
	Tags() Tags
}

// Predicate selects handles by their tags.
type Predicate func(Tags) bool

// HasTag matches handles carrying key.
func HasTag(key string) Predicate {
	return func(t Tags) bool { return t.Has(key) }
}

// TagEquals matches handles whose tag key has exactly value.
func TagEquals(key, value string) Predicate {
	return func(t Tags) bool {
		v, ok := t[key]
		return ok && v == value
	}
}

// All matches when every predicate matches.
func All(preds ...Predicate) Predicate {
	return func(t Tags) bool {
		for _, p := range preds {
			if !p(t) {
				return false
			}
		}
		return true
	}
}

// Finder enumerates constant and singleton handles matching a predicate in
// registration order.
type Finder interface {
	FindByPredicate(pred Predicate) []Handle
}

// Resolver produces the live instance behind a handle. It may block while a
// singleton is constructed and may fail.
type Resolver interface {
	Resolve(ctx context.Context, h Handle) (any, error)
}

// Source is everything the lifecycle notifier and pipeline assembler need.
type Source interface {
	Finder
	Resolver
}
