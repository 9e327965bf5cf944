// Package pipeline assembles registered middleware into an ordered HTTP
// handler chain.
//
// Members are discovered by the "middleware" tag and bucketed into phases by
// their "phase" tag. Phases run in the configured priority order and members
// of a phase run in registration order. A member with a "path" tag only sees
// requests for that prefix; other requests bypass it.
package pipeline

import (
	"net/http"
	"strings"
)

// Middleware wraps the next handler in the chain.
type Middleware interface {
	Wrap(next http.Handler) http.Handler
}

// MiddlewareFunc adapts a plain function to Middleware.
type MiddlewareFunc func(next http.Handler) http.Handler

func (f MiddlewareFunc) Wrap(next http.Handler) http.Handler {
	return f(next)
}

// asMiddleware reports whether a resolved instance can be mounted.
func asMiddleware(instance any) (Middleware, bool) {
	switch m := instance.(type) {
	case Middleware:
		return m, true
	case func(http.Handler) http.Handler:
		return MiddlewareFunc(m), true
	default:
		return nil, false
	}
}

// MemberInfo describes one mounted member.
type MemberInfo struct {
	Key  string `json:"key"`
	Path string `json:"path,omitempty"`
}

// PhaseInfo describes one phase and its members in mount order.
type PhaseInfo struct {
	Name    string       `json:"name"`
	Members []MemberInfo `json:"members"`
}

type member struct {
	key  string
	path string
	mw   Middleware
}

type phase struct {
	name    string
	members []member
}

// wrap builds the phase's sub-pipeline around next.
func (p phase) wrap(next http.Handler) http.Handler {
	h := next
	for i := len(p.members) - 1; i >= 0; i-- {
		h = p.members[i].mount(h)
	}
	return h
}

func (m member) mount(next http.Handler) http.Handler {
	wrapped := m.mw.Wrap(next)
	if m.path == "" {
		return wrapped
	}
	prefix := m.path
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if underPrefix(r.URL.Path, prefix) {
			wrapped.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Pipeline is an immutable snapshot of the phases at build time.
type Pipeline struct {
	phases []phase
}

// Then returns a handler that runs every phase in order before final.
func (p *Pipeline) Then(final http.Handler) http.Handler {
	if final == nil {
		final = http.NotFoundHandler()
	}
	h := final
	for i := len(p.phases) - 1; i >= 0; i-- {
		h = p.phases[i].wrap(h)
	}
	return h
}

// Phases returns a copy of the phase layout.
func (p *Pipeline) Phases() []PhaseInfo {
	infos := make([]PhaseInfo, len(p.phases))
	for i, ph := range p.phases {
		members := make([]MemberInfo, len(ph.members))
		for j, m := range ph.members {
			members[j] = MemberInfo{Key: m.key, Path: m.path}
		}
		infos[i] = PhaseInfo{Name: ph.name, Members: members}
	}
	return infos
}

// Len returns the number of mounted members across all phases.
func (p *Pipeline) Len() int {
	n := 0
	for _, ph := range p.phases {
		n += len(ph.members)
	}
	return n
}

// normalizePath turns a path tag into a prefix. "" and "/" mean unscoped.
func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	path = strings.TrimRight(path, "/")
	return path
}

func underPrefix(path, prefix string) bool {
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix) && path[len(prefix)] == '/'
}
