// Package middleware provides the built-in pipeline members registered by the
// host. Each member is mounted in a phase of the same name.
package middleware

import (
	"github.com/moolen/groundwork/internal/logging"
	"github.com/moolen/groundwork/internal/pipeline"
	"github.com/moolen/groundwork/internal/registry"
	"github.com/prometheus/client_golang/prometheus"
)

// Built-in member keys. Each doubles as the member's phase name.
const (
	KeyRecover   = "recover"
	KeyRequestID = "request-id"
	KeyAccessLog = "access-log"
	KeyMetrics   = "metrics"
	KeyCORS      = "cors"
)

// DefaultOrder is the phase order used when none is configured.
var DefaultOrder = []string{KeyRecover, KeyRequestID, KeyAccessLog, KeyMetrics, KeyCORS}

// Builtin is one built-in member with the tags it registers with.
type Builtin struct {
	Key        string
	Path       string
	Middleware pipeline.Middleware
}

// Tags returns the registry tags for the member.
func (b Builtin) Tags() registry.Tags {
	tags := registry.Tags{
		registry.TagMiddleware: "",
		registry.TagPhase:      b.Key,
	}
	if b.Path != "" {
		tags[registry.TagPath] = b.Path
	}
	return tags
}

// Builtins returns the built-in members. HTTP metrics are registered on reg.
func Builtins(reg prometheus.Registerer) []Builtin {
	return []Builtin{
		{Key: KeyRecover, Middleware: Recover(logging.GetLogger("middleware.recover"))},
		{Key: KeyRequestID, Middleware: RequestID()},
		{Key: KeyAccessLog, Middleware: AccessLog(logging.GetLogger("middleware.access"))},
		{Key: KeyMetrics, Middleware: NewHTTPMetrics(reg)},
		{Key: KeyCORS, Path: "/api", Middleware: CORS()},
	}
}

// Register adds every built-in member to the container as a constant.
func Register(c *registry.Container, reg prometheus.Registerer) error {
	for _, b := range Builtins(reg) {
		if err := c.Constant(b.Key, b.Middleware, b.Tags()); err != nil {
			return err
		}
	}
	return nil
}
