package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/moolen/groundwork/internal/grouping"
	"github.com/moolen/groundwork/internal/logging"
	"github.com/moolen/groundwork/internal/registry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Assembler builds pipelines from the middleware registered in a source.
type Assembler struct {
	source registry.Source
	logger *logging.Logger
	tracer trace.Tracer
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithLogger replaces the assembler's logger.
func WithLogger(l *logging.Logger) Option {
	return func(a *Assembler) {
		a.logger = l
	}
}

// WithTracer sets the tracer used for build spans.
func WithTracer(t trace.Tracer) Option {
	return func(a *Assembler) {
		a.tracer = t
	}
}

// NewAssembler creates an assembler over src.
func NewAssembler(src registry.Source, opts ...Option) *Assembler {
	a := &Assembler{
		source: src,
		logger: logging.GetLogger("pipeline.assembler"),
		tracer: otel.GetTracerProvider().Tracer("groundwork.pipeline"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Build discovers middleware, orders phases by priority and resolves every
// member. The result does not change when registrations change afterwards.
func (a *Assembler) Build(ctx context.Context, priority []string) (*Pipeline, error) {
	ctx, span := a.tracer.Start(ctx, "pipeline.build")
	defer span.End()

	handles := a.source.FindByPredicate(registry.HasTag(registry.TagMiddleware))
	groups := grouping.Sort(handles, grouping.ByTag(registry.TagPhase, priority), priority)
	span.SetAttributes(attribute.StringSlice("pipeline.phases", grouping.Names(groups)))

	p := &Pipeline{phases: make([]phase, 0, len(groups))}
	for _, g := range groups {
		ph := phase{name: g.Name}
		for _, h := range g.Members {
			m, err := a.member(ctx, h)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "resolution failed")
				return nil, err
			}
			if m == nil {
				continue
			}
			ph.members = append(ph.members, *m)
		}
		if len(ph.members) > 0 {
			p.phases = append(p.phases, ph)
		}
	}

	a.logger.Debug("Assembled pipeline: %d phases, %d members", len(p.phases), p.Len())
	return p, nil
}

func (a *Assembler) member(ctx context.Context, h registry.Handle) (*member, error) {
	instance, err := a.source.Resolve(ctx, h)
	if err != nil {
		var resErr *registry.ResolutionError
		if errors.As(err, &resErr) {
			return nil, err
		}
		return nil, &registry.ResolutionError{Key: h.Key(), Err: err}
	}

	mw, ok := asMiddleware(instance)
	if !ok {
		a.logger.DebugWithFields("Skipping non-middleware instance",
			logging.Field("key", h.Key()),
			logging.Field("type", fmt.Sprintf("%T", instance)),
		)
		return nil, nil
	}

	path, _ := h.Tags().Get(registry.TagPath)
	return &member{key: h.Key(), path: normalizePath(path), mw: mw}, nil
}
