// Package lifecycle drives registered components through start and stop.
//
// Components tagged "lifecycle" are discovered from a registry.Source on
// every transition, classified into groups by their "group" tag (or a marker
// tag naming a configured group) and ordered by Config.Order. A transition is
// three sub-events; each sub-event visits every group in order before the next
// sub-event begins. Stop walks the groups in reverse.
//
//	n := lifecycle.NewNotifier(container, lifecycle.Config{
//	    Order:    []string{"telemetry", "db", "server"},
//	    Parallel: true,
//	})
//	if err := n.Start(ctx); err != nil {
//	    return err // boot failed, readiness undefined
//	}
//	defer n.Stop(context.Background())
//
// Start and Stop must not be called concurrently on the same Notifier.
package lifecycle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/moolen/groundwork/internal/grouping"
	"github.com/moolen/groundwork/internal/logging"
	"github.com/moolen/groundwork/internal/registry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Config is the ordering configuration of the notifier.
type Config struct {
	// Order lists group names by priority. Groups not listed run after the
	// listed ones, alphabetically.
	Order []string `yaml:"order"`
	// Parallel notifies the members of one group concurrently.
	Parallel bool `yaml:"parallel"`
}

// DefaultConfig returns an empty order with sequential groups.
func DefaultConfig() Config {
	return Config{}
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithHook adds an observability hook. The logging hook is always installed.
func WithHook(h Hook) Option {
	return func(n *Notifier) {
		n.hooks = append(n.hooks, h)
	}
}

// WithTracer sets the tracer used for transition spans.
func WithTracer(t trace.Tracer) Option {
	return func(n *Notifier) {
		n.tracer = t
	}
}

// WithLogger replaces the notifier's logger.
func WithLogger(l *logging.Logger) Option {
	return func(n *Notifier) {
		n.logger = l
	}
}

// Notifier walks lifecycle groups through start and stop.
type Notifier struct {
	source registry.Source
	logger *logging.Logger
	tracer trace.Tracer
	hooks  []Hook
	hook   Hook

	configMu sync.RWMutex
	config   Config

	state atomic.Int32
}

// NewNotifier creates a notifier over src.
func NewNotifier(src registry.Source, cfg Config, opts ...Option) *Notifier {
	n := &Notifier{
		source: src,
		config: cloneConfig(cfg),
		logger: logging.GetLogger("lifecycle.notifier"),
		tracer: otel.GetTracerProvider().Tracer("groundwork.lifecycle"),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.hook = Hooks(append([]Hook{NewLogHook(n.logger)}, n.hooks...)...)
	return n
}

// Config returns a copy of the current configuration.
func (n *Notifier) Config() Config {
	n.configMu.RLock()
	defer n.configMu.RUnlock()
	return cloneConfig(n.config)
}

// SetConfig replaces the configuration. Transitions already running keep the
// configuration they started with.
func (n *Notifier) SetConfig(cfg Config) {
	n.configMu.Lock()
	defer n.configMu.Unlock()
	n.config = cloneConfig(cfg)
}

// State returns the current state. Safe to call from any goroutine.
func (n *Notifier) State() State {
	return State(n.state.Load())
}

// Start runs preStart, start and postStart across all groups in order.
func (n *Notifier) Start(ctx context.Context) error {
	return n.run(ctx, TransitionStart)
}

// Stop runs preStop, stop and postStop across all groups in reverse order.
func (n *Notifier) Stop(ctx context.Context) error {
	return n.run(ctx, TransitionStop)
}

// Groups computes the current group order for a transition without invoking
// anything.
func (n *Notifier) Groups(t Transition) []grouping.Group {
	return n.groups(n.Config(), t)
}

func (n *Notifier) groups(cfg Config, t Transition) []grouping.Group {
	handles := n.source.FindByPredicate(registry.HasTag(registry.TagLifecycle))
	groups := grouping.Sort(handles, grouping.ByTag(registry.TagGroup, cfg.Order), cfg.Order)
	if t == TransitionStop {
		return grouping.Reverse(groups)
	}
	return groups
}

func (n *Notifier) run(ctx context.Context, t Transition) error {
	cfg := n.Config()
	n.state.Store(int32(t.activeState()))

	ctx, span := n.tracer.Start(ctx, "lifecycle."+t.String())
	defer span.End()

	groups := n.groups(cfg, t)
	span.SetAttributes(
		attribute.StringSlice("lifecycle.groups", grouping.Names(groups)),
		attribute.Bool("lifecycle.parallel", cfg.Parallel),
	)
	n.hook.GroupsComputed(ctx, t, groups)

	start := time.Now()
	for _, event := range t.Events() {
		for _, group := range groups {
			if err := n.notifyGroup(ctx, cfg, event, group); err != nil {
				n.state.Store(int32(StateFailed))
				span.RecordError(err)
				span.SetStatus(codes.Error, string(event)+" failed")
				n.hook.Failed(ctx, event, group, err)
				return err
			}
		}
	}

	n.state.Store(int32(t.doneState()))
	n.logger.Info("Lifecycle %s complete: %d groups (took %dms)", t, len(groups), time.Since(start).Milliseconds())
	return nil
}

// notifyGroup delivers one sub-event to every member of a group and returns
// the first error. In parallel mode every member is awaited before returning.
func (n *Notifier) notifyGroup(ctx context.Context, cfg Config, event Event, group grouping.Group) error {
	ctx, span := n.tracer.Start(ctx, "lifecycle."+string(event),
		trace.WithAttributes(
			attribute.String("lifecycle.group", group.Name),
			attribute.Int("lifecycle.members", len(group.Members)),
		))
	defer span.End()

	start := time.Now()
	var invoked atomic.Int32

	var err error
	if cfg.Parallel && len(group.Members) > 1 {
		var eg errgroup.Group
		for _, h := range group.Members {
			eg.Go(func() error {
				return n.notifyMember(ctx, event, group.Name, h, &invoked)
			})
		}
		err = eg.Wait()
	} else {
		for _, h := range group.Members {
			if err = n.notifyMember(ctx, event, group.Name, h, &invoked); err != nil {
				break
			}
		}
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	n.hook.GroupNotified(ctx, event, group, int(invoked.Load()), time.Since(start))
	return nil
}

func (n *Notifier) notifyMember(ctx context.Context, event Event, group string, h registry.Handle, invoked *atomic.Int32) error {
	instance, err := n.source.Resolve(ctx, h)
	if err != nil {
		var resErr *registry.ResolutionError
		if errors.As(err, &resErr) {
			return err
		}
		return &registry.ResolutionError{Key: h.Key(), Err: err}
	}

	method := event.bind(instance)
	if method == nil {
		return nil
	}
	invoked.Add(1)

	if err := method(ctx); err != nil {
		return &InvocationError{Key: h.Key(), Group: group, Event: event, Err: err}
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	return Config{
		Order:    append([]string(nil), cfg.Order...),
		Parallel: cfg.Parallel,
	}
}
