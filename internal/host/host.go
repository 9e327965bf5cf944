// Package host wires the registry, the built-in components, the lifecycle
// notifier and the API server into a runnable application.
package host

import (
	"context"
	"fmt"

	"github.com/moolen/groundwork/internal/apiserver"
	"github.com/moolen/groundwork/internal/config"
	"github.com/moolen/groundwork/internal/lifecycle"
	"github.com/moolen/groundwork/internal/logging"
	"github.com/moolen/groundwork/internal/metrics"
	"github.com/moolen/groundwork/internal/middleware"
	"github.com/moolen/groundwork/internal/pipeline"
	"github.com/moolen/groundwork/internal/registry"
	"github.com/moolen/groundwork/internal/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Version is reported in trace resources and the CLI.
const Version = "0.1.0"

// Component keys registered by the host.
const (
	KeyTracing   = "tracing"
	KeyAPIServer = "apiserver"
)

// RegisterFunc adds application components to the container before the
// first transition.
type RegisterFunc func(c *registry.Container) error

// Option configures a Host.
type Option func(*options)

type options struct {
	register   []RegisterFunc
	registry   *prometheus.Registry
	extraHooks []lifecycle.Hook
}

// WithComponents registers application components.
func WithComponents(fn RegisterFunc) Option {
	return func(o *options) {
		o.register = append(o.register, fn)
	}
}

// WithMetricsRegistry uses reg instead of a fresh registry.
func WithMetricsRegistry(reg *prometheus.Registry) Option {
	return func(o *options) {
		o.registry = reg
	}
}

// WithHook adds a lifecycle hook next to the logging and metrics hooks.
func WithHook(h lifecycle.Hook) Option {
	return func(o *options) {
		o.extraHooks = append(o.extraHooks, h)
	}
}

// Host is the composition root.
type Host struct {
	cfg       *config.Config
	logger    *logging.Logger
	container *registry.Container
	registry  *prometheus.Registry
	tracing   *tracing.Provider
	notifier  *lifecycle.Notifier
	assembler *pipeline.Assembler
	server    *apiserver.Server
}

// New builds the container and registers the tracing provider, the built-in
// middleware, the API server and any application components.
func New(cfg *config.Config, opts ...Option) (*Host, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
		o.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	var containerOpts []registry.Option
	if cfg.Components.MinVersion != "" {
		containerOpts = append(containerOpts, registry.WithMinVersion(cfg.Components.MinVersion))
	}
	container, err := registry.NewContainer(containerOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create registry: %w", err)
	}

	provider, err := tracing.NewProvider(cfg.Tracing, Version)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracing provider: %w", err)
	}

	h := &Host{
		cfg:       cfg,
		logger:    logging.GetLogger("host"),
		container: container,
		registry:  o.registry,
		tracing:   provider,
	}

	hooks := append([]lifecycle.Hook{metrics.NewLifecycleHook(o.registry)}, o.extraHooks...)
	notifierOpts := []lifecycle.Option{lifecycle.WithTracer(provider.Tracer("groundwork.lifecycle"))}
	for _, hook := range hooks {
		notifierOpts = append(notifierOpts, lifecycle.WithHook(hook))
	}
	h.notifier = lifecycle.NewNotifier(container, lifecycleConfig(cfg), notifierOpts...)

	h.assembler = pipeline.NewAssembler(container, pipeline.WithTracer(provider.Tracer("groundwork.pipeline")))
	h.server = apiserver.New(apiserver.Config{
		Port:           cfg.Server.Port,
		PipelineOrder:  cfg.Pipeline.Order,
		Assembler:      h.assembler,
		Lifecycle:      h.notifier,
		Gatherer:       o.registry,
		TracerProvider: provider.TracerProvider(),
	})

	if err := h.registerBuiltins(); err != nil {
		return nil, err
	}
	for _, fn := range o.register {
		if err := fn(container); err != nil {
			return nil, fmt.Errorf("failed to register components: %w", err)
		}
	}

	h.logger.Debug("Host created with %d registrations", len(container.Keys()))
	return h, nil
}

func (h *Host) registerBuiltins() error {
	if err := h.container.Constant(KeyTracing, h.tracing, componentTags(tracing.Group)); err != nil {
		return fmt.Errorf("failed to register tracing provider: %w", err)
	}
	if err := middleware.Register(h.container, h.registry); err != nil {
		return fmt.Errorf("failed to register middleware: %w", err)
	}
	if err := h.container.Constant(KeyAPIServer, h.server, componentTags(apiserver.Group)); err != nil {
		return fmt.Errorf("failed to register API server: %w", err)
	}
	return nil
}

func componentTags(group string) registry.Tags {
	return registry.Tags{
		registry.TagLifecycle: "",
		registry.TagGroup:     group,
	}
}

func lifecycleConfig(cfg *config.Config) lifecycle.Config {
	return lifecycle.Config{
		Order:    cfg.Lifecycle.Order,
		Parallel: cfg.Lifecycle.Parallel,
	}
}

// Container exposes the registry for late registrations. They take effect on
// the next transition or pipeline rebuild.
func (h *Host) Container() *registry.Container {
	return h.container
}

// Notifier returns the lifecycle notifier.
func (h *Host) Notifier() *lifecycle.Notifier {
	return h.notifier
}

// Server returns the API server component.
func (h *Host) Server() *apiserver.Server {
	return h.server
}

// Start runs the start transition. A failed start leaves components in an
// undefined state; callers should treat it as fatal.
func (h *Host) Start(ctx context.Context) error {
	return h.notifier.Start(ctx)
}

// Stop runs the stop transition bounded by the configured shutdown timeout.
func (h *Host) Stop(ctx context.Context) error {
	if timeout := h.cfg.ShutdownTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return h.notifier.Stop(ctx)
}

// Run starts, blocks until ctx is done, then stops.
func (h *Host) Run(ctx context.Context) error {
	if err := h.Start(ctx); err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}
	h.logger.Info("Application started successfully")

	<-ctx.Done()
	h.logger.Info("Shutdown signal received, gracefully shutting down...")

	if err := h.Stop(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	h.logger.Info("Shutdown complete")
	return nil
}

// Reload applies a new configuration. Orders apply immediately: the pipeline
// is rebuilt and the next transition uses the new lifecycle order. Port,
// tracing and component settings need a restart.
func (h *Host) Reload(ctx context.Context, cfg *config.Config) error {
	h.notifier.SetConfig(lifecycleConfig(cfg))
	if err := h.server.Rebuild(ctx, cfg.Pipeline.Order); err != nil {
		return err
	}
	h.cfg.Lifecycle = cfg.Lifecycle
	h.cfg.Pipeline = cfg.Pipeline
	return nil
}

// Plan describes what Start would do without invoking any component.
type Plan struct {
	Lifecycle lifecycle.Plan       `json:"lifecycle"`
	Pipeline  []pipeline.PhaseInfo `json:"pipeline"`
}

// Plan computes the lifecycle order and assembles the pipeline. Assembling
// resolves middleware singletons.
func (h *Host) Plan(ctx context.Context) (Plan, error) {
	p, err := h.assembler.Build(ctx, h.cfg.Pipeline.Order)
	if err != nil {
		return Plan{}, err
	}
	return Plan{
		Lifecycle: h.notifier.Plan(),
		Pipeline:  p.Phases(),
	}, nil
}
