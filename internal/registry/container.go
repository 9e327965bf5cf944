package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-version"
	"github.com/moolen/groundwork/internal/logging"
	"golang.org/x/sync/singleflight"
)

// Factory constructs a component instance.
type Factory func(ctx context.Context) (any, error)

type binding struct {
	key     string
	kind    Kind
	tags    Tags
	value   any
	factory Factory
}

func (b *binding) Key() string { return b.key }
func (b *binding) Kind() Kind  { return b.kind }
func (b *binding) Tags() Tags  { return b.tags }

// Container is an in-memory binding container. Keys are unique; discovery
// returns handles in registration order. Safe for concurrent use.
type Container struct {
	mu        sync.RWMutex
	bindings  []*binding
	index     map[string]*binding
	instances map[string]any
	flight    singleflight.Group

	minVersion *version.Version
	logger     *logging.Logger
}

// Option configures a Container.
type Option func(*Container) error

// WithMinVersion rejects registrations whose version tag is older than min.
// Registrations without a version tag are accepted.
func WithMinVersion(min string) Option {
	return func(c *Container) error {
		if min == "" {
			return nil
		}
		v, err := version.NewVersion(min)
		if err != nil {
			return fmt.Errorf("invalid minimum component version %q: %w", min, err)
		}
		c.minVersion = v
		return nil
	}
}

// NewContainer creates an empty container.
func NewContainer(opts ...Option) (*Container, error) {
	c := &Container{
		index:     make(map[string]*binding),
		instances: make(map[string]any),
		logger:    logging.GetLogger("registry"),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Constant registers a pre-built value.
func (c *Container) Constant(key string, value any, tags Tags) error {
	return c.register(&binding{key: key, kind: KindConstant, tags: copyTags(tags), value: value})
}

// Singleton registers a lazily constructed, shared instance.
func (c *Container) Singleton(key string, factory Factory, tags Tags) error {
	if factory == nil {
		return fmt.Errorf("component %q: factory cannot be nil", key)
	}
	return c.register(&binding{key: key, kind: KindSingleton, tags: copyTags(tags), factory: factory})
}

// Transient registers a factory invoked on every Resolve. Transient handles
// are invisible to FindByPredicate.
func (c *Container) Transient(key string, factory Factory, tags Tags) error {
	if factory == nil {
		return fmt.Errorf("component %q: factory cannot be nil", key)
	}
	return c.register(&binding{key: key, kind: KindTransient, tags: copyTags(tags), factory: factory})
}

func (c *Container) register(b *binding) error {
	if b.key == "" {
		return fmt.Errorf("component key cannot be empty")
	}
	if err := c.checkVersion(b); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.index[b.key]; exists {
		return fmt.Errorf("component %q is already registered", b.key)
	}
	c.bindings = append(c.bindings, b)
	c.index[b.key] = b

	c.logger.Debug("Registered %s component %s (tags=%v)", b.kind, b.key, b.tags)
	return nil
}

func (c *Container) checkVersion(b *binding) error {
	if c.minVersion == nil {
		return nil
	}
	raw, ok := b.tags[TagVersion]
	if !ok {
		return nil
	}
	v, err := version.NewVersion(raw)
	if err != nil {
		return fmt.Errorf("component %q: invalid version %q: %w", b.key, raw, err)
	}
	if v.LessThan(c.minVersion) {
		return fmt.Errorf("component %q: version %s is below minimum %s", b.key, v, c.minVersion)
	}
	return nil
}

// Unregister removes a component and drops its cached singleton instance.
// Returns false if the key was unknown.
func (c *Container) Unregister(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.index[key]; !exists {
		return false
	}
	delete(c.index, key)
	delete(c.instances, key)
	for i, b := range c.bindings {
		if b.key == key {
			c.bindings = append(c.bindings[:i:i], c.bindings[i+1:]...)
			break
		}
	}
	return true
}

// Keys returns all registered keys in registration order, transients included.
func (c *Container) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, len(c.bindings))
	for i, b := range c.bindings {
		keys[i] = b.key
	}
	return keys
}

// FindByPredicate implements Finder. A nil predicate matches every
// constant and singleton handle.
func (c *Container) FindByPredicate(pred Predicate) []Handle {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var handles []Handle
	for _, b := range c.bindings {
		if b.kind == KindTransient {
			continue
		}
		if pred == nil || pred(b.tags) {
			handles = append(handles, b)
		}
	}
	return handles
}

// Resolve implements Resolver. Concurrent first resolutions of a singleton
// share one factory call; a failed construction is not cached.
func (c *Container) Resolve(ctx context.Context, h Handle) (any, error) {
	key := h.Key()

	c.mu.RLock()
	b, exists := c.index[key]
	instance, cached := c.instances[key]
	c.mu.RUnlock()

	if !exists {
		return nil, &ResolutionError{Key: key, Err: ErrNotRegistered}
	}

	switch b.kind {
	case KindConstant:
		return b.value, nil
	case KindTransient:
		v, err := b.factory(ctx)
		if err != nil {
			return nil, &ResolutionError{Key: key, Err: err}
		}
		return v, nil
	}

	if cached {
		return instance, nil
	}

	v, err, _ := c.flight.Do(key, func() (interface{}, error) {
		c.mu.RLock()
		existing, ok := c.instances[key]
		c.mu.RUnlock()
		if ok {
			return existing, nil
		}

		v, err := b.factory(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		// Unregistered while constructing: hand out the instance, do not cache it.
		if c.index[key] == b {
			c.instances[key] = v
		}
		return v, nil
	})
	if err != nil {
		c.logger.Warn("Failed to construct singleton %s: %v", key, err)
		return nil, &ResolutionError{Key: key, Err: err}
	}
	return v, nil
}

func copyTags(tags Tags) Tags {
	out := make(Tags, len(tags))
	for k, v := range tags {
		out[k] = v
	}
	return out
}
