package cache

import (
	"errors"
	"slices"
	"sync"

	"github.com/jonwraymond/imagecache/health"
	"github.com/jonwraymond/imagecache/observe"
)

// Registry maps namespaces to coordinators. Coordinators are created on
// first use and share the registry's memory and disk tiers, which are
// partitioned by namespace.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Ownership: Close closes every coordinator the registry created.
type Registry struct {
	opts options

	mu           sync.Mutex
	disk         *DiskTier
	coordinators map[string]*Coordinator
	closed       bool
}

// NewRegistry creates a registry. Options apply to every coordinator; a
// WithConfig option overrides cfg.
func NewRegistry(cfg Config, opts ...Option) *Registry {
	o := buildOptions(append([]Option{WithConfig(cfg)}, opts...))
	if o.memory == nil {
		o.memory = NewMemoryTier(o.config.MemoryBudgetBytes)
		o.memory.OnEvict(evictionRecorder(observe.TierMemory, o.metrics, o.logger))
	}
	return &Registry{
		opts:         o,
		disk:         o.disk,
		coordinators: make(map[string]*Coordinator),
	}
}

// Get returns the coordinator for namespace, creating it on first use.
func (r *Registry) Get(namespace string) (*Coordinator, error) {
	if err := ValidateNamespace(namespace); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	if c, ok := r.coordinators[namespace]; ok {
		return c, nil
	}

	if r.disk == nil {
		if err := r.opts.config.Validate(); err != nil {
			return nil, err
		}
		disk, err := NewDiskTier(r.opts.config.Root, r.opts.config.DiskBudgetBytes, r.opts.logger)
		if err != nil {
			return nil, err
		}
		disk.OnEvict(evictionRecorder(observe.TierDisk, r.opts.metrics, r.opts.logger))
		r.disk = disk
	}

	o := r.opts
	o.disk = r.disk
	c, err := newCoordinator(namespace, o)
	if err != nil {
		return nil, err
	}
	r.coordinators[namespace] = c
	return c, nil
}

// Default returns the coordinator for DefaultNamespace.
func (r *Registry) Default() (*Coordinator, error) {
	return r.Get(DefaultNamespace)
}

// Namespaces returns the namespaces created so far, sorted.
func (r *Registry) Namespaces() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.coordinators))
	for ns := range r.coordinators {
		out = append(out, ns)
	}
	slices.Sort(out)
	return out
}

// Health returns an aggregator over the health checkers of every
// coordinator created so far.
func (r *Registry) Health() *health.Aggregator {
	agg := health.NewAggregator()
	for _, ns := range r.Namespaces() {
		c, err := r.Get(ns)
		if err != nil {
			continue
		}
		for _, checker := range c.HealthCheckers() {
			agg.Register(checker.Name(), checker)
		}
	}
	return agg
}

// Close closes every coordinator and refuses further Get calls.
func (r *Registry) Close() error {
	r.mu.Lock()
	r.closed = true
	coordinators := make([]*Coordinator, 0, len(r.coordinators))
	for _, c := range r.coordinators {
		coordinators = append(coordinators, c)
	}
	r.mu.Unlock()

	var errs []error
	for _, c := range coordinators {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

var shared struct {
	once     sync.Once
	registry *Registry
}

// SharedRegistry returns the process-wide registry, created with
// DefaultConfig on first use.
func SharedRegistry() *Registry {
	shared.once.Do(func() {
		shared.registry = NewRegistry(DefaultConfig())
	})
	return shared.registry
}

// Shared returns the process-wide default coordinator. Tests should build
// their own coordinators with NewCoordinator or NewRegistry instead.
func Shared() (*Coordinator, error) {
	return SharedRegistry().Default()
}
