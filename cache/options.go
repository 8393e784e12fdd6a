package cache

import (
	"context"

	"github.com/jonwraymond/imagecache/observe"
)

// Option configures a Coordinator or a Registry.
type Option func(*options)

type options struct {
	config    Config
	configSet bool
	memory    *MemoryTier
	disk      *DiskTier
	codec     Codec
	keyer     Keyer
	logger    observe.Logger
	metrics   observe.Metrics
	tracer    observe.Tracer
}

// WithConfig sets the configuration. Zero-valued fields are defaulted.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.config = cfg
		o.configSet = true
	}
}

// WithMemoryTier shares an existing memory tier instead of creating one.
func WithMemoryTier(m *MemoryTier) Option {
	return func(o *options) {
		o.memory = m
	}
}

// WithDiskTier shares an existing disk tier instead of creating one.
func WithDiskTier(d *DiskTier) Option {
	return func(o *options) {
		o.disk = d
	}
}

// WithCodec sets the codec used between the tiers. Default: PNGCodec.
func WithCodec(c Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

// WithKeyer sets the key deriver. Default: NewKeyer(Config.HeaderWhitelist...).
func WithKeyer(k Keyer) Option {
	return func(o *options) {
		o.keyer = k
	}
}

// WithLogger sets the logger. Default: a no-op logger.
func WithLogger(l observe.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics sets the metrics recorder. Default: no-op.
func WithMetrics(m observe.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithTracer sets the tracer. Default: no-op.
func WithTracer(t observe.Tracer) Option {
	return func(o *options) {
		o.tracer = t
	}
}

// WithInstrumentation sets tracer, metrics and logger from inst.
func WithInstrumentation(inst *observe.Instrumentation) Option {
	return func(o *options) {
		if inst == nil {
			return
		}
		o.tracer = inst.Tracer
		o.metrics = inst.Metrics
		o.logger = inst.Logger
	}
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if !o.configSet {
		o.config = DefaultConfig()
	}
	o.config.ApplyDefaults()
	if o.codec == nil {
		o.codec = PNGCodec{}
	}
	if o.keyer == nil {
		o.keyer = NewKeyer(o.config.HeaderWhitelist...)
	}
	if o.logger == nil {
		o.logger = observe.NewNopLogger()
	}
	if o.metrics == nil {
		o.metrics = observe.NewNopMetrics()
	}
	if o.tracer == nil {
		o.tracer = observe.NewNopTracer()
	}
	return o
}

// evictionRecorder reports tier evictions to metrics and the debug log.
func evictionRecorder(tier string, metrics observe.Metrics, logger observe.Logger) EvictFunc {
	return func(e Entry) {
		ctx := context.Background()
		metrics.RecordEviction(ctx, e.Namespace, tier)
		logger.Debug(ctx, "evicted entry",
			observe.Field{Key: "tier", Value: tier},
			observe.Field{Key: "namespace", Value: e.Namespace},
			observe.Field{Key: "key", Value: e.Key.String()},
			observe.Field{Key: "size_bytes", Value: e.SizeBytes},
		)
	}
}
