package observe

// Instrumentation bundles the tracer, metrics and logger a cache component
// reports to.
//
// Contract:
//   - Concurrency: all parts are safe for concurrent use.
//   - Ownership: the zero value is not usable; use NewInstrumentation,
//     FromObserver or Nop.
type Instrumentation struct {
	Tracer  Tracer
	Metrics Metrics
	Logger  Logger
}

// NewInstrumentation creates an Instrumentation, substituting no-op
// implementations for nil parts.
func NewInstrumentation(tracer Tracer, metrics Metrics, logger Logger) *Instrumentation {
	if tracer == nil {
		tracer = NewNopTracer()
	}
	if metrics == nil {
		metrics = NewNopMetrics()
	}
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Instrumentation{
		Tracer:  tracer,
		Metrics: metrics,
		Logger:  logger,
	}
}

// Nop returns an Instrumentation that records nothing.
func Nop() *Instrumentation {
	return NewInstrumentation(nil, nil, nil)
}

// FromObserver creates an Instrumentation from an Observer.
// This is a convenience function for common use cases.
func FromObserver(obs Observer) (*Instrumentation, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewInstrumentation(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}
