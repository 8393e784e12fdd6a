// Package health reports whether the image cache's storage is usable.
//
// A Checker reports a Result with one of three statuses: Healthy, Degraded
// or Unhealthy. BudgetChecker compares a tier's usage with its budget, and
// DirChecker verifies that a storage root exists and accepts writes. An
// Aggregator runs a set of checkers under one deadline and folds their
// results into an overall status.
//
//	agg := health.NewAggregator()
//	for _, c := range coordinator.HealthCheckers() {
//	    agg.Register(c.Name(), c)
//	}
//
//	results := agg.CheckAll(ctx)
//	if agg.OverallStatus(results) == health.StatusUnhealthy {
//	    // disk tier unusable; the cache still serves from memory
//	}
package health
