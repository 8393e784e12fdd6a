package cache

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/jonwraymond/imagecache/health"
)

// HealthCheckers returns checkers for this namespace: memory and disk
// usage against their budgets, writability of the namespace directory, and
// saturation of the disk lookup slots.
// Names are prefixed with "imagecache.<namespace>.".
func (c *Coordinator) HealthCheckers() []health.Checker {
	prefix := "imagecache." + c.namespace + "."
	return []health.Checker{
		health.NewBudgetChecker(prefix+"memory", func(context.Context) (health.Usage, error) {
			return tierUsage(c.memory.Stats(c.namespace)), nil
		}, health.BudgetCheckerConfig{}),
		health.NewBudgetChecker(prefix+"disk", func(context.Context) (health.Usage, error) {
			return tierUsage(c.disk.Stats(c.namespace)), nil
		}, health.BudgetCheckerConfig{}),
		health.NewDirChecker(prefix+"disk.dir", filepath.Join(c.disk.Root(), c.namespace)),
		health.NewCheckerFunc(prefix+"lookups", c.checkLookups),
	}
}

// checkLookups is degraded while every disk lookup slot is taken; further
// lookups wait and then miss.
func (c *Coordinator) checkLookups(context.Context) health.Result {
	m := c.bulkhead.Metrics()
	details := map[string]any{
		"active":         m.Active,
		"max_active":     m.MaxActive,
		"max_concurrent": m.MaxConcurrent,
		"rejected":       m.Rejected,
	}
	if m.Available <= 0 {
		return health.Degraded(fmt.Sprintf("all %d disk lookup slots busy", m.MaxConcurrent)).WithDetails(details)
	}
	return health.Healthy(fmt.Sprintf("%d of %d disk lookup slots busy", m.Active, m.MaxConcurrent)).WithDetails(details)
}

func tierUsage(s TierStats) health.Usage {
	return health.Usage{
		UsedBytes:   s.SizeBytes,
		BudgetBytes: s.BudgetBytes,
		PinnedBytes: s.PermanentBytes,
	}
}
