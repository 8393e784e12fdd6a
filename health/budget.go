package health

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
)

// Usage is a snapshot of how many bytes a tier holds against its budget.
type Usage struct {
	UsedBytes   int64
	BudgetBytes int64 // <= 0 means unbounded

	// PinnedBytes is the part of UsedBytes that eviction may not reclaim.
	PinnedBytes int64
}

// UsageFunc reports the current usage of a tier.
type UsageFunc func(ctx context.Context) (Usage, error)

// BudgetCheckerConfig configures a BudgetChecker.
type BudgetCheckerConfig struct {
	// WarningThreshold is the used/budget ratio that reports degraded.
	// Value should be between 0 and 1. Default: 0.9
	WarningThreshold float64
}

// BudgetChecker reports a tier as degraded once it nears or exceeds its
// byte budget, and unhealthy when its usage cannot be read.
//
// A tier over budget is never unhealthy: entries that may not be evicted
// are allowed to push it past the limit.
type BudgetChecker struct {
	name   string
	usage  UsageFunc
	config BudgetCheckerConfig
}

// NewBudgetChecker creates a budget checker.
func NewBudgetChecker(name string, usage UsageFunc, config BudgetCheckerConfig) *BudgetChecker {
	if config.WarningThreshold <= 0 || config.WarningThreshold > 1 {
		config.WarningThreshold = 0.9
	}
	return &BudgetChecker{name: name, usage: usage, config: config}
}

// Name returns the name of this checker.
func (b *BudgetChecker) Name() string {
	return b.name
}

// Check compares the tier's usage with its budget.
func (b *BudgetChecker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("context cancelled", err)
	}

	u, err := b.usage(ctx)
	if err != nil {
		return Unhealthy("usage unavailable", fmt.Errorf("%w: %w", ErrCheckFailed, err))
	}

	details := map[string]any{
		"used_bytes":   u.UsedBytes,
		"budget_bytes": u.BudgetBytes,
		"pinned_bytes": u.PinnedBytes,
	}

	if u.BudgetBytes <= 0 {
		return Healthy("unbounded").WithDetails(details)
	}

	ratio := float64(u.UsedBytes) / float64(u.BudgetBytes)
	details["usage_percent"] = ratio * 100
	summary := fmt.Sprintf("%.1f%% (%s of %s)", ratio*100,
		humanize.IBytes(uint64(max(u.UsedBytes, 0))), humanize.IBytes(uint64(u.BudgetBytes)))

	switch {
	case u.UsedBytes > u.BudgetBytes:
		details["error"] = ErrOverBudget.Error()
		return Degraded("over budget: " + summary).WithDetails(details)
	case ratio >= b.config.WarningThreshold:
		return Degraded("usage high: " + summary).WithDetails(details)
	default:
		return Healthy("usage normal: " + summary).WithDetails(details)
	}
}
