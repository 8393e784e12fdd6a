// Package resilience provides the retry and concurrency-limiting primitives
// the image cache uses around its disk tier.
//
// Retry re-runs a disk write that failed for a transient reason (a full
// temporary directory, an interrupted rename) with exponential backoff.
// Errors wrapped with Permanent stop the loop immediately.
//
// Bulkhead bounds how many disk reads and decodes run at once, so that a
// burst of cold lookups cannot exhaust file descriptors or memory.
//
//	retry := resilience.NewRetry(resilience.RetryConfig{
//	    MaxAttempts:  3,
//	    InitialDelay: 10 * time.Millisecond,
//	})
//
//	err := retry.Execute(ctx, func(ctx context.Context) error {
//	    return disk.Put(ctx, entry)
//	})
package resilience
