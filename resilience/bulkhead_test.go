package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewBulkhead_Defaults(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxWait: -time.Second})

	if b.config.MaxConcurrent != 8 {
		t.Errorf("MaxConcurrent = %d, want 8", b.config.MaxConcurrent)
	}
	if b.config.MaxWait != 0 {
		t.Errorf("MaxWait = %v, want 0", b.config.MaxWait)
	}
}

func TestBulkhead_AcquireRelease(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 2})
	ctx := context.Background()

	for i := range 2 {
		if err := b.Acquire(ctx); err != nil {
			t.Fatalf("Acquire() #%d error = %v", i+1, err)
		}
	}

	if err := b.Acquire(ctx); !errors.Is(err, ErrBulkheadFull) {
		t.Fatalf("Acquire() on full bulkhead error = %v, want ErrBulkheadFull", err)
	}

	b.Release()

	if err := b.Acquire(ctx); err != nil {
		t.Errorf("Acquire() after Release error = %v", err)
	}
}

func TestBulkhead_ReleaseWithoutAcquire(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1})
	b.Release()

	if got := b.Metrics().Active; got != 0 {
		t.Errorf("Active = %d, want 0", got)
	}
}

func TestBulkhead_WaitForSlot(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{
		MaxConcurrent: 1,
		MaxWait:       time.Second,
	})

	if err := b.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		b.Release()
	}()

	if err := b.Acquire(context.Background()); err != nil {
		t.Errorf("waiting Acquire() error = %v", err)
	}
}

func TestBulkhead_WaitTimeout(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{
		MaxConcurrent: 1,
		MaxWait:       10 * time.Millisecond,
	})

	if err := b.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	if err := b.Acquire(context.Background()); !errors.Is(err, ErrBulkheadFull) {
		t.Errorf("Acquire() error = %v, want ErrBulkheadFull", err)
	}
}

func TestBulkhead_ContextCancellation(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{
		MaxConcurrent: 1,
		MaxWait:       time.Minute,
	})

	if err := b.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	if err := b.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Acquire() error = %v, want context.Canceled", err)
	}
}

func TestBulkhead_Execute(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1})
	opErr := errors.New("decode failed")

	err := b.Execute(context.Background(), func(context.Context) error {
		if got := b.Metrics().Active; got != 1 {
			t.Errorf("Active during Execute = %d, want 1", got)
		}
		return opErr
	})
	if !errors.Is(err, opErr) {
		t.Errorf("Execute() error = %v, want %v", err, opErr)
	}
	if got := b.Metrics().Active; got != 0 {
		t.Errorf("Active after Execute = %d, want 0", got)
	}
}

func TestBulkhead_ExecuteFull(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 1})
	if err := b.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	ran := false
	err := b.Execute(context.Background(), func(context.Context) error {
		ran = true
		return nil
	})
	if !errors.Is(err, ErrBulkheadFull) {
		t.Errorf("Execute() error = %v, want ErrBulkheadFull", err)
	}
	if ran {
		t.Error("operation ran without a slot")
	}
}

func TestBulkhead_Concurrent(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{
		MaxConcurrent: 3,
		MaxWait:       time.Second,
	})

	var (
		wg      sync.WaitGroup
		current atomic.Int32
		peak    atomic.Int32
	)

	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := b.Execute(context.Background(), func(context.Context) error {
				n := current.Add(1)
				defer current.Add(-1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				return nil
			})
			if err != nil {
				t.Errorf("Execute() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if got := peak.Load(); got > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", got)
	}
	if got := b.Metrics().MaxActive; got > 3 {
		t.Errorf("MaxActive = %d, want <= 3", got)
	}
}

func TestBulkhead_Metrics(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxConcurrent: 2})
	ctx := context.Background()

	_ = b.Acquire(ctx)
	_ = b.Acquire(ctx)
	_ = b.Acquire(ctx) // rejected

	m := b.Metrics()
	want := BulkheadMetrics{
		Active:        2,
		MaxActive:     2,
		Available:     0,
		MaxConcurrent: 2,
		Rejected:      1,
	}
	if m != want {
		t.Errorf("Metrics() = %+v, want %+v", m, want)
	}
}
