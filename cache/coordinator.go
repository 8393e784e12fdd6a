package cache

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/imagecache/observe"
	"github.com/jonwraymond/imagecache/resilience"
)

// CompletionFunc receives the result of CachedImage. img is nil on a miss.
type CompletionFunc func(req Request, img image.Image)

// Coordinator is the cache for one namespace. It derives keys, serves
// lookups from memory and then disk, and writes through to disk according
// to the permanence policy.
//
// Contract:
//   - Concurrency: safe for concurrent use. Concurrent lookups of the same
//     missing key share one disk read and decode.
//   - Ownership: disk writes run in the background; Wait and Close block
//     until they finish. Tiers passed in with options are not closed.
//   - Errors: background disk failures are logged, not returned.
//     CacheImageSync returns them wrapped in ErrPersistFailed or
//     ErrEncodeFailed.
type Coordinator struct {
	namespace string
	cfg       Config
	keyer     Keyer
	codec     Codec
	memory    *MemoryTier
	disk      *DiskTier

	logger  observe.Logger
	metrics observe.Metrics
	tracer  observe.Tracer

	lookups  singleflight.Group
	bulkhead *resilience.Bulkhead
	retry    *resilience.Retry

	// keys serializes the publish step of background writes with removals
	// of the same key.
	keys keyLocks

	// clearing is held exclusively while a tier is cleared and shared by
	// publishing writes, so a write either lands before a clear or sees
	// its new epoch.
	clearing sync.RWMutex

	mu           sync.Mutex
	reservations map[Key]bool
	tracked      map[Key]*keyState
	seq          uint64 // last mutation sequence number
	memoryEpoch  uint64
	diskEpoch    uint64
	purgeEpoch   uint64
	closed       bool

	wg sync.WaitGroup
}

// keyState tracks a key while it has pending disk writes or in-flight disk
// reads. Untracked keys have no state worth keeping.
type keyState struct {
	seq     uint64 // sequence of the latest mutation of the key
	writes  int
	readers int
	idle    chan struct{} // closed when writes drops to zero

	// A CacheRequest made while the write with sequence pinSeq was pending
	// overrides that write's permanence.
	repinned bool
	pin      bool
	pinSeq   uint64
}

// writeJob is one scheduled disk write. A remove job instead drops the
// persisted copy of a key whose latest value is kept in memory only.
type writeJob struct {
	key        Key
	img        image.Image
	data       []byte
	permanent  bool
	remove     bool
	seq        uint64
	diskEpoch  uint64
	purgeEpoch uint64
}

// CoordinatorStats describes the contents of one namespace.
type CoordinatorStats struct {
	Namespace    string
	Memory       TierStats
	Disk         TierStats
	Reservations int
	Lookups      resilience.BulkheadMetrics
}

// NewCoordinator creates a coordinator for namespace. Without WithMemoryTier
// or WithDiskTier it creates private tiers from the configuration.
func NewCoordinator(namespace string, opts ...Option) (*Coordinator, error) {
	if err := ValidateNamespace(namespace); err != nil {
		return nil, fmt.Errorf("%w: %q", err, namespace)
	}
	o := buildOptions(opts)
	if err := o.config.Validate(); err != nil {
		return nil, err
	}
	return newCoordinator(namespace, o)
}

func newCoordinator(namespace string, o options) (*Coordinator, error) {
	if o.memory == nil {
		o.memory = NewMemoryTier(o.config.MemoryBudgetBytes)
		o.memory.OnEvict(evictionRecorder(observe.TierMemory, o.metrics, o.logger))
	}
	if o.disk == nil {
		disk, err := NewDiskTier(o.config.Root, o.config.DiskBudgetBytes, o.logger)
		if err != nil {
			return nil, err
		}
		disk.OnEvict(evictionRecorder(observe.TierDisk, o.metrics, o.logger))
		o.disk = disk
	}

	logger := o.logger.With(observe.Field{Key: "namespace", Value: namespace})
	return &Coordinator{
		namespace: namespace,
		cfg:       o.config,
		keyer:     o.keyer,
		codec:     o.codec,
		memory:    o.memory,
		disk:      o.disk,
		logger:    logger,
		metrics:   o.metrics,
		tracer:    o.tracer,
		bulkhead: resilience.NewBulkhead(resilience.BulkheadConfig{
			MaxConcurrent: o.config.LookupConcurrency,
			MaxWait:       o.config.LookupMaxWait,
		}),
		retry: resilience.NewRetry(resilience.RetryConfig{
			MaxAttempts:  o.config.PersistAttempts,
			InitialDelay: 10 * time.Millisecond,
			MaxDelay:     time.Second,
			Jitter:       true,
			OnRetry:      retryLogger(logger),
		}),
		keys:         keyLocks{locks: make(map[string]*keyLock)},
		reservations: make(map[Key]bool),
		tracked:      make(map[Key]*keyState),
	}, nil
}

func retryLogger(logger observe.Logger) func(int, error, time.Duration) {
	return func(attempt int, err error, delay time.Duration) {
		logger.Debug(context.Background(), "persist attempt failed; retrying",
			observe.Field{Key: "attempt", Value: attempt},
			observe.Field{Key: "delay", Value: delay.String()},
			observe.Field{Key: "error", Value: err},
		)
	}
}

// Namespace returns the coordinator's namespace.
func (c *Coordinator) Namespace() string {
	return c.namespace
}

// Key derives the cache key for req.
func (c *Coordinator) Key(req Request) (Key, error) {
	key, err := c.keyer.Derive(req)
	if err != nil {
		if errors.Is(err, ErrInvalidRequest) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return key, nil
}

// CacheRequest records the permanence intent for req before its image is
// known. A later CacheImage for the same key stores a permanent entry if
// either call asked for one. If the key is already cached, its permanence
// is updated in both tiers. A reserved key without an image is a miss.
func (c *Coordinator) CacheRequest(req Request, permanent bool) error {
	key, err := c.Key(req)
	if err != nil {
		return err
	}
	if err := c.begin(); err != nil {
		return err
	}
	defer c.wg.Done()
	ctx := context.Background()

	c.mu.Lock()
	if permanent {
		c.reservations[key] = true
	} else {
		delete(c.reservations, key)
	}
	if !permanent && !c.cfg.PersistVolatile {
		// A volatile entry keeps no disk copy.
		job := c.scheduleLocked(key, nil, nil, false)
		job.remove = true
		c.mu.Unlock()
		c.memory.SetPermanent(c.namespace, key, false)
		go c.runWrite(ctx, job)
		return nil
	}
	// A pending write publishes the new permanence.
	st, pending := c.tracked[key]
	pending = pending && st.writes > 0
	if pending {
		st.repinned, st.pin, st.pinSeq = true, permanent, st.seq
	}
	c.mu.Unlock()

	inMemory := c.memory.SetPermanent(c.namespace, key, permanent)
	onDisk := c.setDiskPermanent(ctx, key, permanent)
	if !permanent || !inMemory || (onDisk && !pending) {
		return nil
	}

	// Becoming permanent while the persisted copy is missing or about to be
	// replaced: persist the memory image.
	e, ok := c.memory.Get(c.namespace, key)
	if !ok {
		return nil
	}
	c.mu.Lock()
	job := c.scheduleLocked(key, e.Image, nil, true)
	c.mu.Unlock()
	go c.runWrite(ctx, job)
	return nil
}

// begin takes a background-work token, failing once the coordinator is
// closed. The caller must release it with c.wg.Done.
func (c *Coordinator) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.wg.Add(1)
	return nil
}

// setDiskPermanent flips the persisted permanence flag and reports whether
// a persisted entry exists.
func (c *Coordinator) setDiskPermanent(ctx context.Context, key Key, permanent bool) bool {
	unlock := c.keys.lock(c.namespace, key)
	defer unlock()

	exists, err := c.disk.SetPermanent(ctx, c.namespace, key, permanent)
	if err != nil {
		c.logger.Warn(ctx, "update persisted permanence failed",
			observe.Field{Key: "key", Value: key.String()},
			observe.Field{Key: "error", Value: err},
		)
	}
	return exists
}

// CacheImage stores img for req. The memory write is immediate; the disk
// write, when the entry is permanent or PersistVolatile is set, runs in the
// background and its failures are logged.
func (c *Coordinator) CacheImage(ctx context.Context, img image.Image, req Request, permanent bool) error {
	return c.cacheImage(ctx, img, nil, req, permanent, false)
}

// CacheImageSync is CacheImage but waits for the disk write and returns
// its error, wrapping ErrPersistFailed or ErrEncodeFailed.
func (c *Coordinator) CacheImageSync(ctx context.Context, img image.Image, req Request, permanent bool) error {
	return c.cacheImage(ctx, img, nil, req, permanent, true)
}

// CacheData stores already encoded image bytes for req. The bytes are
// decoded for the memory tier and persisted unchanged. Undecodable data
// returns ErrDecodeFailed and caches nothing.
func (c *Coordinator) CacheData(ctx context.Context, data []byte, req Request, permanent bool) error {
	if _, err := c.Key(req); err != nil {
		return err
	}
	img, err := c.codec.Decode(data)
	if err != nil {
		if !errors.Is(err, ErrDecodeFailed) {
			err = fmt.Errorf("%w: %w", ErrDecodeFailed, err)
		}
		return err
	}
	return c.cacheImage(ctx, img, data, req, permanent, false)
}

func (c *Coordinator) cacheImage(ctx context.Context, img image.Image, data []byte, req Request, permanent, wait bool) error {
	if img == nil {
		return ErrNilImage
	}
	key, err := c.Key(req)
	if err != nil {
		return err
	}
	if err := c.begin(); err != nil {
		return err
	}
	defer c.wg.Done()

	c.mu.Lock()
	permanent = permanent || c.reservations[key]
	persist := permanent || c.cfg.PersistVolatile
	var job writeJob
	if persist {
		job = c.scheduleLocked(key, img, data, permanent)
	} else {
		// An older persisted copy must not outlive this value.
		job = c.scheduleLocked(key, nil, nil, false)
		job.remove = true
	}
	c.mu.Unlock()

	c.memory.Put(Entry{
		Key:       key,
		Namespace: c.namespace,
		Image:     img,
		SizeBytes: EstimateSize(img),
		Permanent: permanent,
	})
	c.metrics.RecordWrite(ctx, c.namespace, observe.TierMemory)

	if wait {
		return c.runWrite(ctx, job)
	}
	go c.runWrite(context.WithoutCancel(ctx), job)
	return nil
}

// scheduleLocked records a mutation of key that will be followed by a disk
// write, and returns the job for that write. Jobs scheduled earlier for the
// key become stale.
func (c *Coordinator) scheduleLocked(key Key, img image.Image, data []byte, permanent bool) writeJob {
	st := c.trackLocked(key)
	c.seq++
	st.seq = c.seq
	if st.writes == 0 {
		st.idle = make(chan struct{})
	}
	st.writes++
	c.wg.Add(1)
	return writeJob{
		key:        key,
		img:        img,
		data:       data,
		permanent:  permanent,
		seq:        st.seq,
		diskEpoch:  c.diskEpoch,
		purgeEpoch: c.purgeEpoch,
	}
}

// mutateLocked records a mutation of key with no disk write attached.
func (c *Coordinator) mutateLocked(key Key) {
	c.seq++
	if st, ok := c.tracked[key]; ok {
		st.seq = c.seq
	}
}

func (c *Coordinator) trackLocked(key Key) *keyState {
	st := c.tracked[key]
	if st == nil {
		st = &keyState{}
		c.tracked[key] = st
	}
	return st
}

func (c *Coordinator) untrackIdleLocked(key Key, st *keyState) {
	if st.writes == 0 && st.readers == 0 {
		delete(c.tracked, key)
	}
}

// lastMutationLocked returns the sequence of the latest mutation of a
// tracked key.
func (c *Coordinator) lastMutationLocked(key Key) uint64 {
	if st, ok := c.tracked[key]; ok {
		return st.seq
	}
	return 0
}

func (c *Coordinator) finishWrite(key Key) {
	c.mu.Lock()
	if st, ok := c.tracked[key]; ok {
		st.writes--
		if st.writes == 0 {
			close(st.idle)
			c.untrackIdleLocked(key, st)
		}
	}
	c.mu.Unlock()
	c.wg.Done()
}

// publishStateLocked reports whether job still reflects the latest state of
// its key, and the permanence to persist it with.
func (c *Coordinator) publishStateLocked(job writeJob) (permanent, current bool) {
	permanent = job.permanent
	st, ok := c.tracked[job.key]
	if !ok || st.seq != job.seq || c.purgeEpoch != job.purgeEpoch {
		return permanent, false
	}
	if st.repinned && st.pinSeq == job.seq {
		permanent = st.pin
	}
	return permanent, permanent || c.diskEpoch == job.diskEpoch
}

func (c *Coordinator) runWrite(ctx context.Context, job writeJob) (err error) {
	defer c.finishWrite(job.key)
	if job.remove {
		return c.dropPersisted(ctx, job)
	}

	ctx, span := c.tracer.StartSpan(ctx, observe.Operation{
		Name:      "disk_write",
		Namespace: c.namespace,
		Key:       job.key.String(),
	})
	defer func() { c.tracer.EndSpan(span, err) }()

	data := job.data
	if data == nil {
		data, err = c.codec.Encode(job.img)
		if err != nil {
			if !errors.Is(err, ErrEncodeFailed) {
				err = fmt.Errorf("%w: %w", ErrEncodeFailed, err)
			}
			c.metrics.RecordPersistFailure(ctx, c.namespace)
			c.logger.Error(ctx, "encode failed; entry kept in memory only",
				observe.Field{Key: "key", Value: job.key.String()},
				observe.Field{Key: "error", Value: err},
			)
			return err
		}
	}

	unlock := c.keys.lock(c.namespace, job.key)
	defer unlock()
	c.clearing.RLock()
	defer c.clearing.RUnlock()

	c.mu.Lock()
	permanent, current := c.publishStateLocked(job)
	c.mu.Unlock()
	if !current {
		c.logger.Debug(ctx, "discarding superseded disk write",
			observe.Field{Key: "key", Value: job.key.String()},
		)
		return nil
	}

	err = c.retry.Execute(ctx, func(ctx context.Context) error {
		err := c.disk.Put(ctx, Entry{
			Key:       job.key,
			Namespace: c.namespace,
			Data:      data,
			Permanent: permanent,
		})
		if errors.Is(err, ErrInvalidNamespace) || errors.Is(err, ErrInvalidKey) {
			return resilience.Permanent(err)
		}
		return err
	})
	if err != nil {
		c.metrics.RecordPersistFailure(ctx, c.namespace)
		c.logger.Warn(ctx, "persist failed",
			observe.Field{Key: "key", Value: job.key.String()},
			observe.Field{Key: "permanent", Value: permanent},
			observe.Field{Key: "error", Value: err},
		)
		if !errors.Is(err, ErrPersistFailed) {
			err = fmt.Errorf("%w: %w", ErrPersistFailed, err)
		}
		return err
	}
	c.metrics.RecordWrite(ctx, c.namespace, observe.TierDisk)
	return nil
}

// dropPersisted removes the disk copy of a key whose latest value is
// memory-only, unless a later mutation took over the key.
func (c *Coordinator) dropPersisted(ctx context.Context, job writeJob) error {
	unlock := c.keys.lock(c.namespace, job.key)
	defer unlock()

	c.mu.Lock()
	current := c.lastMutationLocked(job.key) == job.seq
	c.mu.Unlock()
	if !current || !c.disk.Contains(c.namespace, job.key) {
		return nil
	}
	if err := c.disk.Remove(c.namespace, job.key); err != nil {
		c.logger.Warn(ctx, "drop superseded disk entry failed",
			observe.Field{Key: "key", Value: job.key.String()},
			observe.Field{Key: "error", Value: err},
		)
		return fmt.Errorf("%w: remove %s: %w", ErrPersistFailed, job.key, err)
	}
	return nil
}

// CachedImage looks up req and calls onDone exactly once with the image, or
// with nil on a miss. A memory hit calls onDone before CachedImage returns;
// otherwise the disk lookup runs in the background. When the request is
// invalid or the coordinator is closed, the error is returned and onDone is
// not called.
func (c *Coordinator) CachedImage(req Request, onDone CompletionFunc) error {
	key, err := c.Key(req)
	if err != nil {
		return err
	}
	if err := c.begin(); err != nil {
		return err
	}
	if onDone == nil {
		onDone = func(Request, image.Image) {}
	}
	ctx := context.Background()

	if img, ok := c.memoryLookup(ctx, key); ok {
		c.wg.Done()
		onDone(req, img)
		return nil
	}

	go func() {
		defer c.wg.Done()
		onDone(req, c.diskLookup(ctx, key))
	}()
	return nil
}

// Lookup is the synchronous form of CachedImage. It reports a miss when ctx
// ends before the disk lookup completes.
func (c *Coordinator) Lookup(ctx context.Context, req Request) (image.Image, bool, error) {
	key, err := c.Key(req)
	if err != nil {
		return nil, false, err
	}
	if err := c.begin(); err != nil {
		return nil, false, err
	}
	defer c.wg.Done()

	if img, ok := c.memoryLookup(ctx, key); ok {
		return img, true, nil
	}
	img := c.diskLookup(ctx, key)
	return img, img != nil, nil
}

func (c *Coordinator) memoryLookup(ctx context.Context, key Key) (image.Image, bool) {
	e, ok := c.memory.Get(c.namespace, key)
	if !ok {
		return nil, false
	}
	c.metrics.RecordLookup(ctx, c.namespace, observe.ResultMemoryHit)
	return e.Image, true
}

// diskLookup reads key through from disk, sharing the read with concurrent
// lookups of the same key. Returns nil on a miss. The caller must hold a
// background-work token.
func (c *Coordinator) diskLookup(ctx context.Context, key Key) image.Image {
	res := make(chan image.Image, 1)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		v, _, _ := c.lookups.Do(c.namespace+"/"+key.String(), func() (any, error) {
			return c.readThrough(context.WithoutCancel(ctx), key), nil
		})
		img, _ := v.(image.Image)
		res <- img
	}()

	var img image.Image
	select {
	case img = <-res:
	case <-ctx.Done():
	}

	result := observe.ResultDiskHit
	if img == nil {
		result = observe.ResultMiss
	}
	c.metrics.RecordLookup(ctx, c.namespace, result)
	return img
}

func (c *Coordinator) readThrough(ctx context.Context, key Key) (img image.Image) {
	ctx, span := c.tracer.StartSpan(ctx, observe.Operation{
		Name:      "disk_lookup",
		Namespace: c.namespace,
		Key:       key.String(),
	})
	var spanErr error
	defer func() {
		result := observe.ResultDiskHit
		if img == nil {
			result = observe.ResultMiss
		}
		span.SetAttributes(attribute.String("cache.result", result))
		c.tracer.EndSpan(span, spanErr)
	}()

	c.mu.Lock()
	st := c.trackLocked(key)
	st.readers++
	var idle chan struct{}
	if st.writes > 0 {
		idle = st.idle
	}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		st.readers--
		c.untrackIdleLocked(key, st)
		c.mu.Unlock()
	}()

	// Read our own writes: wait for pending disk writes of this key.
	if idle != nil {
		<-idle
	}

	c.mu.Lock()
	snapshot, epoch := c.seq, c.memoryEpoch
	c.mu.Unlock()

	// An earlier flight for this key may have promoted it already.
	if e, ok := c.memory.Get(c.namespace, key); ok {
		return e.Image
	}

	var (
		e     Entry
		ok    bool
		start time.Time
	)
	err := c.bulkhead.Execute(ctx, func(ctx context.Context) error {
		start = time.Now()
		e, ok = c.disk.Get(ctx, c.namespace, key)
		if ok {
			img, spanErr = c.codec.Decode(e.Data)
		}
		return nil
	})
	if err != nil {
		c.logger.Debug(ctx, "disk lookup rejected",
			observe.Field{Key: "key", Value: key.String()},
			observe.Field{Key: "error", Value: err},
		)
		return nil
	}
	if !ok {
		return nil
	}
	c.metrics.RecordDiskRead(ctx, c.namespace, time.Since(start))

	if spanErr != nil {
		c.logger.Warn(ctx, "decode failed; dropping disk entry",
			observe.Field{Key: "key", Value: key.String()},
			observe.Field{Key: "error", Value: spanErr},
		)
		c.dropUndecodable(key, snapshot)
		return nil
	}

	c.mu.Lock()
	if !c.closed && c.lastMutationLocked(key) <= snapshot && c.memoryEpoch == epoch {
		c.memory.Put(Entry{
			Key:       key,
			Namespace: c.namespace,
			Image:     img,
			SizeBytes: EstimateSize(img),
			Permanent: e.Permanent,
		})
		c.metrics.RecordWrite(ctx, c.namespace, observe.TierMemory)
	}
	c.mu.Unlock()
	return img
}

// dropUndecodable removes a persisted entry that failed to decode, unless
// the key was rewritten after the read.
func (c *Coordinator) dropUndecodable(key Key, snapshot uint64) {
	unlock := c.keys.lock(c.namespace, key)
	defer unlock()

	c.mu.Lock()
	stale := c.lastMutationLocked(key) > snapshot
	c.mu.Unlock()
	if stale {
		return
	}
	_ = c.disk.Remove(c.namespace, key)
}

// RemoveImage removes req from both tiers and drops its reservation. Pending
// disk writes for the key are discarded. Idempotent.
func (c *Coordinator) RemoveImage(req Request) error {
	key, err := c.Key(req)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.mutateLocked(key)
	delete(c.reservations, key)
	c.mu.Unlock()

	c.memory.Remove(c.namespace, key)

	unlock := c.keys.lock(c.namespace, key)
	err = c.disk.Remove(c.namespace, key)
	unlock()
	if err != nil {
		c.logger.Warn(context.Background(), "remove from disk failed",
			observe.Field{Key: "key", Value: key.String()},
			observe.Field{Key: "error", Value: err},
		)
		return fmt.Errorf("cache: remove %s: %w", key, err)
	}
	return nil
}

// FlushMemory drops volatile entries from the memory tier. Permanent
// entries and the disk tier are untouched.
func (c *Coordinator) FlushMemory() {
	c.mu.Lock()
	c.memoryEpoch++
	c.mu.Unlock()

	before := c.memory.Stats(c.namespace).Entries
	c.memory.Clear(c.namespace)
	c.logger.Info(context.Background(), "flushed memory tier",
		observe.Field{Key: "removed", Value: before - c.memory.Stats(c.namespace).Entries},
	)
}

// FlushDisk drops volatile entries from the disk tier, including volatile
// writes still pending. Permanent entries and the memory tier are untouched.
func (c *Coordinator) FlushDisk() error {
	c.clearing.Lock()
	defer c.clearing.Unlock()

	c.mu.Lock()
	c.diskEpoch++
	c.mu.Unlock()

	before := c.disk.Stats(c.namespace).Entries
	err := c.disk.Clear(c.namespace)
	c.logger.Info(context.Background(), "flushed disk tier",
		observe.Field{Key: "removed", Value: before - c.disk.Stats(c.namespace).Entries},
	)
	if err != nil {
		return fmt.Errorf("cache: flush disk: %w", err)
	}
	return nil
}

// Purge removes every entry from both tiers, permanent ones included, and
// drops all reservations.
func (c *Coordinator) Purge() error {
	c.clearing.Lock()
	defer c.clearing.Unlock()

	c.mu.Lock()
	c.memoryEpoch++
	c.diskEpoch++
	c.purgeEpoch++
	clear(c.reservations)
	c.mu.Unlock()

	c.memory.ClearAll(c.namespace)
	err := c.disk.ClearAll(c.namespace)
	c.logger.Info(context.Background(), "purged namespace")
	if err != nil {
		return fmt.Errorf("cache: purge disk: %w", err)
	}
	return nil
}

// Wait blocks until background disk writes and lookups started so far have
// finished. It must not race with calls that start new background work;
// use Close for a final barrier.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Close waits for background work and makes further calls return
// ErrClosed. Close is idempotent.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.wg.Wait()
	return nil
}

// Stats returns the statistics of both tiers for this namespace.
func (c *Coordinator) Stats() CoordinatorStats {
	c.mu.Lock()
	reservations := len(c.reservations)
	c.mu.Unlock()

	return CoordinatorStats{
		Namespace:    c.namespace,
		Memory:       c.memory.Stats(c.namespace),
		Disk:         c.disk.Stats(c.namespace),
		Reservations: reservations,
		Lookups:      c.bulkhead.Metrics(),
	}
}
