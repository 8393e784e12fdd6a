package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonwraymond/imagecache/observe"
)

const (
	entryExt      = ".entry"
	tempPrefix    = ".tmp-"
	dirPerm       = 0o755
	entryFilePerm = 0o644
)

// DiskTier persists encoded images under Root/<namespace>/<shard>/<key>.entry.
//
// Writes go to a temporary file that is renamed into place, so readers see
// either the previous entry or the new one. A per-namespace index of entry
// metadata is built on first use and drives budget enforcement.
//
// Contract:
// - Concurrency: safe for concurrent use; same-key writers are serialized.
// - Errors: Get never errors, it reports a miss. Put wraps failures in ErrPersistFailed.
type DiskTier struct {
	root    string
	budget  int64
	logger  observe.Logger
	onEvict EvictFunc
	now     func() time.Time

	locks keyLocks

	mu      sync.Mutex
	indexes map[string]*diskIndex
}

type diskIndex struct {
	mu        sync.Mutex
	entries   map[Key]*diskMeta
	size      int64
	evictions int64
}

type diskMeta struct {
	permanent  bool
	size       int64
	lastAccess time.Time
}

// NewDiskTier creates a disk tier rooted at root with a per-namespace byte
// budget. A budget of zero or less disables eviction.
func NewDiskTier(root string, budgetBytes int64, logger observe.Logger) (*DiskTier, error) {
	if root == "" {
		return nil, errors.New("cache: disk root required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("cache: resolve disk root: %w", err)
	}
	if err := os.MkdirAll(abs, dirPerm); err != nil {
		return nil, fmt.Errorf("cache: create disk root: %w", err)
	}
	if logger == nil {
		logger = observe.NewNopLogger()
	}
	return &DiskTier{
		root:    abs,
		budget:  budgetBytes,
		logger:  logger,
		now:     time.Now,
		locks:   keyLocks{locks: make(map[string]*keyLock)},
		indexes: make(map[string]*diskIndex),
	}, nil
}

// Root returns the absolute root directory.
func (d *DiskTier) Root() string {
	return d.root
}

// Budget returns the per-namespace byte budget.
func (d *DiskTier) Budget() int64 {
	return d.budget
}

// OnEvict registers fn to be called for every budget eviction.
// It must be set before the tier is shared.
func (d *DiskTier) OnEvict(fn EvictFunc) {
	d.onEvict = fn
}

// Get reads the entry for key. Any I/O or format error is reported as a miss.
func (d *DiskTier) Get(ctx context.Context, ns string, key Key) (Entry, bool) {
	if ctx.Err() != nil {
		return Entry{}, false
	}
	filePath, err := d.entryPath(ns, key)
	if err != nil {
		return Entry{}, false
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			d.refresh(ns, key, filePath, time.Time{})
		} else {
			d.logger.Warn(ctx, "disk read failed",
				observe.Field{Key: "namespace", Value: ns},
				observe.Field{Key: "key", Value: key.String()},
				observe.Field{Key: "error", Value: err.Error()},
			)
		}
		return Entry{}, false
	}

	h, payload, err := decodeEntryFile(data)
	if err == nil && (h.Key != key || h.Namespace != ns) {
		err = fmt.Errorf("%w: header names %s/%s", errCorruptEntry, h.Namespace, h.Key)
	}
	if err != nil {
		d.logger.Warn(ctx, "discarding corrupt disk entry",
			observe.Field{Key: "namespace", Value: ns},
			observe.Field{Key: "key", Value: key.String()},
			observe.Field{Key: "error", Value: err.Error()},
		)
		d.removeCorrupt(ns, key, filePath)
		return Entry{}, false
	}

	now := d.now()
	d.refresh(ns, key, filePath, now)

	return Entry{
		Key:        key,
		Namespace:  ns,
		Data:       payload,
		SizeBytes:  h.SizeBytes,
		Permanent:  h.Permanent,
		LastAccess: now,
	}, true
}

// refresh reconciles the index entry for key with the file on disk after an
// unlocked read, recording a read at accessed unless it is zero. A writer or
// remover may have run since the read, so the header is read again under
// the key lock.
func (d *DiskTier) refresh(ns string, key Key, filePath string, accessed time.Time) {
	unlock := d.locks.lock(ns, key)
	defer unlock()

	idx := d.index(ns)
	h, modTime, err := readHeaderFile(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			idx.forget(key)
		}
		return
	}
	if h.Key != key || h.Namespace != ns {
		return
	}
	if accessed.IsZero() {
		accessed = modTime
	} else {
		_ = os.Chtimes(filePath, accessed, accessed)
	}
	idx.touch(key, h.Permanent, h.SizeBytes, accessed)
}

// Contains reports whether the index holds an entry for key. The file
// itself is not read.
func (d *DiskTier) Contains(ns string, key Key) bool {
	if ValidateNamespace(ns) != nil {
		return false
	}
	_, ok := d.index(ns).get(key)
	return ok
}

// Put atomically writes e.Data and its metadata, then enforces the budget
// for e.Namespace.
func (d *DiskTier) Put(ctx context.Context, e Entry) error {
	if err := ValidateNamespace(e.Namespace); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistFailed, err)
	}
	if !e.Key.Valid() {
		return fmt.Errorf("%w: %w %q", ErrPersistFailed, ErrInvalidKey, e.Key)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistFailed, err)
	}

	lastAccess := e.LastAccess
	if lastAccess.IsZero() {
		lastAccess = d.now()
	}
	h := entryHeader{
		Key:       e.Key,
		Namespace: e.Namespace,
		Permanent: e.Permanent,
		SizeBytes: int64(len(e.Data)),
		StoredAt:  d.now().UTC(),
	}

	unlock := d.locks.lock(e.Namespace, e.Key)
	err := d.writeLocked(h, e.Data, lastAccess)
	unlock()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistFailed, err)
	}

	d.enforceBudget(ctx, e.Namespace)
	return nil
}

// SetPermanent rewrites the persisted permanence flag of an existing entry.
// It reports whether the entry exists.
func (d *DiskTier) SetPermanent(ctx context.Context, ns string, key Key, permanent bool) (bool, error) {
	filePath, err := d.entryPath(ns, key)
	if err != nil {
		return false, err
	}

	unlock := d.locks.lock(ns, key)
	exists, err := d.setPermanentLocked(ns, key, permanent, filePath)
	unlock()
	if exists && err == nil && !permanent {
		d.enforceBudget(ctx, ns)
	}
	return exists, err
}

func (d *DiskTier) setPermanentLocked(ns string, key Key, permanent bool, filePath string) (bool, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return false, nil
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return false, nil
	}
	h, payload, err := decodeEntryFile(data)
	if err != nil || h.Key != key || h.Namespace != ns {
		return false, nil
	}
	if h.Permanent == permanent {
		return true, nil
	}
	h.Permanent = permanent
	if err := d.writeLocked(h, payload, info.ModTime()); err != nil {
		return true, fmt.Errorf("%w: %w", ErrPersistFailed, err)
	}
	return true, nil
}

// Remove deletes the entry for key. Idempotent - no error on miss.
func (d *DiskTier) Remove(ns string, key Key) error {
	filePath, err := d.entryPath(ns, key)
	if err != nil {
		return err
	}
	unlock := d.locks.lock(ns, key)
	defer unlock()

	if err := os.Remove(filePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	d.index(ns).forget(key)
	return nil
}

// Clear removes every volatile entry in ns, judged by the persisted
// permanence flag. Permanent entries survive.
func (d *DiskTier) Clear(ns string) error {
	return d.clear(ns, false)
}

// ClearAll removes every entry in ns, permanent ones included.
func (d *DiskTier) ClearAll(ns string) error {
	return d.clear(ns, true)
}

func (d *DiskTier) clear(ns string, all bool) error {
	if err := ValidateNamespace(ns); err != nil {
		return err
	}
	idx := d.index(ns)

	var errs []error
	for _, key := range idx.keys() {
		unlock := d.locks.lock(ns, key)
		meta, ok := idx.get(key)
		if ok && (all || !meta.permanent) {
			filePath, _ := d.entryPath(ns, key)
			if err := os.Remove(filePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, err)
			} else {
				idx.forget(key)
			}
		}
		unlock()
	}
	return errors.Join(errs...)
}

// Stats returns the current statistics for ns.
func (d *DiskTier) Stats(ns string) TierStats {
	stats := TierStats{BudgetBytes: d.budget}
	if ValidateNamespace(ns) != nil {
		return stats
	}
	idx := d.index(ns)
	idx.mu.Lock()
	defer idx.mu.Unlock()
	stats.Entries = len(idx.entries)
	for _, m := range idx.entries {
		if m.permanent {
			stats.PermanentEntries++
			stats.PermanentBytes += m.size
		}
	}
	stats.SizeBytes = idx.size
	stats.Evictions = idx.evictions
	return stats
}

// Usage returns the number of payload bytes stored for ns.
func (d *DiskTier) Usage(ns string) int64 {
	return d.Stats(ns).SizeBytes
}

func (d *DiskTier) writeLocked(h entryHeader, payload []byte, modTime time.Time) error {
	filePath, err := d.entryPath(h.Namespace, h.Key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return err
	}

	tempFile, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()

	err = encodeEntryFile(tempFile, h, payload)
	if err == nil {
		err = tempFile.Sync()
	}
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(tempName, entryFilePerm)
	}
	if err != nil {
		os.Remove(tempName)
		return err
	}

	if err := os.Rename(tempName, filePath); err != nil {
		os.Remove(tempName)
		return err
	}
	_ = os.Chtimes(filePath, modTime, modTime)

	d.index(h.Namespace).set(h.Key, &diskMeta{
		permanent:  h.Permanent,
		size:       h.SizeBytes,
		lastAccess: modTime,
	})
	return nil
}

// enforceBudget evicts least recently used volatile entries until ns is
// within budget. It must not be called while holding a key lock.
func (d *DiskTier) enforceBudget(ctx context.Context, ns string) {
	if d.budget <= 0 {
		return
	}
	idx := d.index(ns)
	for _, key := range idx.evictionCandidates(d.budget) {
		unlock := d.locks.lock(ns, key)
		meta, ok := idx.get(key)
		if !ok || !IsEvictable(Entry{Permanent: meta.permanent}) || idx.sizeBytes() <= d.budget {
			unlock()
			continue
		}
		filePath, _ := d.entryPath(ns, key)
		err := os.Remove(filePath)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			unlock()
			d.logger.Warn(ctx, "disk eviction failed",
				observe.Field{Key: "namespace", Value: ns},
				observe.Field{Key: "key", Value: key.String()},
				observe.Field{Key: "error", Value: err.Error()},
			)
			continue
		}
		idx.evict(key)
		unlock()

		if d.onEvict != nil {
			d.onEvict(Entry{Key: key, Namespace: ns, SizeBytes: meta.size, LastAccess: meta.lastAccess})
		}
	}
}

func (d *DiskTier) removeCorrupt(ns string, key Key, filePath string) {
	unlock := d.locks.lock(ns, key)
	defer unlock()
	// Re-check under the lock; a writer may have replaced the file.
	data, err := os.ReadFile(filePath)
	if err == nil {
		if h, _, err := decodeEntryFile(data); err == nil && h.Key == key && h.Namespace == ns {
			return
		}
	}
	_ = os.Remove(filePath)
	d.index(ns).forget(key)
}

func (d *DiskTier) namespaceDir(ns string) (string, error) {
	if err := ValidateNamespace(ns); err != nil {
		return "", err
	}
	return filepath.Join(d.root, ns), nil
}

func (d *DiskTier) entryPath(ns string, key Key) (string, error) {
	dir, err := d.namespaceDir(ns)
	if err != nil {
		return "", err
	}
	if !key.Valid() {
		return "", fmt.Errorf("%w %q", ErrInvalidKey, key)
	}
	return filepath.Join(dir, key.Shard(), key.String()+entryExt), nil
}

// index returns the index for ns, scanning the namespace directory on first use.
func (d *DiskTier) index(ns string) *diskIndex {
	d.mu.Lock()
	defer d.mu.Unlock()
	if idx, ok := d.indexes[ns]; ok {
		return idx
	}
	idx := &diskIndex{entries: make(map[Key]*diskMeta)}
	if dir, err := d.namespaceDir(ns); err == nil {
		d.scan(dir, ns, idx)
	}
	d.indexes[ns] = idx
	return idx
}

// scan loads entry headers below dir into idx, removing leftover temp files
// and unreadable entries.
func (d *DiskTier) scan(dir, ns string, idx *diskIndex) {
	_ = filepath.WalkDir(dir, func(p string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return nil
		}
		name := entry.Name()
		if strings.HasPrefix(name, tempPrefix) {
			_ = os.Remove(p)
			return nil
		}
		if !strings.HasSuffix(name, entryExt) {
			return nil
		}
		key := Key(strings.TrimSuffix(name, entryExt))
		h, modTime, err := readHeaderFile(p)
		if err != nil || h.Key != key || h.Namespace != ns {
			_ = os.Remove(p)
			return nil
		}
		idx.entries[key] = &diskMeta{permanent: h.Permanent, size: h.SizeBytes, lastAccess: modTime}
		idx.size += h.SizeBytes
		return nil
	})
}

func readHeaderFile(p string) (entryHeader, time.Time, error) {
	f, err := os.Open(p)
	if err != nil {
		return entryHeader{}, time.Time{}, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return entryHeader{}, time.Time{}, err
	}
	h, err := readEntryHeader(f)
	if err != nil {
		return entryHeader{}, time.Time{}, err
	}
	return h, info.ModTime(), nil
}

func (idx *diskIndex) get(key Key) (diskMeta, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	m, ok := idx.entries[key]
	if !ok {
		return diskMeta{}, false
	}
	return *m, true
}

func (idx *diskIndex) set(key Key, m *diskMeta) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if old, ok := idx.entries[key]; ok {
		idx.size -= old.size
	}
	idx.entries[key] = m
	idx.size += m.size
}

func (idx *diskIndex) touch(key Key, permanent bool, size int64, at time.Time) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if m, ok := idx.entries[key]; ok {
		m.lastAccess = at
		return
	}
	idx.entries[key] = &diskMeta{permanent: permanent, size: size, lastAccess: at}
	idx.size += size
}

func (idx *diskIndex) forget(key Key) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if m, ok := idx.entries[key]; ok {
		idx.size -= m.size
		delete(idx.entries, key)
	}
}

func (idx *diskIndex) evict(key Key) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if m, ok := idx.entries[key]; ok {
		idx.size -= m.size
		idx.evictions++
		delete(idx.entries, key)
	}
}

func (idx *diskIndex) sizeBytes() int64 {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.size
}

func (idx *diskIndex) keys() []Key {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	out := make([]Key, 0, len(idx.entries))
	for k := range idx.entries {
		out = append(out, k)
	}
	return out
}

// evictionCandidates returns volatile keys, least recently used first, whose
// removal brings the index within budget.
func (idx *diskIndex) evictionCandidates(budget int64) []Key {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.size <= budget {
		return nil
	}

	type candidate struct {
		key  Key
		meta *diskMeta
	}
	candidates := make([]candidate, 0, len(idx.entries))
	for k, m := range idx.entries {
		if IsEvictable(Entry{Permanent: m.permanent}) {
			candidates = append(candidates, candidate{key: k, meta: m})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i].meta.lastAccess, candidates[j].meta.lastAccess
		if a.Equal(b) {
			return candidates[i].key < candidates[j].key
		}
		return a.Before(b)
	})

	excess := idx.size - budget
	var out []Key
	for _, c := range candidates {
		if excess <= 0 {
			break
		}
		out = append(out, c.key)
		excess -= c.meta.size
	}
	return out
}

// keyLocks serializes same-key disk mutations while letting distinct keys
// proceed in parallel. Locks are reference counted and dropped when idle.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func (l *keyLocks) lock(ns string, key Key) func() {
	id := ns + "/" + key.String()
	l.mu.Lock()
	lock := l.locks[id]
	if lock == nil {
		lock = &keyLock{}
		l.locks[id] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
