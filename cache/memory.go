package cache

import (
	"math"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// TierStats describes the contents of one namespace in one tier.
type TierStats struct {
	Entries          int
	PermanentEntries int
	SizeBytes        int64
	PermanentBytes   int64
	BudgetBytes      int64
	Evictions        int64
}

// EvictFunc is called after an entry has been evicted under space pressure.
type EvictFunc func(e Entry)

// MemoryTier is a bounded in-process store of decoded images.
//
// Each namespace is an independent partition with its own lock and budget.
// Volatile entries are kept in recency order and evicted least recently used
// first; permanent entries are counted against the budget but never evicted.
type MemoryTier struct {
	budget  int64
	onEvict EvictFunc
	now     func() time.Time

	mu         sync.RWMutex
	partitions map[string]*memoryPartition
}

type memoryPartition struct {
	mu        sync.Mutex
	volatile  *simplelru.LRU[Key, *Entry]
	permanent map[Key]*Entry
	size      int64
	evictions int64
}

// NewMemoryTier creates a memory tier with a per-namespace byte budget.
// A budget of zero or less disables eviction.
func NewMemoryTier(budgetBytes int64) *MemoryTier {
	return &MemoryTier{
		budget:     budgetBytes,
		now:        time.Now,
		partitions: make(map[string]*memoryPartition),
	}
}

// OnEvict registers fn to be called for every space-pressure eviction.
// It must be set before the tier is shared.
func (m *MemoryTier) OnEvict(fn EvictFunc) {
	m.onEvict = fn
}

// Budget returns the per-namespace byte budget.
func (m *MemoryTier) Budget() int64 {
	return m.budget
}

func (m *MemoryTier) partition(ns string, create bool) *memoryPartition {
	m.mu.RLock()
	p := m.partitions[ns]
	m.mu.RUnlock()
	if p != nil || !create {
		return p
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if p = m.partitions[ns]; p != nil {
		return p
	}
	// Capacity is enforced in bytes, not entries.
	lru, _ := simplelru.NewLRU[Key, *Entry](math.MaxInt, nil)
	p = &memoryPartition{
		volatile:  lru,
		permanent: make(map[Key]*Entry),
	}
	m.partitions[ns] = p
	return p
}

// Get returns the entry for key, refreshing its recency. Returns false on miss.
func (m *MemoryTier) Get(ns string, key Key) (Entry, bool) {
	p := m.partition(ns, false)
	if p == nil {
		return Entry{}, false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.permanent[key]
	if !ok {
		e, ok = p.volatile.Get(key)
	}
	if !ok {
		return Entry{}, false
	}
	e.LastAccess = m.now()
	return *e, true
}

// Contains reports whether key is present without touching its recency.
func (m *MemoryTier) Contains(ns string, key Key) bool {
	p := m.partition(ns, false)
	if p == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.permanent[key]; ok {
		return true
	}
	return p.volatile.Contains(key)
}

// Put inserts or replaces an entry and then evicts volatile entries until the
// namespace is back under budget. It reports whether e itself is still held;
// a volatile entry larger than the whole budget is evicted by its own Put.
func (m *MemoryTier) Put(e Entry) bool {
	if e.LastAccess.IsZero() {
		e.LastAccess = m.now()
	}
	e.Data = nil

	p := m.partition(e.Namespace, true)
	p.mu.Lock()
	p.removeLocked(e.Key)
	stored := e
	if IsEvictable(e) {
		p.volatile.Add(e.Key, &stored)
	} else {
		p.permanent[e.Key] = &stored
	}
	p.size += e.SizeBytes

	evicted := m.evictLocked(p)
	retained := true
	for _, v := range evicted {
		if v.Key == e.Key {
			retained = false
		}
	}
	p.mu.Unlock()

	m.notify(evicted)
	return retained
}

// SetPermanent changes the permanence of an existing entry. It reports
// whether the entry exists.
func (m *MemoryTier) SetPermanent(ns string, key Key, permanent bool) bool {
	p := m.partition(ns, false)
	if p == nil {
		return false
	}

	p.mu.Lock()
	var evicted []Entry
	defer func() {
		p.mu.Unlock()
		m.notify(evicted)
	}()

	if e, ok := p.permanent[key]; ok {
		if !permanent {
			delete(p.permanent, key)
			e.Permanent = false
			p.volatile.Add(key, e)
			evicted = m.evictLocked(p)
		}
		return true
	}
	if e, ok := p.volatile.Peek(key); ok {
		if permanent {
			p.volatile.Remove(key)
			e.Permanent = true
			p.permanent[key] = e
		}
		return true
	}
	return false
}

// Remove deletes the entry for key. Idempotent - no error on miss.
func (m *MemoryTier) Remove(ns string, key Key) {
	p := m.partition(ns, false)
	if p == nil {
		return
	}
	p.mu.Lock()
	p.removeLocked(key)
	p.mu.Unlock()
}

// Clear removes all volatile entries in ns. Permanent entries survive.
func (m *MemoryTier) Clear(ns string) {
	p := m.partition(ns, false)
	if p == nil {
		return
	}
	p.mu.Lock()
	for _, e := range p.volatile.Values() {
		p.size -= e.SizeBytes
	}
	p.volatile.Purge()
	p.mu.Unlock()
}

// ClearAll removes every entry in ns, permanent ones included.
func (m *MemoryTier) ClearAll(ns string) {
	p := m.partition(ns, false)
	if p == nil {
		return
	}
	p.mu.Lock()
	p.volatile.Purge()
	p.permanent = make(map[Key]*Entry)
	p.size = 0
	p.mu.Unlock()
}

// Stats returns the current statistics for ns.
func (m *MemoryTier) Stats(ns string) TierStats {
	stats := TierStats{BudgetBytes: m.budget}
	p := m.partition(ns, false)
	if p == nil {
		return stats
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	stats.PermanentEntries = len(p.permanent)
	for _, e := range p.permanent {
		stats.PermanentBytes += e.SizeBytes
	}
	stats.Entries = p.volatile.Len() + stats.PermanentEntries
	stats.SizeBytes = p.size
	stats.Evictions = p.evictions
	return stats
}

// Namespaces returns the namespaces that have a partition.
func (m *MemoryTier) Namespaces() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.partitions))
	for ns := range m.partitions {
		out = append(out, ns)
	}
	return out
}

// evictLocked removes least recently used volatile entries until p is under
// budget or only permanent entries remain. Caller must hold p.mu.
func (m *MemoryTier) evictLocked(p *memoryPartition) []Entry {
	if m.budget <= 0 {
		return nil
	}
	var evicted []Entry
	for p.size > m.budget && p.volatile.Len() > 0 {
		_, e, ok := p.volatile.RemoveOldest()
		if !ok {
			break
		}
		p.size -= e.SizeBytes
		p.evictions++
		evicted = append(evicted, *e)
	}
	return evicted
}

func (m *MemoryTier) notify(evicted []Entry) {
	if m.onEvict == nil {
		return
	}
	for _, e := range evicted {
		m.onEvict(e)
	}
}

func (p *memoryPartition) removeLocked(key Key) {
	if e, ok := p.permanent[key]; ok {
		p.size -= e.SizeBytes
		delete(p.permanent, key)
		return
	}
	if e, ok := p.volatile.Peek(key); ok {
		p.size -= e.SizeBytes
		p.volatile.Remove(key)
	}
}
