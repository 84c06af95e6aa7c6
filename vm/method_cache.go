package vm

import (
	"sync"
	"sync/atomic"

	"github.com/tliron/commonlog"
)

// MethodCache tracks which modules hold a cached resolution for which name
// so that a redefinition anywhere can evict every stale copy.
//
// Each module caches resolutions in its own method table. The cache records
// holders per name; Remove evicts all holders of a name and bumps a serial.
// A search records the serial before walking the chain and stores its result
// only if the serial is unchanged, so a search that raced with a mutation
// never publishes what it saw.
//
// Lock order: cache mu, then a table's mu.
type MethodCache struct {
	mu     sync.Mutex
	serial atomic.Uint64
	sites  map[string]map[*Module]Method
	log    commonlog.Logger

	adds           atomic.Uint64
	removes        atomic.Uint64
	evictions      atomic.Uint64
	moduleIncludes atomic.Uint64
	includeEvicts  atomic.Uint64
	flushes        atomic.Uint64
}

// CacheStats is a snapshot of cache counters.
type CacheStats struct {
	Adds           uint64 // resolutions cached
	Removes        uint64 // names invalidated
	Evictions      uint64 // cached copies dropped by Remove
	ModuleIncludes uint64 // include operations seen
	IncludeEvicts  uint64 // cached copies dropped by includes
	Flushes        uint64
	Names          int // names with at least one holder
	Holders        int // total (name, module) pairs
}

// NewMethodCache creates an empty cache.
func NewMethodCache(log commonlog.Logger) *MethodCache {
	if log == nil {
		log = commonlog.GetLogger("garnet.cache")
	}
	return &MethodCache{
		sites: make(map[string]map[*Module]Method),
		log:   log,
	}
}

// Serial returns the invalidation counter.
func (c *MethodCache) Serial() uint64 {
	return c.serial.Load()
}

// Add records that mod holds a cached copy of m under name.
func (c *MethodCache) Add(name string, mod *Module, m Method) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addLocked(name, mod, m)
}

func (c *MethodCache) addLocked(name string, mod *Module, m Method) {
	holders := c.sites[name]
	if holders == nil {
		holders = make(map[*Module]Method)
		c.sites[name] = holders
	}
	holders[mod] = m
	c.adds.Add(1)
}

// store caches entry in mod's table if no invalidation happened since serial
// was read. It reports whether the entry was stored.
func (c *MethodCache) store(serial uint64, name string, mod *Module, entry MethodEntry) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.serial.Load() != serial {
		return false
	}
	mod.table.storeCached(name, entry)
	c.addLocked(name, mod, entry.Method)
	return true
}

// Remove invalidates name everywhere it is cached and returns how many cached
// copies were dropped.
func (c *MethodCache) Remove(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.evictLocked(name)
	c.serial.Add(1)
	c.removes.Add(1)
	c.evictions.Add(uint64(n))
	return n
}

func (c *MethodCache) evictLocked(name string) int {
	holders := c.sites[name]
	for mod := range holders {
		mod.table.evict(name)
	}
	delete(c.sites, name)
	return len(holders)
}

// ModuleIncluded invalidates every name defined by included, runs splice,
// then invalidates the names of any further modules splice reports it added.
// No search can cache a resolution across the splice.
func (c *MethodCache) ModuleIncluded(target, included *Module, splice func() []*Module) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.moduleIncludes.Add(1)

	evicted := 0
	seen := map[*MethodTable]bool{included.table: true}
	for _, name := range included.table.Names() {
		evicted += c.evictLocked(name)
	}
	var added []*Module
	if splice != nil {
		added = splice()
	}
	for _, mod := range added {
		if seen[mod.table] {
			continue
		}
		seen[mod.table] = true
		for _, name := range mod.table.Names() {
			evicted += c.evictLocked(name)
		}
	}
	c.serial.Add(1)
	c.includeEvicts.Add(uint64(evicted))
	c.log.Debugf("include %s into %s: %d cached entries evicted", included.Name(), target.Name(), evicted)
}

// Flush drops every cached resolution. Only Runtime.Shutdown calls it.
func (c *MethodCache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name := range c.sites {
		c.evictLocked(name)
	}
	c.serial.Add(1)
	c.flushes.Add(1)
	c.log.Info("method cache flushed")
}

// Holders returns the modules currently caching name.
func (c *MethodCache) Holders(name string) []*Module {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Module, 0, len(c.sites[name]))
	for mod := range c.sites[name] {
		out = append(out, mod)
	}
	return out
}

// Stats returns a snapshot of the counters.
func (c *MethodCache) Stats() CacheStats {
	c.mu.Lock()
	names, holders := len(c.sites), 0
	for _, h := range c.sites {
		holders += len(h)
	}
	c.mu.Unlock()
	return CacheStats{
		Adds:           c.adds.Load(),
		Removes:        c.removes.Load(),
		Evictions:      c.evictions.Load(),
		ModuleIncludes: c.moduleIncludes.Load(),
		IncludeEvicts:  c.includeEvicts.Load(),
		Flushes:        c.flushes.Load(),
		Names:          names,
		Holders:        holders,
	}
}
