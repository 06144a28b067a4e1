// Package cache implements the shaped-run cache: a fixed pool of shaping
// results keyed by text content hash, face and size, with strict LRU
// eviction under open-addressed hashing. Entries embed their glyph arrays,
// so a cache hit allocates nothing and eviction never frees memory; a
// slot is simply returned to the pool.
//
// The cache is not safe for concurrent use by itself: the text system
// serializes access behind its shape mutex and copies glyphs out before
// releasing it.
package cache

import (
	"sync/atomic"

	"golang.org/x/image/math/fixed"

	"github.com/gogpu/textcore/font"
)

const (
	// DefaultMaxEntries is the default run pool size.
	DefaultMaxEntries = 256

	// MaxRunGlyphs is the per-entry glyph capacity. Longer runs are not
	// cached.
	MaxRunGlyphs = 128

	// affixLen is the number of prefix/suffix bytes kept in keys.
	affixLen = 8

	// maxProbe bounds lookup probing; exhausting it is a miss, never a
	// hang. Insertion is unbounded but the table is kept at most half
	// full, so an empty slot always exists nearby.
	maxProbe = 64
)

// RunKey identifies shaped text. The full text is never stored; the
// prefix and suffix bytes exist purely to reduce the chance of acting on
// a hash collision between unrelated strings of the same length.
type RunKey struct {
	TextHash uint64
	TextLen  uint32
	Font     font.ID
	Size     fixed.Int26_6
	Prefix   [affixLen]byte
	Suffix   [affixLen]byte
}

// MakeRunKey builds the key for a text run. The hash is FNV-1a over the
// full text, computed without allocating.
func MakeRunKey(text string, f font.ID, size fixed.Int26_6) RunKey {
	k := RunKey{
		TextHash: fnv1a(text),
		TextLen:  uint32(len(text)), //nolint:gosec // cacheable runs are short
		Font:     f,
		Size:     size,
	}
	n := len(text)
	for i := 0; i < affixLen && i < n; i++ {
		k.Prefix[i] = text[i]
		k.Suffix[i] = text[n-1-i]
	}
	return k
}

// slot mixes the key into a table hash.
func (k RunKey) slot() uint64 {
	const (
		m1 = 0x9e3779b97f4a7c15
		m2 = 0xc2b2ae3d27d4eb4f
	)
	h := k.TextHash
	h ^= uint64(k.TextLen)<<32 | uint64(k.Font)
	h ^= uint64(uint32(k.Size)) //nolint:gosec // bit pattern only
	h *= m1
	h ^= h >> 32
	h *= m2
	h ^= h >> 29
	return h
}

// Run is a view of a cached entry's glyphs. The slice aliases pool
// memory: it is only valid while the caller holds the lock guarding the
// cache and must be copied before the lock is released.
type Run struct {
	Glyphs []font.ShapedGlyph
	Width  float32
}

// entry is one pool slot. Glyphs are embedded, not heap-allocated.
type entry struct {
	key        RunKey
	glyphs     [MaxRunGlyphs]font.ShapedGlyph
	glyphCount int32
	width      float32
	lastAccess uint64
	valid      bool
}

// RunCache is a fixed-capacity shaped-run cache with strict LRU eviction.
type RunCache struct {
	entries   []entry
	table     []int32 // pool indices, -1 empty
	tableMask uint64

	// tick is a monotonic access counter; LRU compares ticks, never
	// wall-clock time.
	tick uint64

	font font.ID

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// New creates a run cache with the given pool size.
// If maxEntries <= 0, DefaultMaxEntries is used.
func New(maxEntries int) *RunCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	tableSize := nextPow2(2 * maxEntries)
	c := &RunCache{
		entries:   make([]entry, maxEntries),
		table:     make([]int32, tableSize),
		tableMask: uint64(tableSize - 1), //nolint:gosec // tableSize >= 2
	}
	for i := range c.table {
		c.table[i] = -1
	}
	return c
}

// Get returns a view of the cached run and marks it most recently used.
// The view aliases cache memory; see Run.
func (c *RunCache) Get(key RunKey) (Run, bool) {
	idx, ok := c.find(key)
	if !ok {
		c.misses.Add(1)
		return Run{}, false
	}
	c.hits.Add(1)
	c.tick++
	e := &c.entries[idx]
	e.lastAccess = c.tick
	return Run{Glyphs: e.glyphs[:e.glyphCount], Width: e.width}, true
}

// Put stores a shaped run. An existing entry for the key is overwritten
// in place. Runs exceeding MaxRunGlyphs, or containing glyphs shaped with
// a fallback face, are silently skipped: fallback assignments can change
// when the fallback set is reconfigured, so caching them risks stale
// references.
func (c *RunCache) Put(key RunKey, glyphs []font.ShapedGlyph, width float32) {
	if len(glyphs) > MaxRunGlyphs {
		return
	}
	for i := range glyphs {
		if glyphs[i].Fallback != 0 {
			return
		}
	}

	c.tick++

	if idx, ok := c.find(key); ok {
		e := &c.entries[idx]
		copy(e.glyphs[:], glyphs)
		e.glyphCount = int32(len(glyphs)) //nolint:gosec // bounded by MaxRunGlyphs
		e.width = width
		e.lastAccess = c.tick
		return
	}

	idx := c.selectSlot()
	e := &c.entries[idx]
	e.key = key
	copy(e.glyphs[:], glyphs)
	e.glyphCount = int32(len(glyphs)) //nolint:gosec // bounded by MaxRunGlyphs
	e.width = width
	e.lastAccess = c.tick
	e.valid = true
	c.tableInsert(idx)
}

// selectSlot returns a pool index for a new entry: any invalid slot
// first, otherwise the strict-LRU victim (smallest access tick, lowest
// pool index on ties).
func (c *RunCache) selectSlot() int32 {
	victim := int32(0)
	victimAccess := ^uint64(0)
	for i := range c.entries {
		if !c.entries[i].valid {
			return int32(i) //nolint:gosec // pool sizes fit int32
		}
		if c.entries[i].lastAccess < victimAccess {
			victim = int32(i) //nolint:gosec // pool sizes fit int32
			victimAccess = c.entries[i].lastAccess
		}
	}
	c.evictions.Add(1)
	c.tableRemove(victim)
	c.entries[victim].valid = false
	return victim
}

// CheckFont invalidates everything when the active face changed. Keys
// embed the face handle, but the blanket clear also resets bookkeeping
// cheaply instead of scanning the table for matching entries.
func (c *RunCache) CheckFont(f font.ID) {
	if c.font == f {
		return
	}
	c.font = f
	c.Clear()
}

// Clear invalidates all entries. Capacity is retained.
func (c *RunCache) Clear() {
	for i := range c.entries {
		c.entries[i].valid = false
	}
	for i := range c.table {
		c.table[i] = -1
	}
	c.tick = 0
}

// find probes for the key, bounded by maxProbe.
func (c *RunCache) find(key RunKey) (int32, bool) {
	h := key.slot()
	for i := uint64(0); i < maxProbe; i++ {
		s := (h + i) & c.tableMask
		idx := c.table[s]
		if idx < 0 {
			return 0, false
		}
		if c.entries[idx].key == key {
			return idx, true
		}
	}
	return 0, false
}

// tableInsert places a pool index at the first empty slot of its probe
// chain. The table holds at most half its capacity, so an empty slot
// always exists.
func (c *RunCache) tableInsert(idx int32) {
	h := c.entries[idx].key.slot()
	for i := uint64(0); ; i++ {
		s := (h + i) & c.tableMask
		if c.table[s] < 0 {
			c.table[s] = idx
			return
		}
	}
}

// tableRemove deletes the slot for a pool index and re-inserts every
// entry in the probe chain that follows it, up to the next empty slot.
// Without tombstones this rehash step is what keeps displaced keys
// reachable: a lookup that probed past the removed slot before the
// eviction must still terminate at its entry, not at a premature empty.
func (c *RunCache) tableRemove(idx int32) {
	h := c.entries[idx].key.slot()
	slot := int64(-1)
	for i := uint64(0); i < uint64(len(c.table)); i++ {
		s := (h + i) & c.tableMask
		if c.table[s] == idx {
			slot = int64(s) //nolint:gosec // table index
			break
		}
		if c.table[s] < 0 {
			return
		}
	}
	if slot < 0 {
		return
	}
	c.table[slot] = -1

	for i := uint64(slot) + 1; ; i++ {
		s := i & c.tableMask
		moved := c.table[s]
		if moved < 0 {
			return
		}
		c.table[s] = -1
		c.tableInsert(moved)
	}
}

// Len returns the number of valid entries.
func (c *RunCache) Len() int {
	n := 0
	for i := range c.entries {
		if c.entries[i].valid {
			n++
		}
	}
	return n
}

// Capacity returns the fixed pool size.
func (c *RunCache) Capacity() int { return len(c.entries) }

// Stats returns hit/miss/eviction counters.
func (c *RunCache) Stats() (hits, misses, evictions uint64) {
	return c.hits.Load(), c.misses.Load(), c.evictions.Load()
}

// ResetStats resets the counters.
func (c *RunCache) ResetStats() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.evictions.Store(0)
}

// FNV-1a constants.
const (
	fnvOffset64 = 14695981039346656037
	fnvPrime64  = 1099511628211
)

// fnv1a hashes a string without converting it to a byte slice.
func fnv1a(s string) uint64 {
	h := uint64(fnvOffset64)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= fnvPrime64
	}
	return h
}

// nextPow2 returns the smallest power of two >= v.
func nextPow2(v int) int {
	n := 1
	for n < v {
		n <<= 1
	}
	return n
}
