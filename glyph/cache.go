// Package glyph implements the render-on-miss glyph cache. It owns the
// texture atlas, a fixed entry pool with an intrusive free list, and an
// open-addressed hash table with a bounded probe length. All capacities
// are allocated up front; the steady-state render loop performs no
// allocation.
//
// The cache is not safe for concurrent use by itself: the text system
// serializes access behind its glyph mutex, acquiring it once per batch.
package glyph

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"golang.org/x/image/math/fixed"

	"github.com/gogpu/textcore/atlas"
	"github.com/gogpu/textcore/font"
)

// ErrGlyphTooLarge is returned when a single glyph cannot fit even in an
// empty maximum-size atlas. Fatal for that glyph, not for the system;
// callers skip it.
var ErrGlyphTooLarge = errors.New("glyph: glyph too large for atlas")

// maxProbe bounds linear probing. Exceeding it is treated as "not found"
// rather than risking an unbounded scan: a miss costs a re-render, a hang
// costs the frame.
const maxProbe = 32

// Config holds glyph cache configuration.
type Config struct {
	// MaxEntries is the fixed glyph entry pool size. Default: 1024
	MaxEntries int

	// MaxGlyphSize is the scratch raster buffer dimension; glyphs larger
	// than this in either axis are rejected as too large. Default: 256
	MaxGlyphSize int

	// SubpixelDivisions is the number of quantized subpixel positions per
	// axis that Key.SubpixelX/Y index into. Default: 4
	SubpixelDivisions int

	// Atlas configures the owned atlas. Zero value uses atlas defaults.
	Atlas atlas.Config

	// Logger receives debug/warn records for growth and clear-and-retry
	// recoveries. Nil disables logging.
	Logger *slog.Logger
}

// DefaultConfig returns the default glyph cache configuration.
func DefaultConfig() Config {
	return Config{
		MaxEntries:        1024,
		MaxGlyphSize:      256,
		SubpixelDivisions: 4,
		Atlas:             atlas.DefaultConfig(),
	}
}

// entry is one pool slot.
type entry struct {
	key   Key
	value CachedGlyph
	valid bool
}

// Cache maps glyph keys to atlas regions, rendering through the Face
// capability on miss.
type Cache struct {
	atlas *atlas.Atlas

	entries  []entry
	freeNext []int32 // intrusive free list, chained by pool index
	freeHead int32

	table     []int32 // pool indices, -1 empty
	tableMask uint64

	scratch    []byte
	scratchDim int
	subDiv     float32

	log *slog.Logger

	hits   atomic.Uint64
	misses atomic.Uint64
	resets atomic.Uint64
}

// New creates a glyph cache and its atlas.
func New(cfg Config) (*Cache, error) {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 1024
	}
	if cfg.MaxGlyphSize <= 0 {
		cfg.MaxGlyphSize = 256
	}
	if cfg.SubpixelDivisions <= 0 {
		cfg.SubpixelDivisions = 4
	}

	a, err := atlas.New(cfg.Atlas)
	if err != nil {
		return nil, err
	}

	tableSize := nextPow2(2 * cfg.MaxEntries)
	c := &Cache{
		atlas:      a,
		entries:    make([]entry, cfg.MaxEntries),
		freeNext:   make([]int32, cfg.MaxEntries),
		table:      make([]int32, tableSize),
		tableMask:  uint64(tableSize - 1), //nolint:gosec // tableSize >= 2
		scratch:    make([]byte, cfg.MaxGlyphSize*cfg.MaxGlyphSize),
		scratchDim: cfg.MaxGlyphSize,
		subDiv:     float32(cfg.SubpixelDivisions),
		log:        cfg.Logger,
	}
	c.resetIndex()
	return c, nil
}

// Atlas returns the owned atlas. Callers must hold the same lock that
// guards the cache while reading it.
func (c *Cache) Atlas() *atlas.Atlas { return c.atlas }

// GetOrRender returns the cached glyph for the key, rendering and caching
// it on miss. On atlas exhaustion the cache recovers by growing (patching
// every cached entry's AtlasSize) or, at maximum size, by clearing and
// re-packing from empty. ErrGlyphTooLarge is returned only when the glyph
// cannot fit in an empty maximum-size atlas.
func (c *Cache) GetOrRender(face font.Face, faceID font.ID, gid font.GlyphID, size, scale fixed.Int26_6, subX, subY uint8) (CachedGlyph, error) {
	key := Key{Font: faceID, GID: gid, Size: size, Scale: scale, SubpixelX: subX, SubpixelY: subY}
	if idx, ok := c.lookup(key); ok {
		c.hits.Add(1)
		return c.entries[idx].value, nil
	}
	c.misses.Add(1)

	fx := float32(subX) / c.subDiv
	fy := float32(subY) / c.subDiv
	rendered, err := face.RenderGlyphSubpixel(gid, size, scale, fx, fy, c.scratch, c.scratchDim)
	if err != nil {
		if errors.Is(err, font.ErrBufferTooSmall) {
			return CachedGlyph{}, ErrGlyphTooLarge
		}
		return CachedGlyph{}, err
	}

	value := CachedGlyph{
		OffsetX:  rendered.OffsetX,
		OffsetY:  rendered.OffsetY,
		AdvanceX: rendered.AdvanceX,
		IsColor:  rendered.IsColor,
	}

	for attempt := 0; attempt < 2; attempt++ {
		if rendered.Width > 0 && rendered.Height > 0 {
			region, err := c.reserveWithEviction(rendered.Width, rendered.Height)
			if err != nil {
				return CachedGlyph{}, err
			}
			if err := c.atlas.SetRows(region, c.scratch, c.scratchDim); err != nil {
				return CachedGlyph{}, err
			}
			value.Region = region
		}
		value.AtlasSize = c.atlas.Size()

		if c.insert(key, value) {
			return value, nil
		}
		// Pool exhausted or probe bound hit: the glyph working set
		// outgrew capacity. Reset and re-pack; the second attempt
		// inserts into an empty cache.
		c.reset("entry pool overflow")
	}
	return CachedGlyph{}, ErrGlyphTooLarge
}

// reserveWithEviction reserves atlas space, growing as needed. Growth
// keeps region pixel coordinates valid but changes the UV denominator, so
// every valid entry's AtlasSize is rewritten before the new size is used
// anywhere else. Unrecoverable overflow clears everything and retries
// once from an empty atlas.
func (c *Cache) reserveWithEviction(w, h int) (atlas.Region, error) {
	cleared := false
	for {
		region, ok, err := c.atlas.Reserve(w, h)
		if err == nil && ok {
			return region, nil
		}
		if err != nil {
			// Skyline table overflow: no capacity to track
			// fragmentation, reset and re-pack everything.
			if cleared {
				return atlas.Region{}, ErrGlyphTooLarge
			}
			c.reset("skyline table overflow")
			cleared = true
			continue
		}
		if growErr := c.atlas.Grow(); growErr != nil {
			if cleared {
				return atlas.Region{}, ErrGlyphTooLarge
			}
			c.reset("atlas at maximum size")
			cleared = true
			continue
		}
		c.patchAtlasSize()
	}
}

// patchAtlasSize rewrites the captured atlas size of every valid entry
// after a growth event. Skipping this silently corrupts texture sampling
// for all glyphs cached before the growth.
func (c *Cache) patchAtlasSize() {
	size := c.atlas.Size()
	for i := range c.entries {
		if c.entries[i].valid {
			c.entries[i].value.AtlasSize = size
		}
	}
	if c.log != nil {
		c.log.Debug("glyph atlas grown", "size", size)
	}
}

// Clear evicts everything and resets the atlas. Capacities are retained.
func (c *Cache) Clear() {
	c.reset("explicit clear")
}

func (c *Cache) reset(reason string) {
	c.atlas.Clear()
	c.resetIndex()
	c.resets.Add(1)
	if c.log != nil {
		c.log.Warn("glyph cache cleared", "reason", reason)
	}
}

// resetIndex rebuilds the free list and empties the hash table.
func (c *Cache) resetIndex() {
	for i := range c.entries {
		c.entries[i].valid = false
		c.freeNext[i] = int32(i + 1) //nolint:gosec // pool sizes fit int32
	}
	c.freeNext[len(c.freeNext)-1] = -1
	c.freeHead = 0
	for i := range c.table {
		c.table[i] = -1
	}
}

// lookup probes for the key. A probe chain longer than maxProbe is
// reported as a miss.
func (c *Cache) lookup(key Key) (int32, bool) {
	h := key.hash()
	for i := uint64(0); i < maxProbe; i++ {
		slot := (h + i) & c.tableMask
		idx := c.table[slot]
		if idx < 0 {
			return 0, false
		}
		if c.entries[idx].key == key {
			return idx, true
		}
	}
	return 0, false
}

// insert stores the value in the pool and hash table. Returns false when
// the pool is exhausted or no table slot exists within the probe bound.
func (c *Cache) insert(key Key, value CachedGlyph) bool {
	if c.freeHead < 0 {
		return false
	}

	h := key.hash()
	slot := int64(-1)
	for i := uint64(0); i < maxProbe; i++ {
		s := (h + i) & c.tableMask
		if c.table[s] < 0 {
			slot = int64(s) //nolint:gosec // table index
			break
		}
	}
	if slot < 0 {
		return false
	}

	idx := c.freeHead
	c.freeHead = c.freeNext[idx]
	c.entries[idx] = entry{key: key, value: value, valid: true}
	c.table[slot] = idx
	return true
}

// Len returns the number of cached glyphs.
func (c *Cache) Len() int {
	n := 0
	for i := range c.entries {
		if c.entries[i].valid {
			n++
		}
	}
	return n
}

// Capacity returns the fixed entry pool size.
func (c *Cache) Capacity() int { return len(c.entries) }

// Stats returns hit/miss/reset counters.
func (c *Cache) Stats() (hits, misses, resets uint64) {
	return c.hits.Load(), c.misses.Load(), c.resets.Load()
}

// ResetStats resets the counters.
func (c *Cache) ResetStats() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.resets.Store(0)
}

// nextPow2 returns the smallest power of two >= v.
func nextPow2(v int) int {
	n := 1
	for n < v {
		n <<= 1
	}
	return n
}
