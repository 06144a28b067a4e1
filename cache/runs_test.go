package cache

import (
	"fmt"
	"hash/fnv"
	"testing"

	"golang.org/x/image/math/fixed"

	"github.com/gogpu/textcore/font"
)

const size14 = fixed.Int26_6(14 << 6)

func glyphsFor(text string) []font.ShapedGlyph {
	gs := make([]font.ShapedGlyph, len(text))
	for i, r := range []byte(text) {
		gs[i] = font.ShapedGlyph{GID: font.GlyphID(r), Cluster: int32(i), XAdvance: 6}
	}
	return gs
}

func TestMakeRunKey(t *testing.T) {
	k := MakeRunKey("Hello, world", 3, size14)
	if k.TextLen != 12 {
		t.Errorf("TextLen = %d, want 12", k.TextLen)
	}
	if k.Font != 3 || k.Size != size14 {
		t.Errorf("Font, Size = %d, %d, want 3, %d", k.Font, k.Size, size14)
	}
	if got := string(k.Prefix[:]); got != "Hello, w" {
		t.Errorf("Prefix = %q, want %q", got, "Hello, w")
	}
	if got := string(k.Suffix[:]); got != "dlrow ,o" {
		t.Errorf("Suffix = %q, want %q", got, "dlrow ,o")
	}

	h := fnv.New64a()
	h.Write([]byte("Hello, world"))
	if k.TextHash != h.Sum64() {
		t.Errorf("TextHash = %#x, want FNV-1a %#x", k.TextHash, h.Sum64())
	}
}

func TestMakeRunKeyShortText(t *testing.T) {
	k := MakeRunKey("ab", 1, size14)
	if got := string(k.Prefix[:2]); got != "ab" {
		t.Errorf("Prefix = %q, want %q", got, "ab")
	}
	if got := string(k.Suffix[:2]); got != "ba" {
		t.Errorf("Suffix = %q, want %q", got, "ba")
	}
	for i := 2; i < affixLen; i++ {
		if k.Prefix[i] != 0 || k.Suffix[i] != 0 {
			t.Errorf("affix byte %d not zero", i)
		}
	}
}

func TestPutGet(t *testing.T) {
	c := New(16)
	key := MakeRunKey("hi", 1, size14)
	in := glyphsFor("hi")
	c.Put(key, in, 12)

	run, ok := c.Get(key)
	if !ok {
		t.Fatal("Get() miss after Put")
	}
	if len(run.Glyphs) != 2 || run.Width != 12 {
		t.Errorf("Run = %d glyphs, width %v, want 2, 12", len(run.Glyphs), run.Width)
	}
	for i := range in {
		if run.Glyphs[i] != in[i] {
			t.Errorf("Glyphs[%d] = %+v, want %+v", i, run.Glyphs[i], in[i])
		}
	}
	hits, misses, _ := c.Stats()
	if hits != 1 || misses != 0 {
		t.Errorf("Stats() = %d hits, %d misses, want 1, 0", hits, misses)
	}
}

func TestGetMiss(t *testing.T) {
	c := New(16)
	if _, ok := c.Get(MakeRunKey("nope", 1, size14)); ok {
		t.Error("Get() on empty cache reported a hit")
	}
	_, misses, _ := c.Stats()
	if misses != 1 {
		t.Errorf("misses = %d, want 1", misses)
	}
}

func TestPutOverwritesInPlace(t *testing.T) {
	c := New(16)
	key := MakeRunKey("hi", 1, size14)
	c.Put(key, glyphsFor("hi"), 12)
	c.Put(key, glyphsFor("hi"), 13)

	if got := c.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}
	run, ok := c.Get(key)
	if !ok || run.Width != 13 {
		t.Errorf("Get() = %v, width %v, want hit with width 13", ok, run.Width)
	}
}

func TestPutSkipsOversizeRun(t *testing.T) {
	c := New(16)
	key := MakeRunKey("long", 1, size14)
	c.Put(key, make([]font.ShapedGlyph, MaxRunGlyphs+1), 500)
	if _, ok := c.Get(key); ok {
		t.Error("oversize run was cached")
	}
}

func TestPutSkipsFallbackGlyphs(t *testing.T) {
	c := New(16)
	key := MakeRunKey("mixed", 1, size14)
	gs := glyphsFor("mixed")
	gs[2].Fallback = 7
	c.Put(key, gs, 30)
	if _, ok := c.Get(key); ok {
		t.Error("run with fallback glyphs was cached")
	}
}

func TestLRUEviction(t *testing.T) {
	c := New(4)
	keys := make([]RunKey, 5)
	for i := range keys {
		text := fmt.Sprintf("run-%d", i)
		keys[i] = MakeRunKey(text, 1, size14)
	}
	for i := 0; i < 4; i++ {
		c.Put(keys[i], glyphsFor("x"), float32(i))
	}
	// Touch 0 so 1 becomes the oldest.
	if _, ok := c.Get(keys[0]); !ok {
		t.Fatal("Get(keys[0]) miss")
	}

	c.Put(keys[4], glyphsFor("x"), 4)

	if _, ok := c.Get(keys[1]); ok {
		t.Error("least recently used entry survived eviction")
	}
	for _, i := range []int{0, 2, 3, 4} {
		if _, ok := c.Get(keys[i]); !ok {
			t.Errorf("keys[%d] missing, only the LRU entry should be evicted", i)
		}
	}
	_, _, evictions := c.Stats()
	if evictions != 1 {
		t.Errorf("evictions = %d, want 1", evictions)
	}
}

func TestLRUTieBreakLowestIndex(t *testing.T) {
	c := New(4)
	// Fill without any Get: all entries carry distinct ticks in pool
	// order, so the lowest index is also the oldest. Overfill repeatedly
	// and confirm eviction order follows insertion order.
	var keys []RunKey
	for i := 0; i < 6; i++ {
		k := MakeRunKey(fmt.Sprintf("t-%d", i), 1, size14)
		keys = append(keys, k)
		c.Put(k, glyphsFor("x"), 0)
	}
	for _, i := range []int{0, 1} {
		if _, ok := c.Get(keys[i]); ok {
			t.Errorf("keys[%d] survived, want evicted in insertion order", i)
		}
	}
	for _, i := range []int{2, 3, 4, 5} {
		if _, ok := c.Get(keys[i]); !ok {
			t.Errorf("keys[%d] missing", i)
		}
	}
}

// TestRemovalKeepsChainsReachable drives many evictions through a full
// pool and verifies that entries displaced in shared probe chains remain
// reachable after unrelated removals. A tombstone-free table that fails
// to rehash on removal breaks this within a few hundred iterations.
func TestRemovalKeepsChainsReachable(t *testing.T) {
	c := New(8)
	live := make(map[string]RunKey)
	order := []string{}

	for i := 0; i < 1000; i++ {
		text := fmt.Sprintf("chain-%d", i)
		k := MakeRunKey(text, 1, size14)
		c.Put(k, glyphsFor("x"), float32(i))
		live[text] = k
		order = append(order, text)

		// The pool holds the 8 most recent puts (Gets below refresh
		// recency in put order, so insertion order is eviction order).
		if len(order) > 8 {
			delete(live, order[0])
			order = order[1:]
		}
		for _, text := range order {
			run, ok := c.Get(live[text])
			if !ok {
				t.Fatalf("iteration %d: %q unreachable after eviction rehash", i, text)
			}
			_ = run
		}
	}
	if got := c.Len(); got != 8 {
		t.Errorf("Len() = %d, want 8", got)
	}
}

func TestCheckFont(t *testing.T) {
	c := New(16)
	key := MakeRunKey("hi", 1, size14)
	c.CheckFont(1)
	c.Put(key, glyphsFor("hi"), 12)

	c.CheckFont(1)
	if _, ok := c.Get(key); !ok {
		t.Fatal("same font must not invalidate")
	}

	c.CheckFont(2)
	if _, ok := c.Get(key); ok {
		t.Error("font change must clear the cache")
	}
	if got := c.Len(); got != 0 {
		t.Errorf("Len() = %d, want 0", got)
	}
}

func TestClear(t *testing.T) {
	c := New(16)
	for i := 0; i < 5; i++ {
		c.Put(MakeRunKey(fmt.Sprintf("c-%d", i), 1, size14), glyphsFor("x"), 0)
	}
	c.Clear()
	if got := c.Len(); got != 0 {
		t.Errorf("Len() = %d, want 0", got)
	}
	for i := 0; i < 5; i++ {
		if _, ok := c.Get(MakeRunKey(fmt.Sprintf("c-%d", i), 1, size14)); ok {
			t.Errorf("entry %d survived Clear", i)
		}
	}
}

func TestKeysDifferBySizeAndFont(t *testing.T) {
	a := MakeRunKey("same", 1, size14)
	b := MakeRunKey("same", 2, size14)
	d := MakeRunKey("same", 1, fixed.Int26_6(15<<6))
	if a == b || a == d {
		t.Error("keys must differ across font and size")
	}
}
