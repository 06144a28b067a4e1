package textcore

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"golang.org/x/image/math/fixed"

	"github.com/gogpu/textcore/cache"
	"github.com/gogpu/textcore/font"
	"github.com/gogpu/textcore/glyph"
)

// Config holds TextSystem configuration.
type Config struct {
	// Registry resolves face handles. Created if nil.
	Registry *font.Registry

	// Shaper converts text to glyphs. Defaults to a GoTextShaper bound
	// to the registry.
	Shaper font.Shaper

	// RunCacheEntries is the shaped-run pool size.
	// Default: cache.DefaultMaxEntries
	RunCacheEntries int

	// Glyph configures the glyph cache and its atlas. Zero value uses
	// glyph defaults. SubpixelDivisions is overridden to match Subpixel.
	Glyph glyph.Config

	// Subpixel controls subpixel position quantization.
	// Nil uses DefaultSubpixelConfig; NoSubpixelConfig disables it.
	Subpixel *SubpixelConfig
}

// ShapeStats accumulates per-call shaping statistics when passed to
// ShapeText or ShapeTextInto. Callers own it; it is not synchronized.
type ShapeStats struct {
	Hits        uint64
	Misses      uint64
	ShaperCalls uint64
}

// Run is a shaped text run returned to callers.
type Run struct {
	// Glyphs is the positioned glyph sequence.
	Glyphs []font.ShapedGlyph

	// Width is the total horizontal advance in logical pixels.
	Width float32

	// Owned reports that Glyphs is private to the caller. When false
	// (the ShapeTextInto hit path) the slice aliases the caller-supplied
	// buffer and is overwritten by the next call that reuses it.
	// Call sites must check Owned before retaining Glyphs.
	Owned bool
}

// TextSystem composes the shaped-run cache, the glyph cache and the
// active font capabilities. Two independent mutexes guard the caches;
// they are never held simultaneously, so shape resolution and glyph
// resolution cannot deadlock against each other by construction.
//
// TextSystem is safe for concurrent use from multiple render threads.
type TextSystem struct {
	reg    *font.Registry
	shaper font.Shaper

	// shapeMu guards runs. Cached glyphs are copied out before the lock
	// is released; read-only measurement scans stay under it.
	shapeMu sync.Mutex
	runs    *cache.RunCache

	// glyphMu guards glyphs and its atlas. Batch resolution acquires it
	// exactly once per run.
	glyphMu sync.Mutex
	glyphs  *glyph.Cache

	// faceID is the active primary face handle; zero means none.
	faceID atomic.Uint32

	subpixel SubpixelConfig
}

// New creates a TextSystem.
func New(cfg Config) (*TextSystem, error) {
	reg := cfg.Registry
	if reg == nil {
		reg = font.NewRegistry()
	}
	shaper := cfg.Shaper
	if shaper == nil {
		shaper = font.NewGoTextShaper(reg)
	}
	sub := DefaultSubpixelConfig()
	if cfg.Subpixel != nil {
		sub = *cfg.Subpixel
	}

	gcfg := cfg.Glyph
	gcfg.SubpixelDivisions = sub.Mode.Divisions()
	if gcfg.Logger == nil {
		gcfg.Logger = Logger()
	}
	glyphs, err := glyph.New(gcfg)
	if err != nil {
		return nil, err
	}

	return &TextSystem{
		reg:      reg,
		shaper:   shaper,
		runs:     cache.New(cfg.RunCacheEntries),
		glyphs:   glyphs,
		subpixel: sub,
	}, nil
}

// Registry returns the font registry.
func (ts *TextSystem) Registry() *font.Registry { return ts.reg }

// Subpixel returns the subpixel configuration.
func (ts *TextSystem) Subpixel() SubpixelConfig { return ts.subpixel }

// LoadFaceFromData parses TTF/OTF data and registers the face.
func (ts *TextSystem) LoadFaceFromData(data []byte) (font.ID, error) {
	face, err := font.NewOpenTypeFace(data)
	if err != nil {
		return 0, err
	}
	return ts.reg.Register(face), nil
}

// SetFace binds the active primary face. Both caches are invalidated on
// the next access through their font checks; the glyph cache is cleared
// eagerly since its atlas content belongs to the previous face's working
// set.
func (ts *TextSystem) SetFace(id font.ID) error {
	if ts.reg.Face(id) == nil {
		return ErrNoFontLoaded
	}
	old := ts.faceID.Swap(uint32(id))
	if old != 0 && old != uint32(id) {
		ts.glyphMu.Lock()
		ts.glyphs.Clear()
		ts.glyphMu.Unlock()
	}
	return nil
}

// Face returns the active primary face handle, zero when none is bound.
func (ts *TextSystem) Face() font.ID {
	return font.ID(ts.faceID.Load())
}

// SetFallbacks configures ordered fallback faces on the shaper. Returns
// ErrFallbackNotSupported when the shaper has no manual fallback path.
func (ts *TextSystem) SetFallbacks(ids ...font.ID) error {
	fs, ok := ts.shaper.(interface{ SetFallbacks(...font.ID) error })
	if !ok {
		return ErrFallbackNotSupported
	}
	return fs.SetFallbacks(ids...)
}

// ShapeText shapes text at the given logical pixel size, consulting the
// shaped-run cache. The returned Run always owns its glyph slice.
//
// On a hit the cached glyphs are copied before the shape lock is
// released: another thread may evict the entry the instant the lock
// drops, so a returned slice aliasing cache memory would be a data race.
// On a miss the shaper, the single most expensive call in the pipeline,
// runs with the lock released; only the final store re-acquires it.
func (ts *TextSystem) ShapeText(text string, size float64, stats *ShapeStats) (Run, error) {
	fid := ts.Face()
	if fid == 0 {
		return Run{}, ErrNoFontLoaded
	}
	sz := font.FixedFromFloat(size)
	key := cache.MakeRunKey(text, fid, sz)

	ts.shapeMu.Lock()
	ts.runs.CheckFont(fid)
	if view, ok := ts.runs.Get(key); ok {
		glyphs := make([]font.ShapedGlyph, len(view.Glyphs))
		copy(glyphs, view.Glyphs)
		width := view.Width
		ts.shapeMu.Unlock()
		if stats != nil {
			stats.Hits++
		}
		return Run{Glyphs: glyphs, Width: width, Owned: true}, nil
	}
	ts.shapeMu.Unlock()

	run, err := ts.shapeUncached(fid, text, sz, stats)
	if err != nil {
		return Run{}, err
	}

	ts.shapeMu.Lock()
	ts.runs.Put(key, run.Glyphs, run.Width)
	ts.shapeMu.Unlock()
	return run, nil
}

// shapeUncached invokes the shaper outside any lock.
func (ts *TextSystem) shapeUncached(fid font.ID, text string, sz fixed.Int26_6, stats *ShapeStats) (Run, error) {
	face := ts.reg.Face(fid)
	if face == nil {
		return Run{}, ErrNoFontLoaded
	}
	shaped, err := ts.shaper.Shape(face, text, sz)
	if err != nil {
		return Run{}, err
	}
	if stats != nil {
		stats.Misses++
		stats.ShaperCalls++
	}
	return Run{Glyphs: shaped.Glyphs, Width: shaped.Width, Owned: true}, nil
}

// ShapeTextInto is the zero-allocation warm path. On a cache hit the
// glyphs are copied directly into buf and the returned Run aliases it
// (Owned=false). On a miss, or when the run exceeds buf, it falls back
// to ShapeText and the result owns its memory (Owned=true).
func (ts *TextSystem) ShapeTextInto(text string, size float64, stats *ShapeStats, buf []font.ShapedGlyph) (Run, error) {
	fid := ts.Face()
	if fid == 0 {
		return Run{}, ErrNoFontLoaded
	}
	sz := font.FixedFromFloat(size)
	key := cache.MakeRunKey(text, fid, sz)

	ts.shapeMu.Lock()
	ts.runs.CheckFont(fid)
	if view, ok := ts.runs.Get(key); ok && len(view.Glyphs) <= len(buf) {
		n := copy(buf, view.Glyphs)
		width := view.Width
		ts.shapeMu.Unlock()
		if stats != nil {
			stats.Hits++
		}
		return Run{Glyphs: buf[:n], Width: width, Owned: false}, nil
	}
	ts.shapeMu.Unlock()

	return ts.ShapeText(text, size, stats)
}

// ResolveGlyphBatch resolves shaped glyphs to cached atlas regions,
// acquiring the glyph lock exactly once for the whole batch. Lock
// traffic has a fixed cost that would be wasted N-1 times if taken per
// glyph.
//
// Glyphs carrying a fallback handle resolve through that face; others
// use the active primary face. size and scaleFactor are logical pixels
// and the device scale. subpixels may be nil (whole-pixel positions) or
// must be at least len(glyphs). A glyph too large for the atlas yields a
// zero CachedGlyph and is skipped, not fatal to the batch.
func (ts *TextSystem) ResolveGlyphBatch(glyphs []font.ShapedGlyph, size, scaleFactor float64, subpixels []uint8, out []glyph.CachedGlyph) error {
	if len(out) < len(glyphs) {
		return ErrBatchSize
	}
	if subpixels != nil && len(subpixels) < len(glyphs) {
		return ErrBatchSize
	}
	fid := ts.Face()
	primary := ts.reg.Face(fid)
	if primary == nil {
		return ErrNoFontLoaded
	}
	sz := font.FixedFromFloat(size)
	sc := font.FixedFromFloat(scaleFactor)

	ts.glyphMu.Lock()
	defer ts.glyphMu.Unlock()

	for i := range glyphs {
		face, id := primary, fid
		if fb := glyphs[i].Fallback; fb != 0 {
			if fbFace := ts.reg.Face(fb); fbFace != nil {
				face, id = fbFace, fb
			}
		}
		var sub uint8
		if subpixels != nil {
			sub = subpixels[i]
		}
		cg, err := ts.glyphs.GetOrRender(face, id, glyphs[i].GID, sz, sc, sub, 0)
		if err != nil {
			if errors.Is(err, ErrGlyphTooLarge) {
				out[i] = glyph.CachedGlyph{}
				continue
			}
			return err
		}
		out[i] = cg
	}
	return nil
}

// AtlasGeneration returns the atlas mutation counter. Renderers
// re-upload the texture only when it changes.
func (ts *TextSystem) AtlasGeneration() uint64 {
	ts.glyphMu.Lock()
	defer ts.glyphMu.Unlock()
	return ts.glyphs.Atlas().Generation()
}

// WithAtlas calls fn with the atlas pixel data under the glyph lock.
// The renderer uploads from within fn; the slice must not be retained.
func (ts *TextSystem) WithAtlas(fn func(data []byte, size int, format gputypes.TextureFormat, generation uint64)) {
	ts.glyphMu.Lock()
	defer ts.glyphMu.Unlock()
	a := ts.glyphs.Atlas()
	fn(a.Data(), a.Size(), a.Format(), a.Generation())
}

// ClearCaches resets both caches and the atlas without reallocating.
func (ts *TextSystem) ClearCaches() {
	ts.shapeMu.Lock()
	ts.runs.Clear()
	ts.shapeMu.Unlock()

	ts.glyphMu.Lock()
	ts.glyphs.Clear()
	ts.glyphMu.Unlock()
}

// Stats returns the run cache and glyph cache counters.
func (ts *TextSystem) Stats() (runHits, runMisses, runEvictions, glyphHits, glyphMisses, glyphResets uint64) {
	runHits, runMisses, runEvictions = ts.runs.Stats()
	glyphHits, glyphMisses, glyphResets = ts.glyphs.Stats()
	return
}
