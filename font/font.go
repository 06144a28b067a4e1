package font

import (
	"errors"
	"sync"

	"golang.org/x/image/math/fixed"
)

// Sentinel errors for the font package.
var (
	// ErrEmptyFontData is returned when font data is empty.
	ErrEmptyFontData = errors.New("font: empty font data")

	// ErrUnsupportedFace is returned when a shaper is handed a Face
	// implementation it cannot shape with.
	ErrUnsupportedFace = errors.New("font: unsupported face implementation")

	// ErrFallbackNotSupported is returned when fallback faces are configured
	// on a shaper that has no registry to resolve them against.
	ErrFallbackNotSupported = errors.New("font: fallback faces not supported")

	// ErrBufferTooSmall is returned by RenderGlyphSubpixel when the
	// destination buffer cannot hold the rasterized glyph.
	ErrBufferTooSmall = errors.New("font: render buffer too small")
)

// GlyphID is a glyph index within a font, assigned by the font file.
type GlyphID uint16

// ID is an opaque handle for a registered Face.
// The zero value means "no face".
type ID uint32

// Metrics holds font-wide vertical metrics scaled to a specific size,
// in pixels.
type Metrics struct {
	// Ascent is the distance from the baseline to the top of the font
	// (positive).
	Ascent float64

	// Descent is the distance from the baseline to the bottom of the font
	// (positive, below baseline).
	Descent float64

	// LineGap is the recommended extra gap between lines.
	LineGap float64
}

// LineHeight returns the recommended vertical distance between baselines.
func (m Metrics) LineHeight() float64 {
	return m.Ascent + m.Descent + m.LineGap
}

// RenderedGlyph describes a glyph bitmap produced by RenderGlyphSubpixel.
// The bitmap is a single-channel alpha mask written row by row into the
// caller's buffer.
type RenderedGlyph struct {
	// Width, Height are the bitmap dimensions in pixels.
	Width, Height int

	// OffsetX, OffsetY position the bitmap's top-left corner relative to
	// the glyph origin on the baseline, in y-down device pixels.
	// OffsetY is typically negative (the glyph extends above the baseline).
	OffsetX, OffsetY float32

	// AdvanceX is the horizontal advance in pixels at the rendered size.
	AdvanceX float32

	// IsColor reports that the glyph has color (bitmap/SVG) data.
	// Color glyphs are flagged but not composited; Width and Height are
	// zero for them.
	IsColor bool
}

// Face is the capability the glyph cache renders through.
//
// Implementations need not be safe for concurrent use by themselves;
// the text system serializes rendering behind its glyph lock.
type Face interface {
	// GlyphIndex returns the glyph id for a rune, and whether the font
	// covers it.
	GlyphIndex(r rune) (GlyphID, bool)

	// Metrics returns font-wide metrics at the given 26.6 fixed-point
	// pixel size.
	Metrics(size fixed.Int26_6) Metrics

	// Advance returns the horizontal advance of a glyph in pixels at the
	// given 26.6 fixed-point pixel size.
	Advance(gid GlyphID, size fixed.Int26_6) float32

	// RenderGlyphSubpixel rasterizes a glyph into dst at the given size,
	// device scale and fractional pixel offsets (each in [0, 1)).
	// dst is written row by row with the given stride and must be large
	// enough for the resulting bitmap; ErrBufferTooSmall is returned
	// otherwise. Rows covered by the bitmap are cleared before drawing.
	RenderGlyphSubpixel(gid GlyphID, size, scale fixed.Int26_6, subX, subY float32, dst []byte, stride int) (RenderedGlyph, error)
}

// ShapedGlyph is one positioned glyph produced by a Shaper.
type ShapedGlyph struct {
	// GID is the glyph index in the face that shaped it.
	GID GlyphID

	// Cluster is the byte index in the source text this glyph starts at.
	Cluster int32

	// XOffset, YOffset are fine positioning adjustments relative to the
	// pen position, in pixels.
	XOffset, YOffset float32

	// XAdvance, YAdvance are pen advances in pixels.
	XAdvance, YAdvance float32

	// Fallback is the registry handle of the fallback face this glyph was
	// shaped with, or zero when the primary face was used.
	Fallback ID

	// IsColor reports that the shaper identified color glyph data.
	IsColor bool
}

// ShapedRun is the result of shaping one text run.
type ShapedRun struct {
	// Glyphs is the positioned glyph sequence in visual order.
	Glyphs []ShapedGlyph

	// Width is the total horizontal advance in pixels.
	Width float32
}

// Shaper converts text into positioned glyphs.
// Shape may be expensive (it can cross into a platform shaping engine);
// callers are expected to cache its results.
type Shaper interface {
	Shape(face Face, text string, size fixed.Int26_6) (ShapedRun, error)
}

// Registry maps opaque IDs to Faces. Handles are stable for the lifetime
// of the registry, which makes them safe to embed in cache keys.
//
// Registry is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	faces []Face
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a face and returns its handle. Handles start at 1.
func (r *Registry) Register(f Face) ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.faces = append(r.faces, f)
	return ID(len(r.faces))
}

// Face returns the face for a handle, or nil if the handle is unknown.
func (r *Registry) Face(id ID) Face {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id == 0 || int(id) > len(r.faces) {
		return nil
	}
	return r.faces[id-1]
}

// Len returns the number of registered faces.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.faces)
}

// FixedFromFloat converts a float64 pixel size to 26.6 fixed point.
func FixedFromFloat(v float64) fixed.Int26_6 {
	return fixed.Int26_6(v * 64)
}

// FloatFromFixed converts a 26.6 fixed-point value to float64 pixels.
func FloatFromFixed(v fixed.Int26_6) float64 {
	return float64(v) / 64.0
}
