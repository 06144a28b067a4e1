package glyph

import (
	"golang.org/x/image/math/fixed"

	"github.com/gogpu/textcore/atlas"
	"github.com/gogpu/textcore/font"
)

// Key uniquely identifies a rasterized glyph variant. All fields that
// affect the bitmap are included: face handle, glyph id, 26.6 fixed-point
// size and device scale, and the quantized subpixel offsets.
type Key struct {
	Font      font.ID
	GID       font.GlyphID
	Size      fixed.Int26_6
	Scale     fixed.Int26_6
	SubpixelX uint8
	SubpixelY uint8
}

// hash mixes the key with two multiply-xorshift rounds. Fast and
// well-distributing for the small, structured key space.
func (k Key) hash() uint64 {
	const (
		m1 = 0x9e3779b97f4a7c15
		m2 = 0xc2b2ae3d27d4eb4f
	)
	a := uint64(k.Font)<<32 | uint64(k.GID)<<16 | uint64(k.SubpixelX)<<8 | uint64(k.SubpixelY)
	b := uint64(uint32(k.Size))<<32 | uint64(uint32(k.Scale)) //nolint:gosec // bit pattern only
	h := (a ^ b) * m1
	h ^= h >> 32
	h *= m2
	h ^= h >> 29
	return h
}

// CachedGlyph is a glyph resolved to an atlas region plus the metrics the
// renderer needs to position its quad.
type CachedGlyph struct {
	// Region is the glyph bitmap's location in the atlas, in pixels.
	// Zero-sized for glyphs with no visible bitmap (whitespace, color
	// glyphs that were flagged but not rasterized).
	Region atlas.Region

	// OffsetX, OffsetY position the bitmap's top-left corner relative to
	// the baseline origin, in y-down pixels.
	OffsetX, OffsetY float32

	// AdvanceX is the horizontal advance in pixels.
	AdvanceX float32

	// IsColor reports color (bitmap/SVG) glyph data.
	IsColor bool

	// AtlasSize is the atlas size captured when this entry was cached and
	// patched on every growth event. UV computation must use this value,
	// never a live read of the atlas size, so that a concurrent growth on
	// another goroutine cannot skew texture coordinates.
	AtlasSize int
}

// UV returns normalized texture coordinates for the glyph's quad.
func (g CachedGlyph) UV() (u0, v0, u1, v1 float32) {
	if g.AtlasSize == 0 {
		return 0, 0, 0, 0
	}
	s := float32(g.AtlasSize)
	u0 = float32(g.Region.X) / s
	v0 = float32(g.Region.Y) / s
	u1 = float32(g.Region.X+g.Region.Width) / s
	v1 = float32(g.Region.Y+g.Region.Height) / s
	return u0, v0, u1, v1
}
