package textcore

import (
	"image/color"
	"math"

	"github.com/gogpu/textcore/cache"
	"github.com/gogpu/textcore/font"
	"github.com/gogpu/textcore/glyph"
)

// GlyphInstance is one textured quad in device pixels. X, Y is the
// quad's top-left corner; U0..V1 are normalized atlas coordinates.
type GlyphInstance struct {
	X, Y          float32
	Width, Height float32
	U0, V0        float32
	U1, V1        float32
	Color         color.RGBA
	IsColor       bool
}

// DrawList accumulates glyph instances for one frame. Instances is
// append-only between Resets so a renderer can batch several RenderText
// calls into a single instanced draw.
type DrawList struct {
	Instances []GlyphInstance

	// Generation is the atlas generation the instances' UVs were computed
	// against. The renderer compares it with AtlasGeneration to decide
	// whether the texture needs re-upload before drawing.
	Generation uint64
}

// Reset clears the list for the next frame, keeping capacity.
func (dl *DrawList) Reset() {
	dl.Instances = dl.Instances[:0]
	dl.Generation = 0
}

// RenderOptions customizes RenderText.
type RenderOptions struct {
	// LetterSpacing is extra advance per glyph in logical pixels.
	LetterSpacing float64
}

// RenderText shapes text and appends one instance per visible glyph to
// list. x and baselineY are the pen origin in logical pixels;
// scaleFactor converts logical to device pixels. Returns the advanced
// width in logical pixels.
//
// The warm path allocates nothing: shaping lands in a stack buffer via
// ShapeTextInto, glyph resolution runs as one batch under a single lock
// acquisition, and instances append into list's existing capacity.
func RenderText(list *DrawList, ts *TextSystem, text string, x, baselineY, scaleFactor float64, col color.RGBA, size float64, opts RenderOptions) (float64, error) {
	if text == "" {
		return 0, nil
	}
	var (
		glyphBuf [cache.MaxRunGlyphs]font.ShapedGlyph
		subBuf   [cache.MaxRunGlyphs]uint8
		cgBuf    [cache.MaxRunGlyphs]glyph.CachedGlyph
	)

	run, err := ts.ShapeTextInto(text, size, nil, glyphBuf[:])
	if err != nil {
		return 0, err
	}
	glyphs := run.Glyphs

	// Quantize each glyph's device-space pen fraction before resolution
	// so the rasterized bitmap matches its final screen position.
	sub := ts.Subpixel()
	var subs []uint8
	if sub.IsEnabled() && len(glyphs) <= len(subBuf) {
		pen := x * scaleFactor
		for i := range glyphs {
			gx := pen + float64(glyphs[i].XOffset)*scaleFactor
			subBuf[i] = sub.QuantizeX(gx - math.Floor(gx))
			pen += (float64(glyphs[i].XAdvance) + opts.LetterSpacing) * scaleFactor
		}
		subs = subBuf[:len(glyphs)]
	}

	var cached []glyph.CachedGlyph
	if len(glyphs) <= len(cgBuf) {
		cached = cgBuf[:len(glyphs)]
	} else {
		cached = make([]glyph.CachedGlyph, len(glyphs))
	}
	if err := ts.ResolveGlyphBatch(glyphs, size, scaleFactor, subs, cached); err != nil {
		return 0, err
	}

	pen := x * scaleFactor
	baseDev := baselineY * scaleFactor
	for i := range glyphs {
		cg := cached[i]
		gx := pen + float64(glyphs[i].XOffset)*scaleFactor
		if cg.Region.Width > 0 && cg.Region.Height > 0 {
			u0, v0, u1, v1 := cg.UV()
			list.Instances = append(list.Instances, GlyphInstance{
				X:       float32(math.Floor(gx)) + cg.OffsetX,
				Y:       float32(baseDev) + glyphs[i].YOffset*float32(scaleFactor) + cg.OffsetY,
				Width:   float32(cg.Region.Width),
				Height:  float32(cg.Region.Height),
				U0:      u0,
				V0:      v0,
				U1:      u1,
				V1:      v1,
				Color:   col,
				IsColor: cg.IsColor,
			})
		}
		pen += (float64(glyphs[i].XAdvance) + opts.LetterSpacing) * scaleFactor
	}
	list.Generation = ts.AtlasGeneration()

	return (pen - x*scaleFactor) / scaleFactor, nil
}
