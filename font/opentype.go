package font

import (
	"bytes"
	"image"
	"image/draw"
	"math"
	"sync"

	gtfont "github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/font/opentype"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// OpenTypeFace is a Face backed by go-text/typesetting font parsing and
// golang.org/x/image/vector rasterization.
//
// The underlying typesetting face keeps per-glyph caches that are not safe
// for concurrent use, so all access goes through an internal mutex. The
// read-only *gtfont.Font is shared with shapers without locking.
type OpenTypeFace struct {
	mu   sync.Mutex
	face *gtfont.Face

	// fnt is the thread-safe parsed font, shared with GoTextShaper.
	fnt  *gtfont.Font
	upem float32
}

// NewOpenTypeFace parses TTF/OTF font data into a Face.
// The data is not copied; callers must not modify it afterwards.
func NewOpenTypeFace(data []byte) (*OpenTypeFace, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFontData
	}
	face, err := gtfont.ParseTTF(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return &OpenTypeFace{
		face: face,
		fnt:  face.Font,
		upem: float32(face.Upem()),
	}, nil
}

// typesettingFont exposes the parsed font to shapers in this package.
func (f *OpenTypeFace) typesettingFont() *gtfont.Font {
	return f.fnt
}

// GlyphIndex implements Face.
func (f *OpenTypeFace) GlyphIndex(r rune) (GlyphID, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	gid, ok := f.face.NominalGlyph(r)
	if !ok {
		return 0, false
	}
	return GlyphID(gid), true //nolint:gosec // glyph ids above 64K require subsetting
}

// Metrics implements Face.
func (f *OpenTypeFace) Metrics(size fixed.Int26_6) Metrics {
	f.mu.Lock()
	defer f.mu.Unlock()

	scale := float64(size) / 64 / float64(f.upem)
	ext, ok := f.face.FontHExtents()
	if !ok {
		// Fall back to em-box proportions when the font has no hhea table.
		px := float64(size) / 64
		return Metrics{Ascent: px * 0.8, Descent: px * 0.2}
	}

	descent := float64(ext.Descender) * scale
	if descent < 0 {
		descent = -descent
	}
	return Metrics{
		Ascent:  float64(ext.Ascender) * scale,
		Descent: descent,
		LineGap: float64(ext.LineGap) * scale,
	}
}

// Advance implements Face.
func (f *OpenTypeFace) Advance(gid GlyphID, size fixed.Int26_6) float32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	scale := float32(size) / 64 / f.upem
	return f.face.HorizontalAdvance(gtfont.GID(gid)) * scale
}

// GlyphIsColor reports whether the glyph carries color (bitmap or SVG)
// data instead of an outline.
func (f *OpenTypeFace) GlyphIsColor(gid GlyphID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.face.GlyphData(gtfont.GID(gid)).(type) {
	case gtfont.GlyphBitmap, gtfont.GlyphSVG:
		return true
	}
	return false
}

// RenderGlyphSubpixel implements Face.
//
// The outline is scaled to size*scale pixels, shifted by the fractional
// (subX, subY) offsets, and rasterized into an alpha mask. The reported
// offsets position the mask's top-left corner relative to the baseline
// origin in y-down pixels.
func (f *OpenTypeFace) RenderGlyphSubpixel(gid GlyphID, size, scale fixed.Int26_6, subX, subY float32, dst []byte, stride int) (RenderedGlyph, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	g := gtfont.GID(gid)
	pixels := float32(size) / 64 * float32(scale) / 64
	s := pixels / f.upem
	adv := f.face.HorizontalAdvance(g) * s

	outline, ok := f.face.GlyphData(g).(gtfont.GlyphOutline)
	if !ok {
		// Bitmap and SVG glyphs are flagged as color and left to the
		// consumer; this core does not composite them.
		return RenderedGlyph{AdvanceX: adv, IsColor: true}, nil
	}
	if len(outline.Segments) == 0 {
		// Whitespace glyph: advance only.
		return RenderedGlyph{AdvanceX: adv}, nil
	}

	// Bounds in y-down raster space with the subpixel shift applied.
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	visit := func(p opentype.SegmentPoint) {
		x := float64(p.X*s + subX)
		y := float64(-p.Y*s + subY)
		minX = math.Min(minX, x)
		minY = math.Min(minY, y)
		maxX = math.Max(maxX, x)
		maxY = math.Max(maxY, y)
	}
	for _, seg := range outline.Segments {
		for i := 0; i < segmentPoints(seg.Op); i++ {
			visit(seg.Args[i])
		}
	}

	ix0 := int(math.Floor(minX))
	iy0 := int(math.Floor(minY))
	w := int(math.Ceil(maxX)) - ix0 + 1
	h := int(math.Ceil(maxY)) - iy0 + 1
	if w <= 0 || h <= 0 {
		return RenderedGlyph{AdvanceX: adv}, nil
	}
	if stride < w || len(dst) < (h-1)*stride+w {
		return RenderedGlyph{}, ErrBufferTooSmall
	}
	for y := 0; y < h; y++ {
		row := dst[y*stride : y*stride+w]
		for i := range row {
			row[i] = 0
		}
	}

	tx := func(p opentype.SegmentPoint) (float32, float32) {
		return p.X*s + subX - float32(ix0), -p.Y*s + subY - float32(iy0)
	}

	rast := vector.NewRasterizer(w, h)
	rast.DrawOp = draw.Src
	started := false
	for _, seg := range outline.Segments {
		switch seg.Op {
		case opentype.SegmentOpMoveTo:
			if started {
				rast.ClosePath()
			}
			x, y := tx(seg.Args[0])
			rast.MoveTo(x, y)
			started = true
		case opentype.SegmentOpLineTo:
			x, y := tx(seg.Args[0])
			rast.LineTo(x, y)
		case opentype.SegmentOpQuadTo:
			bx, by := tx(seg.Args[0])
			cx, cy := tx(seg.Args[1])
			rast.QuadTo(bx, by, cx, cy)
		case opentype.SegmentOpCubeTo:
			bx, by := tx(seg.Args[0])
			cx, cy := tx(seg.Args[1])
			dx, dy := tx(seg.Args[2])
			rast.CubeTo(bx, by, cx, cy, dx, dy)
		}
	}
	if started {
		rast.ClosePath()
	}

	img := &image.Alpha{
		Pix:    dst[:(h-1)*stride+w],
		Stride: stride,
		Rect:   image.Rect(0, 0, w, h),
	}
	rast.Draw(img, img.Bounds(), image.Opaque, image.Point{})

	return RenderedGlyph{
		Width:    w,
		Height:   h,
		OffsetX:  float32(ix0),
		OffsetY:  float32(iy0),
		AdvanceX: adv,
	}, nil
}

// segmentPoints returns how many Args entries an outline op uses.
func segmentPoints(op opentype.SegmentOp) int {
	switch op {
	case opentype.SegmentOpQuadTo:
		return 2
	case opentype.SegmentOpCubeTo:
		return 3
	default:
		return 1
	}
}
