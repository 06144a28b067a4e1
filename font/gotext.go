package font

import (
	"sync"

	"github.com/go-text/typesetting/di"
	gtfont "github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/unicode/bidi"
)

// GoTextShaper provides HarfBuzz-level shaping via go-text/typesetting:
// ligatures, kerning, contextual alternates, right-to-left scripts.
//
// When constructed with a Registry, fallback faces can be configured with
// SetFallbacks; runs of text not covered by the primary face are shaped
// with the first fallback that covers them, and the resulting glyphs carry
// that face's registry handle in ShapedGlyph.Fallback.
//
// GoTextShaper is safe for concurrent use. HarfbuzzShaper instances have
// internal mutable buffers and are pooled; a lightweight gtfont.Face is
// created per segment from the thread-safe parsed font.
type GoTextShaper struct {
	// shaperPool pools HarfbuzzShaper instances, which are not safe for
	// concurrent use.
	shaperPool sync.Pool

	reg *Registry

	mu        sync.RWMutex
	fallbacks []ID
}

// NewGoTextShaper creates a shaper. reg may be nil if fallback faces are
// never configured.
func NewGoTextShaper(reg *Registry) *GoTextShaper {
	return &GoTextShaper{
		shaperPool: sync.Pool{
			New: func() any {
				return &shaping.HarfbuzzShaper{}
			},
		},
		reg: reg,
	}
}

// SetFallbacks configures the ordered fallback faces consulted for runes
// the primary face does not cover. Returns ErrFallbackNotSupported when
// the shaper was built without a registry.
func (s *GoTextShaper) SetFallbacks(ids ...ID) error {
	if s.reg == nil {
		return ErrFallbackNotSupported
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallbacks = append(s.fallbacks[:0], ids...)
	return nil
}

// Shape implements Shaper.
func (s *GoTextShaper) Shape(face Face, text string, size fixed.Int26_6) (ShapedRun, error) {
	otf, ok := face.(*OpenTypeFace)
	if !ok {
		return ShapedRun{}, ErrUnsupportedFace
	}
	if text == "" {
		return ShapedRun{}, nil
	}

	runes := []rune(text)
	byteOffsets := runeByteOffsets(text, runes)
	dir := detectDirection(text)

	segments := s.segmentByCoverage(otf, runes)

	var run ShapedRun
	for _, seg := range segments {
		input := shaping.Input{
			Text:      runes,
			RunStart:  seg.start,
			RunEnd:    seg.end,
			Direction: dir,
			Face:      gtfont.NewFace(seg.face.typesettingFont()),
			Size:      size,
			Script:    detectScript(runes[seg.start:seg.end]),
			Language:  language.NewLanguage("en"),
		}

		hb := s.shaperPool.Get().(*shaping.HarfbuzzShaper)
		output := hb.Shape(input)
		s.shaperPool.Put(hb)

		for _, g := range output.Glyphs {
			cluster := 0
			if ti := g.TextIndex(); ti >= 0 && ti < len(byteOffsets) {
				cluster = byteOffsets[ti]
			}
			gid := GlyphID(g.GlyphID) //nolint:gosec // glyph ids above 64K require subsetting
			run.Glyphs = append(run.Glyphs, ShapedGlyph{
				GID:      gid,
				Cluster:  int32(cluster), //nolint:gosec // byte offsets fit int32
				XOffset:  fixedToFloat32(g.XOffset),
				YOffset:  -fixedToFloat32(g.YOffset),
				XAdvance: fixedToFloat32(g.XAdvance),
				YAdvance: fixedToFloat32(g.YAdvance),
				Fallback: seg.id,
				IsColor:  seg.face.GlyphIsColor(gid),
			})
		}
		run.Width += fixedToFloat32(output.Advance)
	}
	return run, nil
}

// coverageSegment is a maximal rune range shaped with a single face.
type coverageSegment struct {
	start, end int
	face       *OpenTypeFace
	id         ID // zero for the primary face
}

// segmentByCoverage splits runes into maximal ranges by which face covers
// them. Runes nobody covers stay with the primary face and shape to its
// notdef glyph.
func (s *GoTextShaper) segmentByCoverage(primary *OpenTypeFace, runes []rune) []coverageSegment {
	s.mu.RLock()
	fallbacks := s.fallbacks
	s.mu.RUnlock()

	if len(fallbacks) == 0 || s.reg == nil {
		return []coverageSegment{{start: 0, end: len(runes), face: primary}}
	}

	pick := func(r rune) (ID, *OpenTypeFace) {
		if _, ok := primary.GlyphIndex(r); ok {
			return 0, primary
		}
		for _, id := range fallbacks {
			fb, ok := s.reg.Face(id).(*OpenTypeFace)
			if !ok {
				continue
			}
			if _, ok := fb.GlyphIndex(r); ok {
				return id, fb
			}
		}
		return 0, primary
	}

	var segs []coverageSegment
	curID, curFace := pick(runes[0])
	start := 0
	for i := 1; i < len(runes); i++ {
		// Whitespace joins the current segment to avoid splitting runs
		// on every space.
		if runes[i] == ' ' || runes[i] == '\t' {
			continue
		}
		id, face := pick(runes[i])
		if id == curID {
			continue
		}
		segs = append(segs, coverageSegment{start: start, end: i, face: curFace, id: curID})
		start, curID, curFace = i, id, face
	}
	return append(segs, coverageSegment{start: start, end: len(runes), face: curFace, id: curID})
}

// detectDirection returns the paragraph direction for shaping.
func detectDirection(text string) di.Direction {
	p := bidi.Paragraph{}
	_, _ = p.SetString(text)
	ordering, err := p.Order()
	if err != nil || ordering.NumRuns() == 0 {
		return di.DirectionLTR
	}
	run := ordering.Run(0)
	if run.Direction() == bidi.RightToLeft {
		return di.DirectionRTL
	}
	return di.DirectionLTR
}

// detectScript inspects the runes and returns the script of the first
// non-space character. Mixed-script text should be split by script before
// shaping.
func detectScript(runes []rune) language.Script {
	for _, r := range runes {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			continue
		}
		return language.LookupScript(r)
	}
	return language.Latin
}

// runeByteOffsets maps rune indices to byte offsets in text.
func runeByteOffsets(text string, runes []rune) []int {
	offsets := make([]int, len(runes)+1)
	offset := 0
	for i, r := range runes {
		offsets[i] = offset
		offset += len(string(r))
	}
	offsets[len(runes)] = len(text)
	return offsets
}

// fixedToFloat32 converts a 26.6 fixed-point value to float32 pixels.
func fixedToFloat32(v fixed.Int26_6) float32 {
	return float32(v) / 64.0
}
