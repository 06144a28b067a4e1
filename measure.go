package textcore

import (
	"github.com/gogpu/textcore/cache"
	"github.com/gogpu/textcore/font"
)

// Size is a measured text extent in logical pixels.
type Size struct {
	Width  float64
	Height float64
}

// MeasureOptions controls MeasureTextEx layout.
type MeasureOptions struct {
	// MaxWidth constrains line width when positive.
	MaxWidth float64

	// WordWrap breaks lines at word boundaries instead of clipping.
	WordWrap bool
}

// MeasureText returns the extent of a single line of text. It shares
// the shaped-run cache with ShapeText, so a measure followed by a draw
// of the same string shapes once.
//
// Unlike the shape path, a hit never copies glyphs: the width is read
// from the cached view while the lock is held and only the scalar
// escapes.
func (ts *TextSystem) MeasureText(text string, size float64) (Size, error) {
	fid := ts.Face()
	if fid == 0 {
		return Size{}, ErrNoFontLoaded
	}
	if text == "" {
		return Size{Height: ts.lineHeight(fid, size)}, nil
	}
	sz := font.FixedFromFloat(size)
	key := cache.MakeRunKey(text, fid, sz)

	ts.shapeMu.Lock()
	ts.runs.CheckFont(fid)
	if view, ok := ts.runs.Get(key); ok {
		width := float64(view.Width)
		ts.shapeMu.Unlock()
		return Size{Width: width, Height: ts.lineHeight(fid, size)}, nil
	}
	ts.shapeMu.Unlock()

	run, err := ts.shapeUncached(fid, text, sz, nil)
	if err != nil {
		return Size{}, err
	}
	ts.shapeMu.Lock()
	ts.runs.Put(key, run.Glyphs, run.Width)
	ts.shapeMu.Unlock()
	return Size{Width: float64(run.Width), Height: ts.lineHeight(fid, size)}, nil
}

// MeasureTextEx measures multi-line text with optional word wrap.
// Newlines always break; with WordWrap and a positive MaxWidth, words
// that would overflow the current line move to the next one. The
// returned width is the widest line.
func (ts *TextSystem) MeasureTextEx(text string, size float64, opts MeasureOptions) (Size, error) {
	fid := ts.Face()
	if fid == 0 {
		return Size{}, ErrNoFontLoaded
	}
	lineH := ts.lineHeight(fid, size)
	if text == "" {
		return Size{Height: lineH}, nil
	}

	advance := func(s string) (float64, error) {
		if s == "" {
			return 0, nil
		}
		m, err := ts.MeasureText(s, size)
		if err != nil {
			return 0, err
		}
		return m.Width, nil
	}

	if !opts.WordWrap || opts.MaxWidth <= 0 {
		var maxW float64
		lines := 1
		start := 0
		for i := 0; i <= len(text); i++ {
			if i == len(text) || text[i] == '\n' {
				w, err := advance(text[start:i])
				if err != nil {
					return Size{}, err
				}
				if w > maxW {
					maxW = w
				}
				if i < len(text) {
					lines++
				}
				start = i + 1
			}
		}
		return Size{Width: maxW, Height: float64(lines) * lineH}, nil
	}

	w, lines, err := wrapSize(text, opts.MaxWidth, advance)
	if err != nil {
		return Size{}, err
	}
	return Size{Width: w, Height: float64(lines) * lineH}, nil
}

// wrapSize runs word wrap over text, measuring fragments through
// advance. It returns the widest produced line and the line count.
// Split out from MeasureTextEx so layout can be tested with a synthetic
// metric.
func wrapSize(text string, maxWidth float64, advance func(string) (float64, error)) (float64, int, error) {
	var (
		maxW, lineW float64
		lines       = 1
		wordStart   = -1
	)
	commitLine := func() {
		if lineW > maxW {
			maxW = lineW
		}
		lineW = 0
		lines++
	}
	commitWord := func(end int) error {
		if wordStart < 0 {
			return nil
		}
		wordW, err := advance(text[wordStart:end])
		wordStart = -1
		if err != nil {
			return err
		}
		if lineW > 0 && lineW+wordW > maxWidth {
			commitLine()
		}
		lineW += wordW
		return nil
	}
	spaceW, err := advance(" ")
	if err != nil {
		return 0, 0, err
	}

	for i := 0; i < len(text); i++ {
		switch text[i] {
		case ' ', '\t':
			if err := commitWord(i); err != nil {
				return 0, 0, err
			}
			if lineW > 0 {
				lineW += spaceW
			}
		case '\n':
			if err := commitWord(i); err != nil {
				return 0, 0, err
			}
			commitLine()
		default:
			if wordStart < 0 {
				wordStart = i
			}
		}
	}
	if err := commitWord(len(text)); err != nil {
		return 0, 0, err
	}
	if lineW > maxW {
		maxW = lineW
	}
	return maxW, lines, nil
}

// lineHeight returns ascent+descent+gap for the face at size, zero when
// the face is missing.
func (ts *TextSystem) lineHeight(fid font.ID, size float64) float64 {
	face := ts.reg.Face(fid)
	if face == nil {
		return 0
	}
	return face.Metrics(font.FixedFromFloat(size)).LineHeight()
}
