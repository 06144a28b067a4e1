package textcore

import (
	"errors"

	"github.com/gogpu/textcore/font"
	"github.com/gogpu/textcore/glyph"
)

// Sentinel errors for the textcore package.
var (
	// ErrNoFontLoaded is returned when no current face is bound.
	// Recoverable by loading a font and calling SetFace.
	ErrNoFontLoaded = errors.New("textcore: no font loaded")

	// ErrBatchSize is returned when a batch output slice is shorter than
	// the input.
	ErrBatchSize = errors.New("textcore: output slice shorter than batch")

	// ErrGlyphTooLarge reports a glyph that cannot fit even in an empty
	// maximum-size atlas. Fatal for that glyph, not for the run.
	ErrGlyphTooLarge = glyph.ErrGlyphTooLarge

	// ErrFallbackNotSupported reports a shaper without a manual fallback
	// face path; callers should rely on the shaper's own fallback.
	ErrFallbackNotSupported = font.ErrFallbackNotSupported
)
