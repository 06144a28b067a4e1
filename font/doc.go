// Package font defines the font capabilities consumed by the text core:
// a Face that can resolve and rasterize glyphs at subpixel offsets, and a
// Shaper that converts text into positioned glyphs.
//
// Faces are identified by opaque registry handles (ID) rather than raw
// pointers, so cache keys stay valid even if an implementation relocates
// its font objects. The default implementations are backed by
// go-text/typesetting: OpenTypeFace parses TTF/OTF data and rasterizes
// outlines with golang.org/x/image/vector, and GoTextShaper provides
// HarfBuzz-level shaping with optional per-segment fallback faces.
package font
