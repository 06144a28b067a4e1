// Package textcore turns UTF-8 strings into positioned, rasterized glyphs
// ready for GPU upload, with every cost bounded to fixed, pre-allocated
// capacities: the steady-state render loop allocates nothing.
//
// The pipeline has three tiers:
//
//   - atlas: a single power-of-two texture packed with skyline
//     bin-packing. Consumers watch its generation counter to decide when
//     to re-upload.
//   - glyph: a fixed-pool cache mapping (face, glyph, size, scale,
//     subpixel offset) to atlas regions, rendering through the font.Face
//     capability on miss. Atlas growth retroactively patches the captured
//     atlas size of every cached entry so UV coordinates stay correct.
//   - cache: a fixed-pool shaped-run cache mapping (text, face, size) to
//     the glyph list produced by the font.Shaper capability, with strict
//     LRU eviction under open-addressed hashing.
//
// TextSystem composes the tiers under two independent mutexes, one per
// cache and never held together, and exposes shaping, measurement and batch
// glyph resolution. RenderText is a pure consumer that emits GPU quad
// instances into a DrawList.
//
// # Example usage
//
//	reg := font.NewRegistry()
//	ts, err := textcore.New(textcore.Config{Registry: reg})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	id, err := ts.LoadFaceFromData(fontData)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ts.SetFace(id)
//
//	var list textcore.DrawList
//	width, err := textcore.RenderText(&list, ts, "Hello", 10, 40, 2.0,
//	    color.RGBA{A: 255}, 16, textcore.RenderOptions{})
//
// The platform backends that load fonts and shape text are consumed as
// capabilities (font.Face, font.Shaper); the default implementations are
// backed by go-text/typesetting.
package textcore
