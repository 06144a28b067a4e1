// Package atlas implements a single-texture glyph atlas packed with the
// skyline bottom-left heuristic. The atlas owns a square power-of-two
// pixel buffer and knows nothing about glyphs or fonts; consumers reserve
// regions, write pixels, and watch the generation counter to decide when
// the texture needs re-uploading.
package atlas

import (
	"errors"

	"github.com/gogpu/gputypes"
)

// MaxSkylineNodes bounds the skyline table. Fragmentation beyond this is
// not tracked; callers respond to ErrSkylineFull by clearing and
// re-packing from empty.
const MaxSkylineNodes = 256

// Sentinel errors for the atlas package.
var (
	// ErrAtlasFull is returned by Grow when the atlas is at its maximum
	// size.
	ErrAtlasFull = errors.New("atlas: maximum size reached")

	// ErrSkylineFull is returned when the skyline node table would
	// overflow.
	ErrSkylineFull = errors.New("atlas: skyline node table full")

	// ErrBadRegion is returned by Set when the pixel data does not match
	// the region.
	ErrBadRegion = errors.New("atlas: pixel data does not match region")
)

// Region is a rectangle within the atlas, in pixels.
// Regions are immutable once returned by Reserve.
type Region struct {
	X, Y, Width, Height int
}

// SkylineNode is one contiguous horizontal span of the packing skyline.
// Nodes are kept sorted by X, cover the full atlas width with no gaps,
// and consecutive nodes never share the same Y after a merge pass.
type SkylineNode struct {
	X, Y, Width int
}

// Config holds atlas configuration.
type Config struct {
	// Size is the initial atlas texture size (width = height).
	// Must be a power of 2. Default: 512
	Size int

	// MaxSize caps growth. Must be a power of 2 >= Size. Default: 4096
	MaxSize int

	// Padding is the border in pixels reserved around each region to
	// prevent bleeding from neighbors during bilinear sampling.
	// Default: 1
	Padding int

	// Format is the texture format the consumer should upload Data as.
	// Default: gputypes.TextureFormatR8Unorm
	Format gputypes.TextureFormat
}

// DefaultConfig returns the default atlas configuration.
func DefaultConfig() Config {
	return Config{
		Size:    512,
		MaxSize: 4096,
		Padding: 1,
		Format:  gputypes.TextureFormatR8Unorm,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Size < 64 {
		return &ConfigError{Field: "Size", Reason: "must be at least 64"}
	}
	if c.Size&(c.Size-1) != 0 {
		return &ConfigError{Field: "Size", Reason: "must be power of 2"}
	}
	if c.MaxSize < c.Size {
		return &ConfigError{Field: "MaxSize", Reason: "must be at least Size"}
	}
	if c.MaxSize&(c.MaxSize-1) != 0 {
		return &ConfigError{Field: "MaxSize", Reason: "must be power of 2"}
	}
	if c.Padding < 0 {
		return &ConfigError{Field: "Padding", Reason: "must be non-negative"}
	}
	if c.Padding >= c.Size/4 {
		return &ConfigError{Field: "Padding", Reason: "must be less than a quarter of Size"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return "atlas: invalid config." + e.Field + ": " + e.Reason
}

// Atlas is a square, power-of-two pixel buffer packed with skyline
// bin-packing. It is not safe for concurrent use; the owning cache
// serializes access.
type Atlas struct {
	data    []byte
	size    int
	maxSize int
	padding int
	format  gputypes.TextureFormat
	bpp     int

	nodes     [MaxSkylineNodes]SkylineNode
	nodeCount int

	generation uint64
}

// New creates an atlas with the given configuration.
func New(cfg Config) (*Atlas, error) {
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	if cfg.Format == gputypes.TextureFormatUndefined {
		cfg.Format = gputypes.TextureFormatR8Unorm
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	bpp := bytesPerPixel(cfg.Format)
	a := &Atlas{
		data:    make([]byte, cfg.Size*cfg.Size*bpp),
		size:    cfg.Size,
		maxSize: cfg.MaxSize,
		padding: cfg.Padding,
		format:  cfg.Format,
		bpp:     bpp,
	}
	a.nodes[0] = SkylineNode{X: 0, Y: 0, Width: cfg.Size}
	a.nodeCount = 1
	return a, nil
}

// Reserve packs a width x height rectangle plus the configured padding
// border. The bool result is false when the request is zero-sized or no
// position exists at the current size (callers should Grow and retry).
// ErrSkylineFull is returned when tracking the placement would overflow
// the node table; callers respond by clearing and re-packing.
func (a *Atlas) Reserve(width, height int) (Region, bool, error) {
	if width <= 0 || height <= 0 {
		return Region{}, false, nil
	}

	pw := width + 2*a.padding
	ph := height + 2*a.padding

	bestIdx := -1
	bestY := a.size + 1
	bestWidth := a.size + 1
	for i := 0; i < a.nodeCount; i++ {
		y, ok := a.fit(i, pw, ph)
		if !ok {
			continue
		}
		// Bottom-left heuristic: lowest resulting top edge wins,
		// narrowest candidate node breaks ties.
		if y < bestY || (y == bestY && a.nodes[i].Width < bestWidth) {
			bestIdx = i
			bestY = y
			bestWidth = a.nodes[i].Width
		}
	}
	if bestIdx < 0 {
		return Region{}, false, nil
	}

	// place rewrites the node table (insert, shrink, merge), so the
	// placement X must be captured before it runs.
	bestX := a.nodes[bestIdx].X
	if err := a.place(bestIdx, bestX, bestY, pw, ph); err != nil {
		return Region{}, false, err
	}

	return Region{
		X:      bestX + a.padding,
		Y:      bestY + a.padding,
		Width:  width,
		Height: height,
	}, true, nil
}

// fit reports the resulting Y of a pw x ph rectangle placed at node i,
// walking spanned nodes and taking their maximum height.
func (a *Atlas) fit(i, pw, ph int) (int, bool) {
	x := a.nodes[i].X
	if x+pw > a.size {
		return 0, false
	}
	y := 0
	remaining := pw
	for j := i; remaining > 0; j++ {
		if j >= a.nodeCount {
			return 0, false
		}
		if a.nodes[j].Y > y {
			y = a.nodes[j].Y
		}
		if y+ph > a.size {
			return 0, false
		}
		remaining -= a.nodes[j].Width
	}
	return y, true
}

// place inserts the skyline node for a placed rectangle, shrinks or
// removes nodes it covers, and merges adjacent nodes of equal height.
func (a *Atlas) place(idx, x, y, pw, ph int) error {
	if a.nodeCount >= MaxSkylineNodes {
		return ErrSkylineFull
	}

	// Insert the new top edge at idx.
	copy(a.nodes[idx+1:a.nodeCount+1], a.nodes[idx:a.nodeCount])
	a.nodes[idx] = SkylineNode{X: x, Y: y + ph, Width: pw}
	a.nodeCount++

	// Shrink or remove following nodes now shadowed by the new one.
	for i := idx + 1; i < a.nodeCount; {
		prev := a.nodes[i-1]
		if a.nodes[i].X >= prev.X+prev.Width {
			break
		}
		shrink := prev.X + prev.Width - a.nodes[i].X
		if a.nodes[i].Width <= shrink {
			copy(a.nodes[i:a.nodeCount-1], a.nodes[i+1:a.nodeCount])
			a.nodeCount--
			continue
		}
		a.nodes[i].X += shrink
		a.nodes[i].Width -= shrink
		break
	}

	// Merge adjacent nodes sharing the same height to bound scan length.
	for i := 0; i < a.nodeCount-1; {
		if a.nodes[i].Y != a.nodes[i+1].Y {
			i++
			continue
		}
		a.nodes[i].Width += a.nodes[i+1].Width
		copy(a.nodes[i+1:a.nodeCount-1], a.nodes[i+2:a.nodeCount])
		a.nodeCount--
	}
	return nil
}

// Set copies caller pixel data into the backing buffer at region and
// bumps the generation. pix must hold exactly
// region.Width*region.Height*bytes-per-pixel bytes in row-major order.
func (a *Atlas) Set(r Region, pix []byte) error {
	rowBytes := r.Width * a.bpp
	if len(pix) != rowBytes*r.Height {
		return ErrBadRegion
	}
	if r.X < 0 || r.Y < 0 || r.X+r.Width > a.size || r.Y+r.Height > a.size {
		return ErrBadRegion
	}
	for row := 0; row < r.Height; row++ {
		dst := ((r.Y+row)*a.size + r.X) * a.bpp
		copy(a.data[dst:dst+rowBytes], pix[row*rowBytes:(row+1)*rowBytes])
	}
	a.generation++
	return nil
}

// SetRows copies height rows of width pixels from a strided source
// buffer. Used by the glyph cache to copy out of its scratch buffer
// without re-slicing per glyph.
func (a *Atlas) SetRows(r Region, src []byte, stride int) error {
	rowBytes := r.Width * a.bpp
	if stride < rowBytes || len(src) < (r.Height-1)*stride+rowBytes {
		return ErrBadRegion
	}
	if r.X < 0 || r.Y < 0 || r.X+r.Width > a.size || r.Y+r.Height > a.size {
		return ErrBadRegion
	}
	for row := 0; row < r.Height; row++ {
		dst := ((r.Y+row)*a.size + r.X) * a.bpp
		copy(a.data[dst:dst+rowBytes], src[row*stride:row*stride+rowBytes])
	}
	a.generation++
	return nil
}

// Grow doubles the atlas size, copying existing rows into the new buffer
// and extending the skyline to cover the new width. Pixel coordinates of
// previously reserved regions are unchanged. Returns ErrAtlasFull once
// the size would exceed MaxSize, or ErrSkylineFull when the new span
// needs a node and the table is already at capacity; callers recover
// from both by clearing and re-packing.
func (a *Atlas) Grow() error {
	newSize := a.size * 2
	if newSize > a.maxSize {
		return ErrAtlasFull
	}

	newData := make([]byte, newSize*newSize*a.bpp)
	for row := 0; row < a.size; row++ {
		copy(newData[row*newSize*a.bpp:], a.data[row*a.size*a.bpp:(row+1)*a.size*a.bpp])
	}

	// Extend the rightmost skyline node across the new span, or append
	// one when the rightmost node is raised.
	last := &a.nodes[a.nodeCount-1]
	if last.Y == 0 {
		last.Width += newSize - a.size
	} else {
		if a.nodeCount >= MaxSkylineNodes {
			return ErrSkylineFull
		}
		a.nodes[a.nodeCount] = SkylineNode{X: a.size, Y: 0, Width: newSize - a.size}
		a.nodeCount++
	}

	a.data = newData
	a.size = newSize
	a.generation++
	return nil
}

// Clear zeroes the pixel buffer and resets the skyline to a single node
// spanning the full width. Capacity is retained.
func (a *Atlas) Clear() {
	for i := range a.data {
		a.data[i] = 0
	}
	a.nodes[0] = SkylineNode{X: 0, Y: 0, Width: a.size}
	a.nodeCount = 1
	a.generation++
}

// Data returns the raw pixel buffer for GPU upload. The slice is
// invalidated by Grow.
func (a *Atlas) Data() []byte { return a.data }

// Size returns the current atlas size (width = height).
func (a *Atlas) Size() int { return a.size }

// MaxSize returns the hard size cap.
func (a *Atlas) MaxSize() int { return a.maxSize }

// Padding returns the configured padding border.
func (a *Atlas) Padding() int { return a.padding }

// Generation returns the mutation counter. Consumers re-upload the
// texture only when it changes.
func (a *Atlas) Generation() uint64 { return a.generation }

// Format returns the texture format of Data.
func (a *Atlas) Format() gputypes.TextureFormat { return a.format }

// NodeCount returns the current skyline node count.
func (a *Atlas) NodeCount() int { return a.nodeCount }

// bytesPerPixel maps the supported formats to their pixel size.
func bytesPerPixel(f gputypes.TextureFormat) int {
	switch f {
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatBGRA8Unorm:
		return 4
	default:
		return 1
	}
}
