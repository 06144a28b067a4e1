package textcore

// SubpixelMode controls subpixel text positioning. Caching glyphs at
// several fractional-pixel offsets improves crispness without
// re-rasterizing at render time, at the cost of more cache entries.
type SubpixelMode int

const (
	// SubpixelNone disables subpixel positioning.
	// Glyphs snap to whole pixels. Fastest but lower quality.
	SubpixelNone SubpixelMode = 0

	// Subpixel4 uses 4 subpixel positions (0.0, 0.25, 0.5, 0.75).
	// Good balance of quality and cache size.
	Subpixel4 SubpixelMode = 4

	// Subpixel10 uses 10 subpixel positions (0.0, 0.1, ..., 0.9).
	// Highest quality but 10x cache entries per glyph.
	Subpixel10 SubpixelMode = 10
)

// String returns the string representation of the subpixel mode.
func (m SubpixelMode) String() string {
	switch m {
	case SubpixelNone:
		return "None"
	case Subpixel4:
		return "Subpixel4"
	case Subpixel10:
		return "Subpixel10"
	default:
		return "Unknown"
	}
}

// IsEnabled returns true if subpixel positioning is enabled.
func (m SubpixelMode) IsEnabled() bool {
	return m > 0
}

// Divisions returns the number of subpixel divisions.
// Returns 1 for SubpixelNone.
func (m SubpixelMode) Divisions() int {
	if m <= 0 {
		return 1
	}
	return int(m)
}

// SubpixelConfig holds subpixel positioning configuration.
type SubpixelConfig struct {
	// Mode determines the number of subpixel positions.
	Mode SubpixelMode

	// Horizontal enables subpixel positioning on the X axis.
	Horizontal bool

	// Vertical enables subpixel positioning on the Y axis (rarely
	// needed).
	Vertical bool
}

// DefaultSubpixelConfig returns the default configuration:
// 4 horizontal subpixel positions.
func DefaultSubpixelConfig() SubpixelConfig {
	return SubpixelConfig{
		Mode:       Subpixel4,
		Horizontal: true,
		Vertical:   false,
	}
}

// NoSubpixelConfig returns a configuration with subpixel positioning
// disabled.
func NoSubpixelConfig() SubpixelConfig {
	return SubpixelConfig{Mode: SubpixelNone}
}

// IsEnabled returns true if any subpixel positioning is enabled.
func (c SubpixelConfig) IsEnabled() bool {
	return c.Mode.IsEnabled() && (c.Horizontal || c.Vertical)
}

// QuantizeX maps a fractional horizontal pixel offset in [0, 1) to a
// cache key index.
func (c SubpixelConfig) QuantizeX(frac float64) uint8 {
	if !c.Mode.IsEnabled() || !c.Horizontal {
		return 0
	}
	return quantize(frac, c.Mode.Divisions())
}

// QuantizeY maps a fractional vertical pixel offset in [0, 1) to a cache
// key index.
func (c SubpixelConfig) QuantizeY(frac float64) uint8 {
	if !c.Mode.IsEnabled() || !c.Vertical {
		return 0
	}
	return quantize(frac, c.Mode.Divisions())
}

func quantize(frac float64, div int) uint8 {
	if frac < 0 {
		frac += 1
	}
	i := int(frac * float64(div))
	if i >= div {
		i = div - 1
	}
	if i < 0 {
		i = 0
	}
	return uint8(i) //nolint:gosec // divisions are at most 10
}

// CacheMultiplier returns the factor by which glyph cache entries
// multiply under this configuration.
func (c SubpixelConfig) CacheMultiplier() int {
	if !c.Mode.IsEnabled() {
		return 1
	}
	mult := 1
	if c.Horizontal {
		mult *= c.Mode.Divisions()
	}
	if c.Vertical {
		mult *= c.Mode.Divisions()
	}
	return mult
}
