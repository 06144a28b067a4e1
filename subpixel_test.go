package textcore

import "testing"

func TestSubpixelModeString(t *testing.T) {
	tests := []struct {
		mode SubpixelMode
		want string
	}{
		{SubpixelNone, "None"},
		{Subpixel4, "Subpixel4"},
		{Subpixel10, "Subpixel10"},
		{SubpixelMode(7), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.mode.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestSubpixelModeDivisions(t *testing.T) {
	if got := SubpixelNone.Divisions(); got != 1 {
		t.Errorf("SubpixelNone.Divisions() = %d, want 1", got)
	}
	if got := Subpixel4.Divisions(); got != 4 {
		t.Errorf("Subpixel4.Divisions() = %d, want 4", got)
	}
	if got := Subpixel10.Divisions(); got != 10 {
		t.Errorf("Subpixel10.Divisions() = %d, want 10", got)
	}
}

func TestQuantizeX(t *testing.T) {
	cfg := DefaultSubpixelConfig()
	tests := []struct {
		frac float64
		want uint8
	}{
		{0, 0},
		{0.2, 0},
		{0.25, 1},
		{0.5, 2},
		{0.75, 3},
		{0.999, 3},
		{-0.25, 3}, // negative fractions wrap
	}
	for _, tt := range tests {
		if got := cfg.QuantizeX(tt.frac); got != tt.want {
			t.Errorf("QuantizeX(%v) = %d, want %d", tt.frac, got, tt.want)
		}
	}
}

func TestQuantizeDisabledAxis(t *testing.T) {
	cfg := DefaultSubpixelConfig()
	if got := cfg.QuantizeY(0.7); got != 0 {
		t.Errorf("QuantizeY with vertical disabled = %d, want 0", got)
	}
	none := NoSubpixelConfig()
	if got := none.QuantizeX(0.7); got != 0 {
		t.Errorf("QuantizeX with mode None = %d, want 0", got)
	}
	if none.IsEnabled() {
		t.Error("NoSubpixelConfig().IsEnabled() = true, want false")
	}
}

func TestCacheMultiplier(t *testing.T) {
	tests := []struct {
		cfg  SubpixelConfig
		want int
	}{
		{NoSubpixelConfig(), 1},
		{DefaultSubpixelConfig(), 4},
		{SubpixelConfig{Mode: Subpixel4, Horizontal: true, Vertical: true}, 16},
		{SubpixelConfig{Mode: Subpixel10, Horizontal: true}, 10},
	}
	for _, tt := range tests {
		if got := tt.cfg.CacheMultiplier(); got != tt.want {
			t.Errorf("CacheMultiplier(%+v) = %d, want %d", tt.cfg, got, tt.want)
		}
	}
}
