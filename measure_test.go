package textcore

import (
	"errors"
	"strings"
	"testing"
)

func TestMeasureText(t *testing.T) {
	ts, shaper := newTestSystem(t, Config{})

	m, err := ts.MeasureText("Hello", 16)
	if err != nil {
		t.Fatalf("MeasureText() error = %v", err)
	}
	if m.Width <= 0 {
		t.Errorf("Width = %v, want > 0", m.Width)
	}
	if m.Height <= 0 {
		t.Errorf("Height = %v, want > 0", m.Height)
	}

	// Measure-then-shape shares the run cache.
	run, err := ts.ShapeText("Hello", 16, nil)
	if err != nil {
		t.Fatalf("ShapeText() error = %v", err)
	}
	if got := shaper.calls.Load(); got != 1 {
		t.Errorf("shaper calls = %d, want 1", got)
	}
	if float64(run.Width) != m.Width {
		t.Errorf("shape width %v != measured width %v", run.Width, m.Width)
	}
}

func TestMeasureTextEmpty(t *testing.T) {
	ts, _ := newTestSystem(t, Config{})
	m, err := ts.MeasureText("", 16)
	if err != nil {
		t.Fatalf("MeasureText(\"\") error = %v", err)
	}
	if m.Width != 0 {
		t.Errorf("Width = %v, want 0", m.Width)
	}
	if m.Height <= 0 {
		t.Errorf("Height = %v, want a line height", m.Height)
	}
}

func TestMeasureTextNoFont(t *testing.T) {
	ts, err := New(Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := ts.MeasureText("x", 16); !errors.Is(err, ErrNoFontLoaded) {
		t.Errorf("MeasureText() = %v, want ErrNoFontLoaded", err)
	}
}

func TestMeasureTextWidthGrowsWithText(t *testing.T) {
	ts, _ := newTestSystem(t, Config{})
	short, err := ts.MeasureText("ab", 16)
	if err != nil {
		t.Fatalf("MeasureText() error = %v", err)
	}
	long, err := ts.MeasureText("abcdef", 16)
	if err != nil {
		t.Fatalf("MeasureText() error = %v", err)
	}
	if long.Width <= short.Width {
		t.Errorf("longer text measured %v, shorter %v", long.Width, short.Width)
	}
}

func TestMeasureTextExNewlines(t *testing.T) {
	ts, _ := newTestSystem(t, Config{})
	single, err := ts.MeasureTextEx("line", 16, MeasureOptions{})
	if err != nil {
		t.Fatalf("MeasureTextEx() error = %v", err)
	}
	triple, err := ts.MeasureTextEx("line\nlonger line\nx", 16, MeasureOptions{})
	if err != nil {
		t.Fatalf("MeasureTextEx() error = %v", err)
	}
	if got, want := triple.Height, 3*single.Height; got != want {
		t.Errorf("Height = %v, want %v (three lines)", got, want)
	}
	longer, err := ts.MeasureText("longer line", 16)
	if err != nil {
		t.Fatalf("MeasureText() error = %v", err)
	}
	if triple.Width != longer.Width {
		t.Errorf("Width = %v, want widest line %v", triple.Width, longer.Width)
	}
}

func TestMeasureTextExWordWrap(t *testing.T) {
	ts, _ := newTestSystem(t, Config{})
	unwrapped, err := ts.MeasureTextEx("wrap these words", 16, MeasureOptions{})
	if err != nil {
		t.Fatalf("MeasureTextEx() error = %v", err)
	}
	wrapped, err := ts.MeasureTextEx("wrap these words", 16, MeasureOptions{
		MaxWidth: unwrapped.Width / 2,
		WordWrap: true,
	})
	if err != nil {
		t.Fatalf("MeasureTextEx() error = %v", err)
	}
	if wrapped.Height <= unwrapped.Height {
		t.Errorf("wrapped Height = %v, want > %v", wrapped.Height, unwrapped.Height)
	}
	if wrapped.Width >= unwrapped.Width {
		t.Errorf("wrapped Width = %v, want < %v", wrapped.Width, unwrapped.Width)
	}
}

// fixedAdvance measures every byte as 10 units and a space as 5, making
// wrap decisions exact.
func fixedAdvance(s string) (float64, error) {
	if s == " " {
		return 5, nil
	}
	return float64(10 * len(s)), nil
}

func TestWrapSize(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxWidth float64
		width    float64
		lines    int
	}{
		{"single word", "aa", 100, 20, 1},
		{"fits on one line", "aa bb", 100, 45, 1},
		{"wraps second word", "aa bb cc", 25, 25, 3},
		{"word wider than limit stays whole", "aaaaaa bb", 30, 65, 2},
		{"newline forces break", "aa\nbb", 100, 20, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, lines, err := wrapSize(tt.text, tt.maxWidth, fixedAdvance)
			if err != nil {
				t.Fatalf("wrapSize() error = %v", err)
			}
			if w != tt.width || lines != tt.lines {
				t.Errorf("wrapSize() = %v, %d, want %v, %d", w, lines, tt.width, tt.lines)
			}
		})
	}
}

func TestWrapSizeLongText(t *testing.T) {
	// Many words under a tight limit: one word per line.
	text := strings.TrimSpace(strings.Repeat("word ", 10))
	w, lines, err := wrapSize(text, 45, fixedAdvance)
	if err != nil {
		t.Fatalf("wrapSize() error = %v", err)
	}
	if lines != 10 {
		t.Errorf("lines = %d, want 10", lines)
	}
	if w != 45 {
		t.Errorf("width = %v, want 45", w)
	}
}
