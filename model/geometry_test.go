package model

import (
	"math"
	"testing"
)

// ============================================================================
// PageBox Tests
// ============================================================================

func TestNewPageBox(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		want PageBox
	}{
		{"letter", []float64{0, 0, 612, 792}, PageBox{0, 0, 612, 792}},
		{"offset origin", []float64{10, 20, 110, 220}, PageBox{10, 20, 110, 220}},
		{"swapped corners", []float64{612, 792, 0, 0}, PageBox{0, 0, 612, 792}},
		{"wrong length", []float64{1, 2, 3}, PageBox{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewPageBox(tt.in); got != tt.want {
				t.Errorf("NewPageBox(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestPageBoxDimensions(t *testing.T) {
	b := PageBox{Left: 10, Bottom: 20, Right: 110, Top: 220}
	if b.Width() != 100 {
		t.Errorf("Width() = %v, want 100", b.Width())
	}
	if b.Height() != 200 {
		t.Errorf("Height() = %v, want 200", b.Height())
	}
	if !b.IsValid() {
		t.Error("IsValid() = false, want true")
	}
	if (PageBox{Right: 10}).IsValid() {
		t.Error("zero-height box reported valid")
	}
}

func TestPageBoxIntersect(t *testing.T) {
	media := PageBox{0, 0, 612, 792}
	crop := PageBox{36, -10, 700, 756}
	if got, want := media.Intersect(crop), (PageBox{36, 0, 612, 756}); got != want {
		t.Errorf("Intersect() = %v, want %v", got, want)
	}
	if media.Intersect(PageBox{700, 0, 800, 10}).IsValid() {
		t.Error("disjoint boxes gave a valid intersection")
	}
}

// ============================================================================
// Matrix Tests
// ============================================================================

func TestIdentity(t *testing.T) {
	m := Identity()
	expected := Matrix{1, 0, 0, 1, 0, 0}
	if m != expected {
		t.Errorf("Identity() = %v, want %v", m, expected)
	}
}

func TestMatrixTransform(t *testing.T) {
	t.Run("identity", func(t *testing.T) {
		m := Identity()
		p := Point{10, 20}
		result := m.Transform(p)
		if result != p {
			t.Errorf("Identity.Transform(%v) = %v, want %v", p, result, p)
		}
	})

	t.Run("translation", func(t *testing.T) {
		m := Translate(100, 50)
		p := Point{10, 20}
		result := m.Transform(p)
		expected := Point{110, 70}
		if result != expected {
			t.Errorf("Translate.Transform(%v) = %v, want %v", p, result, expected)
		}
	})

	t.Run("scale", func(t *testing.T) {
		m := Scale(2, 3)
		p := Point{10, 20}
		result := m.Transform(p)
		expected := Point{20, 60}
		if result != expected {
			t.Errorf("Scale.Transform(%v) = %v, want %v", p, result, expected)
		}
	})
}

func TestMatrixMultiply(t *testing.T) {
	// translate.Multiply(scale) applies translate first, then scale
	translate := Translate(10, 20)
	scale := Scale(2, 2)
	combined := translate.Multiply(scale)

	p := Point{5, 5}
	result := combined.Transform(p)

	expected := Point{30, 50}
	if result != expected {
		t.Errorf("Combined transform(%v) = %v, want %v", p, result, expected)
	}
}

func TestRotate(t *testing.T) {
	m := Rotate(math.Pi / 2)
	p := Point{1, 0}
	result := m.Transform(p)

	if math.Abs(result.X) > 0.0001 || math.Abs(result.Y-1) > 0.0001 {
		t.Errorf("Rotate(Pi/2).Transform(1,0) = %v, want ~(0,1)", result)
	}
}

func TestRotateDegreesQuarterTurns(t *testing.T) {
	tests := []struct {
		deg  int
		want Point
	}{
		{0, Point{1, 0}},
		{90, Point{0, 1}},
		{180, Point{-1, 0}},
		{270, Point{0, -1}},
		{-90, Point{0, -1}},
		{450, Point{0, 1}},
	}

	for _, tt := range tests {
		got := RotateDegrees(tt.deg).Transform(Point{1, 0})
		if got != tt.want {
			t.Errorf("RotateDegrees(%d).Transform(1,0) = %v, want %v", tt.deg, got, tt.want)
		}
	}

	// Non-quarter angles fall back to the trigonometric rotation.
	got := RotateDegrees(45).Transform(Point{1, 0})
	if math.Abs(got.X-math.Sqrt2/2) > 1e-9 || math.Abs(got.Y-math.Sqrt2/2) > 1e-9 {
		t.Errorf("RotateDegrees(45).Transform(1,0) = %v", got)
	}
}

func TestMatrixIsIdentity(t *testing.T) {
	tests := []struct {
		name     string
		matrix   Matrix
		expected bool
	}{
		{"identity", Identity(), true},
		{"translated", Translate(1, 0), false},
		{"scaled", Scale(2, 1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.matrix.IsIdentity() != tt.expected {
				t.Errorf("IsIdentity() = %v, want %v", tt.matrix.IsIdentity(), tt.expected)
			}
		})
	}
}

func TestMatrixScaleFactor(t *testing.T) {
	if got := Scale(2, 2).ScaleFactor(); got != 2 {
		t.Errorf("Scale(2,2).ScaleFactor() = %v, want 2", got)
	}
	if got := Scale(1, -1).Multiply(RotateDegrees(90)).ScaleFactor(); got != 1 {
		t.Errorf("mirror+rotate ScaleFactor() = %v, want 1", got)
	}
}

func TestMatrixBounds(t *testing.T) {
	box := PageBox{0, 0, 100, 50}
	m := Scale(1, -1).Multiply(Translate(0, 50)).Multiply(RotateDegrees(90)).Multiply(Translate(50, 0))

	min, max := m.Bounds(box)
	if min != (Point{0, 0}) || max != (Point{50, 100}) {
		t.Errorf("Bounds() = %v..%v, want (0,0)..(50,100)", min, max)
	}
}
