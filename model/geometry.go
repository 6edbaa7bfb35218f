package model

import "math"

// Point represents a 2D point
type Point struct {
	X, Y float64
}

// PageBox is a page rectangle in page space, e.g. a MediaBox
// [left bottom right top].
type PageBox struct {
	Left, Bottom, Right, Top float64
}

// NewPageBox creates a page box from a 4-element PDF rectangle array.
// The corners are normalised so Left <= Right and Bottom <= Top.
func NewPageBox(r []float64) PageBox {
	if len(r) != 4 {
		return PageBox{}
	}
	return PageBox{
		Left:   math.Min(r[0], r[2]),
		Bottom: math.Min(r[1], r[3]),
		Right:  math.Max(r[0], r[2]),
		Top:    math.Max(r[1], r[3]),
	}
}

// Width returns the horizontal extent of the box
func (b PageBox) Width() float64 {
	return b.Right - b.Left
}

// Height returns the vertical extent of the box
func (b PageBox) Height() float64 {
	return b.Top - b.Bottom
}

// IsValid returns true if the box has positive dimensions
func (b PageBox) IsValid() bool {
	return b.Width() > 0 && b.Height() > 0
}

// Intersect returns the overlap of b and o. Boxes that do not overlap
// give an invalid box.
func (b PageBox) Intersect(o PageBox) PageBox {
	return PageBox{
		Left:   math.Max(b.Left, o.Left),
		Bottom: math.Max(b.Bottom, o.Bottom),
		Right:  math.Min(b.Right, o.Right),
		Top:    math.Min(b.Top, o.Top),
	}
}

// Corners returns the four corners, counter-clockwise from bottom-left.
func (b PageBox) Corners() [4]Point {
	return [4]Point{
		{b.Left, b.Bottom},
		{b.Right, b.Bottom},
		{b.Right, b.Top},
		{b.Left, b.Top},
	}
}

// Matrix represents a 2D affine transformation matrix
type Matrix [6]float64

// Identity returns an identity matrix
func Identity() Matrix {
	return Matrix{1, 0, 0, 1, 0, 0}
}

// Transform applies the matrix transformation to a point
func (m Matrix) Transform(p Point) Point {
	return Point{
		X: m[0]*p.X + m[2]*p.Y + m[4],
		Y: m[1]*p.X + m[3]*p.Y + m[5],
	}
}

// Multiply multiplies two matrices. The result applies m first, then other.
func (m Matrix) Multiply(other Matrix) Matrix {
	return Matrix{
		m[0]*other[0] + m[1]*other[2],
		m[0]*other[1] + m[1]*other[3],
		m[2]*other[0] + m[3]*other[2],
		m[2]*other[1] + m[3]*other[3],
		m[4]*other[0] + m[5]*other[2] + other[4],
		m[4]*other[1] + m[5]*other[3] + other[5],
	}
}

// Translate creates a translation matrix
func Translate(tx, ty float64) Matrix {
	return Matrix{1, 0, 0, 1, tx, ty}
}

// Scale creates a scaling matrix
func Scale(sx, sy float64) Matrix {
	return Matrix{sx, 0, 0, sy, 0, 0}
}

// Rotate creates a rotation matrix (angle in radians)
func Rotate(angle float64) Matrix {
	cos := math.Cos(angle)
	sin := math.Sin(angle)
	return Matrix{cos, sin, -sin, cos, 0, 0}
}

// RotateDegrees creates a rotation matrix for an angle in degrees.
// Quarter turns are exact so that rotated page transforms stay free of
// rounding noise.
func RotateDegrees(deg int) Matrix {
	switch ((deg % 360) + 360) % 360 {
	case 0:
		return Identity()
	case 90:
		return Matrix{0, 1, -1, 0, 0, 0}
	case 180:
		return Matrix{-1, 0, 0, -1, 0, 0}
	case 270:
		return Matrix{0, -1, 1, 0, 0, 0}
	}
	return Rotate(float64(deg) * math.Pi / 180)
}

// IsIdentity returns true if the matrix is an identity matrix
func (m Matrix) IsIdentity() bool {
	return m[0] == 1 && m[1] == 0 && m[2] == 0 && m[3] == 1 && m[4] == 0 && m[5] == 0
}

// ScaleFactor returns the average linear scale of the matrix, used to map
// page-space widths (line widths) into device space.
func (m Matrix) ScaleFactor() float64 {
	return math.Sqrt(math.Abs(m[0]*m[3] - m[1]*m[2]))
}

// Bounds transforms the corners of b and returns their axis-aligned
// bounding rectangle as min and max points.
func (m Matrix) Bounds(b PageBox) (min, max Point) {
	corners := b.Corners()
	min = m.Transform(corners[0])
	max = min
	for _, c := range corners[1:] {
		p := m.Transform(c)
		min.X = math.Min(min.X, p.X)
		min.Y = math.Min(min.Y, p.Y)
		max.X = math.Max(max.X, p.X)
		max.Y = math.Max(max.Y, p.Y)
	}
	return min, max
}
