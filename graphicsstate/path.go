package graphicsstate

import (
	"math"

	"github.com/tsawler/pageview/model"
)

// Op is a path construction operator.
type Op uint8

const (
	MoveTo Op = iota
	LineTo
	CurveTo
	Close
)

func (op Op) String() string {
	return [...]string{"m", "l", "c", "h"}[op]
}

// Segment is one path element. MoveTo and LineTo use Pts[0]; CurveTo uses
// two control points and the end point; Close uses none.
type Segment struct {
	Op  Op
	Pts [3]model.Point
}

// Path is a path under construction, in the coordinates it was built in.
type Path struct {
	Segments []Segment

	cur, start model.Point
	hasCur     bool
}

// NewPath returns an empty path.
func NewPath() *Path {
	return &Path{}
}

// Current returns the current point, if there is one.
func (p *Path) Current() (model.Point, bool) {
	return p.cur, p.hasCur
}

func (p *Path) add(op Op, pts ...model.Point) {
	seg := Segment{Op: op}
	copy(seg.Pts[:], pts)
	p.Segments = append(p.Segments, seg)
	if len(pts) > 0 {
		p.cur = pts[len(pts)-1]
	}
}

// MoveTo begins a subpath (m).
func (p *Path) MoveTo(x, y float64) {
	pt := model.Point{X: x, Y: y}
	p.add(MoveTo, pt)
	p.start, p.hasCur = pt, true
}

// LineTo appends a line (l). Without a current point it acts as MoveTo.
func (p *Path) LineTo(x, y float64) {
	if !p.hasCur {
		p.MoveTo(x, y)
		return
	}
	p.add(LineTo, model.Point{X: x, Y: y})
}

// CurveTo appends a cubic Bézier curve (c).
func (p *Path) CurveTo(x1, y1, x2, y2, x3, y3 float64) {
	if !p.hasCur {
		p.MoveTo(x1, y1)
	}
	p.add(CurveTo, model.Point{X: x1, Y: y1}, model.Point{X: x2, Y: y2}, model.Point{X: x3, Y: y3})
}

// CurveToV appends a curve whose first control point is the current
// point (v). It is ignored without a current point.
func (p *Path) CurveToV(x2, y2, x3, y3 float64) {
	if p.hasCur {
		p.CurveTo(p.cur.X, p.cur.Y, x2, y2, x3, y3)
	}
}

// CurveToY appends a curve whose second control point is its end point
// (y). It is ignored without a current point.
func (p *Path) CurveToY(x1, y1, x3, y3 float64) {
	if p.hasCur {
		p.CurveTo(x1, y1, x3, y3, x3, y3)
	}
}

// ClosePath closes the current subpath (h); the current point returns to
// the subpath start.
func (p *Path) ClosePath() {
	if p.hasCur {
		p.add(Close)
		p.cur = p.start
	}
}

// Rectangle appends a closed rectangle subpath (re).
func (p *Path) Rectangle(x, y, width, height float64) {
	p.MoveTo(x, y)
	p.LineTo(x+width, y)
	p.LineTo(x+width, y+height)
	p.LineTo(x, y+height)
	p.ClosePath()
}

// Clear empties the path and drops the current point.
func (p *Path) Clear() {
	p.Segments = p.Segments[:0]
	p.hasCur = false
}

// IsEmpty reports whether the path has no segments.
func (p *Path) IsEmpty() bool {
	return len(p.Segments) == 0
}

// Transform returns a copy of the path with every point mapped through m.
func (p *Path) Transform(m model.Matrix) *Path {
	out := &Path{
		Segments: make([]Segment, len(p.Segments)),
		cur:      m.Transform(p.cur),
		start:    m.Transform(p.start),
		hasCur:   p.hasCur,
	}
	for i, seg := range p.Segments {
		for j := range seg.Pts {
			seg.Pts[j] = m.Transform(seg.Pts[j])
		}
		out.Segments[i] = seg
	}
	return out
}

// Subpath is a flattened subpath: a polyline, closed or open.
type Subpath struct {
	Points []model.Point
	Closed bool
}

// Flatten converts the path to polylines, approximating curves with line
// segments no longer than about tolerance units.
func (p *Path) Flatten(tolerance float64) []Subpath {
	if tolerance <= 0 {
		tolerance = 0.5
	}
	var out []Subpath
	var cur *Subpath
	flush := func() {
		if cur != nil && len(cur.Points) > 0 {
			out = append(out, *cur)
		}
		cur = nil
	}
	last := func() model.Point {
		return cur.Points[len(cur.Points)-1]
	}

	for _, seg := range p.Segments {
		switch seg.Op {
		case MoveTo:
			flush()
			cur = &Subpath{Points: []model.Point{seg.Pts[0]}}
		case LineTo:
			if cur == nil {
				cur = &Subpath{}
			}
			cur.Points = append(cur.Points, seg.Pts[0])
		case CurveTo:
			if cur == nil {
				cur = &Subpath{Points: []model.Point{seg.Pts[0]}}
			}
			cur.Points = appendCubic(cur.Points, last(), seg.Pts[0], seg.Pts[1], seg.Pts[2], tolerance)
		case Close:
			if cur == nil {
				continue
			}
			cur.Closed = true
			start := cur.Points[0]
			flush()
			// A segment after h continues from the subpath start.
			cur = &Subpath{Points: []model.Point{start}}
		}
	}
	flush()

	// Drop the lone points left behind by h.
	kept := out[:0]
	for _, sp := range out {
		if len(sp.Points) > 1 || sp.Closed {
			kept = append(kept, sp)
		}
	}
	return kept
}

func appendCubic(pts []model.Point, p0, p1, p2, p3 model.Point, tolerance float64) []model.Point {
	length := dist(p0, p1) + dist(p1, p2) + dist(p2, p3)
	n := int(math.Ceil(length / (tolerance * 4)))
	if n < 1 {
		n = 1
	}
	if n > 128 {
		n = 128
	}
	for i := 1; i <= n; i++ {
		t := float64(i) / float64(n)
		mt := 1 - t
		a, b, c, d := mt*mt*mt, 3*mt*mt*t, 3*mt*t*t, t*t*t
		pts = append(pts, model.Point{
			X: a*p0.X + b*p1.X + c*p2.X + d*p3.X,
			Y: a*p0.Y + b*p1.Y + c*p2.Y + d*p3.Y,
		})
	}
	return pts
}

func dist(a, b model.Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}
