package raster

import (
	"math"

	"github.com/tsawler/pageview/graphicsstate"
	"github.com/tsawler/pageview/model"
)

// strokePolygons expands stroked subpaths into polygons that all wind the
// same way, so overlaps never cancel under the nonzero rule.
func strokePolygons(subpaths []graphicsstate.Subpath, style graphicsstate.StrokeStyle) [][]model.Point {
	hw := style.Width / 2
	if hw <= 0 {
		return nil
	}
	var polys [][]model.Point
	emit := func(p []model.Point) {
		if len(p) >= 3 {
			polys = append(polys, orient(p))
		}
	}

	for _, sp := range subpaths {
		pts := dedupe(sp.Points)
		closed := sp.Closed && len(pts) > 2
		if closed {
			if pts[0] == pts[len(pts)-1] {
				pts = pts[:len(pts)-1]
			}
		}

		if len(style.Dash) > 0 {
			line := pts
			if closed {
				line = append(append([]model.Point(nil), pts...), pts[0])
			}
			for _, piece := range dashPolyline(line, style.Dash, style.DashPhase) {
				strokeOpen(piece, hw, style, emit)
			}
			continue
		}

		if closed {
			strokeClosed(pts, hw, style, emit)
		} else {
			strokeOpen(pts, hw, style, emit)
		}
	}
	return polys
}

func strokeOpen(pts []model.Point, hw float64, style graphicsstate.StrokeStyle, emit func([]model.Point)) {
	if len(pts) == 1 {
		// A zero-length subpath shows only round and square caps.
		switch style.Cap {
		case graphicsstate.RoundCap:
			emit(circle(pts[0], hw))
		case graphicsstate.SquareCap:
			p := pts[0]
			emit([]model.Point{{X: p.X - hw, Y: p.Y - hw}, {X: p.X + hw, Y: p.Y - hw}, {X: p.X + hw, Y: p.Y + hw}, {X: p.X - hw, Y: p.Y + hw}})
		}
		return
	}

	first, last := pts[0], pts[len(pts)-1]
	startDir := unit(pts[1], first)
	endDir := unit(last, pts[len(pts)-2])
	if style.Cap == graphicsstate.SquareCap {
		// Extend the end segments instead of adding separate squares.
		pts = append([]model.Point(nil), pts...)
		pts[0] = model.Point{X: first.X - startDir.X*hw, Y: first.Y - startDir.Y*hw}
		pts[len(pts)-1] = model.Point{X: last.X + endDir.X*hw, Y: last.Y + endDir.Y*hw}
	}

	for i := 0; i+1 < len(pts); i++ {
		emit(segmentQuad(pts[i], pts[i+1], hw))
	}
	for i := 1; i+1 < len(pts); i++ {
		join(pts[i-1], pts[i], pts[i+1], hw, style, emit)
	}
	if style.Cap == graphicsstate.RoundCap {
		emit(circle(first, hw))
		emit(circle(last, hw))
	}
}

func strokeClosed(pts []model.Point, hw float64, style graphicsstate.StrokeStyle, emit func([]model.Point)) {
	n := len(pts)
	for i := 0; i < n; i++ {
		emit(segmentQuad(pts[i], pts[(i+1)%n], hw))
	}
	for i := 0; i < n; i++ {
		join(pts[(i+n-1)%n], pts[i], pts[(i+1)%n], hw, style, emit)
	}
}

func segmentQuad(a, b model.Point, hw float64) []model.Point {
	d := unit(b, a)
	nx, ny := -d.Y*hw, d.X*hw
	return []model.Point{
		{X: a.X + nx, Y: a.Y + ny},
		{X: b.X + nx, Y: b.Y + ny},
		{X: b.X - nx, Y: b.Y - ny},
		{X: a.X - nx, Y: a.Y - ny},
	}
}

// join fills the wedge on the outside of the corner at b.
func join(a, b, c model.Point, hw float64, style graphicsstate.StrokeStyle, emit func([]model.Point)) {
	d1, d2 := unit(b, a), unit(c, b)
	cross := d1.X*d2.Y - d1.Y*d2.X
	if math.Abs(cross) < 1e-9 && d1.X*d2.X+d1.Y*d2.Y > 0 {
		return // straight on
	}
	if style.Join == graphicsstate.RoundJoin {
		emit(circle(b, hw))
		return
	}

	s := -1.0
	if cross < 0 {
		s = 1
	}
	n1 := model.Point{X: -d1.Y * s, Y: d1.X * s}
	n2 := model.Point{X: -d2.Y * s, Y: d2.X * s}
	p1 := model.Point{X: b.X + n1.X*hw, Y: b.Y + n1.Y*hw}
	p2 := model.Point{X: b.X + n2.X*hw, Y: b.Y + n2.Y*hw}

	if style.Join == graphicsstate.MiterJoin {
		cos := n1.X*n2.X + n1.Y*n2.Y
		if cos > -1+1e-9 {
			ratio := math.Sqrt(2 / (1 + cos))
			if ratio <= style.MiterLimit {
				k := hw / (1 + cos)
				tip := model.Point{X: b.X + (n1.X+n2.X)*k, Y: b.Y + (n1.Y+n2.Y)*k}
				emit([]model.Point{b, p1, tip, p2})
				return
			}
		}
	}
	emit([]model.Point{b, p1, p2})
}

// dashPolyline cuts a polyline into the "on" pieces of a dash pattern.
func dashPolyline(pts []model.Point, dash []float64, phase float64) [][]model.Point {
	total := 0.0
	for _, d := range dash {
		total += d
	}
	if total <= 0 || len(pts) < 2 {
		return [][]model.Point{pts}
	}

	// Odd-length patterns repeat with on and off swapped.
	period := total
	if len(dash)%2 == 1 {
		period *= 2
	}
	phase = math.Mod(phase, period)
	if phase < 0 {
		phase += period
	}
	idx, on := 0, true
	remaining := dash[0]
	for phase > 0 {
		if phase < remaining {
			remaining -= phase
			break
		}
		phase -= remaining
		idx = (idx + 1) % len(dash)
		on = !on
		remaining = dash[idx]
	}

	var pieces [][]model.Point
	var cur []model.Point
	if on {
		cur = []model.Point{pts[0]}
	}
	for i := 0; i+1 < len(pts); i++ {
		a, b := pts[i], pts[i+1]
		segLen := math.Hypot(b.X-a.X, b.Y-a.Y)
		pos := 0.0
		for segLen-pos > remaining {
			pos += remaining
			t := pos / segLen
			p := model.Point{X: a.X + (b.X-a.X)*t, Y: a.Y + (b.Y-a.Y)*t}
			if on {
				pieces = append(pieces, append(cur, p))
				cur = nil
			} else {
				cur = []model.Point{p}
			}
			on = !on
			idx = (idx + 1) % len(dash)
			remaining = dash[idx]
		}
		remaining -= segLen - pos
		if on {
			cur = append(cur, b)
		}
	}
	if on && len(cur) > 1 {
		pieces = append(pieces, cur)
	}
	return pieces
}

func circle(c model.Point, r float64) []model.Point {
	n := int(math.Ceil(2 * math.Pi * r / 2))
	n = max(8, min(n, 64))
	pts := make([]model.Point, n)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / float64(n)
		pts[i] = model.Point{X: c.X + r*math.Cos(a), Y: c.Y + r*math.Sin(a)}
	}
	return pts
}

// unit returns the unit vector from a to b, or (1, 0) for equal points.
func unit(b, a model.Point) model.Point {
	dx, dy := b.X-a.X, b.Y-a.Y
	l := math.Hypot(dx, dy)
	if l == 0 {
		return model.Point{X: 1}
	}
	return model.Point{X: dx / l, Y: dy / l}
}

func dedupe(pts []model.Point) []model.Point {
	out := make([]model.Point, 0, len(pts))
	for i, p := range pts {
		if i == 0 || p != out[len(out)-1] {
			out = append(out, p)
		}
	}
	return out
}

// orient returns p with a positive signed area.
func orient(p []model.Point) []model.Point {
	area := 0.0
	for i := range p {
		a, b := p[i], p[(i+1)%len(p)]
		area += a.X*b.Y - b.X*a.Y
	}
	if area >= 0 {
		return p
	}
	out := make([]model.Point, len(p))
	for i, pt := range p {
		out[len(p)-1-i] = pt
	}
	return out
}
