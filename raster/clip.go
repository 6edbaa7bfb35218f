package raster

import "github.com/tsawler/pageview/model"

type rect struct {
	minX, minY, maxX, maxY float64
}

// polygon clips a closed polygon to r (Sutherland-Hodgman). Winding inside
// r is preserved.
func (r rect) polygon(pts []model.Point) []model.Point {
	if r.contains(pts) {
		return pts
	}
	edges := []struct {
		inside func(model.Point) bool
		cross  func(a, b model.Point) model.Point
	}{
		{func(p model.Point) bool { return p.X >= r.minX }, func(a, b model.Point) model.Point { return atX(a, b, r.minX) }},
		{func(p model.Point) bool { return p.X <= r.maxX }, func(a, b model.Point) model.Point { return atX(a, b, r.maxX) }},
		{func(p model.Point) bool { return p.Y >= r.minY }, func(a, b model.Point) model.Point { return atY(a, b, r.minY) }},
		{func(p model.Point) bool { return p.Y <= r.maxY }, func(a, b model.Point) model.Point { return atY(a, b, r.maxY) }},
	}

	out := pts
	for _, e := range edges {
		if len(out) == 0 {
			return nil
		}
		in := out
		out = make([]model.Point, 0, len(in)+4)
		prev := in[len(in)-1]
		for _, cur := range in {
			switch {
			case e.inside(cur):
				if !e.inside(prev) {
					out = append(out, e.cross(prev, cur))
				}
				out = append(out, cur)
			case e.inside(prev):
				out = append(out, e.cross(prev, cur))
			}
			prev = cur
		}
	}
	return out
}

func (r rect) contains(pts []model.Point) bool {
	for _, p := range pts {
		if p.X < r.minX || p.X > r.maxX || p.Y < r.minY || p.Y > r.maxY {
			return false
		}
	}
	return true
}

func atX(a, b model.Point, x float64) model.Point {
	t := (x - a.X) / (b.X - a.X)
	return model.Point{X: x, Y: a.Y + t*(b.Y-a.Y)}
}

func atY(a, b model.Point, y float64) model.Point {
	t := (y - a.Y) / (b.Y - a.Y)
	return model.Point{X: a.X + t*(b.X-a.X), Y: y}
}
