package geom

import "errors"

// ErrEmptyPolyline is returned by constructors fed an empty point slice —
// a polyline, per invariant, always has at least one point.
var ErrEmptyPolyline = errors.New("geom: polyline must have at least one point")

// PolyLine3 is an ordered list of at least one 3D point forming a broken
// line, with its cached total length. It backs every lane and turn
// geometry in the map model (spec.md §3 "dense 3D polyline").
type PolyLine3 struct {
	points []Vec3
	length float64
}

// NewPolyLine3 builds a PolyLine3 from points, caching its length.
func NewPolyLine3(points []Vec3) (*PolyLine3, error) {
	if len(points) == 0 {
		return nil, ErrEmptyPolyline
	}
	cp := make([]Vec3, len(points))
	copy(cp, points)
	return &PolyLine3{points: cp, length: polyLength3(cp)}, nil
}

func polyLength3(pts []Vec3) float64 {
	total := 0.0
	for i := 1; i < len(pts); i++ {
		total += pts[i].DistanceTo(pts[i-1])
	}
	return total
}

// Points returns a defensive copy of the underlying points.
func (p *PolyLine3) Points() []Vec3 {
	cp := make([]Vec3, len(p.points))
	copy(cp, p.points)
	return cp
}

func (p *PolyLine3) First() Vec3 { return p.points[0] }
func (p *PolyLine3) Last() Vec3  { return p.points[len(p.points)-1] }
func (p *PolyLine3) Length() float64 { return p.length }

// Flatten drops elevation, producing the 2D projection used by the spatial
// index and traffic decision systems.
func (p *PolyLine3) Flatten() []Vec2 {
	out := make([]Vec2, len(p.points))
	for i, pt := range p.points {
		out[i] = pt.XY()
	}
	return out
}

// PointAt walks the polyline and returns the point that is `dist` along its
// length from the start, clamped to [0, Length()]. It also returns the
// index of the segment the point falls in, used by callers that need to
// resume walking from where they left off (itinerary local-path consumption).
func (p *PolyLine3) PointAt(dist float64) (Vec3, int) {
	if dist <= 0 {
		return p.points[0], 0
	}
	if dist >= p.length {
		return p.points[len(p.points)-1], len(p.points) - 2
	}
	walked := 0.0
	for i := 1; i < len(p.points); i++ {
		seg := p.points[i].DistanceTo(p.points[i-1])
		if walked+seg >= dist {
			t := 0.0
			if seg > 1e-9 {
				t = (dist - walked) / seg
			}
			return p.points[i-1].Lerp(p.points[i], t), i - 1
		}
		walked += seg
	}
	return p.points[len(p.points)-1], len(p.points) - 2
}

// Reversed returns a new PolyLine3 with point order reversed, used when a
// Traversable is walked against its natural direction.
func (p *PolyLine3) Reversed() *PolyLine3 {
	rev := make([]Vec3, len(p.points))
	for i, pt := range p.points {
		rev[len(p.points)-1-i] = pt
	}
	pl, _ := NewPolyLine3(rev)
	return pl
}

// CubicSegment describes a road segment defined by its endpoints and
// derivatives, sampled adaptively by SampleCubic (spec.md §4.2
// "smart-stepping").
type CubicSegment struct {
	From, To     Vec3
	FromDeriv    Vec3
	ToDeriv      Vec3
}

// SampleCubic adaptively samples a Hermite cubic between From and To using
// FromDeriv/ToDeriv as tangents, stopping subdivision once consecutive
// samples are within `precision` of the straight chord between them. Rail
// callers pass a tighter precision than roads (spec.md §4.2).
func SampleCubic(seg CubicSegment, precision float64) []Vec3 {
	if precision <= 0 {
		precision = 0.5
	}
	return subdivideCubic(seg, 0, 1, seg.From, seg.To, precision, 0)
}

func hermite(seg CubicSegment, t float64) Vec3 {
	t2 := t * t
	t3 := t2 * t
	h00 := 2*t3 - 3*t2 + 1
	h10 := t3 - 2*t2 + t
	h01 := -2*t3 + 3*t2
	h11 := t3 - t2
	p := seg.From.Scale(h00).
		Add(seg.FromDeriv.Scale(h10)).
		Add(seg.To.Scale(h01)).
		Add(seg.ToDeriv.Scale(h11))
	return p
}

func subdivideCubic(seg CubicSegment, t0, t1 float64, p0, p1 Vec3, precision float64, depth int) []Vec3 {
	const maxDepth = 16
	mid := (t0 + t1) / 2
	pm := hermite(seg, mid)
	chordMid := p0.Lerp(p1, 0.5)
	if depth >= maxDepth || pm.DistanceTo(chordMid) <= precision {
		return []Vec3{p0, p1}
	}
	left := subdivideCubic(seg, t0, mid, p0, pm, precision, depth+1)
	right := subdivideCubic(seg, mid, t1, pm, p1, precision, depth+1)
	// left's last point == right's first point (pm); drop the duplicate.
	return append(left[:len(left)-1], right...)
}
