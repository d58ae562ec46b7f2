// Package geom provides the 2D/3D vector and curve primitives shared by
// every spatial component (spatial index, terrain, map model, pathfinder,
// itinerary, traffic, railway). It has no dependency on any other simcore
// package, mirroring the leaf-package role `geom` plays in the original
// source tree.
package geom

import "math"

// Vec2 is an immutable-by-convention 2D point or direction.
type Vec2 struct {
	X, Y float64
}

func NewVec2(x, y float64) Vec2 { return Vec2{X: x, Y: y} }

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }
func (v Vec2) Scale(s float64) Vec2 { return Vec2{v.X * s, v.Y * s} }
func (v Vec2) Dot(o Vec2) float64 { return v.X*o.X + v.Y*o.Y }
func (v Vec2) Cross(o Vec2) float64 { return v.X*o.Y - v.Y*o.X }
func (v Vec2) Len() float64 { return math.Sqrt(v.Dot(v)) }
func (v Vec2) Len2() float64 { return v.Dot(v) }

func (v Vec2) DistanceTo(o Vec2) float64 { return v.Sub(o).Len() }
func (v Vec2) DistanceTo2(o Vec2) float64 { return v.Sub(o).Len2() }

// Normalized returns the unit vector in v's direction, or the zero vector
// if v itself is (near) zero.
func (v Vec2) Normalized() Vec2 {
	l := v.Len()
	if l < 1e-9 {
		return Vec2{}
	}
	return v.Scale(1 / l)
}

// Perpendicular returns v rotated 90 degrees counter-clockwise, used to
// offset a road centerline into a lane polyline by a signed lateral
// distance.
func (v Vec2) Perpendicular() Vec2 { return Vec2{-v.Y, v.X} }

// AngleTo returns the unsigned angle in radians between v and o.
func (v Vec2) AngleTo(o Vec2) float64 {
	denom := v.Len() * o.Len()
	if denom < 1e-9 {
		return 0
	}
	cos := v.Dot(o) / denom
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return math.Acos(cos)
}

// Lerp linearly interpolates between v and o at t ∈ [0,1].
func (v Vec2) Lerp(o Vec2, t float64) Vec2 {
	return Vec2{v.X + (o.X-v.X)*t, v.Y + (o.Y-v.Y)*t}
}

// Vec3 adds elevation to Vec2, used for terrain-following geometry (roads,
// lanes, viaducts).
type Vec3 struct {
	X, Y, Z float64
}

func NewVec3(x, y, z float64) Vec3 { return Vec3{X: x, Y: y, Z: z} }

func (v Vec3) XY() Vec2 { return Vec2{v.X, v.Y} }

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }
func (v Vec3) Dot(o Vec3) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }
func (v Vec3) Len() float64 { return math.Sqrt(v.Dot(v)) }

func (v Vec3) DistanceTo(o Vec3) float64 { return v.Sub(o).Len() }

func (v Vec3) Lerp(o Vec3, t float64) Vec3 {
	return Vec3{v.X + (o.X-v.X)*t, v.Y + (o.Y-v.Y)*t, v.Z + (o.Z-v.Z)*t}
}

// WithZ promotes a Vec2 into a Vec3 at the given elevation.
func WithZ(v Vec2, z float64) Vec3 { return Vec3{v.X, v.Y, z} }

// AABB is an axis-aligned bounding box, used by the spatial index's
// `query_aabb` and by road/building footprints.
type AABB struct {
	Min, Max Vec2
}

func NewAABB(min, max Vec2) AABB { return AABB{Min: min, Max: max} }

// AABBAround returns the square bounding box centered on p with the given
// half-extent radius.
func AABBAround(p Vec2, radius float64) AABB {
	return AABB{
		Min: Vec2{p.X - radius, p.Y - radius},
		Max: Vec2{p.X + radius, p.Y + radius},
	}
}

func (b AABB) Contains(p Vec2) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X && p.Y >= b.Min.Y && p.Y <= b.Max.Y
}

func (b AABB) Intersects(o AABB) bool {
	return b.Min.X <= o.Max.X && b.Max.X >= o.Min.X &&
		b.Min.Y <= o.Max.Y && b.Max.Y >= o.Min.Y
}

// OBB is an oriented bounding box used for building footprints.
type OBB struct {
	Center      Vec2
	HalfExtents Vec2
	// Axis is the unit vector of the box's local X axis; the Y axis is its
	// perpendicular.
	Axis Vec2
}

func NewOBB(center, halfExtents, axis Vec2) OBB {
	return OBB{Center: center, HalfExtents: halfExtents, Axis: axis.Normalized()}
}

// Corners returns the four corners in clockwise order starting top-left
// relative to Axis.
func (b OBB) Corners() [4]Vec2 {
	ax := b.Axis
	ay := ax.Perpendicular()
	ex := ax.Scale(b.HalfExtents.X)
	ey := ay.Scale(b.HalfExtents.Y)
	return [4]Vec2{
		b.Center.Sub(ex).Sub(ey),
		b.Center.Add(ex).Sub(ey),
		b.Center.Add(ex).Add(ey),
		b.Center.Sub(ex).Add(ey),
	}
}

// AABB returns the axis-aligned bound enclosing the OBB, used to register
// it in the spatial index.
func (b OBB) AABB() AABB {
	corners := b.Corners()
	min, max := corners[0], corners[0]
	for _, c := range corners[1:] {
		if c.X < min.X {
			min.X = c.X
		}
		if c.Y < min.Y {
			min.Y = c.Y
		}
		if c.X > max.X {
			max.X = c.X
		}
		if c.Y > max.Y {
			max.Y = c.Y
		}
	}
	return AABB{Min: min, Max: max}
}
