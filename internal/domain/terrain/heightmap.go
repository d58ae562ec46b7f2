// Package terrain implements the chunked heightmap described in spec.md
// §2 (C2): chunked terrain height, tree placement, raycasting, and
// terraforming operations. The procedural noise function that seeds a
// freshly generated chunk is explicitly out of scope (spec.md §1); chunks
// here start flat and are shaped only by terraform operations, matching
// the spec's framing of terrain as a mutable height surface rather than a
// noise-driven renderer concern.
package terrain

import (
	"math"

	"github.com/simcore/simcore/internal/domain/geom"
)

// ChunkSize is the number of height samples per chunk axis.
const ChunkSize = 64

// SampleSpacing is the world distance, in meters, between adjacent height
// samples within a chunk.
const SampleSpacing = 1.0

type chunkKey struct{ cx, cy int32 }

// Chunk holds one square of height samples, row-major.
type Chunk struct {
	heights [ChunkSize * ChunkSize]float64
}

func (c *Chunk) at(lx, ly int) float64 { return c.heights[ly*ChunkSize+lx] }
func (c *Chunk) set(lx, ly int, h float64) { c.heights[ly*ChunkSize+lx] = h }

// Heightmap is a sparse grid of Chunks, generated lazily on first touch.
type Heightmap struct {
	chunks map[chunkKey]*Chunk
	// trees maps a chunk key to the set of world positions where a tree has
	// been placed within that chunk, for coarse-grained tree density control.
	trees map[chunkKey][]geom.Vec2
}

// NewHeightmap creates an empty heightmap; all chunks are flat (height 0)
// until terraformed.
func NewHeightmap() *Heightmap {
	return &Heightmap{
		chunks: make(map[chunkKey]*Chunk),
		trees:  make(map[chunkKey][]geom.Vec2),
	}
}

func chunkKeyOf(p geom.Vec2) (chunkKey, int, int) {
	chunkSpan := float64(ChunkSize) * SampleSpacing
	cx := int32(math.Floor(p.X / chunkSpan))
	cy := int32(math.Floor(p.Y / chunkSpan))
	localX := int(math.Floor((p.X - float64(cx)*chunkSpan) / SampleSpacing))
	localY := int(math.Floor((p.Y - float64(cy)*chunkSpan) / SampleSpacing))
	if localX < 0 {
		localX = 0
	}
	if localX >= ChunkSize {
		localX = ChunkSize - 1
	}
	if localY < 0 {
		localY = 0
	}
	if localY >= ChunkSize {
		localY = ChunkSize - 1
	}
	return chunkKey{cx, cy}, localX, localY
}

func (h *Heightmap) chunkAt(k chunkKey) *Chunk {
	c, ok := h.chunks[k]
	if !ok {
		c = &Chunk{}
		h.chunks[k] = c
	}
	return c
}

// HeightAt returns the height of the sample cell containing p (no
// interpolation between samples), generating the backing chunk (flat) if
// it does not yet exist.
func (h *Heightmap) HeightAt(p geom.Vec2) float64 {
	k, lx, ly := chunkKeyOf(p)
	return h.chunkAt(k).at(lx, ly)
}

// RaycastDown returns the ground height directly below p — here equivalent
// to HeightAt, since the heightmap has no overhangs. It always returns
// true: a never-generated area is flat at height 0, matching the "chunks
// start flat" contract above.
func (h *Heightmap) RaycastDown(p geom.Vec2) (float64, bool) {
	return h.HeightAt(p), true
}

// ChunksModified is the set of chunk keys a terraform operation touched,
// returned so downstream consumers (mesh regeneration, which is out of
// scope here) know what to refresh.
type ChunksModified []chunkKey

// TerraformKind selects how Terraform reshapes the area inside its radius.
type TerraformKind int

const (
	TerraformElevation TerraformKind = iota
	TerraformSmooth
	TerraformLevel
	TerraformSlope
	TerraformErode
)

// Terraform applies a radially-weighted delta inside a circle centered at
// center with the given radius, per spec.md §4.2. For TerraformLevel,
// level is the target absolute height and amount is unused; for TerraformSlope,
// slope gives the desired gradient direction and magnitude. Returns the
// chunks modified.
func Terraform(h *Heightmap, kind TerraformKind, center geom.Vec2, radius, amount, level float64, slope *geom.Vec2) ChunksModified {
	touched := make(map[chunkKey]struct{})
	minP := geom.NewVec2(center.X-radius, center.Y-radius)
	maxP := geom.NewVec2(center.X+radius, center.Y+radius)
	minKey, _, _ := chunkKeyOf(minP)
	maxKey, _, _ := chunkKeyOf(maxP)

	chunkSpan := float64(ChunkSize) * SampleSpacing
	for cx := minKey.cx; cx <= maxKey.cx; cx++ {
		for cy := minKey.cy; cy <= maxKey.cy; cy++ {
			k := chunkKey{cx, cy}
			c := h.chunkAt(k)
			modified := false
			for ly := 0; ly < ChunkSize; ly++ {
				for lx := 0; lx < ChunkSize; lx++ {
					wx := float64(cx)*chunkSpan + float64(lx)*SampleSpacing
					wy := float64(cy)*chunkSpan + float64(ly)*SampleSpacing
					p := geom.NewVec2(wx, wy)
					d := p.DistanceTo(center)
					if d > radius {
						continue
					}
					weight := 1 - d/radius
					cur := c.at(lx, ly)
					var next float64
					switch kind {
					case TerraformElevation:
						next = cur + amount*weight
					case TerraformSmooth:
						next = cur + (neighborAverage(h, p)-cur)*weight*0.5
					case TerraformLevel:
						next = cur + (level-cur)*weight
					case TerraformSlope:
						if slope != nil {
							next = cur + (slope.X*(wx-center.X)+slope.Y*(wy-center.Y))*weight*0.01
						} else {
							next = cur
						}
					case TerraformErode:
						next = cur - amount*weight
					default:
						next = cur
					}
					if next != cur {
						c.set(lx, ly, next)
						modified = true
					}
				}
			}
			if modified {
				touched[k] = struct{}{}
			}
		}
	}
	out := make(ChunksModified, 0, len(touched))
	for k := range touched {
		out = append(out, k)
	}
	return out
}

func neighborAverage(h *Heightmap, p geom.Vec2) float64 {
	sum := 0.0
	offsets := []geom.Vec2{{X: SampleSpacing}, {X: -SampleSpacing}, {Y: SampleSpacing}, {Y: -SampleSpacing}}
	for _, o := range offsets {
		sum += h.HeightAt(p.Add(o))
	}
	return sum / float64(len(offsets))
}

// PlaceTree records a tree at p if the chunk's tree density allows it
// (spec.md §2 "tree placement"); maxPerChunk bounds how many trees one
// chunk may hold. Returns false if the chunk is already saturated.
func (h *Heightmap) PlaceTree(p geom.Vec2, maxPerChunk int) bool {
	k, _, _ := chunkKeyOf(p)
	if len(h.trees[k]) >= maxPerChunk {
		return false
	}
	h.trees[k] = append(h.trees[k], p)
	return true
}

// TreesNear returns every placed tree within radius r of pos.
func (h *Heightmap) TreesNear(pos geom.Vec2, r float64) []geom.Vec2 {
	r2 := r * r
	var out []geom.Vec2
	minKey, _, _ := chunkKeyOf(geom.NewVec2(pos.X-r, pos.Y-r))
	maxKey, _, _ := chunkKeyOf(geom.NewVec2(pos.X+r, pos.Y+r))
	for cx := minKey.cx; cx <= maxKey.cx; cx++ {
		for cy := minKey.cy; cy <= maxKey.cy; cy++ {
			for _, t := range h.trees[chunkKey{cx, cy}] {
				if t.DistanceTo2(pos) <= r2 {
					out = append(out, t)
				}
			}
		}
	}
	return out
}
