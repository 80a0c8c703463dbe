// Package physics holds the axis-aligned collision primitives shared by the
// server tick and the client simulation.
package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const epsilon = 1e-9

// Box is an axis-aligned bounding box stored as center and half-extents.
type Box struct {
	Center mgl64.Vec3 `json:"center"`
	Half   mgl64.Vec3 `json:"half"`
}

func BoxFromCenterSize(center, size mgl64.Vec3) Box {
	return Box{Center: center, Half: size.Mul(0.5)}
}

func (b Box) Min() mgl64.Vec3 { return b.Center.Sub(b.Half) }
func (b Box) Max() mgl64.Vec3 { return b.Center.Add(b.Half) }

// Obstacle is immutable static geometry. ID is the index of the obstacle in
// the world's obstacle list.
type Obstacle struct {
	ID  int    `json:"id"`
	Box Box    `json:"box"`
	Tag string `json:"tag,omitempty"`
	// Walkable obstacles (floor slabs) stop projectiles and sight lines but
	// are left to ground contact instead of horizontal push-out.
	Walkable bool `json:"walkable,omitempty"`
}

// Intersects reports whether a and b overlap with positive volume. Boxes that
// only touch do not intersect.
func Intersects(a, b Box) bool {
	for i := 0; i < 3; i++ {
		if math.Abs(a.Center[i]-b.Center[i]) >= a.Half[i]+b.Half[i] {
			return false
		}
	}
	return true
}

// PenetrationDepth returns the overlap extent of a and b on each axis. When
// the boxes do not intersect the zero vector is returned.
func PenetrationDepth(a, b Box) mgl64.Vec3 {
	if !Intersects(a, b) {
		return mgl64.Vec3{}
	}
	amin, amax := a.Min(), a.Max()
	bmin, bmax := b.Min(), b.Max()
	var d mgl64.Vec3
	for i := 0; i < 3; i++ {
		d[i] = math.Min(amax[i], bmax[i]) - math.Max(amin[i], bmin[i])
	}
	return d
}

// RaycastBlocked reports whether any obstacle lies between origin and the
// point maxDistance along direction. A zero direction or non-positive
// distance is never blocked.
func RaycastBlocked(origin, direction mgl64.Vec3, maxDistance float64, obstacles []Obstacle) bool {
	if maxDistance <= 0 || direction.Len() < epsilon {
		return false
	}
	dir := direction.Normalize()
	for i := range obstacles {
		if rayHitsBox(origin, dir, maxDistance, obstacles[i].Box) {
			return true
		}
	}
	return false
}

// rayHitsBox is the slab test restricted to the open segment (0, maxDistance).
func rayHitsBox(origin, dir mgl64.Vec3, maxDistance float64, b Box) bool {
	bmin, bmax := b.Min(), b.Max()
	tNear := math.Inf(-1)
	tFar := math.Inf(1)
	for i := 0; i < 3; i++ {
		if math.Abs(dir[i]) < epsilon {
			if origin[i] <= bmin[i] || origin[i] >= bmax[i] {
				return false
			}
			continue
		}
		t1 := (bmin[i] - origin[i]) / dir[i]
		t2 := (bmax[i] - origin[i]) / dir[i]
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tNear = math.Max(tNear, t1)
		tFar = math.Min(tFar, t2)
		if tNear >= tFar {
			return false
		}
	}
	return tFar > epsilon && tNear < maxDistance-epsilon
}
