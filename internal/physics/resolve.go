package physics

import "github.com/go-gl/mathgl/mgl64"

// EntityBox returns the bounding box of an entity standing at foot. Entities
// are stored by foot position, so the box center sits half.Y above it.
func EntityBox(foot, half mgl64.Vec3) Box {
	return Box{Center: foot.Add(mgl64.Vec3{0, half[1], 0}), Half: half}
}

// ResolveHorizontal pushes an entity out of every non-walkable obstacle it
// overlaps after moving from prevFoot to foot, and returns the corrected foot
// position.
//
// The push happens along X or Z, whichever has the smaller penetration, with
// ties going to Z. The push direction comes from the pre-move center while the
// overlap is measured at the post-move box. Each obstacle is visited once, so
// a fast entity can still tunnel through thin walls in a single tick.
func ResolveHorizontal(prevFoot, foot, half mgl64.Vec3, obstacles []Obstacle) mgl64.Vec3 {
	prevCenter := EntityBox(prevFoot, half).Center
	for i := range obstacles {
		o := &obstacles[i]
		if o.Walkable {
			continue
		}
		box := EntityBox(foot, half)
		if !Intersects(box, o.Box) {
			continue
		}
		pen := PenetrationDepth(box, o.Box)
		if pen[0] < pen[2] {
			foot[0] += pen[0] * sign(prevCenter[0]-o.Box.Center[0])
		} else {
			foot[2] += pen[2] * sign(prevCenter[2]-o.Box.Center[2])
		}
	}
	return foot
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
