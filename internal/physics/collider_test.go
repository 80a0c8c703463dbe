package physics

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntersectsTouchingIsNotOverlap(t *testing.T) {
	a := Box{Center: mgl64.Vec3{0, 0, 0}, Half: mgl64.Vec3{1, 1, 1}}
	b := Box{Center: mgl64.Vec3{2, 0, 0}, Half: mgl64.Vec3{1, 1, 1}}
	assert.False(t, Intersects(a, b))
	assert.Equal(t, mgl64.Vec3{}, PenetrationDepth(a, b))

	b.Center[0] = 1.5
	require.True(t, Intersects(a, b))
	assert.Equal(t, mgl64.Vec3{0.5, 2, 2}, PenetrationDepth(a, b))
}

func TestResolveNoOverlapIsNoop(t *testing.T) {
	obstacles := []Obstacle{{ID: 0, Box: Box{Center: mgl64.Vec3{10, 1, 0}, Half: mgl64.Vec3{1, 1, 1}}}}
	half := mgl64.Vec3{0.9, 0.9, 0.9}
	foot := mgl64.Vec3{0.3, 0, -2}

	got := ResolveHorizontal(mgl64.Vec3{0, 0, -2}, foot, half, obstacles)
	assert.Equal(t, foot, got)
}

func TestResolvePushesAlongSmallerAxis(t *testing.T) {
	wall := Obstacle{ID: 0, Box: Box{Center: mgl64.Vec3{2, 1, 0}, Half: mgl64.Vec3{1, 1, 4}}}
	half := mgl64.Vec3{0.5, 0.5, 0.5}

	got := ResolveHorizontal(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0.75, 0, 0}, half, []Obstacle{wall})

	assert.Equal(t, mgl64.Vec3{0.5, 0, 0}, got)
	pen := PenetrationDepth(EntityBox(got, half), wall.Box)
	assert.LessOrEqual(t, pen[0], 1e-9)
	assert.False(t, Intersects(EntityBox(got, half), wall.Box))
}

func TestResolveTieGoesToZ(t *testing.T) {
	block := Obstacle{ID: 0, Box: Box{Center: mgl64.Vec3{0, 1, 0}, Half: mgl64.Vec3{1, 1, 1}}}
	half := mgl64.Vec3{0.5, 0.5, 0.5}

	got := ResolveHorizontal(mgl64.Vec3{2, 0, 2}, mgl64.Vec3{1.25, 0, 1.25}, half, []Obstacle{block})

	assert.Equal(t, 1.25, got[0])
	assert.Equal(t, 1.5, got[2])
}

func TestResolveUsesPreMoveSide(t *testing.T) {
	// The entity ends up past the wall center, but it came from the -X side,
	// so it is pushed back toward -X.
	wall := Obstacle{ID: 0, Box: Box{Center: mgl64.Vec3{0, 1, 0}, Half: mgl64.Vec3{0.25, 1, 4}}}
	half := mgl64.Vec3{0.5, 0.5, 0.5}

	got := ResolveHorizontal(mgl64.Vec3{-1, 0, 0}, mgl64.Vec3{0.25, 0, 0}, half, []Obstacle{wall})

	assert.Less(t, got[0], 0.25)
}

func TestResolveSkipsWalkable(t *testing.T) {
	floor := Obstacle{ID: 0, Box: Box{Center: mgl64.Vec3{0, 0, 0}, Half: mgl64.Vec3{5, 0.1, 5}}, Walkable: true}
	half := mgl64.Vec3{0.9, 0.9, 0.9}
	foot := mgl64.Vec3{1, 0, 1}

	assert.Equal(t, foot, ResolveHorizontal(mgl64.Vec3{0, 0, 0}, foot, half, []Obstacle{floor}))
}

func TestRaycastBlocked(t *testing.T) {
	wall := []Obstacle{{ID: 0, Box: Box{Center: mgl64.Vec3{5, 1, 0}, Half: mgl64.Vec3{0.5, 2, 2}}}}
	origin := mgl64.Vec3{0, 1, 0}
	east := mgl64.Vec3{1, 0, 0}

	assert.True(t, RaycastBlocked(origin, east, 10, wall))
	assert.False(t, RaycastBlocked(origin, east, 4, wall), "wall starts beyond the target")
	assert.False(t, RaycastBlocked(origin, east.Mul(-1), 10, wall), "wall is behind the origin")
	assert.False(t, RaycastBlocked(origin, mgl64.Vec3{}, 10, wall))
	assert.False(t, RaycastBlocked(origin, mgl64.Vec3{0, 0, 1}, 10, wall))
	assert.True(t, RaycastBlocked(origin, mgl64.Vec3{3, 0, 0}, 10, wall), "direction is normalized")
}
