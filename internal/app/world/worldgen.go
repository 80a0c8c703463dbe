package world

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"

	domainworld "cityfps-server/internal/domain/world"
	"cityfps-server/internal/physics"
)

const (
	roadHalfWidth     = 15.0
	towerWallThick    = 0.2
	doorWidth         = 3.0
	doorHeight        = 4.0
	npcSpawnSpan      = 400.0
	npcDriftSpan      = 0.04
	structureWallSize = 0.5
)

var buildingKinds = []domainworld.BuildingKind{
	domainworld.BuildingNormal,
	domainworld.BuildingGlass,
	domainworld.BuildingMetal,
}

// enterableOrigin is where the fixed walk-in structure stands.
var enterableOrigin = mgl64.Vec3{30, 0, 30}

// generateLayout places towers along both sides of the central road, then
// adds the enterable structure. attempts is an upper bound: candidates that
// would sit on the road are discarded.
func generateLayout(rng *rand.Rand, attempts int) domainworld.Layout {
	layout := domainworld.Layout{
		Buildings: make([]domainworld.Building, 0, attempts),
	}
	var boxes []physics.Obstacle
	for i := 0; i < attempts; i++ {
		b := domainworld.Building{
			Kind:   buildingKinds[rng.Intn(len(buildingKinds))],
			Height: rng.Float64()*50 + 10,
			Width:  rng.Float64()*10 + 5,
			Depth:  rng.Float64()*10 + 5,
		}
		side := -20.0
		offset := (rng.Float64() - 0.5) * 200
		if rng.Float64() > 0.5 {
			side = 20
		}
		b.X = offset + side
		b.Z = (rng.Float64() - 0.5) * 500
		if math.Abs(b.X) < roadHalfWidth {
			continue
		}
		layout.Buildings = append(layout.Buildings, b)
		boxes = append(boxes, towerObstacles(b)...)
	}
	boxes = append(boxes, enterableObstacles(enterableOrigin)...)

	for i := range boxes {
		boxes[i].ID = i
	}
	layout.Obstacles = boxes
	return layout
}

// towerObstacles turns a tower into hollow walls with a door in the +Z face.
func towerObstacles(b domainworld.Building) []physics.Obstacle {
	x, z, w, h, d := b.X, b.Z, b.Width, b.Height, b.Depth
	sideWidth := (w - doorWidth) / 2
	front := z + d/2
	return []physics.Obstacle{
		wall("tower-back", mgl64.Vec3{x, h / 2, z - d/2}, mgl64.Vec3{w, h, towerWallThick}),
		wall("tower-left", mgl64.Vec3{x - w/2, h / 2, z}, mgl64.Vec3{towerWallThick, h, d}),
		wall("tower-right", mgl64.Vec3{x + w/2, h / 2, z}, mgl64.Vec3{towerWallThick, h, d}),
		wall("tower-front", mgl64.Vec3{x - (doorWidth/2 + sideWidth/2), h / 2, front}, mgl64.Vec3{sideWidth, h, towerWallThick}),
		wall("tower-front", mgl64.Vec3{x + (doorWidth/2 + sideWidth/2), h / 2, front}, mgl64.Vec3{sideWidth, h, towerWallThick}),
		wall("tower-lintel", mgl64.Vec3{x, doorHeight + (h-doorHeight)/2, front}, mgl64.Vec3{doorWidth, h - doorHeight, towerWallThick}),
		floor("tower-floor", mgl64.Vec3{x, 0, z}, mgl64.Vec3{w, towerWallThick, d}),
	}
}

// enterableObstacles is the furnished structure players can walk into.
func enterableObstacles(at mgl64.Vec3) []physics.Obstacle {
	const w, h, d = 15.0, 8.0, 20.0
	t := structureWallSize
	side := (w - doorWidth) / 2
	rel := func(x, y, z float64) mgl64.Vec3 { return at.Add(mgl64.Vec3{x, y, z}) }
	return []physics.Obstacle{
		floor("structure-floor", rel(0, t/2, 0), mgl64.Vec3{w, t, d}),
		wall("structure-ceiling", rel(0, h, 0), mgl64.Vec3{w, t, d}),
		wall("structure-back", rel(0, h/2, -d/2), mgl64.Vec3{w, h, t}),
		wall("structure-front", rel(-(doorWidth/2 + side/2), h/2, d/2), mgl64.Vec3{side, h, t}),
		wall("structure-front", rel(doorWidth/2+side/2, h/2, d/2), mgl64.Vec3{side, h, t}),
		wall("structure-lintel", rel(0, doorHeight+(h-doorHeight)/2, d/2), mgl64.Vec3{doorWidth, h - doorHeight, t}),
		wall("structure-left", rel(-w/2, h/2, 0), mgl64.Vec3{t, h, d}),
		wall("structure-right", rel(w/2, h/2, 0), mgl64.Vec3{t, h, d}),
		wall("table", rel(0, 1, 0), mgl64.Vec3{4, 1, 2}),
		wall("chair", rel(-2, 1, 2), mgl64.Vec3{1, 2, 1}),
		wall("chair", rel(2, 1, 2), mgl64.Vec3{1, 2, 1}),
	}
}

func wall(tag string, center, size mgl64.Vec3) physics.Obstacle {
	return physics.Obstacle{Tag: tag, Box: physics.BoxFromCenterSize(center, size)}
}

func floor(tag string, center, size mgl64.Vec3) physics.Obstacle {
	o := wall(tag, center, size)
	o.Walkable = true
	return o
}

func npcID(seq int) string { return fmt.Sprintf("npc_%d", seq) }

// spawnNPC places a wandering NPC on the ground with a random drift.
func spawnNPC(rng *rand.Rand, id string) domainworld.NPCState {
	n := domainworld.NPCState{
		ID:    id,
		X:     (rng.Float64() - 0.5) * npcSpawnSpan,
		Z:     (rng.Float64() - 0.5) * npcSpawnSpan,
		State: domainworld.NPCWandering,
		Roam: domainworld.Vector{
			X: (rng.Float64() - 0.5) * npcDriftSpan,
			Z: (rng.Float64() - 0.5) * npcDriftSpan,
		},
	}
	n.RotationY = math.Atan2(n.Roam.X, n.Roam.Z)
	return n
}
