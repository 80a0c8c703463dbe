package world

import (
	"math"
	"math/rand"
	"reflect"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	domainworld "cityfps-server/internal/domain/world"
	"cityfps-server/internal/physics"
)

func TestGenerateLayout(t *testing.T) {
	layout := generateLayout(rand.New(rand.NewSource(11)), 100)

	if len(layout.Buildings) == 0 || len(layout.Buildings) > 100 {
		t.Fatalf("unexpected building count %d", len(layout.Buildings))
	}
	for _, b := range layout.Buildings {
		if math.Abs(b.X) < roadHalfWidth {
			t.Fatalf("building placed on the road at x=%v", b.X)
		}
		if b.Height < 10 || b.Height >= 60 || b.Width < 5 || b.Width >= 15 {
			t.Fatalf("building dimensions out of range: %+v", b)
		}
	}
	want := 7*len(layout.Buildings) + len(enterableObstacles(enterableOrigin))
	if len(layout.Obstacles) != want {
		t.Fatalf("expected %d obstacles, got %d", want, len(layout.Obstacles))
	}
	for i, o := range layout.Obstacles {
		if o.ID != i {
			t.Fatalf("obstacle %d carries id %d", i, o.ID)
		}
	}

	again := generateLayout(rand.New(rand.NewSource(11)), 100)
	if !reflect.DeepEqual(layout, again) {
		t.Fatalf("same seed must give the same layout")
	}
}

func blocking(obstacles []physics.Obstacle, foot mgl64.Vec3) []string {
	box := physics.EntityBox(foot, domainworld.EntityHalf)
	var hit []string
	for _, o := range obstacles {
		if !o.Walkable && physics.Intersects(box, o.Box) {
			hit = append(hit, o.Tag)
		}
	}
	return hit
}

func TestDoorwaysAreOpen(t *testing.T) {
	b := domainworld.Building{Kind: domainworld.BuildingGlass, Height: 30, Width: 8, Depth: 10, X: 40, Z: -20}
	tower := towerObstacles(b)
	doorway := mgl64.Vec3{b.X, 0, b.Z + b.Depth/2}
	if hit := blocking(tower, doorway); len(hit) != 0 {
		t.Fatalf("tower doorway blocked by %v", hit)
	}
	inside := mgl64.Vec3{b.X, 0, b.Z}
	if hit := blocking(tower, inside); len(hit) != 0 {
		t.Fatalf("tower interior blocked by %v", hit)
	}
	beside := mgl64.Vec3{b.X + 2.5, 0, b.Z + b.Depth/2}
	if hit := blocking(tower, beside); len(hit) == 0 {
		t.Fatalf("expected the front wall beside the door to block")
	}

	structure := enterableObstacles(enterableOrigin)
	door := enterableOrigin.Add(mgl64.Vec3{0, 0, 10})
	if hit := blocking(structure, door); len(hit) != 0 {
		t.Fatalf("structure doorway blocked by %v", hit)
	}
	if hit := blocking(structure, enterableOrigin); len(hit) == 0 {
		t.Fatalf("expected the table to block the structure's center")
	}
}

func TestSpawnNPC(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 50; i++ {
		n := spawnNPC(rng, npcID(i))
		if math.Abs(n.X) > npcSpawnSpan/2 || math.Abs(n.Z) > npcSpawnSpan/2 || n.Y != 0 {
			t.Fatalf("NPC spawned out of bounds: %+v", n)
		}
		if math.Abs(n.Roam.X) > npcDriftSpan/2 || math.Abs(n.Roam.Z) > npcDriftSpan/2 {
			t.Fatalf("NPC drift out of range: %+v", n.Roam)
		}
		if n.State != domainworld.NPCWandering {
			t.Fatalf("NPCs start wandering")
		}
	}
	if npcID(7) != "npc_7" {
		t.Fatalf("unexpected NPC id %q", npcID(7))
	}
}
