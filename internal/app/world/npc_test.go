package world

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	domainworld "cityfps-server/internal/domain/world"
	"cityfps-server/internal/physics"
)

func targetAt(id string, foot mgl64.Vec3) npcTarget {
	return npcTarget{ID: id, Center: foot.Add(mgl64.Vec3{0, domainworld.EntityHalfExtent, 0})}
}

func TestNPCNeedsLineOfSight(t *testing.T) {
	b := defaultBehavior()
	npc := &domainworld.NPCState{ID: "npc_0", State: domainworld.NPCWandering, Roam: domainworld.Vector{X: 0.01}}
	targets := []npcTarget{targetAt("p1", mgl64.Vec3{0, 0, 20})}
	wall := []physics.Obstacle{{Box: physics.BoxFromCenterSize(mgl64.Vec3{0, 5, 10}, mgl64.Vec3{10, 10, 1})}}

	if shot := b.step(npc, targets, wall); shot != nil {
		t.Fatalf("obstructed NPC must not fire")
	}
	if npc.State != domainworld.NPCWandering {
		t.Fatalf("expected WANDERING behind a wall, got %s", npc.State)
	}
	if npc.X != 0.01 {
		t.Fatalf("wandering NPC should drift, got x=%v", npc.X)
	}

	shot := b.step(npc, targets, nil)
	if npc.State != domainworld.NPCAttacking {
		t.Fatalf("expected ATTACKING once the wall is gone, got %s", npc.State)
	}
	if shot == nil {
		t.Fatalf("expected a shot on the first attacking tick")
	}
	if npc.ShootCooldown != npcShotCooldown {
		t.Fatalf("expected cooldown reset to %d, got %d", npcShotCooldown, npc.ShootCooldown)
	}
	if speed := shot.Velocity.Vec().Len(); math.Abs(speed-npcBulletSpeed) > 1e-9 {
		t.Fatalf("expected bullet speed %v, got %v", npcBulletSpeed, speed)
	}
	if npc.X != 0.01 {
		t.Fatalf("attacking NPC must hold position, got x=%v", npc.X)
	}

	for i := 1; i < npcShotCooldown; i++ {
		if s := b.step(npc, targets, nil); s != nil {
			t.Fatalf("fired during cooldown at tick %d", i)
		}
	}
	if s := b.step(npc, targets, nil); s == nil {
		t.Fatalf("expected a shot once the cooldown expired")
	}

	b.step(npc, targets, wall)
	if npc.State != domainworld.NPCWandering {
		t.Fatalf("expected WANDERING after losing sight, got %s", npc.State)
	}
}

func TestNPCDetectionAndAttackRange(t *testing.T) {
	b := defaultBehavior()

	far := &domainworld.NPCState{ID: "npc_0"}
	b.step(far, []npcTarget{targetAt("p1", mgl64.Vec3{0, 0, 70})}, nil)
	if far.State != domainworld.NPCWandering {
		t.Fatalf("target beyond detection range must be ignored")
	}

	mid := &domainworld.NPCState{ID: "npc_1"}
	if shot := b.step(mid, []npcTarget{targetAt("p1", mgl64.Vec3{0, 0, 55})}, nil); shot != nil {
		t.Fatalf("target outside attack range must not be shot")
	}
	if mid.State != domainworld.NPCAttacking {
		t.Fatalf("target inside detection range must be engaged")
	}
	if math.Abs(mid.RotationY) > 1e-9 {
		t.Fatalf("expected NPC to face +Z, got %v", mid.RotationY)
	}
}

func TestNPCEngagesNearestAndLeads(t *testing.T) {
	b := defaultBehavior()
	npc := &domainworld.NPCState{ID: "npc_0"}
	near := targetAt("near", mgl64.Vec3{25, 0, 0})
	near.Velocity = mgl64.Vec3{0, 0, 1}
	targets := []npcTarget{targetAt("far", mgl64.Vec3{0, 0, -40}), near}

	shot := b.step(npc, targets, nil)
	if shot == nil {
		t.Fatalf("expected a shot")
	}
	if math.Abs(npc.RotationY-math.Pi/2) > 1e-9 {
		t.Fatalf("expected NPC to face the nearest target, got heading %v", npc.RotationY)
	}
	if shot.Velocity.X <= 0 || shot.Velocity.Z <= 0 {
		t.Fatalf("expected aim led toward the target's motion, got %+v", shot.Velocity)
	}
	muzzle := shot.Position.Vec().Sub(npc.Center()).Len()
	if math.Abs(muzzle-npcMuzzleOffset) > 1e-9 {
		t.Fatalf("expected muzzle offset %v, got %v", npcMuzzleOffset, muzzle)
	}
}

func TestNPCBouncesAtBoundary(t *testing.T) {
	b := defaultBehavior()
	npc := &domainworld.NPCState{ID: "npc_0", X: 249.995, Roam: domainworld.Vector{X: 0.01, Z: -0.01}}

	b.step(npc, nil, nil)
	if npc.Roam.X != -0.01 || npc.Roam.Z != 0.01 {
		t.Fatalf("expected drift inverted past the boundary, got %+v", npc.Roam)
	}
	if math.Abs(npc.Velocity.X-0.01) > 1e-12 {
		t.Fatalf("expected velocity to be the position delta, got %+v", npc.Velocity)
	}

	b.step(npc, nil, nil)
	if npc.X >= 250.005 {
		t.Fatalf("expected NPC to head back, got x=%v", npc.X)
	}
}
