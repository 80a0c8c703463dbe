package world

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	domainworld "cityfps-server/internal/domain/world"
	"cityfps-server/internal/physics"
)

const (
	npcDetectRange   = 60.0
	npcAttackRange   = 50.0
	npcShotCooldown  = 50
	npcBulletSpeed   = 1.5
	npcMuzzleOffset  = 1.5
	npcLeadDivisor   = 50.0
	npcBoundaryLimit = 250.0
)

// npcTarget is what an NPC can observe about a player.
type npcTarget struct {
	ID       string
	Center   mgl64.Vec3
	Velocity mgl64.Vec3
}

type behavior struct {
	detectRange  float64
	attackRange  float64
	cooldown     int
	bulletSpeed  float64
	muzzleOffset float64
	leadDivisor  float64
	boundary     float64
}

func defaultBehavior() behavior {
	return behavior{
		detectRange:  npcDetectRange,
		attackRange:  npcAttackRange,
		cooldown:     npcShotCooldown,
		bulletSpeed:  npcBulletSpeed,
		muzzleOffset: npcMuzzleOffset,
		leadDivisor:  npcLeadDivisor,
		boundary:     npcBoundaryLimit,
	}
}

// step advances one NPC by one tick and returns the shot it fires, if any.
// Each NPC is evaluated on its own; NPCs never see each other.
func (b behavior) step(npc *domainworld.NPCState, targets []npcTarget, obstacles []physics.Obstacle) *domainworld.Shot {
	before := npc.Position()
	defer func() { npc.Velocity = domainworld.VectorOf(npc.Position().Sub(before)) }()

	center := npc.Center()
	target, dist := b.engage(center, targets, obstacles)
	if target == nil {
		npc.State = domainworld.NPCWandering
		b.wander(npc)
		return nil
	}

	npc.State = domainworld.NPCAttacking
	toTarget := target.Center.Sub(center)
	npc.RotationY = math.Atan2(toTarget[0], toTarget[2])
	npc.ShootCooldown--
	if npc.ShootCooldown > 0 || dist >= b.attackRange {
		return nil
	}
	npc.ShootCooldown = b.cooldown
	return b.aim(center, toTarget, dist, target.Velocity)
}

// engage picks the nearest player inside the detection radius that the NPC
// can see. Players hidden behind obstacles are ignored.
func (b behavior) engage(center mgl64.Vec3, targets []npcTarget, obstacles []physics.Obstacle) (*npcTarget, float64) {
	var best *npcTarget
	bestDist := math.MaxFloat64
	for i := range targets {
		t := &targets[i]
		delta := t.Center.Sub(center)
		d := delta.Len()
		if d >= b.detectRange || d >= bestDist {
			continue
		}
		if physics.RaycastBlocked(center, delta, d, obstacles) {
			continue
		}
		best, bestDist = t, d
	}
	return best, bestDist
}

// aim leads the target: the direction is biased by the target's last
// velocity scaled with distance.
func (b behavior) aim(center, toTarget mgl64.Vec3, dist float64, velocity mgl64.Vec3) *domainworld.Shot {
	dir := mgl64.Vec3{0, 0, 1}
	if dist > 0 {
		dir = toTarget.Mul(1 / dist)
	}
	dir = dir.Add(velocity.Mul(dist / b.leadDivisor))
	if l := dir.Len(); l > 0 {
		dir = dir.Mul(1 / l)
	}
	return &domainworld.Shot{
		Position: domainworld.VectorOf(center.Add(dir.Mul(b.muzzleOffset))),
		Velocity: domainworld.VectorOf(dir.Mul(b.bulletSpeed)),
	}
}

// wander drifts the NPC and turns it around at the world edge.
func (b behavior) wander(npc *domainworld.NPCState) {
	npc.X += npc.Roam.X
	npc.Z += npc.Roam.Z
	npc.RotationY = math.Atan2(npc.Roam.X, npc.Roam.Z)
	if math.Abs(npc.X) > b.boundary || math.Abs(npc.Z) > b.boundary {
		npc.Roam.X = -npc.Roam.X
		npc.Roam.Z = -npc.Roam.Z
	}
}
