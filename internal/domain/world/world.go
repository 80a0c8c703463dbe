package world

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"cityfps-server/internal/physics"
)

// EntityHalfExtent is the half-size of the cube bounding every player and NPC.
// Positions are foot positions, so the entity center is this far above them.
const EntityHalfExtent = 0.9

var EntityHalf = mgl64.Vec3{EntityHalfExtent, EntityHalfExtent, EntityHalfExtent}

type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func VectorOf(v mgl64.Vec3) Vector { return Vector{X: v[0], Y: v[1], Z: v[2]} }

func (v Vector) Vec() mgl64.Vec3 { return mgl64.Vec3{v.X, v.Y, v.Z} }

func (v Vector) Finite() bool {
	return finite(v.X) && finite(v.Y) && finite(v.Z)
}

type BuildingKind string

const (
	BuildingNormal BuildingKind = "normal"
	BuildingGlass  BuildingKind = "glass"
	BuildingMetal  BuildingKind = "metal"
)

// Building is the generator's description of a tower. Its collision geometry
// lives in Layout.Obstacles.
type Building struct {
	Kind   BuildingKind `json:"type"`
	Height float64      `json:"height"`
	Width  float64      `json:"width"`
	Depth  float64      `json:"depth"`
	X      float64      `json:"x"`
	Z      float64      `json:"z"`
}

type PlayerState struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	RotationY  float64 `json:"rotationY"`
	Score      int     `json:"score"`
	Killstreak int     `json:"killstreak"`
	Kills      int     `json:"kills"`
	BestStreak int     `json:"bestStreak"`
	// Velocity is the position delta of the last movement update.
	Velocity Vector `json:"-"`
}

func (p PlayerState) Position() mgl64.Vec3 { return mgl64.Vec3{p.X, p.Y, p.Z} }

func (p *PlayerState) SetPosition(v mgl64.Vec3) {
	p.X, p.Y, p.Z = v[0], v[1], v[2]
}

// Center is the middle of the player's bounding box.
func (p PlayerState) Center() mgl64.Vec3 {
	return p.Position().Add(mgl64.Vec3{0, EntityHalfExtent, 0})
}

type NPCBehavior string

const (
	NPCWandering NPCBehavior = "WANDERING"
	NPCAttacking NPCBehavior = "ATTACKING"
)

type NPCState struct {
	ID        string      `json:"id"`
	X         float64     `json:"x"`
	Y         float64     `json:"y"`
	Z         float64     `json:"z"`
	RotationY float64     `json:"rotationY"`
	State     NPCBehavior `json:"state"`

	ShootCooldown int    `json:"-"`
	Roam          Vector `json:"-"`
	Velocity      Vector `json:"-"`
}

func (n NPCState) Position() mgl64.Vec3 { return mgl64.Vec3{n.X, n.Y, n.Z} }

func (n *NPCState) SetPosition(v mgl64.Vec3) {
	n.X, n.Y, n.Z = v[0], v[1], v[2]
}

func (n NPCState) Center() mgl64.Vec3 {
	return n.Position().Add(mgl64.Vec3{0, EntityHalfExtent, 0})
}

// Layout is the static part of the world. It is generated once and shared
// read-only afterwards.
type Layout struct {
	Buildings []Building         `json:"buildings"`
	Obstacles []physics.Obstacle `json:"obstacles"`
}

// Shot is the spawn data of a projectile.
type Shot struct {
	Position Vector `json:"position"`
	Velocity Vector `json:"velocity"`
}

func (s Shot) Finite() bool { return s.Position.Finite() && s.Velocity.Finite() }

type WorldState struct {
	Tick      uint64        `json:"tick"`
	Players   []PlayerState `json:"players"`
	NPCs      []NPCState    `json:"npcs"`
	Buildings int           `json:"buildings"`
	Obstacles int           `json:"obstacles"`
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
