// Package client is the player-side half of the game: it mirrors the server
// directory, integrates the local player's movement and physics, and owns the
// projectiles it predicts. It performs no I/O; frames go out through an
// Uplink and visual feedback through Effects.
package client

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	domainworld "cityfps-server/internal/domain/world"
	"cityfps-server/internal/physics"
)

const (
	moveSpeed        = 0.08
	gravity          = -0.015
	jumpVelocity     = 0.3
	lookSensitivity  = 0.002
	scopedLookFactor = 0.5
	eyeHeight        = 1.6
	bulletSpeed      = 2.0
	chatLogSize      = 50
)

var maxPitch = math.Pi / 2.1

// Input is the held-key and pointer state sampled for one frame.
type Input struct {
	Forward  bool
	Back     bool
	Left     bool
	Right    bool
	Jump     bool
	Fire     bool
	Scoped   bool
	Chatting bool
	LookDX   float64
	LookDY   float64
}

// Uplink delivers a frame to the server.
type Uplink func(domainworld.ClientMessage)

// Effects receives the visual feedback the simulation triggers.
type Effects interface {
	Impact(at mgl64.Vec3)
	DamageFlash()
}

type noopEffects struct{}

func (noopEffects) Impact(mgl64.Vec3) {}
func (noopEffects) DamageFlash()      {}

// ChatLine is one received chat entry.
type ChatLine struct {
	Sender string
	Text   string
	System bool
}

// Simulation is driven from a single loop: HandleServerMessage for every
// inbound frame and Step once per frame. It is not safe for concurrent use.
type Simulation struct {
	uplink  Uplink
	effects Effects

	ready     bool
	self      domainworld.PlayerState
	yaw       float64
	pitch     float64
	vy        float64
	grounded  bool
	lastSent  mgl64.Vec3
	lastYaw   float64
	mirror    *domainworld.Directory
	obstacles []physics.Obstacle
	bullets   []*projectile
	chat      []ChatLine
}

func NewSimulation(uplink Uplink, effects Effects) *Simulation {
	if uplink == nil {
		uplink = func(domainworld.ClientMessage) {}
	}
	if effects == nil {
		effects = noopEffects{}
	}
	return &Simulation{
		uplink:   uplink,
		effects:  effects,
		grounded: true,
		mirror:   domainworld.NewDirectory(),
	}
}

// Join asks the server to activate this connection under name.
func (s *Simulation) Join(name string) { s.uplink(domainworld.SetName(name)) }

func (s *Simulation) Say(text string) { s.uplink(domainworld.ChatMessage(text)) }

// HandleServerMessage applies one inbound frame to the local mirror.
func (s *Simulation) HandleServerMessage(msg domainworld.ServerMessage) {
	switch msg.Type {
	case domainworld.MsgCurrentPlayers:
		s.ready = true
		s.self.ID = msg.SelfID
		for _, p := range msg.Players {
			if p.ID == msg.SelfID {
				s.self = p
				s.lastSent = p.Position()
				s.lastYaw = p.RotationY
				s.yaw = p.RotationY
				continue
			}
			s.mirror.AddPlayer(p)
		}
	case domainworld.MsgWorldSetup:
		if msg.World == nil {
			return
		}
		s.obstacles = msg.World.Obstacles
		s.syncNPCs(msg.World.NPCs)
	case domainworld.MsgNewPlayer:
		if msg.Player != nil && msg.Player.ID != s.self.ID {
			s.mirror.AddPlayer(*msg.Player)
		}
	case domainworld.MsgPlayerMoved:
		if msg.Player == nil {
			return
		}
		s.applyMoved(*msg.Player)
	case domainworld.MsgPlayerShot:
		if msg.BulletData == nil || msg.ShooterID == "" {
			return
		}
		s.spawn(msg.ShooterID, msg.BulletData.Position.Vec(), msg.BulletData.Velocity.Vec())
	case domainworld.MsgNPCWasKilled:
		s.mirror.RemoveNPC(msg.NPCID)
	case domainworld.MsgNPCUpdate:
		s.syncNPCs(msg.NPCs)
	case domainworld.MsgNewChatMessage:
		s.chat = append(s.chat, ChatLine{Sender: msg.SenderName, Text: msg.Message, System: msg.System})
		if len(s.chat) > chatLogSize {
			s.chat = s.chat[len(s.chat)-chatLogSize:]
		}
	case domainworld.MsgPlayerDisconnected:
		s.mirror.RemovePlayer(msg.PlayerID)
	}
}

// applyMoved overwrites a remote transform. Receiving our own id means the
// server respawned us. Unknown ids are ignored: only newPlayer and
// currentPlayers introduce players, so a late move cannot revive one that
// already disconnected.
func (s *Simulation) applyMoved(p domainworld.PlayerState) {
	if p.ID == s.self.ID {
		s.self.SetPosition(p.Position())
		s.self.Velocity = domainworld.Vector{}
		s.self.Killstreak = p.Killstreak
		s.self.Score = p.Score
		s.vy = 0
		s.lastSent = p.Position()
		s.effects.DamageFlash()
		return
	}
	remote, ok := s.mirror.Player(p.ID)
	if !ok {
		return
	}
	remote.SetPosition(p.Position())
	remote.RotationY = p.RotationY
	remote.Name = p.Name
	remote.Score = p.Score
	remote.Killstreak = p.Killstreak
}

// syncNPCs makes the mirror match the broadcast NPC set.
func (s *Simulation) syncNPCs(npcs []domainworld.NPCState) {
	seen := make(map[string]struct{}, len(npcs))
	for _, n := range npcs {
		seen[n.ID] = struct{}{}
		local, ok := s.mirror.NPC(n.ID)
		if !ok {
			s.mirror.AddNPC(n)
			continue
		}
		local.SetPosition(n.Position())
		local.RotationY = n.RotationY
		local.State = n.State
	}
	var gone []string
	s.mirror.ForEachNPC(func(n *domainworld.NPCState) {
		if _, ok := seen[n.ID]; !ok {
			gone = append(gone, n.ID)
		}
	})
	for _, id := range gone {
		s.mirror.RemoveNPC(id)
	}
}

// Step runs one frame: look, move, collide, advance projectiles, fire, and
// report the new transform if it changed.
func (s *Simulation) Step(in Input) {
	if !s.ready {
		return
	}
	prev := s.self.Position()

	if !in.Chatting {
		s.look(in)
	}
	pos := prev.Add(s.horizontalMove(in))
	if in.Jump && s.grounded && !in.Chatting {
		s.vy = jumpVelocity
		s.grounded = false
	}
	s.vy += gravity
	pos[1] += s.vy
	if pos[1] <= 0 {
		pos[1] = 0
		s.vy = 0
		s.grounded = true
	}
	pos = physics.ResolveHorizontal(prev, pos, domainworld.EntityHalf, s.obstacles)
	s.self.SetPosition(pos)
	s.self.Velocity = domainworld.VectorOf(pos.Sub(prev))
	s.self.RotationY = s.yaw

	s.advanceProjectiles()
	if in.Fire && !in.Chatting {
		s.Fire()
	}

	if pos != s.lastSent || s.yaw != s.lastYaw {
		s.lastSent, s.lastYaw = pos, s.yaw
		s.uplink(domainworld.PlayerMovement(domainworld.VectorOf(pos), s.yaw))
	}
}

func (s *Simulation) look(in Input) {
	sens := lookSensitivity
	if in.Scoped {
		sens *= scopedLookFactor
	}
	s.yaw -= in.LookDX * sens
	s.pitch -= in.LookDY * sens
	s.pitch = math.Max(-maxPitch, math.Min(maxPitch, s.pitch))
}

// horizontalMove projects the held keys onto the yaw-only camera basis.
func (s *Simulation) horizontalMove(in Input) mgl64.Vec3 {
	var move mgl64.Vec3
	if in.Chatting {
		return move
	}
	forward := mgl64.Vec3{-math.Sin(s.yaw), 0, -math.Cos(s.yaw)}
	left := mgl64.Vec3{0, 1, 0}.Cross(forward)
	if in.Forward {
		move = move.Add(forward.Mul(moveSpeed))
	}
	if in.Back {
		move = move.Sub(forward.Mul(moveSpeed))
	}
	if in.Left {
		move = move.Add(left.Mul(moveSpeed))
	}
	if in.Right {
		move = move.Sub(left.Mul(moveSpeed))
	}
	return move
}

// Fire spawns a local projectile from the eye along the view direction and
// tells the server about it.
func (s *Simulation) Fire() {
	if !s.ready {
		return
	}
	eye := s.self.Position().Add(mgl64.Vec3{0, eyeHeight, 0})
	vel := s.viewDirection().Mul(bulletSpeed)
	s.spawn(s.self.ID, eye, vel)
	s.uplink(domainworld.ShootMessage(domainworld.Shot{
		Position: domainworld.VectorOf(eye),
		Velocity: domainworld.VectorOf(vel),
	}))
}

func (s *Simulation) viewDirection() mgl64.Vec3 {
	cp := math.Cos(s.pitch)
	return mgl64.Vec3{-math.Sin(s.yaw) * cp, math.Sin(s.pitch), -math.Cos(s.yaw) * cp}
}

func (s *Simulation) Ready() bool { return s.ready }

func (s *Simulation) SelfID() string { return s.self.ID }

func (s *Simulation) Self() domainworld.PlayerState { return s.self }

func (s *Simulation) Position() mgl64.Vec3 { return s.self.Position() }

func (s *Simulation) Grounded() bool { return s.grounded }

func (s *Simulation) Yaw() float64 { return s.yaw }

func (s *Simulation) Pitch() float64 { return s.pitch }

func (s *Simulation) Obstacles() int { return len(s.obstacles) }

func (s *Simulation) Projectiles() int { return len(s.bullets) }

func (s *Simulation) RemotePlayers() []domainworld.PlayerState { return s.mirror.Players() }

func (s *Simulation) NPCs() []domainworld.NPCState { return s.mirror.NPCs() }

func (s *Simulation) ChatLog() []ChatLine {
	out := make([]ChatLine, len(s.chat))
	copy(out, s.chat)
	return out
}
