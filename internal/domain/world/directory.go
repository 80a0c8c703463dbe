package world

import (
	"sort"

	"github.com/go-gl/mathgl/mgl64"
)

// Directory maps entity ids to player and NPC state. The server owns the
// authoritative copy; clients keep a partial mirror. A Directory is not safe
// for concurrent use: its owner serializes every call.
type Directory struct {
	players  map[string]*PlayerState
	moved    map[string]struct{}
	npcs     map[string]*NPCState
	npcOrder []string
}

func NewDirectory() *Directory {
	return &Directory{
		players: make(map[string]*PlayerState),
		moved:   make(map[string]struct{}),
		npcs:    make(map[string]*NPCState),
	}
}

// AddPlayer inserts p. It refuses to replace an entity with the same id.
func (d *Directory) AddPlayer(p PlayerState) bool {
	if _, exists := d.players[p.ID]; exists {
		return false
	}
	d.players[p.ID] = &p
	return true
}

func (d *Directory) RemovePlayer(id string) (PlayerState, bool) {
	p, ok := d.players[id]
	if !ok {
		return PlayerState{}, false
	}
	delete(d.players, id)
	delete(d.moved, id)
	return *p, true
}

func (d *Directory) Player(id string) (*PlayerState, bool) {
	p, ok := d.players[id]
	return p, ok
}

func (d *Directory) ForEachPlayer(fn func(*PlayerState)) {
	for _, p := range d.players {
		fn(p)
	}
}

// Players returns a copy of every player ordered by id.
func (d *Directory) Players() []PlayerState {
	out := make([]PlayerState, 0, len(d.players))
	for _, p := range d.players {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (d *Directory) PlayerCount() int { return len(d.players) }

func (d *Directory) SetName(id, name string) bool {
	p, ok := d.players[id]
	if !ok {
		return false
	}
	p.Name = name
	return true
}

// ApplyMovement moves a player and records the delta as its velocity.
func (d *Directory) ApplyMovement(id string, pos mgl64.Vec3, rotationY float64) bool {
	p, ok := d.players[id]
	if !ok {
		return false
	}
	p.Velocity = VectorOf(pos.Sub(p.Position()))
	p.SetPosition(pos)
	p.RotationY = rotationY
	d.moved[id] = struct{}{}
	return true
}

// SettleVelocities closes a tick. Players that sent no movement since the
// previous call are standing still, so their velocity drops to zero.
func (d *Directory) SettleVelocities() {
	for id, p := range d.players {
		if _, ok := d.moved[id]; !ok {
			p.Velocity = Vector{}
		}
	}
	clear(d.moved)
}

// Respawn puts a player back at the world origin and clears its killstreak.
func (d *Directory) Respawn(id string) bool {
	p, ok := d.players[id]
	if !ok {
		return false
	}
	p.SetPosition(mgl64.Vec3{})
	p.Velocity = Vector{}
	p.Killstreak = 0
	return true
}

func (d *Directory) AddScore(id string, delta int) (int, bool) {
	p, ok := d.players[id]
	if !ok {
		return 0, false
	}
	p.Score += delta
	return p.Score, true
}

// IncrementKillstreak counts one kill for the player, extending its streak.
func (d *Directory) IncrementKillstreak(id string) (int, bool) {
	p, ok := d.players[id]
	if !ok {
		return 0, false
	}
	p.Killstreak++
	p.Kills++
	if p.Killstreak > p.BestStreak {
		p.BestStreak = p.Killstreak
	}
	return p.Killstreak, true
}

func (d *Directory) ResetKillstreak(id string) bool {
	p, ok := d.players[id]
	if !ok {
		return false
	}
	p.Killstreak = 0
	return true
}

func (d *Directory) AddNPC(n NPCState) bool {
	if _, exists := d.npcs[n.ID]; exists {
		return false
	}
	d.npcs[n.ID] = &n
	d.npcOrder = append(d.npcOrder, n.ID)
	return true
}

func (d *Directory) RemoveNPC(id string) (NPCState, bool) {
	n, ok := d.npcs[id]
	if !ok {
		return NPCState{}, false
	}
	delete(d.npcs, id)
	for i, v := range d.npcOrder {
		if v == id {
			d.npcOrder = append(d.npcOrder[:i], d.npcOrder[i+1:]...)
			break
		}
	}
	return *n, true
}

func (d *Directory) NPC(id string) (*NPCState, bool) {
	n, ok := d.npcs[id]
	return n, ok
}

// ForEachNPC visits NPCs in insertion order.
func (d *Directory) ForEachNPC(fn func(*NPCState)) {
	for _, id := range d.npcOrder {
		fn(d.npcs[id])
	}
}

func (d *Directory) NPCs() []NPCState {
	out := make([]NPCState, 0, len(d.npcOrder))
	for _, id := range d.npcOrder {
		out = append(out, *d.npcs[id])
	}
	return out
}

func (d *Directory) NPCCount() int { return len(d.npcs) }
