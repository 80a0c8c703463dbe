package client

import (
	"github.com/go-gl/mathgl/mgl64"

	domainworld "cityfps-server/internal/domain/world"
	"cityfps-server/internal/physics"
)

const (
	projectileLife = 100
	projectileHalf = 0.1
	hitRadius      = 1.0
)

type projectile struct {
	pos       mgl64.Vec3
	vel       mgl64.Vec3
	shooterID string
	life      int
}

func (s *Simulation) spawn(shooterID string, pos, vel mgl64.Vec3) {
	s.bullets = append(s.bullets, &projectile{pos: pos, vel: vel, shooterID: shooterID, life: projectileLife})
}

// advanceProjectiles moves every live projectile one tick and retires the
// ones that hit geometry, hit an entity, or ran out of life.
func (s *Simulation) advanceProjectiles() {
	live := s.bullets[:0]
	for _, p := range s.bullets {
		p.pos = p.pos.Add(p.vel)
		p.life--
		if s.resolveProjectile(p) || p.life <= 0 {
			continue
		}
		live = append(live, p)
	}
	for i := len(live); i < len(s.bullets); i++ {
		s.bullets[i] = nil
	}
	s.bullets = live
}

// resolveProjectile reports whether p stopped this tick. Geometry is checked
// first. Our own projectiles are then checked against every other entity and
// everyone else's only against us, so each impact is reported by exactly one
// machine. Hits are reported to the server, never applied locally.
func (s *Simulation) resolveProjectile(p *projectile) bool {
	box := physics.Box{Center: p.pos, Half: mgl64.Vec3{projectileHalf, projectileHalf, projectileHalf}}
	for i := range s.obstacles {
		if physics.Intersects(box, s.obstacles[i].Box) {
			s.effects.Impact(p.pos)
			return true
		}
	}

	if p.shooterID != s.self.ID {
		if within(p.pos, s.self.Center()) {
			s.uplink(domainworld.PlayerHit(s.self.ID))
			return true
		}
		return false
	}

	for _, remote := range s.mirror.Players() {
		if within(p.pos, remote.Center()) {
			s.uplink(domainworld.PlayerHit(remote.ID))
			return true
		}
	}
	var victim string
	s.mirror.ForEachNPC(func(n *domainworld.NPCState) {
		if victim == "" && within(p.pos, n.Center()) {
			victim = n.ID
		}
	})
	if victim != "" {
		s.uplink(domainworld.NPCKilled(victim))
		return true
	}
	return false
}

func within(a, b mgl64.Vec3) bool {
	return a.Sub(b).Len() < hitRadius
}
