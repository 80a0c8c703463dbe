package world

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"cityfps-server/internal/domain/stats"
	domainworld "cityfps-server/internal/domain/world"
	"cityfps-server/internal/platform/mq"
	"cityfps-server/internal/platform/observability"
)

const (
	npcKillScore     = 10
	streakAnnounceAt = 3
	scoreAnnounceMod = 50
	maxNameRunes     = 24
	maxChatRunes     = 200
	recordTimeout    = 3 * time.Second
	maxTickRate      = 1000
)

// SessionRecorder persists a finished play session.
type SessionRecorder interface {
	RecordSession(ctx context.Context, s stats.Session) error
}

type Options struct {
	TickRate         int
	Seed             int64
	BuildingAttempts int
	NPCCount         int
	NPCRespawnTicks  int
	SendBuffer       int
}

func DefaultOptions() Options {
	return Options{
		TickRate:         30,
		BuildingAttempts: 100,
		NPCCount:         35,
		SendBuffer:       256,
	}
}

type connState int

const (
	stateUnnamed connState = iota
	stateActive
	stateDisconnected
)

// Client is one websocket connection. Frames queued on Send are written by
// the connection's write pump; Send is never closed, Done is closed instead.
type Client struct {
	Conn *websocket.Conn
	ID   string
	Send chan []byte

	state     connState
	joinedAt  time.Time
	done      chan struct{}
	closeOnce sync.Once
}

func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.Conn != nil {
			_ = c.Conn.Close()
		}
	})
}

type npcShot struct {
	NPCID string
	Shot  domainworld.Shot
}

// Service owns the authoritative world. Connection handlers and the NPC tick
// both mutate the directory under mu; frames are encoded and queued outside
// it, and a full send buffer drops the frame instead of blocking.
type Service struct {
	logger   zerolog.Logger
	pub      mq.Publisher
	recorder SessionRecorder
	metrics  *observability.Metrics
	opts     Options
	behavior behavior

	mu       sync.RWMutex
	clients  map[*Client]struct{}
	dir      *domainworld.Directory
	layout   domainworld.Layout
	rand     *rand.Rand
	npcSeq   int
	respawns []int
	tick     uint64
	quit     chan struct{}
	started  bool
	sessions sync.WaitGroup
}

func NewService(logger zerolog.Logger, pub mq.Publisher, recorder SessionRecorder, metrics *observability.Metrics, opts Options) *Service {
	if opts.TickRate <= 0 {
		opts.TickRate = DefaultOptions().TickRate
	}
	if opts.TickRate > maxTickRate {
		opts.TickRate = maxTickRate
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = DefaultOptions().SendBuffer
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	s := &Service{
		logger:   logger.With().Str("component", "world").Logger(),
		pub:      pub,
		recorder: recorder,
		metrics:  metrics,
		opts:     opts,
		behavior: defaultBehavior(),
		clients:  make(map[*Client]struct{}),
		dir:      domainworld.NewDirectory(),
		layout:   generateLayout(rng, opts.BuildingAttempts),
		rand:     rng,
		quit:     make(chan struct{}),
	}
	for i := 0; i < opts.NPCCount; i++ {
		s.spawnNPCLocked()
	}
	s.metrics.SetLiveNPCs(s.dir.NPCCount())
	s.logger.Info().
		Int64("seed", seed).
		Int("buildings", len(s.layout.Buildings)).
		Int("obstacles", len(s.layout.Obstacles)).
		Int("npcs", s.dir.NPCCount()).
		Msg("world generated")
	return s
}

func (s *Service) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	interval := time.Second / time.Duration(s.opts.TickRate)
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Advance()
			case <-s.quit:
				return
			}
		}
	}()
}

// Stop halts the tick, disconnects every client and waits for their sessions
// to be saved.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.started {
		s.started = false
		close(s.quit)
	}
	clients := make([]*Client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		s.UnregisterClient(c)
	}
	s.sessions.Wait()
}

func (s *Service) RegisterClient(conn *websocket.Conn) *Client {
	c := &Client{
		Conn: conn,
		ID:   uuid.NewString(),
		Send: make(chan []byte, s.opts.SendBuffer),
		done: make(chan struct{}),
	}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	return c
}

// UnregisterClient moves the connection to its terminal state. A named
// connection loses its entity and everyone else is told it left.
func (s *Service) UnregisterClient(c *Client) {
	s.mu.Lock()
	if c.state == stateDisconnected {
		s.mu.Unlock()
		c.close()
		return
	}
	wasActive := c.state == stateActive
	c.state = stateDisconnected
	delete(s.clients, c)
	var player domainworld.PlayerState
	if wasActive {
		player, wasActive = s.dir.RemovePlayer(c.ID)
	}
	active := s.dir.PlayerCount()
	s.mu.Unlock()
	c.close()

	if !wasActive {
		return
	}
	s.metrics.SetActivePlayers(active)
	s.broadcast("", domainworld.PlayerDisconnected(c.ID))
	s.logger.Info().Str("player_id", c.ID).Str("name", player.Name).Int("score", player.Score).Msg("player left")
	s.publish("player.left", map[string]any{"player_id": c.ID, "name": player.Name, "score": player.Score})
	s.recordSession(player, c.joinedAt)
}

// SetName activates an unnamed connection: its player is created at the
// origin, it receives the directory and the world, and the others learn
// about it. An active connection is renamed instead.
func (s *Service) SetName(c *Client, name string) {
	name = clampRunes(strings.TrimSpace(name), maxNameRunes)
	if name == "" {
		return
	}

	s.mu.Lock()
	switch c.state {
	case stateDisconnected:
		s.mu.Unlock()
		return
	case stateActive:
		p, ok := s.dir.Player(c.ID)
		if !ok || p.Name == name {
			s.mu.Unlock()
			return
		}
		old := p.Name
		s.dir.SetName(c.ID, name)
		s.mu.Unlock()
		s.broadcast("", domainworld.SystemMessage(fmt.Sprintf("%s is now known as %s", old, name)))
		return
	}

	player := domainworld.PlayerState{ID: c.ID, Name: name}
	if !s.dir.AddPlayer(player) {
		s.mu.Unlock()
		return
	}
	c.state = stateActive
	c.joinedAt = time.Now()
	// The welcome frames are queued before the lock is released so that no
	// broadcast can reach this connection ahead of them.
	s.sendLocked(c, domainworld.CurrentPlayers(c.ID, s.dir.Players()))
	s.sendLocked(c, domainworld.WorldSetupMessage(s.layout, s.dir.NPCs()))
	active := s.dir.PlayerCount()
	s.mu.Unlock()

	s.metrics.SetActivePlayers(active)
	s.broadcast(c.ID, domainworld.NewPlayer(player))
	s.logger.Info().Str("player_id", c.ID).Str("name", name).Msg("player joined")
	s.publish("player.joined", map[string]any{"player_id": c.ID, "name": name})
}

// Move stores a client-reported transform and relays it to everyone else.
func (s *Service) Move(c *Client, pos domainworld.Vector, rotationY float64) {
	if !pos.Finite() || !finite(rotationY) {
		return
	}
	s.mu.Lock()
	if c.state != stateActive || !s.dir.ApplyMovement(c.ID, pos.Vec(), rotationY) {
		s.mu.Unlock()
		return
	}
	p, _ := s.dir.Player(c.ID)
	moved := *p
	s.mu.Unlock()

	s.broadcast(c.ID, domainworld.PlayerMoved(moved))
}

// Shoot relays a projectile spawn. The server does not simulate projectiles.
func (s *Service) Shoot(c *Client, shot domainworld.Shot) {
	if !shot.Finite() || !s.isActive(c) {
		return
	}
	s.broadcast(c.ID, domainworld.PlayerShot(c.ID, shot))
}

// ReportHit respawns the victim named by a client. Reports are trusted as
// sent: any active connection can name any victim.
func (s *Service) ReportHit(c *Client, victimID string) {
	s.mu.Lock()
	if c.state != stateActive || !s.dir.Respawn(victimID) {
		s.mu.Unlock()
		return
	}
	p, _ := s.dir.Player(victimID)
	s.broadcastLocked("", domainworld.PlayerMoved(*p))
	s.mu.Unlock()

	s.logger.Debug().Str("reporter_id", c.ID).Str("victim_id", victimID).Msg("player hit")
	s.publish("player.hit", map[string]any{"reporter_id": c.ID, "victim_id": victimID})
}

// ReportNPCKill removes the NPC and credits the reporter. A report for an NPC
// that is already gone is ignored, so only the first of two racing reports
// scores.
func (s *Service) ReportNPCKill(c *Client, npcID string) {
	s.mu.Lock()
	if c.state != stateActive {
		s.mu.Unlock()
		return
	}
	if _, ok := s.dir.RemoveNPC(npcID); !ok {
		s.mu.Unlock()
		return
	}
	s.dir.AddScore(c.ID, npcKillScore)
	s.dir.IncrementKillstreak(c.ID)
	p, _ := s.dir.Player(c.ID)
	killer := *p
	if s.opts.NPCRespawnTicks > 0 {
		s.respawns = append(s.respawns, s.opts.NPCRespawnTicks)
	}
	live := s.dir.NPCCount()
	s.mu.Unlock()

	s.metrics.SetLiveNPCs(live)
	if text := announcement(killer); text != "" {
		s.broadcast("", domainworld.SystemMessage(text))
	}
	s.broadcast("", domainworld.NPCWasKilled(npcID))
	s.logger.Debug().Str("player_id", c.ID).Str("npc_id", npcID).Int("score", killer.Score).Msg("npc killed")
	s.publish("npc.killed", map[string]any{
		"npc_id":     npcID,
		"player_id":  c.ID,
		"score":      killer.Score,
		"killstreak": killer.Killstreak,
	})
}

func (s *Service) Chat(c *Client, text string) {
	text = clampRunes(strings.TrimSpace(text), maxChatRunes)
	if text == "" {
		return
	}
	s.mu.RLock()
	p, ok := s.dir.Player(c.ID)
	active := c.state == stateActive
	var name string
	if ok {
		name = p.Name
	}
	s.mu.RUnlock()
	if !active || !ok {
		return
	}

	s.broadcast("", domainworld.NewChatMessage(name, text))
	s.publish("chat.message", map[string]any{"player_id": c.ID, "name": name, "message": text})
}

// Advance runs one server tick: NPCs act, their shots are relayed, and the
// NPC set is broadcast to every active connection.
func (s *Service) Advance() {
	start := time.Now()

	s.mu.Lock()
	s.tick++
	s.respawnNPCsLocked()
	s.dir.SettleVelocities()
	targets := s.targetsLocked()
	var shots []npcShot
	s.dir.ForEachNPC(func(n *domainworld.NPCState) {
		if shot := s.behavior.step(n, targets, s.layout.Obstacles); shot != nil {
			shots = append(shots, npcShot{NPCID: n.ID, Shot: *shot})
		}
	})
	// Tick frames are queued under the lock so a kill reported meanwhile
	// can never be followed by an update that still lists the NPC.
	for _, shot := range shots {
		s.broadcastLocked("", domainworld.PlayerShot(shot.NPCID, shot.Shot))
	}
	s.broadcastLocked("", domainworld.NPCUpdate(s.dir.NPCs()))
	live := s.dir.NPCCount()
	s.mu.Unlock()

	s.metrics.SetLiveNPCs(live)
	s.metrics.ObserveTick(time.Since(start))
}

func (s *Service) targetsLocked() []npcTarget {
	targets := make([]npcTarget, 0, s.dir.PlayerCount())
	s.dir.ForEachPlayer(func(p *domainworld.PlayerState) {
		targets = append(targets, npcTarget{ID: p.ID, Center: p.Center(), Velocity: p.Velocity.Vec()})
	})
	return targets
}

func (s *Service) respawnNPCsLocked() {
	pending := s.respawns[:0]
	for _, left := range s.respawns {
		left--
		if left > 0 {
			pending = append(pending, left)
			continue
		}
		s.spawnNPCLocked()
	}
	s.respawns = pending
}

// spawnNPCLocked adds an NPC under a fresh id; ids are never reused.
func (s *Service) spawnNPCLocked() {
	s.dir.AddNPC(spawnNPC(s.rand, npcID(s.npcSeq)))
	s.npcSeq++
}

func (s *Service) isActive(c *Client) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return c.state == stateActive
}

// broadcast queues msg for every active connection except skipID.
func (s *Service) broadcast(skipID string, msg domainworld.ServerMessage) {
	b, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error().Err(err).Str("type", msg.Type).Msg("marshal ws payload failed")
		return
	}

	s.mu.RLock()
	clients := make([]*Client, 0, len(s.clients))
	for c := range s.clients {
		if c.state != stateActive || c.ID == skipID {
			continue
		}
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	for _, c := range clients {
		s.deliver(c, b)
	}
}

// broadcastLocked is broadcast for callers already holding mu. Frames queued
// here keep their order relative to the state change made under the lock.
func (s *Service) broadcastLocked(skipID string, msg domainworld.ServerMessage) {
	b, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error().Err(err).Str("type", msg.Type).Msg("marshal ws payload failed")
		return
	}
	for c := range s.clients {
		if c.state != stateActive || c.ID == skipID {
			continue
		}
		s.deliver(c, b)
	}
}

func (s *Service) sendLocked(c *Client, msg domainworld.ServerMessage) {
	b, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error().Err(err).Str("type", msg.Type).Msg("marshal ws payload failed")
		return
	}
	s.deliver(c, b)
}

func (s *Service) deliver(c *Client, b []byte) {
	select {
	case c.Send <- b:
	default:
		s.metrics.IncDropped()
	}
}

func (s *Service) publish(subject string, payload any) {
	if err := mq.PublishJSON(context.Background(), s.pub, subject, payload); err != nil {
		s.logger.Warn().Err(err).Str("subject", subject).Msg("publish event failed")
	}
}

func (s *Service) recordSession(p domainworld.PlayerState, joinedAt time.Time) {
	if s.recorder == nil {
		return
	}
	session := stats.Session{
		PlayerID:   p.ID,
		Name:       p.Name,
		Score:      p.Score,
		Kills:      p.Kills,
		BestStreak: p.BestStreak,
		JoinedAt:   joinedAt,
		LeftAt:     time.Now(),
	}
	s.sessions.Add(1)
	go func() {
		defer s.sessions.Done()
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := s.recorder.RecordSession(ctx, session); err != nil {
			s.logger.Warn().Err(err).Str("player_id", p.ID).Msg("session save failed")
		}
	}()
}

func (s *Service) WorldState() domainworld.WorldState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domainworld.WorldState{
		Tick:      s.tick,
		Players:   s.dir.Players(),
		NPCs:      s.dir.NPCs(),
		Buildings: len(s.layout.Buildings),
		Obstacles: len(s.layout.Obstacles),
	}
}

func (s *Service) OnlinePlayers() []domainworld.PlayerState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dir.Players()
}

func announcement(p domainworld.PlayerState) string {
	if p.Killstreak >= streakAnnounceAt {
		return fmt.Sprintf("%s is on a %d kill streak!", p.Name, p.Killstreak)
	}
	if p.Score > 0 && p.Score%scoreAnnounceMod == 0 {
		return fmt.Sprintf("%s reached %d points!", p.Name, p.Score)
	}
	return ""
}

func clampRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
