package world

import "cityfps-server/internal/physics"

// Client to server message types.
const (
	MsgSetName        = "setName"
	MsgPlayerMovement = "playerMovement"
	MsgShoot          = "shoot"
	MsgPlayerHit      = "playerHit"
	MsgNPCKilled      = "npcKilled"
	MsgChatMessage    = "chatMessage"
)

// Server to client message types.
const (
	MsgCurrentPlayers     = "currentPlayers"
	MsgWorldSetup         = "worldSetup"
	MsgNewPlayer          = "newPlayer"
	MsgPlayerMoved        = "playerMoved"
	MsgPlayerShot         = "playerShot"
	MsgNPCWasKilled       = "npcWasKilled"
	MsgNPCUpdate          = "npcUpdate"
	MsgNewChatMessage     = "newChatMessage"
	MsgPlayerDisconnected = "playerDisconnected"
)

// ClientMessage is the flat envelope of every client to server frame. Only
// the fields relevant to Type are set.
type ClientMessage struct {
	Type      string  `json:"type"`
	Name      string  `json:"name,omitempty"`
	X         float64 `json:"x,omitempty"`
	Y         float64 `json:"y,omitempty"`
	Z         float64 `json:"z,omitempty"`
	RotationY float64 `json:"rotationY,omitempty"`
	Position  *Vector `json:"position,omitempty"`
	Velocity  *Vector `json:"velocity,omitempty"`
	VictimID  string  `json:"victimId,omitempty"`
	NPCID     string  `json:"npcId,omitempty"`
	Message   string  `json:"message,omitempty"`
}

func (m ClientMessage) Shot() (Shot, bool) {
	if m.Position == nil || m.Velocity == nil {
		return Shot{}, false
	}
	s := Shot{Position: *m.Position, Velocity: *m.Velocity}
	return s, s.Finite()
}

func SetName(name string) ClientMessage {
	return ClientMessage{Type: MsgSetName, Name: name}
}

func PlayerMovement(pos Vector, rotationY float64) ClientMessage {
	return ClientMessage{Type: MsgPlayerMovement, X: pos.X, Y: pos.Y, Z: pos.Z, RotationY: rotationY}
}

func ShootMessage(s Shot) ClientMessage {
	return ClientMessage{Type: MsgShoot, Position: &s.Position, Velocity: &s.Velocity}
}

func PlayerHit(victimID string) ClientMessage {
	return ClientMessage{Type: MsgPlayerHit, VictimID: victimID}
}

func NPCKilled(npcID string) ClientMessage {
	return ClientMessage{Type: MsgNPCKilled, NPCID: npcID}
}

func ChatMessage(text string) ClientMessage {
	return ClientMessage{Type: MsgChatMessage, Message: text}
}

type WorldSetup struct {
	Buildings []Building         `json:"buildings"`
	Obstacles []physics.Obstacle `json:"obstacles"`
	NPCs      []NPCState         `json:"npcs"`
}

// ServerMessage is the flat envelope of every server to client frame.
type ServerMessage struct {
	Type       string                 `json:"type"`
	SelfID     string                 `json:"selfId,omitempty"`
	Players    map[string]PlayerState `json:"players,omitempty"`
	World      *WorldSetup            `json:"world,omitempty"`
	Player     *PlayerState           `json:"player,omitempty"`
	ShooterID  string                 `json:"shooterId,omitempty"`
	BulletData *Shot                  `json:"bulletData,omitempty"`
	NPCID      string                 `json:"npcId,omitempty"`
	NPCs       []NPCState             `json:"npcs,omitempty"`
	SenderName string                 `json:"senderName,omitempty"`
	Message    string                 `json:"message,omitempty"`
	System     bool                   `json:"system,omitempty"`
	PlayerID   string                 `json:"playerId,omitempty"`
}

func CurrentPlayers(selfID string, players []PlayerState) ServerMessage {
	byID := make(map[string]PlayerState, len(players))
	for _, p := range players {
		byID[p.ID] = p
	}
	return ServerMessage{Type: MsgCurrentPlayers, SelfID: selfID, Players: byID}
}

func WorldSetupMessage(layout Layout, npcs []NPCState) ServerMessage {
	return ServerMessage{Type: MsgWorldSetup, World: &WorldSetup{
		Buildings: layout.Buildings,
		Obstacles: layout.Obstacles,
		NPCs:      npcs,
	}}
}

func NewPlayer(p PlayerState) ServerMessage {
	return ServerMessage{Type: MsgNewPlayer, Player: &p}
}

func PlayerMoved(p PlayerState) ServerMessage {
	return ServerMessage{Type: MsgPlayerMoved, Player: &p}
}

func PlayerShot(shooterID string, s Shot) ServerMessage {
	return ServerMessage{Type: MsgPlayerShot, ShooterID: shooterID, BulletData: &s}
}

func NPCWasKilled(npcID string) ServerMessage {
	return ServerMessage{Type: MsgNPCWasKilled, NPCID: npcID}
}

func NPCUpdate(npcs []NPCState) ServerMessage {
	return ServerMessage{Type: MsgNPCUpdate, NPCs: npcs}
}

func NewChatMessage(senderName, text string) ServerMessage {
	return ServerMessage{Type: MsgNewChatMessage, SenderName: senderName, Message: text}
}

func SystemMessage(text string) ServerMessage {
	return ServerMessage{Type: MsgNewChatMessage, Message: text, System: true}
}

func PlayerDisconnected(id string) ServerMessage {
	return ServerMessage{Type: MsgPlayerDisconnected, PlayerID: id}
}
