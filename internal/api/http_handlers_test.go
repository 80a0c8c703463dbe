package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	worldapp "cityfps-server/internal/app/world"
	domainworld "cityfps-server/internal/domain/world"
	"cityfps-server/internal/platform/mq"
	"cityfps-server/internal/platform/observability"
)

func newTestServer(t *testing.T) (*httptest.Server, *worldapp.Service) {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	opts := worldapp.DefaultOptions()
	opts.Seed = 7
	opts.BuildingAttempts = 10
	opts.NPCCount = 3
	world := worldapp.NewService(zerolog.Nop(), mq.NewNoopPublisher(), nil, metrics, opts)

	h := NewHandler(zerolog.Nop(), world, nil, metrics, Options{Gatherer: reg})
	srv := httptest.NewServer(h.Router())
	t.Cleanup(func() {
		srv.Close()
		world.Stop()
	})
	return srv, world
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg domainworld.ClientMessage) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %s: %v", msg.Type, err)
	}
}

func read(t *testing.T, conn *websocket.Conn) domainworld.ServerMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg domainworld.ServerMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func expect(t *testing.T, conn *websocket.Conn, typ string) domainworld.ServerMessage {
	t.Helper()
	msg := read(t, conn)
	if msg.Type != typ {
		t.Fatalf("expected %s, got %s", typ, msg.Type)
	}
	return msg
}

// join names the connection and consumes its welcome frames.
func join(t *testing.T, conn *websocket.Conn, name string) (string, domainworld.ServerMessage) {
	t.Helper()
	send(t, conn, domainworld.SetName(name))
	current := expect(t, conn, domainworld.MsgCurrentPlayers)
	if current.SelfID == "" {
		t.Fatalf("expected selfId in currentPlayers")
	}
	setup := expect(t, conn, domainworld.MsgWorldSetup)
	return current.SelfID, setup
}

func TestMovementRelayedToOthersOnly(t *testing.T) {
	srv, _ := newTestServer(t)
	a := dial(t, srv)
	b := dial(t, srv)

	aID, _ := join(t, a, "A")
	bID, _ := join(t, b, "B")
	joined := expect(t, a, domainworld.MsgNewPlayer)
	if joined.Player == nil || joined.Player.ID != bID || joined.Player.Name != "B" {
		t.Fatalf("unexpected newPlayer payload: %+v", joined.Player)
	}

	send(t, a, domainworld.PlayerMovement(domainworld.Vector{X: 5, Y: 0, Z: 5}, 0.5))
	moved := expect(t, b, domainworld.MsgPlayerMoved)
	if moved.Player == nil || moved.Player.ID != aID {
		t.Fatalf("unexpected playerMoved payload: %+v", moved.Player)
	}
	if moved.Player.X != 5 || moved.Player.Y != 0 || moved.Player.Z != 5 {
		t.Fatalf("expected (5,0,5), got (%v,%v,%v)", moved.Player.X, moved.Player.Y, moved.Player.Z)
	}

	// Chat reaches everyone, so if A had received its own movement it would
	// arrive ahead of this line.
	send(t, b, domainworld.ChatMessage("hello"))
	chat := expect(t, a, domainworld.MsgNewChatMessage)
	if chat.SenderName != "B" || chat.Message != "hello" {
		t.Fatalf("unexpected chat: %+v", chat)
	}
	expect(t, b, domainworld.MsgNewChatMessage)
}

func TestDisconnectBroadcast(t *testing.T) {
	srv, world := newTestServer(t)
	a := dial(t, srv)
	b := dial(t, srv)

	aID, _ := join(t, a, "A")
	join(t, b, "B")
	expect(t, a, domainworld.MsgNewPlayer)

	_ = a.Close()
	left := expect(t, b, domainworld.MsgPlayerDisconnected)
	if left.PlayerID != aID {
		t.Fatalf("expected %s to leave, got %s", aID, left.PlayerID)
	}
	for _, p := range world.OnlinePlayers() {
		if p.ID == aID {
			t.Fatalf("disconnected player still in directory")
		}
	}
}

func TestNPCKillOverWire(t *testing.T) {
	srv, _ := newTestServer(t)
	a := dial(t, srv)

	_, setup := join(t, a, "A")
	if setup.World == nil || len(setup.World.NPCs) != 3 {
		t.Fatalf("expected 3 NPCs in worldSetup")
	}
	target := setup.World.NPCs[1].ID

	send(t, a, domainworld.ClientMessage{Type: "bogus"})
	if err := a.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	send(t, a, domainworld.NPCKilled(target))
	killed := expect(t, a, domainworld.MsgNPCWasKilled)
	if killed.NPCID != target {
		t.Fatalf("expected %s killed, got %s", target, killed.NPCID)
	}

	b := dial(t, srv)
	_, later := join(t, b, "B")
	if len(later.World.NPCs) != 2 {
		t.Fatalf("expected 2 NPCs after the kill, got %d", len(later.World.NPCs))
	}
	for _, n := range later.World.NPCs {
		if n.ID == target {
			t.Fatalf("killed NPC still present in worldSetup")
		}
	}
}

func TestHTTPEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	a := dial(t, srv)
	join(t, a, "A")

	res, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("healthz status %d", res.StatusCode)
	}

	res, err = http.Get(srv.URL + "/v1/leaderboard?limit=5")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	var board struct {
		Source string `json:"source"`
		Items  []struct {
			Name string `json:"name"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&board); err != nil {
		t.Fatalf("decode leaderboard: %v", err)
	}
	res.Body.Close()
	if board.Source != "live" || len(board.Items) != 1 || board.Items[0].Name != "A" {
		t.Fatalf("unexpected leaderboard: %+v", board)
	}

	res, err = http.Get(srv.URL + "/v1/leaderboard?limit=abc")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", res.StatusCode)
	}

	res, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	body, _ := io.ReadAll(res.Body)
	res.Body.Close()
	if !strings.Contains(string(body), "cityfps_active_players 1") {
		t.Fatalf("expected active player gauge in metrics output")
	}
}

func TestLiveLeaderboardOrdering(t *testing.T) {
	players := []domainworld.PlayerState{
		{ID: "1", Name: "zed", Score: 10},
		{ID: "2", Name: "amy", Score: 30},
		{ID: "3", Name: "bob", Score: 10},
	}
	got := liveLeaderboard(players, 2)
	if len(got) != 2 || got[0].Name != "amy" || got[1].Name != "bob" {
		t.Fatalf("unexpected order: %+v", got)
	}
}
