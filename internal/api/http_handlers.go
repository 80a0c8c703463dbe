package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	statsapp "cityfps-server/internal/app/stats"
	worldapp "cityfps-server/internal/app/world"
	"cityfps-server/internal/domain/stats"
	domainworld "cityfps-server/internal/domain/world"
	"cityfps-server/internal/platform/observability"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 20 * time.Second
	writeWait    = 10 * time.Second
	readyTimeout = 2 * time.Second
)

// Leaderboard ranks recorded sessions.
type Leaderboard interface {
	Top(ctx context.Context, limit int) ([]stats.LeaderboardEntry, error)
}

type Options struct {
	CorsOrigin      string
	MaxMessageBytes int64
	// Gatherer backs /metrics; the default registry is used when nil.
	Gatherer prometheus.Gatherer
	// ReadyChecks are run by /readyz, keyed by dependency name.
	ReadyChecks map[string]func(context.Context) error
}

type Handler struct {
	logger      zerolog.Logger
	world       *worldapp.Service
	leaderboard Leaderboard
	metrics     *observability.Metrics
	opts        Options
	upgrader    websocket.Upgrader
}

func NewHandler(logger zerolog.Logger, world *worldapp.Service, leaderboard Leaderboard, metrics *observability.Metrics, opts Options) *Handler {
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = 64 << 10
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	return &Handler{
		logger:      logger.With().Str("component", "api").Logger(),
		world:       world,
		leaderboard: leaderboard,
		metrics:     metrics,
		opts:        opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.cors)

	r.Get("/ws", h.worldWS)

	r.Group(func(rest chi.Router) {
		rest.Use(middleware.Timeout(20 * time.Second))
		rest.Get("/healthz", h.health)
		rest.Get("/readyz", h.ready)
		rest.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.opts.Gatherer, promhttp.HandlerOpts{}))

		rest.Route("/v1", func(v1 chi.Router) {
			v1.Get("/world/state", h.worldState)
			v1.Get("/world/players", h.worldPlayers)
			v1.Get("/leaderboard", h.topPlayers)
		})
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()
	failed := map[string]string{}
	for name, check := range h.opts.ReadyChecks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded", "failed": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (h *Handler) worldState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.world.WorldState())
}

func (h *Handler) worldPlayers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"players": h.world.OnlinePlayers()})
}

// topPlayers serves the recorded leaderboard, or ranks the players online
// right now when no session store is configured.
func (h *Handler) topPlayers(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid limit"})
			return
		}
		limit = n
	}
	limit = statsapp.NormalizeLimit(limit)

	if h.leaderboard == nil {
		writeJSON(w, http.StatusOK, map[string]any{"source": "live", "items": liveLeaderboard(h.world.OnlinePlayers(), limit)})
		return
	}
	entries, err := h.leaderboard.Top(r.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("leaderboard query failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"source": "history", "items": entries})
}

func liveLeaderboard(players []domainworld.PlayerState, limit int) []stats.LeaderboardEntry {
	sort.SliceStable(players, func(i, j int) bool {
		if players[i].Score != players[j].Score {
			return players[i].Score > players[j].Score
		}
		return players[i].Name < players[j].Name
	})
	if len(players) > limit {
		players = players[:limit]
	}
	out := make([]stats.LeaderboardEntry, 0, len(players))
	for _, p := range players {
		out = append(out, stats.LeaderboardEntry{Name: p.Name, Score: p.Score, Kills: p.Kills, BestStreak: p.BestStreak})
	}
	return out
}

func (h *Handler) worldWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := h.world.RegisterClient(conn)
	h.logger.Debug().Str("client_id", client.ID).Str("remote", r.RemoteAddr).Msg("websocket connected")
	go h.writePump(client)
	h.readPump(client)
}

// readPump handles one frame at a time until the transport fails. Frames
// that do not decode, or carry an unknown type, are dropped.
func (h *Handler) readPump(client *worldapp.Client) {
	defer h.world.UnregisterClient(client)
	if client.Conn == nil {
		return
	}
	client.Conn.SetReadLimit(h.opts.MaxMessageBytes)
	_ = client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		_ = client.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		kind, data, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				h.logger.Debug().Err(err).Str("client_id", client.ID).Msg("websocket read failed")
			}
			return
		}
		_ = client.Conn.SetReadDeadline(time.Now().Add(pongWait))
		if kind != websocket.TextMessage {
			continue
		}
		var msg domainworld.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.metrics.IncMessage("malformed")
			h.logger.Debug().Err(err).Str("client_id", client.ID).Msg("dropping malformed frame")
			continue
		}
		h.dispatch(client, msg)
	}
}

func (h *Handler) dispatch(client *worldapp.Client, msg domainworld.ClientMessage) {
	switch msg.Type {
	case domainworld.MsgSetName:
		h.world.SetName(client, msg.Name)
	case domainworld.MsgPlayerMovement:
		h.world.Move(client, domainworld.Vector{X: msg.X, Y: msg.Y, Z: msg.Z}, msg.RotationY)
	case domainworld.MsgShoot:
		shot, ok := msg.Shot()
		if !ok {
			h.metrics.IncMessage("malformed")
			return
		}
		h.world.Shoot(client, shot)
	case domainworld.MsgPlayerHit:
		h.world.ReportHit(client, msg.VictimID)
	case domainworld.MsgNPCKilled:
		h.world.ReportNPCKill(client, msg.NPCID)
	case domainworld.MsgChatMessage:
		h.world.Chat(client, msg.Message)
	default:
		h.metrics.IncMessage("unknown")
		h.logger.Debug().Str("client_id", client.ID).Str("type", msg.Type).Msg("dropping unknown message type")
		return
	}
	h.metrics.IncMessage(msg.Type)
}

func (h *Handler) writePump(client *worldapp.Client) {
	if client.Conn == nil {
		return
	}
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = client.Conn.Close()
	}()
	for {
		select {
		case msg := <-client.Send:
			_ = client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-client.Done():
			_ = client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = client.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			_ = client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) cors(next http.Handler) http.Handler {
	origin := h.opts.CorsOrigin
	if origin == "" {
		origin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
