package main

import (
	"context"
	"encoding/json"
	"math/rand"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	clientapp "cityfps-server/internal/app/client"
	domainworld "cityfps-server/internal/domain/world"
	"cityfps-server/internal/platform/config"
	"cityfps-server/internal/platform/observability"
)

const (
	inboundBuffer  = 256
	outboundBuffer = 64
	writeWait      = 5 * time.Second
	steerEvery     = 90
	statusEvery    = 10 * time.Second
)

type logEffects struct {
	logger zerolog.Logger
}

func (e logEffects) Impact(at mgl64.Vec3) {
	e.logger.Debug().Float64("x", at[0]).Float64("y", at[1]).Float64("z", at[2]).Msg("impact")
}

func (e logEffects) DamageFlash() {
	e.logger.Info().Msg("hit and respawned")
}

func main() {
	cfg, err := config.LoadBot()
	if err != nil {
		panic(err)
	}
	logger := observability.NewLogger(cfg.Env, cfg.LogLevel).With().Str("component", "bot").Str("name", cfg.Name).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.ServerURL, nil)
	if err != nil {
		logger.Fatal().Err(err).Str("url", cfg.ServerURL).Msg("dial failed")
	}
	defer conn.Close()

	inbound := make(chan domainworld.ServerMessage, inboundBuffer)
	outbound := make(chan domainworld.ClientMessage, outboundBuffer)
	closed := make(chan struct{})
	go readLoop(conn, inbound, closed, logger)
	go writeLoop(conn, outbound, closed, logger)

	sim := clientapp.NewSimulation(func(m domainworld.ClientMessage) {
		select {
		case outbound <- m:
		default:
			logger.Warn().Str("type", m.Type).Msg("outbound queue full; dropping frame")
		}
	}, logEffects{logger: logger})
	sim.Join(cfg.Name)

	run(ctx, cfg, sim, inbound, closed, logger)
}

// run is the bot's only simulation loop. Inbound frames are applied between
// frames; nothing here waits on the network.
func run(ctx context.Context, cfg config.BotConfig, sim *clientapp.Simulation, inbound <-chan domainworld.ServerMessage, closed <-chan struct{}, logger zerolog.Logger) {
	frame := time.NewTicker(time.Second / time.Duration(cfg.FrameRate))
	defer frame.Stop()
	status := time.NewTicker(statusEvery)
	defer status.Stop()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	var (
		in        clientapp.Input
		frames    int
		lastFired time.Time
	)
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("stopping")
			return
		case <-closed:
			logger.Warn().Msg("connection closed by server")
			return
		case <-status.C:
			pos := sim.Position()
			logger.Info().
				Int("score", sim.Self().Score).
				Int("remote_players", len(sim.RemotePlayers())).
				Int("npcs", len(sim.NPCs())).
				Float64("x", pos[0]).
				Float64("z", pos[2]).
				Msg("status")
		case now := <-frame.C:
			applyInbound(sim, inbound, logger)
			if frames%steerEvery == 0 {
				in = steer(rng)
			}
			in.Fire = cfg.FireEvery > 0 && now.Sub(lastFired) >= cfg.FireEvery
			if in.Fire {
				lastFired = now
			}
			sim.Step(in)
			in.LookDX, in.LookDY = 0, 0
			frames++
		}
	}
}

func applyInbound(sim *clientapp.Simulation, inbound <-chan domainworld.ServerMessage, logger zerolog.Logger) {
	for {
		select {
		case msg := <-inbound:
			sim.HandleServerMessage(msg)
			if msg.Type == domainworld.MsgNewChatMessage {
				logger.Info().Str("from", msg.SenderName).Bool("system", msg.System).Msg(msg.Message)
			}
		default:
			return
		}
	}
}

// steer picks a new held-key set and a small turn.
func steer(rng *rand.Rand) clientapp.Input {
	return clientapp.Input{
		Forward: rng.Float64() < 0.8,
		Left:    rng.Float64() < 0.2,
		Right:   rng.Float64() < 0.2,
		Jump:    rng.Float64() < 0.1,
		LookDX:  (rng.Float64() - 0.5) * 400,
	}
}

func readLoop(conn *websocket.Conn, inbound chan<- domainworld.ServerMessage, closed chan<- struct{}, logger zerolog.Logger) {
	defer close(closed)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			logger.Debug().Err(err).Msg("read loop ended")
			return
		}
		var msg domainworld.ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Debug().Err(err).Msg("dropping malformed frame")
			continue
		}
		select {
		case inbound <- msg:
		default:
			logger.Warn().Str("type", msg.Type).Msg("inbound queue full; dropping frame")
		}
	}
}

func writeLoop(conn *websocket.Conn, outbound <-chan domainworld.ClientMessage, closed <-chan struct{}, logger zerolog.Logger) {
	for {
		select {
		case <-closed:
			return
		case msg := <-outbound:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				logger.Debug().Err(err).Msg("write failed")
				return
			}
		}
	}
}
