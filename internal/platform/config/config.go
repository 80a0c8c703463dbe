package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Env             string
	LogLevel        string
	HTTPAddr        string
	CorsOrigin      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	PostgresURL      string
	PostgresMaxConns int
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	LeaderboardTTL   time.Duration
	NATSURL          string
	NATSPrefix       string

	WorldTickRate    int
	WorldSeed        int64
	WorldBuildings   int
	WorldNPCs        int
	NPCRespawnTicks  int
	WSMaxMessageSize int64
	WSSendBuffer     int
}

func Load() (Config, error) {
	cfg := Config{
		Env:              getEnv("APP_ENV", "dev"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		HTTPAddr:         getEnv("HTTP_ADDR", ":3000"),
		CorsOrigin:       getEnv("CORS_ORIGIN", "*"),
		ReadTimeout:      getDuration("HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:     getDuration("HTTP_WRITE_TIMEOUT", 15*time.Second),
		ShutdownTimeout:  getDuration("HTTP_SHUTDOWN_TIMEOUT", 20*time.Second),
		PostgresURL:      getEnv("POSTGRES_URL", ""),
		PostgresMaxConns: getInt("POSTGRES_MAX_CONNS", 10),
		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getInt("REDIS_DB", 0),
		LeaderboardTTL:   getDuration("LEADERBOARD_CACHE_TTL", 15*time.Second),
		NATSURL:          getEnv("NATS_URL", ""),
		NATSPrefix:       getEnv("NATS_SUBJECT_PREFIX", "cityfps"),
		WorldTickRate:    getInt("WORLD_TICK_RATE", 30),
		WorldSeed:        getInt64("WORLD_SEED", 0),
		WorldBuildings:   getInt("WORLD_BUILDINGS", 100),
		WorldNPCs:        getInt("WORLD_NPCS", 35),
		NPCRespawnTicks:  getInt("NPC_RESPAWN_TICKS", 0),
		WSMaxMessageSize: getInt64("WS_MAX_MESSAGE_BYTES", 64<<10),
		WSSendBuffer:     getInt("WS_SEND_BUFFER", 256),
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// MaxTickRate bounds WORLD_TICK_RATE so the tick interval stays positive.
const MaxTickRate = 1000

func (c Config) validate() error {
	if c.WorldTickRate <= 0 || c.WorldTickRate > MaxTickRate {
		return fmt.Errorf("WORLD_TICK_RATE must be between 1 and %d", MaxTickRate)
	}
	if c.WorldBuildings < 0 {
		return fmt.Errorf("WORLD_BUILDINGS must be >= 0")
	}
	if c.WorldNPCs < 0 {
		return fmt.Errorf("WORLD_NPCS must be >= 0")
	}
	if c.NPCRespawnTicks < 0 {
		return fmt.Errorf("NPC_RESPAWN_TICKS must be >= 0")
	}
	if c.WSMaxMessageSize <= 0 {
		return fmt.Errorf("WS_MAX_MESSAGE_BYTES must be > 0")
	}
	if c.WSSendBuffer <= 0 {
		return fmt.Errorf("WS_SEND_BUFFER must be > 0")
	}
	return nil
}

// BotConfig drives the headless client in cmd/bot.
type BotConfig struct {
	Env       string
	LogLevel  string
	ServerURL string
	Name      string
	FrameRate int
	FireEvery time.Duration
}

func LoadBot() (BotConfig, error) {
	cfg := BotConfig{
		Env:       getEnv("APP_ENV", "dev"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		ServerURL: getEnv("BOT_SERVER_URL", "ws://localhost:3000/ws"),
		Name:      getEnv("BOT_NAME", "bot"),
		FrameRate: getInt("BOT_FRAME_RATE", 60),
		FireEvery: getDuration("BOT_FIRE_EVERY", 2*time.Second),
	}
	if cfg.ServerURL == "" {
		return BotConfig{}, fmt.Errorf("BOT_SERVER_URL must not be empty")
	}
	if cfg.FrameRate <= 0 {
		return BotConfig{}, fmt.Errorf("BOT_FRAME_RATE must be > 0")
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getInt64(key string, def int64) int64 {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func getDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
