package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.HTTPAddr)
	assert.Equal(t, 30, cfg.WorldTickRate)
	assert.Equal(t, 100, cfg.WorldBuildings)
	assert.Equal(t, 35, cfg.WorldNPCs)
	assert.Zero(t, cfg.NPCRespawnTicks)
	assert.Empty(t, cfg.PostgresURL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("WORLD_TICK_RATE", "20")
	t.Setenv("WORLD_SEED", "42")
	t.Setenv("LEADERBOARD_CACHE_TTL", "1m")
	t.Setenv("WORLD_NPCS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.WorldTickRate)
	assert.Equal(t, int64(42), cfg.WorldSeed)
	assert.Equal(t, time.Minute, cfg.LeaderboardTTL)
	assert.Equal(t, 35, cfg.WorldNPCs, "unparsable values fall back to the default")
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("WORLD_TICK_RATE", "0")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("WORLD_TICK_RATE", "2000000000")
	_, err = Load()
	require.Error(t, err, "a tick rate above the cap would make the ticker interval zero")

	t.Setenv("WORLD_TICK_RATE", "1000")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, MaxTickRate, cfg.WorldTickRate)
}

func TestLoadBot(t *testing.T) {
	t.Setenv("BOT_NAME", "drone")
	cfg, err := LoadBot()
	require.NoError(t, err)
	assert.Equal(t, "drone", cfg.Name)
	assert.Equal(t, 60, cfg.FrameRate)

	t.Setenv("BOT_FRAME_RATE", "-1")
	_, err = LoadBot()
	require.Error(t, err)
}
