package stats

import "time"

// Session is one player's stay on the server, from naming to disconnect.
type Session struct {
	PlayerID   string    `json:"player_id"`
	Name       string    `json:"name"`
	Score      int       `json:"score"`
	Kills      int       `json:"kills"`
	BestStreak int       `json:"best_streak"`
	JoinedAt   time.Time `json:"joined_at"`
	LeftAt     time.Time `json:"left_at"`
}

type LeaderboardEntry struct {
	Name       string `json:"name"`
	Score      int    `json:"score"`
	Kills      int    `json:"kills"`
	BestStreak int    `json:"best_streak"`
}
