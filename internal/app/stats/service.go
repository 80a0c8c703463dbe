package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"cityfps-server/internal/domain/stats"
	"cityfps-server/internal/platform/mq"
)

var ErrInvalidSession = errors.New("invalid session")

const (
	defaultLeaderboardSize = 10
	maxLeaderboardSize     = 100
	leaderboardKeyPrefix   = "leaderboard:top:"
)

type Service struct {
	db       *pgxpool.Pool
	cache    *redis.Client
	cacheTTL time.Duration
	pub      mq.Publisher
}

func NewService(db *pgxpool.Pool, cache *redis.Client, cacheTTL time.Duration, pub mq.Publisher) *Service {
	return &Service{db: db, cache: cache, cacheTTL: cacheTTL, pub: pub}
}

// RecordSession stores a finished session and drops cached leaderboards.
func (s *Service) RecordSession(ctx context.Context, session stats.Session) error {
	if err := validateSession(session); err != nil {
		return err
	}
	_, err := s.db.Exec(ctx, `
INSERT INTO player_sessions (player_id, name, score, kills, best_streak, joined_at, left_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`, session.PlayerID, session.Name, session.Score, session.Kills, session.BestStreak, session.JoinedAt, session.LeftAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	s.invalidateLeaderboards(ctx)
	_ = mq.PublishJSON(ctx, s.pub, "stats.session_recorded", session)
	return nil
}

// Top returns the best recorded score per name, highest first.
func (s *Service) Top(ctx context.Context, limit int) ([]stats.LeaderboardEntry, error) {
	limit = NormalizeLimit(limit)
	key := cacheKey(limit)
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, key).Result()
		if err == nil {
			var entries []stats.LeaderboardEntry
			if uErr := json.Unmarshal([]byte(cached), &entries); uErr == nil {
				return entries, nil
			}
		}
	}

	rows, err := s.db.Query(ctx, `
SELECT name, MAX(score), SUM(kills), MAX(best_streak)
FROM player_sessions
GROUP BY name
ORDER BY MAX(score) DESC, name ASC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	entries := make([]stats.LeaderboardEntry, 0, limit)
	for rows.Next() {
		var e stats.LeaderboardEntry
		if err := rows.Scan(&e.Name, &e.Score, &e.Kills, &e.BestStreak); err != nil {
			return nil, fmt.Errorf("scan leaderboard: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leaderboard: %w", err)
	}
	if s.cache != nil {
		if b, err := json.Marshal(entries); err == nil {
			_ = s.cache.Set(ctx, key, b, s.cacheTTL).Err()
		}
	}
	return entries, nil
}

func (s *Service) invalidateLeaderboards(ctx context.Context) {
	if s.cache == nil {
		return
	}
	iter := s.cache.Scan(ctx, 0, leaderboardKeyPrefix+"*", 100).Iterator()
	keys := make([]string, 0, 8)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if len(keys) > 0 {
		_ = s.cache.Del(ctx, keys...).Err()
	}
}

// NormalizeLimit clamps a requested leaderboard size.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultLeaderboardSize
	}
	if limit > maxLeaderboardSize {
		return maxLeaderboardSize
	}
	return limit
}

func cacheKey(limit int) string {
	return leaderboardKeyPrefix + strconv.Itoa(limit)
}

func validateSession(s stats.Session) error {
	if strings.TrimSpace(s.Name) == "" || s.PlayerID == "" {
		return ErrInvalidSession
	}
	if s.LeftAt.Before(s.JoinedAt) {
		return ErrInvalidSession
	}
	return nil
}
