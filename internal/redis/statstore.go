package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/teamtrack/internal/config"
	"github.com/teamtrack/internal/domain"
)

// StatStore is the Redis-backed aggregate store: one hash per player holding
// the current statistics record, plus one set per player tracking which
// match ids have already been counted toward the matches total.
type StatStore struct {
	client *redis.Client
	logger *slog.Logger
}

// NewStatStore creates a new Redis stat store
func NewStatStore(cfg *config.RedisConfig, logger *slog.Logger) (*StatStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &StatStore{
		client: client,
		logger: logger,
	}, nil
}

// Close closes the Redis connection
func (s *StatStore) Close() error {
	return s.client.Close()
}

// Client returns the underlying Redis client
func (s *StatStore) Client() *redis.Client {
	return s.client
}

// statsKey returns the Redis key for a player's statistics hash
func (s *StatStore) statsKey(playerID string) string {
	return fmt.Sprintf("player:%s:stats", playerID)
}

// matchesKey returns the Redis key for a player's counted-match set
func (s *StatStore) matchesKey(playerID string) string {
	return fmt.Sprintf("player:%s:matches", playerID)
}

// Get retrieves a player's statistics record. Returns
// domain.ErrPlayerNotFound when no record exists.
func (s *StatStore) Get(ctx context.Context, playerID string) (*domain.PlayerStatistics, error) {
	result, err := s.client.HGetAll(ctx, s.statsKey(playerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting player stats: %w", err)
	}
	if len(result) == 0 {
		return nil, domain.ErrPlayerNotFound
	}
	return parseStats(playerID, result)
}

// Upsert writes a player's full statistics record.
func (s *StatStore) Upsert(ctx context.Context, stats *domain.PlayerStatistics) error {
	err := s.client.HSet(ctx, s.statsKey(stats.PlayerID),
		"player_id", stats.PlayerID,
		"team_id", stats.TeamID,
		"scheduled", stats.Scheduled,
		"attended", stats.Attended,
		"missed", stats.Missed,
		"goals", stats.Goals,
		"assists", stats.Assists,
		"yellow_cards", stats.YellowCards,
		"red_cards", stats.RedCards,
		"clean_sheets", stats.CleanSheets,
		"matches", stats.Matches,
		"minutes_played", stats.MinutesPlayed,
		"weight", strconv.FormatFloat(stats.Weight, 'f', -1, 64),
		"updated_at", stats.UpdatedAt.Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		return fmt.Errorf("upserting player stats: %w", err)
	}
	return nil
}

// Exists checks whether a statistics record exists for the player.
func (s *StatStore) Exists(ctx context.Context, playerID string) (bool, error) {
	exists, err := s.client.Exists(ctx, s.statsKey(playerID)).Result()
	if err != nil {
		return false, fmt.Errorf("checking existence: %w", err)
	}
	return exists > 0, nil
}

// SetWeight writes only the weight field. The record must already exist;
// weight is never created implicitly by the event path.
func (s *StatStore) SetWeight(ctx context.Context, playerID string, weight float64) error {
	exists, err := s.Exists(ctx, playerID)
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrPlayerNotFound
	}
	err = s.client.HSet(ctx, s.statsKey(playerID),
		"weight", strconv.FormatFloat(weight, 'f', -1, 64),
	).Err()
	if err != nil {
		return fmt.Errorf("setting weight: %w", err)
	}
	return nil
}

// GetWeight reads only the weight field, defaulting to 0 when the record or
// field is absent.
func (s *StatStore) GetWeight(ctx context.Context, playerID string) (float64, error) {
	val, err := s.client.HGet(ctx, s.statsKey(playerID), "weight").Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("getting weight: %w", err)
	}
	weight, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing weight: %w", err)
	}
	return weight, nil
}

// AddMatchPlayed records a match id in the player's counted-match set.
// Returns whether the id was newly counted and the new distinct total.
func (s *StatStore) AddMatchPlayed(ctx context.Context, playerID, matchID string) (bool, int, error) {
	pipe := s.client.Pipeline()
	addCmd := pipe.SAdd(ctx, s.matchesKey(playerID), matchID)
	cardCmd := pipe.SCard(ctx, s.matchesKey(playerID))
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("adding match played: %w", err)
	}
	return addCmd.Val() > 0, int(cardCmd.Val()), nil
}

// ReplaceMatchesPlayed overwrites the player's counted-match set with the
// given match ids. Used by recalculation to resynchronize the set with the
// event history.
func (s *StatStore) ReplaceMatchesPlayed(ctx context.Context, playerID string, matchIDs []string) error {
	key := s.matchesKey(playerID)
	pipe := s.client.Pipeline()
	pipe.Del(ctx, key)
	if len(matchIDs) > 0 {
		members := make([]interface{}, len(matchIDs))
		for i, id := range matchIDs {
			members[i] = id
		}
		pipe.SAdd(ctx, key, members...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("replacing matches played: %w", err)
	}
	return nil
}

// MatchesPlayed returns the distinct counted-match total for a player.
func (s *StatStore) MatchesPlayed(ctx context.Context, playerID string) (int, error) {
	count, err := s.client.SCard(ctx, s.matchesKey(playerID)).Result()
	if err != nil {
		return 0, fmt.Errorf("counting matches played: %w", err)
	}
	return int(count), nil
}

func parseStats(playerID string, fields map[string]string) (*domain.PlayerStatistics, error) {
	stats := &domain.PlayerStatistics{PlayerID: playerID}
	stats.TeamID = fields["team_id"]

	ints := []struct {
		field string
		dst   *int
	}{
		{"scheduled", &stats.Scheduled},
		{"attended", &stats.Attended},
		{"missed", &stats.Missed},
		{"goals", &stats.Goals},
		{"assists", &stats.Assists},
		{"yellow_cards", &stats.YellowCards},
		{"red_cards", &stats.RedCards},
		{"clean_sheets", &stats.CleanSheets},
		{"matches", &stats.Matches},
		{"minutes_played", &stats.MinutesPlayed},
	}
	for _, f := range ints {
		if raw, ok := fields[f.field]; ok && raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("parsing %s: %w", f.field, err)
			}
			*f.dst = v
		}
	}

	if raw, ok := fields["weight"]; ok && raw != "" {
		w, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing weight: %w", err)
		}
		stats.Weight = w
	}
	if raw, ok := fields["updated_at"]; ok && raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		stats.UpdatedAt = t
	}
	return stats, nil
}
