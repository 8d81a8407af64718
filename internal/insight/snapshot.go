package insight

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const rankKey = "classtrack:leaderboard:ranks"

// RankSnapshot persists leaderboard ranks in redis so other processes can
// read a student's standing without recomputing the whole board.
type RankSnapshot struct {
	rdb *redis.Client
}

// NewRankSnapshot wraps a redis client for rank persistence.
func NewRankSnapshot(rdb *redis.Client) *RankSnapshot {
	return &RankSnapshot{rdb: rdb}
}

// Save replaces the stored ranks with the given leaderboard's.
func (s *RankSnapshot) Save(ctx context.Context, lb Leaderboard) error {
	fields := make(map[string]any, len(lb.rank))
	for id, pos := range lb.rank {
		fields[id] = pos
	}
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, rankKey)
	if len(fields) > 0 {
		pipe.HSet(ctx, rankKey, fields)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Rank returns a student's stored 1-based rank, or 0 when not ranked.
func (s *RankSnapshot) Rank(ctx context.Context, studentID string) (int, error) {
	val, err := s.rdb.HGet(ctx, rankKey, studentID).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(val)
}
