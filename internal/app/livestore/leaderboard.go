package livestore

import (
	"context"
	"errors"
	"fmt"

	"live_contest/internal/domain/model"

	"github.com/redis/go-redis/v9"
)

// LeaderboardStore wraps the per-contest sorted set. Scores are whole points
// stored as floats; they are truncated back to int64 on read.
type LeaderboardStore struct {
	rdb  redis.Cmdable
	keys Keys
}

func NewLeaderboardStore(rdb redis.Cmdable, keys Keys) *LeaderboardStore {
	return &LeaderboardStore{rdb: rdb, keys: keys}
}

// Increment adds delta to the member's score, creating it at delta if absent.
func (s *LeaderboardStore) Increment(ctx context.Context, contestID, userID string, delta int64) (int64, error) {
	score, err := s.rdb.ZIncrBy(ctx, s.keys.Leaderboard(contestID), float64(delta), userID).Result()
	if err != nil {
		return 0, fmt.Errorf("incrementing score of %s in contest %s: %w", userID, contestID, err)
	}
	return int64(score), nil
}

// JoinIfAbsent adds the member with score 0 unless it already exists. It
// reports whether this call added it.
func (s *LeaderboardStore) JoinIfAbsent(ctx context.Context, contestID, userID string) (bool, error) {
	added, err := s.rdb.ZAddNX(ctx, s.keys.Leaderboard(contestID), redis.Z{Score: 0, Member: userID}).Result()
	if err != nil {
		return false, fmt.Errorf("joining %s to contest %s: %w", userID, contestID, err)
	}
	return added == 1, nil
}

// Score returns the member's score and whether the member exists.
func (s *LeaderboardStore) Score(ctx context.Context, contestID, userID string) (int64, bool, error) {
	score, err := s.rdb.ZScore(ctx, s.keys.Leaderboard(contestID), userID).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("reading score of %s in contest %s: %w", userID, contestID, err)
	}
	return int64(score), true, nil
}

// Top returns up to n entries, highest score first. Ties follow the store's
// reverse lexicographic member order.
func (s *LeaderboardStore) Top(ctx context.Context, contestID string, n int) ([]model.LeaderboardEntry, error) {
	if n <= 0 {
		return []model.LeaderboardEntry{}, nil
	}
	zs, err := s.rdb.ZRevRangeWithScores(ctx, s.keys.Leaderboard(contestID), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading top %d of contest %s: %w", n, contestID, err)
	}
	entries := make([]model.LeaderboardEntry, 0, len(zs))
	for i, z := range zs {
		member, _ := z.Member.(string)
		entries = append(entries, model.LeaderboardEntry{
			Rank:   i + 1,
			UserID: member,
			Score:  int64(z.Score),
		})
	}
	return entries, nil
}
