package service

import (
	"context"
	"fmt"

	"live_contest/internal/app/livestore"
	"live_contest/internal/common"
	"live_contest/internal/domain/model"
)

// LeaderboardService is the scoring contract over the per-contest ranking.
// Scores only grow; nothing here removes an entry.
type LeaderboardService struct {
	store *livestore.LeaderboardStore
}

func NewLeaderboardService(store *livestore.LeaderboardStore) *LeaderboardService {
	return &LeaderboardService{store: store}
}

func (s *LeaderboardService) Increment(ctx context.Context, contestID, userID string, delta int64) (int64, error) {
	if delta < 0 {
		return 0, fmt.Errorf("negative score delta %d: %w", delta, common.ErrValidation)
	}
	return s.store.Increment(ctx, contestID, userID, delta)
}

// Join creates a zero-score entry. It returns false if one already existed.
func (s *LeaderboardService) Join(ctx context.Context, contestID, userID string) (bool, error) {
	return s.store.JoinIfAbsent(ctx, contestID, userID)
}

// TopN lists the n best entries in descending score order. Equal scores are
// ordered by the sorted set itself (reverse lexicographic member id), not by
// who reached the score first.
func (s *LeaderboardService) TopN(ctx context.Context, contestID string, n int) ([]model.LeaderboardEntry, error) {
	return s.store.Top(ctx, contestID, n)
}

// ScoreOf returns the participant's score; joined is false if they never joined.
func (s *LeaderboardService) ScoreOf(ctx context.Context, contestID, userID string) (score int64, joined bool, err error) {
	return s.store.Score(ctx, contestID, userID)
}

// Standing is a leaderboard snapshot plus one participant's own score.
type Standing struct {
	ContestID   string                   `json:"contestId"`
	Leaderboard []model.LeaderboardEntry `json:"leaderboard"`
	Score       int64                    `json:"score"`
	Joined      bool                     `json:"joined"`
}

func (s *LeaderboardService) Standing(ctx context.Context, contestID, userID string, n int) (*Standing, error) {
	top, err := s.TopN(ctx, contestID, n)
	if err != nil {
		return nil, err
	}
	score, joined, err := s.ScoreOf(ctx, contestID, userID)
	if err != nil {
		return nil, err
	}
	return &Standing{ContestID: contestID, Leaderboard: top, Score: score, Joined: joined}, nil
}
