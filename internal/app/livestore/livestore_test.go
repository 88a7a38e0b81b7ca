package livestore

import (
	"context"
	"testing"
	"time"

	"live_contest/internal/domain/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestKeys(t *testing.T) {
	k := NewKeys("Live Contest")
	assert.Equal(t, "live-contest", k.Prefix())
	assert.Equal(t, "live-contest:contest:c1:leaderboard", k.Leaderboard("c1"))
	assert.Equal(t, "live-contest:lock:flush_lock", k.Lock("flush_lock"))

	contest, user, ok := k.ParseSubmissions(k.Submissions("c1", "u-9"))
	require.True(t, ok)
	assert.Equal(t, "c1", contest)
	assert.Equal(t, "u-9", user)

	_, _, ok = k.ParseSubmissions("other:submission:c1:u1")
	assert.False(t, ok)
	_, _, ok = k.ParseSubmissions(k.Prefix() + ":submission:c1")
	assert.False(t, ok)

	assert.Equal(t, "live", NewKeys("  ").Prefix())
}

func TestAnswerKeyStore(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()
	store := NewAnswerKeyStore(rdb, NewKeys("test"))

	got, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, got)

	key := &model.AnswerKey{ContestID: "c1", Questions: []model.Question{
		{ID: "q1", ContestID: "c1", SrNo: 1, Question: "2+2?", CorrectOption: "A", Points: 10},
	}}
	created, err := store.PutIfAbsent(ctx, key)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = store.PutIfAbsent(ctx, &model.AnswerKey{ContestID: "c1"})
	require.NoError(t, err)
	assert.False(t, created)

	exists, err := store.Exists(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, exists)

	got, err = store.Get(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, key.Questions, got.Questions)
}

func TestRecordIsCreatedOnce(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()
	keys := NewKeys("test")
	store := NewSubmissionStore(rdb, keys)

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	created, score, err := store.Record(ctx, "c1", "u1", "q1", model.SubmissionRecord{Answer: "A", PointsAwarded: 10, IsCorrect: true, SubmittedAt: at})
	require.NoError(t, err)
	assert.True(t, created)
	assert.EqualValues(t, 10, score)

	created, score, err = store.Record(ctx, "c1", "u1", "q1", model.SubmissionRecord{Answer: "B", PointsAwarded: 10, SubmittedAt: at})
	require.NoError(t, err)
	assert.False(t, created)
	assert.EqualValues(t, 10, score)

	created, score, err = store.Record(ctx, "c1", "u1", "q2", model.SubmissionRecord{Answer: "C", SubmittedAt: at})
	require.NoError(t, err)
	assert.True(t, created)
	assert.EqualValues(t, 10, score)

	v, err := store.Version(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, v)

	records, err := store.Records(ctx, keys.Submissions("c1", "u1"))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "A", records["q1"].Answer)
	assert.True(t, records["q1"].SubmittedAt.Equal(at))

	exists, err := store.Exists(ctx, "c1", "u1", "q1")
	require.NoError(t, err)
	assert.True(t, exists)

	answered, err := store.Answered(ctx, "c1", "u1")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"q1": true, "q2": true}, answered)
}

func TestRecordWritesNothingWhenCreditFails(t *testing.T) {
	mr, rdb := newTestRedis(t)
	ctx := context.Background()
	keys := NewKeys("test")
	store := NewSubmissionStore(rdb, keys)
	board := NewLeaderboardStore(rdb, keys)

	require.NoError(t, mr.Set(keys.Leaderboard("c1"), "not a zset"))
	_, _, err := store.Record(ctx, "c1", "u1", "q1", model.SubmissionRecord{Answer: "A", PointsAwarded: 10, IsCorrect: true})
	require.Error(t, err)

	exists, err := store.Exists(ctx, "c1", "u1", "q1")
	require.NoError(t, err)
	assert.False(t, exists)
	v, err := store.Version(ctx)
	require.NoError(t, err)
	assert.Zero(t, v)
	dirty, err := store.DirtyKeys(ctx)
	require.NoError(t, err)
	assert.Empty(t, dirty)

	mr.Del(keys.Leaderboard("c1"))
	created, score, err := store.Record(ctx, "c1", "u1", "q1", model.SubmissionRecord{Answer: "A", PointsAwarded: 10, IsCorrect: true})
	require.NoError(t, err)
	assert.True(t, created)
	assert.EqualValues(t, 10, score)

	got, joined, err := board.Score(ctx, "c1", "u1")
	require.NoError(t, err)
	assert.True(t, joined)
	assert.EqualValues(t, 10, got)
}

func TestDirtyKeysAndClear(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()
	keys := NewKeys("test")
	store := NewSubmissionStore(rdb, keys)

	for _, q := range []string{"q1", "q2"} {
		_, _, err := store.Record(ctx, "c1", "u1", q, model.SubmissionRecord{Answer: "A"})
		require.NoError(t, err)
	}
	_, _, err := store.Record(ctx, "c1", "u2", "q1", model.SubmissionRecord{Answer: "C"})
	require.NoError(t, err)

	dirty, err := store.DirtyKeys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{keys.Submissions("c1", "u1"), keys.Submissions("c1", "u2")}, dirty)

	// a record added after the read keeps the hash dirty
	_, _, err = store.Record(ctx, "c1", "u1", "q3", model.SubmissionRecord{Answer: "D"})
	require.NoError(t, err)
	cleared, err := store.ClearDirty(ctx, keys.Submissions("c1", "u1"), 2)
	require.NoError(t, err)
	assert.False(t, cleared)

	cleared, err = store.ClearDirty(ctx, keys.Submissions("c1", "u1"), 3)
	require.NoError(t, err)
	assert.True(t, cleared)

	dirty, err = store.DirtyKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{keys.Submissions("c1", "u2")}, dirty)
}

func TestFlushedVersionOnlyAdvances(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()
	store := NewSubmissionStore(rdb, NewKeys("test"))

	v, err := store.FlushedVersion(ctx)
	require.NoError(t, err)
	assert.Zero(t, v)

	require.NoError(t, store.AdvanceFlushedVersion(ctx, 5))
	require.NoError(t, store.AdvanceFlushedVersion(ctx, 3))

	v, err = store.FlushedVersion(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 5, v)
}

func TestLeaderboardStore(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()
	lb := NewLeaderboardStore(rdb, NewKeys("test"))

	_, ok, err := lb.Score(ctx, "c1", "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	added, err := lb.JoinIfAbsent(ctx, "c1", "u1")
	require.NoError(t, err)
	assert.True(t, added)

	score, err := lb.Increment(ctx, "c1", "u1", 10)
	require.NoError(t, err)
	assert.EqualValues(t, 10, score)

	added, err = lb.JoinIfAbsent(ctx, "c1", "u1")
	require.NoError(t, err)
	assert.False(t, added)

	score, ok, err = lb.Score(ctx, "c1", "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.EqualValues(t, 10, score)

	_, err = lb.Increment(ctx, "c1", "u2", 25)
	require.NoError(t, err)
	_, err = lb.JoinIfAbsent(ctx, "c1", "u3")
	require.NoError(t, err)

	top, err := lb.Top(ctx, "c1", 2)
	require.NoError(t, err)
	assert.Equal(t, []model.LeaderboardEntry{
		{Rank: 1, UserID: "u2", Score: 25},
		{Rank: 2, UserID: "u1", Score: 10},
	}, top)

	top, err = lb.Top(ctx, "c1", 0)
	require.NoError(t, err)
	assert.Empty(t, top)
}

func TestLockerExcludesAndExpires(t *testing.T) {
	mr, rdb := newTestRedis(t)
	ctx := context.Background()
	locker := NewLocker(rdb, NewKeys("test"))

	first, ok, err := locker.Acquire(ctx, "flush", 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.Acquire(ctx, "flush", 30*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(31 * time.Second)

	second, ok, err := locker.Acquire(ctx, "flush", 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	// the expired holder must not delete the new holder's lease
	released, err := locker.Release(ctx, first)
	require.NoError(t, err)
	assert.False(t, released)

	released, err = locker.Release(ctx, second)
	require.NoError(t, err)
	assert.True(t, released)

	released, err = locker.Release(ctx, Lease{})
	require.NoError(t, err)
	assert.False(t, released)
}
