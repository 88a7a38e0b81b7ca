package worker

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"live_contest/internal/app/livestore"
	"live_contest/internal/domain/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memorySink mimics INSERT ... ON CONFLICT DO NOTHING.
type memorySink struct {
	mu      sync.Mutex
	rows    map[string]model.Submission
	batches []int
	fail    error
	// reject fails the whole batch when it holds a matching row
	reject func(model.Submission) bool
}

func newMemorySink() *memorySink {
	return &memorySink{rows: map[string]model.Submission{}}
}

func (s *memorySink) InsertMany(_ context.Context, subs []model.Submission) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return 0, s.fail
	}
	for _, sub := range subs {
		if s.reject != nil && s.reject(sub) {
			return 0, errors.New("foreign key violation on question " + sub.QuestionID)
		}
	}
	s.batches = append(s.batches, len(subs))
	var n int64
	for _, sub := range subs {
		k := sub.ContestID + "/" + sub.UserID + "/" + sub.QuestionID
		if _, dup := s.rows[k]; dup {
			continue
		}
		s.rows[k] = sub
		n++
	}
	return n, nil
}

func (s *memorySink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

type flushFixture struct {
	mr     *miniredis.Miniredis
	keys   livestore.Keys
	subs   *livestore.SubmissionStore
	locker *livestore.Locker
	sink   *memorySink
	worker *FlushWorker
}

func newFlushFixture(t *testing.T, batchSize int) *flushFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	keys := livestore.NewKeys("test")
	subs := livestore.NewSubmissionStore(rdb, keys)
	locker := livestore.NewLocker(rdb, keys)
	sink := newMemorySink()
	log, _ := test.NewNullLogger()

	w := NewFlushWorker(subs, locker, keys, sink, FlushConfig{
		Interval:  20 * time.Millisecond,
		BatchSize: batchSize,
		LockName:  "flush_lock",
		LockTTL:   30 * time.Second,
	}, log)
	return &flushFixture{mr: mr, keys: keys, subs: subs, locker: locker, sink: sink, worker: w}
}

func (f *flushFixture) record(t *testing.T, contestID, userID, questionID, answer string) {
	t.Helper()
	created, _, err := f.subs.Record(context.Background(), contestID, userID, questionID, model.SubmissionRecord{
		Answer:      answer,
		IsCorrect:   answer == "A",
		SubmittedAt: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.True(t, created)
}

func (f *flushFixture) lockFree(t *testing.T) bool {
	t.Helper()
	lease, ok, err := f.locker.Acquire(context.Background(), "flush_lock", time.Second)
	require.NoError(t, err)
	if ok {
		_, err = f.locker.Release(context.Background(), lease)
		require.NoError(t, err)
	}
	return ok
}

func TestRunOnceNothingDirty(t *testing.T) {
	f := newFlushFixture(t, 10)

	res, err := f.worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, SkipUnchanged, res.SkipReason)
	assert.Zero(t, f.sink.count())
	assert.Empty(t, f.sink.batches)
	assert.True(t, f.lockFree(t))
}

func TestRunOnceFlushesInBatches(t *testing.T) {
	f := newFlushFixture(t, 2)
	f.record(t, "C1", "U1", "q1", "A")
	f.record(t, "C1", "U1", "q2", "B")
	f.record(t, "C1", "U2", "q1", "C")

	res, err := f.worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.EqualValues(t, 3, res.Version)
	assert.Equal(t, 2, res.Keys)
	assert.Equal(t, 3, res.Records)
	assert.EqualValues(t, 3, res.Inserted)
	assert.Equal(t, 2, res.Batches)
	assert.Equal(t, 2, res.Cleared)
	assert.Equal(t, []int{2, 1}, f.sink.batches)

	row := f.sink.rows["C1/U1/q1"]
	assert.Equal(t, "A", row.SelectedOption)
	assert.True(t, row.IsCorrect)

	dirty, err := f.subs.DirtyKeys(context.Background())
	require.NoError(t, err)
	assert.Empty(t, dirty)

	checkpoint, err := f.subs.FlushedVersion(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, checkpoint)
	assert.True(t, f.lockFree(t))
}

func TestRunOnceTwiceIsIdempotent(t *testing.T) {
	f := newFlushFixture(t, 10)
	f.record(t, "C1", "U1", "q1", "A")
	f.record(t, "C1", "U1", "q2", "D")

	_, err := f.worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, f.sink.count())

	res, err := f.worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, 2, f.sink.count())

	// force a re-run over the same records: duplicates are skipped
	f.mr.Set(f.keys.FlushedVersion(), "0")
	_, err = f.mr.SAdd(f.keys.DirtySet(), f.keys.Submissions("C1", "U1"))
	require.NoError(t, err)

	res, err = f.worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 2, res.Records)
	assert.Zero(t, res.Inserted)
	assert.Equal(t, 2, f.sink.count())
}

func TestRunOnceSkipsWhenLocked(t *testing.T) {
	f := newFlushFixture(t, 10)
	f.record(t, "C1", "U1", "q1", "A")

	lease, ok, err := f.locker.Acquire(context.Background(), "flush_lock", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	res, err := f.worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, SkipLocked, res.SkipReason)
	assert.Zero(t, f.sink.count())

	// the skipped cycle must not have released someone else's lease
	released, err := f.locker.Release(context.Background(), lease)
	require.NoError(t, err)
	assert.True(t, released)
}

func TestRunOnceFailureKeepsDirtySet(t *testing.T) {
	f := newFlushFixture(t, 10)
	f.record(t, "C1", "U1", "q1", "A")
	f.sink.fail = errors.New("connection reset")

	_, err := f.worker.RunOnce(context.Background())
	assert.ErrorContains(t, err, "connection reset")
	assert.True(t, f.lockFree(t))

	dirty, err := f.subs.DirtyKeys(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{f.keys.Submissions("C1", "U1")}, dirty)
	checkpoint, err := f.subs.FlushedVersion(context.Background())
	require.NoError(t, err)
	assert.Zero(t, checkpoint)

	f.sink.fail = nil
	res, err := f.worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Inserted)
}

func TestFailedBatchDoesNotBlockOthers(t *testing.T) {
	f := newFlushFixture(t, 1)
	f.record(t, "C1", "U0", "ghost", "A")
	for i := 1; i <= 4; i++ {
		f.record(t, "C1", "U"+strconv.Itoa(i), "q1", "A")
	}
	f.sink.reject = func(sub model.Submission) bool { return sub.QuestionID == "ghost" }
	ctx := context.Background()

	res, err := f.worker.RunOnce(ctx)
	assert.ErrorContains(t, err, "foreign key violation")
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 4, res.Batches)
	assert.EqualValues(t, 4, res.Inserted)
	assert.Equal(t, 4, res.Cleared)
	assert.Equal(t, 4, f.sink.count())
	assert.True(t, f.lockFree(t))

	dirty, err := f.subs.DirtyKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{f.keys.Submissions("C1", "U0")}, dirty)
	checkpoint, err := f.subs.FlushedVersion(ctx)
	require.NoError(t, err)
	assert.Zero(t, checkpoint)

	// the failing key is retried on every cycle until it goes through
	res, err = f.worker.RunOnce(ctx)
	require.Error(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 1, res.Keys)

	f.sink.reject = nil
	res, err = f.worker.RunOnce(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Inserted)
	assert.Equal(t, 5, f.sink.count())
	checkpoint, err = f.subs.FlushedVersion(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 5, checkpoint)
}

func TestRecordsArrivingAfterFlushAreNotLost(t *testing.T) {
	f := newFlushFixture(t, 10)
	f.record(t, "C1", "U1", "q1", "A")

	_, err := f.worker.RunOnce(context.Background())
	require.NoError(t, err)

	f.record(t, "C1", "U1", "q2", "B")
	res, err := f.worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Records)
	assert.EqualValues(t, 1, res.Inserted)
	assert.Equal(t, 2, f.sink.count())
}

func TestStartFlushesOnInterval(t *testing.T) {
	f := newFlushFixture(t, 10)
	for i := 0; i < 5; i++ {
		f.record(t, "C1", "U"+strconv.Itoa(i), "q1", "A")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.worker.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return f.sink.count() == 5 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("flush worker did not stop after cancellation")
	}
}
