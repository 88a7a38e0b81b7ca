package livestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"live_contest/internal/domain/model"

	"github.com/redis/go-redis/v9"
)

// recordScript creates a submission field only if it is absent and, in the
// same step, credits the participant, marks the owning hash dirty and bumps
// the version counter. Key types are checked before any write so a failure
// leaves nothing half applied. Returns {created, score}.
//
// KEYS[1] submission hash, KEYS[2] dirty set, KEYS[3] version counter,
// KEYS[4] leaderboard
// ARGV[1] question id, ARGV[2] encoded record, ARGV[3] points, ARGV[4] user id
var recordScript = redis.NewScript(`
local function holds(key, want)
    local t = redis.call("TYPE", key)
    if type(t) == "table" then t = t.ok end
    return t == "none" or t == want
end
if not (holds(KEYS[1], "hash") and holds(KEYS[2], "set") and holds(KEYS[3], "string") and holds(KEYS[4], "zset")) then
    return redis.error_reply("WRONGTYPE Operation against a key holding the wrong kind of value")
end
local version = redis.call("GET", KEYS[3])
if version and not tonumber(version) then
    return redis.error_reply("ERR submission version is not an integer")
end
if redis.call("HEXISTS", KEYS[1], ARGV[1]) == 1 then
    return {0, redis.call("ZSCORE", KEYS[4], ARGV[4]) or "0"}
end
local score
if tonumber(ARGV[3]) > 0 then
    score = redis.call("ZINCRBY", KEYS[4], ARGV[3], ARGV[4])
else
    score = redis.call("ZSCORE", KEYS[4], ARGV[4]) or "0"
end
redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
redis.call("SADD", KEYS[2], KEYS[1])
redis.call("INCR", KEYS[3])
return {1, score}
`)

// clearDirtyScript drops a hash from the dirty set only if it still holds
// exactly the number of fields that were flushed. Fields are append-only.
//
// KEYS[1] dirty set, KEYS[2] submission hash; ARGV[1] flushed field count
var clearDirtyScript = redis.NewScript(`
if redis.call("HLEN", KEYS[2]) == tonumber(ARGV[1]) then
    return redis.call("SREM", KEYS[1], KEYS[2])
end
return 0
`)

// advanceScript moves the flush checkpoint forward, never backward.
//
// KEYS[1] checkpoint; ARGV[1] candidate version
var advanceScript = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
if tonumber(ARGV[1]) > current then
    redis.call("SET", KEYS[1], ARGV[1])
    return 1
end
return 0
`)

const dirtyScanCount = 500

type SubmissionStore struct {
	rdb  *redis.Client
	keys Keys
}

func NewSubmissionStore(rdb *redis.Client, keys Keys) *SubmissionStore {
	return &SubmissionStore{rdb: rdb, keys: keys}
}

func (s *SubmissionStore) Exists(ctx context.Context, contestID, userID, questionID string) (bool, error) {
	ok, err := s.rdb.HExists(ctx, s.keys.Submissions(contestID, userID), questionID).Result()
	if err != nil {
		return false, fmt.Errorf("checking submission %s/%s/%s: %w", contestID, userID, questionID, err)
	}
	return ok, nil
}

// Answered returns the ids of every question the participant has submitted for.
func (s *SubmissionStore) Answered(ctx context.Context, contestID, userID string) (map[string]bool, error) {
	ids, err := s.rdb.HKeys(ctx, s.keys.Submissions(contestID, userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("listing submissions for %s/%s: %w", contestID, userID, err)
	}
	answered := make(map[string]bool, len(ids))
	for _, id := range ids {
		answered[id] = true
	}
	return answered, nil
}

// Record atomically creates the record for (contest, user, question), credits
// rec.PointsAwarded to the contest leaderboard and marks the record dirty.
// It returns false when a record already existed, in which case nothing is
// credited. score is the participant's leaderboard score afterwards.
func (s *SubmissionStore) Record(ctx context.Context, contestID, userID, questionID string, rec model.SubmissionRecord) (created bool, score int64, err error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return false, 0, fmt.Errorf("encoding submission record: %w", err)
	}
	keys := []string{
		s.keys.Submissions(contestID, userID),
		s.keys.DirtySet(),
		s.keys.Version(),
		s.keys.Leaderboard(contestID),
	}
	reply, err := recordScript.Run(ctx, s.rdb, keys, questionID, raw, rec.PointsAwarded, userID).Slice()
	if err != nil {
		return false, 0, fmt.Errorf("recording submission %s/%s/%s: %w", contestID, userID, questionID, err)
	}
	if len(reply) != 2 {
		return false, 0, fmt.Errorf("recording submission %s/%s/%s: unexpected reply %v", contestID, userID, questionID, reply)
	}
	flag, _ := reply[0].(int64)
	scoreText, _ := reply[1].(string)
	f, err := strconv.ParseFloat(scoreText, 64)
	if err != nil {
		return false, 0, fmt.Errorf("parsing score %q: %w", scoreText, err)
	}
	return flag == 1, int64(f), nil
}

// DirtyKeys enumerates the submission hashes awaiting a flush.
func (s *SubmissionStore) DirtyKeys(ctx context.Context) ([]string, error) {
	var (
		cursor uint64
		keys   []string
		seen   = make(map[string]struct{})
	)
	for {
		batch, next, err := s.rdb.SScan(ctx, s.keys.DirtySet(), cursor, "", dirtyScanCount).Result()
		if err != nil {
			return nil, fmt.Errorf("scanning dirty submissions: %w", err)
		}
		for _, k := range batch {
			// SSCAN may return an element more than once
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

// Records reads every question -> record entry under one submission hash.
func (s *SubmissionStore) Records(ctx context.Context, key string) (map[string]model.SubmissionRecord, error) {
	fields, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("reading submissions %s: %w", key, err)
	}
	records := make(map[string]model.SubmissionRecord, len(fields))
	for questionID, raw := range fields {
		var rec model.SubmissionRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decoding submission %s[%s]: %w", key, questionID, err)
		}
		records[questionID] = rec
	}
	return records, nil
}

// ClearDirty removes key from the dirty set if no record was added after
// flushedCount records were read from it.
func (s *SubmissionStore) ClearDirty(ctx context.Context, key string, flushedCount int) (bool, error) {
	removed, err := clearDirtyScript.Run(ctx, s.rdb, []string{s.keys.DirtySet(), key}, flushedCount).Int64()
	if err != nil {
		return false, fmt.Errorf("clearing dirty flag on %s: %w", key, err)
	}
	return removed == 1, nil
}

func (s *SubmissionStore) Version(ctx context.Context) (int64, error) {
	return s.readCounter(ctx, s.keys.Version())
}

func (s *SubmissionStore) FlushedVersion(ctx context.Context) (int64, error) {
	return s.readCounter(ctx, s.keys.FlushedVersion())
}

func (s *SubmissionStore) AdvanceFlushedVersion(ctx context.Context, version int64) error {
	if err := advanceScript.Run(ctx, s.rdb, []string{s.keys.FlushedVersion()}, version).Err(); err != nil {
		return fmt.Errorf("advancing flush checkpoint to %d: %w", version, err)
	}
	return nil
}

func (s *SubmissionStore) readCounter(ctx context.Context, key string) (int64, error) {
	v, err := s.rdb.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", key, err)
	}
	return v, nil
}
