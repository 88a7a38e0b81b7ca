package livestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"live_contest/internal/domain/model"

	"github.com/redis/go-redis/v9"
)

// AnswerKeyStore caches each contest's full question set. Entries never
// expire; a contest's questions are treated as frozen once it is live.
type AnswerKeyStore struct {
	rdb  redis.Cmdable
	keys Keys
}

func NewAnswerKeyStore(rdb redis.Cmdable, keys Keys) *AnswerKeyStore {
	return &AnswerKeyStore{rdb: rdb, keys: keys}
}

func (s *AnswerKeyStore) Exists(ctx context.Context, contestID string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.keys.AnswerKey(contestID)).Result()
	if err != nil {
		return false, fmt.Errorf("checking answer key for contest %s: %w", contestID, err)
	}
	return n == 1, nil
}

// Get returns the cached key, or (nil, nil) on a cache miss.
func (s *AnswerKeyStore) Get(ctx context.Context, contestID string) (*model.AnswerKey, error) {
	raw, err := s.rdb.Get(ctx, s.keys.AnswerKey(contestID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading answer key for contest %s: %w", contestID, err)
	}
	var key model.AnswerKey
	if err := json.Unmarshal(raw, &key); err != nil {
		return nil, fmt.Errorf("decoding answer key for contest %s: %w", contestID, err)
	}
	return &key, nil
}

// PutIfAbsent stores the key only if none is cached yet. It reports whether
// this call created the entry.
func (s *AnswerKeyStore) PutIfAbsent(ctx context.Context, key *model.AnswerKey) (bool, error) {
	raw, err := json.Marshal(key)
	if err != nil {
		return false, fmt.Errorf("encoding answer key for contest %s: %w", key.ContestID, err)
	}
	created, err := s.rdb.SetNX(ctx, s.keys.AnswerKey(key.ContestID), raw, 0).Result()
	if err != nil {
		return false, fmt.Errorf("storing answer key for contest %s: %w", key.ContestID, err)
	}
	return created, nil
}
