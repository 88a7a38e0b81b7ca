package livestore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
else
    return 0
end
`)

// Lease is a held lock. The zero value holds nothing.
type Lease struct {
	Key   string
	Token string
}

// Locker hands out lease locks that expire on their own, so a crashed holder
// cannot block other instances past the TTL.
type Locker struct {
	rdb  *redis.Client
	keys Keys
}

func NewLocker(rdb *redis.Client, keys Keys) *Locker {
	return &Locker{rdb: rdb, keys: keys}
}

// Acquire tries once to take the named lock. ok is false when another holder
// has it.
func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (Lease, bool, error) {
	lease := Lease{Key: l.keys.Lock(name), Token: uuid.NewString()}
	ok, err := l.rdb.SetNX(ctx, lease.Key, lease.Token, ttl).Result()
	if err != nil {
		return Lease{}, false, fmt.Errorf("acquiring lock %s: %w", lease.Key, err)
	}
	if !ok {
		return Lease{}, false, nil
	}
	return lease, true, nil
}

// Release drops the lease. released is false if the lease had already expired
// or been taken over.
func (l *Locker) Release(ctx context.Context, lease Lease) (bool, error) {
	if lease.Key == "" {
		return false, nil
	}
	deleted, err := releaseScript.Run(ctx, l.rdb, []string{lease.Key}, lease.Token).Int64()
	if err != nil {
		return false, fmt.Errorf("releasing lock %s: %w", lease.Key, err)
	}
	return deleted == 1, nil
}
