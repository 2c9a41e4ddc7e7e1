package cache

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// ErrLocked is returned by TryLock when the lock is already held.
var ErrLocked = errors.New("lock is already held")

const unlockScript = `
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	end
	return 0
`

// TryLock acquires a lock with SET NX EX. On success the returned unlock
// function must be called to release it; it only deletes the key while the
// random token still matches.
func TryLock(ctx context.Context, r *Redis, key string, ttl time.Duration) (unlock func(), err error) {
	token := randomToken()

	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("cache lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return func() {
		// Background context: release must happen even after the job ctx is cancelled.
		_ = r.client.Eval(context.Background(), unlockScript, []string{key}, token).Err()
	}, nil
}

// SyncLockKey is the lock held while a record of the given kind is syncing.
func SyncLockKey(kind string, id int64) string {
	return Key("lock:%s:%d", kind, id)
}

// Locker adapts TryLock to the per-record lock the import services take.
type Locker struct {
	r   *Redis
	ttl time.Duration
}

// NewLocker creates a Locker whose locks expire after ttl if never released.
func NewLocker(r *Redis, ttl time.Duration) *Locker {
	return &Locker{r: r, ttl: ttl}
}

// Lock takes the sync lock for kind/id.
func (l *Locker) Lock(ctx context.Context, kind string, id int64) (func(), error) {
	return TryLock(ctx, l.r, SyncLockKey(kind, id), l.ttl)
}

func randomToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
