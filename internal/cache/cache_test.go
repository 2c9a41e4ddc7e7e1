package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "m3ueditor:playlist:7", Key("playlist:%d", 7))
	assert.Equal(t, "m3ueditor:lock:epg:3", SyncLockKey(JobEpg, 3))
}

func TestSyncJobJSON(t *testing.T) {
	job := SyncJob{Kind: JobMapEpg, ID: 2, UserID: 1, ChannelIDs: []int64{5, 6}, Overwrite: true}
	data, err := json.Marshal(job)
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"map_epg","id":2,"user_id":1,"force":false,"channel_ids":[5,6],"overwrite":true}`, string(data))
}

func TestRandomToken(t *testing.T) {
	a, b := randomToken(), randomToken()
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}

func TestUnreachableRedis(t *testing.T) {
	r := Wrap(redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	}))
	defer r.Close()
	ctx := context.Background()

	assert.Error(t, r.Ping(ctx))

	_, err := Get[SyncJob](ctx, r, Key("x"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMiss)

	_, err = TryLock(ctx, r, SyncLockKey(JobPlaylist, 1), time.Minute)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrLocked, "backend errors are not lock contention")

	assert.Error(t, Enqueue(ctx, r, DefaultQueue, SyncJob{Kind: JobPlaylist, ID: 1}))
}
