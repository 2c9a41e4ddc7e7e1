package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Job kinds.
const (
	JobPlaylist = "playlist"
	JobEpg      = "epg"
	JobMapEpg   = "map_epg"
)

// SyncJob describes a background task: a playlist or EPG import, or an EPG mapping run.
type SyncJob struct {
	Kind       string  `json:"kind"`
	ID         int64   `json:"id"`
	UserID     int64   `json:"user_id"`
	Force      bool    `json:"force"`
	ChannelIDs []int64 `json:"channel_ids,omitempty"`
	Overwrite  bool    `json:"overwrite,omitempty"`
}

// DefaultQueue is the Redis list key used for the sync job queue.
const DefaultQueue = KeyPrefix + "jobs:sync"

// Enqueue pushes a job onto the left side of a Redis list.
func Enqueue(ctx context.Context, r *Redis, queue string, job SyncJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue marshal: %w", err)
	}
	return r.client.LPush(ctx, queue, data).Err()
}

// Dequeue blocks until a job is available on the right side of the list
// or the timeout expires. On timeout or shutdown (nil, nil) is returned so the
// caller can loop and check ctx.
func Dequeue(ctx context.Context, r *Redis, queue string, timeout time.Duration) (*SyncJob, error) {
	result, err := r.client.BRPop(ctx, timeout, queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || ctx.Err() != nil {
			return nil, nil
		}
		return nil, fmt.Errorf("queue dequeue: %w", err)
	}
	// BRPop returns [key, value].
	if len(result) < 2 {
		return nil, nil
	}
	var job SyncJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("queue unmarshal: %w", err)
	}
	return &job, nil
}
