package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"refgrow/internal/referral"
)

const keyPrefix = "refgrow:onboarding:"

// Redis shares onboarding state between bot replicas and restarts.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ referral.SessionStore = (*Redis)(nil)

func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	return &Redis{rdb: rdb, ttl: ttl}
}

// Dial parses url, connects and pings.
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func key(participantID int64) string {
	return keyPrefix + strconv.FormatInt(participantID, 10)
}

func (r *Redis) Get(ctx context.Context, participantID int64) (referral.SessionState, error) {
	v, err := r.rdb.Get(ctx, key(participantID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return referral.SessionNone, nil
		}
		return referral.SessionNone, err
	}
	return referral.SessionState(v), nil
}

func (r *Redis) Put(ctx context.Context, participantID int64, state referral.SessionState) error {
	if state == referral.SessionNone {
		return r.Reset(ctx, participantID)
	}
	return r.rdb.Set(ctx, key(participantID), string(state), r.ttl).Err()
}

func (r *Redis) Reset(ctx context.Context, participantID int64) error {
	return r.rdb.Del(ctx, key(participantID)).Err()
}
