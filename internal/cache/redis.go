// Package cache provides a Redis-backed mastery cache.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/abhisek/mentalmath/internal/domain"
	"github.com/abhisek/mentalmath/internal/mastery"
)

const keyPrefix = "mentalmath:mastery"

// DefaultTTL bounds how long a cached mastery value is served.
const DefaultTTL = 10 * time.Minute

// NewRedisClient creates and validates a Redis client connection.
func NewRedisClient(ctx context.Context, url string, log zerolog.Logger) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	rdb := redis.NewClient(opt)

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	log.Info().
		Str("addr", opt.Addr).
		Int("db", opt.DB).
		Msg("Redis connected")

	return rdb, nil
}

// MasteryCache implements mastery.Cache on Redis string keys with a TTL.
type MasteryCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

var _ mastery.Cache = (*MasteryCache)(nil)

// NewMasteryCache wraps rdb. A non-positive ttl falls back to DefaultTTL.
func NewMasteryCache(rdb redis.Cmdable, ttl time.Duration) *MasteryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MasteryCache{rdb: rdb, ttl: ttl}
}

// Key returns the Redis key for a learner and topic.
func Key(learner domain.LearnerID, topic domain.Topic) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, learner, topic)
}

func (c *MasteryCache) Get(ctx context.Context, learner domain.LearnerID, topic domain.Topic) (float64, bool, error) {
	s, err := c.rdb.Get(ctx, Key(learner, topic)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get mastery: %w", err)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Errorf("decode mastery %q: %w", s, err)
	}
	return v, true, nil
}

func (c *MasteryCache) Set(ctx context.Context, learner domain.LearnerID, topic domain.Topic, value float64) error {
	v := strconv.FormatFloat(value, 'g', -1, 64)
	if err := c.rdb.Set(ctx, Key(learner, topic), v, c.ttl).Err(); err != nil {
		return fmt.Errorf("set mastery: %w", err)
	}
	return nil
}

func (c *MasteryCache) Delete(ctx context.Context, learner domain.LearnerID, topic domain.Topic) error {
	if err := c.rdb.Del(ctx, Key(learner, topic)).Err(); err != nil {
		return fmt.Errorf("delete mastery: %w", err)
	}
	return nil
}
