// Package events mirrors pipeline events onto a Redis feed so other
// processes (dashboards, the publishing bridge) can follow a user's activity.
//
// Each event is PUBLISHed on the user's channel and pushed onto a capped
// recent-events list that the HTTP API reads back.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Shimizu-Technology/reelforge-api/internal/pipeline"
)

const (
	keyPrefix     = "reelforge:events:"
	defaultRecent = 100
	defaultTTL    = 7 * 24 * time.Hour
)

// Channel is the pub/sub channel for userID's events.
func Channel(userID string) string { return keyPrefix + userID }

func recentKey(userID string) string { return keyPrefix + userID + ":recent" }

// Connect opens a client for url (redis:// or rediss://) and pings it.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	opts.DialTimeout = 10 * time.Second
	opts.ReadTimeout = 30 * time.Second
	opts.WriteTimeout = 30 * time.Second

	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// commander is the subset of redis.Cmdable the publisher uses.
type commander interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
}

// RedisPublisher implements pipeline.Notifier on top of Redis.
type RedisPublisher struct {
	rdb    commander
	recent int64
	ttl    time.Duration
	log    zerolog.Logger
}

// NewRedisPublisher creates a publisher that keeps the last 100 events per
// user for a week.
func NewRedisPublisher(rdb redis.Cmdable, log zerolog.Logger) *RedisPublisher {
	return newPublisher(rdb, log)
}

func newPublisher(rdb commander, log zerolog.Logger) *RedisPublisher {
	return &RedisPublisher{
		rdb:    rdb,
		recent: defaultRecent,
		ttl:    defaultTTL,
		log:    log.With().Str("component", "events").Logger(),
	}
}

// Notify publishes ev and appends it to the user's recent list. Failures are
// logged; they never reach the pipeline.
func (p *RedisPublisher) Notify(ctx context.Context, ev pipeline.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		p.log.Warn().Err(err).Str("event", string(ev.Type)).Msg("failed to marshal event")
		return
	}
	log := p.log.With().Str("event", string(ev.Type)).Str("user_id", ev.UserID).Logger()

	if err := p.rdb.Publish(ctx, Channel(ev.UserID), data).Err(); err != nil {
		log.Warn().Err(err).Msg("failed to publish event")
	}

	key := recentKey(ev.UserID)
	if err := p.rdb.LPush(ctx, key, data).Err(); err != nil {
		log.Warn().Err(err).Msg("failed to record event")
		return
	}
	if err := p.rdb.LTrim(ctx, key, 0, p.recent-1).Err(); err != nil {
		log.Warn().Err(err).Msg("failed to trim recent events")
	}
	if err := p.rdb.Expire(ctx, key, p.ttl).Err(); err != nil {
		log.Warn().Err(err).Msg("failed to set recent events ttl")
	}
}

// Recent returns up to limit of the user's latest events, newest first.
func (p *RedisPublisher) Recent(ctx context.Context, userID string, limit int) ([]pipeline.Event, error) {
	if limit <= 0 || int64(limit) > p.recent {
		limit = int(p.recent)
	}
	raw, err := p.rdb.LRange(ctx, recentKey(userID), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read recent events: %w", err)
	}
	out := make([]pipeline.Event, 0, len(raw))
	for _, item := range raw {
		var ev pipeline.Event
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			p.log.Warn().Err(err).Msg("skipping malformed event")
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// Fanout delivers each event to every notifier in order. Nil entries are
// skipped so optional sinks can be listed unconditionally.
type Fanout []pipeline.Notifier

// Notify implements pipeline.Notifier.
func (f Fanout) Notify(ctx context.Context, ev pipeline.Event) {
	for _, n := range f {
		if n != nil {
			n.Notify(ctx, ev)
		}
	}
}

// LogNotifier writes every event to a logger. It is the sink of last resort
// when neither Redis nor a database is configured.
type LogNotifier struct {
	Log zerolog.Logger
}

// Notify implements pipeline.Notifier.
func (l LogNotifier) Notify(ctx context.Context, ev pipeline.Event) {
	l.Log.Info().
		Str("event", string(ev.Type)).
		Str("user_id", ev.UserID).
		Str("session_id", ev.SessionID).
		Str("job_id", ev.JobID).
		Str("post_id", ev.PostID).
		Msg("pipeline event")
}
