// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces every key. Default "tvplay".
	Prefix string
}

// Redis shares settings and journals across daemon replicas.
type Redis struct {
	client    *redis.Client
	prefix    string
	retention time.Duration
	maxEvents int
}

// OpenRedis connects and verifies the server is reachable.
func OpenRedis(ctx context.Context, cfg RedisConfig, retention time.Duration, maxEvents int) (*Redis, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return newRedis(client, cfg.Prefix, retention, maxEvents), nil
}

func newRedis(client *redis.Client, prefix string, retention time.Duration, maxEvents int) *Redis {
	defaults := Config{}.withDefaults()
	if prefix == "" {
		prefix = "tvplay"
	}
	if retention <= 0 {
		retention = defaults.Retention
	}
	if maxEvents <= 0 {
		maxEvents = defaults.MaxEvents
	}
	return &Redis{client: client, prefix: prefix, retention: retention, maxEvents: maxEvents}
}

func (r *Redis) settingsKey() string { return r.prefix + ":settings" }

func (r *Redis) eventsKey(sessionID string) string { return r.prefix + ":events:" + sessionID }

func (r *Redis) LoadSettings(ctx context.Context) (Settings, error) {
	val, err := r.client.Get(ctx, r.settingsKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}
	var out Settings
	if err := json.Unmarshal(val, &out); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return out, nil
}

func (r *Redis) SaveSettings(ctx context.Context, s Settings) error {
	s, err := s.Normalize()
	if err != nil {
		return err
	}
	buf, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.settingsKey(), buf, 0).Err()
}

func (r *Redis) ResetSettings(ctx context.Context) (Settings, error) {
	if err := r.client.Del(ctx, r.settingsKey()).Err(); err != nil {
		return Settings{}, fmt.Errorf("reset settings: %w", err)
	}
	return DefaultSettings(), nil
}

func (r *Redis) AppendEvent(ctx context.Context, e Entry) error {
	buf, err := json.Marshal(e)
	if err != nil {
		return err
	}
	key := r.eventsKey(e.SessionID)
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, key, buf)
		p.LTrim(ctx, key, int64(-r.maxEvents), -1)
		p.Expire(ctx, key, r.retention)
		return nil
	})
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func (r *Redis) ListEvents(ctx context.Context, sessionID string, limit int) ([]Entry, error) {
	limit = clampLimit(limit, r.maxEvents)
	vals, err := r.client.LRange(ctx, r.eventsKey(sessionID), int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	out := make([]Entry, 0, len(vals))
	for _, v := range vals {
		var e Entry
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *Redis) Ping(ctx context.Context) error { return r.client.Ping(ctx).Err() }

func (r *Redis) Close() error { return r.client.Close() }
