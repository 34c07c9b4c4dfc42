// Package redis provides Redis-based adapters for the console.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/target/esg-checklist-ui/internal/ports"
)

const (
	defaultPrefix = "esg:storage:"
	watchBuffer   = 16
)

// Storage is a Redis-backed key/value store shared by console processes.
// Values live in one hash per namespace; every mutation is announced on a
// pub/sub channel so other processes observe it through Watch.
type Storage struct {
	client  redis.UniversalClient
	hashKey string
	channel string
	origin  string
	logger  *slog.Logger
}

// StorageOptions configures a Storage.
type StorageOptions struct {
	Client    redis.UniversalClient
	Namespace string
	// Prefix overrides the default key prefix.
	Prefix string
	Logger *slog.Logger
}

type storageMessage struct {
	Origin  string   `json:"origin"`
	Keys    []string `json:"keys"`
	Removed bool     `json:"removed"`
}

// NewStorage creates a Redis-backed Storage.
func NewStorage(opts StorageOptions) (*Storage, error) {
	if opts.Client == nil {
		return nil, errors.New("redis client is required")
	}
	ns := opts.Namespace
	if ns == "" {
		ns = "default"
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Storage{
		client:  opts.Client,
		hashKey: prefix + ns,
		channel: prefix + ns + ":events",
		origin:  uuid.NewString(),
		logger:  logger,
	}, nil
}

func (s *Storage) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.HGet(ctx, s.hashKey, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis hget: %w", err)
	}
	return v, true, nil
}

func (s *Storage) SetMany(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	keys := make([]string, 0, len(values))
	fields := make([]any, 0, len(values)*2)
	for k, v := range values {
		keys = append(keys, k)
		fields = append(fields, k, v)
	}
	sort.Strings(keys)

	msg, err := s.message(keys, false)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.hashKey, fields...)
		pipe.Publish(ctx, s.channel, msg)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

func (s *Storage) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	msg, err := s.message(keys, true)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, s.hashKey, keys...)
		pipe.Publish(ctx, s.channel, msg)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis hdel: %w", err)
	}
	return nil
}

func (s *Storage) Keys(ctx context.Context) ([]string, error) {
	keys, err := s.client.HKeys(ctx, s.hashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hkeys: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Watch subscribes to mutations made by other Storage instances in the same namespace.
func (s *Storage) Watch(ctx context.Context) (<-chan ports.StorageEvent, error) {
	sub := s.client.Subscribe(ctx, s.channel)
	if _, err := sub.Receive(ctx); err != nil {
		if cerr := sub.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close subscription: %w", cerr))
		}
		return nil, fmt.Errorf("subscribe %s: %w", s.channel, err)
	}

	out := make(chan ports.StorageEvent, watchBuffer)
	msgs := sub.Channel()
	go func() {
		defer close(out)
		defer func() {
			if cerr := sub.Close(); cerr != nil {
				s.logger.Warn("close storage subscription failed", "error", cerr)
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var payload storageMessage
				if err := json.Unmarshal([]byte(m.Payload), &payload); err != nil {
					s.logger.Warn("discarding malformed storage event", "error", err)
					continue
				}
				if payload.Origin == s.origin {
					continue
				}
				for _, k := range payload.Keys {
					select {
					case out <- ports.StorageEvent{Key: k, Removed: payload.Removed}:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return out, nil
}

func (s *Storage) message(keys []string, removed bool) (string, error) {
	data, err := json.Marshal(storageMessage{Origin: s.origin, Keys: keys, Removed: removed})
	if err != nil {
		return "", fmt.Errorf("marshal storage event: %w", err)
	}
	return string(data), nil
}
