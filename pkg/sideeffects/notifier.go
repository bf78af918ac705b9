// Package sideeffects provides the reference implementations of the dispatch
// channel interfaces. Each implementation is a thin adapter around one
// delivery medium; deployments can swap in their own.
package sideeffects

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// LogNotifier writes notifications to the structured log. It is the default
// channel for single-binary deployments without a delivery backend.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("module", "notifier")}
}

func (n *LogNotifier) Notify(ctx context.Context, message string, data map[string]any) error {
	n.logger.InfoContext(ctx, "Notification", "message", message, "data", data)

	return nil
}

// RedisNotifier publishes notifications onto a Redis pub/sub channel so that
// external consumers (mobile push bridges, webhooks) can fan them out.
type RedisNotifier struct {
	client  redis.UniversalClient
	channel string
}

// NewRedisNotifier connects to Redis and verifies the connection before
// returning.
func NewRedisNotifier(ctx context.Context, addr, password, channel string, db int) (*RedisNotifier, error) {
	if addr == "" {
		addr = "localhost:6379"
	}

	if channel == "" {
		channel = "flowgrid.notifications"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisNotifier{client: client, channel: channel}, nil
}

func (n *RedisNotifier) Notify(ctx context.Context, message string, data map[string]any) error {
	payload, err := json.Marshal(map[string]any{
		"message": message,
		"data":    data,
		"sent_at": time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	return nil
}

func (n *RedisNotifier) Close() error {
	return n.client.Close()
}
