// Package listener provides a Postgres LISTEN/NOTIFY consumer for append
// events. It holds a dedicated pgx connection (not from the pool) listening
// on the pgstore notify channel.
//
// The API server uses it to drop cached snapshot responses as soon as a
// fetch job stores new rows, instead of waiting for the TTL.
package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/albapepper/buzzwatch/internal/cache"
	"github.com/albapepper/buzzwatch/internal/store/pgstore"
)

const (
	reconnectBackoff = 5 * time.Second
	maxReconnect     = 30 * time.Second
)

// Handler reacts to one append event.
type Handler func(ctx context.Context, ev pgstore.AppendEvent)

// Start opens a dedicated connection and listens on the append channel. It
// reconnects automatically on connection loss. Blocks until ctx is
// cancelled. Intended to be called with `go`.
func Start(ctx context.Context, dbURL string, handle Handler, logger *slog.Logger) {
	backoff := reconnectBackoff

	for {
		err := listenLoop(ctx, dbURL, handle, logger)
		if ctx.Err() != nil {
			logger.Info("Append listener stopped (context cancelled)")
			return
		}

		logger.Error("Append listener disconnected, reconnecting...",
			"error", err, "backoff", backoff)

		select {
		case <-time.After(backoff):
			backoff = min(backoff*2, maxReconnect)
		case <-ctx.Done():
			return
		}
	}
}

// listenLoop runs a single listen session. Returns when the connection drops
// or the context is cancelled.
func listenLoop(ctx context.Context, dbURL string, handle Handler, logger *slog.Logger) error {
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	_, err = conn.Exec(ctx, "LISTEN "+pgstore.NotifyChannel)
	if err != nil {
		return fmt.Errorf("LISTEN %s: %w", pgstore.NotifyChannel, err)
	}
	logger.Info("Append listener connected", "channel", pgstore.NotifyChannel)

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}

		event, err := Decode(notification.Payload)
		if err != nil {
			logger.Warn("Failed to parse append event",
				"payload", notification.Payload, "error", err)
			continue
		}

		logger.Debug("Append event received",
			"source", event.Source, "table", event.Table, "rows", event.Rows)
		handle(ctx, event)
	}
}

// Decode parses a notification payload. A bare source name is accepted for
// payloads sent by hand with pg_notify.
func Decode(payload string) (pgstore.AppendEvent, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return pgstore.AppendEvent{}, fmt.Errorf("empty payload")
	}
	if !strings.HasPrefix(payload, "{") {
		return pgstore.AppendEvent{Source: payload}, nil
	}
	var ev pgstore.AppendEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return pgstore.AppendEvent{}, err
	}
	if ev.Source == "" {
		return pgstore.AppendEvent{}, fmt.Errorf("append event without source")
	}
	return ev, nil
}

// InvalidateCache drops the cached snapshot responses of the event's source.
func InvalidateCache(c *cache.Cache, logger *slog.Logger) Handler {
	return func(_ context.Context, ev pgstore.AppendEvent) {
		n := c.InvalidatePrefix(cache.SourcePrefix(ev.Source))
		if n > 0 {
			logger.Info("Cache invalidated", "source", ev.Source, "keys", n)
		}
	}
}
