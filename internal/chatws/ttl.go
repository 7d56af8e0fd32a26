package chatws

import (
	"context"
	"log/slog"
	"time"

	"github.com/okunev/lavka/internal/shared"
	"github.com/okunev/lavka/internal/store"
)

const ttlWorkerInterval = 5 * time.Minute

// deleteSessionWithRetry deletes a chat session with exponential backoff to
// ride out SQLITE_BUSY while a conversation is still flushing its state.
func deleteSessionWithRetry(ctx context.Context, sessions store.Sessions, conversationID string) error {
	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	var err error
	for i := 0; i < maxRetries; i++ {
		err = sessions.DeleteSession(ctx, conversationID)
		if err == nil {
			return nil
		}
		if shared.IsSQLiteConflictError(err) && i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i) // exponential backoff: 100ms, 200ms, 400ms
			slog.Debug("TTL worker: session delete hit SQLITE_BUSY, retrying",
				"conversation_id", conversationID,
				"attempt", i+1,
				"delay", delay)
			time.Sleep(delay)
			continue
		}
		break
	}
	return err
}

// StartTTLWorker runs a background goroutine that periodically sweeps for
// idle conversations, closes their live connections and drops their sessions.
func StartTTLWorker(ctx context.Context, sessions store.Sessions, manager *ConnManager, ttl time.Duration) {
	ticker := time.NewTicker(ttlWorkerInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("session TTL worker started", "interval", ttlWorkerInterval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				sweepExpiredSessions(ctx, sessions, manager, ttl)
			case <-ctx.Done():
				slog.Info("session TTL worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweepExpiredSessions(ctx context.Context, sessions store.Sessions, manager *ConnManager, ttl time.Duration) {
	expired, err := sessions.ListExpiredSessions(ctx, ttl)
	if err != nil {
		slog.Error("TTL worker failed to list expired sessions", "error", err)
		return
	}
	if len(expired) == 0 {
		return
	}

	slog.Info("TTL worker found expired sessions", "count", len(expired))

	for _, conversationID := range expired {
		manager.CloseConversation(conversationID)

		if err := deleteSessionWithRetry(ctx, sessions, conversationID); err != nil {
			slog.Warn("TTL worker failed to delete session after retries",
				"error", err,
				"conversation_id", conversationID)
		}
	}

	slog.Info("TTL worker sweep completed", "cleaned", len(expired))
}
