// Package identity provides anonymous conversation identity for the chat
// surface and JWT-based staff authentication for the management API.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"time"
)

const (
	// ConversationCookieName carries the anonymous conversation identity.
	ConversationCookieName = "lavka_conv_id"
	conversationCookieAge  = 30 * 24 * time.Hour
)

type contextKey int

const (
	conversationIDKey contextKey = iota
	staffClaimsKey
)

var conversationIDPattern = regexp.MustCompile(`^conv_[a-f0-9]{32}$`)

// ConversationIDFromContext extracts the conversation ID from the request
// context.
func ConversationIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(conversationIDKey).(string); ok {
		return v
	}
	return ""
}

func generateConversationID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate conversation id: %w", err)
	}
	return "conv_" + hex.EncodeToString(buf), nil
}

func isValidConversationID(id string) bool {
	return conversationIDPattern.MatchString(id)
}

func setConversationCookie(w http.ResponseWriter, id string, isDev bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     ConversationCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(conversationCookieAge.Seconds()),
		Expires:  time.Now().Add(conversationCookieAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
}

func getOrCreateConversationID(w http.ResponseWriter, r *http.Request, isDev bool) (string, error) {
	if c, err := r.Cookie(ConversationCookieName); err == nil && isValidConversationID(c.Value) {
		setConversationCookie(w, c.Value, isDev)
		return c.Value, nil
	}

	id, err := generateConversationID()
	if err != nil {
		return "", err
	}
	setConversationCookie(w, id, isDev)
	return id, nil
}

// ConversationMiddleware injects an anonymous per-device conversation ID.
// Sessions are created lazily on first dispatch, so no storage is touched
// here.
func ConversationMiddleware(isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			conversationID, err := getOrCreateConversationID(w, r, isDev)
			if err != nil {
				http.Error(w, `{"error":"failed to establish conversation identity"}`, http.StatusInternalServerError)
				return
			}

			ctx := context.WithValue(r.Context(), conversationIDKey, conversationID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IPFromRequest returns a normalized remote IP for optional request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
