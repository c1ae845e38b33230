package middleware

import (
	"context"
	"net/http"
	"strings"
)

const userIDKey contextKey = "user_id"

// UserID lifts the caller's identity from the X-User-ID header into the
// request context. Authentication itself happens upstream; this header is
// the session collaborator's hand-off.
func UserID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid := strings.TrimSpace(r.Header.Get("X-User-ID"))
		ctx := context.WithValue(r.Context(), userIDKey, uid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}
