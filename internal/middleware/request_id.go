package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type requestIdKey string

const RequestIdKey requestIdKey = "requestId"

func WithRequestId(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqId := r.Header.Get("X-Request-ID")
		if reqId == "" {
			reqId = uuid.New().String()
		}
		ctx := context.WithValue(r.Context(), RequestIdKey, reqId)
		r = r.WithContext(ctx)
		r.Header.Set("X-Request-ID", reqId)
		w.Header().Set("X-Request-ID", reqId)

		next.ServeHTTP(w, r)
	})
}

// RequestID returns the id assigned by WithRequestId, or "unknown".
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(RequestIdKey).(string); ok {
		return reqID
	}
	return "unknown"
}
