package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"pairchat/internal/model"
	"pairchat/internal/utils/log"

	"go.uber.org/zap"
)

type contextKey string

const (
	PartyIDHeader = "X-Party-ID"

	partyIDKey contextKey = "party_id"
)

// PartyMiddleware takes the caller's PartyID from the X-Party-ID header set
// by the auth gateway in front of this service.
func PartyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.Header.Get(PartyIDHeader), 10, 64)
		if err != nil || id <= 0 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), partyIDKey, model.PartyID(id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func partyFromContext(ctx context.Context) model.PartyID {
	id, _ := ctx.Value(partyIDKey).(model.PartyID)
	return id
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("took", time.Since(start)))
	})
}
