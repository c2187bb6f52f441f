// backend/src/handlers/middleware.go
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/username/soldrip/backend/src/logger"
	"github.com/username/soldrip/backend/src/security"
)

type contextKey string

const (
	requestIDContextKey   contextKey = "requestID"
	signerTokenContextKey contextKey = "signerToken"
)

// ContextualLoggerMiddleware creates a logger carrying a request ID for every request.
func ContextualLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()

		ctxLogger := logger.L.With(slog.String("requestID", requestID))

		ctx := logger.ToContext(r.Context(), ctxLogger)
		ctx = context.WithValue(ctx, requestIDContextKey, requestID)

		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SignerMiddleware extracts the bearer token for the protocol service to verify against
// the account each operation needs. A valid token also tags the request logger with its account.
func SignerMiddleware(auth *security.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctxLogger := logger.FromContext(r.Context())

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				ctxLogger.Debug("SignerMiddleware: Authorization header missing", "path", r.URL.Path)
				next.ServeHTTP(w, r)
				return
			}

			tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
			ctx := context.WithValue(r.Context(), signerTokenContextKey, tokenString)

			if account, err := auth.ValidateToken(tokenString); err == nil {
				ctx = logger.ToContext(ctx, ctxLogger.With(slog.String("signer", account.String())))
			} else {
				ctxLogger.Debug("SignerMiddleware: token did not validate", "path", r.URL.Path, "error", err)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSignerToken returns the bearer token of the request, or "".
func GetSignerToken(ctx context.Context) string {
	token, _ := ctx.Value(signerTokenContextKey).(string)
	return token
}

// GetRequestID returns the ID assigned by ContextualLoggerMiddleware.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}
