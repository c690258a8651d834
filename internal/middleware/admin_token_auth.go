package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"model-graphql/internal/logging"
	"model-graphql/internal/observability"
)

const defaultAdminTokenHeader = "X-Admin-Token"

// AdminTokenAuthConfig guards admin endpoints with a shared token.
type AdminTokenAuthConfig struct {
	Token      string
	HeaderName string
	// Operation labels the guarded endpoint in security metrics.
	Operation string
}

// AdminTokenAuthMiddleware rejects requests whose admin header does not
// carry the configured token.
func AdminTokenAuthMiddleware(cfg AdminTokenAuthConfig, metrics *observability.SecurityMetrics) (func(http.Handler) http.Handler, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("admin auth token is required")
	}
	headerName := strings.TrimSpace(cfg.HeaderName)
	if headerName == "" {
		headerName = defaultAdminTokenHeader
	}
	expected := sha256.Sum256([]byte(token))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := sha256.Sum256([]byte(strings.TrimSpace(r.Header.Get(headerName))))
			if subtle.ConstantTimeCompare(provided[:], expected[:]) != 1 {
				metrics.RecordAdminEndpointAccess(r.Context(), cfg.Operation, false)
				metrics.RecordAuthFailure(r.Context(), r.URL.Path, "invalid_admin_token")
				logging.FromContext(r.Context()).Warn("admin token rejected",
					slog.String("endpoint", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr),
				)
				writeUnauthorized(w, "unauthorized")
				return
			}

			metrics.RecordAdminEndpointAccess(r.Context(), cfg.Operation, true)
			ctx := WithAuthContext(r.Context(), AuthContext{
				Subject: "admin_token",
				Issuer:  "admin_token",
				Claims:  map[string]any{"auth_method": "admin_token"},
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}, nil
}
