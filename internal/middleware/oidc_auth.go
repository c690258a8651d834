package middleware

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"model-graphql/internal/logging"
	"model-graphql/internal/observability"

	"github.com/coreos/go-oidc/v3/oidc"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultClockSkew = 2 * time.Minute

// OIDCAuthConfig controls bearer token validation against an OIDC issuer.
type OIDCAuthConfig struct {
	Enabled       bool
	IssuerURL     string
	Audience      string
	ClockSkew     time.Duration
	CAFile        string
	SkipTLSVerify bool
}

type authContextKey struct{}

// AuthContext is the identity established for a request. Claims become the
// ambient "claims" variable of GraphQL queries and Subject the "uid".
type AuthContext struct {
	Subject  string
	Issuer   string
	Audience []string
	Claims   map[string]any
}

// WithAuthContext stores an identity in ctx.
func WithAuthContext(ctx context.Context, auth AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, auth)
}

// AuthFromContext returns the identity stored in ctx, if any.
func AuthFromContext(ctx context.Context) (AuthContext, bool) {
	auth, ok := ctx.Value(authContextKey{}).(AuthContext)
	return auth, ok
}

// authFailure is one rejected bearer token.
type authFailure struct {
	reason  string
	message string
	err     error
}

// OIDCAuthMiddleware requires a valid bearer token on every request when
// enabled. A disabled config yields a pass-through middleware.
func OIDCAuthMiddleware(ctx context.Context, cfg OIDCAuthConfig, logger *logging.Logger, metrics *observability.SecurityMetrics) (func(http.Handler) http.Handler, error) {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler { return next }, nil
	}
	if cfg.IssuerURL == "" || cfg.Audience == "" {
		return nil, errors.New("oidc auth enabled but issuer/audience not configured")
	}
	if cfg.ClockSkew == 0 {
		cfg.ClockSkew = defaultClockSkew
	}

	issuerURL, err := url.Parse(cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid oidc issuer url: %w", err)
	}
	if issuerURL.Scheme != "https" {
		return nil, errors.New("oidc issuer url must use https")
	}
	if cfg.SkipTLSVerify && logger != nil {
		logger.Warn("oidc tls verification is disabled; enable only for local development",
			slog.String("issuer", cfg.IssuerURL),
		)
	}

	client, err := newOIDCHTTPClient(cfg)
	if err != nil {
		return nil, err
	}
	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, client), cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize oidc provider: %w", err)
	}
	verifier := provider.Verifier(&oidc.Config{
		ClientID: cfg.Audience,
		// Expiry is checked below with the configured clock skew.
		SkipExpiryCheck: true,
	})

	authenticate := func(r *http.Request) (AuthContext, *authFailure) {
		raw := bearerToken(r.Header.Get("Authorization"))
		if raw == "" {
			return AuthContext{}, &authFailure{reason: "missing_token", message: "missing bearer token"}
		}
		idToken, err := verifier.Verify(oidc.ClientContext(r.Context(), client), raw)
		if err != nil {
			return AuthContext{}, &authFailure{reason: "invalid_token", message: "invalid token", err: err}
		}
		claims := map[string]any{}
		if err := idToken.Claims(&claims); err != nil {
			return AuthContext{}, &authFailure{reason: "claims_parse_failed", message: "invalid token claims", err: err}
		}
		if err := validateTimeClaims(claims, time.Now(), cfg.ClockSkew); err != nil {
			return AuthContext{}, &authFailure{reason: "token_expired", message: "invalid token", err: err}
		}
		return AuthContext{
			Subject:  idToken.Subject,
			Issuer:   idToken.Issuer,
			Audience: idToken.Audience,
			Claims:   claims,
		}, nil
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			endpoint := r.URL.Path
			metrics.RecordAuthAttempt(r.Context(), endpoint)

			auth, failure := authenticate(r)
			if failure != nil {
				metrics.RecordAuthFailure(r.Context(), endpoint, failure.reason)
				attrs := []any{
					slog.String("reason", failure.reason),
					slog.String("endpoint", endpoint),
					slog.String("remote_addr", r.RemoteAddr),
				}
				if failure.err != nil {
					attrs = append(attrs, slog.String("error", failure.err.Error()))
				}
				logging.FromContext(r.Context()).Warn("authentication failed", attrs...)
				writeUnauthorized(w, failure.message)
				return
			}

			metrics.RecordAuthSuccess(r.Context(), endpoint, auth.Issuer)
			if span := trace.SpanFromContext(r.Context()); span.IsRecording() {
				span.SetAttributes(
					attribute.String("auth.subject", auth.Subject),
					attribute.String("auth.issuer", auth.Issuer),
					attribute.Bool("auth.authenticated", true),
				)
			}
			logging.FromContext(r.Context()).Debug("authentication successful",
				slog.String("subject", auth.Subject),
				slog.String("endpoint", endpoint),
			)

			next.ServeHTTP(w, r.WithContext(WithAuthContext(r.Context(), auth)))
		})
	}, nil
}

// newOIDCHTTPClient builds the client used for discovery and key fetches.
// CAFile adds a trusted root on top of the system pool.
func newOIDCHTTPClient(cfg OIDCAuthConfig) (*http.Client, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: cfg.SkipTLSVerify}
	if cfg.CAFile != "" {
		pem, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read oidc ca file: %w", err)
		}
		pool, err := x509.SystemCertPool()
		if err != nil || pool == nil {
			pool = x509.NewCertPool()
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("failed to parse oidc ca file %s", cfg.CAFile)
		}
		tlsConfig.RootCAs = pool
	}
	return &http.Client{
		Transport: &http.Transport{TLSClientConfig: tlsConfig},
		Timeout:   10 * time.Second,
	}, nil
}

func bearerToken(value string) string {
	scheme, token, ok := strings.Cut(value, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func validateTimeClaims(claims map[string]any, now time.Time, skew time.Duration) error {
	if exp, ok := numericDate(claims["exp"]); ok && now.After(exp.Add(skew)) {
		return errors.New("token expired")
	}
	if nbf, ok := numericDate(claims["nbf"]); ok && now.Add(skew).Before(nbf) {
		return errors.New("token not valid yet")
	}
	return nil
}

func numericDate(value any) (time.Time, bool) {
	switch v := value.(type) {
	case float64:
		return time.Unix(int64(v), 0), true
	case int64:
		return time.Unix(v, 0), true
	case int:
		return time.Unix(int64(v), 0), true
	case json.Number:
		parsed, err := v.Int64()
		if err != nil {
			return time.Time{}, false
		}
		return time.Unix(parsed, 0), true
	case string:
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		return time.Unix(parsed, 0), true
	default:
		return time.Time{}, false
	}
}
