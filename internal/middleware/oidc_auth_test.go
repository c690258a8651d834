package middleware

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAudience = "model-graphql"

type testIssuer struct {
	server *httptest.Server
	key    *rsa.PrivateKey
	caFile string
}

func newTestIssuer(t *testing.T) *testIssuer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	issuer := &testIssuer{key: key}
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                                issuer.server.URL,
			"jwks_uri":                              issuer.server.URL + "/jwks",
			"id_token_signing_alg_values_supported": []string{"RS256"},
		})
	})
	mux.HandleFunc("/jwks", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"use": "sig",
				"alg": "RS256",
				"kid": "test-key",
				"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
			}},
		})
	})
	issuer.server = httptest.NewTLSServer(mux)
	t.Cleanup(issuer.server.Close)

	issuer.caFile = filepath.Join(t.TempDir(), "issuer_ca.crt")
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: issuer.server.Certificate().Raw})
	require.NoError(t, os.WriteFile(issuer.caFile, certPEM, 0o600))
	return issuer
}

func (i *testIssuer) mint(t *testing.T, audience string, expiresAt time.Time, extra map[string]any) string {
	t.Helper()

	claims := jwt.MapClaims{
		"iss": i.server.URL,
		"sub": "user-1",
		"aud": []string{audience},
		"iat": time.Now().Unix(),
		"exp": expiresAt.Unix(),
	}
	for k, v := range extra {
		claims[k] = v
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "test-key"
	signed, err := token.SignedString(i.key)
	require.NoError(t, err)
	return signed
}

func newAuthHandler(t *testing.T, issuer *testIssuer, skew time.Duration) (http.Handler, *AuthContext) {
	t.Helper()

	mw, err := OIDCAuthMiddleware(context.Background(), OIDCAuthConfig{
		Enabled:   true,
		IssuerURL: issuer.server.URL,
		Audience:  testAudience,
		ClockSkew: skew,
		CAFile:    issuer.caFile,
	}, nil, nil)
	require.NoError(t, err)

	seen := &AuthContext{}
	return mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth, ok := AuthFromContext(r.Context())
		require.True(t, ok)
		*seen = auth
		w.WriteHeader(http.StatusOK)
	})), seen
}

func serveWithToken(handler http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestOIDCAuthMiddleware(t *testing.T) {
	issuer := newTestIssuer(t)
	handler, seen := newAuthHandler(t, issuer, time.Second)

	t.Run("missing token", func(t *testing.T) {
		rec := serveWithToken(handler, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
		assert.JSONEq(t, `{"error":"missing bearer token"}`, rec.Body.String())
	})

	t.Run("valid token", func(t *testing.T) {
		token := issuer.mint(t, testAudience, time.Now().Add(time.Hour), map[string]any{"company_id": 3})
		rec := serveWithToken(handler, token)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "user-1", seen.Subject)
		assert.Equal(t, issuer.server.URL, seen.Issuer)
		assert.Equal(t, float64(3), seen.Claims["company_id"])
	})

	t.Run("wrong audience", func(t *testing.T) {
		token := issuer.mint(t, "someone-else", time.Now().Add(time.Hour), nil)
		assert.Equal(t, http.StatusUnauthorized, serveWithToken(handler, token).Code)
	})

	t.Run("expired beyond skew", func(t *testing.T) {
		token := issuer.mint(t, testAudience, time.Now().Add(-time.Hour), nil)
		assert.Equal(t, http.StatusUnauthorized, serveWithToken(handler, token).Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, serveWithToken(handler, "not-a-jwt").Code)
	})
}

func TestOIDCAuthMiddleware_ExpiryWithinSkew(t *testing.T) {
	issuer := newTestIssuer(t)
	handler, _ := newAuthHandler(t, issuer, 5*time.Minute)

	token := issuer.mint(t, testAudience, time.Now().Add(-time.Minute), nil)
	assert.Equal(t, http.StatusOK, serveWithToken(handler, token).Code)
}

func TestOIDCAuthMiddleware_Config(t *testing.T) {
	mw, err := OIDCAuthMiddleware(context.Background(), OIDCAuthConfig{}, nil, nil)
	require.NoError(t, err)
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	assert.NotNil(t, mw(next))

	_, err = OIDCAuthMiddleware(context.Background(), OIDCAuthConfig{Enabled: true}, nil, nil)
	assert.ErrorContains(t, err, "issuer/audience")

	_, err = OIDCAuthMiddleware(context.Background(), OIDCAuthConfig{
		Enabled:   true,
		IssuerURL: "http://issuer.example",
		Audience:  testAudience,
	}, nil, nil)
	assert.ErrorContains(t, err, "https")
}

func TestNewOIDCHTTPClient_TrustsProvidedCA(t *testing.T) {
	issuer := newTestIssuer(t)

	client, err := newOIDCHTTPClient(OIDCAuthConfig{CAFile: issuer.caFile})
	require.NoError(t, err)

	resp, err := client.Get(issuer.server.URL + "/jwks")
	require.NoError(t, err)
	_ = resp.Body.Close()
}

func TestNewOIDCHTTPClient_FailsWithoutCAForSelfSignedServer(t *testing.T) {
	issuer := newTestIssuer(t)

	client, err := newOIDCHTTPClient(OIDCAuthConfig{})
	require.NoError(t, err)

	_, err = client.Get(issuer.server.URL + "/jwks")
	assert.Error(t, err)
}

func TestNewOIDCHTTPClient_RejectsInvalidCAFile(t *testing.T) {
	caPath := filepath.Join(t.TempDir(), "invalid_ca.crt")
	require.NoError(t, os.WriteFile(caPath, []byte("not a certificate"), 0o600))

	_, err := newOIDCHTTPClient(OIDCAuthConfig{CAFile: caPath})
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("bearer  abc "))
	assert.Empty(t, bearerToken("Basic abc"))
	assert.Empty(t, bearerToken("Bearer"))
}

func TestValidateTimeClaims(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	assert.NoError(t, validateTimeClaims(map[string]any{"exp": float64(now.Unix() - 30)}, now, time.Minute))
	assert.Error(t, validateTimeClaims(map[string]any{"exp": float64(now.Unix() - 120)}, now, time.Minute))
	assert.Error(t, validateTimeClaims(map[string]any{"nbf": json.Number("1700000600")}, now, time.Minute))
	assert.NoError(t, validateTimeClaims(map[string]any{"nbf": "1700000030"}, now, time.Minute))
}
