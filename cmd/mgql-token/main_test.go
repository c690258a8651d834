package main

import (
	"bytes"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_GenerateAndMint(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "keys", "jwt.pem")
	require.NoError(t, run([]string{"--generate-key", keyPath}, &bytes.Buffer{}, time.Now()))

	info, err := os.Stat(keyPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	pubPEM, err := os.ReadFile(filepath.Join(dir, "keys", "jwt.pub"))
	require.NoError(t, err)
	block, _ := pem.Decode(pubPEM)
	require.NotNil(t, block)
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	require.NoError(t, err)

	var out bytes.Buffer
	now := time.Now()
	require.NoError(t, run([]string{
		"--key", keyPath,
		"--subject", "7",
		"--audience", "model-graphql,admin",
		"--claim", "company_id=1",
		"--claim", `groups=["sales","ops"]`,
		"--claim", "team=north",
		"--claim", "sub=ignored",
	}, &out, now))

	token, err := jwt.Parse(strings.TrimSpace(out.String()), func(tok *jwt.Token) (any, error) {
		assert.Equal(t, "local-key", tok.Header["kid"])
		return pub, nil
	}, jwt.WithValidMethods([]string{"RS256"}), jwt.WithAudience("model-graphql"))
	require.NoError(t, err)

	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, "7", claims["sub"])
	assert.Equal(t, "https://localhost:9000", claims["iss"])
	assert.Equal(t, []any{"model-graphql", "admin"}, claims["aud"])
	assert.Equal(t, 1.0, claims["company_id"])
	assert.Equal(t, []any{"sales", "ops"}, claims["groups"])
	assert.Equal(t, "north", claims["team"])
	assert.Equal(t, float64(now.Add(time.Hour).Unix()), claims["exp"])
}

func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "jwt.pem")
	require.NoError(t, run([]string{"--generate-key", keyPath}, &bytes.Buffer{}, time.Now()))

	err := run([]string{"--key", keyPath}, &bytes.Buffer{}, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--subject is required")

	err = run([]string{"--key", keyPath, "--subject", "x", "--claim", "novalue"}, &bytes.Buffer{}, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want key=value")

	err = run([]string{"--key", filepath.Join(dir, "missing.pem"), "--subject", "x"}, &bytes.Buffer{}, time.Now())
	require.Error(t, err)

	notPEM := filepath.Join(dir, "bad.pem")
	require.NoError(t, os.WriteFile(notPEM, []byte("not a key"), 0o600))
	err = run([]string{"--key", notPEM, "--subject", "x"}, &bytes.Buffer{}, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no PEM block")
}

func TestClaimValue(t *testing.T) {
	assert.Equal(t, 42.0, claimValue("42"))
	assert.Equal(t, true, claimValue("true"))
	assert.Equal(t, map[string]any{"a": "b"}, claimValue(`{"a":"b"}`))
	assert.Equal(t, "plain text", claimValue("plain text"))
}
