package tlscert

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_AutoGeneratesAndReuses(t *testing.T) {
	dir := t.TempDir()
	src, err := New(Config{Mode: ModeAuto, AutoCertDir: dir}, nil)
	require.NoError(t, err)
	assert.Contains(t, src.Description(), "self-signed")

	tlsCfg, err := src.TLSConfig()
	require.NoError(t, err)
	require.Len(t, tlsCfg.Certificates, 1)
	assert.EqualValues(t, MinTLSVersion, tlsCfg.MinVersion)

	certPath := filepath.Join(dir, "server.crt")
	before, err := os.ReadFile(certPath)
	require.NoError(t, err)

	_, err = New(Config{Mode: ModeAuto, AutoCertDir: dir}, nil)
	require.NoError(t, err)
	after, err := os.ReadFile(certPath)
	require.NoError(t, err)
	assert.Equal(t, before, after, "valid certificate should be reused")
}

func TestNew_AutoRegeneratesForNewHosts(t *testing.T) {
	dir := t.TempDir()
	_, err := New(Config{Mode: ModeAuto, AutoCertDir: dir}, nil)
	require.NoError(t, err)

	certPath := filepath.Join(dir, "server.crt")
	keyPath := filepath.Join(dir, "server.key")
	assert.False(t, usable(certPath, keyPath, []string{"example.test"}, time.Now()))
	assert.True(t, usable(certPath, keyPath, []string{"::1", "localhost", "127.0.0.1"}, time.Now()))
	assert.False(t, usable(certPath, keyPath, defaultHosts, time.Now().Add(2*selfSignedValidity)))

	_, err = New(Config{Mode: ModeAuto, AutoCertDir: dir, Hosts: []string{"example.test"}}, nil)
	require.NoError(t, err)
	assert.True(t, usable(certPath, keyPath, []string{"example.test"}, time.Now()))
}

func TestNew_FileMode(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "server.crt")
	keyPath := filepath.Join(dir, "server.key")
	require.NoError(t, writeSelfSigned(certPath, keyPath, defaultHosts, time.Now()))

	src, err := New(Config{Mode: ModeFile, CertFile: certPath, KeyFile: keyPath}, nil)
	require.NoError(t, err)
	tlsCfg, err := src.TLSConfig()
	require.NoError(t, err)
	require.NotNil(t, tlsCfg.GetCertificate)
	cert, err := tlsCfg.GetCertificate(nil)
	require.NoError(t, err)
	assert.NotEmpty(t, cert.Certificate)

	require.NoError(t, os.Chmod(keyPath, 0o644))
	_, err = New(Config{Mode: ModeFile, CertFile: certPath, KeyFile: keyPath}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure permissions")
}

func TestNew_Errors(t *testing.T) {
	_, err := New(Config{Mode: "selfsigned"}, nil)
	require.Error(t, err)

	_, err = New(Config{Mode: ModeFile}, nil)
	require.Error(t, err)

	_, err = New(Config{Mode: ModeFile, CertFile: "/nonexistent.crt", KeyFile: "/nonexistent.key"}, nil)
	require.Error(t, err)
}
