package serverapp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"model-graphql/internal/config"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Store: config.StoreConfig{
			Backend:     config.BackendMemory,
			FixtureFile: "../memstore/testdata/partners.yaml",
		},
		Server: config.ServerConfig{
			Port:                0,
			GraphQLMaxDepth:     5,
			GraphQLDefaultLimit: 100,
			TypeCacheSize:       4,
			Context:             map[string]any{"company": int64(1)},
			Admin:               config.AdminConfig{SchemaReloadEnabled: true, AuthToken: "reload-me"},
			HealthCheckTimeout:  time.Second,
			TLSMode:             "off",
		},
		Observability: config.ObservabilityConfig{
			ServiceName: "model-graphql",
			Logging:     config.LoggingConfig{Level: "error", Format: "text"},
		},
	}
}

func initMemoryApp(t *testing.T) *App {
	t.Helper()
	app, err := New(memoryConfig(), testLogger())
	require.NoError(t, err)
	require.NoError(t, app.Init(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = app.Shutdown(ctx)
	})
	return app
}

func TestInit_MemoryBackendServesQueries(t *testing.T) {
	app := initMemoryApp(t)
	handler := app.Handler()
	require.NotNil(t, handler)

	body := `{"query":"query Q($company: Int) { ResPartner(id: $company) { name } }"}`
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"data":{"ResPartner":[{"name":"Acme"}]}}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestInit_MemoryBackendHealthAndReload(t *testing.T) {
	app := initMemoryApp(t)
	handler := app.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/admin/reload-schema", nil)
	req.Header.Set("X-Admin-Token", "reload-me")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp reloadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.EntityTypes)
	assert.Equal(t, app.manager.Current().SourceFingerprint, resp.Fingerprint)
}

func TestInit_Idempotent(t *testing.T) {
	app := initMemoryApp(t)
	first := app.Handler()
	require.NoError(t, app.Init(context.Background()))
	assert.Equal(t, first, app.Handler())
}

func TestInit_MissingFixtureFails(t *testing.T) {
	cfg := memoryConfig()
	cfg.Store.FixtureFile = "does-not-exist.yaml"
	app, err := New(cfg, testLogger())
	require.NoError(t, err)

	err = app.Init(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load fixture")
	assert.Nil(t, app.Handler())
}

func TestWaitForDatabase(t *testing.T) {
	t.Run("zero timeout tries once", func(t *testing.T) {
		calls := 0
		err := waitForDatabase(context.Background(), 0, time.Millisecond, testLogger(), func(context.Context) error {
			calls++
			return errors.New("down")
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("retries until ready", func(t *testing.T) {
		calls := 0
		err := waitForDatabase(context.Background(), time.Second, time.Millisecond, testLogger(), func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("down")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after timeout", func(t *testing.T) {
		err := waitForDatabase(context.Background(), 20*time.Millisecond, 5*time.Millisecond, testLogger(), func(context.Context) error {
			return errors.New("down")
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database not available")
	})

	t.Run("context canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := waitForDatabase(ctx, time.Minute, time.Second, testLogger(), func(context.Context) error {
			return errors.New("down")
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
