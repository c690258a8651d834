package schemarefresh

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"model-graphql/internal/logging"
	"model-graphql/internal/store"
)

type fakeSource struct {
	mu             sync.Mutex
	fingerprint    string
	fingerprintErr error
	loadErr        error
	models         []*store.Model
	loads          int
}

func (f *fakeSource) Fingerprint(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fingerprint, f.fingerprintErr
}

func (f *fakeSource) Load(context.Context) (*store.Schema, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return store.NewSchema(f.models...), nil
}

func (f *fakeSource) set(fingerprint string, models ...*store.Model) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fingerprint = fingerprint
	f.models = models
}

func (f *fakeSource) loadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads
}

func testLogger() *logging.Logger {
	handler := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelInfo})
	return &logging.Logger{Logger: slog.New(handler)}
}

func newTestManager(t *testing.T, source *fakeSource) *Manager {
	t.Helper()
	m, err := NewManager(context.Background(), Config{
		Source:      source,
		Logger:      testLogger(),
		MinInterval: time.Minute,
		MaxInterval: 4 * time.Minute,
	})
	require.NoError(t, err)
	return m
}

func TestNewManager_LoadsInitialSnapshot(t *testing.T) {
	source := &fakeSource{fingerprint: "v1", models: []*store.Model{store.NewModel("res.partner")}}

	m := newTestManager(t, source)

	snapshot := m.Current()
	require.NotNil(t, snapshot)
	assert.Equal(t, "v1", snapshot.SourceFingerprint)
	assert.Equal(t, []string{"res.partner"}, snapshot.Schema.EntityTypes())

	schema, err := m.Schema(context.Background())
	require.NoError(t, err)
	assert.Same(t, snapshot.Schema, schema)
}

func TestNewManager_Errors(t *testing.T) {
	_, err := NewManager(context.Background(), Config{})
	assert.Error(t, err)

	_, err = NewManager(context.Background(), Config{
		Source: &fakeSource{loadErr: assert.AnError},
		Logger: testLogger(),
	})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestManager_SchemaBeforeLoad(t *testing.T) {
	var m Manager
	_, err := m.Schema(context.Background())
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestRefreshOnce_NoChangeBacksOff(t *testing.T) {
	source := &fakeSource{fingerprint: "v1"}
	m := newTestManager(t, source)

	next := m.refreshOnce(context.Background(), time.Minute)

	assert.Equal(t, 90*time.Second, next)
	assert.Equal(t, 1, source.loadCount())
}

func TestRefreshOnce_ChangeSwapsSnapshot(t *testing.T) {
	source := &fakeSource{fingerprint: "v1"}
	m := newTestManager(t, source)
	before := m.Current()

	source.set("v2", store.NewModel("sale.order"))
	next := m.refreshOnce(context.Background(), 3*time.Minute)

	assert.Equal(t, time.Minute, next)
	after := m.Current()
	assert.NotSame(t, before, after)
	assert.Equal(t, "v2", after.SourceFingerprint)
	assert.Equal(t, []string{"sale.order"}, after.Schema.EntityTypes())
}

func TestRefreshOnce_FailureKeepsSnapshot(t *testing.T) {
	source := &fakeSource{fingerprint: "v1"}
	m := newTestManager(t, source)
	before := m.Current()

	source.mu.Lock()
	source.fingerprint = "v2"
	source.loadErr = assert.AnError
	source.mu.Unlock()

	next := m.refreshOnce(context.Background(), 3*time.Minute)

	assert.Equal(t, time.Minute, next)
	assert.Same(t, before, m.Current())
}

func TestRefreshOnce_FingerprintFailure(t *testing.T) {
	source := &fakeSource{fingerprint: "v1"}
	m := newTestManager(t, source)

	source.mu.Lock()
	source.fingerprintErr = assert.AnError
	source.mu.Unlock()

	assert.Equal(t, time.Minute, m.refreshOnce(context.Background(), 3*time.Minute))
	assert.Equal(t, 1, source.loadCount())
}

func TestRefreshNow_ReloadsWithoutChange(t *testing.T) {
	source := &fakeSource{fingerprint: "v1"}
	m := newTestManager(t, source)

	snapshot, err := m.RefreshNow(context.Background())
	require.NoError(t, err)
	assert.Same(t, snapshot, m.Current())
	assert.Equal(t, 2, source.loadCount())
}

func TestNextInterval(t *testing.T) {
	assert.Equal(t, time.Minute, nextInterval(10*time.Second, time.Minute, 4*time.Minute))
	assert.Equal(t, 3*time.Minute, nextInterval(2*time.Minute, time.Minute, 4*time.Minute))
	assert.Equal(t, 4*time.Minute, nextInterval(3*time.Minute, time.Minute, 4*time.Minute))
}

func TestStartAndWait(t *testing.T) {
	source := &fakeSource{fingerprint: "v1"}
	m := newTestManager(t, source)

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	cancel()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), time.Second)
	defer waitCancel()
	require.NoError(t, m.Wait(waitCtx))
}

func TestStart_Disabled(t *testing.T) {
	m, err := NewManager(context.Background(), Config{
		Source:      &fakeSource{fingerprint: "v1"},
		Logger:      testLogger(),
		MinInterval: -1,
	})
	require.NoError(t, err)

	m.Start(context.Background())
	require.NoError(t, m.Wait(context.Background()))
}
