package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurityMetrics_NilSafe(t *testing.T) {
	var m *SecurityMetrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordAuthAttempt(ctx, "/graphql")
		m.RecordAuthFailure(ctx, "/graphql", "missing_token")
		m.RecordAuthSuccess(ctx, "/graphql", "https://issuer")
		m.RecordAdminEndpointAccess(ctx, "reload_schema", true)
	})
}

func TestInitSecurityMetrics(t *testing.T) {
	m, err := InitSecurityMetrics()
	require.NoError(t, err)
	assert.NotNil(t, m.authAttempts)
	assert.NotNil(t, m.unauthorizedAttempts)
	assert.NotPanics(t, func() {
		m.RecordAuthFailure(context.Background(), "/graphql", "invalid_token")
	})
}
