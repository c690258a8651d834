package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SecurityMetrics counts bearer authentication outcomes and admin endpoint
// use. A nil *SecurityMetrics records nothing.
type SecurityMetrics struct {
	authAttempts         metric.Int64Counter
	authFailures         metric.Int64Counter
	authSuccesses        metric.Int64Counter
	adminEndpointAccess  metric.Int64Counter
	unauthorizedAttempts metric.Int64Counter
}

// InitSecurityMetrics initializes security-specific metrics
func InitSecurityMetrics() (*SecurityMetrics, error) {
	meter := otel.Meter("model-graphql/security")

	counters := []struct {
		target      *metric.Int64Counter
		name        string
		description string
	}{
		{nil, "security.auth.attempts.total", "Total number of authentication attempts"},
		{nil, "security.auth.failures.total", "Total number of authentication failures"},
		{nil, "security.auth.successes.total", "Total number of successful authentications"},
		{nil, "security.admin.access.total", "Total number of admin endpoint calls"},
		{nil, "security.unauthorized.attempts.total", "Total number of unauthorized access attempts"},
	}
	m := &SecurityMetrics{}
	counters[0].target = &m.authAttempts
	counters[1].target = &m.authFailures
	counters[2].target = &m.authSuccesses
	counters[3].target = &m.adminEndpointAccess
	counters[4].target = &m.unauthorizedAttempts

	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.description))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s counter: %w", c.name, err)
		}
		*c.target = counter
	}
	return m, nil
}

// RecordAuthAttempt records an authentication attempt
func (m *SecurityMetrics) RecordAuthAttempt(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	m.authAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String("endpoint", endpoint)))
}

// RecordAuthFailure records a failed authentication. The failure also counts
// as an unauthorized attempt against the endpoint.
func (m *SecurityMetrics) RecordAuthFailure(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("reason", reason),
	)
	m.authFailures.Add(ctx, 1, attrs)
	m.unauthorizedAttempts.Add(ctx, 1, attrs)
}

// RecordAuthSuccess records a successful authentication
func (m *SecurityMetrics) RecordAuthSuccess(ctx context.Context, endpoint, issuer string) {
	if m == nil {
		return
	}
	m.authSuccesses.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("issuer", issuer),
	))
}

// RecordAdminEndpointAccess records a call to an admin endpoint.
func (m *SecurityMetrics) RecordAdminEndpointAccess(ctx context.Context, operation string, success bool) {
	if m == nil {
		return
	}
	m.adminEndpointAccess.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.Bool("success", success),
	))
}
