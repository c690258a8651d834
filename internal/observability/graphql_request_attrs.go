package observability

import (
	"context"
	"log/slog"
	"strings"

	"github.com/graphql-go/graphql/language/ast"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"model-graphql/internal/gqlrequest"
)

// requestField is one piece of request metadata, named once for spans and
// once for logs. Exactly one of str or num is meaningful.
type requestField struct {
	spanKey string
	logKey  string
	str     string
	num     int
	isNum   bool
}

// requestFields lists the metadata worth reporting for a request, skipping
// empty values.
func requestFields(analysis *gqlrequest.Analysis, meta gqlrequest.ExecMeta) []requestField {
	var fields []requestField
	str := func(spanKey, logKey, value string) {
		if value != "" {
			fields = append(fields, requestField{spanKey: spanKey, logKey: logKey, str: value})
		}
	}
	num := func(spanKey, logKey string, value int) {
		fields = append(fields, requestField{spanKey: spanKey, logKey: logKey, num: value, isNum: true})
	}

	if analysis != nil {
		str("graphql.operation.requested_name", "operation_requested_name", analysis.RequestedOperationName)
		str("graphql.operation.name", "operation_name", analysis.OperationName)
		str("graphql.operation.type", "operation_type", analysis.OperationType)
		str("graphql.operation.hash", "operation_hash", analysis.OperationHash)
		if analysis.Envelope.DocumentSizeBytes > 0 {
			num("graphql.document.size_bytes", "document_size_bytes", analysis.Envelope.DocumentSizeBytes)
		}
		if analysis.Operation != nil {
			str("graphql.query.root_fields", "root_fields", strings.Join(rootFields(analysis.Operation), ","))
			num("graphql.query.field_count", "field_count", analysis.FieldCount)
			num("graphql.query.depth", "depth", analysis.SelectionDepth)
			num("graphql.query.variable_count", "variable_count", analysis.VariableCount)
		}
	}
	str("auth.subject", "subject", meta.Subject)
	str("schema.fingerprint", "schema_fingerprint", meta.SchemaFingerprint)
	return fields
}

// rootFields returns the top-level field names of op in document order.
// These are the GraphQL type names the executor resolves to entity types.
func rootFields(op *ast.OperationDefinition) []string {
	if op.SelectionSet == nil {
		return nil
	}
	var names []string
	seen := map[string]bool{}
	for _, sel := range op.SelectionSet.Selections {
		field, ok := sel.(*ast.Field)
		if !ok || field.Name == nil || seen[field.Name.Value] {
			continue
		}
		seen[field.Name.Value] = true
		names = append(names, field.Name.Value)
	}
	return names
}

// GraphQLSpanAttributes builds span attributes from request analysis.
func GraphQLSpanAttributes(analysis *gqlrequest.Analysis, meta gqlrequest.ExecMeta) []attribute.KeyValue {
	fields := requestFields(analysis, meta)
	attrs := make([]attribute.KeyValue, 0, len(fields))
	for _, f := range fields {
		if f.isNum {
			attrs = append(attrs, attribute.Int(f.spanKey, f.num))
			continue
		}
		attrs = append(attrs, attribute.String(f.spanKey, f.str))
	}
	return attrs
}

// GraphQLLogFields builds structured log fields from request analysis. Sizes
// and counts stay on spans; logs carry identifying fields and the trace id.
func GraphQLLogFields(ctx context.Context, analysis *gqlrequest.Analysis, meta gqlrequest.ExecMeta) []any {
	fields := requestFields(analysis, meta)
	out := make([]any, 0, len(fields)+1)
	for _, f := range fields {
		if f.isNum {
			continue
		}
		out = append(out, slog.String(f.logKey, f.str))
	}
	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
		out = append(out, slog.String("trace_id", spanCtx.TraceID().String()))
	}
	return out
}
