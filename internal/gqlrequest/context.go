package gqlrequest

import "context"

type analysisContextKey struct{}
type execMetaContextKey struct{}

// ExecMeta is the execution metadata fixed once a request is bound to a
// schema snapshot.
type ExecMeta struct {
	SchemaFingerprint string
	Subject           string

	OperationName string
	OperationType string
	OperationHash string
}

// NewExecMeta derives execution metadata from an analysis.
func NewExecMeta(analysis *Analysis, schemaFingerprint, subject string) ExecMeta {
	meta := ExecMeta{SchemaFingerprint: schemaFingerprint, Subject: subject}
	if analysis != nil {
		meta.OperationName = analysis.OperationName
		meta.OperationType = analysis.OperationType
		meta.OperationHash = analysis.OperationHash
	}
	return meta
}

// WithAnalysis stores GraphQL request analysis in context.
func WithAnalysis(ctx context.Context, analysis *Analysis) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, analysisContextKey{}, analysis)
}

// AnalysisFromContext retrieves GraphQL request analysis from context.
func AnalysisFromContext(ctx context.Context) *Analysis {
	if ctx == nil {
		return nil
	}
	analysis, _ := ctx.Value(analysisContextKey{}).(*Analysis)
	return analysis
}

func WithExecMeta(ctx context.Context, meta ExecMeta) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, execMetaContextKey{}, meta)
}

func ExecMetaFromContext(ctx context.Context) (ExecMeta, bool) {
	if ctx == nil {
		return ExecMeta{}, false
	}
	meta, ok := ctx.Value(execMetaContextKey{}).(ExecMeta)
	return meta, ok
}
