package gqlrequest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeEnvelope(t *testing.T) {
	tests := []struct {
		name             string
		query            string
		operationName    string
		wantParseErr     bool
		wantSelectionErr bool
		wantType         string
		wantFields       int
		wantDepth        int
		wantVars         int
		wantResolvedName string
	}{
		{
			name:             "anonymous query",
			query:            `{ ResPartner { name parent_id { name } } }`,
			wantType:         "query",
			wantFields:       4,
			wantDepth:        3,
			wantResolvedName: anonymousOperationName,
		},
		{
			name:             "named query with variables",
			query:            `query Partners($ids: [ID], $limit: Int) { ResPartner(ids: $ids, limit: $limit) { id } }`,
			wantType:         "query",
			wantFields:       2,
			wantDepth:        2,
			wantVars:         2,
			wantResolvedName: "Partners",
		},
		{
			name: "multiple operations without name selects the first",
			query: `
				query First { ResPartner { id } }
				query Second { SaleOrder { id name } }
			`,
			wantType:         "query",
			wantFields:       2,
			wantDepth:        2,
			wantResolvedName: "First",
		},
		{
			name: "multiple operations with name",
			query: `
				query First { ResPartner { id } }
				query Second { SaleOrder { id name } }
			`,
			operationName:    "Second",
			wantType:         "query",
			wantFields:       3,
			wantDepth:        2,
			wantResolvedName: "Second",
		},
		{
			name:             "unknown operation name",
			query:            `query First { ResPartner { id } }`,
			operationName:    "Missing",
			wantSelectionErr: true,
		},
		{
			name:             "fragments only",
			query:            `fragment F on ResPartner { id }`,
			wantSelectionErr: true,
		},
		{
			name:         "malformed query",
			query:        `query { ResPartner { `,
			wantParseErr: true,
		},
		{
			name:         "empty query",
			query:        "   ",
			wantParseErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis := AnalyzeEnvelope(Envelope{Query: tt.query, OperationName: tt.operationName})
			assert.Equal(t, tt.wantParseErr, analysis.ParseError != nil, "parse error: %v", analysis.ParseError)
			assert.Equal(t, tt.wantSelectionErr, analysis.SelectionError != nil, "selection error: %v", analysis.SelectionError)
			if tt.wantParseErr || tt.wantSelectionErr {
				assert.Empty(t, analysis.OperationHash)
				return
			}
			assert.Equal(t, tt.wantType, analysis.OperationType)
			assert.Equal(t, tt.wantFields, analysis.FieldCount)
			assert.Equal(t, tt.wantDepth, analysis.SelectionDepth)
			assert.Equal(t, tt.wantVars, analysis.VariableCount)
			assert.Equal(t, tt.wantResolvedName, analysis.OperationName)
			assert.NotEmpty(t, analysis.OperationHash)
			assert.NotEmpty(t, analysis.CanonicalOperation)
		})
	}
}

func TestAnalyzeEnvelope_FragmentCycleSafe(t *testing.T) {
	query := `
		fragment A on ResPartner { id ...B }
		fragment B on ResPartner { name ...A }
		query { ResPartner { ...A } }
	`
	analysis := AnalyzeEnvelope(Envelope{Query: query})
	require.NoError(t, analysis.ParseError)
	require.NoError(t, analysis.SelectionError)
	assert.Equal(t, 3, analysis.FieldCount)
	assert.Contains(t, analysis.CanonicalOperation, "fragment A")
	assert.Contains(t, analysis.CanonicalOperation, "fragment B")
}

func TestOperationHash_WhitespaceAndCommentsInsensitive(t *testing.T) {
	a := AnalyzeEnvelope(Envelope{Query: "query P {\n  ResPartner { id name }\n}\n"})
	b := AnalyzeEnvelope(Envelope{Query: "# comment\nquery P { ResPartner { id, name } }"})
	require.NotEmpty(t, a.OperationHash)
	assert.Equal(t, a.OperationHash, b.OperationHash)
}

func TestOperationHash_IgnoresUnusedFragments(t *testing.T) {
	a := AnalyzeEnvelope(Envelope{Query: `query P { ResPartner { ...F } } fragment F on ResPartner { id }`})
	b := AnalyzeEnvelope(Envelope{Query: `query P { ResPartner { ...F } } fragment F on ResPartner { id } fragment G on ResPartner { name }`})
	require.NotEmpty(t, a.OperationHash)
	assert.Equal(t, a.OperationHash, b.OperationHash)
	assert.NotContains(t, b.CanonicalOperation, "fragment G")
}

func TestOperationHash_MultiOperationSelection(t *testing.T) {
	query := `query A { ResPartner { id } } query B { SaleOrder { id name } }`
	a := AnalyzeEnvelope(Envelope{Query: query, OperationName: "A"})
	b := AnalyzeEnvelope(Envelope{Query: query, OperationName: "B"})
	require.NotEmpty(t, a.OperationHash)
	require.NotEmpty(t, b.OperationHash)
	assert.NotEqual(t, a.OperationHash, b.OperationHash)
}

func TestFramedHashDisambiguatesTuples(t *testing.T) {
	assert.NotEqual(t, framedSHA256("ab", "c"), framedSHA256("a", "bc"))
}

func TestAnalyzeRequest_DecodeError(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":`))
	req.Header.Set("Content-Type", "application/json")

	analysis := AnalyzeRequest(req)
	assert.Error(t, analysis.DecodeError)
}

func TestExecMetaContext(t *testing.T) {
	analysis := AnalyzeEnvelope(Envelope{Query: `query P { ResPartner { id } }`})
	meta := NewExecMeta(analysis, "fp", "alice")

	ctx := WithExecMeta(context.Background(), meta)
	got, ok := ExecMetaFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "P", got.OperationName)
	assert.Equal(t, "query", got.OperationType)
	assert.Equal(t, analysis.OperationHash, got.OperationHash)
	assert.Equal(t, "alice", got.Subject)

	_, ok = ExecMetaFromContext(context.Background())
	assert.False(t, ok)

	ctx = WithAnalysis(context.Background(), analysis)
	assert.Same(t, analysis, AnalysisFromContext(ctx))
}
