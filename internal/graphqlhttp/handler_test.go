package graphqlhttp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"model-graphql/internal/gqlquery"
	"model-graphql/internal/memstore"
	"model-graphql/internal/middleware"
	"model-graphql/internal/store"
)

func newTestHandler(t *testing.T, st store.Store, ambient map[string]any) *Handler {
	t.Helper()
	if st == nil {
		var err error
		st, err = memstore.LoadFixtureFile("../memstore/testdata/partners.yaml")
		require.NoError(t, err)
	}
	h, err := NewHandler(Config{
		Executor: gqlquery.NewExecutor(gqlquery.Config{Limits: gqlquery.Limits{MaxDepth: 4}}),
		Store:    st,
		Context:  ambient,
	})
	require.NoError(t, err)
	return h
}

func postJSON(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandler_PostQuery(t *testing.T) {
	h := newTestHandler(t, nil, nil)

	rec := postJSON(t, h, `{
		"query": "query Orders($min: Float) { SaleOrder(domain: [[\"amount\", \">\", $min]], order: \"amount desc\") { name partner_id { name } } }",
		"variables": {"min": 50}
	}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data": {"SaleOrder": [
		{"name": "SO010", "partner_id": {"name": "Bob"}},
		{"name": "SO011", "partner_id": {"name": "Bob"}}
	]}}`, rec.Body.String())
}

func TestHandler_GetQuery(t *testing.T) {
	h := newTestHandler(t, nil, nil)

	params := url.Values{}
	params.Set("query", `query A { ResPartner(id: 4) { name } } query B { SaleOrder(id: 12) { name } }`)
	params.Set("operationName", "B")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/graphql?"+params.Encode(), nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data": {"SaleOrder": [{"name": "SO012"}]}}`, rec.Body.String())
}

func TestHandler_ApplicationGraphQL(t *testing.T) {
	h := newTestHandler(t, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{ __typename ResPartner(id: 1) { id } }`))
	req.Header.Set("Content-Type", "application/graphql")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data": {"__typename": "Query", "ResPartner": [{"id": 1}]}}`, rec.Body.String())
}

func TestHandler_SkippedOperation(t *testing.T) {
	h := newTestHandler(t, nil, nil)

	rec := postJSON(t, h, `{"query": "mutation { ResPartner { id } }"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data": null}`, rec.Body.String())
}

func TestHandler_AmbientAndIdentityVariables(t *testing.T) {
	h := newTestHandler(t, nil, map[string]any{"company": int64(1), "uid": "overridden"})

	body := `{"query": "query Me($uid: String, $company: ID) { ResPartner(domain: [[\"name\", \"=\", $uid]]) { name } parent: ResPartner(id: $company) { name } }"}`
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(middleware.WithAuthContext(context.Background(), middleware.AuthContext{
		Subject: "Dave",
		Claims:  map[string]any{"sub": "Dave"},
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data": {"ResPartner": [{"name": "Dave"}], "parent": [{"name": "Acme"}]}}`, rec.Body.String())
}

func TestHandler_RequestVariablesOverrideAmbient(t *testing.T) {
	h := newTestHandler(t, nil, map[string]any{"pid": int64(1)})

	rec := postJSON(t, h, `{"query": "query($pid: ID) { ResPartner(id: $pid) { name } }", "variables": {"pid": 4}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data": {"ResPartner": [{"name": "Dave"}]}}`, rec.Body.String())
}

func TestHandler_Errors(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		body       string
		wantStatus int
		wantCode   string
	}{
		{name: "method not allowed", method: http.MethodPut, body: `{}`, wantStatus: http.StatusMethodNotAllowed, wantCode: CodeBadRequest},
		{name: "malformed json", method: http.MethodPost, body: `{"query":`, wantStatus: http.StatusBadRequest, wantCode: CodeBadRequest},
		{name: "parse failure", method: http.MethodPost, body: `{"query":"{ ResPartner { "}`, wantStatus: http.StatusBadRequest, wantCode: CodeParseFailed},
		{name: "empty query", method: http.MethodPost, body: `{"query":""}`, wantStatus: http.StatusBadRequest, wantCode: CodeParseFailed},
		{name: "unknown type", method: http.MethodPost, body: `{"query":"{ Nope { id } }"}`, wantStatus: http.StatusOK, wantCode: gqlquery.CodeUnknownType},
		{name: "unknown attribute", method: http.MethodPost, body: `{"query":"{ ResPartner { nope } }"}`, wantStatus: http.StatusOK, wantCode: gqlquery.CodeUnknownAttribute},
		{name: "unknown operation", method: http.MethodPost, body: `{"query":"query A { ResPartner { id } }","operationName":"B"}`, wantStatus: http.StatusOK, wantCode: gqlquery.CodeUnknownOperation},
		{name: "depth limit", method: http.MethodPost, body: `{"query":"{ ResPartner { child_ids { child_ids { child_ids { child_ids { id } } } } } }"}`, wantStatus: http.StatusOK, wantCode: gqlquery.CodeDepthLimit},
		{name: "bad operator", method: http.MethodPost, body: `{"query":"{ ResPartner(domain: [[\"name\", \"~\", 1]]) { id } }"}`, wantStatus: http.StatusOK, wantCode: gqlquery.CodeInvalidArgument},
	}

	h := newTestHandler(t, nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/graphql", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), `"code":"`+tt.wantCode+`"`)
			assert.NotContains(t, rec.Body.String(), `"data"`)
		})
	}
}

type failingStore struct{ store.Store }

func (f failingStore) Search(context.Context, string, store.Filter, store.Options) ([]store.ID, error) {
	return nil, errors.New("connection reset by peer")
}

func TestHandler_InternalErrorHidesDetail(t *testing.T) {
	st, err := memstore.LoadFixtureFile("../memstore/testdata/partners.yaml")
	require.NoError(t, err)
	h := newTestHandler(t, failingStore{Store: st}, nil)

	rec := postJSON(t, h, `{"query":"{ ResPartner { id } }"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"INTERNAL_SERVER_ERROR"`)
	assert.NotContains(t, rec.Body.String(), "connection reset")
}

func TestNewHandler_Validates(t *testing.T) {
	_, err := NewHandler(Config{})
	assert.Error(t, err)
	_, err = NewHandler(Config{Executor: gqlquery.NewExecutor(gqlquery.Config{})})
	assert.Error(t, err)
}
