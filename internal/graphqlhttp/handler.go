// Package graphqlhttp serves the query engine over HTTP.
package graphqlhttp

import (
	"encoding/json"
	"errors"
	"log/slog"
	"maps"
	"net/http"

	"github.com/graphql-go/graphql/gqlerrors"

	"model-graphql/internal/gqlquery"
	"model-graphql/internal/gqlrequest"
	"model-graphql/internal/logging"
	"model-graphql/internal/middleware"
	"model-graphql/internal/store"
)

// Error codes for failures outside the engine.
const (
	CodeBadRequest  = "BAD_REQUEST"
	CodeParseFailed = "GRAPHQL_PARSE_FAILED"
	CodeInternal    = "INTERNAL_SERVER_ERROR"
)

// Ambient variable names filled from the authenticated identity.
const (
	SubjectVariable = "uid"
	ClaimsVariable  = "claims"
)

// Config configures a Handler.
type Config struct {
	Executor *gqlquery.Executor
	Store    store.Store
	// Context holds ambient variables visible to every query.
	Context map[string]any
}

// Handler executes GraphQL queries received over GET or POST.
type Handler struct {
	executor *gqlquery.Executor
	store    store.Store
	ambient  map[string]any
}

// NewHandler creates a Handler.
func NewHandler(cfg Config) (*Handler, error) {
	if cfg.Executor == nil {
		return nil, errors.New("graphql handler requires an executor")
	}
	if cfg.Store == nil {
		return nil, errors.New("graphql handler requires a store")
	}
	return &Handler{
		executor: cfg.Executor,
		store:    cfg.Store,
		ambient:  maps.Clone(cfg.Context),
	}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, POST")
		writeErrors(w, http.StatusMethodNotAllowed, codedError("method not allowed", CodeBadRequest))
		return
	}

	ctx := r.Context()
	analysis := gqlrequest.AnalysisFromContext(ctx)
	if analysis == nil {
		analysis = gqlrequest.AnalyzeRequest(r)
	}
	switch {
	case analysis.DecodeError != nil:
		writeErrors(w, http.StatusBadRequest, codedError("invalid request: "+analysis.DecodeError.Error(), CodeBadRequest))
		return
	case analysis.ParseError != nil:
		formatted := gqlerrors.FormatError(analysis.ParseError)
		formatted.Extensions = map[string]any{"code": CodeParseFailed}
		writeErrors(w, http.StatusBadRequest, formatted)
		return
	}

	scope := gqlquery.Scope{Store: h.store, Variables: h.scopeVariables(r)}
	result, err := h.executor.Execute(ctx, scope, analysis.Document, gqlquery.Request{
		OperationName: analysis.Envelope.OperationName,
		Variables:     analysis.Envelope.Variables,
	})
	if err != nil {
		status, formatted := formatExecutionError(err)
		if status >= http.StatusInternalServerError {
			logging.FromContext(ctx).Error("graphql execution failed", slog.String("error", err.Error()))
		}
		writeErrors(w, status, formatted)
		return
	}

	var data any
	if result != nil {
		data = result
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": data})
}

// scopeVariables layers the identity over the configured ambient context.
func (h *Handler) scopeVariables(r *http.Request) map[string]any {
	vars := maps.Clone(h.ambient)
	if vars == nil {
		vars = map[string]any{}
	}
	if auth, ok := middleware.AuthFromContext(r.Context()); ok {
		vars[SubjectVariable] = auth.Subject
		vars[ClaimsVariable] = auth.Claims
	}
	return vars
}

// formatExecutionError maps engine and store errors to GraphQL errors.
// Anything unrecognized is reported without detail.
func formatExecutionError(err error) (int, gqlerrors.FormattedError) {
	var coded gqlquery.CodedError
	if errors.As(err, &coded) {
		return http.StatusOK, codedError(err.Error(), coded.Code())
	}
	switch {
	case errors.Is(err, store.ErrUnknownEntityType):
		return http.StatusOK, codedError(err.Error(), gqlquery.CodeUnknownType)
	case errors.Is(err, store.ErrUnknownAttribute):
		return http.StatusOK, codedError(err.Error(), gqlquery.CodeUnknownAttribute)
	case errors.Is(err, store.ErrUnsupportedOperator),
		errors.Is(err, store.ErrInvalidFilter),
		errors.Is(err, store.ErrInvalidOrder):
		return http.StatusOK, codedError(err.Error(), gqlquery.CodeInvalidArgument)
	}
	return http.StatusInternalServerError, codedError("internal error", CodeInternal)
}

func codedError(message, code string) gqlerrors.FormattedError {
	return gqlerrors.FormattedError{
		Message:    message,
		Extensions: map[string]any{"code": code},
	}
}

func writeErrors(w http.ResponseWriter, status int, errs ...gqlerrors.FormattedError) {
	writeJSON(w, status, map[string]any{"errors": errs})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
