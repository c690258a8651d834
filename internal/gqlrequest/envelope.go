package gqlrequest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

// Envelope is the transport-independent payload of a GraphQL request.
type Envelope struct {
	Method      string
	ContentType string

	Query         string
	OperationName string
	VariablesRaw  json.RawMessage
	Variables     map[string]any

	DocumentSizeBytes int
}

// DecodeEnvelope extracts GraphQL payload fields from an HTTP request and
// rewinds the body so downstream handlers can read it again.
//
// GET reads query, operationName and variables from the URL. POST accepts
// a JSON body or a raw application/graphql document.
func DecodeEnvelope(r *http.Request) (Envelope, error) {
	if r == nil {
		return Envelope{}, fmt.Errorf("request is nil")
	}

	env := Envelope{
		Method:      r.Method,
		ContentType: r.Header.Get("Content-Type"),
	}

	if r.Method == http.MethodGet {
		params := r.URL.Query()
		env.Query = params.Get("query")
		env.OperationName = params.Get("operationName")
		env.DocumentSizeBytes = len(env.Query)
		if raw := strings.TrimSpace(params.Get("variables")); raw != "" {
			env.VariablesRaw = json.RawMessage(raw)
		}
		return env, env.decodeVariables()
	}

	if r.Method != http.MethodPost || r.Body == nil {
		return env, nil
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return env, err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	mediaType, _, parseErr := mime.ParseMediaType(env.ContentType)
	if parseErr != nil || mediaType == "" {
		mediaType = strings.TrimSpace(env.ContentType)
	}

	switch mediaType {
	case "application/graphql":
		env.Query = string(body)
	default:
		trimmed := bytes.TrimSpace(body)
		if len(trimmed) == 0 {
			break
		}
		var payload struct {
			Query         string          `json:"query"`
			OperationName string          `json:"operationName"`
			Variables     json.RawMessage `json:"variables"`
		}
		if err := json.Unmarshal(trimmed, &payload); err != nil {
			return env, err
		}
		env.Query = payload.Query
		env.OperationName = payload.OperationName
		env.VariablesRaw = append(json.RawMessage(nil), payload.Variables...)
	}

	env.DocumentSizeBytes = len(env.Query)
	return env, env.decodeVariables()
}

func (env *Envelope) decodeVariables() error {
	raw := bytes.TrimSpace(env.VariablesRaw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		env.VariablesRaw = nil
		return nil
	}
	vars, err := DecodeVariables(raw)
	if err != nil {
		return err
	}
	env.Variables = vars
	return nil
}

// DecodeVariables decodes a JSON variables object. Integral numbers become
// int64 and other numbers float64, so ids survive the round trip.
func DecodeVariables(raw []byte) (map[string]any, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var vars map[string]any
	if err := decoder.Decode(&vars); err != nil {
		return nil, fmt.Errorf("invalid variables: %w", err)
	}
	for key, value := range vars {
		vars[key] = normalizeNumbers(value)
	}
	return vars, nil
}

func normalizeNumbers(v any) any {
	switch value := v.(type) {
	case json.Number:
		if i, err := value.Int64(); err == nil {
			return i
		}
		if f, err := value.Float64(); err == nil {
			return f
		}
		return value.String()
	case []any:
		for i := range value {
			value[i] = normalizeNumbers(value[i])
		}
		return value
	case map[string]any:
		for key := range value {
			value[key] = normalizeNumbers(value[key])
		}
		return value
	}
	return v
}
