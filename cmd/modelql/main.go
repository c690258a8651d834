// Command modelql runs one GraphQL query against a YAML fixture and prints
// the JSON result.
//
//	modelql --fixture partners.yaml --query '{ ResPartner(limit: 2) { name } }'
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/graphql-go/graphql/gqlerrors"
	"github.com/spf13/pflag"

	"model-graphql/internal/gqlquery"
	"model-graphql/internal/gqlrequest"
	"model-graphql/internal/logging"
	"model-graphql/internal/memstore"
)

const (
	exitOK    = 0
	exitQuery = 1
	exitUsage = 2
)

type options struct {
	fixture      string
	query        string
	queryFile    string
	variables    string
	context      string
	operation    string
	maxDepth     int
	defaultLimit int
	logLevel     string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var opts options
	fs := pflag.NewFlagSet("modelql", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&opts.fixture, "fixture", "f", "", "YAML fixture with models and records (required)")
	fs.StringVarP(&opts.query, "query", "q", "", "GraphQL query document")
	fs.StringVar(&opts.queryFile, "query-file", "", "Read the query from a file (- for stdin)")
	fs.StringVar(&opts.variables, "variables", "", "Request variables as a JSON object")
	fs.StringVar(&opts.context, "context", "", "Ambient variables as a JSON object")
	fs.StringVarP(&opts.operation, "operation", "o", "", "Operation to run when the document has several")
	fs.IntVar(&opts.maxDepth, "max-depth", 0, "Reject selections deeper than this (0 disables)")
	fs.IntVar(&opts.defaultLimit, "default-limit", 0, "Limit for root selections without one (0 disables)")
	fs.StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	logger := logging.NewLogger(logging.Config{Level: opts.logLevel, Format: "text", Output: stderr})
	ctx := logging.WithLogger(context.Background(), logger)

	req, scopeVars, err := opts.request(stdin)
	if err != nil {
		fmt.Fprintf(stderr, "modelql: %v\n", err)
		return exitUsage
	}

	st, err := memstore.LoadFixtureFile(opts.fixture)
	if err != nil {
		fmt.Fprintf(stderr, "modelql: %v\n", err)
		return exitUsage
	}

	doc, err := gqlrequest.Parse(req.query)
	if err != nil {
		writeResult(stdout, map[string]any{"errors": []gqlerrors.FormattedError{
			formatError(err.Error(), "GRAPHQL_PARSE_FAILED"),
		}})
		return exitQuery
	}

	executor := gqlquery.NewExecutor(gqlquery.Config{
		Limits: gqlquery.Limits{MaxDepth: opts.maxDepth, DefaultLimit: opts.defaultLimit},
	})
	data, err := executor.Execute(ctx, gqlquery.Scope{Store: st, Variables: scopeVars}, doc, gqlquery.Request{
		OperationName: opts.operation,
		Variables:     req.variables,
	})
	if err != nil {
		code := "INTERNAL_SERVER_ERROR"
		var coded gqlquery.CodedError
		if errors.As(err, &coded) {
			code = coded.Code()
		}
		writeResult(stdout, map[string]any{"errors": []gqlerrors.FormattedError{formatError(err.Error(), code)}})
		return exitQuery
	}

	writeResult(stdout, map[string]any{"data": data})
	return exitOK
}

type request struct {
	query     string
	variables map[string]any
}

func (o options) request(stdin io.Reader) (request, map[string]any, error) {
	if o.fixture == "" {
		return request{}, nil, errors.New("--fixture is required")
	}

	var req request
	switch {
	case o.query != "" && o.queryFile != "":
		return request{}, nil, errors.New("use only one of --query and --query-file")
	case o.query != "":
		req.query = o.query
	case o.queryFile == "-":
		body, err := io.ReadAll(stdin)
		if err != nil {
			return request{}, nil, fmt.Errorf("failed to read query from stdin: %w", err)
		}
		req.query = string(body)
	case o.queryFile != "":
		body, err := os.ReadFile(o.queryFile)
		if err != nil {
			return request{}, nil, fmt.Errorf("failed to read query file: %w", err)
		}
		req.query = string(body)
	}
	if strings.TrimSpace(req.query) == "" {
		return request{}, nil, errors.New("a query is required (--query or --query-file)")
	}

	var err error
	if req.variables, err = decodeObject("--variables", o.variables); err != nil {
		return request{}, nil, err
	}
	scopeVars, err := decodeObject("--context", o.context)
	if err != nil {
		return request{}, nil, err
	}
	return req, scopeVars, nil
}

func decodeObject(flag, raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	vars, err := gqlrequest.DecodeVariables([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", flag, err)
	}
	return vars, nil
}

func formatError(message, code string) gqlerrors.FormattedError {
	return gqlerrors.FormattedError{Message: message, Extensions: map[string]any{"code": code}}
}

func writeResult(w io.Writer, payload map[string]any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
