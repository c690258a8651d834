package gqlquery

import (
	"context"
	"errors"
	"log/slog"

	"github.com/graphql-go/graphql/language/ast"
	"go.opentelemetry.io/otel/attribute"

	"model-graphql/internal/logging"
	"model-graphql/internal/observability"
	"model-graphql/internal/store"
)

// QueryTypeName answers __typename at the root of a query.
const QueryTypeName = "Query"

// ErrNoStore is returned when a scope has no store to execute against.
var ErrNoStore = errors.New("no entity store in scope")

// Scope is the execution context of one query.
type Scope struct {
	Store store.Store
	// Variables are the ambient variables; request variables override them.
	Variables map[string]any
}

// Request carries the per-request inputs besides the document.
type Request struct {
	OperationName string
	Variables     map[string]any
}

// Config configures an Executor.
type Config struct {
	Limits        Limits
	TypeCacheSize int
}

// Executor executes query documents. It is safe for concurrent use; the only
// state shared between executions is the type-map cache.
type Executor struct {
	compiler Compiler
	typeMaps *TypeMapCache
}

// NewExecutor creates an Executor.
func NewExecutor(cfg Config) *Executor {
	return &Executor{
		compiler: Compiler{Limits: cfg.Limits},
		typeMaps: NewTypeMapCache(cfg.TypeCacheSize),
	}
}

// Execute runs the selected operation of doc against scope and returns the
// result keyed by field alias (or name).
//
// The first operation is selected unless req.OperationName names another.
// Operations other than queries are skipped: Execute returns a nil map and a
// nil error. Any error aborts execution and no partial result is returned.
func (e *Executor) Execute(ctx context.Context, scope Scope, doc *ast.Document, req Request) (map[string]any, error) {
	ctx, span := startSpan(ctx, "graphql.compile_execute")
	defer span.End()

	result, err := e.execute(ctx, scope, doc, req)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return result, nil
}

func (e *Executor) execute(ctx context.Context, scope Scope, doc *ast.Document, req Request) (map[string]any, error) {
	logger := logging.FromContext(ctx)

	op, err := selectOperation(doc, req.OperationName)
	if err != nil {
		return nil, err
	}
	if op == nil {
		return nil, nil
	}
	if op.Operation != ast.OperationTypeQuery {
		logger.Debug("skipping non-query operation", slog.String("operation_type", string(op.Operation)))
		return nil, nil
	}
	if scope.Store == nil {
		return nil, ErrNoStore
	}

	vars, err := mergeVariables(scope.Variables, op.VariableDefinitions, req.Variables)
	if err != nil {
		return nil, err
	}

	selections, err := FilterSelections(op.SelectionSet, vars, fragmentMap(doc))
	if err != nil {
		return nil, err
	}

	schema, err := scope.Store.Schema(ctx)
	if err != nil {
		return nil, err
	}
	typeMap := e.typeMaps.Get(ctx, schema)
	metrics := observability.GraphQLMetricsFromContext(ctx)

	result := map[string]any{}
	if selections == nil {
		return result, nil
	}
	for _, selection := range selections.Selections {
		field, ok := selection.(*ast.Field)
		if !ok || field.Name == nil {
			continue
		}
		name := field.Name.Value
		key := name
		if field.Alias != nil && field.Alias.Value != "" {
			key = field.Alias.Value
		}

		if name == TypeNameField {
			result[key] = QueryTypeName
			continue
		}

		entityType, ok := typeMap[name]
		if !ok {
			return nil, &UnknownTypeError{Name: name}
		}

		resolver, err := e.compiler.Compile(schema, typeMap, entityType, field, vars)
		if err != nil {
			return nil, err
		}
		if metrics != nil {
			metrics.RecordQueryDepth(ctx, int64(selectionDepth(field)), string(op.Operation))
		}

		value, err := e.resolveRoot(ctx, scope.Store, resolver, key)
		if err != nil {
			return nil, err
		}
		if metrics != nil {
			if rows, ok := value.([]any); ok {
				metrics.RecordResultsCount(ctx, int64(len(rows)), entityType)
			}
		}
		result[key] = value
	}
	return result, nil
}

func (e *Executor) resolveRoot(ctx context.Context, st store.Store, resolver *RecordResolver, key string) (any, error) {
	ctx, span := startSpan(ctx, "graphql.resolve_root",
		attribute.String("graphql.field", key),
		attribute.String("store.entity_type", resolver.EntityType),
	)
	defer span.End()

	value, err := resolver.Resolve(ctx, st, All())
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return value, nil
}

func selectOperation(doc *ast.Document, operationName string) (*ast.OperationDefinition, error) {
	if doc == nil {
		return nil, nil
	}
	for _, def := range doc.Definitions {
		op, ok := def.(*ast.OperationDefinition)
		if !ok || op == nil {
			continue
		}
		if operationName == "" {
			return op, nil
		}
		if op.Name != nil && op.Name.Value == operationName {
			return op, nil
		}
	}
	if operationName != "" {
		return nil, &UnknownOperationError{Name: operationName}
	}
	return nil, nil
}

// mergeVariables layers ambient variables, declared defaults and request
// variables. A default only fills a variable that no other layer provides.
func mergeVariables(ambient map[string]any, defs []*ast.VariableDefinition, request map[string]any) (map[string]any, error) {
	vars := make(map[string]any, len(ambient)+len(request)+len(defs))
	for k, v := range ambient {
		vars[k] = v
	}
	for k, v := range request {
		vars[k] = v
	}
	for _, def := range defs {
		if def == nil || def.Variable == nil || def.Variable.Name == nil || def.DefaultValue == nil {
			continue
		}
		name := def.Variable.Name.Value
		if _, ok := vars[name]; ok {
			continue
		}
		value, err := DecodeValue(def.DefaultValue, nil)
		if err != nil {
			return nil, err
		}
		vars[name] = value
	}
	return vars, nil
}
