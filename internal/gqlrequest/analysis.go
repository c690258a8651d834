package gqlrequest

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/graphql-go/graphql/language/source"
)

// Analysis stores parsed and derived GraphQL request metadata.
type Analysis struct {
	Envelope Envelope

	Document  *ast.Document
	Fragments map[string]*ast.FragmentDefinition
	Operation *ast.OperationDefinition

	RequestedOperationName string
	OperationName          string
	OperationType          string

	FieldCount     int
	SelectionDepth int
	VariableCount  int

	CanonicalOperation string
	OperationHash      string

	DecodeError     error
	ParseError      error
	SelectionError  error
	CanonicalizeErr error
}

// Parse parses a GraphQL document.
func Parse(query string) (*ast.Document, error) {
	return parser.Parse(parser.ParseParams{
		Source: source.NewSource(&source.Source{
			Body: []byte(query),
			Name: "GraphQL request",
		}),
	})
}

// AnalyzeRequest decodes and analyzes a GraphQL request payload.
func AnalyzeRequest(r *http.Request) *Analysis {
	envelope, err := DecodeEnvelope(r)
	analysis := AnalyzeEnvelope(envelope)
	if err != nil {
		analysis.DecodeError = err
	}
	return analysis
}

// AnalyzeEnvelope parses and analyzes a normalized request envelope.
func AnalyzeEnvelope(env Envelope) *Analysis {
	analysis := &Analysis{
		Envelope:               env,
		Fragments:              map[string]*ast.FragmentDefinition{},
		RequestedOperationName: env.OperationName,
	}

	if strings.TrimSpace(env.Query) == "" {
		analysis.ParseError = fmt.Errorf("request does not include a query")
		return analysis
	}

	doc, err := Parse(env.Query)
	if err != nil {
		analysis.ParseError = err
		return analysis
	}

	analysis.Document = doc
	analysis.Fragments = buildFragmentMap(doc)

	op, err := SelectOperation(doc, env.OperationName)
	if err != nil {
		analysis.SelectionError = err
		return analysis
	}

	analysis.Operation = op
	analysis.OperationName = effectiveOperationName(op)
	analysis.OperationType = op.Operation
	analysis.VariableCount = len(op.VariableDefinitions)

	walk := selectionWalk{fragments: analysis.Fragments, used: map[string]bool{}, inFlight: map[string]bool{}}
	analysis.FieldCount, analysis.SelectionDepth = walk.countFieldsAndDepth(op.SelectionSet, 1)

	canonical, hash, err := canonicalOperationAndHash(op, analysis.Fragments, walk.used)
	if err != nil {
		analysis.CanonicalizeErr = err
		return analysis
	}
	analysis.CanonicalOperation = canonical
	analysis.OperationHash = hash

	return analysis
}

// SelectOperation picks the named operation, or the first one when name is
// empty.
func SelectOperation(doc *ast.Document, name string) (*ast.OperationDefinition, error) {
	if doc == nil {
		return nil, fmt.Errorf("document is nil")
	}
	for _, def := range doc.Definitions {
		op, ok := def.(*ast.OperationDefinition)
		if !ok || op == nil {
			continue
		}
		if name == "" || (op.Name != nil && op.Name.Value == name) {
			return op, nil
		}
	}
	if name != "" {
		return nil, fmt.Errorf("unknown operation named %q", name)
	}
	return nil, fmt.Errorf("request does not include an operation")
}

func buildFragmentMap(doc *ast.Document) map[string]*ast.FragmentDefinition {
	fragments := map[string]*ast.FragmentDefinition{}
	if doc == nil {
		return fragments
	}
	for _, def := range doc.Definitions {
		fragment, ok := def.(*ast.FragmentDefinition)
		if !ok || fragment == nil || fragment.Name == nil || fragment.Name.Value == "" {
			continue
		}
		fragments[fragment.Name.Value] = fragment
	}
	return fragments
}

// selectionWalk counts fields and depth and records the fragments an
// operation reaches. Cyclic spreads are not expanded again.
type selectionWalk struct {
	fragments map[string]*ast.FragmentDefinition
	used      map[string]bool
	inFlight  map[string]bool
}

func (w *selectionWalk) countFieldsAndDepth(selectionSet *ast.SelectionSet, currentDepth int) (fields, maxDepth int) {
	if selectionSet == nil {
		return 0, currentDepth - 1
	}

	maxDepth = currentDepth
	merge := func(nestedFields, nestedDepth int) {
		fields += nestedFields
		if nestedDepth > maxDepth {
			maxDepth = nestedDepth
		}
	}
	for _, selection := range selectionSet.Selections {
		switch sel := selection.(type) {
		case *ast.Field:
			fields++
			if sel.SelectionSet != nil {
				merge(w.countFieldsAndDepth(sel.SelectionSet, currentDepth+1))
			}
		case *ast.InlineFragment:
			merge(w.countFieldsAndDepth(sel.SelectionSet, currentDepth))
		case *ast.FragmentSpread:
			if sel.Name == nil || sel.Name.Value == "" {
				continue
			}
			name := sel.Name.Value
			if w.inFlight[name] {
				continue
			}
			w.used[name] = true
			fragment, ok := w.fragments[name]
			if !ok || fragment == nil {
				continue
			}
			w.inFlight[name] = true
			merge(w.countFieldsAndDepth(fragment.SelectionSet, currentDepth))
			delete(w.inFlight, name)
		}
	}

	return fields, maxDepth
}
