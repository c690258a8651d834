package gqlquery

import (
	"testing"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fieldNames(set *ast.SelectionSet) []string {
	var names []string
	if set == nil {
		return names
	}
	for _, sel := range set.Selections {
		if f, ok := sel.(*ast.Field); ok {
			names = append(names, f.Name.Value)
		}
	}
	return names
}

func filterQuery(t *testing.T, query string, vars map[string]any) *ast.SelectionSet {
	t.Helper()
	doc := mustParse(t, query)
	op := doc.Definitions[0].(*ast.OperationDefinition)
	set, err := FilterSelections(op.SelectionSet, vars, fragmentMap(doc))
	require.NoError(t, err)
	return set
}

func TestFilterSelections_IncludeSkip(t *testing.T) {
	tests := []struct {
		name  string
		query string
		vars  map[string]any
		want  []string
	}{
		{"no directives", `{ a b }`, nil, []string{"a", "b"}},
		{"skip true", `{ a b @skip(if: true) }`, nil, []string{"a"}},
		{"skip false", `{ a b @skip(if: false) }`, nil, []string{"a", "b"}},
		{"include false", `{ a @include(if: false) b }`, nil, []string{"b"}},
		{"include variable", `query($f: Boolean) { a @include(if: $f) b }`, map[string]any{"f": true}, []string{"a", "b"}},
		{"include absent variable", `query($f: Boolean) { a @include(if: $f) b }`, map[string]any{}, []string{"b"}},
		{"last wins include", `{ a @skip(if: true) @include(if: true) }`, nil, []string{"a"}},
		{"last wins skip", `{ a @include(if: true) @skip(if: true) }`, nil, []string{}},
		{"other directives ignored", `{ a @deprecated b }`, nil, []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := filterQuery(t, tt.query, tt.vars)
			names := fieldNames(set)
			if len(tt.want) == 0 {
				assert.Empty(t, names)
				return
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestFilterSelections_PrunesSubtree(t *testing.T) {
	set := filterQuery(t, `{ Partner { id parent @skip(if: true) { id name } children { id name @include(if: false) } } }`, nil)

	partner := set.Selections[0].(*ast.Field)
	assert.Equal(t, []string{"id", "children"}, fieldNames(partner.SelectionSet))

	children := partner.SelectionSet.Selections[1].(*ast.Field)
	assert.Equal(t, []string{"id"}, fieldNames(children.SelectionSet))
}

func TestFilterSelections_DoesNotMutateInput(t *testing.T) {
	doc := mustParse(t, `{ Partner { id name @skip(if: true) } }`)
	op := doc.Definitions[0].(*ast.OperationDefinition)

	_, err := FilterSelections(op.SelectionSet, nil, nil)
	require.NoError(t, err)

	partner := op.SelectionSet.Selections[0].(*ast.Field)
	assert.Equal(t, []string{"id", "name"}, fieldNames(partner.SelectionSet))
}

func TestFilterSelections_Fragments(t *testing.T) {
	query := `
		query {
			Partner {
				id
				...Names
				... on Partner @include(if: $withParent) { parent { id } }
			}
		}
		fragment Names on Partner { name ...Names }
	`

	set := filterQuery(t, query, map[string]any{"withParent": true})
	partner := set.Selections[0].(*ast.Field)
	assert.Equal(t, []string{"id", "name", "parent"}, fieldNames(partner.SelectionSet))

	set = filterQuery(t, query, nil)
	partner = set.Selections[0].(*ast.Field)
	assert.Equal(t, []string{"id", "name"}, fieldNames(partner.SelectionSet))
}

func TestFilterSelections_UnknownFragment(t *testing.T) {
	doc := mustParse(t, `{ Partner { ...Missing } }`)
	op := doc.Definitions[0].(*ast.OperationDefinition)

	_, err := FilterSelections(op.SelectionSet, nil, fragmentMap(doc))
	var unknown *UnknownFragmentError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "Missing", unknown.Name)
}

func TestFilterSelections_DecodeErrorIsFatal(t *testing.T) {
	doc := mustParse(t, `{ a @include(if: {x: 1}) }`)
	op := doc.Definitions[0].(*ast.OperationDefinition)

	_, err := FilterSelections(op.SelectionSet, nil, nil)
	var unsupported *UnsupportedValueError
	assert.ErrorAs(t, err, &unsupported)
}
