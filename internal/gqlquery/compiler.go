package gqlquery

import (
	"github.com/graphql-go/graphql/language/ast"

	"model-graphql/internal/store"
)

// TypeNameField is the meta field answering with the GraphQL type name.
const TypeNameField = "__typename"

// Limits bound what a single query may request.
type Limits struct {
	// MaxDepth rejects selection trees deeper than this. Zero disables the check.
	MaxDepth int
	// DefaultLimit applies to root selections without an explicit limit.
	// Zero leaves them unbounded.
	DefaultLimit int
}

// Compiler compiles field selections into resolver trees.
type Compiler struct {
	Limits Limits
}

// Compile compiles a top-level field selecting records of entityType. The
// field's selection set is expected to be pruned already (see FilterSelections).
// types is the mapping the field was resolved with; __typename answers with
// the names it assigned.
func (c *Compiler) Compile(schema *store.Schema, types TypeMap, entityType string, field *ast.Field, vars map[string]any) (*RecordResolver, error) {
	return c.compile(schema, types.Names(), entityType, field, vars, 1)
}

func (c *Compiler) compile(schema *store.Schema, names map[string]string, entityType string, field *ast.Field, vars map[string]any, depth int) (*RecordResolver, error) {
	model, err := schema.Model(entityType)
	if err != nil {
		return nil, err
	}

	filter, opts, err := CompileArguments(field.Arguments, vars)
	if err != nil {
		return nil, err
	}
	if depth == 1 && opts.Limit == 0 && c.Limits.DefaultLimit > 0 {
		opts.Limit = c.Limits.DefaultLimit
	}

	r := &RecordResolver{
		EntityType: entityType,
		Fields:     map[string][]AliasedField{},
		Filter:     filter,
		Options:    opts,
	}
	if field.SelectionSet == nil {
		return r, nil
	}

	// Output key -> attribute it was first used for.
	keys := map[string]string{}
	for _, selection := range field.SelectionSet.Selections {
		sub, ok := selection.(*ast.Field)
		if !ok || sub.Name == nil {
			continue
		}
		name := sub.Name.Value
		key := name
		if sub.Alias != nil && sub.Alias.Value != "" {
			key = sub.Alias.Value
		}

		if c.Limits.MaxDepth > 0 && depth+1 > c.Limits.MaxDepth {
			return nil, &DepthLimitError{Field: key, Depth: depth + 1, Max: c.Limits.MaxDepth}
		}
		if first, ok := keys[key]; ok && first != name {
			return nil, &FieldConflictError{EntityType: entityType, Key: key, First: first, Second: name}
		}
		keys[key] = name

		if name == TypeNameField {
			if r.Static == nil {
				r.Static = map[string]any{}
			}
			r.Static[key] = typeNameOf(names, entityType)
			continue
		}

		attr, ok := model.Attribute(name)
		if !ok {
			return nil, &UnknownAttributeError{EntityType: entityType, Attribute: name}
		}

		var resolver FieldResolver = Passthrough
		if attr.IsRelation() && sub.SelectionSet != nil {
			nested, err := c.compile(schema, names, attr.Target, sub, vars, depth+1)
			if err != nil {
				return nil, err
			}
			resolver = nested
		}

		if _, seen := r.Fields[name]; !seen {
			r.Attributes = append(r.Attributes, name)
		}
		r.Fields[name] = append(r.Fields[name], AliasedField{Key: key, Resolver: resolver})
	}
	return r, nil
}

func typeNameOf(names map[string]string, entityType string) string {
	if name, ok := names[entityType]; ok {
		return name
	}
	return TypeName(entityType)
}

// selectionDepth reports the depth of a pruned selection tree, counting the
// field itself as depth 1.
func selectionDepth(field *ast.Field) int {
	if field == nil || field.SelectionSet == nil {
		return 1
	}
	deepest := 0
	for _, selection := range field.SelectionSet.Selections {
		if sub, ok := selection.(*ast.Field); ok {
			if d := selectionDepth(sub); d > deepest {
				deepest = d
			}
		}
	}
	return deepest + 1
}
