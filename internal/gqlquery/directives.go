package gqlquery

import (
	"github.com/graphql-go/graphql/language/ast"
)

// FilterSelections returns a copy of set without the selections excluded by
// @include / @skip. Fragment spreads and inline fragments are expanded in
// place so the result only contains fields. The input tree is not modified.
//
// Directives are evaluated in declaration order and the last include/skip
// decision wins. A directive without an "if" argument makes no decision.
func FilterSelections(set *ast.SelectionSet, vars map[string]any, fragments map[string]*ast.FragmentDefinition) (*ast.SelectionSet, error) {
	f := &directiveFilter{
		vars:      vars,
		fragments: fragments,
		active:    map[string]bool{},
	}
	return f.filterSet(set)
}

type directiveFilter struct {
	vars      map[string]any
	fragments map[string]*ast.FragmentDefinition
	// fragments currently being expanded, to cut spread cycles
	active map[string]bool
}

func (f *directiveFilter) filterSet(set *ast.SelectionSet) (*ast.SelectionSet, error) {
	if set == nil {
		return nil, nil
	}
	selections, err := f.filterSelections(set.Selections)
	if err != nil {
		return nil, err
	}
	out := *set
	out.Selections = selections
	return &out, nil
}

func (f *directiveFilter) filterSelections(in []ast.Selection) ([]ast.Selection, error) {
	out := make([]ast.Selection, 0, len(in))
	for _, selection := range in {
		switch sel := selection.(type) {
		case *ast.Field:
			keep, err := f.keep(sel.Directives)
			if err != nil {
				return nil, err
			}
			if !keep {
				continue
			}
			field := *sel
			if sel.SelectionSet != nil {
				nested, err := f.filterSet(sel.SelectionSet)
				if err != nil {
					return nil, err
				}
				field.SelectionSet = nested
			}
			out = append(out, &field)
		case *ast.InlineFragment:
			keep, err := f.keep(sel.Directives)
			if err != nil {
				return nil, err
			}
			if !keep || sel.SelectionSet == nil {
				continue
			}
			nested, err := f.filterSelections(sel.SelectionSet.Selections)
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
		case *ast.FragmentSpread:
			keep, err := f.keep(sel.Directives)
			if err != nil {
				return nil, err
			}
			if !keep {
				continue
			}
			name := ""
			if sel.Name != nil {
				name = sel.Name.Value
			}
			fragment, ok := f.fragments[name]
			if !ok || fragment == nil {
				return nil, &UnknownFragmentError{Name: name}
			}
			if f.active[name] || fragment.SelectionSet == nil {
				continue
			}
			f.active[name] = true
			nested, err := f.filterSelections(fragment.SelectionSet.Selections)
			delete(f.active, name)
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
		}
	}
	return out, nil
}

func (f *directiveFilter) keep(directives []*ast.Directive) (bool, error) {
	keep := true
	for _, directive := range directives {
		if directive == nil || directive.Name == nil {
			continue
		}
		name := directive.Name.Value
		if name != "include" && name != "skip" {
			continue
		}
		for _, arg := range directive.Arguments {
			if arg == nil || arg.Name == nil || arg.Name.Value != "if" {
				continue
			}
			cond, err := DecodeValue(arg.Value, f.vars)
			if err != nil {
				return false, err
			}
			if name == "include" {
				keep = truthy(cond)
			} else {
				keep = !truthy(cond)
			}
		}
	}
	return keep, nil
}

func fragmentMap(doc *ast.Document) map[string]*ast.FragmentDefinition {
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
