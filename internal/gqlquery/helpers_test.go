package gqlquery

import (
	"context"
	"sort"
	"testing"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/graphql-go/graphql/language/source"
	"github.com/stretchr/testify/require"

	"model-graphql/internal/store"
)

func mustParse(t *testing.T, query string) *ast.Document {
	t.Helper()
	doc, err := parser.Parse(parser.ParseParams{
		Source: source.NewSource(&source.Source{
			Body: []byte(query),
			Name: "GraphQL request",
		}),
	})
	require.NoError(t, err)
	return doc
}

func firstField(t *testing.T, doc *ast.Document) *ast.Field {
	t.Helper()
	op, ok := doc.Definitions[0].(*ast.OperationDefinition)
	require.True(t, ok)
	field, ok := op.SelectionSet.Selections[0].(*ast.Field)
	require.True(t, ok)
	return field
}

type storeCall struct {
	op         string
	entityType string
	filter     store.Filter
	opts       store.Options
	ids        []store.ID
	attributes []string
}

// fakeStore answers id constraints from its records and records every call.
type fakeStore struct {
	schema  *store.Schema
	records map[string]map[store.ID]store.Record
	calls   []storeCall

	searchErr error
	readErr   error
}

func newFakeStore(models ...*store.Model) *fakeStore {
	return &fakeStore{
		schema:  store.NewSchema(models...),
		records: map[string]map[store.ID]store.Record{},
	}
}

func (s *fakeStore) add(entityType string, records ...store.Record) {
	if s.records[entityType] == nil {
		s.records[entityType] = map[store.ID]store.Record{}
	}
	for _, r := range records {
		s.records[entityType][r["id"].(store.ID)] = r
	}
}

func (s *fakeStore) Schema(context.Context) (*store.Schema, error) {
	return s.schema, nil
}

func (s *fakeStore) Search(_ context.Context, entityType string, filter store.Filter, opts store.Options) ([]store.ID, error) {
	s.calls = append(s.calls, storeCall{op: "search", entityType: entityType, filter: filter, opts: opts})
	if s.searchErr != nil {
		return nil, s.searchErr
	}

	var ids []store.ID
	if len(filter) > 0 && filter[0].Attribute == "id" {
		var wanted []store.ID
		switch filter[0].Operator {
		case "=":
			if id, ok := store.ToID(filter[0].Value); ok {
				wanted = []store.ID{id}
			}
		case "in":
			wanted, _ = store.ToIDs(filter[0].Value)
		}
		for _, id := range wanted {
			if _, ok := s.records[entityType][id]; ok {
				ids = append(ids, id)
			}
		}
	} else {
		for id := range s.records[entityType] {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}
	if opts.Limit > 0 && len(ids) > opts.Limit {
		ids = ids[:opts.Limit]
	}
	return ids, nil
}

func (s *fakeStore) Read(_ context.Context, entityType string, ids []store.ID, attributes []string) ([]store.Record, error) {
	s.calls = append(s.calls, storeCall{op: "read", entityType: entityType, ids: ids, attributes: attributes})
	if s.readErr != nil {
		return nil, s.readErr
	}
	out := make([]store.Record, 0, len(ids))
	for _, id := range ids {
		record, ok := s.records[entityType][id]
		if !ok {
			continue
		}
		row := store.Record{}
		for _, attr := range attributes {
			row[attr] = record[attr]
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *fakeStore) searches() []storeCall {
	var out []storeCall
	for _, c := range s.calls {
		if c.op == "search" {
			out = append(out, c)
		}
	}
	return out
}

func partnerModel() *store.Model {
	return store.NewModel("partner",
		&store.Attribute{Name: "name"},
		&store.Attribute{Name: "active"},
		&store.Attribute{Name: "parent", Kind: store.ManyToOne, Target: "partner"},
		&store.Attribute{Name: "children", Kind: store.OneToMany, Target: "partner", Inverse: "parent"},
	)
}

func partnerStore() *fakeStore {
	s := newFakeStore(partnerModel(), store.NewModel("sale.order", &store.Attribute{Name: "name"}))
	s.add("partner",
		store.Record{"id": store.ID(1), "name": "A", "active": true, "parent": store.ID(5), "children": []store.ID{}},
		store.Record{"id": store.ID(2), "name": "B", "active": false, "parent": nil, "children": []store.ID{}},
		store.Record{"id": store.ID(5), "name": "Parent", "active": true, "parent": nil, "children": []store.ID{1}},
	)
	return s
}
