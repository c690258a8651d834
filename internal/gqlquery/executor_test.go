package gqlquery

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"model-graphql/internal/store"
)

func execute(t *testing.T, st store.Store, query string, req Request, ambient map[string]any) (map[string]any, error) {
	t.Helper()
	exec := NewExecutor(Config{})
	return exec.Execute(context.Background(), Scope{Store: st, Variables: ambient}, mustParse(t, query), req)
}

func TestExecute_ScenarioA_ListResult(t *testing.T) {
	st := partnerStore()
	got, err := execute(t, st, `{ Partner(limit: 2) { id name } }`, Request{}, nil)
	require.NoError(t, err)

	out, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Partner":[{"id":1,"name":"A"},{"id":2,"name":"B"}]}`, string(out))

	searches := st.searches()
	require.Len(t, searches, 1)
	assert.Empty(t, searches[0].filter)
	assert.Equal(t, 2, searches[0].opts.Limit)
}

func TestExecute_ScenarioB_SingularRelation(t *testing.T) {
	st := partnerStore()
	got, err := execute(t, st, `{ Partner(domain: [["id", "=", 1]]) { id parent { id } } }`, Request{}, nil)
	require.NoError(t, err)

	want := map[string]any{
		"Partner": []any{
			map[string]any{"id": store.ID(1), "parent": map[string]any{"id": store.ID(5)}},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestExecute_ScenarioC_DomainAndConstraint(t *testing.T) {
	st := partnerStore()
	_, err := execute(t, st, `{ Partner(domain: [["id", "=", 5]]) { children(domain: [["active", "=", true]]) { id } } }`, Request{}, nil)
	require.NoError(t, err)

	searches := st.searches()
	require.Len(t, searches, 2)
	out, err := json.Marshal(searches[1].filter)
	require.NoError(t, err)
	assert.JSONEq(t, `[["id","in",[1]],["active","=",true]]`, string(out))
}

func TestExecute_ScenarioD_UnknownType(t *testing.T) {
	_, err := execute(t, partnerStore(), `{ Bogus { id } }`, Request{}, nil)
	var unknown *UnknownTypeError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "Bogus", unknown.Name)
	assert.Contains(t, err.Error(), "Bogus")
}

func TestExecute_ScenarioE_AbsentFlagPrunes(t *testing.T) {
	st := partnerStore()
	got, err := execute(t, st, `query($flag: Boolean) { Partner(limit: 1) { id name @include(if: $flag) } }`, Request{Variables: map[string]any{}}, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{"id": store.ID(1)}}, got["Partner"])

	for _, c := range st.calls {
		if c.op == "read" {
			assert.Equal(t, []string{"id"}, c.attributes)
		}
	}
}

func TestExecute_NonQueryOperationsSkipped(t *testing.T) {
	for _, query := range []string{
		`mutation { Partner { id } }`,
		`subscription { Partner { id } }`,
		`mutation { Partner { id } } query { Partner { id } }`,
	} {
		st := partnerStore()
		got, err := execute(t, st, query, Request{}, nil)
		require.NoError(t, err)
		assert.Nil(t, got)
		assert.Empty(t, st.calls)
	}
}

func TestExecute_OperationName(t *testing.T) {
	query := `mutation M { Partner { id } } query Q { Partner(limit: 1) { id } }`

	got, err := execute(t, partnerStore(), query, Request{OperationName: "Q"}, nil)
	require.NoError(t, err)
	assert.Len(t, got["Partner"], 1)

	_, err = execute(t, partnerStore(), query, Request{OperationName: "Nope"}, nil)
	var unknown *UnknownOperationError
	require.ErrorAs(t, err, &unknown)
}

func TestExecute_AliasesAndTypename(t *testing.T) {
	got, err := execute(t, partnerStore(), `{ kind: __typename first: Partner(limit: 1) { id } second: Partner(offset: 1, limit: 1) { name } }`, Request{}, nil)
	require.NoError(t, err)

	want := map[string]any{
		"kind":   "Query",
		"first":  []any{map[string]any{"id": store.ID(1)}},
		"second": []any{map[string]any{"name": "A"}},
	}
	// The fake store ignores offsets; only shape and aliasing matter here.
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestExecute_Variables(t *testing.T) {
	query := `query($uid: Int, $n: Int = 1) { Partner(domain: [["id", "=", $uid]], limit: $n) { id } }`

	// Ambient only.
	st := partnerStore()
	_, err := execute(t, st, query, Request{}, map[string]any{"uid": int64(2)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.searches()[0].filter[0].Value)
	assert.Equal(t, 1, st.searches()[0].opts.Limit)

	// Request wins over ambient and the declared default.
	st = partnerStore()
	_, err = execute(t, st, query, Request{Variables: map[string]any{"uid": int64(5), "n": int64(3)}}, map[string]any{"uid": int64(2)})
	require.NoError(t, err)
	assert.Equal(t, int64(5), st.searches()[0].filter[0].Value)
	assert.Equal(t, 3, st.searches()[0].opts.Limit)
}

func TestExecute_RawRelationValues(t *testing.T) {
	got, err := execute(t, partnerStore(), `{ Partner(domain: [["id", "in", [1, 5]]]) { parent children } }`, Request{}, nil)
	require.NoError(t, err)

	want := []any{
		map[string]any{"parent": store.ID(5), "children": []store.ID{}},
		map[string]any{"parent": nil, "children": []store.ID{1}},
	}
	if diff := cmp.Diff(want, got["Partner"]); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestExecute_Idempotent(t *testing.T) {
	query := `{ Partner { id name parent { name children { id } } } }`
	st := partnerStore()

	first, err := execute(t, st, query, Request{}, nil)
	require.NoError(t, err)
	second, err := execute(t, st, query, Request{}, nil)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestExecute_FirstErrorAborts(t *testing.T) {
	st := partnerStore()
	_, err := execute(t, st, `{ Partner { id } Bogus { id } }`, Request{}, nil)
	var unknown *UnknownTypeError
	require.ErrorAs(t, err, &unknown)

	boom := errors.New("connection reset")
	st = partnerStore()
	st.readErr = boom
	got, err := execute(t, st, `{ Partner { id } }`, Request{}, nil)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, got)
}

func TestExecute_UnknownAttribute(t *testing.T) {
	_, err := execute(t, partnerStore(), `{ Partner { id bogus } }`, Request{}, nil)
	var unknown *UnknownAttributeError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "bogus", unknown.Attribute)
}

func TestExecute_NoStore(t *testing.T) {
	_, err := execute(t, nil, `{ Partner { id } }`, Request{}, nil)
	assert.ErrorIs(t, err, ErrNoStore)
}

func TestExecute_DepthLimit(t *testing.T) {
	exec := NewExecutor(Config{Limits: Limits{MaxDepth: 2}})
	_, err := exec.Execute(context.Background(), Scope{Store: partnerStore()}, mustParse(t, `{ Partner { parent { id } } }`), Request{})
	var depth *DepthLimitError
	assert.ErrorAs(t, err, &depth)
}

func TestExecute_TypenameAfterNameCollision(t *testing.T) {
	st := newFakeStore(store.NewModel("Sale.Order"), store.NewModel("sale.order"))
	st.add("sale.order", store.Record{"id": store.ID(1)})

	got, err := execute(t, st, `{ SaleOrder2 { __typename id } }`, Request{}, nil)
	require.NoError(t, err)

	out, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `{"SaleOrder2":[{"__typename":"SaleOrder2","id":1}]}`, string(out))
}

func TestExecute_OutputKeyConflictFails(t *testing.T) {
	st := partnerStore()
	_, err := execute(t, st, `{ Partner(limit: 1) { name: id name } }`, Request{}, nil)

	var conflict *FieldConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Empty(t, st.searches())
}
