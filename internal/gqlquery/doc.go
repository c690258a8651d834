// Package gqlquery compiles GraphQL query documents into resolver trees over
// a store.Store and assembles the store's flat records into the nested,
// aliased result the query asked for.
//
// Execution order is depth-first and sequential: each resolver searches, reads
// and then resolves its relations before the next sibling starts. The first
// error aborts the whole query.
package gqlquery
