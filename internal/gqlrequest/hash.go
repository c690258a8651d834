package gqlrequest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/printer"
)

const anonymousOperationName = "<anonymous>"

// canonicalOperationAndHash prints the operation followed by the fragments
// it uses, in name order, and hashes the result together with the
// operation name. Unused fragments do not change the hash.
func canonicalOperationAndHash(op *ast.OperationDefinition, fragments map[string]*ast.FragmentDefinition, used map[string]bool) (string, string, error) {
	if op == nil {
		return "", "", fmt.Errorf("operation is nil")
	}

	names := make([]string, 0, len(used))
	for name := range used {
		names = append(names, name)
	}
	sort.Strings(names)

	definitions := make([]ast.Node, 0, 1+len(names))
	definitions = append(definitions, op)
	for _, name := range names {
		fragment, ok := fragments[name]
		if !ok || fragment == nil {
			return "", "", fmt.Errorf("fragment %q not found", name)
		}
		definitions = append(definitions, fragment)
	}

	printed, ok := printer.Print(ast.NewDocument(&ast.Document{Definitions: definitions})).(string)
	if !ok {
		return "", "", fmt.Errorf("unexpected canonical document type")
	}
	return printed, framedSHA256(printed, effectiveOperationName(op)), nil
}

func effectiveOperationName(op *ast.OperationDefinition) string {
	if op == nil || op.Name == nil || op.Name.Value == "" {
		return anonymousOperationName
	}
	return op.Name.Value
}

// framedSHA256 length-prefixes each part so part boundaries are unambiguous.
func framedSHA256(parts ...string) string {
	hash := sha256.New()
	for _, part := range parts {
		_, _ = fmt.Fprintf(hash, "%d:%s|", len(part), part)
	}
	return hex.EncodeToString(hash.Sum(nil))
}
