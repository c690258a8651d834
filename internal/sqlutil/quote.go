// Package sqlutil provides SQL quoting helpers.
package sqlutil

import "strings"

// QuoteIdentifier quotes a SQL identifier (table name, column name, etc.)
// with backticks and escapes any backticks within the identifier.
func QuoteIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, "`", "``")
	return "`" + escaped + "`"
}

// QualifiedColumn returns `table`.`column`.
func QualifiedColumn(table, column string) string {
	return QuoteIdentifier(table) + "." + QuoteIdentifier(column)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike escapes LIKE wildcards so s matches literally. The result
// assumes the default backslash escape character.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// ContainsPattern builds a LIKE pattern matching any value containing s.
func ContainsPattern(s string) string {
	return "%" + EscapeLike(s) + "%"
}
