package introspection

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/attribute"
)

// Fingerprint identifies the structural state of a database schema.
type Fingerprint struct {
	Value      string
	Components map[string]string
}

type fingerprintComponent struct {
	name  string
	query string
}

// Comments are left out so that editing them does not trigger a rebuild.
var structuralComponents = []fingerprintComponent{
	{
		name: "tables",
		query: `
			SELECT TABLE_NAME, TABLE_TYPE
			FROM INFORMATION_SCHEMA.TABLES
			WHERE TABLE_SCHEMA = ?
				AND TABLE_TYPE IN ('BASE TABLE', 'VIEW')
			ORDER BY TABLE_NAME, TABLE_TYPE
		`,
	},
	{
		name: "columns",
		query: `
			SELECT
				TABLE_NAME,
				COLUMN_NAME,
				CAST(ORDINAL_POSITION AS CHAR),
				DATA_TYPE,
				COLUMN_TYPE,
				IS_NULLABLE,
				EXTRA
			FROM INFORMATION_SCHEMA.COLUMNS
			WHERE TABLE_SCHEMA = ?
			ORDER BY TABLE_NAME, ORDINAL_POSITION, COLUMN_NAME
		`,
	},
	{
		name: "primary_keys",
		query: `
			SELECT
				TABLE_NAME,
				COLUMN_NAME,
				CAST(ORDINAL_POSITION AS CHAR)
			FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE
			WHERE TABLE_SCHEMA = ?
				AND CONSTRAINT_NAME = 'PRIMARY'
			ORDER BY TABLE_NAME, ORDINAL_POSITION, COLUMN_NAME
		`,
	},
	{
		name: "foreign_keys",
		query: `
			SELECT
				TABLE_NAME,
				CONSTRAINT_NAME,
				COLUMN_NAME,
				COALESCE(REFERENCED_TABLE_NAME, ''),
				COALESCE(REFERENCED_COLUMN_NAME, ''),
				CAST(ORDINAL_POSITION AS CHAR)
			FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE
			WHERE TABLE_SCHEMA = ?
				AND REFERENCED_TABLE_NAME IS NOT NULL
			ORDER BY TABLE_NAME, CONSTRAINT_NAME, ORDINAL_POSITION, COLUMN_NAME
		`,
	},
}

// ComputeFingerprint hashes the information_schema rows that shape the
// entity models of databaseName.
func ComputeFingerprint(ctx context.Context, db Queryer, databaseName string) (Fingerprint, error) {
	ctx, span := startSpan(ctx, "introspection.compute_fingerprint",
		attribute.String("db.name", databaseName),
	)
	defer span.End()

	components := make(map[string]string, len(structuralComponents))
	for _, component := range structuralComponents {
		hash, err := hashComponentQuery(ctx, db, component.query, databaseName)
		if err != nil {
			err = fmt.Errorf("failed to hash %s component: %w", component.name, err)
			recordSpanError(span, err)
			return Fingerprint{}, err
		}
		components[component.name] = hash
	}

	return Fingerprint{
		Value:      combineComponentHashes(components),
		Components: components,
	}, nil
}

// ChangedComponents lists the component names whose hashes differ, over
// the union of both key sets.
func ChangedComponents(previous, current map[string]string) []string {
	keySet := make(map[string]struct{}, len(previous)+len(current))
	for key := range previous {
		keySet[key] = struct{}{}
	}
	for key := range current {
		keySet[key] = struct{}{}
	}
	keys := make([]string, 0, len(keySet))
	for key := range keySet {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	changed := make([]string, 0, len(keys))
	for _, key := range keys {
		if previous[key] != current[key] {
			changed = append(changed, key)
		}
	}
	return changed
}

func hashComponentQuery(ctx context.Context, db Queryer, query string, args ...any) (string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = rows.Close()
	}()

	columns, err := rows.Columns()
	if err != nil {
		return "", err
	}
	values := make([]sql.NullString, len(columns))
	targets := make([]any, len(columns))
	for i := range values {
		targets[i] = &values[i]
	}

	hash := sha256.New()
	for rows.Next() {
		if err := rows.Scan(targets...); err != nil {
			return "", err
		}
		// Length-prefixed cells keep "a|b" and "a" "b" apart.
		for _, value := range values {
			_, _ = fmt.Fprintf(hash, "%d:%s|", len(value.String), value.String)
		}
		_, _ = hash.Write([]byte{'\n'})
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

func combineComponentHashes(components map[string]string) string {
	if len(components) == 0 {
		return ""
	}
	keys := make([]string, 0, len(components))
	for key := range components {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	hash := sha256.New()
	for _, key := range keys {
		_, _ = fmt.Fprintf(hash, "%s=%s\n", key, components[key])
	}
	return hex.EncodeToString(hash.Sum(nil))
}
