package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
)

//go:embed schema.sql
var schemaSQL string

// SchemaStatements splits the embedded schema into executable statements.
func SchemaStatements() []string {
	var out []string
	for _, stmt := range strings.Split(schemaSQL, ";") {
		lines := []string{}
		for _, line := range strings.Split(stmt, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "--") {
				continue
			}
			lines = append(lines, line)
		}
		stmt = strings.TrimSpace(strings.Join(lines, "\n"))
		if stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

// ApplySchema executes every schema statement in order. The schema is
// idempotent, so re-running it is safe.
func ApplySchema(ctx context.Context, db *sql.DB) (int, error) {
	stmts := SchemaStatements()
	for i, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			preview := stmt
			if len(preview) > 100 {
				preview = preview[:100]
			}
			return i, fmt.Errorf("failed to execute statement %d: %w (statement: %s)", i+1, err, preview)
		}
	}
	return len(stmts), nil
}
