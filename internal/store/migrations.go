package store

import (
	"context"
	"database/sql"
	"strings"
)

// schema contains the DDL for the graph cache.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS graphs (
		id           TEXT PRIMARY KEY,
		name         TEXT NOT NULL,
		cwl_version  TEXT NOT NULL DEFAULT '',
		class        TEXT NOT NULL DEFAULT 'Workflow',
		content_hash TEXT NOT NULL,
		rankdir      TEXT NOT NULL DEFAULT 'LR',
		file_nodes   INTEGER NOT NULL DEFAULT 0,
		node_count   INTEGER NOT NULL DEFAULT 0,
		arrow_count  INTEGER NOT NULL DEFAULT 0,
		dot          TEXT NOT NULL,
		raw_cwl      TEXT NOT NULL,
		created_at   TEXT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_graphs_content_hash ON graphs(content_hash)`,
	`CREATE INDEX IF NOT EXISTS idx_graphs_name ON graphs(name)`,
}

// alterStatements are column additions that need special handling since
// SQLite doesn't support IF NOT EXISTS for ALTER TABLE ADD COLUMN.
var alterStatements = []struct {
	table    string
	column   string
	alterSQL string
	indexSQL string // Optional index to create after column is added
}{
	{
		table:    "graphs",
		column:   "step_order",
		alterSQL: "ALTER TABLE graphs ADD COLUMN step_order TEXT NOT NULL DEFAULT '[]'",
	},
	{
		table:    "graphs",
		column:   "warnings",
		alterSQL: "ALTER TABLE graphs ADD COLUMN warnings TEXT NOT NULL DEFAULT '[]'",
	},
}

// migrate executes all schema DDL statements and alter migrations.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	for _, alter := range alterStatements {
		if err := addColumnIfNotExists(ctx, db, alter.table, alter.column, alter.alterSQL); err != nil {
			return err
		}
		if alter.indexSQL != "" {
			if _, err := db.ExecContext(ctx, alter.indexSQL); err != nil {
				return err
			}
		}
	}

	return nil
}

// addColumnIfNotExists adds a column to a table if it doesn't already exist.
func addColumnIfNotExists(ctx context.Context, db *sql.DB, table, column, alterSQL string) error {
	exists, err := columnExists(ctx, db, table, column)
	if err != nil || exists {
		return err
	}
	_, err = db.ExecContext(ctx, alterSQL)
	return err
}

func columnExists(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue *string
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if strings.EqualFold(name, column) {
			return true, nil
		}
	}
	return false, rows.Err()
}
