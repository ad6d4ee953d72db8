package repository

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
)

const (
	runTable    = "extraction_run"
	recordTable = "composition_record"
)

// columnTypes are the storage types that differ between dialects.
type columnTypes struct {
	float   string
	integer string
}

func typesFor(d string) columnTypes {
	if d == dialect.Postgres {
		return columnTypes{float: "DOUBLE PRECISION", integer: "BIGINT"}
	}
	return columnTypes{float: "REAL", integer: "INTEGER"}
}

// schemaStatements returns the DDL for d. Timestamps are fixed-width UTC text
// on both dialects so ordering matches.
func schemaStatements(d string) []string {
	ct := typesFor(d)
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	source_path TEXT NOT NULL,
	content_hash TEXT,
	source_type TEXT,
	pages %[2]s NOT NULL DEFAULT 0,
	engine TEXT,
	method TEXT,
	status TEXT NOT NULL,
	ocr_text TEXT,
	confidence %[3]s,
	warnings TEXT,
	record_count %[2]s NOT NULL DEFAULT 0,
	alloy TEXT,
	heat_no TEXT,
	error_message TEXT,
	started_at TEXT NOT NULL,
	finished_at TEXT
)`, runTable, ct.integer, ct.float),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	run_id TEXT NOT NULL REFERENCES %s (id) ON DELETE CASCADE,
	seq %s NOT NULL,
	element_symbol TEXT NOT NULL,
	element_name TEXT NOT NULL,
	value %[4]s,
	max_value %[4]s,
	unit TEXT NOT NULL,
	value_type TEXT NOT NULL,
	sample_position TEXT NOT NULL,
	alloy TEXT,
	heat_no TEXT,
	PRIMARY KEY (run_id, seq)
)`, recordTable, runTable, ct.integer, ct.float),
		"CREATE INDEX IF NOT EXISTS extraction_run_content_hash ON extraction_run (content_hash)",
		"CREATE INDEX IF NOT EXISTS extraction_run_status_started ON extraction_run (status, started_at)",
		"CREATE INDEX IF NOT EXISTS composition_record_element ON composition_record (element_symbol)",
	}
}

// Migrate creates the tables and indexes when missing.
func Migrate(ctx context.Context, db *DB) error {
	for _, stmt := range schemaStatements(db.Dialect) {
		if _, err := db.SQL.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
