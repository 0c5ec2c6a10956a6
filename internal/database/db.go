package database

import (
	"database/sql"
	"fmt"

	_ "github.com/marcboeker/go-duckdb/v2"
)

// Initialize opens the in-memory DuckDB engine the dataset layer composes
// queries against. No tables are created; report files are scanned directly
// by read_csv at query time.
func Initialize() (*sql.DB, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open query engine: %w", err)
	}
	return db, nil
}
