// Package store is the persistence layer: tracked courses, discovered
// assignments, scan history, and sealed LMS credentials in one SQLite
// database.
package store

import "database/sql"

// Store wraps the tracker database.
type Store struct {
	DB *sql.DB
}

// NewStore creates a Store from an already-opened database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}
