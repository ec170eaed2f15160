// Package store is the persistence gateway: idempotent keyed
// upsert/find/delete over the local replica, backed by sqlite.
package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Store holds the replica database. It is safe for concurrent use;
// per-key atomicity comes from the database itself, there is no
// additional locking discipline.
type Store struct {
	DB *sql.DB

	Messages      *MessageStore
	Users         *UserStore
	Subscriptions *SubscriptionStore
}

// Open opens or creates the replica database at dbPath.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{DB: db}
	s.Messages = &MessageStore{db: db}
	s.Users = &UserStore{db: db}
	s.Subscriptions = &SubscriptionStore{db: db}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.DB.Close()
}
