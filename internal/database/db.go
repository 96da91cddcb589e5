// Package database stores the reference backend's catalog in SQLite.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Open opens the catalog database at path, creating its directory. The
// handle allows a single connection since every writer shares one file.
func Open(path string) (*sql.DB, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	return db, nil
}

// OpenCatalog migrates and opens the catalog at path. A non-nil seed is
// loaded into an empty catalog.
func OpenCatalog(ctx context.Context, path string, seed *Seed) (*sql.DB, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	if err := RunMigrations(path); err != nil {
		return nil, err
	}
	db, err := Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping catalog: %w", err)
	}
	if seed != nil {
		if err := SeedDefaults(ctx, db, *seed); err != nil {
			db.Close()
			return nil, fmt.Errorf("seed catalog: %w", err)
		}
	}
	return db, nil
}

// WithTx runs fn in a transaction bound to ctx, rolling back on error.
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create catalog dir %s: %w", dir, err)
	}
	return nil
}
