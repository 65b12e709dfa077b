package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/qforge-dev/qmemory/internal/metrics"
)

// Store handles all primary-row persistence for entities and relations.
// It is the single source of truth; derived vector state is owned elsewhere.
type Store struct {
	config *Config
	db     *sql.DB

	stmtMu sync.RWMutex
	stmts  map[string]*sql.Stmt
}

// NewStore opens (or creates) the database at the configured path and
// initializes the schema.
func NewStore(config *Config) (*Store, error) {
	dbURL := config.Path
	if !strings.HasPrefix(dbURL, "file:") {
		dbURL = "file:" + dbURL
	}

	db, err := sql.Open("libsql", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", config.Path, err)
	}

	store := &Store{
		config: config,
		db:     db,
		stmts:  make(map[string]*sql.Stmt),
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxIdleSec > 0 {
		db.SetConnMaxIdleTime(time.Duration(config.ConnMaxIdleSec) * time.Second)
	}
	if config.ConnMaxLifeSec > 0 {
		db.SetConnMaxLifetime(time.Duration(config.ConnMaxLifeSec) * time.Second)
	}

	return store, nil
}

// initialize creates tables and indexes if they don't exist
func (s *Store) initialize() error {
	done := metrics.TimeOp("store_initialize")
	success := false
	defer func() { done(success) }()
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for initialization: %w", err)
	}
	defer tx.Rollback()

	for _, statement := range schema {
		if _, err := tx.Exec(statement); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	success = true
	return nil
}

// Conn exposes the underlying handle so derived collections (the vector
// index) can live in the same database file.
func (s *Store) Conn() *sql.DB {
	return s.db
}

// getPreparedStmt returns or prepares and caches a statement
func (s *Store) getPreparedStmt(ctx context.Context, sqlText string) (*sql.Stmt, error) {
	s.stmtMu.RLock()
	if stmt, ok := s.stmts[sqlText]; ok {
		s.stmtMu.RUnlock()
		return stmt, nil
	}
	s.stmtMu.RUnlock()

	stmt, err := s.db.PrepareContext(ctx, sqlText)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	s.stmtMu.Lock()
	s.stmts[sqlText] = stmt
	s.stmtMu.Unlock()
	return stmt, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	s.stmtMu.Lock()
	for _, stmt := range s.stmts {
		_ = stmt.Close()
	}
	s.stmts = make(map[string]*sql.Stmt)
	s.stmtMu.Unlock()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
