package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	mgErrors "github.com/ZaguanLabs/mathgpt/internal/errors"
	_ "modernc.org/sqlite"
)

// SQLite keeps slots in a single-table sqlite database.
type SQLite struct {
	db            *sql.DB
	preparedStmts map[string]*sql.Stmt
	preparedMutex sync.RWMutex
}

// OpenSQLite opens or creates the database at path. An empty path selects
// ~/.local/share/mathgpt/mathgpt.db.
func OpenSQLite(path string) (*SQLite, error) {
	resolved, err := resolvePath(path, defaultFileName)
	if err != nil {
		return nil, mgErrors.NewStorageError("open", "failed to resolve database path", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", resolved)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, mgErrors.NewStorageError("open", fmt.Sprintf("failed to open sqlite database: %v", err), err)
	}

	// One connection avoids SQLITE_BUSY between writers in this process.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &SQLite{db: db}

	if err := store.migrate(); err != nil {
		store.Close()
		return nil, err
	}

	if err := store.initializePreparedStatements(); err != nil {
		store.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLite) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS slots (
            key TEXT PRIMARY KEY,
            value BLOB NOT NULL,
            updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now'))
        );`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return mgErrors.NewStorageError("migrate", "apply migration", err)
		}
	}

	return nil
}

func (s *SQLite) initializePreparedStatements() error {
	s.preparedStmts = make(map[string]*sql.Stmt)

	stmts := map[string]string{
		"get": `SELECT value FROM slots WHERE key = ?`,
		"set": `INSERT INTO slots(key, value) VALUES (?, ?)
                ON CONFLICT(key) DO UPDATE SET value = excluded.value,
                updated_at = (strftime('%Y-%m-%dT%H:%M:%SZ','now'))`,
		"delete": `DELETE FROM slots WHERE key = ?`,
	}

	for name, query := range stmts {
		stmt, err := s.db.Prepare(query)
		if err != nil {
			return mgErrors.NewStorageError("prepare", fmt.Sprintf("prepare statement %s", name), err)
		}
		s.preparedStmts[name] = stmt
	}

	return nil
}

func (s *SQLite) getPreparedStmt(name string) (*sql.Stmt, error) {
	s.preparedMutex.RLock()
	stmt := s.preparedStmts[name]
	s.preparedMutex.RUnlock()

	if stmt == nil {
		return nil, fmt.Errorf("prepared statement %s not found", name)
	}

	return stmt, nil
}

// Get returns the value stored under key.
func (s *SQLite) Get(key string) ([]byte, bool, error) {
	if err := validateKey(key); err != nil {
		return nil, false, err
	}
	stmt, err := s.getPreparedStmt("get")
	if err != nil {
		return nil, false, mgErrors.NewStorageError("get", "statement unavailable", err)
	}

	var value []byte
	if err := stmt.QueryRow(key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, mgErrors.NewStorageError("get", fmt.Sprintf("read slot %q", key), err)
	}
	return value, true, nil
}

// Set replaces the value stored under key.
func (s *SQLite) Set(key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := validateValue(value); err != nil {
		return err
	}
	stmt, err := s.getPreparedStmt("set")
	if err != nil {
		return mgErrors.NewStorageError("set", "statement unavailable", err)
	}

	if value == nil {
		value = []byte{}
	}
	if _, err := stmt.Exec(key, value); err != nil {
		return mgErrors.NewStorageError("set", fmt.Sprintf("write slot %q", key), err)
	}
	return nil
}

// Delete removes key. Deleting a missing key succeeds.
func (s *SQLite) Delete(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	stmt, err := s.getPreparedStmt("delete")
	if err != nil {
		return mgErrors.NewStorageError("delete", "statement unavailable", err)
	}

	if _, err := stmt.Exec(key); err != nil {
		return mgErrors.NewStorageError("delete", fmt.Sprintf("delete slot %q", key), err)
	}
	return nil
}

// Close releases prepared statements and the database handle.
func (s *SQLite) Close() error {
	if s == nil {
		return nil
	}

	var firstError error

	s.preparedMutex.Lock()
	for _, stmt := range s.preparedStmts {
		if err := stmt.Close(); err != nil && firstError == nil {
			firstError = err
		}
	}
	s.preparedStmts = nil
	s.preparedMutex.Unlock()

	if s.db != nil {
		if err := s.db.Close(); err != nil && firstError == nil {
			firstError = err
		}
	}

	return firstError
}
