// ABOUTME: SQLite storage engine and connection lifecycle.
// ABOUTME: Uses modernc.org/sqlite (pure Go, no CGO required).
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/harperreed/forma/internal/models"
)

// SQLiteEngine stores every table in one records table keyed by (tbl, id).
type SQLiteEngine struct {
	db     *sql.DB
	dbPath string
}

// OpenSQLite opens or creates a SQLite database at the given path.
func OpenSQLite(dbPath string) (*SQLiteEngine, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Pragmas are per connection, so keep a single one.
	db.SetMaxOpenConns(1)

	e := &SQLiteEngine{db: db, dbPath: dbPath}

	if err := e.configurePragmas(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure pragmas: %w", err)
	}

	if err := e.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	if err := os.Chmod(dbPath, 0600); err != nil && !os.IsNotExist(err) {
		_ = db.Close()
		return nil, fmt.Errorf("set database permissions: %w", err)
	}

	return e, nil
}

// SQLiteOpener returns an Opener for the database at dbPath.
func SQLiteOpener(dbPath string) Opener {
	return func(ctx context.Context) (Engine, error) {
		return OpenSQLite(dbPath)
	}
}

// DataDir returns the default data directory following XDG spec.
func DataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, _ := os.UserHomeDir()
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "forma")
}

func (e *SQLiteEngine) Name() string { return "sqlite" }

// Path returns the database file path.
func (e *SQLiteEngine) Path() string { return e.dbPath }

// Close closes the database connection.
func (e *SQLiteEngine) Close() error {
	if e.db != nil {
		return e.db.Close()
	}
	return nil
}

func (e *SQLiteEngine) configurePragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := e.db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}
	return nil
}

func (e *SQLiteEngine) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		tbl TEXT NOT NULL,
		id TEXT NOT NULL,
		data TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (tbl, id)
	);

	CREATE TABLE IF NOT EXISTS flags (
		name TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);
	`
	_, err := e.db.Exec(schema)
	return err
}

// GetAll returns every record of a table in insertion order.
func (e *SQLiteEngine) GetAll(ctx context.Context, table models.Table) ([][]byte, error) {
	rows, err := e.db.QueryContext(ctx,
		`SELECT data FROM records WHERE tbl = ? ORDER BY rowid`, string(table))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out [][]byte
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		out = append(out, []byte(data))
	}
	return out, rows.Err()
}

func (e *SQLiteEngine) Get(ctx context.Context, table models.Table, id string) ([]byte, error) {
	var data string
	err := e.db.QueryRowContext(ctx,
		`SELECT data FROM records WHERE tbl = ? AND id = ?`, string(table), id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(data), nil
}

// Put upserts a record. An existing row keeps its rowid, so replaced
// records keep their position in GetAll.
func (e *SQLiteEngine) Put(ctx context.Context, table models.Table, id string, data []byte) error {
	_, err := e.db.ExecContext(ctx, `
		INSERT INTO records (tbl, id, data) VALUES (?, ?, ?)
		ON CONFLICT (tbl, id) DO UPDATE SET data = excluded.data, updated_at = CURRENT_TIMESTAMP`,
		string(table), id, string(data))
	return err
}

func (e *SQLiteEngine) Delete(ctx context.Context, table models.Table, id string) error {
	_, err := e.db.ExecContext(ctx,
		`DELETE FROM records WHERE tbl = ? AND id = ?`, string(table), id)
	return err
}

func (e *SQLiteEngine) Flag(ctx context.Context, name string) (bool, error) {
	var v int
	err := e.db.QueryRowContext(ctx, `SELECT value FROM flags WHERE name = ?`, name).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

func (e *SQLiteEngine) SetFlag(ctx context.Context, name string, value bool) error {
	v := 0
	if value {
		v = 1
	}
	_, err := e.db.ExecContext(ctx, `
		INSERT INTO flags (name, value) VALUES (?, ?)
		ON CONFLICT (name) DO UPDATE SET value = excluded.value`, name, v)
	return err
}
