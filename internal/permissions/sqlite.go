package permissions

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteBackend stores the document as a single JSON row in SQLite
type SQLiteBackend struct {
	db *sqlx.DB
}

// NewSQLiteBackend opens (or creates) the database at dbPath
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS permission_documents (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			body TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create permission_documents table: %w", err)
	}

	return &SQLiteBackend{db: db}, nil
}

func (b *SQLiteBackend) Load() (*Document, error) {
	var body string
	err := b.db.Get(&body, "SELECT body FROM permission_documents WHERE id = 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load permission document: %w", err)
	}

	var doc Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("decode permission document: %w", err)
	}
	return &doc, nil
}

func (b *SQLiteBackend) Save(doc *Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode permissions: %w", err)
	}

	_, err = b.db.Exec(`
		INSERT INTO permission_documents (id, body, updated_at)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			body = excluded.body,
			updated_at = excluded.updated_at
	`, string(body), doc.LastUpdated)

	if err != nil {
		return fmt.Errorf("save permission document: %w", err)
	}
	return nil
}

// Close releases database resources
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
