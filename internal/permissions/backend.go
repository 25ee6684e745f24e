package permissions

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Backend persists the permission document. Load returns nil, nil when
// nothing has been saved yet.
type Backend interface {
	Load() (*Document, error)
	Save(doc *Document) error
	Close() error
}

// OpenBackend opens the backend named by kind ("json" or "sqlite")
func OpenBackend(kind, jsonPath, sqlitePath string) (Backend, error) {
	switch kind {
	case "", "json":
		return NewFileBackend(jsonPath), nil
	case "sqlite":
		return NewSQLiteBackend(sqlitePath)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", kind)
	}
}

// FileBackend stores the document as indented JSON in a single file
type FileBackend struct {
	path string
}

// NewFileBackend creates a JSON file backend at path
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Path returns the file location
func (b *FileBackend) Path() string {
	return b.path
}

func (b *FileBackend) Load() (*Document, error) {
	data, err := os.ReadFile(b.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", b.path, err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", b.path, err)
	}
	return &doc, nil
}

func (b *FileBackend) Save(doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode permissions: %w", err)
	}
	return writeAtomic(b.path, append(data, '\n'))
}

func (b *FileBackend) Close() error {
	return nil
}

// writeAtomic replaces path through a temp file in the same directory so a
// crash never leaves a truncated document behind.
func writeAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("write temp for %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp for %s: %w", path, err)
	}
	return nil
}
