package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/noah-isme/course-registration/pkg/storage"
)

// JSONFile persists a MemoryRepository as a single JSON array file. The whole
// file is read on Load and overwritten on Save.
type JSONFile[T Entity[T]] struct {
	store    *storage.LocalStorage
	filename string
	repo     *MemoryRepository[T]
}

// NewJSONFile binds the repository to filename inside store.
func NewJSONFile[T Entity[T]](store *storage.LocalStorage, filename string, repo *MemoryRepository[T]) *JSONFile[T] {
	return &JSONFile[T]{store: store, filename: filename, repo: repo}
}

// Name identifies the snapshot in logs.
func (f *JSONFile[T]) Name() string {
	return f.store.Path(f.filename)
}

// Load replaces the repository content with the file content. A missing or
// empty file yields an empty repository.
func (f *JSONFile[T]) Load(ctx context.Context) error {
	exists, err := f.store.Exists(f.filename)
	if err != nil {
		return err
	}
	if !exists {
		f.repo.Replace(nil)
		return nil
	}

	data, err := f.store.Read(f.filename)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		f.repo.Replace(nil)
		return nil
	}

	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("decode %s: %w", f.filename, err)
	}
	f.repo.Replace(items)
	return nil
}

// Save writes every entity, in repository order, as an indented JSON array.
func (f *JSONFile[T]) Save(ctx context.Context) error {
	payload, err := json.MarshalIndent(f.repo.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", f.filename, err)
	}
	if _, err := f.store.Save(f.filename, payload); err != nil {
		return err
	}
	return nil
}
