// Package file provides a JSON-file-backed persistent store: the whole
// document lives in one slot on disk and is rewritten after every successful
// transaction.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"portalcore/internal/infra/persistence/memory"
	"portalcore/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const defaultPath = "portalcore.json"

// Store persists the in-memory document to a single JSON file.
type Store struct {
	*memory.Store
	path string
}

// NewStore opens (or creates) the document slot at path. A missing slot is
// written with the seed document; an unreadable or malformed slot is treated
// as absent and reseeded.
func NewStore(path string, engine *domain.RulesEngine, seed domain.Document) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	s := &Store{Store: memory.NewStore(engine), path: path}

	doc, ok := readDocument(path)
	if !ok {
		doc = seed.Clone()
	}
	s.ImportState(doc)
	if !ok {
		if err := s.persist(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Path returns the slot location on disk.
func (s *Store) Path() string { return s.path }

// readDocument loads the persisted slot. Any read or decode failure is
// reported as absent; the caller reseeds and overwrites.
func readDocument(path string) (domain.Document, bool) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is the configured slot location
	if err != nil {
		return domain.Document{}, false
	}
	var doc domain.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return domain.Document{}, false
	}
	return doc, true
}

func (s *Store) persist() error {
	data, err := json.MarshalIndent(s.ExportState(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace document: %w", err)
	}
	return nil
}

// RunInTransaction applies the provided function within a transaction, then
// rewrites the slot if successful.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Transaction) error) (domain.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	if err := s.persist(); err != nil {
		return res, err
	}
	return res, nil
}
