// Package localstore is the guaranteed save path: every generated station is
// written to disk before any database attempt, and the file is updated in
// place once the database write succeeds.
package localstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/revalidafacil/stations-backend/internal/logger"
)

const (
	StatusLocalOnly = "local_only"
	StatusSynced    = "synced"
)

// Metadata is the bookkeeping attached to the stored document.
type Metadata struct {
	Tema          string
	Especialidade string
}

type Store struct {
	dir string
	log *logger.Logger
}

func New(baseLog *logger.Logger, dir string) (*Store, error) {
	if dir == "" {
		dir = "estacoes_geradas"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create local station dir %s: %w", dir, err)
	}
	return &Store{dir: dir, log: baseLog.With("service", "LocalStore")}, nil
}

// Save writes the document with its bookkeeping fields and returns the
// generated id and the file path.
func (s *Store) Save(doc map[string]any, meta Metadata) (uuid.UUID, string, error) {
	id := uuid.New()

	withMeta := make(map[string]any, len(doc)+5)
	for k, v := range doc {
		withMeta[k] = v
	}
	withMeta["id"] = id.String()
	withMeta["created_at"] = time.Now().UTC().Format(time.RFC3339)
	withMeta["sync_status"] = StatusLocalOnly
	withMeta["tema_original"] = meta.Tema
	withMeta["especialidade_original"] = meta.Especialidade

	path := s.path(id)
	if err := writePretty(path, withMeta); err != nil {
		return uuid.Nil, "", fmt.Errorf("failed to save station locally: %w", err)
	}
	s.log.Info("estação salva localmente", "id", id.String(), "file", path)
	return id, path, nil
}

// MarkSynced records the database id on an existing local file. The file is
// read back and updated, never rebuilt, so fields added after Save survive.
func (s *Store) MarkSynced(id uuid.UUID, remoteID string) error {
	path := s.path(id)
	doc, err := s.Load(id)
	if err != nil {
		return err
	}
	doc["remote_id"] = remoteID
	doc["sync_status"] = StatusSynced
	if err := writePretty(path, doc); err != nil {
		return fmt.Errorf("failed to update local station %s: %w", id, err)
	}
	s.log.Info("arquivo local sincronizado", "id", id.String(), "remote_id", remoteID)
	return nil
}

func (s *Store) Load(id uuid.UUID) (map[string]any, error) {
	raw, err := os.ReadFile(s.path(id))
	if err != nil {
		return nil, fmt.Errorf("failed to read local station %s: %w", id, err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("local station %s is not valid JSON: %w", id, err)
	}
	return doc, nil
}

func (s *Store) path(id uuid.UUID) string {
	return filepath.Join(s.dir, id.String()+".json")
}

func writePretty(path string, doc map[string]any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
