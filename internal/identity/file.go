package identity

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/vladimirruppel/roomchat/internal/protocol"
)

// FileStore keeps the identity as a JSON file readable by its owner only.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(_ context.Context) (*protocol.Identity, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "read identity file")
	}

	var id protocol.Identity
	if err := json.Unmarshal(data, &id); err != nil {
		return nil, errors.Wrap(err, "decode identity file")
	}
	return &id, nil
}

func (s *FileStore) Save(_ context.Context, id protocol.Identity) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return errors.Wrap(err, "create identity dir")
	}
	data, err := json.MarshalIndent(id, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode identity")
	}
	return errors.Wrap(os.WriteFile(s.path, data, 0600), "write identity file")
}

func (s *FileStore) Clear(_ context.Context) error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "remove identity file")
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
