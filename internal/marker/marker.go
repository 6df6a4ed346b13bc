// Package marker keeps the advisory signed-in marker in device storage.
package marker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dtroode/phoneauth/internal/model"
)

// Store reads and writes the session marker under a single key.
type Store struct {
	kv  model.KeyValueStore
	key string
}

// New creates a marker Store on top of kv.
func New(kv model.KeyValueStore, key string) *Store {
	return &Store{kv: kv, key: key}
}

// Save writes the marker.
func (s *Store) Save(ctx context.Context, m model.SessionMarker) error {
	blob, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal session marker: %w", err)
	}
	if err := s.kv.Write(ctx, s.key, blob); err != nil {
		return fmt.Errorf("failed to write session marker: %w", err)
	}
	return nil
}

// Load returns the stored marker. ok is false when nothing is stored.
func (s *Store) Load(ctx context.Context) (m model.SessionMarker, ok bool, err error) {
	blob, err := s.kv.Read(ctx, s.key)
	if errors.Is(err, model.ErrNotFound) {
		return model.SessionMarker{}, false, nil
	}
	if err != nil {
		return model.SessionMarker{}, false, fmt.Errorf("failed to read session marker: %w", err)
	}
	if err := json.Unmarshal(blob, &m); err != nil {
		return model.SessionMarker{}, false, fmt.Errorf("failed to unmarshal session marker: %w", err)
	}
	return m, true, nil
}

// Clear erases the marker.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.Erase(ctx, s.key); err != nil {
		return fmt.Errorf("failed to erase session marker: %w", err)
	}
	return nil
}
