// Package tokenstore persists the player and game tokens so a session can
// be resumed after a restart. The live session is always authoritative;
// the stored value is only a fallback.
package tokenstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var ErrNotFound = errors.New("no stored tokens")

type Tokens struct {
	PlayerToken string `json:"player_token"`
	GameToken   string `json:"game_token"`
}

// Store keeps the tokens in one JSON file under the given directory.
type Store struct {
	path string
}

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create token dir: %w", err)
	}
	return &Store{path: filepath.Join(dir, "tokens.json")}, nil
}

func (s *Store) Load() (Tokens, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Tokens{}, ErrNotFound
	}
	if err != nil {
		return Tokens{}, fmt.Errorf("read tokens: %w", err)
	}
	var t Tokens
	if err := json.Unmarshal(data, &t); err != nil {
		return Tokens{}, fmt.Errorf("parse tokens: %w", err)
	}
	return t, nil
}

func (s *Store) Save(t Tokens) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal tokens: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write tokens: %w", err)
	}
	return nil
}

// Clear removes the stored tokens; resuming is no longer possible.
func (s *Store) Clear() error {
	err := os.Remove(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
