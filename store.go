package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// roomStore persists the full room collection for one game variant as a single
// JSON document: room id -> Room. Writes go to a temp file in the same
// directory and are renamed over the live document, so a failed save never
// corrupts the previously persisted state.
type roomStore struct {
	cfg  *Config
	path string
}

func newRoomStore(cfg *Config, game GameKind) (*roomStore, error) {
	if err := os.MkdirAll(cfg.dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	return &roomStore{
		cfg:  cfg,
		path: filepath.Join(cfg.dataDir, string(game)+".json"),
	}, nil
}

// load returns the stored room collection. A missing or unreadable document
// yields an empty collection rather than an error, so a fresh or damaged
// install starts clean.
func (s *roomStore) load() map[string]*Room {
	rooms := make(map[string]*Room)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logf(s.cfg, "STORE: Failed to read %s: %v", s.path, err)
		}
		return rooms
	}

	if err := json.Unmarshal(data, &rooms); err != nil {
		logf(s.cfg, "STORE: Corrupt document %s, starting empty: %v", s.path, err)
		return make(map[string]*Room)
	}

	return rooms
}

func (s *roomStore) save(rooms map[string]*Room) error {
	data, err := json.MarshalIndent(rooms, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding rooms: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp document: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing temp document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing temp document: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing document: %w", err)
	}

	return nil
}
