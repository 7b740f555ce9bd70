// Package store persists the latest scan snapshot and serves it to
// readers without ever exposing a half-written one.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/AnbuPalani1991/alltimehigh-scanner/internal/model"
)

// Store holds the most recently published scan snapshot, mirrored to disk.
// Publish replaces the snapshot wholesale; Latest never blocks on a
// publish in progress.
type Store struct {
	path   string
	logger *zap.Logger

	mu     sync.RWMutex
	latest *model.ScanSnapshot
}

// New creates a Store backed by the given file, loading an existing
// snapshot from disk if its schema version matches.
func New(path string, logger *zap.Logger) *Store {
	s := &Store{path: path, logger: logger}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("result snapshot unreadable", zap.Error(err))
		}
		return s
	}
	var snap model.ScanSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		logger.Warn("result snapshot corrupt, ignoring", zap.Error(err))
		return s
	}
	if snap.SchemaVersion != model.SnapshotSchemaVersion {
		logger.Warn("result snapshot schema mismatch, ignoring",
			zap.Int("found", snap.SchemaVersion),
			zap.Int("want", model.SnapshotSchemaVersion))
		return s
	}
	s.latest = &snap
	logger.Info("loaded previous scan snapshot",
		zap.String("scan_id", snap.ScanID),
		zap.Time("finished_at", snap.FinishedAt),
		zap.Int("ath_count", snap.ATHCount))
	return s
}

// Publish durably replaces the latest snapshot. The file is written to a
// temporary path and renamed into place so readers of the file observe
// either the old snapshot or the new one, never a mix. On write failure
// the prior snapshot remains authoritative.
func (s *Store) Publish(snap *model.ScanSnapshot) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}

	s.mu.Lock()
	s.latest = snap
	s.mu.Unlock()

	s.logger.Info("scan snapshot published",
		zap.String("scan_id", snap.ScanID),
		zap.Int("total", snap.TotalSymbols),
		zap.Int("ath_count", snap.ATHCount))
	return nil
}

// Latest returns the most recently published snapshot, or nil if no scan
// has ever completed.
func (s *Store) Latest() *model.ScanSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}
