// Package persistence reads and writes versioned cache snapshots so the
// cache survives process restarts. The snapshot is a full point-in-time
// dump, never incremental, and the store is the only component that
// touches the disk.
package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stashd/stash/internal/logging"
	"github.com/stashd/stash/internal/metrics"
	"github.com/stashd/stash/internal/resource"
)

// SnapshotVersion is the snapshot format version this store writes and
// the only version it accepts on restore.
const SnapshotVersion = 1

// DefaultFileName is the snapshot file name used when the caller does
// not pick one.
const DefaultFileName = "snapshot.json"

// Snapshot is the on-disk representation of the full cache state.
type Snapshot struct {
	Version   int             `json:"version"`
	Timestamp string          `json:"timestamp"`
	Entries   []SnapshotEntry `json:"entries"`
}

// SnapshotEntry is one flattened cache entry. ExpiresAt is epoch
// milliseconds; zero means the entry never expires.
type SnapshotEntry struct {
	Key       string   `json:"key"`
	Value     any      `json:"value"`
	ExpiresAt int64    `json:"expiresAt,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

// RestoreStats summarizes one restore pass.
type RestoreStats struct {
	Restored int
	Expired  int
}

// Store persists cache snapshots at a fixed file path using a
// write-temp-then-rename scheme, so the file on disk is always one
// complete snapshot (old or new), even if the process dies mid-write.
type Store struct {
	path   string
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	lastSaved time.Time
}

// NewStore creates a snapshot store writing to the given file path.
// A nil logger falls back to the operational logger.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = logging.Op()
	}
	return &Store{
		path:   path,
		logger: logger,
		now:    time.Now,
	}
}

// Path returns the resolved snapshot file location.
func (s *Store) Path() string {
	return s.path
}

// LastSavedAt returns the time of the last successful save, or the zero
// time if nothing has been saved by this store instance.
func (s *Store) LastSavedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSaved
}

// Save serializes the full entry mapping and atomically replaces the
// snapshot file. Entries are written in key order so consecutive
// snapshots of the same state are identical. I/O failures are logged
// and returned; callers must know durability was not achieved.
func (s *Store) Save(entries map[string]resource.Entry) error {
	opID := uuid.New().String()
	now := s.now()

	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	snap := Snapshot{
		Version:   SnapshotVersion,
		Timestamp: now.UTC().Format(time.RFC3339),
		Entries:   make([]SnapshotEntry, 0, len(keys)),
	}
	for _, key := range keys {
		entry := entries[key]
		se := SnapshotEntry{
			Key:   key,
			Value: entry.Value,
			Tags:  entry.Tags,
		}
		if !entry.ExpiresAt.IsZero() {
			se.ExpiresAt = entry.ExpiresAt.UnixMilli()
		}
		snap.Entries = append(snap.Entries, se)
	}

	if err := s.write(&snap); err != nil {
		s.logger.Error("snapshot save failed", "op_id", opID, "path", s.path, "error", err)
		metrics.RecordSnapshotSave(len(snap.Entries), now, false)
		return err
	}

	s.mu.Lock()
	s.lastSaved = now
	s.mu.Unlock()

	metrics.RecordSnapshotSave(len(snap.Entries), now, true)
	s.logger.Info("snapshot saved", "op_id", opID, "path", s.path, "entries", len(snap.Entries))
	return nil
}

func (s *Store) write(snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	// The temp file must live in the target directory: rename is only
	// atomic within one filesystem.
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename snapshot into place: %w", err)
	}
	return nil
}

// Read parses the snapshot file without filtering, for diagnostics and
// the CLI. Unlike Restore it reports errors to the caller.
func (s *Store) Read() (*Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}

	// Gate on the version before decoding any entries.
	var header struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	if header.Version != SnapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d (want %d)", header.Version, SnapshotVersion)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return &snap, nil
}

// Restore loads the snapshot file and returns the entries that are
// still live. A missing file yields an empty map; an unknown version,
// corrupt file or read error is logged and degrades to whatever was
// accumulated (empty, in practice) so startup is never blocked.
// Entries whose expiry is strictly before the current time are dropped
// and counted in the stats.
func (s *Store) Restore() (map[string]resource.Entry, RestoreStats) {
	opID := uuid.New().String()
	out := make(map[string]resource.Entry)
	var stats RestoreStats

	snap, err := s.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Debug("no snapshot to restore", "path", s.path)
			return out, stats
		}
		s.logger.Warn("snapshot restore degraded to empty", "op_id", opID, "path", s.path, "error", err)
		return out, stats
	}

	now := s.now()
	for _, se := range snap.Entries {
		var expiresAt time.Time
		if se.ExpiresAt != 0 {
			expiresAt = time.UnixMilli(se.ExpiresAt)
			if expiresAt.Before(now) {
				stats.Expired++
				continue
			}
		}
		out[se.Key] = resource.Entry{
			Value:     se.Value,
			ExpiresAt: expiresAt,
			Tags:      se.Tags,
		}
		stats.Restored++
	}

	metrics.RecordSnapshotRestore(stats.Restored, stats.Expired)
	s.logger.Info("snapshot restored", "op_id", opID, "path", s.path,
		"restored", stats.Restored, "expired", stats.Expired)
	return out, stats
}
