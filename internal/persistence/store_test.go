package persistence

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/stashd/stash/internal/resource"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "snapshot.json"), nil)
}

func TestStore_SaveAndRestore(t *testing.T) {
	s := testStore(t)

	entries := map[string]resource.Entry{
		"PROJECT:p1": {
			Value: map[string]any{"id": "p1", "name": "alpha"},
			Tags:  []string{"x", "y"},
		},
		"TASK:t1": {
			Value:     map[string]any{"id": "t1"},
			ExpiresAt: time.Now().Add(time.Hour),
		},
	}

	if err := s.Save(entries); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if s.LastSavedAt().IsZero() {
		t.Fatal("LastSavedAt not recorded after successful save")
	}

	got, stats := s.Restore()
	if stats.Restored != 2 || stats.Expired != 0 {
		t.Fatalf("expected 2 restored / 0 expired, got %d / %d", stats.Restored, stats.Expired)
	}

	p1, ok := got["PROJECT:p1"]
	if !ok {
		t.Fatal("PROJECT:p1 missing after restore")
	}
	if !reflect.DeepEqual(p1.Value, entries["PROJECT:p1"].Value) {
		t.Fatalf("value changed across round-trip: %v", p1.Value)
	}
	if !reflect.DeepEqual(p1.Tags, []string{"x", "y"}) {
		t.Fatalf("tags changed across round-trip: %v", p1.Tags)
	}
	if !p1.ExpiresAt.IsZero() {
		t.Fatal("entry without TTL must restore without an expiry")
	}

	t1 := got["TASK:t1"]
	if t1.ExpiresAt.IsZero() {
		t.Fatal("entry with TTL must restore with its expiry")
	}
}

func TestStore_RestoreMissingFile(t *testing.T) {
	s := testStore(t)

	got, stats := s.Restore()
	if len(got) != 0 {
		t.Fatalf("expected empty result for missing file, got %d entries", len(got))
	}
	if stats.Restored != 0 || stats.Expired != 0 {
		t.Fatalf("expected zero stats, got %+v", stats)
	}
}

func TestStore_RestoreDropsExpired(t *testing.T) {
	s := testStore(t)

	entries := map[string]resource.Entry{
		"PROJECT:dead": {
			Value:     map[string]any{"id": "dead"},
			ExpiresAt: time.Now().Add(-time.Hour),
		},
		"PROJECT:live": {
			Value:     map[string]any{"id": "live"},
			ExpiresAt: time.Now().Add(time.Hour),
		},
	}
	if err := s.Save(entries); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, stats := s.Restore()
	if stats.Restored != 1 || stats.Expired != 1 {
		t.Fatalf("expected 1 restored / 1 expired, got %d / %d", stats.Restored, stats.Expired)
	}
	if _, ok := got["PROJECT:dead"]; ok {
		t.Fatal("expired entry must not be restored")
	}
	if _, ok := got["PROJECT:live"]; !ok {
		t.Fatal("live entry missing after restore")
	}
}

func TestStore_RestoreUnknownVersion(t *testing.T) {
	s := testStore(t)

	data := `{"version": 2, "timestamp": "2026-08-27T00:00:00Z", "entries": [{"key": "PROJECT:p1", "value": {}}]}`
	if err := os.WriteFile(s.Path(), []byte(data), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	got, stats := s.Restore()
	if len(got) != 0 || stats.Restored != 0 {
		t.Fatal("unknown version must yield an empty result")
	}
}

func TestStore_RestoreCorruptFile(t *testing.T) {
	s := testStore(t)

	if err := os.WriteFile(s.Path(), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	got, stats := s.Restore()
	if len(got) != 0 || stats.Restored != 0 {
		t.Fatal("corrupt file must degrade to an empty result, not fail")
	}
}

func TestStore_SnapshotFormat(t *testing.T) {
	s := testStore(t)

	expiresAt := time.Now().Add(time.Hour)
	entries := map[string]resource.Entry{
		"PROJECT:p1": {
			Value:     map[string]any{"id": "p1"},
			ExpiresAt: expiresAt,
			Tags:      []string{"x"},
		},
	}
	if err := s.Save(entries); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}

	var raw struct {
		Version   int    `json:"version"`
		Timestamp string `json:"timestamp"`
		Entries   []struct {
			Key       string   `json:"key"`
			ExpiresAt int64    `json:"expiresAt"`
			Tags      []string `json:"tags"`
		} `json:"entries"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("snapshot is not valid JSON: %v", err)
	}

	if raw.Version != SnapshotVersion {
		t.Fatalf("expected version %d, got %d", SnapshotVersion, raw.Version)
	}
	if _, err := time.Parse(time.RFC3339, raw.Timestamp); err != nil {
		t.Fatalf("timestamp not RFC3339: %q", raw.Timestamp)
	}
	if len(raw.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(raw.Entries))
	}
	if raw.Entries[0].Key != "PROJECT:p1" {
		t.Fatalf("unexpected key %q", raw.Entries[0].Key)
	}
	if raw.Entries[0].ExpiresAt != expiresAt.UnixMilli() {
		t.Fatalf("expiresAt not epoch millis: %d", raw.Entries[0].ExpiresAt)
	}
}

func TestStore_SaveCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "snapshot.json")
	s := NewStore(path, nil)

	if err := s.Save(map[string]resource.Entry{}); err != nil {
		t.Fatalf("Save into missing directory failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("snapshot file not created: %v", err)
	}
}

func TestStore_SaveLeavesNoTempFiles(t *testing.T) {
	s := testStore(t)

	for i := 0; i < 3; i++ {
		err := s.Save(map[string]resource.Entry{
			"PROJECT:p1": {Value: map[string]any{"round": "1"}},
		})
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	names, err := os.ReadDir(filepath.Dir(s.Path()))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, entry := range names {
		if strings.Contains(entry.Name(), ".tmp-") {
			t.Fatalf("temp file left behind: %s", entry.Name())
		}
	}
	if len(names) != 1 {
		t.Fatalf("expected only the snapshot file, found %d entries", len(names))
	}
}
