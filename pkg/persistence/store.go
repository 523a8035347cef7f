// Package persistence stores session snapshots so a visitor can resume a
// test after a reload.
package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/backsoul/spotit/pkg/models"
	"github.com/backsoul/spotit/pkg/quiz"
)

// KeyPrefix namespaces every persisted snapshot. The version in the prefix
// follows quiz.SnapshotVersion.
var KeyPrefix = fmt.Sprintf("spotit:test-progress:v%d:", quiz.SnapshotVersion)

// Key returns the storage key of a session.
func Key(sessionID string) string {
	return KeyPrefix + sessionID
}

// SnapshotStore persists one snapshot per session.
type SnapshotStore interface {
	// Save replaces the snapshot of sessionID.
	Save(ctx context.Context, sessionID string, snap models.Snapshot) error
	// Load returns the snapshot of sessionID. ok is false when none exists or
	// the stored record has another schema version. Unreadable records are
	// deleted and reported as absent.
	Load(ctx context.Context, sessionID string) (snap models.Snapshot, ok bool, err error)
	// Clear removes the snapshot of sessionID. Clearing a missing snapshot is
	// not an error.
	Clear(ctx context.Context, sessionID string) error
	Ping(ctx context.Context) error
	Close() error
}

// Encode serializes a snapshot for byte-oriented stores.
func Encode(snap models.Snapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return data, nil
}

// Decode parses a stored snapshot. Records of another schema version are
// reported as absent.
func Decode(data []byte) (models.Snapshot, bool, error) {
	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return models.Snapshot{}, false, fmt.Errorf("decoding snapshot: %w", err)
	}
	if snap.Version != quiz.SnapshotVersion {
		return models.Snapshot{}, false, nil
	}
	return snap, true, nil
}
