// Package memory keeps annotation snapshots in process memory. Used by tests and by the
// server when no database is configured; nothing survives a restart.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	models "marginalia/internal/domain/models/annotation"
	repo "marginalia/internal/domain/repositories/annotation"
)

type key struct {
	owner    string
	document string
}

// SnapshotRepository stores each snapshot as encoded JSON so callers never share memory
// with what is stored, the same way a database round trip behaves.
type SnapshotRepository struct {
	mu    sync.RWMutex
	items map[key][]byte
}

// NewSnapshotRepository creates an empty repository
func NewSnapshotRepository() *SnapshotRepository {
	return &SnapshotRepository{items: make(map[key][]byte)}
}

// Load returns the stored snapshot or nil
func (r *SnapshotRepository) Load(ctx context.Context, ownerID, documentID string) (*models.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	data, ok := r.items[key{ownerID, documentID}]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// Save replaces the stored snapshot
func (r *SnapshotRepository) Save(ctx context.Context, ownerID, documentID string, snapshot *models.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	r.mu.Lock()
	r.items[key{ownerID, documentID}] = data
	r.mu.Unlock()
	return nil
}

// Delete removes the stored snapshot, if any
func (r *SnapshotRepository) Delete(ctx context.Context, ownerID, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.items, key{ownerID, documentID})
	r.mu.Unlock()
	return nil
}

// ListDocuments returns the owner's document ids, sorted
func (r *SnapshotRepository) ListDocuments(ctx context.Context, ownerID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0)
	for k := range r.items {
		if k.owner == ownerID {
			ids = append(ids, k.document)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

var _ repo.SnapshotRepository = (*SnapshotRepository)(nil)
