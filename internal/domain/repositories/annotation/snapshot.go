package annotation

import (
	"context"

	models "marginalia/internal/domain/models/annotation"
)

// SnapshotRepository is the persistence collaborator for annotation collections.
// Each (owner, document) pair maps to exactly one stored snapshot, replaced as a whole on save.
type SnapshotRepository interface {
	// Load returns the stored snapshot, or nil (and no error) when nothing was saved yet
	Load(ctx context.Context, ownerID, documentID string) (*models.Snapshot, error)

	// Save replaces the stored snapshot for the document in a single write
	Save(ctx context.Context, ownerID, documentID string, snapshot *models.Snapshot) error

	// Delete removes the stored snapshot. Deleting a missing snapshot is not an error.
	Delete(ctx context.Context, ownerID, documentID string) error

	// ListDocuments returns the ids of every document the owner has a snapshot for
	ListDocuments(ctx context.Context, ownerID string) ([]string, error)
}
