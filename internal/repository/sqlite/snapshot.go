// Package sqlite stores annotation snapshots in a local SQLite file, for the offline CLI and
// single-reader deployments. It uses the pure Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	models "marginalia/internal/domain/models/annotation"
	repo "marginalia/internal/domain/repositories/annotation"

	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

const schema = `
CREATE TABLE IF NOT EXISTS annotation_snapshots (
	owner_id         TEXT    NOT NULL,
	document_id      TEXT    NOT NULL,
	schema_version   INTEGER NOT NULL,
	annotation_count INTEGER NOT NULL,
	payload          TEXT    NOT NULL,
	updated_at       TEXT    NOT NULL,
	PRIMARY KEY (owner_id, document_id)
)`

// Open opens (creating if needed) the database at path and ensures the schema exists.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sqlite schema: %w", err)
	}
	return db, nil
}

// SnapshotRepository implements the snapshot repository over database/sql
type SnapshotRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSnapshotRepository creates a repository over an open database
func NewSnapshotRepository(db *sql.DB, logger *slog.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		db:     db,
		logger: logger,
	}
}

// Load returns the stored snapshot, or nil when none exists
func (r *SnapshotRepository) Load(ctx context.Context, ownerID, documentID string) (*models.Snapshot, error) {
	var payload string
	err := r.db.QueryRowContext(ctx,
		`SELECT payload FROM annotation_snapshots WHERE owner_id = ? AND document_id = ?`,
		ownerID, documentID,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap models.Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// Save upserts the snapshot
func (r *SnapshotRepository) Save(ctx context.Context, ownerID, documentID string, snapshot *models.Snapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO annotation_snapshots (owner_id, document_id, schema_version, annotation_count, payload, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner_id, document_id) DO UPDATE SET
			schema_version = excluded.schema_version,
			annotation_count = excluded.annotation_count,
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		ownerID,
		documentID,
		snapshot.SchemaVersion,
		len(snapshot.Annotations),
		string(payload),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	r.logger.Debug("snapshot saved",
		"owner_id", ownerID,
		"document_id", documentID,
		"count", len(snapshot.Annotations),
	)
	return nil
}

// Delete removes the snapshot; a missing one is not an error
func (r *SnapshotRepository) Delete(ctx context.Context, ownerID, documentID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM annotation_snapshots WHERE owner_id = ? AND document_id = ?`,
		ownerID, documentID,
	)
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// ListDocuments returns the owner's document ids in order
func (r *SnapshotRepository) ListDocuments(ctx context.Context, ownerID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT document_id FROM annotation_snapshots WHERE owner_id = ? ORDER BY document_id`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan document id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return ids, nil
}

var _ repo.SnapshotRepository = (*SnapshotRepository)(nil)
