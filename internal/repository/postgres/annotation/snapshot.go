package annotation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	models "marginalia/internal/domain/models/annotation"
	repo "marginalia/internal/domain/repositories/annotation"
	"marginalia/internal/repository/postgres"
)

// PostgresSnapshotRepository stores one JSONB snapshot row per (owner, document)
type PostgresSnapshotRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewSnapshotRepository creates a new PostgresSnapshotRepository
func NewSnapshotRepository(config *postgres.RepositoryConfig) repo.SnapshotRepository {
	return &PostgresSnapshotRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Load returns the stored snapshot, or nil when none exists
func (r *PostgresSnapshotRepository) Load(ctx context.Context, ownerID, documentID string) (*models.Snapshot, error) {
	query := fmt.Sprintf(`
		SELECT payload
		FROM %s
		WHERE owner_id = $1 AND document_id = $2
	`, r.tables.AnnotationSnapshots)

	var payload []byte
	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, ownerID, documentID).Scan(&payload)
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			// Nothing saved yet - not an error
			return nil, nil
		}
		if postgres.IsPgUndefinedTableError(err) {
			return nil, fmt.Errorf("table %s does not exist, run the seed command with -schema-only: %w",
				r.tables.AnnotationSnapshots, err)
		}
		return nil, fmt.Errorf("load annotation snapshot: %w", err)
	}

	var snap models.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("decode annotation snapshot: %w", err)
	}
	return &snap, nil
}

// Save upserts the snapshot row
func (r *PostgresSnapshotRepository) Save(ctx context.Context, ownerID, documentID string, snapshot *models.Snapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode annotation snapshot: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (owner_id, document_id, schema_version, annotation_count, payload, updated_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6)
		ON CONFLICT (owner_id, document_id) DO UPDATE SET
			schema_version = EXCLUDED.schema_version,
			annotation_count = EXCLUDED.annotation_count,
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at
	`, r.tables.AnnotationSnapshots)

	executor := postgres.GetExecutor(ctx, r.pool)
	_, err = executor.Exec(ctx, query,
		ownerID,
		documentID,
		snapshot.SchemaVersion,
		len(snapshot.Annotations),
		string(payload),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save annotation snapshot: %w", err)
	}

	r.logger.Debug("annotation snapshot saved",
		"owner_id", ownerID,
		"document_id", documentID,
		"count", len(snapshot.Annotations),
	)
	return nil
}

// Delete removes the snapshot row; a missing row is not an error
func (r *PostgresSnapshotRepository) Delete(ctx context.Context, ownerID, documentID string) error {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE owner_id = $1 AND document_id = $2
	`, r.tables.AnnotationSnapshots)

	executor := postgres.GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, ownerID, documentID); err != nil {
		return fmt.Errorf("delete annotation snapshot: %w", err)
	}
	return nil
}

// ListDocuments returns the owner's document ids, ordered
func (r *PostgresSnapshotRepository) ListDocuments(ctx context.Context, ownerID string) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT document_id
		FROM %s
		WHERE owner_id = $1
		ORDER BY document_id
	`, r.tables.AnnotationSnapshots)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list annotated documents: %w", err)
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
		return nil, fmt.Errorf("list annotated documents: %w", err)
	}
	return ids, nil
}
