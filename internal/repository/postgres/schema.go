package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the annotation tables if they do not exist
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, tables *TableNames) error {
	statements := []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				owner_id         TEXT         NOT NULL,
				document_id      VARCHAR(255) NOT NULL,
				schema_version   INTEGER      NOT NULL,
				annotation_count INTEGER      NOT NULL DEFAULT 0,
				payload          JSONB        NOT NULL,
				updated_at       TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
				PRIMARY KEY (owner_id, document_id)
			)`, tables.AnnotationSnapshots),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_updated ON %s (owner_id, updated_at DESC)`,
			tables.AnnotationSnapshots, tables.AnnotationSnapshots),
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// DropSchema drops the annotation tables
func DropSchema(ctx context.Context, pool *pgxpool.Pool, tables *TableNames) error {
	if _, err := pool.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, tables.AnnotationSnapshots)); err != nil {
		return fmt.Errorf("drop schema: %w", err)
	}
	return nil
}
