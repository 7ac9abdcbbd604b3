package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestNewTableNames(t *testing.T) {
	assert.Equal(t, "dev_annotation_snapshots", NewTableNames("dev_").AnnotationSnapshots)
	assert.Equal(t, "annotation_snapshots", NewTableNames("").AnnotationSnapshots)
}

func TestCreateConnectionPool_RejectsBadURL(t *testing.T) {
	_, err := CreateConnectionPool(context.Background(), "")
	assert.Error(t, err)

	_, err = CreateConnectionPool(context.Background(), "postgres://%zz")
	assert.Error(t, err)
}

func TestErrorClassifiers(t *testing.T) {
	assert.True(t, IsPgNoRowsError(fmt.Errorf("wrapped: %w", pgx.ErrNoRows)))
	assert.False(t, IsPgNoRowsError(errors.New("other")))

	assert.True(t, IsPgUndefinedTableError(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "42P01"})))
	assert.False(t, IsPgUndefinedTableError(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsPgUndefinedTableError(pgx.ErrNoRows))
}
