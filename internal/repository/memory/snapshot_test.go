package memory

import (
	"context"
	"testing"
	"time"

	models "marginalia/internal/domain/models/annotation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot(documentID string) *models.Snapshot {
	parent := "hl-1"
	return models.NewSnapshot(documentID, []*models.Record{
		{ID: "hl-1", DocumentID: documentID, OwnerID: "reader-1", PageIndex: 3, Kind: models.KindHighlight, Color: models.ColorYellow, Text: "green light"},
		{ID: "nt-1", DocumentID: documentID, OwnerID: "reader-1", PageIndex: 3, Kind: models.KindNote, Color: models.ColorGreen, Text: "hope", RelatedTo: &parent},
	}, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
}

func TestSnapshotRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	r := NewSnapshotRepository()

	got, err := r.Load(ctx, "reader-1", "gatsby")
	require.NoError(t, err)
	assert.Nil(t, got)

	want := testSnapshot("gatsby")
	require.NoError(t, r.Save(ctx, "reader-1", "gatsby", want))

	got, err = r.Load(ctx, "reader-1", "gatsby")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, got)

	// Stored copies are isolated from the caller.
	got.Annotations[0].Text = "changed"
	again, err := r.Load(ctx, "reader-1", "gatsby")
	require.NoError(t, err)
	assert.Equal(t, "green light", again.Annotations[0].Text)
}

func TestSnapshotRepository_ScopedByOwner(t *testing.T) {
	ctx := context.Background()
	r := NewSnapshotRepository()

	require.NoError(t, r.Save(ctx, "reader-1", "gatsby", testSnapshot("gatsby")))
	require.NoError(t, r.Save(ctx, "reader-1", "1984", testSnapshot("1984")))
	require.NoError(t, r.Save(ctx, "reader-2", "gatsby", testSnapshot("gatsby")))

	docs, err := r.ListDocuments(ctx, "reader-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"1984", "gatsby"}, docs)

	require.NoError(t, r.Delete(ctx, "reader-1", "gatsby"))
	require.NoError(t, r.Delete(ctx, "reader-1", "missing"))

	got, err := r.Load(ctx, "reader-1", "gatsby")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = r.Load(ctx, "reader-2", "gatsby")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestSnapshotRepository_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewSnapshotRepository()

	assert.ErrorIs(t, r.Save(ctx, "reader-1", "gatsby", testSnapshot("gatsby")), context.Canceled)
	_, err := r.Load(ctx, "reader-1", "gatsby")
	assert.ErrorIs(t, err, context.Canceled)
}
