package annotation

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"marginalia/internal/config"
	"marginalia/internal/domain"
	models "marginalia/internal/domain/models/annotation"
	svc "marginalia/internal/domain/services/annotation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_ExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := newTestStore(t, "reader-1", newRepo())
	hl := addHighlight(t, src, 5, "borne back ceaselessly into the past")
	_, err := src.Add(ctx, gatsby, models.KindNote, svc.AddFields{PageIndex: 5, Text: "closing line", RelatedTo: strPtr(hl.ID)})
	require.NoError(t, err)
	_, err = src.Add(ctx, gatsby, models.KindBookmark, svc.AddFields{PageIndex: 180})
	require.NoError(t, err)

	snap, err := src.Export(ctx, gatsby)
	require.NoError(t, err)
	assert.Equal(t, models.SchemaVersion, snap.SchemaVersion)
	assert.Equal(t, gatsby, snap.DocumentID)
	assert.False(t, snap.ExportedAt.IsZero())
	require.Len(t, snap.Annotations, 3)

	var buf bytes.Buffer
	require.NoError(t, EncodeSnapshot(&buf, snap))
	decoded, err := DecodeSnapshot(&buf)
	require.NoError(t, err)

	dst := newTestStore(t, "reader-2", newRepo())
	n, err := dst.Import(ctx, decoded)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := dst.List(ctx, gatsby)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, r := range got {
		assert.Equal(t, snap.Annotations[i].ID, r.ID)
		assert.Equal(t, "reader-2", r.OwnerID)
		assert.Equal(t, snap.Annotations[i].CreatedAt, r.CreatedAt)
	}
	notes, err := dst.RelatedNotes(ctx, gatsby, hl.ID)
	require.NoError(t, err)
	assert.Len(t, notes, 1)
}

func TestStore_ImportRemapsCollidingIDs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, "reader-1", newRepo())
	existing := addHighlight(t, s, 1, "old sport")

	snap := &models.Snapshot{
		SchemaVersion: models.SchemaVersion,
		DocumentID:    gatsby,
		Annotations: []*models.Record{
			{ID: existing.ID, PageIndex: 2, Kind: models.KindHighlight, Color: models.ColorBlue, Text: "green light"},
			{ID: "nt-9", PageIndex: 2, Kind: models.KindNote, Text: "on the imported one", RelatedTo: strPtr(existing.ID)},
			{ID: "nt-9", PageIndex: 2, Kind: models.KindNote, Text: "duplicate id"},
			{PageIndex: 3, Kind: models.KindBookmark},
		},
	}

	n, err := s.Import(ctx, snap)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	list, err := s.List(ctx, gatsby)
	require.NoError(t, err)
	require.Len(t, list, 5)

	imported := list[1]
	assert.NotEqual(t, existing.ID, imported.ID)
	assert.Equal(t, "green light", imported.Text)

	note := list[2]
	assert.Equal(t, "nt-9", note.ID)
	require.NotNil(t, note.RelatedTo)
	assert.Equal(t, imported.ID, *note.RelatedTo, "snapshot-internal reference follows the remapped id")

	dup := list[3]
	assert.NotEqual(t, "nt-9", dup.ID)
	assert.NotEmpty(t, list[4].ID)
	assert.Equal(t, models.ColorBlue, list[4].Color)

	// The original highlight kept its notes-free state.
	notes, err := s.RelatedNotes(ctx, gatsby, existing.ID)
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestStore_ImportIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, "reader-1", newRepo())
	addHighlight(t, s, 1, "old sport")

	tests := []struct {
		name string
		snap *models.Snapshot
	}{
		{
			name: "one invalid record",
			snap: &models.Snapshot{SchemaVersion: 1, DocumentID: gatsby, Annotations: []*models.Record{
				{ID: "bm-50", PageIndex: 1, Kind: models.KindBookmark},
				{ID: "hl-50", PageIndex: 1, Kind: models.KindHighlight, Text: ""},
			}},
		},
		{
			name: "dangling relation",
			snap: &models.Snapshot{SchemaVersion: 1, DocumentID: gatsby, Annotations: []*models.Record{
				{ID: "nt-50", PageIndex: 1, Kind: models.KindNote, RelatedTo: strPtr("hl-missing")},
			}},
		},
		{
			name: "record from another document",
			snap: &models.Snapshot{SchemaVersion: 1, DocumentID: gatsby, Annotations: []*models.Record{
				{ID: "bm-50", DocumentID: "1984", PageIndex: 1, Kind: models.KindBookmark},
			}},
		},
		{
			name: "id longer than the limit",
			snap: &models.Snapshot{SchemaVersion: 1, DocumentID: gatsby, Annotations: []*models.Record{
				{ID: "bm-" + strings.Repeat("x", config.MaxAnnotationIDLength), PageIndex: 1, Kind: models.KindBookmark},
			}},
		},
		{
			name: "highlight text not utf-8",
			snap: &models.Snapshot{SchemaVersion: 1, DocumentID: gatsby, Annotations: []*models.Record{
				{ID: "hl-50", PageIndex: 1, Kind: models.KindHighlight, Text: "caf\xe9"},
			}},
		},
		{
			name: "unknown schema version",
			snap: &models.Snapshot{SchemaVersion: 2, DocumentID: gatsby},
		},
		{
			name: "null record",
			snap: &models.Snapshot{SchemaVersion: 1, DocumentID: gatsby, Annotations: []*models.Record{nil}},
		},
		{
			name: "missing document",
			snap: &models.Snapshot{SchemaVersion: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Import(ctx, tt.snap)
			assert.ErrorIs(t, err, domain.ErrValidation)

			count, err := s.Count(ctx, gatsby)
			require.NoError(t, err)
			assert.Equal(t, 1, count)
		})
	}
}

func TestStore_ImportRequiresSignedInReader(t *testing.T) {
	s := newTestStore(t, "", newRepo())
	_, err := s.Import(context.Background(), &models.Snapshot{SchemaVersion: 1, DocumentID: gatsby})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestDecodeSnapshot(t *testing.T) {
	valid := `{"schemaVersion":1,"documentId":"1984","exportedAt":"2024-04-04T12:00:00Z","annotations":[
		{"id":"hl-1","documentId":"1984","ownerId":"winston","pageIndex":1,"kind":"highlight","color":"red",
		 "text":"WAR IS PEACE","positionHint":{"x":0.1,"y":0.2},"relatedTo":null,
		 "createdAt":"2024-04-04T11:00:00Z","updatedAt":"2024-04-04T11:00:00Z"}]}`

	snap, err := DecodeSnapshot(strings.NewReader(valid))
	require.NoError(t, err)
	assert.Equal(t, "1984", snap.DocumentID)
	assert.Equal(t, time.Date(2024, 4, 4, 12, 0, 0, 0, time.UTC), snap.ExportedAt)
	require.Len(t, snap.Annotations, 1)
	assert.Equal(t, "WAR IS PEACE", snap.Annotations[0].Text)
	assert.Equal(t, models.Position{X: 0.1, Y: 0.2}, snap.Annotations[0].PositionHint)

	rejects := map[string]string{
		"not json":              `{"schemaVersion":`,
		"missing version":       `{"documentId":"1984","annotations":[]}`,
		"future version":        `{"schemaVersion":7,"documentId":"1984","annotations":[]}`,
		"missing document":      `{"schemaVersion":1,"annotations":[]}`,
		"empty document":        `{"schemaVersion":1,"documentId":"","annotations":[]}`,
		"missing annotations":   `{"schemaVersion":1,"documentId":"1984"}`,
		"annotations is object": `{"schemaVersion":1,"documentId":"1984","annotations":{}}`,
		"annotations is null":   `{"schemaVersion":1,"documentId":"1984","annotations":null}`,
		"null record":           `{"schemaVersion":1,"documentId":"1984","annotations":[null]}`,
	}
	for name, body := range rejects {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeSnapshot(strings.NewReader(body))
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}
