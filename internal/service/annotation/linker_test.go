package annotation

import (
	"context"
	"testing"

	"marginalia/internal/domain"
	models "marginalia/internal/domain/models/annotation"
	svc "marginalia/internal/domain/services/annotation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoteLinker_Attach(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, "reader-1", newRepo())
	linker := NewNoteLinker(s, testLogger())

	hl, err := s.Add(ctx, gatsby, models.KindHighlight, svc.AddFields{
		PageIndex:    9,
		Text:         "So we beat on",
		PositionHint: models.Position{X: 0.2, Y: 0.8},
	})
	require.NoError(t, err)

	note, err := linker.Attach(ctx, gatsby, hl.ID, "final page", nil)
	require.NoError(t, err)
	assert.Equal(t, models.KindNote, note.Kind)
	assert.Equal(t, 9, note.PageIndex)
	assert.Equal(t, hl.PositionHint, note.PositionHint)
	assert.Equal(t, models.ColorGreen, note.Color)
	require.NotNil(t, note.RelatedTo)
	assert.Equal(t, hl.ID, *note.RelatedTo)

	purple := models.ColorPurple
	second, err := linker.Attach(ctx, gatsby, hl.ID, "", &purple)
	require.NoError(t, err)
	assert.Equal(t, models.ColorPurple, second.Color)

	notes, err := linker.NotesFor(ctx, gatsby, hl.ID)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, note.ID, notes[0].ID)
	assert.Equal(t, second.ID, notes[1].ID)
}

func TestNoteLinker_AttachRejectsBadParent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, "reader-1", newRepo())
	linker := NewNoteLinker(s, testLogger())

	bm, err := s.Add(ctx, gatsby, models.KindBookmark, svc.AddFields{PageIndex: 1})
	require.NoError(t, err)
	note, err := linker.Attach(ctx, gatsby, bm.ID, "on a bookmark", nil)
	require.NoError(t, err)

	_, err = linker.Attach(ctx, gatsby, note.ID, "note on note", nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = linker.Attach(ctx, gatsby, "hl-404", "nothing there", nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	count, err := s.Count(ctx, gatsby)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
