package annotation

import (
	"context"
	"errors"
	"log/slog"

	"marginalia/internal/domain"
	models "marginalia/internal/domain/models/annotation"
	svc "marginalia/internal/domain/services/annotation"
)

// NoteLinker creates notes on bookmarks and highlights. Cascading deletes stay in the store.
type NoteLinker struct {
	store  svc.AnnotationStore
	logger *slog.Logger
}

// NewNoteLinker creates a linker over store
func NewNoteLinker(store svc.AnnotationStore, logger *slog.Logger) *NoteLinker {
	return &NoteLinker{
		store:  store,
		logger: logger,
	}
}

// Attach adds a note to parentID. The note takes the parent's page and position.
func (l *NoteLinker) Attach(ctx context.Context, documentID, parentID, text string, color *models.Color) (*models.Record, error) {
	parent, err := l.store.Get(ctx, documentID, parentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewNotFound("no bookmark or highlight with id %s", parentID)
		}
		return nil, err
	}
	if !parent.Kind.CanHaveNotes() {
		return nil, domain.NewNotFound("no bookmark or highlight with id %s", parentID)
	}

	fields := svc.AddFields{
		PageIndex:    parent.PageIndex,
		Text:         text,
		PositionHint: parent.PositionHint,
		RelatedTo:    &parent.ID,
	}
	if color != nil {
		fields.Color = *color
	}

	note, err := l.store.Add(ctx, documentID, models.KindNote, fields)
	if err != nil {
		return nil, err
	}

	l.logger.Debug("note attached",
		"note_id", note.ID,
		"parent_id", parentID,
		"parent_kind", parent.Kind,
	)
	return note, nil
}

// NotesFor returns the notes attached to parentID
func (l *NoteLinker) NotesFor(ctx context.Context, documentID, parentID string) ([]*models.Record, error) {
	return l.store.RelatedNotes(ctx, documentID, parentID)
}

var _ svc.NoteLinker = (*NoteLinker)(nil)
