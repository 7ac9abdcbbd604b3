package annotation

import (
	"context"

	"marginalia/internal/anchor"
	"marginalia/internal/domain/models/annotation"
)

// AnnotationStore owns one reader's annotations, keyed by document
type AnnotationStore interface {
	// Add creates a record of the given kind. Requires a signed-in reader.
	Add(ctx context.Context, documentID string, kind annotation.Kind, fields AddFields) (*annotation.Record, error)

	// Get returns one record or a NotFoundError
	Get(ctx context.Context, documentID, id string) (*annotation.Record, error)

	// Update applies a partial change. Kind, document and highlight text are immutable.
	Update(ctx context.Context, documentID, id string, fields UpdateFields) (*annotation.Record, error)

	// ChangeColor is shorthand for an Update that only sets the color
	ChangeColor(ctx context.Context, documentID, id string, color annotation.Color) (*annotation.Record, error)

	// Delete removes a record and any notes attached to it. Unknown ids are a no-op.
	Delete(ctx context.Context, documentID, id string) error

	// List returns every record of the document in insertion order
	List(ctx context.Context, documentID string) ([]*annotation.Record, error)

	// QueryByKind returns the records of one kind in insertion order
	QueryByKind(ctx context.Context, documentID string, kind annotation.Kind) ([]*annotation.Record, error)

	// QueryByPage returns the records on one page, optionally restricted to some kinds
	QueryByPage(ctx context.Context, documentID string, pageIndex int, kinds ...annotation.Kind) ([]*annotation.Record, error)

	// RelatedNotes returns the notes attached to targetID
	RelatedNotes(ctx context.Context, documentID, targetID string) ([]*annotation.Record, error)

	// Export snapshots every record of the document
	Export(ctx context.Context, documentID string) (*annotation.Snapshot, error)

	// Import merges a snapshot into the document, all-or-nothing. Returns how many records were added.
	Import(ctx context.Context, snap *annotation.Snapshot) (int, error)

	// ClearAll removes every record of the document
	ClearAll(ctx context.Context, documentID string) error

	// Count returns how many records the document holds
	Count(ctx context.Context, documentID string) (int, error)

	// Documents lists the documents that hold at least one record, with counts
	Documents(ctx context.Context) ([]annotation.DocumentSummary, error)
}

// NoteLinker attaches notes to bookmarks and highlights
type NoteLinker interface {
	// Attach creates a note on parentID, inheriting its page and position
	Attach(ctx context.Context, documentID, parentID, text string, color *annotation.Color) (*annotation.Record, error)

	// NotesFor returns the notes attached to parentID
	NotesFor(ctx context.Context, documentID, parentID string) ([]*annotation.Record, error)
}

// PageAnnotator re-anchors a page's highlights against freshly rendered text
type PageAnnotator interface {
	// MarksForPage resolves every highlight of the page against runs
	MarksForPage(ctx context.Context, documentID string, pageIndex int, runs []anchor.Run) (*PageMarks, error)

	// RenderHTML resolves the page's highlights against an HTML fragment and wraps them in marker spans
	RenderHTML(ctx context.Context, documentID string, pageIndex int, fragment string) (string, *PageMarks, error)
}

// Session bundles the services scoped to one signed-in reader
type Session struct {
	OwnerID     string
	Annotations AnnotationStore
	Notes       NoteLinker
	Pages       PageAnnotator
}

// SessionProvider hands out the session for a reader, creating it on first use
type SessionProvider interface {
	ForOwner(ownerID string) *Session
}

// AddFields carries the caller-supplied part of a new record
type AddFields struct {
	PageIndex    int                 `json:"pageIndex"`
	Color        annotation.Color    `json:"color,omitempty"` // Empty means the kind's default
	Text         string              `json:"text,omitempty"`
	PositionHint annotation.Position `json:"positionHint"`
	RelatedTo    *string             `json:"relatedTo,omitempty"` // Notes only
}

// UpdateFields is a partial update. Nil fields are left unchanged.
// Kind and DocumentID exist so attempts to change them can be rejected explicitly.
type UpdateFields struct {
	Kind         *annotation.Kind     `json:"kind,omitempty"`
	DocumentID   *string              `json:"documentId,omitempty"`
	Color        *annotation.Color    `json:"color,omitempty"`
	Text         *string              `json:"text,omitempty"`
	PositionHint *annotation.Position `json:"positionHint,omitempty"`
}

// Mark is one highlight resolved on a rendered page
type Mark struct {
	AnnotationID string           `json:"annotationId"`
	Color        annotation.Color `json:"color"`
	Class        string           `json:"class"`
	Text         string           `json:"text"`
	Range        anchor.Range     `json:"range"`
	NoteIDs      []string         `json:"noteIds,omitempty"`
}

// Conflict is a resolved highlight the surface refused to wrap
type Conflict struct {
	AnnotationID string `json:"annotationId"`
	Reason       string `json:"reason"`
}

// PageMarks is the outcome of annotating one page render.
// Unresolved highlights are data: their text is no longer on the page.
type PageMarks struct {
	DocumentID string     `json:"documentId"`
	PageIndex  int        `json:"pageIndex"`
	Marks      []Mark     `json:"marks"`
	Unresolved []string   `json:"unresolved"`
	Conflicts  []Conflict `json:"conflicts"`
}
