package annotation

import (
	"time"
)

// Kind is the closed set of annotation variants
type Kind string

const (
	KindBookmark  Kind = "bookmark"
	KindHighlight Kind = "highlight"
	KindNote      Kind = "note"
)

// Kinds lists every valid kind in display order
var Kinds = []Kind{KindBookmark, KindHighlight, KindNote}

// Valid reports whether k is one of the known kinds
func (k Kind) Valid() bool {
	switch k {
	case KindBookmark, KindHighlight, KindNote:
		return true
	}
	return false
}

// CanHaveNotes reports whether notes may point at records of this kind
func (k Kind) CanHaveNotes() bool {
	return k == KindBookmark || k == KindHighlight
}

// Color is a presentational tag. It never affects anchoring.
type Color string

const (
	ColorRed    Color = "red"
	ColorBlue   Color = "blue"
	ColorGreen  Color = "green"
	ColorYellow Color = "yellow"
	ColorPurple Color = "purple"
)

// Position is an approximate fractional placement within the page.
// Used only for UI placement fallback.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Record is a single bookmark, highlight or note attached to a page of a document.
type Record struct {
	ID           string    `json:"id"`
	DocumentID   string    `json:"documentId"`
	OwnerID      string    `json:"ownerId"`
	PageIndex    int       `json:"pageIndex"` // 1-based
	Kind         Kind      `json:"kind"`
	Color        Color     `json:"color"`
	Text         string    `json:"text"` // literal anchor text for highlights, body for notes, empty for bookmarks
	PositionHint Position  `json:"positionHint"`
	RelatedTo    *string   `json:"relatedTo"` // notes only; nil = standalone
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Clone returns a deep copy so callers never share the store's backing record
func (r *Record) Clone() *Record {
	c := *r
	if r.RelatedTo != nil {
		rel := *r.RelatedTo
		c.RelatedTo = &rel
	}
	return &c
}

// IsRelatedTo reports whether r is a note attached to targetID
func (r *Record) IsRelatedTo(targetID string) bool {
	return r.Kind == KindNote && r.RelatedTo != nil && *r.RelatedTo == targetID
}

// DocumentSummary is a per-document annotation count
type DocumentSummary struct {
	DocumentID string `json:"documentId"`
	Count      int    `json:"count"`
}
