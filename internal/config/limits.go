package config

import "time"

const (
	// MaxDocumentIDLength is the maximum length for document identifiers.
	// Matches the VARCHAR(255) document_id column.
	MaxDocumentIDLength = 255

	// MaxAnnotationIDLength is the maximum length for annotation record ids.
	// Generated ids are a kind prefix plus a UUID; imported ids may be longer.
	MaxAnnotationIDLength = 128

	// MaxHighlightTextLength is the maximum length, in characters, of highlighted text.
	// Highlights are passages, not chapters.
	MaxHighlightTextLength = 5000

	// MaxNoteTextLength is the maximum length, in characters, of a note body.
	MaxNoteTextLength = 10000

	// MaxAnnotationsPerDocument caps how many records one reader may keep on one document.
	// Also bounds the size of an import.
	MaxAnnotationsPerDocument = 5000

	// SessionIdleTimeout is how long an unused reader session is kept before it is evicted.
	SessionIdleTimeout = 30 * time.Minute
)
