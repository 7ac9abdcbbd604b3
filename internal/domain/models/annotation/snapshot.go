package annotation

import "time"

// SchemaVersion is the only export format version this build understands
const SchemaVersion = 1

// Snapshot is the versioned export/import and persistence form of one document's collection
type Snapshot struct {
	SchemaVersion int       `json:"schemaVersion"`
	DocumentID    string    `json:"documentId"`
	ExportedAt    time.Time `json:"exportedAt"`
	Annotations   []*Record `json:"annotations"`
}

// NewSnapshot copies records into a snapshot stamped with the given time
func NewSnapshot(documentID string, records []*Record, at time.Time) *Snapshot {
	out := make([]*Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return &Snapshot{
		SchemaVersion: SchemaVersion,
		DocumentID:    documentID,
		ExportedAt:    at.UTC(),
		Annotations:   out,
	}
}
