package annotation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"marginalia/internal/domain"
	models "marginalia/internal/domain/models/annotation"
)

// snapshotEnvelope mirrors Snapshot with every field optional so missing ones can be told apart
type snapshotEnvelope struct {
	SchemaVersion *int            `json:"schemaVersion"`
	DocumentID    *string         `json:"documentId"`
	ExportedAt    *time.Time      `json:"exportedAt"`
	Annotations   json.RawMessage `json:"annotations"`
}

// DecodeSnapshot reads an exported snapshot. Shape problems are ValidationErrors.
func DecodeSnapshot(r io.Reader) (*models.Snapshot, error) {
	var env snapshotEnvelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, domain.NewValidation("invalid snapshot JSON: %v", err)
	}

	if env.SchemaVersion == nil {
		return nil, domain.NewValidation("schemaVersion is required")
	}
	if *env.SchemaVersion != models.SchemaVersion {
		return nil, domain.NewValidation("unsupported schemaVersion %d", *env.SchemaVersion)
	}
	if env.DocumentID == nil || *env.DocumentID == "" {
		return nil, domain.NewValidation("documentId is required")
	}

	raw := bytes.TrimSpace(env.Annotations)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, domain.NewValidation("annotations must be an array")
	}
	var records []*models.Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, domain.NewValidation("invalid annotations: %v", err)
	}
	for i, rec := range records {
		if rec == nil {
			return nil, domain.NewValidation("annotations[%d] is null", i)
		}
	}

	snap := &models.Snapshot{
		SchemaVersion: *env.SchemaVersion,
		DocumentID:    *env.DocumentID,
		Annotations:   records,
	}
	if env.ExportedAt != nil {
		snap.ExportedAt = env.ExportedAt.UTC()
	}
	return snap, nil
}

// EncodeSnapshot writes snap as indented JSON
func EncodeSnapshot(w io.Writer, snap *models.Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}
