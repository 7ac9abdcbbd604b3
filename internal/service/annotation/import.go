package annotation

import (
	"context"

	"marginalia/internal/config"
	"marginalia/internal/domain"
	models "marginalia/internal/domain/models/annotation"
)

// Import merges snap into the reader's collection for snap.DocumentID.
//
// Records are re-owned to the importing reader. Original ids are kept unless they are
// empty, already taken in the collection, or repeated within the snapshot; those get fresh
// ids and every relatedTo pointing at them is rewritten. A relatedTo that names an id in the
// snapshot always means that snapshot record. Nothing is written unless every record is valid.
func (s *Store) Import(ctx context.Context, snap *models.Snapshot) (int, error) {
	if err := s.requireOwner("import annotations"); err != nil {
		return 0, err
	}
	if snap == nil {
		return 0, domain.NewValidation("snapshot is required")
	}
	if snap.SchemaVersion != models.SchemaVersion {
		return 0, domain.NewValidation("unsupported schemaVersion %d", snap.SchemaVersion)
	}
	if err := validateDocumentID(snap.DocumentID); err != nil {
		return 0, err
	}
	if len(snap.Annotations) > config.MaxAnnotationsPerDocument {
		return 0, domain.NewValidation("snapshot holds %d annotations, the limit is %d",
			len(snap.Annotations), config.MaxAnnotationsPerDocument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll, err := s.load(ctx, snap.DocumentID)
	if err != nil {
		return 0, err
	}
	if coll.len()+len(snap.Annotations) > config.MaxAnnotationsPerDocument {
		return 0, domain.NewValidation("import would exceed the limit of %d annotations for document %s",
			config.MaxAnnotationsPerDocument, snap.DocumentID)
	}

	incoming, err := s.prepareImport(snap, coll)
	if err != nil {
		return 0, err
	}
	if len(incoming) == 0 {
		return 0, nil
	}

	byID := make(map[string]*models.Record, len(incoming))
	for _, r := range incoming {
		byID[r.ID] = r
	}
	lookup := func(id string) *models.Record {
		if r, ok := byID[id]; ok {
			return r
		}
		return coll.get(id)
	}
	for i, r := range incoming {
		if err := s.validateRecord(r, lookup); err != nil {
			return 0, domain.NewValidation("annotations[%d]: %s", i, err.Error())
		}
	}

	next := coll.clone()
	for _, r := range incoming {
		next.append(r)
	}
	if err := s.commit(ctx, snap.DocumentID, next); err != nil {
		return 0, err
	}

	s.logger.Info("annotations imported",
		"document_id", snap.DocumentID,
		"imported", len(incoming),
		"total", next.len(),
	)

	return len(incoming), nil
}

// prepareImport copies the snapshot records, re-owns them and assigns final ids
func (s *Store) prepareImport(snap *models.Snapshot, coll *collection) ([]*models.Record, error) {
	now := s.now().UTC()
	taken := make(map[string]bool, coll.len()+len(snap.Annotations))
	for _, r := range coll.records {
		taken[r.ID] = true
	}

	remap := make(map[string]string, len(snap.Annotations))
	out := make([]*models.Record, 0, len(snap.Annotations))
	for i, src := range snap.Annotations {
		if src == nil {
			return nil, domain.NewValidation("annotations[%d] is null", i)
		}
		if src.DocumentID != "" && src.DocumentID != snap.DocumentID {
			return nil, domain.NewValidation("annotations[%d] belongs to document %s, not %s",
				i, src.DocumentID, snap.DocumentID)
		}
		if !src.Kind.Valid() {
			return nil, domain.NewValidation("annotations[%d]: unknown kind %q", i, src.Kind)
		}

		r := src.Clone()
		r.DocumentID = snap.DocumentID
		r.OwnerID = s.ownerID
		if r.Color == "" {
			r.Color = s.palette.Default(r.Kind)
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		if r.UpdatedAt.IsZero() {
			r.UpdatedAt = r.CreatedAt
		}

		original := r.ID
		if original == "" || taken[original] {
			r.ID = s.newID(r.Kind)
			for taken[r.ID] {
				r.ID = s.newID(r.Kind)
			}
		}
		taken[r.ID] = true
		if _, seen := remap[original]; original != "" && !seen {
			remap[original] = r.ID
		}

		out = append(out, r)
	}

	for _, r := range out {
		if r.RelatedTo == nil {
			continue
		}
		if id, ok := remap[*r.RelatedTo]; ok {
			rel := id
			r.RelatedTo = &rel
		}
	}

	return out, nil
}
