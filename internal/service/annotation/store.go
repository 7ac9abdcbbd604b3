package annotation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"marginalia/internal/config"
	"marginalia/internal/domain"
	models "marginalia/internal/domain/models/annotation"
	repo "marginalia/internal/domain/repositories/annotation"
	svc "marginalia/internal/domain/services/annotation"

	"github.com/google/uuid"
)

// Palette is the part of the color registry the store needs
type Palette interface {
	Valid(c models.Color) bool
	Default(kind models.Kind) models.Color
	Class(c models.Color) string
}

var idPrefixes = map[models.Kind]string{
	models.KindBookmark:  "bm-",
	models.KindHighlight: "hl-",
	models.KindNote:      "nt-",
}

func newRecordID(kind models.Kind) string {
	return idPrefixes[kind] + uuid.NewString()
}

// Store is one reader's annotation store. Each operation reads the document's collection
// from the repository, and every mutation saves it back as a whole.
type Store struct {
	ownerID string
	repo    repo.SnapshotRepository
	palette Palette
	logger  *slog.Logger

	now   func() time.Time
	newID func(models.Kind) string

	mu sync.Mutex
}

// NewStore creates the store for ownerID. An empty ownerID gives a read-only store.
func NewStore(ownerID string, snapshots repo.SnapshotRepository, palette Palette, logger *slog.Logger) *Store {
	return &Store{
		ownerID: ownerID,
		repo:    snapshots,
		palette: palette,
		logger:  logger.With("owner_id", ownerID),
		now:     time.Now,
		newID:   newRecordID,
	}
}

// OwnerID returns the reader this store belongs to
func (s *Store) OwnerID() string {
	return s.ownerID
}

// Add creates a record of the given kind
func (s *Store) Add(ctx context.Context, documentID string, kind models.Kind, fields svc.AddFields) (*models.Record, error) {
	if err := s.requireOwner("add annotations"); err != nil {
		return nil, err
	}
	if err := validateDocumentID(documentID); err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, domain.NewValidation("unknown annotation kind: %q", kind)
	}

	color := fields.Color
	if color == "" {
		color = s.palette.Default(kind)
	}
	now := s.now().UTC()
	rec := &models.Record{
		DocumentID:   documentID,
		OwnerID:      s.ownerID,
		PageIndex:    fields.PageIndex,
		Kind:         kind,
		Color:        color,
		Text:         fields.Text,
		PositionHint: fields.PositionHint,
		RelatedTo:    copyString(fields.RelatedTo),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll, err := s.load(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if err := s.validateRecord(rec, coll.get); err != nil {
		return nil, err
	}
	if coll.len() >= config.MaxAnnotationsPerDocument {
		return nil, domain.NewValidation("document %s already holds the maximum of %d annotations",
			documentID, config.MaxAnnotationsPerDocument)
	}

	rec.ID = s.newID(kind)
	for coll.has(rec.ID) {
		rec.ID = s.newID(kind)
	}

	next := coll.clone()
	next.append(rec)
	if err := s.commit(ctx, documentID, next); err != nil {
		return nil, err
	}

	s.logger.Info("annotation added",
		"id", rec.ID,
		"document_id", documentID,
		"kind", kind,
		"page", rec.PageIndex,
	)

	return rec.Clone(), nil
}

// Get returns a copy of one record
func (s *Store) Get(ctx context.Context, documentID, id string) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, err := s.load(ctx, documentID)
	if err != nil {
		return nil, err
	}
	rec := coll.get(id)
	if rec == nil {
		return nil, domain.NewNotFound("annotation not found: %s", id)
	}
	return rec.Clone(), nil
}

// Update applies a partial change to one record
func (s *Store) Update(ctx context.Context, documentID, id string, fields svc.UpdateFields) (*models.Record, error) {
	if err := s.requireOwner("edit annotations"); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll, err := s.load(ctx, documentID)
	if err != nil {
		return nil, err
	}
	current := coll.get(id)
	if current == nil {
		return nil, domain.NewNotFound("annotation not found: %s", id)
	}

	updated, changed, err := applyUpdate(current, fields)
	if err != nil {
		return nil, err
	}
	if !changed {
		return current.Clone(), nil
	}
	if err := s.validateRecord(updated, coll.get); err != nil {
		return nil, err
	}
	updated.UpdatedAt = s.now().UTC()

	next := coll.clone()
	next.replace(updated)
	if err := s.commit(ctx, documentID, next); err != nil {
		return nil, err
	}

	s.logger.Info("annotation updated",
		"id", id,
		"document_id", documentID,
		"kind", updated.Kind,
	)

	return updated.Clone(), nil
}

// ChangeColor sets the color of one record
func (s *Store) ChangeColor(ctx context.Context, documentID, id string, color models.Color) (*models.Record, error) {
	return s.Update(ctx, documentID, id, svc.UpdateFields{Color: &color})
}

// Delete removes a record. Notes attached to a bookmark or highlight go with it.
func (s *Store) Delete(ctx context.Context, documentID, id string) error {
	if err := s.requireOwner("delete annotations"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll, err := s.load(ctx, documentID)
	if err != nil {
		return err
	}
	target := coll.get(id)
	if target == nil {
		return nil
	}

	remove := map[string]bool{id: true}
	if target.Kind.CanHaveNotes() {
		for _, r := range coll.records {
			if r.IsRelatedTo(id) {
				remove[r.ID] = true
			}
		}
	}

	next := coll.without(remove)
	if err := s.commit(ctx, documentID, next); err != nil {
		return err
	}

	s.logger.Info("annotation deleted",
		"id", id,
		"document_id", documentID,
		"kind", target.Kind,
		"cascaded_notes", len(remove)-1,
	)

	return nil
}

// List returns copies of every record in insertion order
func (s *Store) List(ctx context.Context, documentID string) ([]*models.Record, error) {
	return s.filter(ctx, documentID, func(*models.Record) bool { return true })
}

// QueryByKind returns copies of the records of one kind in insertion order
func (s *Store) QueryByKind(ctx context.Context, documentID string, kind models.Kind) ([]*models.Record, error) {
	return s.filter(ctx, documentID, func(r *models.Record) bool { return r.Kind == kind })
}

// QueryByPage returns copies of the records on one page. No kinds means every kind.
func (s *Store) QueryByPage(ctx context.Context, documentID string, pageIndex int, kinds ...models.Kind) ([]*models.Record, error) {
	return s.filter(ctx, documentID, func(r *models.Record) bool {
		if r.PageIndex != pageIndex {
			return false
		}
		if len(kinds) == 0 {
			return true
		}
		for _, k := range kinds {
			if r.Kind == k {
				return true
			}
		}
		return false
	})
}

// RelatedNotes returns copies of the notes attached to targetID
func (s *Store) RelatedNotes(ctx context.Context, documentID, targetID string) ([]*models.Record, error) {
	return s.filter(ctx, documentID, func(r *models.Record) bool { return r.IsRelatedTo(targetID) })
}

// Export snapshots the document's records
func (s *Store) Export(ctx context.Context, documentID string) (*models.Snapshot, error) {
	if err := validateDocumentID(documentID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll, err := s.load(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return models.NewSnapshot(documentID, coll.records, s.now()), nil
}

// ClearAll removes every record of the document
func (s *Store) ClearAll(ctx context.Context, documentID string) error {
	if err := s.requireOwner("clear annotations"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll, err := s.load(ctx, documentID)
	if err != nil {
		return err
	}
	if coll.len() == 0 {
		return nil
	}
	if err := s.commit(ctx, documentID, newCollection(nil)); err != nil {
		return err
	}

	s.logger.Info("annotations cleared",
		"document_id", documentID,
		"removed", coll.len(),
	)
	return nil
}

// Count returns how many records the document holds
func (s *Store) Count(ctx context.Context, documentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, err := s.load(ctx, documentID)
	if err != nil {
		return 0, err
	}
	return coll.len(), nil
}

// Documents lists every document with at least one record, sorted by id
func (s *Store) Documents(ctx context.Context) ([]models.DocumentSummary, error) {
	if s.ownerID == "" {
		return []models.DocumentSummary{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.repo.ListDocuments(ctx, s.ownerID)
	if err != nil {
		return nil, fmt.Errorf("list annotated documents: %w", err)
	}
	sort.Strings(ids)

	out := make([]models.DocumentSummary, 0, len(ids))
	for _, id := range ids {
		coll, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if coll.len() == 0 {
			continue
		}
		out = append(out, models.DocumentSummary{DocumentID: id, Count: coll.len()})
	}
	return out, nil
}

func (s *Store) filter(ctx context.Context, documentID string, keep func(*models.Record) bool) ([]*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, err := s.load(ctx, documentID)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Record, 0)
	for _, r := range coll.records {
		if keep(r) {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

// load reads the document's collection from the repository. Every operation starts from
// the stored snapshot so writes made by other processes sharing the repository are never
// overwritten with a stale copy. Callers hold s.mu.
func (s *Store) load(ctx context.Context, documentID string) (*collection, error) {
	if s.ownerID == "" || documentID == "" {
		return newCollection(nil), nil
	}

	snap, err := s.repo.Load(ctx, s.ownerID, documentID)
	if err != nil {
		return nil, fmt.Errorf("load annotations for %s: %w", documentID, err)
	}

	var records []*models.Record
	if snap != nil {
		records = make([]*models.Record, 0, len(snap.Annotations))
		for _, r := range snap.Annotations {
			if r == nil {
				continue
			}
			c := r.Clone()
			c.DocumentID = documentID
			records = append(records, c)
		}
	}

	coll := newCollection(records)
	s.logger.Debug("annotations loaded",
		"document_id", documentID,
		"count", coll.len(),
	)
	return coll, nil
}

// commit persists next as the document's whole collection. On failure the stored
// snapshot is left as it was. Callers hold s.mu.
func (s *Store) commit(ctx context.Context, documentID string, next *collection) error {
	var err error
	if next.len() == 0 {
		err = s.repo.Delete(ctx, s.ownerID, documentID)
	} else {
		err = s.repo.Save(ctx, s.ownerID, documentID, models.NewSnapshot(documentID, next.records, s.now()))
	}
	if err != nil {
		s.logger.Error("failed to persist annotations",
			"document_id", documentID,
			"error", err,
		)
		return fmt.Errorf("persist annotations for %s: %w", documentID, err)
	}
	return nil
}

func (s *Store) requireOwner(action string) error {
	if s.ownerID == "" {
		return domain.NewUnauthorized("must be signed in to %s", action)
	}
	return nil
}

func copyString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

var _ svc.AnnotationStore = (*Store)(nil)
