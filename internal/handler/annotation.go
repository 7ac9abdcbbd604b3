package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	models "marginalia/internal/domain/models/annotation"
	svc "marginalia/internal/domain/services/annotation"
	"marginalia/internal/httputil"
	annotationSvc "marginalia/internal/service/annotation"
)

// AnnotationHandler handles bookmark, highlight and note HTTP requests
type AnnotationHandler struct {
	sessions svc.SessionProvider
	logger   *slog.Logger
}

// NewAnnotationHandler creates a new annotation handler
func NewAnnotationHandler(sessions svc.SessionProvider, logger *slog.Logger) *AnnotationHandler {
	return &AnnotationHandler{
		sessions: sessions,
		logger:   logger,
	}
}

// updateAnnotationRequest is the PATCH body. A null text clears a note.
type updateAnnotationRequest struct {
	Kind         *models.Kind            `json:"kind"`
	DocumentID   *string                 `json:"documentId"`
	Color        *models.Color           `json:"color"`
	Text         httputil.OptionalString `json:"text"`
	PositionHint *models.Position        `json:"positionHint"`
}

// attachNoteRequest is the body for attaching a note to a bookmark or highlight
type attachNoteRequest struct {
	Text  string        `json:"text"`
	Color *models.Color `json:"color"`
}

// ImportResponse reports the outcome of an import
type ImportResponse struct {
	DocumentID string `json:"documentId"`
	Imported   int    `json:"imported"`
	Total      int    `json:"total"`
}

// ListDocuments lists the reader's annotated documents
// GET /api/documents
func (h *AnnotationHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := sessionFor(h.sessions, r).Annotations.Documents(r.Context())
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, docs)
}

// ListAnnotations lists a document's annotations, optionally filtered
// GET /api/documents/{documentId}/annotations?kind=highlight&page=3
func (h *AnnotationHandler) ListAnnotations(w http.ResponseWriter, r *http.Request) {
	documentID := r.PathValue("documentId")
	store := sessionFor(h.sessions, r).Annotations

	page, err := httputil.QueryInt(r, "page")
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var kinds []models.Kind
	if k := models.Kind(r.URL.Query().Get("kind")); k != "" {
		if !k.Valid() {
			httputil.RespondError(w, http.StatusBadRequest, fmt.Sprintf("unknown kind %q", k))
			return
		}
		kinds = append(kinds, k)
	}

	var records []*models.Record
	switch {
	case page > 0:
		records, err = store.QueryByPage(r.Context(), documentID, page, kinds...)
	case len(kinds) == 1:
		records, err = store.QueryByKind(r.Context(), documentID, kinds[0])
	default:
		records, err = store.List(r.Context(), documentID)
	}
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, records)
}

// CreateBookmark adds a bookmark
// POST /api/documents/{documentId}/bookmarks
func (h *AnnotationHandler) CreateBookmark(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, models.KindBookmark)
}

// CreateHighlight adds a highlight
// POST /api/documents/{documentId}/highlights
func (h *AnnotationHandler) CreateHighlight(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, models.KindHighlight)
}

// CreateNote adds a standalone or related note
// POST /api/documents/{documentId}/notes
func (h *AnnotationHandler) CreateNote(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, models.KindNote)
}

func (h *AnnotationHandler) create(w http.ResponseWriter, r *http.Request, kind models.Kind) {
	var req svc.AddFields
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	rec, err := sessionFor(h.sessions, r).Annotations.Add(r.Context(), r.PathValue("documentId"), kind, req)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, rec)
}

// GetAnnotation returns one annotation
// GET /api/documents/{documentId}/annotations/{id}
func (h *AnnotationHandler) GetAnnotation(w http.ResponseWriter, r *http.Request) {
	rec, err := sessionFor(h.sessions, r).Annotations.Get(r.Context(), r.PathValue("documentId"), r.PathValue("id"))
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, rec)
}

// UpdateAnnotation applies a partial update
// PATCH /api/documents/{documentId}/annotations/{id}
func (h *AnnotationHandler) UpdateAnnotation(w http.ResponseWriter, r *http.Request) {
	var req updateAnnotationRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	fields := svc.UpdateFields{
		Kind:         req.Kind,
		DocumentID:   req.DocumentID,
		Color:        req.Color,
		PositionHint: req.PositionHint,
	}
	if req.Text.Present {
		text := ""
		if req.Text.Value != nil {
			text = *req.Text.Value
		}
		fields.Text = &text
	}

	rec, err := sessionFor(h.sessions, r).Annotations.Update(r.Context(), r.PathValue("documentId"), r.PathValue("id"), fields)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, rec)
}

// DeleteAnnotation deletes an annotation and its notes
// DELETE /api/documents/{documentId}/annotations/{id}
func (h *AnnotationHandler) DeleteAnnotation(w http.ResponseWriter, r *http.Request) {
	if err := sessionFor(h.sessions, r).Annotations.Delete(r.Context(), r.PathValue("documentId"), r.PathValue("id")); err != nil {
		handleError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearAnnotations deletes every annotation on a document
// DELETE /api/documents/{documentId}/annotations
func (h *AnnotationHandler) ClearAnnotations(w http.ResponseWriter, r *http.Request) {
	if err := sessionFor(h.sessions, r).Annotations.ClearAll(r.Context(), r.PathValue("documentId")); err != nil {
		handleError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListNotes lists the notes attached to an annotation
// GET /api/documents/{documentId}/annotations/{id}/notes
func (h *AnnotationHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := sessionFor(h.sessions, r).Notes.NotesFor(r.Context(), r.PathValue("documentId"), r.PathValue("id"))
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, notes)
}

// AttachNote adds a note to a bookmark or highlight
// POST /api/documents/{documentId}/annotations/{id}/notes
func (h *AnnotationHandler) AttachNote(w http.ResponseWriter, r *http.Request) {
	var req attachNoteRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	note, err := sessionFor(h.sessions, r).Notes.Attach(r.Context(), r.PathValue("documentId"), r.PathValue("id"), req.Text, req.Color)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, note)
}

// Export downloads a document's annotations as a snapshot file
// GET /api/documents/{documentId}/export
func (h *AnnotationHandler) Export(w http.ResponseWriter, r *http.Request) {
	documentID := r.PathValue("documentId")
	snap, err := sessionFor(h.sessions, r).Annotations.Export(r.Context(), documentID)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-annotations.json"`, documentID))
	w.WriteHeader(http.StatusOK)
	if err := annotationSvc.EncodeSnapshot(w, snap); err != nil {
		h.logger.Error("failed to write export", "document_id", documentID, "error", err)
	}
}

// Import merges an exported snapshot into a document
// POST /api/documents/{documentId}/import
func (h *AnnotationHandler) Import(w http.ResponseWriter, r *http.Request) {
	documentID := r.PathValue("documentId")

	snap, err := annotationSvc.DecodeSnapshot(http.MaxBytesReader(w, r.Body, httputil.MaxBodyBytes))
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	if snap.DocumentID != documentID {
		httputil.RespondErrorWithExtras(w, http.StatusBadRequest, "snapshot belongs to a different document",
			map[string]interface{}{
				"document_id":          documentID,
				"snapshot_document_id": snap.DocumentID,
			})
		return
	}

	store := sessionFor(h.sessions, r).Annotations
	n, err := store.Import(r.Context(), snap)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	total, err := store.Count(r.Context(), documentID)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, ImportResponse{
		DocumentID: documentID,
		Imported:   n,
		Total:      total,
	})
}
