package handler

import "net/http"

// RegisterRoutes mounts the API on mux (Go 1.22+ enhanced patterns)
func RegisterRoutes(mux *http.ServeMux, annotations *AnnotationHandler, pages *PageHandler, palette *PaletteHandler) {
	// Health check
	mux.HandleFunc("GET /health", HealthCheck)

	// Palette
	mux.HandleFunc("GET /api/palette", palette.GetPalette)

	// Documents
	mux.HandleFunc("GET /api/documents", annotations.ListDocuments)

	// Annotation routes
	mux.HandleFunc("GET /api/documents/{documentId}/annotations", annotations.ListAnnotations)
	mux.HandleFunc("DELETE /api/documents/{documentId}/annotations", annotations.ClearAnnotations)
	mux.HandleFunc("POST /api/documents/{documentId}/bookmarks", annotations.CreateBookmark)
	mux.HandleFunc("POST /api/documents/{documentId}/highlights", annotations.CreateHighlight)
	mux.HandleFunc("POST /api/documents/{documentId}/notes", annotations.CreateNote)
	mux.HandleFunc("GET /api/documents/{documentId}/annotations/{id}", annotations.GetAnnotation)
	mux.HandleFunc("PATCH /api/documents/{documentId}/annotations/{id}", annotations.UpdateAnnotation)
	mux.HandleFunc("DELETE /api/documents/{documentId}/annotations/{id}", annotations.DeleteAnnotation)

	// Related notes
	mux.HandleFunc("GET /api/documents/{documentId}/annotations/{id}/notes", annotations.ListNotes)
	mux.HandleFunc("POST /api/documents/{documentId}/annotations/{id}/notes", annotations.AttachNote)

	// Export / import
	mux.HandleFunc("GET /api/documents/{documentId}/export", annotations.Export)
	mux.HandleFunc("POST /api/documents/{documentId}/import", annotations.Import)

	// Page rendering
	mux.HandleFunc("POST /api/documents/{documentId}/pages/{page}/anchors", pages.ResolveAnchors)
	mux.HandleFunc("POST /api/documents/{documentId}/pages/{page}/render", pages.RenderPage)
}
