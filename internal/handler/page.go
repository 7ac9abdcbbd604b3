package handler

import (
	"log/slog"
	"net/http"

	"marginalia/internal/anchor"
	svc "marginalia/internal/domain/services/annotation"
	"marginalia/internal/httputil"
)

// PageHandler re-anchors highlights against a freshly rendered page
type PageHandler struct {
	sessions svc.SessionProvider
	logger   *slog.Logger
}

// NewPageHandler creates a new page handler
func NewPageHandler(sessions svc.SessionProvider, logger *slog.Logger) *PageHandler {
	return &PageHandler{
		sessions: sessions,
		logger:   logger,
	}
}

type anchorsRequest struct {
	Runs []anchor.Run `json:"runs"`
}

type renderRequest struct {
	HTML string `json:"html"`
}

// RenderResponse is a page fragment with its highlights wrapped in marker spans
type RenderResponse struct {
	HTML  string         `json:"html"`
	Marks *svc.PageMarks `json:"marks"`
}

// ResolveAnchors resolves the page's highlights against the renderer's text runs
// POST /api/documents/{documentId}/pages/{page}/anchors
func (h *PageHandler) ResolveAnchors(w http.ResponseWriter, r *http.Request) {
	page, err := httputil.PathInt(r, "page")
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req anchorsRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	marks, err := sessionFor(h.sessions, r).Pages.MarksForPage(r.Context(), r.PathValue("documentId"), page, req.Runs)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, marks)
}

// RenderPage wraps the page's highlights in an HTML fragment
// POST /api/documents/{documentId}/pages/{page}/render
func (h *PageHandler) RenderPage(w http.ResponseWriter, r *http.Request) {
	page, err := httputil.PathInt(r, "page")
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req renderRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	out, marks, err := sessionFor(h.sessions, r).Pages.RenderHTML(r.Context(), r.PathValue("documentId"), page, req.HTML)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, RenderResponse{HTML: out, Marks: marks})
}
