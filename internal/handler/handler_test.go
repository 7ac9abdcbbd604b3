package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	models "marginalia/internal/domain/models/annotation"
	svc "marginalia/internal/domain/services/annotation"
	"marginalia/internal/httputil"
	"marginalia/internal/palette"
	"marginalia/internal/repository/memory"
	annotationSvc "marginalia/internal/service/annotation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reader = "reader-1"

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := palette.MustRegistry()
	sessions := annotationSvc.NewSessions(memory.NewSnapshotRepository(), registry, logger)

	mux := http.NewServeMux()
	RegisterRoutes(mux,
		NewAnnotationHandler(sessions, logger),
		NewPageHandler(sessions, logger),
		NewPaletteHandler(registry),
	)
	return mux
}

// do sends a request as userID. An empty userID is an anonymous request.
func do(t *testing.T, h http.Handler, method, path, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req = httputil.WithReaderID(req, userID)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestAnnotationHandler_CreateAndList(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/api/documents/gatsby/highlights", reader,
		`{"pageIndex": 2, "text": "green light", "positionHint": {"x": 0.2, "y": 0.4}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	hl := decode[models.Record](t, rec)
	assert.True(t, strings.HasPrefix(hl.ID, "hl-"))
	assert.Equal(t, models.Color("yellow"), hl.Color)
	assert.Equal(t, reader, hl.OwnerID)

	rec = do(t, h, http.MethodPost, "/api/documents/gatsby/bookmarks", reader, `{"pageIndex": 5}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/documents/gatsby/annotations", reader, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Record](t, rec), 2)

	rec = do(t, h, http.MethodGet, "/api/documents/gatsby/annotations?kind=highlight", reader, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Record](t, rec), 1)

	rec = do(t, h, http.MethodGet, "/api/documents/gatsby/annotations?page=5", reader, "")
	require.Equal(t, http.StatusOK, rec.Code)
	onPage := decode[[]models.Record](t, rec)
	require.Len(t, onPage, 1)
	assert.Equal(t, models.KindBookmark, onPage[0].Kind)

	rec = do(t, h, http.MethodGet, "/api/documents/gatsby/annotations?kind=scribble", reader, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/documents", reader, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []models.DocumentSummary{{DocumentID: "gatsby", Count: 2}}, decode[[]models.DocumentSummary](t, rec))
}

func TestAnnotationHandler_Errors(t *testing.T) {
	h := newTestServer(t)

	tests := []struct {
		name       string
		method     string
		path       string
		userID     string
		body       string
		wantStatus int
	}{
		{name: "anonymous add", method: http.MethodPost, path: "/api/documents/gatsby/bookmarks", body: `{"pageIndex": 1}`, wantStatus: http.StatusUnauthorized},
		{name: "malformed body", method: http.MethodPost, path: "/api/documents/gatsby/bookmarks", userID: reader, body: `{`, wantStatus: http.StatusBadRequest},
		{name: "page zero", method: http.MethodPost, path: "/api/documents/gatsby/bookmarks", userID: reader, body: `{"pageIndex": 0}`, wantStatus: http.StatusBadRequest},
		{name: "empty highlight", method: http.MethodPost, path: "/api/documents/gatsby/highlights", userID: reader, body: `{"pageIndex": 1}`, wantStatus: http.StatusBadRequest},
		{name: "unknown color", method: http.MethodPost, path: "/api/documents/gatsby/bookmarks", userID: reader, body: `{"pageIndex": 1, "color": "mauve"}`, wantStatus: http.StatusBadRequest},
		{name: "missing record", method: http.MethodGet, path: "/api/documents/gatsby/annotations/hl-missing", userID: reader, wantStatus: http.StatusNotFound},
		{name: "bad page param", method: http.MethodPost, path: "/api/documents/gatsby/pages/zero/anchors", userID: reader, body: `{"runs": []}`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.userID, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestAnnotationHandler_UpdateAndDelete(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/api/documents/gatsby/highlights", reader, `{"pageIndex": 1, "text": "old sport"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	hl := decode[models.Record](t, rec)

	rec = do(t, h, http.MethodPost, "/api/documents/gatsby/annotations/"+hl.ID+"/notes", reader, `{"text": "catchphrase"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	note := decode[models.Record](t, rec)
	require.NotNil(t, note.RelatedTo)
	assert.Equal(t, hl.ID, *note.RelatedTo)
	assert.Equal(t, 1, note.PageIndex)

	rec = do(t, h, http.MethodPatch, "/api/documents/gatsby/annotations/"+hl.ID, reader, `{"color": "purple"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.ColorPurple, decode[models.Record](t, rec).Color)

	rec = do(t, h, http.MethodPatch, "/api/documents/gatsby/annotations/"+hl.ID, reader, `{"text": "new sport"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// A null text clears a note body.
	rec = do(t, h, http.MethodPatch, "/api/documents/gatsby/annotations/"+note.ID, reader, `{"text": null}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, decode[models.Record](t, rec).Text)

	rec = do(t, h, http.MethodGet, "/api/documents/gatsby/annotations/"+hl.ID+"/notes", reader, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Record](t, rec), 1)

	rec = do(t, h, http.MethodDelete, "/api/documents/gatsby/annotations/"+hl.ID, reader, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/documents/gatsby/annotations/"+note.ID, reader, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Deleting again is a no-op.
	rec = do(t, h, http.MethodDelete, "/api/documents/gatsby/annotations/"+hl.ID, reader, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAnnotationHandler_ExportImport(t *testing.T) {
	h := newTestServer(t)

	for _, body := range []string{
		`{"pageIndex": 1, "text": "boats against the current"}`,
		`{"pageIndex": 3, "text": "careless people"}`,
	} {
		rec := do(t, h, http.MethodPost, "/api/documents/gatsby/highlights", reader, body)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := do(t, h, http.MethodGet, "/api/documents/gatsby/export", reader, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `gatsby-annotations.json`)
	exported := rec.Body.String()
	snap := decode[models.Snapshot](t, rec)
	assert.Equal(t, models.SchemaVersion, snap.SchemaVersion)
	assert.Len(t, snap.Annotations, 2)

	// Another reader imports the file.
	rec = do(t, h, http.MethodPost, "/api/documents/gatsby/import", "reader-2", exported)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, ImportResponse{DocumentID: "gatsby", Imported: 2, Total: 2}, decode[ImportResponse](t, rec))

	rec = do(t, h, http.MethodPost, "/api/documents/moby-dick/import", reader, exported)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	problem := decode[map[string]interface{}](t, rec)
	assert.Equal(t, "gatsby", problem["snapshot_document_id"])

	rec = do(t, h, http.MethodPost, "/api/documents/gatsby/import", reader, `{"schemaVersion": 9, "documentId": "gatsby", "annotations": []}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/documents/gatsby/annotations", reader, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/documents/gatsby/annotations", reader, "")
	assert.Empty(t, decode[[]models.Record](t, rec))
}

func TestPageHandler(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/api/documents/moby-dick/highlights", reader, `{"pageIndex": 1, "text": "Ishmael"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	hl := decode[models.Record](t, rec)
	rec = do(t, h, http.MethodPost, "/api/documents/moby-dick/highlights", reader, `{"pageIndex": 1, "text": "white whale"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	gone := decode[models.Record](t, rec)

	t.Run("anchors", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/documents/moby-dick/pages/1/anchors", reader,
			`{"runs": [{"content": "Call me "}, {"content": "Ish"}, {"content": "mael."}]}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		marks := decode[svc.PageMarks](t, rec)
		require.Len(t, marks.Marks, 1)
		assert.Equal(t, hl.ID, marks.Marks[0].AnnotationID)
		assert.Equal(t, 1, marks.Marks[0].Range.StartRun)
		assert.Equal(t, 2, marks.Marks[0].Range.EndRun)
		assert.Equal(t, []string{gone.ID}, marks.Unresolved)
	})

	t.Run("render", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/documents/moby-dick/pages/1/render", reader,
			`{"html": "<p>Call me Ishmael.</p>"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		out := decode[RenderResponse](t, rec)
		assert.Equal(t, `<p>Call me <span class="highlight-warning" data-highlight-id="`+hl.ID+`">Ishmael</span>.</p>`, out.HTML)
		require.NotNil(t, out.Marks)
		assert.Len(t, out.Marks.Marks, 1)
	})
}

func TestPaletteAndHealth(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/api/palette", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	p := decode[PaletteResponse](t, rec)
	assert.Len(t, p.Colors, 5)
	assert.Equal(t, models.Color("yellow"), p.Defaults[models.KindHighlight])

	rec = do(t, h, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
