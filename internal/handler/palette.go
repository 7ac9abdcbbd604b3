package handler

import (
	"net/http"
	"time"

	"marginalia/internal/domain/models/annotation"
	"marginalia/internal/httputil"
	"marginalia/internal/palette"
)

// PaletteHandler serves the annotation color palette
type PaletteHandler struct {
	registry *palette.Registry
}

// NewPaletteHandler creates a new palette handler
func NewPaletteHandler(registry *palette.Registry) *PaletteHandler {
	return &PaletteHandler{registry: registry}
}

// PaletteResponse lists the selectable colors and the default for each kind
type PaletteResponse struct {
	Colors   []palette.Swatch                     `json:"colors"`
	Defaults map[annotation.Kind]annotation.Color `json:"defaults"`
}

// GetPalette returns the color palette
// GET /api/palette
func (h *PaletteHandler) GetPalette(w http.ResponseWriter, r *http.Request) {
	defaults := make(map[annotation.Kind]annotation.Color, 3)
	for _, k := range []annotation.Kind{annotation.KindBookmark, annotation.KindHighlight, annotation.KindNote} {
		defaults[k] = h.registry.Default(k)
	}

	httputil.RespondJSON(w, http.StatusOK, PaletteResponse{
		Colors:   h.registry.Swatches(),
		Defaults: defaults,
	})
}

// HealthCheck reports that the server is up
// GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now(),
	})
}
