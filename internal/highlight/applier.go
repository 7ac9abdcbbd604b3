package highlight

import (
	"context"
	"errors"
	"log/slog"

	"marginalia/internal/anchor"
	"marginalia/internal/domain/models/annotation"
)

// Outcome of painting one highlight.
type Outcome string

const (
	OutcomeApplied  Outcome = "applied"
	OutcomeConflict Outcome = "conflict"
	// OutcomeMissing means the highlight text is no longer on the page; nothing is painted.
	OutcomeMissing Outcome = "missing"
)

// ClassMapper maps a palette color to its marker class.
type ClassMapper interface {
	Class(c annotation.Color) string
}

// Highlight is a resolved highlight ready to be painted.
type Highlight struct {
	AnnotationID string
	Color        annotation.Color
	Range        anchor.Range
}

// Result reports what happened to one highlight.
type Result struct {
	AnnotationID string  `json:"annotationId"`
	Outcome      Outcome `json:"outcome"`
	Reason       string  `json:"reason,omitempty"`
	Class        string  `json:"class"`
}

// Applier paints highlights onto surfaces. It is stateless apart from its collaborators
// and safe to share.
type Applier struct {
	classes ClassMapper
	logger  *slog.Logger
}

// NewApplier creates an applier.
func NewApplier(classes ClassMapper, logger *slog.Logger) *Applier {
	return &Applier{
		classes: classes,
		logger:  logger,
	}
}

// Apply wraps h.Range on s. A structural conflict is logged and returned as a Conflict
// result; it never aborts the caller's loop.
func (a *Applier) Apply(s Surface, h Highlight) Result {
	class := a.classes.Class(h.Color)
	res := Result{AnnotationID: h.AnnotationID, Class: class}

	err := s.Wrap(h.Range, Marker{AnnotationID: h.AnnotationID, Color: h.Color, Class: class})
	if err == nil {
		res.Outcome = OutcomeApplied
		return res
	}

	res.Outcome = OutcomeConflict
	res.Reason = err.Error()
	level := slog.LevelWarn
	if errors.Is(err, ErrDuplicateMarker) {
		level = slog.LevelDebug
	}
	a.logger.Log(context.Background(), level, "highlight not applied",
		"annotation_id", h.AnnotationID,
		"start_run", h.Range.StartRun,
		"end_run", h.Range.EndRun,
		"error", err,
	)
	return res
}

// ApplyText resolves text against the surface's raw runs and wraps the first occurrence.
// Text that is not on the page gives OutcomeMissing.
func (a *Applier) ApplyText(s Surface, annotationID string, color annotation.Color, text string) Result {
	r, ok := anchor.Resolve(s.Runs(), text)
	if !ok {
		return Result{
			AnnotationID: annotationID,
			Outcome:      OutcomeMissing,
			Class:        a.classes.Class(color),
		}
	}
	return a.Apply(s, Highlight{AnnotationID: annotationID, Color: color, Range: r})
}

// ApplyAll paints each highlight in order. Results line up with hs.
func (a *Applier) ApplyAll(s Surface, hs []Highlight) []Result {
	out := make([]Result, len(hs))
	for i, h := range hs {
		out[i] = a.Apply(s, h)
	}
	return out
}

// Remove unwraps the marker for annotationID, if one is applied.
func (a *Applier) Remove(s Surface, annotationID string) bool {
	removed := s.Unwrap(annotationID)
	if removed {
		a.logger.Debug("highlight removed", "annotation_id", annotationID)
	}
	return removed
}
