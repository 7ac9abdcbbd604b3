package annotation

import (
	"context"
	"log/slog"

	"marginalia/internal/anchor"
	"marginalia/internal/domain"
	models "marginalia/internal/domain/models/annotation"
	svc "marginalia/internal/domain/services/annotation"
	"marginalia/internal/highlight"
)

// PageAnnotator re-anchors stored highlights each time a page is rendered
type PageAnnotator struct {
	store   svc.AnnotationStore
	applier *highlight.Applier
	palette Palette
	logger  *slog.Logger
}

// NewPageAnnotator creates a page annotator
func NewPageAnnotator(store svc.AnnotationStore, applier *highlight.Applier, palette Palette, logger *slog.Logger) *PageAnnotator {
	return &PageAnnotator{
		store:   store,
		applier: applier,
		palette: palette,
		logger:  logger,
	}
}

// MarksForPage resolves the page's highlights against runs without painting anything
func (p *PageAnnotator) MarksForPage(ctx context.Context, documentID string, pageIndex int, runs []anchor.Run) (*svc.PageMarks, error) {
	return p.resolve(ctx, documentID, pageIndex, runs)
}

// Paint resolves the page's highlights against the surface's runs and wraps each one.
// Highlights the surface refuses move from Marks to Conflicts.
func (p *PageAnnotator) Paint(ctx context.Context, documentID string, pageIndex int, surface highlight.Surface) (*svc.PageMarks, error) {
	marks, err := p.resolve(ctx, documentID, pageIndex, surface.Runs())
	if err != nil {
		return nil, err
	}

	hs := make([]highlight.Highlight, len(marks.Marks))
	for i, m := range marks.Marks {
		hs[i] = highlight.Highlight{AnnotationID: m.AnnotationID, Color: m.Color, Range: m.Range}
	}
	results := p.applier.ApplyAll(surface, hs)

	applied := make([]svc.Mark, 0, len(marks.Marks))
	for i, res := range results {
		if res.Outcome == highlight.OutcomeApplied {
			applied = append(applied, marks.Marks[i])
			continue
		}
		marks.Conflicts = append(marks.Conflicts, svc.Conflict{AnnotationID: res.AnnotationID, Reason: res.Reason})
	}
	marks.Marks = applied

	return marks, nil
}

// RenderHTML paints the page's highlights onto an HTML fragment
func (p *PageAnnotator) RenderHTML(ctx context.Context, documentID string, pageIndex int, fragment string) (string, *svc.PageMarks, error) {
	surface, err := highlight.NewHTMLSurface(fragment)
	if err != nil {
		return "", nil, domain.NewValidation("%s", err.Error())
	}

	marks, err := p.Paint(ctx, documentID, pageIndex, surface)
	if err != nil {
		return "", nil, err
	}

	out, err := surface.HTML()
	if err != nil {
		return "", nil, err
	}
	return out, marks, nil
}

func (p *PageAnnotator) resolve(ctx context.Context, documentID string, pageIndex int, runs []anchor.Run) (*svc.PageMarks, error) {
	if pageIndex < 1 {
		return nil, domain.NewValidation("pageIndex must be at least 1")
	}

	records, err := p.store.QueryByPage(ctx, documentID, pageIndex, models.KindHighlight, models.KindNote)
	if err != nil {
		return nil, err
	}

	notes := make(map[string][]string)
	for _, r := range records {
		if r.Kind == models.KindNote && r.RelatedTo != nil {
			notes[*r.RelatedTo] = append(notes[*r.RelatedTo], r.ID)
		}
	}

	out := &svc.PageMarks{
		DocumentID: documentID,
		PageIndex:  pageIndex,
		Marks:      []svc.Mark{},
		Unresolved: []string{},
		Conflicts:  []svc.Conflict{},
	}

	ix := anchor.NewIndex(runs)
	for _, r := range records {
		if r.Kind != models.KindHighlight {
			continue
		}
		rng, ok := ix.Resolve(r.Text)
		if !ok {
			out.Unresolved = append(out.Unresolved, r.ID)
			continue
		}
		out.Marks = append(out.Marks, svc.Mark{
			AnnotationID: r.ID,
			Color:        r.Color,
			Class:        p.palette.Class(r.Color),
			Text:         r.Text,
			Range:        rng,
			NoteIDs:      notes[r.ID],
		})
	}

	p.logger.Debug("page anchored",
		"document_id", documentID,
		"page", pageIndex,
		"runs", len(runs),
		"resolved", len(out.Marks),
		"unresolved", len(out.Unresolved),
	)

	return out, nil
}

var _ svc.PageAnnotator = (*PageAnnotator)(nil)
