package highlight

import (
	"sort"

	"marginalia/internal/anchor"
)

// RunSurface is an in-memory surface over plain text runs. Markers are kept beside the
// runs instead of inside them, so the raw sequence is never modified.
type RunSurface struct {
	index   *anchor.Index
	applied appliedMarkers
}

// Segment is a maximal piece of page text with a single marker state.
type Segment struct {
	Text   string  `json:"text"`
	Marker *Marker `json:"marker,omitempty"`
}

// NewRunSurface builds a surface over runs.
func NewRunSurface(runs []anchor.Run) *RunSurface {
	return &RunSurface{
		index:   anchor.NewIndex(runs),
		applied: newAppliedMarkers(),
	}
}

// Runs returns the raw runs.
func (s *RunSurface) Runs() []anchor.Run {
	return s.index.Runs()
}

// Wrap marks r. Overlapping an existing marker is a structural conflict.
func (s *RunSurface) Wrap(r anchor.Range, m Marker) error {
	start, end, ok := s.index.Offsets(r)
	if !ok || start == end {
		return ErrStructuralConflict
	}
	sp := span{start: start, end: end}
	if err := s.applied.admit(sp, m); err != nil {
		return err
	}
	s.applied.add(sp, m)
	return nil
}

// Unwrap removes the marker for annotationID. It reports whether one was applied.
func (s *RunSurface) Unwrap(annotationID string) bool {
	return s.applied.remove(annotationID)
}

// Markers returns the applied markers in application order.
func (s *RunSurface) Markers() []Marker {
	out := make([]Marker, 0, len(s.applied.ids))
	for _, id := range s.applied.ids {
		out = append(out, s.applied.marks[id])
	}
	return out
}

// Segments splits the page text at marker boundaries, in reading order.
func (s *RunSurface) Segments() []Segment {
	flat := s.index.String()
	if flat == "" {
		return nil
	}

	type marked struct {
		span
		id string
	}
	spans := make([]marked, 0, len(s.applied.ids))
	for _, id := range s.applied.ids {
		spans = append(spans, marked{span: s.applied.spans[id], id: id})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	var out []Segment
	pos := 0
	for _, sp := range spans {
		if sp.start > pos {
			out = append(out, Segment{Text: flat[pos:sp.start]})
		}
		m := s.applied.marks[sp.id]
		out = append(out, Segment{Text: flat[sp.start:sp.end], Marker: &m})
		pos = sp.end
	}
	if pos < len(flat) {
		out = append(out, Segment{Text: flat[pos:]})
	}
	return out
}
