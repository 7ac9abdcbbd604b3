// Package highlight paints resolved anchor ranges onto a rendering surface.
//
// Painting is best-effort. A surface may refuse a range that straddles structure it
// cannot split (an already applied marker, or author markup in an HTML page); the applier
// reports that as a Conflict outcome and moves on to the next highlight. The annotation
// record itself is never touched.
package highlight

import (
	"errors"

	"marginalia/internal/anchor"
	"marginalia/internal/domain/models/annotation"
)

// ErrStructuralConflict is returned by Surface.Wrap when the range cannot be wrapped
// as one contiguous marker.
var ErrStructuralConflict = errors.New("range cannot be wrapped as a single marker")

// ErrDuplicateMarker is returned by Surface.Wrap when a marker with the same annotation id
// is already applied.
var ErrDuplicateMarker = errors.New("marker already applied")

// Marker tags a wrapped range so clicks on it can be mapped back to a record.
type Marker struct {
	AnnotationID string           `json:"annotationId"`
	Color        annotation.Color `json:"color"`
	Class        string           `json:"class"`
}

// Surface is a live rendering of one page.
//
// Runs must always return the raw, unwrapped run sequence the surface was built from, so
// anchoring never sees markup added by earlier Wrap calls. Ranges passed to Wrap are
// expressed against that sequence.
type Surface interface {
	Runs() []anchor.Run
	Wrap(r anchor.Range, m Marker) error
	Unwrap(annotationID string) bool
}

// span is a half-open [start, end) interval in the surface's flat text.
type span struct {
	start, end int
}

func (s span) overlaps(o span) bool {
	return s.start < o.end && o.start < s.end
}

// appliedMarkers is the bookkeeping shared by surfaces: which annotation ids are wrapped and
// where. Insertion order is preserved.
type appliedMarkers struct {
	ids   []string
	spans map[string]span
	marks map[string]Marker
}

func newAppliedMarkers() appliedMarkers {
	return appliedMarkers{
		spans: make(map[string]span),
		marks: make(map[string]Marker),
	}
}

// admit checks m against existing markers without recording it.
func (a *appliedMarkers) admit(s span, m Marker) error {
	if _, ok := a.spans[m.AnnotationID]; ok {
		return ErrDuplicateMarker
	}
	for _, id := range a.ids {
		if a.spans[id].overlaps(s) {
			return ErrStructuralConflict
		}
	}
	return nil
}

func (a *appliedMarkers) add(s span, m Marker) {
	a.ids = append(a.ids, m.AnnotationID)
	a.spans[m.AnnotationID] = s
	a.marks[m.AnnotationID] = m
}

func (a *appliedMarkers) remove(id string) bool {
	if _, ok := a.spans[id]; !ok {
		return false
	}
	delete(a.spans, id)
	delete(a.marks, id)
	for i, existing := range a.ids {
		if existing == id {
			a.ids = append(a.ids[:i], a.ids[i+1:]...)
			break
		}
	}
	return true
}
