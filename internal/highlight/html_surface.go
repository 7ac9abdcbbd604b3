package highlight

import (
	"fmt"
	"strings"

	"marginalia/internal/anchor"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	classPrefix = "highlight-"
	// IDAttr carries the annotation id on a marker span.
	IDAttr = "data-highlight-id"
)

// textPiece is one live text node and the slice of flat page text it holds.
type textPiece struct {
	node       *html.Node
	start, end int
}

// HTMLSurface renders a page fragment as a DOM and wraps highlight ranges in marker spans.
//
// A range can only be wrapped when its first and last text nodes share a parent element,
// the same restriction a browser's Range.surroundContents enforces. Selections that cut
// across author markup are reported as structural conflicts.
type HTMLSurface struct {
	doc     *goquery.Document
	body    *html.Node
	index   *anchor.Index
	pieces  []textPiece
	spans   map[string]*html.Node
	applied appliedMarkers
}

var fragmentPolicy = bluemonday.UGCPolicy()

// NewHTMLSurface sanitizes and parses an HTML fragment.
func NewHTMLSurface(fragment string) (*HTMLSurface, error) {
	clean := fragmentPolicy.Sanitize(fragment)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(clean))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page html: %w", err)
	}
	body := doc.Find("body").First()
	if body.Length() == 0 {
		return nil, fmt.Errorf("page html has no body")
	}

	s := &HTMLSurface{
		doc:     doc,
		body:    body.Get(0),
		spans:   make(map[string]*html.Node),
		applied: newAppliedMarkers(),
	}

	var runs []anchor.Run
	offset := 0
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			runs = append(runs, anchor.Run{Ref: len(runs), Content: n.Data})
			s.pieces = append(s.pieces, textPiece{node: n, start: offset, end: offset + len(n.Data)})
			offset += len(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(s.body)
	s.index = anchor.NewIndex(runs)

	return s, nil
}

// Runs returns the text nodes as they were before any marker was applied.
func (s *HTMLSurface) Runs() []anchor.Run {
	return s.index.Runs()
}

// Wrap surrounds r with a marker span.
func (s *HTMLSurface) Wrap(r anchor.Range, m Marker) error {
	start, end, ok := s.index.Offsets(r)
	if !ok || start == end {
		return ErrStructuralConflict
	}
	sp := span{start: start, end: end}
	if err := s.applied.admit(sp, m); err != nil {
		return err
	}

	first := s.pieceAt(start)
	last := s.pieceAt(end - 1)
	if first < 0 || last < 0 {
		return ErrStructuralConflict
	}
	if s.pieces[first].node.Parent != s.pieces[last].node.Parent {
		return ErrStructuralConflict
	}

	// Split the end first so the start piece's index stays valid.
	s.split(last, end)
	s.split(first, start)
	first = s.pieceAt(start)
	last = s.pieceAt(end - 1)

	startNode := s.pieces[first].node
	endNode := s.pieces[last].node
	parent := startNode.Parent

	marker := &html.Node{
		Type:     html.ElementNode,
		Data:     "span",
		DataAtom: atom.Span,
		Attr: []html.Attribute{
			{Key: "class", Val: classPrefix + m.Class},
			{Key: IDAttr, Val: m.AnnotationID},
		},
	}
	parent.InsertBefore(marker, startNode)
	for n := startNode; n != nil; {
		next := n.NextSibling
		parent.RemoveChild(n)
		marker.AppendChild(n)
		if n == endNode {
			break
		}
		n = next
	}

	s.spans[m.AnnotationID] = marker
	s.applied.add(sp, m)
	return nil
}

// Unwrap removes the marker span for annotationID and merges the text it held back into
// its neighbours.
func (s *HTMLSurface) Unwrap(annotationID string) bool {
	marker, ok := s.spans[annotationID]
	if !ok {
		return false
	}
	parent := marker.Parent
	firstChild, lastChild := marker.FirstChild, marker.LastChild
	for c := marker.FirstChild; c != nil; c = marker.FirstChild {
		marker.RemoveChild(c)
		parent.InsertBefore(c, marker)
	}
	parent.RemoveChild(marker)

	if lastChild != nil {
		s.mergeWithNext(lastChild)
	}
	if firstChild != nil && firstChild.PrevSibling != nil {
		s.mergeWithNext(firstChild.PrevSibling)
	}

	delete(s.spans, annotationID)
	s.applied.remove(annotationID)
	return true
}

// Markers returns the applied markers in application order.
func (s *HTMLSurface) Markers() []Marker {
	out := make([]Marker, 0, len(s.applied.ids))
	for _, id := range s.applied.ids {
		out = append(out, s.applied.marks[id])
	}
	return out
}

// HTML renders the current page fragment.
func (s *HTMLSurface) HTML() (string, error) {
	out, err := s.doc.Find("body").First().Html()
	if err != nil {
		return "", fmt.Errorf("failed to render page html: %w", err)
	}
	return out, nil
}

// Selection exposes the page body for queries.
func (s *HTMLSurface) Selection() *goquery.Selection {
	return s.doc.Find("body").First()
}

// pieceAt returns the index of the piece holding flat offset k.
func (s *HTMLSurface) pieceAt(k int) int {
	for i, p := range s.pieces {
		if p.start <= k && k < p.end {
			return i
		}
	}
	return -1
}

// split cuts piece i at flat offset at, inserting the tail as a new sibling text node.
// Splitting at either edge is a no-op.
func (s *HTMLSurface) split(i, at int) {
	p := s.pieces[i]
	if at <= p.start || at >= p.end {
		return
	}
	cut := at - p.start
	tail := &html.Node{Type: html.TextNode, Data: p.node.Data[cut:]}
	p.node.Data = p.node.Data[:cut]
	p.node.Parent.InsertBefore(tail, p.node.NextSibling)

	s.pieces[i].end = at
	s.pieces = append(s.pieces, textPiece{})
	copy(s.pieces[i+2:], s.pieces[i+1:])
	s.pieces[i+1] = textPiece{node: tail, start: at, end: p.end}
}

// mergeWithNext folds n's next sibling into n when both are text nodes.
func (s *HTMLSurface) mergeWithNext(n *html.Node) {
	next := n.NextSibling
	if n.Type != html.TextNode || next == nil || next.Type != html.TextNode {
		return
	}
	i, j := s.pieceOf(n), s.pieceOf(next)
	if i < 0 || j != i+1 {
		return
	}
	n.Data += next.Data
	n.Parent.RemoveChild(next)

	s.pieces[i].end = s.pieces[j].end
	s.pieces = append(s.pieces[:j], s.pieces[j+1:]...)
}

func (s *HTMLSurface) pieceOf(n *html.Node) int {
	for i, p := range s.pieces {
		if p.node == n {
			return i
		}
	}
	return -1
}
