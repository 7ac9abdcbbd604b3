// Package anchor re-locates recorded highlight text inside a freshly rendered page.
//
// A page arrives as an ordered sequence of text runs whose identities are not stable
// between renders. Anchoring is content-based: the target string is searched for in the
// concatenation of all runs and the match is mapped back to (run, offset) pairs.
//
// Matching is exact. There is no whitespace or case normalization and no fuzzy fallback,
// so whatever gets highlighted is byte-identical to what the reader selected. When the
// text occurs more than once the leftmost occurrence wins.
//
// Offsets are byte offsets into a run's Content (UTF-8). Use [Index.RuneRange] when the
// consumer counts characters instead.
package anchor

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// Run is one contiguous piece of a page's text as supplied by the renderer for a single pass.
// Ref is opaque to this package and handed back untouched.
type Run struct {
	Ref     any    `json:"ref,omitempty"`
	Content string `json:"content"`
}

// Range locates a span across one or more runs. The end offset is exclusive.
type Range struct {
	StartRun    int `json:"startRun"`
	StartOffset int `json:"startOffset"`
	EndRun      int `json:"endRun"`
	EndOffset   int `json:"endOffset"`
}

// Resolution is the outcome of resolving one target. Found=false is the not-found
// outcome and carries a zero Range.
type Resolution struct {
	Range Range `json:"range"`
	Found bool  `json:"found"`
}

// Index is the flat text of a page plus its prefix-sum table. Build it once per page
// render and reuse it for every highlight on that page.
type Index struct {
	runs   []Run
	starts []int // starts[i] = offset of runs[i] in flat
	flat   string
}

// NewIndex concatenates runs and records where each one starts.
func NewIndex(runs []Run) *Index {
	starts := make([]int, len(runs))
	var b strings.Builder
	for i, r := range runs {
		starts[i] = b.Len()
		b.WriteString(r.Content)
	}
	return &Index{
		runs:   runs,
		starts: starts,
		flat:   b.String(),
	}
}

// Runs returns the runs the index was built from.
func (ix *Index) Runs() []Run {
	return ix.runs
}

// Len is the length in bytes of the concatenated page text.
func (ix *Index) Len() int {
	return len(ix.flat)
}

// String returns the concatenated page text.
func (ix *Index) String() string {
	return ix.flat
}

// Resolve finds the leftmost exact occurrence of target. The second result is false when
// the target is empty, the page is empty, or the text simply is not there; none of those
// are errors.
func (ix *Index) Resolve(target string) (Range, bool) {
	if target == "" || len(ix.flat) == 0 {
		return Range{}, false
	}

	start := strings.Index(ix.flat, target)
	if start < 0 {
		return Range{}, false
	}
	end := start + len(target)

	startRun := ix.runAt(start)
	// Locate the run holding the last matched byte so the end never lands at offset 0
	// of a following run.
	endRun := ix.runAt(end - 1)

	return Range{
		StartRun:    startRun,
		StartOffset: start - ix.starts[startRun],
		EndRun:      endRun,
		EndOffset:   end - ix.starts[endRun],
	}, true
}

// ResolveAll resolves every target against the same index, preserving order.
func (ix *Index) ResolveAll(targets []string) []Resolution {
	out := make([]Resolution, len(targets))
	for i, t := range targets {
		r, ok := ix.Resolve(t)
		out[i] = Resolution{Range: r, Found: ok}
	}
	return out
}

// runAt returns the last run whose start is <= k. Empty runs share their start with the
// following run, so they are never selected for a k inside the page.
func (ix *Index) runAt(k int) int {
	return sort.Search(len(ix.starts), func(i int) bool { return ix.starts[i] > k }) - 1
}

// Offsets converts a range to [start, end) offsets in the flat text.
// ok is false when the range does not fit the indexed runs.
func (ix *Index) Offsets(r Range) (start, end int, ok bool) {
	if !ix.valid(r) {
		return 0, 0, false
	}
	start = ix.starts[r.StartRun] + r.StartOffset
	end = ix.starts[r.EndRun] + r.EndOffset
	if start > end {
		return 0, 0, false
	}
	return start, end, true
}

// Text reads back the content covered by r, or "" if r does not fit the runs.
func (ix *Index) Text(r Range) string {
	start, end, ok := ix.Offsets(r)
	if !ok {
		return ""
	}
	return ix.flat[start:end]
}

// RuneRange converts byte offsets in r to rune offsets within the same runs.
func (ix *Index) RuneRange(r Range) (Range, bool) {
	if !ix.valid(r) {
		return Range{}, false
	}
	return Range{
		StartRun:    r.StartRun,
		StartOffset: utf8.RuneCountInString(ix.runs[r.StartRun].Content[:r.StartOffset]),
		EndRun:      r.EndRun,
		EndOffset:   utf8.RuneCountInString(ix.runs[r.EndRun].Content[:r.EndOffset]),
	}, true
}

func (ix *Index) valid(r Range) bool {
	n := len(ix.runs)
	if r.StartRun < 0 || r.StartRun >= n || r.EndRun < r.StartRun || r.EndRun >= n {
		return false
	}
	if r.StartOffset < 0 || r.StartOffset > len(ix.runs[r.StartRun].Content) {
		return false
	}
	if r.EndOffset < 0 || r.EndOffset > len(ix.runs[r.EndRun].Content) {
		return false
	}
	return true
}

// Resolve is a one-shot helper for callers with a single target.
func Resolve(runs []Run, target string) (Range, bool) {
	return NewIndex(runs).Resolve(target)
}

// Texts builds runs from plain strings, using each run's position as its Ref.
func Texts(contents ...string) []Run {
	runs := make([]Run, len(contents))
	for i, c := range contents {
		runs[i] = Run{Ref: i, Content: c}
	}
	return runs
}
