// Package window computes which contiguous slice of a long fixed-height
// list must be materialized for a given viewport. It is pure arithmetic:
// the caller re-invokes Compute whenever scroll position, viewport size or
// item count change.
package window

// DefaultOverscan is the number of extra rows rendered beyond each edge of
// the viewport to mask scroll-induced popping.
const DefaultOverscan = 5

// Params are the inputs to one windowing computation.
type Params struct {
	ItemCount      int // total rows in the list, >= 0
	ItemHeight     int // fixed row height in pixels, > 0
	ViewportHeight int // visible height in pixels, >= 0
	ScrollTop      int // scroll offset in pixels, >= 0
	Overscan       int // extra rows on each side, >= 0
}

// Range is a contiguous render slice with absolute offsets. The half-open
// interval [StartIndex, EndIndex) covers every row intersecting the
// viewport plus up to Overscan rows on each side.
type Range struct {
	StartIndex  int
	EndIndex    int
	TopOffset   int
	TotalHeight int
}

// Compute derives the render range for p. Identical inputs always yield
// identical output; there is no hidden state.
func Compute(p Params) Range {
	if p.ItemCount <= 0 || p.ItemHeight <= 0 {
		return Range{}
	}
	if p.ScrollTop < 0 {
		p.ScrollTop = 0
	}
	if p.ViewportHeight < 0 {
		p.ViewportHeight = 0
	}
	if p.Overscan < 0 {
		p.Overscan = 0
	}

	totalHeight := p.ItemCount * p.ItemHeight
	visibleCount := (p.ViewportHeight + p.ItemHeight - 1) / p.ItemHeight

	start := p.ScrollTop/p.ItemHeight - p.Overscan
	if start < 0 {
		start = 0
	}
	end := start + visibleCount + 2*p.Overscan
	if end > p.ItemCount {
		end = p.ItemCount
	}
	if start > end {
		start = end
	}

	return Range{
		StartIndex:  start,
		EndIndex:    end,
		TopOffset:   start * p.ItemHeight,
		TotalHeight: totalHeight,
	}
}
