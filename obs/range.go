package obs

// IndexRange is the half-open interval [Start, Start+Extent) over
// observation or sample indices.
type IndexRange struct {
	Start  int
	Extent int
}

// NewIndexRange creates a range beginning at start with extent elements.
func NewIndexRange(start, extent int) IndexRange {
	if extent < 0 {
		extent = 0
	}
	return IndexRange{Start: start, Extent: extent}
}

// End returns the first index past the range.
func (r IndexRange) End() int {
	return r.Start + r.Extent
}

// Empty reports whether the range holds no indices.
func (r IndexRange) Empty() bool {
	return r.Extent <= 0
}

// Contains reports whether idx lies in the range.
func (r IndexRange) Contains(idx int) bool {
	return idx >= r.Start && idx < r.End()
}

// Adjust shrinks the range by left indices at its start and right indices at
// its end, as when a margin of implicit observations is removed from a
// cell. The extent never drops below zero.
func (r *IndexRange) Adjust(left, right int) {
	r.Start += left
	r.Extent -= left + right
	if r.Extent < 0 {
		r.Extent = 0
	}
}
