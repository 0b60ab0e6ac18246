package obs

// LeafScorer exposes the score of each terminal node of a trained tree.
type LeafScorer interface {
	TerminalScore(term int) float64
}

// SampleMap maps each node of a tree to the sample indices it holds, as a
// range over one packed index vector.
type SampleMap struct {
	Range       []IndexRange
	SampleIndex []int
}

// NewSampleMap returns an empty map sized for nSample indices.
func NewSampleMap(nSample int) *SampleMap {
	return &SampleMap{SampleIndex: make([]int, 0, nSample)}
}

// AddNode appends a node holding sIdx and returns its index in the map.
func (m *SampleMap) AddNode(sIdx []int) int {
	m.Range = append(m.Range, NewIndexRange(len(m.SampleIndex), len(sIdx)))
	m.SampleIndex = append(m.SampleIndex, sIdx...)
	return len(m.Range) - 1
}

// NNode returns the number of nodes mapped.
func (m *SampleMap) NNode() int {
	return len(m.Range)
}

// Samples returns the sample indices of node idx.
func (m *SampleMap) Samples(idx int) []int {
	r := m.Range[idx]
	return m.SampleIndex[r.Start:r.End()]
}

// ScaleSampleScores adds nu times each terminal's score into the estimate
// of every sample the terminal holds. Node indices of the map are the
// terminal indices of tree.
func (m *SampleMap) ScaleSampleScores(tree LeafScorer, estimate []float64, nu float64) {
	for term := range m.Range {
		score := nu * tree.TerminalScore(term)
		for _, sIdx := range m.Samples(term) {
			estimate[sIdx] += score
		}
	}
}
