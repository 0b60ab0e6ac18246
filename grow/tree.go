package grow

// Node is one node of a trained tree. Internal nodes send rows whose
// predictor value is at most Threshold to Left; terminals carry Term >= 0.
type Node struct {
	Pred      int
	Threshold float64
	Left      int
	Right     int
	Term      int
	Score     float64
	// Info is the gain of the node's split, zero for terminals.
	Info float64
}

// IsTerminal reports whether n is a leaf.
func (n *Node) IsTerminal() bool {
	return n.Term >= 0
}

// Tree is a trained decision tree. Node 0 is the root.
type Tree struct {
	Nodes  []Node
	Scores []float64
	nPred  int
}

func newTree(nPred int) *Tree {
	return &Tree{nPred: nPred}
}

func (t *Tree) addNode() int {
	t.Nodes = append(t.Nodes, Node{Pred: -1, Left: -1, Right: -1, Term: -1})
	return len(t.Nodes) - 1
}

func (t *Tree) setTerminal(node int, score float64) int {
	term := len(t.Scores)
	t.Scores = append(t.Scores, score)
	n := &t.Nodes[node]
	n.Term = term
	n.Score = score
	return term
}

func (t *Tree) setSplit(node, pred int, threshold, info float64) (left, right int) {
	left = t.addNode()
	right = t.addNode()
	n := &t.Nodes[node]
	n.Pred, n.Threshold, n.Info = pred, threshold, info
	n.Left, n.Right = left, right
	return left, right
}

// Leaves returns the terminal count.
func (t *Tree) Leaves() int {
	return len(t.Scores)
}

// TerminalScore returns the score of terminal term.
func (t *Tree) TerminalScore(term int) float64 {
	return t.Scores[term]
}

// Terminal returns the index of the terminal row x reaches.
func (t *Tree) Terminal(x []float64) int {
	idx := 0
	for {
		n := &t.Nodes[idx]
		if n.IsTerminal() {
			return n.Term
		}
		if x[n.Pred] <= n.Threshold {
			idx = n.Left
		} else {
			idx = n.Right
		}
	}
}

// Predict returns the score of the terminal row x reaches.
func (t *Tree) Predict(x []float64) float64 {
	return t.Scores[t.Terminal(x)]
}

// Depth returns the length of the longest root-to-leaf path.
func (t *Tree) Depth() int {
	var walk func(idx int) int
	walk = func(idx int) int {
		n := &t.Nodes[idx]
		if n.IsTerminal() {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	if len(t.Nodes) == 0 {
		return 0
	}
	return walk(0)
}

// PredInfo sums the split gains of the tree by predictor.
func (t *Tree) PredInfo() []float64 {
	info := make([]float64, t.nPred)
	for i := range t.Nodes {
		if n := &t.Nodes[i]; !n.IsTerminal() && n.Pred >= 0 {
			info[n.Pred] += n.Info
		}
	}
	return info
}
