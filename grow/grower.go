package grow

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/ezoic/arbor/obs"
	"github.com/ezoic/arbor/pkg/errors"
	"github.com/ezoic/arbor/pkg/log"
	"github.com/ezoic/arbor/score"
	"github.com/ezoic/arbor/session"
	"github.com/ezoic/arbor/split"
)

// gainTolerance scales with the node's own information so that cuts
// improving it by rounding noise alone are rejected.
const gainTolerance = 1e-12

// Grower builds trees for one session.
type Grower struct {
	frame   *Frame
	sess    *session.Session
	nThread int
	logger  log.Logger
}

// NewGrower binds a frame to a session. The frame must carry the
// session's predictors.
func NewGrower(frame *Frame, sess *session.Session) (*Grower, error) {
	if frame.NPred() != sess.NPred() {
		return nil, errors.NewDimensionError("NewGrower", sess.NPred(), frame.NPred(), 1)
	}
	if frame.NRow() != sess.Response().NObs() {
		return nil, errors.NewDimensionError("NewGrower", sess.Response().NObs(), frame.NRow(), 0)
	}
	nThread := sess.Config().NThread
	if nThread <= 0 {
		nThread = runtime.GOMAXPROCS(0)
	}
	return &Grower{
		frame:   frame,
		sess:    sess,
		nThread: nThread,
		logger:  sess.Logger().With(log.ComponentKey, "grow"),
	}, nil
}

// levelNode is a node of the current frontier.
type levelNode struct {
	node    int
	samples []int
	iSet    obs.IndexSet
	active  bool
	// minInfo is the gain a cut must reach, MinRatio times the parent's.
	minInfo float64
}

// level adapts a frontier to the candidate selector.
type level []levelNode

func (l level) NNode() int {
	return len(l)
}

func (l level) IsActive(node int) bool {
	return l[node].active
}

// Grow builds tree tIdx over sampled, scoring terminals with scorer. It
// returns the tree and the map from terminal index to the samples each
// terminal holds, which boosting feeds back into the estimate.
func (g *Grower) Grow(ctx context.Context, tIdx int, sampled *obs.SampledObs, scorer *score.NodeScorer) (tree *Tree, terms *obs.SampleMap, err error) {
	defer errors.Recover(&err, "Grower.Grow")

	cfg := g.sess.Config().Tree
	minNode := max(2, cfg.MinNode)
	tree = newTree(g.frame.NPred())
	terms = obs.NewSampleMap(sampled.BagCount())

	root := make([]int, sampled.BagCount())
	for i := range root {
		root[i] = i
	}
	frontier := level{{node: tree.addNode(), samples: root}}

	for depth := 0; len(frontier) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, errors.Wrap(err, "Grower.Grow")
		}
		if err := scorer.FrontierPreamble(depth); err != nil {
			return nil, nil, err
		}
		for i := range frontier {
			ln := &frontier[i]
			ln.iSet = sampled.IndexSetOf(i, ln.samples)
			ln.active = (cfg.MaxDepth == 0 || depth < cfg.MaxDepth) &&
				len(ln.samples) >= 2 && ln.iSet.SCount >= minNode
		}

		best, err := g.evaluate(ctx, sampled, scorer.Kind(), frontier,
			g.sess.CandSGB().Precandidates(frontier, tIdx, depth))
		if err != nil {
			return nil, nil, err
		}
		g.logger.Debug("level evaluated",
			log.TreeKey, tIdx,
			log.LevelKey, depth,
			"nodes", len(frontier))

		leaves := terms.NNode() + len(frontier)
		var next level
		for i := range frontier {
			ln := &frontier[i]
			if b := best[i]; b != nil && (cfg.LeafMax == 0 || leaves < cfg.LeafMax) {
				c := g.frame.cell(sampled, ln.samples, b.PredIdx)
				left, right, threshold := c.partition(b.Cut, cfg.Quant(b.PredIdx))
				l, r := tree.setSplit(ln.node, b.PredIdx, threshold, b.Info)
				minInfo := cfg.MinRatio * b.Info
				next = append(next,
					levelNode{node: l, samples: left, minInfo: minInfo},
					levelNode{node: r, samples: right, minInfo: minInfo})
				leaves++
				continue
			}
			term := terms.AddNode(ln.samples)
			iSet := sampled.IndexSetOf(term, ln.samples)
			if got := tree.setTerminal(ln.node, scorer.Score(terms, &iSet)); got != term {
				panic(errors.NewInvariantError("Grower.Grow", "terminal map out of step with tree"))
			}
		}
		frontier = next
	}

	g.logger.Debug("tree grown",
		log.OperationKey, log.OperationGrow,
		log.TreeKey, tIdx,
		log.SamplesKey, sampled.BagCount(),
		"leaves", tree.Leaves(),
		"depth", tree.Depth())
	return tree, terms, nil
}

// evaluate runs one cut search per candidate in parallel and returns the
// best improving candidate of each node, nil where none improves.
func (g *Grower) evaluate(ctx context.Context, sampled *obs.SampledObs, kind score.Kind,
	frontier level, cands [][]split.SplitNux) ([]*split.SplitNux, error) {
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.nThread)

	categorical := kind == score.Plurality
	for node := range cands {
		samples := frontier[node].samples
		for k := range cands[node] {
			cand := &cands[node][k]
			eg.Go(func() (err error) {
				defer errors.Recover(&err, "Grower.evaluate")
				if err := egCtx.Err(); err != nil {
					return err
				}
				c := g.frame.cell(sampled, samples, cand.PredIdx)
				if categorical {
					acc, err := split.NewCutAccumCtg(cand, &c.ObsCell, sampled.NCtg())
					if err != nil {
						return err
					}
					acc.Split()
					return nil
				}
				acc, err := split.NewCutAccumReg(cand, &c.ObsCell, g.sess.Mono(cand.PredIdx))
				if err != nil {
					return err
				}
				acc.Split()
				return nil
			})
		}
	}
	if err := eg.Wait(); err != nil {
		return nil, errors.Wrap(err, "candidate search")
	}

	best := make([]*split.SplitNux, len(cands))
	scanned, found := 0, 0
	for node := range cands {
		tol := nodeTolerance(&frontier[node].iSet)
		for k := range cands[node] {
			cand := &cands[node][k]
			scanned++
			if !cand.Found() || cand.Info <= tol || cand.Info < frontier[node].minInfo {
				continue
			}
			found++
			if cand.Better(best[node]) {
				best[node] = cand
			}
		}
	}
	session.RecordCandidates(scanned, found)
	return best, nil
}

func nodeTolerance(iSet *obs.IndexSet) float64 {
	if iSet.SCount <= 0 {
		return gainTolerance
	}
	return gainTolerance * (1 + iSet.Sum*iSet.Sum/float64(iSet.SCount))
}
