// Package diag records per-tree training diagnostics and renders the
// learning curve.
package diag

import (
	"sort"
	"sync"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/ezoic/arbor/pkg/errors"
)

// Entry is the record of one trained tree.
type Entry struct {
	Tree     int
	BagSum   float64
	Loss     float64
	Leaves   int
	Duration time.Duration
}

// Trace collects entries from concurrently trained trees.
type Trace struct {
	mu      sync.Mutex
	metric  string
	entries []Entry
}

// NewTrace creates a trace whose Loss column holds metric.
func NewTrace(metric string) *Trace {
	return &Trace{metric: metric}
}

// Metric names the loss column.
func (t *Trace) Metric() string {
	return t.metric
}

// Record appends an entry.
func (t *Trace) Record(e Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, e)
}

// Entries returns the entries ordered by tree index.
func (t *Trace) Entries() []Entry {
	t.mu.Lock()
	out := append([]Entry(nil), t.entries...)
	t.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Tree < out[j].Tree })
	return out
}

// Plot builds the learning curve: loss against tree index.
func (t *Trace) Plot() (*plot.Plot, error) {
	entries := t.Entries()
	if len(entries) == 0 {
		return nil, errors.NewModelError("Trace.Plot", "no trees recorded", errors.ErrEmptyData)
	}

	pts := make(plotter.XYs, len(entries))
	for i, e := range entries {
		pts[i].X = float64(e.Tree)
		pts[i].Y = e.Loss
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, errors.Wrap(err, "learning curve")
	}
	line.Width = vg.Points(2)

	p := plot.New()
	p.Title.Text = "Training loss"
	p.X.Label.Text = "Tree"
	p.Y.Label.Text = t.metric
	p.Add(line, plotter.NewGrid())
	p.Legend.Add(t.metric, line)
	return p, nil
}

// Save renders the learning curve to path; the extension selects the
// format (png, svg, pdf).
func (t *Trace) Save(path string) error {
	p, err := t.Plot()
	if err != nil {
		return err
	}
	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "save plot %s", path)
	}
	return nil
}
