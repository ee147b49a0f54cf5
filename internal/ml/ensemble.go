package ml

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"bird-conservation/internal/traits"
)

// FormatTreeEnsemble is the format tag of a native ensemble artifact.
const FormatTreeEnsemble = "tree-ensemble"

// EnsembleFile is the on-disk layout of a tree ensemble. Trees are boosted
// regression trees, each contributing its leaf value to one class score.
type EnsembleFile struct {
	Format    string           `json:"format"`
	Version   string           `json:"version"`
	Classes   int              `json:"classes"`
	BaseScore []float64        `json:"base_score"`
	Features  []EnsembleColumn `json:"features"`
	Trees     []EnsembleTree   `json:"trees"`
}

// EnsembleColumn declares one input column. Categories is the ordinal
// vocabulary of a categorical column; numeric columns leave it empty.
type EnsembleColumn struct {
	Name       string   `json:"name"`
	Categories []string `json:"categories,omitempty"`
}

// EnsembleTree is a flat node list rooted at index 0.
type EnsembleTree struct {
	Class int            `json:"class"`
	Nodes []EnsembleNode `json:"nodes"`
}

// EnsembleNode is a split when Leaf is nil. Values strictly below Threshold
// go left.
type EnsembleNode struct {
	Feature   string   `json:"feature,omitempty"`
	Threshold float64  `json:"threshold,omitempty"`
	Left      int      `json:"left,omitempty"`
	Right     int      `json:"right,omitempty"`
	Leaf      *float64 `json:"leaf,omitempty"`
}

type node struct {
	feature   int
	threshold float64
	left      int
	right     int
	leaf      float64
	isLeaf    bool
}

type tree struct {
	class int
	nodes []node
}

// TreeEnsemble is a gradient-boosted tree classifier with ordinal encoding of
// categorical inputs. It holds no mutable state.
type TreeEnsemble struct {
	version string
	classes int
	base    []float64
	vocab   [traits.NumFields]map[string]int
	trees   []tree
}

// LoadTreeEnsemble reads and validates an ensemble artifact.
func LoadTreeEnsemble(path string) (*TreeEnsemble, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, unavailable("model", path, err)
	}

	var f EnsembleFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, unavailable("model", path, fmt.Errorf("decode ensemble: %w", err))
	}

	e, err := NewTreeEnsemble(f)
	if err != nil {
		return nil, unavailable("model", path, err)
	}
	return e, nil
}

// NewTreeEnsemble compiles an EnsembleFile. Every schema field must be
// declared exactly once with a kind matching the trait schema.
func NewTreeEnsemble(f EnsembleFile) (*TreeEnsemble, error) {
	if f.Format != "" && f.Format != FormatTreeEnsemble {
		return nil, fmt.Errorf("unexpected format %q", f.Format)
	}
	if f.Classes < 1 {
		return nil, fmt.Errorf("ensemble needs at least one class, got %d", f.Classes)
	}
	if len(f.BaseScore) != 0 && len(f.BaseScore) != f.Classes {
		return nil, fmt.Errorf("base_score has %d entries for %d classes", len(f.BaseScore), f.Classes)
	}

	e := &TreeEnsemble{
		version: f.Version,
		classes: f.Classes,
		base:    make([]float64, f.Classes),
	}
	copy(e.base, f.BaseScore)

	columns := make(map[string]int, traits.NumFields)
	for i, name := range traits.FieldNames() {
		columns[name] = i
	}

	declared := make(map[string]bool, len(f.Features))
	for _, col := range f.Features {
		idx, ok := columns[col.Name]
		if !ok {
			return nil, fmt.Errorf("feature %q is not part of the trait schema", col.Name)
		}
		if declared[col.Name] {
			return nil, fmt.Errorf("feature %q declared twice", col.Name)
		}
		declared[col.Name] = true

		spec, _ := traits.Lookup(col.Name)
		if spec.Kind.IsCategorical() != (len(col.Categories) > 0) {
			return nil, fmt.Errorf("feature %q: kind %s does not match declared categories", col.Name, spec.Kind)
		}
		if len(col.Categories) > 0 {
			vocab := make(map[string]int, len(col.Categories))
			for code, cat := range col.Categories {
				if _, dup := vocab[cat]; dup {
					return nil, fmt.Errorf("feature %q: duplicate category %q", col.Name, cat)
				}
				vocab[cat] = code
			}
			e.vocab[idx] = vocab
		}
	}
	for _, name := range traits.FieldNames() {
		if !declared[name] {
			return nil, fmt.Errorf("feature %q missing from ensemble", name)
		}
	}

	for ti, t := range f.Trees {
		compiled, err := compileTree(t, columns, f.Classes)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", ti, err)
		}
		e.trees = append(e.trees, compiled)
	}

	return e, nil
}

func compileTree(t EnsembleTree, columns map[string]int, classes int) (tree, error) {
	if t.Class < 0 || t.Class >= classes {
		return tree{}, fmt.Errorf("class %d outside [0, %d)", t.Class, classes)
	}
	if len(t.Nodes) == 0 {
		return tree{}, fmt.Errorf("no nodes")
	}

	out := tree{class: t.Class, nodes: make([]node, len(t.Nodes))}
	for i, n := range t.Nodes {
		if n.Leaf != nil {
			out.nodes[i] = node{leaf: *n.Leaf, isLeaf: true}
			continue
		}
		col, ok := columns[n.Feature]
		if !ok {
			return tree{}, fmt.Errorf("node %d splits on unknown feature %q", i, n.Feature)
		}
		// children after their parent keeps every walk finite
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return tree{}, fmt.Errorf("node %d has invalid children %d/%d", i, n.Left, n.Right)
		}
		if math.IsNaN(n.Threshold) {
			return tree{}, fmt.Errorf("node %d has NaN threshold", i)
		}
		out.nodes[i] = node{feature: col, threshold: n.Threshold, left: n.Left, right: n.Right}
	}
	return out, nil
}

// Predict encodes the record and returns the class with the highest score.
// Ties go to the lowest class index.
func (e *TreeEnsemble) Predict(_ context.Context, rec traits.Record) (int, error) {
	x, err := e.encode(rec)
	if err != nil {
		return 0, err
	}

	scores := make([]float64, e.classes)
	copy(scores, e.base)
	for _, t := range e.trees {
		scores[t.class] += t.eval(x)
	}

	best := 0
	for c := 1; c < len(scores); c++ {
		if scores[c] > scores[best] {
			best = c
		}
	}
	return best, nil
}

func (e *TreeEnsemble) encode(rec traits.Record) ([traits.NumFields]float64, error) {
	var x [traits.NumFields]float64
	for i, v := range rec.Values() {
		if !v.Kind.IsCategorical() {
			x[i] = v.Number
			continue
		}
		code, ok := e.vocab[i][v.Text]
		if !ok {
			return x, &traits.UnknownCategoryError{Field: v.Name, Value: v.Text}
		}
		x[i] = float64(code)
	}
	return x, nil
}

func (t tree) eval(x [traits.NumFields]float64) float64 {
	i := 0
	for {
		n := t.nodes[i]
		if n.isLeaf {
			return n.leaf
		}
		if x[n.feature] < n.threshold {
			i = n.left
		} else {
			i = n.right
		}
	}
}

// NumClasses is the number of classes the ensemble can emit.
func (e *TreeEnsemble) NumClasses() int { return e.classes }

// Version is the artifact's own version tag.
func (e *TreeEnsemble) Version() string { return e.version }

// Categories returns the trained vocabulary of a categorical field.
func (e *TreeEnsemble) Categories(field string) []string {
	for i, name := range traits.FieldNames() {
		if name != field || e.vocab[i] == nil {
			continue
		}
		out := make([]string, len(e.vocab[i]))
		for cat, code := range e.vocab[i] {
			out[code] = cat
		}
		return out
	}
	return nil
}
