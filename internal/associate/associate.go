// Package associate picks the price label that belongs to a product label.
//
// The search widens in three tiers, each tried only when the previous one
// produced nothing:
//
//  1. siblings under the same (non-page) parent, scored by vertical distance
//     plus a penalty for sitting left of the product;
//  2. page-wide nodes on the same row, closest to the right first;
//  3. page-wide nearest neighbour by straight-line distance.
package associate

import (
	"math"
	"sort"

	"github.com/agentic-research/pricetag/internal/graph"
)

// Tier identifies which stage produced a result.
type Tier int

const (
	TierNone Tier = iota
	TierSibling
	TierRow
	TierNearest
)

func (t Tier) String() string {
	switch t {
	case TierSibling:
		return "sibling"
	case TierRow:
		return "row"
	case TierNearest:
		return "nearest"
	default:
		return "none"
	}
}

// Options tunes the geometry of each tier.
type Options struct {
	// LeftPenalty multiplies how far a sibling sits left of the product.
	LeftPenalty float64
	// RowTolerance is the maximum |dy| for the row tier.
	RowTolerance float64
	// RowSlack is how far left of the product (exclusive) a row candidate may start.
	RowSlack float64
	// NearestSlack is how far left of the product (inclusive) a nearest candidate may start.
	NearestSlack float64
}

// DefaultOptions returns the stock tuning.
func DefaultOptions() Options {
	return Options{
		LeftPenalty:  10,
		RowTolerance: 8,
		RowSlack:     4,
		NearestSlack: 40,
	}
}

// Associator resolves price nodes with fixed Options.
type Associator struct {
	opts Options
}

func New(opts Options) *Associator {
	return &Associator{opts: opts}
}

// FindPriceNode returns the best price candidate for product among nodes,
// or nil when no tier yields one. product itself is never returned.
func (a *Associator) FindPriceNode(product *graph.Node, nodes []*graph.Node) *graph.Node {
	n, _ := a.Find(product, nodes)
	return n
}

// Find is FindPriceNode that also reports the tier that matched.
func (a *Associator) Find(product *graph.Node, nodes []*graph.Node) (*graph.Node, Tier) {
	if product == nil {
		return nil, TierNone
	}
	if n := a.siblingTier(product); n != nil {
		return n, TierSibling
	}
	candidates := make([]*graph.Node, 0, len(nodes))
	for _, n := range nodes {
		if graph.IsText(n) && n != product {
			candidates = append(candidates, n)
		}
	}
	if n := a.rowTier(product, candidates); n != nil {
		return n, TierRow
	}
	if n := a.nearestTier(product, candidates); n != nil {
		return n, TierNearest
	}
	return nil, TierNone
}

// SiblingScore is the sibling-tier cost of candidate s: vertical distance
// plus LeftPenalty per unit s sits left of the product.
func (a *Associator) SiblingScore(product, s *graph.Node) float64 {
	dy := math.Abs(s.Y - product.Y)
	left := math.Max(0, product.X-s.X)
	return dy + a.opts.LeftPenalty*left
}

func (a *Associator) siblingTier(product *graph.Node) *graph.Node {
	parent := product.Parent
	if parent == nil || parent.Type == graph.TypePage {
		return nil
	}
	var best *graph.Node
	bestScore := math.Inf(1)
	for _, s := range parent.Children {
		if !graph.IsText(s) || s == product {
			continue
		}
		// Strict comparison keeps the first sibling on ties.
		if score := a.SiblingScore(product, s); score < bestScore {
			bestScore = score
			best = s
		}
	}
	return best
}

func (a *Associator) rowTier(product *graph.Node, candidates []*graph.Node) *graph.Node {
	var row []*graph.Node
	for _, n := range candidates {
		if math.Abs(n.Y-product.Y) <= a.opts.RowTolerance && n.X-product.X > -a.opts.RowSlack {
			row = append(row, n)
		}
	}
	if len(row) == 0 {
		return nil
	}
	sort.SliceStable(row, func(i, j int) bool {
		return row[i].X-product.X < row[j].X-product.X
	})
	return row[0]
}

func (a *Associator) nearestTier(product *graph.Node, candidates []*graph.Node) *graph.Node {
	var nearest *graph.Node
	nearestDist := math.Inf(1)
	for _, n := range candidates {
		dx := n.X - product.X
		if dx < -a.opts.NearestSlack {
			continue
		}
		if dist := math.Hypot(dx, n.Y-product.Y); dist < nearestDist {
			nearestDist = dist
			nearest = n
		}
	}
	return nearest
}
