// Package pricing rewrites price labels next to product labels.
package pricing

import (
	"context"
	"log/slog"
	"strings"

	"github.com/agentic-research/pricetag/internal/associate"
	"github.com/agentic-research/pricetag/internal/graph"
	"github.com/agentic-research/pricetag/internal/match"
)

// DefaultFallbackFont is loaded and assigned when a label cannot be written
// with its own font.
var DefaultFallbackFont = graph.FontName{Family: "Inter", Style: "Regular"}

// Outcome is the fate of one matched product node.
type Outcome int

const (
	// Updated means the price label was rewritten.
	Updated Outcome = iota
	// NoCandidate means no price label could be associated.
	NoCandidate
	// FontFailed means both the primary and the fallback write failed.
	FontFailed
)

func (o Outcome) String() string {
	switch o {
	case Updated:
		return "updated"
	case NoCandidate:
		return "no-candidate"
	case FontFailed:
		return "font-failed"
	default:
		return "unknown"
	}
}

// Result records what happened to one matched product node.
type Result struct {
	Product     string
	ProductNode string
	PriceNode   string // empty when Outcome is NoCandidate
	Tier        associate.Tier
	Outcome     Outcome
	Err         error
}

// Report aggregates one run. Updates counts successful writes; NotFound lists
// product names with no matching node, in mapping order.
type Report struct {
	Updates  int
	NotFound []string
	Results  []Result
}

// Count returns how many results ended with outcome o.
func (r Report) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// Updater runs the match → associate → format → write pipeline.
type Updater struct {
	associator   *associate.Associator
	formatter    Formatter
	fallbackFont graph.FontName
	logger       *slog.Logger
}

// Option configures an Updater.
type Option func(*Updater)

func WithAssociator(a *associate.Associator) Option {
	return func(u *Updater) { u.associator = a }
}

func WithCurrency(symbol string) Option {
	return func(u *Updater) { u.formatter.Currency = symbol }
}

func WithFallbackFont(f graph.FontName) Option {
	return func(u *Updater) { u.fallbackFont = f }
}

func WithLogger(l *slog.Logger) Option {
	return func(u *Updater) {
		if l != nil {
			u.logger = l
		}
	}
}

func NewUpdater(opts ...Option) *Updater {
	u := &Updater{
		associator:   associate.New(associate.DefaultOptions()),
		formatter:    Formatter{Currency: DefaultCurrency},
		fallbackFont: DefaultFallbackFont,
		logger:       slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(u)
	}
	return u
}

// UpdatePrices runs a default Updater.
func UpdatePrices(ctx context.Context, scene graph.Scene, m Mapping) Report {
	return NewUpdater().Run(ctx, scene, m)
}

// Run processes every entry of m in order against the current page of scene.
// Entries and matched nodes are handled strictly one after another; no
// failure aborts the run.
func (u *Updater) Run(ctx context.Context, scene graph.Scene, m Mapping) Report {
	report := Report{NotFound: []string{}}
	texts := scene.PageNodes(graph.TypeText)

	for _, e := range m {
		name := strings.TrimSpace(e.Product)
		if name == "" {
			continue
		}
		products := match.FindMatches(name, texts)
		if len(products) == 0 {
			report.NotFound = append(report.NotFound, name)
			u.logger.Debug("product not found", "product", name)
			continue
		}
		price := strings.TrimSpace(e.Price)
		for _, p := range products {
			res := u.updateOne(ctx, scene, name, price, p, texts)
			if res.Outcome == Updated {
				report.Updates++
			}
			report.Results = append(report.Results, res)
		}
	}

	u.logger.Info("price update finished",
		"entries", len(m),
		"updates", report.Updates,
		"not_found", len(report.NotFound),
		"no_candidate", report.Count(NoCandidate),
		"font_failed", report.Count(FontFailed))
	return report
}

func (u *Updater) updateOne(ctx context.Context, scene graph.Scene, name, price string, product *graph.Node, texts []*graph.Node) Result {
	res := Result{Product: name, ProductNode: product.ID}
	target, tier := u.associator.Find(product, texts)
	res.Tier = tier
	if target == nil {
		res.Outcome = NoCandidate
		u.logger.Debug("no price label for product", "product", name, "node", product.ID)
		return res
	}
	res.PriceNode = target.ID

	u.prepareFont(ctx, scene, target)
	err := scene.SetCharacters(target, u.formatter.Format(target.Characters, price))
	if err == nil {
		res.Outcome = Updated
		u.logger.Debug("price updated", "product", name, "node", target.ID, "tier", tier.String())
		return res
	}
	u.logger.Warn("write failed, retrying with fallback font",
		"node", target.ID, "font", u.fallbackFont.String(), "error", err)

	if err := u.writeWithFallback(ctx, scene, target, price); err != nil {
		res.Outcome = FontFailed
		res.Err = err
		u.logger.Warn("price label left unmodified", "product", name, "node", target.ID, "error", err)
		return res
	}
	res.Outcome = Updated
	u.logger.Debug("price updated with fallback font", "product", name, "node", target.ID, "tier", tier.String())
	return res
}

// prepareFont makes the label's font available before writing. Failures are
// logged only; the write that follows decides the outcome.
func (u *Updater) prepareFont(ctx context.Context, scene graph.Scene, n *graph.Node) {
	var f graph.FontName
	switch {
	case n.MixedFont:
		f = u.fallbackFont
	case n.Font.IsZero():
		return
	case n.Font.Style == "":
		f = u.fallbackFont
	default:
		f = n.Font
	}
	if err := scene.LoadFont(ctx, f); err != nil {
		u.logger.Warn("font load failed", "node", n.ID, "font", f.String(), "error", err)
	}
}

func (u *Updater) writeWithFallback(ctx context.Context, scene graph.Scene, n *graph.Node, price string) error {
	if err := scene.LoadFont(ctx, u.fallbackFont); err != nil {
		u.logger.Warn("fallback font load failed", "node", n.ID, "font", u.fallbackFont.String(), "error", err)
	}
	if err := scene.SetFont(n, u.fallbackFont); err != nil {
		return err
	}
	return scene.SetCharacters(n, u.formatter.Format(n.Characters, price))
}
