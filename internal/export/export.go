// Package export picks a node on the current page and renders it to a
// base64-encoded PNG.
package export

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/agentic-research/pricetag/internal/graph"
)

// DefaultScale is the raster scale applied when none is configured.
const DefaultScale = 2

// NothingToExportText is the reply shown to users for ErrNothingToExport.
const NothingToExportText = "No node selected and no suitable frame found to export."

// ErrNothingToExport is returned when the page has no selection and no
// frame or group to fall back to.
var ErrNothingToExport = errors.New("nothing to export")

// Result is a finished export.
type Result struct {
	Node   *graph.Node
	PNG    []byte
	Base64 string
}

// BestFrame returns the FRAME or GROUP on the current page with the most
// TEXT descendants. The first one in enumeration order wins ties. It returns
// nil when the page has no frames or groups.
func BestFrame(scene graph.Scene) *graph.Node {
	var best *graph.Node
	bestScore := -1
	for _, f := range scene.PageNodes(graph.TypeFrame, graph.TypeGroup) {
		if score := len(f.FindAll(graph.IsText)); score > bestScore {
			bestScore = score
			best = f
		}
	}
	return best
}

// Target returns the first selected node, or BestFrame when nothing is
// selected.
func Target(scene graph.Scene) (*graph.Node, error) {
	if sel := scene.Selection(); len(sel) > 0 {
		return sel[0], nil
	}
	if f := BestFrame(scene); f != nil {
		return f, nil
	}
	return nil, ErrNothingToExport
}

// Exporter renders export targets through a Scene.
type Exporter struct {
	Scale  float64
	Logger *slog.Logger
}

// Render exports n. It is split from Export so callers can report progress
// between choosing the target and rasterizing it.
func (e *Exporter) Render(ctx context.Context, scene graph.Scene, n *graph.Node) (*Result, error) {
	scale := e.Scale
	if scale <= 0 {
		scale = DefaultScale
	}
	png, err := scene.Export(ctx, n, scale)
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", n.ID, err)
	}
	if e.Logger != nil {
		e.Logger.Info("node exported", "node", n.ID, "name", n.Name, "scale", scale, "bytes", len(png))
	}
	return &Result{
		Node:   n,
		PNG:    png,
		Base64: base64.StdEncoding.EncodeToString(png),
	}, nil
}

// Export chooses the target and renders it.
func (e *Exporter) Export(ctx context.Context, scene graph.Scene) (*Result, error) {
	n, err := Target(scene)
	if err != nil {
		return nil, err
	}
	return e.Render(ctx, scene, n)
}
