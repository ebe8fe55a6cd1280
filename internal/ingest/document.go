package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/agentic-research/pricetag/internal/graph"
	"github.com/ohler55/ojg/oj"
)

// DefaultPagesSelector finds pages in both plugin dumps and REST file exports.
const DefaultPagesSelector = "$.document.children[*]"

var ErrNoPages = errors.New("document has no pages")

// Decoder turns a JSON design document into a MemoryScene.
//
// Two node shapes are understood: plugin style, with parent-relative x/y,
// width/height and fontName {family, style} (or "mixed"); and REST style,
// with absoluteBoundingBox and style.fontFamily/fontStyle. Absolute boxes are
// converted to parent-relative positions.
type Decoder struct {
	PagesSelector string
	Walker        Walker
	Logger        *slog.Logger
}

func NewDecoder(selector string, logger *slog.Logger) *Decoder {
	if selector == "" {
		selector = DefaultPagesSelector
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Decoder{PagesSelector: selector, Walker: NewJsonWalker(), Logger: logger}
}

// Decode parses data and builds the scene.
func (d *Decoder) Decode(data []byte) (*graph.MemoryScene, error) {
	root, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return d.FromTree(root)
}

// FromTree builds the scene from an already decoded tree.
func (d *Decoder) FromTree(root any) (*graph.MemoryScene, error) {
	matches, err := d.Walker.Query(root, d.PagesSelector)
	if err != nil {
		return nil, err
	}

	scene := graph.NewMemoryScene()
	pages := 0
	for i, m := range matches {
		obj, ok := m.Object()
		if !ok {
			d.Logger.Warn("non-object page skipped", "index", i, "value", fmt.Sprintf("%T", m.Raw()))
			continue
		}
		page := decodeNode(obj, "page-"+strconv.Itoa(i), point{})
		scene.AddPage(page)
		pages++
	}
	if pages == 0 {
		return nil, fmt.Errorf("%w (selector %s)", ErrNoPages, d.PagesSelector)
	}

	doc, _ := root.(map[string]any)
	scene.SetName(str(doc["name"]))
	if id := str(doc["currentPage"]); id != "" {
		if err := scene.SetCurrentPage(id); err != nil {
			return nil, err
		}
	}
	if sel, ok := doc["selection"].([]any); ok {
		ids := make([]string, 0, len(sel))
		for _, v := range sel {
			ids = append(ids, str(v))
		}
		if err := scene.Select(ids...); err != nil {
			d.Logger.Warn("stale selection ignored", "error", err)
		}
	}
	d.Logger.Debug("document decoded", "pages", pages, "name", scene.Name())
	return scene, nil
}

type point struct{ x, y float64 }

// decodeNode builds n and its subtree. origin is the absolute position of
// the parent.
func decodeNode(obj map[string]any, fallbackID string, origin point) *graph.Node {
	n := &graph.Node{
		ID:         str(obj["id"]),
		Type:       graph.NodeType(strings.ToUpper(str(obj["type"]))),
		Name:       str(obj["name"]),
		Characters: str(obj["characters"]),
	}
	if n.ID == "" {
		n.ID = fallbackID
	}

	box, hasBox := obj["absoluteBoundingBox"].(map[string]any)
	_, hasX := obj["x"]
	_, hasY := obj["y"]
	switch {
	case hasX || hasY:
		n.X, n.Y = num(obj["x"]), num(obj["y"])
	case hasBox:
		n.X, n.Y = num(box["x"])-origin.x, num(box["y"])-origin.y
	}
	n.Width, n.Height = num(obj["width"]), num(obj["height"])
	if hasBox && n.Width == 0 && n.Height == 0 {
		n.Width, n.Height = num(box["width"]), num(box["height"])
	}

	decodeFont(n, obj)

	abs := point{origin.x + n.X, origin.y + n.Y}
	if hasBox {
		abs = point{num(box["x"]), num(box["y"])}
	}
	children, _ := obj["children"].([]any)
	for i, c := range children {
		child, ok := c.(map[string]any)
		if !ok {
			continue
		}
		n.AppendChild(decodeNode(child, n.ID+"/"+strconv.Itoa(i), abs))
	}
	return n
}

func decodeFont(n *graph.Node, obj map[string]any) {
	switch f := obj["fontName"].(type) {
	case map[string]any:
		n.Font = fontOf(f["family"], f["style"])
	case string:
		n.MixedFont = strings.EqualFold(f, "mixed")
	default:
		if st, ok := obj["style"].(map[string]any); ok {
			n.Font = fontOf(st["fontFamily"], st["fontStyle"])
		}
	}
	if b, ok := obj["mixedFont"].(bool); ok && b {
		n.MixedFont = true
	}
	if ranges, ok := obj["rangeFonts"].([]any); ok {
		for _, r := range ranges {
			if m, ok := r.(map[string]any); ok {
				n.RangeFonts = append(n.RangeFonts, fontOf(m["family"], m["style"]))
			}
		}
	}
}

func fontOf(family, style any) graph.FontName {
	return graph.FontName{Family: str(family), Style: str(style)}
}

func str(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}

func num(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	default:
		return 0
	}
}
