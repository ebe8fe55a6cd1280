// Package writeback serializes mutated documents back to storage.
package writeback

import (
	"encoding/json"
	"fmt"

	"github.com/agentic-research/pricetag/api"
	"github.com/agentic-research/pricetag/internal/graph"
	billy "github.com/go-git/go-billy/v5"
)

// ToDocument converts scene to its JSON form. Positions are written
// parent-relative regardless of the shape the document was read from.
func ToDocument(scene *graph.MemoryScene) api.Document {
	doc := api.Document{
		Name:     scene.Name(),
		Document: api.Node{ID: "0:0", Type: string(graph.TypeDocument), Name: "Document"},
	}
	for _, p := range scene.Pages() {
		doc.Document.Children = append(doc.Document.Children, toNode(p))
	}
	if cur := scene.CurrentPage(); cur != nil {
		doc.CurrentPage = cur.ID
	}
	for _, n := range scene.Selection() {
		doc.Selection = append(doc.Selection, n.ID)
	}
	return doc
}

func toNode(n *graph.Node) api.Node {
	out := api.Node{
		ID:         n.ID,
		Type:       string(n.Type),
		Name:       n.Name,
		Characters: n.Characters,
		X:          n.X,
		Y:          n.Y,
		Width:      n.Width,
		Height:     n.Height,
		Mixed:      n.MixedFont,
	}
	if !n.Font.IsZero() {
		out.FontName = &api.FontName{Family: n.Font.Family, Style: n.Font.Style}
	}
	for _, f := range n.RangeFonts {
		out.RangeFonts = append(out.RangeFonts, api.FontName{Family: f.Family, Style: f.Style})
	}
	for _, c := range n.Children {
		out.Children = append(out.Children, toNode(c))
	}
	return out
}

// EncodeJSON renders scene as indented JSON.
func EncodeJSON(scene *graph.MemoryScene) ([]byte, error) {
	data, err := json.MarshalIndent(ToDocument(scene), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return append(data, '\n'), nil
}

// SaveJSON writes scene to name on fsys atomically and clears its dirty set.
func SaveJSON(fsys billy.Filesystem, name string, scene *graph.MemoryScene) error {
	data, err := EncodeJSON(scene)
	if err != nil {
		return err
	}
	if err := WriteFileAtomic(fsys, name, data); err != nil {
		return err
	}
	scene.ClearDirty()
	return nil
}
