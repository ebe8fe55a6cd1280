package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/RoaringBitmap/roaring"
)

var (
	ErrNotFound        = errors.New("node not found")
	ErrNotText         = errors.New("node is not a text node")
	ErrFontNotLoaded   = errors.New("font not loaded")
	ErrFontUnavailable = errors.New("font unavailable")
	ErrNoRasterizer    = errors.New("no rasterizer configured")
)

// NodeType is the host's type tag for a scene node.
type NodeType string

const (
	TypeDocument  NodeType = "DOCUMENT"
	TypePage      NodeType = "PAGE"
	TypeFrame     NodeType = "FRAME"
	TypeGroup     NodeType = "GROUP"
	TypeText      NodeType = "TEXT"
	TypeRectangle NodeType = "RECTANGLE"
)

// FontName identifies a font by family and style.
type FontName struct {
	Family string `json:"family"`
	Style  string `json:"style"`
}

// IsZero reports whether no font is assigned.
func (f FontName) IsZero() bool { return f.Family == "" && f.Style == "" }

func (f FontName) String() string { return f.Family + " " + f.Style }

// Node is one element of the host scene graph.
// Core packages borrow nodes for the duration of one operation and never
// mutate them directly: text and font changes go through Scene.
type Node struct {
	ID         string
	Type       NodeType
	Name       string
	Characters string
	X, Y       float64
	Width      float64
	Height     float64
	Font       FontName
	MixedFont  bool       // character ranges use more than one font
	RangeFonts []FontName // fonts used by the ranges when MixedFont is set
	Parent     *Node
	Children   []*Node
}

// IsText reports whether n is eligible as a match or price candidate.
func IsText(n *Node) bool { return n != nil && n.Type == TypeText }

// FindAll returns every descendant of n (not n itself) accepted by pred,
// in depth-first pre-order.
func (n *Node) FindAll(pred func(*Node) bool) []*Node {
	var out []*Node
	var walk func(*Node)
	walk = func(p *Node) {
		for _, c := range p.Children {
			if pred == nil || pred(c) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

// Page returns the page containing n, or nil when n is detached.
func (n *Node) Page() *Node {
	for p := n; p != nil; p = p.Parent {
		if p.Type == TypePage {
			return p
		}
	}
	return nil
}

// AppendChild links c under n.
func (n *Node) AppendChild(c *Node) {
	c.Parent = n
	n.Children = append(n.Children, c)
}

// Scene is the host capability surface consumed by the core.
type Scene interface {
	// CurrentPage returns the active page.
	CurrentPage() *Node
	// PageNodes returns the current page's descendants of the given types
	// in the host's enumeration order.
	PageNodes(types ...NodeType) []*Node
	// Selection returns the selected nodes on the current page.
	Selection() []*Node
	// LoadFont makes a font available for character mutation. May block.
	LoadFont(ctx context.Context, f FontName) error
	// SetFont assigns an already loaded font to a text node.
	SetFont(n *Node, f FontName) error
	// SetCharacters replaces the content of a text node. It fails when the
	// node's font has not been loaded.
	SetCharacters(n *Node, text string) error
	// Export renders n to PNG bytes at the given scale.
	Export(ctx context.Context, n *Node, scale float64) ([]byte, error)
}

// Rasterizer renders a node subtree to PNG bytes.
type Rasterizer interface {
	Rasterize(ctx context.Context, root *Node, scale float64) ([]byte, error)
}

// -----------------------------------------------------------------------------
// In-memory host
// -----------------------------------------------------------------------------

// MemoryScene is an in-memory Scene. Nodes get a sequential internal ID in
// depth-first order when their page is added, so iterating a roaring bitmap
// of internal IDs yields nodes in document order.
type MemoryScene struct {
	mu        sync.RWMutex
	name      string
	pages     []*Node
	current   *Node
	selection []*Node
	nodes     map[string]*Node

	nodeIntID   map[*Node]uint32
	intToNode   []*Node
	byType      map[NodeType]*roaring.Bitmap
	byPage      map[*Node]*roaring.Bitmap
	dirty       *roaring.Bitmap
	installed   map[FontName]bool
	loaded      map[FontName]bool
	rasterizer  Rasterizer
	loadHistory []FontName
}

func NewMemoryScene() *MemoryScene {
	return &MemoryScene{
		nodes:     make(map[string]*Node),
		nodeIntID: make(map[*Node]uint32),
		byType:    make(map[NodeType]*roaring.Bitmap),
		byPage:    make(map[*Node]*roaring.Bitmap),
		dirty:     roaring.New(),
		installed: make(map[FontName]bool),
		loaded:    make(map[FontName]bool),
	}
}

// AddPage registers a page and indexes its subtree. The first page added
// becomes the current page.
func (s *MemoryScene) AddPage(page *Node) {
	s.mu.Lock()
	defer s.mu.Unlock()

	page.Type = TypePage
	page.Parent = nil
	s.pages = append(s.pages, page)
	s.nodes[page.ID] = page
	if s.current == nil {
		s.current = page
	}

	bm := roaring.New()
	s.byPage[page] = bm
	var walk func(*Node)
	walk = func(p *Node) {
		for _, c := range p.Children {
			c.Parent = p
			s.indexNode(c, bm)
			walk(c)
		}
	}
	walk(page)
}

// indexNode assigns an internal ID and registers n in the type and page bitmaps.
// Must be called with s.mu held.
func (s *MemoryScene) indexNode(n *Node, page *roaring.Bitmap) {
	intID, ok := s.nodeIntID[n]
	if !ok {
		intID = uint32(len(s.intToNode))
		s.nodeIntID[n] = intID
		s.intToNode = append(s.intToNode, n)
	}
	s.nodes[n.ID] = n
	bm, exists := s.byType[n.Type]
	if !exists {
		bm = roaring.New()
		s.byType[n.Type] = bm
	}
	bm.Add(intID)
	page.Add(intID)
}

// SetName records the document name.
func (s *MemoryScene) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}

// Name returns the document name.
func (s *MemoryScene) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

// Pages returns all pages in insertion order.
func (s *MemoryScene) Pages() []*Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Node(nil), s.pages...)
}

// GetNode looks a node up by ID.
func (s *MemoryScene) GetNode(id string) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return n, nil
}

// SetCurrentPage switches the active page and clears the selection.
func (s *MemoryScene) SetCurrentPage(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.pages {
		if p.ID == id {
			s.current = p
			s.selection = nil
			return nil
		}
	}
	return fmt.Errorf("%w: page %s", ErrNotFound, id)
}

// Select replaces the selection. Every node must live on the current page.
func (s *MemoryScene) Select(ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sel := make([]*Node, 0, len(ids))
	for _, id := range ids {
		n, ok := s.nodes[id]
		if !ok || n.Page() != s.current || n == s.current {
			return fmt.Errorf("%w: %s on current page", ErrNotFound, id)
		}
		sel = append(sel, n)
	}
	s.selection = sel
	return nil
}

// InstallFonts adds fonts to the catalog LoadFont can satisfy.
func (s *MemoryScene) InstallFonts(fonts ...FontName) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range fonts {
		s.installed[f] = true
	}
}

// UsedFonts lists the distinct fonts referenced by text nodes on any page,
// including range fonts of mixed nodes, in document order.
func (s *MemoryScene) UsedFonts() []FontName {
	s.mu.RLock()
	defer s.mu.RUnlock()
	texts, ok := s.byType[TypeText]
	if !ok {
		return nil
	}
	seen := make(map[FontName]bool)
	var out []FontName
	add := func(f FontName) {
		if f.IsZero() || seen[f] {
			return
		}
		seen[f] = true
		out = append(out, f)
	}
	it := texts.Iterator()
	for it.HasNext() {
		n := s.intToNode[it.Next()]
		add(n.Font)
		for _, f := range n.RangeFonts {
			add(f)
		}
	}
	return out
}

// SetRasterizer configures the renderer used by Export.
func (s *MemoryScene) SetRasterizer(r Rasterizer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rasterizer = r
}

// CurrentPage implements Scene.
func (s *MemoryScene) CurrentPage() *Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// PageNodes implements Scene.
func (s *MemoryScene) PageNodes(types ...NodeType) []*Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	page := s.byPage[s.current]
	if page == nil {
		return nil
	}
	set := page
	if len(types) > 0 {
		want := roaring.New()
		for _, t := range types {
			if bm, ok := s.byType[t]; ok {
				want.Or(bm)
			}
		}
		set = roaring.And(page, want)
	}
	out := make([]*Node, 0, set.GetCardinality())
	it := set.Iterator()
	for it.HasNext() {
		out = append(out, s.intToNode[it.Next()])
	}
	return out
}

// Selection implements Scene.
func (s *MemoryScene) Selection() []*Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Node(nil), s.selection...)
}

// LoadFont implements Scene.
func (s *MemoryScene) LoadFont(ctx context.Context, f FontName) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadHistory = append(s.loadHistory, f)
	if !s.installed[f] {
		return fmt.Errorf("%w: %s", ErrFontUnavailable, f)
	}
	s.loaded[f] = true
	return nil
}

// FontLoads returns every font LoadFont was asked for, in call order.
func (s *MemoryScene) FontLoads() []FontName {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]FontName(nil), s.loadHistory...)
}

// SetFont implements Scene.
func (s *MemoryScene) SetFont(n *Node, f FontName) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !IsText(n) {
		return fmt.Errorf("%w: %s", ErrNotText, n.ID)
	}
	if !s.loaded[f] {
		return fmt.Errorf("%w: %s", ErrFontNotLoaded, f)
	}
	n.Font = f
	n.MixedFont = false
	n.RangeFonts = nil
	s.markDirty(n)
	return nil
}

// SetCharacters implements Scene.
func (s *MemoryScene) SetCharacters(n *Node, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !IsText(n) {
		return fmt.Errorf("%w: %s", ErrNotText, n.ID)
	}
	if err := s.checkFontsLoaded(n); err != nil {
		return err
	}
	n.Characters = text
	s.markDirty(n)
	return nil
}

// checkFontsLoaded must be called with s.mu held.
func (s *MemoryScene) checkFontsLoaded(n *Node) error {
	if n.MixedFont {
		if len(n.RangeFonts) == 0 {
			return fmt.Errorf("%w: mixed fonts on %s", ErrFontNotLoaded, n.ID)
		}
		for _, f := range n.RangeFonts {
			if !s.loaded[f] {
				return fmt.Errorf("%w: %s", ErrFontNotLoaded, f)
			}
		}
		return nil
	}
	if n.Font.IsZero() || !s.loaded[n.Font] {
		return fmt.Errorf("%w: %q on %s", ErrFontNotLoaded, n.Font.String(), n.ID)
	}
	return nil
}

// markDirty must be called with s.mu held.
func (s *MemoryScene) markDirty(n *Node) {
	if id, ok := s.nodeIntID[n]; ok {
		s.dirty.Add(id)
	}
}

// Dirty returns the nodes mutated since the last ClearDirty, in document order.
func (s *MemoryScene) Dirty() []*Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Node, 0, s.dirty.GetCardinality())
	it := s.dirty.Iterator()
	for it.HasNext() {
		out = append(out, s.intToNode[it.Next()])
	}
	return out
}

// ClearDirty forgets recorded mutations, typically after a flush.
func (s *MemoryScene) ClearDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty.Clear()
}

// Export implements Scene.
func (s *MemoryScene) Export(ctx context.Context, n *Node, scale float64) ([]byte, error) {
	s.mu.RLock()
	r := s.rasterizer
	s.mu.RUnlock()
	if r == nil {
		return nil, ErrNoRasterizer
	}
	return r.Rasterize(ctx, n, scale)
}

var _ Scene = (*MemoryScene)(nil)
