// Package render rasterizes scene subtrees to PNG.
//
// Node positions are relative to their parent. The export root is placed at
// the image origin; text is drawn with the embedded Go Regular face.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"github.com/agentic-research/pricetag/internal/graph"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

var (
	ErrBadScale = errors.New("scale must be positive")
	ErrTooLarge = errors.New("export exceeds pixel budget")
)

const (
	defaultMaxPixels = 1 << 26
	defaultTextSize  = 12
)

// Rasterizer implements graph.Rasterizer.
type Rasterizer struct {
	Background color.Color
	Ink        color.Color
	ShapeFill  color.Color
	MaxPixels  int // zero or negative selects the default budget

	font *opentype.Font
}

// New returns a Rasterizer with a white background and black text.
func New() (*Rasterizer, error) {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse embedded font: %w", err)
	}
	return &Rasterizer{
		Background: color.White,
		Ink:        color.Black,
		ShapeFill:  color.RGBA{R: 0xe6, G: 0xe6, B: 0xe6, A: 0xff},
		MaxPixels:  defaultMaxPixels,
		font:       f,
	}, nil
}

// Rasterize implements graph.Rasterizer.
func (r *Rasterizer) Rasterize(ctx context.Context, root *graph.Node, scale float64) ([]byte, error) {
	if scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return nil, fmt.Errorf("%w: %v", ErrBadScale, scale)
	}
	pw, ph, err := r.canvasSize(root, scale)
	if err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, pw, ph))
	draw.Draw(img, img.Bounds(), image.NewUniform(r.Background), image.Point{}, draw.Src)

	faces := &faceCache{font: r.font, faces: map[float64]font.Face{}}
	defer faces.close()

	p := painter{r: r, img: img, scale: scale, faces: faces}
	for _, c := range root.Children {
		if err := p.paint(ctx, c, 0, 0); err != nil {
			return nil, err
		}
	}
	if graph.IsText(root) {
		if err := p.text(root, 0, 0); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// canvasSize converts the scaled extent of root to pixels. The budget is
// checked in float64 so huge or non-finite sizes never reach int conversion.
func (r *Rasterizer) canvasSize(root *graph.Node, scale float64) (int, int, error) {
	w, h := Extent(root)
	fw, fh := math.Ceil(w*scale), math.Ceil(h*scale)
	if !finite(fw) || !finite(fh) {
		return 0, 0, fmt.Errorf("%w: non-finite size %vx%v", ErrTooLarge, w, h)
	}
	limit := r.MaxPixels
	if limit <= 0 {
		limit = defaultMaxPixels
	}
	if fw > math.MaxInt32 || fh > math.MaxInt32 || fw*fh > float64(limit) {
		return 0, 0, fmt.Errorf("%w: %.0fx%.0f", ErrTooLarge, fw, fh)
	}
	return max(int(fw), 1), max(int(fh), 1), nil
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

// Extent returns the unscaled size of n. When n has no size of its own the
// bounding box of its descendants is used, with a floor of one unit.
func Extent(n *graph.Node) (w, h float64) {
	if n.Width > 0 && n.Height > 0 {
		return n.Width, n.Height
	}
	var walk func(p *graph.Node, ox, oy float64)
	walk = func(p *graph.Node, ox, oy float64) {
		for _, c := range p.Children {
			x, y := ox+c.X, oy+c.Y
			w = math.Max(w, x+c.Width)
			h = math.Max(h, y+c.Height)
			walk(c, x, y)
		}
	}
	walk(n, 0, 0)
	return math.Max(w, 1), math.Max(h, 1)
}

type painter struct {
	r     *Rasterizer
	img   *image.RGBA
	scale float64
	faces *faceCache
}

func (p *painter) paint(ctx context.Context, n *graph.Node, ox, oy float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	x, y := ox+n.X, oy+n.Y
	switch n.Type {
	case graph.TypeRectangle:
		rect := image.Rect(
			int(x*p.scale), int(y*p.scale),
			int(math.Ceil((x+n.Width)*p.scale)), int(math.Ceil((y+n.Height)*p.scale)),
		)
		draw.Draw(p.img, rect.Intersect(p.img.Bounds()), image.NewUniform(p.r.ShapeFill), image.Point{}, draw.Over)
	case graph.TypeText:
		if err := p.text(n, x, y); err != nil {
			return err
		}
	}
	for _, c := range n.Children {
		if err := p.paint(ctx, c, x, y); err != nil {
			return err
		}
	}
	return nil
}

func (p *painter) text(n *graph.Node, x, y float64) error {
	if n.Characters == "" {
		return nil
	}
	size := defaultTextSize * p.scale
	if n.Height > 0 {
		size = n.Height * 0.75 * p.scale
	}
	face, err := p.faces.get(math.Max(size, 1))
	if err != nil {
		return err
	}
	ascent := face.Metrics().Ascent
	d := &font.Drawer{
		Dst:  p.img,
		Src:  image.NewUniform(p.r.Ink),
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.Int26_6(x * p.scale * 64),
			Y: fixed.Int26_6(y*p.scale*64) + ascent,
		},
	}
	d.DrawString(n.Characters)
	return nil
}

type faceCache struct {
	font  *opentype.Font
	faces map[float64]font.Face
}

func (c *faceCache) get(size float64) (font.Face, error) {
	size = math.Round(size*4) / 4
	if f, ok := c.faces[size]; ok {
		return f, nil
	}
	f, err := opentype.NewFace(c.font, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("face at %vpt: %w", size, err)
	}
	c.faces[size] = f
	return f, nil
}

func (c *faceCache) close() {
	for _, f := range c.faces {
		_ = f.Close()
	}
}

var _ graph.Rasterizer = (*Rasterizer)(nil)
