package export

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/agentic-research/pricetag/internal/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRasterizer struct {
	calls []string
	scale float64
	err   error
}

func (r *stubRasterizer) Rasterize(_ context.Context, root *graph.Node, scale float64) ([]byte, error) {
	r.calls = append(r.calls, root.ID)
	r.scale = scale
	if r.err != nil {
		return nil, r.err
	}
	return []byte("png:" + root.ID), nil
}

func textNode(id string) *graph.Node {
	return &graph.Node{ID: id, Type: graph.TypeText}
}

// frames builds a page with three containers: a frame with one text, a group
// with two texts, and a frame with two texts.
func frames() (*graph.MemoryScene, *stubRasterizer) {
	page := &graph.Node{ID: "page"}
	one := &graph.Node{ID: "one", Type: graph.TypeFrame}
	one.AppendChild(textNode("t1"))
	group := &graph.Node{ID: "group", Type: graph.TypeGroup}
	group.AppendChild(textNode("t2"))
	group.AppendChild(textNode("t3"))
	two := &graph.Node{ID: "two", Type: graph.TypeFrame}
	two.AppendChild(textNode("t4"))
	two.AppendChild(textNode("t5"))
	page.AppendChild(one)
	page.AppendChild(group)
	page.AppendChild(two)
	page.AppendChild(textNode("loose"))

	s := graph.NewMemoryScene()
	s.AddPage(page)
	r := &stubRasterizer{}
	s.SetRasterizer(r)
	return s, r
}

func TestBestFrame_MostTextsFirstWins(t *testing.T) {
	s, _ := frames()
	best := BestFrame(s)
	require.NotNil(t, best)
	assert.Equal(t, "group", best.ID)
}

func TestBestFrame_CountsNestedTexts(t *testing.T) {
	page := &graph.Node{ID: "page"}
	outer := &graph.Node{ID: "outer", Type: graph.TypeFrame}
	inner := &graph.Node{ID: "inner", Type: graph.TypeGroup}
	inner.AppendChild(textNode("a"))
	inner.AppendChild(textNode("b"))
	outer.AppendChild(inner)
	outer.AppendChild(textNode("c"))
	page.AppendChild(outer)
	s := graph.NewMemoryScene()
	s.AddPage(page)

	assert.Equal(t, "outer", BestFrame(s).ID)
}

func TestBestFrame_EmptyFrameStillQualifies(t *testing.T) {
	page := &graph.Node{ID: "page"}
	page.AppendChild(&graph.Node{ID: "empty", Type: graph.TypeFrame})
	s := graph.NewMemoryScene()
	s.AddPage(page)

	assert.Equal(t, "empty", BestFrame(s).ID)
}

func TestTarget_SelectionFirst(t *testing.T) {
	s, _ := frames()
	require.NoError(t, s.Select("t5", "one"))

	n, err := Target(s)
	require.NoError(t, err)
	assert.Equal(t, "t5", n.ID)
}

func TestTarget_NothingToExport(t *testing.T) {
	page := &graph.Node{ID: "page"}
	page.AppendChild(textNode("loose"))
	s := graph.NewMemoryScene()
	s.AddPage(page)

	_, err := Target(s)
	assert.ErrorIs(t, err, ErrNothingToExport)
}

func TestExporter_Export(t *testing.T) {
	s, r := frames()
	e := &Exporter{}

	res, err := e.Export(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, "group", res.Node.ID)
	assert.Equal(t, []byte("png:group"), res.PNG)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("png:group")), res.Base64)
	assert.Equal(t, []string{"group"}, r.calls)
	assert.Equal(t, float64(DefaultScale), r.scale)
}

func TestExporter_CustomScale(t *testing.T) {
	s, r := frames()
	_, err := (&Exporter{Scale: 3}).Export(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, 3.0, r.scale)
}

func TestExporter_RasterizeError(t *testing.T) {
	s, r := frames()
	r.err = errors.New("boom")

	_, err := (&Exporter{}).Export(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestExporter_NoRasterizer(t *testing.T) {
	page := &graph.Node{ID: "page"}
	page.AppendChild(&graph.Node{ID: "f", Type: graph.TypeFrame})
	s := graph.NewMemoryScene()
	s.AddPage(page)

	_, err := (&Exporter{}).Export(context.Background(), s)
	assert.ErrorIs(t, err, graph.ErrNoRasterizer)
}
