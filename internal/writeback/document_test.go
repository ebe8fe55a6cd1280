package writeback

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/agentic-research/pricetag/api"
	"github.com/agentic-research/pricetag/internal/graph"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var inter = graph.FontName{Family: "Inter", Style: "Regular"}

func testScene(t *testing.T) (*graph.MemoryScene, *graph.Node) {
	t.Helper()
	page := &graph.Node{ID: "0:1", Name: "Page 1"}
	card := &graph.Node{ID: "1:1", Type: graph.TypeFrame, Name: "Card", X: 10, Y: 20, Width: 100, Height: 50}
	price := &graph.Node{ID: "1:3", Type: graph.TypeText, Characters: "₹10", X: 50, Y: 2, Font: inter}
	card.AppendChild(&graph.Node{ID: "1:2", Type: graph.TypeText, Characters: "Widget", Font: inter})
	card.AppendChild(price)
	mixed := &graph.Node{ID: "1:4", Type: graph.TypeText, Characters: "Promo", MixedFont: true,
		RangeFonts: []graph.FontName{inter, {Family: "Inter", Style: "Bold"}}}
	page.AppendChild(card)
	page.AppendChild(mixed)

	s := graph.NewMemoryScene()
	s.SetName("Catalog")
	s.AddPage(page)
	s.AddPage(&graph.Node{ID: "0:2", Name: "Archive"})
	require.NoError(t, s.Select("1:1"))
	return s, price
}

func TestToDocument(t *testing.T) {
	s, _ := testScene(t)
	doc := ToDocument(s)

	assert.Equal(t, "Catalog", doc.Name)
	assert.Equal(t, "0:1", doc.CurrentPage)
	assert.Equal(t, []string{"1:1"}, doc.Selection)
	assert.Equal(t, "DOCUMENT", doc.Document.Type)
	require.Len(t, doc.Document.Children, 2)

	page := doc.Document.Children[0]
	assert.Equal(t, "PAGE", page.Type)
	require.Len(t, page.Children, 2)
	card := page.Children[0]
	assert.Equal(t, 10.0, card.X)
	assert.Nil(t, card.FontName)
	require.Len(t, card.Children, 2)
	assert.Equal(t, &api.FontName{Family: "Inter", Style: "Regular"}, card.Children[1].FontName)

	mixed := page.Children[1]
	assert.True(t, mixed.Mixed)
	assert.Len(t, mixed.RangeFonts, 2)
}

func TestSaveJSON_WritesAndClearsDirty(t *testing.T) {
	s, price := testScene(t)
	s.InstallFonts(inter)
	require.NoError(t, s.LoadFont(t.Context(), inter))
	require.NoError(t, s.SetCharacters(price, "₹99"))
	require.Len(t, s.Dirty(), 1)

	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "doc.json", []byte("{}"), 0o640))
	require.NoError(t, SaveJSON(fs, "doc.json", s))
	assert.Empty(t, s.Dirty())

	raw, err := util.ReadFile(fs, "doc.json")
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"characters": "₹99"`)

	var doc api.Document
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "₹99", doc.Document.Children[0].Children[0].Children[1].Characters)
}

func TestWriteFileAtomic_ReplacesWithoutLeftovers(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, fs.MkdirAll("docs", 0o755))
	require.NoError(t, util.WriteFile(fs, "docs/doc.json", []byte("old"), 0o600))

	require.NoError(t, WriteFileAtomic(fs, "docs/doc.json", []byte("new")))

	got, err := util.ReadFile(fs, "docs/doc.json")
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))

	entries, err := fs.ReadDir("docs")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "doc.json", entries[0].Name())
	assert.Equal(t, os.FileMode(0o600), entries[0].Mode().Perm())
}

func TestWriteFileAtomic_CreatesNewFile(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, WriteFileAtomic(fs, "fresh.json", []byte("{}")))

	got, err := util.ReadFile(fs, "fresh.json")
	require.NoError(t, err)
	assert.Equal(t, "{}", string(got))
}
