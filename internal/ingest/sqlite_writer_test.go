package ingest

import (
	"path/filepath"
	"testing"

	"github.com/agentic-research/pricetag/internal/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteScene_RoundTrip(t *testing.T) {
	src, err := NewDecoder("", nil).Decode([]byte(pluginDoc))
	require.NoError(t, err)

	dbPath := filepath.Join(t.TempDir(), "doc.db")
	n, err := WriteScene(dbPath, src, nil)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	store, err := graph.OpenSQLiteStore(dbPath, nil)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "Catalog", got.Name())
	require.Len(t, got.Pages(), 2)
	assert.Equal(t, "0:2", got.CurrentPage().ID)
	require.Len(t, got.Selection(), 1)
	assert.Equal(t, "2:1", got.Selection()[0].ID)

	want := src.PageNodes()
	have := got.PageNodes()
	require.Len(t, have, len(want))
	for i := range want {
		assert.Equal(t, want[i].ID, have[i].ID)
		assert.Equal(t, want[i].Characters, have[i].Characters)
		assert.Equal(t, want[i].X, have[i].X)
		assert.Equal(t, want[i].Y, have[i].Y)
		assert.Equal(t, want[i].Font, have[i].Font)
		assert.Equal(t, want[i].MixedFont, have[i].MixedFont)
		assert.Equal(t, want[i].RangeFonts, have[i].RangeFonts)
		assert.Equal(t, want[i].Parent.ID, have[i].Parent.ID)
	}
}

func TestSQLiteWriter_CommitsInBatches(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "batch.db")
	w, err := NewSQLiteWriter(dbPath, nil)
	require.NoError(t, err)
	w.batchSize = 2

	page := &graph.Node{ID: "p", Type: graph.TypePage}
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		page.AppendChild(&graph.Node{ID: id, Type: graph.TypeText, Characters: id})
	}
	require.NoError(t, w.AddTree(page, nil))
	require.NoError(t, w.Close())

	store, err := graph.OpenSQLiteStore(dbPath, nil)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	var count int
	require.NoError(t, store.DB().QueryRow("SELECT COUNT(*) FROM nodes").Scan(&count))
	assert.Equal(t, 6, count)

	s, err := store.Load()
	require.NoError(t, err)
	texts := s.PageNodes(graph.TypeText)
	require.Len(t, texts, 5)
	assert.Equal(t, "a", texts[0].ID)
	assert.Equal(t, "e", texts[4].ID)
}
