package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/agentic-research/pricetag/internal/config"
	"github.com/agentic-research/pricetag/internal/export"
	"github.com/agentic-research/pricetag/internal/graph"
	"github.com/agentic-research/pricetag/internal/ingest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogDoc = `{
  "name": "Catalog",
  "document": {
    "id": "0:0",
    "type": "DOCUMENT",
    "children": [
      {"id": "0:1", "type": "PAGE", "name": "Page 1", "children": [
        {"id": "1:1", "type": "FRAME", "name": "Card", "x": 0, "y": 0, "width": 200, "height": 80, "children": [
          {"id": "1:2", "type": "TEXT", "characters": "Widget", "x": 8, "y": 8, "height": 16,
           "fontName": {"family": "Inter", "style": "Regular"}},
          {"id": "1:3", "type": "TEXT", "characters": "₹10", "x": 120, "y": 10, "height": 16,
           "fontName": {"family": "Inter", "style": "Bold"}}
        ]}
      ]}
    ]
  }
}`

const looseDoc = `{
  "document": {"id": "0:0", "type": "DOCUMENT", "children": [
    {"id": "0:1", "type": "PAGE", "children": [
      {"id": "1:2", "type": "TEXT", "characters": "Widget", "x": 0, "y": 0}
    ]}
  ]}
}`

// run executes the root command with fresh flag state from inside a temp
// working directory and returns stdout.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	configPath, docPath, logLevel = "", "", ""
	pricesPath, writeBack, outPath, serveMCP = "", false, "", false
	cfg = config.Default()

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	t.Logf("stderr:\n%s", errOut.String())
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func priceOf(t *testing.T, docFile, id string) string {
	t.Helper()
	src, err := ingest.NewEngine("", nil).Open(docFile)
	require.NoError(t, err)
	defer func() { _ = src.Close() }()
	n, err := src.Scene.GetNode(id)
	require.NoError(t, err)
	return n.Characters
}

func TestUpdate_DryRun(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	doc := writeFile(t, dir, "doc.json", catalogDoc)
	prices := writeFile(t, dir, "prices.json", `{"Widget": 99, "Gadget": "5"}`)

	out, err := run(t, "", "update", "--doc", doc, "--prices", prices)
	require.NoError(t, err)
	assert.Contains(t, out, "Updated 1 price label(s).")
	assert.Contains(t, out, "Not found: Gadget")
	assert.Contains(t, out, "Widget → 1:3 (sibling)")

	assert.Equal(t, "₹10", priceOf(t, doc, "1:3"), "document untouched without --write")
}

func TestUpdate_WriteJSON(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	doc := writeFile(t, dir, "doc.json", catalogDoc)
	prices := writeFile(t, dir, "prices.yaml", "Widget: 12.5\n")

	out, err := run(t, "", "update", "--doc", doc, "--prices", prices, "--write")
	require.NoError(t, err)
	assert.Contains(t, out, "Saved 1 node(s)")
	assert.Equal(t, "₹12.5", priceOf(t, doc, "1:3"))
}

func TestUpdate_PricesFromStdin(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	doc := writeFile(t, dir, "doc.json", catalogDoc)

	out, err := run(t, `{"widget": "7"}`, "update", "--doc", doc, "--prices", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "Updated 1 price label(s).")
}

func TestUpdate_ConfigCurrency(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	doc := writeFile(t, dir, "doc.json", catalogDoc)
	prices := writeFile(t, dir, "prices.json", `{"Widget": "3"}`)
	writeFile(t, dir, config.DefaultFile, "currency = \"$\"\n")

	_, err := run(t, "", "update", "--doc", doc, "--prices", prices, "--write")
	require.NoError(t, err)
	assert.Equal(t, "$3", priceOf(t, doc, "1:3"))
}

func TestUpdate_FontMissingFromCatalog(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	doc := writeFile(t, dir, "doc.json", catalogDoc)
	prices := writeFile(t, dir, "prices.json", `{"Widget": "3"}`)
	cfgFile := writeFile(t, dir, "strict.hcl", `installed_fonts = ["Inter/Regular"]`+"\n")

	out, err := run(t, "", "--config", cfgFile, "update", "--doc", doc, "--prices", prices, "--write")
	require.NoError(t, err)
	assert.Contains(t, out, "Updated 1 price label(s).", "fallback font rescues the write")

	src, err := ingest.NewEngine("", nil).Open(doc)
	require.NoError(t, err)
	n, err := src.Scene.GetNode("1:3")
	require.NoError(t, err)
	assert.Equal(t, "₹3", n.Characters)
	assert.Equal(t, graph.FontName{Family: "Inter", Style: "Regular"}, n.Font)
}

func TestUpdate_Errors(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	doc := writeFile(t, dir, "doc.json", catalogDoc)
	prices := writeFile(t, dir, "prices.json", `{"Widget": "3"}`)

	_, err := run(t, "", "update", "--prices", prices)
	assert.ErrorContains(t, err, "--doc is required")

	_, err = run(t, "", "update", "--doc", doc, "--prices", filepath.Join(dir, "missing.json"))
	assert.ErrorContains(t, err, "read prices")

	_, err = run(t, "", "--config", filepath.Join(dir, "missing.hcl"), "update", "--doc", doc, "--prices", prices)
	assert.ErrorContains(t, err, "read config")
}

func TestBuild_ThenUpdateSQLite(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	doc := writeFile(t, dir, "doc.json", catalogDoc)
	db := filepath.Join(dir, "doc.db")
	prices := writeFile(t, dir, "prices.json", `{"Widget": "42"}`)

	out, err := run(t, "", "build", doc, db)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 4 nodes")

	_, err = run(t, "", "update", "--doc", db, "--prices", prices, "--write")
	require.NoError(t, err)
	assert.Equal(t, "₹42", priceOf(t, db, "1:3"))
	assert.Equal(t, "₹10", priceOf(t, doc, "1:3"), "source JSON is not touched")
}

func TestExport_ToFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	doc := writeFile(t, dir, "doc.json", catalogDoc)
	png := filepath.Join(dir, "card.png")

	out, err := run(t, "", "export", "--doc", doc, "--out", png)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported 1:1")

	data, err := os.ReadFile(png)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")))
}

func TestExport_Base64(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	doc := writeFile(t, dir, "doc.json", catalogDoc)

	out, err := run(t, "", "export", "--doc", doc)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "iVBORw0KGgo"), "base64 PNG signature")
}

func TestExport_NothingToExport(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	doc := writeFile(t, dir, "doc.json", looseDoc)

	_, err := run(t, "", "export", "--doc", doc)
	assert.EqualError(t, err, export.NothingToExportText)
}

func TestServe_JSONLines(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	doc := writeFile(t, dir, "doc.json", catalogDoc)

	stdin := strings.Join([]string{
		`{"type": "ping"}`,
		`{"type": "update-prices", "data": {"Widget": "8"}}`,
		`{"type": "close"}`,
	}, "\n") + "\n"
	out, err := run(t, stdin, "serve", "--doc", doc, "--write")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, []string{
		`{"type":"pong"}`,
		`{"type":"status","text":"Updating prices..."}`,
		`{"type":"update-complete","updates":1,"notFound":[]}`,
	}, lines)
	assert.Equal(t, "₹8", priceOf(t, doc, "1:3"))
}
