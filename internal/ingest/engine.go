package ingest

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/agentic-research/pricetag/internal/graph"
	"github.com/agentic-research/pricetag/internal/writeback"
	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

// Source is an opened document and the storage it came from.
type Source struct {
	Path  string
	Scene *graph.MemoryScene

	fs    billy.Filesystem   // JSON documents
	name  string             // path within fs
	store *graph.SQLiteStore // .db documents
}

// Save persists every node mutated since the document was opened and
// returns how many nodes were dirty.
func (s *Source) Save() (int, error) {
	n := len(s.Scene.Dirty())
	if s.store != nil {
		return s.store.Flush(s.Scene)
	}
	if n == 0 {
		return 0, nil
	}
	if err := writeback.SaveJSON(s.fs, s.name, s.Scene); err != nil {
		return 0, err
	}
	return n, nil
}

// Close releases the underlying store, if any.
func (s *Source) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// Engine opens documents by extension: .db files through graph.SQLiteStore,
// anything else as JSON.
type Engine struct {
	Decoder *Decoder
	Logger  *slog.Logger
}

func NewEngine(pagesSelector string, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		Decoder: NewDecoder(pagesSelector, logger),
		Logger:  logger,
	}
}

// Open loads the document at path.
func (e *Engine) Open(path string) (*Source, error) {
	if strings.EqualFold(filepath.Ext(path), ".db") {
		return e.openSQLite(path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return e.OpenFS(osfs.New(filepath.Dir(abs)), filepath.Base(abs))
}

// OpenFS loads a JSON document from fsys.
func (e *Engine) OpenFS(fsys billy.Filesystem, name string) (*Source, error) {
	data, err := util.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	scene, err := e.Decoder.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	e.Logger.Info("document opened", "path", name, "pages", len(scene.Pages()))
	return &Source{Path: name, Scene: scene, fs: fsys, name: name}, nil
}

func (e *Engine) openSQLite(path string) (*Source, error) {
	store, err := graph.OpenSQLiteStore(path, e.Logger)
	if err != nil {
		return nil, err
	}
	scene, err := store.Load()
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(scene.Pages()) == 0 {
		_ = store.Close()
		return nil, fmt.Errorf("%s: %w", path, ErrNoPages)
	}
	e.Logger.Info("document opened", "path", path, "pages", len(scene.Pages()))
	return &Source{Path: path, Scene: scene, store: store}, nil
}

// Build converts the JSON document at src into a SQLite document at dst.
func (e *Engine) Build(src, dst string) (int, error) {
	s, err := e.Open(src)
	if err != nil {
		return 0, err
	}
	defer func() { _ = s.Close() }()
	return WriteScene(dst, s.Scene, e.Logger)
}
