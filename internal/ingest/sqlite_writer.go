package ingest

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/agentic-research/pricetag/internal/graph"
	_ "modernc.org/sqlite"
)

// SQLiteWriter bulk-loads document nodes into the graph.SQLiteSchema layout.
type SQLiteWriter struct {
	db        *sql.DB
	tx        *sql.Tx
	stmtNode  *sql.Stmt
	stmtMeta  *sql.Stmt
	batchSize int
	count     int
	ord       int
	written   int
	mu        sync.Mutex
	logger    *slog.Logger
}

// NewSQLiteWriter creates a new writer and initializes the schema.
func NewSQLiteWriter(dbPath string, logger *slog.Logger) (*SQLiteWriter, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// Performance tuning for bulk insert
	if _, err := db.Exec("PRAGMA synchronous = OFF"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode = MEMORY"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(graph.SQLiteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	w := &SQLiteWriter{
		db:        db,
		batchSize: 10000,
		logger:    logger,
	}
	if err := w.beginTx(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return w, nil
}

func (w *SQLiteWriter) beginTx() error {
	var err error
	w.tx, err = w.db.Begin()
	if err != nil {
		return err
	}
	w.stmtNode, err = w.tx.Prepare(`
		INSERT OR REPLACE INTO nodes (id, parent_id, ord, type, name, characters,
			x, y, width, height, font_family, font_style, mixed_font, range_fonts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	w.stmtMeta, err = w.tx.Prepare(`INSERT OR REPLACE INTO document (key, value) VALUES (?, ?)`)
	return err
}

func (w *SQLiteWriter) commitTx() error {
	if w.stmtNode != nil {
		_ = w.stmtNode.Close()
	}
	if w.stmtMeta != nil {
		_ = w.stmtMeta.Close()
	}
	return w.tx.Commit()
}

// AddNode writes n (not its children). Nodes must be added parents first;
// a nil parent marks a page.
func (w *SQLiteWriter) AddNode(n *graph.Node, parent *graph.Node) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var parentID *string
	if parent != nil {
		parentID = &parent.ID
	}
	rangeFonts, err := graph.EncodeRangeFonts(n.RangeFonts)
	if err != nil {
		return fmt.Errorf("encode range fonts of %s: %w", n.ID, err)
	}

	_, err = w.stmtNode.Exec(
		n.ID, parentID, w.ord, string(n.Type), n.Name, n.Characters,
		n.X, n.Y, n.Width, n.Height,
		n.Font.Family, n.Font.Style, graph.BoolInt(n.MixedFont), rangeFonts,
	)
	if err != nil {
		return fmt.Errorf("insert %s: %w", n.ID, err)
	}
	w.ord++
	w.written++

	w.count++
	if w.count >= w.batchSize {
		if err := w.commitTx(); err != nil {
			return fmt.Errorf("commit batch: %w", err)
		}
		if err := w.beginTx(); err != nil {
			return fmt.Errorf("begin batch: %w", err)
		}
		w.count = 0
	}
	return nil
}

// AddTree writes root and all of its descendants in depth-first order.
func (w *SQLiteWriter) AddTree(root, parent *graph.Node) error {
	if err := w.AddNode(root, parent); err != nil {
		return err
	}
	for _, c := range root.Children {
		if err := w.AddTree(c, root); err != nil {
			return err
		}
	}
	return nil
}

// SetMeta records a document-level key.
func (w *SQLiteWriter) SetMeta(key, value string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.stmtMeta.Exec(key, value); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Close commits pending rows and closes the database.
func (w *SQLiteWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.commitTx(); err != nil {
		_ = w.db.Close()
		return err
	}
	w.logger.Info("document written", "nodes", w.written)
	return w.db.Close()
}

// WriteScene stores every page of scene plus its name, current page and
// selection. Returns the number of nodes written.
func WriteScene(dbPath string, scene *graph.MemoryScene, logger *slog.Logger) (int, error) {
	w, err := NewSQLiteWriter(dbPath, logger)
	if err != nil {
		return 0, err
	}
	fail := func(err error) (int, error) {
		_ = w.Close()
		return 0, err
	}
	for _, p := range scene.Pages() {
		if err := w.AddTree(p, nil); err != nil {
			return fail(err)
		}
	}
	if name := scene.Name(); name != "" {
		if err := w.SetMeta(graph.MetaName, name); err != nil {
			return fail(err)
		}
	}
	if cur := scene.CurrentPage(); cur != nil {
		if err := w.SetMeta(graph.MetaCurrentPage, cur.ID); err != nil {
			return fail(err)
		}
	}
	if sel := scene.Selection(); len(sel) > 0 {
		ids := make([]string, len(sel))
		for i, n := range sel {
			ids[i] = n.ID
		}
		raw, err := json.Marshal(ids)
		if err != nil {
			return fail(err)
		}
		if err := w.SetMeta(graph.MetaSelection, string(raw)); err != nil {
			return fail(err)
		}
	}
	n := w.written
	if err := w.Close(); err != nil {
		return 0, err
	}
	return n, nil
}
