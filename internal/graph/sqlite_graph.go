package graph

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"
)

// SQLiteSchema is the table layout of a document database.
// Nodes are stored in depth-first order (ord) so parents precede children.
const SQLiteSchema = `
	CREATE TABLE IF NOT EXISTS nodes (
		id TEXT PRIMARY KEY,
		parent_id TEXT,
		ord INTEGER NOT NULL,
		type TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		characters TEXT NOT NULL DEFAULT '',
		x REAL NOT NULL DEFAULT 0,
		y REAL NOT NULL DEFAULT 0,
		width REAL NOT NULL DEFAULT 0,
		height REAL NOT NULL DEFAULT 0,
		font_family TEXT NOT NULL DEFAULT '',
		font_style TEXT NOT NULL DEFAULT '',
		mixed_font INTEGER NOT NULL DEFAULT 0,
		range_fonts JSON
	);
	CREATE INDEX IF NOT EXISTS idx_parent_ord ON nodes(parent_id, ord);

	CREATE TABLE IF NOT EXISTS document (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
`

// Document metadata keys.
const (
	MetaCurrentPage = "current_page"
	MetaSelection   = "selection"
	MetaName        = "name"
)

// SQLiteStore reads a document database into a MemoryScene and writes
// mutated text nodes back.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	logger *slog.Logger
}

// OpenSQLiteStore opens (creating if needed) a document database.
func OpenSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(SQLiteSchema); err != nil {
		_ = db.Close() // ignore error
		return nil, fmt.Errorf("create schema: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{db: db, dbPath: dbPath, logger: logger}, nil
}

// Load rebuilds the whole document as a MemoryScene.
func (s *SQLiteStore) Load() (*MemoryScene, error) {
	rows, err := s.db.Query(`
		SELECT id, parent_id, type, name, characters, x, y, width, height,
		       font_family, font_style, mixed_font, range_fonts
		FROM nodes ORDER BY ord`)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	byID := make(map[string]*Node)
	var pages []*Node
	for rows.Next() {
		var (
			n          Node
			parentID   sql.NullString
			typ        string
			mixed      int
			rangeFonts sql.NullString
		)
		if err := rows.Scan(&n.ID, &parentID, &typ, &n.Name, &n.Characters,
			&n.X, &n.Y, &n.Width, &n.Height,
			&n.Font.Family, &n.Font.Style, &mixed, &rangeFonts); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		n.Type = NodeType(typ)
		n.MixedFont = mixed != 0
		if rangeFonts.Valid && rangeFonts.String != "" {
			if err := json.Unmarshal([]byte(rangeFonts.String), &n.RangeFonts); err != nil {
				return nil, fmt.Errorf("parse range fonts of %s: %w", n.ID, err)
			}
		}
		node := &n
		byID[n.ID] = node
		if !parentID.Valid {
			pages = append(pages, node)
			continue
		}
		parent, ok := byID[parentID.String]
		if !ok {
			s.logger.Warn("orphan node skipped", "id", n.ID, "parent", parentID.String)
			continue
		}
		parent.AppendChild(node)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}

	scene := NewMemoryScene()
	for _, p := range pages {
		scene.AddPage(p)
	}

	meta, err := s.meta()
	if err != nil {
		return nil, err
	}
	scene.SetName(meta[MetaName])
	if id := meta[MetaCurrentPage]; id != "" {
		if err := scene.SetCurrentPage(id); err != nil {
			return nil, err
		}
	}
	if raw := meta[MetaSelection]; raw != "" {
		var ids []string
		if err := json.Unmarshal([]byte(raw), &ids); err != nil {
			return nil, fmt.Errorf("parse selection: %w", err)
		}
		if err := scene.Select(ids...); err != nil {
			s.logger.Warn("stale selection ignored", "error", err)
		}
	}
	return scene, nil
}

func (s *SQLiteStore) meta() (map[string]string, error) {
	rows, err := s.db.Query("SELECT key, value FROM document")
	if err != nil {
		return nil, fmt.Errorf("query document: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// Flush writes the characters and font of every dirty node, then clears the
// dirty set. Returns the number of rows updated.
func (s *SQLiteStore) Flush(scene *MemoryScene) (int, error) {
	dirty := scene.Dirty()
	if len(dirty) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin flush: %w", err)
	}
	defer func() { _ = tx.Rollback() }() // safe to ignore (no-op if committed)

	stmt, err := tx.Prepare(`
		UPDATE nodes
		SET characters = ?, font_family = ?, font_style = ?, mixed_font = ?, range_fonts = ?
		WHERE id = ?`)
	if err != nil {
		return 0, fmt.Errorf("prepare update: %w", err)
	}
	defer func() { _ = stmt.Close() }() // safe to ignore

	count := 0
	for _, n := range dirty {
		rangeFonts, err := EncodeRangeFonts(n.RangeFonts)
		if err != nil {
			return 0, err
		}
		res, err := stmt.Exec(n.Characters, n.Font.Family, n.Font.Style, BoolInt(n.MixedFont), rangeFonts, n.ID)
		if err != nil {
			return 0, fmt.Errorf("update %s: %w", n.ID, err)
		}
		if affected, _ := res.RowsAffected(); affected > 0 {
			count++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit flush: %w", err)
	}
	scene.ClearDirty()
	s.logger.Info("flushed dirty nodes", "db", s.dbPath, "rows", count)
	return count, nil
}

// DB exposes the underlying handle for writers sharing the same file.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

func (s *SQLiteStore) Close() error { return s.db.Close() }

// EncodeRangeFonts renders range fonts for the range_fonts column (NULL when empty).
func EncodeRangeFonts(fonts []FontName) (any, error) {
	if len(fonts) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(fonts)
	if err != nil {
		return nil, fmt.Errorf("encode range fonts: %w", err)
	}
	return string(b), nil
}

// BoolInt renders a flag for integer columns.
func BoolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
