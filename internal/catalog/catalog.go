// Package catalog keeps a PostgreSQL index of compiled APE files and their
// windows, with a pgvector column for finding structurally similar windows.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"apetools/internal/ape"
	"apetools/internal/textutil"
	"apetools/internal/worker"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
)

const (
	// insertBatchSize bounds how many window rows go out in one round trip.
	insertBatchSize = 200
	previewLength   = 60
)

var schema = []string{
	`CREATE EXTENSION IF NOT EXISTS vector`,
	`CREATE TABLE IF NOT EXISTS ape_files (
		id         BIGSERIAL PRIMARY KEY,
		path       TEXT NOT NULL UNIQUE,
		hash       TEXT NOT NULL,
		windows    INTEGER NOT NULL,
		switches   INTEGER NOT NULL,
		indexed_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	fmt.Sprintf(`CREATE TABLE IF NOT EXISTS ape_windows (
		file_id  BIGINT NOT NULL REFERENCES ape_files(id) ON DELETE CASCADE,
		label    BIGINT NOT NULL,
		commands INTEGER NOT NULL,
		preview  TEXT NOT NULL,
		shape    vector(%d) NOT NULL,
		PRIMARY KEY (file_id, label)
	)`, ShapeDimensions),
}

const (
	upsertFileSQL = `
		INSERT INTO ape_files (path, hash, windows, switches)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (path) DO UPDATE
		SET hash = EXCLUDED.hash, windows = EXCLUDED.windows,
		    switches = EXCLUDED.switches, indexed_at = now()
		RETURNING id`
	deleteWindowsSQL = `DELETE FROM ape_windows WHERE file_id = $1`
	insertWindowSQL  = `
		INSERT INTO ape_windows (file_id, label, commands, preview, shape)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (file_id, label) DO NOTHING`
	shapeSQL = `
		SELECT w.shape FROM ape_windows w
		JOIN ape_files f ON f.id = w.file_id
		WHERE f.path = $1 AND w.label = $2`
	nearestSQL = `
		SELECT f.path, w.label, w.commands, w.preview, w.shape <-> $1 AS distance
		FROM ape_windows w
		JOIN ape_files f ON f.id = w.file_id
		WHERE NOT (f.path = $2 AND w.label = $3)
		ORDER BY w.shape <-> $1
		LIMIT $4`
	listHashesSQL = `SELECT path, hash FROM ape_files`
)

// ErrWindowNotIndexed is returned by Similar when the query window is not
// in the catalog.
var ErrWindowNotIndexed = errors.New("window is not indexed")

// Catalog stores indexed files in PostgreSQL and remembers content hashes
// in memory so unchanged files are skipped.
type Catalog struct {
	pool   *pgxpool.Pool
	cs     textutil.Charset
	mu     sync.RWMutex
	hashes map[string]string // path → content hash
}

// New creates a catalog backed by pool. Window previews are decoded with cs.
func New(pool *pgxpool.Pool, cs textutil.Charset) *Catalog {
	return &Catalog{pool: pool, cs: cs, hashes: make(map[string]string)}
}

// EnsureSchema creates the extension and tables when missing.
func (c *Catalog) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := c.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure catalog schema: %w", err)
		}
	}
	log.Info().Msg("Catalog schema ensured")
	return nil
}

// Preload loads the stored content hashes into memory.
func (c *Catalog) Preload(ctx context.Context) error {
	rows, err := c.pool.Query(ctx, listHashesSQL)
	if err != nil {
		return fmt.Errorf("preload catalog: %w", err)
	}
	defer rows.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	for rows.Next() {
		var path, hash string
		if err := rows.Scan(&path, &hash); err != nil {
			return fmt.Errorf("scan catalog row: %w", err)
		}
		c.hashes[path] = hash
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("preload catalog: %w", err)
	}

	log.Info().Int("count", len(c.hashes)).Msg("Preloaded catalog hashes")
	return nil
}

func (c *Catalog) unchanged(path, hash string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hashes[path] == hash
}

type windowRow struct {
	label    uint32
	commands int
	preview  string
	shape    []float32
}

// preview returns the start of the window's first title or body, decoded
// with cs.
func preview(win ape.Window, cs textutil.Charset) string {
	for _, cmd := range win.Commands {
		if c, ok := cmd.(*ape.FormattedStringCommand); ok {
			text := strings.ToValidUTF8(cs.Decode(c.Text.Bytes()), "?")
			return textutil.Truncate(text, previewLength)
		}
	}
	return ""
}

func windowRows(f *ape.File, cs textutil.Charset) []windowRow {
	rows := make([]windowRow, 0, len(f.Windows))
	for _, win := range f.Windows {
		rows = append(rows, windowRow{
			label:    win.ID,
			commands: len(win.Commands),
			preview:  preview(win, cs),
			shape:    Shape(win),
		})
	}
	return rows
}

// IndexFile stores f, decoded from data, under path and replaces any
// windows previously stored for it. It reports false when the stored
// content hash already matches data.
func (c *Catalog) IndexFile(ctx context.Context, path string, data []byte, f *ape.File) (bool, error) {
	hash := textutil.Hash(data)
	if c.unchanged(path, hash) {
		return false, nil
	}

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin index of %s: %w", path, err)
	}
	defer tx.Rollback(ctx)

	var fileID int64
	if err := tx.QueryRow(ctx, upsertFileSQL, path, hash, len(f.Windows), len(f.Switches)).Scan(&fileID); err != nil {
		return false, fmt.Errorf("upsert file %s: %w", path, err)
	}
	if _, err := tx.Exec(ctx, deleteWindowsSQL, fileID); err != nil {
		return false, fmt.Errorf("clear windows of %s: %w", path, err)
	}

	for _, chunk := range worker.Batch(windowRows(f, c.cs), insertBatchSize) {
		batch := &pgx.Batch{}
		for _, row := range chunk {
			batch.Queue(insertWindowSQL, fileID, int64(row.label), row.commands, row.preview, pgvector.NewVector(row.shape))
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return false, fmt.Errorf("insert windows of %s: %w", path, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit index of %s: %w", path, err)
	}

	c.mu.Lock()
	c.hashes[path] = hash
	c.mu.Unlock()

	log.Debug().Str("path", path).Int("windows", len(f.Windows)).Msg("Indexed file")
	return true, nil
}

// Match is a window found by Similar.
type Match struct {
	Path     string
	Label    uint32
	Commands int
	Preview  string
	Distance float64
}

// Similar returns up to limit windows whose shape is nearest to the window
// at label in path, excluding that window itself.
func (c *Catalog) Similar(ctx context.Context, path string, label uint32, limit int) ([]Match, error) {
	var shape pgvector.Vector
	err := c.pool.QueryRow(ctx, shapeSQL, path, int64(label)).Scan(&shape)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s in %s: %w", ape.FormatLabel(label), path, ErrWindowNotIndexed)
	}
	if err != nil {
		return nil, fmt.Errorf("load shape: %w", err)
	}

	rows, err := c.pool.Query(ctx, nearestSQL, shape, path, int64(label), limit)
	if err != nil {
		return nil, fmt.Errorf("nearest windows: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		var l int64
		if err := rows.Scan(&m.Path, &l, &m.Commands, &m.Preview, &m.Distance); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		m.Label = uint32(l)
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
