package filewalker

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"apetools/internal/parser"

	"github.com/rs/zerolog/log"
)

// Walker finds the files a set of parsers can handle.
type Walker struct {
	parsers []parser.Parser
}

// NewWalker creates a Walker that yields files claimed by one of parsers.
func NewWalker(parsers ...parser.Parser) *Walker {
	return &Walker{parsers: parsers}
}

// FileEntry is a discovered file ready for processing.
type FileEntry struct {
	Path string
	// Rel is Path relative to the walked root, for mirroring the tree
	// under an output directory.
	Rel    string
	Ext    string
	Parser parser.Parser
}

// Walk discovers supported files under root in lexical order.
func (w *Walker) Walk(root string) ([]FileEntry, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root path: %w", err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", root)
	}

	var entries []FileEntry
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Error walking path")
			return nil
		}
		if d.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		p := w.parserFor(ext)
		if p == nil {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relative path of %s: %w", path, err)
		}
		entries = append(entries, FileEntry{Path: path, Rel: rel, Ext: ext, Parser: p})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}

	log.Info().Int("count", len(entries)).Str("root", root).Msg("Discovered files")
	return entries, nil
}

func (w *Walker) parserFor(ext string) parser.Parser {
	for _, p := range w.parsers {
		if p.CanParse(ext) {
			return p
		}
	}
	return nil
}

// OutputPath maps entry into outDir, keeping its relative location and
// replacing its extension with ext.
func OutputPath(outDir string, entry FileEntry, ext string) string {
	rel := strings.TrimSuffix(entry.Rel, filepath.Ext(entry.Rel)) + ext
	return filepath.Join(outDir, rel)
}

// ParseFile parses a single file using the parser that claimed it.
func (w *Walker) ParseFile(entry FileEntry) (*parser.ParseResult, error) {
	return entry.Parser.Parse(entry.Path)
}
