// Package parser extracts player-visible text from compiled APE files and
// script sources, and rebuilds them with translated text.
package parser

// ExtractedText is one translatable string found in a file.
type ExtractedText struct {
	// Text is the string as UTF-8.
	Text string
	File string
	// Key locates the string inside the file, e.g. "1:0/Body#2" or "line 14".
	Key string
	// Line is 1-based for script sources and 0 for compiled files.
	Line int
	// Column is the byte offset of the opening quote in a script line, or
	// the command index inside its window for compiled files.
	Column  int
	Context map[string]string
}

// ParseResult holds parsing output for a single file.
type ParseResult struct {
	FilePath string
	// FileType is "ape" or "script".
	FileType string
	Texts    []ExtractedText
	// RawLines keeps a script source for reconstruction.
	RawLines []string
	// Raw keeps a compiled file for reconstruction.
	Raw []byte
}

// Parser is implemented by each supported file format.
type Parser interface {
	// CanParse reports whether this parser handles the lower-cased extension.
	CanParse(ext string) bool
	Parse(filePath string) (*ParseResult, error)
	// Reconstruct rebuilds the file, replacing each extracted text that has
	// an entry in translations.
	Reconstruct(result *ParseResult, translations map[string]string) ([]byte, error)
}
