package parser

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"apetools/internal/textutil"
)

const tsvHeader = "file\tkey\tsource_text\ttranslated_text"

// WriteTSV writes one row per extracted text with an empty translation
// column for translators to fill in. relPath maps a file path to the name
// written in the file column.
func WriteTSV(w io.Writer, results []*ParseResult, relPath func(string) string) (int, error) {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, tsvHeader)

	rows := 0
	for _, r := range results {
		for _, et := range r.Texts {
			fmt.Fprintf(bw, "%s\t%s\t%s\t\n",
				textutil.EscapeTSV(relPath(et.File)),
				textutil.EscapeTSV(et.Key),
				textutil.EscapeTSV(et.Text),
			)
			rows++
		}
	}
	return rows, bw.Flush()
}

// ReadTranslations reads a TSV written by WriteTSV and returns source text
// to translated text for every row whose translation is filled in. Later
// rows win when one source text is translated twice.
func ReadTranslations(r io.Reader) (map[string]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	translations := make(map[string]string)
	for lineNum := 1; scanner.Scan(); lineNum++ {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if lineNum == 1 && line == tsvHeader {
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		cols := strings.Split(line, "\t")
		if len(cols) != 4 {
			return nil, fmt.Errorf("line %d: expected 4 columns, got %d", lineNum, len(cols))
		}
		if cols[3] == "" {
			continue
		}
		translations[textutil.UnescapeTSV(cols[2])] = textutil.UnescapeTSV(cols[3])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read translations: %w", err)
	}
	return translations, nil
}
