package parser

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"apetools/internal/ape"
	"apetools/internal/decompile"
	"apetools/internal/interpolation"
	"apetools/internal/textutil"
)

// ScriptParser handles .txt script sources. Only the first string literal
// of a title, body, choice or xyprint directive is extracted, and only
// when the literal closes on the same line.
type ScriptParser struct {
	cs textutil.Charset
}

func NewScriptParser(cs textutil.Charset) *ScriptParser { return &ScriptParser{cs: cs} }

func (p *ScriptParser) CanParse(ext string) bool {
	return ext == ".txt"
}

var (
	scriptTextDirective = regexp.MustCompile(`^\s*(title|body|choice|xyprint|xyprintfx)\b`)
	scriptStringPattern = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"`)
)

func (p *ScriptParser) Parse(filePath string) (*ParseResult, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}

	result := &ParseResult{FilePath: filePath, FileType: "script"}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	inBlockComment := false
	for lineNum := 1; scanner.Scan(); lineNum++ {
		line := scanner.Text()
		result.RawLines = append(result.RawLines, line)

		if inBlockComment {
			inBlockComment = !strings.Contains(line, "*/")
			continue
		}
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "/*") {
			inBlockComment = !strings.Contains(trimmed[2:], "*/")
			continue
		}

		m := scriptTextDirective.FindStringSubmatchIndex(line)
		if m == nil {
			continue
		}
		directiveEnd := m[1]
		loc := scriptStringPattern.FindStringSubmatchIndex(line[directiveEnd:])
		if loc == nil {
			continue
		}
		start := directiveEnd + loc[0]
		raw := line[directiveEnd+loc[2] : directiveEnd+loc[3]]

		text := p.cs.Decode([]byte(unescapeScript(raw)))
		if !textutil.HasLetters(text) {
			continue
		}
		result.Texts = append(result.Texts, ExtractedText{
			Text:   text,
			File:   filePath,
			Key:    "line " + strconv.Itoa(lineNum),
			Line:   lineNum,
			Column: start,
			Context: map[string]string{
				"directive": line[m[2]:m[3]],
			},
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan script: %w", err)
	}
	return result, nil
}

// unescapeScript decodes the escapes a window string literal may carry.
// Unknown escapes are kept verbatim.
func unescapeScript(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case '\\', '"':
			b.WriteByte(s[i])
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func (p *ScriptParser) Reconstruct(result *ParseResult, translations map[string]string) ([]byte, error) {
	lines := make([]string, len(result.RawLines))
	copy(lines, result.RawLines)

	for _, et := range result.Texts {
		idx := et.Line - 1
		if idx < 0 || idx >= len(lines) {
			continue
		}
		translated, ok := translations[et.Text]
		if !ok {
			continue
		}
		if err := interpolation.Verify(et.Text, translated); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", result.FilePath, et.Line, err)
		}

		line := lines[idx]
		loc := scriptStringPattern.FindStringIndex(line[et.Column:])
		if loc == nil || loc[0] != 0 {
			return nil, fmt.Errorf("%s line %d changed since it was parsed", result.FilePath, et.Line)
		}
		b, err := p.cs.Encode(translated)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", result.FilePath, et.Line, err)
		}
		lines[idx] = line[:et.Column] + decompile.Quote(ape.ByteString(b)) + line[et.Column+loc[1]:]
	}

	return []byte(strings.Join(lines, "\n") + "\n"), nil
}
