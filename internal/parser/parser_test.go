package parser

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"apetools/internal/ape"
	"apetools/internal/textutil"
)

func windows1252(t *testing.T) textutil.Charset {
	t.Helper()
	cs, err := textutil.LookupCharset("windows-1252")
	if err != nil {
		t.Fatal(err)
	}
	return cs
}

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAPEParser_ExtractAndReconstruct(t *testing.T) {
	f := &ape.File{Windows: []ape.Window{{ID: 10000, Commands: []ape.WindowCommand{
		&ape.FormattedStringCommand{Kind: ape.CodeTitle, Text: "Hello"},
		&ape.FormattedStringCommand{Kind: ape.CodeBody, Text: "123"},
		&ape.DimensionsCommand{},
		&ape.ChoiceCommand{Text: "Yes", Label: 20000},
	}}}}
	data, err := f.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	path := writeTemp(t, "a.ape", data)

	p := NewAPEParser(windows1252(t))
	result, err := p.Parse(path)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(result.Texts) != 2 {
		t.Fatalf("got %d texts, want 2: %+v", len(result.Texts), result.Texts)
	}
	if got := result.Texts[0].Key; got != "1:0/Title#0" {
		t.Errorf("first key = %q", got)
	}
	if got := result.Texts[1].Key; got != "1:0/Choice#3" {
		t.Errorf("second key = %q", got)
	}

	out, err := p.Reconstruct(result, map[string]string{"Hello": "Café"})
	if err != nil {
		t.Fatalf("Reconstruct failed: %v", err)
	}
	rebuilt, err := ape.Decode(out)
	if err != nil {
		t.Fatalf("Decode of rebuilt file failed: %v", err)
	}
	title := rebuilt.Windows[0].Commands[0].(*ape.FormattedStringCommand)
	if title.Text != "Caf\xe9" {
		t.Errorf("title bytes = %q, want Caf\\xe9", title.Text)
	}
	choice := rebuilt.Windows[0].Commands[3].(*ape.ChoiceCommand)
	if choice.Text != "Yes" || choice.Label != 20000 {
		t.Errorf("choice changed: %+v", choice)
	}
}

func TestAPEParser_UnencodableTranslation(t *testing.T) {
	f := &ape.File{Windows: []ape.Window{{ID: 1, Commands: []ape.WindowCommand{
		&ape.FormattedStringCommand{Kind: ape.CodeBody, Text: "Hi"},
	}}}}
	data, err := f.Encode()
	if err != nil {
		t.Fatal(err)
	}
	p := NewAPEParser(windows1252(t))
	result, err := p.Parse(writeTemp(t, "b.ape", data))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Reconstruct(result, map[string]string{"Hi": "你好"}); err == nil {
		t.Error("expected error for text outside the code page")
	}
}

func TestAPEParser_RejectsChangedDirectives(t *testing.T) {
	f := &ape.File{Windows: []ape.Window{{ID: 1, Commands: []ape.WindowCommand{
		&ape.FormattedStringCommand{Kind: ape.CodeBody, Text: "You have %d gold"},
	}}}}
	data, err := f.Encode()
	if err != nil {
		t.Fatal(err)
	}
	p := NewAPEParser(windows1252(t))
	result, err := p.Parse(writeTemp(t, "c.ape", data))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Reconstruct(result, map[string]string{"You have %d gold": "Tienes oro"}); err == nil {
		t.Errorf("expected error for a translation that drops %%d")
	}
	if _, err := p.Reconstruct(result, map[string]string{"You have %d gold": "Tienes %d de oro"}); err != nil {
		t.Errorf("matching translation rejected: %v", err)
	}
}

const script = `#window 1:0
title "Hello \"you\""
/* body "commented out"
*/
body "42"
if (gold > 5)
	choice "Rich", gold, 2:0
xyprintfx 1, 2, 3, 4, 5, 6, big, "Shout\n"
`

func TestScriptParser_ExtractAndReconstruct(t *testing.T) {
	p := NewScriptParser(textutil.Charset{})
	result, err := p.Parse(writeTemp(t, "s.txt", []byte(script)))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	var got []string
	for _, et := range result.Texts {
		got = append(got, et.Key+"="+et.Text)
	}
	want := []string{`line 2=Hello "you"`, "line 7=Rich", "line 8=Shout\n"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("texts = %q, want %q", got, want)
	}

	out, err := p.Reconstruct(result, map[string]string{
		`Hello "you"`: `Salut "toi"`,
		"Shout\n":     "Crie\n",
	})
	if err != nil {
		t.Fatalf("Reconstruct failed: %v", err)
	}
	lines := strings.Split(string(out), "\n")
	if lines[1] != `title "Salut \"toi\""` {
		t.Errorf("line 2 = %q", lines[1])
	}
	if lines[6] != `	choice "Rich", gold, 2:0` {
		t.Errorf("line 7 = %q", lines[6])
	}
	if lines[7] != `xyprintfx 1, 2, 3, 4, 5, 6, big, "Crie\n"` {
		t.Errorf("line 8 = %q", lines[7])
	}
}

func TestTSV_RoundTrip(t *testing.T) {
	results := []*ParseResult{{Texts: []ExtractedText{
		{File: "/data/a.ape", Key: "1:0/Body#0", Text: "tab\there"},
		{File: "/data/a.ape", Key: "1:0/Choice#1", Text: "Yes"},
	}}}

	var buf bytes.Buffer
	rows, err := WriteTSV(&buf, results, filepath.Base)
	if err != nil || rows != 2 {
		t.Fatalf("WriteTSV = %d, %v", rows, err)
	}
	if !strings.Contains(buf.String(), "a.ape\t1:0/Body#0\ttab\\there\t\n") {
		t.Errorf("unexpected TSV:\n%s", buf.String())
	}

	filled := strings.Replace(buf.String(), "tab\\there\t\n", "tab\\there\tonglet\\tici\n", 1)
	translations, err := ReadTranslations(strings.NewReader(filled))
	if err != nil {
		t.Fatalf("ReadTranslations failed: %v", err)
	}
	if len(translations) != 1 || translations["tab\there"] != "onglet\tici" {
		t.Errorf("translations = %q", translations)
	}

	if _, err := ReadTranslations(strings.NewReader("a\tb\n")); err == nil {
		t.Error("expected column count error")
	}
}
