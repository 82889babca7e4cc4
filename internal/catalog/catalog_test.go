package catalog

import (
	"math"
	"strings"
	"testing"

	"apetools/internal/ape"
	"apetools/internal/textutil"
)

func TestShape(t *testing.T) {
	cond := ape.SomeExpression(ape.ConstantExpression(1))
	win := ape.Window{ID: 1, Commands: []ape.WindowCommand{
		&ape.FormattedStringCommand{Kind: ape.CodeBody, Text: "hi"},
		&ape.FormattedStringCommand{Kind: ape.CodeBody, Text: "there", Condition: cond},
		&ape.DimensionsCommand{},
	}}

	v := Shape(win)
	if len(v) != ShapeDimensions {
		t.Fatalf("len = %d, want %d", len(v), ShapeDimensions)
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Errorf("norm = %v, want 1", norm)
	}

	body, dims := -1, -1
	for i, c := range shapeCodes {
		switch c {
		case ape.CodeBody:
			body = i
		case ape.CodeDimensions:
			dims = i
		}
	}
	if math.Abs(float64(v[body]/v[dims]-2)) > 1e-5 {
		t.Errorf("body/dimensions ratio = %v, want 2", v[body]/v[dims])
	}
	if math.Abs(float64(v[len(shapeCodes)]/v[dims]-1)) > 1e-5 {
		t.Errorf("conditional count should equal the dimensions count")
	}
}

func TestShape_EmptyWindow(t *testing.T) {
	for _, x := range Shape(ape.Window{}) {
		if x != 0 {
			t.Fatalf("empty window shape has nonzero entry: %v", x)
		}
	}
}

func TestWindowRows(t *testing.T) {
	f := &ape.File{Windows: []ape.Window{
		{ID: 10000, Commands: []ape.WindowCommand{&ape.DimensionsCommand{}}},
		{ID: 10001},
	}}
	rows := windowRows(f, textutil.Charset{})
	if len(rows) != 2 || rows[0].label != 10000 || rows[0].commands != 1 || rows[1].commands != 0 {
		t.Errorf("windowRows = %+v", rows)
	}
}

func TestPreview(t *testing.T) {
	cs, err := textutil.LookupCharset("windows-1252")
	if err != nil {
		t.Fatal(err)
	}
	win := ape.Window{ID: 1, Commands: []ape.WindowCommand{
		&ape.DimensionsCommand{},
		&ape.FormattedStringCommand{Kind: ape.CodeTitle, Text: "Caf\xe9"},
		&ape.FormattedStringCommand{Kind: ape.CodeBody, Text: "second"},
	}}
	if got := preview(win, cs); got != "Café" {
		t.Errorf("preview = %q, want Café", got)
	}
	if got := preview(win, textutil.Charset{}); got != "Caf?" {
		t.Errorf("raw preview = %q, want invalid byte replaced", got)
	}

	long := ape.Window{Commands: []ape.WindowCommand{
		&ape.FormattedStringCommand{Kind: ape.CodeBody, Text: ape.ByteString(strings.Repeat("a", 100))},
	}}
	if got := preview(long, cs); len(got) != previewLength+3 {
		t.Errorf("long preview length = %d", len(got))
	}
	if got := preview(ape.Window{}, cs); got != "" {
		t.Errorf("empty window preview = %q", got)
	}
}

func TestSchemaMatchesShape(t *testing.T) {
	last := schema[len(schema)-1]
	if !strings.Contains(last, "vector(21)") {
		t.Errorf("window table does not declare a 21-dimension vector:\n%s", last)
	}
}
