package graph

import (
	"strings"
	"testing"

	"apetools/internal/ape"
)

func TestReferenceStatement(t *testing.T) {
	s := referenceStatement(ape.Reference{
		FromSwitch: 40000,
		Via:        "GotoCommand",
		Target:     ape.TargetWindow,
		Label:      10002,
	}, "intro.ape")

	if !strings.Contains(s.cypher, "MERGE (a:Switch {label: $from})") ||
		!strings.Contains(s.cypher, "MERGE (b:Window {label: $to})") {
		t.Errorf("unexpected cypher:\n%s", s.cypher)
	}
	if s.params["from"] != int64(40000) || s.params["to"] != int64(10002) {
		t.Errorf("labels = %v -> %v", s.params["from"], s.params["to"])
	}
	if s.params["name"] != "1:2" || s.params["via"] != "GotoCommand" || s.params["file"] != "intro.ape" {
		t.Errorf("params = %v", s.params)
	}
}

func TestFileStatements(t *testing.T) {
	f := &ape.File{
		Windows: []ape.Window{{ID: 10000, Commands: []ape.WindowCommand{
			&ape.SwitchRefCommand{Kind: ape.CodeStartSwitch, Label: 20000},
			&ape.ChoiceCommand{Text: "go", Label: 30000},
		}}},
		Switches: []ape.Switch{{Label: 20000}},
	}

	stmts := fileStatements("a.ape", f)
	// two clears, one window, one switch, two references
	if len(stmts) != 6 {
		t.Fatalf("got %d statements, want 6", len(stmts))
	}
	if !strings.Contains(stmts[2].cypher, "MERGE (n:Window") || stmts[2].params["label"] != int64(10000) {
		t.Errorf("window definition = %+v", stmts[2])
	}
	if !strings.Contains(stmts[3].cypher, "MERGE (n:Switch") {
		t.Errorf("switch definition = %+v", stmts[3])
	}
	if !strings.Contains(stmts[4].cypher, "(b:Switch") || !strings.Contains(stmts[5].cypher, "(b:Window") {
		t.Errorf("reference targets wrong:\n%s\n%s", stmts[4].cypher, stmts[5].cypher)
	}
}

func TestReferrersQuery(t *testing.T) {
	if q := referrersQuery(switchNode); !strings.Contains(q, "(n:Switch {label: $label})") {
		t.Errorf("referrersQuery = %s", q)
	}
	if labelValue(int64(42)) != 42 || labelValue("x") != 0 {
		t.Error("labelValue conversion failed")
	}
}
