package graph

import (
	"context"
	"fmt"

	"apetools/internal/ape"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rs/zerolog/log"
)

// Node labels. Window and switch labels are global across a game's files,
// so each label is one node no matter how many files mention it.
const (
	windowNode = "Window"
	switchNode = "Switch"
)

func nodeLabel(t ape.RefTarget) string {
	if t == ape.TargetSwitch {
		return switchNode
	}
	return windowNode
}

// GraphBuilder loads the label references of compiled files into Neo4j.
// A node defined by a loaded file carries defined=true and the file path;
// nodes that are only referenced have neither.
type GraphBuilder struct {
	driver neo4j.DriverWithContext
}

// NewGraphBuilder creates a new graph builder.
func NewGraphBuilder(driver neo4j.DriverWithContext) *GraphBuilder {
	return &GraphBuilder{driver: driver}
}

// EnsureSchema creates the label uniqueness constraints.
func (gb *GraphBuilder) EnsureSchema(ctx context.Context) error {
	session := gb.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	constraints := []string{
		"CREATE CONSTRAINT IF NOT EXISTS FOR (w:Window) REQUIRE w.label IS UNIQUE",
		"CREATE CONSTRAINT IF NOT EXISTS FOR (s:Switch) REQUIRE s.label IS UNIQUE",
	}
	for _, c := range constraints {
		if _, err := session.Run(ctx, c, nil); err != nil {
			return fmt.Errorf("create constraint: %w", err)
		}
	}

	log.Info().Msg("Graph schema ensured")
	return nil
}

type statement struct {
	cypher string
	params map[string]any
}

// clearStatements forget what an earlier load of file contributed.
func clearStatements(file string) []statement {
	params := map[string]any{"file": file}
	return []statement{
		{`MATCH ()-[r:REFERS {file: $file}]->() DELETE r`, params},
		{`MATCH (n {file: $file}) REMOVE n.defined, n.file`, params},
	}
}

func definitionStatement(node string, label uint32, file string) statement {
	return statement{
		cypher: fmt.Sprintf(`MERGE (n:%s {label: $label}) SET n.defined = true, n.file = $file, n.name = $name`, node),
		params: map[string]any{"label": int64(label), "file": file, "name": ape.FormatLabel(label)},
	}
}

func referenceStatement(ref ape.Reference, file string) statement {
	from, fromLabel := windowNode, ref.FromWindow
	if ref.FromSwitch != 0 {
		from, fromLabel = switchNode, ref.FromSwitch
	}
	to := nodeLabel(ref.Target)
	return statement{
		cypher: fmt.Sprintf(`
			MERGE (a:%s {label: $from})
			MERGE (b:%s {label: $to})
			ON CREATE SET b.name = $name
			MERGE (a)-[r:REFERS {via: $via, file: $file}]->(b)`, from, to),
		params: map[string]any{
			"from": int64(fromLabel),
			"to":   int64(ref.Label),
			"name": ape.FormatLabel(ref.Label),
			"via":  ref.Via,
			"file": file,
		},
	}
}

// fileStatements lists every statement that loads f as file.
func fileStatements(file string, f *ape.File) []statement {
	stmts := clearStatements(file)
	for _, w := range f.Windows {
		stmts = append(stmts, definitionStatement(windowNode, w.ID, file))
	}
	for _, s := range f.Switches {
		stmts = append(stmts, definitionStatement(switchNode, s.Label, file))
	}
	for _, ref := range f.References() {
		stmts = append(stmts, referenceStatement(ref, file))
	}
	return stmts
}

// LoadFile replaces what the graph knows about file with the windows,
// switches and references of f, in one transaction.
func (gb *GraphBuilder) LoadFile(ctx context.Context, file string, f *ape.File) error {
	session := gb.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	stmts := fileStatements(file, f)
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, s := range stmts {
			if _, err := tx.Run(ctx, s.cypher, s.params); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("load %s into graph: %w", file, err)
	}

	log.Debug().Str("file", file).Int("statements", len(stmts)).Msg("Loaded file into graph")
	return nil
}
