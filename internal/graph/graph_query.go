package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rs/zerolog/log"
)

// Unresolved is a label some loaded file refers to but none defines.
type Unresolved struct {
	Kind  string // "Window" or "Switch"
	Label uint32
	Files []string
}

// Referrer is one element referring to a label.
type Referrer struct {
	Kind  string
	Label uint32
	Via   string
	File  string
}

// GraphQuerier answers cross-reference questions about loaded files.
type GraphQuerier struct {
	driver neo4j.DriverWithContext
}

// NewGraphQuerier creates a new graph querier.
func NewGraphQuerier(driver neo4j.DriverWithContext) *GraphQuerier {
	return &GraphQuerier{driver: driver}
}

const unresolvedQuery = `
	MATCH (src)-[r:REFERS]->(n)
	WHERE (n:Window OR n:Switch) AND n.defined IS NULL
	RETURN labels(n)[0] AS kind, n.label AS label, collect(DISTINCT r.file) AS files
	ORDER BY kind, label`

// Unresolved lists every referenced window or switch that no loaded file
// defines, with the files that refer to it.
func (gq *GraphQuerier) Unresolved(ctx context.Context) ([]Unresolved, error) {
	session := gq.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, unresolvedQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("query unresolved labels: %w", err)
	}

	var out []Unresolved
	for result.Next(ctx) {
		record := result.Record()
		kind, _ := record.Get("kind")
		label, _ := record.Get("label")
		files, _ := record.Get("files")

		u := Unresolved{Kind: fmt.Sprintf("%v", kind), Label: labelValue(label)}
		if list, ok := files.([]any); ok {
			for _, f := range list {
				u.Files = append(u.Files, fmt.Sprintf("%v", f))
			}
		}
		out = append(out, u)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("read unresolved labels: %w", err)
	}

	log.Debug().Int("count", len(out)).Msg("Unresolved query complete")
	return out, nil
}

func referrersQuery(kind string) string {
	return fmt.Sprintf(`
	MATCH (src)-[r:REFERS]->(n:%s {label: $label})
	RETURN labels(src)[0] AS kind, src.label AS label, r.via AS via, r.file AS file
	ORDER BY file, label`, kind)
}

// Referrers lists the windows and switches referring to label. kind is
// "Window" or "Switch".
func (gq *GraphQuerier) Referrers(ctx context.Context, kind string, label uint32) ([]Referrer, error) {
	if kind != windowNode && kind != switchNode {
		return nil, fmt.Errorf("unknown node kind %q", kind)
	}

	session := gq.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, referrersQuery(kind), map[string]any{"label": int64(label)})
	if err != nil {
		return nil, fmt.Errorf("query referrers: %w", err)
	}

	var out []Referrer
	for result.Next(ctx) {
		record := result.Record()
		k, _ := record.Get("kind")
		l, _ := record.Get("label")
		via, _ := record.Get("via")
		file, _ := record.Get("file")
		out = append(out, Referrer{
			Kind:  fmt.Sprintf("%v", k),
			Label: labelValue(l),
			Via:   fmt.Sprintf("%v", via),
			File:  fmt.Sprintf("%v", file),
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("read referrers: %w", err)
	}
	return out, nil
}

// labelValue converts a label property; Neo4j returns integers as int64.
func labelValue(v any) uint32 {
	if n, ok := v.(int64); ok {
		return uint32(n)
	}
	return 0
}
