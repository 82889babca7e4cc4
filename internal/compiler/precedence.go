package compiler

import "apetools/internal/ape"

type precedenceTier map[string]ape.Operator

// precedenceTable lists operator tiers from tightest to loosest binding.
// Every tier is left associative.
type precedenceTable []precedenceTier

var operatorsBySymbol = map[string]ape.Operator{
	"||": ape.OpOr, "&&": ape.OpAnd, "^^": ape.OpXor,
	">=": ape.OpGe, ">": ape.OpGt, "<=": ape.OpLe, "<": ape.OpLt,
	"==": ape.OpEq, "!=": ape.OpNeq,
	"+": ape.OpAdd, "-": ape.OpSub, "/": ape.OpDiv, "*": ape.OpMul,
}

func buildTable(tiers [][]string) precedenceTable {
	table := make(precedenceTable, len(tiers))
	for i, symbols := range tiers {
		tier := precedenceTier{}
		for _, s := range symbols {
			tier[s] = operatorsBySymbol[s]
		}
		table[i] = tier
	}
	return table
}

var nativePrecedence = buildTable([][]string{
	{"/", "*"},
	{"-", "+"},
	{"<=", ">=", "<", ">"},
	{"!=", "=="},
	{"&&"},
	{"^^"},
	{"||"},
})

// legacyPrecedence gives every operator a tier of its own, so `a + b - c`
// groups as `a + (b - c)`.
var legacyPrecedence = func() precedenceTable {
	ops := []string{"/", "*", "-", "+", "<=", ">=", "<", ">", "!=", "==", "&&", "^^", "||"}
	tiers := make([][]string, len(ops))
	for i, op := range ops {
		tiers[i] = []string{op}
	}
	return buildTable(tiers)
}()

func precedenceFor(o Options) precedenceTable {
	if o.LegacyPrecedence {
		return legacyPrecedence
	}
	return nativePrecedence
}
