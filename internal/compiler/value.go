package compiler

import (
	"math"

	"apetools/internal/ape"
)

type resultType int

const (
	resultFloat resultType = iota
	resultString
	resultInvalid
)

// value is a parsed expression before it is laid out as an ape.Expression.
// The implementations below form a closed set.
type value interface {
	result() resultType
	operandType() ape.OperandType
}

type floatConst struct{ v float32 }

type floatVar struct{ name string }

// stringConst holds the literal's bytes between the quotes, escapes still
// encoded.
type stringConst struct{ raw string }

type stringVar struct{ name string }

type binaryExpr struct {
	op          ape.Operator
	left, right value
	res         resultType
}

type invalidValue struct{}

func (floatConst) result() resultType   { return resultFloat }
func (floatVar) result() resultType     { return resultFloat }
func (stringConst) result() resultType  { return resultString }
func (stringVar) result() resultType    { return resultString }
func (e binaryExpr) result() resultType { return e.res }
func (invalidValue) result() resultType { return resultInvalid }

func (floatConst) operandType() ape.OperandType   { return ape.OperandFloatConst }
func (floatVar) operandType() ape.OperandType     { return ape.OperandFloatVar }
func (stringConst) operandType() ape.OperandType  { return ape.OperandStringConst }
func (stringVar) operandType() ape.OperandType    { return ape.OperandStringVar }
func (binaryExpr) operandType() ape.OperandType   { return ape.OperandExpression }
func (invalidValue) operandType() ape.OperandType { return ape.OperandExpression }

func newBinary(left, right value, op ape.Operator) binaryExpr {
	return binaryExpr{op: op, left: left, right: right, res: resolveResult(left, right, op)}
}

// resolveResult types a binary node. Equality compares like with like and
// everything else wants floats on both sides.
func resolveResult(left, right value, op ape.Operator) resultType {
	switch op {
	case ape.OpEq, ape.OpNeq:
		if left.result() != right.result() {
			return resultInvalid
		}
		return resultFloat
	case ape.OpOr, ape.OpAnd, ape.OpXor, ape.OpGt, ape.OpLt, ape.OpGe, ape.OpLe,
		ape.OpAdd, ape.OpSub, ape.OpMul, ape.OpDiv:
		if left.result() != resultFloat || right.result() != resultFloat {
			return resultInvalid
		}
		return resultFloat
	}
	return resultInvalid
}

// variableValue types an identifier by its trailing '$'.
func variableValue(name string) value {
	if name != "" && name[len(name)-1] == '$' {
		return stringVar{name: name}
	}
	return floatVar{name: name}
}

// invert returns the logical negation of a condition, or invalidValue when
// the condition has no negation.
func invert(v value) value {
	switch v := v.(type) {
	case floatConst:
		if v.v == 0 {
			return floatConst{v: 1}
		}
		return floatConst{v: 0}
	case floatVar:
		return newBinary(v, floatConst{}, ape.OpNeq)
	case binaryExpr:
		return invertBinary(v)
	}
	return invalidValue{}
}

func invertBinary(e binaryExpr) value {
	switch e.op {
	case ape.OpOr, ape.OpAnd:
		l, r := invert(e.left), invert(e.right)
		if l.result() == resultInvalid || r.result() == resultInvalid {
			return invalidValue{}
		}
		op := ape.OpAnd
		if e.op == ape.OpAnd {
			op = ape.OpOr
		}
		return newBinary(l, r, op)
	case ape.OpGt:
		return newBinary(e.left, e.right, ape.OpLe)
	case ape.OpLt:
		return newBinary(e.left, e.right, ape.OpGe)
	case ape.OpGe:
		return newBinary(e.left, e.right, ape.OpLt)
	case ape.OpLe:
		return newBinary(e.left, e.right, ape.OpGt)
	case ape.OpEq:
		return newBinary(e.left, e.right, ape.OpNeq)
	case ape.OpXor, ape.OpAdd, ape.OpSub, ape.OpMul, ape.OpDiv, ape.OpNeq:
		return newBinary(e, floatConst{}, ape.OpEq)
	}
	return invalidValue{}
}

// fold evaluates every subtree whose leaves are all float literals.
func fold(v value, loc Location) (value, error) {
	e, ok := v.(binaryExpr)
	if !ok {
		return v, nil
	}

	left, err := fold(e.left, loc)
	if err != nil {
		return nil, err
	}
	right, err := fold(e.right, loc)
	if err != nil {
		return nil, err
	}

	lc, lok := left.(floatConst)
	rc, rok := right.(floatConst)
	if !lok || !rok {
		return newBinary(left, right, e.op), nil
	}
	l, r := lc.v, rc.v

	truth := func(b bool) float32 {
		if b {
			return 1
		}
		return 0
	}

	var out float32
	switch e.op {
	case ape.OpOr:
		out = truth(l != 0 || r != 0)
	case ape.OpAnd:
		out = truth(l != 0 && r != 0)
	case ape.OpXor:
		out = truth((l != 0) != (r != 0))
	case ape.OpGt:
		out = truth(l > r)
	case ape.OpLt:
		out = truth(l < r)
	case ape.OpGe:
		out = truth(l >= r)
	case ape.OpLe:
		out = truth(l <= r)
	case ape.OpEq:
		out = truth(l == r)
	case ape.OpNeq:
		out = truth(l != r)
	case ape.OpAdd:
		out = l + r
	case ape.OpSub:
		out = l - r
	case ape.OpMul:
		out = l * r
	case ape.OpDiv:
		if r == 0 {
			return nil, errorAt(loc, "Float expression divides by zero")
		}
		out = l / r
	default:
		return nil, errorAt(loc, "Unknown expression operator %s", e.op)
	}

	if math.IsNaN(float64(out)) || math.IsInf(float64(out), 0) {
		return nil, errorAt(loc, "Float expression result was non-finite")
	}
	return floatConst{v: out}, nil
}

// conjoin ands together the conditions of every enclosing block, innermost
// last. A nil result means unconditional.
func conjoin(conds []value) value {
	var out value
	for _, c := range conds {
		if out == nil {
			out = c
			continue
		}
		out = newBinary(out, c, ape.OpAnd)
	}
	return out
}
