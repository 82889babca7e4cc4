package compiler

import "apetools/internal/ape"

const rootTreePos = 1

func (c *compiler) side(pos uint64, v value, loc Location) (ape.Side, error) {
	side := ape.Side{Type: v.operandType(), TreePos: pos}

	switch v := v.(type) {
	case binaryExpr:
		e, err := c.layout(pos, v, loc)
		if err != nil {
			return ape.Side{}, err
		}
		side.Value = ape.ExpressionOperand{Expr: e}
	case floatConst:
		side.Value = ape.FloatOperand{Value: v.v}
	case floatVar:
		side.Value = ape.StringOperand{Value: ape.ByteString(v.name)}
	case stringVar:
		side.Value = ape.StringOperand{Value: ape.ByteString(v.name)}
	case stringConst:
		s, err := unescape(v.raw, loc, c.opts.AllowEscapesInExprStrings, true)
		if err != nil {
			return ape.Side{}, err
		}
		side.Value = ape.QuotedStringOperand{Value: ape.ByteString(s)}
	default:
		return ape.Side{}, errorAt(loc, "Expression was invalid and unemittable")
	}
	return side, nil
}

// layout places e at tree position pos. Children of pos sit at pos<<2+1
// and pos<<2+2.
func (c *compiler) layout(pos uint64, e binaryExpr, loc Location) (*ape.Expression, error) {
	if pos>>62 != 0 {
		return nil, errorAt(loc, "Condition was too complex")
	}

	left, err := c.side(pos<<2+1, e.left, loc)
	if err != nil {
		return nil, err
	}
	right, err := c.side(pos<<2+2, e.right, loc)
	if err != nil {
		return nil, err
	}
	return &ape.Expression{Operator: e.op, Left: left, Right: right}, nil
}

// toExpression converts a numeric value to a rooted expression tree. A leaf
// is wrapped as 0 + leaf.
func (c *compiler) toExpression(v value, loc Location) (*ape.Expression, error) {
	if c.opts.Optimize {
		folded, err := fold(v, loc)
		if err != nil {
			return nil, err
		}
		v = folded
	}

	e, isExpr := v.(binaryExpr)
	if v.result() != resultFloat {
		if !isExpr || !c.opts.AllowMalformedExprs {
			return nil, errorAt(loc, "Expression does not evaluate to a number")
		}
		c.rep.warn(loc, "Expression is invalid (type mismatch, probably)")
	}

	if !isExpr {
		e = newBinary(floatConst{}, v, ape.OpAdd)
	}
	return c.layout(rootTreePos, e, loc)
}

// toOptional converts v, leaving the result absent when v is nil.
func (c *compiler) toOptional(v value, loc Location) (ape.OptionalExpression, error) {
	if v == nil {
		return ape.OptionalExpression{}, nil
	}
	e, err := c.toExpression(v, loc)
	if err != nil {
		return ape.OptionalExpression{}, err
	}
	return ape.SomeExpression(e), nil
}

// convertCondition converts the condition of a conditional command. When
// optimizing, a constant true condition is dropped and a constant false one
// reports emit == false so the command can be skipped.
func (c *compiler) convertCondition(cond value, loc Location) (expr ape.OptionalExpression, emit bool, err error) {
	if cond == nil {
		return ape.OptionalExpression{}, true, nil
	}
	if c.opts.Optimize {
		folded, err := fold(cond, loc)
		if err != nil {
			return ape.OptionalExpression{}, false, err
		}
		if f, ok := folded.(floatConst); ok {
			return ape.OptionalExpression{}, f.v != 0, nil
		}
		cond = folded
	}
	expr, err = c.toOptional(cond, loc)
	return expr, err == nil, err
}
