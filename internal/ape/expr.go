package ape

import (
	"fmt"
	"math"
)

// Operator is a binary expression operator as stored on disk.
type Operator uint8

const (
	OpInvalid Operator = iota
	OpOr
	OpAnd
	OpXor
	OpGt
	OpLt
	OpGe
	OpLe
	OpEq
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpNeq
)

var operatorNames = [...]string{
	OpInvalid: "Invalid",
	OpOr:      "Or",
	OpAnd:     "And",
	OpXor:     "Xor",
	OpGt:      "Gt",
	OpLt:      "Lt",
	OpGe:      "Ge",
	OpLe:      "Le",
	OpEq:      "Eq",
	OpAdd:     "Add",
	OpSub:     "Sub",
	OpMul:     "Mul",
	OpDiv:     "Div",
	OpNeq:     "Neq",
}

func (o Operator) String() string {
	if int(o) < len(operatorNames) {
		return operatorNames[o]
	}
	return fmt.Sprintf("Operator(%d)", uint8(o))
}

// Valid reports whether o may appear in a file.
func (o Operator) Valid() bool {
	return o >= OpOr && o <= OpNeq
}

// Symbol returns the script spelling of o.
func (o Operator) Symbol() string {
	switch o {
	case OpOr:
		return "||"
	case OpAnd:
		return "&&"
	case OpXor:
		return "^^"
	case OpGt:
		return ">"
	case OpLt:
		return "<"
	case OpGe:
		return ">="
	case OpLe:
		return "<="
	case OpEq:
		return "=="
	case OpNeq:
		return "!="
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	}
	return "?"
}

// OperandType is the per-side type code packed into an expression's flag
// byte. The values are wire constants.
type OperandType uint8

const (
	OperandExpression  OperandType = 0
	OperandFloatConst  OperandType = 4
	OperandFloatVar    OperandType = 5
	OperandStringConst OperandType = 16
	OperandStringVar   OperandType = 17
)

func (t OperandType) String() string {
	switch t {
	case OperandExpression:
		return "Expression"
	case OperandFloatConst:
		return "FloatConst"
	case OperandFloatVar:
		return "FloatVar"
	case OperandStringConst:
		return "StringConst"
	case OperandStringVar:
		return "StringVar"
	}
	return fmt.Sprintf("OperandType(%d)", uint8(t))
}

const (
	leftTypeMask      = 0x15
	unknownExprFlags  = 0xc0
	maxExpressionNest = 64
)

// Operand is one side of an Expression. The implementations in this package
// form a closed set.
type Operand interface {
	encode(w *Writer)
	carries(t OperandType) bool
}

// FloatOperand is a float literal.
type FloatOperand struct {
	Value float32
}

// StringOperand is a raw string, used for variable names.
type StringOperand struct {
	Value ByteString
}

// QuotedStringOperand is a string literal.
type QuotedStringOperand struct {
	Value ByteString
}

// ExpressionOperand is a nested sub-expression.
type ExpressionOperand struct {
	Expr *Expression
}

// InvalidOperand marks a side that was never filled in. Encoding one panics
// with ErrInvalidOperand.
type InvalidOperand struct{}

func (o FloatOperand) encode(w *Writer)        { w.WriteFloat32(o.Value) }
func (o StringOperand) encode(w *Writer)       { o.Value.encode(w) }
func (o QuotedStringOperand) encode(w *Writer) { o.Value.encode(w) }
func (o ExpressionOperand) encode(w *Writer) {
	if o.Expr == nil {
		panic(ErrInvalidOperand)
	}
	o.Expr.encode(w)
}
func (InvalidOperand) encode(*Writer) { panic(ErrInvalidOperand) }

func (FloatOperand) carries(t OperandType) bool { return t == OperandFloatConst }
func (StringOperand) carries(t OperandType) bool {
	return t == OperandFloatVar || t == OperandStringVar
}
func (QuotedStringOperand) carries(t OperandType) bool { return t == OperandStringConst }
func (ExpressionOperand) carries(t OperandType) bool   { return t == OperandExpression }
func (InvalidOperand) carries(OperandType) bool        { return false }

// Side is one operand of a binary expression together with its type code
// and its position in the expression tree.
type Side struct {
	Type    OperandType
	TreePos uint64
	Value   Operand
}

// Expression is a binary operator node. On disk it is the operator byte, a
// flag byte packing both operand types, then each side as a u64 tree
// position followed by the operand payload.
type Expression struct {
	Operator Operator
	Left     Side
	Right    Side
}

func (e *Expression) flags() uint8 {
	return uint8(e.Left.Type) | uint8(e.Right.Type)<<1
}

func decodeExpression(r *Reader, depth int) (*Expression, error) {
	if depth > maxExpressionNest {
		return nil, r.Errorf("Expression nesting is too deep")
	}

	op, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	flags, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	if !Operator(op).Valid() {
		return nil, r.Errorf("Unknown expr operator %d", op)
	}
	if flags&unknownExprFlags != 0 {
		return nil, r.Errorf("Expression element had unknown flags")
	}

	leftType := OperandType(flags & leftTypeMask)
	rightType := OperandType((flags >> 1) & leftTypeMask)
	for _, t := range []OperandType{leftType, rightType} {
		if err := validateOperandType(r, t); err != nil {
			return nil, err
		}
	}

	e := &Expression{Operator: Operator(op)}
	if e.Left, err = decodeSide(r, leftType, depth); err != nil {
		return nil, err
	}
	if e.Right, err = decodeSide(r, rightType, depth); err != nil {
		return nil, err
	}
	return e, nil
}

func validateOperandType(r *Reader, t OperandType) error {
	switch t {
	case OperandExpression, OperandFloatConst, OperandFloatVar, OperandStringConst, OperandStringVar:
		return nil
	case 0x01:
		return r.Errorf("Expression element was an untyped variable")
	case 0x14:
		return r.Errorf("Expression element was a float and string")
	}
	return r.Errorf("Expression element had invalid operand type %d", uint8(t))
}

func decodeSide(r *Reader, t OperandType, depth int) (Side, error) {
	pos, err := r.ReadUint64()
	if err != nil {
		return Side{}, err
	}
	side := Side{Type: t, TreePos: pos}

	switch t {
	case OperandExpression:
		e, err := decodeExpression(r, depth+1)
		if err != nil {
			return Side{}, err
		}
		side.Value = ExpressionOperand{Expr: e}
	case OperandFloatConst:
		f, err := r.ReadFloat32()
		if err != nil {
			return Side{}, err
		}
		side.Value = FloatOperand{Value: f}
	case OperandFloatVar, OperandStringVar:
		s, err := decodeByteString(r)
		if err != nil {
			return Side{}, err
		}
		side.Value = StringOperand{Value: s}
	case OperandStringConst:
		s, err := decodeByteString(r)
		if err != nil {
			return Side{}, err
		}
		side.Value = QuotedStringOperand{Value: s}
	default:
		return Side{}, r.Errorf("Expression element had invalid operand type %d", uint8(t))
	}
	return side, nil
}

func (e *Expression) encode(w *Writer) {
	if !e.Operator.Valid() {
		w.fail("cannot encode expression operator %s", e.Operator)
		return
	}
	w.WriteUint8(uint8(e.Operator))
	w.WriteUint8(e.flags())
	e.Left.encode(w)
	e.Right.encode(w)
}

func (s Side) encode(w *Writer) {
	if s.Value == nil {
		panic(ErrInvalidOperand)
	}
	if _, invalid := s.Value.(InvalidOperand); invalid {
		panic(ErrInvalidOperand)
	}
	if !s.Value.carries(s.Type) {
		w.fail("operand of type %s cannot hold %T", s.Type, s.Value)
		return
	}
	w.WriteUint64(s.TreePos)
	s.Value.encode(w)
}

// ResolveFloatConstant folds e when every leaf is a float literal and every
// operator is arithmetic. It reports false for variables, strings,
// comparisons, division by zero, and non-finite results.
func (e *Expression) ResolveFloatConstant() (float32, bool) {
	if e == nil {
		return 0, false
	}
	l, ok := e.Left.resolveFloat()
	if !ok {
		return 0, false
	}
	r, ok := e.Right.resolveFloat()
	if !ok {
		return 0, false
	}

	var v float32
	switch e.Operator {
	case OpAdd:
		v = l + r
	case OpSub:
		v = l - r
	case OpMul:
		v = l * r
	case OpDiv:
		if r == 0 {
			return 0, false
		}
		v = l / r
	default:
		return 0, false
	}
	if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
		return 0, false
	}
	return v, true
}

func (s Side) resolveFloat() (float32, bool) {
	switch v := s.Value.(type) {
	case FloatOperand:
		if s.Type != OperandFloatConst {
			return 0, false
		}
		return v.Value, true
	case ExpressionOperand:
		return v.Expr.ResolveFloatConstant()
	}
	return 0, false
}

// ConstantExpression builds the canonical float constant node, 0 + v,
// rooted at tree position 1.
func ConstantExpression(v float32) *Expression {
	return &Expression{
		Operator: OpAdd,
		Left:     Side{Type: OperandFloatConst, TreePos: 1<<2 + 1, Value: FloatOperand{}},
		Right:    Side{Type: OperandFloatConst, TreePos: 1<<2 + 2, Value: FloatOperand{Value: v}},
	}
}

// OptionalExpression is an expression that may be absent. On disk absence is
// a u64 0; presence is a u64 1, the expression, and a u64 0.
type OptionalExpression struct {
	Expr *Expression
}

// SomeExpression wraps e as a present OptionalExpression.
func SomeExpression(e *Expression) OptionalExpression {
	return OptionalExpression{Expr: e}
}

// Present reports whether an expression is stored.
func (o OptionalExpression) Present() bool { return o.Expr != nil }

// ResolveFloatConstant fails when the expression is absent.
func (o OptionalExpression) ResolveFloatConstant() (float32, bool) {
	if o.Expr == nil {
		return 0, false
	}
	return o.Expr.ResolveFloatConstant()
}

func decodeOptionalExpression(r *Reader) (OptionalExpression, error) {
	flag, err := r.ReadUint64()
	if err != nil {
		return OptionalExpression{}, err
	}
	switch flag {
	case 0:
		return OptionalExpression{}, nil
	case 1:
		e, err := decodeExpression(r, 0)
		if err != nil {
			return OptionalExpression{}, err
		}
		if err := r.ExpectUint32(0); err != nil {
			return OptionalExpression{}, err
		}
		if err := r.ExpectUint32(0); err != nil {
			return OptionalExpression{}, err
		}
		return SomeExpression(e), nil
	}
	return OptionalExpression{}, r.Errorf("Unexpected flag %d in OptionalExpression", flag)
}

func (o OptionalExpression) encode(w *Writer) {
	if o.Expr == nil {
		w.WriteUint64(0)
		return
	}
	w.WriteUint64(1)
	o.Expr.encode(w)
	w.WriteUint64(0)
}
