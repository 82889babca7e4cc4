package ape

import "fmt"

// FormatType tags a TypedFormattingValue. The values are wire constants.
type FormatType uint8

const (
	FormatFloat              FormatType = 4
	FormatVariableName       FormatType = 5
	FormatString             FormatType = 16
	FormatStringVariableName FormatType = 17
)

func (t FormatType) String() string {
	switch t {
	case FormatFloat:
		return "Float"
	case FormatVariableName:
		return "VariableName"
	case FormatString:
		return "String"
	case FormatStringVariableName:
		return "StringVariableName"
	}
	return fmt.Sprintf("FormatType(%d)", uint8(t))
}

// OperandType returns the expression operand type with the same payload.
func (t FormatType) OperandType() OperandType {
	switch t {
	case FormatFloat:
		return OperandFloatConst
	case FormatVariableName:
		return OperandFloatVar
	case FormatString:
		return OperandStringConst
	}
	return OperandStringVar
}

// TypedFormattingValue is one value interpolated into displayed text.
type TypedFormattingValue struct {
	Type  FormatType
	Value Operand
}

// FormattingValue is the ordered list of values interpolated into a string.
// On disk each value is preceded by a 0x00 byte and the list ends with
// 0xFF 0xFF.
type FormattingValue []TypedFormattingValue

func decodeTypedFormattingValue(r *Reader) (TypedFormattingValue, error) {
	tag, err := r.ReadUint8()
	if err != nil {
		return TypedFormattingValue{}, err
	}

	t := FormatType(tag)
	switch t {
	case FormatFloat:
		f, err := r.ReadFloat32()
		if err != nil {
			return TypedFormattingValue{}, err
		}
		return TypedFormattingValue{Type: t, Value: FloatOperand{Value: f}}, nil
	case FormatVariableName, FormatStringVariableName:
		s, err := decodeByteString(r)
		if err != nil {
			return TypedFormattingValue{}, err
		}
		return TypedFormattingValue{Type: t, Value: StringOperand{Value: s}}, nil
	case FormatString:
		s, err := decodeByteString(r)
		if err != nil {
			return TypedFormattingValue{}, err
		}
		return TypedFormattingValue{Type: t, Value: QuotedStringOperand{Value: s}}, nil
	}
	return TypedFormattingValue{}, r.Errorf("Invalid type byte for TypedFormattingValue")
}

func (v TypedFormattingValue) encode(w *Writer) {
	switch v.Type {
	case FormatFloat, FormatVariableName, FormatString, FormatStringVariableName:
	default:
		w.fail("cannot encode formatting value type %d", uint8(v.Type))
		return
	}
	if v.Value == nil {
		panic(ErrInvalidOperand)
	}
	if _, invalid := v.Value.(InvalidOperand); invalid {
		panic(ErrInvalidOperand)
	}
	if !v.Value.carries(v.Type.OperandType()) {
		w.fail("formatting value of type %s cannot hold %T", v.Type, v.Value)
		return
	}
	w.WriteUint8(uint8(v.Type))
	v.Value.encode(w)
}

func decodeFormattingValue(r *Reader) (FormattingValue, error) {
	var values FormattingValue
	for {
		b, err := r.ReadUint8()
		if err != nil {
			return nil, err
		}
		if b != 0 {
			if b != 0xff {
				return nil, r.Errorf("Invalid FormattingValue done sequence")
			}
			break
		}
		v, err := decodeTypedFormattingValue(r)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}

	b, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	if b != 0xff {
		return nil, r.Errorf("Invalid FormattingValue done sequence")
	}
	return values, nil
}

func (f FormattingValue) encode(w *Writer) {
	for _, v := range f {
		w.WriteUint8(0)
		v.encode(w)
	}
	w.WriteUint8(0xff)
	w.WriteUint8(0xff)
}
