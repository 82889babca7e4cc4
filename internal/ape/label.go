package ape

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	labelLowLimit  = 10000
	labelHighLimit = 100000

	// InlineSwitchBase is the first label reserved for switches generated
	// from inline blocks.
	InlineSwitchBase uint32 = 1000000000
)

var (
	ErrLabelTooLarge    = errors.New("Label part was too large")
	ErrLabelNotIntegral = errors.New("Label part was not an integral")
)

// MakeLabel combines the two halves of a "high:low" label.
func MakeLabel(high, low uint64) (uint32, error) {
	if high >= labelHighLimit || low >= labelLowLimit {
		return 0, ErrLabelTooLarge
	}
	return uint32(high*labelLowLimit + low), nil
}

// ParseLabel parses "high:low". Surrounding spaces are ignored.
func ParseLabel(s string) (uint32, error) {
	high, low, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("label %q has no ':'", s)
	}
	h, err := strconv.ParseUint(high, 10, 64)
	if err != nil {
		return 0, ErrLabelNotIntegral
	}
	l, err := strconv.ParseUint(low, 10, 64)
	if err != nil {
		return 0, ErrLabelNotIntegral
	}
	return MakeLabel(h, l)
}

// FormatLabel renders a label as "high:low".
func FormatLabel(label uint32) string {
	return fmt.Sprintf("%d:%d", label/labelLowLimit, label%labelLowLimit)
}

// IsInlineLabel reports whether label belongs to a compiler generated
// inline switch.
func IsInlineLabel(label uint32) bool {
	return label >= InlineSwitchBase
}
