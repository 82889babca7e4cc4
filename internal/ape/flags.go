package ape

import (
	"fmt"
	"math/bits"
)

type namedBit struct {
	bit  uint32
	name string
}

var windowFlagNames = []namedBit{
	{uint32(FlagPersist), "persist"},
	{uint32(FlagNoBackground), "nobackground"},
	{uint32(FlagNoScroll), "noscroll"},
	{uint32(FlagNoGrab), "nograb"},
	{uint32(FlagNoRelease), "norelease"},
	{uint32(FlagSubtitle), "subtitle"},
	{uint32(FlagPassive2D), "passive2d"},
	{uint32(FlagPassive), "passive"},
}

// WindowFlagByName maps a script flag keyword to its bit.
func WindowFlagByName(name string) (WindowFlags, bool) {
	for _, nb := range windowFlagNames {
		if nb.name == name {
			return WindowFlags(nb.bit), true
		}
	}
	return 0, false
}

// Names lists the known flags by keyword, then each remaining bit as
// UnknownFlag<n>.
func (f WindowFlags) Names() []string {
	rest := uint32(f)
	var names []string
	for _, nb := range windowFlagNames {
		if rest&nb.bit != 0 {
			rest &^= nb.bit
			names = append(names, nb.name)
		}
	}
	for rest != 0 {
		n := bits.TrailingZeros32(rest)
		names = append(names, fmt.Sprintf("UnknownFlag%d", n))
		rest &^= 1 << n
	}
	return names
}

// Names lists stretch, tile and solid, then any higher bits as a single
// Unknown(<value>) entry.
func (f ImageFlags) Names() []string {
	var names []string
	if f.Has(ImageStretch) {
		names = append(names, "stretch")
	}
	if f.Has(ImageTile) {
		names = append(names, "tile")
	}
	if f.Has(ImageSolid) {
		names = append(names, "solid")
	}
	if more := f &^ imageKnownFlags; more != 0 {
		names = append(names, fmt.Sprintf("Unknown(%d)", uint32(more)))
	}
	return names
}

// ColorHex renders a background colour the way scripts spell it: the four
// bytes lowest first, two hex digits each.
func ColorHex(c uint32) string {
	return fmt.Sprintf("%02x%02x%02x%02x", byte(c), byte(c>>8), byte(c>>16), byte(c>>24))
}
