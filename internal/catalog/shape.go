package catalog

import (
	"math"

	"apetools/internal/ape"
)

// shapeCodes are the window command codes counted by Shape, one vector
// dimension each. EndCommand never appears in a decoded window.
var shapeCodes = [...]ape.CommandCode{
	ape.CodeStartSwitch, ape.CodeThinkSwitch, ape.CodeFinishSwitch,
	ape.CodeStartConsole, ape.CodeBody, ape.CodeChoice, ape.CodeBackground,
	ape.CodeFont, ape.CodeDimensions, ape.CodeSubWindow, ape.CodeImage,
	ape.CodeFlags, ape.CodeCam, ape.CodeFinishConsole, ape.CodeNextWindow,
	ape.CodeXYPrintFX, ape.CodeTitle, ape.CodeStyle, ape.CodeTalk,
}

// ShapeDimensions is the length of every Shape vector.
const ShapeDimensions = len(shapeCodes) + 2

// Shape summarizes a window's structure as a unit-length vector: one
// count per command code, then the number of conditional commands and the
// total dialogue length in kilobytes. Windows built the same way land near
// each other whatever their text says.
func Shape(win ape.Window) []float32 {
	index := make(map[ape.CommandCode]int, len(shapeCodes))
	for i, c := range shapeCodes {
		index[c] = i
	}

	v := make([]float32, ShapeDimensions)
	conditional := len(shapeCodes)
	textKB := conditional + 1
	for _, cmd := range win.Commands {
		if i, ok := index[cmd.Code()]; ok {
			v[i]++
		}
		switch c := cmd.(type) {
		case *ape.FormattedStringCommand:
			if c.Condition.Present() {
				v[conditional]++
			}
			v[textKB] += float32(c.Text.Len()) / 1024
		case *ape.ChoiceCommand:
			if c.Condition.Present() {
				v[conditional]++
			}
			v[textKB] += float32(c.Text.Len()) / 1024
		case *ape.ImageCommand:
			if c.Condition.Present() {
				v[conditional]++
			}
		case *ape.XYPrintFXCommand:
			if c.Condition.Present() {
				v[conditional]++
			}
			v[textKB] += float32(c.Message.Len()) / 1024
		}
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}
