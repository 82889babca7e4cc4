package compiler

import (
	"fmt"
	"strings"

	"apetools/internal/ape"
)

const maxInlineSwitches = 10000

// InlineSwitchHash derives the inline switch label block of a script from
// its file name. The directory and the last extension are ignored and
// letters are folded to lower case, so "DIR/Intro.TXT" and "intro.txt"
// agree. Only ASCII names are accepted.
func InlineSwitchHash(fileName string) (uint32, error) {
	base := fileName
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}

	var h uint32
	for i := 0; i < len(base); i++ {
		ch := base[i]
		if ch >= 0x80 {
			return 0, fmt.Errorf("file name %q for computing inline switch hash contained non-ASCII characters", fileName)
		}
		if ch >= 'A' && ch <= 'Z' {
			ch += 'a' - 'A'
		}
		h = (h&0x7ffffff)*31 + uint32(ch)
	}
	return h % (MaxInlineSwitchHash + 1), nil
}

// inlineIDs hands out labels for inline switches in source order.
type inlineIDs struct {
	next uint32
	hash uint32
}

func (g *inlineIDs) nextID() (uint32, bool) {
	if g.next == maxInlineSwitches {
		return 0, false
	}
	id := ape.InlineSwitchBase + g.hash*maxInlineSwitches + g.next
	g.next++
	return id, true
}
