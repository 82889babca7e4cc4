package decompile

import (
	"fmt"

	"apetools/internal/ape"
)

// Statement is a switch command placed in its block structure. Only if and
// while statements have children; only if has an Else block.
type Statement struct {
	CC      uint64
	Command ape.SwitchCommand
	Then    []*Statement
	Else    []*Statement
}

type chained struct {
	stmt              *Statement
	then, els, follow *chained
}

// Statements rebuilds the block structure of a switch from the cc values
// of its commands. A command at cc c is followed by c<<2+3 and owns the
// blocks starting at c<<2+1 and c<<2+2.
func Statements(cmds []ape.CCCommand) ([]*Statement, error) {
	nodes := make(map[uint64]*chained, len(cmds))
	for _, c := range cmds {
		if _, dup := nodes[c.CC]; dup {
			return nil, fmt.Errorf("cc %s appears twice", ape.CCBinary(c.CC))
		}
		nodes[c.CC] = &chained{stmt: &Statement{CC: c.CC, Command: c.Command}}
	}

	for _, c := range cmds {
		if c.CC == 1 {
			continue
		}
		parent, ok := nodes[c.CC>>2]
		if !ok {
			return nil, fmt.Errorf("cc %s has no parent statement", ape.CCBinary(c.CC))
		}
		node := nodes[c.CC]
		var slot **chained
		switch c.CC & 3 {
		case 1:
			slot = &parent.then
		case 2:
			slot = &parent.els
		case 3:
			slot = &parent.follow
		default:
			return nil, fmt.Errorf("invalid cc %s", ape.CCBinary(c.CC))
		}
		*slot = node
	}

	root, ok := nodes[1]
	if !ok {
		if len(cmds) == 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("switch has no first statement")
	}
	return flatten(root)
}

func flatten(n *chained) ([]*Statement, error) {
	var out []*Statement
	for ; n != nil; n = n.follow {
		s := n.stmt
		control := s.Command.Type.IsControlFlow()

		switch {
		case control && n.then == nil:
			return nil, fmt.Errorf("cc %s: %s block is empty", ape.CCBinary(s.CC), s.Command.Type)
		case control && !s.Command.Expr.Present():
			return nil, fmt.Errorf("cc %s: %s has no condition", ape.CCBinary(s.CC), s.Command.Type)
		case !control && (n.then != nil || n.els != nil):
			return nil, fmt.Errorf("cc %s: %s has nested statements", ape.CCBinary(s.CC), s.Command.Type)
		case s.Command.Type == ape.SwitchWhile && n.els != nil:
			return nil, fmt.Errorf("cc %s: while has an else block", ape.CCBinary(s.CC))
		}

		var err error
		if s.Then, err = flatten(n.then); err != nil {
			return nil, err
		}
		if s.Else, err = flatten(n.els); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
