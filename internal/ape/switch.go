package ape

import (
	"fmt"
	"strconv"
)

// SwitchCommandType identifies a switch statement. Values 0 to 21 are
// valid on disk.
type SwitchCommandType uint8

const (
	SwitchNoOp SwitchCommandType = iota
	SwitchIf
	SwitchSetFloat
	SwitchSetString
	SwitchGoto
	SwitchGoSub
	SwitchConsole
	SwitchEcho
	SwitchTarget
	SwitchPathTarget
	SwitchExtern
	SwitchWhile
	SwitchPlayAmbient
	SwitchLoopAmbient
	SwitchStopAmbient
	SwitchPlayScene
	SwitchLoopScene
	SwitchStopScene
	SwitchChainScripts
	SwitchCloseWindow
	SwitchLoadAPE
	SwitchSetFocus

	maxSwitchCommandType = SwitchSetFocus
)

// switchEndCode terminates a switch command list.
const switchEndCode = 69

var switchCommandNames = [...]string{
	"NoOpCommand", "IfCommand", "SetFloatCommand", "SetStringCommand",
	"GotoCommand", "GoSubCommand", "ConsoleCommand", "EchoCommand",
	"TargetCommand", "PathTargetCommand", "ExternCommand", "WhileCommand",
	"PlayAmbientCommand", "LoopAmbientCommand", "StopAmbientCommand",
	"PlaySceneCommand", "LoopSceneCommand", "StopSceneCommand",
	"ChainScriptsCommand", "CloseWindowCommand", "LoadAPECommand",
	"SetFocusCommand",
}

func (t SwitchCommandType) String() string {
	if int(t) < len(switchCommandNames) {
		return switchCommandNames[t]
	}
	return fmt.Sprintf("SwitchCommandType(%d)", uint8(t))
}

// IsControlFlow reports whether statements nest under t.
func (t SwitchCommandType) IsControlFlow() bool {
	return t == SwitchIf || t == SwitchWhile
}

// SwitchCommand is one switch statement. Every type shares the same payload;
// which fields are meaningful depends on Type.
type SwitchCommand struct {
	Type   SwitchCommandType
	Str    OptionalString
	Format FormattingValue
	Expr   OptionalExpression
}

// CCCommand is a switch command prefixed by its condition-control value.
// The value encodes the statement's position in the if/else/next tree.
type CCCommand struct {
	CC      uint64
	Command SwitchCommand
}

// CCBinary renders cc as a binary string, "0" for zero.
func CCBinary(cc uint64) string {
	return strconv.FormatUint(cc, 2)
}

// Switch is a labelled list of switch commands.
type Switch struct {
	Label    uint32
	Commands []CCCommand
}

func decodeSwitchCommands(r *Reader) ([]CCCommand, error) {
	var cmds []CCCommand
	for {
		cc, err := r.ReadUint64()
		if err != nil {
			return nil, err
		}
		code, err := r.ReadUint8()
		if err != nil {
			return nil, err
		}
		if code > uint8(maxSwitchCommandType) {
			if code != switchEndCode {
				return nil, r.Errorf("Invalid switch command code %d", code)
			}
			if cc != 0 {
				return nil, r.Errorf("Invalid cc code for end command")
			}
			return cmds, nil
		}

		cmd := SwitchCommand{Type: SwitchCommandType(code)}
		if cmd.Str, err = decodeOptionalString(r); err != nil {
			return nil, err
		}
		if cmd.Format, err = decodeFormattingValue(r); err != nil {
			return nil, err
		}
		if cmd.Expr, err = decodeOptionalExpression(r); err != nil {
			return nil, err
		}
		cmds = append(cmds, CCCommand{CC: cc, Command: cmd})
	}
}

func encodeSwitchCommands(w *Writer, cmds []CCCommand) {
	for _, c := range cmds {
		if c.Command.Type > maxSwitchCommandType {
			w.fail("cannot encode %s", c.Command.Type)
			return
		}
		w.WriteUint64(c.CC)
		w.WriteUint8(uint8(c.Command.Type))
		c.Command.Str.encode(w)
		c.Command.Format.encode(w)
		c.Command.Expr.encode(w)
	}
	w.WriteUint64(0)
	w.WriteUint8(switchEndCode)
}
