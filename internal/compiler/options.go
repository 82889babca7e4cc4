package compiler

import "fmt"

// MaxInlineSwitchHash is the largest hash accepted as an inline switch
// hash override.
const MaxInlineSwitchHash = 99999

// Options selects the script dialect and code generation behaviour. It is
// passed by value and never modified by the compiler.
type Options struct {
	// InputFileName tags diagnostics and, unless UseInlineSwitchHash is
	// set, seeds the inline switch hash.
	InputFileName string

	// Legacy toggles reproduce the older script compiler's grammar.
	LegacyTopLevelDirectives bool // skip garbage before the first '#'
	LegacyLabeledCommands    bool // switch goto takes the raw rest of the line; forces LegacyComments
	LegacyComments           bool // blank comments before tokenizing, even inside strings
	LegacyMacros             bool // textual `define NAME "value"` substitution
	LegacyCam                bool // cam name is read as a raw word
	LegacyPrecedence         bool // one precedence tier per operator
	LegacySetNaming          bool // set destination is a raw word up to '='

	AllowMalformedExprs       bool // demote type mismatches in expressions to warnings
	AllowExpFloatSyntax       bool // accept 1e5 style numbers
	AllowEscapesInExprStrings bool // decode \n \t \" \\ in expression string literals
	AllowEmptyConditionBlocks bool // accept `if (x) { }`

	Optimize bool // fold constants and drop constant conditions

	InlineSwitchHash    uint32
	UseInlineSwitchHash bool

	WarningsAsErrors bool
}

// Defaults returns the native dialect settings.
func Defaults() Options {
	return Options{
		AllowExpFloatSyntax:       true,
		AllowEscapesInExprStrings: true,
		AllowEmptyConditionBlocks: true,
	}
}

// LegacyOptions returns settings that reproduce the older compiler's
// output byte for byte.
func LegacyOptions() Options {
	o := Defaults()
	o.SetAllLegacyOptions()
	return o
}

// SetAllLegacyOptions switches every legacy toggle on and the extensions
// the older compiler lacked off.
func (o *Options) SetAllLegacyOptions() {
	o.LegacyTopLevelDirectives = true
	o.LegacyLabeledCommands = true
	o.LegacyComments = true
	o.LegacyMacros = true
	o.LegacyCam = true
	o.LegacyPrecedence = true
	o.LegacySetNaming = true
	o.AllowMalformedExprs = true
	o.AllowEscapesInExprStrings = false
	o.AllowEmptyConditionBlocks = false
	o.Optimize = false
}

// Validate reports option values the compiler cannot honour.
func (o Options) Validate() error {
	if o.UseInlineSwitchHash && o.InlineSwitchHash > MaxInlineSwitchHash {
		return fmt.Errorf("inline switch hash %d is out of range 0-%d", o.InlineSwitchHash, MaxInlineSwitchHash)
	}
	return nil
}

// effective applies the documented coupling between toggles.
func (o Options) effective() Options {
	if o.LegacyLabeledCommands {
		o.LegacyComments = true
	}
	return o
}
