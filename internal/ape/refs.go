package ape

import "sort"

// RefTarget says what kind of element a reference points at.
type RefTarget int

const (
	TargetSwitch RefTarget = iota
	TargetWindow
)

func (t RefTarget) String() string {
	if t == TargetSwitch {
		return "switch"
	}
	return "window"
}

// Reference is a label join from a window or switch to another element.
// Exactly one of FromWindow and FromSwitch is set.
type Reference struct {
	FromWindow uint32
	FromSwitch uint32
	Via        string
	Target     RefTarget
	Label      uint32
}

// References lists every label a file mentions, in file order. Switch
// references come from start/think/finish commands; window references come
// from choices, subwindows, next-window commands and switch gotos.
func (f *File) References() []Reference {
	var refs []Reference
	for _, win := range f.Windows {
		for _, cmd := range win.Commands {
			ref := Reference{FromWindow: win.ID, Via: cmd.Code().String()}
			switch c := cmd.(type) {
			case *SwitchRefCommand:
				ref.Target, ref.Label = TargetSwitch, c.Label
			case *ChoiceCommand:
				ref.Target, ref.Label = TargetWindow, c.Label
			case *SubWindowCommand:
				ref.Target, ref.Label = TargetWindow, c.Label
			case *SimpleStringCommand:
				if c.Kind != CodeNextWindow {
					continue
				}
				label, err := ParseLabel(string(c.Value))
				if err != nil {
					continue
				}
				ref.Target, ref.Label = TargetWindow, label
			default:
				continue
			}
			refs = append(refs, ref)
		}
	}

	for _, sw := range f.Switches {
		for _, c := range sw.Commands {
			if c.Command.Type != SwitchGoto && c.Command.Type != SwitchGoSub {
				continue
			}
			s, ok := c.Command.Str.Get()
			if !ok {
				continue
			}
			label, err := ParseLabel(string(s))
			if err != nil || label == 0 {
				continue
			}
			refs = append(refs, Reference{
				FromSwitch: sw.Label,
				Via:        c.Command.Type.String(),
				Target:     TargetWindow,
				Label:      label,
			})
		}
	}
	return refs
}

// RefReport is the result of checking a file's references against itself.
type RefReport struct {
	// MissingSwitches are switch references with no switch in the file.
	MissingSwitches []Reference
	// ExternalWindows are window references with no window in the file.
	// Windows are global at runtime, so these may resolve elsewhere.
	ExternalWindows []Reference
	// UnusedSwitches are switch labels nothing in the file refers to.
	UnusedSwitches []uint32
	// DuplicateWindows and DuplicateSwitches repeat an earlier label.
	DuplicateWindows  []uint32
	DuplicateSwitches []uint32
}

// CheckReferences resolves References against the file's own windows and
// switches. The codec never calls this; it is an inspection aid.
func (f *File) CheckReferences() RefReport {
	var report RefReport

	windows := make(map[uint32]bool, len(f.Windows))
	for _, w := range f.Windows {
		if windows[w.ID] {
			report.DuplicateWindows = append(report.DuplicateWindows, w.ID)
		}
		windows[w.ID] = true
	}
	switches := make(map[uint32]bool, len(f.Switches))
	for _, s := range f.Switches {
		if switches[s.Label] {
			report.DuplicateSwitches = append(report.DuplicateSwitches, s.Label)
		}
		switches[s.Label] = true
	}

	used := make(map[uint32]bool)
	for _, ref := range f.References() {
		switch ref.Target {
		case TargetSwitch:
			used[ref.Label] = true
			if !switches[ref.Label] {
				report.MissingSwitches = append(report.MissingSwitches, ref)
			}
		case TargetWindow:
			if !windows[ref.Label] {
				report.ExternalWindows = append(report.ExternalWindows, ref)
			}
		}
	}

	for label := range switches {
		if !used[label] {
			report.UnusedSwitches = append(report.UnusedSwitches, label)
		}
	}
	sort.Slice(report.UnusedSwitches, func(i, j int) bool {
		return report.UnusedSwitches[i] < report.UnusedSwitches[j]
	})
	return report
}
