package ape

const (
	headerMagic    uint32 = 317
	headerVersion  uint32 = 0xffffffff
	switchesMarker uint32 = 0xfffffffe
)

// File is a decoded APE script: windows followed by the switches section.
type File struct {
	Windows  []Window
	Switches []Switch
}

// Layout records where each window and switch body starts in the encoded
// stream, measured just after its id or label.
type Layout struct {
	Windows  []int
	Switches []int
}

// Decode parses a complete APE file. Trailing bytes are an error.
func Decode(data []byte) (*File, error) {
	f, _, err := DecodeWithLayout(data)
	return f, err
}

// DecodeWithLayout parses like Decode and also returns body offsets.
func DecodeWithLayout(data []byte) (*File, *Layout, error) {
	r := NewReader(data)

	magic, err := r.ReadUint32()
	if err != nil {
		return nil, nil, err
	}
	version, err := r.ReadUint32()
	if err != nil {
		return nil, nil, err
	}
	// Both words must match; a file with only one right is not an APE file.
	if magic != headerMagic || version != headerVersion {
		return nil, nil, r.Errorf("Header is invalid")
	}

	f := &File{}
	layout := &Layout{}

	for {
		id, err := r.ReadUint32()
		if err != nil {
			return nil, nil, err
		}
		if id == 0 {
			break
		}
		layout.Windows = append(layout.Windows, r.Offset())
		cmds, err := decodeWindowCommands(r)
		if err != nil {
			return nil, nil, err
		}
		f.Windows = append(f.Windows, Window{ID: id, Commands: cmds})
	}

	marker, err := r.ReadUint32()
	if err != nil {
		return nil, nil, err
	}
	if marker != switchesMarker {
		return nil, nil, r.Errorf("Unexpected switch tag ID")
	}

	// The section ends with a zero label. Files that stop right after the
	// last switch are accepted too.
	for !r.AtEOF() {
		label, err := r.ReadUint32()
		if err != nil {
			return nil, nil, err
		}
		if label == 0 {
			break
		}
		layout.Switches = append(layout.Switches, r.Offset())
		cmds, err := decodeSwitchCommands(r)
		if err != nil {
			return nil, nil, err
		}
		f.Switches = append(f.Switches, Switch{Label: label, Commands: cmds})
	}

	if !r.AtEOF() {
		return nil, nil, r.Errorf("Unexpected trailing data")
	}
	return f, layout, nil
}

// Encode serializes f. It returns an error when a field cannot be
// represented, such as an over-long string or a zero window id. Encoding an
// InvalidOperand panics.
func (f *File) Encode() ([]byte, error) {
	w := NewWriter()
	w.WriteUint32(headerMagic)
	w.WriteUint32(headerVersion)

	for _, win := range f.Windows {
		if win.ID == 0 {
			w.fail("window id 0 is reserved for the section terminator")
			break
		}
		w.WriteUint32(win.ID)
		for _, cmd := range win.Commands {
			encodeWindowCommand(w, cmd)
		}
		w.WriteUint8(uint8(CodeEnd))
	}
	w.WriteUint32(0)
	w.WriteUint32(switchesMarker)

	for _, sw := range f.Switches {
		if sw.Label == 0 {
			w.fail("switch label 0 is reserved for the section terminator")
			break
		}
		w.WriteUint32(sw.Label)
		encodeSwitchCommands(w, sw.Commands)
	}
	w.WriteUint32(0)

	if err := w.Err(); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// SwitchByLabel returns the switch with the given label.
func (f *File) SwitchByLabel(label uint32) (*Switch, bool) {
	for i := range f.Switches {
		if f.Switches[i].Label == label {
			return &f.Switches[i], true
		}
	}
	return nil, false
}
