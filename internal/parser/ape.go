package parser

import (
	"fmt"
	"os"

	"apetools/internal/ape"
	"apetools/internal/interpolation"
	"apetools/internal/textutil"
)

// APEParser handles compiled .ape files. Titles, bodies, choices and
// xyprint messages are extracted; everything else is left as is.
type APEParser struct {
	cs textutil.Charset
}

func NewAPEParser(cs textutil.Charset) *APEParser { return &APEParser{cs: cs} }

func (p *APEParser) CanParse(ext string) bool {
	return ext == ".ape"
}

type textSlot struct {
	window uint32
	index  int
	field  string
	text   *ape.ByteString
}

func (s textSlot) key() string {
	return fmt.Sprintf("%s/%s#%d", ape.FormatLabel(s.window), s.field, s.index)
}

// textSlots points at every dialogue string of f, in file order.
func textSlots(f *ape.File) []textSlot {
	var slots []textSlot
	for _, win := range f.Windows {
		for i, cmd := range win.Commands {
			slot := textSlot{window: win.ID, index: i}
			switch c := cmd.(type) {
			case *ape.FormattedStringCommand:
				slot.field, slot.text = "Body", &c.Text
				if c.Kind == ape.CodeTitle {
					slot.field = "Title"
				}
			case *ape.ChoiceCommand:
				slot.field, slot.text = "Choice", &c.Text
			case *ape.XYPrintFXCommand:
				slot.field, slot.text = "XYPrint", &c.Message
			default:
				continue
			}
			slots = append(slots, slot)
		}
	}
	return slots
}

func (p *APEParser) Parse(filePath string) (*ParseResult, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read ape file: %w", err)
	}
	f, err := ape.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filePath, err)
	}

	result := &ParseResult{FilePath: filePath, FileType: "ape", Raw: data}
	for _, slot := range textSlots(f) {
		text := p.cs.Decode(slot.text.Bytes())
		if !textutil.HasLetters(text) {
			continue
		}
		result.Texts = append(result.Texts, ExtractedText{
			Text:   text,
			File:   filePath,
			Key:    slot.key(),
			Column: slot.index,
			Context: map[string]string{
				"window": ape.FormatLabel(slot.window),
				"field":  slot.field,
			},
		})
	}
	return result, nil
}

func (p *APEParser) Reconstruct(result *ParseResult, translations map[string]string) ([]byte, error) {
	f, err := ape.Decode(result.Raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", result.FilePath, err)
	}

	for _, slot := range textSlots(f) {
		source := p.cs.Decode(slot.text.Bytes())
		translated, ok := translations[source]
		if !ok {
			continue
		}
		if err := interpolation.Verify(source, translated); err != nil {
			return nil, fmt.Errorf("%s: %w", slot.key(), err)
		}
		b, err := p.cs.Encode(translated)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", slot.key(), err)
		}
		*slot.text = ape.ByteString(b)
	}
	return f.Encode()
}
