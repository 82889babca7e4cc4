package ape

// MaxStringLength bounds the on-disk length prefix of a string, which counts
// the trailing NUL.
const MaxStringLength = 32768

// ByteString is an immutable run of raw bytes. The bytes are game text in a
// legacy code page and are not guaranteed to be valid UTF-8.
//
// On disk a ByteString is a u32 length (byte count plus one), the bytes, and
// a terminating NUL.
type ByteString string

// Bytes returns a copy of the raw bytes.
func (s ByteString) Bytes() []byte { return []byte(s) }

// Len returns the number of raw bytes, excluding the terminator.
func (s ByteString) Len() int { return len(s) }

func decodeByteString(r *Reader) (ByteString, error) {
	length, err := r.ReadUint32()
	if err != nil {
		return "", err
	}
	return decodeByteStringWithLength(r, length)
}

func decodeByteStringWithLength(r *Reader, length uint32) (ByteString, error) {
	if length == 0 || length > MaxStringLength {
		return "", r.Errorf("Invalid length of string")
	}
	b, err := r.take(int(length - 1))
	if err != nil {
		return "", err
	}
	s := ByteString(b)
	term, err := r.ReadUint8()
	if err != nil {
		return "", err
	}
	if term != 0 {
		return "", r.Errorf("String was not null-terminated")
	}
	return s, nil
}

func (s ByteString) encode(w *Writer) {
	if len(s)+1 > MaxStringLength {
		w.fail("string of %d bytes exceeds the %d byte limit", len(s), MaxStringLength-1)
		return
	}
	w.WriteUint32(uint32(len(s) + 1))
	w.WriteBytes([]byte(s))
	w.WriteUint8(0)
}

// OptionalString is a ByteString that may be absent. Absence is encoded as
// a zero length prefix and is distinct from a present empty string.
type OptionalString struct {
	Value ByteString
	Valid bool
}

// SomeString returns a present OptionalString.
func SomeString(s ByteString) OptionalString {
	return OptionalString{Value: s, Valid: true}
}

// Get returns the value and whether it is present.
func (o OptionalString) Get() (ByteString, bool) {
	return o.Value, o.Valid
}

func decodeOptionalString(r *Reader) (OptionalString, error) {
	length, err := r.ReadUint32()
	if err != nil {
		return OptionalString{}, err
	}
	if length == 0 {
		return OptionalString{}, nil
	}
	s, err := decodeByteStringWithLength(r, length)
	if err != nil {
		return OptionalString{}, err
	}
	return SomeString(s), nil
}

func (o OptionalString) encode(w *Writer) {
	if !o.Valid {
		w.WriteUint32(0)
		return
	}
	o.Value.encode(w)
}
