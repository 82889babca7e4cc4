package ape

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrInvalidOperand is the panic value raised when an InvalidOperand reaches
// the encoder. It marks a model that was constructed but never filled in.
var ErrInvalidOperand = errors.New("ape: invalid operand cannot be encoded")

// DecodeError reports malformed binary input.
type DecodeError struct {
	// Offset is the stream position where the last read ended.
	Offset int
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s, last read ended at %d", e.Reason, e.Offset)
}

// Reader is a forward-only little-endian cursor over an in-memory file.
type Reader struct {
	buf []byte
	off int
}

// NewReader creates a Reader positioned at the start of buf.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int { return r.off }

// AtEOF reports whether every byte has been consumed.
func (r *Reader) AtEOF() bool { return r.off == len(r.buf) }

// Errorf builds a DecodeError at the current offset.
func (r *Reader) Errorf(format string, args ...any) error {
	return &DecodeError{Offset: r.off, Reason: fmt.Sprintf(format, args...)}
}

func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || len(r.buf)-r.off < n {
		return nil, &DecodeError{
			Offset: r.off,
			Reason: fmt.Sprintf("Failed to read %d bytes at file position %d", n, r.off),
		}
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

// ReadBytes returns a copy of the next n bytes.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	b, err := r.take(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

func (r *Reader) ReadUint8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) ReadUint64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// ExpectUint32 consumes a u32 and fails unless it equals want.
func (r *Reader) ExpectUint32(want uint32) error {
	start := r.off
	v, err := r.ReadUint32()
	if err != nil {
		return err
	}
	if v != want {
		return r.Errorf("Expected U32 value %d at position %d but value was %d", want, start, v)
	}
	return nil
}

// ExpectUint64 consumes a u64 and fails unless it equals want.
func (r *Reader) ExpectUint64(want uint64) error {
	start := r.off
	v, err := r.ReadUint64()
	if err != nil {
		return err
	}
	if v != want {
		return r.Errorf("Expected U64 value %d at position %d but value was %d", want, start, v)
	}
	return nil
}

// Writer accumulates little-endian output. The first failure sticks and is
// returned by Err; later writes are ignored.
type Writer struct {
	buf []byte
	err error
}

// NewWriter creates an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the encoded output.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written.
func (w *Writer) Len() int { return len(w.buf) }

// Err returns the first encoding failure, if any.
func (w *Writer) Err() error { return w.err }

func (w *Writer) fail(format string, args ...any) {
	if w.err == nil {
		w.err = fmt.Errorf(format, args...)
	}
}

func (w *Writer) WriteUint8(v uint8) {
	if w.err == nil {
		w.buf = append(w.buf, v)
	}
}

func (w *Writer) WriteUint16(v uint16) {
	if w.err == nil {
		w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
	}
}

func (w *Writer) WriteUint32(v uint32) {
	if w.err == nil {
		w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
	}
}

func (w *Writer) WriteUint64(v uint64) {
	if w.err == nil {
		w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
	}
}

func (w *Writer) WriteFloat32(v float32) {
	w.WriteUint32(math.Float32bits(v))
}

func (w *Writer) WriteBytes(b []byte) {
	if w.err == nil {
		w.buf = append(w.buf, b...)
	}
}
