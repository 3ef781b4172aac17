package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Fixed field lengths of the classic wire format.
const (
	// StringLength is the size of every wire string, right-padded with 0x20.
	StringLength = 64
	// ArrayLength is the size of every wire byte array, right-padded with 0x00.
	ArrayLength = 1024
)

// ErrShortRead is returned when a read runs past the end of a buffer.
var ErrShortRead = errors.New("short read")

// Buffer is a growable byte sequence with a read offset, holding one or
// more classic packets. All multi-byte integers are big-endian.
//
// The zero value is an empty buffer ready for writing.
type Buffer struct {
	data []byte
	off  int
}

// NewBuffer creates a buffer reading from data.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{data: data}
}

// Bytes returns the full underlying byte slice, including consumed bytes.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Len returns the total length of the buffer.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Remaining returns the number of unread bytes.
func (b *Buffer) Remaining() int {
	return len(b.data) - b.off
}

func (b *Buffer) need(n int, op string) error {
	if b.off+n > len(b.data) {
		return fmt.Errorf("%s at offset %d (len %d): %w", op, b.off, len(b.data), ErrShortRead)
	}
	return nil
}

// WriteByte appends a single unsigned byte.
func (b *Buffer) WriteByte(v byte) error {
	b.data = append(b.data, v)
	return nil
}

// WriteSByte appends a single signed byte.
func (b *Buffer) WriteSByte(v int8) {
	b.data = append(b.data, byte(v))
}

// WriteShort appends an int16 in big-endian order.
func (b *Buffer) WriteShort(v int16) {
	b.data = binary.BigEndian.AppendUint16(b.data, uint16(v))
}

// WriteString appends s as a StringLength-byte field: the UTF-8 bytes of s,
// truncated to StringLength, right-padded with ASCII spaces.
func (b *Buffer) WriteString(s string) {
	raw := []byte(s)
	if len(raw) > StringLength {
		raw = raw[:StringLength]
	}
	b.data = append(b.data, raw...)
	for i := len(raw); i < StringLength; i++ {
		b.data = append(b.data, 0x20)
	}
}

// WriteArray appends a as an ArrayLength-byte field, truncated to
// ArrayLength and right-padded with zero bytes.
func (b *Buffer) WriteArray(a []byte) {
	if len(a) > ArrayLength {
		a = a[:ArrayLength]
	}
	b.data = append(b.data, a...)
	for i := len(a); i < ArrayLength; i++ {
		b.data = append(b.data, 0x00)
	}
}

// WriteBytes appends raw bytes without padding.
func (b *Buffer) WriteBytes(p []byte) {
	b.data = append(b.data, p...)
}

// ReadByte consumes one unsigned byte.
func (b *Buffer) ReadByte() (byte, error) {
	if err := b.need(1, "ReadByte"); err != nil {
		return 0, err
	}
	v := b.data[b.off]
	b.off++
	return v, nil
}

// ReadSByte consumes one signed byte.
func (b *Buffer) ReadSByte() (int8, error) {
	v, err := b.ReadByte()
	return int8(v), err
}

// ReadShort consumes a big-endian int16.
func (b *Buffer) ReadShort() (int16, error) {
	if err := b.need(2, "ReadShort"); err != nil {
		return 0, err
	}
	v := int16(binary.BigEndian.Uint16(b.data[b.off:]))
	b.off += 2
	return v, nil
}

// ReadString consumes a StringLength-byte field and trims trailing spaces.
func (b *Buffer) ReadString() (string, error) {
	if err := b.need(StringLength, "ReadString"); err != nil {
		return "", err
	}
	raw := b.data[b.off : b.off+StringLength]
	b.off += StringLength

	end := len(raw)
	for end > 0 && raw[end-1] == 0x20 {
		end--
	}
	return string(raw[:end]), nil
}

// ReadArray consumes an ArrayLength-byte field and returns a copy.
func (b *Buffer) ReadArray() ([]byte, error) {
	if err := b.need(ArrayLength, "ReadArray"); err != nil {
		return nil, err
	}
	out := make([]byte, ArrayLength)
	copy(out, b.data[b.off:])
	b.off += ArrayLength
	return out, nil
}
