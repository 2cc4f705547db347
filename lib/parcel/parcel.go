// Copyright 2026 The Sensorlink Authors
// SPDX-License-Identifier: Apache-2.0

package parcel

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"
)

// ErrTruncated is returned when a read needs more bytes than remain.
var ErrTruncated = errors.New("parcel: truncated")

// maxLength bounds string and byte array lengths so a corrupt length
// prefix cannot trigger a huge allocation. Record blobs and topic
// names are far smaller.
const maxLength = 16 << 20

// UnreadError reports bytes left in a parcel after the reader was
// expected to have consumed all of it.
type UnreadError struct {
	Remaining int
}

func (e *UnreadError) Error() string {
	return fmt.Sprintf("parcel: %d unread bytes", e.Remaining)
}

// LengthError reports an impossible length prefix.
type LengthError struct {
	Length int32
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("parcel: invalid length prefix %d", e.Length)
}

// Writer appends values to a growing buffer. The zero value is ready
// to use.
type Writer struct {
	buffer []byte
}

// NewWriter returns a Writer with capacity for size bytes.
func NewWriter(size int) *Writer {
	return &Writer{buffer: make([]byte, 0, size)}
}

// Bytes returns the encoded parcel. The slice aliases the writer's
// buffer until the next write.
func (w *Writer) Bytes() []byte { return w.buffer }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buffer) }

func (w *Writer) WriteInt32(v int32) {
	w.buffer = binary.LittleEndian.AppendUint32(w.buffer, uint32(v))
}

func (w *Writer) WriteInt64(v int64) {
	w.buffer = binary.LittleEndian.AppendUint64(w.buffer, uint64(v))
}

func (w *Writer) WriteFloat32(v float32) {
	w.buffer = binary.LittleEndian.AppendUint32(w.buffer, math.Float32bits(v))
}

func (w *Writer) WriteByte(v byte) error {
	w.buffer = append(w.buffer, v)
	return nil
}

// WriteString writes a length-prefixed UTF-8 string.
func (w *Writer) WriteString(s string) {
	w.WriteInt32(int32(len(s)))
	w.buffer = append(w.buffer, s...)
}

// WriteNullString writes the absent-string marker.
func (w *Writer) WriteNullString() {
	w.WriteInt32(-1)
}

// WriteBytes writes a length-prefixed byte array. A nil slice is
// written as length -1 and reads back as nil; an empty non-nil slice
// reads back as empty.
func (w *Writer) WriteBytes(b []byte) {
	if b == nil {
		w.WriteInt32(-1)
		return
	}
	w.WriteInt32(int32(len(b)))
	w.buffer = append(w.buffer, b...)
}

// Reader consumes values from a parcel in write order.
type Reader struct {
	data   []byte
	offset int
}

// NewReader returns a Reader over data. The reader does not copy
// data; byte arrays it returns are copies.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.offset }

// Finish returns an *UnreadError if any bytes are left.
func (r *Reader) Finish() error {
	if remaining := r.Remaining(); remaining != 0 {
		return &UnreadError{Remaining: remaining}
	}
	return nil
}

func (r *Reader) take(n int) ([]byte, error) {
	if n > r.Remaining() {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncated, n, r.offset, r.Remaining())
	}
	chunk := r.data[r.offset : r.offset+n]
	r.offset += n
	return chunk, nil
}

func (r *Reader) ReadInt32() (int32, error) {
	chunk, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(chunk)), nil
}

func (r *Reader) ReadInt64() (int64, error) {
	chunk, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(chunk)), nil
}

func (r *Reader) ReadFloat32() (float32, error) {
	chunk, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(chunk)), nil
}

func (r *Reader) ReadByte() (byte, error) {
	chunk, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return chunk[0], nil
}

// readLength reads a length prefix. ok is false for the -1 marker.
func (r *Reader) readLength() (length int, ok bool, err error) {
	raw, err := r.ReadInt32()
	if err != nil {
		return 0, false, err
	}
	if raw == -1 {
		return 0, false, nil
	}
	if raw < -1 || raw > maxLength {
		return 0, false, &LengthError{Length: raw}
	}
	return int(raw), true, nil
}

// ReadString reads a length-prefixed string. An absent string reads
// as "" with present false.
func (r *Reader) ReadString() (value string, present bool, err error) {
	length, present, err := r.readLength()
	if err != nil || !present {
		return "", false, err
	}
	chunk, err := r.take(length)
	if err != nil {
		return "", false, err
	}
	if !utf8.Valid(chunk) {
		return "", false, errors.New("parcel: string is not valid UTF-8")
	}
	return string(chunk), true, nil
}

// ReadBytes reads a length-prefixed byte array.
func (r *Reader) ReadBytes() ([]byte, error) {
	length, present, err := r.readLength()
	if err != nil || !present {
		return nil, err
	}
	chunk, err := r.take(length)
	if err != nil {
		return nil, err
	}
	return append([]byte{}, chunk...), nil
}
