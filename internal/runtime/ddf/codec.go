package ddf

import (
	"encoding/binary"
	"fmt"
	"math"

	errspkg "github.com/drblury/socketbus/internal/runtime/errors"
)

var order = binary.LittleEndian

// Writer builds a payload for one descriptor. Setters record the first error
// and turn into no-ops afterwards; Bytes reports it.
type Writer struct {
	desc   *Descriptor
	header []byte
	tail   []byte
	err    error
}

// NewWriter returns a writer with every field zeroed.
func NewWriter(d *Descriptor) *Writer {
	return &Writer{desc: d, header: make([]byte, d.Size)}
}

func (w *Writer) slot(name string, kind Kind) []byte {
	if w.err != nil {
		return nil
	}
	f, ok := w.desc.Field(name)
	if !ok {
		w.err = fmt.Errorf("ddf: %s has no field %q", w.desc.Name, name)
		return nil
	}
	if f.Kind != kind {
		w.err = fmt.Errorf("ddf: %s.%s is %s, not %s", w.desc.Name, name, f.Kind, kind)
		return nil
	}
	return w.header[f.Offset : f.Offset+kind.size()]
}

// PutInt32 sets an int32 field.
func (w *Writer) PutInt32(name string, v int32) *Writer {
	if b := w.slot(name, Int32); b != nil {
		order.PutUint32(b, uint32(v))
	}
	return w
}

// PutUint32 sets a uint32 field.
func (w *Writer) PutUint32(name string, v uint32) *Writer {
	if b := w.slot(name, Uint32); b != nil {
		order.PutUint32(b, v)
	}
	return w
}

// PutUint64 sets a uint64 field.
func (w *Writer) PutUint64(name string, v uint64) *Writer {
	if b := w.slot(name, Uint64); b != nil {
		order.PutUint64(b, v)
	}
	return w
}

// PutFloat32 sets a float32 field.
func (w *Writer) PutFloat32(name string, v float32) *Writer {
	if b := w.slot(name, Float32); b != nil {
		order.PutUint32(b, math.Float32bits(v))
	}
	return w
}

// PutBool sets a bool field stored as a uint32 0 or 1.
func (w *Writer) PutBool(name string, v bool) *Writer {
	if b := w.slot(name, Bool); b != nil {
		var n uint32
		if v {
			n = 1
		}
		order.PutUint32(b, n)
	}
	return w
}

// PutString appends s to the trailing data and points the field at it.
func (w *Writer) PutString(name string, s string) *Writer {
	b := w.slot(name, String)
	if b == nil || s == "" {
		return w
	}
	offset := uint64(w.desc.Size) + uint64(len(w.tail))
	if offset+uint64(len(s)) > math.MaxUint32 {
		w.err = fmt.Errorf("%w: %s.%s does not fit in 32-bit offsets", errspkg.ErrPayloadTooLarge, w.desc.Name, name)
		return w
	}
	order.PutUint32(b[:4], uint32(offset))
	order.PutUint32(b[4:], uint32(len(s)))
	w.tail = append(w.tail, s...)
	return w
}

// Bytes returns the header followed by the trailing data.
func (w *Writer) Bytes() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	out := make([]byte, 0, len(w.header)+len(w.tail))
	out = append(out, w.header...)
	return append(out, w.tail...), nil
}

// View reads a payload whose pointers have been checked by ResolvePointers.
// Getters return the zero value for fields the descriptor does not have.
type View struct {
	desc    *Descriptor
	payload []byte
}

// ResolvePointers validates payload against d. Every string field must point
// into the trailing data region of payload; anything else is rejected with
// ErrMalformedPayload.
func ResolvePointers(d *Descriptor, payload []byte) (*View, error) {
	if len(payload) < d.Size {
		return nil, fmt.Errorf("%w: %s needs %d header bytes, got %d", errspkg.ErrMalformedPayload, d.Name, d.Size, len(payload))
	}
	for _, f := range d.Fields {
		if f.Kind != String {
			continue
		}
		off := uint64(order.Uint32(payload[f.Offset:]))
		n := uint64(order.Uint32(payload[f.Offset+4:]))
		if n == 0 {
			continue
		}
		if off < uint64(d.Size) || off+n > uint64(len(payload)) {
			return nil, fmt.Errorf("%w: %s.%s points at [%d,%d) outside trailing data", errspkg.ErrMalformedPayload, d.Name, f.Name, off, off+n)
		}
	}
	return &View{desc: d, payload: payload}, nil
}

// Descriptor returns the schema the view was resolved against.
func (v *View) Descriptor() *Descriptor { return v.desc }

func (v *View) raw(name string, kind Kind) []byte {
	f, ok := v.desc.Field(name)
	if !ok || f.Kind != kind {
		return nil
	}
	return v.payload[f.Offset : f.Offset+kind.size()]
}

// Int32 reads an int32 field.
func (v *View) Int32(name string) int32 {
	if b := v.raw(name, Int32); b != nil {
		return int32(order.Uint32(b))
	}
	return 0
}

// Uint32 reads a uint32 field.
func (v *View) Uint32(name string) uint32 {
	if b := v.raw(name, Uint32); b != nil {
		return order.Uint32(b)
	}
	return 0
}

// Uint64 reads a uint64 field.
func (v *View) Uint64(name string) uint64 {
	if b := v.raw(name, Uint64); b != nil {
		return order.Uint64(b)
	}
	return 0
}

// Float32 reads a float32 field.
func (v *View) Float32(name string) float32 {
	if b := v.raw(name, Float32); b != nil {
		return math.Float32frombits(order.Uint32(b))
	}
	return 0
}

// Bool reads a bool field. Any non-zero value is true.
func (v *View) Bool(name string) bool {
	if b := v.raw(name, Bool); b != nil {
		return order.Uint32(b) != 0
	}
	return false
}

// String copies the field's trailing bytes out of the payload.
func (v *View) String(name string) string {
	b := v.raw(name, String)
	if b == nil {
		return ""
	}
	off := order.Uint32(b[:4])
	n := order.Uint32(b[4:])
	if n == 0 {
		return ""
	}
	return string(v.payload[off : off+n])
}
