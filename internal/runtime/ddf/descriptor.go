// Package ddf encodes messages as a fixed-size header followed by
// variable-length string data. String fields in the header hold an offset and
// a length relative to the start of the payload, so a payload can be copied
// verbatim between buffers and resolved again on the receiving side.
package ddf

import (
	"fmt"

	"github.com/drblury/socketbus/internal/runtime/hashing"
)

// Kind is the wire type of a field.
type Kind uint8

const (
	Int32 Kind = iota + 1
	Uint32
	Uint64
	Float32
	Bool
	String
)

func (k Kind) String() string {
	switch k {
	case Int32:
		return "int32"
	case Uint32:
		return "uint32"
	case Uint64:
		return "uint64"
	case Float32:
		return "float32"
	case Bool:
		return "bool"
	case String:
		return "string"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// size is the number of header bytes a field of kind k occupies.
func (k Kind) size() int {
	switch k {
	case Uint64, String:
		return 8
	default:
		return 4
	}
}

func (k Kind) align() int {
	if k == Uint64 {
		return 8
	}
	return 4
}

// Field is one header slot. Offset is filled in by NewDescriptor.
type Field struct {
	Name   string
	Kind   Kind
	Offset int
}

// Descriptor is the schema of one message type. Two messages share a schema
// only when they carry the same *Descriptor.
type Descriptor struct {
	Name     string
	NameHash uint64
	// Size is the header size in bytes; trailing data starts here.
	Size   int
	Fields []Field

	index map[string]int
}

// NewDescriptor lays fields out in order with natural alignment. It panics on
// duplicate or unnamed fields, since descriptors are declared at init time.
func NewDescriptor(name string, fields ...Field) *Descriptor {
	d := &Descriptor{
		Name:     name,
		NameHash: hashing.String64(name),
		Fields:   make([]Field, len(fields)),
		index:    make(map[string]int, len(fields)),
	}
	offset := 0
	for i, f := range fields {
		if f.Name == "" {
			panic(fmt.Sprintf("ddf: %s: field %d has no name", name, i))
		}
		if _, dup := d.index[f.Name]; dup {
			panic(fmt.Sprintf("ddf: %s: duplicate field %q", name, f.Name))
		}
		if f.Kind < Int32 || f.Kind > String {
			panic(fmt.Sprintf("ddf: %s: field %q has invalid %s", name, f.Name, f.Kind))
		}
		offset = alignUp(offset, f.Kind.align())
		f.Offset = offset
		offset += f.Kind.size()
		d.Fields[i] = f
		d.index[f.Name] = i
	}
	d.Size = alignUp(offset, 8)
	return d
}

// DescriptorName makes *Descriptor usable as a bus message descriptor.
func (d *Descriptor) DescriptorName() string {
	return d.Name
}

// Field looks a field up by name.
func (d *Descriptor) Field(name string) (Field, bool) {
	i, ok := d.index[name]
	if !ok {
		return Field{}, false
	}
	return d.Fields[i], true
}

func (d *Descriptor) String() string {
	return fmt.Sprintf("ddf.Descriptor(%s, %d fields, %d bytes)", d.Name, len(d.Fields), d.Size)
}

func alignUp(n, a int) int {
	return (n + a - 1) &^ (a - 1)
}
