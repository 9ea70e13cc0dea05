package ddf

import (
	"fmt"
	"sync"

	errspkg "github.com/drblury/socketbus/internal/runtime/errors"
)

// Message is a typed value that knows its schema and how to write itself.
type Message interface {
	DDFDescriptor() *Descriptor
	EncodeDDF(w *Writer)
}

// Decoder is a typed value that can fill itself from a resolved view.
type Decoder interface {
	DDFDescriptor() *Descriptor
	DecodeDDF(v *View)
}

// Marshal encodes m with its own descriptor.
func Marshal(m Message) ([]byte, error) {
	w := NewWriter(m.DDFDescriptor())
	m.EncodeDDF(w)
	return w.Bytes()
}

// Unmarshal resolves payload against dst's descriptor and decodes it.
func Unmarshal(payload []byte, dst Decoder) error {
	v, err := ResolvePointers(dst.DDFDescriptor(), payload)
	if err != nil {
		return err
	}
	dst.DecodeDDF(v)
	return nil
}

// Registry indexes descriptors by name and name hash. Receivers that only see
// a descriptor name, such as a transport bridge, use it to restore identity.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Descriptor
	byHash map[uint64]*Descriptor
}

func NewRegistry(descriptors ...*Descriptor) (*Registry, error) {
	r := &Registry{
		byName: make(map[string]*Descriptor),
		byHash: make(map[uint64]*Descriptor),
	}
	if err := r.Register(descriptors...); err != nil {
		return nil, err
	}
	return r, nil
}

// Register adds descriptors. Registering the same *Descriptor twice is a
// no-op; a different descriptor under a taken name or hash is an error.
func (r *Registry) Register(descriptors ...*Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range descriptors {
		if existing, ok := r.byName[d.Name]; ok {
			if existing != d {
				return fmt.Errorf("ddf: descriptor %q already registered", d.Name)
			}
			continue
		}
		if existing, ok := r.byHash[d.NameHash]; ok {
			return fmt.Errorf("ddf: descriptor %q collides with %q", d.Name, existing.Name)
		}
		r.byName[d.Name] = d
		r.byHash[d.NameHash] = d
	}
	return nil
}

func (r *Registry) Lookup(name string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byName[name]
	return d, ok
}

func (r *Registry) LookupHash(h uint64) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byHash[h]
	return d, ok
}

// Resolve is Lookup returning ErrUnknownDescriptor for missing names.
func (r *Registry) Resolve(name string) (*Descriptor, error) {
	d, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", errspkg.ErrUnknownDescriptor, name)
	}
	return d, nil
}

// Names lists registered descriptor names in no particular order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	return names
}
