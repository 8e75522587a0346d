package processor

import (
	"fmt"
	"sort"
)

// Registry maps message types to processors. It is built once and only
// read afterwards, so lookups need no locking.
type Registry struct {
	items map[uint16]Processor
}

// Entry describes one registered processor.
type Entry struct {
	MTI  string `json:"mti"`
	Name string `json:"name"`
}

// NewRegistry registers every processor or fails on the first nil or
// duplicate type.
func NewRegistry(procs ...Processor) (*Registry, error) {
	r := &Registry{items: make(map[uint16]Processor, len(procs))}
	for _, p := range procs {
		if p == nil {
			return nil, ErrNilProcessor
		}
		mti := p.MessageType()
		if _, ok := r.items[mti]; ok {
			return nil, fmt.Errorf("%w: %04X", ErrDuplicateType, mti)
		}
		r.items[mti] = p
	}
	return r, nil
}

// DefaultRegistry wires the authorization, financial and network management
// processors.
func DefaultRegistry(codec ResponseBuilder) *Registry {
	r, err := NewRegistry(
		NewAuthorization(codec),
		NewFinancial(codec),
		NewNetworkManagement(codec),
	)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Lookup(mti uint16) (Processor, bool) {
	p, ok := r.items[mti]
	return p, ok
}

func (r *Registry) Has(mti uint16) bool {
	_, ok := r.items[mti]
	return ok
}

func (r *Registry) Len() int {
	return len(r.items)
}

// Types returns the registered message types in ascending order.
func (r *Registry) Types() []uint16 {
	out := make([]uint16, 0, len(r.items))
	for mti := range r.items {
		out = append(out, mti)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Entries lists the registry in type order for display.
func (r *Registry) Entries() []Entry {
	types := r.Types()
	out := make([]Entry, 0, len(types))
	for _, mti := range types {
		name := fmt.Sprintf("%T", r.items[mti])
		if named, ok := r.items[mti].(interface{ Name() string }); ok && named.Name() != "" {
			name = named.Name()
		}
		out = append(out, Entry{MTI: fmt.Sprintf("%04X", mti), Name: name})
	}
	return out
}
