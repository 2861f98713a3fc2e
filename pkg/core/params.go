package core

import (
	"iter"
	"maps"
)

// Param is a single name/value pair of a request.
type Param struct {
	Key   string
	Value any
}

// Params is an ordered parameter set. Iteration follows insertion order and
// that order is the order parameters are encoded and signed in.
// A nil *Params behaves like an empty set for reads; writes need a non-nil
// set, either from NewParams or a zero Params value.
type Params struct {
	entries []Param
	index   map[string]int
}

// NewParams creates an empty parameter set.
func NewParams() *Params {
	return &Params{index: make(map[string]int)}
}

// ParamsOf creates a parameter set from pairs, keeping their order.
func ParamsOf(pairs ...Param) *Params {
	p := NewParams()
	for _, pair := range pairs {
		p.Set(pair.Key, pair.Value)
	}
	return p
}

// Set adds a parameter at the end, or replaces the value of an existing one in place.
// It panics on a nil *Params.
func (p *Params) Set(key string, value any) *Params {
	if i, ok := p.index[key]; ok {
		p.entries[i].Value = value
		return p
	}
	if p.index == nil {
		p.index = make(map[string]int)
	}
	p.index[key] = len(p.entries)
	p.entries = append(p.entries, Param{Key: key, Value: value})
	return p
}

// Get returns the value stored under key.
func (p *Params) Get(key string) (any, bool) {
	if p == nil {
		return nil, false
	}
	i, ok := p.index[key]
	if !ok {
		return nil, false
	}
	return p.entries[i].Value, true
}

// Has reports whether key is present.
func (p *Params) Has(key string) bool {
	_, ok := p.Get(key)
	return ok
}

// Delete removes key and reports whether it was present.
func (p *Params) Delete(key string) bool {
	if p == nil {
		return false
	}
	i, ok := p.index[key]
	if !ok {
		return false
	}
	p.entries = append(p.entries[:i], p.entries[i+1:]...)
	delete(p.index, key)
	for j := i; j < len(p.entries); j++ {
		p.index[p.entries[j].Key] = j
	}
	return true
}

// Len returns the number of parameters.
func (p *Params) Len() int {
	if p == nil {
		return 0
	}
	return len(p.entries)
}

// Keys returns the parameter names in insertion order.
func (p *Params) Keys() []string {
	if p == nil {
		return nil
	}
	keys := make([]string, len(p.entries))
	for i, e := range p.entries {
		keys[i] = e.Key
	}
	return keys
}

// All iterates over the parameters in insertion order.
func (p *Params) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		if p == nil {
			return
		}
		for _, e := range p.entries {
			if !yield(e.Key, e.Value) {
				return
			}
		}
	}
}

// Clone returns an independent copy. Cloning nil yields an empty set.
func (p *Params) Clone() *Params {
	c := NewParams()
	if p == nil {
		return c
	}
	c.entries = make([]Param, len(p.entries))
	copy(c.entries, p.entries)
	maps.Copy(c.index, p.index)
	return c
}
