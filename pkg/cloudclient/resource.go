package cloudclient

import (
	"context"
	"strings"
)

// Kind identifies what a Value holds.
type Kind int

const (
	KindAbsent Kind = iota
	KindText
	KindNumber
	KindProperty
	KindAddresses
	KindReference
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindProperty:
		return "property"
	case KindAddresses:
		return "addresses"
	case KindReference:
		return "reference"
	default:
		return "absent"
	}
}

// Value is one attribute of a Resource. The zero Value is absent.
type Value struct {
	kind      Kind
	raw       string
	number    float64
	property  *Property
	addresses []string
	ref       *Reference
}

// Kind reports what the value holds.
func (v Value) Kind() Kind { return v.kind }

// Present reports whether the value exists.
func (v Value) Present() bool { return v.kind != KindAbsent }

// String returns the text the value was read from. Addresses are joined by
// commas, references yield their id.
func (v Value) String() string {
	switch v.kind {
	case KindProperty:
		return v.property.Raw()
	case KindAddresses:
		return strings.Join(v.addresses, ",")
	case KindReference:
		return v.ref.ID
	default:
		return v.raw
	}
}

// Number returns the numeric value of a number scalar or numeric property.
func (v Value) Number() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.number, true
	case KindProperty:
		return v.property.Number()
	}
	return 0, false
}

// Property returns the typed property.
func (v Value) Property() (*Property, bool) {
	return v.property, v.kind == KindProperty
}

// Addresses returns a copy of an address list.
func (v Value) Addresses() ([]string, bool) {
	if v.kind != KindAddresses {
		return nil, false
	}
	return append([]string(nil), v.addresses...), true
}

// Reference returns the lazy reference.
func (v Value) Reference() (*Reference, bool) {
	return v.ref, v.kind == KindReference
}

// Interface returns float64, string, *Property, []string, *Reference or nil.
func (v Value) Interface() any {
	switch v.kind {
	case KindText:
		return v.raw
	case KindNumber:
		return v.number
	case KindProperty:
		return v.property
	case KindAddresses:
		return append([]string(nil), v.addresses...)
	case KindReference:
		return v.ref
	}
	return nil
}

// Reference is a deferred pointer to another resource.
type Reference struct {
	Relation string
	ID       string
	URI      string

	client *Client
}

// Resolve fetches the referenced resource. The holder is not modified.
func (r *Reference) Resolve(ctx context.Context) (*Resource, error) {
	a, err := r.client.Accessor(r.Relation)
	if err != nil {
		return nil, err
	}
	return a.Get(ctx, r.ID)
}

// Resource is a materialized server element. Every fetch produces a fresh,
// independent Resource.
type Resource struct {
	ID  string
	URI string

	relation string
	client   *Client
	attrs    map[string]Value
	order    []string
	actions  []*Action
	gone     bool
}

// Relation returns the plural relation the resource was fetched through.
func (r *Resource) Relation() string {
	return r.relation
}

// Attr returns a named attribute. A missing attribute yields the absent
// Value and a schema-degradation diagnostic; it is never an error.
func (r *Resource) Attr(name string) (Value, bool) {
	v, ok := r.attrs[name]
	if !ok {
		r.client.schemaDegraded(r, name)
		return Value{}, false
	}
	return v, true
}

// Has reports whether the attribute exists, without diagnostics.
func (r *Resource) Has(name string) bool {
	_, ok := r.attrs[name]
	return ok
}

// Names returns attribute names in document order.
func (r *Resource) Names() []string {
	return append([]string(nil), r.order...)
}

// Text returns the text of an attribute.
func (r *Resource) Text(name string) (string, bool) {
	v, ok := r.Attr(name)
	if !ok {
		return "", false
	}
	return v.String(), true
}

// Number returns a numeric attribute.
func (r *Resource) Number(name string) (float64, bool) {
	v, ok := r.Attr(name)
	if !ok {
		return 0, false
	}
	return v.Number()
}

// Property returns a typed property by its declared name.
func (r *Resource) Property(name string) (*Property, bool) {
	v, ok := r.Attr(name)
	if !ok {
		return nil, false
	}
	return v.Property()
}

// Properties returns every typed property in document order.
func (r *Resource) Properties() []*Property {
	var out []*Property
	for _, name := range r.order {
		if p, ok := r.attrs[name].Property(); ok {
			out = append(out, p)
		}
	}
	return out
}

// Addresses returns an address list attribute.
func (r *Resource) Addresses(name string) ([]string, bool) {
	v, ok := r.Attr(name)
	if !ok {
		return nil, false
	}
	return v.Addresses()
}

// Reference returns a lazy reference attribute.
func (r *Resource) Reference(name string) (*Reference, bool) {
	v, ok := r.Attr(name)
	if !ok {
		return nil, false
	}
	return v.Reference()
}

// References returns every lazy reference in document order.
func (r *Resource) References() []*Reference {
	var out []*Reference
	for _, name := range r.order {
		if ref, ok := r.attrs[name].Reference(); ok {
			out = append(out, ref)
		}
	}
	return out
}

// State returns the last observed state.
func (r *Resource) State() (string, bool) {
	v, ok := r.attrs["state"]
	if !ok {
		return "", false
	}
	return v.String(), true
}

// Gone reports whether the resource disappeared after an action.
func (r *Resource) Gone() bool {
	return r.gone
}

func (r *Resource) set(name string, v Value) {
	if _, exists := r.attrs[name]; !exists {
		r.order = append(r.order, name)
	}
	r.attrs[name] = v
}

func (r *Resource) unset(name string) {
	if _, exists := r.attrs[name]; !exists {
		return
	}
	delete(r.attrs, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (c *Client) schemaDegraded(r *Resource, attr string) {
	c.logger.Warn().
		Str("relation", r.relation).
		Str("id", r.ID).
		Str("attribute", attr).
		Msg("attribute not present in resource")
	if c.metrics != nil {
		c.metrics.SchemaDegradations.WithLabelValues(r.relation).Inc()
	}
}
