package cloudclient

import (
	"fmt"

	"github.com/artpar/cloudgate/pkg/xmldoc"
)

// PropertyKind is the facet carried by a typed property.
type PropertyKind string

const (
	PropertyRange  PropertyKind = "range"
	PropertyEnum   PropertyKind = "enum"
	PropertyScalar PropertyKind = "scalar"
)

// Range is the inclusive bounds of a range property, as declared.
type Range struct {
	From string
	To   string
}

// Property is a typed property of a resource (a hardware profile dimension).
type Property struct {
	Name string
	Unit string
	Kind PropertyKind
	// Declared is the kind attribute as sent by the server ("fixed", "range", ...).
	Declared string
	// Range is set for range properties that declare their bounds.
	Range *Range
	// Options holds the enum entries in document order.
	Options []string

	present bool
	raw     string
	number  float64
	numeric bool
}

// ResolveProperty parses a <property> element.
func ResolveProperty(el *xmldoc.Element) (*Property, error) {
	if el == nil || el.Name != "property" {
		return nil, fmt.Errorf("resolve property: not a <property> element")
	}
	name, _ := el.Attr("name")
	if name == "" {
		return nil, fmt.Errorf("resolve property: missing name")
	}

	declared, _ := el.Attr("kind")
	p := &Property{
		Name:     name,
		Unit:     el.AttrOr("unit", ""),
		Kind:     PropertyScalar,
		Declared: declared,
	}

	switch declared {
	case string(PropertyRange):
		p.Kind = PropertyRange
		if r := el.Child("range"); r != nil {
			p.Range = &Range{From: r.AttrOr("first", ""), To: r.AttrOr("last", "")}
		}
	case string(PropertyEnum):
		p.Kind = PropertyEnum
		for _, entry := range el.Find("enum/entry") {
			p.Options = append(p.Options, entry.AttrOr("value", ""))
		}
	}

	if v, ok := el.Attr("value"); ok {
		p.present = true
		p.raw = v
		p.number, p.numeric = coerceNumber(v)
	}
	return p, nil
}

// Present reports whether the property declared a value, even an empty one.
func (p *Property) Present() bool {
	return p.present
}

// Raw returns the declared value text.
func (p *Property) Raw() string {
	return p.raw
}

// Number returns the value when it is purely numeric.
func (p *Property) Number() (float64, bool) {
	return p.number, p.numeric
}

// Value returns the coerced value: float64, string, or nil when absent.
func (p *Property) Value() any {
	switch {
	case !p.present:
		return nil
	case p.numeric:
		return p.number
	default:
		return p.raw
	}
}

// Allows reports whether v fits the property's facet. Scalar properties
// accept only their own value.
func (p *Property) Allows(v string) bool {
	switch p.Kind {
	case PropertyEnum:
		for _, o := range p.Options {
			if o == v {
				return true
			}
		}
		return false
	case PropertyRange:
		if p.Range == nil {
			return true
		}
		n, ok := coerceNumber(v)
		lo, lok := coerceNumber(p.Range.From)
		hi, hok := coerceNumber(p.Range.To)
		return ok && lok && hok && n >= lo && n <= hi
	default:
		return v == p.raw
	}
}
