package cloudclient

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/artpar/cloudgate/pkg/xmldoc"
)

var numericPattern = regexp.MustCompile(`^[0-9.]+$`)

// coerceNumber parses trimmed text that consists only of digits and dots.
// Text such as "1.2.3" matches the pattern but is not a number and stays text.
func coerceNumber(text string) (float64, bool) {
	text = strings.TrimSpace(text)
	if !numericPattern.MatchString(text) {
		return 0, false
	}
	n, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Materialize converts one resource element into a Resource. Each immediate
// child is resolved in order:
//
//   - a name whose plural is a resource relation becomes a lazy Reference
//   - <actions> becomes the action table
//   - <property> becomes a typed Property keyed by its declared name
//   - <public_addresses> and <private_addresses> become address lists
//   - anything else is a scalar, numeric when its text is purely numeric
func (c *Client) Materialize(relation string, el *xmldoc.Element) (*Resource, error) {
	if el == nil {
		return nil, fmt.Errorf("%w: nil element", ErrMalformedDocument)
	}

	r := &Resource{
		ID:       el.AttrOr("id", ""),
		URI:      el.AttrOr("href", ""),
		relation: relation,
		client:   c,
		attrs:    make(map[string]Value),
	}

	for _, child := range el.Children {
		switch {
		case c.hasResourceRelation(child.Name + "s"):
			if ref := c.reference(child); ref != nil {
				r.set(child.Name, Value{kind: KindReference, raw: ref.ID, ref: ref})
				continue
			}
			r.set(child.Name, scalar(child))

		case child.Name == "actions":
			r.actions = c.bindActions(r, child)

		case child.Name == "property":
			p, err := ResolveProperty(child)
			if err != nil {
				c.logger.Warn().Err(err).Str("relation", relation).Str("id", r.ID).Msg("skipping property")
				continue
			}
			r.set(p.Name, Value{kind: KindProperty, raw: p.Raw(), property: p})

		case child.Name == "public_addresses" || child.Name == "private_addresses":
			var addrs []string
			for _, a := range child.ChildrenNamed("address") {
				addrs = append(addrs, a.TextTrimmed())
			}
			r.set(child.Name, Value{kind: KindAddresses, addresses: addrs})

		default:
			r.set(child.Name, scalar(child))
		}
	}
	return r, nil
}

// reference builds a lazy reference from <image id=".." href=".."/>. The id
// falls back to the trailing segment of href. Without either it is nil.
func (c *Client) reference(el *xmldoc.Element) *Reference {
	rel := el.Name + "s"
	ref := &Reference{
		Relation: rel,
		ID:       el.AttrOr("id", ""),
		URI:      el.AttrOr("href", ""),
		client:   c,
	}
	if ref.ID == "" && ref.URI != "" {
		if a, err := c.Accessor(rel); err == nil {
			ref.ID, _ = a.IDFromURL(ref.URI)
		}
	}
	if ref.ID == "" {
		return nil
	}
	return ref
}

func scalar(el *xmldoc.Element) Value {
	text := el.TextTrimmed()
	if n, ok := coerceNumber(text); ok {
		return Value{kind: KindNumber, raw: text, number: n}
	}
	return Value{kind: KindText, raw: text}
}
