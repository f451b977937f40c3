package cloudclient

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// nonResourceRelations are advertised relations that do not serve resources.
var nonResourceRelations = map[string]bool{
	"instance_states": true,
}

// Accessor fetches the resources of one relation.
type Accessor struct {
	client    *Client
	relation  string
	singular  string
	url       string
	idFromURL *regexp.Regexp
}

// Singular returns the singular form of a relation name.
func Singular(relation string) string {
	return strings.TrimSuffix(relation, "s")
}

func (c *Client) buildAccessors(ep *EntryPoint) {
	c.accessors = nil
	c.byName = make(map[string]*Accessor)
	for _, rel := range ep.relations {
		if nonResourceRelations[rel] {
			continue
		}
		a := &Accessor{
			client:    c,
			relation:  rel,
			singular:  Singular(rel),
			url:       ep.urls[rel],
			idFromURL: regexp.MustCompile(`/` + regexp.QuoteMeta(rel) + `/([^/?#]+)/?(?:[?#].*)?$`),
		}
		c.accessors = append(c.accessors, a)
		c.byName[a.relation] = a
		if _, taken := c.byName[a.singular]; !taken {
			c.byName[a.singular] = a
		}
	}
}

// Accessors returns one accessor per resource relation, in document order.
func (c *Client) Accessors() []*Accessor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Accessor(nil), c.accessors...)
}

// Accessor looks up the accessor for a relation by plural or singular name.
func (c *Client) Accessor(name string) (*Accessor, error) {
	c.mu.Lock()
	a, ok := c.byName[name]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRelation, name)
	}
	return a, nil
}

// hasResourceRelation reports whether rel is served by an accessor.
func (c *Client) hasResourceRelation(rel string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.byName[rel]
	return ok && a.relation == rel
}

// Relation returns the plural relation name.
func (a *Accessor) Relation() string { return a.relation }

// Name returns the singular element name.
func (a *Accessor) Name() string { return a.singular }

// URL returns the collection URL.
func (a *Accessor) URL() string { return a.url }

// List fetches the collection, passing filters as query parameters.
// Resources are returned in document order.
func (a *Accessor) List(ctx context.Context, filters Filters) ([]*Resource, error) {
	doc, err := a.client.fetch(ctx, a.url, filters)
	if err != nil {
		return nil, err
	}

	elements := doc.ChildrenNamed(a.singular)
	if doc.Name == a.singular {
		elements = append(elements[:0:0], doc)
	}

	out := make([]*Resource, 0, len(elements))
	for _, el := range elements {
		r, err := a.client.Materialize(a.relation, el)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", a.relation, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// Get fetches one resource by id. A missing resource yields an error
// matching ErrNotFound.
func (a *Accessor) Get(ctx context.Context, id string) (*Resource, error) {
	if id == "" {
		return nil, errors.New("get " + a.singular + ": empty id")
	}

	doc, err := a.client.fetch(ctx, a.url+"/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	el := doc
	if doc.Name != a.singular {
		el = doc.Child(a.singular)
	}
	if el == nil {
		return nil, fmt.Errorf("%w: get %s %s: no <%s> element", ErrMalformedDocument, a.singular, id, a.singular)
	}
	return a.client.Materialize(a.relation, el)
}

// GetByURL fetches the resource whose URL ends in /{relation}/{id}.
func (a *Accessor) GetByURL(ctx context.Context, rawURL string) (*Resource, error) {
	id, err := a.IDFromURL(rawURL)
	if err != nil {
		return nil, err
	}
	return a.Get(ctx, id)
}

// IDFromURL extracts the trailing id segment of a resource URL.
func (a *Accessor) IDFromURL(rawURL string) (string, error) {
	m := a.idFromURL.FindStringSubmatch(rawURL)
	if m == nil {
		return "", fmt.Errorf("url %q does not address a %s resource", rawURL, a.singular)
	}
	id, err := url.PathUnescape(m[1])
	if err != nil {
		return "", fmt.Errorf("url %q: %w", rawURL, err)
	}
	return id, nil
}
