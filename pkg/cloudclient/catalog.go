package cloudclient

import (
	"context"
	"fmt"

	"github.com/artpar/cloudgate/pkg/xmldoc"
)

// EntryPoint is the discovered capability surface of the API.
// It is immutable once discovery has returned it.
type EntryPoint struct {
	Driver  string
	Version string

	relations []string
	urls      map[string]string
	features  map[string][]string
}

// Relations returns every advertised relation in document order.
func (e *EntryPoint) Relations() []string {
	return append([]string(nil), e.relations...)
}

// URL returns the absolute URL serving a relation.
func (e *EntryPoint) URL(rel string) (string, bool) {
	u, ok := e.urls[rel]
	return u, ok
}

// Features returns the features advertised for a relation in document order.
func (e *EntryPoint) Features(rel string) []string {
	return append([]string(nil), e.features[rel]...)
}

// HasFeature reports whether rel advertises the named feature.
func (e *EntryPoint) HasFeature(rel, name string) bool {
	for _, f := range e.features[rel] {
		if f == name {
			return true
		}
	}
	return false
}

// Discover fetches the entry-point document once. Later calls return the
// cached result without network I/O.
func (c *Client) Discover(ctx context.Context) (*EntryPoint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.entry != nil {
		return c.entry, nil
	}

	doc, err := c.fetch(ctx, c.baseURL, nil)
	if err != nil {
		return nil, err
	}

	ep, err := c.parseEntryPoint(doc)
	if err != nil {
		return nil, err
	}

	c.entry = ep
	c.buildAccessors(ep)

	c.logger.Debug().
		Str("driver", ep.Driver).
		Str("version", ep.Version).
		Strs("relations", ep.relations).
		Msg("discovered entry point")
	return ep, nil
}

// EntryPoint returns the discovered entry point, or nil before discovery.
func (c *Client) EntryPoint() *EntryPoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entry
}

// HasFeature reports whether rel advertises the named feature.
// It never performs network I/O.
func (c *Client) HasFeature(rel, name string) bool {
	ep := c.EntryPoint()
	return ep != nil && ep.HasFeature(rel, name)
}

func (c *Client) parseEntryPoint(doc *xmldoc.Element) (*EntryPoint, error) {
	if doc.Name != "api" {
		return nil, &BackendFailure{
			URL:        c.baseURL,
			StatusCode: 200,
			Cause:      CauseInvalidEntryPoint,
			Message:    fmt.Sprintf("root element is <%s>, want <api>", doc.Name),
		}
	}
	driver, _ := doc.Attr("driver")
	if driver == "" {
		return nil, &BackendFailure{
			URL:        c.baseURL,
			StatusCode: 200,
			Cause:      CauseInvalidEntryPoint,
			Message:    "entry point has no driver attribute",
		}
	}

	ep := &EntryPoint{
		Driver:   driver,
		Version:  doc.AttrOr("version", ""),
		urls:     make(map[string]string),
		features: make(map[string][]string),
	}

	for _, link := range doc.ChildrenNamed("link") {
		rel, _ := link.Attr("rel")
		href, _ := link.Attr("href")
		if rel == "" || href == "" {
			c.logger.Warn().Str("rel", rel).Str("href", href).Msg("skipping incomplete entry point link")
			continue
		}
		if _, dup := ep.urls[rel]; dup {
			c.logger.Warn().Str("rel", rel).Msg("skipping duplicate entry point link")
			continue
		}
		abs, err := c.resolve(href)
		if err != nil {
			return nil, &BackendFailure{URL: c.baseURL, StatusCode: 200, Cause: CauseInvalidEntryPoint, Message: err.Error()}
		}

		ep.relations = append(ep.relations, rel)
		ep.urls[rel] = abs
		for _, f := range link.ChildrenNamed("feature") {
			if name, ok := f.Attr("name"); ok && name != "" {
				ep.features[rel] = append(ep.features[rel], name)
			}
		}
	}
	return ep, nil
}
