package cloudclient

import (
	"context"
	"fmt"
	"net/url"

	"github.com/artpar/cloudgate/pkg/xmldoc"
)

// Documentation describes a collection, or one operation of it when
// Operation is set.
type Documentation struct {
	Collection  string
	Operation   string
	Description string

	// Operations names the operations of a collection. Empty for an operation.
	Operations []string

	// Method, URL and Parameters describe an operation. Empty for a collection.
	Method     string
	URL        string
	Parameters []Parameter
}

// Parameter is one documented request parameter.
type Parameter struct {
	Name     string
	Type     string
	Required bool
	Values   []string
}

// Documentation fetches the server's description of a collection. With a
// non-empty operation it describes that operation and its parameters.
func (c *Client) Documentation(ctx context.Context, collection, operation string) (*Documentation, error) {
	coll, err := c.fetchDocs(ctx, collection)
	if err != nil {
		return nil, err
	}
	if operation == "" {
		return collectionDocumentation(collection, coll), nil
	}
	for _, op := range operationElements(coll) {
		if op.AttrOr("name", "") == operation {
			return operationDocumentation(collection, op), nil
		}
	}
	return nil, fmt.Errorf("%w: %s %s", ErrUnknownOperation, collection, operation)
}

// OperationDocs describes every operation of a collection with one request.
func (c *Client) OperationDocs(ctx context.Context, collection string) ([]*Documentation, error) {
	coll, err := c.fetchDocs(ctx, collection)
	if err != nil {
		return nil, err
	}
	var out []*Documentation
	for _, op := range operationElements(coll) {
		out = append(out, operationDocumentation(collection, op))
	}
	return out, nil
}

// fetchDocs GETs <base>/docs/<collection> and returns its <collection> element.
func (c *Client) fetchDocs(ctx context.Context, collection string) (*xmldoc.Element, error) {
	if collection == "" {
		return nil, fmt.Errorf("%w: empty collection name", ErrUnknownRelation)
	}
	doc, err := c.fetch(ctx, c.baseURL+"/docs/"+url.PathEscape(collection), nil)
	if err != nil {
		return nil, err
	}
	if doc.Name != "docs" {
		return nil, fmt.Errorf("%w: expected <docs>, got <%s>", ErrMalformedDocument, doc.Name)
	}
	coll := doc.Child("collection")
	if coll == nil {
		return nil, fmt.Errorf("%w: <docs> has no <collection>", ErrMalformedDocument)
	}
	return coll, nil
}

func operationElements(coll *xmldoc.Element) []*xmldoc.Element {
	ops := coll.Child("operations")
	if ops == nil {
		return nil
	}
	return ops.ChildrenNamed("operation")
}

func collectionDocumentation(collection string, coll *xmldoc.Element) *Documentation {
	d := &Documentation{
		Collection:  collection,
		Description: coll.Child("description").TextTrimmed(),
	}
	for _, op := range operationElements(coll) {
		if name := op.AttrOr("name", ""); name != "" {
			d.Operations = append(d.Operations, name)
		}
	}
	return d
}

func operationDocumentation(collection string, op *xmldoc.Element) *Documentation {
	d := &Documentation{
		Collection:  collection,
		Operation:   op.AttrOr("name", ""),
		Description: op.Child("description").TextTrimmed(),
		Method:      op.AttrOr("method", "GET"),
		URL:         op.AttrOr("href", ""),
	}
	for _, p := range op.ChildrenNamed("parameter") {
		param := Parameter{
			Name:     p.AttrOr("name", ""),
			Type:     p.Child("class").TextTrimmed(),
			Required: p.AttrOr("type", "") == "required",
		}
		for _, v := range p.ChildrenNamed("value") {
			param.Values = append(param.Values, v.TextTrimmed())
		}
		d.Parameters = append(d.Parameters, param)
	}
	return d
}
