package cloudclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/artpar/cloudgate/pkg/xmldoc"
)

// ValidCredentials asks the entry point to check the configured credentials.
// Rejected credentials return false without an error.
func (c *Client) ValidCredentials(ctx context.Context) (bool, error) {
	_, err := c.send(ctx, http.MethodGet, c.baseURL, Params{"force_auth": "1"})
	switch {
	case err == nil:
		return true, nil
	case IsAuthFailure(err):
		return false, nil
	default:
		return false, err
	}
}

// Create POSTs params to the collection URL and materializes the created
// resource from the response.
func (a *Accessor) Create(ctx context.Context, params Params) (*Resource, error) {
	data, err := a.client.send(ctx, http.MethodPost, a.url, params)
	if err != nil {
		return nil, err
	}
	doc, err := xmldoc.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", ErrMalformedDocument, a.singular, err)
	}
	el := doc
	if doc.Name != a.singular {
		el = doc.Child(a.singular)
	}
	if el == nil {
		return nil, fmt.Errorf("%w: create %s: no <%s> element", ErrMalformedDocument, a.singular, a.singular)
	}
	return a.client.Materialize(a.relation, el)
}

// Destroy DELETEs one resource.
func (a *Accessor) Destroy(ctx context.Context, id string) error {
	_, err := a.client.send(ctx, http.MethodDelete, a.url+"/"+url.PathEscape(id), nil)
	return err
}

// InstanceOptions are the optional parameters of instance creation.
type InstanceOptions struct {
	Name             string
	RealmID          string
	HardwareProfile  string
	// ProfileOverrides sets individual hardware profile properties (hwp_memory, ...).
	ProfileOverrides map[string]string
	UserData         string
	KeyName          string
	SecurityGroup    string
}

func (o InstanceOptions) params(imageID string) Params {
	p := Params{"image_id": imageID}
	set := func(k, v string) {
		if v != "" {
			p[k] = v
		}
	}
	set("name", o.Name)
	set("realm_id", o.RealmID)
	set("hwp_id", o.HardwareProfile)
	set("user_data", o.UserData)
	set("keyname", o.KeyName)
	set("security_group", o.SecurityGroup)
	for k, v := range o.ProfileOverrides {
		set("hwp_"+k, v)
	}
	return p
}

// CreateInstance launches an instance from an image.
func (c *Client) CreateInstance(ctx context.Context, imageID string, opts InstanceOptions) (*Resource, error) {
	a, err := c.Accessor("instances")
	if err != nil {
		return nil, err
	}
	return a.Create(ctx, opts.params(imageID))
}

// CreateKey creates a named key.
func (c *Client) CreateKey(ctx context.Context, name string) (*Resource, error) {
	a, err := c.Accessor("keys")
	if err != nil {
		return nil, err
	}
	return a.Create(ctx, Params{"name": name})
}

// CreateStorageVolume creates a volume (capacity, realm_id, ...).
func (c *Client) CreateStorageVolume(ctx context.Context, params Params) (*Resource, error) {
	a, err := c.Accessor("storage_volumes")
	if err != nil {
		return nil, err
	}
	return a.Create(ctx, params)
}

// Destroy deletes a resource of the given relation.
func (c *Client) Destroy(ctx context.Context, relation, id string) error {
	a, err := c.Accessor(relation)
	if err != nil {
		return err
	}
	return a.Destroy(ctx, id)
}
