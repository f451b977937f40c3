package cloudclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/artpar/cloudgate/pkg/xmldoc"
)

var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// Action is one entry of a resource's action table.
type Action struct {
	Name   string
	Method string
	URL    string

	resource *Resource
}

// bindActions turns <actions><link rel method href/></actions> into the action
// table. A missing method means GET. Entries with an unsupported method, no
// name, no href or a repeated name are dropped.
func (c *Client) bindActions(r *Resource, el *xmldoc.Element) []*Action {
	var out []*Action
	seen := make(map[string]bool)
	for _, link := range el.ChildrenNamed("link") {
		name, _ := link.Attr("rel")
		href, _ := link.Attr("href")
		method := strings.ToUpper(strings.TrimSpace(link.AttrOr("method", http.MethodGet)))
		if method == "" {
			method = http.MethodGet
		}

		var skip string
		switch {
		case name == "" || href == "":
			skip = "skipping incomplete action link"
		case !allowedMethods[method]:
			skip = "skipping action with unsupported method"
		case seen[name]:
			skip = "skipping duplicate action"
		}
		if skip != "" {
			c.logger.Warn().
				Str("relation", r.relation).
				Str("id", r.ID).
				Str("action", name).
				Str("method", method).
				Msg(skip)
			continue
		}
		seen[name] = true
		out = append(out, &Action{Name: name, Method: method, URL: href, resource: r})
	}
	return out
}

// AvailableActions returns action names in document order, as captured when
// the resource was fetched.
func (r *Resource) AvailableActions() []string {
	out := make([]string, len(r.actions))
	for i, a := range r.actions {
		out[i] = a.Name
	}
	return out
}

// ActionURLs maps action names to their URLs.
func (r *Resource) ActionURLs() map[string]string {
	out := make(map[string]string, len(r.actions))
	for _, a := range r.actions {
		out[a.Name] = a.URL
	}
	return out
}

// Action looks up an action by name.
func (r *Resource) Action(name string) (*Action, bool) {
	for _, a := range r.actions {
		if a.Name == name {
			return a, true
		}
	}
	return nil, false
}

// Invoke performs the named action. See Action.Invoke.
func (r *Resource) Invoke(ctx context.Context, name string, params Params) error {
	a, ok := r.Action(name)
	if !ok {
		return fmt.Errorf("%w: %q on %s %s", ErrUnknownAction, name, Singular(r.relation), r.ID)
	}
	return a.Invoke(ctx, params)
}

// Invoke sends the action request, then re-reads the resource and replaces
// its state with the observed one. The response of the action itself is
// discarded. If the re-read finds the resource gone it is marked Gone and
// its state cleared. On any error the state is left untouched.
func (a *Action) Invoke(ctx context.Context, params Params) error {
	r := a.resource
	c := r.client

	if _, err := c.send(ctx, a.Method, a.URL, params); err != nil {
		return err
	}

	acc, err := c.Accessor(r.relation)
	if err != nil {
		return fmt.Errorf("refresh after %s: %w", a.Name, err)
	}
	fresh, err := acc.Get(ctx, r.ID)
	if IsNotFound(err) {
		r.gone = true
		r.unset("state")
		return nil
	}
	if err != nil {
		return fmt.Errorf("refresh after %s: %w", a.Name, err)
	}

	if v, ok := fresh.attrs["state"]; ok {
		r.set("state", v)
	} else {
		r.unset("state")
	}
	return nil
}
