package cloudclient

import (
	"context"
	"fmt"

	"github.com/artpar/cloudgate/domain/lifecycle"
	"github.com/artpar/cloudgate/pkg/xmldoc"
)

const instanceStatesRelation = "instance_states"

// InstanceStates fetches the lifecycle listing and rebuilds the machine.
func (c *Client) InstanceStates(ctx context.Context) (*lifecycle.Machine, error) {
	ep, err := c.Discover(ctx)
	if err != nil {
		return nil, err
	}
	target, ok := ep.URL(instanceStatesRelation)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRelation, instanceStatesRelation)
	}

	doc, err := c.fetch(ctx, target, nil)
	if err != nil {
		return nil, err
	}
	return ParseStates(doc)
}

// InstanceState returns one state of the lifecycle listing.
func (c *Client) InstanceState(ctx context.Context, name string) (lifecycle.State, bool, error) {
	m, err := c.InstanceStates(ctx)
	if err != nil {
		return lifecycle.State{}, false, err
	}
	s, ok := m.State(name)
	return s, ok, nil
}

// ParseStates reads <states><state name><transition to action|auto/></state></states>.
func ParseStates(doc *xmldoc.Element) (*lifecycle.Machine, error) {
	if doc == nil || doc.Name != "states" {
		return nil, fmt.Errorf("%w: expected <states>", ErrMalformedDocument)
	}
	var rules []lifecycle.Rule
	for _, st := range doc.ChildrenNamed("state") {
		from := st.AttrOr("name", "")
		for _, t := range st.ChildrenNamed("transition") {
			rules = append(rules, lifecycle.Rule{
				From:   from,
				To:     t.AttrOr("to", ""),
				Action: t.AttrOr("action", ""),
			})
		}
	}
	return lifecycle.New(rules)
}

// StatesDocument renders a machine as the lifecycle listing document.
func StatesDocument(m *lifecycle.Machine) *xmldoc.Element {
	root := xmldoc.New("states")
	for _, s := range m.States() {
		el := xmldoc.New("state").Set("name", s.Name)
		for _, t := range s.Transitions {
			tr := xmldoc.New("transition").Set("to", t.To)
			if t.IsAutomatic() {
				tr.Set("auto", "true")
			} else {
				tr.Set("action", t.Action)
			}
			el.Append(tr)
		}
		root.Append(el)
	}
	return root
}
