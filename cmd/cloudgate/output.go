package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/artpar/cloudgate/pkg/cloudclient"
)

// listColumns are shown when a resource carries them, in this order.
var listColumns = []string{"name", "state", "owner_id", "architecture", "capacity", "realm", "image"}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func printList(w io.Writer, resources []*cloudclient.Resource) {
	if len(resources) == 0 {
		fmt.Fprintln(w, "No resources found")
		return
	}

	var cols []string
	for _, c := range listColumns {
		for _, r := range resources {
			if r.Has(c) {
				cols = append(cols, c)
				break
			}
		}
	}

	tw := newTable(w)
	header := append([]string{"ID"}, cols...)
	fmt.Fprintln(tw, strings.ToUpper(strings.Join(header, "\t")))
	for _, r := range resources {
		row := []string{r.ID}
		for _, c := range cols {
			row = append(row, cell(r, c))
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()
}

func cell(r *cloudclient.Resource, name string) string {
	if !r.Has(name) {
		return "-"
	}
	v, _ := r.Attr(name)
	return formatValue(v)
}

func formatValue(v cloudclient.Value) string {
	if p, ok := v.Property(); ok {
		return formatProperty(p)
	}
	if s := v.String(); s != "" {
		return s
	}
	return "-"
}

func formatProperty(p *cloudclient.Property) string {
	s := p.Raw()
	if p.Unit != "" && p.Unit != "label" {
		s += " " + p.Unit
	}
	switch {
	case p.Kind == cloudclient.PropertyRange && p.Range != nil:
		s += fmt.Sprintf(" (%s..%s)", p.Range.From, p.Range.To)
	case p.Kind == cloudclient.PropertyEnum:
		s += " (" + strings.Join(p.Options, "|") + ")"
	}
	return s
}

func printResource(w io.Writer, r *cloudclient.Resource) {
	tw := newTable(w)
	fmt.Fprintf(tw, "id:\t%s\n", r.ID)
	if r.URI != "" {
		fmt.Fprintf(tw, "href:\t%s\n", r.URI)
	}
	for _, name := range r.Names() {
		v, _ := r.Attr(name)
		fmt.Fprintf(tw, "%s:\t%s\n", name, formatValue(v))
	}
	if actions := r.AvailableActions(); len(actions) > 0 {
		fmt.Fprintf(tw, "actions:\t%s\n", strings.Join(actions, ", "))
	}
	tw.Flush()
}
