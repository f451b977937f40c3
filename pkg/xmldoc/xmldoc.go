// Package xmldoc provides a small, schema-less XML element tree.
// Documents exchanged with the cloud API have no fixed shape, so both the
// server renderer and the client materializer work on this generic tree
// instead of tagged structs.
package xmldoc

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Attr is a single attribute. Attributes keep the order they were parsed or set in.
type Attr struct {
	Name  string
	Value string
}

// Element is one node of a document tree.
type Element struct {
	Name     string
	Attrs    []Attr
	Children []*Element
	// Text is the concatenated character data directly inside the element.
	Text string
}

// New creates an empty element.
func New(name string) *Element {
	return &Element{Name: name}
}

// Set adds or replaces an attribute and returns the element for chaining.
func (e *Element) Set(name, value string) *Element {
	for i := range e.Attrs {
		if e.Attrs[i].Name == name {
			e.Attrs[i].Value = value
			return e
		}
	}
	e.Attrs = append(e.Attrs, Attr{Name: name, Value: value})
	return e
}

// SetText sets the character data of the element.
func (e *Element) SetText(text string) *Element {
	e.Text = text
	return e
}

// Append adds children in order. Nil children are skipped.
func (e *Element) Append(children ...*Element) *Element {
	for _, c := range children {
		if c != nil {
			e.Children = append(e.Children, c)
		}
	}
	return e
}

// TextChild is shorthand for Append(New(name).SetText(text)).
func (e *Element) TextChild(name, text string) *Element {
	return e.Append(New(name).SetText(text))
}

// Attr returns the attribute value and whether it was present.
func (e *Element) Attr(name string) (string, bool) {
	if e == nil {
		return "", false
	}
	for _, a := range e.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// AttrOr returns the attribute value or def when it is absent.
func (e *Element) AttrOr(name, def string) string {
	if v, ok := e.Attr(name); ok {
		return v
	}
	return def
}

// Child returns the first direct child with the given name, or nil.
func (e *Element) Child(name string) *Element {
	if e == nil {
		return nil
	}
	for _, c := range e.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ChildrenNamed returns all direct children with the given name in document order.
func (e *Element) ChildrenNamed(name string) []*Element {
	if e == nil {
		return nil
	}
	var out []*Element
	for _, c := range e.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// Find walks a slash separated path of child names ("enum/entry") and
// returns every element reached by the last segment.
func (e *Element) Find(path string) []*Element {
	if e == nil {
		return nil
	}
	current := []*Element{e}
	for _, seg := range strings.Split(strings.Trim(path, "/"), "/") {
		var next []*Element
		for _, el := range current {
			next = append(next, el.ChildrenNamed(seg)...)
		}
		current = next
		if len(current) == 0 {
			return nil
		}
	}
	return current
}

// TextTrimmed returns the element text without surrounding whitespace.
func (e *Element) TextTrimmed() string {
	if e == nil {
		return ""
	}
	return strings.TrimSpace(e.Text)
}

// Parse reads a document and returns its root element.
func Parse(r io.Reader) (*Element, error) {
	dec := xml.NewDecoder(r)
	var (
		stack []*Element
		root  *Element
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			el := &Element{Name: t.Name.Local}
			for _, a := range t.Attr {
				el.Attrs = append(el.Attrs, Attr{Name: a.Name.Local, Value: a.Value})
			}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, el)
			} else if root == nil {
				root = el
			}
			stack = append(stack, el)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			}
		}
	}
	if root == nil {
		return nil, fmt.Errorf("decode xml: empty document")
	}
	return root, nil
}

// ParseBytes parses a document held in memory.
func ParseBytes(data []byte) (*Element, error) {
	return Parse(bytes.NewReader(data))
}

// Encode writes the element as a standalone document.
func (e *Element) Encode(w io.Writer) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	return e.encode(w, 0)
}

// Bytes renders the element as a standalone document.
func (e *Element) Bytes() []byte {
	var buf bytes.Buffer
	_ = e.Encode(&buf)
	return buf.Bytes()
}

func (e *Element) encode(w io.Writer, depth int) error {
	indent := strings.Repeat("  ", depth)
	var b strings.Builder
	b.WriteString(indent)
	b.WriteByte('<')
	b.WriteString(e.Name)
	for _, a := range e.Attrs {
		b.WriteByte(' ')
		b.WriteString(a.Name)
		b.WriteString(`="`)
		_ = xml.EscapeText(&b, []byte(a.Value))
		b.WriteByte('"')
	}

	switch {
	case len(e.Children) == 0 && e.Text == "":
		b.WriteString("/>\n")
		_, err := io.WriteString(w, b.String())
		return err
	case len(e.Children) == 0:
		b.WriteByte('>')
		_ = xml.EscapeText(&b, []byte(e.Text))
		b.WriteString("</" + e.Name + ">\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	b.WriteString(">\n")
	if e.Text != "" && strings.TrimSpace(e.Text) != "" {
		b.WriteString(indent + "  ")
		_ = xml.EscapeText(&b, []byte(strings.TrimSpace(e.Text)))
		b.WriteByte('\n')
	}
	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}
	for _, c := range e.Children {
		if err := c.encode(w, depth+1); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, indent+"</"+e.Name+">\n")
	return err
}
