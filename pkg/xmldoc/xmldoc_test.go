package xmldoc_test

import (
	"strings"
	"testing"

	"github.com/artpar/cloudgate/pkg/xmldoc"
)

const sample = `<?xml version="1.0"?>
<api driver="mock" version="0.1">
  <link rel="images" href="http://localhost/api/images"/>
  <link rel="instances" href="http://localhost/api/instances">
    <feature name="user_name"/>
  </link>
  <link rel="keys" href="http://localhost/api/keys"/>
</api>`

func TestParse(t *testing.T) {
	root, err := xmldoc.Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if root.Name != "api" {
		t.Errorf("root.Name = %q, want api", root.Name)
	}
	if v, ok := root.Attr("driver"); !ok || v != "mock" {
		t.Errorf("driver = %q,%v, want mock,true", v, ok)
	}
	if _, ok := root.Attr("missing"); ok {
		t.Error("missing attribute reported present")
	}

	links := root.ChildrenNamed("link")
	if len(links) != 3 {
		t.Fatalf("len(links) = %d, want 3", len(links))
	}
	want := []string{"images", "instances", "keys"}
	for i, l := range links {
		if got := l.AttrOr("rel", ""); got != want[i] {
			t.Errorf("links[%d].rel = %q, want %q", i, got, want[i])
		}
	}

	features := root.Find("link/feature")
	if len(features) != 1 || features[0].AttrOr("name", "") != "user_name" {
		t.Errorf("Find(link/feature) = %v", features)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"malformed", "<api><link></api>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := xmldoc.Parse(strings.NewReader(tt.input)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	doc := xmldoc.New("instance").Set("id", "inst0").Set("href", "http://h/api/instances/inst0")
	doc.TextChild("name", `a <b> & "c"`)
	doc.Append(xmldoc.New("public_addresses").
		Append(xmldoc.New("address").SetText("one.example.com")).
		Append(xmldoc.New("address").SetText("two.example.com")))
	doc.Append(nil)

	parsed, err := xmldoc.ParseBytes(doc.Bytes())
	if err != nil {
		t.Fatalf("ParseBytes: %v", err)
	}

	if parsed.AttrOr("id", "") != "inst0" {
		t.Errorf("id = %q, want inst0", parsed.AttrOr("id", ""))
	}
	if got := parsed.Child("name").Text; got != `a <b> & "c"` {
		t.Errorf("name = %q", got)
	}
	addrs := parsed.Find("public_addresses/address")
	if len(addrs) != 2 || addrs[1].TextTrimmed() != "two.example.com" {
		t.Errorf("addresses = %v", addrs)
	}
}

func TestSet_Replaces(t *testing.T) {
	el := xmldoc.New("x").Set("a", "1").Set("a", "2")
	if len(el.Attrs) != 1 || el.AttrOr("a", "") != "2" {
		t.Errorf("Attrs = %v", el.Attrs)
	}
}

func TestNilElement(t *testing.T) {
	var el *xmldoc.Element
	if el.Child("x") != nil || el.ChildrenNamed("x") != nil || el.Find("x") != nil {
		t.Error("nil element lookups should return nil")
	}
	if el.TextTrimmed() != "" {
		t.Error("nil element text should be empty")
	}
}
