package http

import (
	"net/http"
	"time"

	"github.com/artpar/cloudgate/domain/cloud"
	"github.com/artpar/cloudgate/pkg/xmldoc"
)

// baseURL is the API root hrefs are built from.
func (h *Handler) baseURL(r *http.Request) string {
	if h.publicURL != "" {
		return h.publicURL + "/api"
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}
	return scheme + "://" + r.Host + "/api"
}

// renderer builds documents with hrefs rooted at one base URL.
type renderer struct {
	base string
}

func (rd renderer) href(collection, id string) string {
	return rd.base + "/" + collection + "/" + id
}

// ref renders a reference child such as <realm href id/>.
func (rd renderer) ref(name, collection, id string) *xmldoc.Element {
	if id == "" {
		return nil
	}
	return xmldoc.New(name).Set("href", rd.href(collection, id)).Set("id", id)
}

func link(rel, method, href string) *xmldoc.Element {
	return xmldoc.New("link").Set("rel", rel).Set("method", method).Set("href", href)
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// textChild skips empty values.
func textChild(el *xmldoc.Element, name, value string) {
	if value != "" {
		el.TextChild(name, value)
	}
}

func (rd renderer) entryPoint(driver string, collections []string, features func(string) []string) *xmldoc.Element {
	root := xmldoc.New("api").Set("driver", driver).Set("version", APIVersion)
	for _, c := range collections {
		l := xmldoc.New("link").Set("rel", c).Set("href", rd.base+"/"+c)
		for _, f := range features(c) {
			l.Append(xmldoc.New("feature").Set("name", f))
		}
		root.Append(l)
	}
	return root
}

func (rd renderer) realm(r cloud.Realm) *xmldoc.Element {
	el := xmldoc.New("realm").Set("href", rd.href("realms", r.ID)).Set("id", r.ID)
	textChild(el, "name", r.Name)
	textChild(el, "state", r.State)
	textChild(el, "limit", r.Limit)
	return el
}

func (rd renderer) image(img cloud.Image) *xmldoc.Element {
	el := xmldoc.New("image").Set("href", rd.href("images", img.ID)).Set("id", img.ID)
	textChild(el, "name", img.Name)
	textChild(el, "description", img.Description)
	textChild(el, "owner_id", img.OwnerID)
	textChild(el, "architecture", img.Architecture)
	el.Append(xmldoc.New("actions").Append(
		link("create_instance", "post", rd.base+"/instances?image_id="+img.ID),
	))
	return el
}

// property renders one hardware profile dimension. value overrides the default.
func property(p cloud.ProfileProperty, value string) *xmldoc.Element {
	if value == "" {
		value = p.Default
	}
	el := xmldoc.New("property").
		Set("kind", string(p.Kind)).
		Set("name", p.Name).
		Set("unit", p.Unit).
		Set("value", value)
	switch p.Kind {
	case cloud.PropertyRange:
		el.Append(xmldoc.New("range").Set("first", p.First).Set("last", p.Last))
	case cloud.PropertyEnum:
		enum := xmldoc.New("enum")
		for _, v := range p.Values {
			enum.Append(xmldoc.New("entry").Set("value", v))
		}
		el.Append(enum)
	}
	return el
}

func (rd renderer) hardwareProfile(p cloud.HardwareProfile) *xmldoc.Element {
	el := xmldoc.New("hardware_profile").Set("href", rd.href("hardware_profiles", p.ID)).Set("id", p.ID)
	textChild(el, "name", p.Name)
	for _, prop := range p.Properties {
		el.Append(property(prop, ""))
	}
	return el
}

// instance renders an instance. profile supplies the property declarations of
// its hardware profile when known.
func (rd renderer) instance(inst cloud.Instance, profile *cloud.HardwareProfile) *xmldoc.Element {
	el := xmldoc.New("instance").Set("href", rd.href("instances", inst.ID)).Set("id", inst.ID)
	textChild(el, "name", inst.Name)
	textChild(el, "owner_id", inst.OwnerID)
	el.Append(rd.ref("image", "images", inst.ImageID))
	el.Append(rd.ref("realm", "realms", inst.RealmID))
	el.TextChild("state", inst.State)

	if hwp := rd.ref("hardware_profile", "hardware_profiles", inst.Profile.ProfileID); hwp != nil {
		if profile != nil {
			for _, prop := range profile.Properties {
				hwp.Append(property(prop, inst.Profile.Overrides[prop.Name]))
			}
		}
		el.Append(hwp)
	}

	actions := xmldoc.New("actions")
	for _, a := range inst.Actions {
		if a == "destroy" {
			actions.Append(link(a, "delete", rd.href("instances", inst.ID)))
			continue
		}
		actions.Append(link(a, "post", rd.href("instances", inst.ID)+"/"+a))
	}
	el.Append(actions)

	textChild(el, "launch_time", timestamp(inst.LaunchTime))
	el.Append(addressList("public_addresses", inst.PublicAddresses))
	el.Append(addressList("private_addresses", inst.PrivateAddresses))
	return el
}

func addressList(name string, addrs []string) *xmldoc.Element {
	el := xmldoc.New(name)
	for _, a := range addrs {
		el.TextChild("address", a)
	}
	return el
}

func (rd renderer) key(k cloud.Key) *xmldoc.Element {
	el := xmldoc.New("key").Set("href", rd.href("keys", k.ID)).Set("id", k.ID)
	textChild(el, "name", k.Name)
	textChild(el, "fingerprint", k.Fingerprint)
	textChild(el, "pem", k.PEM)
	textChild(el, "created", timestamp(k.CreatedAt))
	el.Append(xmldoc.New("actions").Append(link("destroy", "delete", rd.href("keys", k.ID))))
	return el
}

func (rd renderer) storageVolume(v cloud.StorageVolume) *xmldoc.Element {
	el := xmldoc.New("storage_volume").Set("href", rd.href("storage_volumes", v.ID)).Set("id", v.ID)
	textChild(el, "created", timestamp(v.CreatedAt))
	el.Append(xmldoc.New("capacity").Set("unit", "GB").SetText(v.Capacity))
	el.Append(rd.ref("realm", "realms", v.RealmID))
	el.TextChild("state", v.State)
	if v.InstanceID != "" {
		el.Append(xmldoc.New("mount").Append(
			rd.ref("instance", "instances", v.InstanceID),
			xmldoc.New("device").Set("name", v.Device),
		))
	} else {
		el.Append(xmldoc.New("actions").Append(link("destroy", "delete", rd.href("storage_volumes", v.ID))))
	}
	return el
}

func (rd renderer) storageSnapshot(s cloud.StorageSnapshot) *xmldoc.Element {
	el := xmldoc.New("storage_snapshot").Set("href", rd.href("storage_snapshots", s.ID)).Set("id", s.ID)
	textChild(el, "created", timestamp(s.CreatedAt))
	el.TextChild("state", s.State)
	el.Append(rd.ref("storage_volume", "storage_volumes", s.StorageVolumeID))
	return el
}
