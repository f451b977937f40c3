// Package cloud provides the provider-neutral value types served by the
// unified API and pure filtering functions over them.
package cloud

import (
	"strings"
	"time"
)

// Credentials is the user/password pair presented with every request.
type Credentials struct {
	User     string
	Password string
}

// Realm is a placement boundary (datacenter, region, pool).
type Realm struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	State string `yaml:"state"`
	Limit string `yaml:"limit"`
}

// Image is a template instances are created from.
type Image struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	OwnerID      string `yaml:"owner_id"`
	Architecture string `yaml:"architecture"`
}

// PropertyKind is how a hardware profile property constrains its value.
type PropertyKind string

const (
	PropertyFixed PropertyKind = "fixed"
	PropertyRange PropertyKind = "range"
	PropertyEnum  PropertyKind = "enum"
)

// ProfileProperty is one dimension of a hardware profile (cpu, memory, ...).
type ProfileProperty struct {
	Name    string       `yaml:"name"`
	Kind    PropertyKind `yaml:"kind"`
	Unit    string       `yaml:"unit"`
	Default string       `yaml:"default"`
	First   string       `yaml:"first,omitempty"` // range only
	Last    string       `yaml:"last,omitempty"`  // range only
	Values  []string     `yaml:"values,omitempty"` // enum only
}

// Allows reports whether v is an acceptable value for the property.
func (p ProfileProperty) Allows(v string) bool {
	switch p.Kind {
	case PropertyEnum:
		for _, opt := range p.Values {
			if opt == v {
				return true
			}
		}
		return false
	case PropertyRange:
		return inRange(v, p.First, p.Last)
	default:
		return v == p.Default
	}
}

// HardwareProfile is a named machine shape.
type HardwareProfile struct {
	ID         string            `yaml:"id"`
	Name       string            `yaml:"name"`
	Properties []ProfileProperty `yaml:"properties"`
}

// Property looks up a property by name.
func (h HardwareProfile) Property(name string) (ProfileProperty, bool) {
	for _, p := range h.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return ProfileProperty{}, false
}

// InstanceProfile records the hardware profile an instance was created with
// plus any per-property overrides.
type InstanceProfile struct {
	ProfileID string            `yaml:"profile_id"`
	Overrides map[string]string `yaml:"overrides,omitempty"`
}

// Instance is a concrete machine realized from an image.
type Instance struct {
	ID               string
	Name             string
	OwnerID          string
	ImageID          string
	RealmID          string
	State            string
	Profile          InstanceProfile
	PublicAddresses  []string
	PrivateAddresses []string
	LaunchTime       time.Time
	// Actions is computed from the lifecycle for the current state, never stored.
	Actions []string
}

// Key is an instance access credential.
type Key struct {
	ID          string
	Name        string
	OwnerID     string
	Fingerprint string
	PEM         string
	CreatedAt   time.Time
}

// StorageVolume is block storage that can be attached to an instance.
type StorageVolume struct {
	ID         string
	OwnerID    string
	RealmID    string
	Capacity   string
	State      string
	InstanceID string
	Device     string
	CreatedAt  time.Time
}

// StorageSnapshot is a point-in-time copy of a volume.
type StorageSnapshot struct {
	ID              string    `yaml:"id"`
	OwnerID         string    `yaml:"owner_id"`
	StorageVolumeID string    `yaml:"storage_volume_id"`
	State           string    `yaml:"state"`
	CreatedAt       time.Time `yaml:"created_at"`
}

// Filter holds equality filters taken from collection query parameters.
type Filter map[string]string

// Matches reports whether every filter in keys that is set equals the value
// returned by get for that key.
func (f Filter) Matches(get func(key string) string, keys ...string) bool {
	for _, k := range keys {
		want, ok := f[k]
		if !ok || want == "" {
			continue
		}
		if get(k) != want {
			return false
		}
	}
	return true
}

// FilterOn keeps the items whose field (read via get) equals the filter value.
// An unset filter keeps everything.
func FilterOn[T any](items []T, f Filter, key string, get func(T) string) []T {
	want, ok := f[key]
	if !ok || want == "" {
		return items
	}
	var out []T
	for _, it := range items {
		if get(it) == want {
			out = append(out, it)
		}
	}
	return out
}

// NormalizeState maps a backend state name to the lifecycle's spelling.
func NormalizeState(state string) string {
	return strings.ToLower(strings.TrimSpace(state))
}

// DisplayState maps a lifecycle state name to the spelling used in documents.
func DisplayState(state string) string {
	return strings.ToUpper(state)
}

// InstanceRequest holds the parameters of instance creation.
type InstanceRequest struct {
	ImageID          string
	Name             string
	RealmID          string
	ProfileID        string
	ProfileOverrides map[string]string
	UserData         string
	KeyName          string
	SecurityGroup    string
}

// VolumeRequest holds the parameters of storage volume creation.
type VolumeRequest struct {
	Capacity string
	RealmID  string
}
