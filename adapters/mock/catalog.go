package mock

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/artpar/cloudgate/domain/cloud"
	"gopkg.in/yaml.v3"
)

//go:embed data/catalog.yaml
var defaultCatalog []byte

// Catalog is the static data the mock backend serves plus the instances and
// volumes it starts with.
type Catalog struct {
	Realms           []cloud.Realm           `yaml:"realms"`
	Images           []cloud.Image           `yaml:"images"`
	HardwareProfiles []cloud.HardwareProfile `yaml:"hardware_profiles"`
	StorageSnapshots []cloud.StorageSnapshot `yaml:"storage_snapshots"`
	Instances        []SeedInstance          `yaml:"instances"`
	StorageVolumes   []SeedVolume            `yaml:"storage_volumes"`
}

// SeedInstance is an instance present when the backend starts.
type SeedInstance struct {
	ID        string            `yaml:"id"`
	Name      string            `yaml:"name"`
	OwnerID   string            `yaml:"owner_id"`
	ImageID   string            `yaml:"image_id"`
	RealmID   string            `yaml:"realm_id"`
	State     string            `yaml:"state"`
	ProfileID string            `yaml:"profile_id"`
	Overrides map[string]string `yaml:"overrides"`
}

// SeedVolume is a storage volume present when the backend starts.
type SeedVolume struct {
	ID         string `yaml:"id"`
	OwnerID    string `yaml:"owner_id"`
	RealmID    string `yaml:"realm_id"`
	Capacity   string `yaml:"capacity"`
	State      string `yaml:"state"`
	InstanceID string `yaml:"instance_id"`
	Device     string `yaml:"device"`
}

// DefaultCatalog returns the built-in seed catalog.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// LoadCatalog reads a seed catalog from a YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog parses and validates a YAML seed catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks that seed instances reference known catalog entries.
func (c *Catalog) Validate() error {
	if len(c.Realms) == 0 {
		return fmt.Errorf("catalog: at least one realm is required")
	}
	if len(c.HardwareProfiles) == 0 {
		return fmt.Errorf("catalog: at least one hardware profile is required")
	}
	for _, inst := range c.Instances {
		if inst.ID == "" || inst.OwnerID == "" {
			return fmt.Errorf("catalog: instance %q needs id and owner_id", inst.ID)
		}
		if _, ok := c.image(inst.ImageID); !ok {
			return fmt.Errorf("catalog: instance %s: unknown image %q", inst.ID, inst.ImageID)
		}
		if _, ok := c.realm(inst.RealmID); !ok {
			return fmt.Errorf("catalog: instance %s: unknown realm %q", inst.ID, inst.RealmID)
		}
		if _, ok := c.profile(inst.ProfileID); !ok {
			return fmt.Errorf("catalog: instance %s: unknown hardware profile %q", inst.ID, inst.ProfileID)
		}
	}
	for _, v := range c.StorageVolumes {
		if v.ID == "" || v.OwnerID == "" {
			return fmt.Errorf("catalog: storage volume %q needs id and owner_id", v.ID)
		}
	}
	return nil
}

func (c *Catalog) image(id string) (cloud.Image, bool) {
	for _, img := range c.Images {
		if img.ID == id {
			return img, true
		}
	}
	return cloud.Image{}, false
}

func (c *Catalog) realm(id string) (cloud.Realm, bool) {
	for _, r := range c.Realms {
		if r.ID == id {
			return r, true
		}
	}
	return cloud.Realm{}, false
}

func (c *Catalog) profile(id string) (cloud.HardwareProfile, bool) {
	for _, p := range c.HardwareProfiles {
		if p.ID == id {
			return p, true
		}
	}
	return cloud.HardwareProfile{}, false
}
