// Package versions holds the exact package versions each feature pins.
package versions

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed versions.yaml
var defaultCatalog []byte

// Feature names used as catalog sections.
const (
	Karma      = "karma"
	Jest       = "jest"
	Protractor = "protractor"
	Cypress    = "cypress"
	Testcafe   = "testcafe"
	Essentials = "essentials"
	Library    = "library"
)

// Packages maps package names to exact versions.
type Packages map[string]string

// Names returns the package names, sorted.
func (p Packages) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Without returns the packages of p that keep does not list.
func (p Packages) Without(keep Packages) Packages {
	out := make(Packages, len(p))
	for name, version := range p {
		if _, ok := keep[name]; !ok {
			out[name] = version
		}
	}
	return out
}

// Catalog maps feature names to their packages.
type Catalog map[string]Packages

// Default returns the embedded catalog.
func Default() (Catalog, error) {
	return Parse(defaultCatalog)
}

// Parse decodes a YAML catalog.
func Parse(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse versions: %w", err)
	}
	if c == nil {
		c = Catalog{}
	}
	return c, nil
}

// LoadFile reads the embedded catalog and overlays the YAML file at path.
func LoadFile(path string) (Catalog, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read versions file: %w", err)
	}
	override, err := Parse(data)
	if err != nil {
		return nil, err
	}
	c.Merge(override)
	return c, nil
}

// Merge overlays other onto c entry by entry.
func (c Catalog) Merge(other Catalog) {
	for feature, pkgs := range other {
		if c[feature] == nil {
			c[feature] = Packages{}
		}
		for name, version := range pkgs {
			c[feature][name] = version
		}
	}
}

// Feature returns the packages pinned by feature; never nil.
func (c Catalog) Feature(feature string) Packages {
	if p, ok := c[feature]; ok {
		return p
	}
	return Packages{}
}
