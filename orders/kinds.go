// Package orders implements the multi-line order draft workflow shared by
// receipts, deliveries and transfers: editing a draft, validating it,
// normalizing it into the upstream wire shape and reconciling the outcome of
// a submission.
package orders

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed kinds.yaml
var kindsYAML []byte

// Field describes one header field of an order kind
type Field struct {
	Name      string   `yaml:"name" json:"name"`
	Label     string   `yaml:"label" json:"label"`
	Required  bool     `yaml:"required" json:"required"`
	Date      bool     `yaml:"date" json:"date,omitempty"`
	DependsOn string   `yaml:"depends_on" json:"depends_on,omitempty"`
	Options   []string `yaml:"options" json:"options,omitempty"`
	Message   string   `yaml:"message" json:"-"`
}

// Distinct names two header fields that must not hold the same value
type Distinct struct {
	Fields  []string `yaml:"fields" json:"fields"`
	Message string   `yaml:"message" json:"message"`
}

// Kind is the declarative descriptor of one order kind
type Kind struct {
	Name     string    `yaml:"name" json:"name"`
	Label    string    `yaml:"label" json:"label"`
	Endpoint string    `yaml:"endpoint" json:"endpoint"`
	UnitCost bool      `yaml:"unit_cost" json:"unit_cost"`
	Editable bool      `yaml:"editable" json:"editable"`
	Distinct *Distinct `yaml:"distinct" json:"distinct,omitempty"`
	Fields   []Field   `yaml:"fields" json:"fields"`
}

type kindsFile struct {
	Kinds []Kind `yaml:"kinds"`
}

// Field returns the header field with the given name
func (k *Kind) Field(name string) (Field, bool) {
	for _, f := range k.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Dependents returns the fields that depend on the named field
func (k *Kind) Dependents(name string) []string {
	var out []string
	for _, f := range k.Fields {
		if f.DependsOn == name {
			out = append(out, f.Name)
		}
	}
	return out
}

// Catalog holds the known order kinds by name
type Catalog struct {
	kinds map[string]*Kind
}

// ParseCatalog decodes kind descriptors from YAML
func ParseCatalog(data []byte) (*Catalog, error) {
	var file kindsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse order kinds: %w", err)
	}

	catalog := &Catalog{kinds: make(map[string]*Kind, len(file.Kinds))}
	for i := range file.Kinds {
		k := &file.Kinds[i]
		if err := k.check(); err != nil {
			return nil, err
		}
		if _, dup := catalog.kinds[k.Name]; dup {
			return nil, fmt.Errorf("order kind %q declared twice", k.Name)
		}
		catalog.kinds[k.Name] = k
	}
	return catalog, nil
}

func (k *Kind) check() error {
	if k.Name == "" || k.Endpoint == "" {
		return fmt.Errorf("order kind %q: name and endpoint are required", k.Name)
	}
	seen := make(map[string]bool, len(k.Fields))
	for _, f := range k.Fields {
		if seen[f.Name] {
			return fmt.Errorf("order kind %q: field %q declared twice", k.Name, f.Name)
		}
		seen[f.Name] = true
	}
	for _, f := range k.Fields {
		if f.DependsOn != "" && !seen[f.DependsOn] {
			return fmt.Errorf("order kind %q: field %q depends on unknown field %q", k.Name, f.Name, f.DependsOn)
		}
	}
	if k.Distinct != nil {
		if len(k.Distinct.Fields) != 2 {
			return fmt.Errorf("order kind %q: distinct needs exactly two fields", k.Name)
		}
		for _, name := range k.Distinct.Fields {
			if !seen[name] {
				return fmt.Errorf("order kind %q: distinct field %q is not declared", k.Name, name)
			}
		}
	}
	return nil
}

// Get returns the kind with the given name
func (c *Catalog) Get(name string) (*Kind, bool) {
	k, ok := c.kinds[name]
	return k, ok
}

// All returns every kind sorted by name
func (c *Catalog) All() []*Kind {
	out := make([]*Kind, 0, len(c.kinds))
	for _, k := range c.kinds {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

var defaultCatalog *Catalog

func init() {
	c, err := ParseCatalog(kindsYAML)
	if err != nil {
		panic(err)
	}
	defaultCatalog = c
}

// DefaultCatalog returns the built-in receipt, delivery and transfer kinds
func DefaultCatalog() *Catalog {
	return defaultCatalog
}
