package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// AttributeKind classifies an attribute as a scalar or a relation.
type AttributeKind int

const (
	Scalar AttributeKind = iota
	ManyToOne
	OneToMany
)

func (k AttributeKind) String() string {
	switch k {
	case ManyToOne:
		return "many2one"
	case OneToMany:
		return "one2many"
	default:
		return "scalar"
	}
}

// ParseAttributeKind maps a kind name back to its AttributeKind.
func ParseAttributeKind(s string) (AttributeKind, error) {
	switch s {
	case "", "scalar":
		return Scalar, nil
	case "many2one":
		return ManyToOne, nil
	case "one2many":
		return OneToMany, nil
	}
	return Scalar, fmt.Errorf("unknown attribute kind %q", s)
}

// Attribute describes one attribute of an entity type.
type Attribute struct {
	Name string
	Kind AttributeKind
	// Target is the related entity type of a relation.
	Target string
	// Inverse is the many-to-one attribute on Target backing a one-to-many.
	Inverse string
}

// IsRelation reports whether the attribute references another entity type.
func (a *Attribute) IsRelation() bool {
	return a.Kind != Scalar
}

// Model describes one entity type.
type Model struct {
	Name       string
	Attributes map[string]*Attribute
}

// NewModel builds a model, adding the id attribute when missing.
func NewModel(name string, attrs ...*Attribute) *Model {
	m := &Model{Name: name, Attributes: make(map[string]*Attribute, len(attrs)+1)}
	m.Attributes[IDAttribute] = &Attribute{Name: IDAttribute}
	for _, a := range attrs {
		m.Attributes[a.Name] = a
	}
	return m
}

// Attribute looks up an attribute by name.
func (m *Model) Attribute(name string) (*Attribute, bool) {
	a, ok := m.Attributes[name]
	return a, ok
}

// AttributeNames returns the attribute names in sorted order.
func (m *Model) AttributeNames() []string {
	names := make([]string, 0, len(m.Attributes))
	for name := range m.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Schema is the set of entity types a store exposes.
type Schema struct {
	Models map[string]*Model
	// Fingerprint changes whenever the entity-type set changes.
	Fingerprint string
}

// NewSchema builds a schema and computes its fingerprint.
func NewSchema(models ...*Model) *Schema {
	s := &Schema{Models: make(map[string]*Model, len(models))}
	for _, m := range models {
		s.Models[m.Name] = m
	}
	s.Fingerprint = s.computeFingerprint()
	return s
}

// Model looks up an entity type.
func (s *Schema) Model(name string) (*Model, error) {
	m, ok := s.Models[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntityType, name)
	}
	return m, nil
}

// EntityTypes returns the entity type names in sorted order.
func (s *Schema) EntityTypes() []string {
	names := make([]string, 0, len(s.Models))
	for name := range s.Models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Schema) computeFingerprint() string {
	hash := sha256.New()
	for _, name := range s.EntityTypes() {
		m := s.Models[name]
		fmt.Fprintf(hash, "%d:%s|", len(name), name)
		for _, attrName := range m.AttributeNames() {
			a := m.Attributes[attrName]
			cell := fmt.Sprintf("%s/%s/%s/%s", a.Name, a.Kind, a.Target, a.Inverse)
			fmt.Fprintf(hash, "%d:%s|", len(cell), cell)
		}
	}
	return hex.EncodeToString(hash.Sum(nil))
}
