package memstore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"model-graphql/internal/store"
)

// Fixture is the YAML document describing models and their records.
//
//	models:
//	  res.partner:
//	    attributes:
//	      name: {}
//	      parent_id: {kind: many2one, target: res.partner}
//	      child_ids: {kind: one2many, target: res.partner, inverse: parent_id}
//	records:
//	  res.partner:
//	    - {id: 1, name: Acme}
//	    - {id: 2, name: Bob, parent_id: 1}
type Fixture struct {
	Models  map[string]FixtureModel    `yaml:"models"`
	Records map[string][]store.Record `yaml:"records"`
}

// FixtureModel declares the attributes of one entity type.
type FixtureModel struct {
	Attributes map[string]FixtureAttribute `yaml:"attributes"`
}

// FixtureAttribute declares one attribute; an empty kind means scalar.
type FixtureAttribute struct {
	Kind    string `yaml:"kind"`
	Target  string `yaml:"target"`
	Inverse string `yaml:"inverse"`
}

// LoadFixtureFile reads a fixture from path into a new store.
func LoadFixtureFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer f.Close()
	return LoadFixture(f)
}

// LoadFixture reads a fixture from r into a new store.
func LoadFixture(r io.Reader) (*Store, error) {
	var fx Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	return fx.Build()
}

// Build validates the fixture and creates a store holding its records.
func (fx Fixture) Build() (*Store, error) {
	models, err := fx.models()
	if err != nil {
		return nil, err
	}
	s := New(models...)

	entityTypes := make([]string, 0, len(fx.Records))
	for entityType := range fx.Records {
		entityTypes = append(entityTypes, entityType)
	}
	sort.Strings(entityTypes)

	for _, entityType := range entityTypes {
		for i, record := range fx.Records[entityType] {
			if _, err := s.Insert(entityType, record); err != nil {
				return nil, fmt.Errorf("fixture record %s[%d]: %w", entityType, i, err)
			}
		}
	}
	return s, nil
}

func (fx Fixture) models() ([]*store.Model, error) {
	names := make([]string, 0, len(fx.Models))
	for name := range fx.Models {
		names = append(names, name)
	}
	sort.Strings(names)

	models := make([]*store.Model, 0, len(names))
	byName := make(map[string]*store.Model, len(names))
	for _, name := range names {
		attrs := make([]*store.Attribute, 0, len(fx.Models[name].Attributes))
		for attrName, def := range fx.Models[name].Attributes {
			kind, err := store.ParseAttributeKind(def.Kind)
			if err != nil {
				return nil, fmt.Errorf("model %s attribute %s: %w", name, attrName, err)
			}
			attrs = append(attrs, &store.Attribute{Name: attrName, Kind: kind, Target: def.Target, Inverse: def.Inverse})
		}
		m := store.NewModel(name, attrs...)
		models = append(models, m)
		byName[name] = m
	}

	for _, m := range models {
		for _, attrName := range m.AttributeNames() {
			attr := m.Attributes[attrName]
			if !attr.IsRelation() {
				continue
			}
			target, ok := byName[attr.Target]
			if !ok {
				return nil, fmt.Errorf("model %s attribute %s: unknown target %q", m.Name, attrName, attr.Target)
			}
			if attr.Kind != store.OneToMany {
				continue
			}
			inverse, ok := target.Attribute(attr.Inverse)
			if !ok || inverse.Kind != store.ManyToOne || inverse.Target != m.Name {
				return nil, fmt.Errorf("model %s attribute %s: inverse %q must be a many2one on %s pointing back", m.Name, attrName, attr.Inverse, attr.Target)
			}
		}
	}
	return models, nil
}
