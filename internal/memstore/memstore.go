// Package memstore is an in-memory store.Store, loadable from YAML fixtures.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"model-graphql/internal/store"
)

// Store keeps records in memory. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	models  map[string]*store.Model
	records map[string]map[store.ID]store.Record
	nextID  map[string]store.ID
	schema  *store.Schema
}

var _ store.Store = (*Store)(nil)

// New creates a store exposing the given models.
func New(models ...*store.Model) *Store {
	s := &Store{
		models:  map[string]*store.Model{},
		records: map[string]map[store.ID]store.Record{},
		nextID:  map[string]store.ID{},
	}
	for _, m := range models {
		s.addModel(m)
	}
	s.rebuildSchema()
	return s
}

func (s *Store) addModel(m *store.Model) {
	s.models[m.Name] = m
	if s.records[m.Name] == nil {
		s.records[m.Name] = map[store.ID]store.Record{}
		s.nextID[m.Name] = 1
	}
}

func (s *Store) rebuildSchema() {
	models := make([]*store.Model, 0, len(s.models))
	for _, m := range s.models {
		models = append(models, m)
	}
	s.schema = store.NewSchema(models...)
}

// AddModel registers an entity type, replacing any previous definition.
// Existing records are kept.
func (s *Store) AddModel(m *store.Model) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addModel(m)
	s.rebuildSchema()
}

// Insert stores a record and returns its id. A missing id is assigned.
// Only scalar and many-to-one attributes are stored; one-to-many values are
// derived from their inverse.
func (s *Store) Insert(entityType string, record store.Record) (store.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.models[entityType]
	if !ok {
		return 0, fmt.Errorf("%w: %s", store.ErrUnknownEntityType, entityType)
	}

	row := store.Record{}
	for name, value := range record {
		attr, ok := m.Attribute(name)
		if !ok {
			return 0, fmt.Errorf("%w: %s.%s", store.ErrUnknownAttribute, entityType, name)
		}
		switch attr.Kind {
		case store.OneToMany:
			continue
		case store.ManyToOne:
			if value == nil || value == false {
				row[name] = nil
				continue
			}
			id, ok := store.ToID(value)
			if !ok {
				return 0, fmt.Errorf("%s.%s: %v is not an id", entityType, name, value)
			}
			row[name] = id
		default:
			row[name] = value
		}
	}

	var id store.ID
	if raw, ok := row[store.IDAttribute]; ok && raw != nil {
		parsed, ok := store.ToID(raw)
		if !ok {
			return 0, fmt.Errorf("%s: id %v is not an integer", entityType, raw)
		}
		id = parsed
	} else {
		id = s.nextID[entityType]
	}
	if _, exists := s.records[entityType][id]; exists {
		return 0, fmt.Errorf("%s: duplicate id %d", entityType, id)
	}
	row[store.IDAttribute] = id
	s.records[entityType][id] = row
	if id >= s.nextID[entityType] {
		s.nextID[entityType] = id + 1
	}
	return id, nil
}

// Schema implements store.Store.
func (s *Store) Schema(context.Context) (*store.Schema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schema, nil
}

// Fingerprint returns the fingerprint of the current model set.
func (s *Store) Fingerprint(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schema.Fingerprint, nil
}

// Load returns the current schema. Models are registered in place, so
// there is nothing to rebuild.
func (s *Store) Load(ctx context.Context) (*store.Schema, error) {
	return s.Schema(ctx)
}

// Search implements store.Store.
func (s *Store) Search(_ context.Context, entityType string, filter store.Filter, opts store.Options) ([]store.ID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.models[entityType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrUnknownEntityType, entityType)
	}

	preds, err := s.compileFilter(m, filter)
	if err != nil {
		return nil, err
	}
	terms, err := store.ParseOrder(opts.Order)
	if err != nil {
		return nil, err
	}
	for _, term := range terms {
		attr, ok := m.Attribute(term.Attribute)
		if !ok || attr.Kind == store.OneToMany {
			return nil, fmt.Errorf("%w: cannot order by %q", store.ErrInvalidOrder, term.Attribute)
		}
	}
	terms = append(terms, store.OrderTerm{Attribute: store.IDAttribute})

	var matched []store.Record
	for _, record := range s.records[entityType] {
		if s.matches(record, preds) {
			matched = append(matched, record)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		for _, term := range terms {
			c := compareValues(matched[i][term.Attribute], matched[j][term.Attribute])
			if c == 0 {
				continue
			}
			if term.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[opts.Offset:]
		}
	}
	if opts.Limit > 0 && len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}

	ids := make([]store.ID, 0, len(matched))
	for _, record := range matched {
		ids = append(ids, record[store.IDAttribute].(store.ID))
	}
	return ids, nil
}

// Read implements store.Store. Records are returned in the order of ids;
// unknown ids are skipped.
func (s *Store) Read(_ context.Context, entityType string, ids []store.ID, attributes []string) ([]store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.models[entityType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrUnknownEntityType, entityType)
	}
	attrs := make([]*store.Attribute, 0, len(attributes))
	for _, name := range attributes {
		attr, ok := m.Attribute(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", store.ErrUnknownAttribute, entityType, name)
		}
		attrs = append(attrs, attr)
	}

	out := make([]store.Record, 0, len(ids))
	for _, id := range ids {
		record, ok := s.records[entityType][id]
		if !ok {
			continue
		}
		row := make(store.Record, len(attrs))
		for _, attr := range attrs {
			row[attr.Name] = s.value(record, attr)
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *Store) value(record store.Record, attr *store.Attribute) any {
	if attr.Kind != store.OneToMany {
		return record[attr.Name]
	}
	return s.inverseIDs(attr, record[store.IDAttribute].(store.ID))
}

// inverseIDs lists the target records pointing back at id, sorted by id.
func (s *Store) inverseIDs(attr *store.Attribute, id store.ID) []store.ID {
	ids := []store.ID{}
	for targetID, target := range s.records[attr.Target] {
		if ref, ok := target[attr.Inverse].(store.ID); ok && ref == id {
			ids = append(ids, targetID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
