package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps collections in process memory. It is used in development
// (STORE=memory) and by tests.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
	now         func() time.Time
}

type memCollection struct {
	order []string
	docs  map[string]*memDoc
}

type memDoc struct {
	fields    map[string]json.RawMessage
	createdAt time.Time
	updatedAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]*memCollection),
		now:         time.Now,
	}
}

func (s *MemoryStore) collection(name string) *memCollection {
	c, ok := s.collections[name]
	if !ok {
		c = &memCollection{docs: make(map[string]*memDoc)}
		s.collections[name] = c
	}
	return c
}

func (s *MemoryStore) List(_ context.Context, collection string, filters ...Filter) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return nil, nil
	}
	var out []Document
	for _, id := range c.order {
		d := c.docs[id]
		if !matches(d.fields, filters) {
			continue
		}
		doc, err := d.document(id)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, collection, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return Document{}, ErrNotFound
	}
	d, ok := c.docs[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return d.document(id)
}

func (s *MemoryStore) Create(_ context.Context, collection string, data json.RawMessage) (string, error) {
	fields, err := decodeFields(data)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(collection, fields), nil
}

func (s *MemoryStore) CreateMany(_ context.Context, collection string, data []json.RawMessage) ([]string, error) {
	decoded := make([]map[string]json.RawMessage, len(data))
	for i, raw := range data {
		fields, err := decodeFields(raw)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		decoded[i] = fields
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, len(decoded))
	for i, fields := range decoded {
		ids[i] = s.insert(collection, fields)
	}
	return ids, nil
}

func (s *MemoryStore) insert(collection string, fields map[string]json.RawMessage) string {
	id := uuid.New().String()
	delete(fields, "id")
	now := s.now()
	c := s.collection(collection)
	c.docs[id] = &memDoc{fields: fields, createdAt: now, updatedAt: now}
	c.order = append(c.order, id)
	return id
}

func (s *MemoryStore) Update(_ context.Context, collection, id string, patch json.RawMessage) error {
	fields, err := decodeFields(patch)
	if err != nil {
		return err
	}
	delete(fields, "id")

	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[collection]
	if !ok {
		return ErrNotFound
	}
	d, ok := c.docs[id]
	if !ok {
		return ErrNotFound
	}
	for k, v := range fields {
		d.fields[k] = v
	}
	d.updatedAt = s.now()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[collection]
	if !ok {
		return ErrNotFound
	}
	if _, ok := c.docs[id]; !ok {
		return ErrNotFound
	}
	delete(c.docs, id)
	for i, oid := range c.order {
		if oid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

func (d *memDoc) document(id string) (Document, error) {
	raw, err := json.Marshal(d.fields)
	if err != nil {
		return Document{}, err
	}
	return Document{ID: id, Data: raw, CreatedAt: d.createdAt, UpdatedAt: d.updatedAt}, nil
}

func decodeFields(raw json.RawMessage) (map[string]json.RawMessage, error) {
	if !isObject(raw) {
		return nil, ErrInvalidPatch
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return fields, nil
}

func matches(fields map[string]json.RawMessage, filters []Filter) bool {
	for _, f := range filters {
		raw, ok := fields[f.Field]
		if !ok || textValue(raw) != f.Value {
			return false
		}
	}
	return true
}

// textValue mirrors Postgres' ->> operator: strings unquoted, other scalars
// in their JSON spelling.
func textValue(raw json.RawMessage) string {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		return string(raw)
	}
}
