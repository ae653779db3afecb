package docstore

import (
	"context"
	"encoding/json"
	"fmt"
)

// Repository is the typed view of one collection that domain services use.
type Repository[T any] interface {
	List(ctx context.Context, filters ...Filter) ([]*T, error)
	Get(ctx context.Context, id string) (*T, error)
	Create(ctx context.Context, v *T) error
	// CreateMany persists all records or none.
	CreateMany(ctx context.Context, vs []*T) error
	// Update merges the top-level fields of patch (a map or struct) into the record.
	Update(ctx context.Context, id string, patch any) error
	Delete(ctx context.Context, id string) error
}

// Identified records receive their store-assigned id after decode and create.
type Identified[T any] interface {
	*T
	SetID(id string)
}

// Collection binds a record type to a named collection of a Store.
type Collection[T any, PT Identified[T]] struct {
	store Store
	name  string
}

// NewCollection is usually called with only the record type:
// docstore.NewCollection[scheduling.Appointment](store, "appointments").
func NewCollection[T any, PT Identified[T]](store Store, name string) *Collection[T, PT] {
	return &Collection[T, PT]{store: store, name: name}
}

func (c *Collection[T, PT]) Name() string { return c.name }

func (c *Collection[T, PT]) decode(d Document) (*T, error) {
	v := new(T)
	if err := json.Unmarshal(d.Data, v); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", c.name, d.ID, err)
	}
	PT(v).SetID(d.ID)
	return v, nil
}

func (c *Collection[T, PT]) List(ctx context.Context, filters ...Filter) ([]*T, error) {
	docs, err := c.store.List(ctx, c.name, filters...)
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(docs))
	for _, d := range docs {
		v, err := c.decode(d)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (c *Collection[T, PT]) Get(ctx context.Context, id string) (*T, error) {
	d, err := c.store.Get(ctx, c.name, id)
	if err != nil {
		return nil, err
	}
	return c.decode(d)
}

func (c *Collection[T, PT]) Create(ctx context.Context, v *T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.name, err)
	}
	id, err := c.store.Create(ctx, c.name, raw)
	if err != nil {
		return err
	}
	PT(v).SetID(id)
	return nil
}

func (c *Collection[T, PT]) CreateMany(ctx context.Context, vs []*T) error {
	raws := make([]json.RawMessage, len(vs))
	for i, v := range vs {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s %d: %w", c.name, i, err)
		}
		raws[i] = raw
	}
	ids, err := c.store.CreateMany(ctx, c.name, raws)
	if err != nil {
		return err
	}
	for i, id := range ids {
		PT(vs[i]).SetID(id)
	}
	return nil
}

func (c *Collection[T, PT]) Update(ctx context.Context, id string, patch any) error {
	raw, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("encode %s patch: %w", c.name, err)
	}
	return c.store.Update(ctx, c.name, id, raw)
}

func (c *Collection[T, PT]) Delete(ctx context.Context, id string) error {
	return c.store.Delete(ctx, c.name, id)
}
