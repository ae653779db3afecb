// Package docstore is the document store collaborator: named collections of
// JSON documents with list, create, patch and delete, backed either by
// Postgres (JSONB) or by memory.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("document not found")
	ErrInvalidPatch = errors.New("patch must be a JSON object")
)

// Document is one stored record. Data never contains the id.
type Document struct {
	ID        string
	Data      json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Filter is an equality condition on a top-level field of the document.
// Values are compared in their textual form ("true", "50", "2025-06-05").
type Filter struct {
	Field string
	Value string
}

func Where(field, value string) Filter {
	return Filter{Field: field, Value: value}
}

// Store is the raw collection API. Lists are returned in creation order.
type Store interface {
	List(ctx context.Context, collection string, filters ...Filter) ([]Document, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	Create(ctx context.Context, collection string, data json.RawMessage) (string, error)
	// CreateMany writes all documents or none.
	CreateMany(ctx context.Context, collection string, data []json.RawMessage) ([]string, error)
	// Update shallow-merges patch (a JSON object) into the stored document.
	Update(ctx context.Context, collection, id string, patch json.RawMessage) error
	Delete(ctx context.Context, collection, id string) error
}

func isObject(raw json.RawMessage) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}
