package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agenda/agenda/internal/platform/db"
)

type querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

var fieldPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// PGStore keeps every collection in the tenant schema's documents table.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// conn picks the transaction, then the pinned tenant connection, then the
// pool. Callers must call release once they are done with the querier,
// including reading rows.
func (s *PGStore) conn(ctx context.Context) (q querier, release func()) {
	switch {
	case db.TxFromContext(ctx) != nil:
		q = db.TxFromContext(ctx)
	case db.ConnFromContext(ctx) != nil:
		q = db.ConnFromContext(ctx)
	default:
		return s.pool, func() {}
	}
	mu := db.ConnLock(ctx)
	if mu == nil {
		return q, func() {}
	}
	mu.Lock()
	return q, mu.Unlock
}

const docCols = `id::text, data, created_at, updated_at`

func scanDocument(row pgx.Row) (Document, error) {
	var d Document
	var data []byte
	if err := row.Scan(&d.ID, &data, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return Document{}, err
	}
	d.Data = data
	return d, nil
}

func (s *PGStore) List(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	query := `SELECT ` + docCols + ` FROM documents WHERE collection = $1`
	args := []interface{}{collection}
	for _, f := range filters {
		if !fieldPattern.MatchString(f.Field) {
			return nil, fmt.Errorf("invalid filter field %q", f.Field)
		}
		args = append(args, f.Field, f.Value)
		query += fmt.Sprintf(` AND data->>$%d = $%d`, len(args)-1, len(args))
	}
	query += ` ORDER BY seq`

	q, release := s.conn(ctx)
	defer release()
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PGStore) Get(ctx context.Context, collection, id string) (Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Document{}, ErrNotFound
	}
	q, release := s.conn(ctx)
	defer release()
	d, err := scanDocument(q.QueryRow(ctx,
		`SELECT `+docCols+` FROM documents WHERE collection = $1 AND id = $2`, collection, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	return d, err
}

const insertDoc = `INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb - 'id')`

func (s *PGStore) Create(ctx context.Context, collection string, data json.RawMessage) (string, error) {
	if !isObject(data) {
		return "", ErrInvalidPatch
	}
	id := uuid.New().String()
	q, release := s.conn(ctx)
	defer release()
	if _, err := q.Exec(ctx, insertDoc, collection, id, string(data)); err != nil {
		return "", fmt.Errorf("create %s: %w", collection, err)
	}
	return id, nil
}

// CreateMany queues every insert in one batch inside a transaction.
func (s *PGStore) CreateMany(ctx context.Context, collection string, data []json.RawMessage) ([]string, error) {
	ids := make([]string, len(data))
	batch := &pgx.Batch{}
	for i, raw := range data {
		if !isObject(raw) {
			return nil, fmt.Errorf("document %d: %w", i, ErrInvalidPatch)
		}
		ids[i] = uuid.New().String()
		batch.Queue(insertDoc, collection, ids[i], string(raw))
	}

	q, release := s.conn(ctx)
	defer release()
	tx, err := q.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	br := tx.SendBatch(ctx, batch)
	for i := range data {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return nil, fmt.Errorf("create %s document %d: %w", collection, i, err)
		}
	}
	if err := br.Close(); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return ids, nil
}

func (s *PGStore) Update(ctx context.Context, collection, id string, patch json.RawMessage) error {
	if !isObject(patch) {
		return ErrInvalidPatch
	}
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	q, release := s.conn(ctx)
	defer release()
	tag, err := q.Exec(ctx, `
		UPDATE documents SET data = data || ($3::jsonb - 'id'), updated_at = NOW()
		WHERE collection = $1 AND id = $2`, collection, id, string(patch))
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) Delete(ctx context.Context, collection, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	q, release := s.conn(ctx)
	defer release()
	tag, err := q.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
