package docstore

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenda/agenda/internal/platform/db"
	"github.com/agenda/agenda/migrations"
)

// Runs against a real database when AGENDA_TEST_DATABASE_URL is set.
func newTestPGStore(t *testing.T) (*PGStore, context.Context) {
	t.Helper()
	url := os.Getenv("AGENDA_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("AGENDA_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, db.PoolConfig{URL: url, MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	tenant := "docstore_test"
	_, err = pool.Exec(ctx, "DROP SCHEMA IF EXISTS "+db.SchemaName(tenant)+" CASCADE")
	require.NoError(t, err)
	require.NoError(t, db.CreateTenantSchema(ctx, pool, tenant, migrations.FS))

	ctx, release, err := db.AcquireTenant(ctx, pool, tenant)
	require.NoError(t, err)
	t.Cleanup(release)
	return NewPGStore(pool), ctx
}

func TestPGStore_RoundTrip(t *testing.T) {
	s, ctx := newTestPGStore(t)
	notes := NewCollection[note](s, "notes")

	a := &note{Title: "a", Amount: 50}
	require.NoError(t, notes.Create(ctx, a))
	require.NoError(t, notes.CreateMany(ctx, []*note{{Title: "b", Done: true}, {Title: "c", Amount: 50}}))

	fifty, err := notes.List(ctx, Where("amount", "50"))
	require.NoError(t, err)
	assert.Len(t, fifty, 2)

	require.NoError(t, notes.Update(ctx, a.ID, map[string]any{"done": true}))
	got, err := notes.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.Done)
	assert.Equal(t, "a", got.Title)

	require.NoError(t, notes.Delete(ctx, a.ID))
	_, err = notes.Get(ctx, a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, notes.Delete(ctx, "not-a-uuid"), ErrNotFound)
}

func TestPGStore_RejectsBadFilterField(t *testing.T) {
	s := NewPGStore(nil)
	_, err := s.List(context.Background(), "notes", Where("x'; DROP", "1"))
	assert.Error(t, err)
}
