package catalog

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/access"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/library"
	apperrors "github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	dsn := os.Getenv("DL_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("DL_TEST_POSTGRES_DSN not set")
	}
	db, err := postgres.NewFromDSN(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.ApplySchema(context.Background(), filepath.Join("..", "..", "migrations", "001_init.sql")))
	_, err = db.DB.Exec(`TRUNCATE documents`)
	require.NoError(t, err)
	return New(db)
}

func TestCreateGetDelete(t *testing.T) {
	ctx := context.Background()
	c := openTestCatalog(t)

	doc, err := c.Create(ctx, library.Document{Title: " Orbital Mechanics ", Classification: library.Internal, TotalPages: 3})
	require.NoError(t, err)
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, "Orbital Mechanics", doc.Title)

	got, err := c.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, library.Internal, got.Classification)
	assert.True(t, got.Active())

	require.NoError(t, c.SoftDelete(ctx, doc.ID))
	got, err = c.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.False(t, got.Active())
	// repeating the delete succeeds and keeps the document deleted
	require.NoError(t, c.SoftDelete(ctx, doc.ID))
	got, err = c.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.False(t, got.Active())
	assert.ErrorIs(t, c.SoftDelete(ctx, "missing"), apperrors.ErrDocumentNotFound)

	_, err = c.Get(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrDocumentNotFound)
}

func TestCreateValidates(t *testing.T) {
	ctx := context.Background()
	c := openTestCatalog(t)
	_, err := c.Create(ctx, library.Document{Title: "  ", Classification: library.Public})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	doc, err := c.Create(ctx, library.Document{ID: "fixed", Title: "a", Classification: library.Public})
	require.NoError(t, err)
	_, err = c.Create(ctx, doc)
	assert.ErrorIs(t, err, apperrors.ErrDocumentExists)
}

func TestResolveAndListActive(t *testing.T) {
	ctx := context.Background()
	c := openTestCatalog(t)

	var ids []string
	for _, cl := range []library.Classification{library.Public, library.Restricted, library.Public} {
		doc, err := c.Create(ctx, library.Document{Title: "doc " + cl.String(), Classification: cl})
		require.NoError(t, err)
		ids = append(ids, doc.ID)
		time.Sleep(2 * time.Millisecond)
	}

	resolved, err := c.Resolve(ctx, append(ids, "ghost"))
	require.NoError(t, err)
	assert.Len(t, resolved, 3)
	assert.NotContains(t, resolved, "ghost")

	public, err := c.ListActive(ctx, access.PublicOnly, 10, 0)
	require.NoError(t, err)
	require.Len(t, public, 2)
	assert.Equal(t, ids[2], public[0].ID, "newest first")

	page, err := c.ListActive(ctx, access.PublicOnly, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[0], page[0].ID)

	all, err := c.ListActive(ctx, access.All, 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	require.NoError(t, c.SoftDelete(ctx, ids[1]))
	all, err = c.ListActive(ctx, access.All, 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestOutageMapsToUnavailable(t *testing.T) {
	// nothing listens on port 1, so every statement fails to connect
	db, err := sql.Open("postgres", "host=127.0.0.1 port=1 user=doclibrary dbname=doclibrary sslmode=disable connect_timeout=1")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	c := New(&postgres.Client{DB: db})
	ctx := context.Background()

	err = c.SoftDelete(ctx, "d1")
	assert.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
	assert.Equal(t, http.StatusServiceUnavailable, apperrors.HTTPStatusCode(err))

	_, err = c.Create(ctx, library.Document{Title: "Orbits", Classification: library.Public})
	assert.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
}
