package apikey

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/doclibrary/internal/access"
	"github.com/Adithya-Monish-Kumar-K/doclibrary/pkg/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashKey(t *testing.T) {
	assert.Equal(t, HashKey("abc"), HashKey("abc"))
	assert.NotEqual(t, HashKey("abc"), HashKey("abd"))
	assert.Len(t, HashKey("abc"), 64)
}

func TestGenerateRawKey(t *testing.T) {
	a, err := generateRawKey()
	require.NoError(t, err)
	b, err := generateRawKey()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "dl_"))
}

func openTestValidator(t *testing.T) *Validator {
	t.Helper()
	dsn := os.Getenv("DL_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("DL_TEST_POSTGRES_DSN not set")
	}
	db, err := postgres.NewFromDSN(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.ApplySchema(context.Background(), filepath.Join("..", "..", "..", "migrations", "001_init.sql")))
	_, err = db.DB.Exec(`TRUNCATE api_keys`)
	require.NoError(t, err)
	return NewValidator(db)
}

func TestKeyLifecycle(t *testing.T) {
	ctx := context.Background()
	v := openTestValidator(t)

	raw, info, err := v.CreateKey(ctx, NewKey{Name: "reading room", Role: access.RoleStudent, RateLimit: 20})
	require.NoError(t, err)
	assert.Equal(t, access.RoleStudent, info.Role)

	got, err := v.Validate(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, "reading room", got.Name)
	assert.Equal(t, 20, got.RateLimit)

	keys, err := v.ListKeys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 1)

	require.NoError(t, v.RevokeByID(ctx, info.ID))
	_, err = v.Validate(ctx, raw)
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.ErrorIs(t, v.RevokeKey(ctx, raw), ErrInvalidKey)
}

func TestCreateKeyRejectsUnknownRole(t *testing.T) {
	v := openTestValidator(t)
	_, _, err := v.CreateKey(context.Background(), NewKey{Name: "x", Role: "janitor"})
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestExpiredKey(t *testing.T) {
	ctx := context.Background()
	v := openTestValidator(t)
	past := time.Now().Add(-time.Hour)
	raw, _, err := v.CreateKey(ctx, NewKey{Name: "old", Role: access.RoleGuest, ExpiresAt: &past})
	require.NoError(t, err)
	_, err = v.Validate(ctx, raw)
	assert.ErrorIs(t, err, ErrExpiredKey)
}
