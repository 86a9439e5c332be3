package store_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillpress/quill-server/internal/store"
)

type testEntity struct {
	ID     string   `json:"id"`
	Handle string   `json:"handle"`
	Groups []string `json:"groups"`
}

func setupEntity(t *testing.T) *store.Entity[testEntity] {
	t.Helper()

	opts := badger.DefaultOptions(filepath.Join(t.TempDir(), "entity"))
	opts.Logger = nil
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return store.NewEntity[testEntity](db, "test:").
		WithIndexTransform("handle",
			func(e *testEntity) []string { return []string{strings.ToLower(e.Handle)} },
			strings.ToLower,
		).
		WithMultiIndex("group", func(e *testEntity) []string { return e.Groups })
}

func TestEntity_CreateGetDelete(t *testing.T) {
	e := setupEntity(t)
	ctx := context.Background()

	require.NoError(t, e.Create(ctx, "1", &testEntity{ID: "1", Handle: "Ada", Groups: []string{"a"}}))
	assert.ErrorIs(t, e.Create(ctx, "1", &testEntity{ID: "1", Handle: "other"}), store.ErrAlreadyExists)

	got, err := e.GetByIndex(ctx, "handle", "ADA")
	require.NoError(t, err)
	assert.Equal(t, "1", got.ID)

	require.NoError(t, e.Delete(ctx, "1"))
	require.NoError(t, e.Delete(ctx, "1"), "delete is idempotent")

	_, err = e.Get(ctx, "1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = e.GetByIndex(ctx, "handle", "ada")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEntity_UniqueIndexConflict(t *testing.T) {
	e := setupEntity(t)
	ctx := context.Background()

	require.NoError(t, e.Create(ctx, "1", &testEntity{ID: "1", Handle: "ada"}))
	err := e.Create(ctx, "2", &testEntity{ID: "2", Handle: "ADA"})
	assert.True(t, store.IsIndexConflict(err, "handle"))

	// Re-saving with the same handle is not a conflict with itself.
	require.NoError(t, e.Update(ctx, "1", &testEntity{ID: "1", Handle: "Ada", Groups: []string{"x"}}))
}

func TestEntity_MultiIndexAndList(t *testing.T) {
	e := setupEntity(t)
	ctx := context.Background()

	require.NoError(t, e.Create(ctx, "1", &testEntity{ID: "1", Handle: "a", Groups: []string{"red", "blue"}}))
	require.NoError(t, e.Create(ctx, "2", &testEntity{ID: "2", Handle: "b", Groups: []string{"red"}}))
	require.NoError(t, e.Create(ctx, "3", &testEntity{ID: "3", Handle: "c"}))

	red, err := e.IDsByIndex(ctx, "group", "red")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, red)

	require.NoError(t, e.Update(ctx, "1", &testEntity{ID: "1", Handle: "a", Groups: []string{"blue"}}))
	red, err = e.IDsByIndex(ctx, "group", "red")
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, red)

	all, err := e.Collect(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3, "index keys are not listed")
}
