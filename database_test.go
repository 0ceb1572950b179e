package ridb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userSchemaV0(t *testing.T) *Schema {
	t.Helper()
	schema, err := NewSchema(RawSchema{
		PrimaryKey: "id",
		Type:       TypeObject,
		Required:   []string{"name"},
		Properties: map[string]*Property{
			"id":   {Type: TypeString},
			"name": {Type: TypeString},
		},
	})
	require.NoError(t, err)
	return schema
}

func TestDatabaseCreateFindByIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := NewDatabase(ctx, Config{
		Name:    "round-trip",
		Schemas: map[string]*Schema{"users": userSchemaV0(t)},
		Backend: NewMemoryBackend(),
	})
	require.NoError(t, err)
	defer db.Close(ctx)

	users, ok := db.Collection("users")
	require.True(t, ok)

	created, err := users.Create(ctx, map[string]any{"id": "u1", "name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "Ada", created["name"])

	found, err := users.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", found["name"])
}

func TestDatabaseCreateGeneratesMissingPrimaryKey(t *testing.T) {
	ctx := context.Background()
	db, err := NewDatabase(ctx, Config{
		Name:    "generated-id",
		Schemas: map[string]*Schema{"users": userSchemaV0(t)},
		Backend: NewMemoryBackend(),
	})
	require.NoError(t, err)
	defer db.Close(ctx)

	users, _ := db.Collection("users")
	created, err := users.Create(ctx, map[string]any{"name": "Ada"})
	require.NoError(t, err)

	id, ok := created["id"].(string)
	require.True(t, ok)
	assert.NotEmpty(t, id)

	found, err := users.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Ada", found["name"])
}

func TestDatabaseCountMatchesFindLength(t *testing.T) {
	ctx := context.Background()
	db, err := NewDatabase(ctx, Config{
		Name:    "count-check",
		Schemas: map[string]*Schema{"users": userSchemaV0(t)},
		Backend: NewMemoryBackend(),
	})
	require.NoError(t, err)
	defer db.Close(ctx)

	users, _ := db.Collection("users")
	_, err = users.Create(ctx, map[string]any{"id": "u1", "name": "Ada"})
	require.NoError(t, err)
	_, err = users.Create(ctx, map[string]any{"id": "u2", "name": "Grace"})
	require.NoError(t, err)

	docs, err := users.Find(ctx, nil)
	require.NoError(t, err)
	count, err := users.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, len(docs), count)
	assert.Equal(t, 2, count)
}

func TestDatabaseDeleteRemovesDocument(t *testing.T) {
	ctx := context.Background()
	db, err := NewDatabase(ctx, Config{
		Name:    "delete-check",
		Schemas: map[string]*Schema{"users": userSchemaV0(t)},
		Backend: NewMemoryBackend(),
	})
	require.NoError(t, err)
	defer db.Close(ctx)

	users, _ := db.Collection("users")
	_, err = users.Create(ctx, map[string]any{"id": "u1", "name": "Ada"})
	require.NoError(t, err)

	sentinel, err := users.Delete(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, deletedSentinel, sentinel)

	_, err = users.FindByID(ctx, "u1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDatabaseRejectsUndeclaredCollection(t *testing.T) {
	ctx := context.Background()
	db, err := NewDatabase(ctx, Config{
		Name:    "unknown-collection",
		Schemas: map[string]*Schema{"users": userSchemaV0(t)},
		Backend: NewMemoryBackend(),
	})
	require.NoError(t, err)
	defer db.Close(ctx)

	_, ok := db.Collection("ghost")
	assert.False(t, ok)
}

func TestDatabaseMigrationStampsVersionOnCreateAndUpgradesOnRead(t *testing.T) {
	ctx := context.Background()
	schema, err := NewSchema(RawSchema{
		Version:    2,
		PrimaryKey: "id",
		Type:       TypeObject,
		Properties: map[string]*Property{
			"id":    {Type: TypeString},
			"email": {Type: TypeString},
		},
	})
	require.NoError(t, err)

	migrations := MigrationSet{
		1: func(doc map[string]any) (map[string]any, error) { return doc, nil },
		2: func(doc map[string]any) (map[string]any, error) {
			out := make(map[string]any, len(doc))
			for k, v := range doc {
				out[k] = v
			}
			out["email"] = "unknown@example.com"
			return out, nil
		},
	}

	backend := NewMemoryBackend()
	db, err := NewDatabase(ctx, Config{
		Name:       "migration-check",
		Schemas:    map[string]*Schema{"users": schema},
		Migrations: map[string]MigrationSet{"users": migrations},
		Backend:    backend,
	})
	require.NoError(t, err)
	defer db.Close(ctx)

	users, _ := db.Collection("users")
	created, err := users.Create(ctx, map[string]any{"id": "u1", "email": "ada@example.com"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, created["version"])

	_, err = backend.Write(ctx, Operation{Collection: "users", Type: OpCreate, Data: map[string]any{"id": "u2", "email": "old@example.com", "version": 0}})
	require.NoError(t, err)

	upgraded, err := users.FindByID(ctx, "u2")
	require.NoError(t, err)
	assert.EqualValues(t, 2, upgraded["version"])
	assert.Equal(t, "unknown@example.com", upgraded["email"])
}

func TestNewDatabaseFailsWithoutRequiredMigrationPath(t *testing.T) {
	ctx := context.Background()
	schema, err := NewSchema(RawSchema{
		Version:    1,
		PrimaryKey: "id",
		Type:       TypeObject,
		Properties: map[string]*Property{"id": {Type: TypeString}},
	})
	require.NoError(t, err)

	_, err = NewDatabase(ctx, Config{
		Name:    "missing-migration",
		Schemas: map[string]*Schema{"users": schema},
		Backend: NewMemoryBackend(),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMigration)
}

func TestDatabaseEncryptsDeclaredFieldsAtRestAndDecryptsOnRead(t *testing.T) {
	ctx := context.Background()
	schema, err := NewSchema(RawSchema{
		PrimaryKey: "id",
		Type:       TypeObject,
		Encrypted:  []string{"ssn"},
		Properties: map[string]*Property{
			"id":  {Type: TypeString},
			"ssn": {Type: TypeString},
		},
	})
	require.NoError(t, err)

	backend := NewMemoryBackend()
	db, err := NewDatabase(ctx, Config{
		Name:     "encryption-check",
		Schemas:  map[string]*Schema{"users": schema},
		Password: "correct horse battery staple",
		Backend:  backend,
	})
	require.NoError(t, err)
	defer db.Close(ctx)

	users, _ := db.Collection("users")
	created, err := users.Create(ctx, map[string]any{"id": "u1", "ssn": "123-45-6789"})
	require.NoError(t, err)
	assert.Equal(t, "123-45-6789", created["ssn"])

	raw, err := backend.FindDocumentByID(ctx, "users", "u1")
	require.NoError(t, err)
	assert.NotEqual(t, "123-45-6789", raw["ssn"])

	found, err := users.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "123-45-6789", found["ssn"])
}
