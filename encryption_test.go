package ridb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func secretSchema(t *testing.T) *Schema {
	t.Helper()
	schema, err := NewSchema(RawSchema{
		PrimaryKey: "id",
		Type:       TypeObject,
		Encrypted:  []string{"secret"},
		Properties: map[string]*Property{
			"id":     {Type: TypeString},
			"secret": {Type: TypeString},
		},
	})
	require.NoError(t, err)
	return schema
}

func TestEncryptionPluginSealsAndOpensRoundTrip(t *testing.T) {
	salt, err := newSalt()
	require.NoError(t, err)

	plugin, err := newEncryptionPlugin(secretSchema(t), "hunter2", salt)
	require.NoError(t, err)

	sealed, err := plugin.createHook()("secrets", map[string]any{"id": "s1", "secret": "top secret"})
	require.NoError(t, err)
	assert.NotEqual(t, "top secret", sealed["secret"])

	opened, err := plugin.recoverHook()("secrets", sealed)
	require.NoError(t, err)
	assert.Equal(t, "top secret", opened["secret"])
}

func TestEncryptionPluginFailsToOpenWithWrongPassword(t *testing.T) {
	salt, err := newSalt()
	require.NoError(t, err)

	sealer, err := newEncryptionPlugin(secretSchema(t), "hunter2", salt)
	require.NoError(t, err)
	opener, err := newEncryptionPlugin(secretSchema(t), "wrong password", salt)
	require.NoError(t, err)

	sealed, err := sealer.createHook()("secrets", map[string]any{"id": "s1", "secret": "top secret"})
	require.NoError(t, err)

	_, err = opener.recoverHook()("secrets", sealed)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEncryption)
}

func TestEncryptionPluginLeavesMissingFieldsAlone(t *testing.T) {
	salt, err := newSalt()
	require.NoError(t, err)
	plugin, err := newEncryptionPlugin(secretSchema(t), "hunter2", salt)
	require.NoError(t, err)

	doc, err := plugin.createHook()("secrets", map[string]any{"id": "s1"})
	require.NoError(t, err)
	assert.NotContains(t, doc, "secret")
}

// TestDatabaseReopenWithSamePasswordDecryptsAcrossRestarts guards
// against the salt being regenerated on every NewDatabase call: if it
// were, the second open would derive a different key from the same
// password and fail to decrypt the first session's data.
func TestDatabaseReopenWithSamePasswordDecryptsAcrossRestarts(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ridb.db")
	schema := secretSchema(t)

	first, err := NewDatabase(ctx, Config{
		Name:     "reopen-check",
		Schemas:  map[string]*Schema{"secrets": schema},
		Password: "hunter2",
		Backend:  NewIndexedBackend(path),
	})
	require.NoError(t, err)

	secrets, ok := first.Collection("secrets")
	require.True(t, ok)
	_, err = secrets.Create(ctx, map[string]any{"id": "s1", "secret": "top secret"})
	require.NoError(t, err)
	require.NoError(t, first.Close(ctx))

	second, err := NewDatabase(ctx, Config{
		Name:     "reopen-check",
		Schemas:  map[string]*Schema{"secrets": schema},
		Password: "hunter2",
		Backend:  NewIndexedBackend(path),
	})
	require.NoError(t, err)
	defer second.Close(ctx)

	reopened, ok := second.Collection("secrets")
	require.True(t, ok)
	found, err := reopened.FindByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "top secret", found["secret"])
}
