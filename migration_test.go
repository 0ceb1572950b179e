package ridb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyMigrationsSequentiallyUpgrades(t *testing.T) {
	migrations := MigrationSet{
		1: func(doc map[string]any) (map[string]any, error) {
			out := map[string]any{}
			for k, v := range doc {
				out[k] = v
			}
			out["renamed"] = true
			return out, nil
		},
		2: func(doc map[string]any) (map[string]any, error) {
			out := map[string]any{}
			for k, v := range doc {
				out[k] = v
			}
			out["addedInV2"] = true
			return out, nil
		},
	}

	out, err := applyMigrations("widgets", map[string]any{"version": 0.0}, 2, migrations)
	require.NoError(t, err)
	assert.Equal(t, true, out["renamed"])
	assert.Equal(t, true, out["addedInV2"])
	assert.EqualValues(t, 2, out["version"])
}

func TestApplyMigrationsFailsOnMissingStep(t *testing.T) {
	migrations := MigrationSet{
		2: func(doc map[string]any) (map[string]any, error) { return doc, nil },
	}
	_, err := applyMigrations("widgets", map[string]any{"version": 0.0}, 2, migrations)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMigration)
}

func TestNewMigrationPluginRequiresPathWhenVersioned(t *testing.T) {
	schema, err := NewSchema(RawSchema{
		Version:    1,
		PrimaryKey: "id",
		Type:       TypeObject,
		Properties: map[string]*Property{"id": {Type: TypeString}},
	})
	require.NoError(t, err)

	_, err = newMigrationPlugin("widgets", schema, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMigration)
}

func TestNewMigrationPluginAllowsUnversionedSchemaWithoutMigrations(t *testing.T) {
	schema, err := NewSchema(RawSchema{
		PrimaryKey: "id",
		Type:       TypeObject,
		Properties: map[string]*Property{"id": {Type: TypeString}},
	})
	require.NoError(t, err)

	plugin, err := newMigrationPlugin("widgets", schema, nil)
	require.NoError(t, err)
	assert.Equal(t, "migration", plugin.Name)
}
