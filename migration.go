package ridb

import "fmt"

// MigrationFunc transforms a document from the version immediately
// below it to the version it is keyed at.
type MigrationFunc func(doc map[string]any) (map[string]any, error)

// MigrationSet maps a target schema version to the function that
// migrates a document from version-1 up to that version.
type MigrationSet map[int]MigrationFunc

// newMigrationPlugin builds the built-in Migration plugin for a
// collection's schema and its migration functions. Construction fails
// if the schema declares a version greater than zero but no migration
// path reaches it.
func newMigrationPlugin(collection string, schema *Schema, migrations MigrationSet) (*Plugin, error) {
	if schema.Version() > 0 {
		if _, ok := migrations[schema.Version()]; !ok {
			return nil, &MigrationError{
				Collection: collection,
				FromVer:    schema.Version() - 1,
				Message: fmt.Sprintf(
					"required schema %s migration path to version %d is not defined",
					collection, schema.Version()),
			}
		}
	}

	return &Plugin{
		Name: "migration",
		DocCreateHook: func(_ string, doc map[string]any) (map[string]any, error) {
			out := make(map[string]any, len(doc)+1)
			for k, v := range doc {
				out[k] = v
			}
			out["version"] = schema.Version()
			return out, nil
		},
		DocRecoverHook: func(_ string, doc map[string]any) (map[string]any, error) {
			return applyMigrations(collection, doc, schema.Version(), migrations)
		},
	}, nil
}

func applyMigrations(collection string, doc map[string]any, target int, migrations MigrationSet) (map[string]any, error) {
	current := 0
	if raw, ok := doc["version"]; ok {
		if v, ok := toFloat(raw); ok {
			current = int(v)
		}
	}

	out := doc
	for v := current + 1; v <= target; v++ {
		step, ok := migrations[v]
		if !ok {
			return nil, &MigrationError{
				Collection: collection,
				FromVer:    v - 1,
				Message: fmt.Sprintf(
					"missing migration step for %s from version %d to %d", collection, v-1, v),
			}
		}
		next, err := step(out)
		if err != nil {
			return nil, &MigrationError{
				Collection: collection,
				FromVer:    v - 1,
				Message:    fmt.Sprintf("migration %s v%d failed: %s", collection, v, err),
			}
		}
		migrated := make(map[string]any, len(next)+1)
		for k, val := range next {
			migrated[k] = val
		}
		migrated["version"] = v
		out = migrated
	}
	return out, nil
}
