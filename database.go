package ridb

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Config describes the schemas, migrations, and plugins a Database is
// constructed with.
type Config struct {
	// Name identifies the database and is passed to the backend's
	// Start. MemoryBackend and IndexedBackend both ignore it;
	// IndexedBackend persists to the path given to NewIndexedBackend.
	Name string

	// Schemas maps collection name to its validated Schema.
	Schemas map[string]*Schema

	// Migrations maps collection name to its migration functions,
	// keyed by target version. Only required for schemas with
	// version > 0.
	Migrations map[string]MigrationSet

	// Plugins are applied to every collection ahead of the built-in
	// encryption and migration plugins.
	Plugins []*Plugin

	// Password, if non-empty, enables field-level encryption for every
	// schema that declares EncryptedFields.
	Password string

	// Backend persists the database's documents. Required.
	Backend StorageBackend

	// Logger receives structured, payload-free operation logs. Nil
	// uses a no-op logger.
	Logger *zap.Logger
}

// Database is an open, schema-validated set of collections backed by
// one StorageBackend.
type Database struct {
	name        string
	storage     *Storage
	collections map[string]*Collection
}

// NewDatabase validates cfg, builds the per-collection plugin
// pipelines (user plugins, then encryption if Password is set, then
// migration always last), and starts the backend. Construction fails
// if any schema declares a version greater than zero with no matching
// migration function, mirroring the reference implementation's
// migration-path check.
func NewDatabase(ctx context.Context, cfg Config) (*Database, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("%w: database name is required", ErrConfiguration)
	}
	if cfg.Backend == nil {
		return nil, fmt.Errorf("%w: backend is required", ErrConfiguration)
	}
	if len(cfg.Schemas) == 0 {
		return nil, fmt.Errorf("%w: at least one schema is required", ErrConfiguration)
	}
	storage, err := newStorage(cfg.Schemas, cfg.Migrations, cfg.Plugins, cfg.Backend, cfg.Logger)
	if err != nil {
		return nil, err
	}
	if err := storage.Start(ctx, cfg.Name); err != nil {
		return nil, err
	}
	if cfg.Password != "" {
		if err := storage.enableEncryption(ctx, cfg.Password); err != nil {
			storage.Close(ctx)
			return nil, err
		}
	}

	db := &Database{
		name:        cfg.Name,
		storage:     storage,
		collections: make(map[string]*Collection, len(cfg.Schemas)),
	}
	for name := range cfg.Schemas {
		db.collections[name] = &Collection{name: name, storage: storage}
	}
	return db, nil
}

// Name returns the database's configured name.
func (d *Database) Name() string { return d.name }

// Collection returns the named collection's façade, or false if no
// schema was registered under that name.
func (d *Database) Collection(name string) (*Collection, bool) {
	c, ok := d.collections[name]
	return c, ok
}

// Collections returns every collection façade keyed by name.
func (d *Database) Collections() map[string]*Collection {
	out := make(map[string]*Collection, len(d.collections))
	for k, v := range d.collections {
		out[k] = v
	}
	return out
}

// Close releases the database's backend resources.
func (d *Database) Close(ctx context.Context) error {
	return d.storage.Close(ctx)
}
