package ridb

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// collectionConfig binds one collection's schema, migrations, and
// per-schema built-in plugins together for Storage.
type collectionConfig struct {
	schema     *Schema
	migration  *Plugin
	encryption *Plugin
}

// Storage is the pipeline that validates, transforms through plugins,
// and persists documents for a set of collections, via a single
// StorageBackend. Database and Collection are thin façades over it.
type Storage struct {
	backend     StorageBackend
	collections map[string]*collectionConfig
	plugins     []*Plugin
	log         *zap.Logger
}

// newStorage assembles the plugin order the reference implementation
// requires: user-supplied plugins first, then the encryption plugin
// when a password is given, then the migration plugin always last,
// so that migrations observe documents in their sealed form: on write
// migration runs after encryption seals, and on read it runs before
// encryption opens. Encryption plugins are not built here: they need the
// backend's persisted salt, which is only available once Start has
// opened the backend, so callers enable encryption afterward via
// enableEncryption.
func newStorage(
	schemas map[string]*Schema,
	migrations map[string]MigrationSet,
	userPlugins []*Plugin,
	backend StorageBackend,
	log *zap.Logger,
) (*Storage, error) {
	if log == nil {
		log = zap.NewNop()
	}

	collections := make(map[string]*collectionConfig, len(schemas))
	for name, schema := range schemas {
		migPlugin, err := newMigrationPlugin(name, schema, migrations[name])
		if err != nil {
			return nil, err
		}

		collections[name] = &collectionConfig{
			schema:    schema,
			migration: migPlugin,
		}
	}

	plugins := append([]*Plugin(nil), userPlugins...)

	return &Storage{
		backend:     backend,
		collections: collections,
		plugins:     plugins,
		log:         log,
	}, nil
}

// enableEncryption resolves the database's per-database salt (loading
// it from the backend if one was already persisted, otherwise
// generating and persisting a fresh one) and builds an encryption
// plugin for every collection whose schema declares encrypted fields.
// Must be called after Start.
func (s *Storage) enableEncryption(ctx context.Context, password string) error {
	salt, err := resolveSalt(ctx, s.backend)
	if err != nil {
		return err
	}
	for name, cfg := range s.collections {
		if len(cfg.schema.EncryptedFields()) == 0 {
			continue
		}
		plugin, err := newEncryptionPlugin(cfg.schema, password, salt)
		if err != nil {
			return fmt.Errorf("collection %s: %w", name, err)
		}
		cfg.encryption = plugin
	}
	return nil
}

// PrimaryKeyField returns the primary-key property name declared by
// collection's schema.
func (s *Storage) PrimaryKeyField(collection string) (string, error) {
	cfg, err := s.config(collection)
	if err != nil {
		return "", err
	}
	return cfg.schema.PrimaryKey(), nil
}

func (s *Storage) config(collection string) (*collectionConfig, error) {
	cfg, ok := s.collections[collection]
	if !ok {
		return nil, fmt.Errorf("%w: unknown collection %s", ErrConfiguration, collection)
	}
	return cfg, nil
}

// pipeline returns this collection's built-in plugins in registration
// order: encryption (if configured), then migration. User plugins are
// held on Storage and run ahead of these.
func (cfg *collectionConfig) pipeline() []*Plugin {
	chain := make([]*Plugin, 0, 2)
	if cfg.encryption != nil {
		chain = append(chain, cfg.encryption)
	}
	chain = append(chain, cfg.migration)
	return chain
}

func (s *Storage) Start(ctx context.Context, dbName string) error {
	primaryKeys := make(map[string]string, len(s.collections))
	for name, cfg := range s.collections {
		primaryKeys[name] = cfg.schema.PrimaryKey()
	}
	if err := s.backend.Start(ctx, dbName, primaryKeys); err != nil {
		s.log.Error("storage start failed", zap.String("db", dbName), zap.Error(err))
		return err
	}
	s.log.Debug("storage started", zap.String("db", dbName))
	return nil
}

func (s *Storage) Close(ctx context.Context) error {
	if err := s.backend.Close(ctx); err != nil {
		s.log.Error("storage close failed", zap.Error(err))
		return err
	}
	s.log.Debug("storage closed")
	return nil
}

// Write validates doc against collection's schema, runs every plugin's
// create hook forward in registration order (user plugins, then
// encryption, then migration), and persists the result. op.Type must
// be CREATE or UPDATE; use Delete for DELETE.
func (s *Storage) Write(ctx context.Context, collection string, op OpType, doc map[string]any) (map[string]any, error) {
	cfg, err := s.config(collection)
	if err != nil {
		return nil, err
	}

	validated, err := cfg.schema.ValidateDocument(doc)
	if err != nil {
		s.log.Error("validation failed", zap.String("collection", collection), zap.Error(err))
		return nil, err
	}

	current := validated
	for _, p := range s.plugins {
		current, err = p.createHook()(collection, current)
		if err != nil {
			return nil, err
		}
	}
	for _, p := range cfg.pipeline() {
		current, err = p.createHook()(collection, current)
		if err != nil {
			s.log.Error("create hook failed", zap.String("collection", collection), zap.String("plugin", p.Name), zap.Error(err))
			return nil, err
		}
	}

	stored, err := s.backend.Write(ctx, Operation{
		Collection: collection,
		Type:       op,
		Data:       current,
		Indexes:    cfg.schema.Indexes(),
	})
	if err != nil {
		s.log.Error("write failed", zap.String("collection", collection), zap.Error(err))
		return nil, err
	}

	result, ok := stored.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: backend returned unexpected write result", ErrStorage)
	}

	recovered, err := s.recover(collection, cfg, result)
	if err != nil {
		return nil, err
	}
	s.log.Debug("document written", zap.String("collection", collection), zap.String("op", string(op)))
	return recovered, nil
}

// Delete removes the document identified by pk from collection. Hooks
// are not applied: the backend receives the raw primary-key value,
// not a document. Delete returns the backend's deletion sentinel.
func (s *Storage) Delete(ctx context.Context, collection, pk string) (string, error) {
	if _, err := s.config(collection); err != nil {
		return "", err
	}

	stored, err := s.backend.Write(ctx, Operation{Collection: collection, Type: OpDelete, Data: pk})
	if err != nil {
		s.log.Error("delete failed", zap.String("collection", collection), zap.Error(err))
		return "", err
	}

	sentinel, ok := stored.(string)
	if !ok {
		return "", fmt.Errorf("%w: backend returned unexpected delete result", ErrStorage)
	}
	s.log.Debug("document deleted", zap.String("collection", collection))
	return sentinel, nil
}

// recover runs every plugin's recover hook in reverse registration
// order, undoing what the forward create hooks did (e.g. decrypting
// fields encryption sealed).
func (s *Storage) recover(collection string, cfg *collectionConfig, doc map[string]any) (map[string]any, error) {
	if cfg.encryption == nil {
		for _, field := range cfg.schema.EncryptedFields() {
			if raw, ok := doc[field]; ok && raw != nil {
				if _, err := asEnvelope(raw); err == nil {
					return nil, &EncryptionError{Field: field, Message: "password required to decrypt"}
				}
			}
		}
	}
	chain := cfg.pipeline()
	current := doc
	var err error
	for i := len(chain) - 1; i >= 0; i-- {
		current, err = chain[i].recoverHook()(collection, current)
		if err != nil {
			return nil, err
		}
	}
	for i := len(s.plugins) - 1; i >= 0; i-- {
		current, err = s.plugins[i].recoverHook()(collection, current)
		if err != nil {
			return nil, err
		}
	}
	return current, nil
}

// FindByID returns the document in collection with the given primary
// key, recovered through every plugin's recover hook.
func (s *Storage) FindByID(ctx context.Context, collection, id string) (map[string]any, error) {
	cfg, err := s.config(collection)
	if err != nil {
		return nil, err
	}
	doc, err := s.backend.FindDocumentByID(ctx, collection, id)
	if err != nil {
		s.log.Debug("find by id missed", zap.String("collection", collection), zap.Error(err))
		return nil, err
	}
	return s.recover(collection, cfg, doc)
}

// Find returns every document in collection matching query (nil
// matches all), each recovered through every plugin's recover hook.
func (s *Storage) Find(ctx context.Context, collection string, rawQuery map[string]any) ([]map[string]any, error) {
	cfg, err := s.config(collection)
	if err != nil {
		return nil, err
	}

	var query *Query
	if rawQuery != nil {
		query, err = NewQuery(rawQuery, cfg.schema)
		if err != nil {
			return nil, err
		}
	}

	docs, err := s.backend.Find(ctx, collection, query)
	if err != nil {
		s.log.Error("find failed", zap.String("collection", collection), zap.Error(err))
		return nil, err
	}

	out := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		recovered, err := s.recover(collection, cfg, doc)
		if err != nil {
			return nil, err
		}
		out = append(out, recovered)
	}
	s.log.Debug("find completed", zap.String("collection", collection), zap.Int("count", len(out)))
	return out, nil
}

// Count returns the number of documents in collection matching query.
func (s *Storage) Count(ctx context.Context, collection string, rawQuery map[string]any) (int, error) {
	cfg, err := s.config(collection)
	if err != nil {
		return 0, err
	}

	var query *Query
	if rawQuery != nil {
		query, err = NewQuery(rawQuery, cfg.schema)
		if err != nil {
			return 0, err
		}
	}

	n, err := s.backend.Count(ctx, collection, query)
	if err != nil {
		s.log.Error("count failed", zap.String("collection", collection), zap.Error(err))
		return 0, err
	}
	return n, nil
}
