package ridb

import "context"

// Collection is a thin façade binding a collection name to the
// Storage pipeline that validates, transforms, and persists its
// documents.
type Collection struct {
	name    string
	storage *Storage
}

// Name returns the collection's name.
func (c *Collection) Name() string { return c.name }

// Create validates and inserts doc, returning the stored document as
// the recover hooks hand it back (encrypted fields decrypted, schema
// defaults applied, and the migration plugin's "version" field still
// present). A document
// missing its primary key field is assigned a generated one before
// validation.
func (c *Collection) Create(ctx context.Context, doc map[string]any) (map[string]any, error) {
	pkField, err := c.storage.PrimaryKeyField(c.name)
	if err != nil {
		return nil, err
	}
	if _, present := doc[pkField]; !present {
		withID := make(map[string]any, len(doc)+1)
		for k, v := range doc {
			withID[k] = v
		}
		withID[pkField] = NewDocumentID()
		doc = withID
	}
	return c.storage.Write(ctx, c.name, OpCreate, doc)
}

// Update validates and replaces the document sharing doc's primary
// key.
func (c *Collection) Update(ctx context.Context, doc map[string]any) (map[string]any, error) {
	return c.storage.Write(ctx, c.name, OpUpdate, doc)
}

// Delete removes the document with the given primary key and returns
// the backend's deletion sentinel. Hooks are not applied.
func (c *Collection) Delete(ctx context.Context, pk string) (string, error) {
	return c.storage.Delete(ctx, c.name, pk)
}

// FindByID returns the document with the given primary key, or
// ErrNotFound.
func (c *Collection) FindByID(ctx context.Context, id string) (map[string]any, error) {
	return c.storage.FindByID(ctx, c.name, id)
}

// Find returns every document matching query. A nil query matches
// every document in the collection.
func (c *Collection) Find(ctx context.Context, query map[string]any) ([]map[string]any, error) {
	return c.storage.Find(ctx, c.name, query)
}

// Count returns the number of documents matching query.
func (c *Collection) Count(ctx context.Context, query map[string]any) (int, error) {
	return c.storage.Count(ctx, c.name, query)
}
