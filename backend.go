package ridb

import "context"

// deletedSentinel is returned by a backend's Write method on a
// successful DELETE, mirroring the reference implementation's
// "Document deleted" acknowledgement.
const deletedSentinel = "Document deleted"

// StorageBackend persists documents for a set of collections. A
// backend does not see plugin hooks or schema validation; Storage
// applies those before calling Write and after calling the read
// methods. Implementations must be safe for concurrent use.
type StorageBackend interface {
	// Start opens or creates the backend's underlying resources for
	// dbName, given the primary-key field name of every collection.
	Start(ctx context.Context, dbName string, primaryKeys map[string]string) error

	// Close releases the backend's resources. Calling any other
	// method after Close returns an error.
	Close(ctx context.Context) error

	// Write performs op.Type (CREATE, UPDATE, or DELETE) against
	// op.Collection. op.Data is a map[string]any document for CREATE/
	// UPDATE, or the bare primary-key string for DELETE. On DELETE it
	// returns deletedSentinel.
	Write(ctx context.Context, op Operation) (any, error)

	// FindDocumentByID returns the document in collection whose
	// primary key equals id, or ErrNotFound if none exists.
	FindDocumentByID(ctx context.Context, collection, id string) (map[string]any, error)

	// Find returns every document in collection matching query. A nil
	// query matches every document.
	Find(ctx context.Context, collection string, query *Query) ([]map[string]any, error)

	// Count returns the number of documents in collection matching
	// query, equivalent to len(Find(...)) but may be cheaper.
	Count(ctx context.Context, collection string, query *Query) (int, error)
}
