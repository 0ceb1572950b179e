package ridb

// OpType identifies the kind of work an Operation carries through the
// plugin pipeline.
type OpType string

const (
	OpCreate   OpType = "CREATE"
	OpUpdate   OpType = "UPDATE"
	OpDelete   OpType = "DELETE"
	OpQuery    OpType = "QUERY"
	OpCount    OpType = "COUNT"
	OpFindByID OpType = "FIND_BY_ID"
)

// Operation is the tagged value the storage pipeline routes to a
// backend: a collection name, the kind of work requested, a payload,
// and the index names declared for the collection's schema. Data is a
// map[string]any document for CREATE/UPDATE, or the bare primary-key
// string for DELETE.
type Operation struct {
	Collection string
	Type       OpType
	Data       any
	Indexes    []string
}
