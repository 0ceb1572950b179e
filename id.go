package ridb

import "github.com/google/uuid"

// NewDocumentID returns a fresh random identifier suitable for use as
// a document's primary key value.
func NewDocumentID() string {
	return uuid.New().String()
}
