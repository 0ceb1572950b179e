package ridb

import "errors"

// Error kinds. Every error the pipeline raises itself wraps exactly one
// of these sentinels so callers can branch with errors.Is. Errors
// returned by user plugin hooks are passed through unchanged.
var (
	// ErrValidation is returned when schema construction or document
	// validation fails.
	ErrValidation = errors.New("validation error")

	// ErrQuery is returned when a query fails to parse: an unknown
	// field or operator, or an ill-formed logical clause.
	ErrQuery = errors.New("query error")

	// ErrMigration is returned when a required migration step is
	// missing or a migration function fails.
	ErrMigration = errors.New("migration error")

	// ErrEncryption is returned when decryption/authentication fails,
	// or a password is required but missing.
	ErrEncryption = errors.New("encryption error")

	// ErrNotFound is returned by findById when the primary key is
	// absent from the backend.
	ErrNotFound = errors.New("not found")

	// ErrUnsupportedOperation is returned when a backend does not
	// handle the requested operation kind.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrStorage is returned on backend I/O failure.
	ErrStorage = errors.New("storage error")

	// ErrConfiguration is returned when database construction is
	// given contradictory or missing arguments.
	ErrConfiguration = errors.New("configuration error")
)

var errKinds = []error{
	ErrValidation,
	ErrQuery,
	ErrMigration,
	ErrEncryption,
	ErrNotFound,
	ErrUnsupportedOperation,
	ErrStorage,
	ErrConfiguration,
}

// Kind returns the sentinel error kind wrapped by err, or nil if err
// does not wrap one of the kinds declared above.
func Kind(err error) error {
	for _, kind := range errKinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// ValidationError reports a document or schema that failed validation,
// carrying the JSON-pointer-style path of the offending field.
type ValidationError struct {
	Path    string
	Code    string
	Message string
	Params  map[string]any
}

func (e *ValidationError) Error() string {
	return e.Path + ": " + replaceParams(e.Message, e.Params)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func newValidationError(path, code, message string, params map[string]any) *ValidationError {
	return &ValidationError{Path: path, Code: code, Message: message, Params: params}
}

// QueryError reports a malformed query document.
type QueryError struct {
	Field   string
	Code    string
	Message string
	Params  map[string]any
}

func (e *QueryError) Error() string {
	if e.Field == "" {
		return replaceParams(e.Message, e.Params)
	}
	return e.Field + ": " + replaceParams(e.Message, e.Params)
}

func (e *QueryError) Unwrap() error {
	return ErrQuery
}

func newQueryError(field, code, message string, params map[string]any) *QueryError {
	return &QueryError{Field: field, Code: code, Message: message, Params: params}
}

// MigrationError reports a missing or failing migration step.
type MigrationError struct {
	Collection string
	FromVer    int
	Message    string
}

func (e *MigrationError) Error() string {
	return e.Message
}

func (e *MigrationError) Unwrap() error {
	return ErrMigration
}

// EncryptionError reports a field that failed to decrypt/authenticate.
type EncryptionError struct {
	Field   string
	Message string
}

func (e *EncryptionError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *EncryptionError) Unwrap() error {
	return ErrEncryption
}
