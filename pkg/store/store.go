package store

import "errors"

var (
	// ErrNotFound indicates a namespace that has never been written to.
	// A never-written key inside an existing namespace is not an error;
	// Fetch returns an absent Variable for it.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict indicates a compare-and-swap store against a stale
	// version. The caller may re-fetch and retry.
	ErrConflict = errors.New("store: version conflict")
)

// Variable is a versioned (value, version) handle for read-modify-write
// against one key. A Variable fetched for a never-written key carries an
// empty value and version zero; storing it creates the key.
type Variable struct {
	Key     string
	Value   []byte
	version uint64
}

// Absent reports whether the variable holds no stored value.
func (v Variable) Absent() bool {
	return len(v.Value) == 0
}

// Mutate returns a copy of the variable carrying the new value and the
// same version, ready to be stored.
func (v Variable) Mutate(value []byte) Variable {
	return Variable{Key: v.Key, Value: value, version: v.version}
}

// Store is one namespace of versioned key->bytes records. All operations
// are synchronous; timeout and retry policy belongs to the caller.
type Store interface {
	// Fetch returns the current variable for a key. A never-written key
	// yields an absent variable, not an error.
	Fetch(key string) (Variable, error)

	// Store writes a mutated variable. It fails with ErrConflict when the
	// stored version no longer matches the variable's, and returns the
	// freshly stored variable on success.
	Store(v Variable) (Variable, error)

	// Expunge removes a key. Removing a never-written key is a no-op.
	Expunge(v Variable) error

	// ListKeys returns every key in the namespace. A namespace that has
	// never been written to fails with ErrNotFound.
	ListKeys() ([]string, error)
}
