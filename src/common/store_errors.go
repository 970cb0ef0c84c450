package common

import "fmt"

// StoreErrType classifies store access failures.
type StoreErrType uint32

const (
	// KeyNotFound is returned when the requested item is not in the store.
	KeyNotFound StoreErrType = iota
	// KeyAlreadyExists is returned when an item is committed under a key that
	// is already bound to different content.
	KeyAlreadyExists
)

// StoreErr is the error type returned by all Store implementations. It carries
// the data type, the key, and a StoreErrType so that callers can distinguish a
// plain miss from a conflicting write.
type StoreErr struct {
	dataType string
	errType  StoreErrType
	key      string
}

// NewStoreErr creates a new StoreErr.
func NewStoreErr(dataType string, errType StoreErrType, key string) StoreErr {
	return StoreErr{
		dataType: dataType,
		errType:  errType,
		key:      key,
	}
}

// Error implements the error interface.
func (e StoreErr) Error() string {
	m := ""
	switch e.errType {
	case KeyNotFound:
		m = "Not Found"
	case KeyAlreadyExists:
		m = "Key Already Exists"
	}

	return fmt.Sprintf("%s, %s, %s", e.dataType, e.key, m)
}

// IsStore checks that an error is of type StoreErr and that its code matches
// the provided StoreErrType.
func IsStore(err error, t StoreErrType) bool {
	storeErr, ok := err.(StoreErr)
	return ok && storeErr.errType == t
}
