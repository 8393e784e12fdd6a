package cache

import "errors"

// Sentinel errors for cache operations.
var (
	// ErrInvalidRequest indicates a key cannot be derived from the request.
	ErrInvalidRequest = errors.New("cache: invalid request")

	// ErrPersistFailed indicates the disk tier could not store an entry.
	ErrPersistFailed = errors.New("cache: persist failed")

	// ErrDecodeFailed indicates encoded bytes could not be decoded into an image.
	ErrDecodeFailed = errors.New("cache: decode failed")

	// ErrEncodeFailed indicates an image could not be encoded for persistence.
	ErrEncodeFailed = errors.New("cache: encode failed")

	// ErrInvalidKey indicates a key is not a 64 character lowercase hex string.
	ErrInvalidKey = errors.New("cache: invalid key")

	// ErrInvalidNamespace indicates a namespace identifier is empty or malformed.
	ErrInvalidNamespace = errors.New("cache: invalid namespace")

	// ErrNilImage indicates a nil image was passed for insertion.
	ErrNilImage = errors.New("cache: image is nil")

	// ErrClosed indicates the coordinator has been closed.
	ErrClosed = errors.New("cache: coordinator is closed")
)
